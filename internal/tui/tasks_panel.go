package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ShayCichocki/lincoln/pkg/models"
)

// TasksPanel shows the queue as a table in enqueue order.
type TasksPanel struct {
	table table.Model
	tasks []models.AgentTask
	now   func() time.Time

	titleStyle  lipgloss.Style
	borderStyle lipgloss.Style
}

// NewTasksPanel creates a new TasksPanel instance.
func NewTasksPanel() *TasksPanel {
	t := table.New(
		table.WithColumns(taskColumns(80)),
		table.WithFocused(true),
		table.WithHeight(10),
	)
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(true)
	styles.Selected = styles.Selected.
		Foreground(lipgloss.Color("15")).
		Background(lipgloss.Color("236")).
		Bold(true)
	t.SetStyles(styles)

	return &TasksPanel{
		table: t,
		now:   time.Now,
		titleStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Padding(0, 1),
		borderStyle: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")),
	}
}

func taskColumns(width int) []table.Column {
	fixed := 14 + 22 + 10 + 7 + 8
	errW := width - fixed - 12
	if errW < 10 {
		errW = 10
	}
	return []table.Column{
		{Title: "ID", Width: 14},
		{Title: "Kind", Width: 22},
		{Title: "Status", Width: 10},
		{Title: "Retries", Width: 7},
		{Title: "Age", Width: 8},
		{Title: "Error", Width: errW},
	}
}

// SetSize sets the panel dimensions including its border.
func (p *TasksPanel) SetSize(width, height int) {
	p.table.SetColumns(taskColumns(width))
	p.table.SetWidth(width - 2)
	// Border and title take three lines.
	if h := height - 3; h > 1 {
		p.table.SetHeight(h)
	}
}

// SetTasks replaces the rows.
func (p *TasksPanel) SetTasks(tasks []models.AgentTask) {
	p.tasks = tasks
	rows := make([]table.Row, 0, len(tasks))
	now := p.now()
	for _, t := range tasks {
		rows = append(rows, table.Row{
			truncate(t.ID, 14),
			string(t.Kind),
			string(t.Status),
			fmt.Sprint(t.Retries),
			formatAge(now.Sub(t.CreatedAt)),
			t.Error,
		})
	}
	p.table.SetRows(rows)
	if c := p.table.Cursor(); c >= len(rows) && len(rows) > 0 {
		p.table.SetCursor(len(rows) - 1)
	}
}

// Selected returns the task under the cursor.
func (p *TasksPanel) Selected() (models.AgentTask, bool) {
	c := p.table.Cursor()
	if c < 0 || c >= len(p.tasks) {
		return models.AgentTask{}, false
	}
	return p.tasks[c], true
}

// Update handles navigation keys.
func (p *TasksPanel) Update(msg tea.Msg) (*TasksPanel, tea.Cmd) {
	var cmd tea.Cmd
	p.table, cmd = p.table.Update(msg)
	return p, cmd
}

// View renders the panel.
func (p *TasksPanel) View() string {
	title := p.titleStyle.Render(fmt.Sprintf("Tasks (%d)", len(p.tasks)))
	body := p.table.View()
	if len(p.tasks) == 0 {
		body = lipgloss.NewStyle().Foreground(lipgloss.Color("244")).Padding(0, 1).Render("Queue is empty")
	}
	return p.borderStyle.Render(lipgloss.JoinVertical(lipgloss.Left, title, body))
}

func formatAge(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}
