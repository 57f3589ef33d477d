package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ShayCichocki/lincoln/internal/orchestrator"
	"github.com/ShayCichocki/lincoln/internal/server"
	"github.com/ShayCichocki/lincoln/pkg/models"
)

const (
	maxEvents    = 8
	fetchTimeout = 5 * time.Second
)

// Source is what the dashboard polls. *client.Client satisfies it.
type Source interface {
	Status(ctx context.Context) (server.StatusResponse, error)
	Tasks(ctx context.Context, status models.TaskStatus, kind models.AgentKind) ([]models.AgentTask, error)
}

// SnapshotMsg carries one poll result.
type SnapshotMsg struct {
	Status server.StatusResponse
	Tasks  []models.AgentTask
	Err    error
	At     time.Time
}

// EventMsg delivers a streamed orchestrator event.
type EventMsg struct {
	Event orchestrator.OrchestratorEvent
}

type tickMsg time.Time

// Dashboard is the bubbletea model for the live dashboard.
type Dashboard struct {
	src     Source
	refresh time.Duration

	header      *Header
	tasksPanel  *TasksPanel
	agentsPanel *AgentsPanel
	footer      *Footer
	spinner     spinner.Model

	loading  bool
	loaded   bool
	quitting bool
	width    int
	height   int
	events   []orchestrator.OrchestratorEvent

	eventStyle lipgloss.Style
	errorStyle lipgloss.Style
}

// NewDashboard creates a dashboard that polls src every refresh interval.
func NewDashboard(src Source, refresh time.Duration) *Dashboard {
	if refresh <= 0 {
		refresh = time.Second
	}
	d := &Dashboard{
		src:         src,
		refresh:     refresh,
		header:      NewHeader(),
		tasksPanel:  NewTasksPanel(),
		agentsPanel: NewAgentsPanel(),
		footer:      NewFooter(),
		spinner:     spinner.New(spinner.WithSpinner(spinner.Dot)),
		loading:     true,
		width:       100,
		height:      30,
		eventStyle:  lipgloss.NewStyle().Foreground(lipgloss.Color("244")),
		errorStyle:  lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
	}
	d.resize()
	return d
}

// Init implements tea.Model.
func (d *Dashboard) Init() tea.Cmd {
	return tea.Batch(d.spinner.Tick, d.fetch())
}

func (d *Dashboard) fetch() tea.Cmd {
	src := d.src
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		defer cancel()

		msg := SnapshotMsg{At: time.Now()}
		msg.Status, msg.Err = src.Status(ctx)
		if msg.Err != nil {
			return msg
		}
		msg.Tasks, msg.Err = src.Tasks(ctx, "", "")
		return msg
	}
}

func (d *Dashboard) tick() tea.Cmd {
	return tea.Tick(d.refresh, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Update implements tea.Model.
func (d *Dashboard) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			d.quitting = true
			return d, tea.Quit
		case "r":
			if !d.loading {
				d.loading = true
				cmds = append(cmds, d.fetch(), d.spinner.Tick)
			}
		default:
			var cmd tea.Cmd
			d.tasksPanel, cmd = d.tasksPanel.Update(msg)
			cmds = append(cmds, cmd)
		}

	case tea.WindowSizeMsg:
		d.width = msg.Width
		d.height = msg.Height
		d.resize()

	case tickMsg:
		if !d.loading {
			d.loading = true
			cmds = append(cmds, d.fetch(), d.spinner.Tick)
		}

	case SnapshotMsg:
		d.loading = false
		d.footer.SetRefreshed(msg.At, msg.Err)
		if msg.Err == nil {
			d.loaded = true
			d.header.SetStatus(msg.Status.OrchestratorStatus, msg.Status.Queue)
			d.agentsPanel.SetAgents(msg.Status.Agents)
			d.tasksPanel.SetTasks(msg.Tasks)
		}
		cmds = append(cmds, d.tick())

	case EventMsg:
		d.events = append(d.events, msg.Event)
		if len(d.events) > maxEvents {
			d.events = d.events[len(d.events)-maxEvents:]
		}

	case spinner.TickMsg:
		if d.loading {
			var cmd tea.Cmd
			d.spinner, cmd = d.spinner.Update(msg)
			cmds = append(cmds, cmd)
		}
	}

	return d, tea.Batch(cmds...)
}

func (d *Dashboard) resize() {
	d.header.SetWidth(d.width)
	d.footer.SetWidth(d.width)

	agentsW := d.width / 3
	if agentsW < 36 {
		agentsW = 36
	}
	tasksW := d.width - agentsW
	if tasksW < 40 {
		tasksW = 40
	}
	d.agentsPanel.SetWidth(agentsW)

	contentH := d.height - d.header.Height() - 2 - d.eventLines()
	d.tasksPanel.SetSize(tasksW, contentH)
}

func (d *Dashboard) eventLines() int {
	if len(d.events) == 0 {
		return 0
	}
	return maxEvents + 1
}

// View implements tea.Model.
func (d *Dashboard) View() string {
	if d.quitting {
		return "Goodbye!\n"
	}
	if !d.loaded {
		return d.spinner.View() + " connecting to lincoln...\n" + d.footer.View()
	}

	content := lipgloss.JoinHorizontal(lipgloss.Top, d.tasksPanel.View(), d.agentsPanel.View())

	var b strings.Builder
	b.WriteString(d.header.View())
	b.WriteString("\n")
	b.WriteString(content)
	b.WriteString("\n")
	if len(d.events) > 0 {
		b.WriteString(d.renderEvents())
		b.WriteString("\n")
	}
	if d.loading {
		b.WriteString(d.spinner.View() + " ")
	}
	b.WriteString(d.footer.View())
	return b.String()
}

func (d *Dashboard) renderEvents() string {
	lines := make([]string, 0, len(d.events))
	for _, ev := range d.events {
		line := fmt.Sprintf("%s %-15s", ev.Timestamp.Format("15:04:05"), ev.Type)
		if ev.TaskID != "" {
			line += " " + ev.TaskID
		}
		if ev.Kind != "" {
			line += " (" + string(ev.Kind) + ")"
		}
		if ev.State != "" {
			line += " " + string(ev.State)
		}
		if ev.Error != "" {
			lines = append(lines, d.errorStyle.Render(line+": "+ev.Error))
			continue
		}
		lines = append(lines, d.eventStyle.Render(line))
	}
	return strings.Join(lines, "\n")
}

// Events returns the buffered recent events, oldest first.
func (d *Dashboard) Events() []orchestrator.OrchestratorEvent {
	return append([]orchestrator.OrchestratorEvent(nil), d.events...)
}
