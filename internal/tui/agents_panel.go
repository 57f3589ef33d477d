package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/ShayCichocki/lincoln/internal/orchestrator"
)

// AgentsPanel lists every agent kind with its state and counters.
type AgentsPanel struct {
	agents []orchestrator.AgentStatus
	width  int

	titleStyle   lipgloss.Style
	borderStyle  lipgloss.Style
	nameStyle    lipgloss.Style
	labelStyle   lipgloss.Style
	idleStyle    lipgloss.Style
	workingStyle lipgloss.Style
	errorStyle   lipgloss.Style
}

// NewAgentsPanel creates a new AgentsPanel instance.
func NewAgentsPanel() *AgentsPanel {
	return &AgentsPanel{
		width: 40,
		titleStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Padding(0, 1),
		borderStyle: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1),
		nameStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("252")),
		labelStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")),
		idleStyle:    lipgloss.NewStyle().Foreground(lipgloss.Color("244")),
		workingStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("34")),
		errorStyle:   lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
	}
}

// SetWidth sets the panel width including its border.
func (p *AgentsPanel) SetWidth(width int) {
	p.width = width
}

// SetAgents replaces the agent list.
func (p *AgentsPanel) SetAgents(agents []orchestrator.AgentStatus) {
	p.agents = agents
}

// View renders the panel.
func (p *AgentsPanel) View() string {
	lines := []string{p.titleStyle.Render("Agents")}
	inner := p.width - 4
	if inner < 20 {
		inner = 20
	}

	for _, a := range p.agents {
		state := p.stateStyle(a.State).Render(fmt.Sprintf("%-7s", a.State))
		counts := p.labelStyle.Render(fmt.Sprintf("ok %d  fail %d", a.Processed, a.Failed))
		lines = append(lines, state+" "+p.nameStyle.Render(a.Name)+"  "+counts)

		switch {
		case a.State == orchestrator.AgentWorking && a.CurrentTask != "":
			lines = append(lines, p.labelStyle.Render("        task "+truncate(a.CurrentTask, inner-13)))
		case a.State == orchestrator.AgentError && a.LastError != "":
			lines = append(lines, p.errorStyle.Render("        "+truncate(a.LastError, inner-8)))
		}
	}
	if len(p.agents) == 0 {
		lines = append(lines, p.idleStyle.Render("No agents reported"))
	}

	return p.borderStyle.Width(p.width - 2).Render(strings.Join(lines, "\n"))
}

func (p *AgentsPanel) stateStyle(s orchestrator.AgentState) lipgloss.Style {
	switch s {
	case orchestrator.AgentWorking:
		return p.workingStyle
	case orchestrator.AgentError:
		return p.errorStyle
	default:
		return p.idleStyle
	}
}
