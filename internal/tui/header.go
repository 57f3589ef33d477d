package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/ShayCichocki/lincoln/internal/orchestrator"
	"github.com/ShayCichocki/lincoln/pkg/models"
)

// Header renders the title bar with orchestrator state and queue counts.
type Header struct {
	width  int
	state  orchestrator.State
	counts map[models.TaskStatus]int

	titleStyle lipgloss.Style
	labelStyle lipgloss.Style
}

// NewHeader creates a new Header.
func NewHeader() *Header {
	return &Header{
		width: 80,
		titleStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFC857")),
		labelStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("243")),
	}
}

// SetWidth sets the header width.
func (h *Header) SetWidth(width int) {
	h.width = width
}

// SetStatus updates the orchestrator state and queue counts.
func (h *Header) SetStatus(state orchestrator.State, counts map[models.TaskStatus]int) {
	h.state = state
	h.counts = counts
}

// View renders the header.
func (h *Header) View() string {
	state := string(h.state)
	if state == "" {
		state = "unknown"
	}

	parts := []string{
		h.titleStyle.Render("lincoln"),
		stateStyle(h.state).Render(state),
	}
	for _, s := range []models.TaskStatus{
		models.TaskStatusPending, models.TaskStatusRunning,
		models.TaskStatusSucceeded, models.TaskStatusFailed,
	} {
		parts = append(parts, h.labelStyle.Render(string(s)+" ")+statusStyle(s).Render(fmt.Sprint(h.counts[s])))
	}

	return lipgloss.NewStyle().
		Width(h.width).
		PaddingBottom(1).
		Render(strings.Join(parts, "  "))
}

// Height returns the header height in lines.
func (h *Header) Height() int {
	return 2
}

func stateStyle(s orchestrator.State) lipgloss.Style {
	switch s {
	case orchestrator.StateRunning:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("34")).Bold(true)
	case orchestrator.StatePaused:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	case orchestrator.StateStopped:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	default:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	}
}

func statusStyle(s models.TaskStatus) lipgloss.Style {
	switch s {
	case models.TaskStatusRunning:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("34")) // Green
	case models.TaskStatusSucceeded:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("28")) // Dark green
	case models.TaskStatusFailed:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("196")) // Red
	default:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("244")) // Gray
	}
}
