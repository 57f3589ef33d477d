package tui

import (
	"time"

	"github.com/charmbracelet/lipgloss"
)

// Footer renders the last refresh time, connection errors and key hints.
type Footer struct {
	width      int
	lastUpdate time.Time
	err        error

	hintStyle  lipgloss.Style
	errorStyle lipgloss.Style
}

// NewFooter creates a new Footer instance.
func NewFooter() *Footer {
	return &Footer{
		hintStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")),
		errorStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true),
	}
}

// SetWidth sets the footer width.
func (f *Footer) SetWidth(width int) {
	f.width = width
}

// SetRefreshed records the outcome of the latest poll.
func (f *Footer) SetRefreshed(at time.Time, err error) {
	if err == nil {
		f.lastUpdate = at
	}
	f.err = err
}

// View renders the footer.
func (f *Footer) View() string {
	var left string
	switch {
	case f.err != nil:
		left = f.errorStyle.Render("✗ " + f.err.Error())
	case !f.lastUpdate.IsZero():
		left = f.hintStyle.Render("updated " + f.lastUpdate.Format("15:04:05"))
	}

	hints := f.hintStyle.Render("↑/↓ scroll │ r refresh │ q quit")
	if left == "" {
		return hints
	}
	return left + f.hintStyle.Render(" │ ") + hints
}
