package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/lincoln/internal/orchestrator"
	"github.com/ShayCichocki/lincoln/internal/tui"
)

var watchEventsOnly bool

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Open the live dashboard",
	Long: `Show a live dashboard of the queue, agents and recent events.

With --events, prints the orchestrator event stream as lines instead.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().BoolVar(&watchEventsOnly, "events", false, "Print events instead of opening the dashboard")
}

func runWatch(cmd *cobra.Command, args []string) error {
	c, cfg, err := newClient()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	if watchEventsOnly {
		return c.StreamEvents(ctx, func(ev orchestrator.OrchestratorEvent) {
			fmt.Println(formatEvent(ev))
		})
	}

	d := tui.NewDashboard(c, cfg.TUI.RefreshRate)
	p := tea.NewProgram(d, tea.WithAltScreen(), tea.WithContext(ctx))

	// The dashboard still polls if the stream is unavailable.
	go func() {
		_ = c.StreamEvents(ctx, func(ev orchestrator.OrchestratorEvent) {
			p.Send(tui.EventMsg{Event: ev})
		})
	}()

	_, err = p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

func formatEvent(ev orchestrator.OrchestratorEvent) string {
	line := fmt.Sprintf("%s %-15s", ev.Timestamp.Local().Format(time.TimeOnly), ev.Type)
	if ev.TaskID != "" {
		line += " " + ev.TaskID
	}
	if ev.Kind != "" {
		line += " " + string(ev.Kind)
	}
	if ev.Attempt > 0 {
		line += fmt.Sprintf(" attempt=%d", ev.Attempt)
	}
	if ev.State != "" {
		line += " state=" + string(ev.State)
	}
	if ev.Duration > 0 {
		line += " duration=" + ev.Duration.Round(time.Millisecond).String()
	}
	if ev.Message != "" {
		line += " " + ev.Message
	}
	if ev.Error != "" {
		line += " error=" + ev.Error
	}
	return line
}
