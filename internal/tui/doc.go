// Package tui provides the live dashboard for a running lincoln server.
//
// The dashboard polls the status API on a fixed interval and shows:
//   - Orchestrator state and per-status queue counts
//   - The task queue as a scrollable table
//   - Every agent kind with its live state
//   - Recent orchestrator events, when an event stream is attached
//
// Usage:
//
//	d := tui.NewDashboard(client.New(url), time.Second)
//	p := tea.NewProgram(d, tea.WithAltScreen())
//
//	// Optionally forward streamed events
//	go c.StreamEvents(ctx, func(ev orchestrator.OrchestratorEvent) {
//	    p.Send(tui.EventMsg{Event: ev})
//	})
//
//	_, err := p.Run()
//
// The dashboard is read-only. Users quit with 'q' or Ctrl+C.
package tui
