package orchestrator

import (
	"time"

	"github.com/ShayCichocki/lincoln/pkg/models"
)

// State is the dispatcher lifecycle state.
type State string

const (
	StateInitializing State = "initializing"
	StateRunning      State = "running"
	StatePaused       State = "paused"
	StateStopped      State = "stopped"
)

// Status is a point-in-time view of the dispatcher.
type Status struct {
	State         State                     `json:"state"`
	StartedAt     *time.Time                `json:"started_at,omitempty"`
	Agents        []AgentStatus             `json:"agents"`
	Queue         map[models.TaskStatus]int `json:"queue"`
	DroppedEvents uint64                    `json:"dropped_events"`
}

// State returns the current lifecycle state.
func (d *Dispatcher) State() State {
	d.mu.Lock()
	s := d.state
	d.mu.Unlock()
	if s == StateRunning && d.pause.IsPaused() {
		return StatePaused
	}
	return s
}

// Status reports the dispatcher state, every agent and the queue counts.
func (d *Dispatcher) Status() Status {
	st := Status{State: d.State()}
	d.mu.Lock()
	if d.startedAt != nil {
		t := *d.startedAt
		st.StartedAt = &t
	}
	d.mu.Unlock()

	st.Agents = d.registry.All()
	st.Queue = d.queue.Counts()
	st.DroppedEvents = d.events.DroppedCount()
	return st
}
