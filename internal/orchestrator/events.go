package orchestrator

import (
	"time"

	"github.com/ShayCichocki/lincoln/pkg/models"
)

// EventType represents the type of orchestrator event.
type EventType string

const (
	// EventTaskEnqueued indicates a task was added to the queue.
	EventTaskEnqueued EventType = "task_enqueued"
	// EventTaskStarted indicates a loop claimed a task and invoked its agent.
	EventTaskStarted EventType = "task_started"
	// EventTaskRetrying indicates a transient failure that will be retried.
	EventTaskRetrying EventType = "task_retrying"
	// EventTaskSucceeded indicates a task completed successfully.
	EventTaskSucceeded EventType = "task_succeeded"
	// EventTaskFailed indicates a task failed.
	EventTaskFailed EventType = "task_failed"
	// EventStateChanged indicates the dispatcher was started, paused, resumed or stopped.
	EventStateChanged EventType = "state_changed"
	// EventHealth carries a periodic health summary.
	EventHealth EventType = "health"
)

// OrchestratorEvent represents an event emitted by the orchestrator.
// Events feed the websocket stream and the dashboard.
type OrchestratorEvent struct {
	Type   EventType        `json:"type"`
	TaskID string           `json:"task_id,omitempty"`
	Kind   models.AgentKind `json:"kind,omitempty"`
	// Attempt is 1-based.
	Attempt int    `json:"attempt,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
	// State is set on EventStateChanged.
	State     State         `json:"state,omitempty"`
	Duration  time.Duration `json:"duration,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}
