package models

import (
	"encoding/json"
	"time"
)

// TaskStatus represents the current state of a task.
type TaskStatus string

const (
	// TaskStatusPending indicates the task is waiting in the queue.
	TaskStatusPending TaskStatus = "pending"
	// TaskStatusRunning indicates a dispatch loop has claimed the task.
	TaskStatusRunning TaskStatus = "running"
	// TaskStatusSucceeded indicates the agent produced a result.
	TaskStatusSucceeded TaskStatus = "succeeded"
	// TaskStatusFailed indicates the task ended without a result.
	TaskStatusFailed TaskStatus = "failed"
)

// Valid returns true if the status is a known value.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusRunning, TaskStatusSucceeded, TaskStatusFailed:
		return true
	default:
		return false
	}
}

// Terminal returns true for statuses that never change again.
func (s TaskStatus) Terminal() bool {
	return s == TaskStatusSucceeded || s == TaskStatusFailed
}

// CanTransitionTo reports whether moving from s to next is allowed.
// The only legal moves are pending -> running -> succeeded|failed.
func (s TaskStatus) CanTransitionTo(next TaskStatus) bool {
	switch s {
	case TaskStatusPending:
		return next == TaskStatusRunning
	case TaskStatusRunning:
		return next == TaskStatusSucceeded || next == TaskStatusFailed
	default:
		return false
	}
}

// AgentTask is a unit of work for a single agent.
type AgentTask struct {
	// ID is unique for the lifetime of the queue.
	ID string `json:"id" yaml:"id"`
	// Kind selects the agent that runs the task.
	Kind AgentKind `json:"kind" yaml:"kind"`
	// Payload is the agent input; its shape depends on Kind.
	Payload json.RawMessage `json:"payload,omitempty" yaml:"-"`
	// Status is the current state of the task.
	Status TaskStatus `json:"status" yaml:"status"`
	// Seq is the enqueue sequence number and orders the queue.
	Seq int64 `json:"seq" yaml:"seq"`
	// CreatedAt is when the task was enqueued.
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	// StartedAt is when a dispatch loop claimed the task.
	StartedAt *time.Time `json:"started_at,omitempty" yaml:"started_at,omitempty"`
	// CompletedAt is when the task reached a terminal status.
	CompletedAt *time.Time `json:"completed_at,omitempty" yaml:"completed_at,omitempty"`
	// Result is the agent output for succeeded tasks.
	Result json.RawMessage `json:"result,omitempty" yaml:"-"`
	// Error is the failure reason, or the last transient error while retrying.
	Error string `json:"error,omitempty" yaml:"error,omitempty"`
	// Retries counts transient failures that were retried.
	Retries int `json:"retries" yaml:"retries"`
}

// Clone returns a deep copy so callers cannot mutate queue-owned state.
func (t AgentTask) Clone() AgentTask {
	out := t
	if t.Payload != nil {
		out.Payload = append(json.RawMessage(nil), t.Payload...)
	}
	if t.Result != nil {
		out.Result = append(json.RawMessage(nil), t.Result...)
	}
	if t.StartedAt != nil {
		ts := *t.StartedAt
		out.StartedAt = &ts
	}
	if t.CompletedAt != nil {
		ts := *t.CompletedAt
		out.CompletedAt = &ts
	}
	return out
}

// Outcome is the terminal result reported for a running task.
type Outcome struct {
	// Status must be TaskStatusSucceeded or TaskStatusFailed.
	Status TaskStatus `json:"status"`
	// Result is the agent output on success.
	Result json.RawMessage `json:"result,omitempty"`
	// Reason explains a failure.
	Reason string `json:"reason,omitempty"`
}

// Succeeded builds a successful outcome.
func Succeeded(result json.RawMessage) Outcome {
	return Outcome{Status: TaskStatusSucceeded, Result: result}
}

// Failed builds a failed outcome.
func Failed(reason string) Outcome {
	return Outcome{Status: TaskStatusFailed, Reason: reason}
}
