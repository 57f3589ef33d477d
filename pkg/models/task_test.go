package models

import (
	"encoding/json"
	"testing"
	"time"
)

func TestTaskStatus_Valid(t *testing.T) {
	tests := []struct {
		name   string
		status TaskStatus
		want   bool
	}{
		{"pending is valid", TaskStatusPending, true},
		{"running is valid", TaskStatusRunning, true},
		{"succeeded is valid", TaskStatusSucceeded, true},
		{"failed is valid", TaskStatusFailed, true},
		{"empty string is invalid", TaskStatus(""), false},
		{"unknown status is invalid", TaskStatus("unknown"), false},
		{"old in_progress is invalid", TaskStatus("in_progress"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.status.Valid(); got != tt.want {
				t.Errorf("TaskStatus(%q).Valid() = %v, want %v", tt.status, got, tt.want)
			}
		})
	}
}

func TestTaskStatus_Terminal(t *testing.T) {
	tests := []struct {
		status TaskStatus
		want   bool
	}{
		{TaskStatusPending, false},
		{TaskStatusRunning, false},
		{TaskStatusSucceeded, true},
		{TaskStatusFailed, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := tt.status.Terminal(); got != tt.want {
				t.Errorf("Terminal() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTaskStatus_CanTransitionTo(t *testing.T) {
	statuses := []TaskStatus{TaskStatusPending, TaskStatusRunning, TaskStatusSucceeded, TaskStatusFailed}
	allowed := map[[2]TaskStatus]bool{
		{TaskStatusPending, TaskStatusRunning}:   true,
		{TaskStatusRunning, TaskStatusSucceeded}: true,
		{TaskStatusRunning, TaskStatusFailed}:    true,
	}

	for _, from := range statuses {
		for _, to := range statuses {
			want := allowed[[2]TaskStatus{from, to}]
			if got := from.CanTransitionTo(to); got != want {
				t.Errorf("%s -> %s: CanTransitionTo = %v, want %v", from, to, got, want)
			}
		}
	}
}

func TestAgentTask_CloneIsDeep(t *testing.T) {
	started := time.Now()
	orig := AgentTask{
		ID:        "t1",
		Kind:      KindCodeReviewer,
		Payload:   json.RawMessage(`{"a":1}`),
		Result:    json.RawMessage(`{"b":2}`),
		StartedAt: &started,
	}

	clone := orig.Clone()
	clone.Payload[2] = 'x'
	clone.Result[2] = 'y'
	*clone.StartedAt = started.Add(time.Hour)

	if string(orig.Payload) != `{"a":1}` {
		t.Errorf("payload mutated through clone: %s", orig.Payload)
	}
	if string(orig.Result) != `{"b":2}` {
		t.Errorf("result mutated through clone: %s", orig.Result)
	}
	if !orig.StartedAt.Equal(started) {
		t.Error("StartedAt mutated through clone")
	}
}

func TestOutcomeHelpers(t *testing.T) {
	ok := Succeeded(json.RawMessage(`{}`))
	if ok.Status != TaskStatusSucceeded || string(ok.Result) != "{}" {
		t.Errorf("Succeeded() = %+v", ok)
	}

	bad := Failed("boom")
	if bad.Status != TaskStatusFailed || bad.Reason != "boom" {
		t.Errorf("Failed() = %+v", bad)
	}
}
