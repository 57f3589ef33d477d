package server

import (
	"encoding/json"

	"github.com/ShayCichocki/lincoln/internal/orchestrator"
	"github.com/ShayCichocki/lincoln/pkg/models"
)

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status             string             `json:"status"`
	Service            string             `json:"service"`
	OrchestratorStatus orchestrator.State `json:"orchestrator_status"`
}

// EnqueueRequest is the body of POST /api/tasks.
type EnqueueRequest struct {
	ID      string          `json:"id,omitempty"`
	Kind    string          `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

// Validate returns every problem with the request.
func (r *EnqueueRequest) Validate() []string {
	var errs []string
	if r.Kind == "" {
		errs = append(errs, "kind is required")
	} else if _, err := models.ParseAgentKind(r.Kind); err != nil {
		errs = append(errs, err.Error())
	}
	if len(r.Payload) > 0 && !json.Valid(r.Payload) {
		errs = append(errs, "payload is not valid JSON")
	}
	return errs
}

// EnqueueResponse is returned when a task is accepted.
type EnqueueResponse struct {
	ID     string            `json:"id"`
	Kind   models.AgentKind  `json:"kind"`
	Status models.TaskStatus `json:"status"`
}

// ExecuteResponse is returned by POST /api/execute-task.
type ExecuteResponse struct {
	Success bool             `json:"success"`
	TaskID  string           `json:"task_id"`
	Kind    models.AgentKind `json:"kind"`
}

// TaskListResponse is returned by GET /api/tasks.
type TaskListResponse struct {
	Tasks []models.AgentTask `json:"tasks"`
	Count int                `json:"count"`
}

// AgentResponse pairs an agent's catalog entry with its live status.
type AgentResponse struct {
	models.AgentInfo
	Status orchestrator.AgentStatus `json:"status"`
}

// StatusResponse is returned by GET /api/status.
type StatusResponse struct {
	OrchestratorStatus orchestrator.State `json:"orchestrator_status"`
	orchestrator.Status
	Total int `json:"total_tasks"`
}
