package server

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/ShayCichocki/lincoln/internal/agent"
	"github.com/ShayCichocki/lincoln/internal/orchestrator"
	"github.com/ShayCichocki/lincoln/internal/queue"
	"github.com/ShayCichocki/lincoln/pkg/models"
)

func (s *Server) health(c *fiber.Ctx) error {
	return c.JSON(HealthResponse{
		Status:             "healthy",
		Service:            ServiceName,
		OrchestratorStatus: s.orch.State(),
	})
}

func (s *Server) enqueue(c *fiber.Ctx) error {
	var req EnqueueRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		s.log.Warnw("task_enqueue_body_parse_failed", "error", err)
		return fail(c, fiber.StatusBadRequest, "invalid request body")
	}
	if errs := req.Validate(); len(errs) > 0 {
		return fail(c, fiber.StatusBadRequest, strings.Join(errs, "; "))
	}
	kind, _ := models.ParseAgentKind(req.Kind)
	return s.submit(c, req.ID, kind, req.Payload, func(id string) any {
		return EnqueueResponse{ID: id, Kind: kind, Status: models.TaskStatusPending}
	})
}

// executeTask accepts {"task_type": "...", ...fields} and queues the matching agent.
func (s *Server) executeTask(c *fiber.Ctx) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(c.Body(), &fields); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid request body")
	}
	var taskType string
	if raw, ok := fields["task_type"]; ok {
		if err := json.Unmarshal(raw, &taskType); err != nil {
			return fail(c, fiber.StatusBadRequest, "task_type must be a string")
		}
	}

	kind, payload, err := agent.PayloadForTaskType(taskType, fields)
	if err != nil {
		return fail(c, fiber.StatusBadRequest, err.Error())
	}
	return s.submit(c, "", kind, payload, func(id string) any {
		return ExecuteResponse{Success: true, TaskID: id, Kind: kind}
	})
}

func (s *Server) submit(c *fiber.Ctx, id string, kind models.AgentKind, payload json.RawMessage, body func(string) any) error {
	if len(payload) == 0 {
		payload = json.RawMessage("{}")
	}
	id, err := s.tasks.Enqueue(c.UserContext(), models.AgentTask{ID: id, Kind: kind, Payload: payload})
	if err != nil {
		switch {
		case errors.Is(err, queue.ErrDuplicateID):
			return fail(c, fiber.StatusConflict, err.Error())
		case errors.Is(err, queue.ErrInvalidKind):
			return fail(c, fiber.StatusBadRequest, err.Error())
		}
		return err
	}

	s.log.Infow("task_enqueued", "task_id", id, "kind", kind)
	s.emit(orchestrator.OrchestratorEvent{Type: orchestrator.EventTaskEnqueued, TaskID: id, Kind: kind})
	return c.Status(fiber.StatusCreated).JSON(body(id))
}

func (s *Server) listTasks(c *fiber.Ctx) error {
	var status models.TaskStatus
	if v := c.Query("status"); v != "" {
		status = models.TaskStatus(strings.ToLower(v))
		if !status.Valid() {
			return fail(c, fiber.StatusBadRequest, "unknown status "+v)
		}
	}
	var kind models.AgentKind
	if v := c.Query("kind"); v != "" {
		k, err := models.ParseAgentKind(v)
		if err != nil {
			return fail(c, fiber.StatusBadRequest, err.Error())
		}
		kind = k
	}

	tasks := make([]models.AgentTask, 0)
	for _, t := range s.tasks.Snapshot() {
		if status != "" && t.Status != status {
			continue
		}
		if kind != "" && t.Kind != kind {
			continue
		}
		tasks = append(tasks, t)
	}
	return c.JSON(TaskListResponse{Tasks: tasks, Count: len(tasks)})
}

func (s *Server) getTask(c *fiber.Ctx) error {
	t, err := s.tasks.Get(c.Params("id"))
	if err != nil {
		return s.queueError(c, err)
	}
	return c.JSON(t)
}

func (s *Server) cancelTask(c *fiber.Ctx) error {
	id := c.Params("id")
	if err := s.tasks.Cancel(c.UserContext(), id); err != nil {
		return s.queueError(c, err)
	}
	s.log.Infow("task_cancelled", "task_id", id)
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) ackTask(c *fiber.Ctx) error {
	id := c.Params("id")
	if err := s.tasks.Acknowledge(c.UserContext(), id); err != nil {
		return s.queueError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) agents(c *fiber.Ctx) error {
	statuses := make(map[models.AgentKind]orchestrator.AgentStatus)
	for _, st := range s.orch.Status().Agents {
		statuses[st.Kind] = st
	}

	out := make([]AgentResponse, 0, len(models.AllKinds()))
	for _, k := range models.AllKinds() {
		st, ok := statuses[k]
		if !ok {
			st = orchestrator.AgentStatus{Kind: k, Name: k.DisplayName(), State: orchestrator.AgentIdle}
		}
		out = append(out, AgentResponse{AgentInfo: k.Info(), Status: st})
	}
	return c.JSON(out)
}

func (s *Server) status(c *fiber.Ctx) error {
	st := s.orch.Status()
	total := 0
	for _, n := range st.Queue {
		total += n
	}
	return c.JSON(StatusResponse{OrchestratorStatus: st.State, Status: st, Total: total})
}

func (s *Server) queueError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, queue.ErrNotFound):
		return fail(c, fiber.StatusNotFound, err.Error())
	case errors.Is(err, queue.ErrInvalidState):
		return fail(c, fiber.StatusConflict, err.Error())
	}
	return err
}

func fail(c *fiber.Ctx, code int, msg string) error {
	return c.Status(code).JSON(ErrorResponse{Error: msg})
}
