// Package server exposes the task queue and dispatcher over HTTP.
package server

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ShayCichocki/lincoln/internal/orchestrator"
	"github.com/ShayCichocki/lincoln/pkg/models"
)

// ServiceName is reported by the health endpoint.
const ServiceName = "lincoln"

// Tasks is the queue surface the API needs.
type Tasks interface {
	Enqueue(ctx context.Context, task models.AgentTask) (string, error)
	Get(id string) (models.AgentTask, error)
	Snapshot() []models.AgentTask
	Cancel(ctx context.Context, id string) error
	Acknowledge(ctx context.Context, id string) error
}

// Orchestrator is the dispatcher surface the API needs.
type Orchestrator interface {
	State() orchestrator.State
	Status() orchestrator.Status
	Events() *orchestrator.EventEmitter
}

// Config holds HTTP server settings.
type Config struct {
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Server is the status API.
type Server struct {
	app   *fiber.App
	tasks Tasks
	orch  Orchestrator
	log   *zap.SugaredLogger
	now   func() time.Time
}

// New builds the fiber app and registers every route.
func New(cfg Config, tasks Tasks, orch Orchestrator, log *zap.SugaredLogger) *Server {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	s := &Server{tasks: tasks, orch: orch, log: log, now: time.Now}

	s.app = fiber.New(fiber.Config{
		ReadTimeout:           cfg.ReadTimeout,
		WriteTimeout:          cfg.WriteTimeout,
		ErrorHandler:          s.errorHandler,
		DisableStartupMessage: true,
	})
	s.app.Use(recover.New())
	s.app.Use(s.requestLogger)
	s.routes()
	return s
}

func (s *Server) routes() {
	s.app.Get("/health", s.health)

	api := s.app.Group("/api")
	api.Post("/tasks", s.enqueue)
	api.Get("/tasks", s.listTasks)
	api.Get("/tasks/:id", s.getTask)
	api.Delete("/tasks/:id", s.cancelTask)
	api.Post("/tasks/:id/ack", s.ackTask)
	api.Post("/execute-task", s.executeTask)
	api.Get("/agents", s.agents)
	api.Get("/status", s.status)

	s.app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	s.app.Get("/ws/events", websocket.New(s.streamEvents))
}

// App returns the underlying fiber app.
func (s *Server) App() *fiber.App { return s.app }

// Listen serves on addr until Shutdown.
func (s *Server) Listen(addr string) error {
	s.log.Infow("status api listening", "addr", addr)
	return s.app.Listen(addr)
}

// Shutdown stops accepting requests and waits for in-flight ones until ctx ends.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) requestLogger(c *fiber.Ctx) error {
	start := time.Now()
	reqID := c.Get(fiber.HeaderXRequestID)
	if reqID == "" {
		reqID = uuid.NewString()
	}
	c.Set(fiber.HeaderXRequestID, reqID)

	err := c.Next()

	status := c.Response().StatusCode()
	if err != nil {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			status = fe.Code
		}
	}
	s.log.Debugw("http_access",
		"method", c.Method(),
		"path", c.Path(),
		"status", status,
		"latency_ms", time.Since(start).Milliseconds(),
		"request_id", reqID,
	)
	return err
}

func (s *Server) errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	if code >= fiber.StatusInternalServerError {
		s.log.Errorw("request error", "method", c.Method(), "path", c.Path(), "status", code, "error", err)
	}
	return c.Status(code).JSON(ErrorResponse{Error: err.Error()})
}

func (s *Server) emit(ev orchestrator.OrchestratorEvent) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = s.now()
	}
	s.orch.Events().Emit(ev)
}
