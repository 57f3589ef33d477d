// Package client talks to a running lincoln server.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/ShayCichocki/lincoln/internal/server"
	"github.com/ShayCichocki/lincoln/internal/version"
	"github.com/ShayCichocki/lincoln/pkg/models"
)

const defaultTimeout = 10 * time.Second

// ErrUnavailable is returned when the server cannot be reached.
var ErrUnavailable = errors.New("server unavailable")

// APIError is a non-2xx reply from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

// IsStatus reports whether err is an APIError with the given HTTP status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// Client is a StatusAPI client.
type Client struct {
	base    string
	timeout time.Duration
}

// New returns a client for the server at baseURL, e.g. http://127.0.0.1:5000.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{base: strings.TrimRight(baseURL, "/"), timeout: defaultTimeout}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the server address.
func (c *Client) BaseURL() string { return c.base }

// Health calls GET /health.
func (c *Client) Health(ctx context.Context) (server.HealthResponse, error) {
	var out server.HealthResponse
	err := c.do(ctx, fiber.Get(c.base+"/health"), &out)
	return out, err
}

// Enqueue submits a task. An empty id lets the server generate one.
func (c *Client) Enqueue(ctx context.Context, id string, kind models.AgentKind, payload json.RawMessage) (server.EnqueueResponse, error) {
	var out server.EnqueueResponse
	req := server.EnqueueRequest{ID: id, Kind: string(kind), Payload: payload}
	err := c.do(ctx, fiber.Post(c.base+"/api/tasks").JSON(req), &out)
	return out, err
}

// ExecuteTask submits a capability request such as {"task_type": "review_code", ...}.
func (c *Client) ExecuteTask(ctx context.Context, fields map[string]any) (server.ExecuteResponse, error) {
	var out server.ExecuteResponse
	err := c.do(ctx, fiber.Post(c.base+"/api/execute-task").JSON(fields), &out)
	return out, err
}

// Tasks lists tasks, optionally filtered by status and kind.
func (c *Client) Tasks(ctx context.Context, status models.TaskStatus, kind models.AgentKind) ([]models.AgentTask, error) {
	q := url.Values{}
	if status != "" {
		q.Set("status", string(status))
	}
	if kind != "" {
		q.Set("kind", string(kind))
	}
	u := c.base + "/api/tasks"
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	var out server.TaskListResponse
	if err := c.do(ctx, fiber.Get(u), &out); err != nil {
		return nil, err
	}
	return out.Tasks, nil
}

// Task returns one task.
func (c *Client) Task(ctx context.Context, id string) (models.AgentTask, error) {
	var out models.AgentTask
	err := c.do(ctx, fiber.Get(c.base+"/api/tasks/"+url.PathEscape(id)), &out)
	return out, err
}

// Cancel removes a pending task.
func (c *Client) Cancel(ctx context.Context, id string) error {
	return c.do(ctx, fiber.Delete(c.base+"/api/tasks/"+url.PathEscape(id)), nil)
}

// Ack removes a finished task.
func (c *Client) Ack(ctx context.Context, id string) error {
	return c.do(ctx, fiber.Post(c.base+"/api/tasks/"+url.PathEscape(id)+"/ack"), nil)
}

// Agents lists every agent with its live status.
func (c *Client) Agents(ctx context.Context) ([]server.AgentResponse, error) {
	var out []server.AgentResponse
	err := c.do(ctx, fiber.Get(c.base+"/api/agents"), &out)
	return out, err
}

// Status returns the orchestrator status.
func (c *Client) Status(ctx context.Context) (server.StatusResponse, error) {
	var out server.StatusResponse
	err := c.do(ctx, fiber.Get(c.base+"/api/status"), &out)
	return out, err
}

func (c *Client) do(ctx context.Context, a *fiber.Agent, out any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	timeout := c.timeout
	if dl, ok := ctx.Deadline(); ok {
		if left := time.Until(dl); left < timeout {
			timeout = left
		}
	}
	a.Timeout(timeout)
	a.UserAgent(version.UserAgent())

	code, body, errs := a.Bytes()
	if len(errs) > 0 {
		return fmt.Errorf("%w: %v", ErrUnavailable, errors.Join(errs...))
	}

	if code >= 300 {
		var e server.ErrorResponse
		if err := json.Unmarshal(body, &e); err != nil || e.Error == "" {
			e.Error = strings.TrimSpace(string(body))
		}
		return &APIError{Status: code, Message: e.Error}
	}
	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
