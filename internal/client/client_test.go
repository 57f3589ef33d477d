package client

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/ShayCichocki/lincoln/internal/orchestrator"
	"github.com/ShayCichocki/lincoln/internal/queue"
	"github.com/ShayCichocki/lincoln/internal/server"
	"github.com/ShayCichocki/lincoln/internal/state"
	"github.com/ShayCichocki/lincoln/pkg/models"
)

type stubOrchestrator struct {
	q      *queue.Queue
	events *orchestrator.EventEmitter
}

func (s *stubOrchestrator) State() orchestrator.State { return orchestrator.StateRunning }

func (s *stubOrchestrator) Status() orchestrator.Status {
	return orchestrator.Status{State: orchestrator.StateRunning, Queue: s.q.Counts()}
}

func (s *stubOrchestrator) Events() *orchestrator.EventEmitter { return s.events }

func startServer(t *testing.T) (*Client, *stubOrchestrator) {
	t.Helper()
	db, err := state.OpenAndMigrate(filepath.Join(t.TempDir(), "queue.db"))
	if err != nil {
		t.Fatal(err)
	}
	q, err := queue.New(context.Background(), db)
	if err != nil {
		db.Close()
		t.Fatal(err)
	}
	orch := &stubOrchestrator{q: q, events: orchestrator.NewEventEmitter(16, nil)}
	srv := server.New(server.Config{}, q, orch, nil)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	go srv.App().Listener(ln)
	t.Cleanup(func() {
		orch.events.Close()
		_ = srv.Shutdown(context.Background())
		q.Close()
	})
	return New("http://"+ln.Addr().String(), WithTimeout(5*time.Second)), orch
}

func TestClient_TaskRoundTrip(t *testing.T) {
	c, _ := startServer(t)
	ctx := context.Background()

	h, err := c.Health(ctx)
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if h.Status != "healthy" {
		t.Errorf("health = %+v", h)
	}

	r, err := c.Enqueue(ctx, "t1", models.KindContentGenerator, json.RawMessage(`{"topic":"go"}`))
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if r.ID != "t1" {
		t.Errorf("id = %q", r.ID)
	}

	_, err = c.Enqueue(ctx, "t1", models.KindContentGenerator, nil)
	if !IsStatus(err, http.StatusConflict) {
		t.Errorf("duplicate enqueue err = %v, want 409", err)
	}

	ex, err := c.ExecuteTask(ctx, map[string]any{"task_type": "review_code", "code_content": "print(1)"})
	if err != nil {
		t.Fatalf("ExecuteTask: %v", err)
	}
	if ex.Kind != models.KindCodeReviewer {
		t.Errorf("kind = %s", ex.Kind)
	}

	tasks, err := c.Tasks(ctx, models.TaskStatusPending, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(tasks) != 2 {
		t.Errorf("pending tasks = %d, want 2", len(tasks))
	}
	tasks, err = c.Tasks(ctx, "", models.KindCodeReviewer)
	if err != nil {
		t.Fatal(err)
	}
	if len(tasks) != 1 {
		t.Errorf("code reviewer tasks = %d, want 1", len(tasks))
	}

	task, err := c.Task(ctx, "t1")
	if err != nil {
		t.Fatal(err)
	}
	if task.Status != models.TaskStatusPending {
		t.Errorf("status = %s", task.Status)
	}

	if err := c.Ack(ctx, "t1"); !IsStatus(err, http.StatusConflict) {
		t.Errorf("ack pending err = %v, want 409", err)
	}
	if err := c.Cancel(ctx, "t1"); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if _, err := c.Task(ctx, "t1"); !IsStatus(err, http.StatusNotFound) {
		t.Errorf("get cancelled err = %v, want 404", err)
	}

	agents, err := c.Agents(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(agents) != len(models.AllKinds()) {
		t.Errorf("agents = %d", len(agents))
	}

	st, err := c.Status(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if st.Queue[models.TaskStatusPending] != 1 {
		t.Errorf("pending = %d, want 1", st.Queue[models.TaskStatusPending])
	}
}

func TestClient_Unavailable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	ln.Close()

	c := New("http://"+addr, WithTimeout(time.Second))
	if _, err := c.Health(context.Background()); !errors.Is(err, ErrUnavailable) {
		t.Errorf("err = %v, want ErrUnavailable", err)
	}
}

func TestClient_CancelledContext(t *testing.T) {
	c := New("http://127.0.0.1:1")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.Status(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestClient_StreamEvents(t *testing.T) {
	c, orch := startServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	got := make(chan orchestrator.OrchestratorEvent, 4)
	done := make(chan error, 1)
	go func() {
		done <- c.StreamEvents(ctx, func(ev orchestrator.OrchestratorEvent) { got <- ev })
	}()

	for orch.events.Subscribers() == 0 {
		select {
		case <-ctx.Done():
			t.Fatal("stream never subscribed")
		case <-time.After(5 * time.Millisecond):
		}
	}

	if _, err := c.Enqueue(ctx, "t1", models.KindProposalWriter, nil); err != nil {
		t.Fatal(err)
	}

	select {
	case ev := <-got:
		if ev.Type != orchestrator.EventTaskEnqueued || ev.TaskID != "t1" {
			t.Errorf("event = %+v", ev)
		}
	case <-ctx.Done():
		t.Fatal("no event received")
	}

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("StreamEvents returned %v, want context.Canceled", err)
	}
}
