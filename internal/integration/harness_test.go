//go:build integration

package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ShayCichocki/lincoln/internal/agent"
	"github.com/ShayCichocki/lincoln/internal/agentlog"
	"github.com/ShayCichocki/lincoln/internal/api"
	"github.com/ShayCichocki/lincoln/internal/client"
	"github.com/ShayCichocki/lincoln/internal/orchestrator"
	"github.com/ShayCichocki/lincoln/internal/queue"
	"github.com/ShayCichocki/lincoln/internal/server"
	"github.com/ShayCichocki/lincoln/internal/state"
	"github.com/ShayCichocki/lincoln/pkg/models"
)

// modelReply is one scripted response from the fake model API.
type modelReply struct {
	status int
	text   string
}

// fakeModel serves /v1/messages from a script; once the script runs out it repeats
// the last reply.
type fakeModel struct {
	mu     sync.Mutex
	script []modelReply
	calls  int
}

func (m *fakeModel) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	i := m.calls
	if i >= len(m.script) {
		i = len(m.script) - 1
	}
	reply := m.script[i]
	m.calls++
	m.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(reply.status)
	if reply.status != http.StatusOK {
		fmt.Fprintf(w, `{"type":"error","error":{"type":"overloaded_error","message":%q}}`, reply.text)
		return
	}
	body, _ := json.Marshal(map[string]any{
		"id":          "msg_test",
		"type":        "message",
		"role":        "assistant",
		"model":       "claude-sonnet-4-20250514",
		"content":     []map[string]string{{"type": "text", "text": reply.text}},
		"stop_reason": "end_turn",
		"usage":       map[string]int{"input_tokens": 10, "output_tokens": 20},
	})
	_, _ = w.Write(body)
}

func (m *fakeModel) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type stack struct {
	dbPath   string
	queue    *queue.Queue
	model    *fakeModel
	sink     *agentlog.Sink
	disp     *orchestrator.Dispatcher
	server   *server.Server
	client   *client.Client
	runDone  chan error
	stopOnce sync.Once
}

// startStack wires every component the way serve does, with fast retry timings.
func startStack(t *testing.T, script ...modelReply) *stack {
	t.Helper()
	dir := t.TempDir()
	s := &stack{dbPath: filepath.Join(dir, "lincoln.db"), model: &fakeModel{script: script}}

	db, err := state.OpenAndMigrate(s.dbPath)
	if err != nil {
		t.Fatalf("OpenAndMigrate: %v", err)
	}
	s.queue, err = queue.New(context.Background(), db)
	if err != nil {
		t.Fatalf("queue.New: %v", err)
	}

	modelSrv := httptest.NewServer(s.model)
	t.Cleanup(modelSrv.Close)
	completer, err := api.NewClient(api.ClientConfig{APIKey: "test-key", BaseURL: modelSrv.URL})
	if err != nil {
		t.Fatalf("api.NewClient: %v", err)
	}

	s.sink, err = agentlog.Open(filepath.Join(dir, "logs"), agentlog.WithOutputDir(filepath.Join(dir, "outputs")))
	if err != nil {
		t.Fatalf("agentlog.Open: %v", err)
	}

	s.disp = orchestrator.New(s.queue, agent.NewInvokers(completer), s.sink,
		orchestrator.WithBackoff(time.Millisecond, 5*time.Millisecond),
		orchestrator.WithPollInterval(5*time.Millisecond, 20*time.Millisecond),
		orchestrator.WithTimeout(5*time.Second),
		orchestrator.WithMaxRetries(3),
	)

	s.server = server.New(server.Config{}, s.queue, s.disp, nil)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	go s.server.App().Listener(ln)
	s.client = client.New("http://"+ln.Addr().String(), client.WithTimeout(5*time.Second))

	s.runDone = make(chan error, 1)
	go func() { s.runDone <- s.disp.Run(context.Background()) }()

	t.Cleanup(func() { s.stop(t) })
	return s
}

// stop shuts the stack down in serve's order. Safe to call twice.
func (s *stack) stop(t *testing.T) {
	t.Helper()
	s.stopOnce.Do(func() {
		s.disp.Stop()
		select {
		case err := <-s.runDone:
			if err != nil {
				t.Errorf("Run returned %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Error("dispatcher did not stop")
		}
		s.disp.Events().Close()
		_ = s.server.Shutdown(context.Background())
		_ = s.sink.Close()
		_ = s.queue.Close()
	})
}

// pauseAndSettle pauses the dispatcher and waits out any loop that was already past
// its pause check, so later enqueues stay pending.
func (s *stack) pauseAndSettle() {
	s.disp.Pause()
	time.Sleep(100 * time.Millisecond)
}

// waitTerminal polls the API until the task finishes.
func (s *stack) waitTerminal(t *testing.T, id string) models.AgentTask {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		task, err := s.client.Task(context.Background(), id)
		if err != nil {
			t.Fatalf("Task(%s): %v", id, err)
		}
		if task.Status.Terminal() {
			return task
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("task %s did not finish", id)
	return models.AgentTask{}
}

const socialReply = `{"content":"Ship it in Go","hashtags":["#golang"],"engagement_tips":["ask a question"],"best_posting_time":"9am"}`
