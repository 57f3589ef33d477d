//go:build integration

package integration

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/ShayCichocki/lincoln/internal/client"
	"github.com/ShayCichocki/lincoln/internal/orchestrator"
	"github.com/ShayCichocki/lincoln/pkg/models"
)

// TestContentTask_TransientThenSuccess covers a content task whose first two model
// calls are overloaded: it succeeds on the third attempt with two retries recorded.
func TestContentTask_TransientThenSuccess(t *testing.T) {
	s := startStack(t,
		modelReply{status: 529, text: "Overloaded"},
		modelReply{status: 529, text: "Overloaded"},
		modelReply{status: http.StatusOK, text: socialReply},
	)
	ctx := context.Background()

	events, unsubscribe := s.disp.Events().Subscribe()
	defer unsubscribe()

	payload := json.RawMessage(`{"format":"social","platform":"twitter","topic":"Go"}`)
	if _, err := s.client.Enqueue(ctx, "t1", models.KindContentGenerator, payload); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	task := s.waitTerminal(t, "t1")
	if task.Status != models.TaskStatusSucceeded {
		t.Fatalf("status = %s (%s), want succeeded", task.Status, task.Error)
	}
	if task.Retries != 2 {
		t.Errorf("retries = %d, want 2", task.Retries)
	}
	if s.model.Calls() != 3 {
		t.Errorf("model calls = %d, want 3", s.model.Calls())
	}

	var result map[string]any
	if err := json.Unmarshal(task.Result, &result); err != nil {
		t.Fatalf("result: %v", err)
	}
	if result["content"] != "Ship it in Go" {
		t.Errorf("result = %v", result)
	}

	var retrying, succeeded int
	timeout := time.After(2 * time.Second)
	for succeeded == 0 {
		select {
		case ev := <-events:
			switch ev.Type {
			case orchestrator.EventTaskRetrying:
				retrying++
			case orchestrator.EventTaskSucceeded:
				succeeded++
			}
		case <-timeout:
			t.Fatal("no task_succeeded event")
		}
	}
	if retrying != 2 {
		t.Errorf("retrying events = %d, want 2", retrying)
	}

	// The agent log has one line per attempt plus the result, and the result is archived.
	s.stop(t)
	logData, err := os.ReadFile(s.sink.Path(models.KindContentGenerator))
	if err != nil {
		t.Fatal(err)
	}
	if n := strings.Count(string(logData), `"task_id":"t1"`); n < 4 {
		t.Errorf("agent log has %d records for t1, want at least 4", n)
	}
	if _, err := os.Stat(s.sink.ArchivePath(models.KindContentGenerator, "t1")); err != nil {
		t.Errorf("result not archived: %v", err)
	}
}

// TestRetriesExhausted covers a task that stays overloaded past MaxRetries.
func TestRetriesExhausted(t *testing.T) {
	s := startStack(t, modelReply{status: 529, text: "Overloaded"})

	if _, err := s.client.Enqueue(context.Background(), "t1", models.KindOutreachComposer,
		json.RawMessage(`{"recipient_info":{"name":"Ada"},"email_template":"Hi {{name}}"}`)); err != nil {
		t.Fatal(err)
	}

	task := s.waitTerminal(t, "t1")
	if task.Status != models.TaskStatusFailed {
		t.Fatalf("status = %s, want failed", task.Status)
	}
	if task.Retries != 3 {
		t.Errorf("retries = %d, want 3", task.Retries)
	}
	if calls := s.model.Calls(); calls != 4 {
		t.Errorf("model calls = %d, want 4", calls)
	}

	// A failed task is never picked up again.
	time.Sleep(50 * time.Millisecond)
	if calls := s.model.Calls(); calls != 4 {
		t.Errorf("model calls after failure = %d, want 4", calls)
	}
}

// TestInvalidPayload_FailsWithoutModelCall covers a permanent failure.
func TestInvalidPayload_FailsWithoutModelCall(t *testing.T) {
	s := startStack(t, modelReply{status: http.StatusOK, text: socialReply})

	if _, err := s.client.Enqueue(context.Background(), "bad", models.KindCodeReviewer, json.RawMessage(`{}`)); err != nil {
		t.Fatal(err)
	}
	task := s.waitTerminal(t, "bad")
	if task.Status != models.TaskStatusFailed || task.Retries != 0 {
		t.Errorf("task = %s retries %d, want failed with 0 retries", task.Status, task.Retries)
	}
	if s.model.Calls() != 0 {
		t.Errorf("model calls = %d, want 0", s.model.Calls())
	}
}

// TestDuplicateID covers enqueueing "t1" twice.
func TestDuplicateID(t *testing.T) {
	s := startStack(t, modelReply{status: http.StatusOK, text: socialReply})
	s.pauseAndSettle()
	ctx := context.Background()

	if _, err := s.client.Enqueue(ctx, "t1", models.KindContentGenerator, json.RawMessage(`{"topic":"Go","platform":"x"}`)); err != nil {
		t.Fatal(err)
	}
	_, err := s.client.Enqueue(ctx, "t1", models.KindContentGenerator, nil)
	if !client.IsStatus(err, http.StatusConflict) {
		t.Errorf("second enqueue err = %v, want 409", err)
	}

	tasks, err := s.client.Tasks(ctx, "", "")
	if err != nil {
		t.Fatal(err)
	}
	if len(tasks) != 1 || tasks[0].ID != "t1" {
		t.Errorf("tasks = %+v, want exactly t1", tasks)
	}
}
