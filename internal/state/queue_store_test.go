package state

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/ShayCichocki/lincoln/internal/queue"
	"github.com/ShayCichocki/lincoln/pkg/models"
)

func openQueue(t *testing.T, path string) *queue.Queue {
	t.Helper()
	db, err := OpenAndMigrate(path)
	if err != nil {
		t.Fatalf("OpenAndMigrate failed: %v", err)
	}
	q, err := queue.New(context.Background(), db)
	if err != nil {
		db.Close()
		t.Fatalf("queue.New failed: %v", err)
	}
	return q
}

func TestQueue_SurvivesRestart(t *testing.T) {
	path := tempDBPath(t)
	ctx := context.Background()

	q := openQueue(t, path)
	for _, id := range []string{"done", "cancelled", "acked", "waiting"} {
		if _, err := q.Enqueue(ctx, models.AgentTask{ID: id, Kind: models.KindContentGenerator, Payload: json.RawMessage(`{"topic":"x"}`)}); err != nil {
			t.Fatalf("Enqueue(%s) failed: %v", id, err)
		}
	}

	if _, err := q.DequeueNext(ctx); err != nil {
		t.Fatalf("DequeueNext failed: %v", err)
	}
	if _, err := q.RecordRetry(ctx, "done", "rate limited"); err != nil {
		t.Fatalf("RecordRetry failed: %v", err)
	}
	if _, err := q.MarkResult(ctx, "done", models.Succeeded(json.RawMessage(`{"content":"ok"}`))); err != nil {
		t.Fatalf("MarkResult failed: %v", err)
	}
	if err := q.Cancel(ctx, "cancelled"); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	if _, err := q.DequeueNext(ctx); err != nil {
		t.Fatalf("DequeueNext failed: %v", err)
	}
	if _, err := q.MarkResult(ctx, "acked", models.Failed("bad payload")); err != nil {
		t.Fatalf("MarkResult failed: %v", err)
	}
	if err := q.Acknowledge(ctx, "acked"); err != nil {
		t.Fatalf("Acknowledge failed: %v", err)
	}

	before := q.Snapshot()
	if err := q.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened := openQueue(t, path)
	defer reopened.Close()

	after := reopened.Snapshot()
	if len(after) != len(before) {
		t.Fatalf("after restart %d tasks, want %d", len(after), len(before))
	}
	for i := range before {
		if !sameTask(before[i], after[i]) {
			t.Errorf("task %d differs after restart:\nbefore %+v\nafter  %+v", i, before[i], after[i])
		}
	}

	for _, id := range []string{"done", "cancelled", "acked", "waiting"} {
		if _, err := reopened.Enqueue(ctx, models.AgentTask{ID: id, Kind: models.KindCodeReviewer}); !errors.Is(err, queue.ErrDuplicateID) {
			t.Errorf("re-enqueue %s after restart: error = %v, want ErrDuplicateID", id, err)
		}
	}

	id, err := reopened.Enqueue(ctx, models.AgentTask{ID: "fresh", Kind: models.KindCodeReviewer})
	if err != nil {
		t.Fatalf("Enqueue after restart failed: %v", err)
	}
	fresh, _ := reopened.Get(id)
	if fresh.Seq <= before[len(before)-1].Seq {
		t.Errorf("sequence went backwards after restart: %d", fresh.Seq)
	}
}

func TestQueue_RestartFailsRunningTasks(t *testing.T) {
	path := tempDBPath(t)
	ctx := context.Background()

	q := openQueue(t, path)
	if _, err := q.Enqueue(ctx, models.AgentTask{ID: "mid-flight", Kind: models.KindCodeGenerator}); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if _, err := q.DequeueNext(ctx); err != nil {
		t.Fatalf("DequeueNext failed: %v", err)
	}
	q.Close()

	reopened := openQueue(t, path)
	defer reopened.Close()

	got, err := reopened.Get("mid-flight")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Status != models.TaskStatusFailed || got.Error != queue.InterruptedReason {
		t.Errorf("interrupted task = %+v", got)
	}
	if _, err := reopened.DequeueNext(ctx); !errors.Is(err, queue.ErrEmpty) {
		t.Errorf("interrupted task was offered again: %v", err)
	}
}

func sameTask(a, b models.AgentTask) bool {
	if a.ID != b.ID || a.Kind != b.Kind || a.Status != b.Status || a.Seq != b.Seq ||
		a.Error != b.Error || a.Retries != b.Retries ||
		string(a.Payload) != string(b.Payload) || string(a.Result) != string(b.Result) {
		return false
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return false
	}
	if (a.StartedAt == nil) != (b.StartedAt == nil) || (a.StartedAt != nil && !a.StartedAt.Equal(*b.StartedAt)) {
		return false
	}
	if (a.CompletedAt == nil) != (b.CompletedAt == nil) || (a.CompletedAt != nil && !a.CompletedAt.Equal(*b.CompletedAt)) {
		return false
	}
	return true
}
