//go:build integration

package integration

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/ShayCichocki/lincoln/internal/queue"
	"github.com/ShayCichocki/lincoln/internal/state"
	"github.com/ShayCichocki/lincoln/pkg/models"
)

// TestRestart_RecoversSnapshot reopens the SQLite store and checks the queue comes
// back as it was persisted, with the interrupted task failed.
func TestRestart_RecoversSnapshot(t *testing.T) {
	s := startStack(t, modelReply{status: 200, text: socialReply})
	s.pauseAndSettle()
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		if _, err := s.client.Enqueue(ctx, id, models.KindContentGenerator, json.RawMessage(`{"topic":"Go","platform":"twitter"}`)); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.client.Cancel(ctx, "c"); err != nil {
		t.Fatal(err)
	}
	// Claim "a" directly so it is running when the process "dies".
	if _, err := s.queue.DequeueNext(ctx, models.KindContentGenerator); err != nil {
		t.Fatal(err)
	}
	s.stop(t)

	db, err := state.OpenAndMigrate(s.dbPath)
	if err != nil {
		t.Fatal(err)
	}
	q, err := queue.New(ctx, db)
	if err != nil {
		t.Fatal(err)
	}
	defer q.Close()

	a, err := q.Get("a")
	if err != nil {
		t.Fatal(err)
	}
	if a.Status != models.TaskStatusFailed || a.Error != queue.InterruptedReason {
		t.Errorf("a = %s %q, want failed %q", a.Status, a.Error, queue.InterruptedReason)
	}
	b, err := q.Get("b")
	if err != nil {
		t.Fatal(err)
	}
	if b.Status != models.TaskStatusPending {
		t.Errorf("b = %s, want pending", b.Status)
	}
	if _, err := q.Get("c"); !errors.Is(err, queue.ErrNotFound) {
		t.Errorf("cancelled task c err = %v, want ErrNotFound", err)
	}
	if _, err := q.Enqueue(ctx, models.AgentTask{ID: "c", Kind: models.KindContentGenerator}); !errors.Is(err, queue.ErrDuplicateID) {
		t.Errorf("reusing c err = %v, want ErrDuplicateID", err)
	}
	if ids := q.Recovered(); len(ids) != 1 || ids[0] != "a" {
		t.Errorf("Recovered() = %v, want [a]", ids)
	}
}
