package state

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ShayCichocki/lincoln/pkg/models"
)

// tempDBPath returns a path to a temp database file.
func tempDBPath(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	return filepath.Join(dir, "test.db")
}

// setupTestDB creates a new temporary database for testing.
func setupTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := OpenAndMigrate(tempDBPath(t))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() {
		db.Close()
	})
	return db
}

func TestOpen(t *testing.T) {
	path := tempDBPath(t)
	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer db.Close()

	if db.Path() != path {
		t.Errorf("Path() = %q, want %q", db.Path(), path)
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("database file does not exist at %s", path)
	}
}

func TestOpen_CreatesParentDirectories(t *testing.T) {
	dir := t.TempDir()
	nested := filepath.Join(dir, "a", "b", "c")

	db, err := Open(filepath.Join(nested, "test.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer db.Close()

	if _, err := os.Stat(nested); os.IsNotExist(err) {
		t.Errorf("parent directories not created: %s", nested)
	}
}

func TestOpen_InvalidPath(t *testing.T) {
	// Nothing can be created under /proc.
	if _, err := Open("/proc/nonexistent/test.db"); err == nil {
		t.Error("expected error opening db at invalid path")
	}
}

func TestDefaultPath(t *testing.T) {
	if got := DefaultPath("/var/lib/lincoln"); got != "/var/lib/lincoln/lincoln.db" {
		t.Errorf("DefaultPath = %q", got)
	}
}

func TestClose(t *testing.T) {
	db, err := Open(tempDBPath(t))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	if err := db.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}

	if _, err := db.Query(context.Background(), "SELECT 1"); err == nil {
		t.Error("expected error after close, got nil")
	}
}

func TestMigrate(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	for _, table := range []string{"schema_version", "tasks", "reserved_ids"} {
		var count int
		row := db.QueryRow(ctx, "SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table)
		if err := row.Scan(&count); err != nil {
			t.Errorf("failed to check table %s: %v", table, err)
		}
		if count != 1 {
			t.Errorf("table %s does not exist", table)
		}
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	db := setupTestDB(t)

	for i := 0; i < 3; i++ {
		if err := db.Migrate(); err != nil {
			t.Fatalf("Migrate (iteration %d) failed: %v", i, err)
		}
	}

	var version int
	row := db.QueryRow(context.Background(), "SELECT MAX(version) FROM schema_version")
	if err := row.Scan(&version); err != nil {
		t.Fatalf("failed to get schema version: %v", err)
	}
	if version != 2 {
		t.Errorf("schema version = %d, want 2", version)
	}
}

func TestSaveAndLoad(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	created := time.Date(2025, 3, 1, 12, 0, 0, 123456789, time.UTC)
	started := created.Add(time.Second)
	completed := started.Add(2 * time.Second)

	tasks := []models.AgentTask{
		{
			ID:        "b",
			Kind:      models.KindCodeReviewer,
			Payload:   json.RawMessage(`{"code_content":"x = 1"}`),
			Status:    models.TaskStatusPending,
			Seq:       2,
			CreatedAt: created,
		},
		{
			ID:          "a",
			Kind:        models.KindContentGenerator,
			Payload:     json.RawMessage(`{"topic":"go"}`),
			Status:      models.TaskStatusSucceeded,
			Seq:         1,
			CreatedAt:   created,
			StartedAt:   &started,
			CompletedAt: &completed,
			Result:      json.RawMessage(`{"content":"hi"}`),
			Retries:     2,
		},
	}
	for _, task := range tasks {
		if err := db.Save(ctx, task); err != nil {
			t.Fatalf("Save(%s) failed: %v", task.ID, err)
		}
	}

	loaded, reserved, err := db.Load(ctx)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(reserved) != 0 {
		t.Errorf("reserved = %v, want none", reserved)
	}
	if len(loaded) != 2 || loaded[0].ID != "a" || loaded[1].ID != "b" {
		t.Fatalf("Load order = %+v, want a then b", loaded)
	}

	a := loaded[0]
	if !a.CreatedAt.Equal(created) {
		t.Errorf("CreatedAt = %v, want %v", a.CreatedAt, created)
	}
	if a.StartedAt == nil || !a.StartedAt.Equal(started) {
		t.Errorf("StartedAt = %v, want %v", a.StartedAt, started)
	}
	if a.CompletedAt == nil || !a.CompletedAt.Equal(completed) {
		t.Errorf("CompletedAt = %v, want %v", a.CompletedAt, completed)
	}
	if string(a.Result) != `{"content":"hi"}` || a.Retries != 2 || a.Status != models.TaskStatusSucceeded {
		t.Errorf("task a = %+v", a)
	}

	b := loaded[1]
	if b.StartedAt != nil || b.CompletedAt != nil || b.Result != nil {
		t.Errorf("pending task has unexpected fields: %+v", b)
	}
}

func TestSave_Upserts(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	task := models.AgentTask{ID: "u", Kind: models.KindCodeGenerator, Status: models.TaskStatusPending, Seq: 1, CreatedAt: time.Now()}
	if err := db.Save(ctx, task); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	task.Status = models.TaskStatusFailed
	task.Error = "bad payload"
	if err := db.Save(ctx, task); err != nil {
		t.Fatalf("second Save failed: %v", err)
	}

	loaded, _, err := db.Load(ctx)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(loaded) != 1 {
		t.Fatalf("loaded %d tasks, want 1", len(loaded))
	}
	if loaded[0].Status != models.TaskStatusFailed || loaded[0].Error != "bad payload" {
		t.Errorf("task = %+v", loaded[0])
	}
}

func TestRemove_ReservesID(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	task := models.AgentTask{ID: "gone", Kind: models.KindCodeGenerator, Status: models.TaskStatusPending, Seq: 1, CreatedAt: time.Now()}
	if err := db.Save(ctx, task); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := db.Remove(ctx, "gone"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	// Removing twice is harmless.
	if err := db.Remove(ctx, "gone"); err != nil {
		t.Fatalf("second Remove failed: %v", err)
	}

	loaded, reserved, err := db.Load(ctx)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(loaded) != 0 {
		t.Errorf("loaded = %+v, want none", loaded)
	}
	if len(reserved) != 1 || reserved[0] != "gone" {
		t.Errorf("reserved = %v, want [gone]", reserved)
	}
}
