package agentlog

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/ShayCichocki/lincoln/pkg/models"
)

func readLines(t *testing.T, path string) []map[string]any {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()

	var out []map[string]any
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var m map[string]any
		if err := json.Unmarshal(sc.Bytes(), &m); err != nil {
			t.Fatalf("line is not JSON: %v: %s", err, sc.Text())
		}
		out = append(out, m)
	}
	return out
}

func TestOpen_CreatesFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs", "agents")
	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	for _, k := range models.AllKinds() {
		if _, err := os.Stat(s.Path(k)); err != nil {
			t.Errorf("missing log for %s: %v", k, err)
		}
	}
	if _, err := os.Stat(filepath.Join(dir, OrchestratorLog)); err != nil {
		t.Errorf("missing orchestrator log: %v", err)
	}
}

func TestRecord_AppendsPerKind(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}

	ts := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	s.Record(Event{Kind: models.KindCodeReviewer, TaskID: "t1", Phase: PhaseStarted, Attempt: 1,
		Payload: json.RawMessage(`{"code_content":"x"}`), Time: ts})
	s.Record(Event{Kind: models.KindCodeReviewer, TaskID: "t1", Phase: PhaseRetry, Attempt: 1, Error: "rate limited"})
	s.Record(Event{Kind: models.KindCodeReviewer, TaskID: "t1", Phase: PhaseSucceeded, Attempt: 2,
		Result: json.RawMessage(`{"overall_score":9}`), Duration: 1500 * time.Millisecond})
	s.Record(Event{Kind: models.KindProposalWriter, TaskID: "t2", Phase: PhaseFailed, Error: "invalid payload"})
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	lines := readLines(t, s.Path(models.KindCodeReviewer))
	if len(lines) != 3 {
		t.Fatalf("code_reviewer lines = %d, want 3", len(lines))
	}
	wantMsgs := []string{"task_started", "task_retry", "task_succeeded"}
	for i, want := range wantMsgs {
		if lines[i]["message"] != want {
			t.Errorf("line %d message = %v, want %s", i, lines[i]["message"], want)
		}
		if lines[i]["agent"] != "code_reviewer" || lines[i]["task_id"] != "t1" {
			t.Errorf("line %d = %v", i, lines[i])
		}
	}
	payload, ok := lines[0]["payload"].(map[string]any)
	if !ok || payload["code_content"] != "x" {
		t.Errorf("payload not inlined as JSON: %v", lines[0]["payload"])
	}
	if lines[1]["error"] != "rate limited" {
		t.Errorf("retry error = %v", lines[1]["error"])
	}

	failed := readLines(t, s.Path(models.KindProposalWriter))
	if len(failed) != 1 || failed[0]["level"] != "error" || failed[0]["error"] != "invalid payload" {
		t.Errorf("proposal_writer lines = %v", failed)
	}
}

func TestRecord_UnknownKindGoesToOrchestratorLog(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	s.Record(Event{Kind: "translator", TaskID: "x", Phase: PhaseFailed, Error: "unknown agent kind"})
	_ = s.Close()

	lines := readLines(t, filepath.Join(dir, OrchestratorLog))
	if len(lines) != 1 || lines[0]["agent"] != "translator" {
		t.Errorf("orchestrator lines = %v", lines)
	}
}

func TestRecord_ArchivesResults(t *testing.T) {
	out := filepath.Join(t.TempDir(), "output")
	s, err := Open(t.TempDir(), WithOutputDir(out))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	s.Record(Event{Kind: models.KindContentGenerator, TaskID: "a/b", Phase: PhaseSucceeded,
		Result: json.RawMessage(`{"content":"hello"}`)})
	s.Record(Event{Kind: models.KindContentGenerator, TaskID: "c", Phase: PhaseFailed, Error: "x"})

	path := s.ArchivePath(models.KindContentGenerator, "a/b")
	if filepath.Base(path) != "content_generator_a_b.json" {
		t.Errorf("archive name = %s", filepath.Base(path))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read archive: %v", err)
	}
	var doc struct {
		Agent  string          `json:"agent"`
		TaskID string          `json:"task_id"`
		Result json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatal(err)
	}
	if doc.Agent != "content_generator" || doc.TaskID != "a/b" || string(doc.Result) != `{"content":"hello"}` {
		t.Errorf("archive = %+v", doc)
	}

	entries, _ := os.ReadDir(out)
	if len(entries) != 1 {
		t.Errorf("archived %d files, want 1 (failures are not archived)", len(entries))
	}
}

func TestArchiveStatus(t *testing.T) {
	out := filepath.Join(t.TempDir(), "output")
	s, err := Open(t.TempDir(), WithOutputDir(out))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	at := time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC)
	path, err := s.ArchiveStatus(SystemStatus{
		Timestamp:    at,
		SystemHealth: "degraded",
		Healthy:      6,
		Total:        7,
		Queue:        map[models.TaskStatus]int{models.TaskStatusPending: 2},
	})
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(path) != "orchestrator_20250304_050607.json" {
		t.Errorf("status file = %s", filepath.Base(path))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatal(err)
	}
	if doc["agent"] != "orchestrator" || doc["type"] != "system_status" || doc["system_health"] != "degraded" {
		t.Errorf("status doc = %v", doc)
	}
}

func TestArchiveStatus_DisabledWithoutOutputDir(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	path, err := s.ArchiveStatus(SystemStatus{SystemHealth: "healthy"})
	if err != nil || path != "" {
		t.Errorf("ArchiveStatus = %q, %v; want no file", path, err)
	}
	matches, _ := filepath.Glob(filepath.Join(dir, "orchestrator_*.json"))
	if len(matches) != 0 {
		t.Errorf("unexpected status files: %v", matches)
	}
}

func TestTee_WritesOrchestratorLog(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	s.Tee(zap.NewNop().Sugar()).Infow("dispatcher_started", "workers", 7)
	_ = s.Close()

	lines := readLines(t, filepath.Join(dir, OrchestratorLog))
	if len(lines) != 1 || lines[0]["message"] != "dispatcher_started" {
		t.Errorf("orchestrator lines = %v", lines)
	}
}

func TestClose_Idempotent(t *testing.T) {
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	s.Record(Event{Kind: models.KindCodeGenerator, TaskID: "late", Phase: PhaseStarted})
}
