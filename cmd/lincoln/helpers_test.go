package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ShayCichocki/lincoln/internal/orchestrator"
	"github.com/ShayCichocki/lincoln/pkg/models"
)

func TestParsePayload(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"empty", "  ", `{}`, false},
		{"json", `{"topic":"Go"}`, `{"topic":"Go"}`, false},
		{"yaml", "topic: Go\nchapter_count: 3\n", `{"chapter_count":3,"topic":"Go"}`, false},
		{"yaml list", "review_criteria:\n  - security\n  - style\n", `{"review_criteria":["security","style"]}`, false},
		{"invalid", "topic: [unclosed", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parsePayload([]byte(tt.input))
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if string(got) != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestTaskTypeFields(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantKeys int
		wantErr  bool
	}{
		{"object", `{"code_content":"print(1)"}`, 2, false},
		{"json null", `null`, 1, false},
		{"yaml null", "~\n", 1, false},
		{"comment only", "# nothing to see\n", 1, false},
		{"empty", "", 1, false},
		{"array", `["a"]`, 0, true},
		{"scalar", `"review"`, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload, err := parsePayload([]byte(tt.input))
			if err != nil {
				t.Fatalf("parsePayload: %v", err)
			}
			fields, err := taskTypeFields("review_code", payload)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if fields["task_type"] != "review_code" {
				t.Errorf("task_type = %v", fields["task_type"])
			}
			if len(fields) != tt.wantKeys {
				t.Errorf("fields = %v, want %d keys", fields, tt.wantKeys)
			}
		})
	}
}

func TestReadPayload_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "review.yaml")
	if err := os.WriteFile(path, []byte("code_content: print(1)\nlanguage: python\n"), 0644); err != nil {
		t.Fatal(err)
	}
	got, err := readPayload(path)
	if err != nil {
		t.Fatal(err)
	}
	var p map[string]string
	if err := json.Unmarshal(got, &p); err != nil {
		t.Fatal(err)
	}
	if p["code_content"] != "print(1)" || p["language"] != "python" {
		t.Errorf("payload = %v", p)
	}
}

func TestPrintStructured(t *testing.T) {
	task := models.AgentTask{
		ID:      "t1",
		Kind:    models.KindCodeReviewer,
		Status:  models.TaskStatusSucceeded,
		Payload: json.RawMessage(`{"code_content":"x"}`),
		Result:  json.RawMessage(`{"overall_score":8}`),
	}

	var buf bytes.Buffer
	if err := printStructured(&buf, task, formatYAML); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"id: t1", "kind: code_reviewer", "code_content: x", "overall_score: 8"} {
		if !strings.Contains(out, want) {
			t.Errorf("yaml output missing %q:\n%s", want, out)
		}
	}

	buf.Reset()
	if err := printStructured(&buf, task, formatJSON); err != nil {
		t.Fatal(err)
	}
	var back models.AgentTask
	if err := json.Unmarshal(buf.Bytes(), &back); err != nil {
		t.Fatalf("json output does not parse: %v", err)
	}
	if back.ID != "t1" || string(back.Result) == "" {
		t.Errorf("json round trip = %+v", back)
	}

	if err := printStructured(&buf, task, "xml"); err == nil {
		t.Error("unknown format should fail")
	}
}

func TestFormatEvent(t *testing.T) {
	ev := orchestrator.OrchestratorEvent{
		Type:      orchestrator.EventTaskRetrying,
		TaskID:    "t1",
		Kind:      models.KindContentGenerator,
		Attempt:   2,
		Error:     "rate limited",
		Timestamp: time.Now(),
	}
	got := formatEvent(ev)
	for _, want := range []string{"task_retrying", "t1", "content_generator", "attempt=2", "error=rate limited"} {
		if !strings.Contains(got, want) {
			t.Errorf("formatEvent = %q, missing %q", got, want)
		}
	}
}

func TestFormatConfigValue(t *testing.T) {
	if got := formatConfigValue("anthropic.api_key", ""); got != "(not set)" {
		t.Errorf("empty key = %q", got)
	}
	if got := formatConfigValue("anthropic.api_key", "sk-ant-REDACTED"); strings.Contains(got, "abcdefghijklmnop") {
		t.Errorf("api key not masked: %q", got)
	}
	if got := formatConfigValue("server.addr", ":5000"); got != ":5000" {
		t.Errorf("server.addr = %q", got)
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{30 * time.Second, "30s"},
		{90 * time.Second, "1m 30s"},
		{2*time.Hour + 5*time.Minute, "2h 5m"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.d); got != tt.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}
