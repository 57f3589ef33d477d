// Package agentlog writes an append-only record of every agent invocation.
//
// Each agent kind gets its own JSON log file under the sink directory, next to an
// orchestrator.log for dispatcher-wide records. Successful results can also be
// archived as one JSON document per task.
package agentlog

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ShayCichocki/lincoln/pkg/models"
)

// OrchestratorLog is the file name of the dispatcher-wide log.
const OrchestratorLog = "orchestrator.log"

// Phase is the point in a task's life an event records.
type Phase string

const (
	PhaseStarted   Phase = "started"
	PhaseRetry     Phase = "retry"
	PhaseSucceeded Phase = "succeeded"
	PhaseFailed    Phase = "failed"
)

// Event is one record in an agent's log.
type Event struct {
	Kind     models.AgentKind
	TaskID   string
	Phase    Phase
	Attempt  int
	Payload  json.RawMessage
	Result   json.RawMessage
	Error    string
	Duration time.Duration
	Time     time.Time
}

// Recorder accepts agent events.
type Recorder interface {
	Record(e Event)
}

// Option configures a Sink.
type Option func(*Sink)

// WithOutputDir archives each successful result as <dir>/<kind>_<taskID>.json.
func WithOutputDir(dir string) Option {
	return func(s *Sink) { s.outputDir = dir }
}

// WithLogger sets the process logger used to report sink write failures.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(s *Sink) { s.log = l }
}

// Sink fans events out to per-kind log files.
type Sink struct {
	mu        sync.Mutex
	dir       string
	outputDir string
	files     []*os.File
	agents    map[models.AgentKind]*zap.Logger
	orch      *zap.Logger
	orchCore  zapcore.Core
	log       *zap.SugaredLogger
	closed    bool
}

var _ Recorder = (*Sink)(nil)

// Open creates dir if needed and opens one log file per agent kind.
func Open(dir string, opts ...Option) (*Sink, error) {
	s := &Sink{
		dir:    dir,
		agents: make(map[models.AgentKind]*zap.Logger),
		log:    zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create agent log directory: %w", err)
	}
	if s.outputDir != "" {
		if err := os.MkdirAll(s.outputDir, 0755); err != nil {
			return nil, fmt.Errorf("create output directory: %w", err)
		}
	}

	for _, kind := range models.AllKinds() {
		core, err := s.openCore(string(kind) + ".log")
		if err != nil {
			_ = s.Close()
			return nil, err
		}
		s.agents[kind] = zap.New(core).With(zap.String("agent", string(kind)))
	}

	core, err := s.openCore(OrchestratorLog)
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	s.orchCore = core
	s.orch = zap.New(core)

	return s, nil
}

func (s *Sink) openCore(name string) (zapcore.Core, error) {
	path := filepath.Join(s.dir, name)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	s.files = append(s.files, f)
	return zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig()), zapcore.AddSync(f), zapcore.DebugLevel), nil
}

func encoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "timestamp"
	cfg.MessageKey = "message"
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg
}

// Dir returns the directory holding the log files.
func (s *Sink) Dir() string { return s.dir }

// Path returns the log file path for kind.
func (s *Sink) Path(kind models.AgentKind) string {
	return filepath.Join(s.dir, string(kind)+".log")
}

// Record appends e to its agent's log. Unknown kinds go to the orchestrator log.
// Records after Close are dropped.
func (s *Sink) Record(e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	if e.Time.IsZero() {
		e.Time = time.Now().UTC()
	}

	l, ok := s.agents[e.Kind]
	if !ok {
		l = s.orch.With(zap.String("agent", string(e.Kind)))
	}

	fields := []zap.Field{
		zap.String("task_id", e.TaskID),
		zap.String("phase", string(e.Phase)),
		zap.Int("attempt", e.Attempt),
		zap.Time("event_time", e.Time),
	}
	if e.Duration > 0 {
		fields = append(fields, zap.Duration("duration", e.Duration))
	}
	if len(e.Payload) > 0 {
		fields = append(fields, zap.Reflect("payload", e.Payload))
	}
	if len(e.Result) > 0 {
		fields = append(fields, zap.Reflect("result", e.Result))
	}

	switch e.Phase {
	case PhaseFailed:
		l.Error("task_"+string(e.Phase), append(fields, zap.String("error", e.Error))...)
	case PhaseRetry:
		l.Warn("task_"+string(e.Phase), append(fields, zap.String("error", e.Error))...)
	default:
		l.Info("task_"+string(e.Phase), fields...)
	}

	if e.Phase == PhaseSucceeded && s.outputDir != "" {
		if err := s.archive(e); err != nil {
			s.log.Errorw("agentlog_archive_failed", "task_id", e.TaskID, "kind", e.Kind, "error", err)
		}
	}
}

type archived struct {
	Agent     models.AgentKind `json:"agent"`
	TaskID    string           `json:"task_id"`
	Timestamp time.Time        `json:"timestamp"`
	Result    json.RawMessage  `json:"result"`
}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// ArchivePath returns where the result of taskID is archived, or "" when archiving is off.
func (s *Sink) ArchivePath(kind models.AgentKind, taskID string) string {
	if s.outputDir == "" {
		return ""
	}
	name := fmt.Sprintf("%s_%s.json", kind, unsafeName.ReplaceAllString(taskID, "_"))
	return filepath.Join(s.outputDir, name)
}

func (s *Sink) archive(e Event) error {
	result := e.Result
	if len(result) == 0 {
		result = json.RawMessage("null")
	}
	data, err := json.MarshalIndent(archived{
		Agent:     e.Kind,
		TaskID:    e.TaskID,
		Timestamp: e.Time,
		Result:    result,
	}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.ArchivePath(e.Kind, e.TaskID), data, 0644)
}

// SystemStatus is one health sample of the whole service.
type SystemStatus struct {
	Agent         string                    `json:"agent"`
	Type          string                    `json:"type"`
	Timestamp     time.Time                 `json:"timestamp"`
	SystemHealth  string                    `json:"system_health"`
	Healthy       int                       `json:"healthy_agents"`
	Total         int                       `json:"total_agents"`
	AgentStatuses any                       `json:"agent_statuses"`
	Queue         map[models.TaskStatus]int `json:"queue"`
}

// StatusArchiver stores health samples.
type StatusArchiver interface {
	ArchiveStatus(st SystemStatus) (string, error)
}

var _ StatusArchiver = (*Sink)(nil)

// ArchiveStatus writes st to <outputDir>/orchestrator_<timestamp>.json and returns
// the path. It does nothing and returns "" when archiving is off.
func (s *Sink) ArchiveStatus(st SystemStatus) (string, error) {
	if s.outputDir == "" {
		return "", nil
	}
	if st.Timestamp.IsZero() {
		st.Timestamp = time.Now().UTC()
	}
	if st.Agent == "" {
		st.Agent = "orchestrator"
	}
	if st.Type == "" {
		st.Type = "system_status"
	}

	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return "", err
	}
	path := filepath.Join(s.outputDir, "orchestrator_"+st.Timestamp.Format("20060102_150405")+".json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("archive system status: %w", err)
	}
	return path, nil
}

// Tee returns a logger writing to both l and orchestrator.log.
func (s *Sink) Tee(l *zap.SugaredLogger) *zap.SugaredLogger {
	return zap.New(zapcore.NewTee(l.Desugar().Core(), s.orchCore)).Sugar()
}

// Close flushes and closes every log file. It is safe to call more than once.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	var errs []error
	for _, l := range s.agents {
		_ = l.Sync()
	}
	if s.orch != nil {
		_ = s.orch.Sync()
	}
	for _, f := range s.files {
		if err := f.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
