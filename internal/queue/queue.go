// Package queue implements the durable FIFO task queue shared by the dispatch loops.
//
// All state transitions go through a single mutex. Every mutating call writes the
// affected task to the Store before the in-memory state changes, so a failed write
// leaves the queue exactly as it was.
package queue

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ShayCichocki/lincoln/pkg/models"
)

// InterruptedReason is recorded on tasks that were running when the previous process
// stopped. They cannot be resumed mid-flight, so they are failed on load.
const InterruptedReason = "interrupted: process stopped while task was running"

// Store persists queue state.
type Store interface {
	// Load returns all live tasks and every reserved (removed) task ID.
	Load(ctx context.Context) ([]models.AgentTask, []string, error)
	// Save inserts or replaces a task.
	Save(ctx context.Context, task models.AgentTask) error
	// Remove deletes a task and keeps its ID reserved.
	Remove(ctx context.Context, id string) error
	// Close releases the underlying storage handle.
	Close() error
}

// Option configures a Queue.
type Option func(*Queue)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(q *Queue) { q.now = now }
}

// WithIDGenerator overrides how IDs are generated for tasks enqueued without one.
func WithIDGenerator(fn func() string) Option {
	return func(q *Queue) { q.newID = fn }
}

// WithLogger sets the logger.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(q *Queue) { q.log = l }
}

// Queue is an ordered store of AgentTasks.
type Queue struct {
	mu       sync.Mutex
	store    Store
	tasks    map[string]*models.AgentTask
	order    []string
	reserved map[string]struct{}
	nextSeq  int64
	wake     chan struct{}

	recovered []string

	now   func() time.Time
	newID func() string
	log   *zap.SugaredLogger
}

// New loads persisted state from store and returns a ready queue.
// Tasks persisted as running are failed with InterruptedReason.
func New(ctx context.Context, store Store, opts ...Option) (*Queue, error) {
	q := &Queue{
		store:    store,
		tasks:    make(map[string]*models.AgentTask),
		reserved: make(map[string]struct{}),
		nextSeq:  1,
		wake:     make(chan struct{}),
		now:      func() time.Time { return time.Now().UTC() },
		newID:    func() string { return uuid.New().String() },
		log:      zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(q)
	}

	tasks, reserved, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load queue state: %w", err)
	}

	sort.SliceStable(tasks, func(i, j int) bool { return tasks[i].Seq < tasks[j].Seq })

	for _, id := range reserved {
		q.reserved[id] = struct{}{}
	}
	for i := range tasks {
		t := tasks[i].Clone()
		if t.Status == models.TaskStatusRunning {
			now := q.now()
			t.Status = models.TaskStatusFailed
			t.CompletedAt = &now
			t.Error = InterruptedReason
			if err := store.Save(ctx, t); err != nil {
				return nil, fmt.Errorf("fail interrupted task %s: %w", t.ID, err)
			}
			q.recovered = append(q.recovered, t.ID)
			q.log.Warnw("failed interrupted task", "task_id", t.ID, "kind", t.Kind)
		}
		q.tasks[t.ID] = &t
		q.order = append(q.order, t.ID)
		q.reserved[t.ID] = struct{}{}
		if t.Seq >= q.nextSeq {
			q.nextSeq = t.Seq + 1
		}
	}

	q.log.Infow("queue loaded", "tasks", len(q.tasks), "reserved", len(q.reserved), "interrupted", len(q.recovered))
	return q, nil
}

// Recovered returns the IDs of tasks that were failed on load because they had been
// interrupted mid-run.
func (q *Queue) Recovered() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]string(nil), q.recovered...)
}

// Enqueue appends a pending task and returns its ID.
// An empty ID is replaced with a generated one.
func (q *Queue) Enqueue(ctx context.Context, task models.AgentTask) (string, error) {
	if !task.Kind.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidKind, task.Kind)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	t := task.Clone()
	if t.ID == "" {
		t.ID = q.newID()
	}
	if _, used := q.reserved[t.ID]; used {
		return "", fmt.Errorf("%w: %s", ErrDuplicateID, t.ID)
	}

	t.Status = models.TaskStatusPending
	t.Seq = q.nextSeq
	if t.CreatedAt.IsZero() {
		t.CreatedAt = q.now()
	}
	t.StartedAt = nil
	t.CompletedAt = nil
	t.Result = nil
	t.Error = ""
	t.Retries = 0

	if err := q.store.Save(ctx, t); err != nil {
		return "", fmt.Errorf("persist task %s: %w", t.ID, err)
	}

	q.tasks[t.ID] = &t
	q.order = append(q.order, t.ID)
	q.reserved[t.ID] = struct{}{}
	q.nextSeq++

	close(q.wake)
	q.wake = make(chan struct{})

	q.log.Debugw("task enqueued", "task_id", t.ID, "kind", t.Kind, "seq", t.Seq)
	return t.ID, nil
}

// DequeueNext claims the oldest pending task, optionally restricted to kinds, and
// marks it running. It returns ErrEmpty when nothing matches.
func (q *Queue) DequeueNext(ctx context.Context, kinds ...models.AgentKind) (models.AgentTask, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, id := range q.order {
		t := q.tasks[id]
		if t.Status != models.TaskStatusPending || !matchesKind(t.Kind, kinds) {
			continue
		}

		updated := t.Clone()
		now := q.now()
		updated.Status = models.TaskStatusRunning
		updated.StartedAt = &now

		if err := q.store.Save(ctx, updated); err != nil {
			return models.AgentTask{}, fmt.Errorf("persist task %s: %w", id, err)
		}
		*t = updated
		return updated.Clone(), nil
	}

	return models.AgentTask{}, ErrEmpty
}

// MarkResult moves a running task to the outcome's terminal status.
func (q *Queue) MarkResult(ctx context.Context, id string, outcome models.Outcome) (models.AgentTask, error) {
	if !outcome.Status.Terminal() {
		return models.AgentTask{}, fmt.Errorf("%w: status %q is not terminal", ErrInvalidOutcome, outcome.Status)
	}
	if outcome.Status == models.TaskStatusFailed && outcome.Reason == "" {
		return models.AgentTask{}, fmt.Errorf("%w: failed outcome requires a reason", ErrInvalidOutcome)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	t, err := q.runningLocked(id)
	if err != nil {
		return models.AgentTask{}, err
	}

	updated := t.Clone()
	now := q.now()
	updated.Status = outcome.Status
	updated.CompletedAt = &now
	if outcome.Status == models.TaskStatusSucceeded {
		updated.Result = append([]byte(nil), outcome.Result...)
		updated.Error = ""
	} else {
		updated.Result = nil
		updated.Error = outcome.Reason
	}

	if err := q.store.Save(ctx, updated); err != nil {
		return models.AgentTask{}, fmt.Errorf("persist task %s: %w", id, err)
	}
	*t = updated
	return updated.Clone(), nil
}

// RecordRetry counts a transient failure on a running task.
func (q *Queue) RecordRetry(ctx context.Context, id, reason string) (models.AgentTask, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	t, err := q.runningLocked(id)
	if err != nil {
		return models.AgentTask{}, err
	}

	updated := t.Clone()
	updated.Retries++
	updated.Error = reason

	if err := q.store.Save(ctx, updated); err != nil {
		return models.AgentTask{}, fmt.Errorf("persist task %s: %w", id, err)
	}
	*t = updated
	return updated.Clone(), nil
}

// Cancel removes a pending task. Running and terminal tasks cannot be cancelled.
func (q *Queue) Cancel(ctx context.Context, id string) error {
	return q.remove(ctx, id, func(s models.TaskStatus) bool { return s == models.TaskStatusPending }, "only pending tasks can be cancelled")
}

// Acknowledge removes a terminal task once a status reader has seen it.
func (q *Queue) Acknowledge(ctx context.Context, id string) error {
	return q.remove(ctx, id, models.TaskStatus.Terminal, "only finished tasks can be acknowledged")
}

func (q *Queue) remove(ctx context.Context, id string, allowed func(models.TaskStatus) bool, msg string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	t, ok := q.tasks[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if !allowed(t.Status) {
		return fmt.Errorf("%w: task %s is %s: %s", ErrInvalidState, id, t.Status, msg)
	}

	if err := q.store.Remove(ctx, id); err != nil {
		return fmt.Errorf("remove task %s: %w", id, err)
	}

	delete(q.tasks, id)
	for i, oid := range q.order {
		if oid == id {
			q.order = append(q.order[:i], q.order[i+1:]...)
			break
		}
	}
	return nil
}

// Get returns a copy of the task with the given ID.
func (q *Queue) Get(id string) (models.AgentTask, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	t, ok := q.tasks[id]
	if !ok {
		return models.AgentTask{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return t.Clone(), nil
}

// Snapshot returns copies of all live tasks in enqueue order.
func (q *Queue) Snapshot() []models.AgentTask {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]models.AgentTask, 0, len(q.order))
	for _, id := range q.order {
		out = append(out, q.tasks[id].Clone())
	}
	return out
}

// Counts returns the number of live tasks per status.
func (q *Queue) Counts() map[models.TaskStatus]int {
	q.mu.Lock()
	defer q.mu.Unlock()

	counts := map[models.TaskStatus]int{
		models.TaskStatusPending:   0,
		models.TaskStatusRunning:   0,
		models.TaskStatusSucceeded: 0,
		models.TaskStatusFailed:    0,
	}
	for _, t := range q.tasks {
		counts[t.Status]++
	}
	return counts
}

// Len returns the number of live tasks.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

// Wait returns a channel that is closed the next time a task is enqueued.
func (q *Queue) Wait() <-chan struct{} {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.wake
}

// Close closes the underlying store.
func (q *Queue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.store.Close()
}

func (q *Queue) runningLocked(id string) (*models.AgentTask, error) {
	t, ok := q.tasks[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if t.Status != models.TaskStatusRunning {
		return nil, fmt.Errorf("%w: task %s is %s, not running", ErrInvalidState, id, t.Status)
	}
	return t, nil
}

func matchesKind(k models.AgentKind, kinds []models.AgentKind) bool {
	if len(kinds) == 0 {
		return true
	}
	for _, want := range kinds {
		if k == want {
			return true
		}
	}
	return false
}
