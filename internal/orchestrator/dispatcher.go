package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ShayCichocki/lincoln/internal/agent"
	"github.com/ShayCichocki/lincoln/internal/agentlog"
	"github.com/ShayCichocki/lincoln/internal/api"
	"github.com/ShayCichocki/lincoln/internal/notify"
	"github.com/ShayCichocki/lincoln/internal/orchestrator/policy"
	"github.com/ShayCichocki/lincoln/internal/queue"
	"github.com/ShayCichocki/lincoln/pkg/models"
)

// notifyTimeout bounds a single completion notification.
const notifyTimeout = 30 * time.Second

// ErrAlreadyRunning is returned by a second concurrent Run.
var ErrAlreadyRunning = errors.New("orchestrator already running")

// Queue is the part of the task queue the dispatcher uses.
type Queue interface {
	DequeueNext(ctx context.Context, kinds ...models.AgentKind) (models.AgentTask, error)
	MarkResult(ctx context.Context, id string, outcome models.Outcome) (models.AgentTask, error)
	RecordRetry(ctx context.Context, id, reason string) (models.AgentTask, error)
	Wait() <-chan struct{}
	Counts() map[models.TaskStatus]int
}

// Resolver maps an agent kind to its invoker.
type Resolver interface {
	Resolve(kind models.AgentKind) (agent.Invoker, error)
}

var _ Queue = (*queue.Queue)(nil)
var _ Resolver = (*agent.Invokers)(nil)

// Dispatcher runs the per-kind dispatch loops.
type Dispatcher struct {
	queue     Queue
	invokers  Resolver
	sink      agentlog.Recorder
	notifier  notify.Notifier
	pause     *PauseController
	events    *EventEmitter
	registry  *AgentRegistry
	policy    *policy.Config
	log       *zap.SugaredLogger
	sleep     func(ctx context.Context, d time.Duration) error
	transient func(error) bool
	now       func() time.Time

	mu        sync.Mutex
	state     State
	startedAt *time.Time
	running   bool
	stopCh    chan struct{}
	stopOnce  sync.Once
	notifyWG  sync.WaitGroup
}

// New creates a Dispatcher. Run starts it.
func New(q Queue, invokers Resolver, sink agentlog.Recorder, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		queue:     q,
		invokers:  invokers,
		sink:      sink,
		notifier:  notify.Nop{},
		registry:  NewAgentRegistry(),
		policy:    policy.Default(),
		log:       zap.NewNop().Sugar(),
		sleep:     sleepCtx,
		transient: api.IsTransient,
		now:       func() time.Time { return time.Now().UTC() },
		state:     StateInitializing,
		stopCh:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.policy.Normalize()

	if d.pause == nil {
		d.pause = NewPauseController(d.log)
	}
	if d.events == nil {
		d.events = NewEventEmitter(d.policy.Events.BufferSize, d.log)
	}
	return d
}

// Events returns the emitter carrying task and state events.
func (d *Dispatcher) Events() *EventEmitter { return d.events }

// Registry returns live per-agent status.
func (d *Dispatcher) Registry() *AgentRegistry { return d.registry }

// Policy returns a copy of the effective policy.
func (d *Dispatcher) Policy() policy.Config { return *d.policy }

// Run starts one loop per kind and per worker, and blocks until ctx ends or Stop is
// called. In-flight invocations are allowed to finish before Run returns.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return ErrAlreadyRunning
	}
	if d.pause.IsStopped() {
		d.mu.Unlock()
		return ErrStopped
	}
	d.running = true
	now := d.now()
	d.startedAt = &now
	d.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-d.stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	d.setState(StateRunning)

	kinds := models.AllKinds()
	workers := d.policy.Loop.WorkersPerKind
	d.log.Infow("dispatcher started",
		"kinds", len(kinds),
		"workers_per_kind", workers,
		"timeout", d.policy.Loop.Timeout,
		"max_retries", d.policy.Retry.MaxRetries,
	)

	var wg sync.WaitGroup
	for _, kind := range kinds {
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(kind models.AgentKind) {
				defer wg.Done()
				d.loop(ctx, kind)
			}(kind)
		}
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		NewMonitor(d, d.policy.Loop.MonitorInterval).Run(ctx)
	}()

	<-ctx.Done()
	wg.Wait()
	d.notifyWG.Wait()

	d.mu.Lock()
	d.running = false
	d.mu.Unlock()
	d.pause.Stop()
	d.setState(StateStopped)
	d.log.Infow("dispatcher stopped")
	return nil
}

// Stop ends Run. Running tasks finish first.
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() {
		close(d.stopCh)
		d.pause.Stop()
	})
}

// Pause stops new tasks from being claimed. Running tasks finish.
func (d *Dispatcher) Pause() {
	if d.pause.Pause() {
		d.emitState()
	}
}

// Resume undoes Pause.
func (d *Dispatcher) Resume() {
	if d.pause.Resume() {
		d.emitState()
	}
}

func (d *Dispatcher) emitState() {
	d.events.Emit(OrchestratorEvent{Type: EventStateChanged, State: d.State(), Timestamp: d.now()})
}

// setState records a lifecycle change. Paused is derived, never stored.
func (d *Dispatcher) setState(s State) {
	d.mu.Lock()
	changed := d.state != s
	d.state = s
	d.mu.Unlock()
	if changed {
		d.emitState()
	}
}

// loop claims and executes tasks of one kind until ctx ends.
func (d *Dispatcher) loop(ctx context.Context, kind models.AgentKind) {
	idle := 0
	for {
		if err := d.pause.WaitIfPaused(ctx); err != nil {
			return
		}
		if ctx.Err() != nil {
			return
		}

		// Taken before the dequeue so an enqueue in between still wakes us.
		wake := d.queue.Wait()

		task, err := d.queue.DequeueNext(ctx, kind)
		if err != nil {
			if !errors.Is(err, queue.ErrEmpty) {
				d.log.Errorw("dequeue_failed", "kind", kind, "error", err)
			}
			delay := d.policy.Loop.PollDelay(idle)
			idle++
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-wake:
				timer.Stop()
				idle = 0
			case <-timer.C:
			}
			continue
		}

		idle = 0
		d.execute(ctx, task)
	}
}

// execute runs one claimed task to a terminal status.
func (d *Dispatcher) execute(ctx context.Context, task models.AgentTask) {
	start := d.now()
	// Invocations and persistence outlive a shutdown request; backoff sleeps do not.
	runCtx := context.WithoutCancel(ctx)

	d.registry.Started(task.Kind, task.ID, start)
	d.sink.Record(agentlog.Event{
		Kind: task.Kind, TaskID: task.ID, Phase: agentlog.PhaseStarted,
		Attempt: 1, Payload: task.Payload, Time: start,
	})
	d.events.Emit(OrchestratorEvent{Type: EventTaskStarted, TaskID: task.ID, Kind: task.Kind, Attempt: 1, Timestamp: start})
	d.log.Infow("task started", "task_id", task.ID, "kind", task.Kind)

	inv, err := d.invokers.Resolve(task.Kind)
	if err != nil {
		d.fail(runCtx, task, start, 1, err.Error())
		return
	}

	maxAttempts := d.policy.Retry.MaxRetries + 1
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		result, err := d.invoke(runCtx, inv, task.Payload)
		if err == nil {
			d.succeed(runCtx, task, start, attempt+1, result)
			return
		}
		lastErr = err

		if !d.retryable(err) {
			d.fail(runCtx, task, start, attempt+1, err.Error())
			return
		}
		if attempt == maxAttempts-1 {
			break
		}

		if _, err := d.queue.RecordRetry(runCtx, task.ID, lastErr.Error()); err != nil {
			d.log.Errorw("record_retry_failed", "task_id", task.ID, "error", err)
		}
		wait := d.policy.Retry.Backoff(attempt)
		d.sink.Record(agentlog.Event{
			Kind: task.Kind, TaskID: task.ID, Phase: agentlog.PhaseRetry,
			Attempt: attempt + 1, Error: lastErr.Error(), Time: d.now(),
		})
		d.events.Emit(OrchestratorEvent{
			Type: EventTaskRetrying, TaskID: task.ID, Kind: task.Kind, Attempt: attempt + 1,
			Error: lastErr.Error(), Duration: wait, Timestamp: d.now(),
		})
		d.log.Warnw("task retrying", "task_id", task.ID, "kind", task.Kind,
			"attempt", attempt+1, "backoff", wait, "error", lastErr)

		if err := d.sleep(ctx, wait); err != nil {
			d.fail(runCtx, task, start, attempt+1, fmt.Sprintf("%s: %v", queue.InterruptedReason, lastErr))
			return
		}
	}

	d.fail(runCtx, task, start, maxAttempts,
		fmt.Sprintf("retries exhausted after %d attempts: %v", maxAttempts, lastErr))
}

// invoke runs the agent under the configured timeout. An agent that ignores its
// context is abandoned once the timeout fires.
func (d *Dispatcher) invoke(ctx context.Context, inv agent.Invoker, payload json.RawMessage) (json.RawMessage, error) {
	timeout := d.policy.Loop.Timeout
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		result json.RawMessage
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("%s: agent panicked: %v", inv.Kind(), r)}
			}
		}()
		result, err := inv.Run(ctx, payload)
		done <- outcome{result, err}
	}()

	select {
	case out := <-done:
		if out.err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w after %s: %v", agent.ErrTimeout, timeout, out.err)
		}
		return out.result, out.err
	case <-ctx.Done():
		return nil, fmt.Errorf("%w after %s", agent.ErrTimeout, timeout)
	}
}

// retryable reports whether a failed attempt should be tried again.
func (d *Dispatcher) retryable(err error) bool {
	switch {
	case errors.Is(err, agent.ErrInvalidPayload), errors.Is(err, agent.ErrUnknownKind):
		return false
	case errors.Is(err, agent.ErrTimeout), errors.Is(err, agent.ErrMalformedOutput):
		return true
	}
	var ie *agent.InvocationError
	if errors.As(err, &ie) {
		return d.transient(ie.Err)
	}
	return false
}

func (d *Dispatcher) succeed(ctx context.Context, task models.AgentTask, start time.Time, attempt int, result json.RawMessage) {
	done, err := d.queue.MarkResult(ctx, task.ID, models.Succeeded(result))
	if err != nil {
		d.log.Errorw("mark_result_failed", "task_id", task.ID, "error", err)
		done = task
		done.Status = models.TaskStatusSucceeded
		done.Result = result
	}

	end := d.now()
	elapsed := end.Sub(start)
	d.registry.Finished(task.Kind, task.ID, true, "", end)
	d.sink.Record(agentlog.Event{
		Kind: task.Kind, TaskID: task.ID, Phase: agentlog.PhaseSucceeded,
		Attempt: attempt, Result: result, Duration: elapsed, Time: end,
	})
	d.events.Emit(OrchestratorEvent{
		Type: EventTaskSucceeded, TaskID: task.ID, Kind: task.Kind, Attempt: attempt,
		Duration: elapsed, Timestamp: end,
	})
	d.log.Infow("task succeeded", "task_id", task.ID, "kind", task.Kind, "attempts", attempt, "duration", elapsed)
	d.notify(ctx, done)
}

func (d *Dispatcher) fail(ctx context.Context, task models.AgentTask, start time.Time, attempt int, reason string) {
	done, err := d.queue.MarkResult(ctx, task.ID, models.Failed(reason))
	if err != nil {
		d.log.Errorw("mark_result_failed", "task_id", task.ID, "error", err)
		done = task
		done.Status = models.TaskStatusFailed
		done.Error = reason
	}

	end := d.now()
	elapsed := end.Sub(start)
	d.registry.Finished(task.Kind, task.ID, false, reason, end)
	d.sink.Record(agentlog.Event{
		Kind: task.Kind, TaskID: task.ID, Phase: agentlog.PhaseFailed,
		Attempt: attempt, Error: reason, Duration: elapsed, Time: end,
	})
	d.events.Emit(OrchestratorEvent{
		Type: EventTaskFailed, TaskID: task.ID, Kind: task.Kind, Attempt: attempt,
		Error: reason, Duration: elapsed, Timestamp: end,
	})
	d.log.Errorw("task failed", "task_id", task.ID, "kind", task.Kind, "attempts", attempt, "reason", reason)
	d.notify(ctx, done)
}

// notify sends the completion notice in the background. Failures never touch the task.
func (d *Dispatcher) notify(ctx context.Context, task models.AgentTask) {
	d.notifyWG.Add(1)
	go func() {
		defer d.notifyWG.Done()
		ctx, cancel := context.WithTimeout(ctx, notifyTimeout)
		defer cancel()
		if err := d.notifier.Notify(ctx, task); err != nil {
			d.log.Warnw("notify_failed", "task_id", task.ID, "error", err)
		}
	}()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
