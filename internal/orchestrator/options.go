package orchestrator

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ShayCichocki/lincoln/internal/notify"
	"github.com/ShayCichocki/lincoln/internal/orchestrator/policy"
)

// Option configures a Dispatcher. Use With* functions to create Options.
type Option func(*Dispatcher)

// WithPolicy replaces the whole dispatch policy.
func WithPolicy(p *policy.Config) Option {
	return func(d *Dispatcher) {
		if p != nil {
			cp := *p
			d.policy = &cp
		}
	}
}

// WithWorkersPerKind sets the number of loops per agent kind.
func WithWorkersPerKind(n int) Option {
	return func(d *Dispatcher) { d.policy.Loop.WorkersPerKind = n }
}

// WithTimeout bounds a single agent invocation.
func WithTimeout(t time.Duration) Option {
	return func(d *Dispatcher) { d.policy.Loop.Timeout = t }
}

// WithMaxRetries sets how many times a transient failure is retried.
func WithMaxRetries(n int) Option {
	return func(d *Dispatcher) { d.policy.Retry.MaxRetries = n }
}

// WithBackoff sets the retry delay range.
func WithBackoff(base, max time.Duration) Option {
	return func(d *Dispatcher) {
		d.policy.Retry.BackoffBase = base
		d.policy.Retry.BackoffMax = max
	}
}

// WithPollInterval sets the idle polling range.
func WithPollInterval(min, max time.Duration) Option {
	return func(d *Dispatcher) {
		d.policy.Loop.PollMin = min
		d.policy.Loop.PollMax = max
	}
}

// WithMonitorInterval sets how often system health is logged.
func WithMonitorInterval(t time.Duration) Option {
	return func(d *Dispatcher) { d.policy.Loop.MonitorInterval = t }
}

// WithNotifier sets the completion notifier.
func WithNotifier(n notify.Notifier) Option {
	return func(d *Dispatcher) {
		if n != nil {
			d.notifier = n
		}
	}
}

// WithPauseController shares a pause controller, e.g. with a signal watcher.
func WithPauseController(p *PauseController) Option {
	return func(d *Dispatcher) {
		if p != nil {
			d.pause = p
		}
	}
}

// WithEventEmitter shares an event emitter.
func WithEventEmitter(e *EventEmitter) Option {
	return func(d *Dispatcher) {
		if e != nil {
			d.events = e
		}
	}
}

// WithSleep replaces the context-aware sleep used between retries (mainly for testing).
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(d *Dispatcher) {
		if fn != nil {
			d.sleep = fn
		}
	}
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) {
		if now != nil {
			d.now = now
		}
	}
}

// WithTransient replaces the classifier for model service errors.
func WithTransient(fn func(error) bool) Option {
	return func(d *Dispatcher) {
		if fn != nil {
			d.transient = fn
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.log = l
		}
	}
}
