// Package policy holds the dispatcher's tuning values and the delay arithmetic
// derived from them.
package policy

import (
	"time"

	"github.com/ShayCichocki/lincoln/internal/config"
)

// Config contains all tunable dispatch parameters.
type Config struct {
	Retry  RetryPolicy
	Loop   LoopPolicy
	Events EventPolicy
}

// RetryPolicy controls how transient failures are retried.
type RetryPolicy struct {
	// MaxRetries is how many times a task is retried after its first attempt.
	MaxRetries int
	// BackoffBase is the delay before the first retry; it doubles per attempt.
	BackoffBase time.Duration
	// BackoffMax caps the retry delay.
	BackoffMax time.Duration
}

// LoopPolicy controls the per-kind dispatch loops.
type LoopPolicy struct {
	// WorkersPerKind is the number of loops per agent kind. One keeps each kind FIFO.
	WorkersPerKind int
	// Timeout bounds a single agent invocation.
	Timeout time.Duration
	// PollMin is the first idle wait after the queue comes up empty.
	PollMin time.Duration
	// PollMax caps the idle wait.
	PollMax time.Duration
	// MonitorInterval is how often system health is logged.
	MonitorInterval time.Duration
}

// EventPolicy controls event fan-out.
type EventPolicy struct {
	// BufferSize is the per-subscriber channel buffer.
	BufferSize int
}

// Default returns the default policy configuration.
func Default() *Config {
	return &Config{
		Retry: RetryPolicy{
			MaxRetries:  3,
			BackoffBase: 2 * time.Second,
			BackoffMax:  time.Minute,
		},
		Loop: LoopPolicy{
			WorkersPerKind:  1,
			Timeout:         5 * time.Minute,
			PollMin:         250 * time.Millisecond,
			PollMax:         5 * time.Second,
			MonitorInterval: 2 * time.Minute,
		},
		Events: EventPolicy{
			BufferSize: 100,
		},
	}
}

// FromDispatch builds a policy from the dispatch section of the config file.
// Zero values fall back to defaults.
func FromDispatch(d config.DispatchConfig) *Config {
	c := Default()
	c.Retry.MaxRetries = d.MaxRetries
	if d.BackoffBase > 0 {
		c.Retry.BackoffBase = d.BackoffBase
	}
	if d.BackoffMax > 0 {
		c.Retry.BackoffMax = d.BackoffMax
	}
	if d.WorkersPerKind > 0 {
		c.Loop.WorkersPerKind = d.WorkersPerKind
	}
	if d.Timeout > 0 {
		c.Loop.Timeout = d.Timeout
	}
	if d.PollMin > 0 {
		c.Loop.PollMin = d.PollMin
	}
	if d.PollMax > 0 {
		c.Loop.PollMax = d.PollMax
	}
	if d.MonitorInterval > 0 {
		c.Loop.MonitorInterval = d.MonitorInterval
	}
	c.Normalize()
	return c
}

// Normalize clamps values into acceptable ranges.
func (c *Config) Normalize() {
	if c.Retry.MaxRetries < 0 {
		c.Retry.MaxRetries = 0
	}
	if c.Retry.BackoffBase <= 0 {
		c.Retry.BackoffBase = 2 * time.Second
	}
	if c.Retry.BackoffMax < c.Retry.BackoffBase {
		c.Retry.BackoffMax = c.Retry.BackoffBase
	}
	if c.Loop.WorkersPerKind < 1 {
		c.Loop.WorkersPerKind = 1
	}
	if c.Loop.Timeout <= 0 {
		c.Loop.Timeout = 5 * time.Minute
	}
	if c.Loop.PollMin < time.Millisecond {
		c.Loop.PollMin = 250 * time.Millisecond
	}
	if c.Loop.PollMax < c.Loop.PollMin {
		c.Loop.PollMax = c.Loop.PollMin
	}
	if c.Loop.MonitorInterval <= 0 {
		c.Loop.MonitorInterval = 2 * time.Minute
	}
	if c.Events.BufferSize < 1 {
		c.Events.BufferSize = 100
	}
}

// Backoff returns the wait before retry number attempt (0-based):
// BackoffBase * 2^attempt, capped at BackoffMax.
func (r RetryPolicy) Backoff(attempt int) time.Duration {
	return capDouble(r.BackoffBase, r.BackoffMax, attempt)
}

// PollDelay returns the idle wait after idle consecutive empty polls (0-based).
func (l LoopPolicy) PollDelay(idle int) time.Duration {
	return capDouble(l.PollMin, l.PollMax, idle)
}

func capDouble(base, max time.Duration, n int) time.Duration {
	d := base
	for i := 0; i < n; i++ {
		if d >= max/2 {
			return max
		}
		d *= 2
	}
	if d > max {
		return max
	}
	return d
}
