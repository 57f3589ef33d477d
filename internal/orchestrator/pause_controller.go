package orchestrator

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
)

// ErrStopped is returned once the dispatcher has been stopped.
var ErrStopped = errors.New("orchestrator stopped")

// PauseController manages pause/resume/stop state for the dispatcher.
// Pausing stops new dequeues; tasks already running finish.
type PauseController struct {
	paused  bool
	stopped bool
	mu      sync.RWMutex
	// cond is signalled when the controller is resumed or stopped.
	cond *sync.Cond
	log  *zap.SugaredLogger
}

// NewPauseController creates a new PauseController.
func NewPauseController(log *zap.SugaredLogger) *PauseController {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	p := &PauseController{log: log}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// Pause stops new tasks from being claimed. It reports whether the state changed.
func (p *PauseController) Pause() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.paused || p.stopped {
		return false
	}
	p.paused = true
	p.log.Infow("dispatcher paused")
	return true
}

// Resume resumes after a pause. It reports whether the state changed.
func (p *PauseController) Resume() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.paused {
		return false
	}
	p.paused = false
	p.log.Infow("dispatcher resumed")
	p.cond.Broadcast()
	return true
}

// Stop signals a stop. This unblocks any WaitIfPaused calls.
func (p *PauseController) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.stopped {
		p.stopped = true
		p.cond.Broadcast()
	}
}

// IsPaused returns whether execution is currently paused.
func (p *PauseController) IsPaused() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.paused
}

// IsStopped returns whether the controller has been stopped.
func (p *PauseController) IsStopped() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.stopped
}

// WaitIfPaused blocks until the controller is resumed or stopped.
// It returns ctx.Err() if ctx ends first and ErrStopped after Stop.
func (p *PauseController) WaitIfPaused(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.paused && !p.stopped {
		// One goroutine wakes the waiter if ctx ends.
		done := make(chan struct{})
		defer close(done)
		go func() {
			select {
			case <-ctx.Done():
				p.mu.Lock()
				p.cond.Broadcast()
				p.mu.Unlock()
			case <-done:
			}
		}()

		for p.paused && !p.stopped {
			p.cond.Wait()
			if ctx.Err() != nil {
				return ctx.Err()
			}
		}
	}
	if p.stopped {
		return ErrStopped
	}
	return nil
}
