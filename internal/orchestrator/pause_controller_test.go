package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestPauseController_WaitIfPaused(t *testing.T) {
	p := NewPauseController(nil)
	if err := p.WaitIfPaused(context.Background()); err != nil {
		t.Fatalf("not paused: %v", err)
	}

	if !p.Pause() || p.Pause() {
		t.Error("Pause should report a change only once")
	}

	done := make(chan error, 1)
	go func() { done <- p.WaitIfPaused(context.Background()) }()

	select {
	case <-done:
		t.Fatal("WaitIfPaused returned while paused")
	case <-time.After(20 * time.Millisecond):
	}

	p.Resume()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("after resume: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("WaitIfPaused did not return after Resume")
	}
}

func TestPauseController_ContextCancel(t *testing.T) {
	p := NewPauseController(nil)
	p.Pause()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.WaitIfPaused(ctx) }()
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("err = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("WaitIfPaused ignored cancellation")
	}
}

func TestPauseController_Stop(t *testing.T) {
	p := NewPauseController(nil)
	p.Pause()

	done := make(chan error, 1)
	go func() { done <- p.WaitIfPaused(context.Background()) }()
	p.Stop()

	select {
	case err := <-done:
		if !errors.Is(err, ErrStopped) {
			t.Errorf("err = %v, want ErrStopped", err)
		}
	case <-time.After(time.Second):
		t.Fatal("WaitIfPaused did not return after Stop")
	}
	if !p.IsStopped() || p.Pause() {
		t.Error("stopped controller cannot be paused")
	}
}
