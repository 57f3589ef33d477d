//go:build integration

package integration

import (
	"testing"
	"time"

	"github.com/ShayCichocki/lincoln/internal/orchestrator"
	"github.com/ShayCichocki/lincoln/internal/signals"
)

func waitState(t *testing.T, d *orchestrator.Dispatcher, want orchestrator.State) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if d.State() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("state = %s, want %s", d.State(), want)
}

// TestSignalFiles drives pause, resume and stop through the signal directory.
func TestSignalFiles(t *testing.T) {
	s := startStack(t, modelReply{status: 200, text: socialReply})
	waitState(t, s.disp, orchestrator.StateRunning)

	dir := t.TempDir()
	w, err := signals.NewWatcher(dir, s.disp, signals.WithPollInterval(10*time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	if err := signals.SendPause(dir); err != nil {
		t.Fatal(err)
	}
	waitState(t, s.disp, orchestrator.StatePaused)

	if err := signals.SendResume(dir); err != nil {
		t.Fatal(err)
	}
	waitState(t, s.disp, orchestrator.StateRunning)

	if err := signals.SendStop(dir); err != nil {
		t.Fatal(err)
	}
	select {
	case err := <-s.runDone:
		if err != nil {
			t.Errorf("Run returned %v", err)
		}
		// stop() must not wait on runDone again.
		s.runDone <- nil
	case <-time.After(5 * time.Second):
		t.Fatal("stop signal did not end Run")
	}
	if s.disp.State() != orchestrator.StateStopped {
		t.Errorf("state = %s, want stopped", s.disp.State())
	}
}
