// Package signals controls a running server through files in its signal directory.
//
// Creating "pause" pauses dispatch and removing it resumes. Creating "stop" shuts the
// server down; the file is consumed when acted on.
package signals

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Signal file names.
const (
	PauseFile = "pause"
	StopFile  = "stop"
)

const defaultPollInterval = 2 * time.Second

// Controller is what the watcher drives.
type Controller interface {
	Pause()
	Resume()
	Stop()
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithLogger sets the logger.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(w *Watcher) {
		if l != nil {
			w.log = l
		}
	}
}

// WithPollInterval sets how often signal files are re-checked in case an fsnotify
// event is missed. Zero disables polling.
func WithPollInterval(d time.Duration) Option {
	return func(w *Watcher) { w.poll = d }
}

// Watcher applies signal files to a Controller.
type Watcher struct {
	dir  string
	ctrl Controller
	poll time.Duration
	log  *zap.SugaredLogger

	mu      sync.Mutex
	paused  bool
	stopped bool

	fsw  *fsnotify.Watcher
	done chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

// NewWatcher creates dir if needed, clears a stale stop file, applies any pause file
// already present and starts watching.
func NewWatcher(dir string, ctrl Controller, opts ...Option) (*Watcher, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create signal directory: %w", err)
	}

	w := &Watcher{
		dir:  dir,
		ctrl: ctrl,
		poll: defaultPollInterval,
		log:  zap.NewNop().Sugar(),
		done: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	if err := os.Remove(w.path(StopFile)); err == nil {
		w.log.Warnw("removed stale stop signal", "dir", dir)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		// Polling still works.
		w.log.Warnw("signal watcher unavailable, polling only", "error", err)
	} else if err := fsw.Add(dir); err != nil {
		_ = fsw.Close()
		w.log.Warnw("signal watcher unavailable, polling only", "error", err)
	} else {
		w.fsw = fsw
	}

	w.Sync()

	w.wg.Add(1)
	go w.run()
	return w, nil
}

// Dir returns the signal directory.
func (w *Watcher) Dir() string { return w.dir }

func (w *Watcher) path(name string) string { return filepath.Join(w.dir, name) }

func (w *Watcher) run() {
	defer w.wg.Done()

	var tick <-chan time.Time
	if w.poll > 0 {
		t := time.NewTicker(w.poll)
		defer t.Stop()
		tick = t.C
	}

	var events chan fsnotify.Event
	var errs chan error
	if w.fsw != nil {
		events = w.fsw.Events
		errs = w.fsw.Errors
	}

	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			switch filepath.Base(ev.Name) {
			case PauseFile, StopFile:
				w.Sync()
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			w.log.Warnw("signal watcher error", "error", err)
		case <-tick:
			w.Sync()
		}
	}
}

// Sync applies the current signal files to the controller.
func (w *Watcher) Sync() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}

	if exists(w.path(StopFile)) {
		w.stopped = true
		_ = os.Remove(w.path(StopFile))
		w.log.Infow("stop signal received")
		w.ctrl.Stop()
		return
	}

	pause := exists(w.path(PauseFile))
	switch {
	case pause && !w.paused:
		w.paused = true
		w.log.Infow("pause signal received")
		w.ctrl.Pause()
	case !pause && w.paused:
		w.paused = false
		w.log.Infow("pause signal cleared")
		w.ctrl.Resume()
	}
}

// Close stops watching. It does not touch the controller.
func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		close(w.done)
		if w.fsw != nil {
			err = w.fsw.Close()
		}
		w.wg.Wait()
	})
	return err
}

// SendPause creates the pause signal in dir.
func SendPause(dir string) error { return send(dir, PauseFile) }

// SendStop creates the stop signal in dir.
func SendStop(dir string) error { return send(dir, StopFile) }

// SendResume removes the pause signal from dir.
func SendResume(dir string) error {
	if err := os.Remove(filepath.Join(dir, PauseFile)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Paused reports whether the pause signal is present in dir.
func Paused(dir string) bool { return exists(filepath.Join(dir, PauseFile)) }

// Clear removes every signal file from dir.
func Clear(dir string) error {
	var errs []error
	for _, name := range []string{PauseFile, StopFile} {
		if err := os.Remove(filepath.Join(dir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func send(dir, name string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, name), []byte(time.Now().Format(time.RFC3339)), 0644)
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
