// Package signals drives the run controller from files in the
// .droidpilot/signals directory, so external tooling can stop, pause, or
// resume a run without talking to the process.
package signals

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/droidpilot/droidpilot/internal/control"
)

// Signal file names recognized in the signals directory.
const (
	FileStop   = "stop"
	FilePause  = "pause"
	FileResume = "resume"
)

// pollInterval is the stat fallback period for missed watcher events.
const pollInterval = time.Second

// Watcher translates signal files into controller calls. It watches the
// signals directory with fsnotify and additionally polls with stat, so a
// missed event never loses a signal.
type Watcher struct {
	dir  string
	ctrl *control.Controller

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	done    chan struct{}
	closed  bool
}

// New creates a watcher over dir/.droidpilot/signals, creating the
// directory if needed. The watcher is inert until Start.
func New(dir string, ctrl *control.Controller) (*Watcher, error) {
	signalsDir := filepath.Join(dir, ".droidpilot", "signals")
	if err := os.MkdirAll(signalsDir, 0755); err != nil {
		return nil, fmt.Errorf("creating signals directory: %w", err)
	}
	return &Watcher{
		dir:  signalsDir,
		ctrl: ctrl,
		done: make(chan struct{}),
	}, nil
}

// Dir returns the watched signals directory.
func (w *Watcher) Dir() string {
	return w.dir
}

// Start begins watching. A watcher that cannot be created degrades to
// polling only.
func (w *Watcher) Start() error {
	watcher, err := fsnotify.NewWatcher()
	if err == nil {
		if addErr := watcher.Add(w.dir); addErr != nil {
			watcher.Close()
			watcher = nil
		}
	} else {
		watcher = nil
	}

	w.mu.Lock()
	w.watcher = watcher
	w.mu.Unlock()

	go w.loop()
	return nil
}

func (w *Watcher) loop() {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	// Pick up signal files that predate the watcher.
	w.sync()

	var events chan fsnotify.Event
	var errors chan error
	if w.watcher != nil {
		events = w.watcher.Events
		errors = w.watcher.Errors
	}

	for {
		select {
		case <-w.done:
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				w.apply(filepath.Base(event.Name))
			}
		case <-errors:
			// Keep watching; the poll ticker covers missed events.
		case <-ticker.C:
			w.sync()
		}
	}
}

// sync applies every signal file currently on disk.
func (w *Watcher) sync() {
	for _, name := range []string{FileStop, FilePause, FileResume} {
		if _, err := os.Stat(filepath.Join(w.dir, name)); err == nil {
			w.apply(name)
		}
	}
}

func (w *Watcher) apply(name string) {
	switch name {
	case FileStop:
		w.ctrl.Stop()
	case FilePause:
		// A resume file newer than the pause is handled by its own event.
		if _, err := os.Stat(filepath.Join(w.dir, FileResume)); err != nil {
			w.ctrl.Pause()
		}
	case FileResume:
		w.ctrl.Resume()
		os.Remove(filepath.Join(w.dir, FilePause))
		os.Remove(filepath.Join(w.dir, FileResume))
	}
}

// Send writes a signal file, for sending signals to another process.
func Send(dir, name string) error {
	path := filepath.Join(dir, ".droidpilot", "signals", name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(time.Now().Format(time.RFC3339)), 0644)
}

// Clear removes all signal files.
func (w *Watcher) Clear() {
	for _, name := range []string{FileStop, FilePause, FileResume} {
		os.Remove(filepath.Join(w.dir, name))
	}
}

// Close stops watching. Signal files already applied stay applied.
func (w *Watcher) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.closed = true
	close(w.done)
	if w.watcher != nil {
		w.watcher.Close()
	}
}
