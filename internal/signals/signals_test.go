package signals

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/droidpilot/droidpilot/internal/control"
)

func waitFor(t *testing.T, cond func() bool, what string) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestStopSignalFile(t *testing.T) {
	dir := t.TempDir()
	ctrl := control.New()

	w, err := New(dir, ctrl)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer w.Close()
	if err := w.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if err := Send(dir, FileStop); err != nil {
		t.Fatalf("Send: %v", err)
	}

	waitFor(t, ctrl.IsStopped, "stop flag")
}

func TestPauseThenResume(t *testing.T) {
	dir := t.TempDir()
	ctrl := control.New()

	w, err := New(dir, ctrl)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer w.Close()
	if err := w.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if err := Send(dir, FilePause); err != nil {
		t.Fatalf("Send pause: %v", err)
	}
	waitFor(t, ctrl.IsPaused, "pause flag")

	if err := Send(dir, FileResume); err != nil {
		t.Fatalf("Send resume: %v", err)
	}
	waitFor(t, func() bool { return !ctrl.IsPaused() }, "resume")

	// Resume consumes both signal files so the next poll doesn't re-pause.
	waitFor(t, func() bool {
		_, pauseErr := os.Stat(filepath.Join(w.Dir(), FilePause))
		_, resumeErr := os.Stat(filepath.Join(w.Dir(), FileResume))
		return os.IsNotExist(pauseErr) && os.IsNotExist(resumeErr)
	}, "signal file cleanup")
}

func TestPreexistingSignalApplied(t *testing.T) {
	dir := t.TempDir()
	ctrl := control.New()

	// Signal written before the watcher starts.
	if err := Send(dir, FileStop); err != nil {
		t.Fatalf("Send: %v", err)
	}

	w, err := New(dir, ctrl)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer w.Close()
	if err := w.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	waitFor(t, ctrl.IsStopped, "pre-existing stop signal")
}

func TestClearRemovesSignalFiles(t *testing.T) {
	dir := t.TempDir()
	ctrl := control.New()

	w, err := New(dir, ctrl)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer w.Close()

	if err := Send(dir, FileStop); err != nil {
		t.Fatalf("Send: %v", err)
	}
	w.Clear()

	if _, err := os.Stat(filepath.Join(w.Dir(), FileStop)); !os.IsNotExist(err) {
		t.Error("stop file should be removed")
	}
}
