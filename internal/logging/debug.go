// Package logging provides the file-backed debug logger shared by the
// scheduler and orchestrator. Operational logs go through the standard
// log package; this logger captures the verbose trace used to diagnose
// scheduling decisions after a run.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

var (
	defaultLogger *DebugLogger
	defaultMu     sync.RWMutex
)

// SetDefault installs the package-level logger used by Debugf.
func SetDefault(l *DebugLogger) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultLogger = l
}

// Debugf writes a message through the package-level logger. Components that
// are not handed a logger directly (graph, gate) use this indirection.
func Debugf(format string, args ...interface{}) {
	defaultMu.RLock()
	l := defaultLogger
	defaultMu.RUnlock()

	if l != nil {
		l.Logf(format, args...)
	}
}

// DebugLogger writes timestamped trace lines to a file with thread-safe
// access. The zero value and nil are both usable no-op loggers.
type DebugLogger struct {
	mu   sync.Mutex
	file *os.File
}

// NewDebugLogger creates a logger writing to the given path, creating
// parent directories as needed. An empty path returns a no-op logger.
func NewDebugLogger(logPath string) (*DebugLogger, error) {
	if logPath == "" {
		return &DebugLogger{}, nil
	}

	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	l := &DebugLogger{file: f}
	l.Logf("=== droidpilot debug log started at %s ===", time.Now().Format(time.RFC3339))
	return l, nil
}

// NewDebugLoggerForDir creates a debug logger under dir/.droidpilot/logs.
// Returns a no-op logger if the file cannot be created.
func NewDebugLoggerForDir(dir string) *DebugLogger {
	logPath := filepath.Join(dir, ".droidpilot", "logs", "run-debug.log")
	l, err := NewDebugLogger(logPath)
	if err != nil {
		return &DebugLogger{}
	}
	return l
}

// Nop returns a no-op logger.
func Nop() *DebugLogger {
	return &DebugLogger{}
}

// Logf writes a timestamped message. Safe on nil and file-less loggers.
func (l *DebugLogger) Logf(format string, args ...interface{}) {
	if l == nil || l.file == nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	msg := fmt.Sprintf(format, args...)
	fmt.Fprintf(l.file, "[%s] %s\n", time.Now().Format("15:04:05.000"), msg)
	l.file.Sync()
}

// Close closes the underlying file. Safe on nil and file-less loggers.
func (l *DebugLogger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}
