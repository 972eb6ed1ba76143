package orchestrator

import (
	"time"

	"github.com/droidpilot/droidpilot/internal/control"
	"github.com/droidpilot/droidpilot/internal/device"
	"github.com/droidpilot/droidpilot/internal/logging"
	"github.com/droidpilot/droidpilot/internal/planner"
	"github.com/droidpilot/droidpilot/internal/reasoner"
)

// RequiredConfig contains the collaborators an Orchestrator cannot run
// without. All fields are required and have no defaults.
type RequiredConfig struct {
	// Planner decomposes the command and decides between iterations.
	Planner planner.Planner
	// Reasoner chooses the next device action for each task step.
	Reasoner reasoner.Reasoner
	// Screen captures perception snapshots.
	Screen device.ScreenSource
	// Actuator dispatches device actions.
	Actuator device.Actuator
}

// Option configures an Orchestrator. Use With* functions to create Options.
type Option func(*orchestratorOptions)

type orchestratorOptions struct {
	maxConcurrent int
	maxIterations int
	maxSteps      int
	pollInterval  time.Duration
	eventBuffer   int

	isolate   bool
	allocator device.DisplayAllocator
	geometry  device.DisplayGeometry

	interactor device.Interactor
	ctrl       *control.Controller
	logger     *logging.DebugLogger
	recorder   RunRecorder
}

// WithMaxConcurrent sets the concurrency gate bound.
func WithMaxConcurrent(n int) Option {
	return func(o *orchestratorOptions) { o.maxConcurrent = n }
}

// WithMaxIterations sets the execute/decide iteration cap.
func WithMaxIterations(n int) Option {
	return func(o *orchestratorOptions) { o.maxIterations = n }
}

// WithMaxSteps sets the per-task step budget.
func WithMaxSteps(n int) Option {
	return func(o *orchestratorOptions) { o.maxSteps = n }
}

// WithPollInterval sets the paused-loop poll period.
func WithPollInterval(d time.Duration) Option {
	return func(o *orchestratorOptions) { o.pollInterval = d }
}

// WithEventBuffer sets the per-subscriber event channel capacity.
func WithEventBuffer(n int) Option {
	return func(o *orchestratorOptions) { o.eventBuffer = n }
}

// WithIsolation enables virtual-display isolation backed by the given
// allocator and display geometry.
func WithIsolation(allocator device.DisplayAllocator, geometry device.DisplayGeometry) Option {
	return func(o *orchestratorOptions) {
		o.isolate = true
		o.allocator = allocator
		o.geometry = geometry
	}
}

// WithInteractor sets the confirmation/takeover collaborator. Defaults to
// auto-approval.
func WithInteractor(i device.Interactor) Option {
	return func(o *orchestratorOptions) { o.interactor = i }
}

// WithControl sets a shared pause/stop controller, letting external
// surfaces (signal files, TUI) drive the same flags.
func WithControl(c *control.Controller) Option {
	return func(o *orchestratorOptions) { o.ctrl = c }
}

// WithLogger sets the debug logger.
func WithLogger(l *logging.DebugLogger) Option {
	return func(o *orchestratorOptions) { o.logger = l }
}

// WithRecorder sets the run persistence sink.
func WithRecorder(r RunRecorder) Option {
	return func(o *orchestratorOptions) { o.recorder = r }
}
