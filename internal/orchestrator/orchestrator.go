package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/droidpilot/droidpilot/internal/control"
	"github.com/droidpilot/droidpilot/internal/device"
	"github.com/droidpilot/droidpilot/internal/exectree"
	"github.com/droidpilot/droidpilot/internal/logging"
	"github.com/droidpilot/droidpilot/internal/planner"
	"github.com/droidpilot/droidpilot/internal/runner"
	"github.com/droidpilot/droidpilot/internal/scheduler"
	"github.com/droidpilot/droidpilot/pkg/models"
)

const (
	// DefaultMaxIterations bounds the execute/decide loop.
	DefaultMaxIterations = 5
	// DefaultEventBuffer is the per-subscriber event channel capacity.
	DefaultEventBuffer = 100
)

// ErrRunInProgress is returned when Orchestrate is called while a run is
// already active.
var ErrRunInProgress = errors.New("a run is already in progress")

// RunRecorder persists finished runs. Implementations must be safe for a
// single call per run.
type RunRecorder interface {
	RecordRun(ctx context.Context, run RunRecord) error
}

// RunRecord is the persistence snapshot of one finished run.
type RunRecord struct {
	ID        string
	Command   string
	Success   bool
	Summary   string
	StartedAt time.Time
	Duration  time.Duration
	Results   []models.SubTaskResult
}

// RunResult is the terminal outcome of one Orchestrate call.
type RunResult struct {
	// Success is true when every task's latest outcome succeeded and the
	// run was not aborted.
	Success bool
	// Summary is the human-readable run summary.
	Summary string
	// FlowDiagram is the mermaid rendering of the execution tree.
	FlowDiagram string
	// SubTaskResults holds every result from every iteration, in
	// completion order. Retried tasks appear once per attempt.
	SubTaskResults []models.SubTaskResult
	// Tree is the execution tree built during the run.
	Tree *exectree.Tree
}

// Orchestrator coordinates one command at a time: analyze, decompose,
// execute through the scheduler, decide, summarize.
type Orchestrator struct {
	planner  planner.Planner
	runner   *runner.Runner
	sched    *scheduler.Scheduler
	states   *runner.StateStore
	pool     *device.DisplayPool
	ctrl     *control.Controller
	emitter  *EventEmitter
	recorder RunRecorder

	maxIterations int

	mu      sync.Mutex
	phase   Phase
	running bool
	tree    *exectree.Tree

	resMu       sync.Mutex
	iterResults []models.SubTaskResult
}

// New creates an Orchestrator. Required collaborators are validated;
// everything else defaults.
func New(req RequiredConfig, opts ...Option) (*Orchestrator, error) {
	if req.Planner == nil {
		return nil, errors.New("planner is required")
	}
	if req.Reasoner == nil {
		return nil, errors.New("reasoner is required")
	}
	if req.Screen == nil {
		return nil, errors.New("screen source is required")
	}
	if req.Actuator == nil {
		return nil, errors.New("actuator is required")
	}

	options := &orchestratorOptions{
		maxIterations: DefaultMaxIterations,
		eventBuffer:   DefaultEventBuffer,
	}
	for _, opt := range opts {
		opt(options)
	}

	if options.logger != nil {
		logging.SetDefault(options.logger)
	}

	ctrl := options.ctrl
	if ctrl == nil {
		ctrl = control.New()
	}

	var pool *device.DisplayPool
	if options.isolate {
		pool = device.NewDisplayPool(options.allocator, options.geometry)
	}

	states := runner.NewStateStore()

	o := &Orchestrator{
		planner:       req.Planner,
		states:        states,
		pool:          pool,
		ctrl:          ctrl,
		emitter:       NewEventEmitter(options.eventBuffer),
		recorder:      options.recorder,
		maxIterations: options.maxIterations,
		phase:         PhaseIdle,
	}

	o.runner = runner.New(runner.Config{
		Screen:       req.Screen,
		Actuator:     req.Actuator,
		Reasoner:     req.Reasoner,
		Control:      ctrl,
		Displays:     pool,
		Interactor:   options.interactor,
		States:       states,
		MaxSteps:     options.maxSteps,
		PollInterval: options.pollInterval,
		Isolate:      options.isolate,
		OnProgress:   o.onProgress,
	})

	o.sched = scheduler.New(scheduler.NewGate(options.maxConcurrent), o.runner, states)
	o.sched.OnWave = o.onWave
	o.sched.OnResult = o.onResult

	return o, nil
}

// Orchestrate runs one command to a terminal phase. Only one run may be
// active per Orchestrator; every display leased during the run is released
// before Orchestrate returns, whatever the exit path.
func (o *Orchestrator) Orchestrate(ctx context.Context, text string) (*RunResult, error) {
	o.mu.Lock()
	if o.running {
		o.mu.Unlock()
		return nil, ErrRunInProgress
	}
	o.running = true
	o.tree = exectree.New(text)
	o.mu.Unlock()

	started := time.Now()
	runID := uuid.NewString()
	log.Printf("[orchestrator] run %s started: %q", runID, text)

	defer func() {
		if o.pool != nil {
			o.pool.ReleaseAll()
		}
		o.mu.Lock()
		o.running = false
		o.mu.Unlock()
	}()

	o.setPhase(PhaseAnalyzing)
	analysis, err := o.planner.Analyze(ctx, text)
	if err != nil {
		// A planner transport failure is handled like an unparsable
		// reply: run the command as a single task.
		log.Printf("[orchestrator] analyze failed, falling back to single task: %v", err)
		analysis = planner.SingleTaskAnalysis()
	}

	o.setPhase(PhaseDecomposing)
	logging.Debugf("[orchestrator] run %s analysis: multi=%t subtasks=%d strategy=%q",
		runID, analysis.RequiresMultiTask, len(analysis.SubTasks), analysis.Strategy)

	var (
		results []models.SubTaskResult
		aborted bool
	)
	if analysis.RequiresMultiTask && len(analysis.SubTasks) > 0 {
		results, aborted = o.runIterations(ctx, text, analysis)
	} else {
		results = o.runSingle(ctx, text)
	}

	o.setPhase(PhaseSummarizing)
	stopped := o.ctrl.IsStopped() || ctx.Err() != nil
	success := !aborted && allLatestSucceeded(results)
	summary := buildSummary(text, results, aborted, stopped)

	tree := o.currentTree()
	tree.Close(success)

	if success {
		o.setPhase(PhaseCompleted)
	} else {
		o.setPhase(PhaseFailed)
	}
	o.emitter.Emit(Event{Type: EventRunDone, Phase: o.Phase(), Message: summary})

	if o.recorder != nil {
		record := RunRecord{
			ID:        runID,
			Command:   text,
			Success:   success,
			Summary:   summary,
			StartedAt: started,
			Duration:  time.Since(started),
			Results:   results,
		}
		if err := o.recorder.RecordRun(ctx, record); err != nil {
			log.Printf("[orchestrator] failed to record run %s: %v", runID, err)
		}
	}

	log.Printf("[orchestrator] run %s done: success=%t tasks=%d duration=%s",
		runID, success, len(results), time.Since(started).Round(time.Millisecond))

	return &RunResult{
		Success:        success,
		Summary:        summary,
		FlowDiagram:    tree.Mermaid(),
		SubTaskResults: results,
		Tree:           tree,
	}, nil
}

// runSingle executes the command as one task, bypassing planning.
func (o *Orchestrator) runSingle(ctx context.Context, text string) []models.SubTaskResult {
	def := models.TaskDefinition{ID: "task-1", Description: text}
	o.currentTree().AddTask("root", def.ID, def.Description)

	o.setPhase(PhaseExecuting)
	res := o.runner.Execute(ctx, def)
	o.onResult(res)
	return []models.SubTaskResult{res}
}

// RunTasks executes a pre-defined task set through the scheduler without
// planning, returning result text per task ID.
func (o *Orchestrator) RunTasks(ctx context.Context, defs []models.TaskDefinition) (map[string]string, error) {
	o.mu.Lock()
	if o.running {
		o.mu.Unlock()
		return nil, ErrRunInProgress
	}
	o.running = true
	o.tree = exectree.New(fmt.Sprintf("%d predefined tasks", len(defs)))
	o.mu.Unlock()

	defer func() {
		if o.pool != nil {
			o.pool.ReleaseAll()
		}
		o.mu.Lock()
		o.running = false
		o.mu.Unlock()
	}()

	tree := o.currentTree()
	for _, def := range defs {
		tree.AddTask("root", def.ID, def.Description)
	}

	o.setPhase(PhaseExecuting)
	results, err := o.sched.RunTasks(ctx, defs)

	o.setPhase(PhaseSummarizing)
	success := err == nil
	tree.Close(success)
	if success {
		o.setPhase(PhaseCompleted)
	} else {
		o.setPhase(PhaseFailed)
	}
	o.emitter.Emit(Event{Type: EventRunDone, Phase: o.Phase()})
	return results, err
}

// Phase returns the current orchestrator phase.
func (o *Orchestrator) Phase() Phase {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.phase
}

// States returns the authoritative task-state store.
func (o *Orchestrator) States() *runner.StateStore {
	return o.states
}

// Gate returns the scheduler's admission gate.
func (o *Orchestrator) Gate() *scheduler.Gate {
	return o.sched.Gate()
}

// Subscribe returns a new event stream. Multiple subscribers each receive
// every event.
func (o *Orchestrator) Subscribe() <-chan Event {
	return o.emitter.Subscribe()
}

// DroppedEvents returns how many events were dropped on slow subscribers.
func (o *Orchestrator) DroppedEvents() uint64 {
	return o.emitter.DroppedCount()
}

// Close releases the event stream. Call after the final run.
func (o *Orchestrator) Close() {
	o.emitter.Close()
}

// Stop requests a cooperative stop of the active run.
func (o *Orchestrator) Stop() {
	o.ctrl.Stop()
}

// Pause pauses all running task loops at their next poll point.
func (o *Orchestrator) Pause() {
	o.ctrl.Pause()
}

// Resume resumes paused task loops.
func (o *Orchestrator) Resume() {
	o.ctrl.Resume()
}

// Reset clears the control flags and task states between runs.
func (o *Orchestrator) Reset() {
	o.ctrl.Reset()
	o.states.Reset()
	o.mu.Lock()
	if !o.running {
		o.phase = PhaseIdle
	}
	o.mu.Unlock()
}

func (o *Orchestrator) setPhase(phase Phase) {
	o.mu.Lock()
	o.phase = phase
	o.mu.Unlock()
	logging.Debugf("[orchestrator] phase -> %s", phase)
	o.emitter.Emit(Event{Type: EventPhaseChanged, Phase: phase})
}

func (o *Orchestrator) currentTree() *exectree.Tree {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.tree
}

// onProgress receives task snapshots from every runner goroutine.
func (o *Orchestrator) onProgress(p models.TaskProgress) {
	if p.State.Phase == models.PhaseRunning && p.StepCount == 0 {
		o.currentTree().Start(p.TaskID, p.DisplayID)
	}
	snapshot := p
	o.emitter.Emit(Event{
		Type:     EventTaskProgress,
		Phase:    o.Phase(),
		TaskID:   p.TaskID,
		Message:  p.Thinking,
		Progress: &snapshot,
	})
}

// onWave is called by the scheduler before each wave dispatches.
func (o *Orchestrator) onWave(index int, wave []models.TaskDefinition) {
	o.emitter.Emit(Event{
		Type:    EventWaveStarted,
		Phase:   o.Phase(),
		Message: fmt.Sprintf("wave %d: %d tasks", index+1, len(wave)),
	})
}

// onResult is called as each task reaches a terminal state.
func (o *Orchestrator) onResult(res models.SubTaskResult) {
	o.resMu.Lock()
	o.iterResults = append(o.iterResults, res)
	o.resMu.Unlock()

	o.currentTree().Finish(res.TaskID, res.Success, res.Result)

	snapshot := res
	o.emitter.Emit(Event{
		Type:   EventTaskFinished,
		Phase:  o.Phase(),
		TaskID: res.TaskID,
		Result: &snapshot,
	})
}
