// Package runner implements the per-task execution loop: one task's
// perceive, reason, act cycle run to completion, pause, or failure.
package runner

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/droidpilot/droidpilot/internal/control"
	"github.com/droidpilot/droidpilot/internal/device"
	"github.com/droidpilot/droidpilot/internal/logging"
	"github.com/droidpilot/droidpilot/internal/reasoner"
	"github.com/droidpilot/droidpilot/pkg/models"
)

const (
	// DefaultMaxSteps is the per-task step budget.
	DefaultMaxSteps = 25
	// DefaultPollInterval is how often a paused loop re-checks its flags.
	DefaultPollInterval = 100 * time.Millisecond

	// MsgStopped is the completion message for runs ended by the stop flag.
	MsgStopped = "stopped by user"
	// MsgMaxSteps is the completion message for exhausted step budgets.
	MsgMaxSteps = "max steps reached"
)

// Config wires a Runner to its collaborators. Screen, Actuator, Reasoner,
// and Control are required; the rest have working defaults.
type Config struct {
	Screen     device.ScreenSource
	Actuator   device.Actuator
	Reasoner   reasoner.Reasoner
	Control    *control.Controller
	Displays   *device.DisplayPool
	Interactor device.Interactor
	States     *StateStore

	// MaxSteps is the per-task step budget. Defaults to DefaultMaxSteps.
	MaxSteps int
	// PollInterval is the paused-loop poll period. Defaults to DefaultPollInterval.
	PollInterval time.Duration
	// Isolate requests a virtual display for tasks that name a target app.
	Isolate bool
	// OnProgress receives task progress snapshots. Optional.
	OnProgress func(models.TaskProgress)
}

// Runner executes tasks one step at a time. Each Execute call is its own
// sequential state machine; a Runner may serve many tasks concurrently.
type Runner struct {
	cfg Config
}

// New creates a Runner, applying defaults for unset optional fields.
func New(cfg Config) *Runner {
	if cfg.MaxSteps <= 0 {
		cfg.MaxSteps = DefaultMaxSteps
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.States == nil {
		cfg.States = NewStateStore()
	}
	if cfg.Interactor == nil {
		cfg.Interactor = device.AutoApprove{}
	}
	if cfg.Control == nil {
		cfg.Control = control.New()
	}
	return &Runner{cfg: cfg}
}

// States returns the runner's state store.
func (r *Runner) States() *StateStore {
	return r.cfg.States
}

// Execute runs the task to a terminal state and returns its result. It
// never panics or returns early without recording a terminal state.
func (r *Runner) Execute(ctx context.Context, def models.TaskDefinition) models.SubTaskResult {
	start := time.Now()
	displayID := r.acquireDisplay(ctx, def)

	terminal, steps := r.loop(ctx, def, displayID)

	r.cfg.States.Set(def.ID, terminal)
	r.emit(def, terminal, steps, displayID, "", "")

	success := terminal.Phase == models.PhaseCompleted
	result := terminal.Message
	if terminal.Phase == models.PhaseFailed {
		result = "error: " + terminal.Err
	}

	log.Printf("[runner] task %s finished: phase=%s steps=%d display=%d",
		def.ID, terminal.Phase, steps, displayID)

	return models.SubTaskResult{
		TaskID:        def.ID,
		Success:       success,
		Result:        result,
		StepsExecuted: steps,
		DisplayID:     displayID,
		Duration:      time.Since(start),
	}
}

// acquireDisplay leases a virtual display when isolation is requested and
// the task names a target app. Any acquisition or compatibility problem
// degrades to the shared main display via a FallbackToMain transition;
// it never fails the task.
func (r *Runner) acquireDisplay(ctx context.Context, def models.TaskDefinition) int {
	if !r.cfg.Isolate || def.TargetApp == "" || r.cfg.Displays == nil {
		return models.MainDisplayID
	}

	id, err := r.cfg.Displays.Acquire(ctx, def.ID)
	if err != nil {
		reason := fmt.Sprintf("display acquisition failed: %v", err)
		r.fallBack(def, reason)
		return models.MainDisplayID
	}

	compat, err := r.cfg.Displays.CheckCompatibility(ctx, def.TargetApp, id)
	if err == nil && compat.FellBackToMain {
		r.cfg.Displays.Release(def.ID)
		r.fallBack(def, fmt.Sprintf("app %s rendered on the main display", def.TargetApp))
		return models.MainDisplayID
	}

	return id
}

func (r *Runner) fallBack(def models.TaskDefinition, reason string) {
	logging.Debugf("[runner] task %s falling back to main display: %s", def.ID, reason)
	state := models.FallbackToMain(reason)
	r.cfg.States.Set(def.ID, state)
	r.emit(def, state, 0, models.MainDisplayID, "", "")
}

// loop runs the perceive/reason/act cycle until a termination condition.
// Returns the terminal state and the number of steps executed.
func (r *Runner) loop(ctx context.Context, def models.TaskDefinition, displayID int) (models.TaskState, int) {
	var history []reasoner.Exchange
	steps := 0

	for {
		// Stop flag and pause flag are checked at loop-top only; in-flight
		// collaborator calls always finish first.
		if r.stopRequested(ctx) {
			return models.Completed(MsgStopped), steps
		}

		if stopped := r.pauseWait(ctx, def, displayID, steps); stopped {
			return models.Completed(MsgStopped), steps
		}

		if steps >= r.cfg.MaxSteps {
			return models.Completed(MsgMaxSteps), steps
		}

		r.cfg.States.Set(def.ID, models.Running(displayID, steps))

		frame, err := r.cfg.Screen.Capture(ctx, displayID)
		if err != nil {
			return models.Failed(fmt.Sprintf("screen capture failed: %v", err)), steps
		}
		if frame == nil {
			return models.Failed("screen capture returned no frame"), steps
		}
		r.emit(def, models.Running(displayID, steps), steps, displayID, "", frame.Ref)

		sc := reasoner.StepContext{
			Task:     def,
			Step:     steps,
			MaxSteps: r.cfg.MaxSteps,
			Frame:    frame,
			History:  history,
		}
		stepResult, err := r.cfg.Reasoner.Step(ctx, sc)
		if err != nil {
			return models.Failed(fmt.Sprintf("reasoning failed: %v", err)), steps
		}

		action := reasoner.ParseAction(stepResult.Raw)
		r.emit(def, models.Running(displayID, steps), steps, displayID, stepResult.Thinking, frame.Ref)

		if action.Sensitive && !action.IsFinish() {
			ok, err := r.cfg.Interactor.Confirm(ctx, confirmMessage(def, action))
			if err != nil {
				return models.Failed(fmt.Sprintf("confirmation failed: %v", err)), steps
			}
			if !ok {
				return models.Failed("cancelled by user"), steps
			}
		}

		if action.Kind == models.ActionTakeover {
			if err := r.cfg.Interactor.Takeover(ctx, action.Message); err != nil {
				return models.Failed(fmt.Sprintf("takeover failed: %v", err)), steps
			}
			steps++
			history = append(history, reasoner.Exchange{
				Thinking: stepResult.Thinking,
				Action:   stepResult.Raw,
				Outcome:  "user completed takeover",
			})
			continue
		}

		if action.IsFinish() {
			steps++
			message := action.Message
			if message == "" {
				message = "task finished"
			}
			return models.Completed(message), steps
		}

		outcome, err := r.cfg.Actuator.Dispatch(ctx, action, displayID, frame.Width, frame.Height)
		if err != nil {
			// Actuation failures don't end the task; the reasoner sees the
			// failed step in its history and adapts.
			outcome = device.Outcome{Success: false, Message: err.Error()}
		}

		steps++
		history = append(history, reasoner.Exchange{
			Thinking: stepResult.Thinking,
			Action:   stepResult.Raw,
			Outcome:  outcomeSummary(outcome),
		})
		r.cfg.States.Set(def.ID, models.Running(displayID, steps))

		if outcome.ShouldFinish {
			message := outcome.Message
			if message == "" {
				message = "task finished"
			}
			return models.Completed(message), steps
		}
	}
}

// pauseWait parks the loop while the run is paused, surfacing the Paused
// state to observers. Conversation history and step count are untouched,
// so resume continues exactly where pause left off. Returns true if a stop
// arrived while waiting.
func (r *Runner) pauseWait(ctx context.Context, def models.TaskDefinition, displayID, steps int) bool {
	paused := false
	for r.cfg.Control.IsPaused() {
		if r.stopRequested(ctx) {
			return true
		}
		if !paused {
			paused = true
			state := models.Paused(displayID, steps)
			r.cfg.States.Set(def.ID, state)
			r.emit(def, state, steps, displayID, "", "")
			logging.Debugf("[runner] task %s paused at step %d", def.ID, steps)
		}

		select {
		case <-ctx.Done():
			return true
		case <-time.After(r.cfg.PollInterval):
		}
	}
	return r.stopRequested(ctx)
}

func (r *Runner) stopRequested(ctx context.Context) bool {
	return r.cfg.Control.IsStopped() || ctx.Err() != nil
}

func (r *Runner) emit(def models.TaskDefinition, state models.TaskState, steps, displayID int, thinking, screenshotRef string) {
	if r.cfg.OnProgress == nil {
		return
	}
	r.cfg.OnProgress(models.TaskProgress{
		TaskID:        def.ID,
		State:         state,
		StepCount:     steps,
		MaxSteps:      r.cfg.MaxSteps,
		Thinking:      thinking,
		DisplayID:     displayID,
		ScreenshotRef: screenshotRef,
	})
}

func confirmMessage(def models.TaskDefinition, action models.Action) string {
	if action.Message != "" {
		return action.Message
	}
	return fmt.Sprintf("task %s wants to perform a sensitive %s action", def.ID, action.Kind)
}

func outcomeSummary(outcome device.Outcome) string {
	if outcome.Success {
		if outcome.Message != "" {
			return outcome.Message
		}
		return "ok"
	}
	if outcome.Message != "" {
		return "failed: " + outcome.Message
	}
	return "failed"
}
