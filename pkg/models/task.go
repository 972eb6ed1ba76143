// Package models defines the shared data model for droidpilot tasks,
// task execution state, and device actions.
package models

import "time"

// MainDisplayID is the identifier of the device's default shared display.
// Tasks fall back to it when virtual display isolation is unavailable.
const MainDisplayID = 0

// TaskDefinition describes one unit of automation work. It is immutable
// once handed to the scheduler.
type TaskDefinition struct {
	// ID is the unique identifier for this task.
	ID string `json:"id" yaml:"id"`
	// Description is the natural-language instruction for this task.
	Description string `json:"description" yaml:"description"`
	// TargetApp is the package name of the app this task operates on, if known.
	// A non-empty TargetApp makes the task a candidate for display isolation.
	TargetApp string `json:"target_app,omitempty" yaml:"target_app,omitempty"`
	// Priority orders tasks within a wave; higher runs earlier when slots are scarce.
	Priority int `json:"priority,omitempty" yaml:"priority,omitempty"`
	// DependsOn lists task IDs that must reach a terminal state before this task starts.
	DependsOn []string `json:"depends_on,omitempty" yaml:"depends_on,omitempty"`
}

// TaskPhase is the tag of the TaskState variant.
type TaskPhase string

const (
	// PhasePending indicates the task has not started.
	PhasePending TaskPhase = "pending"
	// PhaseWaitingDeps indicates the task is waiting for its dependencies.
	PhaseWaitingDeps TaskPhase = "waiting_for_dependencies"
	// PhaseRunning indicates the task loop is stepping.
	PhaseRunning TaskPhase = "running"
	// PhasePaused indicates the task loop is parked at the pause poll.
	PhasePaused TaskPhase = "paused"
	// PhaseCompleted indicates the task finished; Message carries the result.
	PhaseCompleted TaskPhase = "completed"
	// PhaseFailed indicates the task failed; Err carries the error.
	PhaseFailed TaskPhase = "failed"
	// PhaseFallbackToMain indicates isolation was unavailable and the task
	// continues on the shared display. Transient: the loop re-enters Running.
	PhaseFallbackToMain TaskPhase = "fallback_to_main"
)

// Valid returns true if the phase is a known value.
func (p TaskPhase) Valid() bool {
	switch p {
	case PhasePending, PhaseWaitingDeps, PhaseRunning, PhasePaused,
		PhaseCompleted, PhaseFailed, PhaseFallbackToMain:
		return true
	default:
		return false
	}
}

// Terminal returns true if the phase is an end state for the task loop.
func (p TaskPhase) Terminal() bool {
	return p == PhaseCompleted || p == PhaseFailed
}

// TaskState is a tagged variant: exactly one phase is active at a time and
// only the payload fields for that phase are meaningful.
//
// Payloads: Running/Paused carry DisplayID and StepCount; Completed carries
// Message; Failed carries Err; FallbackToMain carries Reason.
// StepCount is monotonically non-decreasing while in Running or Paused.
type TaskState struct {
	Phase     TaskPhase `json:"phase"`
	DisplayID int       `json:"display_id,omitempty"`
	StepCount int       `json:"step_count,omitempty"`
	Message   string    `json:"message,omitempty"`
	Err       string    `json:"error,omitempty"`
	Reason    string    `json:"reason,omitempty"`
}

// Pending returns the initial task state.
func Pending() TaskState {
	return TaskState{Phase: PhasePending}
}

// WaitingDeps returns the state of a task parked behind unmet dependencies.
func WaitingDeps() TaskState {
	return TaskState{Phase: PhaseWaitingDeps}
}

// Running returns the state of a stepping task.
func Running(displayID, stepCount int) TaskState {
	return TaskState{Phase: PhaseRunning, DisplayID: displayID, StepCount: stepCount}
}

// Paused returns the state of a task parked at the pause poll.
func Paused(displayID, stepCount int) TaskState {
	return TaskState{Phase: PhasePaused, DisplayID: displayID, StepCount: stepCount}
}

// Completed returns a terminal success state carrying the result message.
func Completed(message string) TaskState {
	return TaskState{Phase: PhaseCompleted, Message: message}
}

// Failed returns a terminal failure state carrying the error text.
func Failed(err string) TaskState {
	return TaskState{Phase: PhaseFailed, Err: err}
}

// FallbackToMain returns the transient state recorded when a task degrades
// to the shared display.
func FallbackToMain(reason string) TaskState {
	return TaskState{Phase: PhaseFallbackToMain, Reason: reason, DisplayID: MainDisplayID}
}

// Terminal returns true if the state is an end state.
func (s TaskState) Terminal() bool {
	return s.Phase.Terminal()
}

// TaskProgress is a point-in-time projection of a task's state plus
// loop-local context. It is produced for observers and never stored
// authoritatively.
type TaskProgress struct {
	// TaskID identifies the task.
	TaskID string `json:"task_id"`
	// State is the task's state at snapshot time.
	State TaskState `json:"state"`
	// StepCount is the number of steps executed so far.
	StepCount int `json:"step_count"`
	// MaxSteps is the task's step budget.
	MaxSteps int `json:"max_steps"`
	// Thinking is the reasoner's latest free-form reasoning text.
	Thinking string `json:"thinking,omitempty"`
	// DisplayID is the display the task is executing against.
	DisplayID int `json:"display_id"`
	// ScreenshotRef references the most recent perception snapshot, if any.
	ScreenshotRef string `json:"screenshot_ref,omitempty"`
}

// SubTaskResult is the outcome of one task for one orchestration iteration.
// Results accumulate across iterations and are never discarded.
type SubTaskResult struct {
	// TaskID identifies the task.
	TaskID string `json:"task_id"`
	// Success indicates the result does not describe an error condition.
	Success bool `json:"success"`
	// Result is the textual outcome reported by the task loop.
	Result string `json:"result"`
	// StepsExecuted is the number of perceive/reason/act steps taken.
	StepsExecuted int `json:"steps_executed"`
	// DisplayID is the display the task ran on.
	DisplayID int `json:"display_id"`
	// Duration is the wall-clock execution time.
	Duration time.Duration `json:"duration"`
}
