// Package orchestrator runs the plan, execute, decide loop that turns one
// user command into scheduled device tasks.
package orchestrator

import (
	"time"

	"github.com/droidpilot/droidpilot/pkg/models"
)

// Phase is the orchestrator's lifecycle phase. Phases are strictly
// sequential except the Executing/Deciding loop.
type Phase string

const (
	// PhaseIdle means no run is in progress.
	PhaseIdle Phase = "idle"
	// PhaseAnalyzing means the planner is decomposing the command.
	PhaseAnalyzing Phase = "analyzing"
	// PhaseDecomposing means the analysis is being turned into a task batch.
	PhaseDecomposing Phase = "decomposing"
	// PhaseExecuting means a task batch is running through the scheduler.
	PhaseExecuting Phase = "executing"
	// PhaseDeciding means the planner is choosing the next move.
	PhaseDeciding Phase = "deciding"
	// PhaseSummarizing means results are being folded into the run summary.
	PhaseSummarizing Phase = "summarizing"
	// PhaseCompleted means the run finished successfully.
	PhaseCompleted Phase = "completed"
	// PhaseFailed means the run finished unsuccessfully.
	PhaseFailed Phase = "failed"
)

// EventType identifies the kind of orchestrator event.
type EventType string

const (
	// EventPhaseChanged indicates the run moved to a new phase.
	EventPhaseChanged EventType = "phase_changed"
	// EventWaveStarted indicates a scheduler wave began dispatching.
	EventWaveStarted EventType = "wave_started"
	// EventTaskProgress carries a task progress snapshot.
	EventTaskProgress EventType = "task_progress"
	// EventTaskFinished indicates a task reached a terminal state.
	EventTaskFinished EventType = "task_finished"
	// EventDecision carries the planner's verdict for one iteration.
	EventDecision EventType = "decision"
	// EventRunDone indicates the run reached a terminal phase.
	EventRunDone EventType = "run_done"
)

// Event is one update emitted during a run. Subscribers (TUI, plain
// printer, logs) receive these; nothing in the run depends on them.
type Event struct {
	// Type is the kind of event.
	Type EventType
	// Phase is the orchestrator phase at emit time.
	Phase Phase
	// TaskID is the related task, if any.
	TaskID string
	// Iteration is the 1-based execute/decide round, if applicable.
	Iteration int
	// Message provides additional context.
	Message string
	// Progress is the task snapshot for progress events.
	Progress *models.TaskProgress
	// Result is the terminal result for task_finished events.
	Result *models.SubTaskResult
	// Timestamp is when the event occurred.
	Timestamp time.Time
}
