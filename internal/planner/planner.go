// Package planner defines the planning collaborator that decomposes a user
// task into sub-tasks and decides how an orchestration run proceeds after
// each execution round.
package planner

import (
	"context"

	"github.com/droidpilot/droidpilot/pkg/models"
)

// Analysis is the planner's decomposition of a user task.
type Analysis struct {
	// RequiresMultiTask indicates the task should be split into
	// concurrently scheduled sub-tasks.
	RequiresMultiTask bool `json:"requires_multi_task"`
	// SubTasks is the planned decomposition, empty for single-task runs.
	SubTasks []SubTaskPlan `json:"sub_tasks,omitempty"`
	// Strategy is a short description of the execution approach.
	Strategy string `json:"strategy,omitempty"`
	// Complexity is the planner's difficulty estimate (low/medium/high).
	Complexity string `json:"complexity,omitempty"`
}

// SubTaskPlan is one planned sub-task. IDs are planner-scoped and referenced
// by DependsOn entries within the same analysis.
type SubTaskPlan struct {
	ID          string   `json:"id"`
	Description string   `json:"description"`
	TargetApp   string   `json:"target_app,omitempty"`
	Priority    int      `json:"priority,omitempty"`
	DependsOn   []string `json:"depends_on,omitempty"`
}

// Definition converts the plan into a schedulable task definition.
func (p SubTaskPlan) Definition() models.TaskDefinition {
	return models.TaskDefinition{
		ID:          p.ID,
		Description: p.Description,
		TargetApp:   p.TargetApp,
		Priority:    p.Priority,
		DependsOn:   p.DependsOn,
	}
}

// DecisionAction is the planner's verdict after one execution round.
type DecisionAction string

const (
	// DecisionContinue accepts the current results and ends the loop.
	DecisionContinue DecisionAction = "CONTINUE"
	// DecisionSpawnNew replaces the working batch with newly planned tasks.
	DecisionSpawnNew DecisionAction = "SPAWN_NEW"
	// DecisionRetry re-executes the named failed tasks.
	DecisionRetry DecisionAction = "RETRY"
	// DecisionComplete ends the loop with the accumulated results.
	DecisionComplete DecisionAction = "COMPLETE"
	// DecisionAbort ends the run immediately, discarding planned work.
	DecisionAbort DecisionAction = "ABORT"
)

// Valid returns true if the action is a known value.
func (a DecisionAction) Valid() bool {
	switch a {
	case DecisionContinue, DecisionSpawnNew, DecisionRetry, DecisionComplete, DecisionAbort:
		return true
	default:
		return false
	}
}

// Decision is the planner's reply for one Deciding phase.
type Decision struct {
	// Action is the verdict.
	Action DecisionAction `json:"action"`
	// NewTasks is the replacement batch for SPAWN_NEW.
	NewTasks []SubTaskPlan `json:"new_tasks,omitempty"`
	// RetryIDs names the failed tasks to re-execute for RETRY.
	RetryIDs []string `json:"retry_ids,omitempty"`
	// Reason is the planner's explanation.
	Reason string `json:"reason,omitempty"`
}

// Planner is the external decision-making collaborator. Transport failures
// are returned as errors; unparsable replies never are — ParseAnalysis and
// ParseDecision degrade to deterministic fail-safe defaults instead.
type Planner interface {
	// Analyze decomposes the raw task text.
	Analyze(ctx context.Context, task string) (*Analysis, error)
	// Decide chooses the next move given the accumulated results.
	Decide(ctx context.Context, task string, analysis *Analysis, results []models.SubTaskResult) (*Decision, error)
}

// SingleTaskAnalysis is the deterministic fallback used when an analysis
// reply cannot be parsed: run the task as-is, sequentially.
func SingleTaskAnalysis() *Analysis {
	return &Analysis{RequiresMultiTask: false}
}

// CompleteDecision is the deterministic fallback used when a decision reply
// cannot be parsed: keep the accumulated results and stop iterating.
func CompleteDecision(reason string) *Decision {
	return &Decision{Action: DecisionComplete, Reason: reason}
}
