// Package reasoner defines the vision-grounded reasoning collaborator the
// task loop consults each step, and the parsing of its replies into device
// actions.
package reasoner

import (
	"context"

	"github.com/droidpilot/droidpilot/internal/device"
	"github.com/droidpilot/droidpilot/pkg/models"
)

// StepContext is everything the reasoner sees for one step.
type StepContext struct {
	// Task is the task being executed.
	Task models.TaskDefinition
	// Step is the zero-based index of this step.
	Step int
	// MaxSteps is the task's step budget.
	MaxSteps int
	// Frame is the current perception snapshot.
	Frame *device.Frame
	// History is the conversation so far, oldest first. It is retained
	// verbatim across pause and resume.
	History []Exchange
}

// Exchange is one prior step's request/response pair kept for context.
type Exchange struct {
	// Thinking is the reasoning text the model produced.
	Thinking string
	// Action is the serialized action that was dispatched.
	Action string
	// Outcome summarizes how the dispatch went.
	Outcome string
}

// StepResult is the reasoner's reply for one step.
type StepResult struct {
	// Thinking is the free-form reasoning text.
	Thinking string
	// Raw is the action payload as returned by the model, before parsing.
	Raw string
}

// Reasoner produces the next device action for a step. Implementations are
// expected to be safe for concurrent use by multiple task loops.
type Reasoner interface {
	Step(ctx context.Context, sc StepContext) (*StepResult, error)
}
