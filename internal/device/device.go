// Package device defines the collaborator interfaces the task loop drives:
// screen capture, input actuation, virtual display allocation, and user
// interaction. Implementations live outside the orchestration core.
package device

import (
	"context"

	"github.com/droidpilot/droidpilot/pkg/models"
)

// Frame is one perception snapshot of a display.
type Frame struct {
	// PNG is the encoded screenshot.
	PNG []byte
	// Width and Height are the frame dimensions in pixels.
	Width  int
	Height int
	// Ref is an opaque reference to the stored snapshot (path or cache key).
	Ref string
}

// Outcome is the actuator's report for one dispatched action.
type Outcome struct {
	// Success indicates the action was delivered.
	Success bool
	// ShouldFinish indicates the actuator determined the task is done
	// (for example, the finish condition was observed on-device).
	ShouldFinish bool
	// Message is optional detail about the dispatch.
	Message string
}

// Compat is the result of a post-launch isolation compatibility check.
type Compat struct {
	// FellBackToMain indicates the app ignored the virtual display and
	// rendered on the main display instead.
	FellBackToMain bool
}

// ScreenSource captures perception snapshots of a display.
type ScreenSource interface {
	// Capture returns the current frame of the given display.
	// A nil frame without error is treated the same as an error:
	// perception failed and the task cannot continue.
	Capture(ctx context.Context, displayID int) (*Frame, error)
}

// Actuator delivers device actions to a display.
type Actuator interface {
	// Dispatch performs the action against the display. Width and height
	// describe the frame the action coordinates were derived from.
	Dispatch(ctx context.Context, action models.Action, displayID, width, height int) (Outcome, error)
}

// DisplayAllocator creates and tears down isolated virtual displays.
type DisplayAllocator interface {
	// Acquire creates or leases a virtual display. Returns ErrNoDisplay
	// when isolation is unavailable.
	Acquire(ctx context.Context, width, height, density int) (int, error)
	// Release returns a display to the allocator.
	Release(displayID int)
	// CheckCompatibility reports whether the app actually rendered on the
	// virtual display after launch.
	CheckCompatibility(ctx context.Context, app string, displayID int) (Compat, error)
}

// Interactor handles blocking user interaction requests. Both calls suspend
// only the requesting task's loop; sibling tasks keep running.
type Interactor interface {
	// Confirm asks the user to approve a sensitive action. A false return
	// cancels the requesting task.
	Confirm(ctx context.Context, message string) (bool, error)
	// Takeover asks the user to perform a manual step and returns once
	// the user hands control back.
	Takeover(ctx context.Context, message string) error
}
