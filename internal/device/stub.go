package device

import (
	"context"
	"log"
	"sync"

	"github.com/droidpilot/droidpilot/pkg/models"
)

// StaticScreen is a ScreenSource that returns the same frame for every
// capture. Used by dry runs and tests.
type StaticScreen struct {
	Frame Frame
}

// Capture returns a copy of the configured frame.
func (s *StaticScreen) Capture(_ context.Context, displayID int) (*Frame, error) {
	f := s.Frame
	if f.Width == 0 {
		f.Width = DefaultGeometry.Width
	}
	if f.Height == 0 {
		f.Height = DefaultGeometry.Height
	}
	return &f, nil
}

// LoggingActuator is an Actuator that logs actions instead of delivering
// them to a device. Every dispatch succeeds.
type LoggingActuator struct{}

// Dispatch logs the action and reports success.
func (LoggingActuator) Dispatch(_ context.Context, action models.Action, displayID, _, _ int) (Outcome, error) {
	log.Printf("[actuator] display=%d action=%s", displayID, action.Kind)
	return Outcome{Success: true}, nil
}

// AutoApprove is an Interactor that approves every confirmation and
// completes every takeover immediately. Used when running unattended.
type AutoApprove struct{}

// Confirm approves the action.
func (AutoApprove) Confirm(_ context.Context, message string) (bool, error) {
	log.Printf("[interact] auto-approving: %s", message)
	return true, nil
}

// Takeover returns immediately.
func (AutoApprove) Takeover(_ context.Context, message string) error {
	log.Printf("[interact] auto-completing takeover: %s", message)
	return nil
}

// CappedAllocator hands out virtual display IDs from a bounded pool.
// It does not talk to a device; real allocators wrap platform tooling.
type CappedAllocator struct {
	Capacity int

	mu     sync.Mutex
	next   int
	leased map[int]bool
}

// Acquire leases the next free display ID, or ErrNoDisplay at capacity.
func (a *CappedAllocator) Acquire(_ context.Context, _, _, _ int) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.leased == nil {
		a.leased = make(map[int]bool)
	}
	if a.Capacity > 0 && len(a.leased) >= a.Capacity {
		return 0, ErrNoDisplay
	}

	// Display 0 is the shared main display; virtual IDs start above it.
	a.next++
	id := a.next
	a.leased[id] = true
	return id, nil
}

// Release returns a display ID to the pool.
func (a *CappedAllocator) Release(displayID int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.leased, displayID)
}

// CheckCompatibility always reports the app stayed on the virtual display.
func (a *CappedAllocator) CheckCompatibility(_ context.Context, _ string, _ int) (Compat, error) {
	return Compat{}, nil
}

// Leased returns the number of outstanding display leases.
func (a *CappedAllocator) Leased() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.leased)
}
