package device

import (
	"context"
	"errors"
	"log"
	"sync"
)

// ErrNoDisplay indicates the allocator cannot provide a virtual display.
// Callers degrade to the shared main display instead of failing the task.
var ErrNoDisplay = errors.New("no virtual display available")

// DisplayGeometry describes the dimensions requested for virtual displays.
type DisplayGeometry struct {
	Width   int
	Height  int
	Density int
}

// DefaultGeometry matches a common phone profile.
var DefaultGeometry = DisplayGeometry{Width: 1080, Height: 2400, Density: 420}

// DisplayPool tracks which task owns which virtual display and guarantees
// every acquired display is released when the run ends. All mutation goes
// through one mutex; runners call into the pool concurrently.
type DisplayPool struct {
	allocator DisplayAllocator
	geometry  DisplayGeometry

	mu sync.Mutex
	// assigned maps task ID to the display it leased.
	assigned map[string]int
}

// NewDisplayPool creates a pool over the given allocator. A nil allocator
// disables isolation entirely: every Acquire reports ErrNoDisplay.
func NewDisplayPool(allocator DisplayAllocator, geometry DisplayGeometry) *DisplayPool {
	if geometry.Width == 0 || geometry.Height == 0 {
		geometry = DefaultGeometry
	}
	return &DisplayPool{
		allocator: allocator,
		geometry:  geometry,
		assigned:  make(map[string]int),
	}
}

// Acquire leases a virtual display for the task. Returns ErrNoDisplay when
// isolation is unavailable so the caller can fall back to the main display.
func (p *DisplayPool) Acquire(ctx context.Context, taskID string) (int, error) {
	if p.allocator == nil {
		return 0, ErrNoDisplay
	}

	id, err := p.allocator.Acquire(ctx, p.geometry.Width, p.geometry.Height, p.geometry.Density)
	if err != nil {
		return 0, err
	}

	p.mu.Lock()
	p.assigned[taskID] = id
	p.mu.Unlock()

	log.Printf("[display] task %s leased display %d", taskID, id)
	return id, nil
}

// CheckCompatibility reports whether the app rendered on the display it was
// launched on. Returns a zero Compat when no allocator is configured.
func (p *DisplayPool) CheckCompatibility(ctx context.Context, app string, displayID int) (Compat, error) {
	if p.allocator == nil {
		return Compat{}, nil
	}
	return p.allocator.CheckCompatibility(ctx, app, displayID)
}

// Release returns the task's display to the allocator, if it holds one.
func (p *DisplayPool) Release(taskID string) {
	p.mu.Lock()
	id, ok := p.assigned[taskID]
	if ok {
		delete(p.assigned, taskID)
	}
	p.mu.Unlock()

	if ok && p.allocator != nil {
		p.allocator.Release(id)
		log.Printf("[display] task %s released display %d", taskID, id)
	}
}

// ReleaseAll returns every leased display. Called at the end of a run
// regardless of exit path.
func (p *DisplayPool) ReleaseAll() {
	p.mu.Lock()
	leases := make(map[string]int, len(p.assigned))
	for taskID, id := range p.assigned {
		leases[taskID] = id
	}
	p.assigned = make(map[string]int)
	p.mu.Unlock()

	for taskID, id := range leases {
		if p.allocator != nil {
			p.allocator.Release(id)
		}
		log.Printf("[display] reclaimed display %d from task %s", id, taskID)
	}
}

// Assigned returns the display leased by the task and whether one exists.
func (p *DisplayPool) Assigned(taskID string) (int, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	id, ok := p.assigned[taskID]
	return id, ok
}

// Count returns the number of outstanding leases.
func (p *DisplayPool) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.assigned)
}
