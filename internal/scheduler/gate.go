package scheduler

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/droidpilot/droidpilot/internal/logging"
)

// DefaultMaxConcurrentTasks is the gate bound used when none is configured.
const DefaultMaxConcurrentTasks = 3

// Gate is the counting admission gate that bounds how many task loops run
// simultaneously. Acquire blocks until a slot frees; at any instant the
// number of admitted tasks is at most the configured bound.
type Gate struct {
	sem   *semaphore.Weighted
	bound int

	mu      sync.Mutex
	running int
	peak    int
}

// NewGate creates a gate admitting at most bound tasks. A bound of zero or
// less falls back to DefaultMaxConcurrentTasks.
func NewGate(bound int) *Gate {
	if bound <= 0 {
		bound = DefaultMaxConcurrentTasks
	}
	return &Gate{
		sem:   semaphore.NewWeighted(int64(bound)),
		bound: bound,
	}
}

// Acquire blocks until a slot is free or the context is cancelled.
func (g *Gate) Acquire(ctx context.Context) error {
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return err
	}

	g.mu.Lock()
	g.running++
	if g.running > g.peak {
		g.peak = g.running
	}
	running := g.running
	g.mu.Unlock()

	logging.Debugf("[gate] slot acquired, running=%d/%d", running, g.bound)
	return nil
}

// Release returns a slot to the gate.
func (g *Gate) Release() {
	g.mu.Lock()
	g.running--
	g.mu.Unlock()
	g.sem.Release(1)
}

// Running returns the number of currently admitted tasks.
func (g *Gate) Running() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.running
}

// Peak returns the highest concurrent admission observed.
func (g *Gate) Peak() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.peak
}

// Bound returns the configured admission limit.
func (g *Gate) Bound() int {
	return g.bound
}
