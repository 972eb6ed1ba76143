// Package control provides the shared cancellation and pause state passed
// by reference into every task loop.
package control

import (
	"context"
	"fmt"
	"log"
	"sync"
)

// ErrStopped is returned when a wait ends because the run was stopped.
var ErrStopped = fmt.Errorf("run stopped")

// Controller holds the cooperative pause and stop flags for one run. Task
// loops check it at defined poll points; nothing is interrupted mid-call.
type Controller struct {
	paused  bool
	stopped bool
	mu      sync.RWMutex
	cond    *sync.Cond
}

// New creates a Controller in the running state.
func New() *Controller {
	c := &Controller{}
	c.cond = sync.NewCond(&c.mu)
	return c
}

// Pause pauses execution. Running task loops park at their next poll point.
func (c *Controller) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.paused {
		c.paused = true
		log.Printf("[control] paused")
	}
}

// Resume resumes execution after a pause.
func (c *Controller) Resume() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.paused {
		c.paused = false
		log.Printf("[control] resumed")
		c.cond.Broadcast()
	}
}

// Stop signals a stop. Task loops finish their in-flight step and exit;
// paused loops wake immediately.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.stopped {
		c.stopped = true
		log.Printf("[control] stop requested")
		c.cond.Broadcast()
	}
}

// Reset clears both flags so the controller can drive a new run.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paused = false
	c.stopped = false
	c.cond.Broadcast()
}

// IsPaused returns whether execution is currently paused.
func (c *Controller) IsPaused() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.paused
}

// IsStopped returns whether a stop has been requested.
func (c *Controller) IsStopped() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stopped
}

// WaitIfPaused blocks until execution is resumed or stopped. Returns
// ErrStopped on stop and the context error on cancellation.
func (c *Controller) WaitIfPaused(ctx context.Context) error {
	c.mu.Lock()
	if c.paused && !c.stopped {
		done := make(chan struct{})
		go func() {
			select {
			case <-ctx.Done():
				c.mu.Lock()
				c.cond.Broadcast()
				c.mu.Unlock()
			case <-done:
			}
		}()

		for c.paused && !c.stopped {
			c.cond.Wait()
			if ctx.Err() != nil {
				close(done)
				c.mu.Unlock()
				return ctx.Err()
			}
		}
		close(done)
	}
	if c.stopped {
		c.mu.Unlock()
		return ErrStopped
	}
	c.mu.Unlock()
	return nil
}
