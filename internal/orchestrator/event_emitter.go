package orchestrator

import (
	"log"
	"sync"
	"sync/atomic"
	"time"
)

// emitRetryWindow is how long Emit waits for a slow subscriber to drain
// before dropping the event.
const emitRetryWindow = 100 * time.Millisecond

// EventEmitter fans events out to any number of subscribers. Emission
// never blocks the run indefinitely: a subscriber that stops draining its
// channel loses events, counted per emitter.
type EventEmitter struct {
	mu         sync.RWMutex
	subs       []chan Event
	closed     bool
	bufferSize int

	droppedCount atomic.Uint64
}

// NewEventEmitter creates an emitter whose subscriber channels hold
// bufferSize events each.
func NewEventEmitter(bufferSize int) *EventEmitter {
	if bufferSize <= 0 {
		bufferSize = 100
	}
	return &EventEmitter{bufferSize: bufferSize}
}

// Subscribe registers a new observer and returns its event channel. The
// channel is closed when the emitter closes. Subscribing after Close
// returns a closed channel.
func (e *EventEmitter) Subscribe() <-chan Event {
	e.mu.Lock()
	defer e.mu.Unlock()

	ch := make(chan Event, e.bufferSize)
	if e.closed {
		close(ch)
		return ch
	}
	e.subs = append(e.subs, ch)
	return ch
}

// Emit delivers the event to every subscriber. A full subscriber channel
// gets one short grace window to drain, then the event is dropped for that
// subscriber only.
func (e *EventEmitter) Emit(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	// The read lock is held across the sends so Close cannot close a
	// channel mid-emit.
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return
	}

	for _, ch := range e.subs {
		select {
		case ch <- event:
			continue
		default:
		}

		select {
		case ch <- event:
		case <-time.After(emitRetryWindow):
			count := e.droppedCount.Add(1)
			if count%10 == 1 { // log every 10th drop to avoid spam
				log.Printf("[orchestrator] WARNING: subscriber channel full, dropped event (total dropped: %d): type=%s", count, event.Type)
			}
		}
	}
}

// DroppedCount returns the total number of events dropped across all
// subscribers.
func (e *EventEmitter) DroppedCount() uint64 {
	return e.droppedCount.Load()
}

// Close closes every subscriber channel. Emit becomes a no-op.
func (e *EventEmitter) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.closed = true
	for _, ch := range e.subs {
		close(ch)
	}
	e.subs = nil
}
