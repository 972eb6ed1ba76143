package orchestrator

import (
	"testing"
)

func TestEmitterFansOutToAllSubscribers(t *testing.T) {
	e := NewEventEmitter(4)
	a := e.Subscribe()
	b := e.Subscribe()

	e.Emit(Event{Type: EventPhaseChanged, Phase: PhaseAnalyzing})
	e.Emit(Event{Type: EventRunDone, Phase: PhaseCompleted})
	e.Close()

	for name, ch := range map[string]<-chan Event{"a": a, "b": b} {
		var got []Event
		for ev := range ch {
			got = append(got, ev)
		}
		if len(got) != 2 {
			t.Fatalf("subscriber %s: expected 2 events, got %d", name, len(got))
		}
		if got[0].Type != EventPhaseChanged || got[1].Type != EventRunDone {
			t.Errorf("subscriber %s: wrong order %v, %v", name, got[0].Type, got[1].Type)
		}
		if got[0].Timestamp.IsZero() {
			t.Errorf("subscriber %s: missing timestamp", name)
		}
	}
}

func TestEmitterDropsOnFullSubscriber(t *testing.T) {
	e := NewEventEmitter(1)
	ch := e.Subscribe()

	e.Emit(Event{Type: EventPhaseChanged})
	e.Emit(Event{Type: EventPhaseChanged}) // buffer full, never drained

	if e.DroppedCount() != 1 {
		t.Errorf("expected 1 dropped event, got %d", e.DroppedCount())
	}

	// A slow subscriber loses events but never blocks the emitter for good.
	<-ch
	e.Close()
}

func TestEmitterEmitAfterCloseIsNoOp(t *testing.T) {
	e := NewEventEmitter(1)
	ch := e.Subscribe()
	e.Close()
	e.Emit(Event{Type: EventRunDone})

	if _, ok := <-ch; ok {
		t.Error("expected closed channel with no events")
	}
	if got := e.Subscribe(); got == nil {
		t.Error("subscribe after close must return a closed channel, not nil")
	}
}
