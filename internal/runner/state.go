package runner

import (
	"sync"

	"github.com/droidpilot/droidpilot/pkg/models"
)

// StateStore is the authoritative task-state map for one run. Multiple task
// loops mutate it concurrently; every read-modify-write goes through one
// mutex with short critical sections.
type StateStore struct {
	mu     sync.RWMutex
	states map[string]models.TaskState
}

// NewStateStore creates an empty store.
func NewStateStore() *StateStore {
	return &StateStore{states: make(map[string]models.TaskState)}
}

// Set records the task's state.
func (s *StateStore) Set(taskID string, state models.TaskState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[taskID] = state
}

// Get returns the task's state and whether one was recorded.
func (s *StateStore) Get(taskID string) (models.TaskState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.states[taskID]
	return state, ok
}

// Snapshot returns a copy of all recorded states.
func (s *StateStore) Snapshot() map[string]models.TaskState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]models.TaskState, len(s.states))
	for id, state := range s.states {
		out[id] = state
	}
	return out
}

// RunningCount returns the number of tasks currently in the Running phase.
func (s *StateStore) RunningCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, state := range s.states {
		if state.Phase == models.PhaseRunning {
			n++
		}
	}
	return n
}

// Reset discards all recorded states.
func (s *StateStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states = make(map[string]models.TaskState)
}
