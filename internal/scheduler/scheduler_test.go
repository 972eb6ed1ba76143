package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/droidpilot/droidpilot/pkg/models"
)

// fakeExecutor records execution order and concurrency for assertions.
type fakeExecutor struct {
	delay time.Duration
	fail  map[string]bool

	mu       sync.Mutex
	started  []string
	running  int
	peak     int
	finished map[string]time.Time
}

func newFakeExecutor(delay time.Duration) *fakeExecutor {
	return &fakeExecutor{delay: delay, finished: make(map[string]time.Time)}
}

func (f *fakeExecutor) Execute(ctx context.Context, def models.TaskDefinition) models.SubTaskResult {
	f.mu.Lock()
	f.started = append(f.started, def.ID)
	f.running++
	if f.running > f.peak {
		f.peak = f.running
	}
	f.mu.Unlock()

	time.Sleep(f.delay)

	f.mu.Lock()
	f.running--
	f.finished[def.ID] = time.Now()
	failed := f.fail[def.ID]
	f.mu.Unlock()

	if failed {
		return models.SubTaskResult{TaskID: def.ID, Success: false, Result: "error: step failed"}
	}
	return models.SubTaskResult{TaskID: def.ID, Success: true, Result: "ok"}
}

type fakeRecorder struct {
	mu     sync.Mutex
	states map[string]models.TaskState
}

func (r *fakeRecorder) Set(taskID string, state models.TaskState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.states == nil {
		r.states = make(map[string]models.TaskState)
	}
	r.states[taskID] = state
}

func TestRunTasksAllComplete(t *testing.T) {
	exec := newFakeExecutor(time.Millisecond)
	s := New(NewGate(2), exec, nil)

	defs := []models.TaskDefinition{
		{ID: "a"}, {ID: "b"}, {ID: "c"},
	}

	results, err := s.RunTasks(context.Background(), defs)
	if err != nil {
		t.Fatalf("RunTasks failed: %v", err)
	}
	if len(results) != 3 {
		t.Errorf("expected 3 results, got %d", len(results))
	}
}

func TestRunTasksRespectsGateBound(t *testing.T) {
	exec := newFakeExecutor(10 * time.Millisecond)
	s := New(NewGate(2), exec, nil)

	defs := []models.TaskDefinition{
		{ID: "a"}, {ID: "b"}, {ID: "c"}, {ID: "d"}, {ID: "e"},
	}

	if _, err := s.RunTasks(context.Background(), defs); err != nil {
		t.Fatalf("RunTasks failed: %v", err)
	}

	if exec.peak > 2 {
		t.Errorf("observed %d concurrent executions, gate bound is 2", exec.peak)
	}
}

func TestRunTasksDependencyOrdering(t *testing.T) {
	exec := newFakeExecutor(5 * time.Millisecond)
	s := New(NewGate(4), exec, nil)

	defs := []models.TaskDefinition{
		{ID: "child", DependsOn: []string{"parent"}},
		{ID: "parent"},
	}

	if _, err := s.RunTasks(context.Background(), defs); err != nil {
		t.Fatalf("RunTasks failed: %v", err)
	}

	if len(exec.started) != 2 || exec.started[0] != "parent" || exec.started[1] != "child" {
		t.Errorf("expected parent before child, got order %v", exec.started)
	}
}

func TestRunTasksDependentRunsAfterFailedDependency(t *testing.T) {
	// Readiness checks completion, not success: a failed dependency still
	// unblocks its dependents.
	exec := newFakeExecutor(time.Millisecond)
	exec.fail = map[string]bool{"parent": true}
	s := New(NewGate(2), exec, nil)

	defs := []models.TaskDefinition{
		{ID: "parent"},
		{ID: "child", DependsOn: []string{"parent"}},
	}

	results, err := s.RunTasks(context.Background(), defs)
	if err != nil {
		t.Fatalf("RunTasks failed: %v", err)
	}
	if _, ok := results["child"]; !ok {
		t.Error("child must still run after its dependency failed")
	}
}

func TestRunTasksRecordsWaitingStates(t *testing.T) {
	exec := newFakeExecutor(time.Millisecond)
	rec := &fakeRecorder{}
	s := New(NewGate(1), exec, rec)

	defs := []models.TaskDefinition{
		{ID: "a"},
		{ID: "b", DependsOn: []string{"a"}},
	}

	// Capture the state recorded for b before it runs.
	var observed models.TaskState
	s.OnWave = func(i int, _ []models.TaskDefinition) {
		if i == 0 {
			rec.mu.Lock()
			observed = rec.states["b"]
			rec.mu.Unlock()
		}
	}

	if _, err := s.RunTasks(context.Background(), defs); err != nil {
		t.Fatalf("RunTasks failed: %v", err)
	}

	if observed.Phase != models.PhaseWaitingDeps {
		t.Errorf("expected b to be waiting on dependencies, got %q", observed.Phase)
	}
}

func TestRunTasksCancelledContext(t *testing.T) {
	exec := newFakeExecutor(time.Millisecond)
	s := New(NewGate(1), exec, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.RunTasks(ctx, []models.TaskDefinition{{ID: "a"}})
	if err == nil {
		t.Error("expected error from cancelled context")
	}
}

func TestRunTasksResultCallback(t *testing.T) {
	exec := newFakeExecutor(time.Millisecond)
	s := New(NewGate(2), exec, nil)

	var mu sync.Mutex
	var seen []string
	s.OnResult = func(res models.SubTaskResult) {
		mu.Lock()
		seen = append(seen, res.TaskID)
		mu.Unlock()
	}

	defs := []models.TaskDefinition{{ID: "a"}, {ID: "b"}}
	if _, err := s.RunTasks(context.Background(), defs); err != nil {
		t.Fatalf("RunTasks failed: %v", err)
	}

	if len(seen) != 2 {
		t.Errorf("expected 2 result callbacks, got %d", len(seen))
	}
}
