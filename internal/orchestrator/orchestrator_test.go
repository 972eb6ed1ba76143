package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/droidpilot/droidpilot/internal/device"
	"github.com/droidpilot/droidpilot/internal/planner"
	"github.com/droidpilot/droidpilot/internal/reasoner"
	"github.com/droidpilot/droidpilot/pkg/models"
)

// fakePlanner replays a fixed analysis and a scripted decision sequence.
type fakePlanner struct {
	mu         sync.Mutex
	analysis   *planner.Analysis
	analyzeErr error
	decisions  []*planner.Decision
	decideErr  error

	analyzeCalls int
	decideCalls  int
	lastResults  int
}

func (f *fakePlanner) Analyze(_ context.Context, _ string) (*planner.Analysis, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.analyzeCalls++
	if f.analyzeErr != nil {
		return nil, f.analyzeErr
	}
	return f.analysis, nil
}

func (f *fakePlanner) Decide(_ context.Context, _ string, _ *planner.Analysis, results []models.SubTaskResult) (*planner.Decision, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.decideCalls++
	f.lastResults = len(results)
	if f.decideErr != nil {
		return nil, f.decideErr
	}
	if len(f.decisions) == 0 {
		return planner.CompleteDecision("script exhausted"), nil
	}
	d := f.decisions[0]
	f.decisions = f.decisions[1:]
	return d, nil
}

// instantReasoner finishes every task on its first step. Task IDs listed in
// failing get a reasoning error instead; IDs in failOnce fail only their
// first attempt.
type instantReasoner struct {
	mu       sync.Mutex
	failing  map[string]bool
	failOnce map[string]bool
	attempts map[string]int
}

func (f *instantReasoner) Step(_ context.Context, sc reasoner.StepContext) (*reasoner.StepResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.attempts == nil {
		f.attempts = make(map[string]int)
	}
	f.attempts[sc.Task.ID]++

	if f.failing[sc.Task.ID] {
		return nil, errors.New("reasoning refused")
	}
	if f.failOnce[sc.Task.ID] && f.attempts[sc.Task.ID] == 1 {
		return nil, errors.New("transient reasoning failure")
	}
	raw := fmt.Sprintf(`{"action":"finish","message":"done %s"}`, sc.Task.ID)
	return &reasoner.StepResult{Thinking: "ok", Raw: raw}, nil
}

func multiAnalysis(plans ...planner.SubTaskPlan) *planner.Analysis {
	return &planner.Analysis{
		RequiresMultiTask: true,
		SubTasks:          plans,
		Strategy:          "parallel",
	}
}

func plan(id string, deps ...string) planner.SubTaskPlan {
	return planner.SubTaskPlan{ID: id, Description: "do " + id, DependsOn: deps}
}

func newTestOrchestrator(t *testing.T, p planner.Planner, r reasoner.Reasoner, opts ...Option) *Orchestrator {
	t.Helper()
	if r == nil {
		r = &instantReasoner{}
	}
	o, err := New(RequiredConfig{
		Planner:  p,
		Reasoner: r,
		Screen:   &device.StaticScreen{},
		Actuator: device.LoggingActuator{},
	}, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(o.Close)
	return o
}

func TestNewValidatesRequiredCollaborators(t *testing.T) {
	_, err := New(RequiredConfig{})
	if err == nil {
		t.Fatal("expected error for missing collaborators")
	}
}

func TestOrchestrateSingleTaskPath(t *testing.T) {
	p := &fakePlanner{analysis: planner.SingleTaskAnalysis()}
	o := newTestOrchestrator(t, p, nil)

	res, err := o.Orchestrate(context.Background(), "open settings")
	if err != nil {
		t.Fatalf("Orchestrate: %v", err)
	}

	if !res.Success {
		t.Errorf("expected success, summary:\n%s", res.Summary)
	}
	if len(res.SubTaskResults) != 1 {
		t.Fatalf("expected 1 result, got %d", len(res.SubTaskResults))
	}
	if p.decideCalls != 0 {
		t.Errorf("single-task path must not call Decide, got %d calls", p.decideCalls)
	}
	if o.Phase() != PhaseCompleted {
		t.Errorf("expected completed phase, got %q", o.Phase())
	}
}

func TestOrchestrateAnalyzeFailureFallsBackToSingleTask(t *testing.T) {
	p := &fakePlanner{analyzeErr: errors.New("api unreachable")}
	o := newTestOrchestrator(t, p, nil)

	res, err := o.Orchestrate(context.Background(), "open settings")
	if err != nil {
		t.Fatalf("Orchestrate: %v", err)
	}
	if len(res.SubTaskResults) != 1 {
		t.Fatalf("expected single-task fallback, got %d results", len(res.SubTaskResults))
	}
	if !res.Success {
		t.Errorf("fallback run should still succeed, summary:\n%s", res.Summary)
	}
}

func TestOrchestrateMultiTaskBoundedByGate(t *testing.T) {
	p := &fakePlanner{
		analysis:  multiAnalysis(plan("a"), plan("b"), plan("c")),
		decisions: []*planner.Decision{planner.CompleteDecision("all done")},
	}
	o := newTestOrchestrator(t, p, nil, WithMaxConcurrent(2))

	res, err := o.Orchestrate(context.Background(), "three independent things")
	if err != nil {
		t.Fatalf("Orchestrate: %v", err)
	}

	if len(res.SubTaskResults) != 3 {
		t.Fatalf("expected 3 results, got %d", len(res.SubTaskResults))
	}
	if !res.Success {
		t.Errorf("expected success, summary:\n%s", res.Summary)
	}
	if peak := o.Gate().Peak(); peak > 2 {
		t.Errorf("gate bound violated: peak %d", peak)
	}
	if p.decideCalls != 1 {
		t.Errorf("expected 1 decide call, got %d", p.decideCalls)
	}
}

func TestOrchestrateFailedDependencyStillDispatchesDependent(t *testing.T) {
	p := &fakePlanner{
		analysis:  multiAnalysis(plan("a"), plan("b", "a")),
		decisions: []*planner.Decision{planner.CompleteDecision("done")},
	}
	re := &instantReasoner{failing: map[string]bool{"a": true}}
	o := newTestOrchestrator(t, p, re)

	res, err := o.Orchestrate(context.Background(), "chain")
	if err != nil {
		t.Fatalf("Orchestrate: %v", err)
	}

	if len(res.SubTaskResults) != 2 {
		t.Fatalf("dependent must run after failed dependency, got %d results", len(res.SubTaskResults))
	}
	latest := latestOutcomes(res.SubTaskResults)
	if latest["a"].Success {
		t.Error("task a should have failed")
	}
	if !latest["b"].Success {
		t.Error("task b should have run and succeeded")
	}
	if res.Success {
		t.Error("run with a failed task must not report success")
	}
}

func TestOrchestrateSpawnNewAccumulatesAcrossIterations(t *testing.T) {
	spawn := func(i int) *planner.Decision {
		return &planner.Decision{
			Action:   planner.DecisionSpawnNew,
			NewTasks: []planner.SubTaskPlan{plan(fmt.Sprintf("extra-%d", i))},
			Reason:   "more to do",
		}
	}
	p := &fakePlanner{
		analysis:  multiAnalysis(plan("a")),
		decisions: []*planner.Decision{spawn(1), spawn(2), spawn(3), spawn(4), spawn(5)},
	}
	o := newTestOrchestrator(t, p, nil)

	res, err := o.Orchestrate(context.Background(), "adversarial planner")
	if err != nil {
		t.Fatalf("Orchestrate: %v", err)
	}

	// Five iterations ran: the initial batch plus four spawned batches.
	if len(res.SubTaskResults) != 5 {
		t.Fatalf("expected 5 accumulated results, got %d", len(res.SubTaskResults))
	}
	// Decide runs between iterations only, so the cap allows four calls.
	if p.decideCalls != 4 {
		t.Errorf("expected 4 decide calls, got %d", p.decideCalls)
	}
}

func TestOrchestrateRetryReexecutesOnlyFailedTasks(t *testing.T) {
	p := &fakePlanner{
		analysis: multiAnalysis(plan("a"), plan("b")),
		decisions: []*planner.Decision{
			{Action: planner.DecisionRetry, RetryIDs: []string{"a", "b"}, Reason: "a failed"},
			planner.CompleteDecision("done"),
		},
	}
	re := &instantReasoner{failOnce: map[string]bool{"a": true}}
	o := newTestOrchestrator(t, p, re)

	res, err := o.Orchestrate(context.Background(), "retry case")
	if err != nil {
		t.Fatalf("Orchestrate: %v", err)
	}

	// First iteration: a failed, b succeeded. Retry re-runs a only.
	if len(res.SubTaskResults) != 3 {
		t.Fatalf("expected 3 accumulated results, got %d", len(res.SubTaskResults))
	}
	if re.attempts["a"] != 2 {
		t.Errorf("expected 2 attempts for a, got %d", re.attempts["a"])
	}
	if re.attempts["b"] != 1 {
		t.Errorf("succeeded task must not be retried, got %d attempts", re.attempts["b"])
	}
	if !res.Success {
		t.Errorf("retried run should succeed once the final attempt passes:\n%s", res.Summary)
	}
}

func TestOrchestrateAbortFailsRun(t *testing.T) {
	p := &fakePlanner{
		analysis: multiAnalysis(plan("a")),
		decisions: []*planner.Decision{
			{Action: planner.DecisionAbort, Reason: "unsafe to continue"},
		},
	}
	o := newTestOrchestrator(t, p, nil)

	res, err := o.Orchestrate(context.Background(), "abort case")
	if err != nil {
		t.Fatalf("Orchestrate: %v", err)
	}

	if res.Success {
		t.Error("aborted run must not report success")
	}
	if o.Phase() != PhaseFailed {
		t.Errorf("expected failed phase, got %q", o.Phase())
	}
	if len(res.SubTaskResults) != 1 {
		t.Errorf("recorded results must survive an abort, got %d", len(res.SubTaskResults))
	}
}

func TestOrchestrateDecideFailureCompletesWithResults(t *testing.T) {
	p := &fakePlanner{
		analysis:  multiAnalysis(plan("a")),
		decideErr: errors.New("api unreachable"),
	}
	o := newTestOrchestrator(t, p, nil)

	res, err := o.Orchestrate(context.Background(), "decide failure")
	if err != nil {
		t.Fatalf("Orchestrate: %v", err)
	}
	if len(res.SubTaskResults) != 1 {
		t.Fatalf("expected results from the completed iteration, got %d", len(res.SubTaskResults))
	}
	if !res.Success {
		t.Errorf("decide transport failure must not fail the run:\n%s", res.Summary)
	}
}

func TestOrchestrateRejectsConcurrentRuns(t *testing.T) {
	release := make(chan struct{})
	re := &blockingReasoner{release: release}
	p := &fakePlanner{analysis: planner.SingleTaskAnalysis()}
	o := newTestOrchestrator(t, p, re)

	done := make(chan struct{})
	go func() {
		defer close(done)
		if _, err := o.Orchestrate(context.Background(), "first"); err != nil {
			t.Errorf("first run: %v", err)
		}
	}()

	// Wait for the first run to be inside its task loop.
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) && o.Phase() != PhaseExecuting {
		time.Sleep(time.Millisecond)
	}

	if _, err := o.Orchestrate(context.Background(), "second"); !errors.Is(err, ErrRunInProgress) {
		t.Errorf("expected ErrRunInProgress, got %v", err)
	}

	close(release)
	<-done
}

type blockingReasoner struct {
	release <-chan struct{}
}

func (b *blockingReasoner) Step(ctx context.Context, _ reasoner.StepContext) (*reasoner.StepResult, error) {
	select {
	case <-b.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return &reasoner.StepResult{Raw: `{"action":"finish","message":"done"}`}, nil
}

func TestOrchestrateEmitsToMultipleSubscribers(t *testing.T) {
	p := &fakePlanner{analysis: planner.SingleTaskAnalysis()}
	o := newTestOrchestrator(t, p, nil)

	first := o.Subscribe()
	second := o.Subscribe()

	if _, err := o.Orchestrate(context.Background(), "observed run"); err != nil {
		t.Fatalf("Orchestrate: %v", err)
	}
	o.Close()

	for name, ch := range map[string]<-chan Event{"first": first, "second": second} {
		sawDone := false
		sawFinished := false
		for ev := range ch {
			switch ev.Type {
			case EventRunDone:
				sawDone = true
			case EventTaskFinished:
				sawFinished = true
			}
		}
		if !sawDone {
			t.Errorf("%s subscriber missed run_done", name)
		}
		if !sawFinished {
			t.Errorf("%s subscriber missed task_finished", name)
		}
	}
	if o.DroppedEvents() != 0 {
		t.Errorf("expected no dropped events, got %d", o.DroppedEvents())
	}
}

func TestRunTasksPredefinedBatch(t *testing.T) {
	p := &fakePlanner{}
	o := newTestOrchestrator(t, p, nil)

	defs := []models.TaskDefinition{
		{ID: "a", Description: "do a"},
		{ID: "b", Description: "do b", DependsOn: []string{"a"}},
	}
	results, err := o.RunTasks(context.Background(), defs)
	if err != nil {
		t.Fatalf("RunTasks: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results["a"] != "done a" || results["b"] != "done b" {
		t.Errorf("unexpected results %v", results)
	}
	if p.analyzeCalls != 0 {
		t.Error("predefined batch must bypass planning")
	}
}

func TestOrchestrateStopEndsRunKeepingResults(t *testing.T) {
	p := &fakePlanner{
		analysis: multiAnalysis(plan("a")),
		decisions: []*planner.Decision{
			{Action: planner.DecisionSpawnNew, NewTasks: []planner.SubTaskPlan{plan("never")}},
		},
	}
	o := newTestOrchestrator(t, p, nil)
	o.Stop()

	res, err := o.Orchestrate(context.Background(), "stopped run")
	if err != nil {
		t.Fatalf("Orchestrate: %v", err)
	}
	if p.decideCalls != 0 {
		t.Error("stopped run must not keep deciding")
	}
	if len(res.SubTaskResults) != 1 {
		t.Errorf("expected the dispatched task's result to be kept, got %d", len(res.SubTaskResults))
	}
}
