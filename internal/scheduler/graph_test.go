package scheduler

import (
	"testing"

	"github.com/droidpilot/droidpilot/pkg/models"
)

func waveIndex(waves [][]models.TaskDefinition, id string) int {
	for i, wave := range waves {
		for _, t := range wave {
			if t.ID == id {
				return i
			}
		}
	}
	return -1
}

func TestGroupByDependencyIndependentTasks(t *testing.T) {
	tasks := []models.TaskDefinition{
		{ID: "a", Description: "task a"},
		{ID: "b", Description: "task b"},
		{ID: "c", Description: "task c"},
	}

	waves := GroupByDependency(tasks)
	if len(waves) != 1 {
		t.Fatalf("expected 1 wave, got %d", len(waves))
	}
	if len(waves[0]) != 3 {
		t.Errorf("expected 3 tasks in wave, got %d", len(waves[0]))
	}
}

func TestGroupByDependencyChain(t *testing.T) {
	tasks := []models.TaskDefinition{
		{ID: "c", DependsOn: []string{"b"}},
		{ID: "a"},
		{ID: "b", DependsOn: []string{"a"}},
	}

	waves := GroupByDependency(tasks)
	if len(waves) != 3 {
		t.Fatalf("expected 3 waves, got %d", len(waves))
	}
	for _, id := range []string{"a", "b", "c"} {
		if got, want := waveIndex(waves, id), map[string]int{"a": 0, "b": 1, "c": 2}[id]; got != want {
			t.Errorf("task %s: expected wave %d, got %d", id, want, got)
		}
	}
}

func TestGroupByDependencyWaveOrdering(t *testing.T) {
	// Every task's wave must come strictly after the waves of its deps.
	tasks := []models.TaskDefinition{
		{ID: "deploy", DependsOn: []string{"build", "test"}},
		{ID: "build", DependsOn: []string{"fetch"}},
		{ID: "test", DependsOn: []string{"fetch"}},
		{ID: "fetch"},
		{ID: "notify", DependsOn: []string{"deploy"}},
	}

	waves := GroupByDependency(tasks)
	for _, task := range tasks {
		for _, dep := range task.DependsOn {
			if waveIndex(waves, task.ID) <= waveIndex(waves, dep) {
				t.Errorf("task %s (wave %d) must come after dependency %s (wave %d)",
					task.ID, waveIndex(waves, task.ID), dep, waveIndex(waves, dep))
			}
		}
	}
}

func TestGroupByDependencyCycleForcesFinalWave(t *testing.T) {
	tasks := []models.TaskDefinition{
		{ID: "a", DependsOn: []string{"b"}},
		{ID: "b", DependsOn: []string{"a"}},
		{ID: "c"},
	}

	waves := GroupByDependency(tasks)
	if len(waves) != 2 {
		t.Fatalf("expected 2 waves (ready + forced), got %d", len(waves))
	}
	if waveIndex(waves, "c") != 0 {
		t.Errorf("expected c in wave 0, got %d", waveIndex(waves, "c"))
	}
	// The cyclic pair is emitted rather than dropped.
	if waveIndex(waves, "a") != 1 || waveIndex(waves, "b") != 1 {
		t.Error("expected cyclic tasks in the forced final wave")
	}
}

func TestGroupByDependencyUnknownDependency(t *testing.T) {
	tasks := []models.TaskDefinition{
		{ID: "a"},
		{ID: "b", DependsOn: []string{"ghost"}},
	}

	waves := GroupByDependency(tasks)
	if len(waves) != 2 {
		t.Fatalf("expected 2 waves, got %d", len(waves))
	}
	if waveIndex(waves, "b") != 1 {
		t.Error("task with unresolvable dependency must land in the forced wave")
	}
}

func TestGroupByDependencyPriorityOrdering(t *testing.T) {
	tasks := []models.TaskDefinition{
		{ID: "low", Priority: 1},
		{ID: "high", Priority: 9},
		{ID: "mid", Priority: 5},
	}

	waves := GroupByDependency(tasks)
	if len(waves) != 1 {
		t.Fatalf("expected 1 wave, got %d", len(waves))
	}
	order := []string{waves[0][0].ID, waves[0][1].ID, waves[0][2].ID}
	want := []string{"high", "mid", "low"}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], order[i])
		}
	}
}

func TestGroupByDependencyEmpty(t *testing.T) {
	if waves := GroupByDependency(nil); waves != nil {
		t.Errorf("expected nil waves for empty input, got %v", waves)
	}
}

func TestHasCycle(t *testing.T) {
	cyclic := []models.TaskDefinition{
		{ID: "a", DependsOn: []string{"b"}},
		{ID: "b", DependsOn: []string{"c"}},
		{ID: "c", DependsOn: []string{"a"}},
	}
	if !HasCycle(cyclic) {
		t.Error("expected cycle to be detected")
	}

	acyclic := []models.TaskDefinition{
		{ID: "a"},
		{ID: "b", DependsOn: []string{"a"}},
		{ID: "c", DependsOn: []string{"a", "b"}},
	}
	if HasCycle(acyclic) {
		t.Error("expected no cycle")
	}

	// Unknown dependencies are not cycles.
	dangling := []models.TaskDefinition{
		{ID: "a", DependsOn: []string{"ghost"}},
	}
	if HasCycle(dangling) {
		t.Error("dangling dependency must not be reported as a cycle")
	}
}
