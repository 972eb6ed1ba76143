// Package scheduler partitions task sets into dependency-respecting waves
// and drives each wave through a bounded concurrency gate.
package scheduler

import (
	"sort"

	"github.com/droidpilot/droidpilot/internal/logging"
	"github.com/droidpilot/droidpilot/pkg/models"
)

// GroupByDependency partitions tasks into ordered waves. Every task appears
// in a wave strictly after the waves of all its dependencies. Tasks whose
// dependencies cannot be resolved (cycles, references to absent tasks) are
// emitted together as a forced final wave rather than dropped.
//
// Readiness checks that a dependency has finished, not that it succeeded:
// a task still runs after its dependency failed. Best-effort by design.
func GroupByDependency(tasks []models.TaskDefinition) [][]models.TaskDefinition {
	if len(tasks) == 0 {
		return nil
	}

	remaining := make(map[string]models.TaskDefinition, len(tasks))
	for _, t := range tasks {
		remaining[t.ID] = t
	}
	completed := make(map[string]bool, len(tasks))

	var waves [][]models.TaskDefinition
	for len(remaining) > 0 {
		var ready []models.TaskDefinition
		for _, t := range remaining {
			if depsSatisfied(t, completed) {
				ready = append(ready, t)
			}
		}

		if len(ready) == 0 {
			// Cycle or unresolved dependency. Force the remainder into a
			// final wave so no task is silently lost.
			forced := make([]models.TaskDefinition, 0, len(remaining))
			for _, t := range remaining {
				forced = append(forced, t)
			}
			sortWave(forced)
			logging.Debugf("[graph] forced final wave with %d unresolvable tasks", len(forced))
			waves = append(waves, forced)
			break
		}

		sortWave(ready)
		for _, t := range ready {
			completed[t.ID] = true
			delete(remaining, t.ID)
		}
		logging.Debugf("[graph] wave %d: %d tasks", len(waves), len(ready))
		waves = append(waves, ready)
	}

	return waves
}

// depsSatisfied returns true if every dependency of t is in completed.
// Dependencies on IDs outside the task set never become satisfied; those
// tasks end up in the forced final wave.
func depsSatisfied(t models.TaskDefinition, completed map[string]bool) bool {
	for _, dep := range t.DependsOn {
		if !completed[dep] {
			return false
		}
	}
	return true
}

// sortWave orders a wave by priority (descending) then ID, so output is
// deterministic. Tasks within a wave still run concurrently; this only
// affects dispatch order when the gate is contended.
func sortWave(wave []models.TaskDefinition) {
	sort.SliceStable(wave, func(i, j int) bool {
		if wave[i].Priority != wave[j].Priority {
			return wave[i].Priority > wave[j].Priority
		}
		return wave[i].ID < wave[j].ID
	})
}

// HasCycle returns true if the task set contains a circular dependency.
// Uses depth-first search with coloring to detect back edges. Dependencies
// on unknown IDs are not cycles and are ignored here.
func HasCycle(tasks []models.TaskDefinition) bool {
	edges := make(map[string][]string, len(tasks))
	known := make(map[string]bool, len(tasks))
	for _, t := range tasks {
		known[t.ID] = true
	}
	for _, t := range tasks {
		for _, dep := range t.DependsOn {
			if known[dep] {
				edges[t.ID] = append(edges[t.ID], dep)
			}
		}
	}

	// 0 = unvisited, 1 = in progress, 2 = done.
	colors := make(map[string]int, len(tasks))

	var visit func(id string) bool
	visit = func(id string) bool {
		colors[id] = 1
		for _, dep := range edges[id] {
			switch colors[dep] {
			case 1:
				return true
			case 0:
				if visit(dep) {
					return true
				}
			}
		}
		colors[id] = 2
		return false
	}

	for _, t := range tasks {
		if colors[t.ID] == 0 {
			if visit(t.ID) {
				return true
			}
		}
	}
	return false
}
