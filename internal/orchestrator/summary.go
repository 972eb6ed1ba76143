package orchestrator

import (
	"fmt"
	"strings"
	"time"

	"github.com/droidpilot/droidpilot/pkg/models"
)

// latestOutcomes reduces the accumulated result list to the most recent
// result per task, so retried tasks are judged by their final attempt.
func latestOutcomes(results []models.SubTaskResult) map[string]models.SubTaskResult {
	latest := make(map[string]models.SubTaskResult, len(results))
	for _, res := range results {
		latest[res.TaskID] = res
	}
	return latest
}

// allLatestSucceeded reports whether every task's final attempt succeeded.
// An empty result list counts as failure: nothing was accomplished.
func allLatestSucceeded(results []models.SubTaskResult) bool {
	latest := latestOutcomes(results)
	if len(latest) == 0 {
		return false
	}
	for _, res := range latest {
		if !res.Success {
			return false
		}
	}
	return true
}

// buildSummary derives the run summary text from the accumulated results.
// Pure formatting over the result list; no decision logic reads it.
func buildSummary(command string, results []models.SubTaskResult, aborted, stopped bool) string {
	latest := latestOutcomes(results)

	succeeded := 0
	failed := 0
	totalSteps := 0
	for _, res := range latest {
		if res.Success {
			succeeded++
		} else {
			failed++
		}
		totalSteps += res.StepsExecuted
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Command: %s\n", command)

	switch {
	case aborted:
		b.WriteString("Run aborted by the planner.\n")
	case stopped:
		b.WriteString("Run stopped by user.\n")
	}

	fmt.Fprintf(&b, "Tasks: %d succeeded, %d failed (%d attempts, %d steps total)\n",
		succeeded, failed, len(results), totalSteps)

	for _, res := range results {
		status := "ok"
		if !res.Success {
			status = "failed"
		}
		line := res.Result
		if line == "" {
			line = "(no result text)"
		}
		fmt.Fprintf(&b, "  [%s] %s: %s (%d steps, %s)\n",
			status, res.TaskID, line, res.StepsExecuted, res.Duration.Round(10*time.Millisecond))
	}

	return b.String()
}
