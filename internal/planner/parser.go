package planner

import (
	"encoding/json"
	"strings"
)

// ParseAnalysis parses a planner reply into an Analysis. It is total:
// malformed replies yield the single-task fallback, never an error.
func ParseAnalysis(raw string) *Analysis {
	payload := extractJSONObject(raw)
	if payload == "" {
		return SingleTaskAnalysis()
	}

	var analysis Analysis
	if err := json.Unmarshal([]byte(payload), &analysis); err != nil {
		return SingleTaskAnalysis()
	}

	// A multi-task claim without sub-tasks is unusable; treat as single.
	if analysis.RequiresMultiTask && len(analysis.SubTasks) == 0 {
		return SingleTaskAnalysis()
	}

	// Drop sub-tasks the scheduler cannot identify.
	kept := analysis.SubTasks[:0]
	for _, st := range analysis.SubTasks {
		if strings.TrimSpace(st.ID) != "" && strings.TrimSpace(st.Description) != "" {
			kept = append(kept, st)
		}
	}
	analysis.SubTasks = kept
	if analysis.RequiresMultiTask && len(analysis.SubTasks) == 0 {
		return SingleTaskAnalysis()
	}

	return &analysis
}

// ParseDecision parses a planner reply into a Decision. It is total:
// malformed replies and unknown actions yield the COMPLETE fallback.
func ParseDecision(raw string) *Decision {
	payload := extractJSONObject(raw)
	if payload == "" {
		return CompleteDecision("unparsable decision")
	}

	var decision Decision
	if err := json.Unmarshal([]byte(payload), &decision); err != nil {
		return CompleteDecision("unparsable decision")
	}

	decision.Action = DecisionAction(strings.ToUpper(strings.TrimSpace(string(decision.Action))))
	if !decision.Action.Valid() {
		return CompleteDecision("unknown decision action")
	}

	// A SPAWN_NEW without tasks and a RETRY without IDs have nothing to
	// execute; completing is the safe reading.
	if decision.Action == DecisionSpawnNew && len(decision.NewTasks) == 0 {
		return CompleteDecision("spawn_new without tasks")
	}
	if decision.Action == DecisionRetry && len(decision.RetryIDs) == 0 {
		return CompleteDecision("retry without task ids")
	}

	return &decision
}

// extractJSONObject returns the first top-level {...} slice of the reply,
// tolerating surrounding prose and markdown fences.
func extractJSONObject(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}
