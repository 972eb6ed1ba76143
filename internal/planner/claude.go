package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/droidpilot/droidpilot/internal/api"
	"github.com/droidpilot/droidpilot/pkg/models"
)

const analyzeSystemPrompt = `You are the planning component of a mobile automation agent.
Given a user task, decide whether it decomposes into independent sub-tasks
that can run concurrently on separate displays.

Respond with JSON only:
{"requires_multi_task": bool, "strategy": "<short>", "complexity": "low|medium|high",
 "sub_tasks": [{"id": "<slug>", "description": "<instruction>", "target_app": "<package or empty>",
                "priority": <int>, "depends_on": ["<id>", ...]}]}

Only set requires_multi_task when sub-tasks are genuinely independent.
Dependencies must reference ids within the same plan.`

const decideSystemPrompt = `You are reviewing one round of sub-task execution for a mobile
automation agent. Decide how to proceed.

Respond with JSON only:
{"action": "CONTINUE|SPAWN_NEW|RETRY|COMPLETE|ABORT", "reason": "<short>",
 "new_tasks": [...same shape as sub_tasks...], "retry_ids": ["<id>", ...]}

CONTINUE or COMPLETE accept the current results. SPAWN_NEW provides a new
batch of sub-tasks. RETRY names failed tasks to run again. ABORT stops the
run immediately.`

// ClaudePlanner implements Planner over the Anthropic API.
type ClaudePlanner struct {
	client *api.Client
}

// NewClaudePlanner creates a planner over the given API client.
func NewClaudePlanner(client *api.Client) *ClaudePlanner {
	return &ClaudePlanner{client: client}
}

// Analyze decomposes the task text. The reply is parsed with ParseAnalysis,
// so a malformed reply comes back as the single-task fallback, not an error.
func (p *ClaudePlanner) Analyze(ctx context.Context, task string) (*Analysis, error) {
	reply, err := p.client.Complete(ctx, analyzeSystemPrompt, 4096,
		anthropic.NewTextBlock(fmt.Sprintf("Task: %s", task)))
	if err != nil {
		return nil, fmt.Errorf("analyze task: %w", err)
	}
	return ParseAnalysis(reply), nil
}

// Decide reviews the accumulated results. The reply is parsed with
// ParseDecision, so a malformed reply comes back as COMPLETE, not an error.
func (p *ClaudePlanner) Decide(ctx context.Context, task string, analysis *Analysis, results []models.SubTaskResult) (*Decision, error) {
	reply, err := p.client.Complete(ctx, decideSystemPrompt, 4096,
		anthropic.NewTextBlock(buildDecidePrompt(task, analysis, results)))
	if err != nil {
		return nil, fmt.Errorf("decide next round: %w", err)
	}
	return ParseDecision(reply), nil
}

// buildDecidePrompt renders the original task, strategy, and all results
// accumulated so far.
func buildDecidePrompt(task string, analysis *Analysis, results []models.SubTaskResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Original task: %s\n", task)
	if analysis != nil && analysis.Strategy != "" {
		fmt.Fprintf(&b, "Strategy: %s\n", analysis.Strategy)
	}

	b.WriteString("\nResults so far:\n")
	for _, res := range results {
		status := "ok"
		if !res.Success {
			status = "failed"
		}
		line, err := json.Marshal(res)
		if err != nil {
			fmt.Fprintf(&b, "- %s [%s]: %s\n", res.TaskID, status, res.Result)
			continue
		}
		fmt.Fprintf(&b, "- %s\n", line)
	}

	b.WriteString("\nDecide how to proceed.")
	return b.String()
}
