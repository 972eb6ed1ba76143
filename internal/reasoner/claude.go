package reasoner

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/droidpilot/droidpilot/internal/api"
)

const stepSystemPrompt = `You are a mobile UI automation agent. You see a screenshot of the
current screen and decide the single next action to make progress on the task.

Respond with a JSON object of this shape and nothing else:
{"thinking": "<brief reasoning>", "action": {"action": "tap|swipe|text|key|launch|wait|finish|takeover", ...}}

Action fields: tap uses x,y. swipe uses x,y,x2,y2,duration_ms. text uses text.
key uses key (back, home, enter). launch uses app. wait uses duration_ms.
finish uses message with the task result. takeover uses message to describe
what the user must do manually. Mark actions that spend money, delete data,
or send messages with "sensitive": true.`

// ClaudeReasoner asks Claude for the next device action, grounding each
// request on the current screenshot.
type ClaudeReasoner struct {
	client *api.Client
}

// NewClaudeReasoner creates a reasoner over the given API client.
func NewClaudeReasoner(client *api.Client) *ClaudeReasoner {
	return &ClaudeReasoner{client: client}
}

// Step sends the screenshot and step context to Claude and returns its
// reply. Transport and API errors are returned as-is; the caller treats
// them as reasoning failures.
func (r *ClaudeReasoner) Step(ctx context.Context, sc StepContext) (*StepResult, error) {
	if sc.Frame == nil {
		return nil, fmt.Errorf("no frame in step context")
	}

	blocks := []anthropic.ContentBlockParamUnion{
		anthropic.NewImageBlockBase64("image/png", base64.StdEncoding.EncodeToString(sc.Frame.PNG)),
		anthropic.NewTextBlock(buildStepPrompt(sc)),
	}

	reply, err := r.client.Complete(ctx, stepSystemPrompt, 2048, blocks...)
	if err != nil {
		return nil, fmt.Errorf("reasoning step: %w", err)
	}

	return splitReply(reply), nil
}

// buildStepPrompt renders the task, budget, and prior exchanges into the
// textual half of the request.
func buildStepPrompt(sc StepContext) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Task: %s\n", sc.Task.Description)
	if sc.Task.TargetApp != "" {
		fmt.Fprintf(&b, "Target app: %s\n", sc.Task.TargetApp)
	}
	fmt.Fprintf(&b, "Step %d of %d.\n", sc.Step+1, sc.MaxSteps)
	fmt.Fprintf(&b, "Screen is %dx%d.\n", sc.Frame.Width, sc.Frame.Height)

	if len(sc.History) > 0 {
		b.WriteString("\nPrevious steps:\n")
		for i, ex := range sc.History {
			fmt.Fprintf(&b, "%d. %s -> %s (%s)\n", i+1, ex.Thinking, ex.Action, ex.Outcome)
		}
	}

	b.WriteString("\nDecide the next action.")
	return b.String()
}

// splitReply separates the thinking text from the raw action payload.
// Replies that don't match the expected envelope are passed through whole;
// ParseAction handles the degraded case.
func splitReply(reply string) *StepResult {
	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start < 0 || end <= start {
		return &StepResult{Raw: reply}
	}

	var envelope struct {
		Thinking string          `json:"thinking"`
		Action   json.RawMessage `json:"action"`
	}
	if err := json.Unmarshal([]byte(reply[start:end+1]), &envelope); err != nil || len(envelope.Action) == 0 {
		return &StepResult{Raw: reply}
	}

	return &StepResult{
		Thinking: envelope.Thinking,
		Raw:      string(envelope.Action),
	}
}
