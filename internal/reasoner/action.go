package reasoner

import (
	"encoding/json"
	"strings"

	"github.com/droidpilot/droidpilot/pkg/models"
)

// ParseAction parses a model reply into a device action. It is total: a
// malformed or empty reply degrades to a synthetic finish action carrying
// the raw text as the result message, so the task ends gracefully instead
// of raising an error.
func ParseAction(raw string) models.Action {
	payload := extractJSONObject(raw)
	if payload == "" {
		return models.Finish(strings.TrimSpace(raw))
	}

	var action models.Action
	if err := json.Unmarshal([]byte(payload), &action); err != nil {
		return models.Finish(strings.TrimSpace(raw))
	}

	if !action.Kind.Valid() {
		return models.Finish(strings.TrimSpace(raw))
	}

	return action
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
