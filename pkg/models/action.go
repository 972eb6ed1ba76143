package models

// ActionKind identifies the kind of device action the reasoner requested.
type ActionKind string

const (
	// ActionTap taps at (X, Y).
	ActionTap ActionKind = "tap"
	// ActionSwipe swipes from (X, Y) to (X2, Y2) over DurationMS.
	ActionSwipe ActionKind = "swipe"
	// ActionText types Text into the focused field.
	ActionText ActionKind = "text"
	// ActionKey presses the key named in Key (back, home, enter, ...).
	ActionKey ActionKind = "key"
	// ActionLaunch launches the app package named in App.
	ActionLaunch ActionKind = "launch"
	// ActionWait idles for DurationMS before the next step.
	ActionWait ActionKind = "wait"
	// ActionFinish ends the task; Message carries the result.
	ActionFinish ActionKind = "finish"
	// ActionTakeover asks the user to perform a step manually, then continues.
	ActionTakeover ActionKind = "takeover"
)

// Valid returns true if the kind is a known value.
func (k ActionKind) Valid() bool {
	switch k {
	case ActionTap, ActionSwipe, ActionText, ActionKey, ActionLaunch,
		ActionWait, ActionFinish, ActionTakeover:
		return true
	default:
		return false
	}
}

// Action is one device interaction requested by the reasoner. Only the
// fields relevant to Kind are set.
type Action struct {
	Kind       ActionKind `json:"action"`
	X          int        `json:"x,omitempty"`
	Y          int        `json:"y,omitempty"`
	X2         int        `json:"x2,omitempty"`
	Y2         int        `json:"y2,omitempty"`
	Text       string     `json:"text,omitempty"`
	Key        string     `json:"key,omitempty"`
	App        string     `json:"app,omitempty"`
	DurationMS int        `json:"duration_ms,omitempty"`
	// Message carries the result text for finish actions and the prompt
	// for takeover actions.
	Message string `json:"message,omitempty"`
	// Sensitive marks actions that need user confirmation before dispatch
	// (payments, deletions, sending messages).
	Sensitive bool `json:"sensitive,omitempty"`
}

// IsFinish returns true if the action ends the task.
func (a Action) IsFinish() bool {
	return a.Kind == ActionFinish
}

// Finish returns a finish action carrying the given result message.
func Finish(message string) Action {
	return Action{Kind: ActionFinish, Message: message}
}
