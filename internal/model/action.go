package model

// Action timeout bounds in seconds.
const (
	ActionTimeoutMin     = 1
	ActionTimeoutMax     = 300
	ActionTimeoutDefault = 30
)

// ActionType is a governed side-effectful operation. InputSchema is a JSON
// Schema fragment validated against action arguments before dispatch.
type ActionType struct {
	Name           string         `json:"name"`
	Description    string         `json:"description,omitempty"`
	InputSchema    map[string]any `json:"input_schema,omitempty"`
	Preconditions  []string       `json:"preconditions,omitempty"`
	Effects        []string       `json:"effects,omitempty"`
	PolicyRef      string         `json:"policy_ref"`
	TimeoutSeconds int            `json:"timeout_seconds"`
	Idempotent     bool           `json:"idempotent"`
}

// EffectiveTimeout returns the action timeout clamped into the allowed range.
func (a *ActionType) EffectiveTimeout() int {
	t := a.TimeoutSeconds
	if t == 0 {
		t = ActionTimeoutDefault
	}
	if t < ActionTimeoutMin {
		t = ActionTimeoutMin
	}
	if t > ActionTimeoutMax {
		t = ActionTimeoutMax
	}
	return t
}
