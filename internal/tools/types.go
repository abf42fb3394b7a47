// Package tools implements the named-action executor: a validated registry
// of actions the agent loop can dispatch by name.
package tools

import "context"

// ExecContext carries ambient execution context into an action.
type ExecContext struct {
	// TargetID is the browser tab the action operates on. Empty means the
	// backend picks the current tab.
	TargetID string
	// RunID identifies the agent run dispatching the action.
	RunID string
	// Scope is the host-level key the run belongs to (used for rate limiting).
	Scope string
}

// Action is the interface all actions implement. Execute must return a
// failed Result for ordinary failures — it must not panic for them.
type Action interface {
	Name() string
	Description() string
	// Parameters is a JSON-schema object describing the action's arguments.
	Parameters() map[string]any
	Execute(ctx context.Context, args map[string]any, ec ExecContext) *Result
}

// Definition describes a registered action to the planner.
type Definition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Describe converts an Action into its planner-facing definition.
func Describe(a Action) Definition {
	return Definition{
		Name:        a.Name(),
		Description: a.Description(),
		Parameters:  a.Parameters(),
	}
}

// StringArg extracts a string argument, tolerating missing keys.
func StringArg(args map[string]any, key string) string {
	if args == nil {
		return ""
	}
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}

// BoolArg extracts a boolean argument.
func BoolArg(args map[string]any, key string) bool {
	if args == nil {
		return false
	}
	if v, ok := args[key].(bool); ok {
		return v
	}
	return false
}

// IntArg extracts an integer argument. JSON numbers arrive as float64.
func IntArg(args map[string]any, key string) int {
	if args == nil {
		return 0
	}
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return 0
}
