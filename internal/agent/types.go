// Package agent implements the execution loop: a plan→execute→evaluate
// phase machine that drives a language model planner against a named-action
// executor until the task is judged complete, the run is stopped, a fault
// propagates, or the iteration cap is reached.
package agent

import (
	"context"

	"github.com/nextlevelbuilder/webpilot/internal/tools"
)

// Agent is the host-facing control surface of one loop instance.
type Agent interface {
	// ID identifies this loop instance (the host keys instances by scope).
	ID() string
	// Run executes one task to a terminal state and returns the final state.
	// Only one run may be in flight per instance.
	Run(ctx context.Context, req RunRequest) (RunState, error)
	// Stop cancels the outstanding run, if any. Idempotent: calling it
	// before a run starts, after it finished, or repeatedly never errors
	// and never alters a terminal state.
	Stop()
	// State returns a read-only snapshot of the current run state.
	State() RunState
	// IsRunning reports whether a run is in flight.
	IsRunning() bool
}

// RunRequest carries one task into Run.
type RunRequest struct {
	// Task is the free-text goal for the run.
	Task string
	// TargetID is the browser tab the run operates on; empty means the
	// executor picks the current tab.
	TargetID string
	// RunID overrides the generated run ID when non-empty (used by hosts
	// that hand out IDs before starting the run).
	RunID string
	// MaxIterations caps planning entries; 0 means DefaultMaxIterations.
	MaxIterations int
	// SystemPrompt overrides the default planner system prompt.
	SystemPrompt string
}

// Executor dispatches named actions. Implementations must return a failed
// Result for ordinary failures — panics are treated as contract violations
// fatal to the run.
type Executor interface {
	Dispatch(ctx context.Context, name string, args map[string]any, ec tools.ExecContext) *tools.Result
	Definitions() []tools.Definition
}
