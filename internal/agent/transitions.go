package agent

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DefaultMaxIterations caps how many planning entries a run may make before
// it is forced to a failed terminal state.
const DefaultMaxIterations = 50

// Phase transitions are pure: each takes a state plus new information and
// returns a new state. Terminal states are absorbing — transitions on a
// completed or failed state return it unchanged.

// enterPlanning increments the iteration counter and replaces the current
// thought with the planner's latest output.
func enterPlanning(s RunState, th Thought, now time.Time) RunState {
	if s.Phase.Terminal() {
		return s
	}
	next := s.Snapshot()
	next.Phase = PhasePlanning
	next.Iterations++
	next.Thought = &th
	next.Action = nil
	next.UpdatedAt = now
	return next
}

// enterExecuting sets the proposed action. When the planner proposed no
// action this transition is skipped and the loop proceeds directly to
// evaluating with an empty outcome.
func enterExecuting(s RunState, action ProposedAction, now time.Time) RunState {
	if s.Phase.Terminal() {
		return s
	}
	next := s.Snapshot()
	next.Phase = PhaseExecuting
	next.Action = action.clone()
	next.UpdatedAt = now
	return next
}

// enterEvaluating clears the current action and, when an action was
// attempted, appends exactly one record — also on failure. Records are
// never reordered, removed, or mutated after this point.
func enterEvaluating(s RunState, call *ToolCall, now time.Time) RunState {
	if s.Phase.Terminal() {
		return s
	}
	next := s.Snapshot()
	next.Phase = PhaseEvaluating
	next.Action = nil
	if call != nil {
		c := *call
		c.Args = cloneArgs(call.Args)
		next.ToolCalls = append(next.ToolCalls, c)
	}
	next.UpdatedAt = now
	return next
}

// complete freezes the run in the completed phase. Result and CompletedAt
// are set exactly once, here.
func complete(s RunState, result string, now time.Time) RunState {
	if s.Phase.Terminal() {
		return s
	}
	next := s.Snapshot()
	next.Phase = PhaseCompleted
	next.Result = result
	next.Action = nil
	next.UpdatedAt = now
	next.CompletedAt = &now
	return next
}

// fail freezes the run in the failed phase with a human-readable reason.
func fail(s RunState, reason string, now time.Time) RunState {
	if s.Phase.Terminal() {
		return s
	}
	next := s.Snapshot()
	next.Phase = PhaseFailed
	next.FailReason = reason
	next.Action = nil
	next.UpdatedAt = now
	next.CompletedAt = &now
	return next
}

// shouldContinue is false iff the run is terminal or the iteration cap has
// been reached. The loop checks it before every iteration.
func shouldContinue(s RunState) bool {
	if s.Phase.Terminal() {
		return false
	}
	return s.Iterations < s.MaxIterations
}

// capReason names the iteration cap in the failure reason, so a caller can
// tell exhaustion apart from a fault.
func capReason(max int) string {
	return fmt.Sprintf("iteration cap reached (%d) without task completion", max)
}

// newToolCall starts a record for one action attempt.
func newToolCall(action string, args map[string]any, start time.Time) ToolCall {
	return ToolCall{
		ID:        uuid.Must(uuid.NewV7()).String(),
		Action:    action,
		Args:      cloneArgs(args),
		StartedAt: start,
	}
}
