package agent

import (
	"time"

	"github.com/google/uuid"
)

// Phase is the lifecycle stage of a run.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhasePlanning   Phase = "planning"
	PhaseExecuting  Phase = "executing"
	PhaseEvaluating Phase = "evaluating"
	PhaseCompleted  Phase = "completed"
	PhaseFailed     Phase = "failed"
)

// Terminal reports whether the phase is absorbing: no further transitions
// are legal once a run reaches it.
func (p Phase) Terminal() bool {
	return p == PhaseCompleted || p == PhaseFailed
}

// ActionSource tags how a proposed action was obtained from planner output.
type ActionSource string

const (
	// SourceStructured — parsed from an embedded JSON object.
	SourceStructured ActionSource = "structured"
	// SourceHeuristic — salvaged from raw text by keyword extraction.
	SourceHeuristic ActionSource = "heuristic"
)

// Thought is the planner's output for one planning entry.
type Thought struct {
	Text       string  `json:"text"`
	Reasoning  string  `json:"reasoning,omitempty"`
	Confidence float64 `json:"confidence"`
}

// ProposedAction is an action the planner wants executed next.
type ProposedAction struct {
	Name   string         `json:"name"`
	Args   map[string]any `json:"args,omitempty"`
	Source ActionSource   `json:"source"`
}

func (a *ProposedAction) clone() *ProposedAction {
	if a == nil {
		return nil
	}
	c := *a
	c.Args = cloneArgs(a.Args)
	return &c
}

// ToolCall is the immutable record of one attempted action. It is created
// exactly once, when the attempt concludes, and never mutated afterwards.
type ToolCall struct {
	ID        string         `json:"id"`
	Action    string         `json:"action"`
	Args      map[string]any `json:"args,omitempty"`
	Output    string         `json:"output,omitempty"`
	Error     string         `json:"error,omitempty"`
	OK        bool           `json:"ok"`
	StartedAt time.Time      `json:"startedAt"`
	Duration  time.Duration  `json:"duration"`
}

// RunState describes one execution of the loop. It is a value: transitions
// copy it, the owning Loop is its only writer, and callers only ever see
// snapshots.
type RunState struct {
	RunID         string           `json:"runId"`
	Task          string           `json:"task"`
	Phase         Phase            `json:"phase"`
	Iterations    int              `json:"iterations"`
	MaxIterations int              `json:"maxIterations"`
	Thought       *Thought         `json:"thought,omitempty"`
	Action        *ProposedAction  `json:"action,omitempty"`
	ToolCalls     []ToolCall       `json:"toolCalls"`
	Result        string           `json:"result,omitempty"`
	FailReason    string           `json:"failReason,omitempty"`
	CreatedAt     time.Time        `json:"createdAt"`
	UpdatedAt     time.Time        `json:"updatedAt"`
	CompletedAt   *time.Time       `json:"completedAt,omitempty"`
}

// NewRunState creates a fresh idle state for one run() invocation.
// No state survives between separate tasks.
func NewRunState(task string, maxIterations int) RunState {
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}
	now := time.Now()
	return RunState{
		RunID:         uuid.Must(uuid.NewV7()).String(),
		Task:          task,
		Phase:         PhaseIdle,
		MaxIterations: maxIterations,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// Snapshot returns a defensive deep copy. Mutating the returned value never
// affects the state it was copied from.
func (s RunState) Snapshot() RunState {
	c := s
	c.Thought = cloneThought(s.Thought)
	c.Action = s.Action.clone()
	if s.ToolCalls != nil {
		c.ToolCalls = make([]ToolCall, len(s.ToolCalls))
		for i, tc := range s.ToolCalls {
			tc.Args = cloneArgs(tc.Args)
			c.ToolCalls[i] = tc
		}
	}
	if s.CompletedAt != nil {
		t := *s.CompletedAt
		c.CompletedAt = &t
	}
	return c
}

// LastToolCall returns the most recent tool call record, if any.
func (s RunState) LastToolCall() (ToolCall, bool) {
	if len(s.ToolCalls) == 0 {
		return ToolCall{}, false
	}
	return s.ToolCalls[len(s.ToolCalls)-1], true
}

func cloneThought(t *Thought) *Thought {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

// cloneArgs deep-copies an args map. Decoded JSON only ever nests
// map[string]any and []any, so those are the containers copied; scalar
// values are shared, which is safe because they are immutable.
func cloneArgs(args map[string]any) map[string]any {
	if args == nil {
		return nil
	}
	c := make(map[string]any, len(args))
	for k, v := range args {
		c[k] = cloneValue(v)
	}
	return c
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneArgs(t)
	case []any:
		c := make([]any, len(t))
		for i, e := range t {
			c[i] = cloneValue(e)
		}
		return c
	default:
		return v
	}
}
