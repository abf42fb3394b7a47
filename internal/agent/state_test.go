package agent

import (
	"testing"
	"time"
)

func TestNewRunState_Defaults(t *testing.T) {
	s := NewRunState("find the docs", 0)
	if s.Phase != PhaseIdle {
		t.Errorf("expected idle, got %s", s.Phase)
	}
	if s.MaxIterations != DefaultMaxIterations {
		t.Errorf("expected default cap %d, got %d", DefaultMaxIterations, s.MaxIterations)
	}
	if s.RunID == "" {
		t.Error("expected a generated run ID")
	}
	if s.Iterations != 0 {
		t.Errorf("expected 0 iterations, got %d", s.Iterations)
	}
}

func TestSnapshot_IndependentlyMutable(t *testing.T) {
	s := NewRunState("task", 5)
	s.Thought = &Thought{Text: "thinking"}
	s.Action = &ProposedAction{Name: "click", Args: map[string]any{"ref": "e1"}}
	s.ToolCalls = []ToolCall{{ID: "tc1", Action: "navigate", Args: map[string]any{"url": "https://a"}}}
	now := time.Now()
	s.CompletedAt = &now

	snap := s.Snapshot()

	snap.Thought.Text = "mutated"
	snap.Action.Args["ref"] = "e99"
	snap.ToolCalls[0].Action = "mutated"
	snap.ToolCalls[0].Args["url"] = "https://b"
	snap.ToolCalls = append(snap.ToolCalls, ToolCall{ID: "tc2"})
	*snap.CompletedAt = now.Add(time.Hour)

	if s.Thought.Text != "thinking" {
		t.Error("thought leaked through snapshot")
	}
	if s.Action.Args["ref"] != "e1" {
		t.Error("action args leaked through snapshot")
	}
	if s.ToolCalls[0].Action != "navigate" || s.ToolCalls[0].Args["url"] != "https://a" {
		t.Error("tool call leaked through snapshot")
	}
	if len(s.ToolCalls) != 1 {
		t.Error("tool call list length changed via snapshot")
	}
	if !s.CompletedAt.Equal(now) {
		t.Error("completedAt leaked through snapshot")
	}
}

func TestSnapshot_NestedArgsIndependent(t *testing.T) {
	s := NewRunState("task", 5)
	s.Action = &ProposedAction{
		Name: "script",
		Args: map[string]any{
			"outer": map[string]any{"inner": "original"},
			"list":  []any{"a", map[string]any{"k": "v"}},
		},
	}
	s.ToolCalls = []ToolCall{{
		ID:     "tc1",
		Action: "script",
		Args:   map[string]any{"outer": map[string]any{"inner": "original"}},
	}}

	snap := s.Snapshot()

	snap.Action.Args["outer"].(map[string]any)["inner"] = "mutated"
	snap.Action.Args["list"].([]any)[0] = "mutated"
	snap.Action.Args["list"].([]any)[1].(map[string]any)["k"] = "mutated"
	snap.ToolCalls[0].Args["outer"].(map[string]any)["inner"] = "mutated"

	if s.Action.Args["outer"].(map[string]any)["inner"] != "original" {
		t.Error("nested action args leaked through snapshot")
	}
	list := s.Action.Args["list"].([]any)
	if list[0] != "a" || list[1].(map[string]any)["k"] != "v" {
		t.Error("nested slice args leaked through snapshot")
	}
	if s.ToolCalls[0].Args["outer"].(map[string]any)["inner"] != "original" {
		t.Error("nested tool call args leaked through snapshot")
	}
}

func TestSnapshot_ValueEqual(t *testing.T) {
	s := NewRunState("task", 5)
	s.ToolCalls = []ToolCall{{ID: "tc1", Action: "extract", OK: true}}

	snap := s.Snapshot()
	if snap.RunID != s.RunID || snap.Task != s.Task || snap.Phase != s.Phase {
		t.Error("snapshot differs from source")
	}
	if len(snap.ToolCalls) != 1 || snap.ToolCalls[0].ID != "tc1" {
		t.Error("snapshot tool calls differ from source")
	}
}

func TestLastToolCall(t *testing.T) {
	s := NewRunState("task", 5)
	if _, ok := s.LastToolCall(); ok {
		t.Error("expected no tool call on a fresh state")
	}

	s.ToolCalls = []ToolCall{{ID: "a"}, {ID: "b"}}
	last, ok := s.LastToolCall()
	if !ok || last.ID != "b" {
		t.Errorf("expected last tool call b, got %+v ok=%v", last, ok)
	}
}
