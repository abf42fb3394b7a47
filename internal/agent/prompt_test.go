package agent

import (
	"strings"
	"testing"
	"time"

	"github.com/nextlevelbuilder/webpilot/internal/tools"
)

func TestBuildSystemPrompt_ListsActions(t *testing.T) {
	prompt := buildSystemPrompt([]tools.Definition{
		{Name: "navigate", Description: "go to a url", Parameters: map[string]any{"type": "object"}},
		{Name: "click", Description: "click an element", Parameters: map[string]any{"type": "object"}},
	})
	if !strings.Contains(prompt, "navigate") || !strings.Contains(prompt, "click") {
		t.Error("prompt should list action names")
	}
	if !strings.Contains(prompt, `"action"`) {
		t.Error("prompt should describe the JSON output format")
	}
}

func TestPlanningMessages_WindowsHistory(t *testing.T) {
	s := NewRunState("the task", 50)
	for i := 0; i < 15; i++ {
		s.ToolCalls = append(s.ToolCalls, ToolCall{
			ID: "tc", Action: "extract", OK: true, Output: "page text",
		})
	}

	msgs := planningMessages("sys", s, 10, 0)
	if msgs[0].Role != "system" || msgs[0].Content != "sys" {
		t.Error("first message should be the system prompt")
	}
	if !strings.Contains(msgs[1].Content, "the task") {
		t.Error("second message should carry the task")
	}

	var history string
	for _, m := range msgs {
		if strings.Contains(m.Content, "Previous actions") {
			history = m.Content
		}
	}
	if history == "" {
		t.Fatal("expected a history message")
	}
	if got := strings.Count(history, "- extract("); got != 10 {
		t.Errorf("history entries: %d", got)
	}
}

func TestPlanningMessages_NoHistoryMessageWhenEmpty(t *testing.T) {
	s := NewRunState("t", 50)
	msgs := planningMessages("sys", s, 10, 0)
	for _, m := range msgs {
		if strings.Contains(m.Content, "Previous actions") {
			t.Error("fresh run should have no history message")
		}
	}
}

func TestPlanningMessages_BudgetDropsOldestFirst(t *testing.T) {
	s := NewRunState("t", 50)
	big := strings.Repeat("x", 4000)
	s.ToolCalls = []ToolCall{
		{Action: "first", OK: true, Output: big},
		{Action: "second", OK: true, Output: big},
		{Action: "third", OK: true, Output: "small"},
	}

	// A budget that fits roughly one entry keeps the most recent.
	msgs := planningMessages("sys", s, 10, 700)
	var history string
	for _, m := range msgs {
		if strings.Contains(m.Content, "Previous actions") {
			history = m.Content
		}
	}
	if history == "" {
		t.Fatal("the newest entry must always survive the budget")
	}
	if !strings.Contains(history, "third") {
		t.Error("newest entry should survive")
	}
	if strings.Contains(history, "first") {
		t.Error("oldest entry should be dropped first")
	}
}

func TestEvaluationMessages_CarriesOutcome(t *testing.T) {
	s := NewRunState("buy the book", 50)
	s.Iterations = 2
	call := ToolCall{
		Action: "click", Args: map[string]any{"ref": "e7"},
		OK: false, Error: "element detached",
		StartedAt: time.Now(),
	}

	msgs := evaluationMessages(s, call)
	if len(msgs) != 2 {
		t.Fatalf("messages: %d", len(msgs))
	}
	body := msgs[1].Content
	if !strings.Contains(body, "buy the book") {
		t.Error("task missing")
	}
	if !strings.Contains(body, "click") || !strings.Contains(body, "element detached") {
		t.Error("action outcome missing")
	}
}

func TestRenderToolCall_TruncatesLongOutput(t *testing.T) {
	tc := ToolCall{Action: "extract", OK: true, Output: strings.Repeat("y", 10000)}
	rendered := renderToolCall(tc)
	if len(rendered) > toolCallOutputMaxChars+200 {
		t.Errorf("rendered length: %d", len(rendered))
	}
	if !strings.Contains(rendered, "TRUNCATED") {
		t.Error("expected truncation marker")
	}
}

func TestCountTokens_Positive(t *testing.T) {
	if countTokens("hello world, this is a test") <= 0 {
		t.Error("token count should be positive")
	}
}
