package agent

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"github.com/nextlevelbuilder/webpilot/internal/providers"
	"github.com/nextlevelbuilder/webpilot/internal/tools"
)

const (
	// defaultHistoryWindow caps how many recent tool calls the planner sees.
	defaultHistoryWindow = 10
	// defaultTokenBudget bounds the planning conversation; oldest history
	// entries are dropped first when it is exceeded.
	defaultTokenBudget = 12000
	// toolCallOutputMaxChars trims long action outputs in prompts.
	toolCallOutputMaxChars = 2000
	charsPerTokenEstimate  = 4
)

// buildSystemPrompt renders the planner system prompt from the executor's
// action definitions.
func buildSystemPrompt(defs []tools.Definition) string {
	var sb strings.Builder
	sb.WriteString(`You are an autonomous web browsing agent. You complete tasks by proposing one action at a time against the current page.

Available actions:
`)
	for _, d := range defs {
		schema, _ := json.Marshal(d.Parameters)
		fmt.Fprintf(&sb, "- %s: %s\n  parameters: %s\n", d.Name, d.Description, schema)
	}
	sb.WriteString(`
Respond with a single JSON object and nothing else:
{
  "thought": "what you observe and plan to do next",
  "reasoning": "why this is the right next step",
  "confidence": 0.0-1.0,
  "action": {"name": "<action name>", "args": {...}} or null when the task is already satisfied
}`)
	return sb.String()
}

const evaluatorSystemPrompt = `You judge whether an agent's task is complete after its latest action.

Respond with a single JSON object and nothing else:
{
  "isComplete": true/false,
  "reasoning": "your judgement",
  "shouldContinue": true/false,
  "result": "final answer for the user when isComplete is true"
}`

// planningMessages builds the bounded planner conversation: system prompt,
// the task, and a token-budgeted window of recent tool calls.
func planningMessages(systemPrompt string, s RunState, window, tokenBudget int) []providers.Message {
	if window <= 0 {
		window = defaultHistoryWindow
	}
	if tokenBudget <= 0 {
		tokenBudget = defaultTokenBudget
	}

	msgs := []providers.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: "Task: " + s.Task},
	}

	calls := s.ToolCalls
	if len(calls) > window {
		calls = calls[len(calls)-window:]
	}

	budget := tokenBudget - countTokens(systemPrompt) - countTokens(s.Task)
	var history []string
	// Walk newest-first so the most recent outcomes survive the budget.
	for i := len(calls) - 1; i >= 0; i-- {
		entry := renderToolCall(calls[i])
		cost := countTokens(entry)
		if budget-cost < 0 && len(history) > 0 {
			break
		}
		budget -= cost
		history = append([]string{entry}, history...)
	}

	if len(history) > 0 {
		msgs = append(msgs, providers.Message{
			Role:    "user",
			Content: "Previous actions:\n" + strings.Join(history, "\n"),
		})
	}
	msgs = append(msgs, providers.Message{
		Role:    "user",
		Content: "Decide the next action.",
	})
	return msgs
}

// evaluationMessages builds the evaluator conversation for the latest action.
func evaluationMessages(s RunState, call ToolCall) []providers.Message {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Task: %s\n\n", s.Task)
	fmt.Fprintf(&sb, "Iteration %d of %d.\n", s.Iterations, s.MaxIterations)
	sb.WriteString("Latest action:\n")
	sb.WriteString(renderToolCall(call))

	return []providers.Message{
		{Role: "system", Content: evaluatorSystemPrompt},
		{Role: "user", Content: sb.String()},
	}
}

// renderToolCall formats one record for a prompt, trimming long outputs.
func renderToolCall(tc ToolCall) string {
	args, _ := json.Marshal(tc.Args)
	outcome := tc.Output
	if !tc.OK {
		outcome = "FAILED: " + tc.Error
	}
	if len(outcome) > toolCallOutputMaxChars {
		outcome = outcome[:toolCallOutputMaxChars] + "\n[...TRUNCATED]"
	}
	return fmt.Sprintf("- %s(%s) → %s", tc.Action, args, outcome)
}

var (
	encodingOnce sync.Once
	encoding     *tiktoken.Tiktoken
)

// countTokens counts tokens with the cl100k_base encoding, estimating by
// character count when the encoding is unavailable (offline hosts).
func countTokens(text string) int {
	encodingOnce.Do(func() {
		enc, err := tiktoken.GetEncoding(tiktoken.MODEL_CL100K_BASE)
		if err == nil {
			encoding = enc
		}
	})
	if encoding != nil {
		return len(encoding.Encode(text, nil, nil))
	}
	return len(text) / charsPerTokenEstimate
}
