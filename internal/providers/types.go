// Package providers contains LLM completion clients. Each provider is a
// stateless "send messages, get text" capability — callers supply the full
// conversation on every call and no server-side memory is assumed.
package providers

import "context"

// Message is one turn of a conversation.
type Message struct {
	Role    string `json:"role"` // "system", "user", "assistant"
	Content string `json:"content"`
}

// CompletionRequest is a single-shot completion call.
type CompletionRequest struct {
	Model       string    `json:"model,omitempty"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

// Completer is the planner/evaluator capability. Implementations must
// honor ctx cancellation at the network boundary and return the raw text
// of the model's reply.
type Completer interface {
	Name() string
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}
