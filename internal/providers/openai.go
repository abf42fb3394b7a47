package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const (
	openaiDefaultBase = "https://api.openai.com/v1"
	maxAttempts       = 3
)

// OpenAIClient talks to any OpenAI-compatible chat-completions endpoint.
// It is safe for concurrent use; each Complete call is independent.
type OpenAIClient struct {
	name    string
	apiKey  string
	apiBase string
	model   string
	http    *http.Client
}

// NewOpenAIClient creates a client for an OpenAI-compatible API.
// name identifies the provider in logs ("openai", "dashscope", ...).
func NewOpenAIClient(name, apiKey, apiBase, model string) *OpenAIClient {
	if apiBase == "" {
		apiBase = openaiDefaultBase
	}
	if name == "" {
		name = "openai"
	}
	return &OpenAIClient{
		name:    name,
		apiKey:  apiKey,
		apiBase: apiBase,
		model:   model,
		http:    &http.Client{Timeout: 120 * time.Second},
	}
}

func (c *OpenAIClient) Name() string { return c.name }

// Model returns the default model used when a request does not name one.
func (c *OpenAIClient) Model() string { return c.model }

// Complete sends the conversation and returns the assistant's text.
// Retries transient failures (429, 5xx, transport errors) with backoff;
// ctx cancellation aborts immediately and is never retried.
func (c *OpenAIClient) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	if req.Model == "" {
		req.Model = c.model
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal completion request: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			backoff := time.Duration(attempt-1) * 2 * time.Second
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		text, retryable, err := c.complete(ctx, body)
		if err == nil {
			return text, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		lastErr = err
		if !retryable {
			break
		}
		slog.Warn("completion attempt failed",
			"provider", c.name, "attempt", attempt, "error", err)
	}
	return "", fmt.Errorf("%s completion: %w", c.name, lastErr)
}

func (c *OpenAIClient) complete(ctx context.Context, body []byte) (text string, retryable bool, err error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.apiBase+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", false, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", true, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", true, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		retryable := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		return "", retryable, fmt.Errorf("status %d: %s", resp.StatusCode, truncate(string(data), 200))
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", false, fmt.Errorf("decode response: %w", err)
	}
	if parsed.Error != nil {
		return "", false, fmt.Errorf("api error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", false, fmt.Errorf("empty choices in response")
	}
	return parsed.Choices[0].Message.Content, false, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
