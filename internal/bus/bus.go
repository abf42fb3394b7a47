// Package bus broadcasts run lifecycle events to in-process subscribers,
// primarily the WebSocket gateway.
package bus

import "sync"

// Event is one run lifecycle notification.
type Event struct {
	Type    string         `json:"type"`
	RunID   string         `json:"runId,omitempty"`
	Scope   string         `json:"scope,omitempty"`
	Payload map[string]any `json:"payload,omitempty"`
}

// Event types published by the agent loop.
const (
	EventRunStarted   = "run.started"
	EventRunPhase     = "run.phase"
	EventRunToolCall  = "run.tool_call"
	EventRunCompleted = "run.completed"
	EventRunFailed    = "run.failed"
)

// EventHandler receives broadcast events. Handlers must not block.
type EventHandler func(Event)

// Bus fans events out to subscribers.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string]EventHandler
}

func New() *Bus {
	return &Bus{subscribers: make(map[string]EventHandler)}
}

// Subscribe registers an event subscriber under an ID used to unsubscribe.
func (b *Bus) Subscribe(id string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[id] = handler
}

// Unsubscribe removes a subscriber.
func (b *Bus) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subscribers, id)
}

// Publish sends an event to all subscribers.
func (b *Bus) Publish(event Event) {
	if b == nil {
		return
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, handler := range b.subscribers {
		handler(event)
	}
}
