package tracing

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/webpilot/internal/bus"
)

// Bridge converts run lifecycle events from the internal bus into spans.
// One run becomes one trace: a root span spanning the whole run plus a
// child span per tool call.
type Bridge struct {
	collector *Collector

	mu   sync.Mutex
	open map[string]*openRun // runID → trace bookkeeping
}

type openRun struct {
	traceID   uuid.UUID
	scope     string
	startedAt time.Time
}

func NewBridge(c *Collector) *Bridge {
	return &Bridge{
		collector: c,
		open:      make(map[string]*openRun),
	}
}

// Attach subscribes the bridge to the event bus.
func (b *Bridge) Attach(events *bus.Bus) {
	events.Subscribe("tracing", b.handle)
}

// Detach removes the bus subscription.
func (b *Bridge) Detach(events *bus.Bus) {
	events.Unsubscribe("tracing")
}

func (b *Bridge) handle(ev bus.Event) {
	switch ev.Type {
	case bus.EventRunStarted:
		b.mu.Lock()
		b.open[ev.RunID] = &openRun{
			// Deterministic trace ID so retries of the same run ID land in
			// the same trace.
			traceID:   uuid.NewSHA1(uuid.NameSpaceOID, []byte(ev.RunID)),
			scope:     ev.Scope,
			startedAt: time.Now(),
		}
		b.mu.Unlock()

	case bus.EventRunToolCall:
		b.mu.Lock()
		run, ok := b.open[ev.RunID]
		b.mu.Unlock()
		if !ok {
			return
		}

		action, _ := ev.Payload["action"].(string)
		okFlag, _ := ev.Payload["ok"].(bool)
		iteration, _ := ev.Payload["iterations"].(int)
		now := time.Now()
		span := SpanData{
			TraceID:   run.traceID,
			SpanType:  SpanTypeToolCall,
			Name:      action,
			RunID:     ev.RunID,
			Scope:     run.scope,
			Action:    action,
			Status:    "ok",
			Iteration: iteration,
			StartTime: now,
			EndTime:   &now,
		}
		if !okFlag {
			span.Status = "error"
		}
		b.collector.EmitSpan(span)

	case bus.EventRunCompleted, bus.EventRunFailed:
		b.mu.Lock()
		run, ok := b.open[ev.RunID]
		delete(b.open, ev.RunID)
		b.mu.Unlock()
		if !ok {
			return
		}

		now := time.Now()
		span := SpanData{
			TraceID:   run.traceID,
			SpanType:  SpanTypeRun,
			Name:      "run",
			RunID:     ev.RunID,
			Scope:     run.scope,
			Status:    "ok",
			StartTime: run.startedAt,
			EndTime:   &now,
		}
		if phase, ok := ev.Payload["phase"].(string); ok {
			span.Phase = phase
		}
		if iters, ok := ev.Payload["iterations"].(int); ok {
			span.Iteration = iters
		}
		if ev.Type == bus.EventRunFailed {
			span.Status = "error"
			if reason, ok := ev.Payload["reason"].(string); ok {
				span.Error = reason
			}
		} else if result, ok := ev.Payload["result"].(string); ok {
			span.Preview = result
		}
		b.collector.EmitSpan(span)
	}
}
