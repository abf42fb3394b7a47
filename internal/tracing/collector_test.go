package tracing

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/nextlevelbuilder/webpilot/internal/bus"
)

type fakeExporter struct {
	mu       sync.Mutex
	spans    []SpanData
	shutdown bool
}

func (f *fakeExporter) ExportSpans(_ context.Context, spans []SpanData) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.spans = append(f.spans, spans...)
}

func (f *fakeExporter) Shutdown(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.shutdown = true
	return nil
}

func (f *fakeExporter) exported() []SpanData {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]SpanData(nil), f.spans...)
}

func TestCollector_FlushOnStop(t *testing.T) {
	exp := &fakeExporter{}
	c := NewCollector(exp)
	c.Start()

	c.EmitSpan(SpanData{SpanType: SpanTypeToolCall, Name: "navigate"})
	c.EmitSpan(SpanData{SpanType: SpanTypeRun, Name: "run"})
	c.Stop()

	spans := exp.exported()
	if len(spans) != 2 {
		t.Fatalf("exported %d spans, want 2", len(spans))
	}
	for _, s := range spans {
		if s.ID.String() == "00000000-0000-0000-0000-000000000000" {
			t.Error("span ID should be assigned on emit")
		}
	}
	if !exp.shutdown {
		t.Error("exporter should be shut down")
	}
}

func TestBridge_RunLifecycle(t *testing.T) {
	exp := &fakeExporter{}
	c := NewCollector(exp)
	c.Start()

	events := bus.New()
	b := NewBridge(c)
	b.Attach(events)
	defer b.Detach(events)

	events.Publish(bus.Event{Type: bus.EventRunStarted, RunID: "run-1", Scope: "tab-1"})
	events.Publish(bus.Event{
		Type:    bus.EventRunToolCall,
		RunID:   "run-1",
		Scope:   "tab-1",
		Payload: map[string]any{"action": "navigate", "ok": true, "iterations": 1},
	})
	events.Publish(bus.Event{
		Type:    bus.EventRunFailed,
		RunID:   "run-1",
		Scope:   "tab-1",
		Payload: map[string]any{"phase": "failed", "iterations": 3, "reason": "run cancelled"},
	})
	c.Stop()

	spans := exp.exported()
	if len(spans) != 2 {
		t.Fatalf("exported %d spans, want 2 (tool call + run)", len(spans))
	}

	var runSpan, callSpan *SpanData
	for i := range spans {
		switch spans[i].SpanType {
		case SpanTypeRun:
			runSpan = &spans[i]
		case SpanTypeToolCall:
			callSpan = &spans[i]
		}
	}
	if callSpan == nil || callSpan.Action != "navigate" || callSpan.Status != "ok" {
		t.Errorf("tool call span: %+v", callSpan)
	}
	if runSpan == nil || runSpan.Status != "error" || runSpan.Error != "run cancelled" {
		t.Errorf("run span: %+v", runSpan)
	}
	if runSpan != nil && callSpan != nil && runSpan.TraceID != callSpan.TraceID {
		t.Error("spans of one run should share a trace ID")
	}
}

func TestBridge_IgnoresUnknownRun(t *testing.T) {
	exp := &fakeExporter{}
	c := NewCollector(exp)
	c.Start()

	b := NewBridge(c)
	// Tool call for a run the bridge never saw start.
	b.handle(bus.Event{
		Type:    bus.EventRunToolCall,
		RunID:   "ghost",
		Payload: map[string]any{"action": "click", "ok": true},
	})
	c.Stop()

	if len(exp.exported()) != 0 {
		t.Error("spans for unknown runs should be dropped")
	}
}

func TestTruncatePreview(t *testing.T) {
	short := truncatePreview("hello")
	if short != "hello" {
		t.Errorf("short string altered: %q", short)
	}

	long := truncatePreview(strings.Repeat("a", 2000))
	if len(long) > previewMaxLen+3 {
		t.Errorf("preview too long: %d", len(long))
	}
	if !strings.HasSuffix(long, "...") {
		t.Error("truncated preview should end with ellipsis")
	}
}
