// Package tracing collects spans for run lifecycles and ships them to an
// external backend via a pluggable exporter.
package tracing

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

const (
	defaultFlushInterval = 5 * time.Second
	defaultBufferSize    = 1000
	previewMaxLen        = 500
)

// Span types emitted by the run bridge.
const (
	SpanTypeRun      = "run"
	SpanTypeToolCall = "tool_call"
)

// SpanData is one span of a run trace.
type SpanData struct {
	ID        uuid.UUID
	TraceID   uuid.UUID
	SpanType  string
	Name      string
	RunID     string
	Scope     string
	Action    string
	Status    string // "ok" or "error"
	Error     string
	Preview   string // truncated output or result preview
	Phase     string
	Iteration int
	StartTime time.Time
	EndTime   *time.Time
}

// SpanExporter ships spans to an external backend (e.g. OpenTelemetry OTLP).
// Keeping this as an interface lets the OTel dependency live in a separate
// sub-package.
type SpanExporter interface {
	ExportSpans(ctx context.Context, spans []SpanData)
	Shutdown(ctx context.Context) error
}

// Collector buffers spans in memory and flushes them to the exporter in
// batches. EmitSpan never blocks the run loop: when the buffer is full the
// span is dropped.
type Collector struct {
	spanCh   chan SpanData
	stopCh   chan struct{}
	wg       sync.WaitGroup
	exporter SpanExporter
}

// NewCollector creates a collector that flushes to exp.
func NewCollector(exp SpanExporter) *Collector {
	return &Collector{
		spanCh:   make(chan SpanData, defaultBufferSize),
		stopCh:   make(chan struct{}),
		exporter: exp,
	}
}

// Start begins the background flush loop.
func (c *Collector) Start() {
	c.wg.Add(1)
	go c.flushLoop()
	slog.Info("tracing collector started")
}

// Stop drains remaining spans and shuts the exporter down.
func (c *Collector) Stop() {
	close(c.stopCh)
	c.wg.Wait()

	if c.exporter != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := c.exporter.Shutdown(ctx); err != nil {
			slog.Warn("tracing: exporter shutdown failed", "error", err)
		}
	}
}

// EmitSpan enqueues a span for batch export. Non-blocking.
func (c *Collector) EmitSpan(span SpanData) {
	if span.ID == uuid.Nil {
		span.ID = uuid.New()
	}
	span.Preview = truncatePreview(span.Preview)

	select {
	case c.spanCh <- span:
	default:
		slog.Warn("tracing: span buffer full, dropping span",
			"span_type", span.SpanType, "name", span.Name)
	}
}

func (c *Collector) flushLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(defaultFlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.flush()
		case <-c.stopCh:
			// Drain remaining spans
			c.flush()
			return
		}
	}
}

func (c *Collector) flush() {
	var spans []SpanData
	for {
		select {
		case span := <-c.spanCh:
			spans = append(spans, span)
		default:
			goto done
		}
	}
done:

	if len(spans) == 0 || c.exporter == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	c.exporter.ExportSpans(ctx, spans)
	slog.Debug("tracing: flushed spans", "count", len(spans))
}

// truncatePreview sanitizes and truncates a string to previewMaxLen bytes.
func truncatePreview(s string) string {
	s = strings.ToValidUTF8(s, "")
	if len(s) <= previewMaxLen {
		return s
	}
	maxLen := previewMaxLen
	for maxLen > 0 && !utf8.RuneStart(s[maxLen]) {
		maxLen--
	}
	return s[:maxLen] + "..."
}
