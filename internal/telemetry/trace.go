// Package telemetry carries trace and span identifiers through context so
// every log line and store write can be correlated across systems, and times
// spans around task execution and store writes.
package telemetry

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"time"

	"github.com/commercekit/orderworker/internal/observability/statsd"
)

type contextKey string

const (
	traceIDKey contextKey = "trace_id"
	spanIDKey  contextKey = "span_id"
)

// NewTraceID returns a 128-bit trace identifier as a lowercase hex string.
func NewTraceID() string {
	return randomHex(16)
}

// NewSpanID returns a 64-bit span identifier as a lowercase hex string.
func NewSpanID() string {
	return randomHex(8)
}

func randomHex(n int) string {
	b := make([]byte, n)
	// rand.Read never returns an error on supported platforms
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// WithTraceID returns a context carrying the given trace identifier.
// An empty id generates a fresh one.
func WithTraceID(ctx context.Context, id string) context.Context {
	if id == "" {
		id = NewTraceID()
	}
	return context.WithValue(ctx, traceIDKey, id)
}

// TraceID returns the trace identifier carried by ctx, or "" when absent.
func TraceID(ctx context.Context) string {
	if id, ok := ctx.Value(traceIDKey).(string); ok {
		return id
	}
	return ""
}

// SpanID returns the span identifier carried by ctx, or "" when absent.
func SpanID(ctx context.Context) string {
	if id, ok := ctx.Value(spanIDKey).(string); ok {
		return id
	}
	return ""
}

// Span measures one unit of work. End must be called exactly once.
type Span struct {
	name    string
	traceID string
	spanID  string
	start   time.Time
	attrs   []slog.Attr
	logger  *slog.Logger
	metrics statsd.Sink
}

// Tracer creates spans bound to a logger and a metrics sink.
// Both collaborators are optional; a nil Tracer yields no-op spans.
type Tracer struct {
	logger  *slog.Logger
	metrics statsd.Sink
}

// NewTracer constructs a Tracer. A nil logger falls back to slog.Default.
func NewTracer(logger *slog.Logger, metrics statsd.Sink) *Tracer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracer{logger: logger, metrics: metrics}
}

// StartSpan begins a span named name and returns a derived context carrying
// the span's identifiers. If the context has no trace id yet, one is minted
// so logs from the span are still correlatable.
func (t *Tracer) StartSpan(ctx context.Context, name string, attrs ...slog.Attr) (context.Context, *Span) {
	traceID := TraceID(ctx)
	if traceID == "" {
		traceID = NewTraceID()
		ctx = context.WithValue(ctx, traceIDKey, traceID)
	}
	spanID := NewSpanID()
	ctx = context.WithValue(ctx, spanIDKey, spanID)

	span := &Span{
		name:    name,
		traceID: traceID,
		spanID:  spanID,
		start:   time.Now(),
		attrs:   attrs,
	}
	if t != nil {
		span.logger = t.logger
		span.metrics = t.metrics
	}
	return ctx, span
}

// End finishes the span, logging its outcome and emitting a duration metric.
func (s *Span) End(ctx context.Context, err error) {
	if s == nil {
		return
	}
	elapsed := time.Since(s.start)

	if s.logger != nil {
		attrs := make([]slog.Attr, 0, len(s.attrs)+3)
		attrs = append(attrs,
			slog.String("span", s.name),
			slog.Duration("duration", elapsed),
		)
		attrs = append(attrs, s.attrs...)
		if err != nil {
			attrs = append(attrs, slog.Any("error", err))
			s.logger.LogAttrs(ctx, slog.LevelError, "span finished", attrs...)
		} else {
			s.logger.LogAttrs(ctx, slog.LevelDebug, "span finished", attrs...)
		}
	}

	if s.metrics != nil {
		result := "success"
		if err != nil {
			result = "error"
		}
		s.metrics.Timing("span.duration", elapsed, map[string]string{
			"span":   s.name,
			"result": result,
		})
	}
}
