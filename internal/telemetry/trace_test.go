package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTraceID(t *testing.T) {
	a, b := NewTraceID(), NewTraceID()
	assert.Len(t, a, 32)
	assert.NotEqual(t, a, b)
	assert.Len(t, NewSpanID(), 16)
}

func TestWithTraceID(t *testing.T) {
	ctx := WithTraceID(context.Background(), "abc123")
	assert.Equal(t, "abc123", TraceID(ctx))

	// empty id mints a fresh one
	ctx = WithTraceID(context.Background(), "")
	assert.Len(t, TraceID(ctx), 32)

	assert.Empty(t, TraceID(context.Background()))
	assert.Empty(t, SpanID(context.Background()))
}

func TestStartSpanPropagatesIdentifiers(t *testing.T) {
	tracer := NewTracer(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)), nil)

	parent := WithTraceID(context.Background(), "feedface")
	ctx, span := tracer.StartSpan(parent, "store.create_job")
	require.NotNil(t, span)

	assert.Equal(t, "feedface", TraceID(ctx))
	assert.NotEmpty(t, SpanID(ctx))

	span.End(ctx, nil)
}

func TestStartSpanMintsTraceID(t *testing.T) {
	tracer := NewTracer(nil, nil)
	ctx, span := tracer.StartSpan(context.Background(), "task.order_receipt")
	assert.Len(t, TraceID(ctx), 32)
	span.End(ctx, nil)
}

func TestLogHandlerStampsTraceContext(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewLogHandler(slog.NewJSONHandler(&buf, nil)))

	ctx := WithTraceID(context.Background(), "0011223344556677")
	logger.InfoContext(ctx, "processing task", "order_id", 42)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "0011223344556677", line["trace_id"])
	assert.EqualValues(t, 42, line["order_id"])
}

func TestLogHandlerNoTraceContext(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewLogHandler(slog.NewJSONHandler(&buf, nil)))

	logger.Info("no context")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	_, ok := line["trace_id"]
	assert.False(t, ok)
}
