package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
	gormlogger "gorm.io/gorm/logger"
)

func captureBase(t *testing.T) *bytes.Buffer {
	t.Helper()
	original := base
	t.Cleanup(func() {
		base = original
		zerolog.DefaultContextLogger = &base
	})

	buf := &bytes.Buffer{}
	base = zerolog.New(buf)
	zerolog.DefaultContextLogger = &base
	return buf
}

func TestCtx_AddsTraceFields(t *testing.T) {
	buf := captureBase(t)

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID, TraceFlags: trace.FlagsSampled})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	Ctx(ctx).Info().Msg("hello")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("invalid log line %q: %v", buf.String(), err)
	}
	if entry["trace_id"] != traceID.String() {
		t.Fatalf("expected trace_id %s, got %v", traceID, entry["trace_id"])
	}
	if entry["span_id"] != spanID.String() {
		t.Fatalf("expected span_id %s, got %v", spanID, entry["span_id"])
	}
}

func TestCtx_WithoutSpan(t *testing.T) {
	buf := captureBase(t)

	Ctx(context.Background()).Info().Msg("plain")
	if bytes.Contains(buf.Bytes(), []byte("trace_id")) {
		t.Fatalf("expected no trace fields, got %s", buf.String())
	}
	if !bytes.Contains(buf.Bytes(), []byte("plain")) {
		t.Fatalf("expected message to be written, got %s", buf.String())
	}
}

func TestGormLogger_Trace(t *testing.T) {
	buf := captureBase(t)

	l := NewGormLogger(gormlogger.Warn)
	l.SlowThreshold = time.Millisecond

	l.Trace(context.Background(), time.Now().Add(-time.Second), func() (string, int64) {
		return "SELECT 1", 1
	}, nil)
	if !bytes.Contains(buf.Bytes(), []byte("slow_query")) {
		t.Fatalf("expected slow query warning, got %s", buf.String())
	}

	buf.Reset()
	l.Trace(context.Background(), time.Now(), func() (string, int64) {
		return "SELECT 1", 0
	}, gormlogger.ErrRecordNotFound)
	if buf.Len() != 0 {
		t.Fatalf("expected record-not-found to be ignored, got %s", buf.String())
	}

	buf.Reset()
	silent := l.LogMode(gormlogger.Silent)
	silent.Trace(context.Background(), time.Now().Add(-time.Second), func() (string, int64) {
		return "SELECT 1", 1
	}, nil)
	if buf.Len() != 0 {
		t.Fatalf("expected silent mode to write nothing, got %s", buf.String())
	}
}
