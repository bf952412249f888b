package observe

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

// restoreTracerProvider swaps in tp as the global tracer provider and
// restores the previous one when the test ends.
func restoreTracerProvider(t *testing.T, tp trace.TracerProvider) {
	t.Helper()
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })
}

func recordingTracer(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	restoreTracerProvider(t, tp)
	return sr
}

func TestStartSpan_RecordsNamedSpan(t *testing.T) {
	sr := recordingTracer(t)

	ctx, span := StartSpan(context.Background(), "ingest.events")
	span.End()

	spans := sr.Ended()
	if len(spans) != 1 {
		t.Fatalf("recorded %d spans, want 1", len(spans))
	}
	if spans[0].Name() != "ingest.events" {
		t.Errorf("span name = %q, want ingest.events", spans[0].Name())
	}
	if !trace.SpanContextFromContext(ctx).IsValid() {
		t.Error("returned context has no span context")
	}
}

func TestCorrelationID_WithActiveSpan(t *testing.T) {
	recordingTracer(t)

	ctx, span := StartSpan(context.Background(), "ingest.snapshot")
	defer span.End()

	cid := CorrelationID(ctx)
	if len(cid) != 32 {
		t.Fatalf("CorrelationID = %q, want 32-hex trace id", cid)
	}
	if cid != span.SpanContext().TraceID().String() {
		t.Errorf("CorrelationID = %q, want the span's trace id", cid)
	}
}

func TestCorrelationID_NoSpan(t *testing.T) {
	if cid := CorrelationID(context.Background()); cid != "" {
		t.Errorf("CorrelationID without a span = %q, want empty", cid)
	}
}

func TestLogger_WithAndWithoutSpan(t *testing.T) {
	recordingTracer(t)

	if Logger(context.Background()) == nil {
		t.Fatal("Logger returned nil without a span")
	}

	ctx, span := StartSpan(context.Background(), "retrieval.query")
	defer span.End()
	if Logger(ctx) == nil {
		t.Fatal("Logger returned nil with an active span")
	}
}
