package otelhooks

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/matzehuels/lanecap/pkg/observability"
)

func newRecorder(t *testing.T) (*Hooks, *tracetest.SpanRecorder) {
	t.Helper()
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return New(tp.Tracer("test")), sr
}

func attrs(span sdktrace.ReadOnlySpan) map[attribute.Key]attribute.Value {
	m := make(map[attribute.Key]attribute.Value)
	for _, kv := range span.Attributes() {
		m[kv.Key] = kv.Value
	}
	return m
}

func TestHooksRecordSpan(t *testing.T) {
	h, sr := newRecorder(t)
	ctx := context.Background()
	run := observability.Run{ID: "run-1", Strategy: "round-robin", Nodes: 4, Lanes: 2}

	h.OnOptimizeStart(ctx, run)
	h.OnOptimizeComplete(ctx, run, observability.RunStats{Levels: 3, Fences: 4, Waits: 5}, time.Millisecond, nil)

	spans := sr.Ended()
	if len(spans) != 1 {
		t.Fatalf("ended spans = %d, want 1", len(spans))
	}
	span := spans[0]
	if span.Name() != SpanName {
		t.Errorf("Name() = %q, want %q", span.Name(), SpanName)
	}
	a := attrs(span)
	if got := a["lanecap.strategy"].AsString(); got != "round-robin" {
		t.Errorf("strategy = %q, want round-robin", got)
	}
	if got := a["lanecap.fences"].AsInt64(); got != 4 {
		t.Errorf("fences = %d, want 4", got)
	}
	if got := a["lanecap.lanes"].AsInt64(); got != 2 {
		t.Errorf("lanes = %d, want 2", got)
	}
	if span.Status().Code == codes.Error {
		t.Error("successful run should not have error status")
	}
}

func TestHooksRecordError(t *testing.T) {
	h, sr := newRecorder(t)
	ctx := context.Background()
	run := observability.Run{ID: "run-2", Strategy: "sequential", Nodes: 1, Lanes: 1}

	h.OnOptimizeStart(ctx, run)
	h.OnOptimizeComplete(ctx, run, observability.RunStats{}, 0, errors.New("end capture failed"))

	spans := sr.Ended()
	if len(spans) != 1 {
		t.Fatalf("ended spans = %d, want 1", len(spans))
	}
	if spans[0].Status().Code != codes.Error {
		t.Errorf("Status() = %v, want Error", spans[0].Status().Code)
	}
}

func TestHooksUnknownRun(t *testing.T) {
	h, sr := newRecorder(t)
	h.OnOptimizeComplete(context.Background(), observability.Run{ID: "never-started"}, observability.RunStats{}, 0, nil)
	if n := len(sr.Ended()); n != 0 {
		t.Errorf("ended spans = %d, want 0", n)
	}
}

func TestSetupWithoutEndpoint(t *testing.T) {
	observability.Reset()
	shutdown, err := Setup(context.Background(), "", "lanecap")
	if err != nil {
		t.Fatalf("Setup() error: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown() error: %v", err)
	}
	if _, ok := observability.Optimizer().(observability.NoopOptimizerHooks); !ok {
		t.Error("Setup without endpoint should leave hooks untouched")
	}
}
