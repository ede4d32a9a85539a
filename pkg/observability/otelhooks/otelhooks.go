// Package otelhooks implements optimizer hooks with OpenTelemetry tracing.
//
// Each optimizer run becomes one span named "lanecap.optimize", carrying the
// strategy, node count and lane count as attributes, plus the fence counts
// once the run completes.
package otelhooks

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/matzehuels/lanecap/pkg/observability"
)

// SpanName is the name of the span recorded for each optimizer run.
const SpanName = "lanecap.optimize"

// Hooks records optimizer runs as spans. It is safe for concurrent use.
type Hooks struct {
	tracer trace.Tracer
	spans  sync.Map // run ID -> trace.Span
}

// New creates hooks that start spans with tracer.
func New(tracer trace.Tracer) *Hooks {
	return &Hooks{tracer: tracer}
}

// OnOptimizeStart starts the run's span.
func (h *Hooks) OnOptimizeStart(ctx context.Context, run observability.Run) {
	_, span := h.tracer.Start(ctx, SpanName, trace.WithAttributes(
		attribute.String("lanecap.run_id", run.ID),
		attribute.String("lanecap.strategy", run.Strategy),
		attribute.Int("lanecap.nodes", run.Nodes),
		attribute.Int("lanecap.lanes", run.Lanes),
	))
	h.spans.Store(run.ID, span)
}

// OnOptimizeComplete ends the run's span, recording err if the run failed.
func (h *Hooks) OnOptimizeComplete(ctx context.Context, run observability.Run, stats observability.RunStats, d time.Duration, err error) {
	v, ok := h.spans.LoadAndDelete(run.ID)
	if !ok {
		return
	}
	span := v.(trace.Span)
	span.SetAttributes(
		attribute.Int("lanecap.levels", stats.Levels),
		attribute.Int("lanecap.fences", stats.Fences),
		attribute.Int("lanecap.waits", stats.Waits),
		attribute.Int64("lanecap.duration_us", d.Microseconds()),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// Setup configures an OTLP gRPC exporter and registers tracing hooks.
// If endpoint is empty, nothing is configured and the returned shutdown
// function is a no-op.
func Setup(ctx context.Context, endpoint, service string) (func(context.Context) error, error) {
	if endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}
	exp, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())))
	if err != nil {
		return nil, err
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(service),
		)),
	)
	otel.SetTracerProvider(tp)
	observability.SetOptimizerHooks(New(tp.Tracer("lanecap")))

	return tp.Shutdown, nil
}

var _ observability.OptimizerHooks = (*Hooks)(nil)
