// Package observability implements the ambient instrumentation every
// pipeline execution carries: a per-stage timer feeding SearchResult's
// timings_by_stage, OpenTelemetry spans mirroring those same stages, and a
// small Prometheus registry of pipeline/provider counters.
package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// TracerConfig configures the OTLP/HTTP exporter the pipeline's spans are
// shipped through.
type TracerConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	Endpoint       string
	Insecure       bool
}

// Tracer wraps an OpenTelemetry tracer with the one operation C10 needs:
// a span per pipeline stage.
type Tracer struct {
	tracer trace.Tracer
}

// NewTracer builds a Tracer exporting over OTLP/HTTP and installs it as
// the process-wide tracer provider. The returned shutdown func flushes and
// closes the exporter; callers defer it at process exit.
func NewTracer(ctx context.Context, cfg TracerConfig) (*Tracer, func(context.Context) error, error) {
	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("observability: creating trace exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			attribute.String("service.name", cfg.ServiceName),
			attribute.String("service.version", cfg.ServiceVersion),
			attribute.String("deployment.environment", cfg.Environment),
		),
		resource.WithHost(),
		resource.WithProcess(),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("observability: building resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	tracer := tp.Tracer(cfg.ServiceName, trace.WithInstrumentationVersion(cfg.ServiceVersion))
	return &Tracer{tracer: tracer}, tp.Shutdown, nil
}

// NewNoopTracer returns a Tracer backed by the OTel no-op implementation,
// for tests and deployments that run without a collector configured.
func NewNoopTracer() *Tracer {
	return &Tracer{tracer: trace.NewNoopTracerProvider().Tracer("ragcore")}
}

// StartStage starts a span named after a pipeline stage (rewrite,
// retrieve, assemble, generate, evaluate).
func (t *Tracer) StartStage(ctx context.Context, stage string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	defaultAttrs := []attribute.KeyValue{attribute.String("ragcore.stage", stage)}
	return t.tracer.Start(ctx, fmt.Sprintf("pipeline.%s", stage),
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(append(defaultAttrs, attrs...)...),
	)
}

// WithStage runs fn inside a stage span, recording its error (if any) on
// the span before ending it.
func (t *Tracer) WithStage(ctx context.Context, stage string, fn func(context.Context) error) error {
	ctx, span := t.StartStage(ctx, stage)
	defer span.End()

	err := fn(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	return err
}
