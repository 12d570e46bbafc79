// Package otelhelper provides distributed tracing bootstrap for workflow
// monitoring.
package otelhelper

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otlptracehttp "go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// Span attribute keys shared by the engine and the worker services.
const (
	WorkflowIDKey   = "reporunner.workflow.id"
	WorkflowNameKey = "reporunner.workflow.name"
	NodeIDKey       = "reporunner.node.id"
	NodeTypeKey     = "reporunner.node.type"
	TriggerTypeKey  = "reporunner.trigger.type"
	ExecutionIDKey  = "reporunner.execution.id"
	EventIDKey      = "reporunner.event.id"
	WorkerIDKey     = "reporunner.worker.id"
)

// NewTracer wires an OTLP/HTTP exporter into a global tracer provider and
// returns a tracer for the service. Exporter endpoint and headers come
// from the standard OTEL_EXPORTER_OTLP_* environment variables.
//
// nolint:ireturn // trace.Tracer is the OpenTelemetry contract
func NewTracer(ctx context.Context, serviceName string) (trace.Tracer, error) {
	exporter, err := otlptracehttp.New(ctx)
	if err != nil {
		return nil, err
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(semconv.SchemaURL, semconv.ServiceName(serviceName)),
	)
	if err != nil {
		return nil, err
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)

	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}))

	return provider.Tracer(serviceName), nil
}

// StartSpan opens a span with the given attributes already attached.
//
// nolint:ireturn,spancheck // caller owns the span
func StartSpan(ctx context.Context, tracer trace.Tracer, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}
