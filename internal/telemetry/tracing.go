package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/aegiswall/guardrail"

// NewTracerProvider builds an SDK tracer provider that writes spans to
// stdout, suitable for local inspection and for piping into a collector
// sidecar. serviceName tags every span's resource attributes.
func NewTracerProvider(serviceName string) (*sdktrace.TracerProvider, error) {
	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("create stdout trace exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(newResource(serviceName)),
	)
	otel.SetTracerProvider(tp)
	return tp, nil
}

// StartValidationSpan starts a span around one call to the validator
// pipeline, tagged with the tool name being evaluated.
func StartValidationSpan(ctx context.Context, toolName string) (context.Context, trace.Span) {
	tracer := otel.Tracer(tracerName)
	return tracer.Start(ctx, "validate_call", trace.WithAttributes(
		attribute.String("guardrail.tool_name", toolName),
	))
}

// RecordDecision tags span with the validation outcome and ends it.
func RecordDecision(span trace.Span, decision, reason string) {
	span.SetAttributes(
		attribute.String("guardrail.decision", decision),
		attribute.String("guardrail.reason", reason),
	)
	span.End()
}
