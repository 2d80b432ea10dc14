package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/nexushub/nexus"

// Tracer provides OpenTelemetry tracing for the hub.
type Tracer struct {
	tracer trace.Tracer
}

// NewTracer creates a new hub tracer.
func NewTracer() *Tracer {
	return &Tracer{
		tracer: otel.Tracer(tracerName),
	}
}

// StartRelaySpan starts a new span for an outbound relay attempt.
func (t *Tracer) StartRelaySpan(ctx context.Context, target, method string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "nexus.relay",
		trace.WithAttributes(
			attribute.String("nexus.target_url", target),
			attribute.String("http.method", method),
		),
	)
}

// EndRelaySpan ends a relay span with result attributes.
func (t *Tracer) EndRelaySpan(span trace.Span, statusCode, latencyMs int, err string) {
	span.SetAttributes(
		attribute.Int("http.status_code", statusCode),
		attribute.Int("nexus.latency_ms", latencyMs),
	)
	if err != "" {
		span.SetAttributes(attribute.String("nexus.error", err))
	}
	span.End()
}
