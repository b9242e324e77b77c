package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "featureforge"

// StartPipelineSpan starts a span for an automated pipeline run.
func StartPipelineSpan(ctx context.Context, featureID string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "pipeline.run",
		trace.WithAttributes(
			attribute.String("feature.id", featureID),
		),
	)
}

// StartStepSpan starts a span for one pipeline step within a run.
func StartStepSpan(ctx context.Context, featureID, phase, agent string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "pipeline.step",
		trace.WithAttributes(
			attribute.String("feature.id", featureID),
			attribute.String("step.phase", phase),
			attribute.String("step.agent", agent),
		),
	)
}

// StartDiffSpan starts a span for a packet version diff computation.
func StartDiffSpan(ctx context.Context, packetID string, version int) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "packet.diff",
		trace.WithAttributes(
			attribute.String("packet.id", packetID),
			attribute.Int("packet.version", version),
		),
	)
}
