package otel

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "featureforge"

// Metrics holds all FeatureForge metric instruments.
type Metrics struct {
	TransitionsApplied  metric.Int64Counter
	TransitionsRejected metric.Int64Counter
	RunsStarted         metric.Int64Counter
	RunsCompleted       metric.Int64Counter
	PacketsCreated      metric.Int64Counter
	PacketsCompleted    metric.Int64Counter
	DiffDuration        metric.Float64Histogram
}

// NewMetrics creates all metric instruments.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.TransitionsApplied, err = meter.Int64Counter("featureforge.transitions.applied",
		metric.WithDescription("Number of feature status transitions applied"))
	if err != nil {
		return nil, err
	}

	m.TransitionsRejected, err = meter.Int64Counter("featureforge.transitions.rejected",
		metric.WithDescription("Number of feature status transitions rejected"))
	if err != nil {
		return nil, err
	}

	m.RunsStarted, err = meter.Int64Counter("featureforge.pipeline.runs.started",
		metric.WithDescription("Number of pipeline runs started"))
	if err != nil {
		return nil, err
	}

	m.RunsCompleted, err = meter.Int64Counter("featureforge.pipeline.runs.completed",
		metric.WithDescription("Number of pipeline runs completed"))
	if err != nil {
		return nil, err
	}

	m.PacketsCreated, err = meter.Int64Counter("featureforge.packets.created",
		metric.WithDescription("Number of handoff packet versions opened"))
	if err != nil {
		return nil, err
	}

	m.PacketsCompleted, err = meter.Int64Counter("featureforge.packets.completed",
		metric.WithDescription("Number of handoff packets completed"))
	if err != nil {
		return nil, err
	}

	m.DiffDuration, err = meter.Float64Histogram("featureforge.diff.duration_seconds",
		metric.WithDescription("Time spent computing packet version diffs"))
	if err != nil {
		return nil, err
	}

	return m, nil
}
