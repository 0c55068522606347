package observability

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/randalmurphal/stategraph"

// MetricsRecorder records engine metrics.
// Use NewMetricsRecorder for OpenTelemetry or NoopMetrics when disabled.
type MetricsRecorder interface {
	// RecordNodeExecution records one node execution and whether it failed.
	RecordNodeExecution(ctx context.Context, nodeID string, duration time.Duration, err error)

	// RecordGraphRun records the end of a graph execution.
	RecordGraphRun(ctx context.Context, graph string, success bool, duration time.Duration, steps int)

	// RecordRetry records a retried attempt inside a node.
	RecordRetry(ctx context.Context, nodeID string, attempt int)
}

type otelMetrics struct {
	nodeExecutions metric.Int64Counter
	nodeLatency    metric.Float64Histogram
	nodeErrors     metric.Int64Counter
	graphRuns      metric.Int64Counter
	graphLatency   metric.Float64Histogram
	graphSteps     metric.Int64Histogram
	retries        metric.Int64Counter
}

func newOtelMetrics(provider metric.MeterProvider) (*otelMetrics, error) {
	meter := provider.Meter(instrumentationName)

	nodeExecutions, err := meter.Int64Counter("stategraph.node.executions",
		metric.WithDescription("Number of node executions"),
	)
	if err != nil {
		return nil, err
	}

	nodeLatency, err := meter.Float64Histogram("stategraph.node.latency_ms",
		metric.WithDescription("Node execution latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	nodeErrors, err := meter.Int64Counter("stategraph.node.errors",
		metric.WithDescription("Number of node execution errors"),
	)
	if err != nil {
		return nil, err
	}

	graphRuns, err := meter.Int64Counter("stategraph.graph.runs",
		metric.WithDescription("Number of graph executions"),
	)
	if err != nil {
		return nil, err
	}

	graphLatency, err := meter.Float64Histogram("stategraph.graph.latency_ms",
		metric.WithDescription("Graph execution latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	graphSteps, err := meter.Int64Histogram("stategraph.graph.steps",
		metric.WithDescription("Node executions per graph run"),
	)
	if err != nil {
		return nil, err
	}

	retries, err := meter.Int64Counter("stategraph.node.retries",
		metric.WithDescription("Number of retried attempts inside nodes"),
	)
	if err != nil {
		return nil, err
	}

	return &otelMetrics{
		nodeExecutions: nodeExecutions,
		nodeLatency:    nodeLatency,
		nodeErrors:     nodeErrors,
		graphRuns:      graphRuns,
		graphLatency:   graphLatency,
		graphSteps:     graphSteps,
		retries:        retries,
	}, nil
}

// NewMetricsRecorder returns a MetricsRecorder backed by provider.
// A nil provider means the global OpenTelemetry meter provider. If the
// instruments cannot be created a no-op recorder is returned.
func NewMetricsRecorder(provider metric.MeterProvider) MetricsRecorder {
	if provider == nil {
		provider = otel.GetMeterProvider()
	}
	m, err := newOtelMetrics(provider)
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

func (m *otelMetrics) RecordNodeExecution(ctx context.Context, nodeID string, duration time.Duration, err error) {
	attrs := metric.WithAttributes(attribute.String("node_id", nodeID))

	m.nodeExecutions.Add(ctx, 1, attrs)
	m.nodeLatency.Record(ctx, durationMs(duration), attrs)
	if err != nil {
		m.nodeErrors.Add(ctx, 1, attrs)
	}
}

func (m *otelMetrics) RecordGraphRun(ctx context.Context, graph string, success bool, duration time.Duration, steps int) {
	attrs := metric.WithAttributes(
		attribute.String("graph", graph),
		attribute.Bool("success", success),
	)
	m.graphRuns.Add(ctx, 1, attrs)
	m.graphLatency.Record(ctx, durationMs(duration), attrs)
	m.graphSteps.Record(ctx, int64(steps), attrs)
}

func (m *otelMetrics) RecordRetry(ctx context.Context, nodeID string, attempt int) {
	m.retries.Add(ctx, 1, metric.WithAttributes(
		attribute.String("node_id", nodeID),
		attribute.Int("attempt", attempt),
	))
}
