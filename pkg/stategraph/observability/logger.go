// Package observability carries the engine's structured logging, metrics and
// tracing.
//
// Logging goes through log/slog. Metrics and spans go through OpenTelemetry
// and default to no-op implementations, so nothing is recorded unless a run
// opts in.
package observability

import (
	"log/slog"
	"time"
)

// EnrichLogger returns logger with run, node and step fields attached.
func EnrichLogger(logger *slog.Logger, runID, nodeID string, step int) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(
		slog.String("run_id", runID),
		slog.String("node_id", nodeID),
		slog.Int("step", step),
	)
}

// LogRunStart logs the start of a graph execution.
func LogRunStart(logger *slog.Logger, graph, runID string, maxIterations int) {
	if logger == nil {
		return
	}
	logger.Info("graph run starting",
		slog.String("graph", graph),
		slog.String("run_id", runID),
		slog.Int("max_iterations", maxIterations),
	)
}

// LogRunComplete logs a successful graph execution.
func LogRunComplete(logger *slog.Logger, runID string, duration time.Duration, steps int) {
	if logger == nil {
		return
	}
	logger.Info("graph run completed",
		slog.String("run_id", runID),
		slog.Float64("duration_ms", durationMs(duration)),
		slog.Int("nodes_executed", steps),
	)
}

// LogRunError logs a failed graph execution.
func LogRunError(logger *slog.Logger, runID string, err error, duration time.Duration, lastNode string) {
	if logger == nil {
		return
	}
	logger.Error("graph run failed",
		slog.String("run_id", runID),
		slog.String("error", err.Error()),
		slog.Float64("duration_ms", durationMs(duration)),
		slog.String("last_node", lastNode),
	)
}

// LogNodeStart logs the start of a node execution.
func LogNodeStart(logger *slog.Logger, nodeID string, step int) {
	if logger == nil {
		return
	}
	logger.Debug("node starting",
		slog.String("node_id", nodeID),
		slog.Int("step", step),
	)
}

// LogNodeComplete logs a successful node execution.
func LogNodeComplete(logger *slog.Logger, nodeID string, duration time.Duration) {
	if logger == nil {
		return
	}
	logger.Debug("node completed",
		slog.String("node_id", nodeID),
		slog.Float64("duration_ms", durationMs(duration)),
	)
}

// LogNodeError logs a failed node execution.
func LogNodeError(logger *slog.Logger, nodeID string, err error) {
	if logger == nil {
		return
	}
	logger.Error("node failed",
		slog.String("node_id", nodeID),
		slog.String("error", err.Error()),
	)
}

// LogRoute logs a routing decision taken after a node completed.
// label is empty for unconditional edges.
func LogRoute(logger *slog.Logger, from, label, to string) {
	if logger == nil {
		return
	}
	attrs := []any{
		slog.String("from", from),
		slog.String("to", to),
	}
	if label != "" {
		attrs = append(attrs, slog.String("label", label))
	}
	logger.Debug("route selected", attrs...)
}

// LogRetry logs a failed attempt that will be retried after wait.
func LogRetry(logger *slog.Logger, nodeID string, attempt int, wait time.Duration, err error) {
	if logger == nil {
		return
	}
	logger.Warn("attempt failed, retrying",
		slog.String("node_id", nodeID),
		slog.Int("attempt", attempt),
		slog.Duration("wait", wait),
		slog.String("error", err.Error()),
	)
}

// LogHistoryError logs a history write that failed without aborting the run.
func LogHistoryError(logger *slog.Logger, nodeID string, err error) {
	if logger == nil {
		return
	}
	logger.Warn("history record failed",
		slog.String("node_id", nodeID),
		slog.String("error", err.Error()),
	)
}

// TimedOperation returns a function reporting the time elapsed since the call.
func TimedOperation() func() time.Duration {
	start := time.Now()
	return func() time.Duration {
		return time.Since(start)
	}
}

func durationMs(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}
