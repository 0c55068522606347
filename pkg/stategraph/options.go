package stategraph

import (
	"log/slog"

	"github.com/randalmurphal/stategraph/pkg/stategraph/history"
	"github.com/randalmurphal/stategraph/pkg/stategraph/observability"
)

// DefaultMaxIterations bounds node executions when neither the graph nor the
// run sets a cap.
const DefaultMaxIterations = 25

// GraphOption configures a Graph builder.
type GraphOption func(*graphConfig)

type graphConfig struct {
	name          string
	maxIterations int
}

// WithName names the graph in logs, spans and rendered diagrams.
func WithName(name string) GraphOption {
	return func(c *graphConfig) {
		c.name = name
	}
}

// WithDefaultMaxIterations sets the iteration cap used by runs that do not
// pass WithMaxIterations. Non-positive values are ignored.
func WithDefaultMaxIterations(n int) GraphOption {
	return func(c *graphConfig) {
		if n > 0 {
			c.maxIterations = n
		}
	}
}

// RunOption configures one execution.
type RunOption func(*runConfig)

type runConfig struct {
	maxIterations int
	runID         string
	logger        *slog.Logger
	metrics       observability.MetricsRecorder
	spans         observability.SpanManager
	history       history.Store
	historyFatal  bool
}

func defaultRunConfig(maxIterations int) runConfig {
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}
	return runConfig{
		maxIterations: maxIterations,
		logger:        slog.Default(),
		metrics:       observability.NoopMetrics{},
		spans:         observability.NoopSpanManager{},
	}
}

// WithMaxIterations caps the number of node executions for this run.
// Attempting one more execution fails with a MaxIterationsError.
// Non-positive values are ignored.
//
//	final, err := compiled.Invoke(ctx, input, stategraph.WithMaxIterations(10))
func WithMaxIterations(n int) RunOption {
	return func(c *runConfig) {
		if n > 0 {
			c.maxIterations = n
		}
	}
}

// WithRunID sets the execution id used in logs, spans and history.
// A UUID is generated when unset.
func WithRunID(id string) RunOption {
	return func(c *runConfig) {
		c.runID = id
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) RunOption {
	return func(c *runConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics records node and run metrics to m.
func WithMetrics(m observability.MetricsRecorder) RunOption {
	return func(c *runConfig) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithTracing emits run and node spans through sm.
func WithTracing(sm observability.SpanManager) RunOption {
	return func(c *runConfig) {
		if sm != nil {
			c.spans = sm
		}
	}
}

// WithHistory records one entry per node completion in store.
// Write failures are logged and ignored unless WithHistoryFailureFatal is set.
func WithHistory(store history.Store) RunOption {
	return func(c *runConfig) {
		c.history = store
	}
}

// WithHistoryFailureFatal aborts the run with a HistoryError when a history
// write fails.
func WithHistoryFailureFatal() RunOption {
	return func(c *runConfig) {
		c.historyFatal = true
	}
}
