package stategraph

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/randalmurphal/stategraph/pkg/stategraph/observability"
)

// Context is what nodes and routers receive. It extends context.Context
// with the execution's logger, metrics and identity.
//
// The runner derives a fresh Context for every node, so NodeID and Step
// always describe the node currently running.
type Context interface {
	context.Context

	// Logger returns a logger enriched with run_id, node_id and step.
	// Never nil.
	Logger() *slog.Logger

	// Metrics returns the run's metrics recorder. Never nil.
	Metrics() observability.MetricsRecorder

	// RunID identifies the execution.
	RunID() string

	// NodeID is the node being executed, empty outside a node.
	NodeID() string

	// Step is the 1-based position of the current node execution.
	Step() int
}

type executionContext struct {
	context.Context

	logger  *slog.Logger
	metrics observability.MetricsRecorder
	runID   string
	nodeID  string
	step    int
}

func (c *executionContext) Logger() *slog.Logger                   { return c.logger }
func (c *executionContext) Metrics() observability.MetricsRecorder { return c.metrics }
func (c *executionContext) RunID() string                          { return c.runID }
func (c *executionContext) NodeID() string                         { return c.nodeID }
func (c *executionContext) Step() int                              { return c.step }

// NewContext wraps ctx for calling a node directly, outside a graph
// execution. Only the logger, metrics and run id options apply.
//
//	ctx := stategraph.NewContext(context.Background(), stategraph.WithRunID("run-1"))
//	upd, err := node.Execute(ctx, stategraph.State{"input": "hi"})
func NewContext(ctx context.Context, opts ...RunOption) Context {
	cfg := defaultRunConfig(0)
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg.newContext(ctx)
}

func (cfg *runConfig) newContext(ctx context.Context) *executionContext {
	runID := cfg.runID
	if runID == "" {
		runID = uuid.NewString()
	}
	return &executionContext{
		Context: ctx,
		logger:  cfg.logger.With(slog.String("run_id", runID)),
		metrics: cfg.metrics,
		runID:   runID,
	}
}

// forNode returns a child context describing one node execution.
func (c *executionContext) forNode(ctx context.Context, nodeID string, step int) *executionContext {
	return &executionContext{
		Context: ctx,
		logger:  c.logger.With(slog.String("node_id", nodeID), slog.Int("step", step)),
		metrics: c.metrics,
		runID:   c.runID,
		nodeID:  nodeID,
		step:    step,
	}
}
