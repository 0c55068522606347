package stategraph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/randalmurphal/stategraph/pkg/stategraph/history"
	"github.com/randalmurphal/stategraph/pkg/stategraph/observability"
	"go.opentelemetry.io/otel/attribute"
)

// Snapshot is emitted by Stream after each node completes.
type Snapshot struct {
	// Step is the 1-based count of node executions so far.
	Step int
	// NodeID is the node that just completed.
	NodeID string
	// Next is the node the runner will execute next, or END.
	Next string
	// State is a copy of the execution state after the node's update.
	State State
}

// Invoke runs the graph from START to END and returns the final state.
//
// input seeds the state; every key in it must be declared. On failure the
// partial state reached so far is returned with the error:
// *InputError, *NodeError, *PanicError, *RouterError, *MaxIterationsError,
// *CancellationError or *HistoryError. A panic in a Custom merge function is
// a *NodeError wrapping a *PanicError; one in a router is a *RouterError
// wrapping a *PanicError.
func (cg *CompiledGraph) Invoke(ctx context.Context, input State, opts ...RunOption) (State, error) {
	if ctx == nil {
		return input.Clone(), ErrNilContext
	}
	cfg := cg.runConfig(opts)
	return cg.execute(ctx, input, &cfg, func(Snapshot) bool { return true })
}

func (cg *CompiledGraph) runConfig(opts []RunOption) runConfig {
	cfg := defaultRunConfig(cg.maxIterations)
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// execute wraps run with run-level logging, metrics and tracing.
// emit returns false to stop the execution early; that is not an error.
func (cg *CompiledGraph) execute(ctx context.Context, input State, cfg *runConfig, emit func(Snapshot) bool) (result State, runErr error) {
	ec := cfg.newContext(ctx)
	elapsed := observability.TimedOperation()

	observability.LogRunStart(cfg.logger, cg.name, ec.runID, cfg.maxIterations)

	spanCtx, runSpan := cfg.spans.StartRunSpan(ctx, cg.name, ec.runID)
	defer func() {
		cfg.spans.EndSpanWithError(runSpan, runErr)
	}()
	ec.Context = spanCtx

	result, steps, last, runErr := cg.run(ec, input, cfg, emit)

	duration := elapsed()
	cfg.metrics.RecordGraphRun(ctx, cg.name, runErr == nil, duration, steps)
	if runErr != nil {
		observability.LogRunError(cfg.logger, ec.runID, runErr, duration, last)
	} else {
		observability.LogRunComplete(cfg.logger, ec.runID, duration, steps)
	}
	return result, runErr
}

// run is the sequential execution loop. It returns the state, the number of
// node executions and the last node touched.
func (cg *CompiledGraph) run(ec *executionContext, input State, cfg *runConfig, emit func(Snapshot) bool) (State, int, string, error) {
	state := State{}
	if err := cg.keys.apply(state, Update(input)); err != nil {
		return input.Clone(), 0, "", &InputError{Err: err}
	}

	current, _, err := cg.nextNode(ec, START, state)
	if err != nil {
		return state, 0, START, err
	}

	steps := 0
	for current != END {
		if steps >= cfg.maxIterations {
			return state, steps, current, &MaxIterationsError{
				Max:        cfg.maxIterations,
				NextNodeID: current,
			}
		}

		if err := ec.Err(); err != nil {
			return state, steps, current, &CancellationError{
				NodeID: current,
				Cause:  err,
			}
		}

		steps++
		spanCtx, nodeSpan := cfg.spans.StartNodeSpan(ec.Context, current, steps)
		nodeCtx := ec.forNode(spanCtx, current, steps)

		observability.LogNodeStart(nodeCtx.logger, current, steps)
		elapsed := observability.TimedOperation()

		upd, nodeErr := cg.executeNode(nodeCtx, current, state)
		if nodeErr == nil {
			nodeErr = cg.merge(current, state, upd)
		}

		duration := elapsed()
		cfg.metrics.RecordNodeExecution(spanCtx, current, duration, nodeErr)
		cfg.spans.EndSpanWithError(nodeSpan, nodeErr)

		if nodeErr != nil {
			observability.LogNodeError(nodeCtx.logger, current, nodeErr)
			return state, steps, current, nodeErr
		}
		observability.LogNodeComplete(nodeCtx.logger, current, duration)

		next, label, err := cg.nextNode(nodeCtx, current, state)
		if err != nil {
			return state, steps, current, err
		}
		observability.LogRoute(nodeCtx.logger, current, label, next)
		cfg.spans.AddSpanEvent(ec.Context, "node.completed",
			attribute.String("node.id", current),
			attribute.String("node.next", next),
		)

		if cfg.history != nil {
			if err := cg.recordHistory(ec, cfg, steps, current, next, label, state); err != nil {
				return state, steps, current, err
			}
		}

		if !emit(Snapshot{Step: steps, NodeID: current, Next: next, State: state.Clone()}) {
			return state, steps, current, nil
		}
		current = next
	}

	return state, steps, current, nil
}

// executeNode runs one node with panic recovery. The node receives a copy of
// the state so it cannot mutate the execution's state directly.
func (cg *CompiledGraph) executeNode(ctx *executionContext, nodeID string, state State) (upd Update, err error) {
	n := cg.nodes[nodeID]

	defer func() {
		if r := recover(); r != nil {
			upd = nil
			err = &PanicError{
				NodeID: nodeID,
				Value:  r,
				Stack:  string(debug.Stack()),
			}
		}
	}()

	upd, err = n.Execute(ctx, state.Clone())
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, &CancellationError{
				NodeID:       nodeID,
				Cause:        ctxErr,
				WasExecuting: true,
			}
		}
		return nil, &NodeError{NodeID: nodeID, Op: "execute", Err: err}
	}
	return upd, nil
}

// merge applies a node's update through the key strategies. Either every key
// is merged or none is.
func (cg *CompiledGraph) merge(nodeID string, state State, upd Update) error {
	if len(upd) == 0 {
		return nil
	}
	if allowed, ok := cg.outputs[nodeID]; ok {
		for _, key := range upd.sortedKeys() {
			if !allowed[key] {
				return &NodeError{
					NodeID: nodeID,
					Op:     "merge",
					Err:    fmt.Errorf("%w: %q", ErrUnexpectedOutputKey, key),
				}
			}
		}
	}
	if err := cg.keys.apply(state, upd); err != nil {
		var pe *PanicError
		if errors.As(err, &pe) && pe.NodeID == "" {
			pe.NodeID = nodeID
		}
		return &NodeError{NodeID: nodeID, Op: "merge", Err: err}
	}
	return nil
}

// nextNode picks the transition out of current. Routers see the state after
// current's update has been merged. It returns the target and, for
// conditional edges, the label the router chose.
func (cg *CompiledGraph) nextNode(ctx Context, current string, state State) (string, string, error) {
	if to, ok := cg.edges[current]; ok {
		return to, "", nil
	}

	r, ok := cg.routers[current]
	if !ok {
		// Compile guarantees every node has a transition.
		return "", "", &NodeError{
			NodeID: current,
			Op:     "route",
			Err:    fmt.Errorf("no outgoing transition from %s", current),
		}
	}

	label, err := callRouter(r.router, ctx, current, state.Clone())
	if err != nil {
		return "", "", &RouterError{FromNode: current, Err: err}
	}
	if label == "" {
		return "", label, &RouterError{FromNode: current, Label: label, Err: ErrInvalidRouterResult}
	}
	target, ok := r.routes[label]
	if !ok {
		return "", label, &RouterError{FromNode: current, Label: label, Err: ErrUnmappedLabel}
	}
	return target, label, nil
}

// callRouter runs a router, turning a panic into a *PanicError.
func callRouter(router RouterFunc, ctx Context, from string, state State) (label string, err error) {
	defer func() {
		if r := recover(); r != nil {
			label = ""
			err = &PanicError{NodeID: from, Value: r, Stack: string(debug.Stack())}
		}
	}()
	return router(ctx, state), nil
}

func (cg *CompiledGraph) recordHistory(ec *executionContext, cfg *runConfig, step int, nodeID, next, label string, state State) error {
	data, err := json.Marshal(state)
	if err == nil {
		err = cfg.history.Record(history.Entry{
			RunID:     ec.runID,
			Graph:     cg.name,
			Step:      step,
			NodeID:    nodeID,
			Next:      next,
			Label:     label,
			Timestamp: time.Now(),
			State:     data,
		})
	}
	if err == nil {
		return nil
	}
	if cfg.historyFatal {
		return &HistoryError{NodeID: nodeID, Err: err}
	}
	observability.LogHistoryError(cfg.logger, nodeID, err)
	return nil
}
