package nodes

import (
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"github.com/randalmurphal/stategraph/pkg/stategraph"
)

// SubgraphConfig configures a Subgraph node.
type SubgraphConfig struct {
	// Graph is the nested graph.
	Graph *stategraph.CompiledGraph
	// Inputs maps outer state keys to the nested graph's input keys.
	// Absent outer keys are skipped.
	Inputs map[string]string
	// Outputs maps keys of the nested graph's final state back to outer keys.
	Outputs map[string]string
	// MaxIterations overrides the nested graph's cap. Zero keeps its default.
	MaxIterations int
}

// Subgraph runs a compiled graph as a single step. The nested execution
// shares the caller's context, logger and metrics and has its own iteration
// cap; its failure fails this node.
type Subgraph struct {
	cfg SubgraphConfig
}

// NewSubgraph validates cfg and returns the node.
func NewSubgraph(cfg SubgraphConfig) (*Subgraph, error) {
	if cfg.Graph == nil {
		return nil, fmt.Errorf("subgraph: %w", ErrNoGraph)
	}
	if len(cfg.Outputs) == 0 {
		return nil, fmt.Errorf("subgraph %s: %w", cfg.Graph.Name(), ErrNoOutputs)
	}
	cfg.Inputs = maps.Clone(cfg.Inputs)
	cfg.Outputs = maps.Clone(cfg.Outputs)
	return &Subgraph{cfg: cfg}, nil
}

// InputKeys implements stategraph.KeyDeclarer.
func (n *Subgraph) InputKeys() []string {
	return sortedKeys(n.cfg.Inputs)
}

// OutputKeys implements stategraph.KeyDeclarer.
func (n *Subgraph) OutputKeys() []string {
	out := slices.Collect(maps.Values(n.cfg.Outputs))
	slices.Sort(out)
	return slices.Compact(out)
}

// Execute implements stategraph.Node.
func (n *Subgraph) Execute(ctx stategraph.Context, s stategraph.State) (stategraph.Update, error) {
	input := stategraph.State{}
	for outer, inner := range n.cfg.Inputs {
		if v, ok := s[outer]; ok {
			input[inner] = v
		}
	}

	name := n.cfg.Graph.Name()
	opts := []stategraph.RunOption{
		stategraph.WithRunID(ctx.RunID() + "/" + ctx.NodeID()),
		stategraph.WithLogger(ctx.Logger().With(slog.String("subgraph", name))),
		stategraph.WithMetrics(ctx.Metrics()),
	}
	if n.cfg.MaxIterations > 0 {
		opts = append(opts, stategraph.WithMaxIterations(n.cfg.MaxIterations))
	}

	final, err := n.cfg.Graph.Invoke(ctx, input, opts...)
	if err != nil {
		return nil, fmt.Errorf("subgraph %s: %w", name, err)
	}

	upd := stategraph.Update{}
	for inner, outer := range n.cfg.Outputs {
		if v, ok := final[inner]; ok {
			upd[outer] = v
		}
	}
	return upd, nil
}
