package nodes

import (
	"fmt"
	"maps"
	"slices"

	"github.com/randalmurphal/stategraph/pkg/stategraph"
)

// Compute wraps a function as a node with declared keys.
//
//	double := nodes.NewCompute(func(ctx stategraph.Context, s stategraph.State) (stategraph.Update, error) {
//		n, _ := s["n"].(int)
//		return stategraph.Update{"n": n * 2}, nil
//	}, "n").Reads("n")
type Compute struct {
	fn      stategraph.NodeFunc
	inputs  []string
	outputs []string
}

var (
	_ stategraph.Node        = (*Compute)(nil)
	_ stategraph.KeyDeclarer = (*Compute)(nil)
)

// NewCompute returns a node calling fn that may write outputKeys.
//
// Panics if fn is nil.
func NewCompute(fn stategraph.NodeFunc, outputKeys ...string) *Compute {
	if fn == nil {
		panic("nodes: compute function cannot be nil")
	}
	return &Compute{fn: fn, outputs: slices.Clone(outputKeys)}
}

// Reads declares the keys fn reads. It returns c for chaining.
func (c *Compute) Reads(keys ...string) *Compute {
	c.inputs = append(c.inputs, keys...)
	return c
}

// Execute implements stategraph.Node.
func (c *Compute) Execute(ctx stategraph.Context, s stategraph.State) (stategraph.Update, error) {
	return c.fn(ctx, s)
}

// InputKeys implements stategraph.KeyDeclarer.
func (c *Compute) InputKeys() []string { return slices.Clone(c.inputs) }

// OutputKeys implements stategraph.KeyDeclarer.
func (c *Compute) OutputKeys() []string { return slices.Clone(c.outputs) }

// Set writes fixed values every time it runs.
type Set struct {
	values stategraph.Update
}

// NewSet returns a node writing values.
func NewSet(values stategraph.Update) (*Set, error) {
	if len(values) == 0 {
		return nil, fmt.Errorf("set node: %w", ErrNoValues)
	}
	return &Set{values: maps.Clone(values)}, nil
}

// Execute implements stategraph.Node.
func (n *Set) Execute(stategraph.Context, stategraph.State) (stategraph.Update, error) {
	return maps.Clone(n.values), nil
}

// InputKeys implements stategraph.KeyDeclarer.
func (n *Set) InputKeys() []string { return nil }

// OutputKeys implements stategraph.KeyDeclarer.
func (n *Set) OutputKeys() []string {
	return slices.Sorted(maps.Keys(n.values))
}
