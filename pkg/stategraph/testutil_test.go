package stategraph

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// setNode returns a node writing value under key.
func setNode(key string, value any) Node {
	return NodeFunc(func(Context, State) (Update, error) {
		return Update{key: value}, nil
	})
}

// tracker records node executions; safe for concurrent runs.
type tracker struct {
	mu    sync.Mutex
	calls []string
}

func (tr *tracker) node(name string) Node {
	return NodeFunc(func(Context, State) (Update, error) {
		tr.mu.Lock()
		defer tr.mu.Unlock()
		tr.calls = append(tr.calls, name)
		return Update{"trail": name}, nil
	})
}

func (tr *tracker) seen() []string {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return append([]string(nil), tr.calls...)
}

// declaredNode is a NodeFunc that also declares its keys.
type declaredNode struct {
	NodeFunc
	in, out []string
}

func (d declaredNode) InputKeys() []string  { return d.in }
func (d declaredNode) OutputKeys() []string { return d.out }

// alwaysRoute returns a router that always answers label.
func alwaysRoute(label string) RouterFunc {
	return func(Context, State) string { return label }
}

// compileLinear builds START -> ids[0] -> ... -> END from the given nodes.
func compileLinear(t *testing.T, keys KeyStrategies, ids []string, nodes []Node, opts ...GraphOption) *CompiledGraph {
	t.Helper()
	g := NewGraph(keys, opts...)
	for i, id := range ids {
		require.NoError(t, g.AddNode(id, nodes[i]))
	}
	prev := START
	for _, id := range ids {
		require.NoError(t, g.AddEdge(prev, id))
		prev = id
	}
	require.NoError(t, g.AddEdge(prev, END))
	cg, err := g.Compile()
	require.NoError(t, err)
	return cg
}

// compileLoop builds START -> work, work -> check, check routes
// "continue" -> work and "end" -> END.
func compileLoop(t *testing.T, router RouterFunc, opts ...GraphOption) *CompiledGraph {
	t.Helper()
	keys := KeyStrategies{"count": Custom(sumInts), "trail": Append()}
	g := NewGraph(keys, opts...)
	require.NoError(t, g.AddNode("work", NodeFunc(func(Context, State) (Update, error) {
		return Update{"count": 1, "trail": "work"}, nil
	})))
	require.NoError(t, g.AddNode("check", NodeFunc(func(Context, State) (Update, error) {
		return Update{"trail": "check"}, nil
	})))
	require.NoError(t, g.AddEdge(START, "work"))
	require.NoError(t, g.AddEdge("work", "check"))
	require.NoError(t, g.AddConditionalEdges("check", router, map[string]string{
		"continue": "work",
		"end":      END,
	}))
	cg, err := g.Compile()
	require.NoError(t, err)
	return cg
}

func sumInts(old, v any) (any, error) {
	o, _ := old.(int)
	n, _ := v.(int)
	return o + n, nil
}

func bg() context.Context {
	return context.Background()
}
