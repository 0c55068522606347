package benchmarks

import (
	"fmt"
	"testing"

	"github.com/randalmurphal/stategraph/pkg/stategraph"
)

var benchKeys = stategraph.KeyStrategies{
	"value": stategraph.Replace(),
	"trail": stategraph.Append(),
}

// noopNode does minimal work to measure framework overhead.
var noopNode = stategraph.NodeFunc(func(stategraph.Context, stategraph.State) (stategraph.Update, error) {
	return nil, nil
})

// BenchmarkNewGraph measures graph creation overhead.
func BenchmarkNewGraph(b *testing.B) {
	for i := 0; i < b.N; i++ {
		stategraph.NewGraph(benchKeys)
	}
}

// BenchmarkAddNode_10 measures adding 10 nodes.
func BenchmarkAddNode_10(b *testing.B) {
	for i := 0; i < b.N; i++ {
		g := stategraph.NewGraph(benchKeys)
		for j := 0; j < 10; j++ {
			_ = g.AddNode(nodeID(j), noopNode)
		}
	}
}

// BenchmarkAddNode_100 measures adding 100 nodes.
func BenchmarkAddNode_100(b *testing.B) {
	for i := 0; i < b.N; i++ {
		g := stategraph.NewGraph(benchKeys)
		for j := 0; j < 100; j++ {
			_ = g.AddNode(nodeID(j), noopNode)
		}
	}
}

// BenchmarkCompile_Linear compiles linear graphs of several sizes. A
// graph compiles once, so each iteration builds a fresh one.
func BenchmarkCompile_Linear(b *testing.B) {
	for _, n := range []int{5, 10, 50, 100} {
		b.Run(fmt.Sprint(n), func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				if _, err := buildLinearGraph(n).Compile(); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// BenchmarkCompile_Branching compiles a graph with conditional edges.
func BenchmarkCompile_Branching(b *testing.B) {
	for i := 0; i < b.N; i++ {
		if _, err := buildBranchingGraph().Compile(); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkMermaid renders a 50-node graph.
func BenchmarkMermaid(b *testing.B) {
	compiled := mustCompile(buildLinearGraph(50))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = compiled.Mermaid()
	}
}

// Helper functions

func nodeID(n int) string {
	return fmt.Sprintf("n%03d", n)
}

func mustCompile(g *stategraph.Graph) *stategraph.CompiledGraph {
	compiled, err := g.Compile()
	if err != nil {
		panic(err)
	}
	return compiled
}

func mustDo(errs ...error) {
	for _, err := range errs {
		if err != nil {
			panic(err)
		}
	}
}

func buildLinearGraph(n int) *stategraph.Graph {
	g := stategraph.NewGraph(benchKeys, stategraph.WithDefaultMaxIterations(n+1))
	for i := 0; i < n; i++ {
		mustDo(g.AddNode(nodeID(i), noopNode))
	}
	mustDo(g.AddEdge(stategraph.START, nodeID(0)))
	for i := 0; i < n-1; i++ {
		mustDo(g.AddEdge(nodeID(i), nodeID(i+1)))
	}
	mustDo(g.AddEdge(nodeID(n-1), stategraph.END))
	return g
}

func buildBranchingGraph() *stategraph.Graph {
	router := func(_ stategraph.Context, s stategraph.State) string {
		if v, _ := s["value"].(int); v%2 == 0 {
			return "even"
		}
		return "odd"
	}

	g := stategraph.NewGraph(benchKeys)
	mustDo(
		g.AddNode("first", noopNode),
		g.AddNode("even", noopNode),
		g.AddNode("odd", noopNode),
		g.AddNode("merge", noopNode),
		g.AddEdge(stategraph.START, "first"),
		g.AddConditionalEdges("first", router, map[string]string{"even": "even", "odd": "odd"}),
		g.AddEdge("even", "merge"),
		g.AddEdge("odd", "merge"),
		g.AddEdge("merge", stategraph.END),
	)
	return g
}

// buildLoopGraph loops until the trail holds iterations entries.
func buildLoopGraph(iterations int) *stategraph.Graph {
	step := stategraph.NodeFunc(func(stategraph.Context, stategraph.State) (stategraph.Update, error) {
		return stategraph.Update{"trail": "x"}, nil
	})
	router := func(_ stategraph.Context, s stategraph.State) string {
		if seq, _ := s["trail"].([]any); len(seq) >= iterations {
			return "done"
		}
		return "loop"
	}

	g := stategraph.NewGraph(benchKeys, stategraph.WithDefaultMaxIterations(iterations+1))
	mustDo(
		g.AddNode("loop", step),
		g.AddEdge(stategraph.START, "loop"),
		g.AddConditionalEdges("loop", router, map[string]string{"loop": "loop", "done": stategraph.END}),
	)
	return g
}
