// Package stategraph is a graph-based workflow and agent orchestration
// engine.
//
// A workflow is declared as named nodes joined by edges. Plain edges always
// go to the same target; conditional edges call a RouterFunc on the current
// state and look its label up in a route table. START and END bound every
// graph.
//
// All nodes share one key/value State. Each key is declared up front in a
// KeyStrategies value with a merge strategy deciding how a node's output for
// that key combines with the previous value:
//
//	keys := stategraph.KeyStrategies{
//	    "input":    stategraph.Replace(),
//	    "messages": stategraph.Append(),
//	}
//
// Building and compiling:
//
//	g := stategraph.NewGraph(keys, stategraph.WithName("review"))
//	_ = g.AddNode("classify", classifyNode)
//	_ = g.AddNode("praise", praiseNode)
//	_ = g.AddNode("escalate", escalateNode)
//	_ = g.AddEdge(stategraph.START, "classify")
//	_ = g.AddConditionalEdges("classify", router, map[string]string{
//	    "positive": "praise",
//	    "negative": "escalate",
//	})
//	_ = g.AddEdge("praise", stategraph.END)
//	_ = g.AddEdge("escalate", stategraph.END)
//
//	compiled, err := g.Compile()
//
// Compile reports every structural problem at once in a
// *GraphValidationError. A CompiledGraph is immutable and can be shared by
// concurrent executions.
//
// Running:
//
//	final, err := compiled.Invoke(ctx, stategraph.State{"input": text})
//
// or, to observe each step:
//
//	for snap, err := range compiled.Stream(ctx, input) { ... }
//
// Executions are sequential: exactly one node runs at a time. Cycles are
// allowed and bounded by an iteration cap (DefaultMaxIterations unless set
// with WithDefaultMaxIterations or WithMaxIterations).
//
// Node implementations for model calls, classification, HTTP requests with
// retry, nested graphs and tool-using agents live in the nodes package.
package stategraph
