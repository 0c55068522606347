package stategraph

// START and END are the reserved pseudo-nodes bounding every graph.
// Use START as the source of the entry edge and END as a terminal target.
const (
	START = "__start__"
	END   = "__end__"
)

// Node is one processing step.
//
// Execute receives a snapshot of the current state and returns the partial
// Update to merge. Returning an error aborts the execution; the runner wraps
// it in a NodeError. Implementations may run concurrently across executions
// and must not keep references to the snapshot after returning.
type Node interface {
	Execute(ctx Context, s State) (Update, error)
}

// NodeFunc adapts a function to the Node interface.
type NodeFunc func(ctx Context, s State) (Update, error)

// Execute calls f.
func (f NodeFunc) Execute(ctx Context, s State) (Update, error) {
	return f(ctx, s)
}

// KeyDeclarer is implemented by nodes that declare the state keys they read
// and write. Compile checks every output key has a merge strategy, and the
// runner rejects updates touching keys outside OutputKeys.
type KeyDeclarer interface {
	InputKeys() []string
	OutputKeys() []string
}

// RouterFunc picks a label for a conditional edge from the state produced by
// the node the edge leaves. Routers must be pure: same state, same label,
// no side effects.
type RouterFunc func(ctx Context, s State) string
