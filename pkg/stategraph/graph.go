package stategraph

import (
	"fmt"
	"strings"
	"sync"
)

// Graph is the mutable builder for an execution graph.
//
// Nodes must be added before the edges that reference them. Structural
// problems that only show up once the whole graph is known (unreachable
// nodes, dangling routes, missing transitions) are reported together by
// Compile.
//
// Graph is safe for concurrent use, but building from a single goroutine
// is the expected pattern. After a successful Compile the builder is frozen
// and every mutating call returns ErrAlreadyCompiled.
//
//	g := stategraph.NewGraph(stategraph.ReplaceKeys("out"))
//	_ = g.AddNode("a", stategraph.NodeFunc(func(stategraph.Context, stategraph.State) (stategraph.Update, error) {
//	    return stategraph.Update{"out": "x"}, nil
//	}))
//	_ = g.AddEdge(stategraph.START, "a")
//	_ = g.AddEdge("a", stategraph.END)
//	compiled, err := g.Compile()
type Graph struct {
	mu sync.Mutex

	cfg  graphConfig
	keys KeyStrategies

	nodes map[string]Node
	order []string

	edges       map[string][]string
	conditional map[string][]*conditionalEdge
	sources     []string

	compiled bool
}

type conditionalEdge struct {
	router RouterFunc
	routes map[string]string
}

// NewGraph returns an empty builder whose state keys are declared by keys.
// keys is copied; later changes to the map do not affect the graph.
func NewGraph(keys KeyStrategies, opts ...GraphOption) *Graph {
	cfg := graphConfig{
		name:          "stategraph",
		maxIterations: DefaultMaxIterations,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Graph{
		cfg:         cfg,
		keys:        keys.clone(),
		nodes:       make(map[string]Node),
		edges:       make(map[string][]string),
		conditional: make(map[string][]*conditionalEdge),
	}
}

// AddNode declares a node.
//
// Fails with ErrInvalidNodeID for empty ids, ids with surrounding or
// embedded whitespace and the reserved START/END ids, ErrNilNode for a nil
// node and *DuplicateIDError when id is already taken.
func (g *Graph) AddNode(id string, n Node) error {
	if err := validateNodeID(id); err != nil {
		return err
	}
	if n == nil {
		return fmt.Errorf("%w: %q", ErrNilNode, id)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.compiled {
		return ErrAlreadyCompiled
	}
	if _, exists := g.nodes[id]; exists {
		return &DuplicateIDError{NodeID: id}
	}
	g.nodes[id] = n
	g.order = append(g.order, id)
	return nil
}

// AddEdge adds an unconditional edge. from may be START and to may be END;
// anything else must already be declared or *UnknownNodeError is returned.
// Edges that break graph invariants (leaving END, entering START, a second
// plain edge) are accepted here and reported by Compile.
func (g *Graph) AddEdge(from, to string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.compiled {
		return ErrAlreadyCompiled
	}
	if !g.isEndpoint(from) {
		return &UnknownNodeError{NodeID: from, From: from, To: to}
	}
	if !g.isEndpoint(to) {
		return &UnknownNodeError{NodeID: to, From: from, To: to}
	}
	g.noteSource(from)
	g.edges[from] = append(g.edges[from], to)
	return nil
}

// AddConditionalEdges attaches a router to from. After from completes, the
// router's label is looked up in routes to pick the next node (or END).
//
// Route targets are checked by Compile so edges can be declared before
// every target exists. from must be START or a declared node.
func (g *Graph) AddConditionalEdges(from string, router RouterFunc, routes map[string]string) error {
	if router == nil {
		return fmt.Errorf("%w: from %q", ErrNilRouter, from)
	}
	if len(routes) == 0 {
		return fmt.Errorf("%w: from %q", ErrEmptyRoutes, from)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.compiled {
		return ErrAlreadyCompiled
	}
	if !g.isEndpoint(from) {
		return &UnknownNodeError{NodeID: from, From: from, To: "<conditional>"}
	}

	table := make(map[string]string, len(routes))
	for label, target := range routes {
		table[label] = target
	}
	g.noteSource(from)
	g.conditional[from] = append(g.conditional[from], &conditionalEdge{router: router, routes: table})
	return nil
}

// isEndpoint reports whether id can appear on either side of an edge.
// Caller must hold g.mu.
func (g *Graph) isEndpoint(id string) bool {
	if id == START || id == END {
		return true
	}
	_, ok := g.nodes[id]
	return ok
}

// noteSource remembers the order edge sources were first seen so compile
// errors come out in a stable order. Caller must hold g.mu.
func (g *Graph) noteSource(from string) {
	if _, ok := g.edges[from]; ok {
		return
	}
	if _, ok := g.conditional[from]; ok {
		return
	}
	g.sources = append(g.sources, from)
}

func validateNodeID(id string) error {
	switch {
	case id == "":
		return fmt.Errorf("%w: empty", ErrInvalidNodeID)
	case id == START || id == END:
		return fmt.Errorf("%w: %q is reserved", ErrInvalidNodeID, id)
	case strings.ContainsAny(id, " \t\n\r"):
		return fmt.Errorf("%w: %q contains whitespace", ErrInvalidNodeID, id)
	}
	return nil
}
