package stategraph

import "sort"

// CompiledGraph is the immutable, executable form of a Graph.
//
// A CompiledGraph holds only read-only tables, so any number of Invoke and
// Stream calls may run concurrently; each execution owns its own State.
type CompiledGraph struct {
	name          string
	maxIterations int
	keys          KeyStrategies

	nodes   map[string]Node
	order   []string
	entry   string
	edges   map[string]string
	routers map[string]*compiledRoute
	outputs map[string]map[string]bool
}

type compiledRoute struct {
	router RouterFunc
	routes map[string]string
	labels []string
}

// Name returns the graph name set with WithName.
func (cg *CompiledGraph) Name() string {
	return cg.name
}

// MaxIterations returns the graph's default iteration cap.
func (cg *CompiledGraph) MaxIterations() int {
	return cg.maxIterations
}

// Entry returns the node START leads to, or "" when START routes
// conditionally.
func (cg *CompiledGraph) Entry() string {
	return cg.entry
}

// NodeIDs returns every declared node id in sorted order.
func (cg *CompiledGraph) NodeIDs() []string {
	ids := append([]string(nil), cg.order...)
	sort.Strings(ids)
	return ids
}

// HasNode reports whether id is a declared node.
func (cg *CompiledGraph) HasNode(id string) bool {
	_, ok := cg.nodes[id]
	return ok
}

// Successors returns the ids id can transition to: its plain edge target,
// or every distinct route target in label order. START is accepted.
func (cg *CompiledGraph) Successors(id string) []string {
	if to, ok := cg.edges[id]; ok {
		return []string{to}
	}
	r, ok := cg.routers[id]
	if !ok {
		return nil
	}
	seen := make(map[string]bool, len(r.routes))
	out := make([]string, 0, len(r.routes))
	for _, label := range r.labels {
		target := r.routes[label]
		if !seen[target] {
			seen[target] = true
			out = append(out, target)
		}
	}
	return out
}

// Routes returns a copy of the label table on id's conditional edge, or nil.
func (cg *CompiledGraph) Routes(id string) map[string]string {
	r, ok := cg.routers[id]
	if !ok {
		return nil
	}
	out := make(map[string]string, len(r.routes))
	for label, target := range r.routes {
		out[label] = target
	}
	return out
}

// IsConditional reports whether id leaves through a conditional edge.
func (cg *CompiledGraph) IsConditional(id string) bool {
	_, ok := cg.routers[id]
	return ok
}

// Keys returns a copy of the graph's key strategies.
func (cg *CompiledGraph) Keys() KeyStrategies {
	return cg.keys.clone()
}
