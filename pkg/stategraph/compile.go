package stategraph

import (
	"fmt"
	"sort"
)

// Compile validates the graph and freezes it into an executable
// CompiledGraph.
//
// All violations are collected into one *GraphValidationError:
//   - START has no outgoing transition, or more than one
//   - an edge leaves END or enters START
//   - a node has no outgoing transition, or has conflicting ones
//   - a route label points at an undeclared node
//   - a node cannot be reached from START, or END cannot be reached at all
//   - a node declares input or output keys without a merge strategy
//
// A failed Compile leaves the builder usable so the graph can be fixed.
// After a successful one, Compile returns ErrAlreadyCompiled.
func (g *Graph) Compile() (*CompiledGraph, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.compiled {
		return nil, ErrAlreadyCompiled
	}

	if errs := g.validate(); len(errs) > 0 {
		return nil, &GraphValidationError{Violations: errs}
	}

	g.compiled = true
	return g.build(), nil
}

func (g *Graph) validate() []error {
	var errs []error

	switch n := g.transitionCount(START); {
	case n == 0:
		errs = append(errs, ErrNoEntryPoint)
	case n > 1:
		errs = append(errs, fmt.Errorf("%w: START has %d outgoing transitions", ErrMultipleEntries, n))
	}

	if g.transitionCount(END) > 0 {
		errs = append(errs, ErrEdgeFromEnd)
	}

	for _, from := range g.sources {
		for _, to := range g.edges[from] {
			if to == START {
				errs = append(errs, fmt.Errorf("%w: edge %s -> %s", ErrEdgeToStart, from, to))
			}
		}
		for _, ce := range g.conditional[from] {
			for _, label := range sortedLabels(ce.routes) {
				target := ce.routes[label]
				switch {
				case target == START:
					errs = append(errs, fmt.Errorf("%w: route %s[%q] -> %s", ErrEdgeToStart, from, label, target))
				case target == END:
				case g.nodes[target] == nil:
					errs = append(errs, fmt.Errorf("%w: route %s[%q] -> %q", ErrDanglingRoute, from, label, target))
				}
			}
		}
	}

	for _, id := range g.order {
		plain, cond := len(g.edges[id]), len(g.conditional[id])
		switch {
		case plain == 0 && cond == 0:
			errs = append(errs, fmt.Errorf("%w: %q", ErrNoTransition, id))
		case plain > 0 && cond > 0:
			errs = append(errs, fmt.Errorf("%w: %q has both plain and conditional edges", ErrMixedEdges, id))
		case plain > 1:
			errs = append(errs, fmt.Errorf("%w: %q has %d plain edges", ErrMixedEdges, id, plain))
		case cond > 1:
			errs = append(errs, fmt.Errorf("%w: %q has %d conditional edges", ErrMixedEdges, id, cond))
		}
	}

	if g.transitionCount(START) > 0 {
		reachable := g.reachableFromStart()
		for _, id := range g.order {
			if !reachable[id] {
				errs = append(errs, fmt.Errorf("%w: %q", ErrUnreachableNode, id))
			}
		}
		if !reachable[END] {
			errs = append(errs, ErrNoPathToEnd)
		}
	}

	for _, id := range g.order {
		decl, ok := g.nodes[id].(KeyDeclarer)
		if !ok {
			continue
		}
		for _, key := range decl.OutputKeys() {
			if !g.keys.Declared(key) {
				errs = append(errs, fmt.Errorf("%w: node %q writes %q", ErrUndeclaredKey, id, key))
			}
		}
		for _, key := range decl.InputKeys() {
			if !g.keys.Declared(key) {
				errs = append(errs, fmt.Errorf("%w: node %q reads %q", ErrUndeclaredKey, id, key))
			}
		}
	}

	return errs
}

// transitionCount counts the plain and conditional edges leaving id.
func (g *Graph) transitionCount(id string) int {
	return len(g.edges[id]) + len(g.conditional[id])
}

// successorsOf lists every node id reachable in one hop from id, including
// all route table targets.
func (g *Graph) successorsOf(id string) []string {
	out := append([]string(nil), g.edges[id]...)
	for _, ce := range g.conditional[id] {
		for _, label := range sortedLabels(ce.routes) {
			out = append(out, ce.routes[label])
		}
	}
	return out
}

// reachableFromStart runs a BFS from START over plain edges and route tables.
func (g *Graph) reachableFromStart() map[string]bool {
	reachable := map[string]bool{START: true}
	queue := []string{START}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, next := range g.successorsOf(current) {
			if reachable[next] {
				continue
			}
			if next != END && g.nodes[next] == nil {
				continue
			}
			reachable[next] = true
			if next != END {
				queue = append(queue, next)
			}
		}
	}
	return reachable
}

// build copies the validated builder into an immutable CompiledGraph.
func (g *Graph) build() *CompiledGraph {
	cg := &CompiledGraph{
		name:          g.cfg.name,
		maxIterations: g.cfg.maxIterations,
		keys:          g.keys.clone(),
		nodes:         make(map[string]Node, len(g.nodes)),
		order:         append([]string(nil), g.order...),
		edges:         make(map[string]string),
		routers:       make(map[string]*compiledRoute),
		outputs:       make(map[string]map[string]bool),
	}

	for id, n := range g.nodes {
		cg.nodes[id] = n
		if decl, ok := n.(KeyDeclarer); ok {
			allowed := make(map[string]bool)
			for _, k := range decl.OutputKeys() {
				allowed[k] = true
			}
			cg.outputs[id] = allowed
		}
	}

	for from, targets := range g.edges {
		cg.edges[from] = targets[0]
	}
	for from, ces := range g.conditional {
		ce := ces[0]
		routes := make(map[string]string, len(ce.routes))
		for label, target := range ce.routes {
			routes[label] = target
		}
		cg.routers[from] = &compiledRoute{
			router: ce.router,
			routes: routes,
			labels: sortedLabels(routes),
		}
	}

	if next, ok := cg.edges[START]; ok {
		cg.entry = next
	}
	return cg
}

func sortedLabels(routes map[string]string) []string {
	labels := make([]string, 0, len(routes))
	for label := range routes {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}
