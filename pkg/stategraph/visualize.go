package stategraph

import (
	"fmt"
	"strings"
)

// Mermaid renders the graph as a Mermaid flowchart.
// Conditional transitions are labelled with their route label.
func (cg *CompiledGraph) Mermaid() string {
	aliases := cg.aliases()
	alias := func(id string) string {
		switch id {
		case START:
			return "__start__"
		case END:
			return "__end__"
		}
		return aliases[id]
	}

	var b strings.Builder
	b.WriteString("flowchart TD\n")
	b.WriteString("    __start__([START])\n")
	for _, id := range cg.order {
		fmt.Fprintf(&b, "    %s[%q]\n", alias(id), id)
	}
	b.WriteString("    __end__([END])\n")

	cg.eachTransition(func(from, label, to string) {
		if label == "" {
			fmt.Fprintf(&b, "    %s --> %s\n", alias(from), alias(to))
			return
		}
		fmt.Fprintf(&b, "    %s -->|%s| %s\n", alias(from), mermaidLabel(label), alias(to))
	})
	return b.String()
}

// PlantUML renders the graph as a PlantUML state diagram. START and END are
// drawn as the initial and final pseudo-states.
func (cg *CompiledGraph) PlantUML(title string) string {
	aliases := cg.aliases()
	alias := func(id string) string {
		if id == START || id == END {
			return "[*]"
		}
		return aliases[id]
	}

	var b strings.Builder
	b.WriteString("@startuml\n")
	if title != "" {
		fmt.Fprintf(&b, "title %s\n", title)
	}
	for _, id := range cg.order {
		fmt.Fprintf(&b, "state %q as %s\n", id, alias(id))
	}
	cg.eachTransition(func(from, label, to string) {
		if label == "" {
			fmt.Fprintf(&b, "%s --> %s\n", alias(from), alias(to))
			return
		}
		fmt.Fprintf(&b, "%s --> %s : %s\n", alias(from), alias(to), label)
	})
	b.WriteString("@enduml\n")
	return b.String()
}

// eachTransition visits START's transition first, then each node's in
// declaration order. Conditional edges are visited in label order.
func (cg *CompiledGraph) eachTransition(fn func(from, label, to string)) {
	visit := func(from string) {
		if to, ok := cg.edges[from]; ok {
			fn(from, "", to)
			return
		}
		if r, ok := cg.routers[from]; ok {
			for _, label := range r.labels {
				fn(from, label, r.routes[label])
			}
		}
	}
	visit(START)
	for _, id := range cg.order {
		visit(id)
	}
}

// aliases maps node ids to identifiers safe for diagram syntax.
func (cg *CompiledGraph) aliases() map[string]string {
	out := make(map[string]string, len(cg.order))
	used := map[string]bool{"__start__": true, "__end__": true}
	for _, id := range cg.order {
		base := sanitizeID(id)
		alias := base
		for i := 2; used[alias]; i++ {
			alias = fmt.Sprintf("%s_%d", base, i)
		}
		used[alias] = true
		out[id] = alias
	}
	return out
}

func sanitizeID(id string) string {
	var b strings.Builder
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	s := b.String()
	if s == "" || (s[0] >= '0' && s[0] <= '9') {
		s = "n_" + s
	}
	return s
}

func mermaidLabel(label string) string {
	r := strings.NewReplacer("|", "/", "\"", "'", "\n", " ")
	return r.Replace(label)
}
