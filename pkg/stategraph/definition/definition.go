package definition

import (
	"errors"
	"fmt"
	"slices"

	"github.com/randalmurphal/stategraph/pkg/stategraph"
	"github.com/randalmurphal/stategraph/pkg/stategraph/config"
)

// ErrInvalidDefinition is wrapped by every structural problem Decode finds.
var ErrInvalidDefinition = errors.New("invalid graph definition")

// Definition is a decoded graph definition.
type Definition struct {
	Name          string
	MaxIterations int
	Keys          []KeyDef
	Nodes         []NodeDef
	Edges         []EdgeDef
	Conditional   []ConditionalDef
}

// KeyDef declares a state key and its merge: "replace", "append" or the
// name of a registered merge function.
type KeyDef struct {
	Name  string
	Merge string
}

// NodeDef declares a node.
type NodeDef struct {
	ID     string
	Type   string
	Config config.Config
}

// EdgeDef is an unconditional edge.
type EdgeDef struct {
	From string
	To   string
}

// ConditionalDef is a conditional edge.
type ConditionalDef struct {
	From   string
	Key    string
	Routes []RouteDef
}

// RouteDef is one entry of a conditional edge's route table.
type RouteDef struct {
	Label string
	To    string
	When  string
}

// ParseFile loads and decodes a definition file.
func ParseFile(path string) (*Definition, error) {
	cfg, err := config.FromFile(path)
	if err != nil {
		return nil, err
	}
	return Decode(cfg)
}

// Parse decodes a YAML (or JSON) definition.
func Parse(data []byte) (*Definition, error) {
	cfg, err := config.FromYAML(data)
	if err != nil {
		return nil, err
	}
	return Decode(cfg)
}

// Decode reads a definition from a config tree.
func Decode(cfg config.Config) (*Definition, error) {
	def := &Definition{
		Name:          cfg.String("name", ""),
		MaxIterations: cfg.Int("max_iterations", 0),
	}

	keys := cfg.Sub("keys")
	for _, name := range keys.Keys() {
		merge := keys.String(name, "")
		if merge == "" {
			// {merge: sum} form
			merge = keys.Sub(name).String("merge", "")
		}
		if merge == "" {
			return nil, invalid(&config.FieldError{Path: "keys." + name, Err: config.ErrMissing})
		}
		def.Keys = append(def.Keys, KeyDef{Name: name, Merge: merge})
	}
	if len(def.Keys) == 0 {
		return nil, invalid(&config.FieldError{Path: "keys", Err: config.ErrMissing})
	}

	nodes, err := cfg.List("nodes")
	if err != nil {
		return nil, invalid(err)
	}
	for _, n := range nodes {
		id, err := n.RequireString("id")
		if err != nil {
			return nil, invalid(err)
		}
		if nodeRef(id) != id {
			return nil, invalid(&config.FieldError{Path: n.Path() + ".id", Err: fmt.Errorf("%q is reserved", id)})
		}
		typ, err := n.RequireString("type")
		if err != nil {
			return nil, invalid(err)
		}
		def.Nodes = append(def.Nodes, NodeDef{
			ID:     id,
			Type:   typ,
			Config: n.Sub("config").At("nodes." + id),
		})
	}

	edges, err := cfg.List("edges")
	if err != nil {
		return nil, invalid(err)
	}
	for _, e := range edges {
		from, err := e.RequireString("from")
		if err != nil {
			return nil, invalid(err)
		}
		to, err := e.RequireString("to")
		if err != nil {
			return nil, invalid(err)
		}
		def.Edges = append(def.Edges, EdgeDef{From: nodeRef(from), To: nodeRef(to)})
	}

	conds, err := cfg.List("conditional_edges")
	if err != nil {
		return nil, invalid(err)
	}
	for _, c := range conds {
		cd, err := decodeConditional(c)
		if err != nil {
			return nil, invalid(err)
		}
		def.Conditional = append(def.Conditional, cd)
	}
	return def, nil
}

func decodeConditional(c config.Config) (ConditionalDef, error) {
	from, err := c.RequireString("from")
	if err != nil {
		return ConditionalDef{}, err
	}
	cd := ConditionalDef{From: nodeRef(from), Key: c.String("key", "")}

	routes, err := c.List("routes")
	if err != nil {
		return ConditionalDef{}, err
	}
	if len(routes) == 0 {
		return ConditionalDef{}, &config.FieldError{Path: c.Path() + ".routes", Err: config.ErrMissing}
	}

	fallbacks := 0
	for _, r := range routes {
		label, err := r.RequireString("label")
		if err != nil {
			return ConditionalDef{}, err
		}
		to, err := r.RequireString("to")
		if err != nil {
			return ConditionalDef{}, err
		}
		when := r.String("when", "")
		if cd.Key == "" && when == "" {
			fallbacks++
		}
		if slices.ContainsFunc(cd.Routes, func(x RouteDef) bool { return x.Label == label }) {
			return ConditionalDef{}, &config.FieldError{Path: r.Path() + ".label", Err: fmt.Errorf("duplicate label %q", label)}
		}
		cd.Routes = append(cd.Routes, RouteDef{Label: label, To: nodeRef(to), When: when})
	}
	if fallbacks > 1 {
		return ConditionalDef{}, &config.FieldError{Path: c.Path() + ".routes", Err: errors.New("more than one route without a when condition")}
	}
	return cd, nil
}

func invalid(err error) error {
	return fmt.Errorf("%w: %w", ErrInvalidDefinition, err)
}

// nodeRef maps the start and end aliases onto the reserved ids.
func nodeRef(id string) string {
	switch id {
	case "start", "START":
		return stategraph.START
	case "end", "END":
		return stategraph.END
	default:
		return id
	}
}
