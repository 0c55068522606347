package definition

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/tmc/langchaingo/llms"

	"github.com/randalmurphal/stategraph/pkg/stategraph"
	"github.com/randalmurphal/stategraph/pkg/stategraph/config"
	"github.com/randalmurphal/stategraph/pkg/stategraph/expr"
	"github.com/randalmurphal/stategraph/pkg/stategraph/nodes"
	"github.com/randalmurphal/stategraph/pkg/stategraph/registry"
)

// ErrNoModel is returned when a node type needs a model and Env has none.
var ErrNoModel = errors.New("node type requires a model")

// Env carries the collaborators node factories may need.
type Env struct {
	// Model backs classifier, generate and agent nodes.
	Model llms.Model
	// HTTPClient sends requests for http nodes. Nil uses http.DefaultClient.
	HTTPClient nodes.HTTPDoer
	// Tools are available to agent nodes by name.
	Tools *registry.Registry[nodes.Tool]
	// Graphs are available to subgraph nodes by name.
	Graphs *registry.Registry[*stategraph.CompiledGraph]
	// Keys are the strategies of the graph being built. Build sets them.
	Keys stategraph.KeyStrategies

	build func(id, typ string, cfg config.Config) (stategraph.Node, error)
}

// NodeFactory builds a node from its configuration block.
type NodeFactory func(env *Env, id string, cfg config.Config) (stategraph.Node, error)

// Loader turns definitions into compiled graphs.
type Loader struct {
	env    Env
	types  *registry.Registry[NodeFactory]
	merges *registry.Registry[stategraph.MergeFunc]
	logger *slog.Logger
}

// Option configures a Loader.
type Option func(*Loader)

// WithLogger sets the logger used while building graphs.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// NewLoader returns a Loader with the built-in node types and merge
// functions registered.
func NewLoader(env Env, opts ...Option) *Loader {
	if env.Tools == nil {
		env.Tools = registry.New[nodes.Tool]("tool")
	}
	if env.Graphs == nil {
		env.Graphs = registry.New[*stategraph.CompiledGraph]("graph")
	}
	l := &Loader{
		env:    env,
		types:  builtinTypes(),
		merges: builtinMerges(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// RegisterType adds a node type.
func (l *Loader) RegisterType(name string, f NodeFactory) error {
	return l.types.Register(name, f)
}

// RegisterMerge adds a named merge function usable in keys.
func (l *Loader) RegisterMerge(name string, fn stategraph.MergeFunc) error {
	return l.merges.Register(name, fn)
}

// Types returns the registered node type names.
func (l *Loader) Types() []string {
	return l.types.Names()
}

// Env returns the loader's collaborators. Registering a compiled graph in
// Env().Graphs makes it available to subgraph nodes of later builds.
func (l *Loader) Env() *Env {
	return &l.env
}

// LoadFile parses and builds a definition file.
func (l *Loader) LoadFile(path string) (*stategraph.CompiledGraph, error) {
	def, err := ParseFile(path)
	if err != nil {
		return nil, err
	}
	return l.Build(def)
}

// Build compiles def.
func (l *Loader) Build(def *Definition) (*stategraph.CompiledGraph, error) {
	keys, err := l.keys(def.Keys)
	if err != nil {
		return nil, err
	}

	var opts []stategraph.GraphOption
	if def.Name != "" {
		opts = append(opts, stategraph.WithName(def.Name))
	}
	if def.MaxIterations > 0 {
		opts = append(opts, stategraph.WithDefaultMaxIterations(def.MaxIterations))
	}
	g := stategraph.NewGraph(keys, opts...)

	env := l.env
	env.Keys = keys
	env.build = func(id, typ string, cfg config.Config) (stategraph.Node, error) {
		factory, err := l.types.Lookup(typ)
		if err != nil {
			return nil, err
		}
		return factory(&env, id, cfg)
	}

	for _, nd := range def.Nodes {
		node, err := env.build(nd.ID, nd.Type, nd.Config)
		if err != nil {
			return nil, fmt.Errorf("node %s: %w", nd.ID, err)
		}
		if err := g.AddNode(nd.ID, node); err != nil {
			return nil, err
		}
	}

	for _, e := range def.Edges {
		if err := g.AddEdge(e.From, e.To); err != nil {
			return nil, err
		}
	}

	for _, c := range def.Conditional {
		router, routes, err := conditional(c)
		if err != nil {
			return nil, fmt.Errorf("conditional edge from %s: %w", c.From, err)
		}
		if err := g.AddConditionalEdges(c.From, router, routes); err != nil {
			return nil, err
		}
	}

	cg, err := g.Compile()
	if err != nil {
		return nil, err
	}
	l.logger.Debug("graph built",
		slog.String("graph", cg.Name()),
		slog.Int("nodes", len(def.Nodes)),
		slog.Int("max_iterations", cg.MaxIterations()),
	)
	return cg, nil
}

func (l *Loader) keys(defs []KeyDef) (stategraph.KeyStrategies, error) {
	keys := make(stategraph.KeyStrategies, len(defs))
	for _, k := range defs {
		switch k.Merge {
		case "replace":
			keys[k.Name] = stategraph.Replace()
		case "append":
			keys[k.Name] = stategraph.Append()
		default:
			fn, err := l.merges.Lookup(k.Merge)
			if err != nil {
				return nil, fmt.Errorf("key %s: %w", k.Name, err)
			}
			keys[k.Name] = stategraph.Custom(fn)
		}
	}
	return keys, nil
}

func conditional(c ConditionalDef) (stategraph.RouterFunc, map[string]string, error) {
	routes := make(map[string]string, len(c.Routes))
	for _, r := range c.Routes {
		routes[r.Label] = r.To
	}
	if c.Key != "" {
		return nodes.KeyRouter(c.Key), routes, nil
	}

	var whens []nodes.When
	fallback := ""
	for _, r := range c.Routes {
		if r.When == "" {
			fallback = r.Label
			continue
		}
		cond, err := expr.Compile(r.When)
		if err != nil {
			return nil, nil, fmt.Errorf("route %s: %w", r.Label, err)
		}
		whens = append(whens, nodes.When{Label: r.Label, Cond: cond})
	}
	router, err := nodes.WhenRouter(fallback, whens...)
	if err != nil {
		return nil, nil, err
	}
	return router, routes, nil
}
