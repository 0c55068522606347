package definition

import (
	"fmt"
	"maps"
	"strings"

	"github.com/randalmurphal/stategraph/pkg/stategraph"
	"github.com/randalmurphal/stategraph/pkg/stategraph/config"
	"github.com/randalmurphal/stategraph/pkg/stategraph/expr"
	"github.com/randalmurphal/stategraph/pkg/stategraph/llm"
	"github.com/randalmurphal/stategraph/pkg/stategraph/nodes"
	"github.com/randalmurphal/stategraph/pkg/stategraph/registry"
	"github.com/randalmurphal/stategraph/pkg/stategraph/retry"
	"github.com/randalmurphal/stategraph/pkg/stategraph/template"
)

func builtinTypes() *registry.Registry[NodeFactory] {
	r := registry.New[NodeFactory]("node type")
	r.MustRegister("set", newSet)
	r.MustRegister("format", newFormat)
	r.MustRegister("classifier", newClassifier)
	r.MustRegister("generate", newGenerate)
	r.MustRegister("http", newHTTP)
	r.MustRegister("agent", newAgent)
	r.MustRegister("subgraph", newSubgraph)
	r.MustRegister("parallel", newParallel)
	return r
}

func newSet(_ *Env, _ string, cfg config.Config) (stategraph.Node, error) {
	values := cfg.Sub("values").Raw()
	if len(values) == 0 {
		return nil, &config.FieldError{Path: cfg.Path() + ".values", Err: config.ErrMissing}
	}
	return nodes.NewSet(stategraph.Update(maps.Clone(values)))
}

// newFormat renders a template against state into output_key.
func newFormat(_ *Env, _ string, cfg config.Config) (stategraph.Node, error) {
	tmpl, err := cfg.RequireString("template")
	if err != nil {
		return nil, err
	}
	out, err := cfg.RequireString("output_key")
	if err != nil {
		return nil, err
	}
	exp := template.NewExpander(template.WithMissing(template.MissingError), template.WithDollarStyle(false))
	return nodes.NewCompute(func(_ stategraph.Context, s stategraph.State) (stategraph.Update, error) {
		text, err := exp.Expand(tmpl, s)
		if err != nil {
			return nil, err
		}
		return stategraph.Update{out: text}, nil
	}, out).Reads(exp.Keys(tmpl)...), nil
}

func newClassifier(env *Env, _ string, cfg config.Config) (stategraph.Node, error) {
	if env.Model == nil {
		return nil, ErrNoModel
	}
	in, err := cfg.RequireString("input_key")
	if err != nil {
		return nil, err
	}
	out, err := cfg.RequireString("output_key")
	if err != nil {
		return nil, err
	}
	cats, err := cfg.RequireStrings("categories")
	if err != nil {
		return nil, err
	}
	return nodes.NewClassifier(nodes.ClassifierConfig{
		InputKey:     in,
		OutputKey:    out,
		Categories:   cats,
		Instructions: cfg.String("instructions", ""),
		Classifier:   llm.NewLangChain(env.Model, llmOptions(cfg)...),
	})
}

func newGenerate(env *Env, _ string, cfg config.Config) (stategraph.Node, error) {
	if env.Model == nil {
		return nil, ErrNoModel
	}
	prompt, err := cfg.RequireString("prompt")
	if err != nil {
		return nil, err
	}
	out, err := cfg.RequireString("output_key")
	if err != nil {
		return nil, err
	}

	client := llm.NewLangChain(env.Model)
	gc := nodes.GenerateConfig{
		Prompt:    prompt,
		OutputKey: out,
		ChunkKey:  cfg.String("chunk_key", ""),
		Options:   llmOptions(cfg),
		Retry:     retryPolicy(cfg.Sub("retry")),
	}
	if cfg.Bool("stream", false) || gc.ChunkKey != "" {
		gc.Streamer = client
	} else {
		gc.Generator = client
	}
	return nodes.NewGenerate(gc)
}

func newHTTP(env *Env, _ string, cfg config.Config) (stategraph.Node, error) {
	url, err := cfg.RequireString("url")
	if err != nil {
		return nil, err
	}
	out, err := cfg.RequireString("output_key")
	if err != nil {
		return nil, err
	}
	return nodes.NewHTTP(nodes.HTTPConfig{
		URL:          url,
		Method:       cfg.String("method", ""),
		Headers:      cfg.StringMap("headers"),
		Body:         cfg.String("body", ""),
		OutputKey:    out,
		DecodeJSON:   cfg.Bool("decode_json", false),
		StatusKey:    cfg.String("status_key", ""),
		AttemptsKey:  cfg.String("attempts_key", ""),
		Retry:        retryPolicy(cfg.Sub("retry")),
		Timeout:      cfg.Duration("timeout", 0),
		MaxBodyBytes: int64(cfg.Int("max_body_bytes", 0)),
		Client:       env.HTTPClient,
	})
}

func newAgent(env *Env, id string, cfg config.Config) (stategraph.Node, error) {
	if env.Model == nil {
		return nil, ErrNoModel
	}
	in, err := cfg.RequireString("input_key")
	if err != nil {
		return nil, err
	}
	out, err := cfg.RequireString("output_key")
	if err != nil {
		return nil, err
	}

	var tools []nodes.Tool
	for _, name := range cfg.Strings("tools", nil) {
		t, err := env.Tools.Lookup(name)
		if err != nil {
			return nil, err
		}
		tools = append(tools, t)
	}

	return nodes.NewAgent(nodes.AgentConfig{
		Name:          id,
		Model:         env.Model,
		Tools:         tools,
		System:        cfg.String("system", ""),
		InputKey:      in,
		OutputKey:     out,
		MaxIterations: cfg.Int("max_iterations", 0),
		Options:       llmOptions(cfg),
	})
}

func newSubgraph(env *Env, _ string, cfg config.Config) (stategraph.Node, error) {
	name, err := cfg.RequireString("graph")
	if err != nil {
		return nil, err
	}
	g, err := env.Graphs.Lookup(name)
	if err != nil {
		return nil, err
	}
	return nodes.NewSubgraph(nodes.SubgraphConfig{
		Graph:         g,
		Inputs:        cfg.StringMap("inputs"),
		Outputs:       cfg.StringMap("outputs"),
		MaxIterations: cfg.Int("max_iterations", 0),
	})
}

// newParallel builds each entry of branches as a node of its own type:
//
//	branches:
//	  - {id: a, type: http, config: {...}}
//	  - {id: b, type: generate, config: {...}}
func newParallel(env *Env, id string, cfg config.Config) (stategraph.Node, error) {
	defs, err := cfg.List("branches")
	if err != nil {
		return nil, err
	}
	if len(defs) == 0 {
		return nil, &config.FieldError{Path: cfg.Path() + ".branches", Err: config.ErrMissing}
	}

	branches := make([]nodes.Branch, 0, len(defs))
	for _, d := range defs {
		bid, err := d.RequireString("id")
		if err != nil {
			return nil, err
		}
		typ, err := d.RequireString("type")
		if err != nil {
			return nil, err
		}
		n, err := env.build(id+"/"+bid, typ, d.Sub("config"))
		if err != nil {
			return nil, fmt.Errorf("branch %s: %w", bid, err)
		}
		branches = append(branches, nodes.Branch{ID: bid, Node: n})
	}

	return nodes.NewParallel(nodes.ParallelConfig{
		Branches:       branches,
		Keys:           env.Keys,
		MaxConcurrency: cfg.Int("max_concurrency", 0),
		FailFast:       cfg.Bool("fail_fast", false),
		Timeout:        cfg.Duration("timeout", 0),
	})
}

func llmOptions(cfg config.Config) []llm.Option {
	var opts []llm.Option
	if m := cfg.String("model", ""); m != "" {
		opts = append(opts, llm.WithModel(m))
	}
	if cfg.Has("temperature") {
		opts = append(opts, llm.WithTemperature(cfg.Float("temperature", 0)))
	}
	if n := cfg.Int("max_tokens", 0); n > 0 {
		opts = append(opts, llm.WithMaxTokens(n))
	}
	if s := cfg.String("system", ""); s != "" {
		opts = append(opts, llm.WithSystem(s))
	}
	return opts
}

// retryPolicy reads {max_attempts, delay_ms, backoff, transient_only}.
func retryPolicy(cfg config.Config) retry.Policy {
	p := retry.Policy{
		MaxAttempts: cfg.Int("max_attempts", 1),
		Delay:       cfg.Millis("delay_ms", 0),
		Backoff:     cfg.Bool("backoff", false),
	}
	if cfg.Bool("transient_only", false) {
		p.Retryable = retry.TransientOnly
	}
	return p
}

func builtinMerges() *registry.Registry[stategraph.MergeFunc] {
	r := registry.New[stategraph.MergeFunc]("merge function")
	r.MustRegister("sum", sumMerge)
	r.MustRegister("max", extremum(func(a, b float64) bool { return b > a }))
	r.MustRegister("min", extremum(func(a, b float64) bool { return b < a }))
	r.MustRegister("concat", concatMerge)
	r.MustRegister("merge_map", mapMerge)
	return r
}

func numeric(v any) (float64, error) {
	f, ok := expr.ToFloat64(v)
	if !ok {
		return 0, fmt.Errorf("not a number: %T", v)
	}
	return f, nil
}

func sumMerge(old, value any) (any, error) {
	v, err := numeric(value)
	if err != nil {
		return nil, err
	}
	if old == nil {
		return v, nil
	}
	o, err := numeric(old)
	if err != nil {
		return nil, err
	}
	return o + v, nil
}

func extremum(better func(cur, cand float64) bool) stategraph.MergeFunc {
	return func(old, value any) (any, error) {
		v, err := numeric(value)
		if err != nil {
			return nil, err
		}
		if old == nil {
			return v, nil
		}
		o, err := numeric(old)
		if err != nil {
			return nil, err
		}
		if better(o, v) {
			return v, nil
		}
		return o, nil
	}
}

func concatMerge(old, value any) (any, error) {
	s, ok := value.(string)
	if !ok {
		return nil, fmt.Errorf("concat: not a string: %T", value)
	}
	prev, _ := old.(string)
	if prev == "" {
		return s, nil
	}
	return strings.Join([]string{prev, s}, "\n"), nil
}

func mapMerge(old, value any) (any, error) {
	v, ok := value.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("merge_map: not a map: %T", value)
	}
	out := map[string]any{}
	if prev, ok := old.(map[string]any); ok {
		maps.Copy(out, prev)
	}
	maps.Copy(out, v)
	return out, nil
}
