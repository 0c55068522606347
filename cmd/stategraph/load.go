package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/randalmurphal/stategraph/pkg/stategraph"
	"github.com/randalmurphal/stategraph/pkg/stategraph/definition"
	"github.com/randalmurphal/stategraph/pkg/stategraph/llm"
)

// listFlag collects a repeatable string flag.
type listFlag []string

func (l *listFlag) String() string     { return strings.Join(*l, ",") }
func (l *listFlag) Set(v string) error { *l = append(*l, v); return nil }

// loadFlags are shared by every command that builds a graph.
type loadFlags struct {
	graphs listFlag
}

func (f *loadFlags) register(fs *flag.FlagSet) {
	fs.Var(&f.graphs, "graph", "Register a subgraph as name=file.yaml (repeatable)")
}

// modelFlags select the model behind classifier, generate and agent nodes.
type modelFlags struct {
	mock    listFlag
	baseURL string
	model   string
	token   string
}

func (f *modelFlags) register(fs *flag.FlagSet) {
	fs.Var(&f.mock, "mock", "Scripted model response (repeatable, cycles); no network calls")
	fs.StringVar(&f.baseURL, "base-url", os.Getenv("OPENAI_BASE_URL"), "OpenAI-compatible API base URL")
	fs.StringVar(&f.model, "model", "", "Model name")
	fs.StringVar(&f.token, "token", "", "API token (default $OPENAI_API_KEY)")
}

// build returns the configured model, or nil when nothing was configured.
func (f *modelFlags) build() (llms.Model, error) {
	if len(f.mock) > 0 {
		return llm.NewMockModel(f.mock...), nil
	}
	if f.baseURL == "" && f.model == "" && f.token == "" && os.Getenv("OPENAI_API_KEY") == "" {
		return nil, nil
	}

	var opts []openai.Option
	if f.baseURL != "" {
		opts = append(opts, openai.WithBaseURL(f.baseURL))
	}
	if f.model != "" {
		opts = append(opts, openai.WithModel(f.model))
	}
	if f.token != "" {
		opts = append(opts, openai.WithToken(f.token))
	}
	model, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create model: %w", err)
	}
	return model, nil
}

// load registers subgraphs then builds the graph in path.
func load(path string, env definition.Env, graphs []string, logger *slog.Logger) (*stategraph.CompiledGraph, error) {
	loader := definition.NewLoader(env, definition.WithLogger(logger))
	for _, entry := range graphs {
		name, file, ok := strings.Cut(entry, "=")
		if !ok || name == "" || file == "" {
			return nil, fmt.Errorf("--graph %q: want name=file", entry)
		}
		g, err := loader.LoadFile(file)
		if err != nil {
			return nil, fmt.Errorf("load subgraph %s: %w", name, err)
		}
		if err := loader.Env().Graphs.Register(name, g); err != nil {
			return nil, err
		}
	}

	g, err := loader.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return g, nil
}

// newLogger builds the run logger. format is "text" or "json".
func newLogger(w io.Writer, format, level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("log level %q: %w", level, err)
	}
	opts := &slog.HandlerOptions{Level: lvl}
	switch format {
	case "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("log format %q: want text or json", format)
	}
}
