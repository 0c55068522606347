package nodes

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/randalmurphal/stategraph/pkg/stategraph"
	"github.com/randalmurphal/stategraph/pkg/stategraph/llm"
	"github.com/randalmurphal/stategraph/pkg/stategraph/observability"
	"github.com/randalmurphal/stategraph/pkg/stategraph/retry"
	"github.com/randalmurphal/stategraph/pkg/stategraph/template"
)

// GenerateConfig configures a Generate node.
type GenerateConfig struct {
	// Prompt is expanded against state with ${key} placeholders.
	Prompt string
	// OutputKey receives the complete response.
	OutputKey string

	// Generator answers in one piece. Ignored when Streamer is set.
	Generator llm.Generator
	// Streamer answers incrementally; chunks are accumulated.
	Streamer llm.Streamer
	// ChunkKey, when set, also receives every streamed chunk. Declare it
	// with the Append strategy to keep them all.
	ChunkKey string

	// Options apply to every call.
	Options []llm.Option

	// Retry wraps the model call. Model calls are not idempotent, so the
	// zero value makes a single attempt.
	Retry retry.Policy
}

// Generate prompts a model and stores its answer.
type Generate struct {
	cfg    GenerateConfig
	exp    *template.Expander
	inputs []string
}

// NewGenerate validates cfg and returns the node.
func NewGenerate(cfg GenerateConfig) (*Generate, error) {
	if cfg.OutputKey == "" {
		return nil, fmt.Errorf("generate output: %w", ErrMissingKey)
	}
	if cfg.Generator == nil && cfg.Streamer == nil {
		return nil, fmt.Errorf("generate: %w", ErrNoCollaborator)
	}
	exp := template.NewExpander(template.WithMissing(template.MissingError), template.WithDollarStyle(false))
	cfg.Options = slices.Clone(cfg.Options)
	return &Generate{cfg: cfg, exp: exp, inputs: exp.Keys(cfg.Prompt)}, nil
}

// InputKeys implements stategraph.KeyDeclarer.
func (g *Generate) InputKeys() []string { return slices.Clone(g.inputs) }

// OutputKeys implements stategraph.KeyDeclarer.
func (g *Generate) OutputKeys() []string {
	if g.cfg.ChunkKey != "" {
		return []string{g.cfg.OutputKey, g.cfg.ChunkKey}
	}
	return []string{g.cfg.OutputKey}
}

type generation struct {
	text   string
	chunks []string
}

// Execute implements stategraph.Node.
func (g *Generate) Execute(ctx stategraph.Context, s stategraph.State) (stategraph.Update, error) {
	prompt, err := g.exp.Expand(g.cfg.Prompt, s)
	if err != nil {
		return nil, fmt.Errorf("build prompt: %w", err)
	}

	res := retry.Do(ctx, g.cfg.Retry, func(actx context.Context, _ int) (generation, error) {
		return g.call(actx, prompt)
	}, func(attempt int, wait time.Duration, err error) {
		observability.LogRetry(ctx.Logger(), ctx.NodeID(), attempt, wait, err)
		ctx.Metrics().RecordRetry(ctx, ctx.NodeID(), attempt)
	})
	if res.Err != nil {
		return nil, fmt.Errorf("generate: %w", res.Err)
	}

	ctx.Logger().Debug("generation complete",
		slog.Int("chars", len(res.Value.text)),
		slog.Int("chunks", len(res.Value.chunks)),
	)

	upd := stategraph.Update{g.cfg.OutputKey: res.Value.text}
	if g.cfg.ChunkKey != "" {
		upd[g.cfg.ChunkKey] = res.Value.chunks
	}
	return upd, nil
}

func (g *Generate) call(ctx context.Context, prompt string) (generation, error) {
	if g.cfg.Streamer == nil {
		text, err := g.cfg.Generator.Generate(ctx, prompt, g.cfg.Options...)
		if err != nil {
			return generation{}, err
		}
		return generation{text: text, chunks: []string{text}}, nil
	}

	ch, err := g.cfg.Streamer.Stream(ctx, prompt, g.cfg.Options...)
	if err != nil {
		return generation{}, err
	}
	var chunks []string
	text, err := llm.Accumulate(ctx, ch, func(c string) { chunks = append(chunks, c) })
	if err != nil {
		return generation{}, err
	}
	return generation{text: text, chunks: chunks}, nil
}
