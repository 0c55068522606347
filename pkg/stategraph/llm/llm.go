// Package llm is the boundary between workflow nodes and language models.
//
// Nodes depend on the small Generator, Streamer and Classifier interfaces.
// LangChain adapts any langchaingo llms.Model to all three.
package llm

import (
	"context"
	"errors"
	"strings"
)

// ErrEmptyResponse indicates the model returned no choices.
var ErrEmptyResponse = errors.New("model returned no content")

// Options tune a single model call. Zero values mean "model default".
type Options struct {
	Model       string
	Temperature *float64
	MaxTokens   int
	System      string
}

// Option configures Options.
type Option func(*Options)

// WithModel overrides the model name.
func WithModel(name string) Option {
	return func(o *Options) { o.Model = name }
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) Option {
	return func(o *Options) { o.Temperature = &t }
}

// WithMaxTokens caps the response length.
func WithMaxTokens(n int) Option {
	return func(o *Options) { o.MaxTokens = n }
}

// WithSystem sets a system prompt sent before the user prompt.
func WithSystem(prompt string) Option {
	return func(o *Options) { o.System = prompt }
}

// Apply folds opts into a fresh Options.
func Apply(opts ...Option) Options {
	var o Options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Chunk is one piece of a streamed response. A chunk with a non-nil Err ends
// the stream.
type Chunk struct {
	Text string
	Err  error
}

// Generator produces a complete response for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string, opts ...Option) (string, error)
}

// Streamer produces a response incrementally. The channel is closed when the
// response is complete.
type Streamer interface {
	Stream(ctx context.Context, prompt string, opts ...Option) (<-chan Chunk, error)
}

// Classifier assigns text to one of categories.
// The returned label is the model's answer; callers match it against
// categories themselves.
type Classifier interface {
	Classify(ctx context.Context, text string, categories []string, instructions string) (string, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, prompt string, opts ...Option) (string, error)

// Generate calls f.
func (f GeneratorFunc) Generate(ctx context.Context, prompt string, opts ...Option) (string, error) {
	return f(ctx, prompt, opts...)
}

// Accumulate drains ch into a single string, calling onChunk (if non-nil)
// for every non-empty piece. It stops at the first chunk error, when ch is
// closed, or when ctx is done.
func Accumulate(ctx context.Context, ch <-chan Chunk, onChunk func(string)) (string, error) {
	var b strings.Builder
	for {
		select {
		case <-ctx.Done():
			return b.String(), ctx.Err()
		case c, ok := <-ch:
			if !ok {
				return b.String(), nil
			}
			if c.Err != nil {
				return b.String(), c.Err
			}
			if c.Text == "" {
				continue
			}
			b.WriteString(c.Text)
			if onChunk != nil {
				onChunk(c.Text)
			}
		}
	}
}

// ClassificationPrompt builds the prompt used to classify text.
func ClassificationPrompt(text string, categories []string, instructions string) string {
	var b strings.Builder
	b.WriteString("Classify the text below into exactly one of these categories:\n")
	for _, c := range categories {
		b.WriteString("- ")
		b.WriteString(c)
		b.WriteString("\n")
	}
	if instructions != "" {
		b.WriteString("\n")
		b.WriteString(instructions)
		b.WriteString("\n")
	}
	b.WriteString("\nAnswer with the category name only.\n\nText:\n")
	b.WriteString(text)
	return b.String()
}
