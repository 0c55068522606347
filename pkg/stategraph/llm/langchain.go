package llm

import (
	"context"

	"github.com/tmc/langchaingo/llms"
)

// LangChain adapts a langchaingo model to Generator, Streamer and
// Classifier.
type LangChain struct {
	model    llms.Model
	defaults []Option
}

var (
	_ Generator  = (*LangChain)(nil)
	_ Streamer   = (*LangChain)(nil)
	_ Classifier = (*LangChain)(nil)
)

// NewLangChain wraps model. defaults apply to every call and can be
// overridden per call.
//
//	model, _ := openai.New(openai.WithBaseURL("http://localhost:11434/v1"))
//	client := llm.NewLangChain(model, llm.WithTemperature(0))
func NewLangChain(model llms.Model, defaults ...Option) *LangChain {
	return &LangChain{model: model, defaults: defaults}
}

// Model returns the wrapped langchaingo model.
func (c *LangChain) Model() llms.Model {
	return c.model
}

// Generate implements Generator.
func (c *LangChain) Generate(ctx context.Context, prompt string, opts ...Option) (string, error) {
	messages, callOpts := c.request(prompt, opts)
	resp, err := c.model.GenerateContent(ctx, messages, callOpts...)
	if err != nil {
		return "", err
	}
	return firstContent(resp)
}

// Stream implements Streamer. The model call runs in its own goroutine and
// ends when the response completes or ctx is done.
func (c *LangChain) Stream(ctx context.Context, prompt string, opts ...Option) (<-chan Chunk, error) {
	messages, callOpts := c.request(prompt, opts)
	ch := make(chan Chunk, 16)

	send := func(chunk Chunk) bool {
		select {
		case ch <- chunk:
			return true
		case <-ctx.Done():
			return false
		}
	}

	callOpts = append(callOpts, llms.WithStreamingFunc(func(ctx context.Context, data []byte) error {
		if !send(Chunk{Text: string(data)}) {
			return ctx.Err()
		}
		return nil
	}))

	go func() {
		defer close(ch)
		if _, err := c.model.GenerateContent(ctx, messages, callOpts...); err != nil {
			send(Chunk{Err: err})
		}
	}()
	return ch, nil
}

// Classify implements Classifier with a zero-temperature prompt.
func (c *LangChain) Classify(ctx context.Context, text string, categories []string, instructions string) (string, error) {
	return c.Generate(ctx, ClassificationPrompt(text, categories, instructions), WithTemperature(0))
}

func (c *LangChain) request(prompt string, opts []Option) ([]llms.MessageContent, []llms.CallOption) {
	o := Apply(append(append([]Option(nil), c.defaults...), opts...)...)

	var messages []llms.MessageContent
	if o.System != "" {
		messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, o.System))
	}
	messages = append(messages, llms.TextParts(llms.ChatMessageTypeHuman, prompt))
	return messages, CallOptions(o)
}

// CallOptions converts Options into langchaingo call options.
func CallOptions(o Options) []llms.CallOption {
	var out []llms.CallOption
	if o.Model != "" {
		out = append(out, llms.WithModel(o.Model))
	}
	if o.Temperature != nil {
		out = append(out, llms.WithTemperature(*o.Temperature))
	}
	if o.MaxTokens > 0 {
		out = append(out, llms.WithMaxTokens(o.MaxTokens))
	}
	return out
}

func firstContent(resp *llms.ContentResponse) (string, error) {
	if resp == nil || len(resp.Choices) == 0 || resp.Choices[0] == nil {
		return "", ErrEmptyResponse
	}
	return resp.Choices[0].Content, nil
}
