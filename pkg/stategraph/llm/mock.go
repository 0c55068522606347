package llm

import (
	"context"
	"strings"
	"sync"

	"github.com/tmc/langchaingo/llms"
)

// MockModel is a scripted llms.Model for tests and offline runs.
//
// Responses are returned in order and cycle once exhausted. When the call
// carries a streaming function, the response text is delivered to it word by
// word before GenerateContent returns.
type MockModel struct {
	mu        sync.Mutex
	responses []*llms.ContentResponse
	err       error
	next      int
	calls     []MockCall
}

// MockCall records one GenerateContent call.
type MockCall struct {
	Messages []llms.MessageContent
	Options  llms.CallOptions
}

var _ llms.Model = (*MockModel)(nil)

// NewMockModel returns a model answering with the given texts.
func NewMockModel(responses ...string) *MockModel {
	return (&MockModel{}).WithResponses(responses...)
}

// WithResponses replaces the scripted text responses.
func (m *MockModel) WithResponses(texts ...string) *MockModel {
	resps := make([]*llms.ContentResponse, len(texts))
	for i, t := range texts {
		resps[i] = TextResponse(t)
	}
	return m.WithContent(resps...)
}

// WithContent replaces the scripted responses with full content responses,
// for example ones carrying tool calls.
func (m *MockModel) WithContent(resps ...*llms.ContentResponse) *MockModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = resps
	m.next = 0
	return m
}

// WithError makes every call fail with err.
func (m *MockModel) WithError(err error) *MockModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

// Calls returns the recorded calls.
func (m *MockModel) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MockCall(nil), m.calls...)
}

// GenerateContent implements llms.Model.
func (m *MockModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	var opts llms.CallOptions
	for _, opt := range options {
		opt(&opts)
	}

	m.mu.Lock()
	m.calls = append(m.calls, MockCall{
		Messages: append([]llms.MessageContent(nil), messages...),
		Options:  opts,
	})
	err := m.err
	var resp *llms.ContentResponse
	if err == nil && len(m.responses) > 0 {
		resp = m.responses[m.next%len(m.responses)]
		m.next++
	}
	m.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if resp == nil {
		resp = TextResponse("")
	}

	if opts.StreamingFunc != nil && len(resp.Choices) > 0 {
		for _, piece := range splitWords(resp.Choices[0].Content) {
			if err := opts.StreamingFunc(ctx, []byte(piece)); err != nil {
				return nil, err
			}
		}
	}
	return resp, nil
}

// Call implements llms.Model.
func (m *MockModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

// TextResponse wraps text in a single-choice response.
func TextResponse(text string) *llms.ContentResponse {
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: text, StopReason: "stop"}},
	}
}

// ToolCallResponse builds a response asking for the given tool calls.
func ToolCallResponse(calls ...llms.ToolCall) *llms.ContentResponse {
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{ToolCalls: calls, StopReason: "tool_calls"}},
	}
}

// splitWords splits s into words keeping the separating spaces, so the
// pieces concatenate back to s.
func splitWords(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for {
		i := strings.IndexByte(s, ' ')
		if i < 0 {
			return append(out, s)
		}
		out = append(out, s[:i+1])
		s = s[i+1:]
		if s == "" {
			return out
		}
	}
}
