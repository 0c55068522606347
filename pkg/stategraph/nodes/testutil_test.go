package nodes

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/randalmurphal/stategraph/pkg/stategraph"
	"github.com/randalmurphal/stategraph/pkg/stategraph/llm"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// nodeCtx returns a context for calling a node directly.
func nodeCtx(t *testing.T) stategraph.Context {
	t.Helper()
	return stategraph.NewContext(context.Background(),
		stategraph.WithRunID("test-run"),
		stategraph.WithLogger(quietLogger()),
	)
}

// classifierFunc adapts a function to llm.Classifier.
type classifierFunc func(ctx context.Context, text string, categories []string, instructions string) (string, error)

func (f classifierFunc) Classify(ctx context.Context, text string, categories []string, instructions string) (string, error) {
	return f(ctx, text, categories, instructions)
}

var _ llm.Classifier = classifierFunc(nil)

// keywordClassifier answers with the first category whose first word
// appears in the text, or "unsure".
func keywordClassifier() classifierFunc {
	return func(_ context.Context, text string, categories []string, _ string) (string, error) {
		lower := strings.ToLower(text)
		for _, c := range categories {
			word := strings.Fields(c)[0]
			if strings.Contains(lower, word) {
				return "Category: " + c, nil
			}
		}
		return "unsure", nil
	}
}

// staticTool returns a fixed reply and records its inputs.
type staticTool struct {
	name   string
	reply  string
	err    error
	inputs []string
}

func (t *staticTool) Name() string        { return t.name }
func (t *staticTool) Description() string { return "returns " + t.reply }

func (t *staticTool) Call(_ context.Context, input string) (string, error) {
	t.inputs = append(t.inputs, input)
	return t.reply, t.err
}
