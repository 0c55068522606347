package nodes

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/randalmurphal/stategraph/pkg/stategraph"
	"github.com/randalmurphal/stategraph/pkg/stategraph/llm"
)

// ClassifierConfig configures a Classifier node.
type ClassifierConfig struct {
	// InputKey holds the text to classify.
	InputKey string
	// Categories are the allowed labels, in priority order.
	Categories []string
	// Instructions are appended to the classification prompt.
	Instructions string
	// OutputKey receives the label.
	OutputKey string
	// Classifier is the model collaborator.
	Classifier llm.Classifier
}

// Classifier labels the text under InputKey with one of Categories.
//
// The model's answer is matched with MatchCategory. An answer matching no
// category is written as-is, so a router mapping only the declared
// categories fails the run with an unmapped label rather than guessing.
type Classifier struct {
	cfg ClassifierConfig
}

// NewClassifier validates cfg and returns the node.
func NewClassifier(cfg ClassifierConfig) (*Classifier, error) {
	switch {
	case cfg.InputKey == "":
		return nil, fmt.Errorf("classifier input: %w", ErrMissingKey)
	case cfg.OutputKey == "":
		return nil, fmt.Errorf("classifier output: %w", ErrMissingKey)
	case len(cfg.Categories) == 0:
		return nil, fmt.Errorf("classifier: %w", ErrNoCategories)
	case cfg.Classifier == nil:
		return nil, fmt.Errorf("classifier: %w", ErrNoCollaborator)
	}
	cfg.Categories = slices.Clone(cfg.Categories)
	return &Classifier{cfg: cfg}, nil
}

// Categories returns the declared labels.
func (c *Classifier) Categories() []string {
	return slices.Clone(c.cfg.Categories)
}

// Execute implements stategraph.Node.
func (c *Classifier) Execute(ctx stategraph.Context, s stategraph.State) (stategraph.Update, error) {
	text := s.String(c.cfg.InputKey)
	raw, err := c.cfg.Classifier.Classify(ctx, text, c.cfg.Categories, c.cfg.Instructions)
	if err != nil {
		return nil, fmt.Errorf("classify: %w", err)
	}

	label := MatchCategory(raw, c.cfg.Categories)
	if !slices.Contains(c.cfg.Categories, label) {
		ctx.Logger().Warn("classification matched no category",
			slog.String("answer", label),
			slog.Any("categories", c.cfg.Categories),
		)
	} else {
		ctx.Logger().Debug("classified", slog.String("label", label))
	}
	return stategraph.Update{c.cfg.OutputKey: label}, nil
}

// InputKeys implements stategraph.KeyDeclarer.
func (c *Classifier) InputKeys() []string { return []string{c.cfg.InputKey} }

// OutputKeys implements stategraph.KeyDeclarer.
func (c *Classifier) OutputKeys() []string { return []string{c.cfg.OutputKey} }

// MatchCategory maps a model answer onto categories.
//
// A case-insensitive exact match wins. Otherwise the first category (in
// declared order) contained in the answer is returned. If none matches, the
// trimmed answer is returned unchanged.
func MatchCategory(answer string, categories []string) string {
	trimmed := strings.TrimSpace(answer)
	cleaned := strings.Trim(trimmed, " \t\n\"'`.")
	for _, c := range categories {
		if strings.EqualFold(cleaned, c) {
			return c
		}
	}
	lower := strings.ToLower(trimmed)
	for _, c := range categories {
		if c != "" && strings.Contains(lower, strings.ToLower(c)) {
			return c
		}
	}
	return trimmed
}
