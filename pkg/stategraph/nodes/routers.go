package nodes

import (
	"fmt"
	"slices"

	"github.com/randalmurphal/stategraph/pkg/stategraph"
	"github.com/randalmurphal/stategraph/pkg/stategraph/expr"
)

// KeyRouter routes on the string value of key. Pair it with a routes table
// whose labels are the expected values; any other value fails the run as an
// unmapped label.
func KeyRouter(key string) stategraph.RouterFunc {
	return func(_ stategraph.Context, s stategraph.State) string {
		return s.String(key)
	}
}

// CategoryRouter routes on key but only returns values listed in
// categories. Anything else yields "", which the runner reports as an
// invalid router result.
func CategoryRouter(key string, categories ...string) stategraph.RouterFunc {
	allowed := slices.Clone(categories)
	return func(_ stategraph.Context, s stategraph.State) string {
		v := s.String(key)
		if slices.Contains(allowed, v) {
			return v
		}
		return ""
	}
}

// When pairs a route label with the condition selecting it.
type When struct {
	Label string
	Cond  *expr.Expr
}

// WhenRouter returns the label of the first condition that holds, or
// fallback when none does. An empty fallback makes an unmatched state a
// routing error.
func WhenRouter(fallback string, conds ...When) (stategraph.RouterFunc, error) {
	if len(conds) == 0 && fallback == "" {
		return nil, fmt.Errorf("when router: %w: no conditions and no fallback", ErrInvalidConditions)
	}
	for i, c := range conds {
		if c.Label == "" || c.Cond == nil {
			return nil, fmt.Errorf("when router: %w: condition %d needs a label and an expression", ErrInvalidConditions, i)
		}
	}
	conds = slices.Clone(conds)
	return func(_ stategraph.Context, s stategraph.State) string {
		for _, c := range conds {
			if c.Cond.Bool(s) {
				return c.Label
			}
		}
		return fallback
	}, nil
}
