package template

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// placeholder matches ${path} (group 1) or $name (group 2).
var placeholder = regexp.MustCompile(`\$\{([a-zA-Z_][a-zA-Z0-9_]*(?:\.[a-zA-Z0-9_]+)*)\}|\$([a-zA-Z_][a-zA-Z0-9_]*)`)

// Expander expands placeholders. It is safe for concurrent use.
type Expander struct {
	missing MissingAction
	dollar  bool
	sep     string
}

// NewExpander returns an Expander with MissingKeep, dollar style enabled and
// newline separated sequences, adjusted by opts.
func NewExpander(opts ...Option) *Expander {
	e := &Expander{missing: MissingKeep, dollar: true, sep: "\n"}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Strict returns an Expander that fails on absent keys.
func Strict() *Expander {
	return NewExpander(WithMissing(MissingError))
}

// Expand replaces the placeholders in s with values from vars.
// With MissingError every absent key is collected into one MissingKeyError
// and the partially expanded text is returned alongside it.
func (e *Expander) Expand(s string, vars map[string]any) (string, error) {
	if !strings.Contains(s, "$") {
		return s, nil
	}

	var missing []string
	out := placeholder.ReplaceAllStringFunc(s, func(match string) string {
		var path string
		if strings.HasPrefix(match, "${") {
			path = match[2 : len(match)-1]
		} else if e.dollar {
			path = match[1:]
		} else {
			return match
		}
		if v, ok := Lookup(vars, path); ok {
			return e.format(v)
		}
		switch e.missing {
		case MissingEmpty:
			return ""
		case MissingError:
			missing = append(missing, path)
		}
		return match
	})

	if len(missing) > 0 {
		return out, &MissingKeyError{Keys: missing}
	}
	return out, nil
}

// Keys returns the top-level state keys referenced by s, in order of first
// appearance.
func (e *Expander) Keys(s string) []string {
	var keys []string
	seen := map[string]bool{}
	for _, m := range placeholder.FindAllStringSubmatch(s, -1) {
		name := m[1]
		if name == "" {
			if !e.dollar {
				continue
			}
			name = m[2]
		}
		name, _, _ = strings.Cut(name, ".")
		if !seen[name] {
			seen[name] = true
			keys = append(keys, name)
		}
	}
	return keys
}

// ExpandMap expands every string value of m, descending into nested maps
// and string slices. m itself is not modified.
func (e *Expander) ExpandMap(m map[string]any, vars map[string]any) (map[string]any, error) {
	if m == nil {
		return nil, nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		x, err := e.expandValue(v, vars)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", k, err)
		}
		out[k] = x
	}
	return out, nil
}

func (e *Expander) expandValue(v any, vars map[string]any) (any, error) {
	switch val := v.(type) {
	case string:
		return e.Expand(val, vars)
	case map[string]any:
		return e.ExpandMap(val, vars)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			x, err := e.expandValue(item, vars)
			if err != nil {
				return nil, err
			}
			out[i] = x
		}
		return out, nil
	default:
		return v, nil
	}
}

// format renders a state value as placeholder text.
func (e *Expander) format(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []byte:
		return string(val)
	case fmt.Stringer:
		return val.String()
	case []string:
		return strings.Join(val, e.sep)
	case []any:
		parts := make([]string, len(val))
		for i, item := range val {
			parts[i] = e.format(item)
		}
		return strings.Join(parts, e.sep)
	case map[string]any:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprintf("%v", val)
		}
		return string(b)
	default:
		return fmt.Sprintf("%v", val)
	}
}

// Lookup resolves a dotted path against vars. Each segment but the last
// must name a map[string]any.
func Lookup(vars map[string]any, path string) (any, bool) {
	cur := any(vars)
	for _, seg := range strings.Split(path, ".") {
		m, ok := asMap(cur)
		if !ok {
			return nil, false
		}
		cur, ok = m[seg]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case interface{ Map() map[string]any }:
		return m.Map(), true
	default:
		return nil, false
	}
}

// MissingKeyError reports placeholders whose keys were absent.
type MissingKeyError struct {
	Keys []string
}

func (e *MissingKeyError) Error() string {
	if len(e.Keys) == 1 {
		return fmt.Sprintf("missing template key: %s", e.Keys[0])
	}
	return fmt.Sprintf("missing template keys: %s", strings.Join(e.Keys, ", "))
}

var lenient = NewExpander()

// Expand expands s with MissingKeep semantics.
func Expand(s string, vars map[string]any) string {
	out, _ := lenient.Expand(s, vars)
	return out
}
