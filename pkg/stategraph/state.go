package stategraph

import (
	"fmt"
	"sort"
)

// State is the key/value store threaded through one execution.
//
// Nodes receive a snapshot of the state and must not rely on mutating it:
// the runner owns the live copy and only changes it by applying a node's
// Update through the graph's KeyStrategies.
type State map[string]any

// Update is the partial state a node returns.
// Each key is merged into the execution state with its declared Strategy.
type Update map[string]any

// Clone returns a copy of the state that can be handed to a node or a caller
// without exposing the runner's live map. Sequences built by Append
// strategies are copied as well; other values are shared.
func (s State) Clone() State {
	if s == nil {
		return State{}
	}
	out := make(State, len(s))
	for k, v := range s {
		if seq, ok := v.([]any); ok {
			cp := make([]any, len(seq))
			copy(cp, seq)
			v = cp
		}
		out[k] = v
	}
	return out
}

// Value returns the raw value stored under key.
func (s State) Value(key string) (any, bool) {
	v, ok := s[key]
	return v, ok
}

// Has reports whether key is present.
func (s State) Has(key string) bool {
	_, ok := s[key]
	return ok
}

// String returns the value under key as a string.
// Strings and byte slices are returned as-is, fmt.Stringer values are
// formatted, and anything else (including a missing key) yields "".
func (s State) String(key string) string {
	switch v := s[key].(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case fmt.Stringer:
		return v.String()
	default:
		return ""
	}
}

// Strings returns the value under key as a slice of strings.
// It understands the []any sequences produced by Append strategies as well as
// plain []string values. Non-string elements are formatted with %v.
func (s State) Strings(key string) []string {
	switch v := s[key].(type) {
	case []string:
		out := make([]string, len(v))
		copy(out, v)
		return out
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if str, ok := item.(string); ok {
				out = append(out, str)
			} else {
				out = append(out, fmt.Sprintf("%v", item))
			}
		}
		return out
	case string:
		return []string{v}
	default:
		return nil
	}
}

// Keys returns the keys present in the state in sorted order.
func (s State) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// sortedKeys returns the update's keys in sorted order so merges are applied
// deterministically.
func (u Update) sortedKeys() []string {
	keys := make([]string, 0, len(u))
	for k := range u {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
