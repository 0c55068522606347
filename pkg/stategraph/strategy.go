package stategraph

import (
	"fmt"
	"reflect"
	"runtime/debug"
)

// StrategyKind identifies one of the merge strategies.
type StrategyKind int

const (
	// KindReplace overwrites the previous value.
	KindReplace StrategyKind = iota
	// KindAppend concatenates values into an ordered sequence.
	KindAppend
	// KindCustom combines values with a caller supplied function.
	KindCustom
)

// String returns the lowercase name of the kind.
func (k StrategyKind) String() string {
	switch k {
	case KindReplace:
		return "replace"
	case KindAppend:
		return "append"
	case KindCustom:
		return "custom"
	default:
		return "unknown"
	}
}

// MergeFunc combines the previous value of a key with a newly written one.
// It must be a pure function of its arguments. old is nil when the key has
// not been written yet.
type MergeFunc func(old, value any) (any, error)

// Strategy decides how a node's output for one key is combined with the
// value already in state. Construct one with Replace, Append or Custom.
type Strategy struct {
	kind StrategyKind
	fn   MergeFunc
}

// Replace returns the strategy that overwrites the previous value.
func Replace() Strategy {
	return Strategy{kind: KindReplace}
}

// Append returns the strategy that accumulates values into a []any in write
// order. A slice (other than []byte) written to an Append key contributes
// each of its elements, so nodes can append several items in one update.
func Append() Strategy {
	return Strategy{kind: KindAppend}
}

// Custom returns a strategy backed by fn.
//
// Panics if fn is nil.
func Custom(fn MergeFunc) Strategy {
	if fn == nil {
		panic("stategraph: custom merge function cannot be nil")
	}
	return Strategy{kind: KindCustom, fn: fn}
}

// Kind reports which strategy this is.
func (st Strategy) Kind() StrategyKind {
	return st.kind
}

// Merge combines old (present reports whether the key already had a value)
// with value. A Batch value is merged one element at a time. A panic in a
// Custom function is returned as a *PanicError.
func (st Strategy) Merge(old any, present bool, value any) (any, error) {
	if b, ok := value.(Batch); ok {
		merged, _, err := st.mergeBatch(old, present, b)
		return merged, err
	}
	switch st.kind {
	case KindReplace:
		return value, nil
	case KindAppend:
		var seq []any
		if present && old != nil {
			prev, ok := old.([]any)
			if !ok {
				return nil, fmt.Errorf("append: existing value is %T, not a sequence", old)
			}
			seq = make([]any, len(prev), len(prev)+1)
			copy(seq, prev)
		}
		return appendFlattened(seq, value), nil
	case KindCustom:
		if !present {
			old = nil
		}
		return st.callCustom(old, value)
	default:
		return nil, fmt.Errorf("unknown merge strategy %d", st.kind)
	}
}

// callCustom runs the merge function, turning a panic into a *PanicError.
func (st Strategy) callCustom(old, value any) (merged any, err error) {
	defer func() {
		if r := recover(); r != nil {
			merged = nil
			err = &PanicError{Value: r, Stack: string(debug.Stack())}
		}
	}()
	return st.fn(old, value)
}

// Batch holds several writes to one key inside a single Update. The runner
// merges them one at a time in order, so a Custom strategy sees
// fn(fn(old, b[0]), b[1]) rather than a pre-combined value. Nested batches
// are flattened.
type Batch []any

// mergeBatch merges every write in b into old through st.
func (st Strategy) mergeBatch(old any, present bool, b Batch) (any, bool, error) {
	for _, v := range b {
		var err error
		if inner, ok := v.(Batch); ok {
			old, present, err = st.mergeBatch(old, present, inner)
		} else {
			old, err = st.Merge(old, present, v)
			present = true
		}
		if err != nil {
			return nil, false, err
		}
	}
	return old, present, nil
}

// appendFlattened appends value to seq, spreading slices element-wise.
func appendFlattened(seq []any, value any) []any {
	switch v := value.(type) {
	case nil:
		return seq
	case []any:
		return append(seq, v...)
	case []byte, string:
		return append(seq, v)
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		for i := 0; i < rv.Len(); i++ {
			seq = append(seq, rv.Index(i).Interface())
		}
		return seq
	}
	return append(seq, value)
}

// KeyStrategies declares the state keys a graph may use and the merge
// strategy for each. It is passed explicitly to NewGraph; there is no
// process-wide registry.
type KeyStrategies map[string]Strategy

// ReplaceKeys declares every key with the Replace strategy.
func ReplaceKeys(keys ...string) KeyStrategies {
	ks := make(KeyStrategies, len(keys))
	for _, k := range keys {
		ks[k] = Replace()
	}
	return ks
}

// With returns a copy of ks with key declared using st.
func (ks KeyStrategies) With(key string, st Strategy) KeyStrategies {
	out := ks.clone()
	out[key] = st
	return out
}

// Declared reports whether key has a strategy.
func (ks KeyStrategies) Declared(key string) bool {
	_, ok := ks[key]
	return ok
}

func (ks KeyStrategies) clone() KeyStrategies {
	out := make(KeyStrategies, len(ks))
	for k, v := range ks {
		out[k] = v
	}
	return out
}

// apply merges upd into state in place. Undeclared keys are rejected and
// leave state untouched.
func (ks KeyStrategies) apply(state State, upd Update) error {
	keys := upd.sortedKeys()
	for _, key := range keys {
		if _, ok := ks[key]; !ok {
			return fmt.Errorf("%w: %q", ErrUndeclaredKey, key)
		}
	}

	merged := make(map[string]any, len(keys))
	for _, key := range keys {
		old, present := state[key]
		st := ks[key]
		var (
			v   any
			err error
		)
		if b, ok := upd[key].(Batch); ok {
			v, present, err = st.mergeBatch(old, present, b)
			if err == nil && !present {
				continue
			}
		} else {
			v, err = st.Merge(old, present, upd[key])
		}
		if err != nil {
			return fmt.Errorf("merge key %q: %w", key, err)
		}
		merged[key] = v
	}
	for k, v := range merged {
		state[k] = v
	}
	return nil
}
