package config

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"
)

var (
	// ErrMissing is wrapped by FieldError when a required key is absent.
	ErrMissing = errors.New("required value missing")
	// ErrWrongType is wrapped by FieldError when a value has the wrong type.
	ErrWrongType = errors.New("wrong value type")
)

// FieldError locates a configuration problem.
type FieldError struct {
	Path string
	Err  error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

// Config wraps a map for typed reads.
type Config struct {
	data map[string]any
	path string
}

// New wraps data. A nil map behaves as empty.
func New(data map[string]any) Config {
	if data == nil {
		data = map[string]any{}
	}
	return Config{data: data}
}

// At returns c labelled with path for error messages.
func (c Config) At(path string) Config {
	c.path = path
	return c
}

// Path returns the label set by At.
func (c Config) Path() string {
	return c.path
}

func (c Config) fieldPath(key string) string {
	if c.path == "" {
		return key
	}
	return c.path + "." + key
}

func (c Config) fail(key string, err error) error {
	return &FieldError{Path: c.fieldPath(key), Err: err}
}

// Has reports whether key is present.
func (c Config) Has(key string) bool {
	_, ok := c.data[key]
	return ok
}

// Keys returns the keys in sorted order.
func (c Config) Keys() []string {
	return slices.Sorted(maps.Keys(c.data))
}

// Raw returns the wrapped map. Callers must not modify it.
func (c Config) Raw() map[string]any {
	return c.data
}

// Any returns the raw value for key, or def.
func (c Config) Any(key string, def any) any {
	if v, ok := c.data[key]; ok {
		return v
	}
	return def
}

// String returns the string under key, or def when missing or not a string.
func (c Config) String(key, def string) string {
	if s, ok := c.data[key].(string); ok {
		return s
	}
	return def
}

// RequireString returns the non-empty string under key.
func (c Config) RequireString(key string) (string, error) {
	v, ok := c.data[key]
	if !ok {
		return "", c.fail(key, ErrMissing)
	}
	s, ok := v.(string)
	if !ok {
		return "", c.fail(key, fmt.Errorf("%w: want string, got %T", ErrWrongType, v))
	}
	if s == "" {
		return "", c.fail(key, ErrMissing)
	}
	return s, nil
}

// Bool returns the bool under key, or def.
func (c Config) Bool(key string, def bool) bool {
	if b, ok := c.data[key].(bool); ok {
		return b
	}
	return def
}

// Int returns the integer under key, or def. Floats without a fractional
// part are accepted since JSON decodes every number as float64.
func (c Config) Int(key string, def int) int {
	switch v := c.data[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		if v == float64(int(v)) {
			return int(v)
		}
	}
	return def
}

// Float returns the number under key, or def.
func (c Config) Float(key string, def float64) float64 {
	switch v := c.data[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return def
}

// Duration returns a duration: strings are parsed with time.ParseDuration,
// numbers are seconds.
func (c Config) Duration(key string, def time.Duration) time.Duration {
	return c.duration(key, def, time.Second)
}

// Millis is like Duration but numbers are milliseconds.
func (c Config) Millis(key string, def time.Duration) time.Duration {
	return c.duration(key, def, time.Millisecond)
}

func (c Config) duration(key string, def, unit time.Duration) time.Duration {
	switch v := c.data[key].(type) {
	case string:
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	case int:
		return time.Duration(v) * unit
	case int64:
		return time.Duration(v) * unit
	case float64:
		return time.Duration(v * float64(unit))
	case time.Duration:
		return v
	}
	return def
}

// Strings returns the string list under key, or def. A lone string is a
// one-element list.
func (c Config) Strings(key string, def []string) []string {
	switch v := c.data[key].(type) {
	case string:
		return []string{v}
	case []string:
		return slices.Clone(v)
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return def
			}
			out = append(out, s)
		}
		return out
	}
	return def
}

// RequireStrings returns the non-empty string list under key.
func (c Config) RequireStrings(key string) ([]string, error) {
	if !c.Has(key) {
		return nil, c.fail(key, ErrMissing)
	}
	out := c.Strings(key, nil)
	if out == nil {
		return nil, c.fail(key, fmt.Errorf("%w: want list of strings, got %T", ErrWrongType, c.data[key]))
	}
	if len(out) == 0 {
		return nil, c.fail(key, ErrMissing)
	}
	return out, nil
}

// StringMap returns the map under key with non-string values formatted
// with %v. Missing keys yield nil.
func (c Config) StringMap(key string) map[string]string {
	m, ok := c.data[key].(map[string]any)
	if !ok {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		if s, ok := v.(string); ok {
			out[k] = s
		} else {
			out[k] = fmt.Sprintf("%v", v)
		}
	}
	return out
}

// Sub returns the nested block under key, labelled with its path. Missing
// or non-map values yield an empty Config.
func (c Config) Sub(key string) Config {
	m, _ := c.data[key].(map[string]any)
	return New(m).At(c.fieldPath(key))
}

// List returns the nested blocks under key, each labelled key[i].
// Non-map elements are reported as a FieldError.
func (c Config) List(key string) ([]Config, error) {
	v, ok := c.data[key]
	if !ok {
		return nil, nil
	}
	items, ok := v.([]any)
	if !ok {
		return nil, c.fail(key, fmt.Errorf("%w: want list, got %T", ErrWrongType, v))
	}
	out := make([]Config, len(items))
	for i, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, &FieldError{
				Path: fmt.Sprintf("%s[%d]", c.fieldPath(key), i),
				Err:  fmt.Errorf("%w: want map, got %T", ErrWrongType, item),
			}
		}
		out[i] = New(m).At(fmt.Sprintf("%s[%d]", c.fieldPath(key), i))
	}
	return out, nil
}
