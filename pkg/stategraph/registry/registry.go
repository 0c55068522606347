// Package registry holds named values, such as node factories or merge
// functions, that declarative graph definitions refer to by name.
//
// Registries are plain values owned by the caller. There is no process-wide
// instance: build one, register into it, and hand it to whatever resolves
// names.
//
//	types := registry.New[NodeFactory]("node type")
//	types.MustRegister("http", newHTTPNode)
//	factory, err := types.Lookup("http")
package registry

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
)

var (
	// ErrEmptyName is returned when registering under "".
	ErrEmptyName = errors.New("name cannot be empty")
	// ErrDuplicate is returned when a name is already registered.
	ErrDuplicate = errors.New("already registered")
	// ErrNotFound is matched by *NotFoundError.
	ErrNotFound = errors.New("not registered")
)

// NotFoundError reports an unknown name together with the known ones.
type NotFoundError struct {
	Kind  string
	Name  string
	Known []string
}

func (e *NotFoundError) Error() string {
	if len(e.Known) == 0 {
		return fmt.Sprintf("unknown %s %q", e.Kind, e.Name)
	}
	return fmt.Sprintf("unknown %s %q (known: %s)", e.Kind, e.Name, strings.Join(e.Known, ", "))
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// Registry maps names to values. It is safe for concurrent use.
type Registry[V any] struct {
	kind    string
	mu      sync.RWMutex
	entries map[string]V
}

// New returns an empty registry. kind names the values in errors.
func New[V any](kind string) *Registry[V] {
	return &Registry[V]{kind: kind, entries: make(map[string]V)}
}

// Kind returns the label given to New.
func (r *Registry[V]) Kind() string {
	return r.kind
}

// Register adds value under name. Names are never overwritten; use Replace
// for that.
func (r *Registry[V]) Register(name string, value V) error {
	if name == "" {
		return fmt.Errorf("register %s: %w", r.kind, ErrEmptyName)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[name]; ok {
		return fmt.Errorf("register %s %q: %w", r.kind, name, ErrDuplicate)
	}
	r.entries[name] = value
	return nil
}

// MustRegister is Register that panics on error. Use it for built-ins
// registered at construction time.
func (r *Registry[V]) MustRegister(name string, value V) {
	if err := r.Register(name, value); err != nil {
		panic("registry: " + err.Error())
	}
}

// Replace sets name to value, registering it if needed.
func (r *Registry[V]) Replace(name string, value V) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[name] = value
}

// Unregister removes name.
func (r *Registry[V]) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, name)
}

// Get returns the value under name.
func (r *Registry[V]) Get(name string) (V, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.entries[name]
	return v, ok
}

// Lookup returns the value under name or a *NotFoundError.
func (r *Registry[V]) Lookup(name string) (V, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.entries[name]
	if !ok {
		return v, &NotFoundError{Kind: r.kind, Name: name, Known: slices.Sorted(maps.Keys(r.entries))}
	}
	return v, nil
}

// Has reports whether name is registered.
func (r *Registry[V]) Has(name string) bool {
	_, ok := r.Get(name)
	return ok
}

// Names returns the registered names in sorted order.
func (r *Registry[V]) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.entries))
}

// Len returns the number of entries.
func (r *Registry[V]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Clone returns an independent copy, so callers can extend a shared set of
// built-ins without affecting other users.
func (r *Registry[V]) Clone() *Registry[V] {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return &Registry[V]{kind: r.kind, entries: maps.Clone(r.entries)}
}
