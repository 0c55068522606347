// Package history journals graph executions: one Entry per node completion.
//
// The journal is for diagnostics and auditing. Executions cannot be resumed
// from it.
package history

import (
	"encoding/json"
	"errors"
	"time"
)

// Entry records one node completion.
type Entry struct {
	RunID  string `json:"run_id"`
	Graph  string `json:"graph"`
	Step   int    `json:"step"`
	NodeID string `json:"node_id"`
	// Next is the node chosen after NodeID, END included.
	Next string `json:"next"`
	// Label is the route label picked by a conditional edge, empty otherwise.
	Label     string          `json:"label,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	State     json.RawMessage `json:"state"`
}

// Run summarises the entries of one execution.
type Run struct {
	RunID   string
	Graph   string
	Steps   int
	Started time.Time
	Updated time.Time
}

// Store persists history entries.
// Implementations must be safe for concurrent use.
type Store interface {
	// Record appends an entry. Recording the same (RunID, Step) twice
	// replaces the earlier entry.
	Record(e Entry) error

	// Load returns the entry for runID at step, or ErrNotFound.
	Load(runID string, step int) (Entry, error)

	// List returns a run's entries ordered by step. An unknown run yields an
	// empty slice.
	List(runID string) ([]Entry, error)

	// Runs summarises every recorded run, most recently updated first.
	Runs() ([]Run, error)

	// DeleteRun removes a run. Unknown runs are not an error.
	DeleteRun(runID string) error

	// Close releases resources. Further calls return ErrStoreClosed.
	Close() error
}

// Sentinel errors.
var (
	// ErrNotFound indicates the requested entry does not exist.
	ErrNotFound = errors.New("history entry not found")

	// ErrStoreClosed indicates the store has been closed.
	ErrStoreClosed = errors.New("history store closed")
)

// Decode unmarshals the entry's state into v.
func (e Entry) Decode(v any) error {
	return json.Unmarshal(e.State, v)
}
