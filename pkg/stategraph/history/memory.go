package history

import (
	"sort"
	"sync"
)

// MemoryStore keeps history in memory. Useful for tests and short-lived
// processes.
type MemoryStore struct {
	mu     sync.RWMutex
	runs   map[string]map[int]Entry
	closed bool
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{runs: make(map[string]map[int]Entry)}
}

// Record implements Store.
func (s *MemoryStore) Record(e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}
	steps, ok := s.runs[e.RunID]
	if !ok {
		steps = make(map[int]Entry)
		s.runs[e.RunID] = steps
	}
	e.State = append([]byte(nil), e.State...)
	steps[e.Step] = e
	return nil
}

// Load implements Store.
func (s *MemoryStore) Load(runID string, step int) (Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return Entry{}, ErrStoreClosed
	}
	e, ok := s.runs[runID][step]
	if !ok {
		return Entry{}, ErrNotFound
	}
	return e, nil
}

// List implements Store.
func (s *MemoryStore) List(runID string) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}
	steps := s.runs[runID]
	out := make([]Entry, 0, len(steps))
	for _, e := range steps {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Step < out[j].Step })
	return out, nil
}

// Runs implements Store.
func (s *MemoryStore) Runs() ([]Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}
	out := make([]Run, 0, len(s.runs))
	for runID, steps := range s.runs {
		r := Run{RunID: runID, Steps: len(steps)}
		for _, e := range steps {
			r.Graph = e.Graph
			if r.Started.IsZero() || e.Timestamp.Before(r.Started) {
				r.Started = e.Timestamp
			}
			if e.Timestamp.After(r.Updated) {
				r.Updated = e.Timestamp
			}
		}
		out = append(out, r)
	}
	sortRuns(out)
	return out, nil
}

// DeleteRun implements Store.
func (s *MemoryStore) DeleteRun(runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}
	delete(s.runs, runID)
	return nil
}

// Close implements Store.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	s.runs = nil
	return nil
}

func sortRuns(runs []Run) {
	sort.Slice(runs, func(i, j int) bool {
		if !runs[i].Updated.Equal(runs[j].Updated) {
			return runs[i].Updated.After(runs[j].Updated)
		}
		return runs[i].RunID < runs[j].RunID
	})
}
