package history

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite" // pure Go SQLite driver
)

// tsLayout has fixed width so timestamps sort lexically.
const tsLayout = "2006-01-02T15:04:05.000000000Z"

// SQLiteStore persists history to a SQLite database.
type SQLiteStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
}

// NewSQLiteStore opens (or creates) the database at path.
// Use ":memory:" for a throwaway store.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// A single connection keeps ":memory:" databases coherent.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS history (
			run_id TEXT NOT NULL,
			step INTEGER NOT NULL,
			graph TEXT NOT NULL,
			node_id TEXT NOT NULL,
			next TEXT NOT NULL,
			label TEXT NOT NULL,
			timestamp TEXT NOT NULL,
			state BLOB NOT NULL,
			PRIMARY KEY (run_id, step)
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create table: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Record implements Store.
func (s *SQLiteStore) Record(e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	ts := e.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	state := []byte(e.State)
	if state == nil {
		state = []byte("null")
	}

	_, err := s.db.Exec(`
		INSERT INTO history (run_id, step, graph, node_id, next, label, timestamp, state)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, step) DO UPDATE SET
			graph = excluded.graph,
			node_id = excluded.node_id,
			next = excluded.next,
			label = excluded.label,
			timestamp = excluded.timestamp,
			state = excluded.state
	`, e.RunID, e.Step, e.Graph, e.NodeID, e.Next, e.Label, ts.UTC().Format(tsLayout), state)
	if err != nil {
		return fmt.Errorf("record entry: %w", err)
	}
	return nil
}

// Load implements Store.
func (s *SQLiteStore) Load(runID string, step int) (Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return Entry{}, ErrStoreClosed
	}

	row := s.db.QueryRow(`
		SELECT run_id, step, graph, node_id, next, label, timestamp, state
		FROM history WHERE run_id = ? AND step = ?
	`, runID, step)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, ErrNotFound
	}
	if err != nil {
		return Entry{}, fmt.Errorf("load entry: %w", err)
	}
	return e, nil
}

// List implements Store.
func (s *SQLiteStore) List(runID string) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	rows, err := s.db.Query(`
		SELECT run_id, step, graph, node_id, next, label, timestamp, state
		FROM history WHERE run_id = ? ORDER BY step
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}
	return entries, nil
}

// Runs implements Store.
func (s *SQLiteStore) Runs() ([]Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	rows, err := s.db.Query(`
		SELECT run_id, MAX(graph), COUNT(*), MIN(timestamp), MAX(timestamp)
		FROM history GROUP BY run_id
	`)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		var r Run
		var started, updated string
		if err := rows.Scan(&r.RunID, &r.Graph, &r.Steps, &started, &updated); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.Started, _ = time.Parse(tsLayout, started)
		r.Updated, _ = time.Parse(tsLayout, updated)
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	sortRuns(runs)
	return runs, nil
}

// DeleteRun implements Store.
func (s *SQLiteStore) DeleteRun(runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}
	if _, err := s.db.Exec(`DELETE FROM history WHERE run_id = ?`, runID); err != nil {
		return fmt.Errorf("delete run: %w", err)
	}
	return nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(sc scanner) (Entry, error) {
	var e Entry
	var ts string
	var state []byte
	if err := sc.Scan(&e.RunID, &e.Step, &e.Graph, &e.NodeID, &e.Next, &e.Label, &ts, &state); err != nil {
		return Entry{}, err
	}
	e.Timestamp, _ = time.Parse(tsLayout, ts)
	e.State = state
	return e, nil
}
