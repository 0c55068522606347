package benchmarks

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/randalmurphal/stategraph/pkg/stategraph"
	"github.com/randalmurphal/stategraph/pkg/stategraph/history"
)

func largeState() json.RawMessage {
	items := make([]string, 100)
	for i := range items {
		items[i] = fmt.Sprintf("item-%d", i)
	}
	data, err := json.Marshal(map[string]any{"items": items, "meta": map[string]any{"owner": "bench", "version": 3}})
	if err != nil {
		panic(err)
	}
	return data
}

func entry(step int, state json.RawMessage) history.Entry {
	return history.Entry{
		RunID:     "bench",
		Graph:     "bench",
		Step:      step,
		NodeID:    nodeID(step),
		Next:      nodeID(step + 1),
		Timestamp: time.Now(),
		State:     state,
	}
}

func sqliteStore(b *testing.B) *history.SQLiteStore {
	b.Helper()
	store, err := history.NewSQLiteStore(filepath.Join(b.TempDir(), "bench.db"))
	if err != nil {
		b.Fatal(err)
	}
	b.Cleanup(func() { _ = store.Close() })
	return store
}

// BenchmarkMemoryStore_Record measures in-memory journaling.
func BenchmarkMemoryStore_Record(b *testing.B) {
	store := history.NewMemoryStore()
	state := largeState()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = store.Record(entry(i%1000, state))
	}
}

// BenchmarkSQLiteStore_Record measures SQLite journaling.
func BenchmarkSQLiteStore_Record(b *testing.B) {
	store := sqliteStore(b)
	state := largeState()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := store.Record(entry(i%1000, state)); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkSQLiteStore_Load measures loading one entry.
func BenchmarkSQLiteStore_Load(b *testing.B) {
	store := sqliteStore(b)
	state := largeState()
	for i := 0; i < 100; i++ {
		if err := store.Record(entry(i, state)); err != nil {
			b.Fatal(err)
		}
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := store.Load("bench", i%100); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkInvoke_WithHistory compares a 10-node run with and without a
// journal.
func BenchmarkInvoke_WithHistory(b *testing.B) {
	compiled := mustCompile(buildLinearGraph(10))
	ctx := context.Background()

	b.Run("none", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			_, _ = compiled.Invoke(ctx, nil, quiet)
		}
	})
	b.Run("memory", func(b *testing.B) {
		store := history.NewMemoryStore()
		for i := 0; i < b.N; i++ {
			_, _ = compiled.Invoke(ctx, nil, quiet, stategraph.WithHistory(store))
		}
	})
	b.Run("sqlite", func(b *testing.B) {
		store := sqliteStore(b)
		for i := 0; i < b.N; i++ {
			_, _ = compiled.Invoke(ctx, nil, quiet, stategraph.WithHistory(store))
		}
	})
}
