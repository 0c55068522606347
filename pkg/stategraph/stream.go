package stategraph

import (
	"context"
	"iter"
	"sync/atomic"
)

// Stream returns a lazy sequence of snapshots, one per node completion.
//
// Nothing runs until the sequence is ranged. If the execution fails, a final
// pair carrying the partial state and the error is yielded. Breaking out of
// the loop stops the execution before the next node starts.
//
// The sequence is single use: ranging it again yields only
// ErrStreamConsumed. Call Stream again for a fresh execution.
//
//	for snap, err := range compiled.Stream(ctx, input) {
//	    if err != nil {
//	        return err
//	    }
//	    fmt.Println(snap.Step, snap.NodeID, "->", snap.Next)
//	}
func (cg *CompiledGraph) Stream(ctx context.Context, input State, opts ...RunOption) iter.Seq2[Snapshot, error] {
	var consumed atomic.Bool
	seed := input.Clone()

	return func(yield func(Snapshot, error) bool) {
		if !consumed.CompareAndSwap(false, true) {
			yield(Snapshot{}, ErrStreamConsumed)
			return
		}
		if ctx == nil {
			yield(Snapshot{State: seed}, ErrNilContext)
			return
		}

		runCtx, cancel := context.WithCancel(ctx)
		defer cancel()

		cfg := cg.runConfig(opts)
		stopped := false
		final, err := cg.execute(runCtx, seed, &cfg, func(s Snapshot) bool {
			if !yield(s, nil) {
				stopped = true
				return false
			}
			return true
		})
		if stopped || err == nil {
			return
		}
		yield(Snapshot{State: final.Clone()}, err)
	}
}
