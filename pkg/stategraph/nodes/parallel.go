package nodes

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"slices"
	"sync"
	"time"

	"github.com/randalmurphal/stategraph/pkg/stategraph"
)

// Branch is one arm of a Parallel node.
type Branch struct {
	// ID names the branch in logs, metrics and errors.
	ID string
	// Node must implement stategraph.KeyDeclarer.
	Node stategraph.Node
}

// ParallelConfig configures a Parallel node.
type ParallelConfig struct {
	Branches []Branch
	// Keys are the strategies of the graph the node runs in. Every branch
	// output key must be declared in it.
	Keys stategraph.KeyStrategies
	// MaxConcurrency limits how many branches run at once. 0 is unlimited.
	MaxConcurrency int
	// FailFast cancels the remaining branches on the first failure.
	FailFast bool
	// Timeout bounds the whole fan-out. 0 means no timeout.
	Timeout time.Duration
}

// BranchError reports the first branch that failed.
type BranchError struct {
	Branch string
	Err    error
}

// Error implements the error interface.
func (e *BranchError) Error() string {
	return fmt.Sprintf("branch %s: %v", e.Branch, e.Err)
}

// Unwrap returns the branch's error.
func (e *BranchError) Unwrap() error {
	return e.Err
}

// Parallel runs its branches concurrently on the same state snapshot and
// returns their combined update. It is the only way a graph executes more
// than one node at a time; the runner still sees a single node completion.
//
// A key written by several branches is returned as a stategraph.Batch in
// branch order, so Append keys concatenate and Custom keys fold as if the
// branches had run one after another. Two branches writing one Replace key
// is rejected by NewParallel.
type Parallel struct {
	cfg     ParallelConfig
	outputs map[string][]string
	inputs  []string
	writes  []string
}

var (
	_ stategraph.Node        = (*Parallel)(nil)
	_ stategraph.KeyDeclarer = (*Parallel)(nil)
)

// NewParallel validates cfg and returns the node.
func NewParallel(cfg ParallelConfig) (*Parallel, error) {
	if len(cfg.Branches) == 0 {
		return nil, fmt.Errorf("parallel: %w", ErrNoBranches)
	}

	p := &Parallel{cfg: cfg, outputs: make(map[string][]string, len(cfg.Branches))}
	writers := map[string][]string{}
	for i, b := range cfg.Branches {
		switch {
		case b.ID == "":
			return nil, fmt.Errorf("parallel: branch %d: %w", i, stategraph.ErrInvalidNodeID)
		case b.Node == nil:
			return nil, fmt.Errorf("parallel: branch %s: %w", b.ID, stategraph.ErrNilNode)
		}
		if _, dup := p.outputs[b.ID]; dup {
			return nil, fmt.Errorf("parallel: %w: %s", ErrDuplicateBranch, b.ID)
		}
		decl, ok := b.Node.(stategraph.KeyDeclarer)
		if !ok {
			return nil, fmt.Errorf("parallel: branch %s: %w", b.ID, ErrUndeclaredBranch)
		}

		out := decl.OutputKeys()
		p.outputs[b.ID] = out
		p.inputs = append(p.inputs, decl.InputKeys()...)
		for _, key := range out {
			st, ok := cfg.Keys[key]
			if !ok {
				return nil, fmt.Errorf("parallel: branch %s: %w: %q", b.ID, stategraph.ErrUndeclaredKey, key)
			}
			writers[key] = append(writers[key], b.ID)
			if st.Kind() == stategraph.KindReplace && len(writers[key]) > 1 {
				return nil, fmt.Errorf("parallel: %w: %q written by %v", ErrBranchConflict, key, writers[key])
			}
		}
	}

	p.writes = sortedKeys(writers)
	slices.Sort(p.inputs)
	p.inputs = slices.Compact(p.inputs)
	return p, nil
}

// InputKeys implements stategraph.KeyDeclarer.
func (p *Parallel) InputKeys() []string { return slices.Clone(p.inputs) }

// OutputKeys implements stategraph.KeyDeclarer.
func (p *Parallel) OutputKeys() []string { return slices.Clone(p.writes) }

type branchResult struct {
	upd      stategraph.Update
	err      error
	duration time.Duration
}

// Execute implements stategraph.Node.
func (p *Parallel) Execute(ctx stategraph.Context, s stategraph.State) (stategraph.Update, error) {
	start := time.Now()
	var (
		runCtx context.Context
		cancel context.CancelFunc
	)
	if p.cfg.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, p.cfg.Timeout)
	} else {
		runCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	var sem chan struct{}
	if p.cfg.MaxConcurrency > 0 {
		sem = make(chan struct{}, p.cfg.MaxConcurrency)
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		firstFail = -1
	)
	results := make([]branchResult, len(p.cfg.Branches))
	for i, b := range p.cfg.Branches {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res := p.runBranch(runCtx, ctx, b, s, sem)
			results[i] = res
			if res.err == nil {
				return
			}
			mu.Lock()
			if firstFail < 0 {
				firstFail = i
			}
			mu.Unlock()
			if p.cfg.FailFast {
				cancel()
			}
		}()
	}
	wg.Wait()

	if firstFail >= 0 {
		for i, r := range results {
			if r.err != nil && i != firstFail && !errCanceled(r.err) {
				ctx.Logger().Warn("branch failed",
					slog.String("branch", p.cfg.Branches[i].ID),
					slog.String("error", r.err.Error()))
			}
		}
		return nil, &BranchError{Branch: p.cfg.Branches[firstFail].ID, Err: results[firstFail].err}
	}

	upd := p.combine(results)
	ctx.Logger().Debug("branches joined",
		slog.Int("branches", len(p.cfg.Branches)),
		slog.Float64("duration_ms", float64(time.Since(start).Microseconds())/1000))
	return upd, nil
}

// runBranch executes one branch on its own copy of s.
func (p *Parallel) runBranch(runCtx context.Context, parent stategraph.Context, b Branch, s stategraph.State, sem chan struct{}) (res branchResult) {
	if sem != nil {
		select {
		case sem <- struct{}{}:
			defer func() { <-sem }()
		case <-runCtx.Done():
			return branchResult{err: runCtx.Err()}
		}
	}
	if err := runCtx.Err(); err != nil {
		return branchResult{err: err}
	}

	id := parent.NodeID() + "/" + b.ID
	bctx := stategraph.NewContext(runCtx,
		stategraph.WithRunID(parent.RunID()),
		stategraph.WithLogger(parent.Logger().With(slog.String("branch", b.ID))),
		stategraph.WithMetrics(parent.Metrics()),
	)

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			res = branchResult{err: &stategraph.PanicError{NodeID: id, Value: r, Stack: string(debug.Stack())}}
		}
		res.duration = time.Since(start)
		parent.Metrics().RecordNodeExecution(runCtx, id, res.duration, res.err)
	}()

	upd, err := b.Node.Execute(bctx, s.Clone())
	if err != nil {
		return branchResult{err: err}
	}
	allowed := p.outputs[b.ID]
	for key := range upd {
		if !slices.Contains(allowed, key) {
			return branchResult{err: fmt.Errorf("%w: %q", stategraph.ErrUnexpectedOutputKey, key)}
		}
	}
	return branchResult{upd: upd}
}

// combine gathers branch updates in branch order. A key written by one
// branch keeps its value; a key written by several becomes a
// stategraph.Batch so the runner merges each write through the key's
// strategy in turn.
func (p *Parallel) combine(results []branchResult) stategraph.Update {
	writes := map[string][]any{}
	for _, r := range results {
		for key, v := range r.upd {
			writes[key] = append(writes[key], v)
		}
	}
	out := make(stategraph.Update, len(writes))
	for key, vs := range writes {
		if len(vs) == 1 {
			out[key] = vs[0]
			continue
		}
		out[key] = stategraph.Batch(vs)
	}
	return out
}

// errCanceled reports whether err comes from the fan-out being cancelled.
func errCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
