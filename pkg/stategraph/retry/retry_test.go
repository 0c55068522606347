package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flaky returns an operation that fails the first n calls.
func flaky(n int, calls *int) func(context.Context, int) (string, error) {
	return func(_ context.Context, _ int) (string, error) {
		*calls++
		if *calls <= n {
			return "", errors.New("unavailable")
		}
		return "ok", nil
	}
}

func TestPolicyWait(t *testing.T) {
	tests := []struct {
		name    string
		policy  Policy
		attempt int
		want    time.Duration
	}{
		{"fixed", Policy{Delay: 100 * time.Millisecond}, 3, 100 * time.Millisecond},
		{"backoff first", Policy{Delay: 100 * time.Millisecond, Backoff: true}, 1, 100 * time.Millisecond},
		{"backoff second", Policy{Delay: 100 * time.Millisecond, Backoff: true}, 2, 200 * time.Millisecond},
		{"no delay", Policy{Backoff: true}, 4, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.policy.Wait(tt.attempt))
		})
	}
}

func TestPolicyAttempts(t *testing.T) {
	assert.Equal(t, 1, Policy{}.Attempts())
	assert.Equal(t, 1, Policy{MaxAttempts: -2}.Attempts())
	assert.Equal(t, 3, New(3, 100, true).Attempts())
	assert.Equal(t, 100*time.Millisecond, New(3, 100, true).Delay)
}

func TestDo_SucceedsAfterFailures(t *testing.T) {
	calls := 0
	var retried []int
	p := New(3, 100, true)

	res := Do(context.Background(), p, flaky(2, &calls), func(attempt int, _ time.Duration, _ error) {
		retried = append(retried, attempt)
	})

	require.NoError(t, res.Err)
	assert.Equal(t, "ok", res.Value)
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, []int{1, 2}, retried)
	assert.GreaterOrEqual(t, res.Waited, 300*time.Millisecond)
	assert.GreaterOrEqual(t, res.Duration, res.Waited)
}

func TestDo_Exhausted(t *testing.T) {
	calls := 0
	res := Do(context.Background(), Policy{MaxAttempts: 3}, flaky(10, &calls), nil)

	require.Error(t, res.Err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, 3, res.Attempts)

	var exhausted *ExhaustedError
	require.ErrorAs(t, res.Err, &exhausted)
	assert.Equal(t, 3, exhausted.Attempts)
	assert.EqualError(t, exhausted.Last, "unavailable")
	assert.ErrorIs(t, res.Err, ErrExhausted)
}

func TestDo_NonRetryable(t *testing.T) {
	calls := 0
	p := Policy{MaxAttempts: 5, Retryable: TransientOnly}

	res := Do(context.Background(), p, func(context.Context, int) (int, error) {
		calls++
		return 0, Permanent(errors.New("bad credentials"))
	}, nil)

	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, res.Attempts)
	assert.NotErrorIs(t, res.Err, ErrExhausted)
	assert.ErrorContains(t, res.Err, "bad credentials")
}

func TestDo_ContextCancelledDuringWait(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	p := Policy{MaxAttempts: 3, Delay: time.Hour}

	res := Do(ctx, p, flaky(5, &calls), func(int, time.Duration, error) {
		cancel()
	})

	assert.ErrorIs(t, res.Err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestDo_ContextAlreadyDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0

	res := Do(ctx, Policy{MaxAttempts: 3}, flaky(0, &calls), nil)

	assert.ErrorIs(t, res.Err, context.Canceled)
	assert.Equal(t, 0, calls)
	assert.Equal(t, 0, res.Attempts)
}

func TestDo_AttemptNumberPassed(t *testing.T) {
	var seen []int
	Do(context.Background(), Policy{MaxAttempts: 3}, func(_ context.Context, attempt int) (struct{}, error) {
		seen = append(seen, attempt)
		return struct{}{}, errors.New("x")
	}, nil)
	assert.Equal(t, []int{1, 2, 3}, seen)
}

func TestDo_PermanentStopsDefaultPolicy(t *testing.T) {
	calls := 0
	res := Do(context.Background(), New(4, 0, false), func(context.Context, int) (string, error) {
		calls++
		return "", Permanent(errors.New("malformed request"))
	}, nil)

	assert.Equal(t, 1, calls)
	assert.NotErrorIs(t, res.Err, ErrExhausted)
}
