// Package retry runs an operation under a bounded retry policy.
//
// The policy shape mirrors what workflow nodes configure: a maximum number of
// attempts, a base delay and an optional linear backoff where the wait after
// attempt n is Delay*n.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrExhausted is matched by errors.Is for every *ExhaustedError.
var ErrExhausted = errors.New("retry attempts exhausted")

// Policy configures retry behavior.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first.
	// Values below 1 are treated as 1.
	MaxAttempts int

	// Delay is the base wait between attempts.
	Delay time.Duration

	// Backoff makes the wait after attempt n equal to Delay*n instead of Delay.
	Backoff bool

	// Retryable decides whether a failed attempt may be retried.
	// Nil retries every error except context errors and errors marked
	// with Permanent.
	Retryable func(error) bool
}

// NoRetry runs the operation once.
var NoRetry = Policy{MaxAttempts: 1}

// New returns a policy with the given attempts, delay in milliseconds and
// backoff flag, matching the shape workflow definitions use.
func New(maxAttempts int, delayMillis int64, backoff bool) Policy {
	return Policy{
		MaxAttempts: maxAttempts,
		Delay:       time.Duration(delayMillis) * time.Millisecond,
		Backoff:     backoff,
	}
}

// Attempts returns the effective attempt budget.
func (p Policy) Attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

// Wait returns how long to wait after the given failed attempt (1-based).
func (p Policy) Wait(attempt int) time.Duration {
	if p.Delay <= 0 {
		return 0
	}
	if p.Backoff {
		return p.Delay * time.Duration(attempt)
	}
	return p.Delay
}

// String renders the policy for logs.
func (p Policy) String() string {
	return fmt.Sprintf("attempts=%d delay=%s backoff=%t", p.Attempts(), p.Delay, p.Backoff)
}

func (p Policy) retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var catErr *CategorizedError
	if errors.As(err, &catErr) && catErr.Category == CategoryPermanent {
		return false
	}
	if p.Retryable != nil {
		return p.Retryable(err)
	}
	return true
}

// ExhaustedError reports that every attempt failed.
type ExhaustedError struct {
	// Attempts is the number of attempts made.
	Attempts int
	// Last is the error returned by the final attempt.
	Last error
}

// Error implements the error interface.
func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("gave up after %d attempts: %v", e.Attempts, e.Last)
}

// Unwrap returns the last attempt's error.
func (e *ExhaustedError) Unwrap() error {
	return e.Last
}

// Is reports whether target is ErrExhausted.
func (e *ExhaustedError) Is(target error) bool {
	return target == ErrExhausted
}

// Result describes the outcome of Do.
type Result[T any] struct {
	// Value is the successful attempt's value.
	Value T
	// Err is nil on success, an *ExhaustedError when the budget ran out, the
	// attempt's error when it was not retryable, or the context's error.
	Err error
	// Attempts is the number of attempts made.
	Attempts int
	// Waited is the total time spent waiting between attempts.
	Waited time.Duration
	// Duration is the wall time of the whole operation.
	Duration time.Duration
}

// OnRetry is called after a failed attempt that will be retried, before the
// wait begins.
type OnRetry func(attempt int, wait time.Duration, err error)

// Do runs fn until it succeeds, returns a non-retryable error, ctx is done,
// or the policy's attempts are used up. fn receives the 1-based attempt number.
func Do[T any](ctx context.Context, p Policy, fn func(ctx context.Context, attempt int) (T, error), onRetry OnRetry) Result[T] {
	start := time.Now()
	maxAttempts := p.Attempts()
	var res Result[T]

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			res.Err = err
			break
		}

		res.Attempts = attempt
		v, err := fn(ctx, attempt)
		if err == nil {
			res.Value = v
			res.Err = nil
			break
		}

		if !p.retryable(err) {
			res.Err = err
			break
		}
		if attempt == maxAttempts {
			res.Err = &ExhaustedError{Attempts: attempt, Last: err}
			break
		}

		wait := p.Wait(attempt)
		if onRetry != nil {
			onRetry(attempt, wait, err)
		}
		if wait <= 0 {
			continue
		}

		timer := time.NewTimer(wait)
		waitStart := time.Now()
		select {
		case <-ctx.Done():
			timer.Stop()
			res.Waited += time.Since(waitStart)
			res.Err = ctx.Err()
			res.Duration = time.Since(start)
			return res
		case <-timer.C:
			res.Waited += time.Since(waitStart)
		}
	}

	res.Duration = time.Since(start)
	return res
}
