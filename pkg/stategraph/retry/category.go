package retry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Category says whether retrying an error is likely to help.
type Category int

const (
	// CategoryTransient errors may succeed on retry: timeouts, throttling,
	// server-side failures.
	CategoryTransient Category = iota
	// CategoryPermanent errors will fail again the same way.
	CategoryPermanent
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryTransient:
		return "transient"
	case CategoryPermanent:
		return "permanent"
	default:
		return "unknown"
	}
}

// CategorizedError pins a category on an error.
type CategorizedError struct {
	Err      error
	Category Category
}

// Error implements the error interface.
func (e *CategorizedError) Error() string {
	return fmt.Sprintf("%v (%s)", e.Err, e.Category)
}

// Unwrap returns the underlying error.
func (e *CategorizedError) Unwrap() error {
	return e.Err
}

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &CategorizedError{Err: err, Category: CategoryPermanent}
}

// Transient marks err as retryable.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &CategorizedError{Err: err, Category: CategoryTransient}
}

// HTTPError is a non-2xx response from an HTTP collaborator.
type HTTPError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("HTTP %d from %s: %s", e.StatusCode, e.Endpoint, msg)
}

// Categorize classifies err.
//
// Explicitly categorized errors keep their category. HTTP 408, 429 and 5xx
// are transient, other HTTP statuses permanent. Network timeouts are
// transient, context cancellation is permanent. Anything else is treated as
// transient since a collaborator failure of unknown shape is usually an I/O
// hiccup.
func Categorize(err error) Category {
	if err == nil {
		return CategoryPermanent
	}

	var catErr *CategorizedError
	if errors.As(err, &catErr) {
		return catErr.Category
	}

	if errors.Is(err, context.Canceled) {
		return CategoryPermanent
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return CategoryTransient
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		switch {
		case httpErr.StatusCode == http.StatusRequestTimeout,
			httpErr.StatusCode == http.StatusTooManyRequests,
			httpErr.StatusCode >= 500:
			return CategoryTransient
		default:
			return CategoryPermanent
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return CategoryTransient
	}

	return CategoryTransient
}

// TransientOnly is a Policy.Retryable that retries only transient errors.
func TransientOnly(err error) bool {
	return Categorize(err) == CategoryTransient
}
