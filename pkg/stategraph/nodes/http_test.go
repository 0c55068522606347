package nodes

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/stategraph/pkg/stategraph"
	"github.com/randalmurphal/stategraph/pkg/stategraph/retry"
	"github.com/randalmurphal/stategraph/pkg/stategraph/template"
)

// flakyServer fails the first failures requests with 503 and then answers
// with body.
func flakyServer(t *testing.T, failures int32, body string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) <= failures {
			http.Error(w, "try later", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

// retryCounter records RecordRetry calls.
type retryCounter struct {
	mu       sync.Mutex
	attempts []int
}

func (r *retryCounter) RecordNodeExecution(context.Context, string, time.Duration, error) {}
func (r *retryCounter) RecordGraphRun(context.Context, string, bool, time.Duration, int)  {}

func (r *retryCounter) RecordRetry(_ context.Context, _ string, attempt int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts = append(r.attempts, attempt)
}

func TestNewHTTP_Validation(t *testing.T) {
	_, err := NewHTTP(HTTPConfig{OutputKey: "out"})
	assert.ErrorIs(t, err, ErrNoURL)

	_, err = NewHTTP(HTTPConfig{URL: "http://x"})
	assert.ErrorIs(t, err, ErrMissingKey)
}

func TestNewHTTP_Defaults(t *testing.T) {
	get, err := NewHTTP(HTTPConfig{URL: "http://x/${id}", OutputKey: "out"})
	require.NoError(t, err)
	assert.Equal(t, http.MethodGet, get.cfg.Method)
	assert.Equal(t, []string{"id"}, get.InputKeys())
	assert.Equal(t, []string{"out"}, get.OutputKeys())

	post, err := NewHTTP(HTTPConfig{
		URL:         "http://x",
		Body:        `{"q":"${query}"}`,
		Headers:     map[string]string{"Authorization": "Bearer ${token}"},
		OutputKey:   "out",
		StatusKey:   "status",
		AttemptsKey: "attempts",
	})
	require.NoError(t, err)
	assert.Equal(t, http.MethodPost, post.cfg.Method)
	assert.Equal(t, []string{"query", "token"}, post.InputKeys())
	assert.Equal(t, []string{"out", "status", "attempts"}, post.OutputKeys())
}

func TestHTTP_SendsExpandedRequest(t *testing.T) {
	var gotPath, gotAuth, gotBody, gotMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotAuth, gotMethod = r.URL.Path, r.Header.Get("Authorization"), r.Method
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		_, _ = io.WriteString(w, "created")
	}))
	defer srv.Close()

	n, err := NewHTTP(HTTPConfig{
		URL:       srv.URL + "/items/${id}",
		Method:    "put",
		Headers:   map[string]string{"Authorization": "Bearer ${token}"},
		Body:      `{"name":"${name}"}`,
		OutputKey: "out",
		StatusKey: "status",
	})
	require.NoError(t, err)

	upd, err := n.Execute(nodeCtx(t), stategraph.State{"id": 7, "token": "t0k", "name": "widget"})

	require.NoError(t, err)
	assert.Equal(t, "/items/7", gotPath)
	assert.Equal(t, "Bearer t0k", gotAuth)
	assert.Equal(t, http.MethodPut, gotMethod)
	assert.Equal(t, `{"name":"widget"}`, gotBody)
	assert.Equal(t, stategraph.Update{"out": "created", "status": 200}, upd)
}

func TestHTTP_MissingKeyFailsBeforeRequest(t *testing.T) {
	srv, hits := flakyServer(t, 0, "{}")
	n, err := NewHTTP(HTTPConfig{URL: srv.URL + "/${id}", OutputKey: "out"})
	require.NoError(t, err)

	_, err = n.Execute(nodeCtx(t), stategraph.State{})

	var missing *template.MissingKeyError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, []string{"id"}, missing.Keys)
	assert.Zero(t, hits.Load())
}

func TestHTTP_DecodeJSON(t *testing.T) {
	srv, _ := flakyServer(t, 0, `{"items":[1,2],"ok":true}`)
	n, err := NewHTTP(HTTPConfig{URL: srv.URL, OutputKey: "out", DecodeJSON: true})
	require.NoError(t, err)

	upd, err := n.Execute(nodeCtx(t), nil)

	require.NoError(t, err)
	assert.Equal(t, map[string]any{"items": []any{1.0, 2.0}, "ok": true}, upd["out"])
}

func TestHTTP_BodyLimit(t *testing.T) {
	srv, hits := flakyServer(t, 0, `{"items":[1,2,3]}`)

	n, err := NewHTTP(HTTPConfig{URL: srv.URL, OutputKey: "out", MaxBodyBytes: 8, Retry: retry.New(3, 1, false)})
	require.NoError(t, err)
	_, err = n.Execute(nodeCtx(t), nil)
	assert.ErrorIs(t, err, ErrBodyTooLarge)
	assert.NotErrorIs(t, err, retry.ErrExhausted)
	assert.Equal(t, int32(1), hits.Load(), "an oversized body is not retried")

	n, err = NewHTTP(HTTPConfig{URL: srv.URL, OutputKey: "out", MaxBodyBytes: 17})
	require.NoError(t, err)
	upd, err := n.Execute(nodeCtx(t), nil)
	require.NoError(t, err)
	assert.Equal(t, `{"items":[1,2,3]}`, upd["out"])
}

// A node configured with 3 attempts, 100ms delay and backoff succeeds on the
// third attempt after waiting at least 100ms + 200ms.
func TestHTTP_RetriesThenSucceeds(t *testing.T) {
	srv, hits := flakyServer(t, 2, `"done"`)
	metrics := &retryCounter{}

	n, err := NewHTTP(HTTPConfig{
		URL:         srv.URL,
		OutputKey:   "out",
		AttemptsKey: "attempts",
		Retry:       retry.New(3, 100, true),
	})
	require.NoError(t, err)

	g := stategraph.NewGraph(stategraph.ReplaceKeys("out", "attempts"))
	require.NoError(t, g.AddNode("fetch", n))
	require.NoError(t, g.AddEdge(stategraph.START, "fetch"))
	require.NoError(t, g.AddEdge("fetch", stategraph.END))
	cg, err := g.Compile()
	require.NoError(t, err)

	start := time.Now()
	final, err := cg.Invoke(context.Background(), nil,
		stategraph.WithLogger(quietLogger()),
		stategraph.WithMetrics(metrics),
	)
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Equal(t, int32(3), hits.Load())
	assert.Equal(t, 3, final["attempts"])
	assert.Equal(t, `"done"`, final["out"])
	assert.GreaterOrEqual(t, elapsed, 300*time.Millisecond)
	assert.Equal(t, []int{1, 2}, metrics.attempts)
}

func TestHTTP_RetriesExhausted(t *testing.T) {
	srv, hits := flakyServer(t, 10, "{}")

	n, err := NewHTTP(HTTPConfig{URL: srv.URL, OutputKey: "out", Retry: retry.New(2, 1, false)})
	require.NoError(t, err)

	g := stategraph.NewGraph(stategraph.ReplaceKeys("out"))
	require.NoError(t, g.AddNode("fetch", n))
	require.NoError(t, g.AddEdge(stategraph.START, "fetch"))
	require.NoError(t, g.AddEdge("fetch", stategraph.END))
	cg, err := g.Compile()
	require.NoError(t, err)

	_, err = cg.Invoke(context.Background(), nil, stategraph.WithLogger(quietLogger()))

	var nodeErr *stategraph.NodeError
	require.ErrorAs(t, err, &nodeErr)
	assert.Equal(t, "fetch", nodeErr.NodeID)

	var exhausted *stategraph.RetryExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 2, exhausted.Attempts)
	assert.ErrorIs(t, err, stategraph.ErrRetryExhausted)

	var httpErr *retry.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusServiceUnavailable, httpErr.StatusCode)
	assert.Equal(t, "try later", httpErr.Message)
	assert.Equal(t, int32(2), hits.Load())
}

func TestHTTP_NonRetryablePolicy(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "no such item", http.StatusNotFound)
	}))
	defer srv.Close()

	policy := retry.New(5, 1, false)
	policy.Retryable = retry.TransientOnly
	n, err := NewHTTP(HTTPConfig{URL: srv.URL, OutputKey: "out", Retry: policy})
	require.NoError(t, err)

	_, err = n.Execute(nodeCtx(t), nil)

	var httpErr *retry.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusNotFound, httpErr.StatusCode)
	assert.NotErrorIs(t, err, retry.ErrExhausted)
	assert.Equal(t, int32(1), hits.Load())
}

type doerFunc func(*http.Request) (*http.Response, error)

func (f doerFunc) Do(r *http.Request) (*http.Response, error) { return f(r) }

func TestHTTP_TransportErrorRetried(t *testing.T) {
	calls := 0
	reset := errors.New("connection reset")
	n, err := NewHTTP(HTTPConfig{
		URL:       "http://collaborator.invalid/",
		OutputKey: "out",
		Retry:     retry.New(3, 1, false),
		Client: doerFunc(func(*http.Request) (*http.Response, error) {
			calls++
			return nil, reset
		}),
	})
	require.NoError(t, err)

	_, err = n.Execute(nodeCtx(t), nil)

	assert.ErrorIs(t, err, reset)
	assert.ErrorIs(t, err, retry.ErrExhausted)
	assert.Equal(t, 3, calls)
}

func TestHTTP_CancelledDuringWait(t *testing.T) {
	srv, hits := flakyServer(t, 10, "{}")
	n, err := NewHTTP(HTTPConfig{URL: srv.URL, OutputKey: "out", Retry: retry.New(3, 10_000, false)})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err = n.Execute(stategraph.NewContext(ctx, stategraph.WithLogger(quietLogger())), nil)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, int32(1), hits.Load())
}
