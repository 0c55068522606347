package nodes

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/randalmurphal/stategraph/pkg/stategraph"
	"github.com/randalmurphal/stategraph/pkg/stategraph/observability"
	"github.com/randalmurphal/stategraph/pkg/stategraph/retry"
	"github.com/randalmurphal/stategraph/pkg/stategraph/template"
)

// DefaultMaxBodyBytes caps how much of a response body is read.
const DefaultMaxBodyBytes = 10 << 20

// HTTPDoer sends HTTP requests. *http.Client implements it.
type HTTPDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// HTTPConfig configures an HTTP node.
//
// URL, header values and Body may reference state keys as ${key}; a
// referenced key missing from state fails the node before any request is
// sent.
type HTTPConfig struct {
	URL     string
	Method  string // default GET, or POST when Body is set
	Headers map[string]string
	Body    string

	// OutputKey receives the response body: decoded JSON when the response
	// is application/json and DecodeJSON is set, otherwise a string.
	OutputKey  string
	DecodeJSON bool

	// StatusKey and AttemptsKey optionally receive the final status code
	// and the number of attempts made.
	StatusKey   string
	AttemptsKey string

	// Retry is applied to transport errors and non-2xx responses.
	// The zero value makes a single attempt.
	Retry retry.Policy

	// Timeout bounds each attempt. Zero means no per-attempt timeout.
	Timeout time.Duration

	// MaxBodyBytes caps the body read. A successful response with a larger
	// body fails with ErrBodyTooLarge. Default DefaultMaxBodyBytes.
	MaxBodyBytes int64

	// Client sends the requests. Default http.DefaultClient.
	Client HTTPDoer
}

// HTTP calls an endpoint and stores the response.
type HTTP struct {
	cfg    HTTPConfig
	exp    *template.Expander
	inputs []string
}

// NewHTTP validates cfg and returns the node.
func NewHTTP(cfg HTTPConfig) (*HTTP, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("http node: %w", ErrNoURL)
	}
	if cfg.OutputKey == "" {
		return nil, fmt.Errorf("http node output: %w", ErrMissingKey)
	}
	if cfg.Method == "" {
		cfg.Method = http.MethodGet
		if cfg.Body != "" {
			cfg.Method = http.MethodPost
		}
	}
	cfg.Method = strings.ToUpper(cfg.Method)
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if cfg.Client == nil {
		cfg.Client = http.DefaultClient
	}

	exp := template.NewExpander(template.WithMissing(template.MissingError), template.WithDollarStyle(false))

	var inputs []string
	add := func(s string) {
		for _, k := range exp.Keys(s) {
			if !slices.Contains(inputs, k) {
				inputs = append(inputs, k)
			}
		}
	}
	add(cfg.URL)
	add(cfg.Body)
	for _, name := range sortedKeys(cfg.Headers) {
		add(cfg.Headers[name])
	}

	return &HTTP{cfg: cfg, exp: exp, inputs: inputs}, nil
}

// InputKeys implements stategraph.KeyDeclarer.
func (n *HTTP) InputKeys() []string { return slices.Clone(n.inputs) }

// OutputKeys implements stategraph.KeyDeclarer.
func (n *HTTP) OutputKeys() []string {
	out := []string{n.cfg.OutputKey}
	if n.cfg.StatusKey != "" {
		out = append(out, n.cfg.StatusKey)
	}
	if n.cfg.AttemptsKey != "" {
		out = append(out, n.cfg.AttemptsKey)
	}
	return out
}

type httpRequest struct {
	url     string
	headers map[string]string
	body    string
}

type httpResponse struct {
	status      int
	contentType string
	body        []byte
}

// Execute implements stategraph.Node.
func (n *HTTP) Execute(ctx stategraph.Context, s stategraph.State) (stategraph.Update, error) {
	req, err := n.build(s)
	if err != nil {
		return nil, err
	}

	logger := ctx.Logger()
	res := retry.Do(ctx, n.cfg.Retry, func(actx context.Context, _ int) (httpResponse, error) {
		return n.send(actx, req)
	}, func(attempt int, wait time.Duration, err error) {
		observability.LogRetry(logger, ctx.NodeID(), attempt, wait, err)
		ctx.Metrics().RecordRetry(ctx, ctx.NodeID(), attempt)
	})
	if res.Err != nil {
		return nil, res.Err
	}

	logger.Debug("http request complete",
		slog.String("method", n.cfg.Method),
		slog.String("url", req.url),
		slog.Int("status", res.Value.status),
		slog.Int("attempts", res.Attempts),
		slog.Duration("waited", res.Waited),
	)

	out, err := n.decode(res.Value)
	if err != nil {
		return nil, err
	}
	upd := stategraph.Update{n.cfg.OutputKey: out}
	if n.cfg.StatusKey != "" {
		upd[n.cfg.StatusKey] = res.Value.status
	}
	if n.cfg.AttemptsKey != "" {
		upd[n.cfg.AttemptsKey] = res.Attempts
	}
	return upd, nil
}

func (n *HTTP) build(s stategraph.State) (httpRequest, error) {
	url, err := n.exp.Expand(n.cfg.URL, s)
	if err != nil {
		return httpRequest{}, fmt.Errorf("build url: %w", err)
	}
	body, err := n.exp.Expand(n.cfg.Body, s)
	if err != nil {
		return httpRequest{}, fmt.Errorf("build body: %w", err)
	}
	headers := make(map[string]string, len(n.cfg.Headers))
	for name, v := range n.cfg.Headers {
		hv, err := n.exp.Expand(v, s)
		if err != nil {
			return httpRequest{}, fmt.Errorf("build header %s: %w", name, err)
		}
		headers[name] = hv
	}
	return httpRequest{url: url, headers: headers, body: body}, nil
}

func (n *HTTP) send(ctx context.Context, r httpRequest) (httpResponse, error) {
	if n.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.cfg.Timeout)
		defer cancel()
	}

	var body io.Reader
	if r.body != "" {
		body = bytes.NewBufferString(r.body)
	}
	req, err := http.NewRequestWithContext(ctx, n.cfg.Method, r.url, body)
	if err != nil {
		return httpResponse{}, retry.Permanent(fmt.Errorf("create request: %w", err))
	}
	for name, v := range r.headers {
		req.Header.Set(name, v)
	}

	resp, err := n.cfg.Client.Do(req)
	if err != nil {
		return httpResponse{}, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, n.cfg.MaxBodyBytes+1))
	if err != nil {
		return httpResponse{}, fmt.Errorf("read response: %w", err)
	}
	oversized := int64(len(data)) > n.cfg.MaxBodyBytes
	if oversized {
		data = data[:n.cfg.MaxBodyBytes]
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return httpResponse{}, &retry.HTTPError{
			StatusCode: resp.StatusCode,
			Message:    truncate(strings.TrimSpace(string(data)), 200),
			Endpoint:   n.cfg.Method + " " + r.url,
		}
	}
	if oversized {
		return httpResponse{}, retry.Permanent(fmt.Errorf("%w: %s exceeds %d bytes", ErrBodyTooLarge, r.url, n.cfg.MaxBodyBytes))
	}
	return httpResponse{
		status:      resp.StatusCode,
		contentType: resp.Header.Get("Content-Type"),
		body:        data,
	}, nil
}

func (n *HTTP) decode(r httpResponse) (any, error) {
	if !n.cfg.DecodeJSON {
		return string(r.body), nil
	}
	mt, _, _ := mime.ParseMediaType(r.contentType)
	if mt != "application/json" && !strings.HasSuffix(mt, "+json") {
		return string(r.body), nil
	}
	var v any
	if err := json.Unmarshal(r.body, &v); err != nil {
		return nil, fmt.Errorf("decode json response: %w", err)
	}
	return v, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
