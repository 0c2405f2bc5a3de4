package cryptolab

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jpalmerr/cryptolab/internal/metrics"
	"github.com/jpalmerr/cryptolab/internal/poller"
	"github.com/jpalmerr/cryptolab/session"
)

const (
	// DefaultBaseURL is the backend address used when none is configured.
	DefaultBaseURL = "http://localhost:8000"

	// DefaultPollInterval is the fixed delay between status requests.
	DefaultPollInterval = poller.DefaultInterval

	// RequestIDHeader carries a fresh UUID on every backend request.
	RequestIDHeader = "X-Request-ID"
)

// Client talks to the analytics backend.
//
// Client is created with [New] and functional options. It owns the HTTP
// connection pool and reads the bearer token from its [session.Store] on
// every authenticated request. A 401 response clears the store.
//
// A Client is safe for concurrent use. Call [Client.Close] to release idle
// connections.
//
//	c, err := cryptolab.New(
//	    cryptolab.WithBaseURL("https://analytics.example.com"),
//	    cryptolab.WithSession(session.NewFileStore(path)),
//	)
type Client struct {
	baseURL        string
	pollInterval   time.Duration
	requestTimeout time.Duration
	http           *poller.Client
	session        session.Store
	logger         *slog.Logger
	metrics        *metrics.Metrics
}

// New creates a [Client] with the given options.
//
// Defaults:
//   - Base URL: http://localhost:8000
//   - Poll interval: 3 seconds
//   - Request timeout: none beyond the transport's
//   - Session: an in-memory store
func New(opts ...Option) (*Client, error) {
	cfg := &clientConfig{
		baseURL:      DefaultBaseURL,
		pollInterval: DefaultPollInterval,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	store := cfg.session
	if store == nil {
		store = session.NewMemoryStore()
	}

	// default to slog.Default() if no logger provided
	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}

	var m *metrics.Metrics
	if cfg.registerer != nil {
		m = metrics.New(cfg.registerer)
	}

	return &Client{
		baseURL:        strings.TrimSuffix(cfg.baseURL, "/"),
		pollInterval:   cfg.pollInterval,
		requestTimeout: cfg.requestTimeout,
		http:           poller.NewClient(cfg.httpClient),
		session:        store,
		logger:         logger,
		metrics:        m,
	}, nil
}

// BaseURL returns the backend address without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// PollInterval returns the default delay between status requests.
func (c *Client) PollInterval() time.Duration {
	return c.pollInterval
}

// Session returns the token store used for authenticated calls.
func (c *Client) Session() session.Store {
	return c.session
}

// Logger returns the client's logger.
func (c *Client) Logger() *slog.Logger {
	return c.logger
}

// Close releases idle connections. The client stays usable afterwards.
func (c *Client) Close() {
	c.http.Close()
}

// call describes one backend request.
type call struct {
	op     string // metrics and log label
	method string
	path   string
	body   any
	auth   bool
}

// do sends a request and returns the raw response.
//
// Transport failures are returned as errors. For authenticated calls a 401
// clears the stored token and returns [ErrUnauthorized]. Any other status is
// left for the caller to interpret.
func (c *Client) do(ctx context.Context, cl call) (poller.Response, error) {
	headers := map[string]string{
		"Accept":        "application/json",
		RequestIDHeader: uuid.NewString(),
	}

	var body []byte
	if cl.body != nil {
		var err error
		body, err = json.Marshal(cl.body)
		if err != nil {
			return poller.Response{}, fmt.Errorf("encode %s request: %w", cl.op, err)
		}
		headers["Content-Type"] = "application/json"
	}

	if cl.auth {
		token, err := c.session.Token(ctx)
		if err != nil {
			return poller.Response{}, fmt.Errorf("read session token: %w", err)
		}
		if token != "" {
			headers["Authorization"] = "Bearer " + token
		}
	}

	resp := c.http.Fetch(ctx, poller.Request{
		Method:  cl.method,
		URL:     c.baseURL + cl.path,
		Headers: headers,
		Body:    body,
		Timeout: c.requestTimeout,
	})
	c.metrics.ObserveRequest(cl.op, resp.StatusCode, resp.Latency)

	logAttrs := []any{
		"op", cl.op,
		"method", cl.method,
		"path", cl.path,
		"request_id", headers[RequestIDHeader],
		"latency_ms", resp.Latency.Milliseconds(),
	}
	if resp.Error != nil {
		c.logger.Debug("backend request failed", append(logAttrs, "error", resp.Error.Error())...)
		return resp, resp.Error
	}
	c.logger.Debug("backend request completed", append(logAttrs, "status", resp.StatusCode)...)

	if cl.auth && resp.StatusCode == http.StatusUnauthorized {
		c.clearToken(ctx)
		return resp, ErrUnauthorized
	}
	return resp, nil
}

// clearToken drops the stored token after a 401. The clear must happen even
// when ctx is already done.
func (c *Client) clearToken(ctx context.Context) {
	if err := c.session.Clear(context.WithoutCancel(ctx)); err != nil {
		c.logger.Warn("failed to clear session token", "error", err.Error())
		return
	}
	c.metrics.IncTokenClear()
	c.logger.Info("session token cleared after unauthorized response")
}

// getJSON performs an authenticated or anonymous call and decodes a 2xx body
// into out. Non-2xx answers become an [APIError].
func (c *Client) getJSON(ctx context.Context, cl call, out any) error {
	resp, err := c.do(ctx, cl)
	if err != nil {
		if errors.Is(err, ErrUnauthorized) {
			return err
		}
		return fmt.Errorf("%s: %w", cl.op, err)
	}
	if !resp.OK() {
		return &APIError{
			Op:         cl.op,
			StatusCode: resp.StatusCode,
			Message:    detailOr(resp.Body, http.StatusText(resp.StatusCode)),
		}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return fmt.Errorf("decode %s response: %w", cl.op, err)
	}
	return nil
}

// validateBaseURL checks that raw is an absolute http(s) URL.
func validateBaseURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return errors.New("invalid base URL: " + err.Error())
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.New("base URL must have a scheme (http:// or https://)")
	}
	if u.Host == "" {
		return errors.New("base URL must have a host")
	}
	return nil
}
