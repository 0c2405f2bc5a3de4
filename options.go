package cryptolab

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jpalmerr/cryptolab/session"
)

// clientConfig holds mutable state during Client construction.
type clientConfig struct {
	baseURL        string
	pollInterval   time.Duration
	requestTimeout time.Duration
	httpClient     *http.Client
	session        session.Store
	logger         *slog.Logger
	registerer     prometheus.Registerer
}

// Option is a function that configures a [Client] during construction.
//
// Option implements the functional options pattern. Options return an error
// if validation fails, which [New] passes back to the caller.
type Option func(*clientConfig) error

// WithBaseURL sets the backend address, e.g. "https://analytics.example.com".
//
// Returns an error unless the URL is absolute with an http or https scheme.
func WithBaseURL(raw string) Option {
	return func(cfg *clientConfig) error {
		if err := validateBaseURL(raw); err != nil {
			return err
		}
		cfg.baseURL = raw
		return nil
	}
}

// WithPollInterval sets the delay between status requests. Defaults to 3
// seconds. A [JobKind] may override it with [WithJobInterval].
//
// Returns an error if the duration is zero or negative.
func WithPollInterval(d time.Duration) Option {
	return func(cfg *clientConfig) error {
		if d <= 0 {
			return errors.New("poll interval must be positive")
		}
		cfg.pollInterval = d
		return nil
	}
}

// WithRequestTimeout bounds every backend request. Zero, the default, leaves
// requests bounded only by the caller's context and the transport.
//
// Returns an error if the duration is negative.
func WithRequestTimeout(d time.Duration) Option {
	return func(cfg *clientConfig) error {
		if d < 0 {
			return errors.New("request timeout cannot be negative")
		}
		cfg.requestTimeout = d
		return nil
	}
}

// WithHTTPClient replaces the pooled HTTP client, for custom transports or
// tests.
//
// Returns an error if hc is nil.
func WithHTTPClient(hc *http.Client) Option {
	return func(cfg *clientConfig) error {
		if hc == nil {
			return errors.New("http client cannot be nil")
		}
		cfg.httpClient = hc
		return nil
	}
}

// WithSession sets the token store. Defaults to a [session.MemoryStore].
//
// Returns an error if store is nil.
func WithSession(store session.Store) Option {
	return func(cfg *clientConfig) error {
		if store == nil {
			return errors.New("session store cannot be nil")
		}
		cfg.session = store
		return nil
	}
}

// WithLogger sets a custom [slog.Logger]. If not specified, [slog.Default]
// is used.
//
// Returns an error if the logger is nil.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *clientConfig) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		cfg.logger = logger
		return nil
	}
}

// WithMetrics registers the client's Prometheus collectors on reg. Without
// it the client records no metrics.
//
// Each registry accepts one client; registering a second client on the same
// registry panics.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(cfg *clientConfig) error {
		if reg == nil {
			return errors.New("metrics registerer cannot be nil")
		}
		cfg.registerer = reg
		return nil
	}
}
