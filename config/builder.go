package config

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/jpalmerr/cryptolab"
	"github.com/jpalmerr/cryptolab/session"
)

// BuildSessionStore creates the token store selected by sc.
//
// The returned close function releases the store's resources (the redis
// connection pool); it is never nil. A redis store is checked with a PING
// before it is returned.
func BuildSessionStore(ctx context.Context, sc SessionConfig) (session.Store, func() error, error) {
	noop := func() error { return nil }

	switch sc.Backend {
	case BackendMemory:
		return session.NewMemoryStore(), noop, nil

	case BackendFile, "":
		path := sc.Path
		if path == "" {
			p, err := session.DefaultPath()
			if err != nil {
				return nil, nil, err
			}
			path = p
		}
		return session.NewFileStore(path), noop, nil

	case BackendRedis:
		store, err := session.NewRedisStore(ctx, session.RedisOptions{
			Addr:     sc.Redis.Addr,
			Password: sc.Redis.Password,
			DB:       sc.Redis.DB,
			Key:      sc.Redis.Key,
			TTL:      sc.Redis.TTL.Duration(),
		})
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	}

	return nil, nil, fmt.Errorf("unknown session backend %q", sc.Backend)
}

// ClientOptions converts cfg into [cryptolab.Option] values. The session
// store is built separately with [BuildSessionStore] so the caller owns its
// lifetime.
func ClientOptions(cfg *Config, store session.Store, logger *slog.Logger) []cryptolab.Option {
	opts := []cryptolab.Option{
		cryptolab.WithBaseURL(cfg.BaseURL),
		cryptolab.WithPollInterval(cfg.PollInterval.Duration()),
		cryptolab.WithRequestTimeout(cfg.RequestTimeout.Duration()),
	}
	if store != nil {
		opts = append(opts, cryptolab.WithSession(store))
	}
	if logger != nil {
		opts = append(opts, cryptolab.WithLogger(logger))
	}
	return opts
}

// SweepOptions converts the sweep section into [cryptolab.SweepOption]
// values. Coins are left to the caller.
func SweepOptions(sc SweepConfig) []cryptolab.SweepOption {
	return []cryptolab.SweepOption{
		cryptolab.WithSweepConcurrency(sc.Concurrency),
		cryptolab.WithSweepTimeframes(sc.Timeframes...),
		cryptolab.WithSweepHistoryWindow(sc.HistoryWindow),
	}
}

// NewLogger builds the process logger described by lc, writing to w.
func NewLogger(w io.Writer, lc LogConfig) *slog.Logger {
	var level slog.Level
	switch lc.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if lc.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
