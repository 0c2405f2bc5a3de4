package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrStopped is recorded on a [Session] that was stopped before it reached a
// terminal snapshot.
var ErrStopped = errors.New("polling stopped")

// DefaultInterval is used when a [Loop] has no positive Interval.
const DefaultInterval = 3 * time.Second

// Update is a single delivery to an [Observer].
//
// Snapshot is the zero value when the update carries a fetch error. Final is
// true for the last update of a session; no further updates follow it.
type Update[T any] struct {
	Snapshot T
	Err      error
	Final    bool
}

// Observer receives snapshots from a polling session.
//
// Observers are invoked synchronously from the session goroutine while the
// session's liveness lock is held. They must not block, and must not call
// Stop on the session (or Start/Stop on the owning [Slot]) synchronously.
type Observer[T any] func(Update[T])

// Loop describes a poll-until-terminal loop.
type Loop[T any] struct {
	// Name identifies the loop in logs (e.g. "model").
	Name string

	// Interval is the fixed delay between status requests. The first request
	// is issued one interval after the session starts.
	Interval time.Duration

	// Fetch retrieves the latest snapshot. Any error ends the session.
	Fetch func(ctx context.Context) (T, error)

	// Outcome classifies a snapshot. terminal ends the session; err is
	// attached to the final update (for example a backend-reported failure).
	Outcome func(snapshot T) (terminal bool, err error)

	// Logger receives per-tick diagnostics. Defaults to slog.Default().
	Logger *slog.Logger
}

// Session is one running poll loop.
//
// A session is created by [Start] (or [Slot.Start]) and ends when a terminal
// snapshot is observed, a fetch fails, the parent context is cancelled, or
// [Session.Stop] is called.
type Session[T any] struct {
	cancel   context.CancelFunc
	done     chan struct{}
	observer Observer[T]
	logger   *slog.Logger

	mu      sync.Mutex
	stopped bool
	last    T
	err     error
}

// Start begins polling in a background goroutine and returns the session.
//
// initial is recorded as the current snapshot until the first poll response
// arrives; it is not delivered to the observer.
func Start[T any](ctx context.Context, initial T, loop Loop[T], observer Observer[T]) *Session[T] {
	if ctx == nil {
		ctx = context.Background()
	}
	logger := loop.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if observer == nil {
		observer = func(Update[T]) {}
	}

	runCtx, cancel := context.WithCancel(ctx)
	s := &Session[T]{
		cancel:   cancel,
		done:     make(chan struct{}),
		observer: observer,
		logger:   logger.With("loop", loop.Name),
		last:     initial,
	}

	go s.run(runCtx, loop)
	return s
}

// Stop cancels the session. Once Stop returns, the observer will not be
// invoked again by this session, even if a response is still in flight.
//
// Stop is idempotent and safe to call after the session has finished.
func (s *Session[T]) Stop() {
	s.mu.Lock()
	if !s.stopped {
		s.stopped = true
		s.err = ErrStopped
	}
	s.mu.Unlock()
	s.cancel()
}

// Done returns a channel that is closed when the session goroutine exits.
func (s *Session[T]) Done() <-chan struct{} {
	return s.done
}

// Last returns the most recent snapshot (the initial placeholder until the
// first poll response is observed).
func (s *Session[T]) Last() T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// Err returns the error the session ended with, or nil while running and
// after a successful terminal snapshot.
func (s *Session[T]) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Wait blocks until the session ends or ctx is done, then returns the last
// snapshot and the session error.
func (s *Session[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-s.done:
		return s.Last(), s.Err()
	case <-ctx.Done():
		return s.Last(), ctx.Err()
	}
}

func (s *Session[T]) run(ctx context.Context, loop Loop[T]) {
	defer close(s.done)
	defer s.cancel()

	interval := loop.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.end(ctx.Err())
			return
		case <-ticker.C:
		}

		snapshot, err := loop.Fetch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				// cancelled mid-flight: the response belongs to a dead session
				s.end(ctx.Err())
				return
			}
			s.logger.Warn("poll failed", "error", err.Error())
			s.deliver(Update[T]{Err: err, Final: true}, false)
			return
		}

		terminal, outcomeErr := loop.Outcome(snapshot)
		if terminal {
			s.logger.Debug("poll reached terminal state")
		} else {
			s.logger.Debug("poll completed")
		}
		if !s.deliver(Update[T]{Snapshot: snapshot, Err: outcomeErr, Final: terminal}, true) || terminal {
			return
		}
	}
}

// deliver hands u to the observer if the session is still live. It returns
// false when the update was dropped. Fetch errors carry no snapshot, so the
// last good one is kept.
func (s *Session[T]) deliver(u Update[T], hasSnapshot bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return false
	}
	if hasSnapshot {
		s.last = u.Snapshot
	}
	if u.Final {
		s.stopped = true
		s.err = u.Err
	}

	s.invokeObserverSafe(u)
	return true
}

// end records err as the session outcome unless one is already set.
func (s *Session[T]) end(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.stopped {
		s.stopped = true
		s.err = err
	}
}

// invokeObserverSafe calls the observer with panic recovery.
// Panics are logged with a correlation id and do not propagate.
func (s *Session[T]) invokeObserverSafe(u Update[T]) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("observer panicked",
				"correlation_id", uuid.NewString(),
				"panic", fmt.Sprintf("%v", r),
				"stack", string(debug.Stack()),
			)
		}
	}()
	s.observer(u)
}
