package poller

import (
	"context"
	"sync"
)

// Slot holds at most one active [Session] for a single job slot.
//
// Starting a new session stops the previous one first, so two poll loops
// never write to the same observer. All methods are safe for concurrent use.
type Slot[T any] struct {
	mu     sync.Mutex
	active *Session[T]
}

// Start stops the active session, if any, and starts a new one.
func (s *Slot[T]) Start(ctx context.Context, initial T, loop Loop[T], observer Observer[T]) *Session[T] {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active != nil {
		s.active.Stop()
	}
	s.active = Start(ctx, initial, loop, observer)
	return s.active
}

// Stop stops the active session. Idempotent; safe when nothing is running.
func (s *Slot[T]) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active != nil {
		s.active.Stop()
	}
}

// Active returns the current session, or nil if none was started.
func (s *Slot[T]) Active() *Session[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}
