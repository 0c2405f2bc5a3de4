// Package poller provides the polling primitives behind cryptolab job tracking.
//
// This package is internal to cryptolab. It knows nothing about job kinds or
// backend schemas; callers supply a fetch function and a terminal-state check.
//
// The main components are:
//
//   - [Client]: HTTP client wrapper with timeout and size limits
//   - [Session]: one poll-until-terminal loop driven by a ticker
//   - [Slot]: holds at most one active session per job slot
//   - [Update]: a snapshot (or error) delivered to an [Observer]
//
// Users of the cryptolab library should not need to interact with this
// package directly.
package poller
