package store

import (
	"encoding/json"
	"time"
)

// Snapshot is the latest known state of one job slot.
//
// A slot is a job kind ("model", "chart", "score"); each holds at most one
// task at a time. Snapshot is the wire form used by the REST API and SSE, so
// Results is kept as raw JSON rather than a typed result.
type Snapshot struct {
	// Slot is the job kind that owns the task.
	Slot string `json:"slot"`

	// CoinSymbol is the coin the job was submitted for.
	CoinSymbol string `json:"coin_symbol,omitempty"`

	// TaskID is the backend task id.
	TaskID string `json:"task_id"`

	// Status is PENDING, STARTED, SUCCESS or FAILURE.
	Status string `json:"status"`

	// Results is present only once Status is SUCCESS.
	Results json.RawMessage `json:"results,omitempty"`

	// Error is set when polling ended with a job failure or a poll error.
	Error *string `json:"error"`

	// Final is true once the slot's session has ended.
	Final bool `json:"final"`

	// Cleared is set on the notification sent when a slot is deleted.
	Cleared bool `json:"cleared,omitempty"`

	// UpdatedAt is when the snapshot was stored.
	UpdatedAt time.Time `json:"updated_at"`
}

// Store defines the interface for storing and subscribing to slot snapshots.
//
// Store implementations must be safe for concurrent access. The pub/sub
// mechanism pushes updates to connected clients over Server-Sent Events.
type Store interface {
	// Update stores a snapshot and notifies all subscribers.
	// Snapshots are keyed by Slot, so a new task replaces the previous one.
	Update(snap Snapshot)

	// Get returns the snapshot for slot.
	Get(slot string) (Snapshot, bool)

	// GetAll returns all stored snapshots ordered by slot.
	// The returned slice is a copy; modifications do not affect the store.
	GetAll() []Snapshot

	// Delete removes a slot and notifies subscribers with a Cleared
	// snapshot. Deleting an unknown slot is a no-op.
	Delete(slot string)

	// Subscribe returns a channel that receives snapshots.
	// The returned channel has a buffer; slow consumers may miss updates.
	// Caller must call Unsubscribe when done to prevent resource leaks.
	Subscribe() <-chan Snapshot

	// Unsubscribe removes a subscription and closes the channel.
	// Safe to call with a channel that was already unsubscribed.
	Unsubscribe(ch <-chan Snapshot)
}
