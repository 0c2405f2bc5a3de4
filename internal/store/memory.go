package store

import (
	"sort"
	"sync"
	"time"
)

// subscriberBuffer is the per-subscriber channel capacity.
const subscriberBuffer = 100

// MemoryStore is an in-memory implementation of [Store].
//
// Subscribers receive snapshots via buffered channels. Sends are
// non-blocking; if a subscriber's buffer is full the snapshot is dropped for
// that subscriber. The latest state is always available from GetAll.
type MemoryStore struct {
	mu    sync.RWMutex
	slots map[string]Snapshot

	subMu       sync.RWMutex
	subscribers map[chan Snapshot]struct{}

	now func() time.Time
}

// NewMemoryStore creates a new in-memory [Store] implementation.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		slots:       make(map[string]Snapshot),
		subscribers: make(map[chan Snapshot]struct{}),
		now:         time.Now,
	}
}

// Update stores snap under its slot and notifies all subscribers. A zero
// UpdatedAt is filled in with the current time.
func (m *MemoryStore) Update(snap Snapshot) {
	if snap.UpdatedAt.IsZero() {
		snap.UpdatedAt = m.now().UTC()
	}

	m.mu.Lock()
	m.slots[snap.Slot] = snap
	m.mu.Unlock()

	m.notifySubscribers(snap)
}

// Get returns the snapshot for slot.
func (m *MemoryStore) Get(slot string) (Snapshot, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap, ok := m.slots[slot]
	return snap, ok
}

// GetAll returns a copy of all snapshots, ordered by slot.
func (m *MemoryStore) GetAll() []Snapshot {
	m.mu.RLock()
	results := make([]Snapshot, 0, len(m.slots))
	for _, snap := range m.slots {
		results = append(results, snap)
	}
	m.mu.RUnlock()

	sort.Slice(results, func(i, j int) bool { return results[i].Slot < results[j].Slot })
	return results
}

// Delete removes slot and notifies subscribers.
func (m *MemoryStore) Delete(slot string) {
	m.mu.Lock()
	_, ok := m.slots[slot]
	delete(m.slots, slot)
	m.mu.Unlock()

	if ok {
		m.notifySubscribers(Snapshot{Slot: slot, Cleared: true, Final: true, UpdatedAt: m.now().UTC()})
	}
}

// Subscribe creates a new subscription and returns a channel for receiving
// snapshots.
//
// Caller must call [MemoryStore.Unsubscribe] when done to prevent resource leaks.
func (m *MemoryStore) Subscribe() <-chan Snapshot {
	ch := make(chan Snapshot, subscriberBuffer)

	m.subMu.Lock()
	m.subscribers[ch] = struct{}{}
	m.subMu.Unlock()

	return ch
}

// Unsubscribe removes a subscription and closes its channel.
//
// Safe to call multiple times or with an unknown channel.
func (m *MemoryStore) Unsubscribe(ch <-chan Snapshot) {
	m.subMu.Lock()
	defer m.subMu.Unlock()

	// find and delete the channel (need to convert to the right type)
	for subCh := range m.subscribers {
		if subCh == ch {
			delete(m.subscribers, subCh)
			close(subCh)
			break
		}
	}
}

// SubscriberCount returns the number of active subscriptions.
func (m *MemoryStore) SubscriberCount() int {
	m.subMu.RLock()
	defer m.subMu.RUnlock()
	return len(m.subscribers)
}

// notifySubscribers sends snap to all active subscribers without blocking.
func (m *MemoryStore) notifySubscribers(snap Snapshot) {
	m.subMu.RLock()
	defer m.subMu.RUnlock()

	for ch := range m.subscribers {
		select {
		case ch <- snap:
		default:
			// subscriber is slow, drop the message
		}
	}
}
