package store

import (
	"encoding/json"
	"sync"
	"testing"
	"time"
)

func TestNewMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	if store == nil {
		t.Fatal("NewMemoryStore() = nil")
	}

	// should start empty
	if len(store.GetAll()) != 0 {
		t.Errorf("GetAll() = %v items, want 0", len(store.GetAll()))
	}
}

func TestMemoryStore_Update(t *testing.T) {
	store := NewMemoryStore()

	store.Update(Snapshot{
		Slot:       "model",
		CoinSymbol: "BTC",
		TaskID:     "t1",
		Status:     "SUCCESS",
		Results:    json.RawMessage(`{"prediction_percentile":87.5}`),
	})

	all := store.GetAll()
	if len(all) != 1 {
		t.Fatalf("GetAll() = %v items, want 1", len(all))
	}

	got := all[0]
	if got.TaskID != "t1" || got.Status != "SUCCESS" {
		t.Errorf("GetAll()[0] = %+v", got)
	}
	if got.UpdatedAt.IsZero() {
		t.Error("UpdatedAt should be filled in")
	}
	if string(got.Results) != `{"prediction_percentile":87.5}` {
		t.Errorf("Results = %s", got.Results)
	}
}

func TestMemoryStore_UpdateReplacesSlot(t *testing.T) {
	store := NewMemoryStore()

	store.Update(Snapshot{Slot: "score", TaskID: "old", Status: "STARTED"})
	store.Update(Snapshot{Slot: "score", TaskID: "new", Status: "PENDING"})

	all := store.GetAll()
	if len(all) != 1 {
		t.Fatalf("GetAll() = %v items, want 1", len(all))
	}
	if all[0].TaskID != "new" {
		t.Errorf("TaskID = %v, want new", all[0].TaskID)
	}
}

func TestMemoryStore_GetAllOrderedBySlot(t *testing.T) {
	store := NewMemoryStore()

	store.Update(Snapshot{Slot: "score"})
	store.Update(Snapshot{Slot: "chart"})
	store.Update(Snapshot{Slot: "model"})

	all := store.GetAll()
	want := []string{"chart", "model", "score"}
	if len(all) != len(want) {
		t.Fatalf("GetAll() = %v items, want %d", len(all), len(want))
	}
	for i, w := range want {
		if all[i].Slot != w {
			t.Errorf("GetAll()[%d].Slot = %q, want %q", i, all[i].Slot, w)
		}
	}
}

func TestMemoryStore_Get(t *testing.T) {
	store := NewMemoryStore()

	if _, ok := store.Get("model"); ok {
		t.Error("Get() on empty store should report missing")
	}

	store.Update(Snapshot{Slot: "model", TaskID: "t1"})
	snap, ok := store.Get("model")
	if !ok || snap.TaskID != "t1" {
		t.Errorf("Get() = %+v, %v", snap, ok)
	}
}

func TestMemoryStore_Delete(t *testing.T) {
	store := NewMemoryStore()
	store.Update(Snapshot{Slot: "model", TaskID: "t1"})

	ch := store.Subscribe()
	defer store.Unsubscribe(ch)

	store.Delete("model")

	if _, ok := store.Get("model"); ok {
		t.Error("slot should be gone after Delete")
	}

	select {
	case snap := <-ch:
		if !snap.Cleared || snap.Slot != "model" {
			t.Errorf("notification = %+v, want cleared model", snap)
		}
	case <-time.After(time.Second):
		t.Fatal("Delete() did not notify subscribers")
	}

	// unknown slot: no notification
	store.Delete("nope")
	select {
	case snap := <-ch:
		t.Errorf("unexpected notification %+v", snap)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMemoryStore_Subscribe(t *testing.T) {
	store := NewMemoryStore()

	ch := store.Subscribe()
	if ch == nil {
		t.Fatal("Subscribe() = nil")
	}

	go func() {
		store.Update(Snapshot{Slot: "model", Status: "PENDING"})
	}()

	select {
	case snap := <-ch:
		if snap.Slot != "model" {
			t.Errorf("received Slot = %v, want model", snap.Slot)
		}
	case <-time.After(1 * time.Second):
		t.Error("Subscribe() channel did not receive update")
	}
}

func TestMemoryStore_MultipleSubscribers(t *testing.T) {
	store := NewMemoryStore()

	ch1 := store.Subscribe()
	ch2 := store.Subscribe()
	ch3 := store.Subscribe()

	// update should fanout to all subscribers
	go func() {
		store.Update(Snapshot{Slot: "chart", Status: "STARTED"})
	}()

	received := 0
	timeout := time.After(1 * time.Second)

	for received < 3 {
		select {
		case <-ch1:
			received++
		case <-ch2:
			received++
		case <-ch3:
			received++
		case <-timeout:
			t.Fatalf("Only received %d/3 updates", received)
		}
	}
}

func TestMemoryStore_Unsubscribe(t *testing.T) {
	store := NewMemoryStore()

	ch := store.Subscribe()
	if store.SubscriberCount() != 1 {
		t.Errorf("SubscriberCount() = %d, want 1", store.SubscriberCount())
	}
	store.Unsubscribe(ch)
	store.Unsubscribe(ch)

	select {
	case _, ok := <-ch:
		if ok {
			t.Error("Unsubscribe() channel should be closed")
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("Unsubscribe() channel should be closed immediately")
	}
	if store.SubscriberCount() != 0 {
		t.Errorf("SubscriberCount() = %d, want 0", store.SubscriberCount())
	}
}

func TestMemoryStore_SlowSubscriberDoesNotBlock(t *testing.T) {
	store := NewMemoryStore()

	// create a subscriber but don't read from it
	_ = store.Subscribe()

	ch2 := store.Subscribe()

	done := make(chan bool)

	go func() {
		for i := 0; i < 2*subscriberBuffer; i++ {
			store.Update(Snapshot{Slot: "score", Status: "STARTED"})
		}
		done <- true
	}()

	go func() {
		for range ch2 {
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Error("Update() blocked on slow subscriber")
	}
}

func TestMemoryStore_ConcurrentAccess(t *testing.T) {
	store := NewMemoryStore()

	var wg sync.WaitGroup
	numGoroutines := 10
	numUpdates := 100

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < numUpdates; j++ {
				store.Update(Snapshot{Slot: "model", Status: "PENDING"})
			}
		}()
	}

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < numUpdates; j++ {
				_ = store.GetAll()
				store.Delete("chart")
			}
		}()
	}

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ch := store.Subscribe()
			time.Sleep(10 * time.Millisecond)
			store.Unsubscribe(ch)
		}()
	}

	wg.Wait()
}
