package cryptolab

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync/atomic"
	"testing"
	"time"
)

func TestCartesianProduct(t *testing.T) {
	got := cartesianProduct(map[string][]string{
		"timeframe": {"60", "240"},
		"coin":      {"BTC", "ETH"},
	})
	want := []map[string]string{
		{"coin": "BTC", "timeframe": "60"},
		{"coin": "BTC", "timeframe": "240"},
		{"coin": "ETH", "timeframe": "60"},
		{"coin": "ETH", "timeframe": "240"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("cartesianProduct() = %v, want %v", got, want)
	}
}

func TestCartesianProduct_Empty(t *testing.T) {
	if got := cartesianProduct(nil); got != nil {
		t.Errorf("cartesianProduct(nil) = %v, want nil", got)
	}
	if got := cartesianProduct(map[string][]string{"coin": {}}); got != nil {
		t.Errorf("cartesianProduct(empty dim) = %v, want nil", got)
	}
}

// sweepBackend scores each submission immediately. Coins listed in fail are
// rejected at submission.
func sweepBackend(t *testing.T, fail map[string]bool) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var inFlight, peak atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc("POST /score-chart/", func(w http.ResponseWriter, r *http.Request) {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)

		var req ScoreRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if fail[req.CoinSymbol] {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"detail":"Coin symbol not found."}`))
			return
		}
		id := fmt.Sprintf("%s-%d", req.CoinSymbol, req.Timeframe)
		_ = json.NewEncoder(w).Encode(map[string]string{"task_id": id})
	})
	mux.HandleFunc("GET /score-chart/{id}", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"task_id":"` + r.PathValue("id") + `","status":"SUCCESS","results":{"directionality":{"score":0.5,"explanation":"flat"}}}`))
	})
	mux.HandleFunc("GET /watchlist", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"coin_symbols":["XRP","ADA"]}`))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &peak
}

func TestSweep(t *testing.T) {
	srv, peak := sweepBackend(t, map[string]bool{"BAD": true})
	c, _ := newTestClient(t, srv)

	var callbacks atomic.Int32
	results, err := Sweep(context.Background(), c, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		WithSweepCoins("btc", "bad", "eth"),
		WithSweepTimeframes(60, 240),
		WithSweepConcurrency(2),
		WithSweepCallback(func(SweepResult) { callbacks.Add(1) }),
	)
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}

	if len(results) != 6 {
		t.Fatalf("len(results) = %d, want 6", len(results))
	}
	for _, r := range results {
		if r.CoinSymbol == "BAD" {
			var se *SubmissionError
			if !errors.As(r.Err, &se) {
				t.Errorf("BAD/%d error = %v, want *SubmissionError", r.Timeframe, r.Err)
			}
			continue
		}
		if r.Err != nil {
			t.Errorf("%s/%d error = %v", r.CoinSymbol, r.Timeframe, r.Err)
			continue
		}
		if r.Task.Status != StatusSuccess || r.Task.Results == nil {
			t.Errorf("%s/%d task = %+v, want SUCCESS", r.CoinSymbol, r.Timeframe, r.Task)
		}
	}

	if got := callbacks.Load(); got != 6 {
		t.Errorf("callbacks = %d, want 6", got)
	}
	if got := peak.Load(); got > 2 {
		t.Errorf("peak concurrent submissions = %d, want <= 2", got)
	}
}

func TestSweep_ExpansionOrder(t *testing.T) {
	srv, _ := sweepBackend(t, nil)
	c, _ := newTestClient(t, srv)

	results, err := Sweep(context.Background(), c, time.Now(),
		WithSweepCoins("ETH", "BTC"),
		WithSweepTimeframes(240, 60),
	)
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}

	var got []string
	for _, r := range results {
		got = append(got, fmt.Sprintf("%s/%d", r.CoinSymbol, r.Timeframe))
	}
	// option order is kept within each dimension
	want := []string{"ETH/240", "ETH/60", "BTC/240", "BTC/60"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("order = %v, want %v", got, want)
	}
}

func TestSweep_DefaultsToWatchlist(t *testing.T) {
	srv, _ := sweepBackend(t, nil)
	c, _ := newTestClient(t, srv)

	results, err := Sweep(context.Background(), c, time.Now())
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}

	var coins []string
	for _, r := range results {
		coins = append(coins, r.CoinSymbol)
		if r.Timeframe != DefaultTimeframe {
			t.Errorf("Timeframe = %d, want %d", r.Timeframe, DefaultTimeframe)
		}
	}
	if !reflect.DeepEqual(coins, []string{"XRP", "ADA"}) {
		t.Errorf("coins = %v, want watchlist order", coins)
	}
}

func TestSweep_InvalidOptions(t *testing.T) {
	c, err := New(WithLogger(testLogger()))
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		opt  SweepOption
	}{
		{"empty coin", WithSweepCoins("BTC", "")},
		{"duplicate coin", WithSweepCoins("BTC", "btc")},
		{"no timeframes", WithSweepTimeframes()},
		{"zero timeframe", WithSweepTimeframes(0)},
		{"small window", WithSweepHistoryWindow(MinHistoryWindow - 1)},
		{"zero concurrency", WithSweepConcurrency(0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Sweep(context.Background(), c, time.Now(), tt.opt); err == nil {
				t.Error("Sweep() expected error, got nil")
			}
		})
	}
}
