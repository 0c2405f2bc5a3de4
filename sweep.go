package cryptolab

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"
)

const defaultSweepConcurrency = 4

// SweepResult is the outcome of scoring one coin at one timeframe.
type SweepResult struct {
	CoinSymbol string
	Timeframe  int
	TaskID     string

	// Task is the last snapshot observed; SUCCESS carries the score.
	Task Task[ChartScore]

	// Err is the submission or polling error, or a [*JobFailure].
	Err error
}

// Sweep scores every combination of coin and timeframe for one day.
//
// Combinations are expanded as a cartesian product (coins outer, timeframes
// inner) and run through a bounded worker pool; each worker submits a
// [ChartScoreJob] and polls it to completion. Results are returned in
// expansion order regardless of completion order.
//
// When no coins are given via [WithSweepCoins], the logged-in user's
// watchlist is used. Timeframes default to [DefaultTimeframe].
//
// A failed combination does not stop the others; its error is recorded on
// its [SweepResult]. Sweep itself returns an error only when the
// combinations cannot be built, or when ctx ends before every job completes.
func Sweep(ctx context.Context, c *Client, date time.Time, opts ...SweepOption) ([]SweepResult, error) {
	cfg := &sweepConfig{
		timeframes:    []int{DefaultTimeframe},
		historyWindow: DefaultHistoryWindow,
		concurrency:   defaultSweepConcurrency,
	}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	coins := cfg.coins
	if len(coins) == 0 {
		wl, err := c.Watchlist(ctx)
		if err != nil {
			return nil, fmt.Errorf("load watchlist for sweep: %w", err)
		}
		coins = wl
	}
	if len(coins) == 0 {
		return nil, errors.New("sweep needs at least one coin")
	}

	tfs := make([]string, len(cfg.timeframes))
	for i, tf := range cfg.timeframes {
		tfs[i] = strconv.Itoa(tf)
	}
	combos := cartesianProduct(map[string][]string{
		"coin":      coins,
		"timeframe": tfs,
	})

	results := make([]SweepResult, len(combos))
	for i, combo := range combos {
		tf, _ := strconv.Atoi(combo["timeframe"])
		results[i] = SweepResult{CoinSymbol: combo["coin"], Timeframe: tf}
	}

	jobs := make(chan int, len(results))

	var wg sync.WaitGroup
	for i := 0; i < min(cfg.concurrency, len(results)); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				r := &results[idx]
				scoreOne(ctx, c, date, cfg.historyWindow, r)
				c.logger.Debug("sweep job completed",
					"coin", r.CoinSymbol,
					"timeframe", r.Timeframe,
					"task_id", r.TaskID,
					"status", r.Task.Status.String(),
				)
				if cfg.onResult != nil {
					invokeSweepCallbackSafe(c, cfg.onResult, *r)
				}
			}
		}()
	}

	for i := range results {
		select {
		case jobs <- i:
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			return results, ctx.Err()
		}
	}
	close(jobs)
	wg.Wait()

	return results, ctx.Err()
}

// scoreOne submits and polls a single combination, filling r.
func scoreOne(ctx context.Context, c *Client, date time.Time, historyWindow int, r *SweepResult) {
	req := NewScoreRequest(r.CoinSymbol, date, r.Timeframe, historyWindow)

	taskID, err := Submit(ctx, c, ChartScoreJob, req)
	if err != nil {
		r.Err = err
		return
	}
	r.TaskID = taskID

	s := Watch(ctx, c, ChartScoreJob, taskID, nil)
	defer s.Stop()

	r.Task, r.Err = s.Wait(ctx)
}

// invokeSweepCallbackSafe calls a sweep callback with panic recovery.
func invokeSweepCallbackSafe(c *Client, cb func(SweepResult), r SweepResult) {
	defer func() {
		if p := recover(); p != nil {
			c.logger.Error("sweep callback panicked", "panic", p, "coin", r.CoinSymbol)
		}
	}()
	cb(r)
}

// cartesianProduct generates all combinations of dimension values.
// Keys are sorted alphabetically for deterministic output.
// Values maintain their original slice order.
//
// Example:
//
//	Input:  {"x": ["a","b"], "y": ["1","2"]}
//	Output: [{"x":"a","y":"1"}, {"x":"a","y":"2"}, {"x":"b","y":"1"}, {"x":"b","y":"2"}]
func cartesianProduct(dims map[string][]string) []map[string]string {
	if len(dims) == 0 {
		return nil
	}

	keys := make([]string, 0, len(dims))
	for k := range dims {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	total := 1
	for _, k := range keys {
		if len(dims[k]) == 0 {
			return nil
		}
		total *= len(dims[k])
	}

	result := make([]map[string]string, 0, total)
	indices := make([]int, len(keys))
	for {
		combo := make(map[string]string, len(keys))
		for i, k := range keys {
			combo[k] = dims[k][indices[i]]
		}
		result = append(result, combo)

		// increment indices (rightmost first)
		for i := len(keys) - 1; i >= 0; i-- {
			indices[i]++
			if indices[i] < len(dims[keys[i]]) {
				break
			}
			indices[i] = 0
			if i == 0 {
				return result
			}
		}
	}
}
