package cryptolab

import (
	"errors"
	"fmt"
	"strings"
)

// sweepConfig holds configuration during a sweep.
type sweepConfig struct {
	coins         []string
	timeframes    []int
	historyWindow int
	concurrency   int
	onResult      func(SweepResult)
}

// SweepOption configures [Sweep].
type SweepOption func(*sweepConfig) error

// WithSweepCoins sets the coins to score instead of the watchlist.
//
// Returns an error if a symbol is empty or repeated.
func WithSweepCoins(symbols ...string) SweepOption {
	return func(cfg *sweepConfig) error {
		seen := make(map[string]bool, len(symbols))
		coins := make([]string, 0, len(symbols))
		for _, s := range symbols {
			s = strings.ToUpper(strings.TrimSpace(s))
			if s == "" {
				return errors.New("sweep coin cannot be empty")
			}
			if seen[s] {
				return fmt.Errorf("duplicate sweep coin: %q", s)
			}
			seen[s] = true
			coins = append(coins, s)
		}
		cfg.coins = coins
		return nil
	}
}

// WithSweepTimeframes sets the candle sizes, in minutes, to score each coin
// at.
//
// Returns an error if none are given or any is not positive.
func WithSweepTimeframes(minutes ...int) SweepOption {
	return func(cfg *sweepConfig) error {
		if len(minutes) == 0 {
			return errors.New("at least one sweep timeframe required")
		}
		for _, m := range minutes {
			if m <= 0 {
				return fmt.Errorf("sweep timeframe must be positive, got %d", m)
			}
		}
		cfg.timeframes = append([]int(nil), minutes...)
		return nil
	}
}

// WithSweepHistoryWindow sets the score history window. Defaults to
// [DefaultHistoryWindow].
//
// Returns an error below [MinHistoryWindow].
func WithSweepHistoryWindow(n int) SweepOption {
	return func(cfg *sweepConfig) error {
		if n < MinHistoryWindow {
			return fmt.Errorf("history window must be at least %d, got %d", MinHistoryWindow, n)
		}
		cfg.historyWindow = n
		return nil
	}
}

// WithSweepConcurrency limits how many score jobs are in flight at once.
// Defaults to 4.
//
// Returns an error if the value is zero or negative.
func WithSweepConcurrency(n int) SweepOption {
	return func(cfg *sweepConfig) error {
		if n <= 0 {
			return errors.New("sweep concurrency must be positive")
		}
		cfg.concurrency = n
		return nil
	}
}

// WithSweepCallback registers a function called as each combination
// finishes, from the worker goroutine that ran it. Callbacks must be
// non-blocking and safe for concurrent use. Panics are recovered and logged.
//
// Nil callbacks are silently ignored.
func WithSweepCallback(cb func(SweepResult)) SweepOption {
	return func(cfg *sweepConfig) error {
		cfg.onResult = cb
		return nil
	}
}
