package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/jpalmerr/cryptolab"
	"github.com/jpalmerr/cryptolab/features"
	"github.com/jpalmerr/cryptolab/internal/render"
)

func main() {
	// start mock backend (see mock_server.go)
	go StartMockBackend(":8765")
	time.Sleep(100 * time.Millisecond)

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	c, err := cryptolab.New(
		cryptolab.WithBaseURL("http://localhost:8765"),
		cryptolab.WithPollInterval(500*time.Millisecond),
		cryptolab.WithLogger(logger),
	)
	if err != nil {
		slog.Error("failed to create client", "error", err)
		os.Exit(1)
	}
	defer c.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, c); err != nil {
		slog.Error("demo failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, c *cryptolab.Client) error {
	if _, err := c.Login(ctx, cryptolab.Credentials{Email: demoEmail, Name: demoName, Password: demoPassword}); err != nil {
		return fmt.Errorf("login: %w", err)
	}

	if _, err := c.SetWatchlist(ctx, []string{"BTC", "ETH", "SOL", "XRP", "ADA"}); err != nil {
		return fmt.Errorf("set watchlist: %w", err)
	}

	day := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)

	// one model explanation, tracked with progress lines
	tracker := cryptolab.NewTracker(c, cryptolab.ModelExplanationJob, func(u cryptolab.Update[cryptolab.ModelExplanation]) {
		fmt.Println(render.StatusLine("model explanation", u.Task.Status))
	})
	defer tracker.Stop()

	if _, err := tracker.Submit(ctx, cryptolab.NewModelRequest("BTC", day)); err != nil {
		return fmt.Errorf("submit model explanation: %w", err)
	}
	task, err := tracker.Wait(ctx)
	if err != nil {
		return fmt.Errorf("model explanation: %w", err)
	}
	fmt.Println()
	if err := render.ModelExplanation(os.Stdout, *task.Results, features.Default); err != nil {
		return err
	}

	// score the whole watchlist at two timeframes
	fmt.Println()
	fmt.Println("Sweeping watchlist...")
	var mu sync.Mutex
	results, err := cryptolab.Sweep(ctx, c, day,
		cryptolab.WithSweepTimeframes(60, 240),
		cryptolab.WithSweepCallback(func(r cryptolab.SweepResult) {
			mu.Lock()
			defer mu.Unlock()
			fmt.Printf("  %-5s %4dm  %s\n", r.CoinSymbol, r.Timeframe, r.Task.Status)
		}),
	)
	if err != nil {
		return fmt.Errorf("sweep: %w", err)
	}

	for _, r := range results {
		if r.Err != nil {
			continue
		}
		fmt.Printf("\n%s @ %dm\n", r.CoinSymbol, r.Timeframe)
		if err := render.Score(os.Stdout, *r.Task.Results, true); err != nil {
			return err
		}
	}
	return nil
}
