// Standalone mock analytics backend for trying the CLI.
//
// Usage:
//
//	go run ./example/cmd/mockserver
//
// Then in another terminal:
//
//	go run ./cmd/cryptolab login -c example/config.yaml --email demo@example.com --name demo --password password123
//	go run ./cmd/cryptolab explain model BTC --date 2024-03-10 -c example/config.yaml
//	go run ./cmd/cryptolab serve -c example/config.yaml
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/jpalmerr/cryptolab/internal/mockbackend"
)

func main() {
	addr := flag.String("addr", ":8000", "listen address")
	steps := flag.Int("steps", 3, "status polls before a job finishes")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	b := mockbackend.New(
		mockbackend.WithSteps(*steps),
		mockbackend.WithLogger(logger),
	)
	if err := b.AddUser("demo@example.com", "demo", "password123"); err != nil {
		logger.Error("failed to seed demo account", "error", err)
		os.Exit(1)
	}

	fmt.Printf("Mock analytics backend starting on %s\n", *addr)
	fmt.Println("Demo account: demo@example.com / password123")
	fmt.Printf("Jobs for %s always fail\n", mockbackend.FailingCoin)
	fmt.Println("Press Ctrl+C to stop")
	fmt.Println()

	if err := b.ListenAndServe(*addr); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}
