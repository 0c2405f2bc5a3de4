package main

import (
	"log/slog"

	"github.com/jpalmerr/cryptolab/internal/mockbackend"
)

// Demo account seeded into the mock backend.
const (
	demoEmail    = "demo@example.com"
	demoName     = "demo"
	demoPassword = "password123"
)

// StartMockBackend runs the mock analytics backend on addr with the demo
// account registered. Jobs finish on their third status poll.
// Call this in a goroutine before creating the client.
func StartMockBackend(addr string) {
	b := mockbackend.New(mockbackend.WithSteps(3))
	if err := b.AddUser(demoEmail, demoName, demoPassword); err != nil {
		slog.Error("failed to seed demo account", "error", err)
		return
	}
	if err := b.ListenAndServe(addr); err != nil {
		slog.Error("mock backend error", "error", err)
	}
}
