package main

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/jpalmerr/cryptolab"
	"github.com/jpalmerr/cryptolab/config"
	"github.com/jpalmerr/cryptolab/internal/server"
	"github.com/jpalmerr/cryptolab/internal/store"
)

const (
	shutdownTimeout = 10 * time.Second
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the relay server",
		Long: `Start the cryptolab relay server.

The server will:
  - Load configuration from the specified YAML file
  - Submit jobs posted to /api/jobs/{slot} and poll them to completion
  - Stream task snapshots to browsers over /api/sse
  - Expose Prometheus metrics on /metrics

The server runs until interrupted (Ctrl+C) or receives SIGTERM.

Example:
  cryptolab serve -c config.yaml
  cryptolab serve --config /etc/cryptolab/config.yaml --port 9090`,
		RunE: runServe,
	}

	cmd.Flags().Int("port", 0, "listen port (overrides server.port)")
	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if port, _ := cmd.Flags().GetInt("port"); port > 0 {
		cfg.Server.Port = port
	}

	logger := config.NewLogger(cmd.ErrOrStderr(), cfg.Log)

	sessions, closeSessions, err := config.BuildSessionStore(ctx, cfg.Session)
	if err != nil {
		return fmt.Errorf("failed to open session store: %w", err)
	}
	defer func() {
		if err := closeSessions(); err != nil {
			logger.Warn("failed to close session store", "error", err)
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	client, err := cryptolab.New(append(config.ClientOptions(cfg, sessions, logger), cryptolab.WithMetrics(reg))...)
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}
	defer client.Close()

	logger.Info("starting server",
		"port", cfg.Server.Port,
		"backend", cfg.BaseURL,
		"session", cfg.Session.Backend,
		"poll_interval", cfg.PollInterval.Duration().String(),
	)

	tasks := store.NewMemoryStore()
	jobs := server.NewJobs(client, tasks, logger)
	srv := server.NewServer(tasks, jobs, cfg.Server.Port, reg, logger)

	// start server - returns once listening
	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	<-ctx.Done()

	// signal received, wait for graceful shutdown with timeout
	select {
	case <-srv.Done():
		logger.Info("shutdown complete")
	case <-time.After(shutdownTimeout):
		logger.Warn("shutdown timed out",
			"timeout", shutdownTimeout.String(),
			"action", "forcing exit",
		)
	}
	return nil
}
