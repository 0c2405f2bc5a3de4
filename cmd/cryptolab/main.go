// Package main is the entry point for the cryptolab CLI.
//
// cryptolab can be used as a library (SDK) or through this binary, which
// wraps the SDK for terminal use and runs the relay server.
//
// Usage:
//
//	cryptolab login --email you@example.com --name you    # store a session token
//	cryptolab explain model BTC --date 2024-03-10         # explain a model prediction
//	cryptolab score ETH --timeframe 240                   # score today's chart
//	cryptolab sweep                                       # score the whole watchlist
//	cryptolab models                                      # list backtestable models
//	cryptolab serve -c config.yaml                        # start the relay server
//	cryptolab validate -c config.yaml                     # validate configuration
//	cryptolab version                                     # show version info
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/cryptolab"
	"github.com/jpalmerr/cryptolab/config"
	"github.com/jpalmerr/cryptolab/session"
)

// Version information - set by GoReleaser at build time via ldflags.
// Example: go build -ldflags "-X main.version=1.0.0"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// newRootCmd builds the command tree. Each call returns fresh flag state.
func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "cryptolab",
		Short: "Explain and score crypto charts from the terminal",
		Long: `cryptolab talks to the crypto analytics backend.

It submits model explanations, similar-chart searches and chart scores,
polls them until they finish, and prints the results. It can also run a
relay server that tracks jobs for browser clients over Server-Sent Events.

Quick start:
  1. Run: cryptolab register --email you@example.com --name you
  2. Run: cryptolab login --email you@example.com --name you
  3. Run: cryptolab explain model BTC --date 2024-03-10

Without -c, the backend is http://localhost:8000 and the session token is
kept in the user config directory.`,
		SilenceUsage: true,
		// No Run/RunE means this just shows help when called without subcommands
	}

	root.PersistentFlags().StringP("config", "c", "", "path to config file")

	root.AddCommand(
		newVersionCmd(),
		newValidateCmd(),
		newServeCmd(),
		newRegisterCmd(),
		newLoginCmd(),
		newLogoutCmd(),
		newWhoamiCmd(),
		newCoinsCmd(),
		newInfoCmd(),
		newWatchlistCmd(),
		newFeatureCmd(),
		newExplainCmd(),
		newScoreCmd(),
		newSweepCmd(),
		newModelsCmd(),
		newBacktestCmd(),
	)
	return root
}

func main() {
	// cancel polling and shut the server down on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		// Cobra already prints the error, just exit with code 1
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Long:  `Print the version, commit hash, and build date of this cryptolab binary.`,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "cryptolab %s\n", version)
			fmt.Fprintf(out, "  commit: %s\n", commit)
			fmt.Fprintf(out, "  built:  %s\n", date)
		},
	}
}

// loadConfig reads the -c file, or the defaults plus a .env in the working
// directory when no file is given.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path != "" {
		cfg, err := config.Load(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		return cfg, nil
	}

	if err := config.LoadDotEnv(".env"); err != nil {
		return nil, err
	}
	return config.Default(), nil
}

// app is what every backend-facing command needs.
type app struct {
	cfg    *config.Config
	client *cryptolab.Client
	store  session.Store
	logger *slog.Logger
	out    io.Writer
	errOut io.Writer

	closeStore func() error
}

// newApp loads config and builds the logger, session store and client.
// Callers must call close.
func newApp(ctx context.Context, cmd *cobra.Command) (*app, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	logger := config.NewLogger(cmd.ErrOrStderr(), cfg.Log)

	store, closeStore, err := config.BuildSessionStore(ctx, cfg.Session)
	if err != nil {
		return nil, fmt.Errorf("failed to open session store: %w", err)
	}

	client, err := cryptolab.New(config.ClientOptions(cfg, store, logger)...)
	if err != nil {
		_ = closeStore()
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	return &app{
		cfg:        cfg,
		client:     client,
		store:      store,
		logger:     logger,
		out:        cmd.OutOrStdout(),
		errOut:     cmd.ErrOrStderr(),
		closeStore: closeStore,
	}, nil
}

func (a *app) close() {
	a.client.Close()
	if err := a.closeStore(); err != nil {
		a.logger.Warn("failed to close session store", "error", err)
	}
}

// withApp runs fn with a fully built app and releases it afterwards.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := newApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.close()

	return fn(ctx, a)
}
