package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/cryptolab/config"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate a config file",
		Long: `Validate a cryptolab configuration file without contacting the backend.

This command parses the YAML, expands environment variables, and validates
all fields. It's useful for CI/CD pipelines or pre-deployment checks.

Exit codes:
  0 - Config is valid
  1 - Config is invalid (error details printed to stderr)

Example:
  cryptolab validate -c config.yaml
  cryptolab validate --config /etc/cryptolab/config.yaml`,
		RunE: runValidate,
	}
}

func runValidate(cmd *cobra.Command, args []string) error {
	configFile, _ := cmd.Flags().GetString("config")
	if configFile == "" {
		return errors.New(`required flag(s) "config" not set`)
	}

	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	session := cfg.Session.Backend
	switch cfg.Session.Backend {
	case config.BackendFile:
		if cfg.Session.Path != "" {
			session += " (" + cfg.Session.Path + ")"
		}
	case config.BackendRedis:
		session += " (" + cfg.Session.Redis.Addr + ")"
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Config is valid!\n")
	fmt.Fprintf(out, "  Backend:       %s\n", cfg.BaseURL)
	fmt.Fprintf(out, "  Poll interval: %s\n", cfg.PollInterval.Duration())
	fmt.Fprintf(out, "  Session:       %s\n", session)
	fmt.Fprintf(out, "  Server port:   %d\n", cfg.Server.Port)
	fmt.Fprintf(out, "  Sweep:         %d workers, timeframes %v, history window %d\n",
		cfg.Sweep.Concurrency, cfg.Sweep.Timeframes, cfg.Sweep.HistoryWindow)

	return nil
}
