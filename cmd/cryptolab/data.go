package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/cryptolab"
	"github.com/jpalmerr/cryptolab/features"
)

func newCoinsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "coins",
		Short: "List coins the backend has data for",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				coins, err := a.client.ListCoins(ctx)
				if err != nil {
					return err
				}
				for _, c := range coins {
					fmt.Fprintln(a.out, c)
				}
				return nil
			})
		},
	}
}

func newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info SYMBOL",
		Short: "Show the data window for a coin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				info, err := a.client.CoinInfo(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(a.out, info.CoinSymbol)
				fmt.Fprintf(a.out, "  Available from: %s\n", info.AvailableStart.Format(time.DateOnly))
				fmt.Fprintf(a.out, "  Available to:   %s\n", info.AvailableEnd.Format(time.DateOnly))
				return nil
			})
		},
	}
}

func newWatchlistCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watchlist",
		Short: "Show the watchlist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				symbols, err := a.client.Watchlist(ctx)
				if err != nil {
					return loginHint(err)
				}
				if len(symbols) == 0 {
					fmt.Fprintln(a.out, "Watchlist is empty")
					return nil
				}
				fmt.Fprintln(a.out, strings.Join(symbols, " "))
				return nil
			})
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "set SYMBOL...",
		Short: fmt.Sprintf("Replace the watchlist with exactly %d symbols", cryptolab.WatchlistSize),
		Args:  cobra.ExactArgs(cryptolab.WatchlistSize),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				symbols, err := a.client.SetWatchlist(ctx, args)
				if err != nil {
					return loginHint(err)
				}
				fmt.Fprintf(a.out, "Watchlist: %s\n", strings.Join(symbols, " "))
				return nil
			})
		},
	})
	return cmd
}

func newFeatureCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "feature NAMESPACE KEY",
		Short: "Look up the label of a feature key",
		Long: `Look up the human-readable label of a feature key.

NAMESPACE is "model" or "chart". Unknown keys resolve to themselves.

Example:
  cryptolab feature model price_pct_change_24h
  cryptolab feature chart ema_20 --json`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ns, err := features.ParseNamespace(args[0])
			if err != nil {
				return err
			}
			label := features.Resolve(args[1], ns)

			out := cmd.OutOrStdout()
			if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(label)
			}
			fmt.Fprintln(out, label.Name)
			fmt.Fprintf(out, "  %s\n", label.Description)
			return nil
		},
	}
	cmd.Flags().Bool("json", false, "print the label as JSON")
	return cmd
}
