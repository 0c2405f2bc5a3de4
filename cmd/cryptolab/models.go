package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/cryptolab"
	"github.com/jpalmerr/cryptolab/internal/render"
)

func newModelsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "models",
		Short: "List backtestable models and their parameter sets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				models, err := a.client.ListModels(ctx)
				if err != nil {
					return err
				}
				return render.Models(a.out, models)
			})
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "info MODEL",
		Short: "Show a model's hyperparameters",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				info, err := a.client.ModelInfo(ctx, args[0])
				if err != nil {
					return err
				}
				return render.ModelInfo(a.out, info)
			})
		},
	})
	return cmd
}

func newBacktestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backtest MODEL PARAM_SET SYMBOL",
		Short: "Backtest a saved model over past candles",
		Long: `Replay a model with one of its saved parameter sets over a coin's
history and report return, win rate and trade count.

Run "cryptolab models" to see the available models and parameter sets.

Example:
  cryptolab backtest RandomStrategy default BTC --from 2023-01-01 --to 2023-06-30`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			from, err := dayFlag(cmd, "from")
			if err != nil {
				return err
			}
			to, err := dayFlag(cmd, "to")
			if err != nil {
				return err
			}

			req := cryptolab.NewBacktestRequest(args[0], args[1], args[2], from, to)
			if tf, _ := cmd.Flags().GetInt("timeframe"); tf > 0 {
				req.Timeframe = tf
			}
			if err := req.Validate(); err != nil {
				return err
			}

			return withApp(cmd, func(ctx context.Context, a *app) error {
				res, err := runTracked(ctx, a, cryptolab.BacktestJob, "backtest", req)
				if err != nil {
					return err
				}
				return render.Backtest(a.out, req, res)
			})
		},
	}
	cmd.Flags().String("from", "", "first day, YYYY-MM-DD (required)")
	cmd.Flags().String("to", "", "last day, YYYY-MM-DD (required)")
	cmd.Flags().Int("timeframe", cryptolab.DefaultTimeframe, "candle size in minutes")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func dayFlag(cmd *cobra.Command, name string) (time.Time, error) {
	raw, _ := cmd.Flags().GetString(name)
	d, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --%s %q: want YYYY-MM-DD", name, raw)
	}
	return d, nil
}
