package main

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/cryptolab"
	"github.com/jpalmerr/cryptolab/config"
	"github.com/jpalmerr/cryptolab/features"
	"github.com/jpalmerr/cryptolab/internal/render"
)

func addDateFlag(cmd *cobra.Command) {
	cmd.Flags().String("date", "", "day to analyse, YYYY-MM-DD (default today, UTC)")
}

// dateFromFlag parses --date. An empty value means today.
func dateFromFlag(cmd *cobra.Command) (time.Time, error) {
	raw, _ := cmd.Flags().GetString("date")
	if raw == "" {
		return cryptolab.StartOfDay(time.Now()), nil
	}
	d, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --date %q: want YYYY-MM-DD", raw)
	}
	return d, nil
}

// useColor reports whether score output should carry ANSI colors.
func useColor(cmd *cobra.Command) bool {
	noColor, _ := cmd.Flags().GetBool("no-color")
	return !noColor && os.Getenv("NO_COLOR") == ""
}

// runTracked submits req, prints a progress line per poll to stderr, and
// returns the results once the job succeeds.
func runTracked[Req, R any](ctx context.Context, a *app, kind cryptolab.JobKind[Req, R], label string, req Req) (R, error) {
	var zero R

	t := cryptolab.NewTracker(a.client, kind, func(u cryptolab.Update[R]) {
		if u.Err == nil {
			fmt.Fprintln(a.errOut, render.StatusLine(label, u.Task.Status))
		}
	})
	defer t.Stop()

	if _, err := t.Submit(ctx, req); err != nil {
		return zero, loginHint(err)
	}
	task, err := t.Wait(ctx)
	if err != nil {
		return zero, loginHint(err)
	}
	if task.Results == nil {
		return zero, fmt.Errorf("%s finished without results", label)
	}
	return *task.Results, nil
}

func newExplainCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "explain",
		Short: "Explain a model prediction or find similar charts",
	}

	model := &cobra.Command{
		Use:   "model SYMBOL",
		Short: "Explain the model's prediction for a coin",
		Long: `Explain the model's prediction for the last complete hour before the
selected day starts.

Example:
  cryptolab explain model BTC --date 2024-03-10`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			day, err := dateFromFlag(cmd)
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app) error {
				res, err := runTracked(ctx, a, cryptolab.ModelExplanationJob, "model explanation",
					cryptolab.NewModelRequest(args[0], day))
				if err != nil {
					return err
				}
				return render.ModelExplanation(a.out, res, features.Default)
			})
		},
	}
	addDateFlag(model)

	chart := &cobra.Command{
		Use:   "chart SYMBOL",
		Short: "Find past charts similar to the selected day",
		Long: `Search the coin's full history for charts similar to the selected day.
Dates outside the coin's data window are moved to its nearest edge.

Example:
  cryptolab explain chart ETH --date 2024-03-10`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			day, err := dateFromFlag(cmd)
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app) error {
				info, err := a.client.CoinInfo(ctx, args[0])
				if err != nil {
					return err
				}
				if clamped := cryptolab.ClampDate(day, info); !clamped.Equal(day) {
					a.logger.Info("date outside available data, clamped",
						"requested", day.Format(time.DateOnly),
						"using", clamped.Format(time.DateOnly),
					)
					day = clamped
				}

				res, err := runTracked(ctx, a, cryptolab.ChartExplanationJob, "chart search",
					cryptolab.NewChartRequest(args[0], day, info))
				if err != nil {
					return err
				}
				return render.ChartExplanation(a.out, res, features.Default)
			})
		},
	}
	addDateFlag(chart)

	cmd.AddCommand(model, chart)
	return cmd
}

func newScoreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "score SYMBOL",
		Short: "Score a coin's chart",
		Long: `Score a coin's chart on volatility risk, overextension, directionality,
breakout strength and accumulation/distribution.

Example:
  cryptolab score SOL --date 2024-03-10 --timeframe 240 --history-window 96`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			day, err := dateFromFlag(cmd)
			if err != nil {
				return err
			}
			timeframe, _ := cmd.Flags().GetInt("timeframe")
			window, _ := cmd.Flags().GetInt("history-window")

			return withApp(cmd, func(ctx context.Context, a *app) error {
				res, err := runTracked(ctx, a, cryptolab.ChartScoreJob, "chart score",
					cryptolab.NewScoreRequest(args[0], day, timeframe, window))
				if err != nil {
					return err
				}
				return render.Score(a.out, res, useColor(cmd))
			})
		},
	}
	addDateFlag(cmd)
	cmd.Flags().Int("timeframe", cryptolab.DefaultTimeframe, "candle size in minutes")
	cmd.Flags().Int("history-window", cryptolab.DefaultHistoryWindow, "candles to look back")
	cmd.Flags().Bool("no-color", false, "disable colored scores")
	return cmd
}

func newSweepCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Score many coins and timeframes at once",
		Long: `Score every combination of coin and timeframe for one day.

Coins default to your watchlist; timeframes, history window and concurrency
default to the sweep section of the config.

Example:
  cryptolab sweep --date 2024-03-10
  cryptolab sweep --coins BTC,ETH --timeframes 60,240,1440`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			day, err := dateFromFlag(cmd)
			if err != nil {
				return err
			}

			return withApp(cmd, func(ctx context.Context, a *app) error {
				opts := config.SweepOptions(a.cfg.Sweep)
				if coins, _ := cmd.Flags().GetStringSlice("coins"); len(coins) > 0 {
					opts = append(opts, cryptolab.WithSweepCoins(coins...))
				}
				if tfs, _ := cmd.Flags().GetIntSlice("timeframes"); len(tfs) > 0 {
					opts = append(opts, cryptolab.WithSweepTimeframes(tfs...))
				}
				if n, _ := cmd.Flags().GetInt("history-window"); n > 0 {
					opts = append(opts, cryptolab.WithSweepHistoryWindow(n))
				}
				if n, _ := cmd.Flags().GetInt("concurrency"); n > 0 {
					opts = append(opts, cryptolab.WithSweepConcurrency(n))
				}
				var mu sync.Mutex
				opts = append(opts, cryptolab.WithSweepCallback(func(r cryptolab.SweepResult) {
					mu.Lock()
					defer mu.Unlock()
					fmt.Fprintf(a.errOut, "%s %dm: %s\n", r.CoinSymbol, r.Timeframe, r.Task.Status)
				}))

				results, err := cryptolab.Sweep(ctx, a.client, day, opts...)
				if err != nil {
					return loginHint(err)
				}
				return render.Sweep(a.out, results)
			})
		},
	}
	addDateFlag(cmd)
	cmd.Flags().StringSlice("coins", nil, "coins to score (default: watchlist)")
	cmd.Flags().IntSlice("timeframes", nil, "timeframes in minutes (default: config)")
	cmd.Flags().Int("history-window", 0, "candles to look back (default: config)")
	cmd.Flags().Int("concurrency", 0, "parallel jobs (default: config)")
	return cmd
}
