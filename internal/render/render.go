// Package render formats job results as plain text for the CLI.
package render

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/jpalmerr/cryptolab"
	"github.com/jpalmerr/cryptolab/features"
)

// barWidth is the width of the widest attribution bar.
const barWidth = 20

const chartTimeLayout = "2006-01-02 15:04"

// Band is a coarse bucket for a 0-100 metric score.
type Band string

const (
	BandVeryLow  Band = "very low"
	BandLow      Band = "low"
	BandModerate Band = "moderate"
	BandHigh     Band = "high"
	BandVeryHigh Band = "very high"
)

// ScoreBand buckets score into fifths of the 0-100 range. Out-of-range
// scores are clamped.
func ScoreBand(score float64) Band {
	switch s := clamp(score, 0, 100); {
	case s < 20:
		return BandVeryLow
	case s < 40:
		return BandLow
	case s < 60:
		return BandModerate
	case s < 80:
		return BandHigh
	default:
		return BandVeryHigh
	}
}

type rgb struct{ r, g, b float64 }

var (
	heatLow  = rgb{34, 197, 94} // green
	heatMid  = rgb{234, 179, 8} // yellow
	heatHigh = rgb{239, 68, 68} // red
)

// HeatColor returns a #rrggbb color for score, interpolated linearly from
// green at 0 through yellow at 50 to red at 100.
func HeatColor(score float64) string {
	s := clamp(score, 0, 100) / 100

	var c rgb
	if s <= 0.5 {
		c = lerp(heatLow, heatMid, s*2)
	} else {
		c = lerp(heatMid, heatHigh, (s-0.5)*2)
	}
	return fmt.Sprintf("#%02x%02x%02x", int(math.Round(c.r)), int(math.Round(c.g)), int(math.Round(c.b)))
}

// Colorize wraps s in a 24-bit ANSI foreground escape for hex ("#rrggbb").
// Malformed colors return s unchanged.
func Colorize(s, hex string) string {
	var r, g, b int
	if _, err := fmt.Sscanf(hex, "#%2x%2x%2x", &r, &g, &b); err != nil {
		return s
	}
	return fmt.Sprintf("\x1b[38;2;%d;%d;%dm%s\x1b[0m", r, g, b, s)
}

func lerp(a, b rgb, t float64) rgb {
	return rgb{
		r: a.r + (b.r-a.r)*t,
		g: a.g + (b.g-a.g)*t,
		b: a.b + (b.b-a.b)*t,
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// PercentileLabel describes where a prediction percentile sits: "top 12.5%"
// at or above the median, "bottom 20%" below it.
func PercentileLabel(p float64) string {
	p = clamp(p, 0, 100)
	if p >= 50 {
		return "top " + trimFloat(100-p) + "%"
	}
	return "bottom " + trimFloat(p) + "%"
}

// trimFloat formats v with at most one decimal and no trailing ".0".
func trimFloat(v float64) string {
	return strings.TrimSuffix(fmt.Sprintf("%.1f", v), ".0")
}

// StatusLine is the one-line progress message for a task snapshot.
func StatusLine(kind string, status cryptolab.Status) string {
	switch status {
	case cryptolab.StatusPending:
		return kind + ": queued"
	case cryptolab.StatusStarted:
		return kind + ": running"
	case cryptolab.StatusSuccess:
		return kind + ": done"
	case cryptolab.StatusFailure:
		return kind + ": failed"
	}
	return kind + ": " + strings.ToLower(status.String())
}

// ModelExplanation writes the summary, attributions and reference charts of
// a model explanation.
func ModelExplanation(w io.Writer, m cryptolab.ModelExplanation, d *features.Dictionary) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintf(tw, "Prediction\t%.2f (%s)\n", m.PredictionPercentile, PercentileLabel(m.PredictionPercentile))
	if m.Recommendation != "" {
		fmt.Fprintf(tw, "Recommendation\t%s\n", m.Recommendation)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if m.ExplanationText != "" {
		fmt.Fprintf(w, "\n%s\n", strings.TrimSpace(m.ExplanationText))
	}

	if len(m.ShapValues) > 0 {
		fmt.Fprintln(w, "\nAttributions:")
		if err := Attributions(w, m.ShapValues, d); err != nil {
			return err
		}
	}

	if len(m.ReferenceCharts) > 0 {
		fmt.Fprintln(w, "\nReference charts:")
		tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		for i, rc := range m.ReferenceCharts {
			fmt.Fprintf(tw, "  %d.\t%s\tsimilarity %.3f\n", i+1, rc.Timestamp.Format(chartTimeLayout), rc.Similarity)
		}
		return tw.Flush()
	}
	return nil
}

// Attributions writes one row per feature, largest absolute value first,
// with a bar scaled to the largest value.
func Attributions(w io.Writer, shap map[string]float64, d *features.Dictionary) error {
	keys := make([]string, 0, len(shap))
	maxAbs := 1e-9
	for k, v := range shap {
		keys = append(keys, k)
		maxAbs = math.Max(maxAbs, math.Abs(v))
	}
	sort.Slice(keys, func(i, j int) bool {
		ai, aj := math.Abs(shap[keys[i]]), math.Abs(shap[keys[j]])
		if ai != aj {
			return ai > aj
		}
		return keys[i] < keys[j]
	})

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, k := range keys {
		v := shap[k]
		bar := strings.Repeat("#", int(math.Round(math.Abs(v)/maxAbs*barWidth)))
		sign := "+"
		if v < 0 {
			sign = "-"
		}
		fmt.Fprintf(tw, "  %s\t%+.6f\t%s%s\n", d.Resolve(k, features.Model).Name, v, sign, bar)
	}
	return tw.Flush()
}

// ChartExplanation writes the indicator values and the similar charts found.
func ChartExplanation(w io.Writer, c cryptolab.ChartExplanation, d *features.Dictionary) error {
	if len(c.FeatureValues) > 0 {
		fmt.Fprintln(w, "Indicators:")
		if err := FeatureValues(w, c.FeatureValues, features.Chart, d); err != nil {
			return err
		}
	}

	if c.ExplanationText != "" {
		fmt.Fprintf(w, "\n%s\n", strings.TrimSpace(c.ExplanationText))
	}

	fmt.Fprintln(w, "\nMost similar past charts:")
	if len(c.SimilarCharts) == 0 {
		fmt.Fprintln(w, "  none")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for i, sc := range c.SimilarCharts {
		fmt.Fprintf(tw, "  %d.\t%s\tdistance %.3f\n", i+1, sc.Timestamp.Format(chartTimeLayout), sc.Distance)
	}
	return tw.Flush()
}

// FeatureValues writes resolved feature names and values sorted by name.
func FeatureValues(w io.Writer, values map[string]float64, ns features.Namespace, d *features.Dictionary) error {
	type row struct {
		name  string
		value float64
	}
	rows := make([]row, 0, len(values))
	for k, v := range values {
		rows = append(rows, row{name: d.Resolve(k, ns).Name, value: v})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].name < rows[j].name })

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, r := range rows {
		fmt.Fprintf(tw, "  %s\t%.2f\n", r.name, r.value)
	}
	return tw.Flush()
}

// Score writes one row per metric in the fixed metric order, followed by any
// extra metrics the backend returned. color adds ANSI heat colors.
func Score(w io.Writer, s cryptolab.ChartScore, color bool) error {
	names := append([]string(nil), cryptolab.ScoreMetrics...)
	var extra []string
	known := make(map[string]bool, len(names))
	for _, n := range names {
		known[n] = true
	}
	for n := range s {
		if !known[n] {
			extra = append(extra, n)
		}
	}
	sort.Strings(extra)
	names = append(names, extra...)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, n := range names {
		m, ok := s.Metric(n)
		if !ok {
			continue
		}
		score := fmt.Sprintf("%5.1f", m.Score)
		if color {
			score = Colorize(score, HeatColor(m.Score))
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", n, score, ScoreBand(m.Score), m.Explanation)
	}
	return tw.Flush()
}

// sweepHeaders abbreviates [cryptolab.ScoreMetrics] for the sweep table.
var sweepHeaders = []string{"VOL", "OVX", "DIR", "BRK", "A/D"}

// Sweep writes one row per sweep combination in the order given. Failed
// combinations show their error in place of scores.
func Sweep(w io.Writer, results []cryptolab.SweepResult) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "COIN\tTF\tSTATUS\t%s\n", strings.Join(sweepHeaders, "\t"))

	for _, r := range results {
		fmt.Fprintf(tw, "%s\t%dm\t", r.CoinSymbol, r.Timeframe)
		if r.Err != nil || r.Task.Results == nil {
			msg := "no result"
			if r.Err != nil {
				msg = r.Err.Error()
			}
			fmt.Fprintf(tw, "error: %s\n", msg)
			continue
		}

		cells := make([]string, len(cryptolab.ScoreMetrics))
		for i, n := range cryptolab.ScoreMetrics {
			cells[i] = "-"
			if m, ok := r.Task.Results.Metric(n); ok {
				cells[i] = fmt.Sprintf("%.1f", m.Score)
			}
		}
		fmt.Fprintf(tw, "%s\t%s\n", r.Task.Status, strings.Join(cells, "\t"))
	}
	return tw.Flush()
}

// Models writes each model with its saved parameter sets.
func Models(w io.Writer, models cryptolab.ModelCatalog) error {
	if len(models) == 0 {
		fmt.Fprintln(w, "No models available")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, name := range models.Names() {
		fmt.Fprintf(tw, "%s\t%s\n", name, strings.Join(models[name], ", "))
	}
	return tw.Flush()
}

// ModelInfo writes a model's hyperparameters sorted by name.
func ModelInfo(w io.Writer, info cryptolab.ModelInfo) error {
	fmt.Fprintln(w, info.ModelName)
	if info.ModelType != "" {
		fmt.Fprintf(w, "  Type: %s\n", info.ModelType)
	}
	if len(info.HyperparamSchema) == 0 {
		fmt.Fprintln(w, "  No hyperparameters")
		return nil
	}

	names := make([]string, 0, len(info.HyperparamSchema))
	for n := range info.HyperparamSchema {
		names = append(names, n)
	}
	sort.Strings(names)

	fmt.Fprintln(w, "\nHyperparameters:")
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, n := range names {
		p := info.HyperparamSchema[n]
		typ := p.Type
		if typ == "" {
			typ = "-"
		}
		fmt.Fprintf(tw, "  %s\t%s\tdefault %v", n, typ, p.Default)
		if len(p.Options) > 0 {
			fmt.Fprintf(tw, "\toptions %v", p.Options)
		}
		fmt.Fprintln(tw)
	}
	return tw.Flush()
}

// Backtest writes the summary of a finished backtest.
func Backtest(w io.Writer, req cryptolab.BacktestRequest, res cryptolab.BacktestResult) error {
	fmt.Fprintf(w, "%s (%s) on %s, %s to %s\n", req.ModelName, req.ParamName, req.CoinSymbol,
		req.Start.Format(time.DateOnly), req.End.Format(time.DateOnly))

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "  Total return\t%+.2f%%\n", res.TotalReturn*100)
	fmt.Fprintf(tw, "  Win rate\t%.1f%%\n", res.WinRate*100)
	fmt.Fprintf(tw, "  Trades\t%d\n", res.TradeCount)
	return tw.Flush()
}
