package mockbackend

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"math"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const (
	kindModel    = "model"
	kindChart    = "chart"
	kindScore    = "score"
	kindBacktest = "backtest"
)

var submitPaths = map[string]string{
	kindModel:    "/explain/model/",
	kindChart:    "/explain/chart/",
	kindScore:    "/score-chart/",
	kindBacktest: "/backtest/",
}

func withAccount(ctx context.Context, a *account) context.Context {
	return context.WithValue(ctx, ctxKey{}, a)
}

func accountFrom(ctx context.Context) *account {
	a, _ := ctx.Value(ctxKey{}).(*account)
	return a
}

// jobRequest is the union of the submission bodies.
type jobRequest struct {
	CoinSymbol    string  `json:"coin_symbol"`
	Timeframe     int     `json:"timeframe"`
	InferenceTime string  `json:"inference_time"`
	Start         *string `json:"start"`
	End           *string `json:"end"`
	HistoryWindow *int    `json:"history_window"`
	ModelName     string  `json:"model_name"`
	ParamName     string  `json:"param_name"`
}

func (b *Backend) handleSubmit(kind string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in jobRequest
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			writeValidation(w, "body", "invalid JSON body")
			return
		}
		if in.Timeframe <= 0 {
			writeValidation(w, "timeframe", "Input should be greater than 0")
			return
		}
		if kind != kindBacktest {
			if _, err := time.Parse(time.RFC3339Nano, in.InferenceTime); err != nil {
				writeValidation(w, "inference_time", "Input should be a valid datetime")
				return
			}
		}
		switch kind {
		case kindBacktest:
			if in.Start == nil || in.End == nil {
				writeValidation(w, "start", "Field required")
				return
			}
			model, ok := Models[in.ModelName]
			if !ok {
				writeDetail(w, http.StatusNotFound, fmt.Sprintf("model '%s' not found", in.ModelName))
				return
			}
			if !slices.Contains(model.ParamSets, in.ParamName) {
				writeDetail(w, http.StatusNotFound, fmt.Sprintf("parameter set '%s' not found for %s", in.ParamName, in.ModelName))
				return
			}
		case kindChart:
			if in.Start == nil || in.End == nil {
				writeValidation(w, "start", "Field required")
				return
			}
		case kindScore:
			if in.HistoryWindow == nil || *in.HistoryWindow < 24 {
				writeValidation(w, "history_window", "Input should be greater than or equal to 24")
				return
			}
		}

		coin, ok := b.coin(in.CoinSymbol)
		if !ok {
			writeDetail(w, http.StatusNotFound, fmt.Sprintf("Coin %s not found", in.CoinSymbol))
			return
		}

		id := uuid.NewString()
		b.mu.Lock()
		b.jobs[id] = &job{kind: kind, coin: coin.Symbol, owner: accountFrom(r.Context()).id}
		b.mu.Unlock()

		b.logger.Info("job accepted", "kind", kind, "coin", coin.Symbol, "task_id", id)
		writeJSON(w, http.StatusAccepted, map[string]string{"task_id": id})
	}
}

func (b *Backend) handleStatus(kind string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		owner := accountFrom(r.Context()).id

		b.mu.Lock()
		j, ok := b.jobs[id]
		if ok && (j.kind != kind || j.owner != owner) {
			ok = false
		}
		var polls int
		if ok {
			j.polls++
			polls = j.polls
		}
		steps := b.steps
		b.mu.Unlock()

		if !ok {
			writeDetail(w, http.StatusNotFound, "Task not found")
			return
		}

		resp := map[string]any{"task_id": id}
		switch {
		case polls == 1 && steps > 1:
			resp["status"] = "PENDING"
		case polls < steps:
			resp["status"] = "STARTED"
		case j.coin == FailingCoin:
			resp["status"] = "FAILURE"
			resp["results"] = nil
		default:
			resp["status"] = "SUCCESS"
			resp["results"] = results(kind, j.coin, id)
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// seeded returns a value in [0, 1) derived from parts.
func seeded(parts ...string) float64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(strings.Join(parts, "|")))
	return float64(h.Sum64()%10000) / 10000
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

func results(kind, coin, id string) any {
	switch kind {
	case kindModel:
		return modelResults(coin, id)
	case kindChart:
		return chartResults(coin, id)
	case kindBacktest:
		return backtestResults(coin, id)
	default:
		return scoreResults(coin, id)
	}
}

var modelFeatures = []string{
	"price_pct_change_24h",
	"trade_value_pct_change_6h",
	"rsi",
	"adx",
	"trade_value_z_score",
	"rel_dist_to_bb_upper",
	"body_frac_12",
	"hour",
}

func modelResults(coin, id string) map[string]any {
	shap := make(map[string]float64, len(modelFeatures))
	values := make(map[string]float64, len(modelFeatures))
	for _, f := range modelFeatures {
		shap[f] = round(seeded(coin, id, f, "shap")*0.2-0.1, 6)
		values[f] = round(seeded(coin, id, f)*100, 4)
	}

	percentile := round(seeded(coin, id, "percentile")*100, 2)
	recommendation := "hold"
	switch {
	case percentile >= 70:
		recommendation = "buy"
	case percentile < 30:
		recommendation = "sell"
	}

	return map[string]any{
		"prediction_percentile": percentile,
		"recommendation":        recommendation,
		"shap_values":           shap,
		"feature_values":        values,
		"reference_charts": []map[string]any{
			{"timestamp": "2023-11-02T14:00:00", "similarity": round(0.9+seeded(coin, id, "r1")*0.1, 4)},
			{"timestamp": "2022-07-19T03:00:00", "similarity": round(0.8+seeded(coin, id, "r2")*0.1, 4)},
		},
		"explanation_text": fmt.Sprintf("%s momentum sits in the %.0fth percentile of recent history.", coin, percentile),
	}
}

var chartFeatures = []string{"rsi", "macd_diff", "ema_20", "ema_60", "atr"}

func chartResults(coin, id string) map[string]any {
	values := make(map[string]float64, len(chartFeatures))
	for _, f := range chartFeatures {
		values[f] = round(seeded(coin, id, f)*100, 4)
	}
	return map[string]any{
		"similar_charts": []map[string]any{
			{"timestamp": "2021-05-12T00:00:00", "distance": round(seeded(coin, id, "d1"), 4)},
			{"timestamp": "2020-03-12T00:00:00", "distance": round(1+seeded(coin, id, "d2"), 4)},
		},
		"feature_values":   values,
		"explanation_text": fmt.Sprintf("%s closely resembles two earlier sell-offs.", coin),
	}
}

var scoreMetrics = []string{
	"volatility_risk",
	"overextension",
	"directionality",
	"breakout_strength",
	"accumulation_distribution",
}

func scoreResults(coin, id string) map[string]any {
	out := make(map[string]any, len(scoreMetrics))
	for _, m := range scoreMetrics {
		s := round(seeded(coin, id, m)*100, 1)
		out[m] = map[string]any{
			"score":       s,
			"explanation": fmt.Sprintf("%s %s is %.1f on a 0-100 scale.", coin, strings.ReplaceAll(m, "_", " "), s),
		}
	}
	return out
}

func backtestResults(coin, id string) map[string]any {
	trades := 10 + int(seeded(coin, id, "trades")*90)
	return map[string]any{
		"total_return": round(seeded(coin, id, "return")*0.6-0.2, 4),
		"win_rate":     round(0.3+seeded(coin, id, "wins")*0.4, 4),
		"trade_count":  trades,
	}
}
