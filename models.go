package cryptolab

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"
)

// ModelCatalog maps each trading model to the names of its saved parameter
// sets.
type ModelCatalog map[string][]string

// Names returns the model names sorted.
func (m ModelCatalog) Names() []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HyperParam describes one tunable hyperparameter of a model.
type HyperParam struct {
	Default     any    `json:"default"`
	Type        string `json:"type,omitempty"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Options     []any  `json:"options,omitempty"`
}

// ModelInfo is a model's type and hyperparameter schema.
type ModelInfo struct {
	ModelName        string                `json:"model_name"`
	ModelType        string                `json:"model_type,omitempty"`
	HyperparamSchema map[string]HyperParam `json:"hyperparam_schema"`
}

// ListModels returns every model the backend can backtest with its saved
// parameter sets. It needs no login.
func (c *Client) ListModels(ctx context.Context) (ModelCatalog, error) {
	var out struct {
		Models ModelCatalog `json:"all_param_names"`
	}
	if err := c.getJSON(ctx, call{op: "list_models", method: http.MethodGet, path: "/models/list"}, &out); err != nil {
		return nil, err
	}
	if out.Models == nil {
		return ModelCatalog{}, nil
	}
	return out.Models, nil
}

// ModelInfo returns the hyperparameter schema of name. An unknown model
// yields an [*APIError] with status 404.
func (c *Client) ModelInfo(ctx context.Context, name string) (ModelInfo, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return ModelInfo{}, errors.New("model name cannot be empty")
	}

	var out ModelInfo
	err := c.getJSON(ctx, call{
		op:     "model_info",
		method: http.MethodPost,
		path:   "/models/info",
		body:   map[string]string{"model_name": name},
	}, &out)
	return out, err
}

// BacktestRequest is the body of a backtest submission: replay a model with
// one of its saved parameter sets over a coin's candles between Start and
// End.
type BacktestRequest struct {
	ModelName  string    `json:"model_name"`
	ParamName  string    `json:"param_name"`
	CoinSymbol string    `json:"coin_symbol"`
	Timeframe  int       `json:"timeframe"`
	Start      Timestamp `json:"start"`
	End        Timestamp `json:"end"`
}

// NewBacktestRequest builds a backtest over whole days from start through
// end, at [DefaultTimeframe].
func NewBacktestRequest(model, param, symbol string, start, end time.Time) BacktestRequest {
	return BacktestRequest{
		ModelName:  strings.TrimSpace(model),
		ParamName:  strings.TrimSpace(param),
		CoinSymbol: strings.ToUpper(strings.TrimSpace(symbol)),
		Timeframe:  DefaultTimeframe,
		Start:      Timestamp{StartOfDay(start)},
		End:        Timestamp{StartOfDay(end)},
	}
}

// Validate checks the request before it is sent.
func (r BacktestRequest) Validate() error {
	switch {
	case r.ModelName == "":
		return errors.New("model name cannot be empty")
	case r.ParamName == "":
		return errors.New("parameter set cannot be empty")
	case strings.TrimSpace(r.CoinSymbol) == "":
		return errors.New("coin symbol cannot be empty")
	case r.Timeframe <= 0:
		return fmt.Errorf("timeframe must be positive, got %d", r.Timeframe)
	case r.Start.IsZero() || r.End.IsZero():
		return errors.New("start and end are required")
	case !r.End.After(r.Start.Time):
		return errors.New("end must be after start")
	}
	return nil
}

// BacktestResult summarizes a finished backtest. TotalReturn is the
// cumulative log return; WinRate is the fraction of closed trades that won.
type BacktestResult struct {
	TotalReturn float64 `json:"total_return"`
	WinRate     float64 `json:"win_rate"`
	TradeCount  int     `json:"trade_count"`
}
