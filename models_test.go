package cryptolab

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestClient_ListModels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/models/list" {
			t.Errorf("request = %s %s, want GET /models/list", r.Method, r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"all_param_names":{"RandomStrategy":["default"],"LightGBMStrategy":["v1","v2"]}}`))
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv)
	models, err := c.ListModels(context.Background())
	if err != nil {
		t.Fatalf("ListModels() error = %v", err)
	}

	if got, want := models.Names(), []string{"LightGBMStrategy", "RandomStrategy"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Names() = %v, want %v", got, want)
	}
	if got := models["LightGBMStrategy"]; !reflect.DeepEqual(got, []string{"v1", "v2"}) {
		t.Errorf("LightGBMStrategy params = %v", got)
	}
}

func TestClient_ModelInfo(t *testing.T) {
	var sent map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&sent)
		if sent["model_name"] == "missing" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"detail":"model 'missing' not found"}`))
			return
		}
		_, _ = w.Write([]byte(`{"model_name":"RandomStrategy","model_type":"rule_based",
			"hyperparam_schema":{"buy_prob":{"default":0.3,"options":[0.1,0.3,0.5]}}}`))
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv)
	info, err := c.ModelInfo(context.Background(), " RandomStrategy ")
	if err != nil {
		t.Fatalf("ModelInfo() error = %v", err)
	}
	if sent["model_name"] != "RandomStrategy" {
		t.Errorf("sent model_name = %q", sent["model_name"])
	}
	p, ok := info.HyperparamSchema["buy_prob"]
	if !ok || p.Default != 0.3 || len(p.Options) != 3 {
		t.Errorf("buy_prob = %+v", p)
	}
	if info.ModelType != "rule_based" {
		t.Errorf("ModelType = %q", info.ModelType)
	}

	_, err = c.ModelInfo(context.Background(), "missing")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusNotFound {
		t.Fatalf("ModelInfo(missing) error = %v, want 404 APIError", err)
	}
	if !strings.Contains(apiErr.Message, "not found") {
		t.Errorf("Message = %q", apiErr.Message)
	}
}

func TestNewBacktestRequest(t *testing.T) {
	start := time.Date(2023, 1, 1, 15, 30, 0, 0, time.UTC)
	end := time.Date(2023, 6, 30, 9, 0, 0, 0, time.UTC)
	req := NewBacktestRequest(" RandomStrategy ", "default", "eth", start, end)

	if req.CoinSymbol != "ETH" || req.ModelName != "RandomStrategy" || req.Timeframe != DefaultTimeframe {
		t.Errorf("request = %+v", req)
	}
	if !req.Start.Equal(time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Start = %v, want start of day", req.Start)
	}
	if err := req.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestBacktestRequest_Validate(t *testing.T) {
	day := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	valid := NewBacktestRequest("m", "p", "BTC", day, day.AddDate(0, 1, 0))

	tests := []struct {
		name   string
		mutate func(*BacktestRequest)
	}{
		{"no model", func(r *BacktestRequest) { r.ModelName = "" }},
		{"no param set", func(r *BacktestRequest) { r.ParamName = "" }},
		{"no coin", func(r *BacktestRequest) { r.CoinSymbol = " " }},
		{"zero timeframe", func(r *BacktestRequest) { r.Timeframe = 0 }},
		{"missing end", func(r *BacktestRequest) { r.End = Timestamp{} }},
		{"empty range", func(r *BacktestRequest) { r.End = r.Start }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid
			tt.mutate(&req)
			if err := req.Validate(); err == nil {
				t.Error("Validate() expected error, got nil")
			}
		})
	}
}

func TestBacktestJob_Result(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			_, _ = w.Write([]byte(`{"task_id":"bt-1"}`))
			return
		}
		_, _ = w.Write([]byte(`{"task_id":"bt-1","status":"SUCCESS","results":{"total_return":0.12,"win_rate":0.55,"trade_count":40}}`))
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv)
	day := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	id, err := Submit(context.Background(), c, BacktestJob, NewBacktestRequest("m", "p", "BTC", day, day.AddDate(0, 1, 0)))
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	task, err := Watch(ctx, c, BacktestJob, id, nil).Wait(ctx)
	if err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if task.Results == nil || task.Results.TradeCount != 40 || task.Results.WinRate != 0.55 {
		t.Errorf("Results = %+v", task.Results)
	}
}
