package mockbackend_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jpalmerr/cryptolab"
	"github.com/jpalmerr/cryptolab/internal/mockbackend"
	"github.com/jpalmerr/cryptolab/session"
)

var demo = cryptolab.Credentials{Email: "demo@example.com", Name: "demo", Password: "password123"}

func newClient(t *testing.T, opts ...mockbackend.Option) (*cryptolab.Client, *mockbackend.Backend) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	b := mockbackend.New(append([]mockbackend.Option{mockbackend.WithLogger(logger)}, opts...)...)
	srv := httptest.NewServer(b.Handler())
	t.Cleanup(srv.Close)

	c, err := cryptolab.New(
		cryptolab.WithBaseURL(srv.URL),
		cryptolab.WithPollInterval(10*time.Millisecond),
		cryptolab.WithLogger(logger),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c, b
}

func TestBackend_RegisterLoginMe(t *testing.T) {
	c, _ := newClient(t)
	ctx := context.Background()

	u, err := c.Register(ctx, demo)
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if u.Email != demo.Email || u.UserID == 0 {
		t.Errorf("Register() = %+v", u)
	}

	_, err = c.Register(ctx, demo)
	var subErr *cryptolab.SubmissionError
	if !errors.As(err, &subErr) || subErr.Message != "Email already registered" {
		t.Errorf("second Register() error = %v, want duplicate email rejection", err)
	}

	login, err := c.Login(ctx, demo)
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	exp, err := session.Expiry(login.AccessToken)
	if err != nil {
		t.Fatalf("Expiry() error = %v", err)
	}
	if time.Until(exp) <= 0 {
		t.Errorf("token already expired at %v", exp)
	}

	me, err := c.Me(ctx)
	if err != nil {
		t.Fatalf("Me() error = %v", err)
	}
	if me.UserID != u.UserID {
		t.Errorf("Me().UserID = %d, want %d", me.UserID, u.UserID)
	}
}

func TestBackend_LoginRejected(t *testing.T) {
	c, b := newClient(t)
	if err := b.AddUser(demo.Email, demo.Name, demo.Password); err != nil {
		t.Fatal(err)
	}

	bad := demo
	bad.Password = "wrong-password"
	_, err := c.Login(context.Background(), bad)

	var subErr *cryptolab.SubmissionError
	if !errors.As(err, &subErr) {
		t.Fatalf("Login() error = %v, want *SubmissionError", err)
	}
	if subErr.Message != "Incorrect email or password" {
		t.Errorf("Message = %q", subErr.Message)
	}
}

func TestBackend_UnauthorizedClearsToken(t *testing.T) {
	c, _ := newClient(t)
	ctx := context.Background()

	if err := c.Session().SetToken(ctx, "not-a-jwt"); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Me(ctx); !errors.Is(err, cryptolab.ErrUnauthorized) {
		t.Fatalf("Me() error = %v, want ErrUnauthorized", err)
	}
	if tok, _ := c.Session().Token(ctx); tok != "" {
		t.Errorf("token = %q after 401, want cleared", tok)
	}
}

func TestBackend_ExpiredToken(t *testing.T) {
	c, b := newClient(t, mockbackend.WithTokenTTL(-time.Minute))
	ctx := context.Background()
	if err := b.AddUser(demo.Email, demo.Name, demo.Password); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Login(ctx, demo); err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if _, err := c.Me(ctx); !errors.Is(err, cryptolab.ErrUnauthorized) {
		t.Errorf("Me() with expired token error = %v, want ErrUnauthorized", err)
	}
}

func TestBackend_CoinData(t *testing.T) {
	c, _ := newClient(t)
	ctx := context.Background()

	coins, err := c.ListCoins(ctx)
	if err != nil {
		t.Fatalf("ListCoins() error = %v", err)
	}
	if len(coins) != len(mockbackend.DefaultCoins) {
		t.Errorf("ListCoins() = %v", coins)
	}

	info, err := c.CoinInfo(ctx, "sol")
	if err != nil {
		t.Fatalf("CoinInfo() error = %v", err)
	}
	want := time.Date(2020, 8, 1, 0, 0, 0, 0, time.UTC)
	if info.CoinSymbol != "SOL" || !info.AvailableStart.Equal(want) {
		t.Errorf("CoinInfo() = %+v", info)
	}

	_, err = c.CoinInfo(ctx, "NOPE")
	var apiErr *cryptolab.APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != 404 {
		t.Errorf("CoinInfo(NOPE) error = %v, want 404 APIError", err)
	}
}

func TestBackend_Watchlist(t *testing.T) {
	c, b := newClient(t)
	ctx := context.Background()
	if err := b.AddUser(demo.Email, demo.Name, demo.Password); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Login(ctx, demo); err != nil {
		t.Fatal(err)
	}

	wl, err := c.Watchlist(ctx)
	if err != nil {
		t.Fatalf("Watchlist() error = %v", err)
	}
	if len(wl) != 0 {
		t.Errorf("fresh Watchlist() = %v, want empty", wl)
	}

	set := []string{"btc", "eth", "sol", "xrp", "ada"}
	if _, err := c.SetWatchlist(ctx, set); err != nil {
		t.Fatalf("SetWatchlist() error = %v", err)
	}
	wl, err = c.Watchlist(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(wl) != 5 || wl[0] != "BTC" {
		t.Errorf("Watchlist() = %v", wl)
	}
}

func TestBackend_JobLifecycle(t *testing.T) {
	c, b := newClient(t, mockbackend.WithSteps(3))
	ctx := context.Background()
	if err := b.AddUser(demo.Email, demo.Name, demo.Password); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Login(ctx, demo); err != nil {
		t.Fatal(err)
	}

	var seen []cryptolab.Status
	tr := cryptolab.NewTracker(c, cryptolab.ChartScoreJob, func(u cryptolab.Update[cryptolab.ChartScore]) {
		seen = append(seen, u.Task.Status)
	})
	defer tr.Stop()

	day := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	if _, err := tr.Submit(ctx, cryptolab.NewScoreRequest("BTC", day, 0, 0)); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	task, err := tr.Wait(waitCtx)
	if err != nil {
		t.Fatalf("Wait() error = %v", err)
	}

	want := []cryptolab.Status{cryptolab.StatusPending, cryptolab.StatusStarted, cryptolab.StatusSuccess}
	if len(seen) != len(want) {
		t.Fatalf("statuses = %v, want %v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("statuses[%d] = %s, want %s", i, seen[i], want[i])
		}
	}

	for _, m := range cryptolab.ScoreMetrics {
		if _, ok := task.Results.Metric(m); !ok {
			t.Errorf("result missing metric %s", m)
		}
	}
}

func TestBackend_FailingCoin(t *testing.T) {
	c, b := newClient(t, mockbackend.WithSteps(1))
	ctx := context.Background()
	if err := b.AddUser(demo.Email, demo.Name, demo.Password); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Login(ctx, demo); err != nil {
		t.Fatal(err)
	}

	day := time.Date(2022, 1, 10, 0, 0, 0, 0, time.UTC)
	id, err := cryptolab.Submit(ctx, c, cryptolab.ModelExplanationJob, cryptolab.NewModelRequest(mockbackend.FailingCoin, day))
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	s := cryptolab.Watch(ctx, c, cryptolab.ModelExplanationJob, id, nil)
	waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err = s.Wait(waitCtx)

	var failure *cryptolab.JobFailure
	if !errors.As(err, &failure) {
		t.Errorf("Wait() error = %v, want *JobFailure", err)
	}
}

func TestBackend_ChartRequestNeedsWindow(t *testing.T) {
	c, b := newClient(t)
	ctx := context.Background()
	if err := b.AddUser(demo.Email, demo.Name, demo.Password); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Login(ctx, demo); err != nil {
		t.Fatal(err)
	}

	day := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	_, err := cryptolab.Submit(ctx, c, cryptolab.ChartExplanationJob, cryptolab.NewChartRequest("DOGE", day, cryptolab.CoinInfo{}))
	if err == nil {
		t.Fatal("Submit() with empty window should fail locally")
	}
}

func TestBackend_ModelCatalog(t *testing.T) {
	c, _ := newClient(t)
	ctx := context.Background()

	models, err := c.ListModels(ctx)
	if err != nil {
		t.Fatalf("ListModels() error = %v", err)
	}
	if len(models) != len(mockbackend.Models) {
		t.Errorf("ListModels() = %v", models)
	}

	info, err := c.ModelInfo(ctx, "LightGBMStrategy")
	if err != nil {
		t.Fatalf("ModelInfo() error = %v", err)
	}
	if info.ModelType != "tree_based" {
		t.Errorf("ModelType = %q", info.ModelType)
	}
	if p := info.HyperparamSchema["num_leaves"]; p.Type != "int" || p.Default != float64(15) {
		t.Errorf("num_leaves = %+v", p)
	}

	_, err = c.ModelInfo(ctx, "NoSuchModel")
	var apiErr *cryptolab.APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != 404 {
		t.Errorf("ModelInfo(NoSuchModel) error = %v, want 404 APIError", err)
	}
}

func TestBackend_Backtest(t *testing.T) {
	c, b := newClient(t, mockbackend.WithSteps(2))
	ctx := context.Background()
	if err := b.AddUser(demo.Email, demo.Name, demo.Password); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Login(ctx, demo); err != nil {
		t.Fatal(err)
	}

	start := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	req := cryptolab.NewBacktestRequest("RandomStrategy", "default", "BTC", start, start.AddDate(0, 6, 0))

	tr := cryptolab.NewTracker(c, cryptolab.BacktestJob, nil)
	defer tr.Stop()
	if _, err := tr.Submit(ctx, req); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	task, err := tr.Wait(waitCtx)
	if err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if task.Results == nil || task.Results.TradeCount < 10 {
		t.Errorf("Results = %+v", task.Results)
	}

	req.ParamName = "missing"
	_, err = cryptolab.Submit(ctx, c, cryptolab.BacktestJob, req)
	var subErr *cryptolab.SubmissionError
	if !errors.As(err, &subErr) || !strings.Contains(subErr.Message, "parameter set 'missing'") {
		t.Errorf("Submit() with unknown parameter set error = %v", err)
	}
}
