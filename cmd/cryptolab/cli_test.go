package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jpalmerr/cryptolab"
	"github.com/jpalmerr/cryptolab/internal/mockbackend"
)

const (
	testEmail    = "demo@example.com"
	testName     = "demo"
	testPassword = "password123"
)

// syncBuffer is a bytes.Buffer safe for the concurrent writes of loggers
// and poll observers.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// execute runs the CLI with args and returns captured stdout and stderr.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	return executeContext(context.Background(), t, args...)
}

func executeContext(ctx context.Context, t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	var stdout bytes.Buffer
	stderr := &syncBuffer{}

	root := newRootCmd()
	root.SetOut(&stdout)
	root.SetErr(stderr)
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)
	return stdout.String(), stderr.String(), err
}

// newBackend starts a mock backend with the test account and returns a
// config file pointing at it with a file session store.
func newBackend(t *testing.T) string {
	t.Helper()

	b := mockbackend.New(
		mockbackend.WithSteps(1),
		mockbackend.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	if err := b.AddUser(testEmail, testName, testPassword); err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(b.Handler())
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	return writeConfigFile(t, fmt.Sprintf(`
base_url: %s
poll_interval: 500ms
session:
  backend: file
  path: %s
log:
  level: info
`, srv.URL, filepath.Join(dir, "session.json")))
}

// loggedIn returns a config for a backend whose session already holds a
// token.
func loggedIn(t *testing.T) string {
	t.Helper()
	cfg := newBackend(t)
	if _, _, err := execute(t, "login", "-c", cfg, "--email", testEmail, "--name", testName, "--password", testPassword); err != nil {
		t.Fatalf("login error = %v", err)
	}
	return cfg
}

func TestVersion(t *testing.T) {
	out, _, err := execute(t, "version")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, "cryptolab dev") {
		t.Errorf("version output = %q", out)
	}
}

func TestAccountLifecycle(t *testing.T) {
	cfg := newBackend(t)

	out, _, err := execute(t, "register", "-c", cfg,
		"--email", "new@example.com", "--name", "newbie", "--password", "another-pass")
	if err != nil {
		t.Fatalf("register error = %v", err)
	}
	if !strings.Contains(out, "Registered new@example.com") {
		t.Errorf("register output = %q", out)
	}

	out, _, err = execute(t, "login", "-c", cfg,
		"--email", "new@example.com", "--name", "newbie", "--password", "another-pass")
	if err != nil {
		t.Fatalf("login error = %v", err)
	}
	if !strings.Contains(out, "Logged in as new@example.com") || !strings.Contains(out, "Token expires:") {
		t.Errorf("login output = %q", out)
	}

	out, _, err = execute(t, "whoami", "-c", cfg)
	if err != nil {
		t.Fatalf("whoami error = %v", err)
	}
	if !strings.Contains(out, "newbie <new@example.com>") {
		t.Errorf("whoami output = %q", out)
	}

	if _, _, err := execute(t, "logout", "-c", cfg); err != nil {
		t.Fatalf("logout error = %v", err)
	}

	_, _, err = execute(t, "whoami", "-c", cfg)
	if err == nil || !strings.Contains(err.Error(), "run cryptolab login") {
		t.Errorf("whoami after logout error = %v, want login hint", err)
	}
}

func TestLogin_PasswordFromEnv(t *testing.T) {
	cfg := newBackend(t)
	t.Setenv(passwordEnv, testPassword)

	if _, _, err := execute(t, "login", "-c", cfg, "--email", testEmail, "--name", testName); err != nil {
		t.Fatalf("login error = %v", err)
	}
}

func TestLogin_MissingPassword(t *testing.T) {
	cfg := newBackend(t)
	t.Setenv(passwordEnv, "")

	_, _, err := execute(t, "login", "-c", cfg, "--email", testEmail, "--name", testName)
	if err == nil || !strings.Contains(err.Error(), "password required") {
		t.Errorf("login error = %v, want password required", err)
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	cfg := newBackend(t)

	_, _, err := execute(t, "login", "-c", cfg, "--email", testEmail, "--name", testName, "--password", "not-the-password")
	var subErr *cryptolab.SubmissionError
	if !errors.As(err, &subErr) {
		t.Fatalf("login error = %v, want *SubmissionError", err)
	}
}

func TestCoinsAndInfo(t *testing.T) {
	cfg := newBackend(t)

	out, _, err := execute(t, "coins", "-c", cfg)
	if err != nil {
		t.Fatalf("coins error = %v", err)
	}
	if lines := strings.Fields(out); len(lines) != len(mockbackend.DefaultCoins) {
		t.Errorf("coins output = %q", out)
	}

	out, _, err = execute(t, "info", "-c", cfg, "sol")
	if err != nil {
		t.Fatalf("info error = %v", err)
	}
	for _, want := range []string{"SOL", "Available from: 2020-08-01", "Available to:   2024-06-30"} {
		if !strings.Contains(out, want) {
			t.Errorf("info output missing %q:\n%s", want, out)
		}
	}
}

func TestWatchlist(t *testing.T) {
	cfg := loggedIn(t)

	out, _, err := execute(t, "watchlist", "-c", cfg)
	if err != nil {
		t.Fatalf("watchlist error = %v", err)
	}
	if !strings.Contains(out, "Watchlist is empty") {
		t.Errorf("watchlist output = %q", out)
	}

	if _, _, err := execute(t, "watchlist", "set", "-c", cfg, "btc", "eth", "sol", "xrp", "ada"); err != nil {
		t.Fatalf("watchlist set error = %v", err)
	}

	out, _, err = execute(t, "watchlist", "-c", cfg)
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out) != "BTC ETH SOL XRP ADA" {
		t.Errorf("watchlist output = %q", out)
	}

	if _, _, err := execute(t, "watchlist", "set", "-c", cfg, "btc"); err == nil {
		t.Error("watchlist set with one symbol should fail")
	}
}

func TestFeature(t *testing.T) {
	out, _, err := execute(t, "feature", "model", "price_pct_change_24h")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, "Price change (24h)\n") {
		t.Errorf("feature output = %q", out)
	}

	out, _, err = execute(t, "feature", "chart", "mystery", "--json")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, `"name": "mystery"`) {
		t.Errorf("feature --json output = %q", out)
	}

	if _, _, err := execute(t, "feature", "nowhere", "rsi"); err == nil {
		t.Error("unknown namespace should fail")
	}
}

func TestExplainModel(t *testing.T) {
	cfg := loggedIn(t)

	out, errOut, err := execute(t, "explain", "model", "-c", cfg, "BTC", "--date", "2024-03-10")
	if err != nil {
		t.Fatalf("explain model error = %v", err)
	}
	for _, want := range []string{"Prediction", "Attributions:", "Price change (24h)", "Reference charts:"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if !strings.Contains(errOut, "model explanation: done") {
		t.Errorf("progress missing from stderr:\n%s", errOut)
	}
}

func TestExplainChart_ClampsDate(t *testing.T) {
	cfg := loggedIn(t)

	out, errOut, err := execute(t, "explain", "chart", "-c", cfg, "SOL", "--date", "2030-01-01")
	if err != nil {
		t.Fatalf("explain chart error = %v", err)
	}
	if !strings.Contains(out, "Most similar past charts:") {
		t.Errorf("output = %q", out)
	}
	if !strings.Contains(errOut, "using=2024-06-30") {
		t.Errorf("clamp not logged:\n%s", errOut)
	}
}

func TestScore(t *testing.T) {
	cfg := loggedIn(t)

	out, _, err := execute(t, "score", "-c", cfg, "ETH", "--date", "2024-03-10", "--no-color")
	if err != nil {
		t.Fatalf("score error = %v", err)
	}
	for _, m := range cryptolab.ScoreMetrics {
		if !strings.Contains(out, m) {
			t.Errorf("output missing metric %s", m)
		}
	}
	if strings.Contains(out, "\x1b[") {
		t.Error("--no-color output contains ANSI escapes")
	}
}

func TestScore_JobFailure(t *testing.T) {
	cfg := loggedIn(t)

	_, _, err := execute(t, "score", "-c", cfg, mockbackend.FailingCoin, "--date", "2022-01-10")
	var failure *cryptolab.JobFailure
	if !errors.As(err, &failure) {
		t.Fatalf("score error = %v, want *JobFailure", err)
	}
}

func TestScore_InvalidDate(t *testing.T) {
	_, _, err := execute(t, "score", "BTC", "--date", "10/03/2024")
	if err == nil || !strings.Contains(err.Error(), "want YYYY-MM-DD") {
		t.Errorf("score error = %v", err)
	}
}

func TestExplain_NotLoggedIn(t *testing.T) {
	cfg := newBackend(t)

	_, _, err := execute(t, "explain", "model", "-c", cfg, "BTC", "--date", "2024-03-10")
	if err == nil || !strings.Contains(err.Error(), "run cryptolab login") {
		t.Errorf("explain error = %v, want login hint", err)
	}
}

func TestModels(t *testing.T) {
	cfg := newBackend(t)

	out, _, err := execute(t, "models", "-c", cfg)
	if err != nil {
		t.Fatalf("models error = %v", err)
	}
	for name := range mockbackend.Models {
		if !strings.Contains(out, name) {
			t.Errorf("models output missing %s:\n%s", name, out)
		}
	}

	out, _, err = execute(t, "models", "info", "-c", cfg, "RandomStrategy")
	if err != nil {
		t.Fatalf("models info error = %v", err)
	}
	if !strings.Contains(out, "buy_prob") || !strings.Contains(out, "rule_based") {
		t.Errorf("models info output = %q", out)
	}

	if _, _, err := execute(t, "models", "info", "-c", cfg, "NoSuchModel"); err == nil {
		t.Error("models info for an unknown model should fail")
	}
}

func TestBacktest(t *testing.T) {
	cfg := loggedIn(t)

	out, errOut, err := execute(t, "backtest", "-c", cfg, "RandomStrategy", "default", "btc",
		"--from", "2023-01-01", "--to", "2023-06-30")
	if err != nil {
		t.Fatalf("backtest error = %v", err)
	}
	for _, want := range []string{"RandomStrategy (default) on BTC", "Win rate", "Trades"} {
		if !strings.Contains(out, want) {
			t.Errorf("backtest output missing %q\n%s", want, out)
		}
	}
	if !strings.Contains(errOut, "backtest") {
		t.Errorf("no progress lines on stderr: %q", errOut)
	}
}

func TestBacktest_RequiresRange(t *testing.T) {
	_, _, err := execute(t, "backtest", "RandomStrategy", "default", "BTC", "--from", "2023-01-01")
	if err == nil || !strings.Contains(err.Error(), `"to" not set`) {
		t.Errorf("backtest error = %v, want missing --to", err)
	}

	_, _, err = execute(t, "backtest", "RandomStrategy", "default", "BTC", "--from", "2023-06-30", "--to", "2023-01-01")
	if err == nil || !strings.Contains(err.Error(), "end must be after start") {
		t.Errorf("backtest error = %v, want range rejection", err)
	}
}

func TestSweep(t *testing.T) {
	cfg := loggedIn(t)

	out, _, err := execute(t, "sweep", "-c", cfg, "--date", "2024-03-10",
		"--coins", "BTC,"+mockbackend.FailingCoin, "--timeframes", "60,240")
	if err != nil {
		t.Fatalf("sweep error = %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 5 {
		t.Fatalf("got %d lines, want header + 4 rows:\n%s", len(lines), out)
	}
	if !strings.Contains(lines[1], "BTC") || !strings.Contains(lines[1], "60m") || !strings.Contains(lines[1], "SUCCESS") {
		t.Errorf("first row = %q", lines[1])
	}
	if !strings.Contains(lines[3], mockbackend.FailingCoin) || !strings.Contains(lines[3], "error:") {
		t.Errorf("failing row = %q", lines[3])
	}
}

func TestSweep_DefaultsToWatchlist(t *testing.T) {
	cfg := loggedIn(t)
	if _, _, err := execute(t, "watchlist", "set", "-c", cfg, "BTC", "ETH", "SOL", "XRP", "ADA"); err != nil {
		t.Fatal(err)
	}

	out, _, err := execute(t, "sweep", "-c", cfg, "--date", "2024-03-10")
	if err != nil {
		t.Fatalf("sweep error = %v", err)
	}
	if lines := strings.Split(strings.TrimSpace(out), "\n"); len(lines) != 6 {
		t.Errorf("got %d lines, want header + 5 rows:\n%s", len(lines), out)
	}
}

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	_ = ln.Close()
	return port
}

func TestServe(t *testing.T) {
	cfg := newBackend(t)
	port := freePort(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		_, _, err := executeContext(ctx, t, "serve", "-c", cfg, "--port", fmt.Sprint(port))
		errCh <- err
	}()

	url := fmt.Sprintf("http://127.0.0.1:%d/healthz", port)
	deadline := time.Now().Add(3 * time.Second)
	for {
		resp, err := http.Get(url)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				break
			}
		}
		if time.Now().After(deadline) {
			t.Fatalf("server never became healthy: %v", err)
		}
		time.Sleep(20 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("serve returned error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not return after cancellation")
	}
}
