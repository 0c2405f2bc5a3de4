// Package mockbackend is an in-process stand-in for the analytics backend.
//
// It serves the same routes the cryptolab client calls: account forms,
// coin data, the model catalog, the watchlist, and the asynchronous job
// kinds. Jobs move
// PENDING -> STARTED -> SUCCESS as they are polled, so the full
// submit-and-poll cycle can be exercised without the real service. Tokens
// are signed HS256 JWTs with an exp claim.
//
// Jobs for [FailingCoin] always end in FAILURE.
package mockbackend

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// FailingCoin is listed like any other coin, but every job submitted for it
// fails.
const FailingCoin = "LUNA"

const (
	defaultSteps    = 2
	defaultTokenTTL = time.Hour
)

// Coin is one symbol the backend holds candle data for.
type Coin struct {
	Symbol string
	Start  time.Time
	End    time.Time
}

// DefaultCoins is the data served unless [WithCoins] replaces it.
var DefaultCoins = []Coin{
	{Symbol: "BTC", Start: day(2019, 1, 1), End: day(2024, 6, 30)},
	{Symbol: "ETH", Start: day(2019, 1, 1), End: day(2024, 6, 30)},
	{Symbol: "SOL", Start: day(2020, 8, 1), End: day(2024, 6, 30)},
	{Symbol: "XRP", Start: day(2019, 1, 1), End: day(2024, 6, 30)},
	{Symbol: "ADA", Start: day(2019, 1, 1), End: day(2024, 6, 30)},
	{Symbol: "DOGE", Start: day(2019, 7, 1), End: day(2024, 6, 30)},
	{Symbol: FailingCoin, Start: day(2020, 1, 1), End: day(2022, 5, 12)},
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

type account struct {
	id        int64
	email     string
	name      string
	password  string
	createdAt time.Time
	watchlist []string
}

type job struct {
	kind  string
	coin  string
	owner int64
	polls int
}

// Backend holds users, watchlists and jobs in memory. It is safe for
// concurrent use.
type Backend struct {
	secret   []byte
	tokenTTL time.Duration
	steps    int
	logger   *slog.Logger
	now      func() time.Time

	mu       sync.Mutex
	coins    map[string]Coin
	accounts map[string]*account // by email
	byID     map[int64]*account
	nextID   int64
	jobs     map[string]*job
}

// Option configures a [Backend].
type Option func(*Backend)

// WithSteps sets how many status polls a job answers before it finishes.
// The first poll always answers PENDING; later unfinished polls answer
// STARTED.
func WithSteps(n int) Option {
	return func(b *Backend) {
		if n > 0 {
			b.steps = n
		}
	}
}

// WithTokenTTL sets the lifetime written to issued tokens.
func WithTokenTTL(d time.Duration) Option {
	return func(b *Backend) { b.tokenTTL = d }
}

// WithSecret sets the HS256 signing key.
func WithSecret(secret string) Option {
	return func(b *Backend) { b.secret = []byte(secret) }
}

// WithCoins replaces the served coin data.
func WithCoins(coins ...Coin) Option {
	return func(b *Backend) {
		b.coins = make(map[string]Coin, len(coins))
		for _, c := range coins {
			b.coins[strings.ToUpper(c.Symbol)] = c
		}
	}
}

// WithLogger sets the request logger. Defaults to [slog.Default].
func WithLogger(logger *slog.Logger) Option {
	return func(b *Backend) { b.logger = logger }
}

// New creates an empty backend with [DefaultCoins].
func New(opts ...Option) *Backend {
	b := &Backend{
		secret:   []byte(uuid.NewString()),
		tokenTTL: defaultTokenTTL,
		steps:    defaultSteps,
		logger:   slog.Default(),
		now:      time.Now,
		accounts: make(map[string]*account),
		byID:     make(map[int64]*account),
		jobs:     make(map[string]*job),
	}
	WithCoins(DefaultCoins...)(b)
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// AddUser registers an account directly, bypassing the register route.
func (b *Backend) AddUser(email, name, password string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, err := b.addLocked(email, name, password)
	return err
}

var errEmailTaken = errors.New("email already registered")

func (b *Backend) addLocked(email, name, password string) (*account, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if _, ok := b.accounts[email]; ok {
		return nil, errEmailTaken
	}
	b.nextID++
	a := &account{
		id:        b.nextID,
		email:     email,
		name:      name,
		password:  password,
		createdAt: b.now().UTC(),
	}
	b.accounts[email] = a
	b.byID[a.id] = a
	return a, nil
}

// Handler returns the backend's routes.
func (b *Backend) Handler() http.Handler {
	r := chi.NewRouter()

	r.Post("/auth/register", b.handleRegister)
	r.Post("/auth/login", b.handleLogin)

	r.Get("/data/list", b.handleListCoins)
	r.Post("/data/info", b.handleCoinInfo)

	r.Get("/models/list", b.handleListModels)
	r.Post("/models/info", b.handleModelInfo)

	r.Group(func(r chi.Router) {
		r.Use(b.requireAuth)

		r.Get("/auth/me", b.handleMe)
		r.Get("/watchlist", b.handleGetWatchlist)
		r.Post("/watchlist", b.handleSetWatchlist)

		for _, kind := range []string{kindModel, kindChart, kindScore, kindBacktest} {
			r.Post(submitPaths[kind], b.handleSubmit(kind))
			r.Get(submitPaths[kind]+"{id}", b.handleStatus(kind))
		}
	})

	return r
}

// ListenAndServe serves the backend on addr until the listener fails.
func (b *Backend) ListenAndServe(addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           b.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return srv.ListenAndServe()
}

// claims is the token payload.
type claims struct {
	UserID int64 `json:"user_id"`
	jwt.RegisteredClaims
}

func (b *Backend) issueToken(a *account) (string, error) {
	now := b.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &claims{
		UserID: a.id,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   a.email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(b.tokenTTL)),
		},
	})
	signed, err := token.SignedString(b.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

func (b *Backend) parseToken(raw string) (*claims, error) {
	c := &claims{}
	_, err := jwt.ParseWithClaims(raw, c, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return b.secret, nil
	}, jwt.WithTimeFunc(b.now))
	if err != nil {
		return nil, err
	}
	return c, nil
}

type ctxKey struct{}

func (b *Backend) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || raw == "" {
			writeDetail(w, http.StatusUnauthorized, "Not authenticated")
			return
		}
		c, err := b.parseToken(raw)
		if err != nil {
			writeDetail(w, http.StatusUnauthorized, "Could not validate credentials")
			return
		}

		b.mu.Lock()
		a, exists := b.byID[c.UserID]
		b.mu.Unlock()
		if !exists {
			writeDetail(w, http.StatusUnauthorized, "Could not validate credentials")
			return
		}

		next.ServeHTTP(w, r.WithContext(withAccount(r.Context(), a)))
	})
}

type credentials struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

type userResponse struct {
	UserID    int64  `json:"user_id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at"`
}

func toUser(a *account) userResponse {
	return userResponse{
		UserID:    a.id,
		Email:     a.email,
		Name:      a.name,
		CreatedAt: a.createdAt.Format("2006-01-02T15:04:05"),
	}
}

func (b *Backend) handleRegister(w http.ResponseWriter, r *http.Request) {
	var in credentials
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeValidation(w, "body", "invalid JSON body")
		return
	}
	if !strings.Contains(in.Email, "@") {
		writeValidation(w, "email", "value is not a valid email address")
		return
	}
	if len(in.Password) < 8 {
		writeValidation(w, "password", "String should have at least 8 characters")
		return
	}

	b.mu.Lock()
	a, err := b.addLocked(in.Email, in.Name, in.Password)
	b.mu.Unlock()
	if errors.Is(err, errEmailTaken) {
		writeDetail(w, http.StatusBadRequest, "Email already registered")
		return
	}

	b.logger.Info("account registered", "email", a.email, "user_id", a.id)
	writeJSON(w, http.StatusCreated, toUser(a))
}

func (b *Backend) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in credentials
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeValidation(w, "body", "invalid JSON body")
		return
	}

	b.mu.Lock()
	a, ok := b.accounts[strings.ToLower(strings.TrimSpace(in.Email))]
	b.mu.Unlock()
	if !ok || a.password != in.Password {
		writeDetail(w, http.StatusUnauthorized, "Incorrect email or password")
		return
	}

	token, err := b.issueToken(a)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}

	b.logger.Info("login", "email", a.email)
	writeJSON(w, http.StatusOK, map[string]any{
		"access_token": token,
		"token_type":   "bearer",
		"expires_in":   int(b.tokenTTL.Seconds()),
	})
}

func (b *Backend) handleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, toUser(accountFrom(r.Context())))
}

func (b *Backend) handleListCoins(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	symbols := make([]string, 0, len(b.coins))
	for s := range b.coins {
		symbols = append(symbols, s)
	}
	b.mu.Unlock()
	sort.Strings(symbols)

	writeJSON(w, http.StatusOK, map[string][]string{"available_coin_symbols": symbols})
}

func (b *Backend) handleCoinInfo(w http.ResponseWriter, r *http.Request) {
	var in struct {
		CoinSymbol string `json:"coin_symbol"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeValidation(w, "body", "invalid JSON body")
		return
	}

	coin, ok := b.coin(in.CoinSymbol)
	if !ok {
		writeDetail(w, http.StatusNotFound, fmt.Sprintf("Coin %s not found", in.CoinSymbol))
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"coin_symbol":     coin.Symbol,
		"available_start": coin.Start.Format("2006-01-02T15:04:05"),
		"available_end":   coin.End.Format("2006-01-02T15:04:05"),
	})
}

func (b *Backend) coin(symbol string) (Coin, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	c, ok := b.coins[strings.ToUpper(strings.TrimSpace(symbol))]
	return c, ok
}

func (b *Backend) handleGetWatchlist(w http.ResponseWriter, r *http.Request) {
	a := accountFrom(r.Context())

	b.mu.Lock()
	symbols := append([]string{}, a.watchlist...)
	b.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string][]string{"coin_symbols": symbols})
}

func (b *Backend) handleSetWatchlist(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Symbols []string `json:"symbols"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeValidation(w, "body", "invalid JSON body")
		return
	}
	if len(in.Symbols) != 5 {
		writeValidation(w, "symbols", "List should have exactly 5 items")
		return
	}
	for _, s := range in.Symbols {
		if _, ok := b.coin(s); !ok {
			writeDetail(w, http.StatusNotFound, fmt.Sprintf("Coin %s not found", s))
			return
		}
	}

	a := accountFrom(r.Context())
	b.mu.Lock()
	a.watchlist = append([]string{}, in.Symbols...)
	b.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string][]string{"symbols": in.Symbols})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeDetail writes a {"detail": "..."} error body.
func writeDetail(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"detail": msg})
}

// writeValidation writes a 422 with a list-shaped detail.
func writeValidation(w http.ResponseWriter, field, msg string) {
	writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
		"detail": []map[string]any{{
			"loc":  []string{"body", field},
			"msg":  msg,
			"type": "value_error",
		}},
	})
}
