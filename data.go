package cryptolab

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// WatchlistSize is the exact number of symbols a watchlist holds.
const WatchlistSize = 5

// CoinInfo is the window of candle data the backend holds for a coin.
type CoinInfo struct {
	CoinSymbol     string    `json:"coin_symbol"`
	AvailableStart Timestamp `json:"available_start"`
	AvailableEnd   Timestamp `json:"available_end"`
}

// ListCoins returns every coin symbol the backend has data for. It needs no
// login.
func (c *Client) ListCoins(ctx context.Context) ([]string, error) {
	var out struct {
		Symbols []string `json:"available_coin_symbols"`
	}
	if err := c.getJSON(ctx, call{op: "list_coins", method: http.MethodGet, path: "/data/list"}, &out); err != nil {
		return nil, err
	}
	return out.Symbols, nil
}

// CoinInfo returns the data window for symbol. An unknown symbol yields an
// [*APIError] with status 404.
func (c *Client) CoinInfo(ctx context.Context, symbol string) (CoinInfo, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return CoinInfo{}, fmt.Errorf("coin symbol cannot be empty")
	}

	var out CoinInfo
	err := c.getJSON(ctx, call{
		op:     "coin_info",
		method: http.MethodPost,
		path:   "/data/info",
		body:   map[string]string{"coin_symbol": symbol},
	}, &out)
	return out, err
}

// Watchlist returns the logged-in user's watched symbols.
func (c *Client) Watchlist(ctx context.Context) ([]string, error) {
	// the backend has answered with both keys over time
	var out struct {
		CoinSymbols []string `json:"coin_symbols"`
		Symbols     []string `json:"symbols"`
	}
	if err := c.getJSON(ctx, call{op: "watchlist", method: http.MethodGet, path: "/watchlist", auth: true}, &out); err != nil {
		return nil, err
	}
	if out.CoinSymbols != nil {
		return out.CoinSymbols, nil
	}
	return out.Symbols, nil
}

// SetWatchlist replaces the watchlist. Exactly [WatchlistSize] distinct
// symbols are required.
func (c *Client) SetWatchlist(ctx context.Context, symbols []string) ([]string, error) {
	if len(symbols) != WatchlistSize {
		return nil, fmt.Errorf("watchlist needs exactly %d symbols, got %d", WatchlistSize, len(symbols))
	}

	normalized := make([]string, len(symbols))
	seen := make(map[string]bool, len(symbols))
	for i, s := range symbols {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" {
			return nil, fmt.Errorf("watchlist symbol %d is empty", i)
		}
		if seen[s] {
			return nil, fmt.Errorf("duplicate watchlist symbol: %q", s)
		}
		seen[s] = true
		normalized[i] = s
	}

	var out struct {
		Symbols []string `json:"symbols"`
	}
	err := c.getJSON(ctx, call{
		op:     "set_watchlist",
		method: http.MethodPost,
		path:   "/watchlist",
		body:   map[string][]string{"symbols": normalized},
		auth:   true,
	}, &out)
	if err != nil {
		return nil, err
	}
	return out.Symbols, nil
}
