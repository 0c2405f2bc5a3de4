package session

import "context"

// TokenKey is the fixed name the token is stored under.
const TokenKey = "access_token"

// Store persists the bearer token.
type Store interface {
	// Token returns the stored token, or "" when logged out.
	Token(ctx context.Context) (string, error)

	// SetToken replaces the stored token.
	SetToken(ctx context.Context, token string) error

	// Clear removes the stored token. Clearing an empty store is not an error.
	Clear(ctx context.Context) error
}
