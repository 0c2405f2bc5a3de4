package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNoExpiry is returned by [Expiry] when the token carries no exp claim.
var ErrNoExpiry = errors.New("token has no expiry")

// Expiry reads the exp claim of a JWT without verifying its signature.
//
// The signing key belongs to the backend; this is only used to warn before
// sending a token the backend will reject with 401.
func Expiry(token string) (time.Time, error) {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, fmt.Errorf("parse token: %w", err)
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, ErrNoExpiry
	}
	return claims.ExpiresAt.Time, nil
}

// Expired reports whether token's exp claim is at or before now. Tokens that
// cannot be parsed or carry no expiry are not considered expired; the backend
// stays the authority.
func Expired(token string, now time.Time) bool {
	exp, err := Expiry(token)
	if err != nil {
		return false
	}
	return !now.Before(exp)
}
