package cryptolab

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Credentials is the body of both login and register requests.
type Credentials struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

// Validate mirrors the backend's registration rules so obvious mistakes fail
// locally.
func (c Credentials) Validate() error {
	if strings.TrimSpace(c.Email) == "" {
		return errors.New("email cannot be empty")
	}
	if n := len(c.Name); n < 1 || n > 64 {
		return fmt.Errorf("name must be 1-64 characters, got %d", n)
	}
	if n := len(c.Password); n < 8 || n > 128 {
		return fmt.Errorf("password must be 8-128 characters, got %d", n)
	}
	return nil
}

// ValidateLogin only requires every field to be set. Login forms carry no
// length rules; accounts registered under older rules must still log in.
func (c Credentials) ValidateLogin() error {
	switch {
	case strings.TrimSpace(c.Email) == "":
		return errors.New("email cannot be empty")
	case c.Name == "":
		return errors.New("name cannot be empty")
	case c.Password == "":
		return errors.New("password cannot be empty")
	}
	return nil
}

// Login is the backend's answer to a successful login.
type Login struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"` // seconds
}

// User is an account record.
type User struct {
	UserID    int64  `json:"user_id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at"`
}

// Login authenticates and stores the returned token in the client's session.
//
// A rejected login returns a [*SubmissionError] carrying the backend's detail.
func (c *Client) Login(ctx context.Context, creds Credentials) (Login, error) {
	var out Login
	if err := c.submitForm(ctx, "login", "/auth/login", creds, creds.ValidateLogin,
		"login failed, check your email, name and password", &out); err != nil {
		return Login{}, err
	}
	if out.AccessToken == "" {
		return Login{}, errors.New("login: response has no access_token")
	}
	if err := c.session.SetToken(ctx, out.AccessToken); err != nil {
		return Login{}, fmt.Errorf("store session token: %w", err)
	}
	c.logger.Info("logged in", "email", creds.Email, "expires_in", out.ExpiresIn)
	return out, nil
}

// Register creates an account. It does not log in.
func (c *Client) Register(ctx context.Context, creds Credentials) (User, error) {
	var out User
	if err := c.submitForm(ctx, "register", "/auth/register", creds, creds.Validate, "registration failed", &out); err != nil {
		return User{}, err
	}
	return out, nil
}

// Me returns the account behind the stored token. An invalid or expired token
// yields [ErrUnauthorized] and is cleared.
func (c *Client) Me(ctx context.Context) (User, error) {
	var out User
	err := c.getJSON(ctx, call{op: "me", method: http.MethodGet, path: "/auth/me", auth: true}, &out)
	return out, err
}

// Logout clears the stored token. The backend keeps no server-side session.
func (c *Client) Logout(ctx context.Context) error {
	if err := c.session.Clear(ctx); err != nil {
		return fmt.Errorf("clear session token: %w", err)
	}
	return nil
}

// submitForm posts an unauthenticated form. Rejections become a
// [*SubmissionError] with the extracted detail, else fallback.
func (c *Client) submitForm(ctx context.Context, op, path string, body any, validate func() error, fallback string, out any) error {
	if err := validate(); err != nil {
		return fmt.Errorf("invalid %s request: %w", op, err)
	}

	resp, err := c.do(ctx, call{op: op, method: http.MethodPost, path: path, body: body})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !resp.OK() {
		return &SubmissionError{Op: op, StatusCode: resp.StatusCode, Message: detailOr(resp.Body, fallback)}
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return fmt.Errorf("decode %s response: %w", op, err)
	}
	return nil
}
