package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/cryptolab"
	"github.com/jpalmerr/cryptolab/session"
)

// passwordEnv is read when --password is not given.
const passwordEnv = "CRYPTOLAB_PASSWORD"

func addCredentialFlags(cmd *cobra.Command) {
	cmd.Flags().String("email", "", "account email (required)")
	cmd.Flags().String("name", "", "account name (required)")
	cmd.Flags().String("password", "", "account password (default $"+passwordEnv+")")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("name")
}

func credentialsFromFlags(cmd *cobra.Command) (cryptolab.Credentials, error) {
	email, _ := cmd.Flags().GetString("email")
	name, _ := cmd.Flags().GetString("name")
	password, _ := cmd.Flags().GetString("password")
	if password == "" {
		password = os.Getenv(passwordEnv)
	}
	if password == "" {
		return cryptolab.Credentials{}, fmt.Errorf("password required: pass --password or set %s", passwordEnv)
	}
	return cryptolab.Credentials{Email: email, Name: name, Password: password}, nil
}

func newRegisterCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		Long: `Create an account on the backend. This does not log in.

Example:
  cryptolab register --email you@example.com --name you --password 's3cret-pass'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			creds, err := credentialsFromFlags(cmd)
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app) error {
				u, err := a.client.Register(ctx, creds)
				if err != nil {
					return err
				}
				fmt.Fprintf(a.out, "Registered %s (user %d)\n", u.Email, u.UserID)
				return nil
			})
		},
	}
	addCredentialFlags(cmd)
	return cmd
}

func newLoginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store the session token",
		Long: `Log in and store the returned token in the configured session store.

Example:
  cryptolab login --email you@example.com --name you
  CRYPTOLAB_PASSWORD='s3cret-pass' cryptolab login --email you@example.com --name you`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			creds, err := credentialsFromFlags(cmd)
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app) error {
				login, err := a.client.Login(ctx, creds)
				if err != nil {
					return err
				}
				fmt.Fprintf(a.out, "Logged in as %s\n", creds.Email)
				if exp, err := session.Expiry(login.AccessToken); err == nil {
					fmt.Fprintf(a.out, "  Token expires: %s\n", exp.UTC().Format(time.RFC3339))
				}
				return nil
			})
		},
	}
	addCredentialFlags(cmd)
	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				if err := a.client.Logout(ctx); err != nil {
					return err
				}
				fmt.Fprintln(a.out, "Logged out")
				return nil
			})
		},
	}
}

func newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged-in account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				if err := warnIfExpired(ctx, a); err != nil {
					return err
				}
				u, err := a.client.Me(ctx)
				if err != nil {
					return loginHint(err)
				}
				fmt.Fprintf(a.out, "%s <%s>\n", u.Name, u.Email)
				fmt.Fprintf(a.out, "  User ID: %d\n", u.UserID)
				if u.CreatedAt != "" {
					fmt.Fprintf(a.out, "  Since:   %s\n", u.CreatedAt)
				}
				return nil
			})
		},
	}
}

// warnIfExpired logs a warning when the stored token's exp has passed. The
// backend stays the authority, so the request is still sent.
func warnIfExpired(ctx context.Context, a *app) error {
	token, err := a.store.Token(ctx)
	if err != nil {
		return fmt.Errorf("read session token: %w", err)
	}
	if token != "" && session.Expired(token, time.Now()) {
		a.logger.Warn("stored session token has expired")
	}
	return nil
}

// loginHint rewrites ErrUnauthorized into an actionable message.
func loginHint(err error) error {
	if errors.Is(err, cryptolab.ErrUnauthorized) {
		return errors.New("not logged in or session expired: run cryptolab login")
	}
	return err
}
