package client

import (
	"context"
	"net/http"
	"time"

	"fintrack/internal/identity"
	"fintrack/internal/log"
)

type authResponse struct {
	UID          string    `json:"uid"`
	Email        string    `json:"email"`
	DisplayName  string    `json:"displayName"`
	PhotoURL     string    `json:"photoURL"`
	IDToken      string    `json:"idToken"`
	RefreshToken string    `json:"refreshToken"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

func (r authResponse) user() identity.User {
	return identity.User{
		UID:          r.UID,
		Email:        r.Email,
		DisplayName:  r.DisplayName,
		PhotoURL:     r.PhotoURL,
		IDToken:      r.IDToken,
		RefreshToken: r.RefreshToken,
		ExpiresAt:    r.ExpiresAt,
	}
}

// SignIn exchanges email and password for tokens through the API's /auth
// relay. Credentials are validated locally first.
func (c *Client) SignIn(ctx context.Context, email, password string) (identity.User, error) {
	if err := identity.ValidateEmail(email); err != nil {
		return identity.User{}, err
	}
	body := map[string]string{"email": email, "password": password}
	return c.auth(ctx, log.OpSignIn, "/auth/signin", body)
}

func (c *Client) SignUp(ctx context.Context, email, password, displayName string) (identity.User, error) {
	if err := identity.ValidateCredentials(email, password); err != nil {
		return identity.User{}, err
	}
	body := map[string]string{"email": email, "password": password, "displayName": displayName}
	return c.auth(ctx, log.OpSignUp, "/auth/signup", body)
}

// Refresh trades a refresh token for a new ID token.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (identity.User, error) {
	if refreshToken == "" {
		return identity.User{}, ErrNoCredential
	}
	return c.auth(ctx, log.OpVerify, "/auth/refresh", map[string]string{"refreshToken": refreshToken})
}

func (c *Client) SendPasswordReset(ctx context.Context, email string) error {
	if err := identity.ValidateEmail(email); err != nil {
		return err
	}
	return c.send(ctx, "password_reset", http.MethodPost, "/auth/password-reset", "", map[string]string{"email": email}, nil)
}

func (c *Client) auth(ctx context.Context, op, path string, body any) (identity.User, error) {
	var out authResponse
	if err := c.send(ctx, op, http.MethodPost, path, "", body, &out); err != nil {
		return identity.User{}, err
	}
	if out.IDToken == "" {
		return identity.User{}, ErrNotAcknowledged
	}
	return out.user(), nil
}
