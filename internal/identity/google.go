package identity

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// GoogleSignIn runs the OAuth authorization-code flow with Google and hands
// the resulting ID token to the identity provider.
type GoogleSignIn struct {
	config   *oauth2.Config
	provider Provider
}

func NewGoogleSignIn(clientID, clientSecret, redirectURL string, provider Provider) *GoogleSignIn {
	return &GoogleSignIn{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     google.Endpoint,
		},
		provider: provider,
	}
}

// WithEndpoint overrides the Google endpoint.
func (g *GoogleSignIn) WithEndpoint(ep oauth2.Endpoint) *GoogleSignIn {
	g.config.Endpoint = ep
	return g
}

// AuthCodeURL is where the browser is redirected to start the flow.
func (g *GoogleSignIn) AuthCodeURL(state string) string {
	return g.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Complete exchanges the authorization code and signs the user in.
func (g *GoogleSignIn) Complete(ctx context.Context, code string) (User, error) {
	if code == "" {
		return User{}, errors.New("missing authorization code")
	}
	tok, err := g.config.Exchange(ctx, code)
	if err != nil {
		return User{}, fmt.Errorf("exchange authorization code: %w", err)
	}
	idToken, _ := tok.Extra("id_token").(string)
	if idToken == "" {
		return User{}, fmt.Errorf("token response without id_token: %w", ErrInvalidToken)
	}
	return g.provider.SignInWithGoogle(ctx, idToken)
}

// NewState returns a random value for the OAuth state parameter.
func NewState() (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
