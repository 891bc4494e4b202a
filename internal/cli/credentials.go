package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"fintrack/internal/identity"
)

// ErrNotLoggedIn is returned when no credentials are stored.
var ErrNotLoggedIn = errors.New("not logged in: run 'fintrack login' first")

// storedCredentials is the on-disk form of a signed-in user.
type storedCredentials struct {
	UID          string    `json:"uid"`
	Email        string    `json:"email"`
	DisplayName  string    `json:"displayName,omitempty"`
	PhotoURL     string    `json:"photoURL,omitempty"`
	IDToken      string    `json:"idToken"`
	RefreshToken string    `json:"refreshToken"`
	ExpiresAt    time.Time `json:"expiresAt"`
	APIBaseURL   string    `json:"apiBaseUrl,omitempty"`
}

// CredentialStore keeps the terminal client's credentials in a single JSON
// file readable only by the owner.
type CredentialStore struct {
	path string
}

func NewCredentialStore(path string) *CredentialStore {
	return &CredentialStore{path: path}
}

// DefaultCredentialsPath is ~/.config/fintrack/credentials.json.
func DefaultCredentialsPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".config", "fintrack", "credentials.json"), nil
}

func (s *CredentialStore) Path() string {
	return s.path
}

// Load returns the stored user and the API the tokens were issued through.
func (s *CredentialStore) Load() (identity.User, string, error) {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return identity.User{}, "", ErrNotLoggedIn
	}
	if err != nil {
		return identity.User{}, "", fmt.Errorf("read credentials: %w", err)
	}

	var c storedCredentials
	if err := json.Unmarshal(raw, &c); err != nil {
		return identity.User{}, "", fmt.Errorf("parse credentials %s: %w", s.path, err)
	}
	if c.IDToken == "" {
		return identity.User{}, "", ErrNotLoggedIn
	}
	return identity.User{
		UID:          c.UID,
		Email:        c.Email,
		DisplayName:  c.DisplayName,
		PhotoURL:     c.PhotoURL,
		IDToken:      c.IDToken,
		RefreshToken: c.RefreshToken,
		ExpiresAt:    c.ExpiresAt,
	}, c.APIBaseURL, nil
}

// Save writes u atomically through a temporary file.
func (s *CredentialStore) Save(u identity.User, apiBaseURL string) error {
	raw, err := json.MarshalIndent(storedCredentials{
		UID:          u.UID,
		Email:        u.Email,
		DisplayName:  u.DisplayName,
		PhotoURL:     u.PhotoURL,
		IDToken:      u.IDToken,
		RefreshToken: u.RefreshToken,
		ExpiresAt:    u.ExpiresAt,
		APIBaseURL:   apiBaseURL,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode credentials: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".credentials-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod credentials: %w", err)
	}
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("write credentials: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write credentials: %w", err)
	}
	return os.Rename(tmp.Name(), s.path)
}

// Delete removes the stored credentials. Deleting nothing is not an error.
func (s *CredentialStore) Delete() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove credentials: %w", err)
	}
	return nil
}
