// Package identity is the boundary to the external identity provider:
// account creation, sign-in, profile updates, password reset and token
// verification.
package identity

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"
)

var (
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrWeakPassword       = errors.New("password must contain an upper case letter, a lower case letter and be at least 6 characters")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailExists        = errors.New("email already registered")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrUserNotFound       = errors.New("user not found")
)

const MinPasswordLength = 6

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// User is an authenticated identity with its tokens.
type User struct {
	UID          string
	Email        string
	DisplayName  string
	PhotoURL     string
	IDToken      string
	RefreshToken string
	ExpiresAt    time.Time
}

// Expired reports whether the ID token is past its expiry.
func (u User) Expired(now time.Time) bool {
	return !u.ExpiresAt.IsZero() && !now.Before(u.ExpiresAt)
}

// Name is the display name, falling back to the email.
func (u User) Name() string {
	if strings.TrimSpace(u.DisplayName) != "" {
		return u.DisplayName
	}
	return u.Email
}

// Verifier resolves an ID token to the identity it was issued to.
type Verifier interface {
	Verify(ctx context.Context, idToken string) (User, error)
}

// Provider is the full set of identity operations used by the apps.
type Provider interface {
	Verifier
	SignUp(ctx context.Context, email, password, displayName string) (User, error)
	SignIn(ctx context.Context, email, password string) (User, error)
	SignInWithGoogle(ctx context.Context, googleIDToken string) (User, error)
	Refresh(ctx context.Context, refreshToken string) (User, error)
	UpdateProfile(ctx context.Context, idToken, displayName, photoURL string) (User, error)
	SendPasswordReset(ctx context.Context, email string) error
}

// ProviderError is an error reported by the remote identity service.
type ProviderError struct {
	Status int
	Code   string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("identity provider error %d: %s", e.Status, e.Code)
}

// ValidateEmail checks the address shape before any provider call.
func ValidateEmail(email string) error {
	if !emailPattern.MatchString(strings.TrimSpace(email)) {
		return ErrInvalidEmail
	}
	return nil
}

// ValidatePassword requires an upper case letter, a lower case letter and
// MinPasswordLength characters.
func ValidatePassword(password string) error {
	var upper, lower bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		}
	}
	if !upper || !lower || len([]rune(password)) < MinPasswordLength {
		return ErrWeakPassword
	}
	return nil
}

// ValidateCredentials runs both checks and joins their errors.
func ValidateCredentials(email, password string) error {
	return errors.Join(ValidateEmail(email), ValidatePassword(password))
}
