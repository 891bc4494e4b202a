package identity

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Memory is a process-local Provider for development and tests. Accounts and
// tokens are lost on restart.
type Memory struct {
	mu       sync.Mutex
	accounts map[string]*memoryAccount // by lower-cased email
	tokens   map[string]memoryToken    // id token -> account
	refresh  map[string]string         // refresh token -> email key
	tokenTTL time.Duration
	now      func() time.Time
	resets   []string
}

type memoryAccount struct {
	uid          string
	email        string
	displayName  string
	photoURL     string
	passwordHash []byte
}

type memoryToken struct {
	key       string
	expiresAt time.Time
}

var _ Provider = (*Memory)(nil)

func NewMemory(tokenTTL time.Duration) *Memory {
	if tokenTTL <= 0 {
		tokenTTL = time.Hour
	}
	return &Memory{
		accounts: make(map[string]*memoryAccount),
		tokens:   make(map[string]memoryToken),
		refresh:  make(map[string]string),
		tokenTTL: tokenTTL,
		now:      time.Now,
	}
}

func emailKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (m *Memory) SignUp(_ context.Context, email, password, displayName string) (User, error) {
	if err := ValidateCredentials(email, password); err != nil {
		return User{}, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return User{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	key := emailKey(email)
	if _, exists := m.accounts[key]; exists {
		return User{}, ErrEmailExists
	}
	acc := &memoryAccount{
		uid:          uuid.NewString(),
		email:        strings.TrimSpace(email),
		displayName:  strings.TrimSpace(displayName),
		passwordHash: hash,
	}
	m.accounts[key] = acc
	return m.issueLocked(key, acc), nil
}

func (m *Memory) SignIn(_ context.Context, email, password string) (User, error) {
	if err := ValidateEmail(email); err != nil {
		return User{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := emailKey(email)
	acc, ok := m.accounts[key]
	if !ok || acc.passwordHash == nil {
		return User{}, ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword(acc.passwordHash, []byte(password)) != nil {
		return User{}, ErrInvalidCredentials
	}
	return m.issueLocked(key, acc), nil
}

// SignInWithGoogle trusts the claims of the given ID token without checking
// its signature. Never use this provider outside development.
func (m *Memory) SignInWithGoogle(_ context.Context, googleIDToken string) (User, error) {
	claims, err := unverifiedClaims(googleIDToken)
	if err != nil || ValidateEmail(claims.Email) != nil {
		return User{}, ErrInvalidToken
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := emailKey(claims.Email)
	acc, ok := m.accounts[key]
	if !ok {
		acc = &memoryAccount{uid: uuid.NewString(), email: claims.Email}
		m.accounts[key] = acc
	}
	if acc.displayName == "" {
		acc.displayName = claims.Name
	}
	if acc.photoURL == "" {
		acc.photoURL = claims.Picture
	}
	return m.issueLocked(key, acc), nil
}

func (m *Memory) Refresh(_ context.Context, refreshToken string) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key, ok := m.refresh[refreshToken]
	if !ok {
		return User{}, ErrInvalidToken
	}
	delete(m.refresh, refreshToken)
	acc, ok := m.accounts[key]
	if !ok {
		return User{}, ErrInvalidToken
	}
	return m.issueLocked(key, acc), nil
}

func (m *Memory) UpdateProfile(_ context.Context, idToken, displayName, photoURL string) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key, acc, err := m.lookupLocked(idToken)
	if err != nil {
		return User{}, err
	}
	if displayName != "" {
		acc.displayName = displayName
	}
	if photoURL != "" {
		acc.photoURL = photoURL
	}
	u := m.userLocked(acc)
	u.IDToken = idToken
	u.ExpiresAt = m.tokens[idToken].expiresAt
	for rt, k := range m.refresh {
		if k == key {
			u.RefreshToken = rt
			break
		}
	}
	return u, nil
}

// SendPasswordReset records the request. Unknown addresses succeed silently
// so that callers cannot probe for accounts.
func (m *Memory) SendPasswordReset(_ context.Context, email string) error {
	if err := ValidateEmail(email); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[emailKey(email)]; ok {
		m.resets = append(m.resets, strings.TrimSpace(email))
	}
	return nil
}

// PasswordResets returns the addresses a reset was sent to.
func (m *Memory) PasswordResets() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.resets...)
}

func (m *Memory) Verify(_ context.Context, idToken string) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, acc, err := m.lookupLocked(idToken)
	if err != nil {
		return User{}, err
	}
	u := m.userLocked(acc)
	u.IDToken = idToken
	u.ExpiresAt = m.tokens[idToken].expiresAt
	return u, nil
}

func (m *Memory) lookupLocked(idToken string) (string, *memoryAccount, error) {
	tok, ok := m.tokens[idToken]
	if !ok {
		return "", nil, ErrInvalidToken
	}
	if !m.now().Before(tok.expiresAt) {
		delete(m.tokens, idToken)
		return "", nil, ErrInvalidToken
	}
	acc, ok := m.accounts[tok.key]
	if !ok {
		return "", nil, ErrUserNotFound
	}
	return tok.key, acc, nil
}

func (m *Memory) issueLocked(key string, acc *memoryAccount) User {
	u := m.userLocked(acc)
	u.IDToken = uuid.NewString()
	u.RefreshToken = uuid.NewString()
	u.ExpiresAt = m.now().Add(m.tokenTTL)
	m.tokens[u.IDToken] = memoryToken{key: key, expiresAt: u.ExpiresAt}
	m.refresh[u.RefreshToken] = key
	return u
}

func (m *Memory) userLocked(acc *memoryAccount) User {
	return User{
		UID:         acc.uid,
		Email:       acc.email,
		DisplayName: acc.displayName,
		PhotoURL:    acc.photoURL,
	}
}

type googleClaims struct {
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

func unverifiedClaims(token string) (googleClaims, error) {
	var c googleClaims
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return c, ErrInvalidToken
	}
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return c, ErrInvalidToken
	}
	if err := json.Unmarshal(payload, &c); err != nil {
		return c, ErrInvalidToken
	}
	return c, nil
}
