package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"fintrack/internal/httpx"
	"fintrack/internal/log"
)

const (
	DefaultIdentityToolkitURL = "https://identitytoolkit.googleapis.com/v1"
	DefaultSecureTokenURL     = "https://securetoken.googleapis.com/v1"
)

// Firebase implements Provider against the Firebase Authentication REST API.
type Firebase struct {
	apiKey      string
	accountsURL string
	tokenURL    string
	httpClient  *http.Client
	logger      *log.Logger
	now         func() time.Time
}

var _ Provider = (*Firebase)(nil)

type FirebaseOption func(*Firebase)

// WithEndpoints points the provider at alternative base URLs, such as the
// auth emulator.
func WithEndpoints(accountsURL, tokenURL string) FirebaseOption {
	return func(f *Firebase) {
		f.accountsURL = strings.TrimRight(accountsURL, "/")
		f.tokenURL = strings.TrimRight(tokenURL, "/")
	}
}

func WithFirebaseHTTPClient(hc *http.Client) FirebaseOption {
	return func(f *Firebase) { f.httpClient = hc }
}

func WithFirebaseLogger(l *log.Logger) FirebaseOption {
	return func(f *Firebase) { f.logger = l.WithComponent(log.ComponentIdentity) }
}

func NewFirebase(apiKey string, opts ...FirebaseOption) (*Firebase, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("firebase api key is required")
	}
	f := &Firebase{
		apiKey:      apiKey,
		accountsURL: DefaultIdentityToolkitURL,
		tokenURL:    DefaultSecureTokenURL,
		httpClient:  httpx.NewPooledClient(),
		logger:      log.New(log.DefaultConfig()).WithComponent(log.ComponentIdentity),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

type accountResponse struct {
	LocalID      string `json:"localId"`
	Email        string `json:"email"`
	DisplayName  string `json:"displayName"`
	PhotoURL     string `json:"photoUrl"`
	IDToken      string `json:"idToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    string `json:"expiresIn"`
}

func (f *Firebase) user(r accountResponse) User {
	return User{
		UID:          r.LocalID,
		Email:        r.Email,
		DisplayName:  r.DisplayName,
		PhotoURL:     r.PhotoURL,
		IDToken:      r.IDToken,
		RefreshToken: r.RefreshToken,
		ExpiresAt:    f.expiry(r.ExpiresIn),
	}
}

func (f *Firebase) expiry(expiresIn string) time.Time {
	secs, err := strconv.Atoi(expiresIn)
	if err != nil || secs <= 0 {
		return time.Time{}
	}
	return f.now().Add(time.Duration(secs) * time.Second)
}

func (f *Firebase) SignUp(ctx context.Context, email, password, displayName string) (User, error) {
	if err := ValidateCredentials(email, password); err != nil {
		return User{}, err
	}
	var resp accountResponse
	err := f.post(ctx, "accounts:signUp", map[string]any{
		"email":             strings.TrimSpace(email),
		"password":          password,
		"returnSecureToken": true,
	}, &resp)
	if err != nil {
		return User{}, err
	}
	u := f.user(resp)
	if strings.TrimSpace(displayName) != "" {
		return f.UpdateProfile(ctx, u.IDToken, displayName, "")
	}
	return u, nil
}

func (f *Firebase) SignIn(ctx context.Context, email, password string) (User, error) {
	if err := ValidateEmail(email); err != nil {
		return User{}, err
	}
	var resp accountResponse
	err := f.post(ctx, "accounts:signInWithPassword", map[string]any{
		"email":             strings.TrimSpace(email),
		"password":          password,
		"returnSecureToken": true,
	}, &resp)
	if err != nil {
		return User{}, err
	}
	return f.user(resp), nil
}

// SignInWithGoogle exchanges a Google ID token obtained through the OAuth
// flow for a provider session.
func (f *Firebase) SignInWithGoogle(ctx context.Context, googleIDToken string) (User, error) {
	if googleIDToken == "" {
		return User{}, ErrInvalidToken
	}
	postBody := url.Values{"id_token": {googleIDToken}, "providerId": {"google.com"}}.Encode()
	var resp accountResponse
	err := f.post(ctx, "accounts:signInWithIdp", map[string]any{
		"postBody":            postBody,
		"requestUri":          "http://localhost",
		"returnIdpCredential": true,
		"returnSecureToken":   true,
	}, &resp)
	if err != nil {
		return User{}, err
	}
	return f.user(resp), nil
}

func (f *Firebase) Refresh(ctx context.Context, refreshToken string) (User, error) {
	if refreshToken == "" {
		return User{}, ErrInvalidToken
	}
	form := url.Values{"grant_type": {"refresh_token"}, "refresh_token": {refreshToken}}
	endpoint := f.tokenURL + "/token?key=" + url.QueryEscape(f.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return User{}, fmt.Errorf("build refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var resp struct {
		IDToken      string `json:"id_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    string `json:"expires_in"`
	}
	if err := f.send(req, "token", &resp); err != nil {
		return User{}, err
	}
	u, err := f.Verify(ctx, resp.IDToken)
	if err != nil {
		return User{}, err
	}
	u.RefreshToken = resp.RefreshToken
	u.ExpiresAt = f.expiry(resp.ExpiresIn)
	return u, nil
}

func (f *Firebase) UpdateProfile(ctx context.Context, idToken, displayName, photoURL string) (User, error) {
	body := map[string]any{
		"idToken":           idToken,
		"returnSecureToken": true,
	}
	if displayName != "" {
		body["displayName"] = displayName
	}
	if photoURL != "" {
		body["photoUrl"] = photoURL
	}
	var resp accountResponse
	if err := f.post(ctx, "accounts:update", body, &resp); err != nil {
		return User{}, err
	}
	u := f.user(resp)
	if u.IDToken == "" {
		u.IDToken = idToken
	}
	return u, nil
}

func (f *Firebase) SendPasswordReset(ctx context.Context, email string) error {
	if err := ValidateEmail(email); err != nil {
		return err
	}
	return f.post(ctx, "accounts:sendOobCode", map[string]any{
		"requestType": "PASSWORD_RESET",
		"email":       strings.TrimSpace(email),
	}, nil)
}

// Verify looks the token up with the provider. A token the provider does not
// accept yields ErrInvalidToken.
func (f *Firebase) Verify(ctx context.Context, idToken string) (User, error) {
	if idToken == "" {
		return User{}, ErrInvalidToken
	}
	var resp struct {
		Users []accountResponse `json:"users"`
	}
	if err := f.post(ctx, "accounts:lookup", map[string]any{"idToken": idToken}, &resp); err != nil {
		return User{}, err
	}
	if len(resp.Users) == 0 {
		return User{}, ErrInvalidToken
	}
	u := f.user(resp.Users[0])
	u.IDToken = idToken
	return u, nil
}

func (f *Firebase) post(ctx context.Context, method string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode %s: %w", method, err)
	}
	endpoint := f.accountsURL + "/" + method + "?key=" + url.QueryEscape(f.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")
	return f.send(req, method, out)
}

func (f *Firebase) send(req *http.Request, method string, out any) error {
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("identity provider %s: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := providerError(resp)
		f.logger.WarnContext(req.Context(), "Identity provider rejected request",
			log.FieldOperation, method,
			log.FieldStatusCode, resp.StatusCode,
			log.FieldError, err)
		return err
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", method, err)
	}
	return nil
}

// providerError maps the provider's error codes onto the package sentinels.
func providerError(resp *http.Response) error {
	var body struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	_ = json.Unmarshal(raw, &body)

	code := body.Error.Message
	// Codes may carry a detail suffix, e.g. "WEAK_PASSWORD : Password should be ...".
	if i := strings.Index(code, " "); i > 0 {
		code = code[:i]
	}

	pe := &ProviderError{Status: resp.StatusCode, Code: code}
	switch code {
	case "EMAIL_EXISTS":
		return errors.Join(ErrEmailExists, pe)
	case "EMAIL_NOT_FOUND", "INVALID_PASSWORD", "INVALID_LOGIN_CREDENTIALS", "USER_DISABLED":
		return errors.Join(ErrInvalidCredentials, pe)
	case "INVALID_ID_TOKEN", "TOKEN_EXPIRED", "USER_NOT_FOUND", "INVALID_REFRESH_TOKEN", "CREDENTIAL_TOO_OLD_LOGIN_AGAIN":
		return errors.Join(ErrInvalidToken, pe)
	case "WEAK_PASSWORD":
		return errors.Join(ErrWeakPassword, pe)
	case "INVALID_EMAIL", "MISSING_EMAIL":
		return errors.Join(ErrInvalidEmail, pe)
	}
	return pe
}
