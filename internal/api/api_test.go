package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/client"
	"fintrack/internal/core"
	"fintrack/internal/identity"
	"fintrack/internal/services"
	"fintrack/internal/storage/memory"
)

type testEnv struct {
	srv      *httptest.Server
	provider *identity.Memory
	client   *client.Client
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	provider := identity.NewMemory(time.Hour)
	svc := services.NewTransactionService(memory.New(), nil, nil)

	s, err := New(Options{Service: svc, Provider: provider})
	require.NoError(t, err)
	srv := httptest.NewServer(s.Handler)
	t.Cleanup(func() {
		srv.Close()
		_ = s.Shutdown(context.Background())
	})

	return &testEnv{
		srv:      srv,
		provider: provider,
		client:   client.New(srv.URL),
	}
}

func (e *testEnv) signUp(t *testing.T, email string) identity.User {
	t.Helper()
	u, err := e.client.SignUp(context.Background(), email, "Secret1", "Tester")
	require.NoError(t, err)
	require.NotEmpty(t, u.IDToken)
	return u
}

func (e *testEnv) request(t *testing.T, method, path, token, body string) (*http.Response, string) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, e.srv.URL+path, reader)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(raw)
}

func sample(category string, amount float64) core.Transaction {
	return core.Transaction{
		Type:        core.TypeExpense,
		Category:    category,
		Amount:      core.Amount(amount),
		Description: "groceries",
		Date:        core.NewDate(2024, time.March, 5),
	}
}

func TestNew_RequiresServiceAndVerifier(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)

	svc := services.NewTransactionService(memory.New(), nil, nil)
	_, err = New(Options{Service: svc})
	assert.Error(t, err)
}

func TestClientRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.signUp(t, "ann@example.com")

	id, err := env.client.Create(ctx, sample("Food", 12.5), u.IDToken)
	require.NoError(t, err)
	require.NotEmpty(t, id)
	_, err = env.client.Create(ctx, sample("Food", 7.5), u.IDToken)
	require.NoError(t, err)

	detail, err := env.client.Get(ctx, id, u.IDToken)
	require.NoError(t, err)
	assert.Equal(t, id, detail.Transaction.ID)
	assert.Equal(t, "Food", detail.Transaction.Category)
	assert.Equal(t, core.Amount(12.5), detail.Transaction.Amount)
	assert.Equal(t, "2024-03-05", detail.Transaction.Date.String())
	assert.Equal(t, "ann@example.com", detail.Transaction.OwnerEmail)
	assert.Equal(t, "Tester", detail.Transaction.OwnerName)
	assert.Equal(t, core.Amount(20), detail.CategoryTotal)

	records, err := env.client.List(ctx, u.Email, u.IDToken)
	require.NoError(t, err)
	assert.Len(t, records, 2)

	update := detail.Transaction.Update()
	update.Amount = 30
	require.NoError(t, env.client.Update(ctx, id, update, u.IDToken))

	overview, err := env.client.Overview(ctx, u.IDToken)
	require.NoError(t, err)
	assert.Equal(t, core.Amount(37.5), overview.TotalExpense)
	assert.Equal(t, core.Amount(-37.5), overview.TotalBalance)

	require.NoError(t, env.client.Delete(ctx, id, u.IDToken))
	_, err = env.client.Get(ctx, id, u.IDToken)
	assert.True(t, client.IsStatus(err, http.StatusNotFound))
}

func TestCreateOverwritesOwner(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.signUp(t, "ann@example.com")

	tx := sample("Food", 1)
	tx.OwnerEmail = "mallory@example.com"
	tx.OwnerName = "Mallory"
	id, err := env.client.Create(ctx, tx, u.IDToken)
	require.NoError(t, err)

	detail, err := env.client.Get(ctx, id, u.IDToken)
	require.NoError(t, err)
	assert.Equal(t, "ann@example.com", detail.Transaction.OwnerEmail)
}

func TestAuthRequired(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"unknown token", "Bearer nope", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := http.NewRequest(http.MethodGet, env.srv.URL+"/totalOverview", nil)
			require.NoError(t, err)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, tt.want, resp.StatusCode)
			var body messageResponse
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.NotEmpty(t, body.Message)
		})
	}
}

func TestBearerSchemeIsCaseInsensitive(t *testing.T) {
	env := newTestEnv(t)
	u := env.signUp(t, "ann@example.com")

	req, err := http.NewRequest(http.MethodGet, env.srv.URL+"/totalOverview", nil)
	require.NoError(t, err)
	req.Header.Set("authorization", "bearer "+u.IDToken)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCrossOwnerAccessIsForbidden(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ann := env.signUp(t, "ann@example.com")
	bob := env.signUp(t, "bob@example.com")

	id, err := env.client.Create(ctx, sample("Food", 5), ann.IDToken)
	require.NoError(t, err)

	_, err = env.client.Get(ctx, id, bob.IDToken)
	assert.True(t, client.IsStatus(err, http.StatusForbidden))

	err = env.client.Delete(ctx, id, bob.IDToken)
	assert.True(t, client.IsStatus(err, http.StatusForbidden))

	_, err = env.client.List(ctx, ann.Email, bob.IDToken)
	assert.True(t, client.IsStatus(err, http.StatusForbidden))

	records, err := env.client.List(ctx, ann.Email, ann.IDToken)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestListRequiresEmail(t *testing.T) {
	env := newTestEnv(t)
	u := env.signUp(t, "ann@example.com")

	resp, _ := env.request(t, http.MethodGet, "/my-transactions", u.IDToken, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestListEmptyIsArray(t *testing.T) {
	env := newTestEnv(t)
	u := env.signUp(t, "ann@example.com")

	resp, body := env.request(t, http.MethodGet, "/my-transactions?email=ann@example.com", u.IDToken, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `[]`, body)
}

func TestValidationErrors(t *testing.T) {
	env := newTestEnv(t)
	u := env.signUp(t, "ann@example.com")

	tests := []struct {
		name string
		body string
		want int
	}{
		{"unknown type", `{"type":"transfer","category":"Food","amount":1,"date":"2024-01-01"}`, http.StatusUnprocessableEntity},
		{"negative amount", `{"type":"expense","category":"Food","amount":-1,"date":"2024-01-01"}`, http.StatusUnprocessableEntity},
		{"non numeric amount", `{"type":"expense","category":"Food","amount":"abc","date":"2024-01-01"}`, http.StatusUnprocessableEntity},
		{"bad date", `{"type":"expense","category":"Food","amount":1,"date":"yesterday"}`, http.StatusUnprocessableEntity},
		{"empty category", `{"type":"income","category":" ","amount":1,"date":"2024-01-01"}`, http.StatusUnprocessableEntity},
		{"not json", `{`, http.StatusBadRequest},
		{"empty body", ``, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, _ := env.request(t, http.MethodPost, "/transactions", u.IDToken, tt.body)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

func TestLegacyExpenseSpellingAccepted(t *testing.T) {
	env := newTestEnv(t)
	u := env.signUp(t, "ann@example.com")

	resp, body := env.request(t, http.MethodPost, "/transactions", u.IDToken,
		`{"type":"expanse","category":"Food","amount":"4.20","date":"2024-01-01"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out insertedResponse
	require.NoError(t, json.Unmarshal([]byte(body), &out))
	detail, err := env.client.Get(context.Background(), out.InsertedID, u.IDToken)
	require.NoError(t, err)
	assert.Equal(t, core.TypeExpense, detail.Transaction.Type)
	assert.Equal(t, core.Amount(4.2), detail.Transaction.Amount)
}

func TestPartialUpdateKeepsOmittedFields(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.signUp(t, "ann@example.com")

	id, err := env.client.Create(ctx, sample("Food", 10), u.IDToken)
	require.NoError(t, err)

	resp, body := env.request(t, http.MethodPut, "/transaction/"+id, u.IDToken, `{"category":"Rent"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"message":"Transaction updated successfully"}`, body)

	detail, err := env.client.Get(ctx, id, u.IDToken)
	require.NoError(t, err)
	assert.Equal(t, "Rent", detail.Transaction.Category)
	assert.Equal(t, core.Amount(10), detail.Transaction.Amount)
	assert.Equal(t, "groceries", detail.Transaction.Description)
	assert.Equal(t, "2024-03-05", detail.Transaction.Date.String())

	resp, _ = env.request(t, http.MethodPut, "/transaction/"+id, u.IDToken, `{"date":"never"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestUnknownIDIsNotFound(t *testing.T) {
	env := newTestEnv(t)
	u := env.signUp(t, "ann@example.com")

	for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodDelete} {
		body := ""
		if method == http.MethodPut {
			body = `{"amount":1}`
		}
		resp, _ := env.request(t, method, "/transaction/missing", u.IDToken, body)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, method)
	}
}

func TestAuthRelay(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.signUp(t, "ann@example.com")

	signedIn, err := env.client.SignIn(ctx, "ann@example.com", "Secret1")
	require.NoError(t, err)
	assert.Equal(t, u.UID, signedIn.UID)
	assert.False(t, signedIn.ExpiresAt.IsZero())

	_, err = env.client.SignIn(ctx, "ann@example.com", "Wrong1")
	assert.True(t, client.IsStatus(err, http.StatusUnauthorized))

	_, err = env.client.SignUp(ctx, "ann@example.com", "Secret1", "")
	assert.True(t, client.IsStatus(err, http.StatusConflict))

	refreshed, err := env.client.Refresh(ctx, signedIn.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, signedIn.IDToken, refreshed.IDToken)

	require.NoError(t, env.client.SendPasswordReset(ctx, "ann@example.com"))
	assert.Equal(t, []string{"ann@example.com"}, env.provider.PasswordResets())
}

func TestAuthRelayRejectsWeakPassword(t *testing.T) {
	env := newTestEnv(t)

	payload, err := json.Marshal(map[string]string{"email": "ann@example.com", "password": "short"})
	require.NoError(t, err)
	resp, err := http.Post(env.srv.URL+"/auth/signup", "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestHealthReadyMetrics(t *testing.T) {
	env := newTestEnv(t)

	resp, _ := env.request(t, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := env.request(t, http.MethodGet, "/readyz", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `"ready"`)

	resp, body = env.request(t, http.MethodGet, "/metrics", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "http_requests_total")
	assert.Contains(t, body, `transactions_mutations_total{op="created"} 0`)
}

func TestResponsesCarryRequestID(t *testing.T) {
	env := newTestEnv(t)

	req, err := http.NewRequest(http.MethodGet, env.srv.URL+"/healthz", nil)
	require.NoError(t, err)
	req.Header.Set("X-Request-ID", "web_abc123")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "web_abc123", resp.Header.Get("X-Request-ID"))
}
