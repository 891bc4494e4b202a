package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"fintrack/internal/core"
	ports "fintrack/internal/sheets"
)

type appendCall struct {
	path   string
	query  string
	values [][]any
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := New(context.Background(), Config{SpreadsheetID: "sheet-1", SheetName: "Journal"}, nil,
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithoutAuthentication(),
		goption.WithHTTPClient(srv.Client()),
	)
	require.NoError(t, err)
	return c
}

func TestAppendRowsGroupsByYear(t *testing.T) {
	var (
		mu    sync.Mutex
		calls []appendCall
	)
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var vr gsheet.ValueRange
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&vr))
		mu.Lock()
		calls = append(calls, appendCall{path: r.URL.Path, query: r.URL.RawQuery, values: vr.Values})
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"spreadsheetId":"sheet-1"}`))
	})

	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	err := c.AppendRows(context.Background(), []ports.JournalRow{
		{Date: core.NewDate(2023, time.December, 30), Op: "created", TransactionID: "a", Type: core.TypeIncome, Amount: 10, RecordedAt: now},
		{Date: core.NewDate(2024, time.January, 2), Op: "created", TransactionID: "b", Type: core.TypeExpense, Amount: 5, RecordedAt: now},
		{Date: core.NewDate(2024, time.January, 3), Op: "deleted", TransactionID: "c", Type: core.TypeExpense, Amount: 7, RecordedAt: now},
	})
	require.NoError(t, err)

	require.Len(t, calls, 2)
	assert.Contains(t, calls[0].path, "sheet-1")
	assert.Contains(t, calls[0].path, "2023 Journal!A:I:append")
	assert.Len(t, calls[0].values, 1)
	assert.Contains(t, calls[1].path, "2024 Journal!A:I:append")
	assert.Len(t, calls[1].values, 2)
	assert.True(t, strings.Contains(calls[1].query, "valueInputOption=USER_ENTERED"))
	assert.True(t, strings.Contains(calls[1].query, "insertDataOption=INSERT_ROWS"))
	assert.Equal(t, "b", calls[1].values[0][2])
}

func TestAppendRowsEmptyIsNoop(t *testing.T) {
	called := false
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})
	require.NoError(t, c.AppendRows(context.Background(), nil))
	assert.False(t, called)
}

func TestAppendRowsServerError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":{"code":403,"message":"denied"}}`))
	})
	err := c.AppendRows(context.Background(), []ports.JournalRow{
		{Date: core.NewDate(2024, time.January, 2), TransactionID: "b"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2024 Journal")
}

func TestNewRequiresSpreadsheet(t *testing.T) {
	_, err := New(context.Background(), Config{}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GOOGLE_SPREADSHEET_ID")
}

func TestNewRequiresCredentials(t *testing.T) {
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")
	_, err := New(context.Background(), Config{SpreadsheetID: "x"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing service account credentials")
}
