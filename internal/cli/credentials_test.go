package cli

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/identity"
)

func TestCredentialStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "credentials.json")
	store := NewCredentialStore(path)

	_, _, err := store.Load()
	assert.ErrorIs(t, err, ErrNotLoggedIn)

	u := identity.User{
		UID:          "u1",
		Email:        "ana@example.com",
		DisplayName:  "Ana",
		IDToken:      "id-token",
		RefreshToken: "refresh-token",
		ExpiresAt:    time.Date(2024, time.May, 1, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, store.Save(u, "http://localhost:8082"))

	got, apiURL, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, u.Email, got.Email)
	assert.Equal(t, u.IDToken, got.IDToken)
	assert.Equal(t, u.RefreshToken, got.RefreshToken)
	assert.True(t, u.ExpiresAt.Equal(got.ExpiresAt))
	assert.Equal(t, "http://localhost:8082", apiURL)

	if runtime.GOOS != "windows" {
		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	}

	require.NoError(t, store.Delete())
	require.NoError(t, store.Delete())
	_, _, err = store.Load()
	assert.ErrorIs(t, err, ErrNotLoggedIn)
}

func TestCredentialStore_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, _, err := NewCredentialStore(path).Load()
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotLoggedIn)
}

func TestSwatch(t *testing.T) {
	assert.Empty(t, Swatch("#fff", 0))
	assert.Contains(t, Swatch("#fff", 3), "███")
}
