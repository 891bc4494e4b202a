package backend

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/config"
	"fintrack/internal/core"
	"fintrack/internal/identity"
)

func TestFromAppConfig(t *testing.T) {
	cfg, err := FromAppConfig(&config.Config{DataBackend: "sqlite", SQLiteDBPath: "x.db", AMQPURL: "amqp://h/"})
	require.NoError(t, err)
	assert.Equal(t, SQLiteBackend, cfg.Type)
	assert.Equal(t, "x.db", cfg.SQLiteDBPath)
	assert.Equal(t, "amqp://h/", cfg.AMQPURL)

	_, err = FromAppConfig(&config.Config{DataBackend: "sheets"})
	assert.ErrorContains(t, err, `invalid backend type "sheets": must be one of memory, sqlite, postgres`)

	_, err = FromAppConfig(nil)
	assert.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"memory", Config{Type: MemoryBackend}, false},
		{"sqlite without path", Config{Type: SQLiteBackend}, true},
		{"postgres without url", Config{Type: PostgresBackend}, true},
		{"postgres", Config{Type: PostgresBackend, PostgresURL: "postgres://localhost/db"}, false},
		{"amqp without queue", Config{Type: MemoryBackend, AMQPURL: "amqp://h/", AMQPExchange: "x"}, true},
		{"unknown", Config{Type: "sheets"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestGetBackendTypeStrings(t *testing.T) {
	assert.Equal(t, []string{"memory", "sqlite", "postgres"}, GetBackendTypeStrings())
}

func exerciseService(t *testing.T, res *BackendResult) {
	t.Helper()
	ctx := context.Background()
	caller := identity.User{Email: "a@b.co"}
	created, err := res.Service.Create(ctx, caller, core.Transaction{
		Type:     core.TypeIncome,
		Category: "salary",
		Amount:   10,
		Date:     core.NewDate(2024, time.January, 1),
	})
	require.NoError(t, err)

	list, err := res.Service.List(ctx, caller, caller.Email)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, created.ID, list[0].ID)
	require.NoError(t, res.Service.Ready(ctx))
}

func TestCreateMemoryBackend(t *testing.T) {
	res, err := NewFactory(nil).CreateBackend(context.Background(), Config{Type: MemoryBackend})
	require.NoError(t, err)
	defer res.Cleanup()
	exerciseService(t, res)
}

func TestCreateSQLiteBackend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fintrack.db")
	res, err := NewFactory(nil).CreateBackend(context.Background(), Config{Type: SQLiteBackend, SQLiteDBPath: path})
	require.NoError(t, err)
	exerciseService(t, res)
	assert.NoError(t, res.Cleanup())
}

func TestCreateBackendInvalid(t *testing.T) {
	_, err := NewFactory(nil).CreateBackend(context.Background(), Config{Type: "sheets"})
	assert.Error(t, err)
}

func TestNewIdentityProvider(t *testing.T) {
	p, err := NewIdentityProvider(&config.Config{IdentityBackend: "memory"}, nil)
	require.NoError(t, err)
	_, ok := p.(*identity.Memory)
	assert.True(t, ok)

	p, err = NewIdentityProvider(&config.Config{IdentityBackend: "firebase", FirebaseAPIKey: "key"}, nil)
	require.NoError(t, err)
	_, ok = p.(*identity.Firebase)
	assert.True(t, ok)

	_, err = NewIdentityProvider(&config.Config{IdentityBackend: "firebase"}, nil)
	assert.Error(t, err)

	_, err = NewIdentityProvider(&config.Config{IdentityBackend: "ldap"}, nil)
	assert.Error(t, err)
}
