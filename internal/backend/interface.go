// Package backend assembles the ledger service over the configured storage
// and, optionally, the AMQP event publisher.
package backend

import (
	"context"

	"fintrack/internal/services"
)

type CleanupFunc func() error

// BackendResult is a ready ledger service. Cleanup releases the storage and
// the event publisher and must be called once the service is unused.
type BackendResult struct {
	Service *services.TransactionService
	Cleanup CleanupFunc
}

type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

type Config struct {
	Type BackendType

	SQLiteDBPath   string
	PostgresURL    string
	MemorySeedFile string

	// Events are published only when AMQPURL is set.
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
}

// BackendType names a storage implementation.
type BackendType string

const (
	MemoryBackend   BackendType = "memory"
	SQLiteBackend   BackendType = "sqlite"
	PostgresBackend BackendType = "postgres"
)

var backendTypes = []BackendType{MemoryBackend, SQLiteBackend, PostgresBackend}

func (bt BackendType) String() string {
	return string(bt)
}

func (bt BackendType) IsValid() bool {
	for _, known := range backendTypes {
		if bt == known {
			return true
		}
	}
	return false
}
