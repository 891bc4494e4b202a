package storage

import (
	"context"
	"errors"

	"fintrack/internal/core"
)

// ErrNotFound is returned when no record has the requested id.
var ErrNotFound = errors.New("transaction not found")

// Repository persists transactions. Implementations assign ids on Insert and
// keep ListByOwner in insertion order.
type Repository interface {
	Insert(ctx context.Context, tx core.Transaction) (core.Transaction, error)
	Get(ctx context.Context, id string) (core.Transaction, error)
	Update(ctx context.Context, id string, u core.TransactionUpdate) (core.Transaction, error)
	Delete(ctx context.Context, id string) error
	ListByOwner(ctx context.Context, email string) ([]core.Transaction, error)
	Ping(ctx context.Context) error
	Close() error
}
