package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	"fintrack/internal/identity"
	"fintrack/internal/log"
	"fintrack/internal/report"
	"fintrack/internal/storage"
)

var (
	// ErrForbidden means the record or list belongs to another user.
	ErrForbidden = errors.New("forbidden")
	ErrNotFound  = storage.ErrNotFound
)

// EventPublisher receives an event after every successful mutation.
type EventPublisher interface {
	PublishTransactionEvent(ctx context.Context, ev *amqp.TransactionEvent) error
}

// TransactionService enforces ownership over a repository and emits events.
// Every method acts on behalf of an authenticated caller.
type TransactionService struct {
	repo   storage.Repository
	events EventPublisher
	logger *log.Logger
}

// NewTransactionService wires the service. events may be nil.
func NewTransactionService(repo storage.Repository, events EventPublisher, logger *log.Logger) *TransactionService {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	logger = logger.WithComponent(log.ComponentLedger)
	return &TransactionService{
		repo:   repo,
		events: events,
		logger: logger,
	}
}

// IsValidation reports whether err is a record validation failure.
func IsValidation(err error) bool {
	for _, target := range []error{
		core.ErrInvalidType, core.ErrEmptyCategory, core.ErrInvalidAmount,
		core.ErrInvalidDate, core.ErrDescriptionTooLong,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func owns(caller identity.User, tx core.Transaction) bool {
	return strings.EqualFold(tx.OwnerEmail, caller.Email)
}

// List returns the records of email, which must be the caller's own address.
func (s *TransactionService) List(ctx context.Context, caller identity.User, email string) ([]core.Transaction, error) {
	if !strings.EqualFold(strings.TrimSpace(email), caller.Email) {
		return nil, ErrForbidden
	}
	return s.repo.ListByOwner(ctx, caller.Email)
}

// Create stores tx owned by the caller, whatever owner fields it carried.
func (s *TransactionService) Create(ctx context.Context, caller identity.User, tx core.Transaction) (core.Transaction, error) {
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}
	tx.OwnerEmail = caller.Email
	tx.OwnerName = caller.Name()

	created, err := s.repo.Insert(ctx, tx)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("save transaction: %w", err)
	}
	s.emit(ctx, amqp.OpCreated, created)
	return created, nil
}

// Get returns the record and the total of the caller's records in the same
// category, matched exactly.
func (s *TransactionService) Get(ctx context.Context, caller identity.User, id string) (core.Detail, error) {
	tx, err := s.owned(ctx, caller, id)
	if err != nil {
		return core.Detail{}, err
	}
	all, err := s.repo.ListByOwner(ctx, caller.Email)
	if err != nil {
		return core.Detail{}, fmt.Errorf("list transactions: %w", err)
	}
	return core.Detail{
		Transaction:   tx,
		CategoryTotal: report.CategoryTotal(all, tx.Category),
	}, nil
}

func (s *TransactionService) Update(ctx context.Context, caller identity.User, id string, u core.TransactionUpdate) (core.Transaction, error) {
	if err := u.Validate(); err != nil {
		return core.Transaction{}, err
	}
	if _, err := s.owned(ctx, caller, id); err != nil {
		return core.Transaction{}, err
	}
	updated, err := s.repo.Update(ctx, id, u)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction: %w", err)
	}
	s.emit(ctx, amqp.OpUpdated, updated)
	return updated, nil
}

func (s *TransactionService) Delete(ctx context.Context, caller identity.User, id string) error {
	tx, err := s.owned(ctx, caller, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	s.emit(ctx, amqp.OpDeleted, tx)
	return nil
}

// Overview totals all of the caller's records.
func (s *TransactionService) Overview(ctx context.Context, caller identity.User) (core.Overview, error) {
	all, err := s.repo.ListByOwner(ctx, caller.Email)
	if err != nil {
		return core.Overview{}, fmt.Errorf("list transactions: %w", err)
	}
	return report.Totals(all), nil
}

func (s *TransactionService) owned(ctx context.Context, caller identity.User, id string) (core.Transaction, error) {
	tx, err := s.repo.Get(ctx, id)
	if err != nil {
		return core.Transaction{}, err
	}
	if !owns(caller, tx) {
		return core.Transaction{}, ErrForbidden
	}
	return tx, nil
}

// emit publishes best-effort: the mutation is already stored.
func (s *TransactionService) emit(ctx context.Context, op amqp.EventOp, tx core.Transaction) {
	s.logger.TransactionEvent(ctx, string(op), tx.ID, tx.Type.String(), tx.Category, float64(tx.Amount), tx.OwnerEmail)

	if s.events == nil {
		return
	}
	if err := s.events.PublishTransactionEvent(ctx, amqp.NewTransactionEvent(op, tx)); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish transaction event",
			log.FieldTransactionID, tx.ID,
			log.FieldOperation, string(op),
			log.FieldError, err)
	}
}

// Ready checks the repository.
func (s *TransactionService) Ready(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

// Close closes the repository.
func (s *TransactionService) Close() error {
	if s.repo == nil {
		return nil
	}
	if err := s.repo.Close(); err != nil {
		return fmt.Errorf("close repository: %w", err)
	}
	return nil
}
