package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/google/uuid"

	"fintrack/internal/core"
	"fintrack/internal/storage"
)

// Store keeps transactions in process memory, in insertion order.
type Store struct {
	mu    sync.RWMutex
	items []core.Transaction
}

var _ storage.Repository = (*Store)(nil)

func New() *Store {
	return &Store{}
}

// NewFromFile seeds the store with a JSON array of transactions. A missing
// file yields an empty store.
func NewFromFile(path string) (*Store, error) {
	s := New()
	if path == "" {
		return s, nil
	}
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	var seed []core.Transaction
	if err := json.Unmarshal(raw, &seed); err != nil {
		return nil, fmt.Errorf("parse seed file %s: %w", path, err)
	}
	for _, tx := range seed {
		if tx.ID == "" {
			tx.ID = uuid.NewString()
		}
		s.items = append(s.items, tx)
	}
	return s, nil
}

func (s *Store) Insert(_ context.Context, tx core.Transaction) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx.ID = uuid.NewString()
	s.items = append(s.items, tx)
	return tx, nil
}

func (s *Store) Get(_ context.Context, id string) (core.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.indexLocked(id)
	if i < 0 {
		return core.Transaction{}, storage.ErrNotFound
	}
	return s.items[i], nil
}

func (s *Store) Update(_ context.Context, id string, u core.TransactionUpdate) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexLocked(id)
	if i < 0 {
		return core.Transaction{}, storage.ErrNotFound
	}
	s.items[i] = s.items[i].Apply(u)
	return s.items[i], nil
}

func (s *Store) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexLocked(id)
	if i < 0 {
		return storage.ErrNotFound
	}
	s.items = append(s.items[:i], s.items[i+1:]...)
	return nil
}

func (s *Store) ListByOwner(_ context.Context, email string) ([]core.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []core.Transaction{}
	for _, tx := range s.items {
		if tx.OwnerEmail == email {
			out = append(out, tx)
		}
	}
	return out, nil
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }

func (s *Store) indexLocked(id string) int {
	for i, tx := range s.items {
		if tx.ID == id {
			return i
		}
	}
	return -1
}
