package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	"fintrack/internal/identity"
	"fintrack/internal/storage/memory"
)

type fakePublisher struct {
	mu     sync.Mutex
	events []*amqp.TransactionEvent
	err    error
}

func (p *fakePublisher) PublishTransactionEvent(_ context.Context, ev *amqp.TransactionEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

var (
	alice = identity.User{UID: "1", Email: "alice@example.com", DisplayName: "Alice"}
	bob   = identity.User{UID: "2", Email: "bob@example.com"}
)

func newTx(typ core.Type, category string, amount core.Amount) core.Transaction {
	return core.Transaction{
		Type:     typ,
		Category: category,
		Amount:   amount,
		Date:     core.NewDate(2024, time.March, 10),
	}
}

func newService(t *testing.T) (*TransactionService, *fakePublisher) {
	t.Helper()
	pub := &fakePublisher{}
	return NewTransactionService(memory.New(), pub, nil), pub
}

func TestCreateOverwritesOwner(t *testing.T) {
	svc, pub := newService(t)
	ctx := context.Background()

	tx := newTx(core.TypeExpense, "food", 10)
	tx.OwnerEmail = "mallory@example.com"
	tx.OwnerName = "Mallory"

	created, err := svc.Create(ctx, alice, tx)
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, alice.Email, created.OwnerEmail)
	assert.Equal(t, "Alice", created.OwnerName)

	require.Len(t, pub.events, 1)
	assert.Equal(t, amqp.OpCreated, pub.events[0].Op)
	assert.Equal(t, created.ID, pub.events[0].Transaction.ID)
}

func TestCreateValidation(t *testing.T) {
	svc, pub := newService(t)

	_, err := svc.Create(context.Background(), alice, newTx(core.TypeExpense, "", 10))
	require.Error(t, err)
	assert.True(t, IsValidation(err))
	assert.Empty(t, pub.events)
}

func TestListRejectsOtherEmail(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	_, err := svc.Create(ctx, alice, newTx(core.TypeIncome, "salary", 100))
	require.NoError(t, err)

	_, err = svc.List(ctx, bob, alice.Email)
	assert.ErrorIs(t, err, ErrForbidden)

	got, err := svc.List(ctx, alice, "ALICE@example.com")
	require.NoError(t, err)
	assert.Len(t, got, 1)

	got, err = svc.List(ctx, bob, bob.Email)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestGetReturnsCategoryTotal(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	first, err := svc.Create(ctx, alice, newTx(core.TypeExpense, "food", 10))
	require.NoError(t, err)
	_, err = svc.Create(ctx, alice, newTx(core.TypeExpense, "food", 5.5))
	require.NoError(t, err)
	_, err = svc.Create(ctx, alice, newTx(core.TypeExpense, "Food", 100))
	require.NoError(t, err)
	_, err = svc.Create(ctx, bob, newTx(core.TypeExpense, "food", 1000))
	require.NoError(t, err)

	detail, err := svc.Get(ctx, alice, first.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, detail.Transaction.ID)
	assert.InDelta(t, 15.5, float64(detail.CategoryTotal), 1e-9)
}

func TestOwnershipChecks(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	tx, err := svc.Create(ctx, alice, newTx(core.TypeExpense, "food", 10))
	require.NoError(t, err)

	_, err = svc.Get(ctx, bob, tx.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = svc.Update(ctx, bob, tx.ID, tx.Update())
	assert.ErrorIs(t, err, ErrForbidden)

	assert.ErrorIs(t, svc.Delete(ctx, bob, tx.ID), ErrForbidden)

	_, err = svc.Get(ctx, alice, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateAndDelete(t *testing.T) {
	svc, pub := newService(t)
	ctx := context.Background()
	tx, err := svc.Create(ctx, alice, newTx(core.TypeExpense, "food", 10))
	require.NoError(t, err)

	u := tx.Update()
	u.Amount = 42
	u.Category = "rent"
	updated, err := svc.Update(ctx, alice, tx.ID, u)
	require.NoError(t, err)
	assert.Equal(t, core.Amount(42), updated.Amount)
	assert.Equal(t, "rent", updated.Category)
	assert.Equal(t, alice.Email, updated.OwnerEmail)

	u.Type = core.TypeUnknown
	_, err = svc.Update(ctx, alice, tx.ID, u)
	assert.True(t, IsValidation(err))

	require.NoError(t, svc.Delete(ctx, alice, tx.ID))
	_, err = svc.Get(ctx, alice, tx.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	require.Len(t, pub.events, 3)
	assert.Equal(t, amqp.OpUpdated, pub.events[1].Op)
	assert.Equal(t, amqp.OpDeleted, pub.events[2].Op)
	assert.Equal(t, "rent", pub.events[2].Transaction.Category)
}

func TestPublishFailureDoesNotFailMutation(t *testing.T) {
	pub := &fakePublisher{err: errors.New("broker down")}
	svc := NewTransactionService(memory.New(), pub, nil)

	_, err := svc.Create(context.Background(), alice, newTx(core.TypeIncome, "salary", 100))
	assert.NoError(t, err)
}

func TestOverview(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	for _, tx := range []core.Transaction{
		newTx(core.TypeIncome, "salary", 1000),
		newTx(core.TypeExpense, "rent", 400),
		newTx(core.TypeExpense, "food", 100),
	} {
		_, err := svc.Create(ctx, alice, tx)
		require.NoError(t, err)
	}
	_, err := svc.Create(ctx, bob, newTx(core.TypeIncome, "salary", 5))
	require.NoError(t, err)

	ov, err := svc.Overview(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, core.Amount(1000), ov.TotalIncome)
	assert.Equal(t, core.Amount(500), ov.TotalExpense)
	assert.Equal(t, core.Amount(500), ov.TotalBalance)
}

func TestNilPublisher(t *testing.T) {
	svc := NewTransactionService(memory.New(), nil, nil)
	_, err := svc.Create(context.Background(), alice, newTx(core.TypeIncome, "salary", 1))
	assert.NoError(t, err)
	assert.NoError(t, svc.Ready(context.Background()))
	assert.NoError(t, svc.Close())
}
