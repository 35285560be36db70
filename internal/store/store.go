// Package store holds the locally cached income and expense snapshots.
package store

import (
	"context"
	"sync"
	"time"

	"github.com/dafibh/fortuna/fortuna-client/internal/domain"
	"github.com/dafibh/fortuna/fortuna-client/internal/validation"
)

// Orchestrator is the part of the orchestrator a Store depends on
type Orchestrator interface {
	LoadTransactions(ctx context.Context, kind domain.Kind) ([]domain.Transaction, error)
	CreateTransaction(ctx context.Context, kind domain.Kind, p domain.TransactionPayload) (*domain.Transaction, error)
	DeleteTransaction(ctx context.Context, kind domain.Kind, id int64) error
	Filter(ctx context.Context, f domain.Filter) ([]domain.Transaction, error)
	OnTransactions(kind domain.Kind, fn func([]domain.Transaction))
}

// Store is the snapshot of one transaction partition, kept in server order
type Store struct {
	kind domain.Kind
	orch Orchestrator
	now  func() time.Time

	mu  sync.RWMutex
	txs []domain.Transaction
}

// Option configures a Store
type Option func(*Store)

// WithClock overrides the source of "today" used by validation
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// New creates the Store for kind, subscribed to orch
func New(kind domain.Kind, orch Orchestrator, opts ...Option) *Store {
	s := &Store{
		kind: kind,
		orch: orch,
		now:  time.Now,
		txs:  []domain.Transaction{},
	}
	for _, opt := range opts {
		opt(s)
	}
	orch.OnTransactions(kind, s.replace)
	return s
}

func (s *Store) replace(txs []domain.Transaction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txs = txs
}

// Kind returns the partition this store holds
func (s *Store) Kind() domain.Kind {
	return s.kind
}

// List returns the snapshot exactly as the server ordered it
func (s *Store) List() []domain.Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Transaction{}, s.txs...)
}

// Load refreshes the snapshot
func (s *Store) Load(ctx context.Context) ([]domain.Transaction, error) {
	return s.orch.LoadTransactions(ctx, s.kind)
}

// Add validates in and submits it. The snapshot changes only through the refetch that follows.
func (s *Store) Add(ctx context.Context, in domain.TransactionInput) (*domain.Transaction, error) {
	payload, err := validation.ValidateTransaction(in, s.now())
	if err != nil {
		return nil, err
	}
	return s.orch.CreateTransaction(ctx, s.kind, payload)
}

// Remove deletes a record by id
func (s *Store) Remove(ctx context.Context, id int64) error {
	if id == 0 {
		return domain.NewValidationError("id", "Transaction ID is required")
	}
	return s.orch.DeleteTransaction(ctx, s.kind, id)
}

// Filter asks the server for a filtered view of this partition. The snapshot is untouched.
func (s *Store) Filter(ctx context.Context, f domain.Filter) ([]domain.Transaction, error) {
	f.Type = s.kind
	return s.orch.Filter(ctx, f)
}
