package orchestrator

import (
	"context"
	"fmt"

	"github.com/dafibh/fortuna/fortuna-client/internal/domain"
	"golang.org/x/sync/errgroup"
)

const fallbackFilter = "Something went wrong while fetching the data"

func typedFallback(t domain.CategoryType) string {
	return fmt.Sprintf(fallbackLoadTypedPattern, t)
}

func listFallback(kind domain.Kind) string {
	return fmt.Sprintf("Failed to fetch %s details.", kind)
}

func addFallback(kind domain.Kind) string {
	return fmt.Sprintf("Failed to add %s", kind)
}

func deleteFallback(kind domain.Kind) string {
	return fmt.Sprintf("Failed to delete %s", kind)
}

// LoadTransactions fetches GET /incomes or GET /expenses and publishes the list
func (o *Orchestrator) LoadTransactions(ctx context.Context, kind domain.Kind) ([]domain.Transaction, error) {
	call := func(ctx context.Context) ([]domain.Transaction, error) {
		return o.ledger.ListTransactions(ctx, kind)
	}
	publish := func(txs []domain.Transaction) {
		o.publishTransactions(kind, txs)
	}
	return fetch(ctx, o, TransactionsResource(kind), listFallback(kind), call, publish)
}

// CreateTransaction submits an already validated record. On success both the
// kind's list and its typed category list are re-fetched.
func (o *Orchestrator) CreateTransaction(ctx context.Context, kind domain.Kind, p domain.TransactionPayload) (*domain.Transaction, error) {
	res := TransactionsResource(kind)
	var created *domain.Transaction
	err := o.mutate(ctx, res, "create_"+string(kind), addFallback(kind), func(ctx context.Context) error {
		var err error
		created, err = o.ledger.CreateTransaction(ctx, kind, p)
		return err
	})
	if err != nil {
		return nil, err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return refresh(gctx, o, res, func(ctx context.Context) ([]domain.Transaction, error) {
			return o.LoadTransactions(ctx, kind)
		})
	})
	g.Go(func() error {
		return refresh(gctx, o, CategoriesResource(kind.CategoryType()), func(ctx context.Context) ([]domain.Category, error) {
			return o.LoadCategoriesByType(ctx, kind.CategoryType())
		})
	})
	return created, g.Wait()
}

// DeleteTransaction removes a record by id, then re-fetches the kind's list
func (o *Orchestrator) DeleteTransaction(ctx context.Context, kind domain.Kind, id int64) error {
	res := TransactionsResource(kind)
	err := o.mutate(ctx, res, "delete_"+string(kind), deleteFallback(kind), func(ctx context.Context) error {
		return o.ledger.DeleteTransaction(ctx, kind, id)
	})
	if err != nil {
		return err
	}
	return refresh(ctx, o, res, func(ctx context.Context) ([]domain.Transaction, error) {
		return o.LoadTransactions(ctx, kind)
	})
}

// PageData is what an income or expense page needs on mount
type PageData struct {
	Transactions []domain.Transaction
	Categories   []domain.Category
}

// LoadPage loads a kind's transactions and its typed categories concurrently.
// The two finish in either order; the first failure is returned.
func (o *Orchestrator) LoadPage(ctx context.Context, kind domain.Kind) (*PageData, error) {
	var page PageData
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		txs, err := o.LoadTransactions(gctx, kind)
		page.Transactions = txs
		return err
	})
	g.Go(func() error {
		categories, err := o.LoadCategoriesByType(gctx, kind.CategoryType())
		page.Categories = categories
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &page, nil
}

// Filter runs a server-side filter. The result is returned only; no snapshot changes.
func (o *Orchestrator) Filter(ctx context.Context, f domain.Filter) ([]domain.Transaction, error) {
	kind, err := domain.ParseKind(string(f.Type))
	if err != nil {
		return nil, domain.NewValidationError("type", "Please select income or expense")
	}
	f.Type = kind

	txs, err := o.ledger.FilterTransactions(ctx, f)
	if err != nil {
		return nil, o.fail(TransactionsResource(kind), "filter", fallbackFilter, err)
	}
	return txs, nil
}

func (o *Orchestrator) publishTransactions(kind domain.Kind, txs []domain.Transaction) {
	o.lmu.RLock()
	defer o.lmu.RUnlock()
	for _, fn := range o.txListeners[kind] {
		fn(txs)
	}
}
