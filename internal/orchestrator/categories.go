package orchestrator

import (
	"context"

	"github.com/dafibh/fortuna/fortuna-client/internal/domain"
	"golang.org/x/sync/errgroup"
)

const (
	fallbackLoadCategories   = "Failed to load categories"
	fallbackAddCategory      = "Failed to add category."
	fallbackUpdateCategory   = "Failed to update the category."
	fallbackLoadTypedPattern = "Failed to fetch %s categories"
)

// LoadCategories fetches GET /categories and publishes the list
func (o *Orchestrator) LoadCategories(ctx context.Context) ([]domain.Category, error) {
	return fetch(ctx, o, ResourceCategories, fallbackLoadCategories, o.ledger.ListCategories, o.publishCategories)
}

// LoadCategoriesByType fetches GET /categories/{type} and publishes the list
func (o *Orchestrator) LoadCategoriesByType(ctx context.Context, t domain.CategoryType) ([]domain.Category, error) {
	if !t.Valid() {
		return nil, domain.NewValidationError("type", "Category type must be income or expense")
	}
	call := func(ctx context.Context) ([]domain.Category, error) {
		return o.ledger.ListCategoriesByType(ctx, t)
	}
	publish := func(categories []domain.Category) {
		o.publishTyped(t, categories)
	}
	return fetch(ctx, o, CategoriesResource(t), typedFallback(t), call, publish)
}

// CreateCategory submits an already validated category, then re-fetches the category lists.
// A refresh failure is reported as domain.ErrRefreshFailed alongside the created category.
func (o *Orchestrator) CreateCategory(ctx context.Context, p domain.CategoryPayload) (*domain.Category, error) {
	var created *domain.Category
	err := o.mutate(ctx, ResourceCategories, "create_category", fallbackAddCategory, func(ctx context.Context) error {
		var err error
		created, err = o.ledger.CreateCategory(ctx, p)
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, o.refreshCategories(ctx)
}

// UpdateCategory submits an already validated update, then re-fetches the category lists
func (o *Orchestrator) UpdateCategory(ctx context.Context, id int64, p domain.CategoryPayload) (*domain.Category, error) {
	var updated *domain.Category
	err := o.mutate(ctx, ResourceCategories, "update_category", fallbackUpdateCategory, func(ctx context.Context) error {
		var err error
		updated, err = o.ledger.UpdateCategory(ctx, id, p)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, o.refreshCategories(ctx)
}

// refreshCategories re-fetches the full list and every typed list that has been loaded before
func (o *Orchestrator) refreshCategories(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return refresh(gctx, o, ResourceCategories, o.LoadCategories)
	})
	for _, t := range []domain.CategoryType{domain.CategoryTypeIncome, domain.CategoryTypeExpense} {
		if !o.isLoaded(CategoriesResource(t)) {
			continue
		}
		t := t
		g.Go(func() error {
			return refresh(gctx, o, CategoriesResource(t), func(ctx context.Context) ([]domain.Category, error) {
				return o.LoadCategoriesByType(ctx, t)
			})
		})
	}
	return g.Wait()
}

func (o *Orchestrator) publishCategories(categories []domain.Category) {
	o.lmu.RLock()
	defer o.lmu.RUnlock()
	for _, fn := range o.categoryListeners {
		fn(categories)
	}
}

func (o *Orchestrator) publishTyped(t domain.CategoryType, categories []domain.Category) {
	o.lmu.RLock()
	defer o.lmu.RUnlock()
	for _, fn := range o.typedListeners {
		fn(t, categories)
	}
}
