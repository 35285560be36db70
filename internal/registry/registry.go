// Package registry holds the locally cached category snapshots.
package registry

import (
	"context"
	"sync"

	"github.com/dafibh/fortuna/fortuna-client/internal/domain"
	"github.com/dafibh/fortuna/fortuna-client/internal/validation"
)

// Orchestrator is the part of the orchestrator the registry depends on
type Orchestrator interface {
	LoadCategories(ctx context.Context) ([]domain.Category, error)
	LoadCategoriesByType(ctx context.Context, t domain.CategoryType) ([]domain.Category, error)
	CreateCategory(ctx context.Context, p domain.CategoryPayload) (*domain.Category, error)
	UpdateCategory(ctx context.Context, id int64, p domain.CategoryPayload) (*domain.Category, error)
	OnCategories(fn func([]domain.Category))
	OnCategoriesByType(fn func(domain.CategoryType, []domain.Category))
}

// Registry is the category snapshot cache. Snapshots change only when the
// orchestrator publishes a fresh fetch.
type Registry struct {
	orch Orchestrator

	mu     sync.RWMutex
	all    []domain.Category
	byType map[domain.CategoryType][]domain.Category
}

// New creates a Registry subscribed to orch
func New(orch Orchestrator) *Registry {
	r := &Registry{
		orch:   orch,
		all:    []domain.Category{},
		byType: make(map[domain.CategoryType][]domain.Category),
	}
	orch.OnCategories(r.replaceAll)
	orch.OnCategoriesByType(r.replaceTyped)
	return r
}

func (r *Registry) replaceAll(categories []domain.Category) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.all = categories
}

func (r *Registry) replaceTyped(t domain.CategoryType, categories []domain.Category) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byType[t] = categories
}

// List returns the full snapshot in server order
func (r *Registry) List() []domain.Category {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]domain.Category{}, r.all...)
}

// ListByType returns the typed snapshot when one has been loaded, else the
// matching entries of the full snapshot
func (r *Registry) ListByType(t domain.CategoryType) []domain.Category {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if typed, ok := r.byType[t]; ok {
		return append([]domain.Category{}, typed...)
	}
	out := []domain.Category{}
	for _, c := range r.all {
		if c.Type == t {
			out = append(out, c)
		}
	}
	return out
}

// Get looks a category up by id in the full snapshot
func (r *Registry) Get(id int64) (domain.Category, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.all {
		if c.ID == id {
			return c, true
		}
	}
	return domain.Category{}, false
}

// Load refreshes the full snapshot
func (r *Registry) Load(ctx context.Context) ([]domain.Category, error) {
	return r.orch.LoadCategories(ctx)
}

// LoadByType refreshes one typed snapshot
func (r *Registry) LoadByType(ctx context.Context, t domain.CategoryType) ([]domain.Category, error) {
	return r.orch.LoadCategoriesByType(ctx, t)
}

// Add validates in against the full snapshot and submits it. A validation
// failure returns before any network call.
func (r *Registry) Add(ctx context.Context, in domain.CategoryInput) (*domain.Category, error) {
	payload, err := validation.ValidateCategory(in, r.List())
	if err != nil {
		return nil, err
	}
	return r.orch.CreateCategory(ctx, payload)
}

// Update submits an edit of category id. An empty type keeps the cached one.
func (r *Registry) Update(ctx context.Context, id int64, in domain.CategoryInput) (*domain.Category, error) {
	if in.Type == "" {
		if current, ok := r.Get(id); ok {
			in.Type = current.Type
		}
	}
	payload, err := validation.ValidateCategoryUpdate(id, in)
	if err != nil {
		return nil, err
	}
	return r.orch.UpdateCategory(ctx, id, payload)
}
