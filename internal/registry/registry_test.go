package registry

import (
	"context"
	"net/http"
	"testing"

	"github.com/dafibh/fortuna/fortuna-client/internal/domain"
	"github.com/dafibh/fortuna/fortuna-client/internal/ledger"
	"github.com/dafibh/fortuna/fortuna-client/internal/orchestrator"
	"github.com/dafibh/fortuna/fortuna-client/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T, categories ...domain.Category) (*Registry, *testutil.FakeLedger) {
	t.Helper()
	fake := testutil.NewFakeLedger("token")
	t.Cleanup(fake.Close)
	fake.SetCategories(categories...)
	client := ledger.NewClient(ledger.ClientConfig{BaseURL: fake.URL(), Tokens: ledger.StaticToken("token")})
	return New(orchestrator.New(client, nil)), fake
}

func TestRegistry_Load_ServerOrder(t *testing.T) {
	reg, _ := newTestRegistry(t,
		domain.Category{ID: 3, Name: "Rent", Type: domain.CategoryTypeExpense},
		domain.Category{ID: 1, Name: "Salary", Type: domain.CategoryTypeIncome},
	)
	assert.Empty(t, reg.List())

	_, err := reg.Load(context.Background())

	require.NoError(t, err)
	list := reg.List()
	require.Len(t, list, 2)
	assert.Equal(t, int64(3), list[0].ID)
	assert.Equal(t, int64(1), list[1].ID)
}

func TestRegistry_Add_DuplicateMakesNoCall(t *testing.T) {
	reg, fake := newTestRegistry(t, domain.Category{ID: 1, Name: "Food", Type: domain.CategoryTypeExpense})
	_, err := reg.Load(context.Background())
	require.NoError(t, err)
	fake.ResetCalls()

	_, err = reg.Add(context.Background(), domain.CategoryInput{Name: "  food ", Type: domain.CategoryTypeExpense})

	var vErr *domain.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "Category name already exists", vErr.Reason)
	assert.Empty(t, fake.Calls())
}

func TestRegistry_Add_EmptyNameMakesNoCall(t *testing.T) {
	reg, fake := newTestRegistry(t)

	_, err := reg.Add(context.Background(), domain.CategoryInput{Name: "   ", Type: domain.CategoryTypeIncome})

	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Empty(t, fake.Calls())
}

func TestRegistry_Add_RefreshesSnapshot(t *testing.T) {
	reg, fake := newTestRegistry(t, domain.Category{ID: 1, Name: "Food", Type: domain.CategoryTypeExpense})

	created, err := reg.Add(context.Background(), domain.CategoryInput{Name: " Travel ", Type: domain.CategoryTypeExpense, Icon: "plane"})

	require.NoError(t, err)
	assert.Equal(t, "Travel", created.Name)
	assert.Equal(t, []string{"POST /categories", "GET /categories"}, fake.Keys())
	list := reg.List()
	require.Len(t, list, 2)
	assert.Equal(t, "Travel", list[1].Name)
	got, ok := reg.Get(created.ID)
	require.True(t, ok)
	assert.Equal(t, "plane", got.Icon)
}

func TestRegistry_Add_ServerRejection(t *testing.T) {
	reg, fake := newTestRegistry(t)
	fake.Fail("POST /categories", http.StatusConflict, "Category with this name already exists")

	_, err := reg.Add(context.Background(), domain.CategoryInput{Name: "Food", Type: domain.CategoryTypeExpense})

	var tErr *domain.TransportError
	require.ErrorAs(t, err, &tErr)
	assert.Equal(t, "Category with this name already exists", tErr.Message)
	assert.Empty(t, reg.List())
}

func TestRegistry_ListByType(t *testing.T) {
	reg, _ := newTestRegistry(t,
		domain.Category{ID: 1, Name: "Food", Type: domain.CategoryTypeExpense},
		domain.Category{ID: 2, Name: "Salary", Type: domain.CategoryTypeIncome},
	)
	ctx := context.Background()

	_, err := reg.Load(ctx)
	require.NoError(t, err)
	derived := reg.ListByType(domain.CategoryTypeIncome)
	require.Len(t, derived, 1)
	assert.Equal(t, "Salary", derived[0].Name)

	_, err = reg.LoadByType(ctx, domain.CategoryTypeExpense)
	require.NoError(t, err)
	typed := reg.ListByType(domain.CategoryTypeExpense)
	require.Len(t, typed, 1)
	assert.Equal(t, "Food", typed[0].Name)
}

func TestRegistry_Get_Missing(t *testing.T) {
	reg, _ := newTestRegistry(t)

	_, ok := reg.Get(42)

	assert.False(t, ok)
}

func TestRegistry_Update_MissingIDMakesNoCall(t *testing.T) {
	reg, fake := newTestRegistry(t)

	_, err := reg.Update(context.Background(), 0, domain.CategoryInput{Name: "Food"})

	var vErr *domain.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "Category ID is missing for update", vErr.Reason)
	assert.Empty(t, fake.Calls())
}

func TestRegistry_Update_KeepsCachedType(t *testing.T) {
	reg, fake := newTestRegistry(t, domain.Category{ID: 1, Name: "Food", Type: domain.CategoryTypeExpense})
	_, err := reg.Load(context.Background())
	require.NoError(t, err)

	updated, err := reg.Update(context.Background(), 1, domain.CategoryInput{Name: "Groceries"})

	require.NoError(t, err)
	assert.Equal(t, domain.CategoryTypeExpense, updated.Type)
	assert.Equal(t, "Groceries", reg.List()[0].Name)
	assert.Equal(t, 1, fake.CallCount("PUT /categories/1"))
}
