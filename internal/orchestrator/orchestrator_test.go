package orchestrator

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/dafibh/fortuna/fortuna-client/internal/domain"
	"github.com/dafibh/fortuna/fortuna-client/internal/ledger"
	"github.com/dafibh/fortuna/fortuna-client/internal/testutil"
	"github.com/dafibh/fortuna/fortuna-client/internal/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingPublisher captures published websocket events
type recordingPublisher struct {
	mu     sync.Mutex
	events []websocket.Event
}

func (p *recordingPublisher) Publish(event websocket.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *recordingPublisher) Types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

func newTestOrchestrator(t *testing.T) (*Orchestrator, *testutil.FakeLedger, *recordingPublisher) {
	t.Helper()
	fake := testutil.NewFakeLedger("token")
	t.Cleanup(fake.Close)
	client := ledger.NewClient(ledger.ClientConfig{BaseURL: fake.URL(), Tokens: ledger.StaticToken("token")})
	pub := &recordingPublisher{}
	return New(client, pub), fake, pub
}

func income(id int64, name, amount, date string) domain.Transaction {
	return domain.Transaction{ID: id, Name: name, Amount: decimal.RequireFromString(amount), Date: date, CategoryID: 1}
}

func TestOrchestrator_LoadTransactions_DuplicateFetchIsCoalesced(t *testing.T) {
	o, fake, _ := newTestOrchestrator(t)
	fake.SetTransactions(domain.KindIncome, income(1, "Salary", "1000", "2024-06-01"))
	arrived, release := fake.Hold("GET /incomes")

	type result struct {
		txs []domain.Transaction
		err error
	}
	results := make(chan result, 2)
	load := func() {
		txs, err := o.LoadTransactions(context.Background(), domain.KindIncome)
		results <- result{txs, err}
	}

	go load()
	<-arrived
	assert.Equal(t, StateLoading, o.Status(ResourceIncomes).State)

	go load()
	time.Sleep(50 * time.Millisecond)
	release()

	first, second := <-results, <-results
	require.NoError(t, first.err)
	require.NoError(t, second.err)
	assert.Equal(t, first.txs, second.txs)
	assert.Len(t, first.txs, 1)
	assert.Equal(t, 1, fake.CallCount("GET /incomes"))
	assert.Equal(t, StateIdle, o.Status(ResourceIncomes).State)
}

func TestOrchestrator_LoadTransactions_PublishesSnapshot(t *testing.T) {
	o, fake, pub := newTestOrchestrator(t)
	fake.SetTransactions(domain.KindExpense, income(3, "Rent", "900", "2024-06-01"))

	var got []domain.Transaction
	o.OnTransactions(domain.KindExpense, func(txs []domain.Transaction) { got = txs })
	o.OnTransactions(domain.KindIncome, func([]domain.Transaction) { t.Error("income listener must not fire") })

	_, err := o.LoadTransactions(context.Background(), domain.KindExpense)

	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Rent", got[0].Name)
	assert.Equal(t, []string{"expenses.snapshot"}, pub.Types())
	assert.True(t, o.Status(ResourceExpenses).Loaded)
}

func TestOrchestrator_DeleteTransaction_RefetchesAfterSuccess(t *testing.T) {
	o, fake, _ := newTestOrchestrator(t)
	fake.SetTransactions(domain.KindIncome,
		income(1, "Salary", "1000", "2024-06-01"),
		income(2, "Bonus", "200", "2024-06-02"),
	)

	var snapshots [][]domain.Transaction
	o.OnTransactions(domain.KindIncome, func(txs []domain.Transaction) { snapshots = append(snapshots, txs) })

	err := o.DeleteTransaction(context.Background(), domain.KindIncome, 1)

	require.NoError(t, err)
	assert.Equal(t, []string{"DELETE /incomes/1", "GET /incomes"}, fake.Keys())
	require.Len(t, snapshots, 1)
	require.Len(t, snapshots[0], 1)
	assert.Equal(t, int64(2), snapshots[0][0].ID)
}

func TestOrchestrator_CreateTransaction_RefreshesListAndTypedCategories(t *testing.T) {
	o, fake, _ := newTestOrchestrator(t)
	fake.SetCategories(domain.Category{ID: 1, Name: "Work", Type: domain.CategoryTypeIncome})
	fake.SetTransactions(domain.KindIncome, income(1, "Salary", "1000", "2024-06-01"))

	var list []domain.Transaction
	var typed []domain.Category
	o.OnTransactions(domain.KindIncome, func(txs []domain.Transaction) { list = txs })
	o.OnCategoriesByType(func(_ domain.CategoryType, c []domain.Category) { typed = c })

	created, err := o.CreateTransaction(context.Background(), domain.KindIncome, domain.TransactionPayload{
		Name: "Freelance", Amount: decimal.RequireFromString("250"), Date: "2024-06-03", CategoryID: 1,
	})

	require.NoError(t, err)
	require.NotNil(t, created)
	keys := fake.Keys()
	require.Len(t, keys, 3)
	assert.Equal(t, "POST /incomes", keys[0], "refresh happens strictly after the submit")
	assert.ElementsMatch(t, []string{"GET /incomes", "GET /categories/income"}, keys[1:])

	// the list is exactly what the refetch returned, with the server's ordering
	require.Len(t, list, 2)
	assert.Equal(t, created.ID, list[0].ID)
	assert.Equal(t, int64(1), list[1].ID)
	require.Len(t, typed, 1)
}

func TestOrchestrator_Mutation_FailureUsesFallbackAndSkipsRefresh(t *testing.T) {
	o, fake, pub := newTestOrchestrator(t)
	fake.Fail("POST /incomes", http.StatusInternalServerError, "")

	_, err := o.CreateTransaction(context.Background(), domain.KindIncome, domain.TransactionPayload{Name: "X", Amount: decimal.NewFromInt(1), Date: "2024-06-01", CategoryID: 1})

	var tErr *domain.TransportError
	require.True(t, errors.As(err, &tErr))
	assert.Equal(t, "Failed to add income", tErr.Message)
	assert.Equal(t, []string{"POST /incomes"}, fake.Keys())

	status := o.Status(ResourceIncomes)
	assert.Equal(t, StateIdle, status.State)
	assert.ErrorIs(t, status.LastError, domain.ErrTransport)
	assert.Equal(t, []string{"incomes.failed"}, pub.Types())
}

func TestOrchestrator_Mutation_ServerMessageWins(t *testing.T) {
	o, fake, _ := newTestOrchestrator(t)
	fake.Fail("DELETE /expenses/9", http.StatusNotFound, "Expense not found")

	err := o.DeleteTransaction(context.Background(), domain.KindExpense, 9)

	var tErr *domain.TransportError
	require.True(t, errors.As(err, &tErr))
	assert.Equal(t, "Expense not found", tErr.Message)
	assert.Equal(t, http.StatusNotFound, tErr.Status)
}

func TestOrchestrator_RefreshFailureAfterSuccessfulMutation(t *testing.T) {
	o, fake, _ := newTestOrchestrator(t)
	fake.SetTransactions(domain.KindExpense, income(5, "Rent", "900", "2024-06-01"))
	fake.Fail("GET /expenses", http.StatusBadGateway, "")

	err := o.DeleteTransaction(context.Background(), domain.KindExpense, 5)

	assert.ErrorIs(t, err, domain.ErrRefreshFailed)
	var tErr *domain.TransportError
	require.True(t, errors.As(err, &tErr))
	assert.Equal(t, "Failed to fetch expense details.", tErr.Message)
	assert.Equal(t, []string{"DELETE /expenses/5", "GET /expenses"}, fake.Keys())
}

func TestOrchestrator_LoadPage_LoadsBothResources(t *testing.T) {
	o, fake, _ := newTestOrchestrator(t)
	fake.SetCategories(
		domain.Category{ID: 1, Name: "Rent", Type: domain.CategoryTypeExpense},
		domain.Category{ID: 2, Name: "Work", Type: domain.CategoryTypeIncome},
	)
	fake.SetTransactions(domain.KindExpense, income(3, "Rent", "900", "2024-06-01"))

	page, err := o.LoadPage(context.Background(), domain.KindExpense)

	require.NoError(t, err)
	assert.Len(t, page.Transactions, 1)
	require.Len(t, page.Categories, 1)
	assert.Equal(t, "Rent", page.Categories[0].Name)
	assert.ElementsMatch(t, []string{"GET /expenses", "GET /categories/expense"}, fake.Keys())
}

func TestOrchestrator_LoadPage_EitherFailureSurfaces(t *testing.T) {
	o, fake, _ := newTestOrchestrator(t)
	fake.Fail("GET /categories/income", http.StatusInternalServerError, "")

	_, err := o.LoadPage(context.Background(), domain.KindIncome)

	var tErr *domain.TransportError
	require.True(t, errors.As(err, &tErr))
	assert.Equal(t, "Failed to fetch income categories", tErr.Message)
}

func TestOrchestrator_LoadCategories_FailureLeavesIdleWithError(t *testing.T) {
	o, fake, _ := newTestOrchestrator(t)
	fake.Fail("GET /categories", http.StatusInternalServerError, "")

	called := false
	o.OnCategories(func([]domain.Category) { called = true })

	_, err := o.LoadCategories(context.Background())

	require.Error(t, err)
	assert.Equal(t, "Failed to load categories", err.(*domain.TransportError).Message)
	assert.False(t, called)
	status := o.Status(ResourceCategories)
	assert.Equal(t, StateIdle, status.State)
	assert.False(t, status.Loaded)
	assert.Error(t, status.LastError)
}

func TestOrchestrator_CreateCategory_RefreshesLoadedTypedLists(t *testing.T) {
	o, fake, _ := newTestOrchestrator(t)
	ctx := context.Background()
	_, err := o.LoadCategoriesByType(ctx, domain.CategoryTypeExpense)
	require.NoError(t, err)
	fake.ResetCalls()

	var full []domain.Category
	o.OnCategories(func(c []domain.Category) { full = c })

	created, err := o.CreateCategory(ctx, domain.CategoryPayload{Name: "Food", Type: domain.CategoryTypeExpense})

	require.NoError(t, err)
	assert.Equal(t, "Food", created.Name)
	keys := fake.Keys()
	require.Len(t, keys, 3)
	assert.Equal(t, "POST /categories", keys[0])
	assert.ElementsMatch(t, []string{"GET /categories", "GET /categories/expense"}, keys[1:])
	require.Len(t, full, 1)
}

func TestOrchestrator_UpdateCategory_FallbackMessage(t *testing.T) {
	o, fake, _ := newTestOrchestrator(t)
	fake.Fail("PUT /categories/4", http.StatusInternalServerError, "")

	_, err := o.UpdateCategory(context.Background(), 4, domain.CategoryPayload{Name: "Food", Type: domain.CategoryTypeExpense})

	var tErr *domain.TransportError
	require.True(t, errors.As(err, &tErr))
	assert.Equal(t, "Failed to update the category.", tErr.Message)
}

func TestOrchestrator_LoadDashboard(t *testing.T) {
	o, fake, pub := newTestOrchestrator(t)
	fake.SetDashboard(domain.DashboardSummary{TotalBalance: decimal.NewFromInt(10), TotalIncome: decimal.NewFromInt(30), TotalExpense: decimal.NewFromInt(20)})

	var got *domain.DashboardSummary
	o.OnDashboard(func(s *domain.DashboardSummary) { got = s })

	summary, err := o.LoadDashboard(context.Background())

	require.NoError(t, err)
	assert.True(t, summary.TotalBalance.Equal(decimal.NewFromInt(10)))
	assert.Same(t, summary, got)
	assert.Equal(t, []string{"dashboard.snapshot"}, pub.Types())
}

func TestOrchestrator_LoadDashboard_Fallback(t *testing.T) {
	o, fake, _ := newTestOrchestrator(t)
	fake.Fail("GET /dashboard", http.StatusInternalServerError, "")

	_, err := o.LoadDashboard(context.Background())

	assert.EqualError(t, err, "Something went wrong! (status 500)")
}

func TestOrchestrator_Filter(t *testing.T) {
	o, fake, pub := newTestOrchestrator(t)
	fake.SetTransactions(domain.KindIncome,
		income(1, "Salary", "1000", "2024-06-01"),
		income(2, "Bonus", "200", "2024-06-02"),
	)

	txs, err := o.Filter(context.Background(), domain.Filter{Type: "incomes", Keyword: "bon"})

	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, "Bonus", txs[0].Name)
	assert.Empty(t, pub.Types(), "filter results are not snapshots")
}

func TestOrchestrator_Filter_InvalidTypeMakesNoCall(t *testing.T) {
	o, fake, _ := newTestOrchestrator(t)

	_, err := o.Filter(context.Background(), domain.Filter{Type: "transfers"})

	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Empty(t, fake.Calls())
}

func TestOrchestrator_CallerCancellationDoesNotAbortSharedFetch(t *testing.T) {
	o, fake, _ := newTestOrchestrator(t)
	arrived, release := fake.Hold("GET /expenses")

	var got []domain.Transaction
	done := make(chan struct{})
	o.OnTransactions(domain.KindExpense, func(txs []domain.Transaction) {
		got = txs
		close(done)
	})

	ctx, cancel := context.WithCancel(context.Background())
	errs := make(chan error, 1)
	go func() {
		_, err := o.LoadTransactions(ctx, domain.KindExpense)
		errs <- err
	}()
	<-arrived
	cancel()
	assert.ErrorIs(t, <-errs, context.Canceled)

	release()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("shared fetch was not published")
	}
	assert.NotNil(t, got)
}

// stubLedger serves scripted list responses; the first ListTransactions call
// blocks until release is closed
type stubLedger struct {
	Ledger

	mu      sync.Mutex
	calls   int
	entered chan struct{}
	release chan struct{}
}

func (s *stubLedger) ListTransactions(ctx context.Context, kind domain.Kind) ([]domain.Transaction, error) {
	s.mu.Lock()
	s.calls++
	n := s.calls
	s.mu.Unlock()

	if n == 1 {
		close(s.entered)
		<-s.release
		return []domain.Transaction{{ID: 1, Name: "stale"}}, nil
	}
	return []domain.Transaction{{ID: 2, Name: "fresh"}}, nil
}

func (s *stubLedger) DeleteTransaction(ctx context.Context, kind domain.Kind, id int64) error {
	return nil
}

func TestOrchestrator_StaleFetchNeverOverwritesRefetch(t *testing.T) {
	stub := &stubLedger{entered: make(chan struct{}), release: make(chan struct{})}
	o := New(stub, nil)

	var latest []domain.Transaction
	var mu sync.Mutex
	o.OnTransactions(domain.KindIncome, func(txs []domain.Transaction) {
		mu.Lock()
		latest = txs
		mu.Unlock()
	})

	oldDone := make(chan []domain.Transaction, 1)
	go func() {
		txs, _ := o.LoadTransactions(context.Background(), domain.KindIncome)
		oldDone <- txs
	}()
	<-stub.entered

	require.NoError(t, o.DeleteTransaction(context.Background(), domain.KindIncome, 1))
	close(stub.release)

	// the early caller still gets its own response
	assert.Equal(t, "stale", (<-oldDone)[0].Name)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, latest, 1)
	assert.Equal(t, "fresh", latest[0].Name)
}

func TestOrchestrator_Snapshots_ReplaysLoadedResourcesInOrder(t *testing.T) {
	o, fake, pub := newTestOrchestrator(t)
	fake.SetTransactions(domain.KindIncome, income(1, "Salary", "1000", "2024-06-01"))

	assert.Empty(t, o.Snapshots())

	_, err := o.LoadDashboard(context.Background())
	require.NoError(t, err)
	_, err = o.LoadTransactions(context.Background(), domain.KindIncome)
	require.NoError(t, err)

	snaps := o.Snapshots()
	require.Len(t, snaps, 2)
	assert.Equal(t, string(ResourceIncomes), snaps[0].Resource)
	assert.Equal(t, string(ResourceDashboard), snaps[1].Resource)

	// replayed events keep the timestamp they were published with
	pub.mu.Lock()
	defer pub.mu.Unlock()
	assert.Equal(t, pub.events[1].Timestamp, snaps[0].Timestamp)
	assert.Equal(t, pub.events[0].Timestamp, snaps[1].Timestamp)
}

func TestOrchestrator_Snapshots_FailedFetchKeepsLastGood(t *testing.T) {
	o, fake, _ := newTestOrchestrator(t)
	fake.SetTransactions(domain.KindExpense, income(3, "Rent", "900", "2024-06-01"))

	_, err := o.LoadTransactions(context.Background(), domain.KindExpense)
	require.NoError(t, err)

	fake.Fail("GET /expenses", http.StatusInternalServerError, "")
	_, err = o.LoadTransactions(context.Background(), domain.KindExpense)
	require.Error(t, err)

	snaps := o.Snapshots()
	require.Len(t, snaps, 1)
	txs, ok := snaps[0].Payload.([]domain.Transaction)
	require.True(t, ok)
	assert.Equal(t, "Rent", txs[0].Name)
}

func TestOrchestrator_Refresh(t *testing.T) {
	tests := []struct {
		resource string
		key      string
	}{
		{"categories", "GET /categories"},
		{"categories:income", "GET /categories/income"},
		{"categories:expense", "GET /categories/expense"},
		{"incomes", "GET /incomes"},
		{"expenses", "GET /expenses"},
		{"dashboard", "GET /dashboard"},
	}

	for _, tt := range tests {
		t.Run(tt.resource, func(t *testing.T) {
			o, fake, pub := newTestOrchestrator(t)

			require.NoError(t, o.Refresh(context.Background(), tt.resource))
			assert.Equal(t, 1, fake.CallCount(tt.key))
			require.Len(t, pub.events, 1)
			assert.Equal(t, tt.resource, pub.events[0].Resource)
		})
	}
}

func TestOrchestrator_Refresh_UnknownResource(t *testing.T) {
	o, fake, _ := newTestOrchestrator(t)

	err := o.Refresh(context.Background(), "payees")

	var vErr *domain.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "resource", vErr.Field)
	assert.Empty(t, fake.Calls())
}

func TestOrchestrator_Reset_ForgetsSnapshots(t *testing.T) {
	o, fake, _ := newTestOrchestrator(t)
	fake.SetTransactions(domain.KindIncome, income(1, "Salary", "1000", "2024-06-01"))

	_, err := o.LoadTransactions(context.Background(), domain.KindIncome)
	require.NoError(t, err)
	require.Len(t, o.Snapshots(), 1)

	o.Reset()

	assert.Empty(t, o.Snapshots())
	assert.False(t, o.Status(ResourceIncomes).Loaded)

	_, err = o.LoadTransactions(context.Background(), domain.KindIncome)
	require.NoError(t, err)
	assert.Len(t, o.Snapshots(), 1)
}

func TestOrchestrator_Reset_DropsFetchInFlight(t *testing.T) {
	o, fake, pub := newTestOrchestrator(t)
	fake.SetTransactions(domain.KindIncome, income(1, "Salary", "1000", "2024-06-01"))
	arrived, release := fake.Hold("GET /incomes")

	done := make(chan error, 1)
	go func() {
		_, err := o.LoadTransactions(context.Background(), domain.KindIncome)
		done <- err
	}()
	<-arrived

	o.Reset()
	release()

	require.NoError(t, <-done)
	assert.Empty(t, o.Snapshots())
	assert.Empty(t, pub.Types())
	assert.False(t, o.Status(ResourceIncomes).Loaded)
}
