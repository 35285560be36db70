// Package orchestrator drives every fetch and mutation against the ledger service.
//
// Each list is a resource with its own Idle/Loading state. Duplicate fetches of a
// resource share one network call. A successful mutation is always followed by a
// fresh fetch of the affected lists, and the fetched snapshot replaces whatever
// subscribers held before; snapshots are never patched locally.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dafibh/fortuna/fortuna-client/internal/domain"
	"github.com/dafibh/fortuna/fortuna-client/internal/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// Ledger is the subset of the ledger client the orchestrator drives
type Ledger interface {
	ListCategories(ctx context.Context) ([]domain.Category, error)
	ListCategoriesByType(ctx context.Context, t domain.CategoryType) ([]domain.Category, error)
	CreateCategory(ctx context.Context, p domain.CategoryPayload) (*domain.Category, error)
	UpdateCategory(ctx context.Context, id int64, p domain.CategoryPayload) (*domain.Category, error)
	ListTransactions(ctx context.Context, kind domain.Kind) ([]domain.Transaction, error)
	CreateTransaction(ctx context.Context, kind domain.Kind, p domain.TransactionPayload) (*domain.Transaction, error)
	DeleteTransaction(ctx context.Context, kind domain.Kind, id int64) error
	FilterTransactions(ctx context.Context, f domain.Filter) ([]domain.Transaction, error)
	Dashboard(ctx context.Context) (*domain.DashboardSummary, error)
}

// Resource names one independently loaded collection
type Resource string

const (
	ResourceCategories        Resource = "categories"
	ResourceIncomeCategories  Resource = "categories:income"
	ResourceExpenseCategories Resource = "categories:expense"
	ResourceIncomes           Resource = "incomes"
	ResourceExpenses          Resource = "expenses"
	ResourceDashboard         Resource = "dashboard"
)

// CategoriesResource returns the typed category resource for t
func CategoriesResource(t domain.CategoryType) Resource {
	return Resource("categories:" + string(t))
}

// TransactionsResource returns the list resource for kind
func TransactionsResource(kind domain.Kind) Resource {
	return Resource(kind.Plural())
}

func (r Resource) entity() websocket.EntityType {
	switch r {
	case ResourceIncomes:
		return websocket.EntityTypeIncomes
	case ResourceExpenses:
		return websocket.EntityTypeExpenses
	case ResourceDashboard:
		return websocket.EntityTypeDashboard
	}
	return websocket.EntityTypeCategories
}

// State is the lifecycle of a resource
type State string

const (
	StateIdle    State = "idle"
	StateLoading State = "loading"
)

// Status is a point-in-time view of one resource
type Status struct {
	State     State `json:"state"`
	InFlight  int   `json:"inFlight"`
	Loaded    bool  `json:"loaded"`
	LastError error `json:"-"`
}

type resourceState struct {
	inFlight  int
	lastErr   error
	loaded    bool
	started   uint64
	published uint64
	snapshot  *websocket.Event
}

// resources in the order they are replayed to a new connection
var allResources = []Resource{
	ResourceCategories,
	ResourceIncomeCategories,
	ResourceExpenseCategories,
	ResourceIncomes,
	ResourceExpenses,
	ResourceDashboard,
}

// Orchestrator coordinates ledger calls and publishes fresh snapshots.
// Listeners run synchronously on the fetching goroutine and must not call back
// into the Orchestrator.
type Orchestrator struct {
	ledger    Ledger
	publisher websocket.EventPublisher
	logger    zerolog.Logger

	flights singleflight.Group

	mu        sync.Mutex
	resources map[Resource]*resourceState

	lmu                sync.RWMutex
	categoryListeners  []func([]domain.Category)
	typedListeners     []func(domain.CategoryType, []domain.Category)
	txListeners        map[domain.Kind][]func([]domain.Transaction)
	dashboardListeners []func(*domain.DashboardSummary)
}

// New creates a new Orchestrator. A nil publisher disables snapshot push.
func New(ledger Ledger, publisher websocket.EventPublisher) *Orchestrator {
	if publisher == nil {
		publisher = &websocket.NoOpPublisher{}
	}
	return &Orchestrator{
		ledger:      ledger,
		publisher:   publisher,
		logger:      log.With().Str("component", "orchestrator").Logger(),
		resources:   make(map[Resource]*resourceState),
		txListeners: make(map[domain.Kind][]func([]domain.Transaction)),
	}
}

// Status returns the current state of res
func (o *Orchestrator) Status(res Resource) Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	st, ok := o.resources[res]
	if !ok {
		return Status{State: StateIdle}
	}
	state := StateIdle
	if st.inFlight > 0 {
		state = StateLoading
	}
	return Status{State: state, InFlight: st.inFlight, Loaded: st.loaded, LastError: st.lastErr}
}

// OnCategories subscribes to full category list snapshots
func (o *Orchestrator) OnCategories(fn func([]domain.Category)) {
	o.lmu.Lock()
	defer o.lmu.Unlock()
	o.categoryListeners = append(o.categoryListeners, fn)
}

// OnCategoriesByType subscribes to typed category list snapshots
func (o *Orchestrator) OnCategoriesByType(fn func(domain.CategoryType, []domain.Category)) {
	o.lmu.Lock()
	defer o.lmu.Unlock()
	o.typedListeners = append(o.typedListeners, fn)
}

// OnTransactions subscribes to snapshots of one transaction partition
func (o *Orchestrator) OnTransactions(kind domain.Kind, fn func([]domain.Transaction)) {
	o.lmu.Lock()
	defer o.lmu.Unlock()
	o.txListeners[kind] = append(o.txListeners[kind], fn)
}

// OnDashboard subscribes to dashboard summary snapshots
func (o *Orchestrator) OnDashboard(fn func(*domain.DashboardSummary)) {
	o.lmu.Lock()
	defer o.lmu.Unlock()
	o.dashboardListeners = append(o.dashboardListeners, fn)
}

func (o *Orchestrator) state(res Resource) *resourceState {
	st, ok := o.resources[res]
	if !ok {
		st = &resourceState{}
		o.resources[res] = st
	}
	return st
}

// begin marks res as loading and returns the sequence number of the new request
func (o *Orchestrator) begin(res Resource) uint64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	st := o.state(res)
	st.inFlight++
	st.started++
	return st.started
}

// finishFetch records the outcome of a fetch. It reports whether the result is
// the newest one seen for res; an older fetch completing late must not be published.
// A fresh result's snapshot event is kept for replay.
func (o *Orchestrator) finishFetch(res Resource, seq uint64, err error, snapshot websocket.Event) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	st := o.state(res)
	st.inFlight--
	st.lastErr = err
	if err != nil || seq < st.published {
		return false
	}
	st.loaded = true
	st.published = seq
	st.snapshot = &snapshot
	return true
}

// Snapshots returns the last published snapshot event of every loaded resource
func (o *Orchestrator) Snapshots() []websocket.Event {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]websocket.Event, 0, len(allResources))
	for _, res := range allResources {
		if st, ok := o.resources[res]; ok && st.snapshot != nil {
			out = append(out, *st.snapshot)
		}
	}
	return out
}

// Refresh fetches the named resource again. The result is published like any
// other fetch.
func (o *Orchestrator) Refresh(ctx context.Context, resource string) error {
	var err error
	switch res := Resource(resource); res {
	case ResourceCategories:
		_, err = o.LoadCategories(ctx)
	case ResourceIncomeCategories:
		_, err = o.LoadCategoriesByType(ctx, domain.CategoryTypeIncome)
	case ResourceExpenseCategories:
		_, err = o.LoadCategoriesByType(ctx, domain.CategoryTypeExpense)
	case ResourceIncomes:
		_, err = o.LoadTransactions(ctx, domain.KindIncome)
	case ResourceExpenses:
		_, err = o.LoadTransactions(ctx, domain.KindExpense)
	case ResourceDashboard:
		_, err = o.LoadDashboard(ctx)
	default:
		return domain.NewValidationError("resource", fmt.Sprintf("unknown resource %q", resource))
	}
	return err
}

// Reset forgets every snapshot, e.g. when the session ends. Fetches still in
// flight finish but are never published.
func (o *Orchestrator) Reset() {
	o.mu.Lock()
	defer o.mu.Unlock()
	for res, st := range o.resources {
		o.flights.Forget(string(res))
		st.loaded = false
		st.lastErr = nil
		st.snapshot = nil
		st.published = st.started + 1
	}
}

// finishMutation records the outcome of a submit. Mutations never publish.
func (o *Orchestrator) finishMutation(res Resource, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	st := o.state(res)
	st.inFlight--
	st.lastErr = err
}

func (o *Orchestrator) isLoaded(res Resource) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	st, ok := o.resources[res]
	return ok && st.loaded
}

// fail normalizes err into a TransportError carrying fallback when the server sent
// no message, logs it and pushes a failure event
func (o *Orchestrator) fail(res Resource, op, fallback string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var tErr *domain.TransportError
	if errors.As(err, &tErr) {
		tErr = tErr.WithFallback(fallback)
	} else {
		tErr = &domain.TransportError{Message: fallback, Err: err}
	}

	o.logger.Warn().
		Err(err).
		Str("resource", string(res)).
		Str("op", op).
		Int("status", tErr.Status).
		Msg("Ledger call failed")

	o.publisher.Publish(websocket.Failed(res.entity(), string(res), tErr.Message))
	return tErr
}

// fetch runs call for res, coalescing with a fetch of res already in flight.
// The shared call outlives the caller's cancellation; the caller stops waiting on ctx.Done.
func fetch[T any](ctx context.Context, o *Orchestrator, res Resource, fallback string, call func(context.Context) (T, error), publish func(T)) (T, error) {
	shared := context.WithoutCancel(ctx)
	ch := o.flights.DoChan(string(res), func() (interface{}, error) {
		seq := o.begin(res)
		v, err := call(shared)
		if err != nil {
			err = o.fail(res, "fetch", fallback, err)
		}
		var evt websocket.Event
		if err == nil {
			evt = websocket.Snapshot(res.entity(), string(res), v)
		}
		if fresh := o.finishFetch(res, seq, err, evt); fresh {
			publish(v)
			o.publisher.Publish(evt)
		}
		return v, err
	})

	var zero T
	select {
	case r := <-ch:
		if r.Err != nil {
			return zero, r.Err
		}
		return r.Val.(T), nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// mutate submits one create/update/delete against res
func (o *Orchestrator) mutate(ctx context.Context, res Resource, op, fallback string, call func(context.Context) error) error {
	o.begin(res)
	err := call(ctx)
	if err != nil {
		err = o.fail(res, op, fallback, err)
	}
	o.finishMutation(res, err)
	return err
}

// refresh drops any in-flight fetch of res so the next fetch starts after the
// mutation's response, then performs it
func refresh[T any](ctx context.Context, o *Orchestrator, res Resource, load func(context.Context) (T, error)) error {
	o.flights.Forget(string(res))
	if _, err := load(ctx); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrRefreshFailed, err)
	}
	return nil
}
