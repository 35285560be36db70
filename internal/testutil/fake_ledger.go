// Package testutil provides an in-memory ledger service for tests.
package testutil

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"

	"github.com/dafibh/fortuna/fortuna-client/internal/domain"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

// Call is one request received by the fake ledger
type Call struct {
	Method string
	Path   string
	Token  string
}

// Key returns "METHOD /path"
func (c Call) Key() string {
	return c.Method + " " + c.Path
}

type failure struct {
	status  int
	message string
}

// FakeLedger is an echo-backed stand-in for the ledger service. It keeps its
// data in memory and records every call.
type FakeLedger struct {
	Server *httptest.Server
	Token  string

	mu         sync.Mutex
	calls      []Call
	categories []domain.Category
	incomes    []domain.Transaction
	expenses   []domain.Transaction
	dashboard  domain.DashboardSummary
	user       domain.User
	nextID     int64
	failures   map[string]failure
	gates      map[string]chan struct{}
	arrivals   map[string]chan struct{}
}

// NewFakeLedger starts a fake ledger accepting the given bearer token.
// An empty token disables the credential check.
func NewFakeLedger(token string) *FakeLedger {
	f := &FakeLedger{
		Token:    token,
		nextID:   100,
		failures: make(map[string]failure),
		gates:    make(map[string]chan struct{}),
		arrivals: make(map[string]chan struct{}),
		user:     domain.User{ID: 1, FullName: "Test User", Email: "test@example.com"},
		dashboard: domain.DashboardSummary{
			TotalBalance: decimal.Zero,
			TotalIncome:  decimal.Zero,
			TotalExpense: decimal.Zero,
		},
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(f.record)

	e.POST("/login", f.login)
	e.GET("/profile", f.profile)
	e.GET("/categories", f.listCategories)
	e.GET("/categories/:type", f.listCategoriesByType)
	e.POST("/categories", f.createCategory)
	e.PUT("/categories/:id", f.updateCategory)
	e.GET("/:kind", f.listTransactions)
	e.POST("/:kind", f.createTransaction)
	e.DELETE("/:kind/:id", f.deleteTransaction)
	e.POST("/filter", f.filter)
	e.GET("/dashboard", f.getDashboard)
	e.GET("/excel/download/:kind", f.download)
	e.GET("/excel/email/:kind", f.email)

	f.Server = httptest.NewServer(e)
	return f
}

// URL returns the base URL of the fake ledger
func (f *FakeLedger) URL() string {
	return f.Server.URL
}

// Close shuts the server down, releasing any held gates
func (f *FakeLedger) Close() {
	f.mu.Lock()
	for key, gate := range f.gates {
		close(gate)
		delete(f.gates, key)
	}
	f.mu.Unlock()
	f.Server.Close()
}

// SetCategories replaces the stored categories
func (f *FakeLedger) SetCategories(categories ...domain.Category) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.categories = append([]domain.Category(nil), categories...)
}

// SetTransactions replaces the stored income or expense records
func (f *FakeLedger) SetTransactions(kind domain.Kind, txs ...domain.Transaction) {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := append([]domain.Transaction(nil), txs...)
	if kind == domain.KindIncome {
		f.incomes = copied
	} else {
		f.expenses = copied
	}
}

// SetDashboard replaces the dashboard summary
func (f *FakeLedger) SetDashboard(summary domain.DashboardSummary) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dashboard = summary
}

// Fail makes every request matching key (e.g. "GET /profile") answer with status.
// An empty message sends an empty body. A zero status clears the failure.
func (f *FakeLedger) Fail(key string, status int, message string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if status == 0 {
		delete(f.failures, key)
		return
	}
	f.failures[key] = failure{status: status, message: message}
}

// Hold blocks requests matching key until the returned release func is called.
// The arrived channel receives once per blocked request.
func (f *FakeLedger) Hold(key string) (arrived <-chan struct{}, release func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	gate := make(chan struct{})
	arr := make(chan struct{}, 16)
	f.gates[key] = gate
	f.arrivals[key] = arr

	var once sync.Once
	return arr, func() {
		once.Do(func() {
			f.mu.Lock()
			if f.gates[key] == gate {
				delete(f.gates, key)
				close(gate)
			}
			f.mu.Unlock()
		})
	}
}

// Calls returns every recorded request in arrival order
func (f *FakeLedger) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// CallCount returns how many requests matched key
func (f *FakeLedger) CallCount(key string) int {
	n := 0
	for _, c := range f.Calls() {
		if c.Key() == key {
			n++
		}
	}
	return n
}

// Keys returns the keys of all recorded requests in order
func (f *FakeLedger) Keys() []string {
	calls := f.Calls()
	keys := make([]string, len(calls))
	for i, c := range calls {
		keys[i] = c.Key()
	}
	return keys
}

// ResetCalls forgets recorded requests
func (f *FakeLedger) ResetCalls() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = nil
}

func (f *FakeLedger) record(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()
		call := Call{
			Method: req.Method,
			Path:   req.URL.Path,
			Token:  strings.TrimPrefix(req.Header.Get("Authorization"), "Bearer "),
		}
		key := call.Key()

		f.mu.Lock()
		f.calls = append(f.calls, call)
		gate := f.gates[key]
		arrived := f.arrivals[key]
		fail, failing := f.failures[key]
		f.mu.Unlock()

		if gate != nil {
			select {
			case arrived <- struct{}{}:
			default:
			}
			<-gate
		}

		if failing {
			if fail.message == "" {
				return c.NoContent(fail.status)
			}
			return c.JSON(fail.status, map[string]string{"message": fail.message})
		}

		if f.Token != "" && req.URL.Path != "/login" && call.Token != f.Token {
			return c.JSON(http.StatusUnauthorized, map[string]string{"message": "Invalid token"})
		}
		return next(c)
	}
}

func (f *FakeLedger) login(c echo.Context) error {
	var req domain.LoginRequest
	if err := c.Bind(&req); err != nil || req.Email == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "Invalid credentials"})
	}
	f.mu.Lock()
	user := f.user
	f.mu.Unlock()
	return c.JSON(http.StatusOK, domain.LoginResponse{Token: f.Token, User: &user})
}

func (f *FakeLedger) profile(c echo.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return c.JSON(http.StatusOK, f.user)
}

func (f *FakeLedger) listCategories(c echo.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return c.JSON(http.StatusOK, orEmpty(f.categories))
}

func (f *FakeLedger) listCategoriesByType(c echo.Context) error {
	t := domain.CategoryType(c.Param("type"))
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Category, 0)
	for _, cat := range f.categories {
		if cat.Type == t {
			out = append(out, cat)
		}
	}
	return c.JSON(http.StatusOK, out)
}

func (f *FakeLedger) createCategory(c echo.Context) error {
	var p domain.CategoryPayload
	if err := c.Bind(&p); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "Invalid body"})
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	cat := domain.Category{ID: f.nextID, Name: p.Name, Type: p.Type, Icon: p.Icon}
	f.categories = append(f.categories, cat)
	return c.JSON(http.StatusCreated, cat)
}

func (f *FakeLedger) updateCategory(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "Invalid id"})
	}
	var p domain.CategoryPayload
	if err := c.Bind(&p); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "Invalid body"})
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.categories {
		if f.categories[i].ID == id {
			f.categories[i].Name = p.Name
			f.categories[i].Type = p.Type
			f.categories[i].Icon = p.Icon
			return c.JSON(http.StatusOK, f.categories[i])
		}
	}
	return c.JSON(http.StatusNotFound, map[string]string{"message": "Category not found"})
}

func (f *FakeLedger) partition(c echo.Context) (*[]domain.Transaction, bool) {
	switch c.Param("kind") {
	case "incomes":
		return &f.incomes, true
	case "expenses":
		return &f.expenses, true
	}
	return nil, false
}

func (f *FakeLedger) listTransactions(c echo.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	list, ok := f.partition(c)
	if !ok {
		return c.NoContent(http.StatusNotFound)
	}
	return c.JSON(http.StatusOK, orEmpty(*list))
}

func (f *FakeLedger) createTransaction(c echo.Context) error {
	var p domain.TransactionPayload
	if err := c.Bind(&p); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "Invalid body"})
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	list, ok := f.partition(c)
	if !ok {
		return c.NoContent(http.StatusNotFound)
	}
	f.nextID++
	tx := domain.Transaction{ID: f.nextID, Name: p.Name, Amount: p.Amount, Date: p.Date, Icon: p.Icon, CategoryID: p.CategoryID}
	// newest first, like the service's date-desc ordering for fresh entries
	*list = append([]domain.Transaction{tx}, *list...)
	return c.JSON(http.StatusCreated, tx)
}

func (f *FakeLedger) deleteTransaction(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "Invalid id"})
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	list, ok := f.partition(c)
	if !ok {
		return c.NoContent(http.StatusNotFound)
	}
	for i, tx := range *list {
		if tx.ID == id {
			*list = append((*list)[:i:i], (*list)[i+1:]...)
			return c.NoContent(http.StatusNoContent)
		}
	}
	return c.JSON(http.StatusNotFound, map[string]string{"message": "Transaction not found"})
}

func (f *FakeLedger) filter(c echo.Context) error {
	var flt domain.Filter
	if err := c.Bind(&flt); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "Invalid body"})
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	source := f.expenses
	if flt.Type == domain.KindIncome {
		source = f.incomes
	}
	out := make([]domain.Transaction, 0)
	for _, tx := range source {
		if flt.Keyword != "" && !strings.Contains(strings.ToLower(tx.Name), strings.ToLower(flt.Keyword)) {
			continue
		}
		if flt.StartDate != "" && tx.Date < flt.StartDate {
			continue
		}
		if flt.EndDate != "" && tx.Date > flt.EndDate {
			continue
		}
		out = append(out, tx)
	}
	return c.JSON(http.StatusOK, out)
}

func (f *FakeLedger) getDashboard(c echo.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return c.JSON(http.StatusOK, f.dashboard)
}

func (f *FakeLedger) download(c echo.Context) error {
	name := fmt.Sprintf("%s_details.xlsx", c.Param("kind"))
	c.Response().Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	return c.Blob(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", []byte("PK-fake-"+c.Param("kind")))
}

func (f *FakeLedger) email(c echo.Context) error {
	return c.String(http.StatusOK, "Details emailed successfully")
}

func orEmpty[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return append([]T(nil), items...)
}
