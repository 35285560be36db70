package handler

import (
	"context"
	"net/http"

	"github.com/dafibh/fortuna/fortuna-client/internal/aggregate"
	"github.com/dafibh/fortuna/fortuna-client/internal/domain"
	"github.com/labstack/echo/v4"
)

// recentPerKind is how many incomes and expenses the dashboard lists
const recentPerKind = 5

// DashboardLoader fetches the dashboard summary
type DashboardLoader interface {
	LoadDashboard(ctx context.Context) (*domain.DashboardSummary, error)
}

// DashboardHandler handles dashboard-related HTTP requests
type DashboardHandler struct {
	loader      DashboardLoader
	recentLimit int
}

// NewDashboardHandler creates a new DashboardHandler
func NewDashboardHandler(loader DashboardLoader, recentLimit int) *DashboardHandler {
	return &DashboardHandler{loader: loader, recentLimit: recentLimit}
}

// DashboardResponse represents the dashboard view model
type DashboardResponse struct {
	TotalBalance       string               `json:"totalBalance"`
	TotalIncome        string               `json:"totalIncome"`
	TotalExpense       string               `json:"totalExpense"`
	Split              []aggregate.Slice    `json:"split"`
	RecentTransactions []domain.Transaction `json:"recentTransactions"`
	RecentIncomes      []domain.Transaction `json:"recentIncomes"`
	RecentExpenses     []domain.Transaction `json:"recentExpenses"`
}

// GetDashboard handles GET /api/v1/dashboard
// Recent lists keep the server's order; they are truncated, never re-sorted.
func (h *DashboardHandler) GetDashboard(c echo.Context) error {
	summary, err := h.loader.LoadDashboard(c.Request().Context())
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, DashboardResponse{
		TotalBalance:       summary.TotalBalance.StringFixed(2),
		TotalIncome:        summary.TotalIncome.StringFixed(2),
		TotalExpense:       summary.TotalExpense.StringFixed(2),
		Split:              aggregate.CategoricalSplit(summary.TotalBalance, summary.TotalIncome, summary.TotalExpense),
		RecentTransactions: aggregate.TopN(summary.RecentTransactions, h.recentLimit),
		RecentIncomes:      aggregate.TopN(summary.Recent5Incomes, recentPerKind),
		RecentExpenses:     aggregate.TopN(summary.Recent5Expenses, recentPerKind),
	})
}
