package handler

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/dafibh/fortuna/fortuna-client/internal/aggregate"
	"github.com/dafibh/fortuna/fortuna-client/internal/domain"
	"github.com/dafibh/fortuna/fortuna-client/internal/orchestrator"
	"github.com/dafibh/fortuna/fortuna-client/internal/store"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

// PageLoader loads everything an income or expense page shows
type PageLoader interface {
	LoadPage(ctx context.Context, kind domain.Kind) (*orchestrator.PageData, error)
}

// TransactionHandler handles income and expense HTTP requests
type TransactionHandler struct {
	stores      map[domain.Kind]*store.Store
	pages       PageLoader
	recentLimit int
}

// NewTransactionHandler creates a new TransactionHandler
func NewTransactionHandler(pages PageLoader, recentLimit int, stores ...*store.Store) *TransactionHandler {
	byKind := make(map[domain.Kind]*store.Store, len(stores))
	for _, s := range stores {
		byKind[s.Kind()] = s
	}
	return &TransactionHandler{stores: byKind, pages: pages, recentLimit: recentLimit}
}

// PageResponse is the income or expense page view model
type PageResponse struct {
	Kind         domain.Kind            `json:"kind"`
	Total        string                 `json:"total"`
	Transactions []domain.Transaction   `json:"transactions"`
	Categories   []domain.Category      `json:"categories"`
	Series       []aggregate.DailyPoint `json:"series"`
	Recent       []domain.Transaction   `json:"recent"`
}

func (h *TransactionHandler) storeFor(c echo.Context) (*store.Store, error) {
	kind, err := domain.ParseKind(c.Param("kind"))
	if err != nil {
		return nil, err
	}
	s, ok := h.stores[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidKind, kind)
	}
	return s, nil
}

// GetPage handles GET /api/v1/:kind
func (h *TransactionHandler) GetPage(c echo.Context) error {
	s, err := h.storeFor(c)
	if err != nil {
		return NewNotFoundError(c, "Unknown transaction kind")
	}

	page, err := h.pages.LoadPage(c.Request().Context(), s.Kind())
	if err != nil {
		return respondError(c, err)
	}

	txs := s.List()
	total := decimal.Zero
	for _, tx := range txs {
		total = total.Add(tx.Amount)
	}

	return c.JSON(http.StatusOK, PageResponse{
		Kind:         s.Kind(),
		Total:        total.StringFixed(2),
		Transactions: txs,
		Categories:   page.Categories,
		Series:       aggregate.DailySeries(txs),
		Recent:       aggregate.TopN(txs, h.recentLimit),
	})
}

// CreateTransaction handles POST /api/v1/:kind
func (h *TransactionHandler) CreateTransaction(c echo.Context) error {
	s, err := h.storeFor(c)
	if err != nil {
		return NewNotFoundError(c, "Unknown transaction kind")
	}

	var in domain.TransactionInput
	if err := c.Bind(&in); err != nil {
		return NewValidationError(c, "Invalid request body", nil)
	}

	created, err := s.Add(c.Request().Context(), in)
	return respondMutation(c, http.StatusCreated, fmt.Sprintf("%s added successfully", title(s.Kind())), created, err)
}

// DeleteTransaction handles DELETE /api/v1/:kind/:id
func (h *TransactionHandler) DeleteTransaction(c echo.Context) error {
	s, err := h.storeFor(c)
	if err != nil {
		return NewNotFoundError(c, "Unknown transaction kind")
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return NewValidationError(c, "Invalid transaction ID", []ValidationError{{Field: "id", Message: "Must be a valid integer"}})
	}

	err = s.Remove(c.Request().Context(), id)
	return respondMutation(c, http.StatusOK, fmt.Sprintf("%s deleted successfully", title(s.Kind())), map[string]int64{"id": id}, err)
}

// FilterRequest is the body of POST /api/v1/filter
type FilterRequest struct {
	Type      string `json:"type"`
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
	Keyword   string `json:"keyword"`
	SortField string `json:"sortField"`
	SortOrder string `json:"sortOrder"`
}

// Filter handles POST /api/v1/filter
func (h *TransactionHandler) Filter(c echo.Context) error {
	var req FilterRequest
	if err := c.Bind(&req); err != nil {
		return NewValidationError(c, "Invalid request body", nil)
	}

	kind, err := domain.ParseKind(req.Type)
	if err != nil {
		return NewValidationError(c, "Invalid filter type", []ValidationError{{Field: "type", Message: "Must be income or expense"}})
	}
	s, ok := h.stores[kind]
	if !ok {
		return NewNotFoundError(c, "Unknown transaction kind")
	}

	txs, err := s.Filter(c.Request().Context(), domain.Filter{
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
		Keyword:   strings.TrimSpace(req.Keyword),
		SortField: req.SortField,
		SortOrder: req.SortOrder,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, txs)
}

func title(kind domain.Kind) string {
	s := string(kind)
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
