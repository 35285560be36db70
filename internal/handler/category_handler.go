package handler

import (
	"net/http"
	"strconv"

	"github.com/dafibh/fortuna/fortuna-client/internal/domain"
	"github.com/dafibh/fortuna/fortuna-client/internal/registry"
	"github.com/labstack/echo/v4"
)

// CategoryHandler handles category-related HTTP requests
type CategoryHandler struct {
	registry *registry.Registry
}

// NewCategoryHandler creates a new CategoryHandler
func NewCategoryHandler(registry *registry.Registry) *CategoryHandler {
	return &CategoryHandler{registry: registry}
}

// GetCategories handles GET /api/v1/categories and GET /api/v1/categories/:type
func (h *CategoryHandler) GetCategories(c echo.Context) error {
	t := c.Param("type")
	if t == "" {
		t = c.QueryParam("type")
	}

	ctx := c.Request().Context()
	if t == "" {
		if _, err := h.registry.Load(ctx); err != nil {
			return respondError(c, err)
		}
		return c.JSON(http.StatusOK, h.registry.List())
	}

	categoryType := domain.CategoryType(t)
	if !categoryType.Valid() {
		return NewValidationError(c, "Invalid category type", []ValidationError{{Field: "type", Message: "Must be income or expense"}})
	}
	if _, err := h.registry.LoadByType(ctx, categoryType); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, h.registry.ListByType(categoryType))
}

// CreateCategory handles POST /api/v1/categories
func (h *CategoryHandler) CreateCategory(c echo.Context) error {
	var in domain.CategoryInput
	if err := c.Bind(&in); err != nil {
		return NewValidationError(c, "Invalid request body", nil)
	}

	created, err := h.registry.Add(c.Request().Context(), in)
	return respondMutation(c, http.StatusCreated, "Category added successfully", created, err)
}

// UpdateCategory handles PUT /api/v1/categories/:id
func (h *CategoryHandler) UpdateCategory(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return NewValidationError(c, "Invalid category ID", []ValidationError{{Field: "id", Message: "Must be a valid integer"}})
	}

	var in domain.CategoryInput
	if err := c.Bind(&in); err != nil {
		return NewValidationError(c, "Invalid request body", nil)
	}

	updated, err := h.registry.Update(c.Request().Context(), id, in)
	return respondMutation(c, http.StatusOK, "Category updated successfully", updated, err)
}
