package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/dafibh/fortuna/fortuna-client/internal/domain"
	"github.com/dafibh/fortuna/fortuna-client/internal/export"
	"github.com/labstack/echo/v4"
)

// Exporter stores or emails ledger exports
type Exporter interface {
	Download(ctx context.Context, kind domain.Kind) (*export.Result, error)
	Email(ctx context.Context, kind domain.Kind) error
}

// ExportHandler handles export triggers
type ExportHandler struct {
	exports Exporter
}

// NewExportHandler creates a new ExportHandler
func NewExportHandler(exports Exporter) *ExportHandler {
	return &ExportHandler{exports: exports}
}

// Download handles POST /api/v1/exports/:kind
func (h *ExportHandler) Download(c echo.Context) error {
	kind, err := domain.ParseKind(c.Param("kind"))
	if err != nil {
		return NewNotFoundError(c, "Unknown export kind")
	}

	result, err := h.exports.Download(c.Request().Context(), kind)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, MutationResponse{
		Message: fmt.Sprintf("Downloaded %s details successfully", kind),
		Data:    result,
	})
}

// Email handles POST /api/v1/exports/:kind/email
func (h *ExportHandler) Email(c echo.Context) error {
	kind, err := domain.ParseKind(c.Param("kind"))
	if err != nil {
		return NewNotFoundError(c, "Unknown export kind")
	}

	if err := h.exports.Email(c.Request().Context(), kind); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusAccepted, MutationResponse{
		Message: fmt.Sprintf("%s details emailed successfully", title(kind)),
	})
}
