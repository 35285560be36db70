package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/dafibh/fortuna/fortuna-client/internal/domain"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

// ProblemDetails represents an RFC 7807 Problem Details response
type ProblemDetails struct {
	Type     string            `json:"type"`
	Title    string            `json:"title"`
	Status   int               `json:"status"`
	Detail   string            `json:"detail,omitempty"`
	Instance string            `json:"instance,omitempty"`
	Redirect string            `json:"redirect,omitempty"`
	Errors   []ValidationError `json:"errors,omitempty"`
}

// ValidationError represents a single validation error
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error types
const (
	ErrorTypeValidation   = "https://fortuna.app/errors/validation"
	ErrorTypeNotFound     = "https://fortuna.app/errors/not-found"
	ErrorTypeUnauthorized = "https://fortuna.app/errors/unauthorized"
	ErrorTypeForbidden    = "https://fortuna.app/errors/forbidden"
	ErrorTypeConflict     = "https://fortuna.app/errors/conflict"
	ErrorTypeUpstream     = "https://fortuna.app/errors/ledger"
	ErrorTypeTimeout      = "https://fortuna.app/errors/timeout"
	ErrorTypeInternal     = "https://fortuna.app/errors/internal"
)

// MutationResponse wraps the result of a create, update or delete. Warning is
// set when the mutation stood but the refetch that follows it failed.
type MutationResponse struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Warning string      `json:"warning,omitempty"`
}

func newProblem(c echo.Context, status int, errorType, title, detail string) ProblemDetails {
	return ProblemDetails{
		Type:     errorType,
		Title:    title,
		Status:   status,
		Detail:   detail,
		Instance: c.Request().URL.Path,
	}
}

// NewValidationError creates a validation error response
func NewValidationError(c echo.Context, detail string, errors []ValidationError) error {
	p := newProblem(c, http.StatusBadRequest, ErrorTypeValidation, "Validation Error", detail)
	p.Errors = errors
	return c.JSON(http.StatusBadRequest, p)
}

// NewNotFoundError creates a not found error response
func NewNotFoundError(c echo.Context, detail string) error {
	return c.JSON(http.StatusNotFound, newProblem(c, http.StatusNotFound, ErrorTypeNotFound, "Not Found", detail))
}

// NewUnauthorizedError creates an unauthorized error response that sends the UI to login
func NewUnauthorizedError(c echo.Context, detail string) error {
	p := newProblem(c, http.StatusUnauthorized, ErrorTypeUnauthorized, "Unauthorized", detail)
	p.Redirect = "/login"
	return c.JSON(http.StatusUnauthorized, p)
}

// NewInternalError creates an internal error response
func NewInternalError(c echo.Context, detail string) error {
	return c.JSON(http.StatusInternalServerError, newProblem(c, http.StatusInternalServerError, ErrorTypeInternal, "Internal Server Error", detail))
}

// respondError maps the domain error taxonomy onto problem responses.
// Validation failures are not logged; ledger failures were logged where they happened.
func respondError(c echo.Context, err error) error {
	var vErr *domain.ValidationError
	if errors.As(err, &vErr) {
		return NewValidationError(c, vErr.Reason, []ValidationError{{Field: vErr.Field, Message: vErr.Reason}})
	}

	var aErr *domain.AuthError
	if errors.As(err, &aErr) {
		return NewUnauthorizedError(c, "Session expired")
	}

	var tErr *domain.TransportError
	if errors.As(err, &tErr) {
		return respondTransport(c, tErr)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return c.JSON(http.StatusGatewayTimeout, newProblem(c, http.StatusGatewayTimeout, ErrorTypeTimeout, "Gateway Timeout", "The ledger did not answer in time"))
	}

	log.Error().Err(err).Str("path", c.Request().URL.Path).Msg("Unhandled error")
	return NewInternalError(c, "Something went wrong!")
}

func respondTransport(c echo.Context, tErr *domain.TransportError) error {
	detail := tErr.Message
	switch {
	case tErr.Status == http.StatusUnauthorized || tErr.Status == http.StatusForbidden:
		return NewUnauthorizedError(c, detail)
	case tErr.Status == http.StatusNotFound:
		return NewNotFoundError(c, detail)
	case tErr.Status == http.StatusConflict:
		return c.JSON(http.StatusConflict, newProblem(c, http.StatusConflict, ErrorTypeConflict, "Conflict", detail))
	case tErr.Status >= 400 && tErr.Status < 500:
		p := newProblem(c, tErr.Status, ErrorTypeValidation, http.StatusText(tErr.Status), detail)
		return c.JSON(tErr.Status, p)
	}
	// network failures and ledger 5xx
	return c.JSON(http.StatusBadGateway, newProblem(c, http.StatusBadGateway, ErrorTypeUpstream, "Bad Gateway", detail))
}

// respondMutation writes a successful mutation, keeping it successful when only the refetch failed
func respondMutation(c echo.Context, status int, message string, data interface{}, err error) error {
	if err == nil {
		return c.JSON(status, MutationResponse{Message: message, Data: data})
	}
	if errors.Is(err, domain.ErrRefreshFailed) {
		warning := "Saved, but the list could not be refreshed"
		var tErr *domain.TransportError
		if errors.As(err, &tErr) && tErr.Message != "" {
			warning = tErr.Message
		}
		return c.JSON(status, MutationResponse{Message: message, Data: data, Warning: warning})
	}
	return respondError(c, err)
}
