package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// Domain errors
var (
	ErrValidation    = errors.New("validation failed")
	ErrTransport     = errors.New("ledger request failed")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrForbidden     = errors.New("forbidden")
	ErrInvalidKind   = errors.New("invalid transaction kind")
	ErrRefreshFailed = errors.New("refresh after mutation failed")
)

// ValidationError is a local, pre-submission failure. It never reaches the network.
type ValidationError struct {
	Field  string
	Reason string
}

// NewValidationError creates a ValidationError for the given field
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// Is reports whether target is ErrValidation
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// TransportError is a non-2xx response or a network failure from the ledger service.
// Message holds the server-supplied message when present, else a generic fallback.
type TransportError struct {
	Status  int
	Message string
	Err     error
}

func (e *TransportError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = ErrTransport.Error()
	}
	if e.Status == 0 {
		if e.Err != nil {
			return fmt.Sprintf("%s: %v", msg, e.Err)
		}
		return msg
	}
	return fmt.Sprintf("%s (status %d)", msg, e.Status)
}

// Unwrap returns the underlying network error, if any
func (e *TransportError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrTransport, or ErrUnauthorized/ErrForbidden for 401/403 responses
func (e *TransportError) Is(target error) bool {
	switch target {
	case ErrTransport:
		return true
	case ErrUnauthorized:
		return e.Status == http.StatusUnauthorized
	case ErrForbidden:
		return e.Status == http.StatusForbidden
	}
	return false
}

// WithFallback returns a copy whose Message is fallback when the server supplied none
func (e *TransportError) WithFallback(fallback string) *TransportError {
	out := *e
	if out.Message == "" {
		out.Message = fallback
	}
	return &out
}

// IsAuthStatus reports whether status is 401 or 403
func IsAuthStatus(status int) bool {
	return status == http.StatusUnauthorized || status == http.StatusForbidden
}

// AuthError is a 401/403 from the current-user check. It always tears the session down.
type AuthError struct {
	Status int
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("session rejected by ledger (status %d)", e.Status)
}

// Is reports whether target is ErrUnauthorized or ErrForbidden matching the status
func (e *AuthError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.Status == http.StatusUnauthorized
	case ErrForbidden:
		return e.Status == http.StatusForbidden
	}
	return false
}
