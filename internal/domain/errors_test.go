package domain

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestValidationError(t *testing.T) {
	err := NewValidationError("amount", "Amount must be greater than zero")

	if err.Error() != "Amount must be greater than zero" {
		t.Errorf("Unexpected message %q", err.Error())
	}
	if !errors.Is(err, ErrValidation) {
		t.Error("Expected errors.Is(err, ErrValidation)")
	}
	if errors.Is(err, ErrTransport) {
		t.Error("Validation errors are not transport errors")
	}
}

func TestTransportError_Is(t *testing.T) {
	tests := []struct {
		status       int
		unauthorized bool
		forbidden    bool
	}{
		{0, false, false},
		{http.StatusUnauthorized, true, false},
		{http.StatusForbidden, false, true},
		{http.StatusInternalServerError, false, false},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("status %d", tt.status), func(t *testing.T) {
			err := error(&TransportError{Status: tt.status})
			if !errors.Is(err, ErrTransport) {
				t.Error("Expected ErrTransport")
			}
			if errors.Is(err, ErrUnauthorized) != tt.unauthorized {
				t.Errorf("ErrUnauthorized match = %v, want %v", !tt.unauthorized, tt.unauthorized)
			}
			if errors.Is(err, ErrForbidden) != tt.forbidden {
				t.Errorf("ErrForbidden match = %v, want %v", !tt.forbidden, tt.forbidden)
			}
		})
	}
}

func TestTransportError_WithFallback(t *testing.T) {
	empty := &TransportError{Status: http.StatusInternalServerError}
	withMsg := &TransportError{Status: http.StatusConflict, Message: "Category already exists"}

	if got := empty.WithFallback("Failed to add category.").Message; got != "Failed to add category." {
		t.Errorf("Expected fallback, got %q", got)
	}
	if empty.Message != "" {
		t.Error("WithFallback must not modify the receiver")
	}
	if got := withMsg.WithFallback("Failed to add category.").Message; got != "Category already exists" {
		t.Errorf("Expected server message to win, got %q", got)
	}
}

func TestTransportError_Unwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := &TransportError{Err: cause}

	if !errors.Is(err, cause) {
		t.Error("Expected the network error to be reachable")
	}
	if err.Error() != "ledger request failed: connection refused" {
		t.Errorf("Unexpected message %q", err.Error())
	}
}

func TestRefreshFailedWrapsCause(t *testing.T) {
	cause := &TransportError{Status: http.StatusBadGateway, Message: "Failed to fetch income details."}
	err := fmt.Errorf("%w: %w", ErrRefreshFailed, cause)

	var tErr *TransportError
	if !errors.Is(err, ErrRefreshFailed) || !errors.As(err, &tErr) {
		t.Fatal("Expected both the marker and the cause to be reachable")
	}
	if tErr.Message != "Failed to fetch income details." {
		t.Errorf("Unexpected message %q", tErr.Message)
	}
}

func TestAuthError(t *testing.T) {
	if !errors.Is(&AuthError{Status: http.StatusUnauthorized}, ErrUnauthorized) {
		t.Error("Expected 401 to match ErrUnauthorized")
	}
	if !errors.Is(&AuthError{Status: http.StatusForbidden}, ErrForbidden) {
		t.Error("Expected 403 to match ErrForbidden")
	}
	if errors.Is(&AuthError{Status: http.StatusForbidden}, ErrUnauthorized) {
		t.Error("403 must not match ErrUnauthorized")
	}
}

func TestIsAuthStatus(t *testing.T) {
	for status, expected := range map[int]bool{
		http.StatusUnauthorized:        true,
		http.StatusForbidden:           true,
		http.StatusNotFound:            false,
		http.StatusInternalServerError: false,
		0:                              false,
	} {
		if IsAuthStatus(status) != expected {
			t.Errorf("IsAuthStatus(%d) = %v, want %v", status, !expected, expected)
		}
	}
}
