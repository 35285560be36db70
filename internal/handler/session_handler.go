package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/dafibh/fortuna/fortuna-client/internal/domain"
	"github.com/dafibh/fortuna/fortuna-client/internal/middleware"
	"github.com/dafibh/fortuna/fortuna-client/internal/session"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

// Authenticator exchanges credentials for a ledger token
type Authenticator interface {
	Login(ctx context.Context, req domain.LoginRequest) (*domain.LoginResponse, error)
}

// SessionHandler handles login, logout and the current user
type SessionHandler struct {
	auth  Authenticator
	guard *session.Guard
	hub   interface{ CloseAll() }
}

// NewSessionHandler creates a new SessionHandler. hub may be nil.
func NewSessionHandler(auth Authenticator, guard *session.Guard, hub interface{ CloseAll() }) *SessionHandler {
	return &SessionHandler{auth: auth, guard: guard, hub: hub}
}

// UserResponse represents the signed-in user in API responses
type UserResponse struct {
	ID              int64   `json:"id"`
	FullName        string  `json:"fullName"`
	Email           string  `json:"email"`
	ProfileImageURL *string `json:"profileImageUrl,omitempty"`
}

func toUserResponse(u *domain.User) UserResponse {
	return UserResponse{ID: u.ID, FullName: u.FullName, Email: u.Email, ProfileImageURL: u.ProfileImageURL}
}

// Login handles POST /api/v1/session/login
func (h *SessionHandler) Login(c echo.Context) error {
	var req domain.LoginRequest
	if err := c.Bind(&req); err != nil {
		return NewValidationError(c, "Invalid request body", nil)
	}

	req.Email = strings.TrimSpace(req.Email)
	var errs []ValidationError
	if req.Email == "" {
		errs = append(errs, ValidationError{Field: "email", Message: "Please enter a valid email address"})
	}
	if req.Password == "" {
		errs = append(errs, ValidationError{Field: "password", Message: "Please enter the password"})
	}
	if len(errs) > 0 {
		return NewValidationError(c, "Email and password are required", errs)
	}

	resp, err := h.auth.Login(c.Request().Context(), req)
	if err != nil {
		var tErr *domain.TransportError
		if errors.As(err, &tErr) {
			log.Warn().Err(err).Int("status", tErr.Status).Msg("Login rejected")
			return NewUnauthorizedError(c, tErr.WithFallback("Login failed. Please try again.").Message)
		}
		return respondError(c, err)
	}

	h.guard.Start(resp.Token, resp.User)

	if resp.User == nil {
		return c.NoContent(http.StatusNoContent)
	}
	return c.JSON(http.StatusOK, toUserResponse(resp.User))
}

// Logout handles POST /api/v1/session/logout
func (h *SessionHandler) Logout(c echo.Context) error {
	h.guard.Logout()
	if h.hub != nil {
		h.hub.CloseAll()
	}
	return c.JSON(http.StatusOK, map[string]string{"redirect": session.LoginPath})
}

// Me handles GET /api/v1/session
func (h *SessionHandler) Me(c echo.Context) error {
	user := middleware.GetUser(c)
	if user == nil {
		return NewUnauthorizedError(c, "Login required")
	}
	return c.JSON(http.StatusOK, toUserResponse(user))
}
