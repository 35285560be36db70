package middleware

import (
	"github.com/dafibh/fortuna/fortuna-client/internal/domain"
	"github.com/dafibh/fortuna/fortuna-client/internal/session"
	"github.com/labstack/echo/v4"
)

// Context key for the verified user
const userKey = "user"

// RequireSession runs the session guard before protected routes. The request
// proceeds only once an identity is cached for the current token.
func RequireSession(guard *session.Guard) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			m := guard.Mount(c.Request().Context())
			outcome, _ := m.Wait()

			user := guard.Session().Identity()
			if user == nil {
				detail := "Session expired"
				if outcome == session.OutcomeSkipped {
					detail = "Login required"
				}
				return unauthorizedError(c, detail, session.LoginPath)
			}

			c.Set(userKey, user)
			return next(c)
		}
	}
}

// GetUser retrieves the verified user from context
func GetUser(c echo.Context) *domain.User {
	if user, ok := c.Get(userKey).(*domain.User); ok {
		return user
	}
	return nil
}
