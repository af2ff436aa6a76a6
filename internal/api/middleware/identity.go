package middleware

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"auction-platform/internal/domain"
	"auction-platform/pkg/logger"

	"github.com/labstack/echo/v4"
)

const (
	HeaderUserID = "X-User-ID"
	principalKey = "principal"
)

// Identity resolves the caller named by the X-User-ID header and stores the
// resulting principal on the context. Callers that are missing or unknown
// are rejected as unauthorized.
func Identity(users domain.UserRepository, log logger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := strings.TrimSpace(c.Request().Header.Get(HeaderUserID))
			if raw == "" {
				return fmt.Errorf("%w: missing %s header", domain.ErrUnauthorized, HeaderUserID)
			}
			userID, err := strconv.ParseInt(raw, 10, 64)
			if err != nil || userID <= 0 {
				return fmt.Errorf("%w: malformed %s header", domain.ErrUnauthorized, HeaderUserID)
			}

			user, err := users.GetUser(c.Request().Context(), userID)
			if err != nil {
				if errors.Is(err, domain.ErrNotFound) {
					log.Debug("Unknown caller", "user_id", userID)
					return fmt.Errorf("%w: unknown user %d", domain.ErrUnauthorized, userID)
				}
				return err
			}

			c.Set(principalKey, domain.PrincipalFromUser(user))
			return next(c)
		}
	}
}

// RequireRole lets the request through only when the principal holds role.
func RequireRole(role string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p, ok := PrincipalFrom(c)
			if !ok {
				return fmt.Errorf("%w: no authenticated caller", domain.ErrUnauthorized)
			}
			if err := domain.RequireRole(p, role); err != nil {
				return err
			}
			return next(c)
		}
	}
}

func PrincipalFrom(c echo.Context) (domain.Principal, bool) {
	p, ok := c.Get(principalKey).(domain.Principal)
	return p, ok
}
