package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/it-helpdesk/internal/model"
	"github.com/iliyamo/it-helpdesk/internal/utils"
)

// Context keys set by the authentication middlewares.  user_id is always a
// uint64: users.id for internal staff and public_users.id when role is
// "public".
const (
	KeyUserID = "user_id"
	KeyRole   = "role"
)

// PublicTokenHeader carries the session token of public requesters.
const PublicTokenHeader = "x-user-token"

// SessionValidator resolves a hashed public session token to the id of
// its public user.
type SessionValidator interface {
	Validate(ctx context.Context, tokenHash string) (uint64, error)
}

func bearer(c echo.Context) (string, bool) {
	auth := c.Request().Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return "", false
	}
	return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer ")), true
}

func setInternal(c echo.Context, secret, raw string) bool {
	claims, err := utils.ParseAccessToken(secret, raw)
	if err != nil {
		return false
	}
	c.Set(KeyUserID, claims.UserID)
	c.Set(KeyRole, claims.Role)
	return true
}

func setPublic(c echo.Context, sessions SessionValidator, raw string) bool {
	id, err := sessions.Validate(c.Request().Context(), utils.HashToken(raw))
	if err != nil {
		return false
	}
	c.Set(KeyUserID, id)
	c.Set(KeyRole, model.RolePublic)
	return true
}

// JWTAuth returns an Echo middleware that validates a Bearer access token and
// injects the token's subject and role claims into the request context.  The
// provided secret must match the one used when issuing tokens.  Handlers
// read the caller through c.Get("user_id") and c.Get("role").
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, ok := bearer(c)
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			if !setInternal(c, secret, raw) {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}
			return next(c)
		}
	}
}

// OptionalAuth behaves like JWTAuth when a bearer token is present and lets
// anonymous requests through untouched.
func OptionalAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, ok := bearer(c)
			if !ok {
				return next(c)
			}
			if !setInternal(c, secret, raw) {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}
			return next(c)
		}
	}
}

// PublicAuth authenticates a public requester by the x-user-token header.
func PublicAuth(sessions SessionValidator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := strings.TrimSpace(c.Request().Header.Get(PublicTokenHeader))
			if raw == "" {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing user token"})
			}
			if !setPublic(c, sessions, raw) {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid or expired session"})
			}
			return next(c)
		}
	}
}

// AnyAuth accepts either credential.  A bearer token wins when both are
// sent.
func AnyAuth(secret string, sessions SessionValidator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if raw, ok := bearer(c); ok {
				if !setInternal(c, secret, raw) {
					return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
				}
				return next(c)
			}
			raw := strings.TrimSpace(c.Request().Header.Get(PublicTokenHeader))
			if raw == "" {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
			}
			if !setPublic(c, sessions, raw) {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid or expired session"})
			}
			return next(c)
		}
	}
}
