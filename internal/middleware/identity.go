package middleware

// identity.go holds helpers shared by the cache and rate limit middlewares
// to derive a stable caller identity from the request context.

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

// callerKey returns "<role>:<id>" for an authenticated request and "anon"
// otherwise.  Public and internal ids live in different tables, so the role
// is part of the key.
func callerKey(c echo.Context) string {
	id, ok := c.Get(KeyUserID).(uint64)
	if !ok || id == 0 {
		return "anon"
	}
	role, _ := c.Get(KeyRole).(string)
	return role + ":" + strconv.FormatUint(id, 10)
}

// hasCredentials reports whether the request carries any auth header.
func hasCredentials(c echo.Context) bool {
	h := c.Request().Header
	return h.Get("Authorization") != "" || h.Get(PublicTokenHeader) != ""
}
