package handler // handler defines http handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/it-helpdesk/internal/middleware"
	"github.com/iliyamo/it-helpdesk/internal/repository"
	"github.com/iliyamo/it-helpdesk/internal/service"
)

// requestTimeout bounds the database work of one request.
const requestTimeout = 5 * time.Second

// getUserID extracts the user_id from echo.Context and converts it to uint64
func getUserID(c echo.Context) (uint64, error) {
	v := c.Get(middleware.KeyUserID)
	switch t := v.(type) {
	case uint64:
		return t, nil
	case int:
		return uint64(t), nil
	case int64:
		return uint64(t), nil
	case float64:
		return uint64(t), nil
	case string:
		if n, err := strconv.ParseUint(t, 10, 64); err == nil {
			return n, nil
		}
	}
	return 0, errors.New("invalid user_id in context")
}

// actorFrom builds the service actor from the values set by the auth
// middlewares.  ok is false for anonymous requests.
func actorFrom(c echo.Context) (service.Actor, bool) {
	id, err := getUserID(c)
	if err != nil || id == 0 {
		return service.Actor{}, false
	}
	role, _ := c.Get(middleware.KeyRole).(string)
	return service.Actor{ID: id, Role: role}, role != ""
}

func unauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
}

// parseID reads a positive numeric path parameter that fits a signed
// 64-bit column.
func parseID(c echo.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 63)
	return id, err == nil && id > 0
}

func badID(c echo.Context) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
}

// pageParams reads page and page_size, defaulting to 1 and 20 and capping
// the size at 100.
func pageParams(c echo.Context) (int, int) {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	if page < 1 {
		page = 1
	}
	ps, _ := strconv.Atoi(c.QueryParam("page_size"))
	if ps < 1 {
		ps = 20
	}
	if ps > 100 {
		ps = 100
	}
	return page, ps
}

func paged(c echo.Context, items any, total, page, ps int) error {
	return c.JSON(http.StatusOK, echo.Map{
		"data":      items,
		"total":     total,
		"page":      page,
		"page_size": ps,
	})
}

// optionalUint parses a numeric query parameter; an empty value yields nil.
func optionalUint(c echo.Context, name string) (*uint64, bool) {
	raw := strings.TrimSpace(c.QueryParam(name))
	if raw == "" {
		return nil, true
	}
	n, err := strconv.ParseUint(raw, 10, 63)
	if err != nil {
		return nil, false
	}
	return &n, true
}

// parseTime accepts YYYY-MM-DD (midnight UTC) or RFC3339.
func parseTime(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, err
	}
	t = t.UTC()
	return &t, nil
}

// respondError maps service and repository errors to status codes.
// Unexpected errors are logged and reported as 500 without detail.
func respondError(c echo.Context, err error) error {
	var v *service.ValidationError
	switch {
	case errors.As(err, &v):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": v.Msg})
	case errors.Is(err, repository.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	case errors.Is(err, repository.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	case errors.Is(err, service.ErrTooLarge):
		return c.JSON(http.StatusRequestEntityTooLarge, echo.Map{"error": err.Error()})
	case errors.Is(err, repository.ErrEmailExists),
		errors.Is(err, repository.ErrCodeExists),
		errors.Is(err, repository.ErrActiveTermExists),
		errors.Is(err, repository.ErrNoActiveTerm),
		errors.Is(err, repository.ErrHasHistory),
		errors.Is(err, repository.ErrConflict),
		errors.Is(err, service.ErrNotAvailable),
		errors.Is(err, service.ErrInvalidTransition),
		errors.Is(err, service.ErrInUse):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
	}
	slog.Error("request failed", "method", c.Request().Method, "path", c.Path(), "err", err)
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}
