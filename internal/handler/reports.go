package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/it-helpdesk/internal/service"
)

// ReportHandler serves the dashboard aggregates.
type ReportHandler struct {
	Reports *service.ReportService
}

func NewReportHandler(r *service.ReportService) *ReportHandler { return &ReportHandler{Reports: r} }

// dateOnly is the length of a YYYY-MM-DD value.
const dateOnly = len("2006-01-02")

// rangeFrom reads ?from=&to=.  A date-only "to" includes that whole day.
func (h *ReportHandler) rangeFrom(c echo.Context) (service.Range, error) {
	from, err := parseTime(c.QueryParam("from"))
	if err != nil {
		return service.Range{}, &service.ValidationError{Msg: "invalid from"}
	}
	rawTo := strings.TrimSpace(c.QueryParam("to"))
	to, err := parseTime(rawTo)
	if err != nil {
		return service.Range{}, &service.ValidationError{Msg: "invalid to"}
	}
	if to != nil && len(rawTo) == dateOnly {
		end := to.AddDate(0, 0, 1)
		to = &end
	}
	return h.Reports.ResolveRange(from, to)
}

func (h *ReportHandler) Overview(c echo.Context) error {
	r, err := h.rangeFrom(c)
	if err != nil {
		return respondError(c, err)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	out, err := h.Reports.Overview(ctx, r)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *ReportHandler) SLA(c echo.Context) error {
	r, err := h.rangeFrom(c)
	if err != nil {
		return respondError(c, err)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	out, err := h.Reports.SLACompliance(ctx, r)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *ReportHandler) Technicians(c echo.Context) error {
	r, err := h.rangeFrom(c)
	if err != nil {
		return respondError(c, err)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	out, err := h.Reports.Technicians(ctx, r)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"range": r, "data": out})
}

func (h *ReportHandler) Inventory(c echo.Context) error {
	r, err := h.rangeFrom(c)
	if err != nil {
		return respondError(c, err)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	out, err := h.Reports.Inventory(ctx, r)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}
