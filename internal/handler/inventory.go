package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/it-helpdesk/internal/model"
	"github.com/iliyamo/it-helpdesk/internal/repository"
	"github.com/iliyamo/it-helpdesk/internal/service"
)

// InventoryHandler exposes equipment, responsibility terms and the
// movement log.  Role checks happen in the router.
type InventoryHandler struct {
	Inventory *service.InventoryService
}

func NewInventoryHandler(s *service.InventoryService) *InventoryHandler {
	return &InventoryHandler{Inventory: s}
}

// ---- Equipment ----

// ListEquipment supports ?status, category, q, page and page_size.
func (h *InventoryHandler) ListEquipment(c echo.Context) error {
	page, ps := pageParams(c)
	f := repository.EquipmentFilter{
		Status:   strings.ToLower(strings.TrimSpace(c.QueryParam("status"))),
		Category: strings.TrimSpace(c.QueryParam("category")),
		Query:    c.QueryParam("q"),
		Page:     page,
		PageSize: ps,
	}
	if f.Status != "" && !model.ValidEquipmentStatus(f.Status) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid status"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	items, total, err := h.Inventory.List(ctx, f)
	if err != nil {
		return respondError(c, err)
	}
	return paged(c, items, total, page, ps)
}

func (h *InventoryHandler) CreateEquipment(c echo.Context) error {
	actor, ok := actorFrom(c)
	if !ok {
		return unauthorized(c)
	}
	var in service.EquipmentInput
	if err := c.Bind(&in); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	e, err := h.Inventory.Register(ctx, actor, in)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, e)
}

func (h *InventoryHandler) GetEquipment(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badID(c)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	e, err := h.Inventory.Get(ctx, id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, e)
}

func (h *InventoryHandler) UpdateEquipment(c echo.Context) error {
	actor, ok := actorFrom(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := parseID(c, "id")
	if !ok {
		return badID(c)
	}
	var p service.EquipmentPatch
	if err := c.Bind(&p); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	e, err := h.Inventory.Update(ctx, actor, id, p)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, e)
}

func (h *InventoryHandler) DeleteEquipment(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badID(c)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	if err := h.Inventory.Delete(ctx, id); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

type statusReq struct {
	Status string `json:"status"`
	Notes  string `json:"notes"`
}

// ChangeStatus moves an idle item between in_stock, maintenance and retired.
func (h *InventoryHandler) ChangeStatus(c echo.Context) error {
	actor, ok := actorFrom(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := parseID(c, "id")
	if !ok {
		return badID(c)
	}
	var req statusReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	status := strings.ToLower(strings.TrimSpace(req.Status))
	if !model.ValidEquipmentStatus(status) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid status"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	e, err := h.Inventory.ChangeStatus(ctx, actor, id, status, req.Notes)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, e)
}

// ---- Custody ----

func (h *InventoryHandler) Deliver(c echo.Context) error {
	actor, ok := actorFrom(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := parseID(c, "id")
	if !ok {
		return badID(c)
	}
	var in service.DeliverInput
	if err := c.Bind(&in); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	term, err := h.Inventory.Deliver(ctx, actor, id, in)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, term)
}

func (h *InventoryHandler) Return(c echo.Context) error {
	actor, ok := actorFrom(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := parseID(c, "id")
	if !ok {
		return badID(c)
	}
	var in service.ReturnInput
	if err := c.Bind(&in); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	term, err := h.Inventory.Return(ctx, actor, id, in)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, term)
}

// ReturnChecklist lists the items a return must answer.
func (h *InventoryHandler) ReturnChecklist(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"data": h.Inventory.Checklist})
}

func (h *InventoryHandler) EquipmentTerms(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badID(c)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	if _, err := h.Inventory.Get(ctx, id); err != nil {
		return respondError(c, err)
	}
	terms, err := h.Inventory.ListTerms(ctx, repository.TermFilter{EquipmentID: &id})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"data": terms})
}

func (h *InventoryHandler) Movements(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badID(c)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	moves, err := h.Inventory.History(ctx, id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"data": moves})
}

// ---- Terms ----

// ListTerms supports ?status, equipment_id, from and to (on issued date).
func (h *InventoryHandler) ListTerms(c echo.Context) error {
	f := repository.TermFilter{Status: strings.ToLower(strings.TrimSpace(c.QueryParam("status")))}
	switch f.Status {
	case "", model.TermActive, model.TermReturned, model.TermCancelled:
	default:
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid status"})
	}
	var ok bool
	if f.EquipmentID, ok = optionalUint(c, "equipment_id"); !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid equipment_id"})
	}
	var err error
	if f.From, err = parseTime(c.QueryParam("from")); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid from"})
	}
	if f.To, err = parseTime(c.QueryParam("to")); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid to"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	terms, err := h.Inventory.ListTerms(ctx, f)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"data": terms})
}

func (h *InventoryHandler) GetTerm(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badID(c)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	t, err := h.Inventory.GetTerm(ctx, id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, t)
}

type cancelReq struct {
	Reason string `json:"reason"`
}

func (h *InventoryHandler) CancelTerm(c echo.Context) error {
	actor, ok := actorFrom(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := parseID(c, "id")
	if !ok {
		return badID(c)
	}
	var req cancelReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	t, err := h.Inventory.CancelTerm(ctx, actor, id, req.Reason)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, t)
}

// ---- Consistency ----

func (h *InventoryHandler) Consistency(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	drifts, err := h.Inventory.CheckConsistency(ctx)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"consistent": len(drifts) == 0, "data": drifts})
}

func (h *InventoryHandler) Repair(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 30*requestTimeout)
	defer cancel()

	res, err := h.Inventory.RepairConsistency(ctx, &uid)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}
