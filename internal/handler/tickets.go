package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/it-helpdesk/internal/model"
	"github.com/iliyamo/it-helpdesk/internal/repository"
	"github.com/iliyamo/it-helpdesk/internal/service"
)

// TicketHandler serves the ticket endpoints to both staff (bearer) and
// public requesters (x-user-token).
type TicketHandler struct {
	Tickets     *service.TicketService
	Attachments *service.AttachmentService
}

func NewTicketHandler(t *service.TicketService, a *service.AttachmentService) *TicketHandler {
	return &TicketHandler{Tickets: t, Attachments: a}
}

// Priority previews the priority derived from ?urgency=&impact= and its
// SLA target.
func (h *TicketHandler) Priority(c echo.Context) error {
	urgency, err1 := strconv.Atoi(c.QueryParam("urgency"))
	impact, err2 := strconv.Atoi(c.QueryParam("impact"))
	if err1 != nil || err2 != nil || !service.ValidLevel(urgency) || !service.ValidLevel(impact) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "urgency and impact must be integers between 1 and 3"})
	}
	p := service.CalculatePriority(urgency, impact)
	return c.JSON(http.StatusOK, echo.Map{
		"urgency":   urgency,
		"impact":    impact,
		"score":     urgency * impact,
		"priority":  p,
		"sla_hours": h.Tickets.SLA.Hours(p),
	})
}

func (h *TicketHandler) Create(c echo.Context) error {
	actor, ok := actorFrom(c)
	if !ok {
		return unauthorized(c)
	}
	var in service.CreateTicketInput
	if err := c.Bind(&in); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	t, err := h.Tickets.Create(ctx, actor, in)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, t)
}

// List supports ?status, priority, type, assigned_to, unassigned=true, q,
// page and page_size.  Public requesters only ever see their own tickets.
func (h *TicketHandler) List(c echo.Context) error {
	actor, ok := actorFrom(c)
	if !ok {
		return unauthorized(c)
	}
	page, ps := pageParams(c)
	f := repository.TicketFilter{
		Status:     strings.ToLower(strings.TrimSpace(c.QueryParam("status"))),
		Priority:   strings.ToLower(strings.TrimSpace(c.QueryParam("priority"))),
		Type:       strings.TrimSpace(c.QueryParam("type")),
		Unassigned: c.QueryParam("unassigned") == "true",
		Query:      c.QueryParam("q"),
		Page:       page,
		PageSize:   ps,
	}
	if f.Status != "" && !model.ValidStatus(f.Status) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid status"})
	}
	if f.Priority != "" && !model.ValidPriority(f.Priority) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid priority"})
	}
	if f.AssignedTo, ok = optionalUint(c, "assigned_to"); !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid assigned_to"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	items, total, err := h.Tickets.List(ctx, actor, f)
	if err != nil {
		return respondError(c, err)
	}
	return paged(c, items, total, page, ps)
}

func (h *TicketHandler) Get(c echo.Context) error {
	actor, ok := actorFrom(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := parseID(c, "id")
	if !ok {
		return badID(c)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	t, err := h.Tickets.Get(ctx, actor, id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, t)
}

func (h *TicketHandler) Update(c echo.Context) error {
	actor, ok := actorFrom(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := parseID(c, "id")
	if !ok {
		return badID(c)
	}
	var p service.TicketPatch
	if err := c.Bind(&p); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	t, err := h.Tickets.Update(ctx, actor, id, p)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, t)
}

// Delete removes the ticket with its thread and attachment files.
func (h *TicketHandler) Delete(c echo.Context) error {
	actor, ok := actorFrom(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := parseID(c, "id")
	if !ok {
		return badID(c)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	files, err := h.Tickets.Delete(ctx, actor, id)
	if err != nil {
		return respondError(c, err)
	}
	h.Attachments.Remove(files)
	return c.NoContent(http.StatusNoContent)
}

// ----- thread -----

type messageReq struct {
	Message    string `json:"message"`
	IsInternal bool   `json:"is_internal"`
}

func (h *TicketHandler) ListMessages(c echo.Context) error {
	actor, ok := actorFrom(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := parseID(c, "id")
	if !ok {
		return badID(c)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	msgs, err := h.Tickets.ListMessages(ctx, actor, id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"data": msgs})
}

func (h *TicketHandler) AddMessage(c echo.Context) error {
	actor, ok := actorFrom(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := parseID(c, "id")
	if !ok {
		return badID(c)
	}
	var req messageReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	m, err := h.Tickets.AddMessage(ctx, actor, id, req.Message, req.IsInternal)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, m)
}

// ----- attachments -----

func (h *TicketHandler) ListAttachments(c echo.Context) error {
	actor, ok := actorFrom(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := parseID(c, "id")
	if !ok {
		return badID(c)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	items, err := h.Attachments.List(ctx, actor, id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"data": items})
}

// Upload accepts one multipart file in the "file" field.
func (h *TicketHandler) Upload(c echo.Context) error {
	actor, ok := actorFrom(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := parseID(c, "id")
	if !ok {
		return badID(c)
	}
	fh, err := c.FormFile("file")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "file is required"})
	}
	src, err := fh.Open()
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unreadable file"})
	}
	defer src.Close()

	mime := fh.Header.Get("Content-Type")
	if mime == "" {
		mime = "application/octet-stream"
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	a, err := h.Attachments.Save(ctx, actor, id, service.Upload{Name: fh.Filename, MimeType: mime, Size: fh.Size, Body: src})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, a)
}

// Download streams an attachment under its original name.
func (h *TicketHandler) Download(c echo.Context) error {
	actor, ok := actorFrom(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := parseID(c, "id")
	if !ok {
		return badID(c)
	}
	aid, ok := parseID(c, "attachmentId")
	if !ok {
		return badID(c)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	a, path, err := h.Attachments.Open(ctx, actor, id, aid)
	if err != nil {
		return respondError(c, err)
	}
	c.Response().Header().Set(echo.HeaderContentType, a.MimeType)
	return c.Attachment(path, a.OriginalName)
}
