package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/iliyamo/it-helpdesk/internal/model"
	"github.com/iliyamo/it-helpdesk/internal/queue"
	"github.com/iliyamo/it-helpdesk/internal/repository"
	"github.com/iliyamo/it-helpdesk/internal/utils"
)

// TicketService implements ticket intake, triage and the message thread.
type TicketService struct {
	Tickets  *repository.TicketRepo
	Messages *repository.MessageRepo
	Publics  *repository.PublicUserRepo
	Users    *repository.UserRepo
	Events   queue.Publisher
	SLA      SLA
	Now      func() time.Time
}

func NewTicketService(tickets *repository.TicketRepo, messages *repository.MessageRepo, publics *repository.PublicUserRepo,
	users *repository.UserRepo, events queue.Publisher, sla SLA) *TicketService {
	if events == nil {
		events = queue.NopPublisher{}
	}
	return &TicketService{Tickets: tickets, Messages: messages, Publics: publics, Users: users, Events: events, SLA: sla,
		Now: func() time.Time { return time.Now().UTC() }}
}

// TicketView is a ticket with its SLA position.
type TicketView struct {
	model.Ticket
	SLA SLAStatus `json:"sla"`
}

func (s *TicketService) view(t model.Ticket) TicketView {
	return TicketView{Ticket: t, SLA: s.SLA.Evaluate(t, s.Now())}
}

// CreateTicketInput is the intake form.  Requester fields are only read
// when staff open a ticket on someone's behalf.
type CreateTicketInput struct {
	Title               string  `json:"title"`
	Description         string  `json:"description"`
	Type                string  `json:"type"`
	Priority            string  `json:"priority"`
	Urgency             int     `json:"urgency"`
	Impact              int     `json:"impact"`
	AssignedTo          *uint64 `json:"assigned_to"`
	RequesterEmail      string  `json:"requester_email"`
	RequesterName       string  `json:"requester_name"`
	RequesterDepartment string  `json:"requester_department"`
}

// resolvePriority picks the explicit priority, else the urgency x impact
// score, else medium.
func resolvePriority(prio string, urgency, impact int) (string, error) {
	prio = strings.ToLower(strings.TrimSpace(prio))
	if prio != "" {
		if !model.ValidPriority(prio) {
			return "", invalid("invalid priority %q", prio)
		}
		return prio, nil
	}
	if urgency == 0 && impact == 0 {
		return model.PriorityMedium, nil
	}
	if !ValidLevel(urgency) || !ValidLevel(impact) {
		return "", invalid("urgency and impact must both be between 1 and 3")
	}
	return CalculatePriority(urgency, impact), nil
}

func normalizeType(typ string) (string, error) {
	typ = strings.TrimSpace(typ)
	if typ == "" {
		return model.DefaultTicketType, nil
	}
	if utf8.RuneCountInString(typ) > 50 {
		return "", invalid("type must be at most 50 characters")
	}
	return typ, nil
}

// Create opens a ticket.  Public actors open it for themselves; staff must
// name the requester by e-mail.
func (s *TicketService) Create(ctx context.Context, actor Actor, in CreateTicketInput) (TicketView, error) {
	title := strings.TrimSpace(in.Title)
	desc := strings.TrimSpace(in.Description)
	if title == "" || desc == "" {
		return TicketView{}, invalid("title and description are required")
	}
	if utf8.RuneCountInString(title) > 255 {
		return TicketView{}, invalid("title must be at most 255 characters")
	}
	prio, err := resolvePriority(in.Priority, in.Urgency, in.Impact)
	if err != nil {
		return TicketView{}, err
	}
	typ, err := normalizeType(in.Type)
	if err != nil {
		return TicketView{}, err
	}

	t := model.Ticket{Title: title, Description: desc, Status: model.StatusOpen, Priority: prio, Type: typ}
	switch {
	case actor.IsPublic():
		t.CreatedBy = actor.ID
	case actor.IsStaff():
		email := utils.NormalizeEmail(in.RequesterEmail)
		if !utils.ValidateEmail(email) {
			return TicketView{}, invalid("a valid requester_email is required")
		}
		requester, err := s.Publics.Upsert(ctx, email, in.RequesterName, in.RequesterDepartment)
		if err != nil {
			return TicketView{}, fmt.Errorf("upsert requester: %w", err)
		}
		t.CreatedBy = requester.ID
		if in.AssignedTo != nil {
			if err := s.checkAssignee(ctx, *in.AssignedTo); err != nil {
				return TicketView{}, err
			}
			t.AssignedTo = in.AssignedTo
		}
	default:
		return TicketView{}, repository.ErrForbidden
	}

	if err := s.Tickets.Create(ctx, &t); err != nil {
		return TicketView{}, fmt.Errorf("create ticket: %w", err)
	}
	created, err := s.Tickets.GetByID(ctx, t.ID)
	if err != nil {
		return TicketView{}, err
	}
	s.publish(ctx, queue.Event{Type: queue.TicketCreated, TicketID: created.ID, ActorID: actor.ID, ActorType: actorType(actor),
		AssigneeID: created.AssignedTo, Title: created.Title, Detail: created.Priority})
	return s.view(created), nil
}

func (s *TicketService) checkAssignee(ctx context.Context, id uint64) error {
	u, err := s.Users.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return invalid("assignee %d does not exist", id)
	}
	if err != nil {
		return err
	}
	if !u.IsActive || (u.Role != model.RoleAdmin && u.Role != model.RoleITStaff) {
		return invalid("assignee %d cannot work tickets", id)
	}
	return nil
}

// load fetches a ticket and applies the visibility rule: public actors
// only see tickets they opened.
func (s *TicketService) load(ctx context.Context, actor Actor, id uint64) (model.Ticket, error) {
	t, err := s.Tickets.GetByID(ctx, id)
	if err != nil {
		return t, err
	}
	if actor.IsPublic() && t.CreatedBy != actor.ID {
		return t, repository.ErrForbidden
	}
	if !actor.IsPublic() && !actor.CanView() {
		return t, repository.ErrForbidden
	}
	return t, nil
}

// Get returns one ticket the actor may see.
func (s *TicketService) Get(ctx context.Context, actor Actor, id uint64) (TicketView, error) {
	t, err := s.load(ctx, actor, id)
	if err != nil {
		return TicketView{}, err
	}
	return s.view(t), nil
}

// List returns a page of tickets.  Public actors are restricted to their own.
func (s *TicketService) List(ctx context.Context, actor Actor, f repository.TicketFilter) ([]TicketView, int, error) {
	if actor.IsPublic() {
		id := actor.ID
		f.CreatedBy = &id
	} else if !actor.CanView() {
		return nil, 0, repository.ErrForbidden
	}
	items, total, err := s.Tickets.List(ctx, f)
	if err != nil {
		return nil, 0, err
	}
	out := make([]TicketView, 0, len(items))
	for _, t := range items {
		out = append(out, s.view(t))
	}
	return out, total, nil
}

// TicketPatch lists the fields staff may change; nil means unchanged.
type TicketPatch struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Status      *string `json:"status"`
	Priority    *string `json:"priority"`
	Type        *string `json:"type"`
	AssignedTo  *uint64 `json:"assigned_to"`
	Unassign    bool    `json:"unassign"`
}

// ApplyStatus moves t to status and maintains the resolution stamps:
// entering resolved stamps resolved_at, entering closed stamps closed_at
// (and resolved_at when missing), going back to an active status clears
// both.
func ApplyStatus(t *model.Ticket, status string, now time.Time) {
	switch status {
	case model.StatusResolved:
		if t.ResolvedAt == nil {
			t.ResolvedAt = &now
		}
		t.ClosedAt = nil
	case model.StatusClosed:
		if t.ResolvedAt == nil {
			t.ResolvedAt = &now
		}
		if t.ClosedAt == nil {
			t.ClosedAt = &now
		}
	default:
		t.ResolvedAt = nil
		t.ClosedAt = nil
	}
	t.Status = status
}

// Update applies a staff edit.  Any status may follow any other.
func (s *TicketService) Update(ctx context.Context, actor Actor, id uint64, p TicketPatch) (TicketView, error) {
	if !actor.IsStaff() {
		return TicketView{}, repository.ErrForbidden
	}
	t, err := s.Tickets.GetByID(ctx, id)
	if err != nil {
		return TicketView{}, err
	}
	prevStatus, prevAssignee := t.Status, t.AssignedTo

	if p.Title != nil {
		v := strings.TrimSpace(*p.Title)
		if v == "" || utf8.RuneCountInString(v) > 255 {
			return TicketView{}, invalid("title must be 1 to 255 characters")
		}
		t.Title = v
	}
	if p.Description != nil {
		v := strings.TrimSpace(*p.Description)
		if v == "" {
			return TicketView{}, invalid("description must not be empty")
		}
		t.Description = v
	}
	if p.Priority != nil {
		v := strings.ToLower(strings.TrimSpace(*p.Priority))
		if !model.ValidPriority(v) {
			return TicketView{}, invalid("invalid priority %q", v)
		}
		t.Priority = v
	}
	if p.Type != nil {
		v, err := normalizeType(*p.Type)
		if err != nil {
			return TicketView{}, err
		}
		t.Type = v
	}
	switch {
	case p.Unassign:
		t.AssignedTo = nil
	case p.AssignedTo != nil:
		if err := s.checkAssignee(ctx, *p.AssignedTo); err != nil {
			return TicketView{}, err
		}
		t.AssignedTo = p.AssignedTo
	}
	if p.Status != nil {
		v := strings.ToLower(strings.TrimSpace(*p.Status))
		if !model.ValidStatus(v) {
			return TicketView{}, invalid("invalid status %q", v)
		}
		if v != t.Status {
			ApplyStatus(&t, v, s.Now())
		}
	}

	if err := s.Tickets.Update(ctx, &t); err != nil {
		return TicketView{}, fmt.Errorf("update ticket: %w", err)
	}
	updated, err := s.Tickets.GetByID(ctx, id)
	if err != nil {
		return TicketView{}, err
	}

	detail := "updated"
	if prevStatus != updated.Status {
		detail = "status " + prevStatus + " -> " + updated.Status
	} else if !sameID(prevAssignee, updated.AssignedTo) {
		detail = "assigned"
	}
	s.publish(ctx, queue.Event{Type: queue.TicketUpdated, TicketID: id, ActorID: actor.ID, ActorType: actorType(actor),
		AssigneeID: updated.AssignedTo, Title: updated.Title, Detail: detail})
	return s.view(updated), nil
}

func sameID(a, b *uint64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// Delete removes a ticket and returns the stored names of its attachments
// so the caller can remove the files.
func (s *TicketService) Delete(ctx context.Context, actor Actor, id uint64) ([]string, error) {
	if actor.Role != model.RoleAdmin {
		return nil, repository.ErrForbidden
	}
	if _, err := s.Tickets.GetByID(ctx, id); err != nil {
		return nil, err
	}
	files, err := s.Messages.StoredNamesByTicket(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.Tickets.Delete(ctx, id); err != nil {
		return nil, err
	}
	return files, nil
}

// AddMessage appends to the ticket thread.  Public actors may only write
// public messages on their own tickets.
func (s *TicketService) AddMessage(ctx context.Context, actor Actor, ticketID uint64, text string, internal bool) (model.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return model.Message{}, invalid("message is required")
	}
	if actor.IsPublic() && internal {
		return model.Message{}, repository.ErrForbidden
	}
	if !actor.IsPublic() && !actor.IsStaff() {
		return model.Message{}, repository.ErrForbidden
	}
	t, err := s.load(ctx, actor, ticketID)
	if err != nil {
		return model.Message{}, err
	}

	m := model.Message{TicketID: ticketID, Message: text, AuthorID: actor.ID, IsInternal: internal}
	if actor.IsPublic() {
		m.AuthorType = model.AuthorPublic
		if p, err := s.Publics.GetByID(ctx, actor.ID); err == nil {
			m.AuthorName = p.Name
		}
	} else {
		m.AuthorType = model.AuthorITStaff
		if u, err := s.Users.GetByID(ctx, actor.ID); err == nil {
			m.AuthorName = u.Name
		}
	}
	if err := s.Messages.Create(ctx, &m); err != nil {
		return model.Message{}, fmt.Errorf("create message: %w", err)
	}
	if err := s.Tickets.Touch(ctx, ticketID); err != nil {
		slog.Warn("ticket touch failed", "ticket_id", ticketID, "err", err)
	}
	s.publish(ctx, queue.Event{Type: queue.TicketMessageAdded, TicketID: ticketID, ActorID: actor.ID, ActorType: actorType(actor),
		AssigneeID: t.AssignedTo, Title: t.Title, IsInternal: internal})
	return m, nil
}

// ListMessages returns the thread; internal notes are hidden from public actors.
func (s *TicketService) ListMessages(ctx context.Context, actor Actor, ticketID uint64) ([]model.Message, error) {
	if _, err := s.load(ctx, actor, ticketID); err != nil {
		return nil, err
	}
	return s.Messages.ListByTicket(ctx, ticketID, !actor.IsPublic())
}

func (s *TicketService) publish(ctx context.Context, ev queue.Event) {
	ev.OccurredAt = s.Now()
	if err := s.Events.Publish(ctx, ev); err != nil {
		slog.Warn("event not published", "type", ev.Type, "err", err)
	}
}

func actorType(a Actor) string {
	if a.IsPublic() {
		return model.AuthorPublic
	}
	return model.AuthorITStaff
}
