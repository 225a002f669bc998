package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/iliyamo/it-helpdesk/internal/model"
	"github.com/iliyamo/it-helpdesk/internal/queue"
	"github.com/iliyamo/it-helpdesk/internal/repository"
)

// NotificationService turns domain events into per-user inbox rows and
// serves the inbox.  It is the queue.Sink of the event consumer.
type NotificationService struct {
	Notifications *repository.NotificationRepo
	Users         *repository.UserRepo
}

func NewNotificationService(notifications *repository.NotificationRepo, users *repository.UserRepo) *NotificationService {
	return &NotificationService{Notifications: notifications, Users: users}
}

var _ queue.Sink = (*NotificationService)(nil)

// HandleEvent writes one notification per recipient of ev.  Unknown event
// types are ignored.
func (s *NotificationService) HandleEvent(ctx context.Context, ev queue.Event) error {
	if !queue.KnownType(ev.Type) {
		slog.Warn("ignoring unknown event", "type", ev.Type)
		return nil
	}
	recipients, err := s.recipients(ctx, ev)
	if err != nil {
		return err
	}
	title, message := describe(ev)
	for _, uid := range recipients {
		n := model.Notification{UserID: uid, Type: ev.Type, Title: title, Message: message}
		if ev.TicketID != 0 {
			n.TicketID = ptr(ev.TicketID)
		}
		if ev.EquipmentID != 0 {
			n.EquipmentID = ptr(ev.EquipmentID)
		}
		if err := s.Notifications.Create(ctx, &n); err != nil {
			return fmt.Errorf("notify user %d: %w", uid, err)
		}
	}
	return nil
}

// recipients resolves who hears about ev.  The staff member who caused an
// event is never notified of it.
func (s *NotificationService) recipients(ctx context.Context, ev queue.Event) ([]uint64, error) {
	var ids []uint64
	staffActor := ev.ActorType != model.AuthorPublic
	switch ev.Type {
	case queue.TicketCreated:
		all, err := s.Users.ActiveIDsByRoles(ctx, model.RoleAdmin, model.RoleITStaff)
		if err != nil {
			return nil, err
		}
		ids = all
	case queue.TicketUpdated:
		if ev.AssigneeID != nil {
			ids = []uint64{*ev.AssigneeID}
		}
	case queue.TicketMessageAdded:
		switch {
		case ev.AssigneeID != nil:
			ids = []uint64{*ev.AssigneeID}
		case !staffActor:
			all, err := s.Users.ActiveIDsByRoles(ctx, model.RoleAdmin, model.RoleITStaff)
			if err != nil {
				return nil, err
			}
			ids = all
		}
	case queue.EquipmentDelivered, queue.EquipmentReturned:
		admins, err := s.Users.ActiveIDsByRoles(ctx, model.RoleAdmin)
		if err != nil {
			return nil, err
		}
		ids = admins
	}
	if !staffActor {
		return ids, nil
	}
	out := ids[:0]
	for _, id := range ids {
		if id != ev.ActorID {
			out = append(out, id)
		}
	}
	return out, nil
}

func describe(ev queue.Event) (title, message string) {
	switch ev.Type {
	case queue.TicketCreated:
		return fmt.Sprintf("New ticket #%d", ev.TicketID), fmt.Sprintf("%s (%s)", ev.Title, ev.Detail)
	case queue.TicketUpdated:
		return fmt.Sprintf("Ticket #%d updated", ev.TicketID), fmt.Sprintf("%s: %s", ev.Title, ev.Detail)
	case queue.TicketMessageAdded:
		if ev.IsInternal {
			return fmt.Sprintf("Internal note on ticket #%d", ev.TicketID), ev.Title
		}
		return fmt.Sprintf("New message on ticket #%d", ev.TicketID), ev.Title
	case queue.EquipmentDelivered:
		return fmt.Sprintf("Equipment %s delivered", ev.Title), "Delivered to " + ev.Detail
	case queue.EquipmentReturned:
		return fmt.Sprintf("Equipment %s returned", ev.Title), "Destination: " + ev.Detail
	}
	return ev.Type, ev.Title
}

// List returns the inbox of userID, newest first, with the unread count.
func (s *NotificationService) List(ctx context.Context, userID uint64, unreadOnly bool, limit int) ([]model.Notification, int, error) {
	items, err := s.Notifications.ListByUser(ctx, userID, unreadOnly, limit)
	if err != nil {
		return nil, 0, err
	}
	unread, err := s.Notifications.CountUnread(ctx, userID)
	if err != nil {
		return nil, 0, err
	}
	return items, unread, nil
}

// MarkRead flags one notification of userID as read.
func (s *NotificationService) MarkRead(ctx context.Context, userID, id uint64) error {
	return s.Notifications.MarkRead(ctx, id, userID)
}

// MarkAllRead flags every unread notification of userID.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID uint64) (int64, error) {
	return s.Notifications.MarkAllRead(ctx, userID)
}
