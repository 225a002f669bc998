package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/it-helpdesk/internal/database"
	"github.com/iliyamo/it-helpdesk/internal/model"
)

// NotificationRepo is the per-user inbox written by the event consumer.
type NotificationRepo struct{ db *database.DB }

func NewNotificationRepo(db *database.DB) *NotificationRepo { return &NotificationRepo{db: db} }

// Create inserts n.
func (r *NotificationRepo) Create(ctx context.Context, n *model.Notification) error {
	n.CreatedAt = now()
	id, err := r.db.Dialect.InsertID(ctx, r.db,
		`INSERT INTO notifications (user_id, type, title, message, ticket_id, equipment_id, is_read, created_at)
		 VALUES (?,?,?,?,?,?,?,?)`,
		n.UserID, n.Type, n.Title, n.Message, idArg(n.TicketID), idArg(n.EquipmentID), false, n.CreatedAt)
	if err != nil {
		return err
	}
	n.ID = id
	return nil
}

// ListByUser returns at most limit notifications of userID, newest first.
func (r *NotificationRepo) ListByUser(ctx context.Context, userID uint64, unreadOnly bool, limit int) ([]model.Notification, error) {
	q := `SELECT id, user_id, type, title, message, ticket_id, equipment_id, is_read, created_at
	      FROM notifications WHERE user_id = ?`
	args := []any{userID}
	if unreadOnly {
		q += " AND is_read = ?"
		args = append(args, false)
	}
	if limit <= 0 {
		limit = 50
	}
	q += " ORDER BY created_at DESC, id DESC LIMIT ?"
	args = append(args, limit)
	rows, err := r.db.QueryContext(ctx, r.db.Rebind(q), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Notification{}
	for rows.Next() {
		var (
			n                   model.Notification
			ticketID, equipment sql.NullInt64
		)
		if err := rows.Scan(&n.ID, &n.UserID, &n.Type, &n.Title, &n.Message, &ticketID, &equipment, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, err
		}
		n.TicketID, n.EquipmentID = nullID(ticketID), nullID(equipment)
		out = append(out, n)
	}
	return out, rows.Err()
}

// CountUnread returns the number of unread notifications of userID.
func (r *NotificationRepo) CountUnread(ctx context.Context, userID uint64) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		r.db.Rebind("SELECT COUNT(*) FROM notifications WHERE user_id = ? AND is_read = ?"), userID, false).Scan(&n)
	return n, err
}

// MarkRead flags one notification of userID as read.  Another user's
// notification is reported as not found.
func (r *NotificationRepo) MarkRead(ctx context.Context, id, userID uint64) error {
	var owner uint64
	err := r.db.QueryRowContext(ctx, r.db.Rebind("SELECT user_id FROM notifications WHERE id = ?"), id).Scan(&owner)
	if err != nil {
		return notFound(err)
	}
	if owner != userID {
		return ErrNotFound
	}
	_, err = r.db.ExecContext(ctx, r.db.Rebind("UPDATE notifications SET is_read = ? WHERE id = ?"), true, id)
	return err
}

// MarkAllRead flags every unread notification of userID and returns how
// many changed.
func (r *NotificationRepo) MarkAllRead(ctx context.Context, userID uint64) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		r.db.Rebind("UPDATE notifications SET is_read = ? WHERE user_id = ? AND is_read = ?"), true, userID, false)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
