package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/iliyamo/it-helpdesk/internal/database"
	"github.com/iliyamo/it-helpdesk/internal/model"
)

// TicketRepo provides CRUD operations for tickets.  Reads join the
// requester and the assignee so list views need no extra lookups.
type TicketRepo struct{ db *database.DB }

func NewTicketRepo(db *database.DB) *TicketRepo { return &TicketRepo{db: db} }

const ticketSelect = `SELECT t.id, t.title, t.description, t.status, t.priority, t.type, t.created_by, t.assigned_to,
       t.created_at, t.updated_at, t.resolved_at, t.closed_at, p.name, p.email, COALESCE(u.name, '')
FROM tickets t
JOIN public_users p ON p.id = t.created_by
LEFT JOIN users u ON u.id = t.assigned_to`

func scanTicket(s rowScanner) (model.Ticket, error) {
	var (
		t          model.Ticket
		assignedTo sql.NullInt64
		resolvedAt sql.NullTime
		closedAt   sql.NullTime
	)
	err := s.Scan(&t.ID, &t.Title, &t.Description, &t.Status, &t.Priority, &t.Type, &t.CreatedBy, &assignedTo,
		&t.CreatedAt, &t.UpdatedAt, &resolvedAt, &closedAt, &t.RequesterName, &t.RequesterEmail, &t.AssigneeName)
	if err != nil {
		return t, err
	}
	t.AssignedTo = nullID(assignedTo)
	t.ResolvedAt = nullTime(resolvedAt)
	t.ClosedAt = nullTime(closedAt)
	return t, nil
}

// Create inserts t and fills its ID and timestamps.
func (r *TicketRepo) Create(ctx context.Context, t *model.Ticket) error {
	ts := now()
	id, err := r.db.Dialect.InsertID(ctx, r.db,
		`INSERT INTO tickets (title, description, status, priority, type, created_by, assigned_to, created_at, updated_at)
		 VALUES (?,?,?,?,?,?,?,?,?)`,
		t.Title, t.Description, t.Status, t.Priority, t.Type, t.CreatedBy, idArg(t.AssignedTo), ts, ts)
	if err != nil {
		return err
	}
	t.ID = id
	t.CreatedAt = ts
	t.UpdatedAt = ts
	return nil
}

// GetByID returns a ticket with its joined names.
func (r *TicketRepo) GetByID(ctx context.Context, id uint64) (model.Ticket, error) {
	t, err := scanTicket(r.db.QueryRowContext(ctx, r.db.Rebind(ticketSelect+" WHERE t.id = ?"), id))
	return t, notFound(err)
}

// TicketFilter narrows List.  Zero values mean no filter.
type TicketFilter struct {
	Status     string
	Priority   string
	Type       string
	AssignedTo *uint64
	Unassigned bool
	CreatedBy  *uint64
	Query      string // matched against title and description
	Page       int
	PageSize   int
}

func (f TicketFilter) where() (string, []any) {
	var (
		conds []string
		args  []any
	)
	if f.Status != "" {
		conds = append(conds, "t.status = ?")
		args = append(args, f.Status)
	}
	if f.Priority != "" {
		conds = append(conds, "t.priority = ?")
		args = append(args, f.Priority)
	}
	if f.Type != "" {
		conds = append(conds, "t.type = ?")
		args = append(args, f.Type)
	}
	if f.AssignedTo != nil {
		conds = append(conds, "t.assigned_to = ?")
		args = append(args, *f.AssignedTo)
	} else if f.Unassigned {
		conds = append(conds, "t.assigned_to IS NULL")
	}
	if f.CreatedBy != nil {
		conds = append(conds, "t.created_by = ?")
		args = append(args, *f.CreatedBy)
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		like := "%" + strings.ToLower(q) + "%"
		conds = append(conds, "(LOWER(t.title) LIKE ? OR LOWER(t.description) LIKE ?)")
		args = append(args, like, like)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// List returns one page of tickets, newest first, and the total match count.
func (r *TicketRepo) List(ctx context.Context, f TicketFilter) ([]model.Ticket, int, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize < 1 {
		f.PageSize = 20
	}
	where, args := f.where()

	var total int
	if err := r.db.QueryRowContext(ctx, r.db.Rebind("SELECT COUNT(*) FROM tickets t"+where), args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	q := ticketSelect + where + " ORDER BY t.created_at DESC, t.id DESC LIMIT ? OFFSET ?"
	args = append(args, f.PageSize, (f.Page-1)*f.PageSize)
	items, err := r.query(ctx, q, args...)
	return items, total, err
}

// ListCreatedBetween returns every ticket created in [from, to).
func (r *TicketRepo) ListCreatedBetween(ctx context.Context, from, to time.Time) ([]model.Ticket, error) {
	return r.query(ctx, ticketSelect+" WHERE t.created_at >= ? AND t.created_at < ? ORDER BY t.created_at, t.id",
		from.UTC(), to.UTC())
}

func (r *TicketRepo) query(ctx context.Context, q string, args ...any) ([]model.Ticket, error) {
	rows, err := r.db.QueryContext(ctx, r.db.Rebind(q), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Ticket{}
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Update writes every mutable column of t and refreshes UpdatedAt.
func (r *TicketRepo) Update(ctx context.Context, t *model.Ticket) error {
	t.UpdatedAt = now()
	res, err := r.db.ExecContext(ctx, r.db.Rebind(
		`UPDATE tickets SET title=?, description=?, status=?, priority=?, type=?, assigned_to=?,
		 updated_at=?, resolved_at=?, closed_at=? WHERE id=?`),
		t.Title, t.Description, t.Status, t.Priority, t.Type, idArg(t.AssignedTo),
		t.UpdatedAt, timeArg(t.ResolvedAt), timeArg(t.ClosedAt), t.ID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// Touch bumps updated_at, used when a message is appended.
func (r *TicketRepo) Touch(ctx context.Context, id uint64) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind("UPDATE tickets SET updated_at=? WHERE id=?"), now(), id)
	return err
}

// Delete removes a ticket together with its messages and attachment rows.
func (r *TicketRepo) Delete(ctx context.Context, id uint64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	for _, q := range []string{
		"DELETE FROM ticket_messages WHERE ticket_id=?",
		"DELETE FROM ticket_attachments WHERE ticket_id=?",
	} {
		if _, err := tx.ExecContext(ctx, r.db.Rebind(q), id); err != nil {
			return err
		}
	}
	res, err := tx.ExecContext(ctx, r.db.Rebind("DELETE FROM tickets WHERE id=?"), id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}
