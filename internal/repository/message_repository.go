package repository

import (
	"context"

	"github.com/iliyamo/it-helpdesk/internal/database"
	"github.com/iliyamo/it-helpdesk/internal/model"
	"github.com/iliyamo/it-helpdesk/internal/utils"
)

// MessageRepo stores the ticket thread and attachment metadata.
type MessageRepo struct{ db *database.DB }

func NewMessageRepo(db *database.DB) *MessageRepo { return &MessageRepo{db: db} }

// Create appends m to its ticket thread.
func (r *MessageRepo) Create(ctx context.Context, m *model.Message) error {
	m.CreatedAt = now()
	id, err := r.db.Dialect.InsertID(ctx, r.db,
		`INSERT INTO ticket_messages (ticket_id, message, author_type, author_id, author_name, is_internal, created_at)
		 VALUES (?,?,?,?,?,?,?)`,
		m.TicketID, m.Message, m.AuthorType, m.AuthorID, m.AuthorName, m.IsInternal, m.CreatedAt)
	if err != nil {
		return err
	}
	m.ID = id
	return nil
}

// ListByTicket returns the thread oldest first.  Internal notes are left
// out unless includeInternal is set.
func (r *MessageRepo) ListByTicket(ctx context.Context, ticketID uint64, includeInternal bool) ([]model.Message, error) {
	q := `SELECT id, ticket_id, message, author_type, author_id, author_name, is_internal, created_at
	      FROM ticket_messages WHERE ticket_id = ?`
	args := []any{ticketID}
	if !includeInternal {
		q += " AND is_internal = ?"
		args = append(args, false)
	}
	q += " ORDER BY created_at, id"
	rows, err := r.db.QueryContext(ctx, r.db.Rebind(q), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Message{}
	for rows.Next() {
		var m model.Message
		if err := rows.Scan(&m.ID, &m.TicketID, &m.Message, &m.AuthorType, &m.AuthorID, &m.AuthorName, &m.IsInternal, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

const attachmentCols = "id, ticket_id, original_name, stored_name, mime_type, size_bytes, uploaded_by_type, uploaded_by_id, created_at"

func scanAttachment(s rowScanner) (model.Attachment, error) {
	var a model.Attachment
	err := s.Scan(&a.ID, &a.TicketID, &a.OriginalName, &a.StoredName, &a.MimeType, &a.SizeBytes, &a.UploadedByType, &a.UploadedByID, &a.CreatedAt)
	a.SizeLabel = utils.FormatFileSize(a.SizeBytes)
	return a, err
}

// CreateAttachment records a file already written to the upload directory.
func (r *MessageRepo) CreateAttachment(ctx context.Context, a *model.Attachment) error {
	a.CreatedAt = now()
	id, err := r.db.Dialect.InsertID(ctx, r.db,
		`INSERT INTO ticket_attachments (ticket_id, original_name, stored_name, mime_type, size_bytes, uploaded_by_type, uploaded_by_id, created_at)
		 VALUES (?,?,?,?,?,?,?,?)`,
		a.TicketID, a.OriginalName, a.StoredName, a.MimeType, a.SizeBytes, a.UploadedByType, a.UploadedByID, a.CreatedAt)
	if err != nil {
		return err
	}
	a.ID = id
	a.SizeLabel = utils.FormatFileSize(a.SizeBytes)
	return nil
}

// ListAttachments returns the attachments of a ticket oldest first.
func (r *MessageRepo) ListAttachments(ctx context.Context, ticketID uint64) ([]model.Attachment, error) {
	rows, err := r.db.QueryContext(ctx,
		r.db.Rebind("SELECT "+attachmentCols+" FROM ticket_attachments WHERE ticket_id = ? ORDER BY created_at, id"), ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Attachment{}
	for rows.Next() {
		a, err := scanAttachment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// GetAttachment returns one attachment of ticketID.
func (r *MessageRepo) GetAttachment(ctx context.Context, ticketID, id uint64) (model.Attachment, error) {
	a, err := scanAttachment(r.db.QueryRowContext(ctx,
		r.db.Rebind("SELECT "+attachmentCols+" FROM ticket_attachments WHERE ticket_id = ? AND id = ?"), ticketID, id))
	return a, notFound(err)
}

// StoredNamesByTicket lists the on-disk names of a ticket's attachments so
// the files can be removed with the ticket.
func (r *MessageRepo) StoredNamesByTicket(ctx context.Context, ticketID uint64) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, r.db.Rebind("SELECT stored_name FROM ticket_attachments WHERE ticket_id = ?"), ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
