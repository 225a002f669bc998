package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/iliyamo/it-helpdesk/internal/model"
	"github.com/iliyamo/it-helpdesk/internal/repository"
)

// ErrTooLarge is returned when an upload exceeds the configured limit.
var ErrTooLarge = errors.New("file too large")

// AttachmentService stores ticket files on disk under a random name and
// keeps their metadata in the database.
type AttachmentService struct {
	Tickets  *TicketService
	Dir      string
	MaxBytes int64
}

func NewAttachmentService(tickets *TicketService, dir string, maxBytes int64) *AttachmentService {
	return &AttachmentService{Tickets: tickets, Dir: dir, MaxBytes: maxBytes}
}

// Upload is one file received from a client.
type Upload struct {
	Name     string
	MimeType string
	Size     int64
	Body     io.Reader
}

// Save writes u for ticketID.  The stored name is a uuid plus the
// original extension.
func (s *AttachmentService) Save(ctx context.Context, actor Actor, ticketID uint64, u Upload) (model.Attachment, error) {
	if !actor.IsPublic() && !actor.IsStaff() {
		return model.Attachment{}, repository.ErrForbidden
	}
	if _, err := s.Tickets.load(ctx, actor, ticketID); err != nil {
		return model.Attachment{}, err
	}
	if s.MaxBytes > 0 && u.Size > s.MaxBytes {
		return model.Attachment{}, ErrTooLarge
	}
	orig := filepath.Base(strings.TrimSpace(u.Name))
	if orig == "" || orig == "." || orig == string(filepath.Separator) {
		return model.Attachment{}, invalid("file name is required")
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return model.Attachment{}, fmt.Errorf("mkdir uploads: %w", err)
	}

	stored := uuid.NewString() + strings.ToLower(filepath.Ext(orig))
	path := filepath.Join(s.Dir, stored)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return model.Attachment{}, fmt.Errorf("create file: %w", err)
	}
	body := u.Body
	if s.MaxBytes > 0 {
		body = io.LimitReader(u.Body, s.MaxBytes+1)
	}
	n, err := io.Copy(f, body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil && s.MaxBytes > 0 && n > s.MaxBytes {
		err = ErrTooLarge
	}
	if err != nil {
		_ = os.Remove(path)
		if errors.Is(err, ErrTooLarge) {
			return model.Attachment{}, err
		}
		return model.Attachment{}, fmt.Errorf("write file: %w", err)
	}

	mime := u.MimeType
	if mime == "" {
		mime = "application/octet-stream"
	}
	a := model.Attachment{TicketID: ticketID, OriginalName: orig, StoredName: stored, MimeType: mime, SizeBytes: n,
		UploadedByType: actorType(actor), UploadedByID: actor.ID}
	if err := s.Tickets.Messages.CreateAttachment(ctx, &a); err != nil {
		_ = os.Remove(path)
		return model.Attachment{}, fmt.Errorf("record attachment: %w", err)
	}
	return a, nil
}

// List returns the attachments of a ticket the actor may see.
func (s *AttachmentService) List(ctx context.Context, actor Actor, ticketID uint64) ([]model.Attachment, error) {
	if _, err := s.Tickets.load(ctx, actor, ticketID); err != nil {
		return nil, err
	}
	return s.Tickets.Messages.ListAttachments(ctx, ticketID)
}

// Open returns an attachment and the path of its file.
func (s *AttachmentService) Open(ctx context.Context, actor Actor, ticketID, id uint64) (model.Attachment, string, error) {
	if _, err := s.Tickets.load(ctx, actor, ticketID); err != nil {
		return model.Attachment{}, "", err
	}
	a, err := s.Tickets.Messages.GetAttachment(ctx, ticketID, id)
	if err != nil {
		return a, "", err
	}
	return a, filepath.Join(s.Dir, a.StoredName), nil
}

// Remove deletes stored files, logging failures.
func (s *AttachmentService) Remove(names []string) {
	for _, n := range names {
		if err := os.Remove(filepath.Join(s.Dir, filepath.Base(n))); err != nil && !os.IsNotExist(err) {
			slog.Warn("attachment file not removed", "name", n, "err", err)
		}
	}
}
