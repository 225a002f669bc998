package model

import "time"

// Message author types.
const (
	AuthorPublic  = "public"
	AuthorITStaff = "it_staff"
)

// Message is one entry of a ticket thread.  Internal messages are notes
// between technicians and are never shown to the requester.
type Message struct {
	ID         uint64    `json:"id"`
	TicketID   uint64    `json:"ticket_id"`
	Message    string    `json:"message"`
	AuthorType string    `json:"author_type"`
	AuthorID   uint64    `json:"author_id"`
	AuthorName string    `json:"author_name"`
	IsInternal bool      `json:"is_internal"`
	CreatedAt  time.Time `json:"created_at"`
}

// Attachment is the metadata row of a file stored on disk.  StoredName is
// the file name inside the upload directory and is never sent to clients.
type Attachment struct {
	ID             uint64    `json:"id"`
	TicketID       uint64    `json:"ticket_id"`
	OriginalName   string    `json:"original_name"`
	StoredName     string    `json:"-"`
	MimeType       string    `json:"mime_type"`
	SizeBytes      int64     `json:"size_bytes"`
	SizeLabel      string    `json:"size_label"`
	UploadedByType string    `json:"uploaded_by_type"`
	UploadedByID   uint64    `json:"uploaded_by_id"`
	CreatedAt      time.Time `json:"created_at"`
}
