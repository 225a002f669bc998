package model

import "time"

// Notification is a per-user inbox entry produced from domain events.
type Notification struct {
	ID          uint64    `json:"id"`
	UserID      uint64    `json:"user_id"`
	Type        string    `json:"type"`
	Title       string    `json:"title"`
	Message     string    `json:"message"`
	TicketID    *uint64   `json:"ticket_id,omitempty"`
	EquipmentID *uint64   `json:"equipment_id,omitempty"`
	IsRead      bool      `json:"is_read"`
	CreatedAt   time.Time `json:"created_at"`
}
