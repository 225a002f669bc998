// Package queue defines the domain events exchanged over the message
// broker together with the publisher and the consumer that move them.
package queue

import "time"

// QueueName is the durable queue carrying every helpdesk event.
const QueueName = "helpdesk.events"

// Event types.
const (
	TicketCreated      = "ticket.created"
	TicketUpdated      = "ticket.updated"
	TicketMessageAdded = "ticket.message_added"
	EquipmentDelivered = "equipment.delivered"
	EquipmentReturned  = "equipment.returned"
)

// KnownType reports whether t is one of the event types above.
func KnownType(t string) bool {
	switch t {
	case TicketCreated, TicketUpdated, TicketMessageAdded, EquipmentDelivered, EquipmentReturned:
		return true
	}
	return false
}

// Event is published after a ticket or equipment change commits.  It
// carries enough information for consumers to notify users without
// querying the primary database again.
type Event struct {
	Type        string    `json:"type"`
	TicketID    uint64    `json:"ticket_id,omitempty"`
	EquipmentID uint64    `json:"equipment_id,omitempty"`
	TermID      uint64    `json:"term_id,omitempty"`
	ActorID     uint64    `json:"actor_id"`
	ActorType   string    `json:"actor_type"`
	AssigneeID  *uint64   `json:"assignee_id,omitempty"`
	Title       string    `json:"title"`
	Detail      string    `json:"detail,omitempty"`
	IsInternal  bool      `json:"is_internal,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}
