package model

import "time"

// Ticket statuses.  Any status may be set to any other by IT staff; the
// vocabulary itself is closed.
const (
	StatusOpen        = "open"
	StatusInProgress  = "in_progress"
	StatusWaitingUser = "waiting_user"
	StatusResolved    = "resolved"
	StatusClosed      = "closed"
)

// Ticket priorities, lowest to highest.
const (
	PriorityLow      = "low"
	PriorityMedium   = "medium"
	PriorityHigh     = "high"
	PriorityCritical = "critical"
)

// DefaultTicketType is used when the submitter leaves the type empty.
const DefaultTicketType = "incident"

var (
	ticketStatuses   = []string{StatusOpen, StatusInProgress, StatusWaitingUser, StatusResolved, StatusClosed}
	ticketPriorities = []string{PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical}
)

// TicketStatuses returns the status vocabulary in lifecycle order.
func TicketStatuses() []string { return append([]string(nil), ticketStatuses...) }

// TicketPriorities returns the priority vocabulary from low to critical.
func TicketPriorities() []string { return append([]string(nil), ticketPriorities...) }

func ValidStatus(s string) bool   { return contains(ticketStatuses, s) }
func ValidPriority(p string) bool { return contains(ticketPriorities, p) }

// IsTerminal reports whether the status ends the SLA clock.
func IsTerminal(status string) bool {
	return status == StatusResolved || status == StatusClosed
}

// Ticket represents a support request opened by a public user.
//
// Fields:
//
//	CreatedBy  – public_users.id of the requester.
//	AssignedTo – users.id of the technician (nil while unassigned).
//	ResolvedAt – stamped when the ticket first reaches resolved/closed.
//	ClosedAt   – stamped when the ticket reaches closed.
type Ticket struct {
	ID          uint64     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      string     `json:"status"`
	Priority    string     `json:"priority"`
	Type        string     `json:"type"`
	CreatedBy   uint64     `json:"created_by"`
	AssignedTo  *uint64    `json:"assigned_to"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	ResolvedAt  *time.Time `json:"resolved_at,omitempty"`
	ClosedAt    *time.Time `json:"closed_at,omitempty"`

	// Joined fields (not always populated).
	RequesterName  string `json:"requester_name,omitempty"`
	RequesterEmail string `json:"requester_email,omitempty"`
	AssigneeName   string `json:"assignee_name,omitempty"`
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
