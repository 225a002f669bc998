// Package service holds the business rules of the helpdesk: ticket
// lifecycle and SLA, equipment custody, reports and notifications.
package service

import "github.com/iliyamo/it-helpdesk/internal/model"

// CalculatePriority derives a ticket priority from urgency and impact, each
// on a 1..3 scale.  The product decides: 9 critical, 6 high, 3 or 4
// medium, anything below low.
func CalculatePriority(urgency, impact int) string {
	switch score := urgency * impact; {
	case score >= 9:
		return model.PriorityCritical
	case score >= 6:
		return model.PriorityHigh
	case score >= 3:
		return model.PriorityMedium
	default:
		return model.PriorityLow
	}
}

// ValidLevel reports whether v is on the 1..3 urgency/impact scale.
func ValidLevel(v int) bool { return v >= 1 && v <= 3 }
