package service

import (
	"math"
	"time"

	"github.com/iliyamo/it-helpdesk/internal/model"
)

// SLA states.
const (
	SLAMet      = "met"
	SLABreached = "breached"
	SLAPending  = "pending"
)

// SLA resolves deadlines from a per-priority target table.
type SLA struct {
	targets map[string]time.Duration
}

// DefaultSLATargets is the built-in table: critical 4h, high 24h, medium
// 72h and low 168h.
func DefaultSLATargets() map[string]time.Duration {
	return map[string]time.Duration{
		model.PriorityCritical: 4 * time.Hour,
		model.PriorityHigh:     24 * time.Hour,
		model.PriorityMedium:   72 * time.Hour,
		model.PriorityLow:      168 * time.Hour,
	}
}

// NewSLA overlays targets on DefaultSLATargets.  A nil map yields the
// defaults.
func NewSLA(targets map[string]time.Duration) SLA {
	t := DefaultSLATargets()
	for k, v := range targets {
		if v > 0 {
			t[k] = v
		}
	}
	return SLA{targets: t}
}

// Target returns the resolution target for priority; unknown priorities
// get the medium target.
func (s SLA) Target(priority string) time.Duration {
	if d, ok := s.targets[priority]; ok {
		return d
	}
	return s.targets[model.PriorityMedium]
}

// Hours returns the target of priority in whole hours.
func (s SLA) Hours(priority string) int { return int(s.Target(priority) / time.Hour) }

// Deadline is created + Target(priority).
func (s SLA) Deadline(created time.Time, priority string) time.Time {
	return created.Add(s.Target(priority))
}

// SLAStatus describes one ticket against its deadline.
type SLAStatus struct {
	State            string    `json:"state"`
	Deadline         time.Time `json:"deadline"`
	TargetHours      int       `json:"target_hours"`
	RemainingMinutes *int      `json:"remaining_minutes,omitempty"`
}

// Evaluate classifies t at instant now.  A resolved (or closed) ticket is
// met when resolved at or before the deadline.  An open ticket is breached
// once now passes the deadline and pending before that.
func (s SLA) Evaluate(t model.Ticket, now time.Time) SLAStatus {
	st := SLAStatus{Deadline: s.Deadline(t.CreatedAt, t.Priority), TargetHours: s.Hours(t.Priority)}
	if done := resolutionTime(t); done != nil {
		if done.After(st.Deadline) {
			st.State = SLABreached
		} else {
			st.State = SLAMet
		}
		return st
	}
	if now.After(st.Deadline) {
		st.State = SLABreached
		return st
	}
	st.State = SLAPending
	left := int(math.Floor(st.Deadline.Sub(now).Minutes()))
	st.RemainingMinutes = &left
	return st
}

// resolutionTime is when work on t ended, or nil while it is still open.
func resolutionTime(t model.Ticket) *time.Time {
	if t.ResolvedAt != nil {
		return t.ResolvedAt
	}
	if t.ClosedAt != nil {
		return t.ClosedAt
	}
	return nil
}
