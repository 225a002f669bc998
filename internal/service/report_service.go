package service

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/iliyamo/it-helpdesk/internal/model"
	"github.com/iliyamo/it-helpdesk/internal/repository"
)

// DefaultReportWindow is used when a report request names no range.
const DefaultReportWindow = 30 * 24 * time.Hour

// ReportService aggregates tickets and inventory on demand.  Nothing is
// materialized; every call reads the range it reports on.
type ReportService struct {
	Tickets   *repository.TicketRepo
	Equipment *repository.EquipmentRepo
	Terms     *repository.TermRepo
	SLA       SLA
	Now       func() time.Time
}

func NewReportService(tickets *repository.TicketRepo, equipment *repository.EquipmentRepo, terms *repository.TermRepo, sla SLA) *ReportService {
	return &ReportService{Tickets: tickets, Equipment: equipment, Terms: terms, SLA: sla,
		Now: func() time.Time { return time.Now().UTC() }}
}

// Range is a half-open [From, To) interval on ticket created_at.
type Range struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// ResolveRange fills missing ends: To defaults to now and From to
// DefaultReportWindow before To.
func (s *ReportService) ResolveRange(from, to *time.Time) (Range, error) {
	r := Range{To: s.Now()}
	if to != nil {
		r.To = to.UTC()
	}
	r.From = r.To.Add(-DefaultReportWindow)
	if from != nil {
		r.From = from.UTC()
	}
	if !r.From.Before(r.To) {
		return r, invalid("from must be before to")
	}
	return r, nil
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }

func percent(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return round2(float64(part) * 100 / float64(whole))
}

// resolutionHours is created→resolved in hours, or false while open.
func resolutionHours(t model.Ticket) (float64, bool) {
	done := resolutionTime(t)
	if done == nil {
		return 0, false
	}
	return done.Sub(t.CreatedAt).Hours(), true
}

// Overview summarizes ticket volume in a range.
type Overview struct {
	Range                Range          `json:"range"`
	Total                int            `json:"total"`
	ByStatus             map[string]int `json:"by_status"`
	ByPriority           map[string]int `json:"by_priority"`
	ByType               map[string]int `json:"by_type"`
	OpenBacklog          int            `json:"open_backlog"`
	Unassigned           int            `json:"unassigned"`
	AvgResolutionHours   float64        `json:"avg_resolution_hours"`
	ResolvedCount        int            `json:"resolved_count"`
	SLACompliancePercent float64        `json:"sla_compliance_percent"`
}

// Overview counts tickets created in r.
func (s *ReportService) Overview(ctx context.Context, r Range) (Overview, error) {
	tickets, err := s.Tickets.ListCreatedBetween(ctx, r.From, r.To)
	if err != nil {
		return Overview{}, err
	}
	out := Overview{Range: r, Total: len(tickets), ByStatus: map[string]int{}, ByPriority: map[string]int{}, ByType: map[string]int{}}
	for _, st := range model.TicketStatuses() {
		out.ByStatus[st] = 0
	}
	for _, p := range model.TicketPriorities() {
		out.ByPriority[p] = 0
	}
	var (
		hours float64
		met   int
		now   = s.Now()
	)
	for _, t := range tickets {
		out.ByStatus[t.Status]++
		out.ByPriority[t.Priority]++
		out.ByType[t.Type]++
		if !model.IsTerminal(t.Status) {
			out.OpenBacklog++
			if t.AssignedTo == nil {
				out.Unassigned++
			}
		}
		if h, ok := resolutionHours(t); ok {
			hours += h
			out.ResolvedCount++
			if s.SLA.Evaluate(t, now).State == SLAMet {
				met++
			}
		}
	}
	if out.ResolvedCount > 0 {
		out.AvgResolutionHours = round2(hours / float64(out.ResolvedCount))
	}
	out.SLACompliancePercent = percent(met, out.ResolvedCount)
	return out, nil
}

// SLABucket is the compliance of one priority, or of every ticket.
type SLABucket struct {
	Priority          string  `json:"priority,omitempty"`
	TargetHours       int     `json:"target_hours,omitempty"`
	Total             int     `json:"total"`
	Resolved          int     `json:"resolved"`
	Met               int     `json:"met"`
	Breached          int     `json:"breached"`
	PendingOverdue    int     `json:"pending_overdue"`
	Pending           int     `json:"pending"`
	CompliancePercent float64 `json:"compliance_percent"`
}

func (b *SLABucket) add(t model.Ticket, st SLAStatus) {
	b.Total++
	resolved := resolutionTime(t) != nil
	if resolved {
		b.Resolved++
	}
	switch {
	case st.State == SLAMet:
		b.Met++
	case st.State == SLABreached && resolved:
		b.Breached++
	case st.State == SLABreached:
		b.PendingOverdue++
	default:
		b.Pending++
	}
}

// finish computes compliance as met over every ticket whose outcome is
// known: resolved ones plus the overdue open ones.
func (b *SLABucket) finish() {
	b.CompliancePercent = percent(b.Met, b.Met+b.Breached+b.PendingOverdue)
}

// SLAReport is compliance per priority plus the overall line.
type SLAReport struct {
	Range      Range       `json:"range"`
	Overall    SLABucket   `json:"overall"`
	ByPriority []SLABucket `json:"by_priority"`
}

// SLACompliance evaluates every ticket created in r against its deadline.
func (s *ReportService) SLACompliance(ctx context.Context, r Range) (SLAReport, error) {
	tickets, err := s.Tickets.ListCreatedBetween(ctx, r.From, r.To)
	if err != nil {
		return SLAReport{}, err
	}
	now := s.Now()
	buckets := map[string]*SLABucket{}
	prios := model.TicketPriorities()
	for i := len(prios) - 1; i >= 0; i-- {
		buckets[prios[i]] = &SLABucket{Priority: prios[i], TargetHours: s.SLA.Hours(prios[i])}
	}
	out := SLAReport{Range: r}
	for _, t := range tickets {
		st := s.SLA.Evaluate(t, now)
		out.Overall.add(t, st)
		if b, ok := buckets[t.Priority]; ok {
			b.add(t, st)
		}
	}
	out.Overall.finish()
	for i := len(prios) - 1; i >= 0; i-- {
		b := buckets[prios[i]]
		b.finish()
		out.ByPriority = append(out.ByPriority, *b)
	}
	return out, nil
}

// TechnicianStats is the workload of one assignee.
type TechnicianStats struct {
	UserID               uint64  `json:"user_id"`
	Name                 string  `json:"name"`
	Assigned             int     `json:"assigned"`
	Resolved             int     `json:"resolved"`
	Open                 int     `json:"open"`
	AvgResolutionHours   float64 `json:"avg_resolution_hours"`
	SLACompliancePercent float64 `json:"sla_compliance_percent"`

	hours float64
	met   int
}

// Technicians ranks assignees of tickets created in r by resolved count.
func (s *ReportService) Technicians(ctx context.Context, r Range) ([]TechnicianStats, error) {
	tickets, err := s.Tickets.ListCreatedBetween(ctx, r.From, r.To)
	if err != nil {
		return nil, err
	}
	now := s.Now()
	byID := map[uint64]*TechnicianStats{}
	for _, t := range tickets {
		if t.AssignedTo == nil {
			continue
		}
		ts, ok := byID[*t.AssignedTo]
		if !ok {
			ts = &TechnicianStats{UserID: *t.AssignedTo, Name: t.AssigneeName}
			byID[*t.AssignedTo] = ts
		}
		ts.Assigned++
		h, done := resolutionHours(t)
		if !done {
			ts.Open++
			continue
		}
		ts.Resolved++
		ts.hours += h
		if s.SLA.Evaluate(t, now).State == SLAMet {
			ts.met++
		}
	}
	out := make([]TechnicianStats, 0, len(byID))
	for _, ts := range byID {
		if ts.Resolved > 0 {
			ts.AvgResolutionHours = round2(ts.hours / float64(ts.Resolved))
		}
		ts.SLACompliancePercent = percent(ts.met, ts.Resolved)
		out = append(out, *ts)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Resolved != out[j].Resolved {
			return out[i].Resolved > out[j].Resolved
		}
		return out[i].UserID < out[j].UserID
	})
	return out, nil
}

// InventorySummary is a point-in-time view of the equipment table.
type InventorySummary struct {
	Total              int            `json:"total"`
	ByStatus           map[string]int `json:"by_status"`
	ByCategory         map[string]int `json:"by_category"`
	ActiveTerms        int            `json:"active_terms"`
	TermsIssued        int            `json:"terms_issued"`
	TotalPurchaseValue float64        `json:"total_purchase_value"`
	TotalCurrentValue  float64        `json:"total_current_value"`
}

// Inventory summarizes equipment now; TermsIssued counts terms issued in r.
func (s *ReportService) Inventory(ctx context.Context, r Range) (InventorySummary, error) {
	items, _, err := s.Equipment.List(ctx, repository.EquipmentFilter{})
	if err != nil {
		return InventorySummary{}, err
	}
	out := InventorySummary{Total: len(items), ByStatus: map[string]int{}, ByCategory: map[string]int{}}
	for _, st := range model.EquipmentStatuses() {
		out.ByStatus[st] = 0
	}
	now := s.Now()
	for _, e := range items {
		out.ByStatus[e.CurrentStatus]++
		if e.Category != "" {
			out.ByCategory[e.Category]++
		}
		if e.PurchaseValue != nil {
			out.TotalPurchaseValue += *e.PurchaseValue
			out.TotalCurrentValue += *withCurrentValue(e, now).CurrentValue
		}
	}
	out.TotalPurchaseValue = round2(out.TotalPurchaseValue)
	out.TotalCurrentValue = round2(out.TotalCurrentValue)

	active, err := s.Terms.List(ctx, repository.TermFilter{Status: model.TermActive})
	if err != nil {
		return InventorySummary{}, err
	}
	out.ActiveTerms = len(active)
	issued, err := s.Terms.List(ctx, repository.TermFilter{From: &r.From, To: &r.To})
	if err != nil {
		return InventorySummary{}, err
	}
	out.TermsIssued = len(issued)
	return out, nil
}
