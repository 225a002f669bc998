package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/iliyamo/it-helpdesk/internal/model"
	"github.com/iliyamo/it-helpdesk/internal/repository"
)

// Drift kinds reported by CheckConsistency.
const (
	DriftInUseWithoutTerm    = "in_use_without_term"
	DriftTermOnIdleEquipment = "active_term_not_in_use"
	DriftResponsibleMismatch = "responsible_mismatch"
	DriftMultipleActiveTerms = "multiple_active_terms"
)

// Drift is one disagreement between an equipment row and the term table.
type Drift struct {
	EquipmentID  uint64   `json:"equipment_id"`
	InternalCode string   `json:"internal_code"`
	Kind         string   `json:"kind"`
	Detail       string   `json:"detail"`
	TermIDs      []uint64 `json:"term_ids,omitempty"`
}

// RepairResult lists what RepairConsistency changed.
type RepairResult struct {
	Found    []Drift  `json:"found"`
	Repaired []uint64 `json:"repaired_equipment_ids"`
}

func sameName(a *string, b string) bool { return a != nil && *a == b }

// CheckConsistency compares every equipment row with its active terms.
// The term table is taken as the truth.
func (s *InventoryService) CheckConsistency(ctx context.Context) ([]Drift, error) {
	items, _, err := s.Equipment.List(ctx, repository.EquipmentFilter{})
	if err != nil {
		return nil, err
	}
	active, err := s.Terms.List(ctx, repository.TermFilter{Status: model.TermActive})
	if err != nil {
		return nil, err
	}
	terms := map[uint64][]model.ResponsibilityTerm{}
	for _, t := range active {
		terms[t.EquipmentID] = append(terms[t.EquipmentID], t)
	}

	out := []Drift{}
	for _, e := range items {
		ts := terms[e.ID]
		d := Drift{EquipmentID: e.ID, InternalCode: e.InternalCode}
		switch {
		case len(ts) == 0 && e.CurrentStatus == model.EquipmentInUse:
			d.Kind, d.Detail = DriftInUseWithoutTerm, "status in_use but no active term"
			out = append(out, d)
			continue
		case len(ts) == 0 && (e.CurrentResponsibleID != nil || e.CurrentResponsibleName != nil):
			d.Kind, d.Detail = DriftResponsibleMismatch, "responsible set without an active term"
			out = append(out, d)
			continue
		case len(ts) == 0:
			continue
		}
		ids := make([]uint64, len(ts))
		for i, t := range ts {
			ids[i] = t.ID
		}
		if len(ts) > 1 {
			dd := d
			dd.Kind, dd.Detail, dd.TermIDs = DriftMultipleActiveTerms, fmt.Sprintf("%d active terms", len(ts)), ids
			out = append(out, dd)
		}
		// List is newest first.
		t := ts[0]
		if e.CurrentStatus != model.EquipmentInUse {
			dd := d
			dd.Kind, dd.Detail, dd.TermIDs = DriftTermOnIdleEquipment, "active term but status "+e.CurrentStatus, []uint64{t.ID}
			out = append(out, dd)
		} else if !sameID(e.CurrentResponsibleID, t.ResponsibleUserID) || !sameName(e.CurrentResponsibleName, t.ResponsibleName) {
			dd := d
			dd.Kind, dd.Detail, dd.TermIDs = DriftResponsibleMismatch, "responsible differs from term "+fmt.Sprint(t.ID), []uint64{t.ID}
			out = append(out, dd)
		}
	}
	return out, nil
}

// RepairConsistency realigns every drifted equipment row with its newest
// active term.  Older duplicate terms are cancelled.  Each item is fixed in
// its own transaction and logged with a reconciliation movement.
func (s *InventoryService) RepairConsistency(ctx context.Context, performedBy *uint64) (RepairResult, error) {
	found, err := s.CheckConsistency(ctx)
	if err != nil {
		return RepairResult{}, err
	}
	res := RepairResult{Found: found, Repaired: []uint64{}}
	byItem := map[uint64][]Drift{}
	for _, d := range found {
		byItem[d.EquipmentID] = append(byItem[d.EquipmentID], d)
	}
	ids := make([]uint64, 0, len(byItem))
	for id := range byItem {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		if err := s.repairItem(ctx, id, byItem[id], performedBy); err != nil {
			return res, fmt.Errorf("repair equipment %d: %w", id, err)
		}
		res.Repaired = append(res.Repaired, id)
		slog.Info("equipment reconciled", "equipment_id", id, "drifts", len(byItem[id]))
	}
	return res, nil
}

func (s *InventoryService) repairItem(ctx context.Context, id uint64, drifts []Drift, performedBy *uint64) error {
	kinds := make([]string, len(drifts))
	for i, d := range drifts {
		kinds[i] = d.Kind
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		e, err := s.Equipment.GetForUpdateTx(ctx, tx, id)
		if err != nil {
			return err
		}
		for _, d := range drifts {
			if d.Kind != DriftMultipleActiveTerms {
				continue
			}
			// TermIDs is newest first; keep the first.
			for _, old := range d.TermIDs[1:] {
				if err := s.Terms.CancelTx(ctx, tx, old, performedBy, "superseded by a newer active term"); err != nil {
					return err
				}
			}
		}

		state := repository.EquipmentState{Status: e.CurrentStatus, Location: e.CurrentLocation}
		term, err := s.Terms.ActiveForEquipmentTx(ctx, tx, id)
		switch {
		case err == nil:
			state.Status = model.EquipmentInUse
			state.ResponsibleID = term.ResponsibleUserID
			state.ResponsibleName = ptr(term.ResponsibleName)
			if state.Location == "" {
				state.Location = term.DeliveryLocation
			}
		case errors.Is(err, repository.ErrNoActiveTerm):
			if state.Status == model.EquipmentInUse {
				state.Status = model.EquipmentInStock
			}
		default:
			return err
		}
		if err := s.Equipment.SetStateTx(ctx, tx, id, state); err != nil {
			return err
		}
		m := model.Movement{EquipmentID: id, MovementType: model.MovementReconcile, PerformedBy: performedBy,
			FromLocation: ptr(e.CurrentLocation), ToLocation: ptr(state.Location), FromUser: e.CurrentResponsibleName,
			ToUser: state.ResponsibleName, Notes: strings.Join(kinds, ", ")}
		if term.ID != 0 {
			m.TermID = ptr(term.ID)
		}
		return s.Movements.CreateTx(ctx, tx, &m)
	})
}
