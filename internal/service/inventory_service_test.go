package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/iliyamo/it-helpdesk/internal/model"
	"github.com/iliyamo/it-helpdesk/internal/queue"
	"github.com/iliyamo/it-helpdesk/internal/repository"
)

func fullChecklist() map[string]bool {
	out := map[string]bool{}
	for _, k := range testChecklist {
		out[k] = true
	}
	return out
}

func validDelivery() DeliverInput {
	return DeliverInput{
		ResponsibleName:     "Maria Souza",
		ResponsibleCPF:      "529.982.247-25",
		ResponsiblePosition: "Analyst",
		DeliveryLocation:    "Floor 3",
	}
}

func (f *fixture) register(t *testing.T, code string) model.Equipment {
	t.Helper()
	e, err := f.inventory.Register(context.Background(), f.tech, EquipmentInput{InternalCode: code, Category: "notebook", CurrentLocation: "IT room"})
	if err != nil {
		t.Fatalf("Register %s: %v", code, err)
	}
	return e
}

func movementTypes(t *testing.T, f *fixture, id uint64) []string {
	t.Helper()
	ms, err := f.inventory.History(context.Background(), id)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	out := make([]string, len(ms))
	for i, m := range ms {
		out[len(ms)-1-i] = m.MovementType
	}
	return out
}

func TestRegisterEquipment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	value, life := 1200.0, 4
	e, err := f.inventory.Register(ctx, f.tech, EquipmentInput{
		InternalCode: " nb-001 ", Category: "notebook", PurchaseDate: time.Now().AddDate(-1, 0, 0).Format("2006-01-02"),
		PurchaseValue: &value, UsefulLifeYears: &life,
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if e.InternalCode != "NB-001" || e.CurrentStatus != model.EquipmentInStock {
		t.Fatalf("unexpected equipment %+v", e)
	}
	if e.CurrentValue == nil || *e.CurrentValue >= value || *e.CurrentValue <= 0 {
		t.Fatalf("expected a depreciated value, got %v", e.CurrentValue)
	}

	if _, err := f.inventory.Register(ctx, f.tech, EquipmentInput{InternalCode: "NB-001"}); !errors.Is(err, repository.ErrCodeExists) {
		t.Fatalf("expected ErrCodeExists, got %v", err)
	}
	for _, bad := range []string{"N-001", "NB-01", "NB001", ""} {
		if _, err := f.inventory.Register(ctx, f.tech, EquipmentInput{InternalCode: bad}); !IsValidation(err) {
			t.Errorf("code %q must fail validation, got %v", bad, err)
		}
	}
	negative := -1.0
	if _, err := f.inventory.Register(ctx, f.tech, EquipmentInput{InternalCode: "NB-002", PurchaseValue: &negative}); !IsValidation(err) {
		t.Fatalf("negative value must fail validation, got %v", err)
	}
	if got := movementTypes(t, f, e.ID); len(got) != 1 || got[0] != model.MovementRegistration {
		t.Fatalf("expected a registration movement, got %v", got)
	}
}

func TestDeliverAndReturn(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e := f.register(t, "NB-010")

	bad := validDelivery()
	bad.ResponsibleCPF = "111.111.111-11"
	if _, err := f.inventory.Deliver(ctx, f.tech, e.ID, bad); !IsValidation(err) {
		t.Fatalf("repeated-digit CPF must fail validation, got %v", err)
	}
	bad = validDelivery()
	bad.ResponsiblePosition = ""
	if _, err := f.inventory.Deliver(ctx, f.tech, e.ID, bad); !IsValidation(err) {
		t.Fatalf("missing position must fail validation, got %v", err)
	}

	term, err := f.inventory.Deliver(ctx, f.tech, e.ID, validDelivery())
	if err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if term.Status != model.TermActive || term.ResponsibleCPF != "529.982.247-25" || term.EquipmentCode != "NB-010" {
		t.Fatalf("unexpected term %+v", term)
	}
	got, _ := f.inventory.Get(ctx, e.ID)
	if got.CurrentStatus != model.EquipmentInUse || got.CurrentResponsibleName == nil || *got.CurrentResponsibleName != "Maria Souza" || got.CurrentLocation != "Floor 3" {
		t.Fatalf("equipment not flipped to in_use: %+v", got)
	}
	if ev := f.events.last(); ev.Type != queue.EquipmentDelivered || ev.TermID != term.ID {
		t.Fatalf("unexpected event %+v", ev)
	}

	if _, err := f.inventory.Deliver(ctx, f.tech, e.ID, validDelivery()); !errors.Is(err, ErrNotAvailable) {
		t.Fatalf("second delivery must fail, got %v", err)
	}
	if _, err := f.inventory.ChangeStatus(ctx, f.tech, e.ID, model.EquipmentMaintenance, ""); !errors.Is(err, ErrInUse) {
		t.Fatalf("status change on in_use item must fail, got %v", err)
	}
	if err := f.inventory.Delete(ctx, e.ID); !errors.Is(err, ErrInUse) {
		t.Fatalf("delete of in_use item must fail, got %v", err)
	}

	partial := map[string]bool{"equipment_intact": true}
	if _, err := f.inventory.Return(ctx, f.tech, e.ID, ReturnInput{Destination: "storage", Checklist: partial}); !IsValidation(err) {
		t.Fatalf("incomplete checklist must fail validation, got %v", err)
	}
	if _, err := f.inventory.Return(ctx, f.tech, e.ID, ReturnInput{Destination: "trash", Checklist: fullChecklist()}); !IsValidation(err) {
		t.Fatalf("unknown destination must fail validation, got %v", err)
	}

	check := fullChecklist()
	check["powers_on"] = false
	returned, err := f.inventory.Return(ctx, f.tech, e.ID, ReturnInput{Destination: "storage", Checklist: check, Notes: "battery dead"})
	if err != nil {
		t.Fatalf("Return: %v", err)
	}
	if returned.Status != model.TermReturned || returned.ReturnedDate == nil || returned.ReturnChecklist["powers_on"] {
		t.Fatalf("unexpected returned term %+v", returned)
	}
	got, _ = f.inventory.Get(ctx, e.ID)
	if got.CurrentStatus != model.EquipmentInStock || got.CurrentLocation != model.StorageLocation || got.CurrentResponsibleName != nil {
		t.Fatalf("equipment not back in storage: %+v", got)
	}
	stored, _ := f.inventory.GetTerm(ctx, term.ID)
	if stored.Status != model.TermReturned || !stored.ReturnChecklist["equipment_intact"] || stored.ReturnNotes == nil {
		t.Fatalf("term row not closed: %+v", stored)
	}

	if _, err := f.inventory.Return(ctx, f.tech, e.ID, ReturnInput{Destination: "available", Checklist: fullChecklist()}); !errors.Is(err, repository.ErrNoActiveTerm) {
		t.Fatalf("return without active term must fail, got %v", err)
	}

	want := []string{model.MovementRegistration, model.MovementDelivery, model.MovementReturn}
	if got := movementTypes(t, f, e.ID); len(got) != len(want) || got[1] != want[1] || got[2] != want[2] {
		t.Fatalf("movements = %v, want %v", got, want)
	}
}

func TestReturnDestinations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cases := map[string]string{
		"NB-101": model.DestinationAvailable,
		"NB-102": model.DestinationMaintenance,
		"NB-103": model.DestinationDisposal,
	}
	for code, dest := range cases {
		e := f.register(t, code)
		if _, err := f.inventory.Deliver(ctx, f.tech, e.ID, validDelivery()); err != nil {
			t.Fatalf("Deliver %s: %v", code, err)
		}
		if _, err := f.inventory.Return(ctx, f.tech, e.ID, ReturnInput{Destination: dest, Checklist: fullChecklist()}); err != nil {
			t.Fatalf("Return %s: %v", code, err)
		}
		got, _ := f.inventory.Get(ctx, e.ID)
		want, _ := model.DestinationStatus(dest)
		if got.CurrentStatus != want || got.CurrentLocation != "Floor 3" {
			t.Errorf("%s: status %s location %q, want %s at Floor 3", dest, got.CurrentStatus, got.CurrentLocation, want)
		}
	}
}

func TestChangeStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e := f.register(t, "MN-200")

	if _, err := f.inventory.ChangeStatus(ctx, f.tech, e.ID, model.EquipmentInUse, ""); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("in_use only through delivery, got %v", err)
	}
	if _, err := f.inventory.ChangeStatus(ctx, f.tech, e.ID, "broken", ""); !IsValidation(err) {
		t.Fatalf("unknown status must fail validation, got %v", err)
	}
	got, err := f.inventory.ChangeStatus(ctx, f.tech, e.ID, model.EquipmentMaintenance, "fan noise")
	if err != nil || got.CurrentStatus != model.EquipmentMaintenance {
		t.Fatalf("to maintenance: %+v %v", got, err)
	}
	if _, err := f.inventory.Deliver(ctx, f.tech, e.ID, validDelivery()); !errors.Is(err, ErrNotAvailable) {
		t.Fatalf("items in maintenance cannot be delivered, got %v", err)
	}
	if got, err = f.inventory.ChangeStatus(ctx, f.tech, e.ID, model.EquipmentRetired, ""); err != nil || got.CurrentStatus != model.EquipmentRetired {
		t.Fatalf("to retired: %+v %v", got, err)
	}
	if _, err := f.inventory.ChangeStatus(ctx, f.tech, e.ID, model.EquipmentInStock, ""); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("retired is final, got %v", err)
	}
	want := []string{model.MovementRegistration, model.MovementMaintenance, model.MovementRetirement}
	if got := movementTypes(t, f, e.ID); len(got) != 3 || got[1] != want[1] || got[2] != want[2] {
		t.Fatalf("movements = %v, want %v", got, want)
	}
	if err := f.inventory.Delete(ctx, e.ID); !errors.Is(err, repository.ErrHasHistory) {
		t.Fatalf("retired items keep their history, got %v", err)
	}
}

func TestDeleteKeepsCustodyHistory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	fresh := f.register(t, "NB-900")
	if err := f.inventory.Delete(ctx, fresh.ID); err != nil {
		t.Fatalf("Delete freshly registered item: %v", err)
	}
	if _, err := f.inventory.Get(ctx, fresh.ID); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := f.inventory.Delete(ctx, fresh.ID); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("second delete: expected ErrNotFound, got %v", err)
	}

	e := f.register(t, "NB-901")
	if _, err := f.inventory.Deliver(ctx, f.tech, e.ID, validDelivery()); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if _, err := f.inventory.Return(ctx, f.tech, e.ID, ReturnInput{Destination: model.DestinationAvailable, Checklist: fullChecklist()}); err != nil {
		t.Fatalf("Return: %v", err)
	}
	if err := f.inventory.Delete(ctx, e.ID); !errors.Is(err, repository.ErrHasHistory) {
		t.Fatalf("expected ErrHasHistory, got %v", err)
	}
	if got := movementTypes(t, f, e.ID); len(got) != 3 {
		t.Fatalf("movements must survive, got %v", got)
	}
	terms, err := f.inventory.ListTerms(ctx, repository.TermFilter{EquipmentID: &e.ID})
	if err != nil || len(terms) != 1 || terms[0].Status != model.TermReturned {
		t.Fatalf("terms must survive: %+v %v", terms, err)
	}
}

func TestUpdateEquipment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e := f.register(t, "DK-300")

	status := model.EquipmentRetired
	if _, err := f.inventory.Update(ctx, f.tech, e.ID, EquipmentPatch{CurrentStatus: &status}); !IsValidation(err) {
		t.Fatalf("status cannot be patched, got %v", err)
	}
	brand, loc := "Dell", "Warehouse"
	got, err := f.inventory.Update(ctx, f.tech, e.ID, EquipmentPatch{Brand: &brand, CurrentLocation: &loc})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got.Brand != "Dell" || got.CurrentLocation != "Warehouse" || got.CurrentStatus != model.EquipmentInStock {
		t.Fatalf("unexpected equipment %+v", got)
	}
	if types := movementTypes(t, f, e.ID); types[len(types)-1] != model.MovementTransfer {
		t.Fatalf("location change must log a transfer, got %v", types)
	}

	other := f.register(t, "DK-301")
	code := "dk-300"
	if _, err := f.inventory.Update(ctx, f.tech, other.ID, EquipmentPatch{InternalCode: &code}); !errors.Is(err, repository.ErrCodeExists) {
		t.Fatalf("expected ErrCodeExists, got %v", err)
	}
}

func TestCancelTerm(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e := f.register(t, "PH-400")
	term, err := f.inventory.Deliver(ctx, f.tech, e.ID, validDelivery())
	if err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if _, err := f.inventory.CancelTerm(ctx, f.tech, term.ID, ""); !IsValidation(err) {
		t.Fatalf("reason is required, got %v", err)
	}
	cancelled, err := f.inventory.CancelTerm(ctx, f.tech, term.ID, "wrong person")
	if err != nil {
		t.Fatalf("CancelTerm: %v", err)
	}
	if cancelled.Status != model.TermCancelled {
		t.Fatalf("unexpected term %+v", cancelled)
	}
	got, _ := f.inventory.Get(ctx, e.ID)
	if got.CurrentStatus != model.EquipmentInStock || got.CurrentResponsibleName != nil {
		t.Fatalf("equipment must be back in stock: %+v", got)
	}
	if _, err := f.inventory.CancelTerm(ctx, f.tech, term.ID, "again"); !errors.Is(err, repository.ErrNoActiveTerm) {
		t.Fatalf("cancelling twice must fail, got %v", err)
	}
	if _, err := f.inventory.Deliver(ctx, f.tech, e.ID, validDelivery()); err != nil {
		t.Fatalf("redelivery after cancel: %v", err)
	}
	terms, err := f.inventory.ListTerms(ctx, repository.TermFilter{EquipmentID: &e.ID})
	if err != nil || len(terms) != 2 {
		t.Fatalf("expected 2 terms, got %d %v", len(terms), err)
	}
}

func TestConcurrentDeliveryYieldsOneTerm(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e := f.register(t, "NB-500")

	const workers = 5
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		ok, fail int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.inventory.Deliver(ctx, f.tech, e.ID, validDelivery())
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, ErrNotAvailable), errors.Is(err, repository.ErrActiveTermExists):
				fail++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()
	if ok != 1 || fail != workers-1 {
		t.Fatalf("expected exactly one delivery, got ok=%d fail=%d", ok, fail)
	}
	active, _ := f.inventory.ListTerms(ctx, repository.TermFilter{EquipmentID: &e.ID, Status: model.TermActive})
	if len(active) != 1 {
		t.Fatalf("expected one active term, got %d", len(active))
	}
}

func TestConsistencyRepair(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	delivered := f.register(t, "NB-600")
	if _, err := f.inventory.Deliver(ctx, f.tech, delivered.ID, validDelivery()); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	orphan := f.register(t, "NB-601")
	renamed := f.register(t, "NB-602")
	if _, err := f.inventory.Deliver(ctx, f.tech, renamed.ID, validDelivery()); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	clean := f.register(t, "NB-603")

	f.exec(t, "UPDATE equipment SET current_status = 'in_stock', current_responsible_name = NULL WHERE id = ?", delivered.ID)
	f.exec(t, "UPDATE equipment SET current_status = 'in_use', current_responsible_name = 'Ghost' WHERE id = ?", orphan.ID)
	f.exec(t, "UPDATE equipment SET current_responsible_name = 'Someone Else' WHERE id = ?", renamed.ID)

	drifts, err := f.inventory.CheckConsistency(ctx)
	if err != nil {
		t.Fatalf("CheckConsistency: %v", err)
	}
	kinds := map[uint64]string{}
	for _, d := range drifts {
		kinds[d.EquipmentID] = d.Kind
	}
	if len(drifts) != 3 || kinds[delivered.ID] != DriftTermOnIdleEquipment || kinds[orphan.ID] != DriftInUseWithoutTerm ||
		kinds[renamed.ID] != DriftResponsibleMismatch {
		t.Fatalf("unexpected drifts %+v", drifts)
	}
	if _, found := kinds[clean.ID]; found {
		t.Fatalf("clean item reported")
	}

	res, err := f.inventory.RepairConsistency(ctx, &f.admin.ID)
	if err != nil {
		t.Fatalf("RepairConsistency: %v", err)
	}
	if len(res.Repaired) != 3 {
		t.Fatalf("expected 3 repaired items, got %v", res.Repaired)
	}
	after, _ := f.inventory.CheckConsistency(ctx)
	if len(after) != 0 {
		t.Fatalf("drift left after repair: %+v", after)
	}

	got, _ := f.inventory.Get(ctx, delivered.ID)
	if got.CurrentStatus != model.EquipmentInUse || got.CurrentResponsibleName == nil || *got.CurrentResponsibleName != "Maria Souza" {
		t.Fatalf("delivered item not realigned: %+v", got)
	}
	got, _ = f.inventory.Get(ctx, orphan.ID)
	if got.CurrentStatus != model.EquipmentInStock || got.CurrentResponsibleName != nil {
		t.Fatalf("orphan item not released: %+v", got)
	}
	if types := movementTypes(t, f, orphan.ID); types[len(types)-1] != model.MovementReconcile {
		t.Fatalf("repair must log a reconciliation movement, got %v", types)
	}
}
