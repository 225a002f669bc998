package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/iliyamo/it-helpdesk/internal/database"
	"github.com/iliyamo/it-helpdesk/internal/model"
	"github.com/iliyamo/it-helpdesk/internal/queue"
	"github.com/iliyamo/it-helpdesk/internal/repository"
	"github.com/iliyamo/it-helpdesk/internal/utils"
)

// InventoryService keeps equipment rows, responsibility terms and the
// movement log consistent.  Every custody change runs in one transaction
// holding the equipment row lock.
type InventoryService struct {
	DB        *database.DB
	Equipment *repository.EquipmentRepo
	Terms     *repository.TermRepo
	Movements *repository.MovementRepo
	Users     *repository.UserRepo
	Events    queue.Publisher
	Checklist []string
	Now       func() time.Time
}

func NewInventoryService(db *database.DB, events queue.Publisher, checklist []string) *InventoryService {
	if events == nil {
		events = queue.NopPublisher{}
	}
	return &InventoryService{
		DB:        db,
		Equipment: repository.NewEquipmentRepo(db),
		Terms:     repository.NewTermRepo(db),
		Movements: repository.NewMovementRepo(db),
		Users:     repository.NewUserRepo(db),
		Events:    events,
		Checklist: checklist,
		Now:       func() time.Time { return time.Now().UTC() },
	}
}

// inTx runs fn inside a transaction, committing when it returns nil.
func (s *InventoryService) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	committed = true
	return nil
}

func ptr[T any](v T) *T { return &v }

// NormalizeCode trims and upper-cases an internal code and validates it.
func NormalizeCode(code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if !model.ValidEquipmentCode(code) {
		return "", invalid("internal_code must look like AB-123")
	}
	return code, nil
}

func parseDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
			return &d, nil
		}
	}
	return nil, invalid("purchase_date must be YYYY-MM-DD")
}

// EquipmentInput is the registration form.
type EquipmentInput struct {
	InternalCode    string   `json:"internal_code"`
	Category        string   `json:"category"`
	Brand           string   `json:"brand"`
	Model           string   `json:"model"`
	SerialNumber    string   `json:"serial_number"`
	CurrentLocation string   `json:"current_location"`
	PurchaseDate    string   `json:"purchase_date"`
	PurchaseValue   *float64 `json:"purchase_value"`
	UsefulLifeYears *int     `json:"useful_life_years"`
	Notes           string   `json:"notes"`
}

func checkFinancials(value *float64, life *int) error {
	if value != nil && *value < 0 {
		return invalid("purchase_value must not be negative")
	}
	if life != nil && *life < 0 {
		return invalid("useful_life_years must not be negative")
	}
	return nil
}

// Register adds an item in stock and logs a registration movement.
func (s *InventoryService) Register(ctx context.Context, actor Actor, in EquipmentInput) (model.Equipment, error) {
	code, err := NormalizeCode(in.InternalCode)
	if err != nil {
		return model.Equipment{}, err
	}
	purchased, err := parseDate(in.PurchaseDate)
	if err != nil {
		return model.Equipment{}, err
	}
	if err := checkFinancials(in.PurchaseValue, in.UsefulLifeYears); err != nil {
		return model.Equipment{}, err
	}
	e := model.Equipment{
		InternalCode:    code,
		Category:        strings.TrimSpace(in.Category),
		Brand:           strings.TrimSpace(in.Brand),
		Model:           strings.TrimSpace(in.Model),
		SerialNumber:    strings.TrimSpace(in.SerialNumber),
		CurrentStatus:   model.EquipmentInStock,
		CurrentLocation: strings.TrimSpace(in.CurrentLocation),
		PurchaseDate:    purchased,
		PurchaseValue:   in.PurchaseValue,
		UsefulLifeYears: in.UsefulLifeYears,
		Notes:           strings.TrimSpace(in.Notes),
	}
	err = s.inTx(ctx, func(tx *sql.Tx) error {
		if err := s.Equipment.CreateTx(ctx, tx, &e); err != nil {
			return err
		}
		m := model.Movement{EquipmentID: e.ID, MovementType: model.MovementRegistration, PerformedBy: ptr(actor.ID), Notes: "registered"}
		if e.CurrentLocation != "" {
			m.ToLocation = ptr(e.CurrentLocation)
		}
		return s.Movements.CreateTx(ctx, tx, &m)
	})
	if err != nil {
		return model.Equipment{}, err
	}
	return withCurrentValue(e, s.Now()), nil
}

// Get returns one item with its depreciated value.
func (s *InventoryService) Get(ctx context.Context, id uint64) (model.Equipment, error) {
	e, err := s.Equipment.GetByID(ctx, id)
	if err != nil {
		return e, err
	}
	return withCurrentValue(e, s.Now()), nil
}

// List returns a page of equipment with depreciated values.
func (s *InventoryService) List(ctx context.Context, f repository.EquipmentFilter) ([]model.Equipment, int, error) {
	items, total, err := s.Equipment.List(ctx, f)
	if err != nil {
		return nil, 0, err
	}
	now := s.Now()
	for i := range items {
		items[i] = withCurrentValue(items[i], now)
	}
	return items, total, nil
}

// EquipmentPatch lists the editable fields.  The custody fields are
// declared only so a request trying to set them can be rejected.
type EquipmentPatch struct {
	InternalCode    *string  `json:"internal_code"`
	Category        *string  `json:"category"`
	Brand           *string  `json:"brand"`
	Model           *string  `json:"model"`
	SerialNumber    *string  `json:"serial_number"`
	CurrentLocation *string  `json:"current_location"`
	PurchaseDate    *string  `json:"purchase_date"`
	PurchaseValue   *float64 `json:"purchase_value"`
	UsefulLifeYears *int     `json:"useful_life_years"`
	Notes           *string  `json:"notes"`

	CurrentStatus          *string `json:"current_status"`
	CurrentResponsibleID   *uint64 `json:"current_responsible_id"`
	CurrentResponsibleName *string `json:"current_responsible_name"`
}

// Update edits descriptive fields.  A location change on an item that is
// not in use is logged as a transfer.
func (s *InventoryService) Update(ctx context.Context, actor Actor, id uint64, p EquipmentPatch) (model.Equipment, error) {
	if p.CurrentStatus != nil || p.CurrentResponsibleID != nil || p.CurrentResponsibleName != nil {
		return model.Equipment{}, invalid("status and responsible can only change through status, deliver and return")
	}
	if err := checkFinancials(p.PurchaseValue, p.UsefulLifeYears); err != nil {
		return model.Equipment{}, err
	}
	var out model.Equipment
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		e, err := s.Equipment.GetForUpdateTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if p.InternalCode != nil {
			code, err := NormalizeCode(*p.InternalCode)
			if err != nil {
				return err
			}
			e.InternalCode = code
		}
		set := func(dst *string, v *string) {
			if v != nil {
				*dst = strings.TrimSpace(*v)
			}
		}
		set(&e.Category, p.Category)
		set(&e.Brand, p.Brand)
		set(&e.Model, p.Model)
		set(&e.SerialNumber, p.SerialNumber)
		set(&e.Notes, p.Notes)
		if p.PurchaseDate != nil {
			d, err := parseDate(*p.PurchaseDate)
			if err != nil {
				return err
			}
			e.PurchaseDate = d
		}
		if p.PurchaseValue != nil {
			e.PurchaseValue = p.PurchaseValue
		}
		if p.UsefulLifeYears != nil {
			e.UsefulLifeYears = p.UsefulLifeYears
		}
		if err := s.Equipment.UpdateDetailsTx(ctx, tx, &e); err != nil {
			return err
		}

		if p.CurrentLocation != nil {
			loc := strings.TrimSpace(*p.CurrentLocation)
			if loc != e.CurrentLocation {
				if e.CurrentStatus == model.EquipmentInUse {
					return invalid("current_location of an item in use follows its delivery")
				}
				if err := s.Equipment.SetStateTx(ctx, tx, e.ID, repository.EquipmentState{
					Status: e.CurrentStatus, ResponsibleID: e.CurrentResponsibleID, ResponsibleName: e.CurrentResponsibleName, Location: loc,
				}); err != nil {
					return err
				}
				if err := s.Movements.CreateTx(ctx, tx, &model.Movement{EquipmentID: e.ID, MovementType: model.MovementTransfer,
					FromLocation: ptr(e.CurrentLocation), ToLocation: ptr(loc), PerformedBy: ptr(actor.ID)}); err != nil {
					return err
				}
				e.CurrentLocation = loc
			}
		}
		out = e
		return nil
	})
	if err != nil {
		return model.Equipment{}, err
	}
	return s.Get(ctx, out.ID)
}

// Delete removes an item registered by mistake.  Items in use fail with
// ErrInUse and items with custody history with repository.ErrHasHistory.
func (s *InventoryService) Delete(ctx context.Context, id uint64) error {
	e, err := s.Equipment.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if e.CurrentStatus == model.EquipmentInUse {
		return ErrInUse
	}
	active, err := s.Terms.List(ctx, repository.TermFilter{EquipmentID: &id, Status: model.TermActive})
	if err != nil {
		return err
	}
	if len(active) > 0 {
		return ErrInUse
	}
	return s.Equipment.Delete(ctx, id)
}

// statusMoves lists the manual transitions; in_use is only reachable by
// delivery and retired is final.
var statusMoves = map[string]map[string]string{
	model.EquipmentInStock: {
		model.EquipmentMaintenance: model.MovementMaintenance,
		model.EquipmentRetired:     model.MovementRetirement,
	},
	model.EquipmentMaintenance: {
		model.EquipmentInStock: model.MovementMaintenance,
		model.EquipmentRetired: model.MovementRetirement,
	},
}

// ChangeStatus moves an item between in_stock, maintenance and retired.
func (s *InventoryService) ChangeStatus(ctx context.Context, actor Actor, id uint64, status, notes string) (model.Equipment, error) {
	status = strings.ToLower(strings.TrimSpace(status))
	if !model.ValidEquipmentStatus(status) {
		return model.Equipment{}, invalid("invalid status %q", status)
	}
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		e, err := s.Equipment.GetForUpdateTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if e.CurrentStatus == model.EquipmentInUse {
			return ErrInUse
		}
		movement, ok := statusMoves[e.CurrentStatus][status]
		if !ok {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, e.CurrentStatus, status)
		}
		if _, err := s.Terms.ActiveForEquipmentTx(ctx, tx, id); err == nil {
			return ErrInUse
		} else if !errors.Is(err, repository.ErrNoActiveTerm) {
			return err
		}
		if err := s.Equipment.SetStateTx(ctx, tx, id, repository.EquipmentState{Status: status, Location: e.CurrentLocation}); err != nil {
			return err
		}
		return s.Movements.CreateTx(ctx, tx, &model.Movement{EquipmentID: id, MovementType: movement,
			FromLocation: ptr(e.CurrentLocation), ToLocation: ptr(e.CurrentLocation), PerformedBy: ptr(actor.ID),
			Notes: strings.TrimSpace(e.CurrentStatus + " -> " + status + " " + strings.TrimSpace(notes))})
	})
	if err != nil {
		return model.Equipment{}, err
	}
	return s.Get(ctx, id)
}

// DeliverInput identifies who receives an item.
type DeliverInput struct {
	ResponsibleUserID     *uint64 `json:"responsible_user_id"`
	ResponsibleName       string  `json:"responsible_name"`
	ResponsibleCPF        string  `json:"responsible_cpf"`
	ResponsiblePosition   string  `json:"responsible_position"`
	ResponsibleDepartment string  `json:"responsible_department"`
	DeliveryLocation      string  `json:"delivery_location"`
	Notes                 string  `json:"notes"`
}

// Deliver issues an active term for an in-stock item, flips it to in_use
// and logs a delivery movement, all in one transaction.
func (s *InventoryService) Deliver(ctx context.Context, actor Actor, id uint64, in DeliverInput) (model.ResponsibilityTerm, error) {
	name := strings.TrimSpace(in.ResponsibleName)
	if in.ResponsibleUserID != nil {
		u, err := s.Users.GetByID(ctx, *in.ResponsibleUserID)
		if errors.Is(err, repository.ErrNotFound) {
			return model.ResponsibilityTerm{}, invalid("responsible user %d does not exist", *in.ResponsibleUserID)
		}
		if err != nil {
			return model.ResponsibilityTerm{}, err
		}
		if name == "" {
			name = u.Name
		}
	}
	if name == "" {
		return model.ResponsibilityTerm{}, invalid("responsible_name is required")
	}
	if !utils.ValidateCPF(in.ResponsibleCPF) {
		return model.ResponsibilityTerm{}, invalid("responsible_cpf must be a valid 11-digit CPF")
	}
	position := strings.TrimSpace(in.ResponsiblePosition)
	if position == "" {
		return model.ResponsibilityTerm{}, invalid("responsible_position is required")
	}

	now := s.Now()
	var (
		term model.ResponsibilityTerm
		code string
	)
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		e, err := s.Equipment.GetForUpdateTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if e.CurrentStatus != model.EquipmentInStock {
			return fmt.Errorf("%w (status %s)", ErrNotAvailable, e.CurrentStatus)
		}
		if _, err := s.Terms.ActiveForEquipmentTx(ctx, tx, id); err == nil {
			return repository.ErrActiveTermExists
		} else if !errors.Is(err, repository.ErrNoActiveTerm) {
			return err
		}

		location := strings.TrimSpace(in.DeliveryLocation)
		if location == "" {
			location = e.CurrentLocation
		}
		term = model.ResponsibilityTerm{
			EquipmentID:           id,
			ResponsibleUserID:     in.ResponsibleUserID,
			ResponsibleName:       name,
			ResponsibleCPF:        utils.NormalizeCPF(in.ResponsibleCPF),
			ResponsiblePosition:   position,
			ResponsibleDepartment: strings.TrimSpace(in.ResponsibleDepartment),
			DeliveryLocation:      location,
			IssuedDate:            now,
			IssuedBy:              actor.ID,
		}
		if err := s.Terms.CreateTx(ctx, tx, &term); err != nil {
			return err
		}
		if err := s.Equipment.SetStateTx(ctx, tx, id, repository.EquipmentState{
			Status: model.EquipmentInUse, ResponsibleID: in.ResponsibleUserID, ResponsibleName: ptr(name), Location: location,
		}); err != nil {
			return err
		}
		code = e.InternalCode
		return s.Movements.CreateTx(ctx, tx, &model.Movement{EquipmentID: id, MovementType: model.MovementDelivery,
			ToUser: ptr(name), FromLocation: ptr(e.CurrentLocation), ToLocation: ptr(location),
			TermID: ptr(term.ID), PerformedBy: ptr(actor.ID), Notes: strings.TrimSpace(in.Notes), MovementDate: now})
	})
	if err != nil {
		return model.ResponsibilityTerm{}, err
	}
	term.EquipmentCode = code
	s.publish(ctx, queue.Event{Type: queue.EquipmentDelivered, EquipmentID: id, TermID: term.ID, ActorID: actor.ID,
		ActorType: model.AuthorITStaff, Title: code, Detail: name})
	return presentTerm(term), nil
}

// ReturnInput records how an item came back.
type ReturnInput struct {
	Destination string          `json:"destination"`
	Checklist   map[string]bool `json:"checklist"`
	Notes       string          `json:"notes"`
	Location    string          `json:"location"`
}

// Return closes the active term of an item and sets the item status from
// the destination.  Every checklist item must be answered.
func (s *InventoryService) Return(ctx context.Context, actor Actor, id uint64, in ReturnInput) (model.ResponsibilityTerm, error) {
	dest := strings.ToLower(strings.TrimSpace(in.Destination))
	status, ok := model.DestinationStatus(dest)
	if !ok {
		return model.ResponsibilityTerm{}, invalid("destination must be one of available, storage, maintenance, disposal")
	}
	var missing []string
	for _, item := range s.Checklist {
		if _, ok := in.Checklist[item]; !ok {
			missing = append(missing, item)
		}
	}
	if len(missing) > 0 {
		return model.ResponsibilityTerm{}, invalid("checklist incomplete: %s", strings.Join(missing, ", "))
	}

	now := s.Now()
	var term model.ResponsibilityTerm
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		e, err := s.Equipment.GetForUpdateTx(ctx, tx, id)
		if err != nil {
			return err
		}
		term, err = s.Terms.ActiveForEquipmentTx(ctx, tx, id)
		if err != nil {
			return err
		}
		term.ReturnedDate = &now
		term.ReturnedBy = ptr(actor.ID)
		term.ReturnDestination = ptr(dest)
		term.ReturnChecklist = in.Checklist
		if notes := strings.TrimSpace(in.Notes); notes != "" {
			term.ReturnNotes = ptr(notes)
		}
		if err := s.Terms.CloseTx(ctx, tx, &term); err != nil {
			return err
		}

		location := strings.TrimSpace(in.Location)
		if dest == model.DestinationStorage {
			location = model.StorageLocation
		} else if location == "" {
			location = e.CurrentLocation
		}
		if err := s.Equipment.SetStateTx(ctx, tx, id, repository.EquipmentState{Status: status, Location: location}); err != nil {
			return err
		}
		return s.Movements.CreateTx(ctx, tx, &model.Movement{EquipmentID: id, MovementType: model.MovementReturn,
			FromUser: ptr(term.ResponsibleName), FromLocation: ptr(e.CurrentLocation), ToLocation: ptr(location),
			TermID: ptr(term.ID), PerformedBy: ptr(actor.ID), Notes: dest, MovementDate: now})
	})
	if err != nil {
		return model.ResponsibilityTerm{}, err
	}
	s.publish(ctx, queue.Event{Type: queue.EquipmentReturned, EquipmentID: id, TermID: term.ID, ActorID: actor.ID,
		ActorType: model.AuthorITStaff, Title: term.EquipmentCode, Detail: dest})
	return presentTerm(term), nil
}

// CancelTerm voids an active term issued in error and puts the item back
// in stock.
func (s *InventoryService) CancelTerm(ctx context.Context, actor Actor, termID uint64, reason string) (model.ResponsibilityTerm, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return model.ResponsibilityTerm{}, invalid("reason is required")
	}
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		term, err := s.Terms.GetForUpdateTx(ctx, tx, termID)
		if err != nil {
			return err
		}
		if term.Status != model.TermActive {
			return repository.ErrNoActiveTerm
		}
		e, err := s.Equipment.GetForUpdateTx(ctx, tx, term.EquipmentID)
		if err != nil {
			return err
		}
		if err := s.Terms.CancelTx(ctx, tx, termID, ptr(actor.ID), reason); err != nil {
			return err
		}
		if err := s.Equipment.SetStateTx(ctx, tx, e.ID, repository.EquipmentState{Status: model.EquipmentInStock, Location: e.CurrentLocation}); err != nil {
			return err
		}
		return s.Movements.CreateTx(ctx, tx, &model.Movement{EquipmentID: e.ID, MovementType: model.MovementCancellation,
			FromUser: ptr(term.ResponsibleName), FromLocation: ptr(e.CurrentLocation), ToLocation: ptr(e.CurrentLocation),
			TermID: ptr(termID), PerformedBy: ptr(actor.ID), Notes: reason})
	})
	if err != nil {
		return model.ResponsibilityTerm{}, err
	}
	return s.GetTerm(ctx, termID)
}

// GetTerm returns one term.
func (s *InventoryService) GetTerm(ctx context.Context, id uint64) (model.ResponsibilityTerm, error) {
	t, err := s.Terms.GetByID(ctx, id)
	if err != nil {
		return t, err
	}
	return presentTerm(t), nil
}

// ListTerms returns terms matching f.
func (s *InventoryService) ListTerms(ctx context.Context, f repository.TermFilter) ([]model.ResponsibilityTerm, error) {
	items, err := s.Terms.List(ctx, f)
	if err != nil {
		return nil, err
	}
	for i := range items {
		items[i] = presentTerm(items[i])
	}
	return items, nil
}

// History returns the movement log of an existing item.
func (s *InventoryService) History(ctx context.Context, id uint64) ([]model.Movement, error) {
	if _, err := s.Equipment.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return s.Movements.ListByEquipment(ctx, id)
}

func presentTerm(t model.ResponsibilityTerm) model.ResponsibilityTerm {
	t.ResponsibleCPF = utils.FormatCPF(t.ResponsibleCPF)
	return t
}

func (s *InventoryService) publish(ctx context.Context, ev queue.Event) {
	ev.OccurredAt = s.Now()
	if err := s.Events.Publish(ctx, ev); err != nil {
		slog.Warn("event not published", "type", ev.Type, "err", err)
	}
}
