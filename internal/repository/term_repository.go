package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/iliyamo/it-helpdesk/internal/database"
	"github.com/iliyamo/it-helpdesk/internal/model"
)

// TermRepo stores responsibility terms.  The schema allows one active term
// per equipment; CreateTx reports a second one as ErrActiveTermExists.
type TermRepo struct{ db *database.DB }

func NewTermRepo(db *database.DB) *TermRepo { return &TermRepo{db: db} }

const termSelect = `SELECT rt.id, rt.equipment_id, rt.responsible_user_id, rt.responsible_name, rt.responsible_cpf,
       rt.responsible_position, rt.responsible_department, rt.delivery_location, rt.issued_date, rt.issued_by,
       rt.returned_date, rt.returned_by, rt.return_destination, rt.return_checklist, rt.return_notes, rt.status,
       rt.created_at, rt.updated_at, e.internal_code
FROM responsibility_terms rt
JOIN equipment e ON e.id = rt.equipment_id`

func scanTerm(s rowScanner) (model.ResponsibilityTerm, error) {
	var (
		t          model.ResponsibilityTerm
		respUser   sql.NullInt64
		returned   sql.NullTime
		returnedBy sql.NullInt64
		dest       sql.NullString
		checklist  sql.NullString
		notes      sql.NullString
	)
	err := s.Scan(&t.ID, &t.EquipmentID, &respUser, &t.ResponsibleName, &t.ResponsibleCPF,
		&t.ResponsiblePosition, &t.ResponsibleDepartment, &t.DeliveryLocation, &t.IssuedDate, &t.IssuedBy,
		&returned, &returnedBy, &dest, &checklist, &notes, &t.Status,
		&t.CreatedAt, &t.UpdatedAt, &t.EquipmentCode)
	if err != nil {
		return t, err
	}
	t.ResponsibleUserID = nullID(respUser)
	t.ReturnedDate = nullTime(returned)
	t.ReturnedBy = nullID(returnedBy)
	t.ReturnDestination = nullStr(dest)
	t.ReturnNotes = nullStr(notes)
	if checklist.Valid && checklist.String != "" {
		if err := json.Unmarshal([]byte(checklist.String), &t.ReturnChecklist); err != nil {
			return t, err
		}
	}
	return t, nil
}

// CreateTx inserts an active term inside tx.
func (r *TermRepo) CreateTx(ctx context.Context, tx *sql.Tx, t *model.ResponsibilityTerm) error {
	ts := now()
	t.Status = model.TermActive
	id, err := r.db.Dialect.InsertID(ctx, tx,
		`INSERT INTO responsibility_terms (equipment_id, responsible_user_id, responsible_name, responsible_cpf,
		 responsible_position, responsible_department, delivery_location, issued_date, issued_by, status, created_at, updated_at)
		 VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		t.EquipmentID, idArg(t.ResponsibleUserID), t.ResponsibleName, t.ResponsibleCPF,
		t.ResponsiblePosition, t.ResponsibleDepartment, t.DeliveryLocation, t.IssuedDate, t.IssuedBy, t.Status, ts, ts)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return ErrActiveTermExists
		}
		return err
	}
	t.ID = id
	t.CreatedAt = ts
	t.UpdatedAt = ts
	return nil
}

// ActiveForEquipmentTx returns the active term of an equipment item inside
// tx, locking it.
func (r *TermRepo) ActiveForEquipmentTx(ctx context.Context, tx *sql.Tx, equipmentID uint64) (model.ResponsibilityTerm, error) {
	t, err := scanTerm(tx.QueryRowContext(ctx,
		r.db.Rebind(termSelect+" WHERE rt.equipment_id = ? AND rt.status = ?"+r.db.Dialect.ForUpdate()),
		equipmentID, model.TermActive))
	if errors.Is(err, sql.ErrNoRows) {
		return t, ErrNoActiveTerm
	}
	return t, err
}

// GetForUpdateTx reads a term by id inside tx, locking it.
func (r *TermRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (model.ResponsibilityTerm, error) {
	t, err := scanTerm(tx.QueryRowContext(ctx,
		r.db.Rebind(termSelect+" WHERE rt.id = ?"+r.db.Dialect.ForUpdate()), id))
	return t, notFound(err)
}

// GetByID reads a term by id.
func (r *TermRepo) GetByID(ctx context.Context, id uint64) (model.ResponsibilityTerm, error) {
	t, err := scanTerm(r.db.QueryRowContext(ctx, r.db.Rebind(termSelect+" WHERE rt.id = ?"), id))
	return t, notFound(err)
}

// CloseTx records the return of t inside tx.
func (r *TermRepo) CloseTx(ctx context.Context, tx *sql.Tx, t *model.ResponsibilityTerm) error {
	checklist, err := json.Marshal(t.ReturnChecklist)
	if err != nil {
		return err
	}
	t.Status = model.TermReturned
	t.UpdatedAt = now()
	res, err := tx.ExecContext(ctx, r.db.Rebind(
		`UPDATE responsibility_terms SET status=?, returned_date=?, returned_by=?, return_destination=?,
		 return_checklist=?, return_notes=?, updated_at=? WHERE id=? AND status=?`),
		t.Status, timeArg(t.ReturnedDate), idArg(t.ReturnedBy), strArg(t.ReturnDestination),
		string(checklist), strArg(t.ReturnNotes), t.UpdatedAt, t.ID, model.TermActive)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNoActiveTerm
	}
	return nil
}

// CancelTx marks an active term as cancelled inside tx.
func (r *TermRepo) CancelTx(ctx context.Context, tx *sql.Tx, id uint64, by *uint64, notes string) error {
	ts := now()
	res, err := tx.ExecContext(ctx, r.db.Rebind(
		`UPDATE responsibility_terms SET status=?, returned_date=?, returned_by=?, return_notes=?, updated_at=?
		 WHERE id=? AND status=?`),
		model.TermCancelled, ts, idArg(by), notes, ts, id, model.TermActive)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNoActiveTerm
	}
	return nil
}

// TermFilter narrows List.
type TermFilter struct {
	EquipmentID *uint64
	Status      string
	From, To    *time.Time // on issued_date, [From, To)
}

// List returns terms newest first.
func (r *TermRepo) List(ctx context.Context, f TermFilter) ([]model.ResponsibilityTerm, error) {
	q := termSelect + " WHERE 1=1"
	var args []any
	if f.EquipmentID != nil {
		q += " AND rt.equipment_id = ?"
		args = append(args, *f.EquipmentID)
	}
	if f.Status != "" {
		q += " AND rt.status = ?"
		args = append(args, f.Status)
	}
	if f.From != nil {
		q += " AND rt.issued_date >= ?"
		args = append(args, f.From.UTC())
	}
	if f.To != nil {
		q += " AND rt.issued_date < ?"
		args = append(args, f.To.UTC())
	}
	q += " ORDER BY rt.issued_date DESC, rt.id DESC"
	rows, err := r.db.QueryContext(ctx, r.db.Rebind(q), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.ResponsibilityTerm{}
	for rows.Next() {
		t, err := scanTerm(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
