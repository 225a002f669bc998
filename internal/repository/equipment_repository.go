package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/iliyamo/it-helpdesk/internal/database"
	"github.com/iliyamo/it-helpdesk/internal/model"
)

// EquipmentRepo provides CRUD operations for inventory items.  Status and
// responsible fields are only written through SetStateTx so they move
// together with the term table.
type EquipmentRepo struct{ db *database.DB }

func NewEquipmentRepo(db *database.DB) *EquipmentRepo { return &EquipmentRepo{db: db} }

// DB exposes the pool so services can open transactions spanning several
// repositories.
func (r *EquipmentRepo) DB() *database.DB { return r.db }

const equipmentCols = `id, internal_code, category, brand, model, serial_number, current_status, current_responsible_id,
       current_responsible_name, current_location, purchase_date, purchase_value, useful_life_years, notes, created_at, updated_at`

func scanEquipment(s rowScanner) (model.Equipment, error) {
	var (
		e        model.Equipment
		respID   sql.NullInt64
		respName sql.NullString
		purchase sql.NullTime
		value    sql.NullFloat64
		life     sql.NullInt64
	)
	err := s.Scan(&e.ID, &e.InternalCode, &e.Category, &e.Brand, &e.Model, &e.SerialNumber, &e.CurrentStatus,
		&respID, &respName, &e.CurrentLocation, &purchase, &value, &life, &e.Notes, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return e, err
	}
	e.CurrentResponsibleID = nullID(respID)
	e.CurrentResponsibleName = nullStr(respName)
	e.PurchaseDate = nullTime(purchase)
	if value.Valid {
		v := value.Float64
		e.PurchaseValue = &v
	}
	if life.Valid {
		n := int(life.Int64)
		e.UsefulLifeYears = &n
	}
	return e, nil
}

func floatArg(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func intArg(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

// CreateTx inserts e inside tx and fills its ID and timestamps.
func (r *EquipmentRepo) CreateTx(ctx context.Context, tx *sql.Tx, e *model.Equipment) error {
	ts := now()
	id, err := r.db.Dialect.InsertID(ctx, tx,
		`INSERT INTO equipment (internal_code, category, brand, model, serial_number, current_status, current_location,
		 purchase_date, purchase_value, useful_life_years, notes, created_at, updated_at)
		 VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		e.InternalCode, e.Category, e.Brand, e.Model, e.SerialNumber, e.CurrentStatus, e.CurrentLocation,
		timeArg(e.PurchaseDate), floatArg(e.PurchaseValue), intArg(e.UsefulLifeYears), e.Notes, ts, ts)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return ErrCodeExists
		}
		return err
	}
	e.ID = id
	e.CreatedAt = ts
	e.UpdatedAt = ts
	return nil
}

// GetByID fetches one item.
func (r *EquipmentRepo) GetByID(ctx context.Context, id uint64) (model.Equipment, error) {
	e, err := scanEquipment(r.db.QueryRowContext(ctx,
		r.db.Rebind("SELECT "+equipmentCols+" FROM equipment WHERE id = ?"), id))
	return e, notFound(err)
}

// GetForUpdateTx reads an item inside tx and locks its row.
func (r *EquipmentRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (model.Equipment, error) {
	e, err := scanEquipment(tx.QueryRowContext(ctx,
		r.db.Rebind("SELECT "+equipmentCols+" FROM equipment WHERE id = ?"+r.db.Dialect.ForUpdate()), id))
	return e, notFound(err)
}

// EquipmentFilter narrows List.  Zero values mean no filter.
type EquipmentFilter struct {
	Status   string
	Category string
	Query    string // matched against code, brand, model and serial number
	Page     int
	PageSize int
}

// List returns one page of equipment ordered by internal code and the
// total match count.  PageSize 0 returns every match.
func (r *EquipmentRepo) List(ctx context.Context, f EquipmentFilter) ([]model.Equipment, int, error) {
	var (
		conds []string
		args  []any
	)
	if f.Status != "" {
		conds = append(conds, "current_status = ?")
		args = append(args, f.Status)
	}
	if f.Category != "" {
		conds = append(conds, "LOWER(category) = ?")
		args = append(args, strings.ToLower(f.Category))
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		like := "%" + strings.ToLower(q) + "%"
		conds = append(conds, "(LOWER(internal_code) LIKE ? OR LOWER(brand) LIKE ? OR LOWER(model) LIKE ? OR LOWER(serial_number) LIKE ?)")
		args = append(args, like, like, like, like)
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := r.db.QueryRowContext(ctx, r.db.Rebind("SELECT COUNT(*) FROM equipment"+where), args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	q := "SELECT " + equipmentCols + " FROM equipment" + where + " ORDER BY internal_code"
	if f.PageSize > 0 {
		if f.Page < 1 {
			f.Page = 1
		}
		q += " LIMIT ? OFFSET ?"
		args = append(args, f.PageSize, (f.Page-1)*f.PageSize)
	}
	rows, err := r.db.QueryContext(ctx, r.db.Rebind(q), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	out := []model.Equipment{}
	for rows.Next() {
		e, err := scanEquipment(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, e)
	}
	return out, total, rows.Err()
}

// UpdateDetailsTx writes the descriptive columns of e inside tx.  Status,
// responsible and location columns are left untouched.
func (r *EquipmentRepo) UpdateDetailsTx(ctx context.Context, tx *sql.Tx, e *model.Equipment) error {
	e.UpdatedAt = now()
	res, err := tx.ExecContext(ctx, r.db.Rebind(
		`UPDATE equipment SET internal_code=?, category=?, brand=?, model=?, serial_number=?, purchase_date=?,
		 purchase_value=?, useful_life_years=?, notes=?, updated_at=? WHERE id=?`),
		e.InternalCode, e.Category, e.Brand, e.Model, e.SerialNumber, timeArg(e.PurchaseDate),
		floatArg(e.PurchaseValue), intArg(e.UsefulLifeYears), e.Notes, e.UpdatedAt, e.ID)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return ErrCodeExists
		}
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// EquipmentState is the custody part of an equipment row.
type EquipmentState struct {
	Status          string
	ResponsibleID   *uint64
	ResponsibleName *string
	Location        string
}

// SetStateTx writes status, responsible and location columns inside tx.
func (r *EquipmentRepo) SetStateTx(ctx context.Context, tx *sql.Tx, id uint64, s EquipmentState) error {
	_, err := tx.ExecContext(ctx, r.db.Rebind(
		`UPDATE equipment SET current_status=?, current_responsible_id=?, current_responsible_name=?, current_location=?, updated_at=?
		 WHERE id=?`),
		s.Status, idArg(s.ResponsibleID), strArg(s.ResponsibleName), s.Location, now(), id)
	return err
}

// Delete removes an item that was only ever registered.  Terms and
// movements are never deleted; an item with any of them yields
// ErrHasHistory.
func (r *EquipmentRepo) Delete(ctx context.Context, id uint64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if _, err := r.GetForUpdateTx(ctx, tx, id); err != nil {
		return err
	}
	var terms, moves int
	if err := tx.QueryRowContext(ctx, r.db.Rebind("SELECT COUNT(*) FROM responsibility_terms WHERE equipment_id=?"), id).Scan(&terms); err != nil {
		return err
	}
	if err := tx.QueryRowContext(ctx, r.db.Rebind("SELECT COUNT(*) FROM equipment_movements WHERE equipment_id=? AND movement_type<>?"),
		id, model.MovementRegistration).Scan(&moves); err != nil {
		return err
	}
	if terms > 0 || moves > 0 {
		return ErrHasHistory
	}
	if _, err := tx.ExecContext(ctx, r.db.Rebind("DELETE FROM equipment_movements WHERE equipment_id=?"), id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, r.db.Rebind("DELETE FROM equipment WHERE id=?"), id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}
