package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/it-helpdesk/internal/database"
	"github.com/iliyamo/it-helpdesk/internal/model"
)

// MovementRepo appends to and reads the equipment movement log.  Rows are
// never updated.
type MovementRepo struct{ db *database.DB }

func NewMovementRepo(db *database.DB) *MovementRepo { return &MovementRepo{db: db} }

// CreateTx appends m inside tx.
func (r *MovementRepo) CreateTx(ctx context.Context, tx *sql.Tx, m *model.Movement) error {
	if m.MovementDate.IsZero() {
		m.MovementDate = now()
	}
	id, err := r.db.Dialect.InsertID(ctx, tx,
		`INSERT INTO equipment_movements (equipment_id, movement_type, from_user, to_user, from_location, to_location,
		 term_id, performed_by, notes, movement_date) VALUES (?,?,?,?,?,?,?,?,?,?)`,
		m.EquipmentID, m.MovementType, strArg(m.FromUser), strArg(m.ToUser), strArg(m.FromLocation), strArg(m.ToLocation),
		idArg(m.TermID), idArg(m.PerformedBy), m.Notes, m.MovementDate)
	if err != nil {
		return err
	}
	m.ID = id
	return nil
}

// ListByEquipment returns the movement log of an item, newest first.
func (r *MovementRepo) ListByEquipment(ctx context.Context, equipmentID uint64) ([]model.Movement, error) {
	rows, err := r.db.QueryContext(ctx, r.db.Rebind(
		`SELECT id, equipment_id, movement_type, from_user, to_user, from_location, to_location, term_id, performed_by, notes, movement_date
		 FROM equipment_movements WHERE equipment_id = ? ORDER BY movement_date DESC, id DESC`), equipmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Movement{}
	for rows.Next() {
		var (
			m                   model.Movement
			fromUser, toUser    sql.NullString
			fromLoc, toLoc      sql.NullString
			termID, performedBy sql.NullInt64
		)
		if err := rows.Scan(&m.ID, &m.EquipmentID, &m.MovementType, &fromUser, &toUser, &fromLoc, &toLoc,
			&termID, &performedBy, &m.Notes, &m.MovementDate); err != nil {
			return nil, err
		}
		m.FromUser, m.ToUser = nullStr(fromUser), nullStr(toUser)
		m.FromLocation, m.ToLocation = nullStr(fromLoc), nullStr(toLoc)
		m.TermID, m.PerformedBy = nullID(termID), nullID(performedBy)
		out = append(out, m)
	}
	return out, rows.Err()
}
