package repository

import (
	"context"
	"strings"

	"github.com/iliyamo/it-helpdesk/internal/database"
	"github.com/iliyamo/it-helpdesk/internal/model"
	"github.com/iliyamo/it-helpdesk/internal/utils"
)

const userCols = "id,email,name,password_hash,role,is_active,created_at,updated_at"

type UserRepo struct{ db *database.DB }

func NewUserRepo(db *database.DB) *UserRepo { return &UserRepo{db: db} }

type rowScanner interface{ Scan(dest ...any) error }

func scanUser(s rowScanner) (model.User, error) {
	var u model.User
	err := s.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.Role, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

// Create hashes password and inserts the user, returning its ID.
func (r *UserRepo) Create(ctx context.Context, email, name, password, role string, cost int) (uint64, error) {
	email = utils.NormalizeEmail(email)
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return 0, err
	}
	ts := now()
	id, err := r.db.Dialect.InsertID(ctx, r.db,
		"INSERT INTO users (email, name, password_hash, role, is_active, created_at, updated_at) VALUES (?,?,?,?,?,?,?)",
		email, strings.TrimSpace(name), hash, role, true, ts, ts)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return 0, ErrEmailExists
		}
		return 0, err
	}
	return id, nil
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx,
		r.db.Rebind("SELECT "+userCols+" FROM users WHERE email=? LIMIT 1"),
		utils.NormalizeEmail(email)))
	return u, notFound(err)
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx,
		r.db.Rebind("SELECT "+userCols+" FROM users WHERE id=? LIMIT 1"), id))
	return u, notFound(err)
}

// List returns users ordered by name, optionally restricted to one role.
func (r *UserRepo) List(ctx context.Context, role string) ([]model.User, error) {
	q := "SELECT " + userCols + " FROM users"
	var args []any
	if role != "" {
		q += " WHERE role=?"
		args = append(args, role)
	}
	q += " ORDER BY name, id"
	rows, err := r.db.QueryContext(ctx, r.db.Rebind(q), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// UserPatch lists the mutable user fields; nil means unchanged.
type UserPatch struct {
	Name         *string
	Role         *string
	IsActive     *bool
	PasswordHash *string
}

// Update applies p to the user row.
func (r *UserRepo) Update(ctx context.Context, id uint64, p UserPatch) error {
	sets := []string{"updated_at=?"}
	args := []any{now()}
	if p.Name != nil {
		sets = append(sets, "name=?")
		args = append(args, strings.TrimSpace(*p.Name))
	}
	if p.Role != nil {
		sets = append(sets, "role=?")
		args = append(args, *p.Role)
	}
	if p.IsActive != nil {
		sets = append(sets, "is_active=?")
		args = append(args, *p.IsActive)
	}
	if p.PasswordHash != nil {
		sets = append(sets, "password_hash=?")
		args = append(args, *p.PasswordHash)
	}
	args = append(args, id)
	res, err := r.db.ExecContext(ctx,
		r.db.Rebind("UPDATE users SET "+strings.Join(sets, ", ")+" WHERE id=?"), args...)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// ActiveIDsByRoles returns the ids of active users holding any of roles.
func (r *UserRepo) ActiveIDsByRoles(ctx context.Context, roles ...string) ([]uint64, error) {
	if len(roles) == 0 {
		return nil, nil
	}
	q := "SELECT id FROM users WHERE is_active=? AND role IN (?" + strings.Repeat(",?", len(roles)-1) + ") ORDER BY id"
	args := []any{true}
	for _, role := range roles {
		args = append(args, role)
	}
	rows, err := r.db.QueryContext(ctx, r.db.Rebind(q), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []uint64
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
