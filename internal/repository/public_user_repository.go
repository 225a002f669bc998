package repository

import (
	"context"
	"strings"

	"github.com/iliyamo/it-helpdesk/internal/database"
	"github.com/iliyamo/it-helpdesk/internal/model"
	"github.com/iliyamo/it-helpdesk/internal/utils"
)

// PublicUserRepo stores ticket requesters.  They have no password: an
// e-mail identifies them and a session token authenticates them.
type PublicUserRepo struct{ db *database.DB }

func NewPublicUserRepo(db *database.DB) *PublicUserRepo { return &PublicUserRepo{db: db} }

const publicUserCols = "id,email,name,department,created_at,updated_at"

func scanPublicUser(s rowScanner) (model.PublicUser, error) {
	var u model.PublicUser
	err := s.Scan(&u.ID, &u.Email, &u.Name, &u.Department, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

// GetByID fetches a requester by id.
func (r *PublicUserRepo) GetByID(ctx context.Context, id uint64) (model.PublicUser, error) {
	u, err := scanPublicUser(r.db.QueryRowContext(ctx,
		r.db.Rebind("SELECT "+publicUserCols+" FROM public_users WHERE id=?"), id))
	return u, notFound(err)
}

// GetByEmail fetches a requester by normalized email.
func (r *PublicUserRepo) GetByEmail(ctx context.Context, email string) (model.PublicUser, error) {
	u, err := scanPublicUser(r.db.QueryRowContext(ctx,
		r.db.Rebind("SELECT "+publicUserCols+" FROM public_users WHERE email=?"), utils.NormalizeEmail(email)))
	return u, notFound(err)
}

// Upsert returns the requester with this e-mail, creating it when missing.
// Non-empty name and department overwrite the stored values.
func (r *PublicUserRepo) Upsert(ctx context.Context, email, name, department string) (model.PublicUser, error) {
	email = utils.NormalizeEmail(email)
	name = strings.TrimSpace(name)
	department = strings.TrimSpace(department)

	u, err := r.GetByEmail(ctx, email)
	switch {
	case err == nil:
		if (name != "" && name != u.Name) || (department != "" && department != u.Department) {
			if name != "" {
				u.Name = name
			}
			if department != "" {
				u.Department = department
			}
			u.UpdatedAt = now()
			if _, err := r.db.ExecContext(ctx,
				r.db.Rebind("UPDATE public_users SET name=?, department=?, updated_at=? WHERE id=?"),
				u.Name, u.Department, u.UpdatedAt, u.ID); err != nil {
				return u, err
			}
		}
		return u, nil
	case err != ErrNotFound:
		return u, err
	}

	if name == "" {
		name, _, _ = strings.Cut(email, "@")
	}
	ts := now()
	id, err := r.db.Dialect.InsertID(ctx, r.db,
		"INSERT INTO public_users (email, name, department, created_at, updated_at) VALUES (?,?,?,?,?)",
		email, name, department, ts, ts)
	if err != nil {
		if database.IsUniqueViolation(err) {
			// concurrent first login with the same address
			return r.GetByEmail(ctx, email)
		}
		return model.PublicUser{}, err
	}
	return model.PublicUser{ID: id, Email: email, Name: name, Department: department, CreatedAt: ts, UpdatedAt: ts}, nil
}
