package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/it-helpdesk/internal/database"
)

// TokenRepo persists/validates refresh tokens (single 'token_hash' column).
type TokenRepo struct{ db *database.DB }

func NewTokenRepo(db *database.DB) *TokenRepo { return &TokenRepo{db: db} }

// StoreRefresh inserts a refresh token hash row.
func (r *TokenRepo) StoreRefresh(ctx context.Context, userID uint64, tokenHash string, exp time.Time) error {
	_, err := r.db.ExecContext(ctx,
		r.db.Rebind("INSERT INTO refresh_tokens (user_id, token_hash, expires_at, created_at) VALUES (?,?,?,?)"),
		userID, tokenHash, exp, now())
	return err
}

// ValidateRefresh returns userID if a non-revoked, non-expired token exists.
func (r *TokenRepo) ValidateRefresh(ctx context.Context, tokenHash string) (uint64, error) {
	return validateHash(ctx, r.db,
		"SELECT user_id, expires_at, revoked_at FROM refresh_tokens WHERE token_hash=? LIMIT 1", tokenHash)
}

// RevokeByHash marks a token as revoked.
func (r *TokenRepo) RevokeByHash(ctx context.Context, tokenHash string) error {
	_, err := r.db.ExecContext(ctx,
		r.db.Rebind("UPDATE refresh_tokens SET revoked_at=? WHERE token_hash=? AND revoked_at IS NULL"),
		now(), tokenHash)
	return err
}

// RevokeAllForUser revokes all user's active tokens.
func (r *TokenRepo) RevokeAllForUser(ctx context.Context, userID uint64) error {
	_, err := r.db.ExecContext(ctx,
		r.db.Rebind("UPDATE refresh_tokens SET revoked_at=? WHERE user_id=? AND revoked_at IS NULL"),
		now(), userID)
	return err
}

// SessionRepo stores x-user-token sessions of public submitters the same
// way TokenRepo stores refresh tokens.
type SessionRepo struct{ db *database.DB }

func NewSessionRepo(db *database.DB) *SessionRepo { return &SessionRepo{db: db} }

// Store inserts a session hash row.
func (r *SessionRepo) Store(ctx context.Context, publicUserID uint64, tokenHash string, exp time.Time) error {
	_, err := r.db.ExecContext(ctx,
		r.db.Rebind("INSERT INTO public_sessions (public_user_id, token_hash, expires_at, created_at) VALUES (?,?,?,?)"),
		publicUserID, tokenHash, exp, now())
	return err
}

// Validate returns the public user id of a live session.
func (r *SessionRepo) Validate(ctx context.Context, tokenHash string) (uint64, error) {
	return validateHash(ctx, r.db,
		"SELECT public_user_id, expires_at, revoked_at FROM public_sessions WHERE token_hash=? LIMIT 1", tokenHash)
}

// Revoke ends a session.
func (r *SessionRepo) Revoke(ctx context.Context, tokenHash string) error {
	_, err := r.db.ExecContext(ctx,
		r.db.Rebind("UPDATE public_sessions SET revoked_at=? WHERE token_hash=? AND revoked_at IS NULL"),
		now(), tokenHash)
	return err
}

func validateHash(ctx context.Context, db *database.DB, q, tokenHash string) (uint64, error) {
	var (
		ownerID   uint64
		expiresAt time.Time
		revokedAt sql.NullTime
	)
	err := db.QueryRowContext(ctx, db.Rebind(q), tokenHash).Scan(&ownerID, &expiresAt, &revokedAt)
	if err != nil {
		return 0, notFound(err)
	}
	if revokedAt.Valid {
		return 0, ErrNotFound
	}
	if time.Now().UTC().After(expiresAt) {
		return 0, ErrNotFound
	}
	return ownerID, nil
}
