// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// services and handlers to distinguish between different failure
// scenarios without inspecting driver errors.
package repository

import (
	"database/sql"
	"errors"
	"time"
)

// ErrNotFound is returned when a row addressed by id (or another unique
// key) does not exist. Handlers translate it into an HTTP 404 response.
var ErrNotFound = errors.New("not found")

// ErrForbidden is returned when the caller attempts an operation
// on a resource they do not own. Handlers should translate this
// into an HTTP 403 response.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when a delete or update cannot be
// performed because of conflicting state, such as deleting an
// equipment item that is still delivered to someone. Handlers should
// translate this into an HTTP 409 response.
var ErrConflict = errors.New("conflict")

// ErrEmailExists is returned when an internal user is created with an
// e-mail that is already registered.
var ErrEmailExists = errors.New("email already exists")

// ErrCodeExists is returned when an equipment internal code is reused.
var ErrCodeExists = errors.New("internal code already exists")

// ErrActiveTermExists is returned when a second active responsibility
// term is inserted for the same equipment.
var ErrActiveTermExists = errors.New("equipment already has an active term")

// ErrNoActiveTerm is returned when an operation needs the active term of
// an equipment item and there is none.
var ErrNoActiveTerm = errors.New("equipment has no active term")

// ErrHasHistory is returned when deleting an item that has terms or
// movements besides its registration.  Such items are retired instead.
var ErrHasHistory = errors.New("equipment has custody history, retire it instead")

// notFound maps sql.ErrNoRows to ErrNotFound and passes other errors through.
func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// now is the timestamp written by repositories.  Microsecond precision is
// the finest all three backends keep.
func now() time.Time { return time.Now().UTC().Truncate(time.Microsecond) }

func nullID(v sql.NullInt64) *uint64 {
	if !v.Valid {
		return nil
	}
	id := uint64(v.Int64)
	return &id
}

func nullStr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func nullTime(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time.UTC()
	return &t
}

// idArg converts an optional id into a driver value.
func idArg(id *uint64) any {
	if id == nil {
		return nil
	}
	return *id
}

func strArg(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func timeArg(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}
