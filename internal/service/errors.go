package service

import (
	"errors"
	"fmt"

	"github.com/iliyamo/it-helpdesk/internal/model"
)

// ValidationError carries a client-facing message for a rejected input.
type ValidationError struct{ Msg string }

func (e *ValidationError) Error() string { return e.Msg }

func invalid(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

var (
	// ErrNotAvailable is returned when delivering an item that is not in
	// stock.
	ErrNotAvailable = errors.New("equipment is not available for delivery")
	// ErrInvalidTransition is returned for an equipment status change the
	// lifecycle does not allow.
	ErrInvalidTransition = errors.New("status change not allowed")
	// ErrInUse is returned when deleting or retiring an item that is
	// still delivered to someone.
	ErrInUse = errors.New("equipment is in use")
)

// Actor is the authenticated caller of a service operation: an internal
// user or a public requester (Role == model.RolePublic).
type Actor struct {
	ID   uint64
	Role string
}

// IsPublic reports whether the actor authenticated with x-user-token.
func (a Actor) IsPublic() bool { return a.Role == model.RolePublic }

// IsStaff reports whether the actor works tickets and inventory.
func (a Actor) IsStaff() bool { return a.Role == model.RoleAdmin || a.Role == model.RoleITStaff }

// CanView reports whether the actor may read staff-wide ticket data.
func (a Actor) CanView() bool { return a.IsStaff() || a.Role == model.RoleManager }
