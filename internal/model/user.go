package model

import "time"

// Internal roles.  final_user accounts exist for employees who receive
// equipment; they cannot reach any staff endpoint.
const (
	RoleAdmin     = "admin"
	RoleITStaff   = "it_staff"
	RoleManager   = "manager"
	RoleFinalUser = "final_user"

	// RolePublic is the role placed in the request context for
	// x-user-token sessions.  It is never stored on users rows.
	RolePublic = "public"
)

var internalRoles = []string{RoleAdmin, RoleITStaff, RoleManager, RoleFinalUser}

func ValidRole(r string) bool { return contains(internalRoles, r) }

// User represents an internal account as stored in the `users` table.
// PasswordHash is never serialized.
type User struct {
	ID           uint64    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// PublicUser is a ticket requester identified by e-mail only.
type PublicUser struct {
	ID         uint64    `json:"id"`
	Email      string    `json:"email"`
	Name       string    `json:"name"`
	Department string    `json:"department"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
