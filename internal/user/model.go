// Package user defines the admin user model and the directory interfaces the
// authentication services depend on.
package user

import (
	"time"

	"github.com/google/uuid"
)

// User represents a row in the admin_users table. The password hash and the
// registration/reset tokens never leave this package boundary unsanitized.
type User struct {
	ID                 uuid.UUID
	Email              string
	Username           string
	Firstname          string
	Lastname           string
	PasswordHash       string
	Roles              []uuid.UUID
	IsActive           bool
	RegistrationToken  *string
	ResetPasswordToken *string
	ResetTokenIssuedAt *time.Time
	CreatedAt          time.Time
}

// Sanitized is the only user representation returned across the service
// boundary. It carries no credential or internal token material.
type Sanitized struct {
	ID        uuid.UUID   `json:"id"`
	Email     string      `json:"email"`
	Username  string      `json:"username"`
	Firstname string      `json:"firstname"`
	Lastname  string      `json:"lastname"`
	Roles     []uuid.UUID `json:"roles"`
	IsActive  bool        `json:"isActive"`
}

// Sanitize strips the credential and internal tokens from the user.
func (u *User) Sanitize() *Sanitized {
	roles := make([]uuid.UUID, len(u.Roles))
	copy(roles, u.Roles)

	return &Sanitized{
		ID:        u.ID,
		Email:     u.Email,
		Username:  u.Username,
		Firstname: u.Firstname,
		Lastname:  u.Lastname,
		Roles:     roles,
		IsActive:  u.IsActive,
	}
}

// RegistrationInfo is the narrow public view of a pending invited user,
// exposed before the account is activated.
type RegistrationInfo struct {
	Email     string `json:"email"`
	Firstname string `json:"firstname"`
	Lastname  string `json:"lastname"`
}

// Role represents an admin role definition. Read-only from this subsystem's
// perspective.
type Role struct {
	ID           uuid.UUID
	Name         string
	IsSuperAdmin bool
}
