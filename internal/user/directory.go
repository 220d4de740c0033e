package user

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrUserNotFound is returned when a user record is not found.
var ErrUserNotFound = errors.New("user not found")

// ErrEmailTaken is returned when creating a user with an email that is
// already registered.
var ErrEmailTaken = errors.New("email already registered")

// ErrSuperAdminExists is returned by CreateSuperAdmin when a super admin
// account has already been created.
var ErrSuperAdminExists = errors.New("super admin already exists")

// ErrRoleNotFound is returned when a role definition is not found.
var ErrRoleNotFound = errors.New("role not found")

// Directory provides operations on stored admin users.
type Directory interface {
	FindByID(ctx context.Context, id uuid.UUID) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByRegistrationToken(ctx context.Context, registrationToken string) (*User, error)
	FindByResetToken(ctx context.Context, resetToken string) (*User, error)

	// SuperAdminExists reports whether any user holds a super-admin role.
	SuperAdminExists(ctx context.Context) (bool, error)

	// Create inserts a new user record. Returns ErrEmailTaken when the email
	// is already registered.
	Create(ctx context.Context, u *User) error

	// CreateSuperAdmin inserts u as the one bootstrap super admin. The
	// existence check and the insert are atomic: of N concurrent calls
	// exactly one succeeds and the rest get ErrSuperAdminExists.
	CreateSuperAdmin(ctx context.Context, u *User) error

	// Activate turns a pending invited user into an active account: sets the
	// credential and names, marks it active, and clears the registration
	// token. Returns the updated user.
	Activate(ctx context.Context, id uuid.UUID, firstname, lastname, passwordHash string) (*User, error)

	// SetResetToken stores a fresh password-reset token on the user.
	SetResetToken(ctx context.Context, id uuid.UUID, resetToken string, issuedAt time.Time) error

	// ResetCredential replaces the stored credential and clears any reset
	// token. Returns the updated user.
	ResetCredential(ctx context.Context, id uuid.UUID, passwordHash string) (*User, error)
}

// RoleDirectory resolves role definitions. Roles are managed elsewhere; this
// subsystem only reads them.
type RoleDirectory interface {
	// GetSuperAdmin returns the super-admin role definition, or
	// ErrRoleNotFound if the deployment is missing it.
	GetSuperAdmin(ctx context.Context) (*Role, error)
}
