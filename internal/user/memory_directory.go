package user

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryDirectory is a process-local Directory for development and tests.
// A single mutex guards every operation, which makes check-and-create in
// CreateSuperAdmin atomic without further coordination.
type MemoryDirectory struct {
	mu    sync.Mutex
	users map[uuid.UUID]*User
	roles map[uuid.UUID]*Role
}

// NewMemoryDirectory creates an empty in-memory directory. The given roles
// are the read-only role definitions it resolves against.
func NewMemoryDirectory(roles ...*Role) *MemoryDirectory {
	d := &MemoryDirectory{
		users: make(map[uuid.UUID]*User),
		roles: make(map[uuid.UUID]*Role),
	}
	for _, r := range roles {
		d.roles[r.ID] = r
	}
	return d
}

func copyUser(u *User) *User {
	cp := *u
	cp.Roles = make([]uuid.UUID, len(u.Roles))
	copy(cp.Roles, u.Roles)
	return &cp
}

func (d *MemoryDirectory) find(match func(*User) bool) (*User, error) {
	for _, u := range d.users {
		if match(u) {
			return copyUser(u), nil
		}
	}
	return nil, ErrUserNotFound
}

// FindByID retrieves a single user by its UUID.
func (d *MemoryDirectory) FindByID(_ context.Context, id uuid.UUID) (*User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	u, ok := d.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return copyUser(u), nil
}

// FindByEmail retrieves a single user by email.
func (d *MemoryDirectory) FindByEmail(_ context.Context, email string) (*User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.find(func(u *User) bool { return strings.EqualFold(u.Email, email) })
}

// FindByRegistrationToken retrieves a pending invited user by its
// registration token.
func (d *MemoryDirectory) FindByRegistrationToken(_ context.Context, registrationToken string) (*User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.find(func(u *User) bool {
		return u.RegistrationToken != nil && *u.RegistrationToken == registrationToken
	})
}

// FindByResetToken retrieves a user by its password-reset token.
func (d *MemoryDirectory) FindByResetToken(_ context.Context, resetToken string) (*User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.find(func(u *User) bool {
		return u.ResetPasswordToken != nil && *u.ResetPasswordToken == resetToken
	})
}

func (d *MemoryDirectory) superAdminExists() bool {
	for _, u := range d.users {
		for _, roleID := range u.Roles {
			if r, ok := d.roles[roleID]; ok && r.IsSuperAdmin {
				return true
			}
		}
	}
	return false
}

// SuperAdminExists reports whether any user holds a super-admin role.
func (d *MemoryDirectory) SuperAdminExists(_ context.Context) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.superAdminExists(), nil
}

func (d *MemoryDirectory) insert(u *User) error {
	for _, existing := range d.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return ErrEmailTaken
		}
	}

	u.ID = uuid.New()
	u.CreatedAt = time.Now().UTC()
	d.users[u.ID] = copyUser(u)
	return nil
}

// Create inserts a new user record.
func (d *MemoryDirectory) Create(_ context.Context, u *User) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.insert(u)
}

// CreateSuperAdmin inserts the bootstrap super admin. The existence check and
// the insert run under the same lock.
func (d *MemoryDirectory) CreateSuperAdmin(_ context.Context, u *User) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.superAdminExists() {
		return ErrSuperAdminExists
	}

	u.IsActive = true
	u.RegistrationToken = nil
	return d.insert(u)
}

// Activate turns a pending invited user into an active account.
func (d *MemoryDirectory) Activate(_ context.Context, id uuid.UUID, firstname, lastname, passwordHash string) (*User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	u, ok := d.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}

	u.Firstname = firstname
	u.Lastname = lastname
	u.PasswordHash = passwordHash
	u.IsActive = true
	u.RegistrationToken = nil
	return copyUser(u), nil
}

// SetResetToken stores a fresh password-reset token on the user.
func (d *MemoryDirectory) SetResetToken(_ context.Context, id uuid.UUID, resetToken string, issuedAt time.Time) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	u, ok := d.users[id]
	if !ok {
		return ErrUserNotFound
	}

	u.ResetPasswordToken = &resetToken
	u.ResetTokenIssuedAt = &issuedAt
	return nil
}

// ResetCredential replaces the stored credential and clears any reset token.
func (d *MemoryDirectory) ResetCredential(_ context.Context, id uuid.UUID, passwordHash string) (*User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	u, ok := d.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}

	u.PasswordHash = passwordHash
	u.ResetPasswordToken = nil
	u.ResetTokenIssuedAt = nil
	return copyUser(u), nil
}

// MemoryRoleDirectory is a fixed, process-local RoleDirectory.
type MemoryRoleDirectory struct {
	roles []*Role
}

// NewMemoryRoleDirectory creates a RoleDirectory over the given roles.
func NewMemoryRoleDirectory(roles ...*Role) *MemoryRoleDirectory {
	return &MemoryRoleDirectory{roles: roles}
}

// GetSuperAdmin returns the super-admin role definition.
func (d *MemoryRoleDirectory) GetSuperAdmin(_ context.Context) (*Role, error) {
	for _, r := range d.roles {
		if r.IsSuperAdmin {
			cp := *r
			return &cp, nil
		}
	}
	return nil, ErrRoleNotFound
}
