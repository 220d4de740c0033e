package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/opsdeck/opsdeck/internal/event"
	"github.com/opsdeck/opsdeck/internal/token"
	"github.com/opsdeck/opsdeck/internal/user"
)

// ErrInvalidRegistrationToken is returned when no pending user matches the
// supplied registration token.
var ErrInvalidRegistrationToken = errors.New("invalid registration token")

// ErrSuperAdminRoleMissing means the super-admin role definition is absent
// from the role store. This is deployment corruption, not user input: it must
// surface as an unrecoverable error, never as a validation failure.
var ErrSuperAdminRoleMissing = errors.New("super admin role does not exist")

// InvitedInput is the payload completing an invited-user registration.
type InvitedInput struct {
	RegistrationToken string
	Firstname         string
	Lastname          string
	Password          string
}

// AdminInput is the payload for the one-time bootstrap registration.
type AdminInput struct {
	Email     string
	Username  string
	Firstname string
	Lastname  string
	Password  string
}

// RegistrationService handles invited-user activation and the bootstrap
// creation of the first super admin.
type RegistrationService struct {
	directory  user.Directory
	roles      user.RoleDirectory
	codec      *token.Codec
	telemetry  event.Telemetry
	bcryptCost int
}

// NewRegistrationService creates a RegistrationService.
func NewRegistrationService(directory user.Directory, roles user.RoleDirectory, codec *token.Codec, telemetry event.Telemetry, bcryptCost int) *RegistrationService {
	return &RegistrationService{
		directory:  directory,
		roles:      roles,
		codec:      codec,
		telemetry:  telemetry,
		bcryptCost: bcryptCost,
	}
}

// RegistrationInfo returns the public details of the pending invited user
// holding the given registration token.
func (s *RegistrationService) RegistrationInfo(ctx context.Context, registrationToken string) (*user.RegistrationInfo, error) {
	u, err := s.directory.FindByRegistrationToken(ctx, registrationToken)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			return nil, ErrInvalidRegistrationToken
		}
		return nil, fmt.Errorf("finding registration info: %w", err)
	}

	return &user.RegistrationInfo{
		Email:     u.Email,
		Firstname: u.Firstname,
		Lastname:  u.Lastname,
	}, nil
}

// RegisterInvited activates a pending invited user: sets the credential,
// clears the registration token, and opens a session.
func (s *RegistrationService) RegisterInvited(ctx context.Context, input InvitedInput) (*user.Sanitized, string, error) {
	pending, err := s.directory.FindByRegistrationToken(ctx, input.RegistrationToken)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			return nil, "", ErrInvalidRegistrationToken
		}
		return nil, "", fmt.Errorf("finding pending user: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), s.bcryptCost)
	if err != nil {
		return nil, "", fmt.Errorf("hashing password: %w", err)
	}

	activated, err := s.directory.Activate(ctx, pending.ID, input.Firstname, input.Lastname, string(hash))
	if err != nil {
		return nil, "", fmt.Errorf("activating user: %w", err)
	}

	raw, err := s.codec.Issue(activated.ID)
	if err != nil {
		return nil, "", fmt.Errorf("issuing token: %w", err)
	}

	return activated.Sanitize(), raw, nil
}

// RegisterSuperAdmin creates the first admin account with the super-admin
// role and opens a session, exactly as login does. At most one account can
// ever be created through this path; the directory enforces atomicity of the
// check-and-create, so concurrent bootstrap attempts yield one winner.
func (s *RegistrationService) RegisterSuperAdmin(ctx context.Context, input AdminInput) (*user.Sanitized, string, error) {
	exists, err := s.directory.SuperAdminExists(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("checking for super admin: %w", err)
	}
	if exists {
		return nil, "", user.ErrSuperAdminExists
	}

	role, err := s.roles.GetSuperAdmin(ctx)
	if err != nil {
		if errors.Is(err, user.ErrRoleNotFound) {
			return nil, "", ErrSuperAdminRoleMissing
		}
		return nil, "", fmt.Errorf("fetching super admin role: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), s.bcryptCost)
	if err != nil {
		return nil, "", fmt.Errorf("hashing password: %w", err)
	}

	u := &user.User{
		Email:        input.Email,
		Username:     input.Username,
		Firstname:    input.Firstname,
		Lastname:     input.Lastname,
		PasswordHash: string(hash),
		Roles:        []uuid.UUID{role.ID},
		IsActive:     true,
	}

	if err := s.directory.CreateSuperAdmin(ctx, u); err != nil {
		if errors.Is(err, user.ErrSuperAdminExists) {
			return nil, "", user.ErrSuperAdminExists
		}
		return nil, "", fmt.Errorf("creating super admin: %w", err)
	}

	s.telemetry.Send(ctx, "didCreateFirstAdmin")

	raw, err := s.codec.Issue(u.ID)
	if err != nil {
		return nil, "", fmt.Errorf("issuing token: %w", err)
	}

	return u.Sanitize(), raw, nil
}
