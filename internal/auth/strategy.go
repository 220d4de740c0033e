// Package auth implements the admin session flows: credential verification,
// token issuance and renewal, revocation on logout, registration, and
// password reset.
package auth

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/opsdeck/opsdeck/internal/user"
)

// ErrBadCredentials is returned for a rejected login. The message stays
// generic so callers cannot learn which part of the credentials was wrong.
var ErrBadCredentials = errors.New("invalid credentials")

// CredentialVerifier is the capability the authentication service delegates
// credential checks to. Implementations return ErrBadCredentials for a
// rejected login; any other error means the check itself could not run.
type CredentialVerifier interface {
	Verify(ctx context.Context, email, password string) (*user.User, error)

	// Provider names the strategy for event reporting.
	Provider() string
}

// LocalVerifier checks an email/password pair against the user directory
// with bcrypt.
type LocalVerifier struct {
	directory user.Directory
}

// NewLocalVerifier creates a LocalVerifier over the given directory.
func NewLocalVerifier(directory user.Directory) *LocalVerifier {
	return &LocalVerifier{directory: directory}
}

// dummyHash keeps a bcrypt comparison on the unknown-user and inactive-user
// paths, so those rejections take the same time as a password mismatch.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("opsdeck-no-such-user"), bcrypt.DefaultCost)

// Verify resolves the credentials to an active user.
func (v *LocalVerifier) Verify(ctx context.Context, email, password string) (*user.User, error) {
	u, err := v.directory.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			bcrypt.CompareHashAndPassword(dummyHash, []byte(password)) //nolint:errcheck // timing only
			return nil, ErrBadCredentials
		}
		return nil, fmt.Errorf("finding user by email: %w", err)
	}

	if !u.IsActive || u.PasswordHash == "" {
		bcrypt.CompareHashAndPassword(dummyHash, []byte(password)) //nolint:errcheck // timing only
		return nil, ErrBadCredentials
	}

	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return nil, ErrBadCredentials
	}

	return u, nil
}

// Provider names the strategy for event reporting.
func (v *LocalVerifier) Provider() string {
	return "local"
}
