package user_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsdeck/opsdeck/internal/user"
)

func TestSanitize_StripsCredentialAndTokens(t *testing.T) {
	t.Parallel()

	registrationToken := "invite-123"
	resetToken := "reset-abc"
	now := time.Now().UTC()
	u := &user.User{
		ID:                 uuid.New(),
		Email:              "kaja@example.com",
		Username:           "kaja",
		Firstname:          "Kaja",
		Lastname:           "Berg",
		PasswordHash:       "$2a$12$secret",
		Roles:              []uuid.UUID{uuid.New()},
		IsActive:           true,
		RegistrationToken:  &registrationToken,
		ResetPasswordToken: &resetToken,
		ResetTokenIssuedAt: &now,
	}

	s := u.Sanitize()
	assert.Equal(t, u.ID, s.ID)
	assert.Equal(t, u.Email, s.Email)
	assert.Equal(t, u.Roles, s.Roles)

	// The serialized form must not leak any sensitive material.
	body, err := json.Marshal(s)
	require.NoError(t, err)
	assert.NotContains(t, string(body), "secret")
	assert.NotContains(t, string(body), "invite-123")
	assert.NotContains(t, string(body), "reset-abc")
	assert.NotContains(t, string(body), "password")
}

func TestSanitize_CopiesRoles(t *testing.T) {
	t.Parallel()

	roleID := uuid.New()
	u := &user.User{ID: uuid.New(), Roles: []uuid.UUID{roleID}}

	s := u.Sanitize()
	s.Roles[0] = uuid.New()

	assert.Equal(t, roleID, u.Roles[0], "mutating the sanitized copy must not touch the original")
}
