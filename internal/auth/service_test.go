package auth_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/opsdeck/opsdeck/internal/auth"
	"github.com/opsdeck/opsdeck/internal/event"
	"github.com/opsdeck/opsdeck/internal/token"
	"github.com/opsdeck/opsdeck/internal/user"
)

const testBcryptCost = 4 // low cost for fast tests

// --- Mocks ---

type mockVerifier struct {
	verifyFn func(ctx context.Context, email, password string) (*user.User, error)
}

func (m *mockVerifier) Verify(ctx context.Context, email, password string) (*user.User, error) {
	return m.verifyFn(ctx, email, password)
}

func (m *mockVerifier) Provider() string { return "local" }

type recordingHub struct {
	mu     sync.Mutex
	events []event.Event
}

func (h *recordingHub) Emit(e event.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, e)
}

func (h *recordingHub) all() []event.Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]event.Event, len(h.events))
	copy(out, h.events)
	return out
}

type failingRevocations struct {
	err error
}

func (f *failingRevocations) Revoke(context.Context, string) error { return f.err }

func (f *failingRevocations) IsRevoked(context.Context, string) (bool, error) {
	return false, f.err
}

// --- Helpers ---

func newCodec(t *testing.T) *token.Codec {
	t.Helper()

	codec, err := token.NewCodec("service-test-secret")
	require.NoError(t, err)
	return codec
}

func activeUser(email string) *user.User {
	return &user.User{
		ID:           uuid.New(),
		Email:        email,
		Username:     "kaja",
		Firstname:    "Kaja",
		Lastname:     "Berg",
		PasswordHash: "$2a$04$notactuallycheckedhere",
		IsActive:     true,
	}
}

// --- Login ---

func TestLogin_Success(t *testing.T) {
	t.Parallel()

	u := activeUser("kaja@example.com")
	hub := &recordingHub{}
	codec := newCodec(t)
	svc := auth.NewService(
		&mockVerifier{verifyFn: func(_ context.Context, _, _ string) (*user.User, error) {
			return u, nil
		}},
		codec, token.NewMemoryRevocationStore(), hub,
	)

	sanitized, raw, err := svc.Login(context.Background(), u.Email, "Password1")
	require.NoError(t, err)

	assert.Equal(t, u.ID, sanitized.ID)
	assert.Equal(t, u.Email, sanitized.Email)

	claims, ok := codec.Verify(raw)
	require.True(t, ok, "issued token should verify")
	assert.Equal(t, u.ID, claims.UserID)

	events := hub.all()
	require.Len(t, events, 1)
	assert.Equal(t, event.KindAuthSuccess, events[0].Kind)
	assert.Equal(t, u.Email, events[0].Actor)
	assert.Equal(t, "local", events[0].Provider)
}

func TestLogin_BadCredentials(t *testing.T) {
	t.Parallel()

	hub := &recordingHub{}
	svc := auth.NewService(
		&mockVerifier{verifyFn: func(_ context.Context, _, _ string) (*user.User, error) {
			return nil, auth.ErrBadCredentials
		}},
		newCodec(t), token.NewMemoryRevocationStore(), hub,
	)

	_, _, err := svc.Login(context.Background(), "kaja@example.com", "wrong")
	assert.ErrorIs(t, err, auth.ErrBadCredentials)

	events := hub.all()
	require.Len(t, events, 1)
	assert.Equal(t, event.KindAuthFailure, events[0].Kind)
}

func TestLogin_InfrastructureFailure(t *testing.T) {
	t.Parallel()

	hub := &recordingHub{}
	svc := auth.NewService(
		&mockVerifier{verifyFn: func(_ context.Context, _, _ string) (*user.User, error) {
			return nil, errors.New("store unreachable")
		}},
		newCodec(t), token.NewMemoryRevocationStore(), hub,
	)

	_, _, err := svc.Login(context.Background(), "kaja@example.com", "Password1")
	assert.ErrorIs(t, err, auth.ErrSystem, "infrastructure failure must be distinct from a rejected login")
	assert.NotErrorIs(t, err, auth.ErrBadCredentials)

	events := hub.all()
	require.Len(t, events, 1)
	assert.Equal(t, event.KindAuthFailure, events[0].Kind)
}

// --- Renew ---

func newLoggedInService(t *testing.T) (*auth.Service, *token.Codec, string, uuid.UUID) {
	t.Helper()

	u := activeUser("renew@example.com")
	codec := newCodec(t)
	svc := auth.NewService(
		&mockVerifier{verifyFn: func(_ context.Context, _, _ string) (*user.User, error) {
			return u, nil
		}},
		codec, token.NewMemoryRevocationStore(), &recordingHub{},
	)

	_, raw, err := svc.Login(context.Background(), u.Email, "Password1")
	require.NoError(t, err)
	return svc, codec, raw, u.ID
}

func TestRenew_MissingToken(t *testing.T) {
	t.Parallel()

	svc, _, _, _ := newLoggedInService(t)

	_, err := svc.Renew(context.Background(), "")
	assert.ErrorIs(t, err, auth.ErrMissingToken)
}

func TestRenew_InvalidToken(t *testing.T) {
	t.Parallel()

	svc, _, _, _ := newLoggedInService(t)

	_, err := svc.Renew(context.Background(), "not-a-token")
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestRenew_ValidToken(t *testing.T) {
	t.Parallel()

	svc, codec, raw, userID := newLoggedInService(t)

	fresh, err := svc.Renew(context.Background(), raw)
	require.NoError(t, err)

	claims, ok := codec.Verify(fresh)
	require.True(t, ok)
	assert.Equal(t, userID, claims.UserID, "renewed token must keep the same subject")
}

func TestRenew_RevokedToken(t *testing.T) {
	t.Parallel()

	svc, _, raw, _ := newLoggedInService(t)

	require.NoError(t, svc.Logout(context.Background(), raw))

	_, err := svc.Renew(context.Background(), raw)
	assert.ErrorIs(t, err, auth.ErrInvalidToken, "a logged-out token must not renew")
}

func TestRenew_RevocationStoreFailure(t *testing.T) {
	t.Parallel()

	codec := newCodec(t)
	svc := auth.NewService(
		&mockVerifier{verifyFn: func(_ context.Context, _, _ string) (*user.User, error) {
			return nil, auth.ErrBadCredentials
		}},
		codec, &failingRevocations{err: errors.New("redis down")}, &recordingHub{},
	)

	raw, err := codec.Issue(uuid.New())
	require.NoError(t, err)

	_, err = svc.Renew(context.Background(), raw)
	require.Error(t, err, "unknown revocation status must fail closed")
	assert.NotErrorIs(t, err, auth.ErrInvalidToken)
	assert.NotErrorIs(t, err, auth.ErrMissingToken)
}

// --- IsAuthenticated / Logout ---

func TestIsAuthenticated(t *testing.T) {
	t.Parallel()

	svc, _, raw, _ := newLoggedInService(t)
	ctx := context.Background()

	assert.False(t, svc.IsAuthenticated(ctx, ""), "missing token")
	assert.False(t, svc.IsAuthenticated(ctx, "junk"), "invalid token")
	assert.True(t, svc.IsAuthenticated(ctx, raw), "valid token")

	require.NoError(t, svc.Logout(ctx, raw))
	assert.False(t, svc.IsAuthenticated(ctx, raw), "revoked token")
}

func TestIsAuthenticated_RevocationStoreFailure(t *testing.T) {
	t.Parallel()

	codec := newCodec(t)
	svc := auth.NewService(
		&mockVerifier{verifyFn: func(_ context.Context, _, _ string) (*user.User, error) {
			return nil, auth.ErrBadCredentials
		}},
		codec, &failingRevocations{err: errors.New("redis down")}, &recordingHub{},
	)

	raw, err := codec.Issue(uuid.New())
	require.NoError(t, err)

	assert.False(t, svc.IsAuthenticated(context.Background(), raw), "unknown revocation status reports unauthenticated")
}

func TestLogout_MissingToken(t *testing.T) {
	t.Parallel()

	svc, _, _, _ := newLoggedInService(t)

	err := svc.Logout(context.Background(), "")
	assert.ErrorIs(t, err, auth.ErrMissingToken)
}

func TestLogout_Idempotent(t *testing.T) {
	t.Parallel()

	svc, _, raw, _ := newLoggedInService(t)
	ctx := context.Background()

	require.NoError(t, svc.Logout(ctx, raw))
	assert.NoError(t, svc.Logout(ctx, raw), "second logout of the same token must succeed")
}

// --- LocalVerifier ---

func seededDirectory(t *testing.T, email, password string, active bool) *user.MemoryDirectory {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(password), testBcryptCost)
	require.NoError(t, err)

	directory := user.NewMemoryDirectory()
	require.NoError(t, directory.Create(context.Background(), &user.User{
		Email:        email,
		Username:     "kaja",
		Firstname:    "Kaja",
		Lastname:     "Berg",
		PasswordHash: string(hash),
		IsActive:     active,
	}))
	return directory
}

func TestLocalVerifier_Success(t *testing.T) {
	t.Parallel()

	directory := seededDirectory(t, "kaja@example.com", "Password1", true)
	verifier := auth.NewLocalVerifier(directory)

	u, err := verifier.Verify(context.Background(), "kaja@example.com", "Password1")
	require.NoError(t, err)
	assert.Equal(t, "kaja@example.com", u.Email)
}

func TestLocalVerifier_WrongPassword(t *testing.T) {
	t.Parallel()

	directory := seededDirectory(t, "kaja@example.com", "Password1", true)
	verifier := auth.NewLocalVerifier(directory)

	_, err := verifier.Verify(context.Background(), "kaja@example.com", "Password2")
	assert.ErrorIs(t, err, auth.ErrBadCredentials)
}

func TestLocalVerifier_UnknownUser(t *testing.T) {
	t.Parallel()

	directory := seededDirectory(t, "kaja@example.com", "Password1", true)
	verifier := auth.NewLocalVerifier(directory)

	_, err := verifier.Verify(context.Background(), "nobody@example.com", "Password1")
	assert.ErrorIs(t, err, auth.ErrBadCredentials, "unknown user and wrong password must be indistinguishable")
}

func TestLocalVerifier_InactiveUser(t *testing.T) {
	t.Parallel()

	directory := seededDirectory(t, "kaja@example.com", "Password1", false)
	verifier := auth.NewLocalVerifier(directory)

	_, err := verifier.Verify(context.Background(), "kaja@example.com", "Password1")
	assert.ErrorIs(t, err, auth.ErrBadCredentials, "pending users cannot log in")
}
