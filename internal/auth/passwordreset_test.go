package auth_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/opsdeck/opsdeck/internal/auth"
	"github.com/opsdeck/opsdeck/internal/token"
	"github.com/opsdeck/opsdeck/internal/user"
)

type sentMail struct {
	to   string
	link string
}

type channelSender struct {
	sent chan sentMail
	err  error
}

func newChannelSender() *channelSender {
	return &channelSender{sent: make(chan sentMail, 1)}
}

func (s *channelSender) SendResetPassword(_ context.Context, to, link string) error {
	s.sent <- sentMail{to: to, link: link}
	return s.err
}

// probedDirectory signals every FindByEmail completion, so tests can wait for
// the detached side effect deterministically.
type probedDirectory struct {
	user.Directory
	lookups chan string
}

func (p *probedDirectory) FindByEmail(ctx context.Context, email string) (*user.User, error) {
	u, err := p.Directory.FindByEmail(ctx, email)
	p.lookups <- email
	return u, err
}

func newResetService(t *testing.T, directory user.Directory, sender *channelSender) (*auth.PasswordResetService, *token.Codec) {
	t.Helper()

	codec, err := token.NewCodec("reset-test-secret")
	require.NoError(t, err)

	svc := auth.NewPasswordResetService(directory, codec, sender, "https://admin.example.com/auth/reset-password", testBcryptCost)
	return svc, codec
}

func seedActiveUser(t *testing.T, directory *user.MemoryDirectory, email string) *user.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("OldPassword1"), testBcryptCost)
	require.NoError(t, err)

	u := &user.User{
		Email:        email,
		Firstname:    "Mara",
		Lastname:     "Lindt",
		PasswordHash: string(hash),
		IsActive:     true,
	}
	require.NoError(t, directory.Create(context.Background(), u))
	return u
}

// --- ForgotPassword ---

func TestForgotPassword_ExistingEmail(t *testing.T) {
	t.Parallel()

	directory := user.NewMemoryDirectory()
	seeded := seedActiveUser(t, directory, "mara@example.com")
	sender := newChannelSender()
	svc, _ := newResetService(t, directory, sender)

	svc.ForgotPassword(context.Background(), "mara@example.com")

	select {
	case mail := <-sender.sent:
		assert.Equal(t, "mara@example.com", mail.to)
		assert.True(t, strings.HasPrefix(mail.link, "https://admin.example.com/auth/reset-password?code="), "link %q", mail.link)

		stored, err := directory.FindByID(context.Background(), seeded.ID)
		require.NoError(t, err)
		require.NotNil(t, stored.ResetPasswordToken)
		assert.Contains(t, mail.link, *stored.ResetPasswordToken, "emailed link must carry the stored token")
		require.NotNil(t, stored.ResetTokenIssuedAt)
	case <-time.After(5 * time.Second):
		t.Fatal("reset email was never sent")
	}
}

func TestForgotPassword_UnknownEmail(t *testing.T) {
	t.Parallel()

	directory := user.NewMemoryDirectory()
	seedActiveUser(t, directory, "mara@example.com")
	probed := &probedDirectory{Directory: directory, lookups: make(chan string, 1)}
	sender := newChannelSender()
	svc, _ := newResetService(t, probed, sender)

	// The caller observes the same immediate, successful return as for a
	// known address.
	svc.ForgotPassword(context.Background(), "stranger@example.com")

	select {
	case <-probed.lookups:
	case <-time.After(5 * time.Second):
		t.Fatal("background lookup never ran")
	}

	select {
	case mail := <-sender.sent:
		t.Fatalf("no email should be sent for an unknown address, got %+v", mail)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestForgotPassword_SendFailureNotSurfaced(t *testing.T) {
	t.Parallel()

	directory := user.NewMemoryDirectory()
	seeded := seedActiveUser(t, directory, "mara@example.com")
	sender := newChannelSender()
	sender.err = errors.New("smtp down")
	svc, _ := newResetService(t, directory, sender)

	svc.ForgotPassword(context.Background(), "mara@example.com")

	select {
	case <-sender.sent:
	case <-time.After(5 * time.Second):
		t.Fatal("send was never attempted")
	}

	// The token was still stored; the user can retry from a fresh email.
	stored, err := directory.FindByID(context.Background(), seeded.ID)
	require.NoError(t, err)
	assert.NotNil(t, stored.ResetPasswordToken)
}

// --- ResetPassword ---

func seedResetToken(t *testing.T, directory *user.MemoryDirectory, u *user.User, resetToken string, issuedAt time.Time) {
	t.Helper()
	require.NoError(t, directory.SetResetToken(context.Background(), u.ID, resetToken, issuedAt))
}

func TestResetPassword_Success(t *testing.T) {
	t.Parallel()

	directory := user.NewMemoryDirectory()
	seeded := seedActiveUser(t, directory, "mara@example.com")
	seedResetToken(t, directory, seeded, "reset-abc", time.Now().UTC())
	svc, codec := newResetService(t, directory, newChannelSender())

	sanitized, raw, err := svc.ResetPassword(context.Background(), "reset-abc", "NewPassword1")
	require.NoError(t, err)
	assert.Equal(t, seeded.ID, sanitized.ID)

	claims, ok := codec.Verify(raw)
	require.True(t, ok)
	assert.Equal(t, seeded.ID, claims.UserID)

	stored, err := directory.FindByID(context.Background(), seeded.ID)
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("NewPassword1")))
	assert.Nil(t, stored.ResetPasswordToken, "reset token is single-use")
}

func TestResetPassword_UnknownToken(t *testing.T) {
	t.Parallel()

	directory := user.NewMemoryDirectory()
	seeded := seedActiveUser(t, directory, "mara@example.com")
	svc, _ := newResetService(t, directory, newChannelSender())

	_, _, err := svc.ResetPassword(context.Background(), "no-such-token", "NewPassword1")
	assert.ErrorIs(t, err, auth.ErrInvalidResetToken)

	// Credential unchanged.
	stored, findErr := directory.FindByID(context.Background(), seeded.ID)
	require.NoError(t, findErr)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("OldPassword1")))
}

func TestResetPassword_StaleToken(t *testing.T) {
	t.Parallel()

	directory := user.NewMemoryDirectory()
	seeded := seedActiveUser(t, directory, "mara@example.com")
	seedResetToken(t, directory, seeded, "reset-old", time.Now().UTC().Add(-45*time.Minute))
	svc, _ := newResetService(t, directory, newChannelSender())

	_, _, err := svc.ResetPassword(context.Background(), "reset-old", "NewPassword1")
	assert.ErrorIs(t, err, auth.ErrInvalidResetToken, "stale tokens are rejected")

	stored, findErr := directory.FindByID(context.Background(), seeded.ID)
	require.NoError(t, findErr)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("OldPassword1")))
}
