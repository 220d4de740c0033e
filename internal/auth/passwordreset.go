package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/opsdeck/opsdeck/internal/email"
	"github.com/opsdeck/opsdeck/internal/token"
	"github.com/opsdeck/opsdeck/internal/user"
)

// resetTokenValidity bounds how long a reset link stays usable.
const resetTokenValidity = 30 * time.Minute

// resetSendTimeout bounds the detached email side effect.
const resetSendTimeout = 30 * time.Second

// ErrInvalidResetToken is returned when no user matches the supplied reset
// token, or the token has gone stale.
var ErrInvalidResetToken = errors.New("invalid reset password token")

// PasswordResetService handles the forgot/reset password flow.
type PasswordResetService struct {
	directory  user.Directory
	codec      *token.Codec
	sender     email.Sender
	resetURL   string
	bcryptCost int
}

// NewPasswordResetService creates a PasswordResetService. resetURL is the
// admin UI page the emailed link points at; the token is appended as a query
// parameter.
func NewPasswordResetService(directory user.Directory, codec *token.Codec, sender email.Sender, resetURL string, bcryptCost int) *PasswordResetService {
	return &PasswordResetService{
		directory:  directory,
		codec:      codec,
		sender:     sender,
		resetURL:   resetURL,
		bcryptCost: bcryptCost,
	}
}

// ForgotPassword schedules the reset-email side effect and returns
// immediately. The caller observes the same outcome whether or not the email
// maps to an account; failures of the side effect are logged, never
// surfaced.
func (s *PasswordResetService) ForgotPassword(_ context.Context, emailAddr string) {
	go s.sendResetEmail(emailAddr)
}

// sendResetEmail runs detached from the originating request, on its own
// deadline.
func (s *PasswordResetService) sendResetEmail(emailAddr string) {
	ctx, cancel := context.WithTimeout(context.Background(), resetSendTimeout)
	defer cancel()

	u, err := s.directory.FindByEmail(ctx, emailAddr)
	if err != nil {
		if !errors.Is(err, user.ErrUserNotFound) {
			slog.Error("password reset lookup failed", "error", err)
		}
		return
	}
	if !u.IsActive {
		return
	}

	resetToken, err := generateResetToken()
	if err != nil {
		slog.Error("failed to generate reset token", "error", err)
		return
	}

	if err := s.directory.SetResetToken(ctx, u.ID, resetToken, time.Now().UTC()); err != nil {
		slog.Error("failed to store reset token", "error", err)
		return
	}

	link := fmt.Sprintf("%s?code=%s", s.resetURL, resetToken)
	if err := s.sender.SendResetPassword(ctx, u.Email, link); err != nil {
		slog.Error("failed to send password reset email", "error", err)
	}
}

func generateResetToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// ResetPassword consumes a reset token, replaces the stored credential, and
// opens a session for the user.
func (s *PasswordResetService) ResetPassword(ctx context.Context, resetToken, password string) (*user.Sanitized, string, error) {
	u, err := s.directory.FindByResetToken(ctx, resetToken)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			return nil, "", ErrInvalidResetToken
		}
		return nil, "", fmt.Errorf("finding user by reset token: %w", err)
	}

	if u.ResetTokenIssuedAt == nil || time.Since(*u.ResetTokenIssuedAt) > resetTokenValidity {
		return nil, "", ErrInvalidResetToken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return nil, "", fmt.Errorf("hashing password: %w", err)
	}

	updated, err := s.directory.ResetCredential(ctx, u.ID, string(hash))
	if err != nil {
		return nil, "", fmt.Errorf("updating credential: %w", err)
	}

	raw, err := s.codec.Issue(updated.ID)
	if err != nil {
		return nil, "", fmt.Errorf("issuing token: %w", err)
	}

	return updated.Sanitize(), raw, nil
}
