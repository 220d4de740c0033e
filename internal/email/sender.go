// Package email delivers transactional mail for the auth flows.
package email

import (
	"context"
	"log/slog"
)

// Sender delivers transactional mail.
type Sender interface {
	// SendResetPassword emails a password-reset link to the given address.
	SendResetPassword(ctx context.Context, to, link string) error
}

// LogSender logs instead of sending. Used when SMTP is not configured, so
// local development still surfaces the reset link.
type LogSender struct{}

// SendResetPassword logs the reset link.
func (LogSender) SendResetPassword(_ context.Context, to, link string) error {
	slog.Info("password reset email (smtp not configured)", "to", to, "link", link)
	return nil
}
