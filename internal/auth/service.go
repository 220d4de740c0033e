package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/opsdeck/opsdeck/internal/event"
	"github.com/opsdeck/opsdeck/internal/token"
	"github.com/opsdeck/opsdeck/internal/user"
)

// ErrMissingToken is returned when an operation requiring a session token is
// called without one.
var ErrMissingToken = errors.New("missing token")

// ErrInvalidToken is returned when a session token fails verification or has
// been revoked.
var ErrInvalidToken = errors.New("invalid token")

// ErrSystem is returned when credential verification could not run at all,
// as opposed to running and rejecting the credentials.
var ErrSystem = errors.New("authentication backend unavailable")

// Service orchestrates credential verification and session token handling.
type Service struct {
	verifier CredentialVerifier
	codec    *token.Codec
	revoked  token.RevocationStore
	hub      event.Hub
}

// NewService creates an authentication Service.
func NewService(verifier CredentialVerifier, codec *token.Codec, revoked token.RevocationStore, hub event.Hub) *Service {
	return &Service{
		verifier: verifier,
		codec:    codec,
		revoked:  revoked,
		hub:      hub,
	}
}

func (s *Service) emit(kind, actor string) {
	s.hub.Emit(event.Event{
		Kind:     kind,
		Actor:    actor,
		Provider: s.verifier.Provider(),
		Time:     time.Now().UTC(),
	})
}

// Login verifies the credentials and, on success, returns the sanitized user
// together with a fresh session token. A rejected login returns
// ErrBadCredentials; a verification that could not run returns ErrSystem.
// Every attempt emits an event.
func (s *Service) Login(ctx context.Context, email, password string) (*user.Sanitized, string, error) {
	u, err := s.verifier.Verify(ctx, email, password)
	if err != nil {
		s.emit(event.KindAuthFailure, email)
		if errors.Is(err, ErrBadCredentials) {
			return nil, "", ErrBadCredentials
		}
		slog.Error("credential verification failed", "error", err, "provider", s.verifier.Provider())
		return nil, "", ErrSystem
	}

	raw, err := s.codec.Issue(u.ID)
	if err != nil {
		s.emit(event.KindAuthFailure, email)
		slog.Error("failed to issue session token", "error", err)
		return nil, "", ErrSystem
	}

	s.emit(event.KindAuthSuccess, u.Email)
	return u.Sanitize(), raw, nil
}

// Subject returns the user ID asserted by a valid, unrevoked session token.
// A revoked token is indistinguishable from an invalid one to the caller.
func (s *Service) Subject(ctx context.Context, raw string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, ErrMissingToken
	}

	claims, ok := s.codec.Verify(raw)
	if !ok {
		return uuid.Nil, ErrInvalidToken
	}

	revoked, err := s.revoked.IsRevoked(ctx, raw)
	if err != nil {
		// Fail closed: a token whose revocation status is unknown is not
		// accepted.
		return uuid.Nil, fmt.Errorf("checking revocation: %w", err)
	}
	if revoked {
		return uuid.Nil, ErrInvalidToken
	}

	return claims.UserID, nil
}

// Renew issues a fresh token for the subject of a still-valid token. Renewal
// does not re-check credentials; possession of a valid token is sufficient.
func (s *Service) Renew(ctx context.Context, raw string) (string, error) {
	subject, err := s.Subject(ctx, raw)
	if err != nil {
		return "", err
	}

	fresh, err := s.codec.Issue(subject)
	if err != nil {
		return "", fmt.Errorf("issuing token: %w", err)
	}

	return fresh, nil
}

// IsAuthenticated reports whether raw is a currently acceptable session
// token. It never returns an error; unknown revocation status reports false.
func (s *Service) IsAuthenticated(ctx context.Context, raw string) bool {
	_, err := s.Subject(ctx, raw)
	if err != nil && !errors.Is(err, ErrMissingToken) && !errors.Is(err, ErrInvalidToken) {
		slog.Error("revocation check failed", "error", err)
	}
	return err == nil
}

// Logout revokes the token so it is rejected before its natural expiry.
// Revoking an already-revoked token succeeds.
func (s *Service) Logout(ctx context.Context, raw string) error {
	if raw == "" {
		return ErrMissingToken
	}

	if err := s.revoked.Revoke(ctx, raw); err != nil {
		return fmt.Errorf("revoking token: %w", err)
	}

	return nil
}
