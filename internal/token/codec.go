// Package token issues, verifies, and revokes compact signed session tokens.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Lifetime is how long an issued session token stays valid.
const Lifetime = 15 * time.Minute

// Claims is the payload carried by a verified session token.
type Claims struct {
	UserID    uuid.UUID
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Codec signs and verifies session tokens. The signing secret is fixed at
// construction; there is one Codec per process.
type Codec struct {
	secret []byte
}

// NewCodec creates a Codec from the configured signing secret.
func NewCodec(secret string) (*Codec, error) {
	if secret == "" {
		return nil, errors.New("token signing secret must not be empty")
	}
	return &Codec{secret: []byte(secret)}, nil
}

// Issue produces a signed token for the given user, valid for Lifetime.
func (c *Codec) Issue(userID uuid.UUID) (string, error) {
	now := time.Now().UTC()
	claims := jwt.RegisteredClaims{
		Subject:   userID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(Lifetime)),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}

	return signed, nil
}

// Verify parses and validates a raw token. It fails closed: any parse error,
// signature mismatch, unexpected signing method, or expiry yields ok=false
// with zero Claims.
func (c *Codec) Verify(raw string) (Claims, bool) {
	var rc jwt.RegisteredClaims
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

	_, err := parser.ParseWithClaims(raw, &rc, func(_ *jwt.Token) (any, error) {
		return c.secret, nil
	})
	if err != nil {
		return Claims{}, false
	}

	userID, err := uuid.Parse(rc.Subject)
	if err != nil {
		return Claims{}, false
	}
	if rc.ExpiresAt == nil {
		return Claims{}, false
	}

	claims := Claims{
		UserID:    userID,
		ExpiresAt: rc.ExpiresAt.Time,
	}
	if rc.IssuedAt != nil {
		claims.IssuedAt = rc.IssuedAt.Time
	}

	return claims, true
}
