package token

import (
	"context"
	"sync"
	"time"
)

// RevocationStore persists tokens that must no longer be accepted, regardless
// of whether their signature still verifies. A revocation must be observable
// by IsRevoked as soon as Revoke returns.
type RevocationStore interface {
	Revoke(ctx context.Context, raw string) error
	IsRevoked(ctx context.Context, raw string) (bool, error)
}

// MemoryRevocationStore is a process-local RevocationStore. Records for
// tokens past their natural expiry are garbage-collected on insert.
type MemoryRevocationStore struct {
	mu     sync.RWMutex
	tokens map[string]time.Time
}

// NewMemoryRevocationStore creates an empty in-memory revocation store.
func NewMemoryRevocationStore() *MemoryRevocationStore {
	return &MemoryRevocationStore{tokens: make(map[string]time.Time)}
}

// Revoke records the token as revoked. Revoking an already-revoked token is
// a no-op; the original revocation time is kept.
func (s *MemoryRevocationStore) Revoke(_ context.Context, raw string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if _, ok := s.tokens[raw]; !ok {
		s.tokens[raw] = now
	}

	// A token revoked more than Lifetime ago has also expired naturally and
	// can no longer verify, so its record is dead weight.
	for t, revokedAt := range s.tokens {
		if now.Sub(revokedAt) > Lifetime {
			delete(s.tokens, t)
		}
	}

	return nil
}

// IsRevoked reports whether the token has been revoked.
func (s *MemoryRevocationStore) IsRevoked(_ context.Context, raw string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.tokens[raw]
	return ok, nil
}
