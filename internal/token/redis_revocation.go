package token

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const revocationKeyPrefix = "auth:revoked:"

// RedisRevocationStore is a RevocationStore shared across server instances.
// Entries carry a TTL equal to the token lifetime, so redis expires them
// together with the tokens they block.
type RedisRevocationStore struct {
	client *redis.Client
}

// NewRedisRevocationStore creates a revocation store backed by the given
// redis client.
func NewRedisRevocationStore(client *redis.Client) *RedisRevocationStore {
	return &RedisRevocationStore{client: client}
}

// Revoke records the token as revoked. Re-revoking extends the entry TTL,
// which is harmless: the token is expired by then anyway.
func (s *RedisRevocationStore) Revoke(ctx context.Context, raw string) error {
	if err := s.client.Set(ctx, revocationKeyPrefix+raw, "1", Lifetime).Err(); err != nil {
		return fmt.Errorf("storing revocation: %w", err)
	}
	return nil
}

// IsRevoked reports whether the token has been revoked.
func (s *RedisRevocationStore) IsRevoked(ctx context.Context, raw string) (bool, error) {
	n, err := s.client.Exists(ctx, revocationKeyPrefix+raw).Result()
	if err != nil {
		return false, fmt.Errorf("checking revocation: %w", err)
	}
	return n > 0, nil
}
