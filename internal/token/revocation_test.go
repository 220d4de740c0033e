package token_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsdeck/opsdeck/internal/token"
)

func TestMemoryRevocation_RevokeThenLookup(t *testing.T) {
	t.Parallel()

	store := token.NewMemoryRevocationStore()
	ctx := context.Background()

	revoked, err := store.IsRevoked(ctx, "tok-1")
	require.NoError(t, err)
	assert.False(t, revoked, "unknown token should not be revoked")

	require.NoError(t, store.Revoke(ctx, "tok-1"))

	revoked, err = store.IsRevoked(ctx, "tok-1")
	require.NoError(t, err)
	assert.True(t, revoked, "revocation must be visible immediately")
}

func TestMemoryRevocation_Idempotent(t *testing.T) {
	t.Parallel()

	store := token.NewMemoryRevocationStore()
	ctx := context.Background()

	require.NoError(t, store.Revoke(ctx, "tok-1"))
	require.NoError(t, store.Revoke(ctx, "tok-1"), "re-revoking must succeed")

	revoked, err := store.IsRevoked(ctx, "tok-1")
	require.NoError(t, err)
	assert.True(t, revoked)
}

func TestMemoryRevocation_ConcurrentDistinctTokens(t *testing.T) {
	t.Parallel()

	store := token.NewMemoryRevocationStore()
	ctx := context.Background()

	const n = 64
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tok := fmt.Sprintf("tok-%d", i)
			assert.NoError(t, store.Revoke(ctx, tok))

			// Read-after-write visibility within the same goroutine.
			revoked, err := store.IsRevoked(ctx, tok)
			assert.NoError(t, err)
			assert.True(t, revoked)
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		revoked, err := store.IsRevoked(ctx, fmt.Sprintf("tok-%d", i))
		require.NoError(t, err)
		assert.True(t, revoked, "token %d should be revoked", i)
	}
}

func TestMemoryRevocation_ConcurrentReadersAndWriters(t *testing.T) {
	t.Parallel()

	store := token.NewMemoryRevocationStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			_ = store.Revoke(ctx, fmt.Sprintf("w-%d", i))
		}(i)
		go func(i int) {
			defer wg.Done()
			_, _ = store.IsRevoked(ctx, fmt.Sprintf("w-%d", (i+7)%16))
		}(i)
	}
	wg.Wait()
}
