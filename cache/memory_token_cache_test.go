package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEntry(value string, ttl time.Duration) *TokenEntry {
	return &TokenEntry{
		ID:         "id-" + value,
		TokenValue: value,
		Purpose:    "refresh",
		UserID:     "user-1",
		ExpiresAt:  time.Now().Add(ttl),
	}
}

func TestMemoryTokenCacheSetGet(t *testing.T) {
	c := NewMemoryTokenCache()
	defer c.Close()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, testEntry("tok-a", time.Hour)))

	entry, err := c.Get(ctx, "tok-a")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, "id-tok-a", entry.ID)
	assert.Equal(t, "user-1", entry.UserID)

	// Miss is (nil, nil).
	entry, err = c.Get(ctx, "tok-unknown")
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestMemoryTokenCacheDelete(t *testing.T) {
	c := NewMemoryTokenCache()
	defer c.Close()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, testEntry("tok-a", time.Hour)))
	require.NoError(t, c.Delete(ctx, "tok-a"))

	entry, err := c.Get(ctx, "tok-a")
	require.NoError(t, err)
	assert.Nil(t, entry)

	// Deleting again is fine.
	require.NoError(t, c.Delete(ctx, "tok-a"))
}

func TestMemoryTokenCacheExpiry(t *testing.T) {
	c := NewMemoryTokenCache()
	defer c.Close()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, testEntry("tok-short", 30*time.Millisecond)))

	time.Sleep(80 * time.Millisecond)
	entry, err := c.Get(ctx, "tok-short")
	require.NoError(t, err)
	assert.Nil(t, entry)

	// An entry that is already expired is never stored.
	require.NoError(t, c.Set(ctx, testEntry("tok-dead", -time.Minute)))
	entry, err = c.Get(ctx, "tok-dead")
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestMemoryTokenCacheClearAndCount(t *testing.T) {
	c := NewMemoryTokenCache()
	defer c.Close()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, testEntry("tok-a", time.Hour)))
	require.NoError(t, c.Set(ctx, testEntry("tok-b", time.Hour)))
	assert.Equal(t, 2, c.Count(ctx))

	require.NoError(t, c.Clear(ctx))
	assert.Zero(t, c.Count(ctx))
}

func TestHashTokenKeysAreOpaque(t *testing.T) {
	a := HashToken("tok-a")
	b := HashToken("tok-b")
	assert.NotEqual(t, a, b)
	assert.Equal(t, a, HashToken("tok-a"))
	assert.Len(t, a, 64)
	assert.NotContains(t, a, "tok-a")
}
