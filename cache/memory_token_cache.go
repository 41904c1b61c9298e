package cache

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// MemoryTokenCache implements TokenCache using ttlcache. Entries expire with
// the token record they mirror.
type MemoryTokenCache struct {
	cache *ttlcache.Cache[string, *TokenEntry]
}

// NewMemoryTokenCache creates a new in-memory token cache with automatic
// cleanup.
func NewMemoryTokenCache() *MemoryTokenCache {
	c := ttlcache.New(
		ttlcache.WithDisableTouchOnHit[string, *TokenEntry](),
	)

	go c.Start()

	return &MemoryTokenCache{cache: c}
}

// Set implements TokenCache.Set.
func (s *MemoryTokenCache) Set(_ context.Context, entry *TokenEntry) error {
	ttl := time.Until(entry.ExpiresAt)
	if ttl <= 0 {
		// Already expired, nothing worth caching.
		return nil
	}
	s.cache.Set(HashToken(entry.TokenValue), entry, ttl)
	return nil
}

// Get implements TokenCache.Get. A miss returns (nil, nil).
func (s *MemoryTokenCache) Get(_ context.Context, tokenValue string) (*TokenEntry, error) {
	item := s.cache.Get(HashToken(tokenValue))
	if item == nil {
		return nil, nil
	}
	return item.Value(), nil
}

// Delete removes a token from the cache.
func (s *MemoryTokenCache) Delete(_ context.Context, tokenValue string) error {
	s.cache.Delete(HashToken(tokenValue))
	return nil
}

// Clear removes all cached entries.
func (s *MemoryTokenCache) Clear(_ context.Context) error {
	s.cache.DeleteAll()
	return nil
}

// Count returns the number of cached entries.
func (s *MemoryTokenCache) Count(_ context.Context) int {
	return s.cache.Len()
}

// Close stops the cleanup goroutine.
func (s *MemoryTokenCache) Close() error {
	s.cache.Stop()
	return nil
}

var _ TokenCache = (*MemoryTokenCache)(nil)
