// Package cache provides an optional read-through cache of live token
// records. Consume paths never go through the cache: single-use atomicity
// lives in the store. The cache only short-circuits non-consuming lookups and
// is evicted on every delete, consume and bulk invalidation.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// TokenEntry is a cached projection of a persisted token record. Entries are
// keyed by the SHA-256 of the token value so raw tokens never land in the
// cache backend.
type TokenEntry struct {
	ID          string    `json:"id"`
	TokenValue  string    `json:"token_value"`
	Purpose     string    `json:"purpose"`
	UserID      string    `json:"user_id"`
	ExpiresAt   time.Time `json:"expires_at"`
	Blacklisted bool      `json:"blacklisted"`
}

// TokenCache is the cache tier contract. Get returns (nil, nil) on a miss;
// implementations are best effort and callers fall back to the store on any
// error.
type TokenCache interface {
	Set(ctx context.Context, entry *TokenEntry) error
	Get(ctx context.Context, tokenValue string) (*TokenEntry, error)
	Delete(ctx context.Context, tokenValue string) error
	Clear(ctx context.Context) error
	Count(ctx context.Context) int
}

// HashToken returns the hex SHA-256 of a token value, used as the cache key.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
