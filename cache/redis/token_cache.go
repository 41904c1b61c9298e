// Package redis provides a Redis-backed TokenCache for deployments running
// more than one server instance.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"go.pilab.hu/accountd/cache"
)

// TokenCache implements cache.TokenCache on top of a Redis client. Entries
// are stored as JSON under a prefixed key and carry a TTL matching the token
// record's expiry.
type TokenCache struct {
	client *redis.Client
	prefix string
}

// NewTokenCache creates a new TokenCache instance.
func NewTokenCache(client *redis.Client, prefix string) *TokenCache {
	return &TokenCache{
		client: client,
		prefix: prefix,
	}
}

func (r *TokenCache) redisKey(tokenValue string) string {
	return fmt.Sprintf("%s:token:%s", r.prefix, cache.HashToken(tokenValue))
}

// Set stores a token entry with an expiry matching the record.
func (r *TokenCache) Set(ctx context.Context, entry *cache.TokenEntry) error {
	ttl := time.Until(entry.ExpiresAt)
	if ttl <= 0 {
		return nil
	}

	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal token entry: %w", err)
	}

	if err := r.client.Set(ctx, r.redisKey(entry.TokenValue), payload, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set token in redis: %w", err)
	}
	return nil
}

// Get retrieves a token entry. A miss returns (nil, nil).
func (r *TokenCache) Get(ctx context.Context, tokenValue string) (*cache.TokenEntry, error) {
	payload, err := r.client.Get(ctx, r.redisKey(tokenValue)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get token from redis: %w", err)
	}

	var entry cache.TokenEntry
	if err := json.Unmarshal(payload, &entry); err != nil {
		return nil, fmt.Errorf("failed to unmarshal token entry: %w", err)
	}
	return &entry, nil
}

// Delete removes a token entry.
func (r *TokenCache) Delete(ctx context.Context, tokenValue string) error {
	return r.client.Del(ctx, r.redisKey(tokenValue)).Err()
}

// Clear removes every entry under the cache prefix.
func (r *TokenCache) Clear(ctx context.Context) error {
	iter := r.client.Scan(ctx, 0, fmt.Sprintf("%s:token:*", r.prefix), 0).Iterator()
	for iter.Next(ctx) {
		if err := r.client.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}

// Count returns the number of cached entries, or zero when the scan fails.
func (r *TokenCache) Count(ctx context.Context) int {
	var n int
	iter := r.client.Scan(ctx, 0, fmt.Sprintf("%s:token:*", r.prefix), 0).Iterator()
	for iter.Next(ctx) {
		n++
	}
	return n
}

var _ cache.TokenCache = (*TokenCache)(nil)
