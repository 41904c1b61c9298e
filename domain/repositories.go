package domain

import (
	"context"
	"time"
)

// TokenRepository persists issued token records. Lookups that miss return
// (nil, nil): an absent record is a normal outcome, not a failure. Backend
// errors are wrapped in errors.ErrStoreUnavailable by implementations.
//
// ConsumeActive and ConsumeByValue must be atomic find-and-delete operations:
// under concurrent consumption of the same token at most one caller may
// observe the live record.
type TokenRepository interface {
	// Store inserts a token record. TokenValue is unique per issuance.
	Store(ctx context.Context, token *Token) error

	// FindActive returns the live record matching value, purpose and owner:
	// not blacklisted and not past expires_at.
	FindActive(ctx context.Context, tokenValue string, purpose TokenPurpose, userID string) (*Token, error)

	// ConsumeActive atomically deletes and returns the live record matching
	// value, purpose and owner.
	ConsumeActive(ctx context.Context, tokenValue string, purpose TokenPurpose, userID string) (*Token, error)

	// ConsumeByValue atomically deletes and returns the live record matching
	// value and purpose regardless of owner. Used by logout, where the caller
	// holds only the opaque token string.
	ConsumeByValue(ctx context.Context, tokenValue string, purpose TokenPurpose) (*Token, error)

	// DeleteByID removes a record by id. Deleting a nonexistent id is not an
	// error.
	DeleteByID(ctx context.Context, id string) error

	// DeleteAllForUser removes every record for the owner and purpose and
	// returns the token values that were removed, so callers can evict cache
	// entries. An empty result is not an error.
	DeleteAllForUser(ctx context.Context, userID string, purpose TokenPurpose) ([]string, error)

	// BlacklistByValue soft-invalidates a record without deleting it.
	BlacklistByValue(ctx context.Context, tokenValue string, purpose TokenPurpose) error

	// DeleteExpired removes records whose expires_at has passed. Storage
	// hygiene only; expiry is enforced lazily on every lookup.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// UserRepository persists user accounts. Lookups that miss return (nil, nil).
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	FindByID(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	List(ctx context.Context, query UserQuery) (*UserPage, error)
	Update(ctx context.Context, user *User) error
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	SetEmailVerified(ctx context.Context, id string, verified bool) error
	Delete(ctx context.Context, id string) error
}
