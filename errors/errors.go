// Package errors defines the error taxonomy of the token lifecycle and the
// account services built on top of it. The HTTP layer maps these kinds to
// transport responses; the services themselves only return and wrap them.
package errors

import "errors"

var (
	// ErrSignatureInvalid is returned when a token is malformed, carries a bad
	// signature, or its embedded expiry has passed. It says nothing about
	// whether the token was ever issued.
	ErrSignatureInvalid = errors.New("token signature invalid or expired")

	// ErrTokenNotFound is returned when a token passed signature checks but no
	// live record backs it: never issued, already consumed, bulk-invalidated
	// or blacklisted.
	ErrTokenNotFound = errors.New("token not found")

	// ErrInvalidSubject is returned when a live token record points at a user
	// that no longer exists.
	ErrInvalidSubject = errors.New("token subject no longer exists")

	// ErrUserNotFound is returned when a user lookup by id or email misses.
	ErrUserNotFound = errors.New("user not found")

	// ErrEmailTaken is returned on registration or update when the email is
	// already claimed by another account.
	ErrEmailTaken = errors.New("email already taken")

	// ErrInvalidCredentials is returned on login when the email is unknown or
	// the password does not match. The two cases are deliberately
	// indistinguishable.
	ErrInvalidCredentials = errors.New("incorrect email or password")

	// ErrStoreUnavailable wraps backend persistence failures. It is never
	// downgraded to one of the token kinds above.
	ErrStoreUnavailable = errors.New("store unavailable")
)
