package services

import "context"

// PasswordHasher abstracts password hashing so services never see hashing
// mechanics and tests can swap in a cheap implementation.
type PasswordHasher interface {
	Hash(password string) (string, error)
	// Verify returns nil when the password matches the hash.
	Verify(hashedPassword, password string) error
}

// Notifier delivers account emails. Delivery mechanics (SMTP, queues) live
// behind this interface; the services only hand over the address and token.
type Notifier interface {
	SendResetPasswordEmail(ctx context.Context, email, token string) error
	SendVerificationEmail(ctx context.Context, email, token string) error
}
