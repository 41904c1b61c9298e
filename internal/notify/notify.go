// Package notify holds Notifier implementations. Real delivery (SMTP, a
// provider API) plugs in behind services.Notifier; the default implementation
// only logs, which is what development and tests want.
package notify

import (
	"context"

	"github.com/rs/zerolog/log"

	"go.pilab.hu/accountd/services"
)

// LogNotifier logs outgoing account emails instead of delivering them.
type LogNotifier struct{}

// NewLogNotifier creates a new LogNotifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

// SendResetPasswordEmail implements services.Notifier.
func (n *LogNotifier) SendResetPasswordEmail(_ context.Context, email, token string) error {
	log.Info().Str("email", email).Str("token", token).Msg("reset password email queued")
	return nil
}

// SendVerificationEmail implements services.Notifier.
func (n *LogNotifier) SendVerificationEmail(_ context.Context, email, token string) error {
	log.Info().Str("email", email).Str("token", token).Msg("verification email queued")
	return nil
}

var _ services.Notifier = (*LogNotifier)(nil)
