package services

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"go.pilab.hu/accountd/domain"
	aerrors "go.pilab.hu/accountd/errors"
)

// AuthService composes the TokenService with the user repository to implement
// the login, logout, refresh, password-reset and email-verification flows.
// It surfaces the token error kinds unchanged; the HTTP layer decides what
// each kind means to a client.
type AuthService struct {
	users    domain.UserRepository
	tokens   *TokenService
	hasher   PasswordHasher
	notifier Notifier
}

// NewAuthService creates a new AuthService.
func NewAuthService(
	users domain.UserRepository,
	tokens *TokenService,
	hasher PasswordHasher,
	notifier Notifier,
) *AuthService {
	return &AuthService{
		users:    users,
		tokens:   tokens,
		hasher:   hasher,
		notifier: notifier,
	}
}

// Login checks the credentials and issues a fresh token pair. Unknown email
// and wrong password are both errors.ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, email, password string) (*domain.User, *domain.TokenPair, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, nil, err
	}
	if user == nil {
		return nil, nil, aerrors.ErrInvalidCredentials
	}
	if err := s.hasher.Verify(user.PasswordHash, password); err != nil {
		log.Debug().Str("user_id", user.ID).Msg("login: password mismatch")
		return nil, nil, aerrors.ErrInvalidCredentials
	}

	pair, err := s.tokens.GenerateAuthTokens(ctx, user)
	if err != nil {
		return nil, nil, err
	}
	return user, pair, nil
}

// Logout revokes the refresh token by value. An unknown or already-revoked
// token yields errors.ErrTokenNotFound.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	return s.tokens.RevokeByValue(ctx, refreshToken, domain.PurposeRefresh)
}

// RefreshAuth rotates a refresh token: the presented token is atomically
// consumed, then a new pair is issued. A second use of the same token fails
// with errors.ErrTokenNotFound no matter how closely the two uses race. If
// the owning user has been deleted in the meantime the rotation stops with
// errors.ErrInvalidSubject and no tokens are issued.
func (s *AuthService) RefreshAuth(ctx context.Context, refreshToken string) (*domain.TokenPair, error) {
	record, err := s.tokens.ConsumeToken(ctx, refreshToken, domain.PurposeRefresh)
	if err != nil {
		return nil, err
	}

	user, err := s.users.FindByID(ctx, record.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("%w: user %s", aerrors.ErrInvalidSubject, record.UserID)
	}

	return s.tokens.GenerateAuthTokens(ctx, user)
}

// ForgotPassword issues a reset-password token and hands it to the notifier.
// Unknown addresses surface errors.ErrUserNotFound.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	token, err := s.tokens.GenerateResetPasswordToken(ctx, email)
	if err != nil {
		return err
	}
	return s.notifier.SendResetPasswordEmail(ctx, email, token)
}

// ResetPassword verifies the reset token, updates the credential, then
// bulk-deletes every outstanding reset-password token for the owner, so
// sibling tokens issued earlier cannot be replayed.
func (s *AuthService) ResetPassword(ctx context.Context, resetToken, newPassword string) error {
	record, err := s.tokens.VerifyToken(ctx, resetToken, domain.PurposeResetPassword)
	if err != nil {
		return err
	}

	user, err := s.users.FindByID(ctx, record.UserID)
	if err != nil {
		return err
	}
	if user == nil {
		return fmt.Errorf("%w: user %s", aerrors.ErrInvalidSubject, record.UserID)
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePassword(ctx, user.ID, hash); err != nil {
		return err
	}

	if _, err := s.tokens.InvalidateAllForUser(ctx, user.ID, domain.PurposeResetPassword); err != nil {
		return err
	}
	log.Info().Str("user_id", user.ID).Msg("password reset completed")
	return nil
}

// SendVerificationEmail issues a verify-email token for user and hands it to
// the notifier.
func (s *AuthService) SendVerificationEmail(ctx context.Context, user *domain.User) error {
	token, err := s.tokens.GenerateVerifyEmailToken(ctx, user)
	if err != nil {
		return err
	}
	return s.notifier.SendVerificationEmail(ctx, user.Email, token)
}

// VerifyEmail verifies the token, bulk-deletes the owner's outstanding
// verify-email tokens and marks the account verified.
func (s *AuthService) VerifyEmail(ctx context.Context, verifyToken string) error {
	record, err := s.tokens.VerifyToken(ctx, verifyToken, domain.PurposeVerifyEmail)
	if err != nil {
		return err
	}

	user, err := s.users.FindByID(ctx, record.UserID)
	if err != nil {
		return err
	}
	if user == nil {
		return fmt.Errorf("%w: user %s", aerrors.ErrInvalidSubject, record.UserID)
	}

	if _, err := s.tokens.InvalidateAllForUser(ctx, user.ID, domain.PurposeVerifyEmail); err != nil {
		return err
	}
	if err := s.users.SetEmailVerified(ctx, user.ID, true); err != nil {
		return err
	}
	log.Info().Str("user_id", user.ID).Msg("email verified")
	return nil
}
