package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"go.pilab.hu/accountd/cache"
	"go.pilab.hu/accountd/domain"
	aerrors "go.pilab.hu/accountd/errors"
)

// TokenServiceConfig carries the signing secret and per-purpose validity
// windows. Reset-password and verify-email TTLs are independent.
type TokenServiceConfig struct {
	AccessTokenTTL   time.Duration
	RefreshTokenTTL  time.Duration
	ResetPasswordTTL time.Duration
	VerifyEmailTTL   time.Duration
}

// TokenService orchestrates the Signer and the token repository to implement
// the token lifecycle: issuance, verification, single-use consumption and
// bulk invalidation.
//
// The signed expiry and the persisted expires_at are always computed from the
// same TTL and the same clock reading, so the signature gate and the store
// gate cannot diverge. Single-use consumption relies on the repository's
// atomic find-and-delete; the cache is only ever a fast path for
// non-consuming lookups.
type TokenService struct {
	repo   domain.TokenRepository
	cache  cache.TokenCache
	users  domain.UserRepository
	signer *Signer
	cfg    TokenServiceConfig

	now func() time.Time
}

// NewTokenService creates a new TokenService instance. tokenCache may be nil
// to disable the cache tier.
func NewTokenService(
	repo domain.TokenRepository,
	tokenCache cache.TokenCache,
	users domain.UserRepository,
	signer *Signer,
	cfg TokenServiceConfig,
) *TokenService {
	return &TokenService{
		repo:   repo,
		cache:  tokenCache,
		users:  users,
		signer: signer,
		cfg:    cfg,
		now:    time.Now,
	}
}

// GenerateAuthTokens issues an access/refresh pair for user. The access token
// is stateless and never persisted; the refresh token record's expires_at
// matches the TTL baked into its signature.
func (s *TokenService) GenerateAuthTokens(ctx context.Context, user *domain.User) (*domain.TokenPair, error) {
	accessToken, err := s.signer.Sign(user.ID, domain.PurposeAccess, s.cfg.AccessTokenTTL)
	if err != nil {
		return nil, err
	}

	refreshToken, err := s.signer.Sign(user.ID, domain.PurposeRefresh, s.cfg.RefreshTokenTTL)
	if err != nil {
		return nil, err
	}
	expiresAt := s.now().Add(s.cfg.RefreshTokenTTL)
	if err := s.saveToken(ctx, refreshToken, user.ID, domain.PurposeRefresh, expiresAt); err != nil {
		return nil, err
	}

	return &domain.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, nil
}

// GenerateResetPasswordToken issues a reset-password token for the account
// registered under email. Unknown addresses yield errors.ErrUserNotFound; the
// enumeration trade-off is deliberate, forgot-password tells the caller the
// address is unknown.
func (s *TokenService) GenerateResetPasswordToken(ctx context.Context, email string) (string, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return "", err
	}
	if user == nil {
		return "", fmt.Errorf("%w: no account for email", aerrors.ErrUserNotFound)
	}

	token, err := s.signer.Sign(user.ID, domain.PurposeResetPassword, s.cfg.ResetPasswordTTL)
	if err != nil {
		return "", err
	}
	expiresAt := s.now().Add(s.cfg.ResetPasswordTTL)
	if err := s.saveToken(ctx, token, user.ID, domain.PurposeResetPassword, expiresAt); err != nil {
		return "", err
	}
	return token, nil
}

// GenerateVerifyEmailToken issues an email-verification token for user.
func (s *TokenService) GenerateVerifyEmailToken(ctx context.Context, user *domain.User) (string, error) {
	token, err := s.signer.Sign(user.ID, domain.PurposeVerifyEmail, s.cfg.VerifyEmailTTL)
	if err != nil {
		return "", err
	}
	expiresAt := s.now().Add(s.cfg.VerifyEmailTTL)
	if err := s.saveToken(ctx, token, user.ID, domain.PurposeVerifyEmail, expiresAt); err != nil {
		return "", err
	}
	return token, nil
}

func (s *TokenService) saveToken(ctx context.Context, tokenValue, userID string, purpose domain.TokenPurpose, expiresAt time.Time) error {
	record := &domain.Token{
		ID:         uuid.NewString(),
		TokenValue: tokenValue,
		Purpose:    purpose,
		UserID:     userID,
		ExpiresAt:  expiresAt,
		CreatedAt:  s.now(),
	}
	if err := s.repo.Store(ctx, record); err != nil {
		return err
	}
	s.cacheSet(ctx, record)
	return nil
}

// VerifyToken checks signature, expiry and the presence of a live record, and
// returns the record without consuming it. errors.ErrSignatureInvalid means
// the token itself is bad; errors.ErrTokenNotFound means it verified
// cryptographically but no live record backs it.
func (s *TokenService) VerifyToken(ctx context.Context, tokenValue string, purpose domain.TokenPurpose) (*domain.Token, error) {
	claims, err := s.signer.Parse(tokenValue)
	if err != nil {
		return nil, err
	}
	if claims.Purpose != purpose {
		return nil, fmt.Errorf("%w: purpose mismatch", aerrors.ErrTokenNotFound)
	}

	if record := s.cacheGet(ctx, tokenValue, purpose, claims.Subject); record != nil {
		return record, nil
	}

	record, err := s.repo.FindActive(ctx, tokenValue, purpose, claims.Subject)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, aerrors.ErrTokenNotFound
	}
	s.cacheSet(ctx, record)
	return record, nil
}

// ConsumeToken verifies like VerifyToken but atomically deletes the record as
// it reads it. At most one of any number of concurrent consumers of the same
// token value succeeds; the rest get errors.ErrTokenNotFound.
func (s *TokenService) ConsumeToken(ctx context.Context, tokenValue string, purpose domain.TokenPurpose) (*domain.Token, error) {
	claims, err := s.signer.Parse(tokenValue)
	if err != nil {
		return nil, err
	}
	if claims.Purpose != purpose {
		return nil, fmt.Errorf("%w: purpose mismatch", aerrors.ErrTokenNotFound)
	}

	record, err := s.repo.ConsumeActive(ctx, tokenValue, purpose, claims.Subject)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, aerrors.ErrTokenNotFound
	}
	s.cacheEvict(ctx, tokenValue)
	return record, nil
}

// RevokeByValue deletes the live record holding tokenValue without verifying
// the signature. Logout uses it: the caller proves possession of the opaque
// string, nothing more. Absent records yield errors.ErrTokenNotFound.
func (s *TokenService) RevokeByValue(ctx context.Context, tokenValue string, purpose domain.TokenPurpose) error {
	record, err := s.repo.ConsumeByValue(ctx, tokenValue, purpose)
	if err != nil {
		return err
	}
	if record == nil {
		return aerrors.ErrTokenNotFound
	}
	s.cacheEvict(ctx, tokenValue)
	return nil
}

// InvalidateAllForUser bulk-deletes every record of the given purpose owned
// by userID and returns the count removed. Calling it with nothing to remove
// is fine and returns zero.
func (s *TokenService) InvalidateAllForUser(ctx context.Context, userID string, purpose domain.TokenPurpose) (int64, error) {
	values, err := s.repo.DeleteAllForUser(ctx, userID, purpose)
	if err != nil {
		return 0, err
	}
	for _, v := range values {
		s.cacheEvict(ctx, v)
	}
	return int64(len(values)), nil
}

// Blacklist soft-invalidates a record without deleting it.
func (s *TokenService) Blacklist(ctx context.Context, tokenValue string, purpose domain.TokenPurpose) error {
	if err := s.repo.BlacklistByValue(ctx, tokenValue, purpose); err != nil {
		return err
	}
	s.cacheEvict(ctx, tokenValue)
	return nil
}

// ParseAccessToken validates a stateless access token and returns its claims.
// No storage is consulted: access-token validity is signature plus expiry.
func (s *TokenService) ParseAccessToken(tokenValue string) (*Claims, error) {
	claims, err := s.signer.Parse(tokenValue)
	if err != nil {
		return nil, err
	}
	if claims.Purpose != domain.PurposeAccess {
		return nil, fmt.Errorf("%w: not an access token", aerrors.ErrSignatureInvalid)
	}
	return claims, nil
}

// Sweep removes expired records. The TTL index does the same server-side;
// Sweep exists for backends and deployments where that is not enough.
func (s *TokenService) Sweep(ctx context.Context) (int64, error) {
	return s.repo.DeleteExpired(ctx, s.now())
}

func (s *TokenService) cacheSet(ctx context.Context, record *domain.Token) {
	if s.cache == nil {
		return
	}
	err := s.cache.Set(ctx, &cache.TokenEntry{
		ID:          record.ID,
		TokenValue:  record.TokenValue,
		Purpose:     string(record.Purpose),
		UserID:      record.UserID,
		ExpiresAt:   record.ExpiresAt,
		Blacklisted: record.Blacklisted,
	})
	if err != nil {
		log.Warn().Err(err).Msg("token cache set failed")
	}
}

func (s *TokenService) cacheGet(ctx context.Context, tokenValue string, purpose domain.TokenPurpose, userID string) *domain.Token {
	if s.cache == nil {
		return nil
	}
	entry, err := s.cache.Get(ctx, tokenValue)
	if err != nil {
		log.Warn().Err(err).Msg("token cache get failed")
		return nil
	}
	if entry == nil || entry.Blacklisted {
		return nil
	}
	// The same gates as the store lookup; a stale or mismatched entry falls
	// through to the repository.
	if entry.Purpose != string(purpose) || entry.UserID != userID || !entry.ExpiresAt.After(s.now()) {
		return nil
	}
	return &domain.Token{
		ID:         entry.ID,
		TokenValue: entry.TokenValue,
		Purpose:    domain.TokenPurpose(entry.Purpose),
		UserID:     entry.UserID,
		ExpiresAt:  entry.ExpiresAt,
	}
}

func (s *TokenService) cacheEvict(ctx context.Context, tokenValue string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, tokenValue); err != nil {
		log.Warn().Err(err).Msg("token cache delete failed")
	}
}
