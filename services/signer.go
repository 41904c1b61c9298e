package services

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"go.pilab.hu/accountd/domain"
	aerrors "go.pilab.hu/accountd/errors"
)

// Claims is the signed payload carried by every token: the owning user in
// Subject and the lifecycle role in Purpose.
type Claims struct {
	jwt.RegisteredClaims
	Purpose domain.TokenPurpose `json:"type"`
}

// Signer produces and verifies compact HS256 tokens. It is pure: no storage,
// no side effects. The current time is injectable for tests.
type Signer struct {
	secret []byte
	now    func() time.Time
}

// NewSigner creates a Signer over a shared secret.
func NewSigner(secret string) *Signer {
	return &Signer{
		secret: []byte(secret),
		now:    time.Now,
	}
}

// Sign issues a token for subject with the given purpose, expiring ttl from
// now. The result encodes its own expiry.
func (s *Signer) Sign(subject string, purpose domain.TokenPurpose, ttl time.Duration) (string, error) {
	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
		Purpose: purpose,
	})

	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Parse verifies the signature and embedded expiry and returns the claims.
// Any failure, malformed input, wrong secret, expired, is
// errors.ErrSignatureInvalid; Parse never consults storage.
func (s *Signer) Parse(tokenValue string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenValue, claims,
		func(t *jwt.Token) (interface{}, error) {
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", aerrors.ErrSignatureInvalid, err)
	}
	if !token.Valid {
		return nil, aerrors.ErrSignatureInvalid
	}
	return claims, nil
}
