package domain

import "time"

// TokenPurpose identifies the lifecycle role a token serves. The value is
// embedded in the signed payload as the "type" claim and persisted on the
// record; the two must always agree.
type TokenPurpose string

const (
	PurposeAccess        TokenPurpose = "access"
	PurposeRefresh       TokenPurpose = "refresh"
	PurposeResetPassword TokenPurpose = "reset_password"
	PurposeVerifyEmail   TokenPurpose = "verify_email"
)

// Token is a persisted token record. Access tokens are never stored; only
// refresh, reset-password and verify-email tokens get records. A record is
// usable while it is not blacklisted and expires_at has not passed,
// independently of the signature's own expiry.
type Token struct {
	ID          string       `bson:"_id,omitempty" json:"id"`
	TokenValue  string       `bson:"token_value" json:"-"`
	Purpose     TokenPurpose `bson:"purpose" json:"purpose"`
	UserID      string       `bson:"user_id" json:"user_id"`
	ExpiresAt   time.Time    `bson:"expires_at" json:"expires_at"`
	Blacklisted bool         `bson:"blacklisted,omitempty" json:"blacklisted,omitempty"`
	CreatedAt   time.Time    `bson:"created_at" json:"created_at"`
}

// TokenPair bundles the two tokens handed out on login, registration and
// refresh. Only the refresh half is persisted.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}
