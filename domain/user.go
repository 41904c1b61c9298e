package domain

import "time"

// UserRole is a coarse authorization role attached to an account.
type UserRole string

const (
	RoleUser  UserRole = "user"
	RoleAdmin UserRole = "admin"
)

// User represents a user account. PasswordHash is excluded from JSON so user
// payloads can be returned from handlers as-is.
type User struct {
	ID              string    `bson:"_id,omitempty" json:"id"`
	Email           string    `bson:"email" json:"email"`
	PasswordHash    string    `bson:"password_hash" json:"-"`
	Name            string    `bson:"name,omitempty" json:"name,omitempty"`
	Role            UserRole  `bson:"role" json:"role"`
	IsEmailVerified bool      `bson:"is_email_verified" json:"is_email_verified"`
	CreatedAt       time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt       time.Time `bson:"updated_at" json:"updated_at"`
}

// UserQuery describes a paged user listing. Zero values mean "no filter" for
// Name and Role; Page and Limit are normalized by the service before hitting
// the repository.
type UserQuery struct {
	Name   string
	Role   UserRole
	SortBy string // "field:asc" or "field:desc"
	Page   int64
	Limit  int64
}

// UserPage is one page of a user listing together with the total counts the
// caller needs for pagination.
type UserPage struct {
	Users      []*User `json:"users"`
	Total      int64   `json:"total"`
	TotalPages int64   `json:"total_pages"`
	Page       int64   `json:"page"`
}
