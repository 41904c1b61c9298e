package services

import (
	"context"

	"go.pilab.hu/accountd/domain"
	aerrors "go.pilab.hu/accountd/errors"
)

const (
	defaultPageLimit = 10
	maxPageLimit     = 100
)

// CreateUserInput is the payload for creating an account.
type CreateUserInput struct {
	Email    string
	Password string
	Name     string
	Role     domain.UserRole
}

// UpdateUserInput is a partial update; nil fields are left untouched.
type UpdateUserInput struct {
	Email    *string
	Password *string
	Name     *string
	Role     *domain.UserRole
}

// UserService implements account CRUD on top of the user repository. It owns
// the email-uniqueness checks and password hashing; the repository only
// persists.
type UserService struct {
	users  domain.UserRepository
	hasher PasswordHasher
}

// NewUserService creates a new UserService.
func NewUserService(users domain.UserRepository, hasher PasswordHasher) *UserService {
	return &UserService{
		users:  users,
		hasher: hasher,
	}
}

// CreateUser registers a new account. A claimed email yields
// errors.ErrEmailTaken.
func (s *UserService) CreateUser(ctx context.Context, input CreateUserInput) (*domain.User, error) {
	existing, err := s.users.FindByEmail(ctx, input.Email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, aerrors.ErrEmailTaken
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, err
	}

	role := input.Role
	if role == "" {
		role = domain.RoleUser
	}
	user := &domain.User{
		Email:        input.Email,
		PasswordHash: hash,
		Name:         input.Name,
		Role:         role,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// QueryUsers returns one page of accounts. Page and limit are normalized
// here so repositories can trust their input.
func (s *UserService) QueryUsers(ctx context.Context, query domain.UserQuery) (*domain.UserPage, error) {
	if query.Page < 1 {
		query.Page = 1
	}
	if query.Limit < 1 {
		query.Limit = defaultPageLimit
	}
	if query.Limit > maxPageLimit {
		query.Limit = maxPageLimit
	}
	return s.users.List(ctx, query)
}

// GetUserByID returns the account or errors.ErrUserNotFound.
func (s *UserService) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, aerrors.ErrUserNotFound
	}
	return user, nil
}

// GetUserByEmail returns the account or errors.ErrUserNotFound.
func (s *UserService) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, aerrors.ErrUserNotFound
	}
	return user, nil
}

// UpdateUser applies a partial update. Moving to an email owned by another
// account yields errors.ErrEmailTaken.
func (s *UserService) UpdateUser(ctx context.Context, id string, input UpdateUserInput) (*domain.User, error) {
	user, err := s.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.Email != nil && *input.Email != user.Email {
		existing, err := s.users.FindByEmail(ctx, *input.Email)
		if err != nil {
			return nil, err
		}
		if existing != nil && existing.ID != id {
			return nil, aerrors.ErrEmailTaken
		}
		user.Email = *input.Email
		// A changed address has not been verified.
		user.IsEmailVerified = false
	}
	if input.Password != nil {
		hash, err := s.hasher.Hash(*input.Password)
		if err != nil {
			return nil, err
		}
		user.PasswordHash = hash
	}
	if input.Name != nil {
		user.Name = *input.Name
	}
	if input.Role != nil {
		user.Role = *input.Role
	}

	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// DeleteUser removes the account. Deleting a nonexistent account is not an
// error.
func (s *UserService) DeleteUser(ctx context.Context, id string) error {
	return s.users.Delete(ctx, id)
}
