package mongodb

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"go.pilab.hu/accountd/domain"
	aerrors "go.pilab.hu/accountd/errors"
)

// UserRepository is the MongoDB implementation of domain.UserRepository.
type UserRepository struct {
	coll *mongo.Collection
}

// NewUserRepository creates the repository and ensures the unique email index.
func NewUserRepository(ctx context.Context, db *mongo.Database) (*UserRepository, error) {
	coll := db.Collection(UsersCollection)

	_, err := coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create user indexes: %w", err)
	}

	return &UserRepository{coll: coll}, nil
}

// Create implements domain.UserRepository. It assigns an ID and timestamps
// when missing.
func (r *UserRepository) Create(ctx context.Context, user *domain.User) error {
	now := time.Now().UTC()
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	if user.Role == "" {
		user.Role = domain.RoleUser
	}

	if _, err := r.coll.InsertOne(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return aerrors.ErrEmailTaken
		}
		return fmt.Errorf("%w: inserting user: %v", aerrors.ErrStoreUnavailable, err)
	}
	return nil
}

// FindByID implements domain.UserRepository. A miss returns (nil, nil).
func (r *UserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

// FindByEmail implements domain.UserRepository. A miss returns (nil, nil).
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

func (r *UserRepository) findOne(ctx context.Context, filter bson.M) (*domain.User, error) {
	var user domain.User
	err := r.coll.FindOne(ctx, filter).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: finding user: %v", aerrors.ErrStoreUnavailable, err)
	}
	return &user, nil
}

// List implements domain.UserRepository. Query normalization (page/limit
// defaults) is the service's job; the repository trusts its input.
func (r *UserRepository) List(ctx context.Context, query domain.UserQuery) (*domain.UserPage, error) {
	filter := bson.M{}
	if query.Name != "" {
		filter["name"] = query.Name
	}
	if query.Role != "" {
		filter["role"] = query.Role
	}

	findOpts := options.Find().
		SetSkip((query.Page - 1) * query.Limit).
		SetLimit(query.Limit)

	if query.SortBy != "" {
		field, dir := query.SortBy, 1
		if parts := strings.SplitN(query.SortBy, ":", 2); len(parts) == 2 {
			field = parts[0]
			if parts[1] == "desc" {
				dir = -1
			}
		}
		findOpts.SetSort(bson.D{{Key: field, Value: dir}})
	}

	cursor, err := r.coll.Find(ctx, filter, findOpts)
	if err != nil {
		return nil, fmt.Errorf("%w: listing users: %v", aerrors.ErrStoreUnavailable, err)
	}
	var users []*domain.User
	if err := cursor.All(ctx, &users); err != nil {
		return nil, fmt.Errorf("%w: reading users: %v", aerrors.ErrStoreUnavailable, err)
	}

	total, err := r.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("%w: counting users: %v", aerrors.ErrStoreUnavailable, err)
	}

	totalPages := total / query.Limit
	if total%query.Limit != 0 {
		totalPages++
	}

	return &domain.UserPage{
		Users:      users,
		Total:      total,
		TotalPages: totalPages,
		Page:       query.Page,
	}, nil
}

// Update implements domain.UserRepository.
func (r *UserRepository) Update(ctx context.Context, user *domain.User) error {
	user.UpdatedAt = time.Now().UTC()

	res, err := r.coll.ReplaceOne(ctx, bson.M{"_id": user.ID}, user)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return aerrors.ErrEmailTaken
		}
		return fmt.Errorf("%w: updating user: %v", aerrors.ErrStoreUnavailable, err)
	}
	if res.MatchedCount == 0 {
		return aerrors.ErrUserNotFound
	}
	return nil
}

// UpdatePassword implements domain.UserRepository.
func (r *UserRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	return r.setFields(ctx, id, bson.M{"password_hash": passwordHash})
}

// SetEmailVerified implements domain.UserRepository.
func (r *UserRepository) SetEmailVerified(ctx context.Context, id string, verified bool) error {
	return r.setFields(ctx, id, bson.M{"is_email_verified": verified})
}

func (r *UserRepository) setFields(ctx context.Context, id string, fields bson.M) error {
	fields["updated_at"] = time.Now().UTC()

	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": fields})
	if err != nil {
		return fmt.Errorf("%w: updating user: %v", aerrors.ErrStoreUnavailable, err)
	}
	if res.MatchedCount == 0 {
		return aerrors.ErrUserNotFound
	}
	return nil
}

// Delete implements domain.UserRepository. Deleting a nonexistent user is not
// an error.
func (r *UserRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.coll.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return fmt.Errorf("%w: deleting user: %v", aerrors.ErrStoreUnavailable, err)
	}
	return nil
}

var _ domain.UserRepository = (*UserRepository)(nil)
