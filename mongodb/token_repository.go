package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"go.pilab.hu/accountd/domain"
	aerrors "go.pilab.hu/accountd/errors"
)

// TokenRepository is the MongoDB implementation of domain.TokenRepository.
// Atomicity of single-use consumption rests on FindOneAndDelete: Mongo
// deletes the matched document in the same operation, so two racing consumers
// of one token value cannot both observe it live.
type TokenRepository struct {
	coll *mongo.Collection
}

// NewTokenRepository creates the repository and ensures its indexes: a unique
// index on token_value, a compound index for bulk invalidation by owner and
// purpose, and a TTL index that reaps expired records server-side. Lookups
// still filter on expires_at, Mongo's TTL sweep is hygiene, not correctness.
func NewTokenRepository(ctx context.Context, db *mongo.Database) (*TokenRepository, error) {
	coll := db.Collection(TokensCollection)

	_, err := coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "token_value", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "purpose", Value: 1}},
		},
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create token indexes: %w", err)
	}

	return &TokenRepository{coll: coll}, nil
}

func activeFilter(tokenValue string, purpose domain.TokenPurpose) bson.M {
	return bson.M{
		"token_value": tokenValue,
		"purpose":     purpose,
		"blacklisted": bson.M{"$ne": true},
		"expires_at":  bson.M{"$gt": time.Now().UTC()},
	}
}

// Store implements domain.TokenRepository.
func (r *TokenRepository) Store(ctx context.Context, token *domain.Token) error {
	if _, err := r.coll.InsertOne(ctx, token); err != nil {
		return fmt.Errorf("%w: inserting token record: %v", aerrors.ErrStoreUnavailable, err)
	}
	return nil
}

// FindActive implements domain.TokenRepository. A miss returns (nil, nil).
func (r *TokenRepository) FindActive(ctx context.Context, tokenValue string, purpose domain.TokenPurpose, userID string) (*domain.Token, error) {
	filter := activeFilter(tokenValue, purpose)
	filter["user_id"] = userID

	var token domain.Token
	err := r.coll.FindOne(ctx, filter).Decode(&token)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: finding token record: %v", aerrors.ErrStoreUnavailable, err)
	}
	return &token, nil
}

// ConsumeActive implements domain.TokenRepository.
func (r *TokenRepository) ConsumeActive(ctx context.Context, tokenValue string, purpose domain.TokenPurpose, userID string) (*domain.Token, error) {
	filter := activeFilter(tokenValue, purpose)
	filter["user_id"] = userID
	return r.consume(ctx, filter)
}

// ConsumeByValue implements domain.TokenRepository.
func (r *TokenRepository) ConsumeByValue(ctx context.Context, tokenValue string, purpose domain.TokenPurpose) (*domain.Token, error) {
	return r.consume(ctx, activeFilter(tokenValue, purpose))
}

func (r *TokenRepository) consume(ctx context.Context, filter bson.M) (*domain.Token, error) {
	var token domain.Token
	err := r.coll.FindOneAndDelete(ctx, filter).Decode(&token)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: consuming token record: %v", aerrors.ErrStoreUnavailable, err)
	}
	return &token, nil
}

// DeleteByID implements domain.TokenRepository. Idempotent.
func (r *TokenRepository) DeleteByID(ctx context.Context, id string) error {
	if _, err := r.coll.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return fmt.Errorf("%w: deleting token record: %v", aerrors.ErrStoreUnavailable, err)
	}
	return nil
}

// DeleteAllForUser implements domain.TokenRepository. It returns the token
// values removed so the caller can evict cache entries.
func (r *TokenRepository) DeleteAllForUser(ctx context.Context, userID string, purpose domain.TokenPurpose) ([]string, error) {
	filter := bson.M{"user_id": userID, "purpose": purpose}

	cursor, err := r.coll.Find(ctx, filter, options.Find().SetProjection(bson.M{"token_value": 1}))
	if err != nil {
		return nil, fmt.Errorf("%w: listing token records: %v", aerrors.ErrStoreUnavailable, err)
	}
	var docs []struct {
		TokenValue string `bson:"token_value"`
	}
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("%w: reading token records: %v", aerrors.ErrStoreUnavailable, err)
	}
	if len(docs) == 0 {
		return nil, nil
	}

	if _, err := r.coll.DeleteMany(ctx, filter); err != nil {
		return nil, fmt.Errorf("%w: bulk-deleting token records: %v", aerrors.ErrStoreUnavailable, err)
	}

	values := make([]string, 0, len(docs))
	for _, d := range docs {
		values = append(values, d.TokenValue)
	}
	return values, nil
}

// BlacklistByValue implements domain.TokenRepository.
func (r *TokenRepository) BlacklistByValue(ctx context.Context, tokenValue string, purpose domain.TokenPurpose) error {
	filter := bson.M{"token_value": tokenValue, "purpose": purpose}
	update := bson.M{"$set": bson.M{"blacklisted": true}}
	if _, err := r.coll.UpdateOne(ctx, filter, update); err != nil {
		return fmt.Errorf("%w: blacklisting token record: %v", aerrors.ErrStoreUnavailable, err)
	}
	return nil
}

// DeleteExpired implements domain.TokenRepository.
func (r *TokenRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.coll.DeleteMany(ctx, bson.M{"expires_at": bson.M{"$lte": now.UTC()}})
	if err != nil {
		return 0, fmt.Errorf("%w: deleting expired token records: %v", aerrors.ErrStoreUnavailable, err)
	}
	return res.DeletedCount, nil
}

var _ domain.TokenRepository = (*TokenRepository)(nil)
