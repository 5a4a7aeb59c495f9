package magiclink

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const (
	// DefaultDBName is the default for MongoConfig.DBName.
	DefaultDBName = "magic-link"

	// DefaultUsersCollectionName is the default for MongoConfig.UsersCollectionName.
	DefaultUsersCollectionName = "users"

	// DefaultMagicLinksCollectionName is the default for MongoConfig.MagicLinksCollectionName.
	DefaultMagicLinksCollectionName = "magic-links"
)

// MongoConfig holds MongoStore configuration.
// A zero value is a valid configuration, see constants for default values.
type MongoConfig struct {
	// DBName is the name of the database holding the collections.
	DBName string

	// UsersCollectionName is the name of the collection storing users.
	UsersCollectionName string

	// MagicLinksCollectionName is the name of the collection storing magic links.
	MagicLinksCollectionName string

	// TokenBytes tells how many random bytes to use for magic link tokens.
	TokenBytes int
}

// MongoStore implements UserRepository and MagicLinkRepository on MongoDB,
// accessed via the official mongo-go driver.
// It's safe to use it concurrently from multiple goroutines.
type MongoStore struct {
	// cu is the users collection.
	cu *mongo.Collection

	// cl is the magic links collection.
	cl *mongo.Collection

	cfg MongoConfig
}

// NewMongoStore creates a new MongoStore.
// This function panics if mongoClient is nil.
func NewMongoStore(mongoClient *mongo.Client, cfg MongoConfig) *MongoStore {
	if mongoClient == nil {
		panic("mongoClient must be provided")
	}

	if cfg.DBName == "" {
		cfg.DBName = DefaultDBName
	}
	if cfg.UsersCollectionName == "" {
		cfg.UsersCollectionName = DefaultUsersCollectionName
	}
	if cfg.MagicLinksCollectionName == "" {
		cfg.MagicLinksCollectionName = DefaultMagicLinksCollectionName
	}
	if cfg.TokenBytes == 0 {
		cfg.TokenBytes = DefaultTokenBytes
	}

	db := mongoClient.Database(cfg.DBName)
	return &MongoStore{
		cu:  db.Collection(cfg.UsersCollectionName),
		cl:  db.Collection(cfg.MagicLinksCollectionName),
		cfg: cfg,
	}
}

// EnsureIndexes creates the unique indexes on user IDs, user emails and magic link tokens.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.cu.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
	})
	if err != nil {
		return fmt.Errorf("failed to create user indexes: %w", err)
	}
	_, err = s.cl.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "token", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create magic link index: %w", err)
	}
	return nil
}

// findUser returns the first user matching filter.
func (s *MongoStore) findUser(ctx context.Context, filter any) (*User, error) {
	var user *User
	if err := s.cu.FindOne(ctx, filter).Decode(&user); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return user, nil
}

// InsertUser implements UserRepository.
func (s *MongoStore) InsertUser(ctx context.Context, user *User) (*User, error) {
	existsFilter := bson.M{"$or": bson.A{
		bson.M{"id": user.ID},
		bson.M{"email": user.Email},
	}}

	stored, err := s.findUser(ctx, existsFilter)
	if err == nil {
		return stored, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	if _, err := s.cu.InsertOne(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			// Lost a race against a concurrent insert of the same email.
			return s.findUser(ctx, existsFilter)
		}
		return nil, err
	}
	return user, nil
}

// UserByID implements UserRepository.
func (s *MongoStore) UserByID(ctx context.Context, id string) (*User, error) {
	return s.findUser(ctx, bson.M{"id": id})
}

// UserByEmail implements UserRepository.
func (s *MongoStore) UserByEmail(ctx context.Context, email string) (*User, error) {
	return s.findUser(ctx, bson.M{"email": email})
}

// UpdateUser implements UserRepository.
func (s *MongoStore) UpdateUser(ctx context.Context, user *User) (*User, error) {
	res, err := s.cu.ReplaceOne(ctx, bson.M{"id": user.ID}, user)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}
	if res.MatchedCount == 0 {
		return nil, ErrNotFound
	}
	return s.UserByID(ctx, user.ID)
}

// DeleteUser implements UserRepository.
func (s *MongoStore) DeleteUser(ctx context.Context, user *User) (*User, error) {
	res, err := s.cu.DeleteOne(ctx, bson.M{"id": user.ID})
	if err != nil {
		return nil, err
	}
	if res.DeletedCount == 0 {
		return nil, ErrNotFound
	}
	return user, nil
}

// InsertMagicLink implements MagicLinkRepository.
func (s *MongoStore) InsertMagicLink(ctx context.Context, userID string, expiration time.Duration) (*MagicLink, error) {
	link, err := NewMagicLink(userID, s.cfg.TokenBytes, expiration, time.Now())
	if err != nil {
		return nil, err
	}
	if _, err := s.cl.InsertOne(ctx, link); err != nil {
		return nil, err
	}
	return link, nil
}

// MagicLinkByToken implements MagicLinkRepository.
func (s *MongoStore) MagicLinkByToken(ctx context.Context, token string) (*MagicLink, error) {
	var link *MagicLink
	if err := s.cl.FindOne(ctx, bson.M{"token": token}).Decode(&link); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return link, nil
}

// UpdateMagicLink implements MagicLinkRepository.
func (s *MongoStore) UpdateMagicLink(ctx context.Context, link *MagicLink) (*MagicLink, error) {
	res, err := s.cl.ReplaceOne(ctx, bson.M{"token": link.Token}, link)
	if err != nil {
		return nil, err
	}
	if res.MatchedCount == 0 {
		return nil, ErrNotFound
	}
	return s.MagicLinkByToken(ctx, link.Token)
}

// ConsumeMagicLink implements MagicLinkRepository.
func (s *MongoStore) ConsumeMagicLink(ctx context.Context, token string, now time.Time) (*MagicLink, error) {
	filter := bson.M{
		"token":           token,
		"is_used":         false,
		"expiration_time": bson.M{"$gte": now},
	}
	update := bson.M{"$set": bson.M{"is_used": true}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var link *MagicLink
	if err := s.cl.FindOneAndUpdate(ctx, filter, update, opts).Decode(&link); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return link, nil
}
