package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"mailauth/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// DefaultTimeout bounds a single collection call when no timeout is configured.
const DefaultTimeout = 5 * time.Second

// MongoUserStore keeps user records in a MongoDB collection keyed by _id,
// with a unique index on email.
type MongoUserStore struct {
	col     *mongo.Collection
	timeout time.Duration
	now     func() time.Time
}

// NewMongoUserStore wraps the users collection.
func NewMongoUserStore(col *mongo.Collection, timeout time.Duration) *MongoUserStore {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &MongoUserStore{col: col, timeout: timeout, now: time.Now}
}

// FindByEmail returns the user registered with email.
func (s *MongoUserStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findOne(ctx, bson.M{"email": email})
}

// FindByID returns the user with the given hex object ID. A malformed ID is
// reported as ErrNotFound.
func (s *MongoUserStore) FindByID(ctx context.Context, id string) (*models.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}
	return s.findOne(ctx, bson.M{"_id": oid})
}

func (s *MongoUserStore) findOne(ctx context.Context, filter bson.M) (*models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var user models.User
	err := s.col.FindOne(ctx, filter).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error retrieving user: %w", err)
	}
	return &user, nil
}

// Create inserts a new user, assigning its ID and initial version.
func (s *MongoUserStore) Create(ctx context.Context, user *models.User) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	now := s.now().UTC()
	doc := *user
	doc.ID = primitive.NewObjectID()
	doc.Version = 1
	doc.CreatedAt = now
	doc.UpdatedAt = now

	if _, err := s.col.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("error inserting user: %w", err)
	}
	*user = doc
	return nil
}

// Save replaces the stored record if its version still matches the one the
// caller read, then bumps the version.
func (s *MongoUserStore) Save(ctx context.Context, user *models.User) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	doc := *user
	doc.Version = user.Version + 1
	doc.UpdatedAt = s.now().UTC()

	filter := bson.M{"_id": user.ID, "version": user.Version}
	res, err := s.col.ReplaceOne(ctx, filter, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("error updating user: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrStale
	}
	*user = doc
	return nil
}
