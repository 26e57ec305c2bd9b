package db

import (
	"context"
	"time"

	"github.com/ukydev/ev-warranty/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// UserCollection defines the interface for user database operations
type UserCollection interface {
	InsertUser(ctx context.Context, user models.User) error
	FindUserByID(ctx context.Context, id string) (*models.User, error)
	FindUserByUsername(ctx context.Context, username string) (*models.User, error)
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
	UpdatePassword(ctx context.Context, id, passwordHash string, at time.Time) error
}

// MongoUserCollection implements UserCollection for MongoDB
type MongoUserCollection struct {
	Collection *mongo.Collection
}

// InsertUser inserts a new active user into the database
func (c *MongoUserCollection) InsertUser(ctx context.Context, user models.User) error {
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	user.UpdatedAt = user.CreatedAt
	user.IsActive = true

	return insert(ctx, c.Collection, "user", user.Username, user)
}

// FindUserByID finds a user by their ID
func (c *MongoUserCollection) FindUserByID(ctx context.Context, id string) (*models.User, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, models.WrapError(models.KindInvalidInput, err, "invalid user id %q", id)
	}

	var user models.User
	if err := findOne(ctx, c.Collection, bson.M{"_id": objectID}, "user", id, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// FindUserByUsername finds a user by their username
func (c *MongoUserCollection) FindUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	if err := findOne(ctx, c.Collection, bson.M{"username": username}, "user", username, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// FindUserByEmail finds a user by their email
func (c *MongoUserCollection) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := findOne(ctx, c.Collection, bson.M{"email": email}, "user", email, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateLastLogin updates the last login time for a user
func (c *MongoUserCollection) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	return c.setFields(ctx, id, bson.M{"last_login": at, "updated_at": at})
}

// UpdatePassword replaces a user's password hash
func (c *MongoUserCollection) UpdatePassword(ctx context.Context, id, passwordHash string, at time.Time) error {
	return c.setFields(ctx, id, bson.M{"password_hash": passwordHash, "updated_at": at})
}

func (c *MongoUserCollection) setFields(ctx context.Context, id string, fields bson.M) error {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return models.WrapError(models.KindInvalidInput, err, "invalid user id %q", id)
	}
	if c.Collection == nil {
		return errNilCollection
	}

	res, err := c.Collection.UpdateOne(ctx, bson.M{"_id": objectID}, bson.M{"$set": fields})
	if err != nil {
		return mapError(err, "user", id)
	}
	if res.MatchedCount == 0 {
		return models.NewError(models.KindNotFound, "user %s not found", id)
	}
	return nil
}
