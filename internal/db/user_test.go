package db

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ukydev/ev-warranty/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestMongoUserCollection_InsertUser(t *testing.T) {
	database := integrationDB(t)
	collection := database.Collection(CollUsers)
	userCollection := &MongoUserCollection{Collection: collection}

	user := models.User{
		Username:     "testuser",
		Email:        "test@example.com",
		PasswordHash: "hashedpassword",
		Role:         models.RoleEVMStaff,
		FullName:     "Test User",
	}

	err := userCollection.InsertUser(context.Background(), user)
	assert.NoError(t, err)

	// Verify user was inserted
	var foundUser models.User
	err = collection.FindOne(context.Background(), bson.M{"username": "testuser"}).Decode(&foundUser)
	assert.NoError(t, err)
	assert.Equal(t, user.Username, foundUser.Username)
	assert.Equal(t, user.Email, foundUser.Email)
	assert.Equal(t, user.Role, foundUser.Role)
	assert.True(t, foundUser.IsActive)
	assert.NotZero(t, foundUser.CreatedAt)
	assert.NotZero(t, foundUser.UpdatedAt)

	err = userCollection.InsertUser(context.Background(), user)
	assert.ErrorIs(t, err, models.ErrBusinessRuleViolation)
}

func TestMongoUserCollection_Lookups(t *testing.T) {
	database := integrationDB(t)
	userCollection := &MongoUserCollection{Collection: database.Collection(CollUsers)}
	ctx := context.Background()

	user := models.User{
		ID:       primitive.NewObjectID(),
		Username: "tech",
		Email:    "tech@example.com",
		Role:     models.RoleSCTechnician,
	}
	require.NoError(t, userCollection.InsertUser(ctx, user))

	tests := []struct {
		name   string
		lookup func() (*models.User, error)
	}{
		{"by id", func() (*models.User, error) { return userCollection.FindUserByID(ctx, user.ID.Hex()) }},
		{"by username", func() (*models.User, error) { return userCollection.FindUserByUsername(ctx, "tech") }},
		{"by email", func() (*models.User, error) { return userCollection.FindUserByEmail(ctx, "tech@example.com") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			found, err := tt.lookup()
			require.NoError(t, err)
			assert.Equal(t, user.ID, found.ID)
		})
	}

	_, err := userCollection.FindUserByUsername(ctx, "ghost")
	assert.ErrorIs(t, err, models.ErrNotFound)
	_, err = userCollection.FindUserByID(ctx, "invalid-id")
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestMongoUserCollection_UpdateLastLogin(t *testing.T) {
	database := integrationDB(t)
	userCollection := &MongoUserCollection{Collection: database.Collection(CollUsers)}
	ctx := context.Background()

	user := models.User{ID: primitive.NewObjectID(), Username: "evm", Email: "evm@example.com", Role: models.RoleEVMStaff}
	require.NoError(t, userCollection.InsertUser(ctx, user))

	at := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, userCollection.UpdateLastLogin(ctx, user.ID.Hex(), at))

	found, err := userCollection.FindUserByID(ctx, user.ID.Hex())
	require.NoError(t, err)
	require.NotNil(t, found.LastLogin)
	assert.True(t, at.Equal(*found.LastLogin))

	assert.ErrorIs(t, userCollection.UpdateLastLogin(ctx, primitive.NewObjectID().Hex(), at), models.ErrNotFound)

	require.NoError(t, userCollection.UpdatePassword(ctx, user.ID.Hex(), "rotated", at))
	found, err = userCollection.FindUserByUsername(ctx, "evm")
	require.NoError(t, err)
	assert.Equal(t, "rotated", found.PasswordHash)
	assert.ErrorIs(t, userCollection.UpdatePassword(ctx, "bad", "x", at), models.ErrInvalidInput)
}
