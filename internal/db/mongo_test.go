package db

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ukydev/ev-warranty/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

func TestConnectMongo_BadURI(t *testing.T) {
	client, err := ConnectMongo(context.Background(), "mongodb://bad:uri")
	assert.Error(t, err)
	assert.Nil(t, client)
}

func TestMongoCollections_NilCollection(t *testing.T) {
	ctx := context.Background()
	claims := &MongoClaimCollection{}
	err := claims.InsertClaim(ctx, &models.Claim{})
	assert.ErrorIs(t, err, errNilCollection)
	assert.ErrorIs(t, claims.SaveClaim(ctx, &models.Claim{}), errNilCollection)

	policies := &MongoPolicyCollection{}
	_, err = policies.FindActivePolicyByModel(ctx, primitive.NewObjectID())
	assert.ErrorIs(t, err, errNilCollection)
}

func TestMapError(t *testing.T) {
	assert.NoError(t, mapError(nil, "claim", "x"))
	assert.ErrorIs(t, mapError(mongo.ErrNoDocuments, "claim", "x"), models.ErrNotFound)

	dup := mongo.WriteException{WriteErrors: []mongo.WriteError{{Code: 11000, Message: "E11000 duplicate key"}}}
	assert.ErrorIs(t, mapError(dup, "part", "SN-1"), models.ErrBusinessRuleViolation)

	other := mapError(context.DeadlineExceeded, "claim", "x")
	assert.ErrorIs(t, other, context.DeadlineExceeded)
	assert.Equal(t, models.ErrorKind(""), models.KindOf(other))
}

// integrationDB connects to MONGO_URI or skips the test.
func integrationDB(t *testing.T) *mongo.Database {
	t.Helper()
	uri := os.Getenv("MONGO_URI")
	if uri == "" {
		t.Skip("MONGO_URI not set, skipping integration test")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	client, err := ConnectMongo(ctx, uri)
	if err != nil {
		t.Skipf("failed to connect: %v, skipping integration test", err)
	}
	database := client.Database("test_ev_warranty")
	require.NoError(t, database.Drop(ctx))
	require.NoError(t, EnsureIndexes(ctx, database))
	t.Cleanup(func() {
		_ = database.Drop(context.Background())
		_ = client.Disconnect(context.Background())
	})
	return database
}

func TestMongoStore_ClaimVersioning_Integration(t *testing.T) {
	database := integrationDB(t)
	ctx := context.Background()
	store := NewMongoStore(database)

	c, err := models.NewClaim("CLM-INT", primitive.NewObjectID(), primitive.NewObjectID(), primitive.NewObjectID(), "noise", staff, t0)
	require.NoError(t, err)
	require.NoError(t, store.InsertClaim(ctx, c))

	first, err := store.FindClaimByID(ctx, c.ID)
	require.NoError(t, err)
	second, err := store.FindClaimByID(ctx, c.ID)
	require.NoError(t, err)

	_, err = first.AddItem(staff, models.NewClaimItem{Type: models.ItemRepair, IssueDescription: "a", Cost: models.MustMoney("12.34")}, t0)
	require.NoError(t, err)
	require.NoError(t, store.SaveClaim(ctx, first))

	err = store.SaveClaim(ctx, second)
	assert.ErrorIs(t, err, models.ErrConcurrencyConflict)

	stored, err := store.FindClaimByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stored.Version)
	require.Len(t, stored.Items, 1)
	assert.True(t, stored.Items[0].Cost.Equal(models.MustMoney("12.34")))

	ghost := &models.Claim{ID: primitive.NewObjectID()}
	assert.ErrorIs(t, store.SaveClaim(ctx, ghost), models.ErrNotFound)
}

func TestMongoStore_CategoryNameUnique_Integration(t *testing.T) {
	database := integrationDB(t)
	ctx := context.Background()
	store := NewMongoStore(database)

	a, err := models.NewPartCategory("Battery", "", nil, t0)
	require.NoError(t, err)
	require.NoError(t, store.InsertCategory(ctx, a))
	b, err := models.NewPartCategory("battery", "", nil, t0)
	require.NoError(t, err)
	assert.ErrorIs(t, store.InsertCategory(ctx, b), models.ErrBusinessRuleViolation)

	found, err := store.FindCategoryByName(ctx, "BATTERY")
	require.NoError(t, err)
	assert.Equal(t, a.ID, found.ID)
}

func TestMongoStore_ActivePolicy_Integration(t *testing.T) {
	database := integrationDB(t)
	ctx := context.Background()
	store := NewMongoStore(database)
	modelID := primitive.NewObjectID()

	none, err := store.FindActivePolicyByModel(ctx, modelID)
	require.NoError(t, err)
	assert.Nil(t, none)

	cat, err := models.NewPartCategory("Motor", "", nil, t0)
	require.NoError(t, err)
	p, err := models.NewWarrantyPolicy(modelID, "Standard", "", 24, 50000, t0)
	require.NoError(t, err)
	require.NoError(t, p.AddCoverage(cat, "", t0))
	require.NoError(t, store.InsertPolicy(ctx, p))
	require.NoError(t, p.Activate(t0))
	require.NoError(t, store.SavePolicy(ctx, p))

	active, err := store.FindActivePolicyByModel(ctx, modelID)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, p.ID, active.ID)
}
