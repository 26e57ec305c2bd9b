package db

import (
	"context"

	"github.com/ukydev/ev-warranty/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoClaimCollection implements ClaimCollection for MongoDB. Items are
// embedded, so every save of a claim is a single-document write.
type MongoClaimCollection struct {
	Collection *mongo.Collection
}

// InsertClaim stores a new claim at version 0.
func (c *MongoClaimCollection) InsertClaim(ctx context.Context, claim *models.Claim) error {
	return insert(ctx, c.Collection, "claim", claim.ClaimNumber, claim)
}

// FindClaimByID finds a claim by its ID.
func (c *MongoClaimCollection) FindClaimByID(ctx context.Context, id primitive.ObjectID) (*models.Claim, error) {
	var claim models.Claim
	if err := findOne(ctx, c.Collection, bson.M{"_id": id}, "claim", id.Hex(), &claim); err != nil {
		return nil, err
	}
	return &claim, nil
}

// FindClaims lists claims, newest first.
func (c *MongoClaimCollection) FindClaims(ctx context.Context, filter ClaimFilter) ([]models.Claim, error) {
	query := bson.M{}
	if filter.Status != "" {
		query["status"] = filter.Status
	}
	if !filter.CustomerID.IsZero() {
		query["customer_id"] = filter.CustomerID
	}
	if !filter.VehicleID.IsZero() {
		query["vehicle_id"] = filter.VehicleID
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if filter.Limit > 0 {
		opts.SetLimit(filter.Limit)
	}
	claims := make([]models.Claim, 0)
	if err := findAll(ctx, c.Collection, query, &claims, opts); err != nil {
		return nil, err
	}
	return claims, nil
}

// SaveClaim writes the claim if nobody saved it since it was read.
func (c *MongoClaimCollection) SaveClaim(ctx context.Context, claim *models.Claim) error {
	claim.Version++
	if err := replaceVersioned(ctx, c.Collection, "claim", claim.ID, claim.Version-1, claim); err != nil {
		claim.Version--
		return err
	}
	return nil
}

// DeleteClaim removes the claim if it is unchanged since it was read.
func (c *MongoClaimCollection) DeleteClaim(ctx context.Context, claim *models.Claim) error {
	return deleteVersioned(ctx, c.Collection, "claim", claim.ID, claim.Version)
}

// MongoHistoryCollection implements HistoryCollection for MongoDB.
type MongoHistoryCollection struct {
	Collection *mongo.Collection
}

// InsertHistory appends one audit record.
func (c *MongoHistoryCollection) InsertHistory(ctx context.Context, h models.ClaimHistory) error {
	if h.ID.IsZero() {
		h.ID = primitive.NewObjectID()
	}
	return insert(ctx, c.Collection, "claim history", h.ID.Hex(), h)
}

// FindHistoryByClaim returns the audit trail of a claim in order.
func (c *MongoHistoryCollection) FindHistoryByClaim(ctx context.Context, claimID primitive.ObjectID) ([]models.ClaimHistory, error) {
	opts := options.Find().SetSort(bson.D{{Key: "at", Value: 1}, {Key: "_id", Value: 1}})
	history := make([]models.ClaimHistory, 0)
	if err := findAll(ctx, c.Collection, bson.M{"claim_id": claimID}, &history, opts); err != nil {
		return nil, err
	}
	return history, nil
}
