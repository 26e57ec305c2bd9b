package db

import (
	"context"

	"github.com/ukydev/ev-warranty/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ClaimFilter narrows FindClaims. Zero fields match everything.
type ClaimFilter struct {
	Status     models.ClaimStatus
	CustomerID primitive.ObjectID
	VehicleID  primitive.ObjectID
	Limit      int64
}

// PartFilter narrows FindParts. Zero fields match everything.
type PartFilter struct {
	CategoryID primitive.ObjectID
	Status     models.PartStatus
}

// ClaimCollection persists claims together with their embedded items.
// SaveClaim is a compare-and-set on Version: it fails with ConcurrencyConflict
// when the stored version no longer matches and bumps claim.Version on success.
type ClaimCollection interface {
	InsertClaim(ctx context.Context, claim *models.Claim) error
	FindClaimByID(ctx context.Context, id primitive.ObjectID) (*models.Claim, error)
	FindClaims(ctx context.Context, filter ClaimFilter) ([]models.Claim, error)
	SaveClaim(ctx context.Context, claim *models.Claim) error
	DeleteClaim(ctx context.Context, claim *models.Claim) error
}

// HistoryCollection stores the append-only claim audit trail.
type HistoryCollection interface {
	InsertHistory(ctx context.Context, h models.ClaimHistory) error
	FindHistoryByClaim(ctx context.Context, claimID primitive.ObjectID) ([]models.ClaimHistory, error)
}

// CategoryCollection defines the interface for part category operations.
// SaveCategory and DeleteCategory are compare-and-set on Version.
type CategoryCollection interface {
	InsertCategory(ctx context.Context, c *models.PartCategory) error
	FindCategoryByID(ctx context.Context, id primitive.ObjectID) (*models.PartCategory, error)
	FindCategoryByName(ctx context.Context, name string) (*models.PartCategory, error)
	FindChildCategories(ctx context.Context, parentID primitive.ObjectID) ([]models.PartCategory, error)
	FindCategories(ctx context.Context) ([]models.PartCategory, error)
	SaveCategory(ctx context.Context, c *models.PartCategory) error
	DeleteCategory(ctx context.Context, c *models.PartCategory) error
}

// PartCollection defines the interface for part inventory operations.
type PartCollection interface {
	InsertPart(ctx context.Context, p *models.Part) error
	FindPartByID(ctx context.Context, id primitive.ObjectID) (*models.Part, error)
	FindParts(ctx context.Context, filter PartFilter) ([]models.Part, error)
	SavePart(ctx context.Context, p *models.Part) error
	DeletePart(ctx context.Context, p *models.Part) error
}

// PolicyCollection defines the interface for warranty policy operations.
// FindActivePolicyByModel returns (nil, nil) when the model has no ACTIVE policy.
type PolicyCollection interface {
	InsertPolicy(ctx context.Context, p *models.WarrantyPolicy) error
	FindPolicyByID(ctx context.Context, id primitive.ObjectID) (*models.WarrantyPolicy, error)
	FindActivePolicyByModel(ctx context.Context, modelID primitive.ObjectID) (*models.WarrantyPolicy, error)
	FindPoliciesByModel(ctx context.Context, modelID primitive.ObjectID) ([]models.WarrantyPolicy, error)
	SavePolicy(ctx context.Context, p *models.WarrantyPolicy) error
}

// CustomerCollection defines the interface for customer lookups.
type CustomerCollection interface {
	InsertCustomer(ctx context.Context, c models.Customer) error
	FindCustomerByID(ctx context.Context, id primitive.ObjectID) (*models.Customer, error)
}

// VehicleCollection defines the interface for vehicle data operations.
type VehicleCollection interface {
	InsertVehicle(ctx context.Context, v models.Vehicle) error
	FindVehicleByID(ctx context.Context, id primitive.ObjectID) (*models.Vehicle, error)
	FindVehicleByVIN(ctx context.Context, vin string) (*models.Vehicle, error)
}

// Store groups every collection the services need.
type Store interface {
	ClaimCollection
	HistoryCollection
	CategoryCollection
	PartCollection
	PolicyCollection
	CustomerCollection
	VehicleCollection
	UserCollection
}
