// Package coverage decides whether a vehicle model's warranty covers a part category.
package coverage

import (
	"context"

	"github.com/ukydev/ev-warranty/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PolicyFinder resolves the ACTIVE policy of a model. It returns (nil, nil)
// when the model has none.
type PolicyFinder interface {
	FindActivePolicyByModel(ctx context.Context, modelID primitive.ObjectID) (*models.WarrantyPolicy, error)
}

// CategoryFinder loads a part category.
type CategoryFinder interface {
	FindCategoryByID(ctx context.Context, id primitive.ObjectID) (*models.PartCategory, error)
}

// Validator answers coverage questions. It only reads.
type Validator struct {
	policies   PolicyFinder
	categories CategoryFinder
}

// NewValidator creates a coverage validator.
func NewValidator(policies PolicyFinder, categories CategoryFinder) *Validator {
	return &Validator{policies: policies, categories: categories}
}

// IsCovered reports whether the ACTIVE policy of modelID lists categoryID and
// the category is ACTIVE. A model without an active policy or an unknown
// category is simply not covered.
func (v *Validator) IsCovered(ctx context.Context, modelID, categoryID primitive.ObjectID) (bool, error) {
	err := v.Check(ctx, modelID, categoryID)
	switch models.KindOf(err) {
	case "":
		return err == nil, err
	case models.KindPolicyNotActive, models.KindNotCovered, models.KindNotFound:
		return false, nil
	default:
		return false, err
	}
}

// Check is IsCovered with a reason: PolicyNotActive when the model has no
// ACTIVE policy, NotFound for an unknown category and NotCovered otherwise.
func (v *Validator) Check(ctx context.Context, modelID, categoryID primitive.ObjectID) error {
	policy, err := v.policies.FindActivePolicyByModel(ctx, modelID)
	if err != nil {
		return err
	}
	if policy == nil {
		return models.NewError(models.KindPolicyNotActive, "vehicle model %s has no active warranty policy", modelID.Hex())
	}
	category, err := v.categories.FindCategoryByID(ctx, categoryID)
	if err != nil {
		return err
	}
	if !models.Covers(policy, category) {
		return models.NewError(models.KindNotCovered, "part category %q is not covered by policy %q", category.CategoryName, policy.PolicyName)
	}
	return nil
}
