package models

import (
	"slices"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PolicyStatus is the lifecycle state of a WarrantyPolicy.
type PolicyStatus string

const (
	PolicyDraft      PolicyStatus = "DRAFT"
	PolicyActive     PolicyStatus = "ACTIVE"
	PolicyExpired    PolicyStatus = "EXPIRED"
	PolicySuperseded PolicyStatus = "SUPERSEDED"
	PolicyArchived   PolicyStatus = "ARCHIVED"
)

var policyTransitions = map[PolicyStatus][]PolicyStatus{
	PolicyDraft:  {PolicyActive, PolicyArchived},
	PolicyActive: {PolicyExpired, PolicySuperseded},
}

// IsTerminal reports whether no further transition is possible.
func (s PolicyStatus) IsTerminal() bool {
	return len(policyTransitions[s]) == 0
}

// PolicyCoveragePart lists one part category covered by a policy.
type PolicyCoveragePart struct {
	PartCategoryID     primitive.ObjectID `bson:"part_category_id" json:"part_category_id"`
	CoverageConditions string             `bson:"coverage_conditions,omitempty" json:"coverage_conditions,omitempty"`
	CreatedAt          time.Time          `bson:"created_at" json:"created_at"`
}

// WarrantyPolicy is the warranty assigned to a vehicle model.
type WarrantyPolicy struct {
	ID                   primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	ModelID              primitive.ObjectID   `bson:"model_id" json:"model_id"`
	PolicyName           string               `bson:"policy_name" json:"policy_name"`
	Description          string               `bson:"description" json:"description"`
	CoveragePeriodMonths int                  `bson:"coverage_period_months" json:"coverage_period_months"`
	CoverageMileageKm    int                  `bson:"coverage_mileage_km" json:"coverage_mileage_km"`
	Status               PolicyStatus         `bson:"status" json:"status"`
	CoveredParts         []PolicyCoveragePart `bson:"covered_parts" json:"covered_parts"`
	CreatedAt            time.Time            `bson:"created_at" json:"created_at"`
	UpdatedAt            time.Time            `bson:"updated_at" json:"updated_at"`
	Version              int64                `bson:"version" json:"version"`
}

// NewWarrantyPolicy builds a DRAFT policy with no coverage.
func NewWarrantyPolicy(modelID primitive.ObjectID, name, description string, months, km int, now time.Time) (*WarrantyPolicy, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, NewError(KindInvalidInput, "policy name is required")
	}
	if months < 0 || km < 0 {
		return nil, NewError(KindInvalidInput, "coverage period and mileage must not be negative")
	}
	return &WarrantyPolicy{
		ID:                   primitive.NewObjectID(),
		ModelID:              modelID,
		PolicyName:           name,
		Description:          description,
		CoveragePeriodMonths: months,
		CoverageMileageKm:    km,
		Status:               PolicyDraft,
		CoveredParts:         []PolicyCoveragePart{},
		CreatedAt:            now,
		UpdatedAt:            now,
	}, nil
}

// Coverage returns the coverage row for categoryID, if any.
func (p *WarrantyPolicy) Coverage(categoryID primitive.ObjectID) (PolicyCoveragePart, bool) {
	for _, cp := range p.CoveredParts {
		if cp.PartCategoryID == categoryID {
			return cp, true
		}
	}
	return PolicyCoveragePart{}, false
}

// AddCoverage lists an ACTIVE category under this DRAFT policy.
func (p *WarrantyPolicy) AddCoverage(category *PartCategory, conditions string, now time.Time) error {
	if err := p.requireDraft("add coverage"); err != nil {
		return err
	}
	if !category.CanBeUsedForNewParts() {
		return ruleViolation("category %q is %s and cannot be added to coverage", category.CategoryName, category.Status)
	}
	if _, ok := p.Coverage(category.ID); ok {
		return ruleViolation("category %q is already covered by policy %q", category.CategoryName, p.PolicyName)
	}
	p.CoveredParts = append(p.CoveredParts, PolicyCoveragePart{
		PartCategoryID:     category.ID,
		CoverageConditions: strings.TrimSpace(conditions),
		CreatedAt:          now,
	})
	p.UpdatedAt = now
	return nil
}

// UpdateCoverage replaces the free-text conditions of a coverage row.
func (p *WarrantyPolicy) UpdateCoverage(categoryID primitive.ObjectID, conditions string, now time.Time) error {
	if err := p.requireDraft("edit coverage"); err != nil {
		return err
	}
	for i := range p.CoveredParts {
		if p.CoveredParts[i].PartCategoryID == categoryID {
			p.CoveredParts[i].CoverageConditions = strings.TrimSpace(conditions)
			p.UpdatedAt = now
			return nil
		}
	}
	return notFound("coverage for category", categoryID)
}

// RemoveCoverage drops a coverage row.
func (p *WarrantyPolicy) RemoveCoverage(categoryID primitive.ObjectID, now time.Time) error {
	if err := p.requireDraft("remove coverage"); err != nil {
		return err
	}
	idx := slices.IndexFunc(p.CoveredParts, func(cp PolicyCoveragePart) bool {
		return cp.PartCategoryID == categoryID
	})
	if idx < 0 {
		return notFound("coverage for category", categoryID)
	}
	p.CoveredParts = slices.Delete(p.CoveredParts, idx, idx+1)
	p.UpdatedAt = now
	return nil
}

// Activate puts the policy in force. It needs at least one covered part.
func (p *WarrantyPolicy) Activate(now time.Time) error {
	if p.Status == PolicyDraft && len(p.CoveredParts) == 0 {
		return ruleViolation("policy %q has no covered parts", p.PolicyName)
	}
	return p.transition(PolicyActive, now)
}

// Expire ends an ACTIVE policy at the end of its term.
func (p *WarrantyPolicy) Expire(now time.Time) error { return p.transition(PolicyExpired, now) }

// Supersede retires an ACTIVE policy in favour of a newer one for the model.
func (p *WarrantyPolicy) Supersede(now time.Time) error { return p.transition(PolicySuperseded, now) }

// Archive discards a DRAFT policy that never went into force.
func (p *WarrantyPolicy) Archive(now time.Time) error { return p.transition(PolicyArchived, now) }

func (p *WarrantyPolicy) requireDraft(op string) error {
	if p.Status != PolicyDraft {
		return ruleViolation("cannot %s on policy %q in status %s", op, p.PolicyName, p.Status)
	}
	return nil
}

func (p *WarrantyPolicy) transition(target PolicyStatus, now time.Time) error {
	if !slices.Contains(policyTransitions[p.Status], target) {
		return ruleViolation("policy %q cannot move from %s to %s", p.PolicyName, p.Status, target)
	}
	p.Status = target
	p.UpdatedAt = now
	return nil
}

// Covers is the coverage decision: the policy is ACTIVE, lists the category,
// and the category still accepts new parts. It has no side effects.
func Covers(policy *WarrantyPolicy, category *PartCategory) bool {
	if policy == nil || category == nil || policy.Status != PolicyActive {
		return false
	}
	if _, ok := policy.Coverage(category.ID); !ok {
		return false
	}
	return category.CanBeUsedForNewParts()
}
