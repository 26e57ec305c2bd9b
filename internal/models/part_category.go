package models

import (
	"slices"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CategoryStatus is the lifecycle state of a PartCategory.
type CategoryStatus string

const (
	CategoryActive   CategoryStatus = "ACTIVE"
	CategoryReadOnly CategoryStatus = "READ_ONLY"
	CategoryArchived CategoryStatus = "ARCHIVED"
)

// categoryTransitions lists the states each category state may move to.
var categoryTransitions = map[CategoryStatus][]CategoryStatus{
	CategoryActive:   {CategoryReadOnly, CategoryArchived},
	CategoryReadOnly: {CategoryActive, CategoryArchived},
	CategoryArchived: nil,
}

// CanTransitionTo reports whether the category table allows s -> target.
func (s CategoryStatus) CanTransitionTo(target CategoryStatus) bool {
	return slices.Contains(categoryTransitions[s], target)
}

// PartCategory is a node in the part category tree. Children reference their
// parent through ParentCategoryID; the parent never holds its children.
type PartCategory struct {
	ID               primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	CategoryName     string              `bson:"category_name" json:"category_name"`
	NameKey          string              `bson:"name_key" json:"-"`
	ParentCategoryID *primitive.ObjectID `bson:"parent_category_id,omitempty" json:"parent_category_id,omitempty"`
	Description      string              `bson:"description" json:"description"`
	Status           CategoryStatus      `bson:"status" json:"status"`
	CreatedAt        time.Time           `bson:"created_at" json:"created_at"`
	UpdatedAt        time.Time           `bson:"updated_at" json:"updated_at"`
	Version          int64               `bson:"version" json:"version"`
}

// CategoryNameKey normalises a category name for case-insensitive uniqueness.
func CategoryNameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// NewPartCategory builds an ACTIVE category. A parent, when given, must not be archived.
func NewPartCategory(name, description string, parent *PartCategory, now time.Time) (*PartCategory, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, NewError(KindInvalidInput, "category name is required")
	}
	c := &PartCategory{
		ID:           primitive.NewObjectID(),
		CategoryName: name,
		NameKey:      CategoryNameKey(name),
		Description:  description,
		Status:       CategoryActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if parent != nil {
		if parent.Status == CategoryArchived {
			return nil, ruleViolation("parent category %q is archived", parent.CategoryName)
		}
		pid := parent.ID
		c.ParentCategoryID = &pid
	}
	return c, nil
}

// CanBeUsedForNewParts reports whether new parts, claim items and policy
// coverage may reference this category.
func (c *PartCategory) CanBeUsedForNewParts() bool {
	return c.Status == CategoryActive
}

// Rename changes the display name. Uniqueness is checked by the caller.
func (c *PartCategory) Rename(name string, now time.Time) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return NewError(KindInvalidInput, "category name is required")
	}
	if c.Status == CategoryArchived {
		return ruleViolation("category %q is archived", c.CategoryName)
	}
	c.CategoryName = name
	c.NameKey = CategoryNameKey(name)
	c.UpdatedAt = now
	return nil
}

// MakeReadOnly stops the category from receiving new parts or coverage.
func (c *PartCategory) MakeReadOnly(now time.Time) error {
	return c.transition(CategoryReadOnly, now)
}

// Activate reopens a read-only category. parent is nil for a root category.
func (c *PartCategory) Activate(parent *PartCategory, now time.Time) error {
	if parent != nil && parent.Status != CategoryActive {
		return ruleViolation("cannot activate %q while parent %q is %s", c.CategoryName, parent.CategoryName, parent.Status)
	}
	return c.transition(CategoryActive, now)
}

// Archive retires the category for good. Every child must already be archived.
func (c *PartCategory) Archive(children []PartCategory, now time.Time) error {
	for _, child := range children {
		if child.Status != CategoryArchived {
			return ruleViolation("cannot archive %q: child %q is %s", c.CategoryName, child.CategoryName, child.Status)
		}
	}
	return c.transition(CategoryArchived, now)
}

func (c *PartCategory) transition(target CategoryStatus, now time.Time) error {
	if !c.Status.CanTransitionTo(target) {
		return ruleViolation("category %q cannot move from %s to %s", c.CategoryName, c.Status, target)
	}
	c.Status = target
	c.UpdatedAt = now
	return nil
}
