package models

import (
	"slices"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ItemStatus is the review state of one defect line.
type ItemStatus string

const (
	ItemPending   ItemStatus = "PENDING"
	ItemApproved  ItemStatus = "APPROVED"
	ItemRejected  ItemStatus = "REJECTED"
	ItemCompleted ItemStatus = "COMPLETED"
)

// ItemType is the kind of work requested for a defect.
type ItemType string

const (
	ItemRepair      ItemType = "REPAIR"
	ItemReplacement ItemType = "REPLACEMENT"
	ItemInspection  ItemType = "INSPECTION"
)

// IsValid reports whether t is a known item type.
func (t ItemType) IsValid() bool {
	switch t {
	case ItemRepair, ItemReplacement, ItemInspection:
		return true
	default:
		return false
	}
}

var itemTransitions = map[ItemStatus][]ItemStatus{
	ItemPending:  {ItemApproved, ItemRejected},
	ItemApproved: {ItemCompleted},
	ItemRejected: {ItemCompleted},
}

// IsResolved reports whether a reviewer has decided the item.
func (s ItemStatus) IsResolved() bool {
	return s == ItemApproved || s == ItemRejected
}

// ClaimItem is one defect line of a claim. It only exists inside its claim.
type ClaimItem struct {
	ID               primitive.ObjectID `bson:"_id" json:"id"`
	ClaimID          primitive.ObjectID `bson:"claim_id" json:"claim_id"`
	PartCategoryID   primitive.ObjectID `bson:"part_category_id" json:"part_category_id"`
	FaultyPartID     primitive.ObjectID `bson:"faulty_part_id" json:"faulty_part_id"`
	IssueDescription string             `bson:"issue_description" json:"issue_description"`
	Type             ItemType           `bson:"type" json:"type"`
	Cost             Money              `bson:"cost" json:"cost"`
	Status           ItemStatus         `bson:"status" json:"status"`
	CreatedAt        time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt        time.Time          `bson:"updated_at" json:"updated_at"`
}

// NewClaimItem carries the caller-supplied fields of a new item.
type NewClaimItem struct {
	PartCategoryID   primitive.ObjectID
	FaultyPartID     primitive.ObjectID
	IssueDescription string
	Type             ItemType
	Cost             Money
}

// Validate checks the fields that need no repository lookup.
func (n NewClaimItem) Validate() error {
	if n.Cost.IsNegative() {
		return NewError(KindInvalidInput, "cost must not be negative, got %s", n.Cost)
	}
	if !n.Type.IsValid() {
		return NewError(KindInvalidInput, "unknown item type %q", n.Type)
	}
	if strings.TrimSpace(n.IssueDescription) == "" {
		return NewError(KindInvalidInput, "issue description is required")
	}
	return nil
}

// countsTowardCost reports whether the item contributes to the claim total.
func (i *ClaimItem) countsTowardCost() bool {
	return i.Status == ItemApproved || i.Status == ItemCompleted
}

func (i *ClaimItem) transition(target ItemStatus, now time.Time) error {
	if !slices.Contains(itemTransitions[i.Status], target) {
		return NewError(KindInvalidTransition, "item %s cannot move from %s to %s", i.ID.Hex(), i.Status, target)
	}
	i.Status = target
	i.UpdatedAt = now
	return nil
}
