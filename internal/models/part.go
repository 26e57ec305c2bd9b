package models

import (
	"slices"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PartStatus is the lifecycle state of a physical part unit.
type PartStatus string

const (
	PartAvailable PartStatus = "AVAILABLE"
	PartReserved  PartStatus = "RESERVED"
	PartInstalled PartStatus = "INSTALLED"
	PartDefective PartStatus = "DEFECTIVE"
	PartObsolete  PartStatus = "OBSOLETE"
	PartArchived  PartStatus = "ARCHIVED"
)

// PartAction names a part lifecycle operation.
type PartAction string

const (
	PartActionReserve       PartAction = "reserve"
	PartActionInstall       PartAction = "install"
	PartActionMarkDefective PartAction = "mark_defective"
	PartActionMakeObsolete  PartAction = "make_obsolete"
	PartActionMakeAvailable PartAction = "make_available"
	PartActionArchive       PartAction = "archive"
)

type partRule struct {
	to   PartStatus
	from []PartStatus
}

// partRules is the part transition table: for each action, its target state
// and the states it may be applied from.
var partRules = map[PartAction]partRule{
	PartActionReserve:       {to: PartReserved, from: []PartStatus{PartAvailable}},
	PartActionInstall:       {to: PartInstalled, from: []PartStatus{PartReserved}},
	PartActionMarkDefective: {to: PartDefective, from: []PartStatus{PartAvailable, PartReserved, PartDefective, PartObsolete}},
	PartActionMakeObsolete:  {to: PartObsolete, from: []PartStatus{PartAvailable, PartDefective, PartObsolete}},
	PartActionMakeAvailable: {to: PartAvailable, from: []PartStatus{PartAvailable, PartReserved, PartDefective, PartObsolete}},
	PartActionArchive:       {to: PartArchived, from: []PartStatus{PartAvailable, PartDefective, PartObsolete}},
}

// Part is one inventory unit.
type Part struct {
	ID           primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	SerialNumber string              `bson:"serial_number" json:"serial_number"`
	CategoryID   primitive.ObjectID  `bson:"category_id" json:"category_id"`
	OfficeID     *primitive.ObjectID `bson:"office_id,omitempty" json:"office_id,omitempty"`
	Status       PartStatus          `bson:"status" json:"status"`
	CreatedAt    time.Time           `bson:"created_at" json:"created_at"`
	UpdatedAt    time.Time           `bson:"updated_at" json:"updated_at"`
	Version      int64               `bson:"version" json:"version"`
}

// NewPart builds an AVAILABLE part in category.
func NewPart(serial string, category *PartCategory, officeID *primitive.ObjectID, now time.Time) (*Part, error) {
	serial = strings.TrimSpace(serial)
	if serial == "" {
		return nil, NewError(KindInvalidInput, "serial number is required")
	}
	if !category.CanBeUsedForNewParts() {
		return nil, ruleViolation("category %q is %s and cannot receive new parts", category.CategoryName, category.Status)
	}
	return &Part{
		ID:           primitive.NewObjectID(),
		SerialNumber: serial,
		CategoryID:   category.ID,
		OfficeID:     officeID,
		Status:       PartAvailable,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// Apply runs a lifecycle action against the transition table.
func (p *Part) Apply(action PartAction, now time.Time) error {
	rule, ok := partRules[action]
	if !ok {
		return NewError(KindInvalidInput, "unknown part action %q", action)
	}
	if !slices.Contains(rule.from, p.Status) {
		return ruleViolation("part %s cannot %s while %s", p.SerialNumber, action, p.Status)
	}
	p.Status = rule.to
	p.UpdatedAt = now
	return nil
}

// ReassignCategory moves the part to another category that still accepts parts.
func (p *Part) ReassignCategory(category *PartCategory, now time.Time) error {
	if p.Status == PartArchived {
		return ruleViolation("part %s is archived", p.SerialNumber)
	}
	if !category.CanBeUsedForNewParts() {
		return ruleViolation("category %q is %s and cannot receive parts", category.CategoryName, category.Status)
	}
	p.CategoryID = category.ID
	p.UpdatedAt = now
	return nil
}

// ReassignOffice moves the part to another service office.
func (p *Part) ReassignOffice(officeID primitive.ObjectID, now time.Time) error {
	if p.Status == PartArchived {
		return ruleViolation("part %s is archived", p.SerialNumber)
	}
	p.OfficeID = &officeID
	p.UpdatedAt = now
	return nil
}
