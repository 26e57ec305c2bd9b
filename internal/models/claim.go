package models

import (
	"slices"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ClaimStatus is the lifecycle state of a warranty claim.
type ClaimStatus string

const (
	ClaimDraft             ClaimStatus = "DRAFT"
	ClaimSubmitted         ClaimStatus = "SUBMITTED"
	ClaimReviewing         ClaimStatus = "REVIEWING"
	ClaimRequestInfo       ClaimStatus = "REQUEST_INFO"
	ClaimApproved          ClaimStatus = "APPROVED"
	ClaimPartiallyApproved ClaimStatus = "PARTIALLY_APPROVED"
	ClaimRejected          ClaimStatus = "REJECTED"
	ClaimCompleted         ClaimStatus = "COMPLETED"
	ClaimCancelled         ClaimStatus = "CANCELLED"
)

// claimTransitions is the claim state table. Draft claims are hard-deleted
// rather than cancelled.
var claimTransitions = map[ClaimStatus][]ClaimStatus{
	ClaimDraft:             {ClaimSubmitted},
	ClaimSubmitted:         {ClaimReviewing, ClaimCancelled},
	ClaimReviewing:         {ClaimRequestInfo, ClaimApproved, ClaimPartiallyApproved, ClaimRejected},
	ClaimRequestInfo:       {ClaimSubmitted},
	ClaimApproved:          {ClaimCompleted},
	ClaimPartiallyApproved: {ClaimCompleted},
	ClaimRejected:          {ClaimCompleted},
}

// IsValid reports whether s is a known claim status.
func (s ClaimStatus) IsValid() bool {
	switch s {
	case ClaimDraft, ClaimSubmitted, ClaimReviewing, ClaimRequestInfo, ClaimApproved,
		ClaimPartiallyApproved, ClaimRejected, ClaimCompleted, ClaimCancelled:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the claim is closed.
func (s ClaimStatus) IsTerminal() bool {
	return s == ClaimCompleted || s == ClaimCancelled
}

// CanTransitionTo reports whether the claim table allows s -> target.
func (s ClaimStatus) CanTransitionTo(target ClaimStatus) bool {
	return slices.Contains(claimTransitions[s], target)
}

// Claim is a warranty claim and the defect items it owns.
type Claim struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ClaimNumber string             `bson:"claim_number" json:"claim_number"`
	CustomerID  primitive.ObjectID `bson:"customer_id" json:"customer_id"`
	VehicleID   primitive.ObjectID `bson:"vehicle_id" json:"vehicle_id"`
	PolicyID    primitive.ObjectID `bson:"policy_id" json:"policy_id"`
	Description string             `bson:"description" json:"description"`
	Status      ClaimStatus        `bson:"status" json:"status"`
	Disposition ClaimStatus        `bson:"disposition,omitempty" json:"disposition,omitempty"`
	Items       []ClaimItem        `bson:"items" json:"items"`
	TotalCost   Money              `bson:"total_cost" json:"total_cost"` // derived, see CalculateTotalCost
	ApprovedBy  string             `bson:"approved_by,omitempty" json:"approved_by,omitempty"`
	CreatedBy   string             `bson:"created_by" json:"created_by"`
	CreatedAt   time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time          `bson:"updated_at" json:"updated_at"`
	Version     int64              `bson:"version" json:"version"`

	pending []ClaimHistory
}

// NewClaim opens a DRAFT claim for a vehicle covered by policyID.
func NewClaim(number string, customerID, vehicleID, policyID primitive.ObjectID, description string, actor Actor, now time.Time) (*Claim, error) {
	if err := Authorize(actor, ActionCreateClaim); err != nil {
		return nil, err
	}
	description = strings.TrimSpace(description)
	if description == "" {
		return nil, NewError(KindInvalidInput, "claim description is required")
	}
	c := &Claim{
		ID:          primitive.NewObjectID(),
		ClaimNumber: number,
		CustomerID:  customerID,
		VehicleID:   vehicleID,
		PolicyID:    policyID,
		Description: description,
		Status:      ClaimDraft,
		Items:       []ClaimItem{},
		TotalCost:   ZeroMoney,
		CreatedBy:   actor.UserID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	c.record("create", nil, "", string(ClaimDraft), actor, now)
	return c, nil
}

// Item returns the item with id.
func (c *Claim) Item(id primitive.ObjectID) (*ClaimItem, bool) {
	for i := range c.Items {
		if c.Items[i].ID == id {
			return &c.Items[i], true
		}
	}
	return nil, false
}

// CalculateTotalCost sums the cost of APPROVED and COMPLETED items.
func (c *Claim) CalculateTotalCost() Money {
	total := ZeroMoney
	for i := range c.Items {
		if c.Items[i].countsTowardCost() {
			total = total.Add(c.Items[i].Cost)
		}
	}
	return total
}

// CheckAddItem verifies role and state before the caller runs coverage lookups.
func (c *Claim) CheckAddItem(actor Actor) error {
	if err := Authorize(actor, ActionAddClaimItem); err != nil {
		return err
	}
	return c.requireDraft("add items to")
}

// AddItem appends a PENDING item. Coverage and part existence are checked by
// the caller, which has repository access.
func (c *Claim) AddItem(actor Actor, in NewClaimItem, now time.Time) (*ClaimItem, error) {
	if err := c.CheckAddItem(actor); err != nil {
		return nil, err
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}
	c.Items = append(c.Items, ClaimItem{
		ID:               primitive.NewObjectID(),
		ClaimID:          c.ID,
		PartCategoryID:   in.PartCategoryID,
		FaultyPartID:     in.FaultyPartID,
		IssueDescription: strings.TrimSpace(in.IssueDescription),
		Type:             in.Type,
		Cost:             in.Cost,
		Status:           ItemPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	})
	item := &c.Items[len(c.Items)-1]
	c.touch(now)
	c.record("add_item", &item.ID, "", string(ItemPending), actor, now)
	return item, nil
}

// RemoveItem deletes an item while the claim is still a draft.
func (c *Claim) RemoveItem(actor Actor, itemID primitive.ObjectID, now time.Time) error {
	if err := Authorize(actor, ActionRemoveClaimItem); err != nil {
		return err
	}
	if err := c.requireDraft("remove items from"); err != nil {
		return err
	}
	idx := slices.IndexFunc(c.Items, func(it ClaimItem) bool { return it.ID == itemID })
	if idx < 0 {
		return notFound("claim item", itemID)
	}
	from := c.Items[idx].Status
	c.Items = slices.Delete(c.Items, idx, idx+1)
	c.touch(now)
	c.record("remove_item", &itemID, string(from), "", actor, now)
	return nil
}

// CheckDelete verifies the claim may be hard-deleted.
func (c *Claim) CheckDelete(actor Actor) error {
	if err := Authorize(actor, ActionDeleteClaim); err != nil {
		return err
	}
	return c.requireDraft("delete")
}

// Submit sends a DRAFT or REQUEST_INFO claim to the manufacturer.
func (c *Claim) Submit(actor Actor, now time.Time) error {
	if err := Authorize(actor, ActionSubmitClaim); err != nil {
		return err
	}
	if !c.Status.CanTransitionTo(ClaimSubmitted) {
		return c.invalidTransition("submit")
	}
	if len(c.Items) == 0 {
		return NewError(KindMissingInformation, "claim %s has no items", c.ClaimNumber)
	}
	return c.transition("submit", ClaimSubmitted, actor, now)
}

// Cancel withdraws a SUBMITTED claim.
func (c *Claim) Cancel(actor Actor, now time.Time) error {
	if err := Authorize(actor, ActionCancelClaim); err != nil {
		return err
	}
	return c.transition("cancel", ClaimCancelled, actor, now)
}

// StartReview moves a SUBMITTED claim under manufacturer review.
func (c *Claim) StartReview(actor Actor, now time.Time) error {
	if err := Authorize(actor, ActionStartReview); err != nil {
		return err
	}
	return c.transition("start_review", ClaimReviewing, actor, now)
}

// RequestInfo sends a claim under review back to the service center.
func (c *Claim) RequestInfo(actor Actor, now time.Time) error {
	if err := Authorize(actor, ActionRequestInfo); err != nil {
		return err
	}
	return c.transition("request_info", ClaimRequestInfo, actor, now)
}

// ApproveItem approves a PENDING item. Approving an APPROVED item is a no-op.
func (c *Claim) ApproveItem(actor Actor, itemID primitive.ObjectID, now time.Time) (*ClaimItem, error) {
	return c.decideItem(actor, ActionApproveItem, itemID, ItemApproved, now)
}

// RejectItem rejects a PENDING item. Rejecting a REJECTED item is a no-op.
func (c *Claim) RejectItem(actor Actor, itemID primitive.ObjectID, now time.Time) (*ClaimItem, error) {
	return c.decideItem(actor, ActionRejectItem, itemID, ItemRejected, now)
}

func (c *Claim) decideItem(actor Actor, action Action, itemID primitive.ObjectID, target ItemStatus, now time.Time) (*ClaimItem, error) {
	if err := Authorize(actor, action); err != nil {
		return nil, err
	}
	if c.Status != ClaimReviewing {
		return nil, c.invalidTransition(string(action))
	}
	item, ok := c.Item(itemID)
	if !ok {
		return nil, notFound("claim item", itemID)
	}
	if item.Status == target {
		return item, nil
	}
	if item.Status != ItemPending {
		return nil, NewError(KindInvalidItemState, "item %s is %s, not %s", itemID.Hex(), item.Status, ItemPending)
	}
	from := item.Status
	if err := item.transition(target, now); err != nil {
		return nil, err
	}
	c.touch(now)
	c.record(string(action), &item.ID, string(from), string(target), actor, now)
	return item, nil
}

// Complete closes a fully reviewed claim. The disposition is APPROVED when every
// item was approved, REJECTED when every item was rejected and
// PARTIALLY_APPROVED otherwise; the claim then ends COMPLETED. Approved items
// move to COMPLETED; rejected items keep their status so they never count
// toward the total.
func (c *Claim) Complete(actor Actor, now time.Time) error {
	if err := Authorize(actor, ActionCompleteClaim); err != nil {
		return err
	}
	if c.Status != ClaimReviewing {
		return c.invalidTransition("complete")
	}
	if len(c.Items) == 0 {
		return NewError(KindMissingInformation, "claim %s has no items", c.ClaimNumber)
	}
	approved, rejected := 0, 0
	for i := range c.Items {
		item := &c.Items[i]
		if !item.Status.IsResolved() {
			return NewError(KindIncompleteReview, "item %s is still %s", item.ID.Hex(), item.Status)
		}
		if item.Status == ItemApproved {
			approved++
		} else {
			rejected++
		}
	}

	disposition := ClaimPartiallyApproved
	switch {
	case rejected == 0:
		disposition = ClaimApproved
	case approved == 0:
		disposition = ClaimRejected
	}
	if err := c.transition("resolve", disposition, actor, now); err != nil {
		return err
	}
	for i := range c.Items {
		item := &c.Items[i]
		if item.Status != ItemApproved {
			continue
		}
		if err := item.transition(ItemCompleted, now); err != nil {
			return err
		}
		c.record("complete_item", &item.ID, string(ItemApproved), string(ItemCompleted), actor, now)
	}
	c.Disposition = disposition
	if disposition != ClaimRejected {
		c.ApprovedBy = actor.UserID
	}
	return c.transition("complete", ClaimCompleted, actor, now)
}

// Dirty reports whether the claim changed since the last drain.
func (c *Claim) Dirty() bool {
	return len(c.pending) > 0
}

// DrainHistory returns the history records produced since the last drain.
func (c *Claim) DrainHistory() []ClaimHistory {
	out := c.pending
	c.pending = nil
	return out
}

func (c *Claim) requireDraft(op string) error {
	if c.Status != ClaimDraft {
		return NewError(KindInvalidState, "cannot %s claim %s in status %s", op, c.ClaimNumber, c.Status)
	}
	return nil
}

func (c *Claim) invalidTransition(op string) error {
	return NewError(KindInvalidTransition, "cannot %s claim %s in status %s", op, c.ClaimNumber, c.Status)
}

func (c *Claim) transition(op string, target ClaimStatus, actor Actor, now time.Time) error {
	if !c.Status.CanTransitionTo(target) {
		return c.invalidTransition(op)
	}
	from := c.Status
	c.Status = target
	c.touch(now)
	c.record(op, nil, string(from), string(target), actor, now)
	return nil
}

func (c *Claim) touch(now time.Time) {
	c.TotalCost = c.CalculateTotalCost()
	c.UpdatedAt = now
}

func (c *Claim) record(action string, itemID *primitive.ObjectID, from, to string, actor Actor, now time.Time) {
	var id *primitive.ObjectID
	if itemID != nil {
		v := *itemID
		id = &v
	}
	c.pending = append(c.pending, ClaimHistory{
		ID:         primitive.NewObjectID(),
		ClaimID:    c.ID,
		ItemID:     id,
		Action:     action,
		FromStatus: from,
		ToStatus:   to,
		ActorID:    actor.UserID,
		ActorRole:  actor.Role,
		At:         now,
	})
}
