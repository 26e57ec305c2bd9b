package service

import (
	"context"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/ev-warranty/internal/audit"
	"github.com/ukydev/ev-warranty/internal/coverage"
	"github.com/ukydev/ev-warranty/internal/db"
	"github.com/ukydev/ev-warranty/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ClaimStore is the persistence the claim service needs.
type ClaimStore interface {
	db.ClaimCollection
	db.HistoryCollection
	db.CategoryCollection
	db.PartCollection
	db.PolicyCollection
	db.CustomerCollection
	db.VehicleCollection
}

// CreateClaimInput carries the fields of a new claim.
type CreateClaimInput struct {
	CustomerID  primitive.ObjectID
	VehicleID   primitive.ObjectID
	Description string
}

// ClaimService runs the claim and claim item lifecycles.
type ClaimService struct {
	store    ClaimStore
	coverage *coverage.Validator
	sink     audit.Sink
	logger   log.FieldLogger
	opts     options
}

// NewClaimService creates a claim service. The coverage validator reads from store.
func NewClaimService(store ClaimStore, sink audit.Sink, logger log.FieldLogger, opts ...Option) *ClaimService {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &ClaimService{
		store:    store,
		coverage: coverage.NewValidator(store, store),
		sink:     sink,
		logger:   logger,
		opts:     o,
	}
}

// Create opens a DRAFT claim for a vehicle owned by the customer whose model
// has an ACTIVE warranty policy.
func (s *ClaimService) Create(ctx context.Context, actor models.Actor, in CreateClaimInput) (*models.Claim, error) {
	if err := models.Authorize(actor, models.ActionCreateClaim); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Description) == "" {
		return nil, models.NewError(models.KindInvalidInput, "claim description is required")
	}
	customer, err := s.store.FindCustomerByID(ctx, in.CustomerID)
	if err != nil {
		return nil, err
	}
	vehicle, err := s.store.FindVehicleByID(ctx, in.VehicleID)
	if err != nil {
		return nil, err
	}
	if vehicle.CustomerID != customer.ID {
		return nil, models.NewError(models.KindBusinessRuleViolation, "vehicle %s does not belong to customer %s", vehicle.VIN, customer.ID.Hex())
	}
	policy, err := s.store.FindActivePolicyByModel(ctx, vehicle.ModelID)
	if err != nil {
		return nil, err
	}
	if policy == nil {
		return nil, models.NewError(models.KindPolicyNotActive, "vehicle %s has no active warranty policy", vehicle.VIN)
	}
	number, err := s.opts.claimNumber()
	if err != nil {
		return nil, err
	}

	claim, err := models.NewClaim(number, customer.ID, vehicle.ID, policy.ID, in.Description, actor, s.opts.now())
	if err != nil {
		return nil, err
	}
	if err := s.store.InsertClaim(ctx, claim); err != nil {
		return nil, err
	}
	s.publish(ctx, claim)
	return claim, nil
}

// AddItem adds a PENDING defect line to a DRAFT claim. The part category must
// exist and be covered by the vehicle's active policy, and the faulty part
// must exist.
func (s *ClaimService) AddItem(ctx context.Context, actor models.Actor, claimID primitive.ObjectID, in models.NewClaimItem) (*models.ClaimItem, error) {
	var added models.ClaimItem
	_, err := s.mutate(ctx, claimID, func(c *models.Claim) error {
		if err := c.CheckAddItem(actor); err != nil {
			return err
		}
		if err := in.Validate(); err != nil {
			return err
		}
		if _, err := s.store.FindCategoryByID(ctx, in.PartCategoryID); err != nil {
			return err
		}
		vehicle, err := s.store.FindVehicleByID(ctx, c.VehicleID)
		if err != nil {
			return err
		}
		if err := s.coverage.Check(ctx, vehicle.ModelID, in.PartCategoryID); err != nil {
			return err
		}
		if _, err := s.store.FindPartByID(ctx, in.FaultyPartID); err != nil {
			return err
		}
		item, err := c.AddItem(actor, in, s.opts.now())
		if err != nil {
			return err
		}
		added = *item
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &added, nil
}

// RemoveItem deletes an item from a DRAFT claim.
func (s *ClaimService) RemoveItem(ctx context.Context, actor models.Actor, claimID, itemID primitive.ObjectID) (*models.Claim, error) {
	return s.mutate(ctx, claimID, func(c *models.Claim) error {
		return c.RemoveItem(actor, itemID, s.opts.now())
	})
}

// Submit sends a claim to the manufacturer.
func (s *ClaimService) Submit(ctx context.Context, actor models.Actor, claimID primitive.ObjectID) (*models.Claim, error) {
	return s.mutate(ctx, claimID, func(c *models.Claim) error { return c.Submit(actor, s.opts.now()) })
}

// Cancel withdraws a SUBMITTED claim.
func (s *ClaimService) Cancel(ctx context.Context, actor models.Actor, claimID primitive.ObjectID) (*models.Claim, error) {
	return s.mutate(ctx, claimID, func(c *models.Claim) error { return c.Cancel(actor, s.opts.now()) })
}

// StartReview puts a SUBMITTED claim under review.
func (s *ClaimService) StartReview(ctx context.Context, actor models.Actor, claimID primitive.ObjectID) (*models.Claim, error) {
	return s.mutate(ctx, claimID, func(c *models.Claim) error { return c.StartReview(actor, s.opts.now()) })
}

// RequestInfo returns a claim under review to the service center.
func (s *ClaimService) RequestInfo(ctx context.Context, actor models.Actor, claimID primitive.ObjectID) (*models.Claim, error) {
	return s.mutate(ctx, claimID, func(c *models.Claim) error { return c.RequestInfo(actor, s.opts.now()) })
}

// ApproveItem approves one item of a claim under review.
func (s *ClaimService) ApproveItem(ctx context.Context, actor models.Actor, claimID, itemID primitive.ObjectID) (*models.ClaimItem, error) {
	return s.decide(ctx, claimID, func(c *models.Claim) (*models.ClaimItem, error) {
		return c.ApproveItem(actor, itemID, s.opts.now())
	})
}

// RejectItem rejects one item of a claim under review.
func (s *ClaimService) RejectItem(ctx context.Context, actor models.Actor, claimID, itemID primitive.ObjectID) (*models.ClaimItem, error) {
	return s.decide(ctx, claimID, func(c *models.Claim) (*models.ClaimItem, error) {
		return c.RejectItem(actor, itemID, s.opts.now())
	})
}

// Complete resolves and closes a fully reviewed claim.
func (s *ClaimService) Complete(ctx context.Context, actor models.Actor, claimID primitive.ObjectID) (*models.Claim, error) {
	return s.mutate(ctx, claimID, func(c *models.Claim) error { return c.Complete(actor, s.opts.now()) })
}

// Delete hard-deletes a DRAFT claim.
func (s *ClaimService) Delete(ctx context.Context, actor models.Actor, claimID primitive.ObjectID) error {
	claim, err := s.store.FindClaimByID(ctx, claimID)
	if err != nil {
		return err
	}
	if err := claim.CheckDelete(actor); err != nil {
		return err
	}
	if err := s.store.DeleteClaim(ctx, claim); err != nil {
		return err
	}
	s.sink.Record(ctx, models.ClaimHistory{
		ID:         primitive.NewObjectID(),
		ClaimID:    claim.ID,
		Action:     "delete",
		FromStatus: string(claim.Status),
		ActorID:    actor.UserID,
		ActorRole:  actor.Role,
		At:         s.opts.now(),
	})
	s.logger.WithFields(log.Fields{"claim_id": claim.ID.Hex(), "claim_number": claim.ClaimNumber}).Info("Claim deleted")
	return nil
}

// Get returns one claim.
func (s *ClaimService) Get(ctx context.Context, actor models.Actor, claimID primitive.ObjectID) (*models.Claim, error) {
	if err := models.Authorize(actor, models.ActionViewClaims); err != nil {
		return nil, err
	}
	return s.store.FindClaimByID(ctx, claimID)
}

// List returns claims matching filter, newest first.
func (s *ClaimService) List(ctx context.Context, actor models.Actor, filter db.ClaimFilter) ([]models.Claim, error) {
	if err := models.Authorize(actor, models.ActionViewClaims); err != nil {
		return nil, err
	}
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, models.NewError(models.KindInvalidInput, "unknown claim status %q", filter.Status)
	}
	return s.store.FindClaims(ctx, filter)
}

// History returns the audit trail of a claim, including a deleted one.
func (s *ClaimService) History(ctx context.Context, actor models.Actor, claimID primitive.ObjectID) ([]models.ClaimHistory, error) {
	if err := models.Authorize(actor, models.ActionViewClaims); err != nil {
		return nil, err
	}
	history, err := s.store.FindHistoryByClaim(ctx, claimID)
	if err != nil {
		return nil, err
	}
	if len(history) == 0 {
		if _, err := s.store.FindClaimByID(ctx, claimID); err != nil {
			return nil, err
		}
	}
	return history, nil
}

// mutate loads a claim, applies fn and saves it with a version check. Nothing
// is written when fn fails.
func (s *ClaimService) mutate(ctx context.Context, claimID primitive.ObjectID, fn func(*models.Claim) error) (*models.Claim, error) {
	claim, err := s.store.FindClaimByID(ctx, claimID)
	if err != nil {
		return nil, err
	}
	if err := fn(claim); err != nil {
		return nil, err
	}
	if !claim.Dirty() {
		return claim, nil
	}
	if err := s.store.SaveClaim(ctx, claim); err != nil {
		s.logger.WithError(err).WithField("claim_id", claimID.Hex()).Warn("Failed to save claim")
		return nil, err
	}
	s.publish(ctx, claim)
	return claim, nil
}

func (s *ClaimService) decide(ctx context.Context, claimID primitive.ObjectID, fn func(*models.Claim) (*models.ClaimItem, error)) (*models.ClaimItem, error) {
	var decided models.ClaimItem
	_, err := s.mutate(ctx, claimID, func(c *models.Claim) error {
		item, err := fn(c)
		if err != nil {
			return err
		}
		decided = *item
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &decided, nil
}

func (s *ClaimService) publish(ctx context.Context, claim *models.Claim) {
	history := claim.DrainHistory()
	for _, h := range history {
		s.sink.Record(ctx, h)
	}
	s.logger.WithFields(log.Fields{
		"claim_id":     claim.ID.Hex(),
		"claim_number": claim.ClaimNumber,
		"status":       claim.Status,
		"version":      claim.Version,
		"records":      len(history),
	}).Debug("Claim saved")
}
