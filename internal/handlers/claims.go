package handlers

import (
	"context"
	"net/http"
	"strconv"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/ev-warranty/internal/db"
	"github.com/ukydev/ev-warranty/internal/models"
	"github.com/ukydev/ev-warranty/internal/service"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ClaimService is the claim lifecycle as seen by the HTTP layer.
type ClaimService interface {
	Create(ctx context.Context, actor models.Actor, in service.CreateClaimInput) (*models.Claim, error)
	AddItem(ctx context.Context, actor models.Actor, claimID primitive.ObjectID, in models.NewClaimItem) (*models.ClaimItem, error)
	RemoveItem(ctx context.Context, actor models.Actor, claimID, itemID primitive.ObjectID) (*models.Claim, error)
	Submit(ctx context.Context, actor models.Actor, claimID primitive.ObjectID) (*models.Claim, error)
	Cancel(ctx context.Context, actor models.Actor, claimID primitive.ObjectID) (*models.Claim, error)
	StartReview(ctx context.Context, actor models.Actor, claimID primitive.ObjectID) (*models.Claim, error)
	RequestInfo(ctx context.Context, actor models.Actor, claimID primitive.ObjectID) (*models.Claim, error)
	ApproveItem(ctx context.Context, actor models.Actor, claimID, itemID primitive.ObjectID) (*models.ClaimItem, error)
	RejectItem(ctx context.Context, actor models.Actor, claimID, itemID primitive.ObjectID) (*models.ClaimItem, error)
	Complete(ctx context.Context, actor models.Actor, claimID primitive.ObjectID) (*models.Claim, error)
	Delete(ctx context.Context, actor models.Actor, claimID primitive.ObjectID) error
	Get(ctx context.Context, actor models.Actor, claimID primitive.ObjectID) (*models.Claim, error)
	List(ctx context.Context, actor models.Actor, filter db.ClaimFilter) ([]models.Claim, error)
	History(ctx context.Context, actor models.Actor, claimID primitive.ObjectID) ([]models.ClaimHistory, error)
}

// CreateClaimRequest is the body of POST /api/claims.
type CreateClaimRequest struct {
	CustomerID  primitive.ObjectID `json:"customer_id"`
	VehicleID   primitive.ObjectID `json:"vehicle_id"`
	Description string             `json:"description"`
}

// AddItemRequest is the body of POST /api/claims/{id}/items.
type AddItemRequest struct {
	PartCategoryID   primitive.ObjectID `json:"part_category_id"`
	FaultyPartID     primitive.ObjectID `json:"faulty_part_id"`
	IssueDescription string             `json:"issue_description"`
	Type             models.ItemType    `json:"type"`
	Cost             models.Money       `json:"cost"`
}

// ClaimHandler serves the claim routes.
type ClaimHandler struct {
	claims ClaimService
	logger log.FieldLogger
}

// NewClaimHandler creates a claim handler.
func NewClaimHandler(claims ClaimService, logger log.FieldLogger) *ClaimHandler {
	return &ClaimHandler{claims: claims, logger: logger}
}

// Create handles POST /api/claims.
func (h *ClaimHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOf(w, r)
	if !ok {
		return
	}
	var req CreateClaimRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	claim, err := h.claims.Create(r.Context(), actor, service.CreateClaimInput{
		CustomerID:  req.CustomerID,
		VehicleID:   req.VehicleID,
		Description: req.Description,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, claim)
}

// List handles GET /api/claims?status=&customer_id=&vehicle_id=&limit=.
func (h *ClaimHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOf(w, r)
	if !ok {
		return
	}
	filter, err := claimFilter(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	claims, err := h.claims.List(r.Context(), actor, filter)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, claims)
}

func claimFilter(r *http.Request) (db.ClaimFilter, error) {
	q := r.URL.Query()
	filter := db.ClaimFilter{Status: models.ClaimStatus(q.Get("status"))}
	var err error
	if filter.CustomerID, err = queryID(r, "customer_id"); err != nil {
		return filter, err
	}
	if filter.VehicleID, err = queryID(r, "vehicle_id"); err != nil {
		return filter, err
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || limit < 0 {
			return filter, models.NewError(models.KindInvalidInput, "invalid limit %q", raw)
		}
		filter.Limit = limit
	}
	return filter, nil
}

// Get handles GET /api/claims/{id}.
func (h *ClaimHandler) Get(w http.ResponseWriter, r *http.Request) {
	h.withClaim(w, r, func(actor models.Actor, id primitive.ObjectID) (any, error) {
		return h.claims.Get(r.Context(), actor, id)
	})
}

// History handles GET /api/claims/{id}/history.
func (h *ClaimHandler) History(w http.ResponseWriter, r *http.Request) {
	h.withClaim(w, r, func(actor models.Actor, id primitive.ObjectID) (any, error) {
		return h.claims.History(r.Context(), actor, id)
	})
}

// Delete handles DELETE /api/claims/{id}.
func (h *ClaimHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOf(w, r)
	if !ok {
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if err := h.claims.Delete(r.Context(), actor, id); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AddItem handles POST /api/claims/{id}/items.
func (h *ClaimHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOf(w, r)
	if !ok {
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var req AddItemRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	item, err := h.claims.AddItem(r.Context(), actor, id, models.NewClaimItem{
		PartCategoryID:   req.PartCategoryID,
		FaultyPartID:     req.FaultyPartID,
		IssueDescription: req.IssueDescription,
		Type:             req.Type,
		Cost:             req.Cost,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

// RemoveItem handles DELETE /api/claims/{id}/items/{itemId}.
func (h *ClaimHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	h.withItem(w, r, func(actor models.Actor, id, itemID primitive.ObjectID) (any, error) {
		return h.claims.RemoveItem(r.Context(), actor, id, itemID)
	})
}

// ApproveItem handles POST /api/claims/{id}/items/{itemId}/approve.
func (h *ClaimHandler) ApproveItem(w http.ResponseWriter, r *http.Request) {
	h.withItem(w, r, func(actor models.Actor, id, itemID primitive.ObjectID) (any, error) {
		return h.claims.ApproveItem(r.Context(), actor, id, itemID)
	})
}

// RejectItem handles POST /api/claims/{id}/items/{itemId}/reject.
func (h *ClaimHandler) RejectItem(w http.ResponseWriter, r *http.Request) {
	h.withItem(w, r, func(actor models.Actor, id, itemID primitive.ObjectID) (any, error) {
		return h.claims.RejectItem(r.Context(), actor, id, itemID)
	})
}

// Transition returns a handler for one claim-level lifecycle operation such
// as submit or complete.
func (h *ClaimHandler) Transition(op func(context.Context, models.Actor, primitive.ObjectID) (*models.Claim, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.withClaim(w, r, func(actor models.Actor, id primitive.ObjectID) (any, error) {
			return op(r.Context(), actor, id)
		})
	}
}

func (h *ClaimHandler) withClaim(w http.ResponseWriter, r *http.Request, fn func(models.Actor, primitive.ObjectID) (any, error)) {
	actor, ok := actorOf(w, r)
	if !ok {
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	out, err := fn(actor, id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *ClaimHandler) withItem(w http.ResponseWriter, r *http.Request, fn func(models.Actor, primitive.ObjectID, primitive.ObjectID) (any, error)) {
	h.withClaim(w, r, func(actor models.Actor, id primitive.ObjectID) (any, error) {
		itemID, err := pathID(r, "itemId")
		if err != nil {
			return nil, err
		}
		return fn(actor, id, itemID)
	})
}
