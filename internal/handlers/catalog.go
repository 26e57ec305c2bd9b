package handlers

import (
	"context"
	"net/http"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/ev-warranty/internal/db"
	"github.com/ukydev/ev-warranty/internal/models"
	"github.com/ukydev/ev-warranty/internal/service"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CatalogService is the category, part and policy catalog as seen by the HTTP layer.
type CatalogService interface {
	CreateCategory(ctx context.Context, actor models.Actor, name, description string, parentID *primitive.ObjectID) (*models.PartCategory, error)
	RenameCategory(ctx context.Context, actor models.Actor, id primitive.ObjectID, name string) (*models.PartCategory, error)
	ApplyCategoryAction(ctx context.Context, actor models.Actor, id primitive.ObjectID, action string) (*models.PartCategory, error)
	ListCategories(ctx context.Context) ([]models.PartCategory, error)

	CreatePart(ctx context.Context, actor models.Actor, serial string, categoryID primitive.ObjectID, officeID *primitive.ObjectID) (*models.Part, error)
	ApplyPartAction(ctx context.Context, actor models.Actor, id primitive.ObjectID, action models.PartAction) (*models.Part, error)
	ReassignPartCategory(ctx context.Context, actor models.Actor, id, categoryID primitive.ObjectID) (*models.Part, error)
	ReassignPartOffice(ctx context.Context, actor models.Actor, id, officeID primitive.ObjectID) (*models.Part, error)
	ListParts(ctx context.Context, filter db.PartFilter) ([]models.Part, error)

	CreatePolicy(ctx context.Context, actor models.Actor, in service.CreatePolicyInput) (*models.WarrantyPolicy, error)
	AddCoverage(ctx context.Context, actor models.Actor, policyID, categoryID primitive.ObjectID, conditions string) (*models.WarrantyPolicy, error)
	UpdateCoverage(ctx context.Context, actor models.Actor, policyID, categoryID primitive.ObjectID, conditions string) (*models.WarrantyPolicy, error)
	RemoveCoverage(ctx context.Context, actor models.Actor, policyID, categoryID primitive.ObjectID) (*models.WarrantyPolicy, error)
	ApplyPolicyAction(ctx context.Context, actor models.Actor, policyID primitive.ObjectID, action string) (*models.WarrantyPolicy, error)
	GetPolicy(ctx context.Context, id primitive.ObjectID) (*models.WarrantyPolicy, error)
	ListPoliciesByModel(ctx context.Context, modelID primitive.ObjectID) ([]models.WarrantyPolicy, error)
}

// CategoryRequest is the body of POST /api/categories and PUT /api/categories/{id}.
type CategoryRequest struct {
	CategoryName     string              `json:"category_name"`
	Description      string              `json:"description"`
	ParentCategoryID *primitive.ObjectID `json:"parent_category_id,omitempty"`
}

// PartRequest is the body of POST /api/parts.
type PartRequest struct {
	SerialNumber string              `json:"serial_number"`
	CategoryID   primitive.ObjectID  `json:"category_id"`
	OfficeID     *primitive.ObjectID `json:"office_id,omitempty"`
}

// PolicyRequest is the body of POST /api/policies.
type PolicyRequest struct {
	ModelID              primitive.ObjectID `json:"model_id"`
	PolicyName           string             `json:"policy_name"`
	Description          string             `json:"description"`
	CoveragePeriodMonths int                `json:"coverage_period_months"`
	CoverageMileageKm    int                `json:"coverage_mileage_km"`
}

// CoverageRequest is the body of the policy coverage routes.
type CoverageRequest struct {
	PartCategoryID     primitive.ObjectID `json:"part_category_id"`
	CoverageConditions string             `json:"coverage_conditions"`
}

// CatalogHandler serves the category, part and policy routes.
type CatalogHandler struct {
	catalog CatalogService
	logger  log.FieldLogger
}

// NewCatalogHandler creates a catalog handler.
func NewCatalogHandler(catalog CatalogService, logger log.FieldLogger) *CatalogHandler {
	return &CatalogHandler{catalog: catalog, logger: logger}
}

// CreateCategory handles POST /api/categories.
func (h *CatalogHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOf(w, r)
	if !ok {
		return
	}
	var req CategoryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	cat, err := h.catalog.CreateCategory(r.Context(), actor, req.CategoryName, req.Description, req.ParentCategoryID)
	h.respond(w, r, http.StatusCreated, cat, err)
}

// RenameCategory handles PUT /api/categories/{id}.
func (h *CatalogHandler) RenameCategory(w http.ResponseWriter, r *http.Request) {
	h.withBody(w, r, &CategoryRequest{}, func(actor models.Actor, id primitive.ObjectID, body any) (any, error) {
		return h.catalog.RenameCategory(r.Context(), actor, id, body.(*CategoryRequest).CategoryName)
	})
}

// CategoryAction returns a handler for one category lifecycle action.
func (h *CatalogHandler) CategoryAction(action string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.withID(w, r, func(actor models.Actor, id primitive.ObjectID) (any, error) {
			return h.catalog.ApplyCategoryAction(r.Context(), actor, id, action)
		})
	}
}

// ListCategories handles GET /api/categories.
func (h *CatalogHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := h.catalog.ListCategories(r.Context())
	h.respond(w, r, http.StatusOK, cats, err)
}

// CreatePart handles POST /api/parts.
func (h *CatalogHandler) CreatePart(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOf(w, r)
	if !ok {
		return
	}
	var req PartRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	part, err := h.catalog.CreatePart(r.Context(), actor, req.SerialNumber, req.CategoryID, req.OfficeID)
	h.respond(w, r, http.StatusCreated, part, err)
}

// PartAction returns a handler for one part lifecycle action.
func (h *CatalogHandler) PartAction(action models.PartAction) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.withID(w, r, func(actor models.Actor, id primitive.ObjectID) (any, error) {
			return h.catalog.ApplyPartAction(r.Context(), actor, id, action)
		})
	}
}

// ReassignPartCategory handles PUT /api/parts/{id}/category.
func (h *CatalogHandler) ReassignPartCategory(w http.ResponseWriter, r *http.Request) {
	h.withBody(w, r, &PartRequest{}, func(actor models.Actor, id primitive.ObjectID, body any) (any, error) {
		return h.catalog.ReassignPartCategory(r.Context(), actor, id, body.(*PartRequest).CategoryID)
	})
}

// ReassignPartOffice handles PUT /api/parts/{id}/office.
func (h *CatalogHandler) ReassignPartOffice(w http.ResponseWriter, r *http.Request) {
	h.withBody(w, r, &PartRequest{}, func(actor models.Actor, id primitive.ObjectID, body any) (any, error) {
		office := body.(*PartRequest).OfficeID
		if office == nil {
			return nil, models.NewError(models.KindInvalidInput, "office_id is required")
		}
		return h.catalog.ReassignPartOffice(r.Context(), actor, id, *office)
	})
}

// ListParts handles GET /api/parts?category_id=&status=.
func (h *CatalogHandler) ListParts(w http.ResponseWriter, r *http.Request) {
	categoryID, err := queryID(r, "category_id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	parts, err := h.catalog.ListParts(r.Context(), db.PartFilter{
		CategoryID: categoryID,
		Status:     models.PartStatus(r.URL.Query().Get("status")),
	})
	h.respond(w, r, http.StatusOK, parts, err)
}

// CreatePolicy handles POST /api/policies.
func (h *CatalogHandler) CreatePolicy(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOf(w, r)
	if !ok {
		return
	}
	var req PolicyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	policy, err := h.catalog.CreatePolicy(r.Context(), actor, service.CreatePolicyInput{
		ModelID:              req.ModelID,
		PolicyName:           req.PolicyName,
		Description:          req.Description,
		CoveragePeriodMonths: req.CoveragePeriodMonths,
		CoverageMileageKm:    req.CoverageMileageKm,
	})
	h.respond(w, r, http.StatusCreated, policy, err)
}

// AddCoverage handles POST /api/policies/{id}/coverage.
func (h *CatalogHandler) AddCoverage(w http.ResponseWriter, r *http.Request) {
	h.withBody(w, r, &CoverageRequest{}, func(actor models.Actor, id primitive.ObjectID, body any) (any, error) {
		req := body.(*CoverageRequest)
		return h.catalog.AddCoverage(r.Context(), actor, id, req.PartCategoryID, req.CoverageConditions)
	})
}

// UpdateCoverage handles PUT /api/policies/{id}/coverage/{categoryId}.
func (h *CatalogHandler) UpdateCoverage(w http.ResponseWriter, r *http.Request) {
	h.withBody(w, r, &CoverageRequest{}, func(actor models.Actor, id primitive.ObjectID, body any) (any, error) {
		categoryID, err := pathID(r, "categoryId")
		if err != nil {
			return nil, err
		}
		return h.catalog.UpdateCoverage(r.Context(), actor, id, categoryID, body.(*CoverageRequest).CoverageConditions)
	})
}

// RemoveCoverage handles DELETE /api/policies/{id}/coverage/{categoryId}.
func (h *CatalogHandler) RemoveCoverage(w http.ResponseWriter, r *http.Request) {
	h.withID(w, r, func(actor models.Actor, id primitive.ObjectID) (any, error) {
		categoryID, err := pathID(r, "categoryId")
		if err != nil {
			return nil, err
		}
		return h.catalog.RemoveCoverage(r.Context(), actor, id, categoryID)
	})
}

// PolicyAction returns a handler for one policy lifecycle action.
func (h *CatalogHandler) PolicyAction(action string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.withID(w, r, func(actor models.Actor, id primitive.ObjectID) (any, error) {
			return h.catalog.ApplyPolicyAction(r.Context(), actor, id, action)
		})
	}
}

// GetPolicy handles GET /api/policies/{id}.
func (h *CatalogHandler) GetPolicy(w http.ResponseWriter, r *http.Request) {
	h.withID(w, r, func(_ models.Actor, id primitive.ObjectID) (any, error) {
		return h.catalog.GetPolicy(r.Context(), id)
	})
}

// ListPolicies handles GET /api/policies?model_id=.
func (h *CatalogHandler) ListPolicies(w http.ResponseWriter, r *http.Request) {
	modelID, err := queryID(r, "model_id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if modelID.IsZero() {
		writeError(w, r, h.logger, models.NewError(models.KindInvalidInput, "model_id is required"))
		return
	}
	policies, err := h.catalog.ListPoliciesByModel(r.Context(), modelID)
	h.respond(w, r, http.StatusOK, policies, err)
}

func (h *CatalogHandler) respond(w http.ResponseWriter, r *http.Request, status int, out any, err error) {
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, status, out)
}

func (h *CatalogHandler) withID(w http.ResponseWriter, r *http.Request, fn func(models.Actor, primitive.ObjectID) (any, error)) {
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
	h.respond(w, r, http.StatusOK, out, err)
}

func (h *CatalogHandler) withBody(w http.ResponseWriter, r *http.Request, body any, fn func(models.Actor, primitive.ObjectID, any) (any, error)) {
	h.withID(w, r, func(actor models.Actor, id primitive.ObjectID) (any, error) {
		if err := decodeJSON(r, body); err != nil {
			return nil, err
		}
		return fn(actor, id, body)
	})
}
