package service

import (
	"context"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/ev-warranty/internal/db"
	"github.com/ukydev/ev-warranty/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CatalogStore is the persistence the catalog service needs.
type CatalogStore interface {
	db.CategoryCollection
	db.PartCollection
	db.PolicyCollection
}

// Policy lifecycle actions accepted by ApplyPolicyAction.
const (
	PolicyActionActivate  = "activate"
	PolicyActionExpire    = "expire"
	PolicyActionSupersede = "supersede"
	PolicyActionArchive   = "archive"
)

// Category lifecycle actions accepted by ApplyCategoryAction.
const (
	CategoryActionReadOnly = "read-only"
	CategoryActionActivate = "activate"
	CategoryActionArchive  = "archive"
)

// CreatePolicyInput carries the fields of a new warranty policy.
type CreatePolicyInput struct {
	ModelID              primitive.ObjectID
	PolicyName           string
	Description          string
	CoveragePeriodMonths int
	CoverageMileageKm    int
}

// CatalogService runs the part category, part and warranty policy lifecycles.
type CatalogService struct {
	store  CatalogStore
	logger log.FieldLogger
	opts   options
}

// NewCatalogService creates a catalog service.
func NewCatalogService(store CatalogStore, logger log.FieldLogger, opts ...Option) *CatalogService {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &CatalogService{store: store, logger: logger, opts: o}
}

// CreateCategory adds an ACTIVE category. Names are unique ignoring case.
// The parent's version is bumped after the insert, so a create and a
// concurrent lifecycle change of the parent cannot both succeed.
func (s *CatalogService) CreateCategory(ctx context.Context, actor models.Actor, name, description string, parentID *primitive.ObjectID) (*models.PartCategory, error) {
	if err := models.Authorize(actor, models.ActionManageCategories); err != nil {
		return nil, err
	}
	if err := s.ensureCategoryNameFree(ctx, name, primitive.NilObjectID); err != nil {
		return nil, err
	}
	var parent *models.PartCategory
	if parentID != nil {
		p, err := s.store.FindCategoryByID(ctx, *parentID)
		if err != nil {
			return nil, err
		}
		parent = p
	}
	cat, err := models.NewPartCategory(name, description, parent, s.opts.now())
	if err != nil {
		return nil, err
	}
	if err := s.store.InsertCategory(ctx, cat); err != nil {
		return nil, err
	}
	if parent != nil {
		if err := s.store.SaveCategory(ctx, parent); err != nil {
			s.undo(s.store.DeleteCategory(ctx, cat), "category_id", cat.ID)
			return nil, err
		}
	}
	s.logger.WithFields(log.Fields{"category_id": cat.ID.Hex(), "name": cat.CategoryName}).Info("Part category created")
	return cat, nil
}

// RenameCategory changes a category's display name.
func (s *CatalogService) RenameCategory(ctx context.Context, actor models.Actor, id primitive.ObjectID, name string) (*models.PartCategory, error) {
	if err := models.Authorize(actor, models.ActionManageCategories); err != nil {
		return nil, err
	}
	cat, err := s.store.FindCategoryByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.ensureCategoryNameFree(ctx, name, id); err != nil {
		return nil, err
	}
	if err := cat.Rename(name, s.opts.now()); err != nil {
		return nil, err
	}
	if err := s.saveCategory(ctx, cat, "rename"); err != nil {
		return nil, err
	}
	return cat, nil
}

// ApplyCategoryAction runs read-only, activate or archive on a category.
func (s *CatalogService) ApplyCategoryAction(ctx context.Context, actor models.Actor, id primitive.ObjectID, action string) (*models.PartCategory, error) {
	if err := models.Authorize(actor, models.ActionManageCategories); err != nil {
		return nil, err
	}
	cat, err := s.store.FindCategoryByID(ctx, id)
	if err != nil {
		return nil, err
	}
	now := s.opts.now()
	switch action {
	case CategoryActionReadOnly:
		err = cat.MakeReadOnly(now)
	case CategoryActionActivate:
		var parent *models.PartCategory
		if cat.ParentCategoryID != nil {
			if parent, err = s.store.FindCategoryByID(ctx, *cat.ParentCategoryID); err != nil {
				return nil, err
			}
		}
		err = cat.Activate(parent, now)
	case CategoryActionArchive:
		children, ferr := s.store.FindChildCategories(ctx, cat.ID)
		if ferr != nil {
			return nil, ferr
		}
		err = cat.Archive(children, now)
	default:
		return nil, models.NewError(models.KindInvalidInput, "unknown category action %q", action)
	}
	if err != nil {
		return nil, err
	}
	if err := s.saveCategory(ctx, cat, action); err != nil {
		return nil, err
	}
	return cat, nil
}

// ListCategories returns every category.
func (s *CatalogService) ListCategories(ctx context.Context) ([]models.PartCategory, error) {
	return s.store.FindCategories(ctx)
}

func (s *CatalogService) ensureCategoryNameFree(ctx context.Context, name string, self primitive.ObjectID) error {
	existing, err := s.store.FindCategoryByName(ctx, name)
	switch {
	case models.KindOf(err) == models.KindNotFound:
		return nil
	case err != nil:
		return err
	case existing.ID != self:
		return models.NewError(models.KindBusinessRuleViolation, "part category %q already exists", existing.CategoryName)
	}
	return nil
}

func (s *CatalogService) saveCategory(ctx context.Context, cat *models.PartCategory, what string) error {
	if err := s.store.SaveCategory(ctx, cat); err != nil {
		return err
	}
	s.logger.WithFields(log.Fields{"category_id": cat.ID.Hex(), "status": cat.Status, "action": what}).Info("Part category updated")
	return nil
}

// CreatePart registers an AVAILABLE part in a category that accepts new parts.
// Like CreateCategory it bumps the category's version once the part exists.
func (s *CatalogService) CreatePart(ctx context.Context, actor models.Actor, serial string, categoryID primitive.ObjectID, officeID *primitive.ObjectID) (*models.Part, error) {
	if err := models.Authorize(actor, models.ActionManageParts); err != nil {
		return nil, err
	}
	cat, err := s.store.FindCategoryByID(ctx, categoryID)
	if err != nil {
		return nil, err
	}
	part, err := models.NewPart(serial, cat, officeID, s.opts.now())
	if err != nil {
		return nil, err
	}
	if err := s.store.InsertPart(ctx, part); err != nil {
		return nil, err
	}
	if err := s.store.SaveCategory(ctx, cat); err != nil {
		s.undo(s.store.DeletePart(ctx, part), "part_id", part.ID)
		return nil, err
	}
	s.logger.WithFields(log.Fields{"part_id": part.ID.Hex(), "serial": part.SerialNumber}).Info("Part created")
	return part, nil
}

// undo logs a failed compensating write. The write it should have reverted
// stays in the store.
func (s *CatalogService) undo(err error, field string, id primitive.ObjectID) {
	if err != nil {
		s.logger.WithError(err).WithField(field, id.Hex()).Error("Failed to roll back catalog write")
	}
}

// ApplyPartAction runs one part lifecycle action.
func (s *CatalogService) ApplyPartAction(ctx context.Context, actor models.Actor, id primitive.ObjectID, action models.PartAction) (*models.Part, error) {
	return s.mutatePart(ctx, actor, id, func(p *models.Part) error {
		return p.Apply(action, s.opts.now())
	})
}

// ReassignPartCategory moves a part to another category that accepts parts.
func (s *CatalogService) ReassignPartCategory(ctx context.Context, actor models.Actor, id, categoryID primitive.ObjectID) (*models.Part, error) {
	var (
		target   *models.PartCategory
		previous models.Part
	)
	part, err := s.mutatePart(ctx, actor, id, func(p *models.Part) error {
		cat, err := s.store.FindCategoryByID(ctx, categoryID)
		if err != nil {
			return err
		}
		target, previous = cat, *p
		return p.ReassignCategory(cat, s.opts.now())
	})
	if err != nil {
		return nil, err
	}
	if err := s.store.SaveCategory(ctx, target); err != nil {
		previous.Version = part.Version
		s.undo(s.store.SavePart(ctx, &previous), "part_id", part.ID)
		return nil, err
	}
	return part, nil
}

// ReassignPartOffice moves a part to another service office.
func (s *CatalogService) ReassignPartOffice(ctx context.Context, actor models.Actor, id, officeID primitive.ObjectID) (*models.Part, error) {
	return s.mutatePart(ctx, actor, id, func(p *models.Part) error {
		return p.ReassignOffice(officeID, s.opts.now())
	})
}

// ListParts returns parts matching filter.
func (s *CatalogService) ListParts(ctx context.Context, filter db.PartFilter) ([]models.Part, error) {
	return s.store.FindParts(ctx, filter)
}

func (s *CatalogService) mutatePart(ctx context.Context, actor models.Actor, id primitive.ObjectID, fn func(*models.Part) error) (*models.Part, error) {
	if err := models.Authorize(actor, models.ActionManageParts); err != nil {
		return nil, err
	}
	part, err := s.store.FindPartByID(ctx, id)
	if err != nil {
		return nil, err
	}
	from := part.Status
	if err := fn(part); err != nil {
		return nil, err
	}
	if err := s.store.SavePart(ctx, part); err != nil {
		return nil, err
	}
	s.logger.WithFields(log.Fields{"part_id": part.ID.Hex(), "from": from, "to": part.Status, "actor": actor.UserID}).Info("Part updated")
	return part, nil
}

// CreatePolicy adds a DRAFT warranty policy for a vehicle model.
func (s *CatalogService) CreatePolicy(ctx context.Context, actor models.Actor, in CreatePolicyInput) (*models.WarrantyPolicy, error) {
	if err := models.Authorize(actor, models.ActionManagePolicies); err != nil {
		return nil, err
	}
	policy, err := models.NewWarrantyPolicy(in.ModelID, in.PolicyName, in.Description, in.CoveragePeriodMonths, in.CoverageMileageKm, s.opts.now())
	if err != nil {
		return nil, err
	}
	if err := s.store.InsertPolicy(ctx, policy); err != nil {
		return nil, err
	}
	s.logger.WithFields(log.Fields{"policy_id": policy.ID.Hex(), "model_id": in.ModelID.Hex()}).Info("Warranty policy created")
	return policy, nil
}

// AddCoverage lists an ACTIVE category under a DRAFT policy.
func (s *CatalogService) AddCoverage(ctx context.Context, actor models.Actor, policyID, categoryID primitive.ObjectID, conditions string) (*models.WarrantyPolicy, error) {
	return s.mutatePolicy(ctx, actor, policyID, func(p *models.WarrantyPolicy) error {
		cat, err := s.store.FindCategoryByID(ctx, categoryID)
		if err != nil {
			return err
		}
		return p.AddCoverage(cat, conditions, s.opts.now())
	})
}

// UpdateCoverage edits the conditions of a coverage row of a DRAFT policy.
func (s *CatalogService) UpdateCoverage(ctx context.Context, actor models.Actor, policyID, categoryID primitive.ObjectID, conditions string) (*models.WarrantyPolicy, error) {
	return s.mutatePolicy(ctx, actor, policyID, func(p *models.WarrantyPolicy) error {
		return p.UpdateCoverage(categoryID, conditions, s.opts.now())
	})
}

// RemoveCoverage drops a coverage row of a DRAFT policy.
func (s *CatalogService) RemoveCoverage(ctx context.Context, actor models.Actor, policyID, categoryID primitive.ObjectID) (*models.WarrantyPolicy, error) {
	return s.mutatePolicy(ctx, actor, policyID, func(p *models.WarrantyPolicy) error {
		return p.RemoveCoverage(categoryID, s.opts.now())
	})
}

// ApplyPolicyAction runs activate, expire, supersede or archive. A model has
// at most one ACTIVE policy, so activation fails while another one is active.
func (s *CatalogService) ApplyPolicyAction(ctx context.Context, actor models.Actor, policyID primitive.ObjectID, action string) (*models.WarrantyPolicy, error) {
	return s.mutatePolicy(ctx, actor, policyID, func(p *models.WarrantyPolicy) error {
		now := s.opts.now()
		switch action {
		case PolicyActionActivate:
			active, err := s.store.FindActivePolicyByModel(ctx, p.ModelID)
			if err != nil {
				return err
			}
			if active != nil && active.ID != p.ID {
				return models.NewError(models.KindBusinessRuleViolation, "model %s already has active policy %q", p.ModelID.Hex(), active.PolicyName)
			}
			return p.Activate(now)
		case PolicyActionExpire:
			return p.Expire(now)
		case PolicyActionSupersede:
			return p.Supersede(now)
		case PolicyActionArchive:
			return p.Archive(now)
		default:
			return models.NewError(models.KindInvalidInput, "unknown policy action %q", action)
		}
	})
}

// GetPolicy returns one policy.
func (s *CatalogService) GetPolicy(ctx context.Context, id primitive.ObjectID) (*models.WarrantyPolicy, error) {
	return s.store.FindPolicyByID(ctx, id)
}

// ListPoliciesByModel returns every policy of a vehicle model.
func (s *CatalogService) ListPoliciesByModel(ctx context.Context, modelID primitive.ObjectID) ([]models.WarrantyPolicy, error) {
	return s.store.FindPoliciesByModel(ctx, modelID)
}

func (s *CatalogService) mutatePolicy(ctx context.Context, actor models.Actor, id primitive.ObjectID, fn func(*models.WarrantyPolicy) error) (*models.WarrantyPolicy, error) {
	if err := models.Authorize(actor, models.ActionManagePolicies); err != nil {
		return nil, err
	}
	policy, err := s.store.FindPolicyByID(ctx, id)
	if err != nil {
		return nil, err
	}
	from := policy.Status
	if err := fn(policy); err != nil {
		return nil, err
	}
	if err := s.store.SavePolicy(ctx, policy); err != nil {
		return nil, err
	}
	s.logger.WithFields(log.Fields{"policy_id": policy.ID.Hex(), "from": from, "to": policy.Status, "actor": actor.UserID}).Info("Warranty policy updated")
	return policy, nil
}
