package fixture

import (
	"context"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/ev-warranty/internal/db"
	"github.com/ukydev/ev-warranty/internal/models"
	"github.com/ukydev/ev-warranty/internal/service"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// seedActor owns every catalog change made by a seed run.
var seedActor = models.Actor{UserID: "seed", Role: models.RoleEVMStaff}

// policySteps lists the actions that take a fresh DRAFT policy to a status.
var policySteps = map[models.PolicyStatus][]string{
	"":                      nil,
	models.PolicyDraft:      nil,
	models.PolicyActive:     {service.PolicyActionActivate},
	models.PolicyExpired:    {service.PolicyActionActivate, service.PolicyActionExpire},
	models.PolicySuperseded: {service.PolicyActionActivate, service.PolicyActionSupersede},
	models.PolicyArchived:   {service.PolicyActionArchive},
}

var categorySteps = map[models.CategoryStatus]string{
	models.CategoryReadOnly: service.CategoryActionReadOnly,
	models.CategoryArchived: service.CategoryActionArchive,
}

// Store holds the collections written directly, outside the catalog service.
type Store interface {
	db.UserCollection
	db.CustomerCollection
	db.VehicleCollection
}

// PasswordHasher hashes fixture passwords before they are stored.
type PasswordHasher interface {
	HashPassword(password string) (string, error)
}

// Result counts the rows a run created.
type Result struct {
	Users      int
	Customers  int
	Vehicles   int
	Categories int
	Parts      int
	Policies   int
}

// Seeder applies fixtures.
type Seeder struct {
	store   Store
	catalog *service.CatalogService
	hasher  PasswordHasher
	logger  log.FieldLogger
	now     func() time.Time
}

// NewSeeder creates a seeder. Catalog rows go through catalog so that they
// obey the same lifecycle rules as API writes.
func NewSeeder(store Store, catalog *service.CatalogService, hasher PasswordHasher, logger log.FieldLogger) *Seeder {
	return &Seeder{
		store:   store,
		catalog: catalog,
		hasher:  hasher,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Apply writes f. Categories reach their final status last because coverage
// can only be added for ACTIVE categories.
func (s *Seeder) Apply(ctx context.Context, f *Fixture) (Result, error) {
	var res Result
	if err := f.Validate(); err != nil {
		return res, err
	}
	steps := []func(context.Context, *Fixture, *Result) error{
		s.seedUsers,
		s.seedCustomers,
		s.seedVehicles,
		s.seedCategories,
		s.seedParts,
		s.seedPolicies,
		s.settleCategories,
	}
	for _, step := range steps {
		if err := step(ctx, f, &res); err != nil {
			return res, err
		}
	}
	s.logger.WithFields(log.Fields{
		"users":      res.Users,
		"customers":  res.Customers,
		"vehicles":   res.Vehicles,
		"categories": res.Categories,
		"parts":      res.Parts,
		"policies":   res.Policies,
	}).Info("Fixture applied")
	return res, nil
}

func (s *Seeder) seedUsers(ctx context.Context, f *Fixture, res *Result) error {
	for _, u := range f.Users {
		_, err := s.store.FindUserByUsername(ctx, u.Username)
		exists, err := found(err)
		if err != nil {
			return err
		}
		if exists {
			continue
		}
		hash, err := s.hasher.HashPassword(u.Password)
		if err != nil {
			return err
		}
		now := s.now()
		user := models.User{
			ID:           primitive.NewObjectID(),
			Username:     u.Username,
			Email:        u.Email,
			PasswordHash: hash,
			Role:         u.Role,
			FullName:     u.FullName,
			IsActive:     true,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := s.store.InsertUser(ctx, user); err != nil {
			return err
		}
		res.Users++
	}
	return nil
}

func (s *Seeder) seedCustomers(ctx context.Context, f *Fixture, res *Result) error {
	for _, c := range f.Customers {
		id, _ := ParseID("customer id", c.ID)
		_, err := s.store.FindCustomerByID(ctx, id)
		exists, err := found(err)
		if err != nil {
			return err
		}
		if exists {
			continue
		}
		err = s.store.InsertCustomer(ctx, models.Customer{
			ID:        id,
			FullName:  c.FullName,
			Email:     c.Email,
			Phone:     c.Phone,
			CreatedAt: s.now(),
		})
		if err != nil {
			return err
		}
		res.Customers++
	}
	return nil
}

func (s *Seeder) seedVehicles(ctx context.Context, f *Fixture, res *Result) error {
	for _, v := range f.Vehicles {
		id, _ := ParseID("vehicle id", v.ID)
		customerID, _ := ParseID("vehicle customer_id", v.CustomerID)
		modelID, _ := ParseID("vehicle model_id", v.ModelID)
		_, err := s.store.FindVehicleByID(ctx, id)
		exists, err := found(err)
		if err != nil {
			return err
		}
		if exists {
			continue
		}
		if _, err := s.store.FindCustomerByID(ctx, customerID); err != nil {
			return err
		}
		err = s.store.InsertVehicle(ctx, models.Vehicle{
			ID:         id,
			CustomerID: customerID,
			VIN:        v.VIN,
			ModelID:    modelID,
			Year:       v.Year,
			CreatedAt:  s.now(),
		})
		if err != nil {
			return err
		}
		res.Vehicles++
	}
	return nil
}

func (s *Seeder) seedCategories(ctx context.Context, f *Fixture, res *Result) error {
	index, err := s.categoryIndex(ctx)
	if err != nil {
		return err
	}
	for _, c := range f.Categories {
		if _, ok := index[key(c.Name)]; ok {
			continue
		}
		var parentID *primitive.ObjectID
		if c.Parent != "" {
			parent, ok := index[key(c.Parent)]
			if !ok {
				return invalid("category %q names unknown parent %q", c.Name, c.Parent)
			}
			parentID = &parent.ID
		}
		created, err := s.catalog.CreateCategory(ctx, seedActor, c.Name, c.Description, parentID)
		if err != nil {
			return err
		}
		index[key(c.Name)] = *created
		res.Categories++
	}
	return nil
}

func (s *Seeder) settleCategories(ctx context.Context, f *Fixture, _ *Result) error {
	index, err := s.categoryIndex(ctx)
	if err != nil {
		return err
	}
	// Children first, since a parent cannot be archived over a live child.
	for i := len(f.Categories) - 1; i >= 0; i-- {
		c := f.Categories[i]
		action, ok := categorySteps[c.Status]
		if !ok {
			continue
		}
		cat := index[key(c.Name)]
		if cat.Status == c.Status {
			continue
		}
		if _, err := s.catalog.ApplyCategoryAction(ctx, seedActor, cat.ID, action); err != nil {
			return err
		}
	}
	return nil
}

func (s *Seeder) seedParts(ctx context.Context, f *Fixture, res *Result) error {
	index, err := s.categoryIndex(ctx)
	if err != nil {
		return err
	}
	existing, err := s.catalog.ListParts(ctx, db.PartFilter{})
	if err != nil {
		return err
	}
	serials := make(map[string]bool, len(existing))
	for _, p := range existing {
		serials[p.SerialNumber] = true
	}
	for _, p := range f.Parts {
		cat, ok := index[key(p.Category)]
		if !ok {
			return invalid("part %q names unknown category %q", p.SerialNumber, p.Category)
		}
		serial := strings.TrimSpace(p.SerialNumber)
		if serials[serial] {
			continue
		}
		var officeID *primitive.ObjectID
		if p.OfficeID != "" {
			id, _ := ParseID("part office_id", p.OfficeID)
			officeID = &id
		}
		if _, err := s.catalog.CreatePart(ctx, seedActor, serial, cat.ID, officeID); err != nil {
			return err
		}
		serials[serial] = true
		res.Parts++
	}
	return nil
}

func (s *Seeder) seedPolicies(ctx context.Context, f *Fixture, res *Result) error {
	index, err := s.categoryIndex(ctx)
	if err != nil {
		return err
	}
	for _, p := range f.Policies {
		modelID, _ := ParseID("policy model_id", p.ModelID)
		existing, err := s.catalog.ListPoliciesByModel(ctx, modelID)
		if err != nil {
			return err
		}
		if hasPolicy(existing, p.Name) {
			continue
		}
		policy, err := s.catalog.CreatePolicy(ctx, seedActor, service.CreatePolicyInput{
			ModelID:              modelID,
			PolicyName:           p.Name,
			Description:          p.Description,
			CoveragePeriodMonths: p.CoveragePeriodMonths,
			CoverageMileageKm:    p.CoverageMileageKm,
		})
		if err != nil {
			return err
		}
		for _, cov := range p.Coverage {
			cat, ok := index[key(cov.Category)]
			if !ok {
				return invalid("policy %q covers unknown category %q", p.Name, cov.Category)
			}
			if _, err := s.catalog.AddCoverage(ctx, seedActor, policy.ID, cat.ID, cov.Conditions); err != nil {
				return err
			}
		}
		for _, action := range policySteps[p.Status] {
			if _, err := s.catalog.ApplyPolicyAction(ctx, seedActor, policy.ID, action); err != nil {
				return err
			}
		}
		res.Policies++
	}
	return nil
}

func (s *Seeder) categoryIndex(ctx context.Context) (map[string]models.PartCategory, error) {
	all, err := s.catalog.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	index := make(map[string]models.PartCategory, len(all))
	for _, c := range all {
		index[key(c.CategoryName)] = c
	}
	return index, nil
}

// found turns a lookup error into (exists, err), treating NotFound as absence.
func found(err error) (bool, error) {
	switch {
	case err == nil:
		return true, nil
	case models.KindOf(err) == models.KindNotFound:
		return false, nil
	default:
		return false, err
	}
}

func key(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func hasPolicy(policies []models.WarrantyPolicy, name string) bool {
	for _, p := range policies {
		if strings.EqualFold(p.PolicyName, strings.TrimSpace(name)) {
			return true
		}
	}
	return false
}
