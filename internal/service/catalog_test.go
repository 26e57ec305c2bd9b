package service

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ukydev/ev-warranty/internal/db"
	"github.com/ukydev/ev-warranty/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestCatalogService_CategoryNamesAreUnique(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.catalog.CreateCategory(ctx, evmStaff, "  battery ", "", nil)
	assert.ErrorIs(t, err, models.ErrBusinessRuleViolation)

	_, err = e.catalog.RenameCategory(ctx, evmStaff, e.motor.ID, "BATTERY")
	assert.ErrorIs(t, err, models.ErrBusinessRuleViolation)

	renamed, err := e.catalog.RenameCategory(ctx, evmStaff, e.motor.ID, "Drive Motor")
	require.NoError(t, err)
	assert.Equal(t, "Drive Motor", renamed.CategoryName)

	same, err := e.catalog.RenameCategory(ctx, evmStaff, e.battery.ID, "battery")
	require.NoError(t, err)
	assert.Equal(t, "battery", same.CategoryName)
}

func TestCatalogService_CategoryLifecycle(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	cells, err := e.catalog.CreateCategory(ctx, evmStaff, "Cells", "", &e.battery.ID)
	require.NoError(t, err)
	assert.Equal(t, &e.battery.ID, cells.ParentCategoryID)

	_, err = e.catalog.ApplyCategoryAction(ctx, evmStaff, e.battery.ID, CategoryActionArchive)
	assert.ErrorIs(t, err, models.ErrBusinessRuleViolation)

	got, err := e.catalog.ApplyCategoryAction(ctx, evmStaff, cells.ID, CategoryActionReadOnly)
	require.NoError(t, err)
	assert.Equal(t, models.CategoryReadOnly, got.Status)

	_, err = e.catalog.CreatePart(ctx, scStaff, "CELL-1", cells.ID, nil)
	assert.ErrorIs(t, err, models.ErrBusinessRuleViolation)

	got, err = e.catalog.ApplyCategoryAction(ctx, evmStaff, cells.ID, CategoryActionArchive)
	require.NoError(t, err)
	assert.Equal(t, models.CategoryArchived, got.Status)

	got, err = e.catalog.ApplyCategoryAction(ctx, evmStaff, e.battery.ID, CategoryActionArchive)
	require.NoError(t, err)
	assert.Equal(t, models.CategoryArchived, got.Status)

	_, err = e.catalog.ApplyCategoryAction(ctx, evmStaff, e.battery.ID, "explode")
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	all, err := e.catalog.ListCategories(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestCatalogService_Roles(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.catalog.CreateCategory(ctx, scStaff, "Brakes", "", nil)
	assert.ErrorIs(t, err, models.ErrForbidden)
	_, err = e.catalog.CreatePolicy(ctx, scStaff, CreatePolicyInput{ModelID: primitive.NewObjectID(), PolicyName: "x", CoveragePeriodMonths: 12})
	assert.ErrorIs(t, err, models.ErrForbidden)
	_, err = e.catalog.CreatePart(ctx, scTech, "BAT-9", e.battery.ID, nil)
	assert.ErrorIs(t, err, models.ErrForbidden)

	part, err := e.catalog.CreatePart(ctx, evmStaff, "BAT-9", e.battery.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, models.PartAvailable, part.Status)
}

func TestCatalogService_PartLifecycle(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.catalog.CreatePart(ctx, scStaff, "BAT-001", e.battery.ID, nil)
	assert.ErrorIs(t, err, models.ErrBusinessRuleViolation, "serial numbers are unique")

	steps := []struct {
		action models.PartAction
		want   models.PartStatus
	}{
		{models.PartActionReserve, models.PartReserved},
		{models.PartActionMakeAvailable, models.PartAvailable},
		{models.PartActionReserve, models.PartReserved},
		{models.PartActionInstall, models.PartInstalled},
	}
	for _, step := range steps {
		got, err := e.catalog.ApplyPartAction(ctx, scStaff, e.part.ID, step.action)
		require.NoError(t, err, step.action)
		assert.Equal(t, step.want, got.Status)
	}

	_, err = e.catalog.ApplyPartAction(ctx, scStaff, e.part.ID, models.PartActionArchive)
	assert.ErrorIs(t, err, models.ErrBusinessRuleViolation)

	stored, err := e.store.FindPartByID(ctx, e.part.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PartInstalled, stored.Status)
	assert.Equal(t, int64(4), stored.Version)
}

func TestCatalogService_ReassignPart(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	got, err := e.catalog.ReassignPartCategory(ctx, scStaff, e.part.ID, e.motor.ID)
	require.NoError(t, err)
	assert.Equal(t, e.motor.ID, got.CategoryID)

	office := primitive.NewObjectID()
	got, err = e.catalog.ReassignPartOffice(ctx, scStaff, e.part.ID, office)
	require.NoError(t, err)
	require.NotNil(t, got.OfficeID)
	assert.Equal(t, office, *got.OfficeID)

	_, err = e.catalog.ReassignPartCategory(ctx, scStaff, e.part.ID, primitive.NewObjectID())
	assert.ErrorIs(t, err, models.ErrNotFound)

	parts, err := e.catalog.ListParts(ctx, db.PartFilter{CategoryID: e.motor.ID})
	require.NoError(t, err)
	require.Len(t, parts, 1)
	assert.Equal(t, "BAT-001", parts[0].SerialNumber)
}

func TestCatalogService_SingleActivePolicyPerModel(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	next, err := e.catalog.CreatePolicy(ctx, evmStaff, CreatePolicyInput{ModelID: e.vehicle.ModelID, PolicyName: "Extended", CoveragePeriodMonths: 120})
	require.NoError(t, err)
	_, err = e.catalog.AddCoverage(ctx, evmStaff, next.ID, e.battery.ID, "10 years")
	require.NoError(t, err)
	_, err = e.catalog.AddCoverage(ctx, evmStaff, next.ID, e.motor.ID, "")
	require.NoError(t, err)

	_, err = e.catalog.ApplyPolicyAction(ctx, evmStaff, next.ID, PolicyActionActivate)
	assert.ErrorIs(t, err, models.ErrBusinessRuleViolation)

	_, err = e.catalog.ApplyPolicyAction(ctx, evmStaff, e.policy.ID, PolicyActionSupersede)
	require.NoError(t, err)
	got, err := e.catalog.ApplyPolicyAction(ctx, evmStaff, next.ID, PolicyActionActivate)
	require.NoError(t, err)
	assert.Equal(t, models.PolicyActive, got.Status)

	_, err = e.catalog.AddCoverage(ctx, evmStaff, next.ID, e.motor.ID, "")
	assert.ErrorIs(t, err, models.ErrBusinessRuleViolation)

	policies, err := e.catalog.ListPoliciesByModel(ctx, e.vehicle.ModelID)
	require.NoError(t, err)
	assert.Len(t, policies, 2)

	// A claim opened now is bound to the new policy, which also covers Motor.
	c := e.newClaim(t)
	assert.Equal(t, next.ID, c.PolicyID)
	motorItem := e.item("30")
	motorItem.PartCategoryID = e.motor.ID
	_, err = e.claims.AddItem(ctx, scStaff, c.ID, motorItem)
	assert.NoError(t, err)
}

func TestCatalogService_Coverage(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	draft, err := e.catalog.CreatePolicy(ctx, evmStaff, CreatePolicyInput{ModelID: primitive.NewObjectID(), PolicyName: "Fleet", CoveragePeriodMonths: 24})
	require.NoError(t, err)
	_, err = e.catalog.AddCoverage(ctx, evmStaff, draft.ID, e.battery.ID, "2 years")
	require.NoError(t, err)

	got, err := e.catalog.UpdateCoverage(ctx, evmStaff, draft.ID, e.battery.ID, "3 years")
	require.NoError(t, err)
	row, ok := got.Coverage(e.battery.ID)
	require.True(t, ok)
	assert.Equal(t, "3 years", row.CoverageConditions)

	got, err = e.catalog.RemoveCoverage(ctx, evmStaff, draft.ID, e.battery.ID)
	require.NoError(t, err)
	_, ok = got.Coverage(e.battery.ID)
	assert.False(t, ok)

	_, err = e.catalog.ApplyPolicyAction(ctx, evmStaff, draft.ID, "renew")
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	stored, err := e.catalog.GetPolicy(ctx, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PolicyDraft, stored.Status)
}

// interleavingStore runs a competing catalog change right after the service
// under test first reads the target category.
type interleavingStore struct {
	*db.MemoryStore
	target     primitive.ObjectID
	interleave func(ctx context.Context)
}

func (s *interleavingStore) FindCategoryByID(ctx context.Context, id primitive.ObjectID) (*models.PartCategory, error) {
	cat, err := s.MemoryStore.FindCategoryByID(ctx, id)
	if err == nil && id == s.target && s.interleave != nil {
		run := s.interleave
		s.interleave = nil
		run(ctx)
	}
	return cat, err
}

func TestCatalogService_WritesRacingCategoryChange(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name   string
		action string
		want   models.CategoryStatus
		write  func(e *env, catalog *CatalogService) error
	}{
		{"child category vs archive", CategoryActionArchive, models.CategoryArchived, func(e *env, catalog *CatalogService) error {
			_, err := catalog.CreateCategory(ctx, evmStaff, "Stator", "", &e.motor.ID)
			return err
		}},
		{"new part vs archive", CategoryActionArchive, models.CategoryArchived, func(e *env, catalog *CatalogService) error {
			_, err := catalog.CreatePart(ctx, scStaff, "MOT-001", e.motor.ID, nil)
			return err
		}},
		{"new part vs read-only", CategoryActionReadOnly, models.CategoryReadOnly, func(e *env, catalog *CatalogService) error {
			_, err := catalog.CreatePart(ctx, scStaff, "MOT-001", e.motor.ID, nil)
			return err
		}},
		{"reassigned part vs archive", CategoryActionArchive, models.CategoryArchived, func(e *env, catalog *CatalogService) error {
			_, err := catalog.ReassignPartCategory(ctx, scStaff, e.part.ID, e.motor.ID)
			return err
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t)
			logger, hook := test.NewNullLogger()
			racing := &interleavingStore{MemoryStore: e.store, target: e.motor.ID}
			racing.interleave = func(ctx context.Context) {
				_, err := e.catalog.ApplyCategoryAction(ctx, evmStaff, e.motor.ID, tt.action)
				require.NoError(t, err)
			}

			err := tt.write(e, NewCatalogService(racing, logger))
			assert.ErrorIs(t, err, models.ErrConcurrencyConflict)
			assert.Nil(t, racing.interleave)

			motor, err := e.store.FindCategoryByID(ctx, e.motor.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.want, motor.Status)
			children, err := e.store.FindChildCategories(ctx, e.motor.ID)
			require.NoError(t, err)
			assert.Empty(t, children)
			parts, err := e.store.FindParts(ctx, db.PartFilter{CategoryID: e.motor.ID})
			require.NoError(t, err)
			assert.Empty(t, parts)

			part, err := e.store.FindPartByID(ctx, e.part.ID)
			require.NoError(t, err)
			assert.Equal(t, e.battery.ID, part.CategoryID)
			for _, entry := range hook.AllEntries() {
				assert.NotEqual(t, "Failed to roll back catalog write", entry.Message)
			}
		})
	}
}

func TestCatalogService_WritesBumpCategoryVersion(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	before, err := e.store.FindCategoryByID(ctx, e.motor.ID)
	require.NoError(t, err)
	_, err = e.catalog.CreateCategory(ctx, evmStaff, "Rotor", "", &e.motor.ID)
	require.NoError(t, err)
	_, err = e.catalog.CreatePart(ctx, scStaff, "MOT-002", e.motor.ID, nil)
	require.NoError(t, err)

	after, err := e.store.FindCategoryByID(ctx, e.motor.ID)
	require.NoError(t, err)
	assert.Equal(t, before.Version+2, after.Version)
	assert.Equal(t, models.CategoryActive, after.Status)
}
