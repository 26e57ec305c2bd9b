package db

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/ukydev/ev-warranty/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MemoryStore is a Store kept in process memory. It enforces the same unique
// keys and version checks as the Mongo store and hands out copies, so callers
// never share state with it. Used by tests and STORE=memory.
type MemoryStore struct {
	mu         sync.RWMutex
	claims     map[primitive.ObjectID]models.Claim
	history    []models.ClaimHistory
	categories map[primitive.ObjectID]models.PartCategory
	parts      map[primitive.ObjectID]models.Part
	policies   map[primitive.ObjectID]models.WarrantyPolicy
	customers  map[primitive.ObjectID]models.Customer
	vehicles   map[primitive.ObjectID]models.Vehicle
	users      map[primitive.ObjectID]models.User
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		claims:     make(map[primitive.ObjectID]models.Claim),
		categories: make(map[primitive.ObjectID]models.PartCategory),
		parts:      make(map[primitive.ObjectID]models.Part),
		policies:   make(map[primitive.ObjectID]models.WarrantyPolicy),
		customers:  make(map[primitive.ObjectID]models.Customer),
		vehicles:   make(map[primitive.ObjectID]models.Vehicle),
		users:      make(map[primitive.ObjectID]models.User),
	}
}

func cloneClaim(c models.Claim) models.Claim {
	out := models.Claim{
		ID:          c.ID,
		ClaimNumber: c.ClaimNumber,
		CustomerID:  c.CustomerID,
		VehicleID:   c.VehicleID,
		PolicyID:    c.PolicyID,
		Description: c.Description,
		Status:      c.Status,
		Disposition: c.Disposition,
		Items:       slices.Clone(c.Items),
		TotalCost:   c.TotalCost,
		ApprovedBy:  c.ApprovedBy,
		CreatedBy:   c.CreatedBy,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
		Version:     c.Version,
	}
	if out.Items == nil {
		out.Items = []models.ClaimItem{}
	}
	return out
}

func clonePolicy(p models.WarrantyPolicy) models.WarrantyPolicy {
	p.CoveredParts = slices.Clone(p.CoveredParts)
	if p.CoveredParts == nil {
		p.CoveredParts = []models.PolicyCoveragePart{}
	}
	return p
}

func conflict(entity string, id primitive.ObjectID, version int64) error {
	return models.NewError(models.KindConcurrencyConflict, "%s %s changed since version %d was read", entity, id.Hex(), version)
}

func missing(entity, key string) error {
	return models.NewError(models.KindNotFound, "%s %s not found", entity, key)
}

func duplicate(entity, key string) error {
	return models.NewError(models.KindBusinessRuleViolation, "%s %s already exists", entity, key)
}

// InsertClaim stores a new claim.
func (s *MemoryStore) InsertClaim(_ context.Context, claim *models.Claim) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.claims[claim.ID]; ok {
		return duplicate("claim", claim.ID.Hex())
	}
	for _, c := range s.claims {
		if c.ClaimNumber == claim.ClaimNumber {
			return duplicate("claim", claim.ClaimNumber)
		}
	}
	s.claims[claim.ID] = cloneClaim(*claim)
	return nil
}

// FindClaimByID finds a claim by ID.
func (s *MemoryStore) FindClaimByID(_ context.Context, id primitive.ObjectID) (*models.Claim, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.claims[id]
	if !ok {
		return nil, missing("claim", id.Hex())
	}
	out := cloneClaim(c)
	return &out, nil
}

// FindClaims lists claims matching filter, newest first.
func (s *MemoryStore) FindClaims(_ context.Context, filter ClaimFilter) ([]models.Claim, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]models.Claim, 0)
	for _, c := range s.claims {
		if filter.Status != "" && c.Status != filter.Status {
			continue
		}
		if !filter.CustomerID.IsZero() && c.CustomerID != filter.CustomerID {
			continue
		}
		if !filter.VehicleID.IsZero() && c.VehicleID != filter.VehicleID {
			continue
		}
		result = append(result, cloneClaim(c))
	}
	slices.SortFunc(result, func(a, b models.Claim) int {
		if n := b.CreatedAt.Compare(a.CreatedAt); n != 0 {
			return n
		}
		return cmp.Compare(b.ID.Hex(), a.ID.Hex())
	})
	if filter.Limit > 0 && int64(len(result)) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

// SaveClaim replaces the stored claim when versions match and bumps claim.Version.
func (s *MemoryStore) SaveClaim(_ context.Context, claim *models.Claim) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.claims[claim.ID]
	if !ok {
		return missing("claim", claim.ID.Hex())
	}
	if stored.Version != claim.Version {
		return conflict("claim", claim.ID, claim.Version)
	}
	claim.Version++
	s.claims[claim.ID] = cloneClaim(*claim)
	return nil
}

// DeleteClaim removes the claim when versions match.
func (s *MemoryStore) DeleteClaim(_ context.Context, claim *models.Claim) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.claims[claim.ID]
	if !ok {
		return missing("claim", claim.ID.Hex())
	}
	if stored.Version != claim.Version {
		return conflict("claim", claim.ID, claim.Version)
	}
	delete(s.claims, claim.ID)
	return nil
}

// InsertHistory appends one audit record.
func (s *MemoryStore) InsertHistory(_ context.Context, h models.ClaimHistory) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if h.ID.IsZero() {
		h.ID = primitive.NewObjectID()
	}
	s.history = append(s.history, h)
	return nil
}

// FindHistoryByClaim returns the audit trail of a claim in insertion order.
func (s *MemoryStore) FindHistoryByClaim(_ context.Context, claimID primitive.ObjectID) ([]models.ClaimHistory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]models.ClaimHistory, 0)
	for _, h := range s.history {
		if h.ClaimID == claimID {
			result = append(result, h)
		}
	}
	return result, nil
}

// InsertCategory stores a new category, rejecting duplicate names.
func (s *MemoryStore) InsertCategory(_ context.Context, cat *models.PartCategory) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkCategoryName(cat); err != nil {
		return err
	}
	s.categories[cat.ID] = *cat
	return nil
}

func (s *MemoryStore) checkCategoryName(cat *models.PartCategory) error {
	for id, c := range s.categories {
		if id != cat.ID && c.NameKey == cat.NameKey {
			return duplicate("part category", cat.CategoryName)
		}
	}
	return nil
}

// FindCategoryByID finds a category by ID.
func (s *MemoryStore) FindCategoryByID(_ context.Context, id primitive.ObjectID) (*models.PartCategory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.categories[id]
	if !ok {
		return nil, missing("part category", id.Hex())
	}
	return &c, nil
}

// FindCategoryByName looks a category up case-insensitively.
func (s *MemoryStore) FindCategoryByName(_ context.Context, name string) (*models.PartCategory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	key := models.CategoryNameKey(name)
	for _, c := range s.categories {
		if c.NameKey == key {
			return &c, nil
		}
	}
	return nil, missing("part category", name)
}

// FindChildCategories returns the direct children of parentID.
func (s *MemoryStore) FindChildCategories(_ context.Context, parentID primitive.ObjectID) ([]models.PartCategory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]models.PartCategory, 0)
	for _, c := range s.categories {
		if c.ParentCategoryID != nil && *c.ParentCategoryID == parentID {
			result = append(result, c)
		}
	}
	return result, nil
}

// FindCategories returns every category sorted by name.
func (s *MemoryStore) FindCategories(_ context.Context) ([]models.PartCategory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]models.PartCategory, 0, len(s.categories))
	for _, c := range s.categories {
		result = append(result, c)
	}
	slices.SortFunc(result, func(a, b models.PartCategory) int { return cmp.Compare(a.NameKey, b.NameKey) })
	return result, nil
}

// SaveCategory replaces the stored category when versions match.
func (s *MemoryStore) SaveCategory(_ context.Context, cat *models.PartCategory) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.categories[cat.ID]
	if !ok {
		return missing("part category", cat.ID.Hex())
	}
	if stored.Version != cat.Version {
		return conflict("part category", cat.ID, cat.Version)
	}
	if err := s.checkCategoryName(cat); err != nil {
		return err
	}
	cat.Version++
	s.categories[cat.ID] = *cat
	return nil
}

// DeleteCategory removes the category when versions match.
func (s *MemoryStore) DeleteCategory(_ context.Context, cat *models.PartCategory) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.categories[cat.ID]
	if !ok {
		return missing("part category", cat.ID.Hex())
	}
	if stored.Version != cat.Version {
		return conflict("part category", cat.ID, cat.Version)
	}
	delete(s.categories, cat.ID)
	return nil
}

// InsertPart stores a new part, rejecting duplicate serial numbers.
func (s *MemoryStore) InsertPart(_ context.Context, p *models.Part) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.parts {
		if existing.SerialNumber == p.SerialNumber {
			return duplicate("part", p.SerialNumber)
		}
	}
	s.parts[p.ID] = *p
	return nil
}

// FindPartByID finds a part by ID.
func (s *MemoryStore) FindPartByID(_ context.Context, id primitive.ObjectID) (*models.Part, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.parts[id]
	if !ok {
		return nil, missing("part", id.Hex())
	}
	return &p, nil
}

// FindParts lists parts matching filter ordered by serial number.
func (s *MemoryStore) FindParts(_ context.Context, filter PartFilter) ([]models.Part, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]models.Part, 0)
	for _, p := range s.parts {
		if !filter.CategoryID.IsZero() && p.CategoryID != filter.CategoryID {
			continue
		}
		if filter.Status != "" && p.Status != filter.Status {
			continue
		}
		result = append(result, p)
	}
	slices.SortFunc(result, func(a, b models.Part) int { return cmp.Compare(a.SerialNumber, b.SerialNumber) })
	return result, nil
}

// SavePart replaces the stored part when versions match.
func (s *MemoryStore) SavePart(_ context.Context, p *models.Part) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.parts[p.ID]
	if !ok {
		return missing("part", p.ID.Hex())
	}
	if stored.Version != p.Version {
		return conflict("part", p.ID, p.Version)
	}
	p.Version++
	s.parts[p.ID] = *p
	return nil
}

// DeletePart removes the part when versions match.
func (s *MemoryStore) DeletePart(_ context.Context, p *models.Part) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.parts[p.ID]
	if !ok {
		return missing("part", p.ID.Hex())
	}
	if stored.Version != p.Version {
		return conflict("part", p.ID, p.Version)
	}
	delete(s.parts, p.ID)
	return nil
}

// InsertPolicy stores a new policy.
func (s *MemoryStore) InsertPolicy(_ context.Context, p *models.WarrantyPolicy) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkSingleActive(p); err != nil {
		return err
	}
	s.policies[p.ID] = clonePolicy(*p)
	return nil
}

func (s *MemoryStore) checkSingleActive(p *models.WarrantyPolicy) error {
	if p.Status != models.PolicyActive {
		return nil
	}
	for id, other := range s.policies {
		if id != p.ID && other.ModelID == p.ModelID && other.Status == models.PolicyActive {
			return duplicate("active warranty policy for model", p.ModelID.Hex())
		}
	}
	return nil
}

// FindPolicyByID finds a policy by ID.
func (s *MemoryStore) FindPolicyByID(_ context.Context, id primitive.ObjectID) (*models.WarrantyPolicy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.policies[id]
	if !ok {
		return nil, missing("warranty policy", id.Hex())
	}
	out := clonePolicy(p)
	return &out, nil
}

// FindActivePolicyByModel returns the ACTIVE policy of a model, or nil.
func (s *MemoryStore) FindActivePolicyByModel(_ context.Context, modelID primitive.ObjectID) (*models.WarrantyPolicy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.policies {
		if p.ModelID == modelID && p.Status == models.PolicyActive {
			out := clonePolicy(p)
			return &out, nil
		}
	}
	return nil, nil
}

// FindPoliciesByModel returns every policy of a model, newest first.
func (s *MemoryStore) FindPoliciesByModel(_ context.Context, modelID primitive.ObjectID) ([]models.WarrantyPolicy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]models.WarrantyPolicy, 0)
	for _, p := range s.policies {
		if p.ModelID == modelID {
			result = append(result, clonePolicy(p))
		}
	}
	slices.SortFunc(result, func(a, b models.WarrantyPolicy) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return result, nil
}

// SavePolicy replaces the stored policy when versions match.
func (s *MemoryStore) SavePolicy(_ context.Context, p *models.WarrantyPolicy) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.policies[p.ID]
	if !ok {
		return missing("warranty policy", p.ID.Hex())
	}
	if stored.Version != p.Version {
		return conflict("warranty policy", p.ID, p.Version)
	}
	if err := s.checkSingleActive(p); err != nil {
		return err
	}
	p.Version++
	s.policies[p.ID] = clonePolicy(*p)
	return nil
}

// InsertCustomer stores a customer.
func (s *MemoryStore) InsertCustomer(_ context.Context, c models.Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.ID.IsZero() {
		c.ID = primitive.NewObjectID()
	}
	if _, ok := s.customers[c.ID]; ok {
		return duplicate("customer", c.ID.Hex())
	}
	s.customers[c.ID] = c
	return nil
}

// FindCustomerByID finds a customer by ID.
func (s *MemoryStore) FindCustomerByID(_ context.Context, id primitive.ObjectID) (*models.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.customers[id]
	if !ok {
		return nil, missing("customer", id.Hex())
	}
	return &c, nil
}

// InsertVehicle stores a vehicle, rejecting duplicate VINs.
func (s *MemoryStore) InsertVehicle(_ context.Context, v models.Vehicle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if v.ID.IsZero() {
		v.ID = primitive.NewObjectID()
	}
	for _, existing := range s.vehicles {
		if existing.VIN == v.VIN {
			return duplicate("vehicle", v.VIN)
		}
	}
	s.vehicles[v.ID] = v
	return nil
}

// FindVehicleByID finds a vehicle by ID.
func (s *MemoryStore) FindVehicleByID(_ context.Context, id primitive.ObjectID) (*models.Vehicle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.vehicles[id]
	if !ok {
		return nil, missing("vehicle", id.Hex())
	}
	return &v, nil
}

// FindVehicleByVIN finds a vehicle by VIN.
func (s *MemoryStore) FindVehicleByVIN(_ context.Context, vin string) (*models.Vehicle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, v := range s.vehicles {
		if v.VIN == vin {
			return &v, nil
		}
	}
	return nil, missing("vehicle", vin)
}

// InsertUser stores a new active user, rejecting duplicate usernames and emails.
func (s *MemoryStore) InsertUser(_ context.Context, user models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	for _, u := range s.users {
		if u.Username == user.Username {
			return duplicate("user", user.Username)
		}
		if u.Email == user.Email {
			return duplicate("user", user.Email)
		}
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	user.UpdatedAt = user.CreatedAt
	user.IsActive = true
	s.users[user.ID] = user
	return nil
}

// FindUserByID finds a user by hex ID.
func (s *MemoryStore) FindUserByID(_ context.Context, id string) (*models.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, models.WrapError(models.KindInvalidInput, err, "invalid user id %q", id)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[oid]
	if !ok {
		return nil, missing("user", id)
	}
	return &u, nil
}

// FindUserByUsername finds a user by username.
func (s *MemoryStore) FindUserByUsername(_ context.Context, username string) (*models.User, error) {
	return s.findUser(func(u models.User) bool { return u.Username == username }, username)
}

// FindUserByEmail finds a user by email.
func (s *MemoryStore) FindUserByEmail(_ context.Context, email string) (*models.User, error) {
	return s.findUser(func(u models.User) bool { return u.Email == email }, email)
}

func (s *MemoryStore) findUser(match func(models.User) bool, key string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if match(u) {
			return &u, nil
		}
	}
	return nil, missing("user", key)
}

// UpdateLastLogin records a successful login.
func (s *MemoryStore) UpdateLastLogin(_ context.Context, id string, at time.Time) error {
	return s.updateUser(id, func(u *models.User) {
		u.LastLogin = &at
		u.UpdatedAt = at
	})
}

// UpdatePassword replaces a user's password hash.
func (s *MemoryStore) UpdatePassword(_ context.Context, id, passwordHash string, at time.Time) error {
	return s.updateUser(id, func(u *models.User) {
		u.PasswordHash = passwordHash
		u.UpdatedAt = at
	})
}

func (s *MemoryStore) updateUser(id string, fn func(*models.User)) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return models.WrapError(models.KindInvalidInput, err, "invalid user id %q", id)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[oid]
	if !ok {
		return missing("user", id)
	}
	fn(&u)
	s.users[oid] = u
	return nil
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*MongoStore)(nil)
)
