package db

import (
	"context"

	"github.com/ukydev/ev-warranty/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoCategoryCollection implements CategoryCollection for MongoDB.
type MongoCategoryCollection struct {
	Collection *mongo.Collection
}

// InsertCategory stores a new category. The unique name_key index rejects duplicates.
func (c *MongoCategoryCollection) InsertCategory(ctx context.Context, cat *models.PartCategory) error {
	return insert(ctx, c.Collection, "part category", cat.CategoryName, cat)
}

// FindCategoryByID finds a category by its ID.
func (c *MongoCategoryCollection) FindCategoryByID(ctx context.Context, id primitive.ObjectID) (*models.PartCategory, error) {
	var cat models.PartCategory
	if err := findOne(ctx, c.Collection, bson.M{"_id": id}, "part category", id.Hex(), &cat); err != nil {
		return nil, err
	}
	return &cat, nil
}

// FindCategoryByName looks a category up case-insensitively.
func (c *MongoCategoryCollection) FindCategoryByName(ctx context.Context, name string) (*models.PartCategory, error) {
	var cat models.PartCategory
	if err := findOne(ctx, c.Collection, bson.M{"name_key": models.CategoryNameKey(name)}, "part category", name, &cat); err != nil {
		return nil, err
	}
	return &cat, nil
}

// FindChildCategories returns the direct children of parentID.
func (c *MongoCategoryCollection) FindChildCategories(ctx context.Context, parentID primitive.ObjectID) ([]models.PartCategory, error) {
	children := make([]models.PartCategory, 0)
	if err := findAll(ctx, c.Collection, bson.M{"parent_category_id": parentID}, &children); err != nil {
		return nil, err
	}
	return children, nil
}

// FindCategories returns every category sorted by name.
func (c *MongoCategoryCollection) FindCategories(ctx context.Context) ([]models.PartCategory, error) {
	opts := options.Find().SetSort(bson.D{{Key: "name_key", Value: 1}})
	cats := make([]models.PartCategory, 0)
	if err := findAll(ctx, c.Collection, bson.M{}, &cats, opts); err != nil {
		return nil, err
	}
	return cats, nil
}

// SaveCategory is a versioned replace.
func (c *MongoCategoryCollection) SaveCategory(ctx context.Context, cat *models.PartCategory) error {
	cat.Version++
	if err := replaceVersioned(ctx, c.Collection, "part category", cat.ID, cat.Version-1, cat); err != nil {
		cat.Version--
		return err
	}
	return nil
}

// DeleteCategory removes the category if it is unchanged since it was read.
func (c *MongoCategoryCollection) DeleteCategory(ctx context.Context, cat *models.PartCategory) error {
	return deleteVersioned(ctx, c.Collection, "part category", cat.ID, cat.Version)
}

// MongoPartCollection implements PartCollection for MongoDB.
type MongoPartCollection struct {
	Collection *mongo.Collection
}

// InsertPart stores a new part. Serial numbers are unique.
func (c *MongoPartCollection) InsertPart(ctx context.Context, p *models.Part) error {
	return insert(ctx, c.Collection, "part", p.SerialNumber, p)
}

// FindPartByID finds a part by its ID.
func (c *MongoPartCollection) FindPartByID(ctx context.Context, id primitive.ObjectID) (*models.Part, error) {
	var p models.Part
	if err := findOne(ctx, c.Collection, bson.M{"_id": id}, "part", id.Hex(), &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// FindParts lists parts matching filter.
func (c *MongoPartCollection) FindParts(ctx context.Context, filter PartFilter) ([]models.Part, error) {
	query := bson.M{}
	if !filter.CategoryID.IsZero() {
		query["category_id"] = filter.CategoryID
	}
	if filter.Status != "" {
		query["status"] = filter.Status
	}
	opts := options.Find().SetSort(bson.D{{Key: "serial_number", Value: 1}})
	parts := make([]models.Part, 0)
	if err := findAll(ctx, c.Collection, query, &parts, opts); err != nil {
		return nil, err
	}
	return parts, nil
}

// SavePart is a versioned replace.
func (c *MongoPartCollection) SavePart(ctx context.Context, p *models.Part) error {
	p.Version++
	if err := replaceVersioned(ctx, c.Collection, "part", p.ID, p.Version-1, p); err != nil {
		p.Version--
		return err
	}
	return nil
}

// DeletePart removes the part if it is unchanged since it was read.
func (c *MongoPartCollection) DeletePart(ctx context.Context, p *models.Part) error {
	return deleteVersioned(ctx, c.Collection, "part", p.ID, p.Version)
}

// MongoPolicyCollection implements PolicyCollection for MongoDB.
type MongoPolicyCollection struct {
	Collection *mongo.Collection
}

// InsertPolicy stores a new policy.
func (c *MongoPolicyCollection) InsertPolicy(ctx context.Context, p *models.WarrantyPolicy) error {
	return insert(ctx, c.Collection, "warranty policy", p.PolicyName, p)
}

// FindPolicyByID finds a policy by its ID.
func (c *MongoPolicyCollection) FindPolicyByID(ctx context.Context, id primitive.ObjectID) (*models.WarrantyPolicy, error) {
	var p models.WarrantyPolicy
	if err := findOne(ctx, c.Collection, bson.M{"_id": id}, "warranty policy", id.Hex(), &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// FindActivePolicyByModel returns the ACTIVE policy of a model, or nil.
func (c *MongoPolicyCollection) FindActivePolicyByModel(ctx context.Context, modelID primitive.ObjectID) (*models.WarrantyPolicy, error) {
	var p models.WarrantyPolicy
	err := findOne(ctx, c.Collection, bson.M{"model_id": modelID, "status": models.PolicyActive}, "warranty policy", modelID.Hex(), &p)
	if models.KindOf(err) == models.KindNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// FindPoliciesByModel returns every policy of a model, newest first.
func (c *MongoPolicyCollection) FindPoliciesByModel(ctx context.Context, modelID primitive.ObjectID) ([]models.WarrantyPolicy, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	policies := make([]models.WarrantyPolicy, 0)
	if err := findAll(ctx, c.Collection, bson.M{"model_id": modelID}, &policies, opts); err != nil {
		return nil, err
	}
	return policies, nil
}

// SavePolicy is a versioned replace. The partial unique index on model_id
// rejects a second ACTIVE policy for the same model.
func (c *MongoPolicyCollection) SavePolicy(ctx context.Context, p *models.WarrantyPolicy) error {
	p.Version++
	if err := replaceVersioned(ctx, c.Collection, "warranty policy", p.ID, p.Version-1, p); err != nil {
		p.Version--
		return err
	}
	return nil
}

// MongoCustomerCollection implements CustomerCollection for MongoDB.
type MongoCustomerCollection struct {
	Collection *mongo.Collection
}

// InsertCustomer inserts a customer record.
func (c *MongoCustomerCollection) InsertCustomer(ctx context.Context, cust models.Customer) error {
	return insert(ctx, c.Collection, "customer", cust.ID.Hex(), cust)
}

// FindCustomerByID finds a customer by its ID.
func (c *MongoCustomerCollection) FindCustomerByID(ctx context.Context, id primitive.ObjectID) (*models.Customer, error) {
	var cust models.Customer
	if err := findOne(ctx, c.Collection, bson.M{"_id": id}, "customer", id.Hex(), &cust); err != nil {
		return nil, err
	}
	return &cust, nil
}

// MongoVehicleCollection implements VehicleCollection for MongoDB.
type MongoVehicleCollection struct {
	Collection *mongo.Collection
}

// InsertVehicle inserts a vehicle record into the collection.
func (c *MongoVehicleCollection) InsertVehicle(ctx context.Context, v models.Vehicle) error {
	return insert(ctx, c.Collection, "vehicle", v.VIN, v)
}

// FindVehicleByID finds a vehicle by its ID.
func (c *MongoVehicleCollection) FindVehicleByID(ctx context.Context, id primitive.ObjectID) (*models.Vehicle, error) {
	var v models.Vehicle
	if err := findOne(ctx, c.Collection, bson.M{"_id": id}, "vehicle", id.Hex(), &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// FindVehicleByVIN finds a vehicle by its VIN.
func (c *MongoVehicleCollection) FindVehicleByVIN(ctx context.Context, vin string) (*models.Vehicle, error) {
	var v models.Vehicle
	if err := findOne(ctx, c.Collection, bson.M{"vin": vin}, "vehicle", vin, &v); err != nil {
		return nil, err
	}
	return &v, nil
}
