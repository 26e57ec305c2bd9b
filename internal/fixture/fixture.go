// Package fixture loads reference data from YAML and applies it to a store:
// users, customers, vehicles and the warranty catalog. Applying a fixture is
// idempotent, rows that already exist are left alone.
package fixture

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ukydev/ev-warranty/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"gopkg.in/yaml.v3"
)

// Fixture is the document layout of a seed file.
type Fixture struct {
	Users      []User     `yaml:"users"`
	Customers  []Customer `yaml:"customers"`
	Vehicles   []Vehicle  `yaml:"vehicles"`
	Categories []Category `yaml:"categories"`
	Parts      []Part     `yaml:"parts"`
	Policies   []Policy   `yaml:"policies"`
}

type User struct {
	Username string      `yaml:"username"`
	Email    string      `yaml:"email"`
	Password string      `yaml:"password"`
	FullName string      `yaml:"full_name"`
	Role     models.Role `yaml:"role"`
}

// Customer and Vehicle carry fixed ids so that other tools can refer to them.
type Customer struct {
	ID       string `yaml:"id"`
	FullName string `yaml:"full_name"`
	Email    string `yaml:"email"`
	Phone    string `yaml:"phone"`
}

type Vehicle struct {
	ID         string `yaml:"id"`
	CustomerID string `yaml:"customer_id"`
	VIN        string `yaml:"vin"`
	ModelID    string `yaml:"model_id"`
	Year       int    `yaml:"year"`
}

// Category names its parent by name. Parents must be listed first.
type Category struct {
	Name        string                `yaml:"name"`
	Description string                `yaml:"description"`
	Parent      string                `yaml:"parent"`
	Status      models.CategoryStatus `yaml:"status"`
}

type Part struct {
	SerialNumber string `yaml:"serial_number"`
	Category     string `yaml:"category"`
	OfficeID     string `yaml:"office_id"`
}

// Policy is created as a DRAFT, given its coverage and then moved to Status.
type Policy struct {
	ModelID              string              `yaml:"model_id"`
	Name                 string              `yaml:"name"`
	Description          string              `yaml:"description"`
	CoveragePeriodMonths int                 `yaml:"coverage_period_months"`
	CoverageMileageKm    int                 `yaml:"coverage_mileage_km"`
	Coverage             []Coverage          `yaml:"coverage"`
	Status               models.PolicyStatus `yaml:"status"`
}

type Coverage struct {
	Category   string `yaml:"category"`
	Conditions string `yaml:"conditions"`
}

// Load decodes a fixture. Unknown keys are rejected so that typos surface.
func Load(r io.Reader) (*Fixture, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var f Fixture
	if err := dec.Decode(&f); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decode fixture: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// LoadFile reads a fixture from path.
func LoadFile(path string) (*Fixture, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open fixture: %w", err)
	}
	defer file.Close()
	return Load(file)
}

// Validate checks ids, roles and statuses before anything is written.
func (f *Fixture) Validate() error {
	for _, u := range f.Users {
		if u.Username == "" || u.Password == "" {
			return invalid("user %q needs a username and a password", u.Username)
		}
		if !models.IsValidRole(u.Role) {
			return invalid("user %q has unknown role %q", u.Username, u.Role)
		}
	}
	for _, c := range f.Customers {
		if _, err := ParseID("customer id", c.ID); err != nil {
			return err
		}
	}
	for _, v := range f.Vehicles {
		for field, value := range map[string]string{"vehicle id": v.ID, "vehicle customer_id": v.CustomerID, "vehicle model_id": v.ModelID} {
			if _, err := ParseID(field, value); err != nil {
				return err
			}
		}
	}
	for _, c := range f.Categories {
		switch c.Status {
		case "", models.CategoryActive, models.CategoryReadOnly, models.CategoryArchived:
		default:
			return invalid("category %q has unknown status %q", c.Name, c.Status)
		}
	}
	for _, p := range f.Parts {
		if p.OfficeID != "" {
			if _, err := ParseID("part office_id", p.OfficeID); err != nil {
				return err
			}
		}
	}
	for _, p := range f.Policies {
		if _, err := ParseID("policy model_id", p.ModelID); err != nil {
			return err
		}
		if _, ok := policySteps[p.Status]; !ok {
			return invalid("policy %q has unsupported status %q", p.Name, p.Status)
		}
	}
	return nil
}

// UsersWithRole returns the fixture users holding role.
func (f *Fixture) UsersWithRole(role models.Role) []User {
	var out []User
	for _, u := range f.Users {
		if u.Role == role {
			out = append(out, u)
		}
	}
	return out
}

// ParseID parses a hex object id, naming field in the error.
func ParseID(field, hex string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(strings.TrimSpace(hex))
	if err != nil {
		return primitive.NilObjectID, invalid("%s %q is not a valid id", field, hex)
	}
	return id, nil
}

func invalid(format string, args ...interface{}) error {
	return models.NewError(models.KindInvalidInput, format, args...)
}
