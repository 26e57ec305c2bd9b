package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Customer is the owner of a vehicle brought to a service center.
type Customer struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	FullName  string             `bson:"full_name" json:"full_name"`
	Email     string             `bson:"email" json:"email"`
	Phone     string             `bson:"phone" json:"phone"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
}

// Vehicle represents a customer's electric vehicle.
type Vehicle struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	CustomerID primitive.ObjectID `bson:"customer_id" json:"customer_id"`
	VIN        string             `bson:"vin" json:"vin"`
	ModelID    primitive.ObjectID `bson:"model_id" json:"model_id"` // warranty policies are assigned per model
	Year       int                `bson:"year" json:"year"`
	CreatedAt  time.Time          `bson:"created_at" json:"created_at"`
}
