package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ClaimHistory is the immutable record of one successful transition on a
// claim or one of its items.
type ClaimHistory struct {
	ID         primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	ClaimID    primitive.ObjectID  `bson:"claim_id" json:"claim_id"`
	ItemID     *primitive.ObjectID `bson:"item_id,omitempty" json:"item_id,omitempty"`
	Action     string              `bson:"action" json:"action"`
	FromStatus string              `bson:"from_status" json:"from_status"`
	ToStatus   string              `bson:"to_status" json:"to_status"`
	ActorID    string              `bson:"actor_id" json:"actor_id"`
	ActorRole  Role                `bson:"actor_role" json:"actor_role"`
	At         time.Time           `bson:"at" json:"at"`
}
