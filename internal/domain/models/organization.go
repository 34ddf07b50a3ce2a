// internal/domain/models/organization.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Organization is the local mirror of an identity-provider organization.
// One per tenant; keyed by ExternalID.
type Organization struct {
	ID         primitive.ObjectID `bson:"_id" json:"id"`
	ExternalID string             `bson:"external_id" json:"external_id"` // identity provider org id
	Name       string             `bson:"name" json:"name"`
	Slug       string             `bson:"slug" json:"slug"`
	CreatedAt  time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt  time.Time          `bson:"updated_at" json:"updated_at"`
}
