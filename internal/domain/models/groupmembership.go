// internal/domain/models/groupmembership.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Group roles.
const (
	RoleMember = "member"
	RoleAdmin  = "admin"
)

// GroupRoles lists every role a membership may carry.
var GroupRoles = []string{RoleMember, RoleAdmin}

// IsGroupRole reports whether role is one of GroupRoles.
func IsGroupRole(role string) bool {
	for _, r := range GroupRoles {
		if r == role {
			return true
		}
	}
	return false
}

// GroupMembership is the authoritative join between users and groups.
// Exactly one document per (user_id, group_id); role is a scalar.
type GroupMembership struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	GroupID   primitive.ObjectID `bson:"group_id" json:"group_id"`
	UserID    primitive.ObjectID `bson:"user_id" json:"user_id"`
	OrgID     primitive.ObjectID `bson:"org_id" json:"org_id"`
	Role      string             `bson:"role" json:"role"` // "member" | "admin"
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
}

// MembershipWithUser is a membership joined with its user row, used for
// member listings.
type MembershipWithUser struct {
	GroupMembership `bson:",inline"`
	User            User `bson:"user" json:"user"`
}

// OrgMember is a single entry of an organization's member list as reported
// by the identity provider.
type OrgMember struct {
	UserID     string `json:"user_id"`
	Name       string `json:"name"`
	Email      string `json:"email,omitempty"`
	Role       string `json:"role"`
	ImageURL   string `json:"image_url,omitempty"`
	Identifier string `json:"identifier,omitempty"`
}
