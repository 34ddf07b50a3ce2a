// internal/domain/models/post.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Post is content published into a group.
type Post struct {
	ID        primitive.ObjectID `bson:"_id" json:"id"`
	GroupID   primitive.ObjectID `bson:"group_id" json:"group_id"`
	OrgID     primitive.ObjectID `bson:"org_id" json:"org_id"`
	AuthorID  primitive.ObjectID `bson:"author_id,omitempty" json:"author_id,omitempty"`
	Title     string             `bson:"title" json:"title"`
	Content   string             `bson:"content" json:"content"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
}

// PostWithGroup is a post joined with the group it belongs to, used by the
// organization-wide feed.
type PostWithGroup struct {
	Post  `bson:",inline"`
	Group Group `bson:"group" json:"group"`
}
