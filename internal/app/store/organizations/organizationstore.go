// internal/app/store/organizations/organizationstore.go
package organizationstore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/grouphub/internal/app/store/syncfields"
	"github.com/dalemusser/grouphub/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	c *mongo.Collection
}

// ErrNotFound is returned when no organization matches the lookup.
var ErrNotFound = errors.New("organization not found")

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("organizations")}
}

// Fields carries the provider-sourced values an upsert knows about.
// Nil means "unknown", not "empty".
type Fields struct {
	Name *string
	Slug *string
}

func (f Fields) known() map[string]*string {
	return map[string]*string{"name": f.Name, "slug": f.Slug}
}

// Upsert atomically inserts the organization for externalID if absent and
// returns the stored document. In FillMissing mode an existing document is
// returned unchanged; in Overwrite mode the known fields are written.
//
// Two concurrent upserts for the same external id can both miss and race on
// insert; the unique index on external_id makes the loser fail with E11000,
// and a single retry then matches the winner's document.
func (s *Store) Upsert(ctx context.Context, externalID string, f Fields, mode syncfields.Mode) (models.Organization, error) {
	update := syncfields.Update(f.known(), mode, time.Now().UTC())
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var org models.Organization
	err := s.c.FindOneAndUpdate(ctx, bson.M{"external_id": externalID}, update, opts).Decode(&org)
	if err != nil && wafflemongo.IsDup(err) {
		err = s.c.FindOneAndUpdate(ctx, bson.M{"external_id": externalID}, update, opts).Decode(&org)
	}
	if err != nil {
		return models.Organization{}, err
	}
	return org, nil
}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.Organization, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

// GetByExternalID looks an organization up by its identity-provider id.
func (s *Store) GetByExternalID(ctx context.Context, externalID string) (models.Organization, error) {
	return s.findOne(ctx, bson.M{"external_id": externalID})
}

// GetBySlug returns the most recently updated organization with slug.
// Slugs are owned by the identity provider, so uniqueness is not enforced here.
func (s *Store) GetBySlug(ctx context.Context, slug string) (models.Organization, error) {
	var org models.Organization
	opts := options.FindOne().SetSort(bson.D{{Key: "updated_at", Value: -1}})
	if err := s.c.FindOne(ctx, bson.M{"slug": slug}, opts).Decode(&org); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Organization{}, ErrNotFound
		}
		return models.Organization{}, err
	}
	return org, nil
}

func (s *Store) findOne(ctx context.Context, filter bson.M) (models.Organization, error) {
	var org models.Organization
	if err := s.c.FindOne(ctx, filter).Decode(&org); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Organization{}, ErrNotFound
		}
		return models.Organization{}, err
	}
	return org, nil
}

// DeleteByExternalID removes the organization document only and returns it.
// Cascading to groups, memberships and posts is the caller's job (see orgsync).
func (s *Store) DeleteByExternalID(ctx context.Context, externalID string) (models.Organization, error) {
	var org models.Organization
	if err := s.c.FindOneAndDelete(ctx, bson.M{"external_id": externalID}).Decode(&org); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Organization{}, ErrNotFound
		}
		return models.Organization{}, err
	}
	return org, nil
}

// Count returns the number of organizations.
func (s *Store) Count(ctx context.Context) (int64, error) {
	return s.c.CountDocuments(ctx, bson.M{})
}
