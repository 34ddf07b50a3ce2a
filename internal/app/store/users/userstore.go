package userstore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/grouphub/internal/app/store/syncfields"
	"github.com/dalemusser/grouphub/internal/app/system/normalize"
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

// ErrNotFound is returned when no user matches the lookup.
var ErrNotFound = errors.New("user not found")

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("users")}
}

// Fields carries the provider-sourced values an upsert knows about.
// Nil means "unknown"; the name and email are normalized before writing.
type Fields struct {
	Name  *string
	Email *string
}

func (f Fields) known() map[string]*string {
	m := map[string]*string{"name": nil, "email": nil}
	if f.Name != nil {
		n := normalize.Name(*f.Name)
		m["name"] = &n
	}
	if f.Email != nil {
		e := normalize.Email(*f.Email)
		m["email"] = &e
	}
	return m
}

// Upsert atomically inserts the user for externalID if absent and returns the
// stored document. FillMissing leaves an existing user untouched; Overwrite
// writes every known field. A duplicate-key failure from a concurrent insert
// is retried once.
func (s *Store) Upsert(ctx context.Context, externalID string, f Fields, mode syncfields.Mode) (models.User, error) {
	update := syncfields.Update(f.known(), mode, time.Now().UTC())
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var u models.User
	err := s.c.FindOneAndUpdate(ctx, bson.M{"external_id": externalID}, update, opts).Decode(&u)
	if err != nil && wafflemongo.IsDup(err) {
		err = s.c.FindOneAndUpdate(ctx, bson.M{"external_id": externalID}, update, opts).Decode(&u)
	}
	if err != nil {
		return models.User{}, err
	}
	return u, nil
}

// GetByID loads a user by ObjectID.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.User, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

// GetByIDs loads the users among ids. Unknown ids are skipped.
func (s *Store) GetByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	cur, err := s.c.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.User
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetByExternalID loads a user by identity-provider id.
func (s *Store) GetByExternalID(ctx context.Context, externalID string) (models.User, error) {
	return s.findOne(ctx, bson.M{"external_id": externalID})
}

func (s *Store) findOne(ctx context.Context, filter bson.M) (models.User, error) {
	var u models.User
	if err := s.c.FindOne(ctx, filter).Decode(&u); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.User{}, ErrNotFound
		}
		return models.User{}, err
	}
	return u, nil
}

// DeleteByExternalID removes the user document and returns it. Memberships
// are removed by the caller.
func (s *Store) DeleteByExternalID(ctx context.Context, externalID string) (models.User, error) {
	var u models.User
	if err := s.c.FindOneAndDelete(ctx, bson.M{"external_id": externalID}).Decode(&u); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.User{}, ErrNotFound
		}
		return models.User{}, err
	}
	return u, nil
}

// Count returns the number of users.
func (s *Store) Count(ctx context.Context) (int64, error) {
	return s.c.CountDocuments(ctx, bson.M{})
}
