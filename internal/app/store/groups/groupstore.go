// internal/app/store/groups/groupstore.go
package groupstore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/grouphub/internal/app/system/txn"
	"github.com/dalemusser/grouphub/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

type Store struct {
	c           *mongo.Collection
	memberships *mongo.Collection
	posts       *mongo.Collection
	log         *zap.Logger
}

var (
	ErrDuplicateGroupSlug = errors.New("a group with this slug already exists within this organization")
	ErrNotFound           = errors.New("group not found")
)

func New(db *mongo.Database) *Store {
	return &Store{
		c:           db.Collection("groups"),
		memberships: db.Collection("group_memberships"),
		posts:       db.Collection("posts"),
		log:         zap.L(),
	}
}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.Group, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

// GetByOrgAndSlug resolves a group by its per-organization slug.
func (s *Store) GetByOrgAndSlug(ctx context.Context, orgID primitive.ObjectID, slug string) (models.Group, error) {
	return s.findOne(ctx, bson.M{"organization_id": orgID, "slug": slug})
}

func (s *Store) findOne(ctx context.Context, filter bson.M) (models.Group, error) {
	var g models.Group
	if err := s.c.FindOne(ctx, filter).Decode(&g); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Group{}, ErrNotFound
		}
		return models.Group{}, err
	}
	return g, nil
}

// SlugTaken reports whether slug is used by another group in orgID.
// exclude is ignored when nil; pass the group's own id on update.
//
// This is an advisory check for friendly error messages. The unique index
// uniq_group_org_slug is what actually guarantees uniqueness.
func (s *Store) SlugTaken(ctx context.Context, orgID primitive.ObjectID, slug string, exclude *primitive.ObjectID) (bool, error) {
	filter := bson.M{"organization_id": orgID, "slug": slug}
	if exclude != nil {
		filter["_id"] = bson.M{"$ne": *exclude}
	}
	err := s.c.FindOne(ctx, filter, options.FindOne().SetProjection(bson.M{"_id": 1})).Err()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) Create(ctx context.Context, g models.Group) (models.Group, error) {
	now := time.Now().UTC()
	g.ID = primitive.NewObjectID()
	g.CreatedAt = now
	g.UpdatedAt = now
	_, err := s.c.InsertOne(ctx, g)
	if err != nil {
		if wafflemongo.IsDup(err) {
			return models.Group{}, ErrDuplicateGroupSlug
		}
		return models.Group{}, err
	}
	return g, nil
}

// ListByOrg returns every group in an organization ordered by name.
func (s *Store) ListByOrg(ctx context.Context, orgID primitive.ObjectID) ([]models.Group, error) {
	return s.find(ctx, bson.M{"organization_id": orgID})
}

// ListByIDs returns the groups with the given ids, ordered by name.
func (s *Store) ListByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Group, error) {
	if len(ids) == 0 {
		return []models.Group{}, nil
	}
	return s.find(ctx, bson.M{"_id": bson.M{"$in": ids}})
}

func (s *Store) find(ctx context.Context, filter bson.M) ([]models.Group, error) {
	opts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	groups := []models.Group{}
	if err := cur.All(ctx, &groups); err != nil {
		return nil, err
	}
	return groups, nil
}

// LogoAction says what an update does with the group's logo.
type LogoAction int

const (
	LogoKeep LogoAction = iota
	LogoClear
	LogoReplace
)

// Update describes a settings change. Empty Name/Slug keep the current value.
type Update struct {
	Name    string
	Slug    string
	Logo    LogoAction
	LogoURL string // used with LogoReplace
}

// Update applies u to the group and returns the stored result.
func (s *Store) Update(ctx context.Context, id primitive.ObjectID, u Update) (models.Group, error) {
	set := bson.M{"updated_at": time.Now().UTC()}
	unset := bson.M{}
	if u.Name != "" {
		set["name"] = u.Name
	}
	if u.Slug != "" {
		set["slug"] = u.Slug
	}
	switch u.Logo {
	case LogoClear:
		unset["logo_url"] = ""
	case LogoReplace:
		set["logo_url"] = u.LogoURL
	}

	update := bson.M{"$set": set}
	if len(unset) > 0 {
		update["$unset"] = unset
	}

	var g models.Group
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	if err := s.c.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&g); err != nil {
		if wafflemongo.IsDup(err) {
			return models.Group{}, ErrDuplicateGroupSlug
		}
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Group{}, ErrNotFound
		}
		return models.Group{}, err
	}
	return g, nil
}

// DeleteResult reports how many documents a cascading delete removed.
type DeleteResult struct {
	Groups      int64
	Memberships int64
	Posts       int64
}

// Delete removes a group together with its memberships and posts.
// Returns ErrNotFound when the group does not exist.
func (s *Store) Delete(ctx context.Context, id primitive.ObjectID) (DeleteResult, error) {
	var res DeleteResult
	err := txn.Run(ctx, s.c.Database().Client(), s.log, func(ctx context.Context) error {
		res = DeleteResult{}
		mr, err := s.memberships.DeleteMany(ctx, bson.M{"group_id": id})
		if err != nil {
			return err
		}
		pr, err := s.posts.DeleteMany(ctx, bson.M{"group_id": id})
		if err != nil {
			return err
		}
		gr, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
		if err != nil {
			return err
		}
		res.Memberships = mr.DeletedCount
		res.Posts = pr.DeletedCount
		res.Groups = gr.DeletedCount
		return nil
	})
	if err != nil {
		return DeleteResult{}, err
	}
	if res.Groups == 0 {
		return res, ErrNotFound
	}
	return res, nil
}

// DeleteByOrg removes every group of an organization with their memberships
// and posts.
func (s *Store) DeleteByOrg(ctx context.Context, orgID primitive.ObjectID) (DeleteResult, error) {
	var res DeleteResult
	err := txn.Run(ctx, s.c.Database().Client(), s.log, func(ctx context.Context) error {
		res = DeleteResult{}
		ids, err := s.idsByOrg(ctx, orgID)
		if err != nil {
			return err
		}
		if len(ids) > 0 {
			mr, err := s.memberships.DeleteMany(ctx, bson.M{"group_id": bson.M{"$in": ids}})
			if err != nil {
				return err
			}
			pr, err := s.posts.DeleteMany(ctx, bson.M{"group_id": bson.M{"$in": ids}})
			if err != nil {
				return err
			}
			res.Memberships = mr.DeletedCount
			res.Posts = pr.DeletedCount
		}
		gr, err := s.c.DeleteMany(ctx, bson.M{"organization_id": orgID})
		if err != nil {
			return err
		}
		res.Groups = gr.DeletedCount
		return nil
	})
	return res, err
}

func (s *Store) idsByOrg(ctx context.Context, orgID primitive.ObjectID) ([]primitive.ObjectID, error) {
	cur, err := s.c.Find(ctx, bson.M{"organization_id": orgID}, options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var ids []primitive.ObjectID
	for cur.Next(ctx) {
		var row struct {
			ID primitive.ObjectID `bson:"_id"`
		}
		if err := cur.Decode(&row); err != nil {
			return nil, err
		}
		ids = append(ids, row.ID)
	}
	return ids, cur.Err()
}

// CountByOrg returns the number of groups in an organization.
func (s *Store) CountByOrg(ctx context.Context, orgID primitive.ObjectID) (int64, error) {
	return s.c.CountDocuments(ctx, bson.M{"organization_id": orgID})
}

// Count returns the number of groups.
func (s *Store) Count(ctx context.Context) (int64, error) {
	return s.c.CountDocuments(ctx, bson.M{})
}
