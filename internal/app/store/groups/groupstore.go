// internal/app/store/groups/groupstore.go
package groupstore

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dalemusser/prayerodyssey/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	c *mongo.Collection
}

var (
	ErrNotFound  = errors.New("group not found")
	ErrEmptyName = errors.New("group name is required")
)

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("groups")}
}

// Collection exposes the underlying collection for change streams.
func (s *Store) Collection() *mongo.Collection { return s.c }

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.Group, error) {
	var g models.Group
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&g); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Group{}, ErrNotFound
		}
		return models.Group{}, err
	}
	return g, nil
}

// Create inserts g with a fresh ID. Admins and Members are stored as given;
// callers decide who the first admin is.
func (s *Store) Create(ctx context.Context, g models.Group) (models.Group, error) {
	g.Name = strings.TrimSpace(g.Name)
	if g.Name == "" {
		return models.Group{}, ErrEmptyName
	}
	g.ID = primitive.NewObjectID()
	g.NameCI = text.Fold(g.Name)
	g.Description = strings.TrimSpace(g.Description)
	if g.Admins == nil {
		g.Admins = []string{}
	}
	if g.Members == nil {
		g.Members = []string{}
	}
	g.CreatedAt = time.Now().UTC()
	if _, err := s.c.InsertOne(ctx, g); err != nil {
		return models.Group{}, err
	}
	return g, nil
}

// AddMember adds uid to the group's members. Adding an existing member is a
// no-op. Returns ErrNotFound if the group does not exist.
func (s *Store) AddMember(ctx context.Context, id primitive.ObjectID, uid string) error {
	res, err := s.c.UpdateByID(ctx, id, bson.M{"$addToSet": bson.M{"members": uid}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// ListForUser returns the groups uid belongs to, ordered by name.
func (s *Store) ListForUser(ctx context.Context, uid string) ([]models.Group, error) {
	opts := options.Find().SetSort(bson.D{{Key: "name_ci", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := s.c.Find(ctx, bson.M{"members": uid}, opts)
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

// IDsForUser returns only the IDs of the groups uid belongs to.
func (s *Store) IDsForUser(ctx context.Context, uid string) ([]primitive.ObjectID, error) {
	opts := options.Find().SetProjection(bson.M{"_id": 1}).SetSort(bson.D{{Key: "_id", Value: 1}})
	cur, err := s.c.Find(ctx, bson.M{"members": uid}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	ids := []primitive.ObjectID{}
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

// Members returns the member list of each existing group in ids. Groups
// that do not exist are simply absent from the result; duplicate ids are
// looked up once.
func (s *Store) Members(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID][]string, error) {
	out := make(map[primitive.ObjectID][]string)
	if len(ids) == 0 {
		return out, nil
	}

	seen := make(map[primitive.ObjectID]struct{}, len(ids))
	uniq := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		uniq = append(uniq, id)
	}

	opts := options.Find().SetProjection(bson.M{"members": 1})
	cur, err := s.c.Find(ctx, bson.M{"_id": bson.M{"$in": uniq}}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	for cur.Next(ctx) {
		var row struct {
			ID      primitive.ObjectID `bson:"_id"`
			Members []string           `bson:"members"`
		}
		if err := cur.Decode(&row); err != nil {
			return nil, err
		}
		out[row.ID] = row.Members
	}
	return out, cur.Err()
}
