// internal/app/store/prayers/prayerstore.go
package prayerstore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/prayerodyssey/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	c *mongo.Collection
}

var (
	ErrNotFound     = errors.New("prayer not found")
	ErrEmptySummary = errors.New("prayer summary is required")
)

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("prayers")}
}

// Collection exposes the underlying collection for change streams.
func (s *Store) Collection() *mongo.Collection { return s.c }

func (s *Store) Get(ctx context.Context, id primitive.ObjectID) (models.Prayer, error) {
	var p models.Prayer
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&p); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Prayer{}, ErrNotFound
		}
		return models.Prayer{}, err
	}
	return p, nil
}

// Create inserts a new active prayer. ID, Status, CreatedAt, PrayedBy and
// PrayedCount are assigned here regardless of what the caller passed.
func (s *Store) Create(ctx context.Context, p models.Prayer) (models.Prayer, error) {
	if p.Summary == "" {
		return models.Prayer{}, ErrEmptySummary
	}
	p.ID = primitive.NewObjectID()
	p.Status = models.PrayerActive
	if p.SharedWith == nil {
		p.SharedWith = []primitive.ObjectID{}
	}
	p.PrayedBy = []string{}
	p.PrayedCount = 0
	p.CreatedAt = time.Now().UTC()
	p.UpdatedAt = nil

	if _, err := s.c.InsertOne(ctx, p); err != nil {
		return models.Prayer{}, err
	}
	return p, nil
}

// ListByOwner returns every prayer owned by ownerID, newest first.
func (s *Store) ListByOwner(ctx context.Context, ownerID string) ([]models.Prayer, error) {
	return s.find(ctx, bson.M{"ownerId": ownerID})
}

// ListSharedWith returns prayers shared with any of groupIDs, newest first.
// An empty groupIDs yields an empty list without querying.
func (s *Store) ListSharedWith(ctx context.Context, groupIDs []primitive.ObjectID) ([]models.Prayer, error) {
	if len(groupIDs) == 0 {
		return []models.Prayer{}, nil
	}
	return s.find(ctx, bson.M{"sharedWith": bson.M{"$in": groupIDs}})
}

func (s *Store) find(ctx context.Context, filter bson.M) ([]models.Prayer, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}})
	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []models.Prayer{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SetSharing replaces sharedWith on a prayer owned by ownerID and returns
// the document as it was before the write, so callers can diff the group
// set. Returns ErrNotFound when no prayer matches both id and owner.
func (s *Store) SetSharing(ctx context.Context, id primitive.ObjectID, ownerID string, groupIDs []primitive.ObjectID) (models.Prayer, error) {
	if groupIDs == nil {
		groupIDs = []primitive.ObjectID{}
	}
	update := bson.M{"$set": bson.M{
		"sharedWith": groupIDs,
		"updatedAt":  time.Now().UTC(),
	}}
	return s.findOneAndUpdate(ctx, bson.M{"_id": id, "ownerId": ownerID}, update, options.Before)
}

// SetStatus sets the status of a prayer owned by ownerID and returns the
// document as it was before the write. Of several concurrent calls setting
// the same status exactly one observes a different previous status.
func (s *Store) SetStatus(ctx context.Context, id primitive.ObjectID, ownerID, status string) (models.Prayer, error) {
	now := time.Now().UTC()
	update := bson.M{"$set": bson.M{
		"status":    status,
		"updatedAt": now,
	}}
	return s.findOneAndUpdate(ctx, bson.M{"_id": id, "ownerId": ownerID}, update, options.Before)
}

// AddPrayedBy adds uid to prayedBy and recomputes prayedCount from the
// resulting set in the same pipeline update, so the count always equals the
// set size. added reports whether uid was not already present.
func (s *Store) AddPrayedBy(ctx context.Context, id primitive.ObjectID, uid string) (p models.Prayer, added bool, err error) {
	current := bson.M{"$ifNull": bson.A{"$prayedBy", bson.A{}}}
	pipeline := mongo.Pipeline{
		{{Key: "$set", Value: bson.M{
			"prayedBy": bson.M{"$cond": bson.M{
				"if":   bson.M{"$in": bson.A{uid, current}},
				"then": current,
				"else": bson.M{"$concatArrays": bson.A{current, bson.A{uid}}},
			}},
		}}},
		{{Key: "$set", Value: bson.M{
			"prayedCount": bson.M{"$size": "$prayedBy"},
		}}},
	}

	before, err := s.findOneAndUpdate(ctx, bson.M{"_id": id}, pipeline, options.Before)
	if err != nil {
		return models.Prayer{}, false, err
	}

	added = true
	for _, v := range before.PrayedBy {
		if v == uid {
			added = false
			break
		}
	}
	p = before
	if added {
		p.PrayedBy = append(append([]string{}, before.PrayedBy...), uid)
	}
	p.PrayedCount = len(p.PrayedBy)
	return p, added, nil
}

// Delete removes a prayer owned by ownerID.
func (s *Store) Delete(ctx context.Context, id primitive.ObjectID, ownerID string) error {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id, "ownerId": ownerID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) findOneAndUpdate(ctx context.Context, filter bson.M, update interface{}, rd options.ReturnDocument) (models.Prayer, error) {
	var p models.Prayer
	opts := options.FindOneAndUpdate().SetReturnDocument(rd)
	if err := s.c.FindOneAndUpdate(ctx, filter, update, opts).Decode(&p); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Prayer{}, ErrNotFound
		}
		return models.Prayer{}, err
	}
	return p, nil
}
