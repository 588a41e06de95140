// internal/app/store/notifications/notificationstore.go
package notificationstore

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

// Collection is the Mongo collection holding notification records.
const Collection = "notifications"

type Store struct {
	c *mongo.Collection
}

var ErrNotFound = errors.New("notification not found")

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection(Collection)}
}

// Collection exposes the underlying collection for change streams.
func (s *Store) Collection() *mongo.Collection { return s.c }

// Path returns the external document path of n.
func Path(n models.Notification) string {
	return Collection + "/" + n.ID.Hex()
}

func stamp(n *models.Notification, now time.Time) {
	n.ID = primitive.NewObjectID()
	n.Read = false
	n.CreatedAt = now
}

// Create inserts one unread notification with a server timestamp.
func (s *Store) Create(ctx context.Context, n models.Notification) (models.Notification, error) {
	stamp(&n, time.Now().UTC())
	if _, err := s.c.InsertOne(ctx, n); err != nil {
		return models.Notification{}, err
	}
	return n, nil
}

// CreateMany inserts ns in one unordered batch. Every record gets the same
// server timestamp. On a partial failure the records that were written are
// returned together with the error; nothing is rolled back.
func (s *Store) CreateMany(ctx context.Context, ns []models.Notification) ([]models.Notification, error) {
	if len(ns) == 0 {
		return nil, nil
	}

	now := time.Now().UTC()
	docs := make([]interface{}, len(ns))
	out := make([]models.Notification, len(ns))
	for i := range ns {
		n := ns[i]
		stamp(&n, now)
		out[i] = n
		docs[i] = n
	}

	_, err := s.c.InsertMany(ctx, docs, options.InsertMany().SetOrdered(false))
	if err == nil {
		return out, nil
	}

	var bwe mongo.BulkWriteException
	if !errors.As(err, &bwe) {
		return nil, err
	}
	failed := make(map[int]struct{}, len(bwe.WriteErrors))
	for _, we := range bwe.WriteErrors {
		failed[we.Index] = struct{}{}
	}
	written := make([]models.Notification, 0, len(out)-len(failed))
	for i, n := range out {
		if _, bad := failed[i]; !bad {
			written = append(written, n)
		}
	}
	return written, err
}

func (s *Store) Get(ctx context.Context, id primitive.ObjectID, receiverID string) (models.Notification, error) {
	var n models.Notification
	if err := s.c.FindOne(ctx, bson.M{"_id": id, "receiverId": receiverID}).Decode(&n); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Notification{}, ErrNotFound
		}
		return models.Notification{}, err
	}
	return n, nil
}

// GetByID loads a notification without receiver scoping. Only the push
// trigger uses it.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.Notification, error) {
	var n models.Notification
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&n); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Notification{}, ErrNotFound
		}
		return models.Notification{}, err
	}
	return n, nil
}

// List returns every notification for receiverID, newest first. Records
// sharing a timestamp fall back to insertion order via _id.
func (s *Store) List(ctx context.Context, receiverID string) ([]models.Notification, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}})
	cur, err := s.c.Find(ctx, bson.M{"receiverId": receiverID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []models.Notification{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) UnreadCount(ctx context.Context, receiverID string) (int64, error) {
	return s.c.CountDocuments(ctx, bson.M{"receiverId": receiverID, "read": false})
}

// MarkRead flips read on one of receiverID's notifications. Marking an
// already-read notification succeeds.
func (s *Store) MarkRead(ctx context.Context, id primitive.ObjectID, receiverID string) error {
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": id, "receiverId": receiverID},
		bson.M{"$set": bson.M{"read": true}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkAllRead marks every unread notification of receiverID as read and
// returns how many changed.
func (s *Store) MarkAllRead(ctx context.Context, receiverID string) (int64, error) {
	res, err := s.c.UpdateMany(ctx,
		bson.M{"receiverId": receiverID, "read": false},
		bson.M{"$set": bson.M{"read": true}},
	)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

func (s *Store) Delete(ctx context.Context, id primitive.ObjectID, receiverID string) error {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id, "receiverId": receiverID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// ClearAll deletes every notification of receiverID in one operation.
func (s *Store) ClearAll(ctx context.Context, receiverID string) (int64, error) {
	res, err := s.c.DeleteMany(ctx, bson.M{"receiverId": receiverID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// WatchPipeline matches change events that can affect receiverID's list.
// Deletes carry no document body, so every delete is passed through and
// the consumer reloads.
func WatchPipeline(receiverID string) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"$or": bson.A{
			bson.M{"fullDocument.receiverId": receiverID},
			bson.M{"operationType": "delete"},
		}}}},
	}
}
