// internal/app/store/prayerupdates/prayerupdatestore.go
package prayerupdatestore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dalemusser/prayerodyssey/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection is the Mongo collection holding prayer updates. Externally the
// documents are addressed as prayers/{prayerId}/updates/{id}.
const Collection = "prayer_updates"

type Store struct {
	c *mongo.Collection
}

var (
	ErrNotFound     = errors.New("prayer update not found")
	ErrEmptyContent = errors.New("update content is required")
)

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection(Collection)}
}

// Path returns the external document path of u.
func Path(u models.PrayerUpdate) string {
	return fmt.Sprintf("prayers/%s/updates/%s", u.PrayerID.Hex(), u.ID.Hex())
}

func (s *Store) Create(ctx context.Context, u models.PrayerUpdate) (models.PrayerUpdate, error) {
	if u.Content == "" {
		return models.PrayerUpdate{}, ErrEmptyContent
	}
	u.ID = primitive.NewObjectID()
	u.CreatedAt = time.Now().UTC()
	u.UpdatedAt = nil
	if _, err := s.c.InsertOne(ctx, u); err != nil {
		return models.PrayerUpdate{}, err
	}
	return u, nil
}

func (s *Store) Get(ctx context.Context, prayerID, id primitive.ObjectID) (models.PrayerUpdate, error) {
	var u models.PrayerUpdate
	if err := s.c.FindOne(ctx, bson.M{"_id": id, "prayerId": prayerID}).Decode(&u); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.PrayerUpdate{}, ErrNotFound
		}
		return models.PrayerUpdate{}, err
	}
	return u, nil
}

// ListByPrayer returns the updates of one prayer in posting order.
func (s *Store) ListByPrayer(ctx context.Context, prayerID primitive.ObjectID) ([]models.PrayerUpdate, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := s.c.Find(ctx, bson.M{"prayerId": prayerID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []models.PrayerUpdate{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SetContent replaces the content of an update and stamps updatedAt.
func (s *Store) SetContent(ctx context.Context, prayerID, id primitive.ObjectID, content string) (models.PrayerUpdate, error) {
	if content == "" {
		return models.PrayerUpdate{}, ErrEmptyContent
	}
	var u models.PrayerUpdate
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	update := bson.M{"$set": bson.M{"content": content, "updatedAt": time.Now().UTC()}}
	if err := s.c.FindOneAndUpdate(ctx, bson.M{"_id": id, "prayerId": prayerID}, update, opts).Decode(&u); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.PrayerUpdate{}, ErrNotFound
		}
		return models.PrayerUpdate{}, err
	}
	return u, nil
}

func (s *Store) Delete(ctx context.Context, prayerID, id primitive.ObjectID) error {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id, "prayerId": prayerID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteByPrayer removes every update of a prayer. Used when the prayer
// itself is deleted.
func (s *Store) DeleteByPrayer(ctx context.Context, prayerID primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteMany(ctx, bson.M{"prayerId": prayerID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
