package userstore

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dalemusser/prayerodyssey/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrNotFound is returned when no profile exists for a uid.
var ErrNotFound = errors.New("user not found")

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("users")}
}

// Get loads a profile by uid.
func (s *Store) Get(ctx context.Context, uid string) (models.User, error) {
	var u models.User
	if err := s.c.FindOne(ctx, bson.M{"_id": uid}).Decode(&u); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.User{}, ErrNotFound
		}
		return models.User{}, err
	}
	return u, nil
}

// DisplayName returns the stored display name, or "" when the profile or
// the name is missing.
func (s *Store) DisplayName(ctx context.Context, uid string) (string, error) {
	var row struct {
		DisplayName string `bson:"displayName"`
	}
	opts := options.FindOne().SetProjection(bson.M{"displayName": 1})
	err := s.c.FindOne(ctx, bson.M{"_id": uid}, opts).Decode(&row)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return row.DisplayName, nil
}

// EnsureProfile creates the profile if missing and refreshes the display
// name when one is given. It never fails because the document is absent.
func (s *Store) EnsureProfile(ctx context.Context, uid, displayName string) error {
	now := time.Now().UTC()
	set := bson.M{"updatedAt": now}
	if name := strings.TrimSpace(displayName); name != "" {
		set["displayName"] = name
	}
	_, err := s.c.UpdateOne(ctx,
		bson.M{"_id": uid},
		bson.M{
			"$set":         set,
			"$setOnInsert": bson.M{"createdAt": now},
		},
		options.Update().SetUpsert(true),
	)
	return err
}

// AddGroup records groupID on the user's profile (set semantics, upsert).
func (s *Store) AddGroup(ctx context.Context, uid string, groupID primitive.ObjectID) error {
	now := time.Now().UTC()
	_, err := s.c.UpdateOne(ctx,
		bson.M{"_id": uid},
		bson.M{
			"$addToSet":    bson.M{"groups": groupID},
			"$set":         bson.M{"updatedAt": now},
			"$setOnInsert": bson.M{"createdAt": now},
		},
		options.Update().SetUpsert(true),
	)
	return err
}
