package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/dalemusser/prayerodyssey/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// Fixtures provides helper methods for creating test data.
type Fixtures struct {
	db *mongo.Database
	t  *testing.T
}

// NewFixtures creates a new Fixtures instance for the given test database.
func NewFixtures(t *testing.T, db *mongo.Database) *Fixtures {
	t.Helper()
	return &Fixtures{db: db, t: t}
}

// DB returns the underlying database for direct access in tests.
func (f *Fixtures) DB() *mongo.Database {
	return f.db
}

// CreateUser creates a profile document with the given uid and name.
func (f *Fixtures) CreateUser(ctx context.Context, uid, displayName string) models.User {
	f.t.Helper()

	now := time.Now().UTC()
	u := models.User{
		ID:          uid,
		DisplayName: displayName,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if _, err := f.db.Collection("users").InsertOne(ctx, u); err != nil {
		f.t.Fatalf("failed to create test user: %v", err)
	}
	return u
}

// CreateGroup creates a group whose first member is its admin.
func (f *Fixtures) CreateGroup(ctx context.Context, name string, members ...string) models.Group {
	f.t.Helper()

	admins := []string{}
	if len(members) > 0 {
		admins = []string{members[0]}
	}
	if members == nil {
		members = []string{}
	}
	g := models.Group{
		ID:        primitive.NewObjectID(),
		Name:      name,
		NameCI:    text.Fold(name),
		Admins:    admins,
		Members:   members,
		CreatedAt: time.Now().UTC(),
	}
	if _, err := f.db.Collection("groups").InsertOne(ctx, g); err != nil {
		f.t.Fatalf("failed to create test group: %v", err)
	}
	return g
}

// CreatePrayer creates an active prayer owned by ownerID.
func (f *Fixtures) CreatePrayer(ctx context.Context, ownerID, summary string, sharedWith ...primitive.ObjectID) models.Prayer {
	f.t.Helper()

	if sharedWith == nil {
		sharedWith = []primitive.ObjectID{}
	}
	p := models.Prayer{
		ID:         primitive.NewObjectID(),
		Summary:    summary,
		OwnerID:    ownerID,
		Status:     models.PrayerActive,
		SharedWith: sharedWith,
		PrayedBy:   []string{},
		CreatedAt:  time.Now().UTC(),
	}
	if _, err := f.db.Collection("prayers").InsertOne(ctx, p); err != nil {
		f.t.Fatalf("failed to create test prayer: %v", err)
	}
	return p
}

// CreateNotification inserts an unread notification for receiverID.
func (f *Fixtures) CreateNotification(ctx context.Context, receiverID, senderID, typ string, createdAt time.Time) models.Notification {
	f.t.Helper()

	n := models.Notification{
		ID:         primitive.NewObjectID(),
		ReceiverID: receiverID,
		SenderID:   senderID,
		SenderName: "Sender " + senderID,
		Type:       typ,
		CreatedAt:  createdAt.UTC(),
	}
	if _, err := f.db.Collection("notifications").InsertOne(ctx, n); err != nil {
		f.t.Fatalf("failed to create test notification: %v", err)
	}
	return n
}
