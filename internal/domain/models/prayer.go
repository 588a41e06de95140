// internal/domain/models/prayer.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Prayer statuses.
const (
	PrayerActive   = "active"
	PrayerAnswered = "answered"
	PrayerArchived = "archived"
)

// Prayer is a personal prayer request, optionally shared with groups.
//
// PrayedCount is always written in the same update as PrayedBy and equals
// len(PrayedBy).
type Prayer struct {
	ID          primitive.ObjectID   `bson:"_id" json:"id"`
	Summary     string               `bson:"summary" json:"summary"`
	Description string               `bson:"description,omitempty" json:"description,omitempty"`
	OwnerID     string               `bson:"ownerId" json:"ownerId"`
	Status      string               `bson:"status" json:"status"`
	SharedWith  []primitive.ObjectID `bson:"sharedWith" json:"sharedWith"`
	PrayedBy    []string             `bson:"prayedBy" json:"prayedBy"`
	PrayedCount int                  `bson:"prayedCount" json:"prayedCount"`

	CreatedAt time.Time  `bson:"createdAt" json:"createdAt"`
	UpdatedAt *time.Time `bson:"updatedAt,omitempty" json:"updatedAt,omitempty"`
}

// PrayerUpdate is a follow-up note posted on a prayer.
type PrayerUpdate struct {
	ID       primitive.ObjectID `bson:"_id" json:"id"`
	PrayerID primitive.ObjectID `bson:"prayerId" json:"prayerId"`
	Content  string             `bson:"content" json:"content"`
	AuthorID string             `bson:"authorId" json:"authorId"`

	CreatedAt time.Time  `bson:"createdAt" json:"createdAt"`
	UpdatedAt *time.Time `bson:"updatedAt,omitempty" json:"updatedAt,omitempty"`
}
