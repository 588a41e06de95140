// internal/domain/models/notification.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Notification types.
const (
	NotifPrayerReaction = "prayer_reaction"
	NotifPrayerUpdate   = "prayer_update"
	NotifPrayerAnswered = "prayer_answered"
	NotifPrayerShared   = "prayer_shared"
	NotifGroupInvite    = "group_invite"
)

// Notification is a persisted, per-receiver notification record.
// After creation only the receiver may flip Read or delete it.
type Notification struct {
	ID            primitive.ObjectID  `bson:"_id" json:"id"`
	ReceiverID    string              `bson:"receiverId" json:"receiverId"`
	SenderID      string              `bson:"senderId" json:"senderId"`
	SenderName    string              `bson:"senderName" json:"senderName"`
	Type          string              `bson:"type" json:"type"`
	PrayerID      *primitive.ObjectID `bson:"prayerId,omitempty" json:"prayerId,omitempty"`
	PrayerSummary string              `bson:"prayerSummary,omitempty" json:"prayerSummary,omitempty"`
	GroupID       *primitive.ObjectID `bson:"groupId,omitempty" json:"groupId,omitempty"`
	GroupName     string              `bson:"groupName,omitempty" json:"groupName,omitempty"`
	Read          bool                `bson:"read" json:"read"`

	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
}
