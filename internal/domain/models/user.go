// internal/domain/models/user.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User is the profile document for one signed-in person.
//
// NOTE:
//   - _id is the uid issued by the auth provider, not an ObjectID.
//   - The document is created lazily by the first upsert that touches it;
//     there is no signup-time creation.
//   - FCMTokens keeps registration order (oldest first). FCMTokenInfo is
//     keyed by token and may be missing entries for legacy tokens.
type User struct {
	ID           string               `bson:"_id" json:"uid"`
	DisplayName  string               `bson:"displayName,omitempty" json:"displayName"`
	Groups       []primitive.ObjectID `bson:"groups,omitempty" json:"groups"`
	FCMTokens    []string             `bson:"fcmTokens,omitempty" json:"-"`
	FCMTokenInfo map[string]TokenInfo `bson:"fcmTokenInfo,omitempty" json:"-"`
	TokenRev     int64                `bson:"token_rev,omitempty" json:"-"` // bumped on every registry write

	CreatedAt time.Time `bson:"createdAt,omitempty" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt,omitempty" json:"updatedAt"`
}
