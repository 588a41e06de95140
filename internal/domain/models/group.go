// internal/domain/models/group.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Group is a set of users that prayers can be shared with.
//
// NOTE:
//   - Members is maintained as a set via $addToSet; Admins ⊆ Members is
//     intended but not enforced.
//   - Membership is embedded on the group and mirrored on User.Groups.
type Group struct {
	ID          primitive.ObjectID `bson:"_id" json:"id"`
	Name        string             `bson:"name" json:"name"`
	NameCI      string             `bson:"name_ci" json:"-"`
	Description string             `bson:"description" json:"description"`
	Admins      []string           `bson:"admins" json:"admins"`
	Members     []string           `bson:"members" json:"members"`

	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
}
