// internal/domain/models/token.go
package models

import "time"

// TokenInfo is the device metadata stored next to a push token.
// CreatedAt is nil for tokens registered before metadata was recorded.
type TokenInfo struct {
	Platform  string     `bson:"platform,omitempty" json:"platform,omitempty"`
	UserAgent string     `bson:"userAgent,omitempty" json:"userAgent,omitempty"`
	IsPWA     bool       `bson:"isPWA" json:"isPWA"`
	CreatedAt *time.Time `bson:"createdAt,omitempty" json:"createdAt,omitempty"`
	LastUsed  *time.Time `bson:"lastUsed,omitempty" json:"lastUsed,omitempty"`
}
