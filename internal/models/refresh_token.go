package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// RefreshToken stores the bcrypt hash of a refresh secret, never the secret.
// A rotated token keeps RotatedAt and ReplacedBy until the TTL index purges it,
// so a replay can still be traced back to its owner.
type RefreshToken struct {
	ID         primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	UserID     primitive.ObjectID  `bson:"userId" json:"userId"`
	TokenHash  string              `bson:"tokenHash" json:"-"`
	ExpiresAt  time.Time           `bson:"expiresAt" json:"expiresAt"`
	Revoked    bool                `bson:"revoked" json:"revoked"`
	RotatedAt  *time.Time          `bson:"rotatedAt,omitempty" json:"rotatedAt,omitempty"`
	ReplacedBy *primitive.ObjectID `bson:"replacedBy,omitempty" json:"replacedBy,omitempty"`
	CreatedAt  time.Time           `bson:"createdAt" json:"createdAt"`
	UpdatedAt  time.Time           `bson:"updatedAt" json:"updatedAt"`
}
