package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type CategoryRef struct {
	ID   primitive.ObjectID `bson:"_id" json:"id"`
	Name string             `bson:"name" json:"name"`
	Slug string             `bson:"slug" json:"slug"`
}

type Category struct {
	ID        primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	Name      string               `bson:"name" json:"name"`
	Slug      string               `bson:"slug" json:"slug"`
	Parent    *primitive.ObjectID  `bson:"parent" json:"parent"`
	Children  []primitive.ObjectID `bson:"children" json:"children"`
	Ancestors []CategoryRef        `bson:"ancestors" json:"ancestors"`
	IsActive  bool                 `bson:"isActive" json:"isActive"`
	IsDeleted bool                 `bson:"isDeleted" json:"-"`
	CreatedAt time.Time            `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time            `bson:"updatedAt" json:"updatedAt"`
}
