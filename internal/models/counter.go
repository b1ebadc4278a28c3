package models

import "go.mongodb.org/mongo-driver/bson/primitive"

type Counter struct {
	ID   primitive.ObjectID `bson:"_id,omitempty" json:"-"`
	Name string             `bson:"id" json:"id"`
	Seq  int64              `bson:"seq" json:"seq"`
}
