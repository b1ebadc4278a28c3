package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User represents the application user account. Cart holds the server side
// cart used as the authoritative item source at checkout.
type User struct {
	ID                  primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	Name                string               `bson:"name" json:"name"`
	Pfp                 string               `bson:"pfp,omitempty" json:"pfp,omitempty"`
	Email               string               `bson:"email" json:"email"`
	Phone               string               `bson:"phone" json:"phone"`
	Phone2              string               `bson:"phone2,omitempty" json:"phone2,omitempty"`
	PasswordHash        string               `bson:"password" json:"-"`
	Address             string               `bson:"address,omitempty" json:"address,omitempty"`
	District            string               `bson:"district,omitempty" json:"district,omitempty"`
	City                string               `bson:"city,omitempty" json:"city,omitempty"`
	DeliverInstructions string               `bson:"deliver_instructions,omitempty" json:"deliverInstructions,omitempty"`
	Orders              []primitive.ObjectID `bson:"orders" json:"orders"`
	Payments            []primitive.ObjectID `bson:"payments" json:"payments"`
	Cart                []LineItem           `bson:"cart" json:"cart"`
	Role                string               `bson:"role" json:"role"`
	CreatedAt           time.Time            `bson:"createdAt" json:"createdAt"`
	UpdatedAt           time.Time            `bson:"updatedAt" json:"updatedAt"`
}

func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
