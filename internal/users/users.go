// Package users stores accounts and applies profile changes.
package users

import (
	"context"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/apperr"
	"storefront/internal/models"
)

var (
	ErrNotFound      = apperr.NotFound("user not found")
	ErrAlreadyExists = apperr.Conflict("an account with this email or phone already exists").WithReason("USER_EXISTS")
)

type Store interface {
	// FindByID and FindByLogin return nil, nil when nothing matches.
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	FindByLogin(ctx context.Context, email, phone string) (*models.User, error)
	Exists(ctx context.Context, email, phone string) (bool, error)
	// Insert returns ErrAlreadyExists on a unique index violation.
	Insert(ctx context.Context, user *models.User) error
	SetPassword(ctx context.Context, id primitive.ObjectID, hash string) error
	Update(ctx context.Context, id primitive.ObjectID, set bson.M) (*models.User, error)
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// New builds a user with empty history and cart so later $push updates work.
func New(name, email, phone, passwordHash string, now time.Time) *models.User {
	return &models.User{
		ID:           primitive.NewObjectID(),
		Name:         strings.TrimSpace(name),
		Email:        NormalizeEmail(email),
		Phone:        strings.TrimSpace(phone),
		PasswordHash: passwordHash,
		Orders:       []primitive.ObjectID{},
		Payments:     []primitive.ObjectID{},
		Cart:         []models.LineItem{},
		Role:         models.RoleUser,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// ProfileUpdate lists the fields a user may change on their own record.
type ProfileUpdate struct {
	Name                *string `json:"name"`
	Pfp                 *string `json:"pfp"`
	Phone               *string `json:"phone"`
	Phone2              *string `json:"phone2"`
	Address             *string `json:"address"`
	District            *string `json:"district"`
	City                *string `json:"city"`
	DeliverInstructions *string `json:"deliverInstructions"`
}

func (u ProfileUpdate) Set(now time.Time) (bson.M, error) {
	set := bson.M{}
	fields := []struct {
		key      string
		value    *string
		required bool
	}{
		{"name", u.Name, true},
		{"pfp", u.Pfp, false},
		{"phone", u.Phone, true},
		{"phone2", u.Phone2, false},
		{"address", u.Address, false},
		{"district", u.District, false},
		{"city", u.City, false},
		{"deliver_instructions", u.DeliverInstructions, false},
	}
	for _, f := range fields {
		if f.value == nil {
			continue
		}
		v := strings.TrimSpace(*f.value)
		if f.required && v == "" {
			return nil, apperr.BadRequest("%s cannot be empty", f.key)
		}
		set[f.key] = v
	}
	if len(set) == 0 {
		return nil, apperr.BadRequest("no fields to update")
	}
	set["updatedAt"] = now
	return set, nil
}
