package coupons

import (
	"context"
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/apperr"
	"storefront/internal/models"
)

var ErrCodeTaken = apperr.Conflict("coupon code already exists").WithReason("COUPON_EXISTS")

// Store persists coupon definitions. Get returns nil, nil when the coupon is
// missing; Insert and Update return ErrCodeTaken on a duplicate code.
type Store interface {
	Insert(ctx context.Context, c *models.Coupon) error
	List(ctx context.Context, filter bson.M, page, limit int64) ([]models.Coupon, int64, error)
	Get(ctx context.Context, id primitive.ObjectID) (*models.Coupon, error)
	Update(ctx context.Context, c *models.Coupon) error
	Delete(ctx context.Context, id primitive.ObjectID) (bool, error)
}

type ListQuery struct {
	IsActive *bool
	Search   string
}

func (q ListQuery) Filter() bson.M {
	filter := bson.M{}
	if q.IsActive != nil {
		filter["isActive"] = *q.IsActive
	}
	if s := strings.TrimSpace(q.Search); s != "" {
		pattern := primitive.Regex{Pattern: regexp.QuoteMeta(s), Options: "i"}
		filter["$or"] = bson.A{bson.M{"code": pattern}, bson.M{"note": pattern}}
	}
	return filter
}

// Definition is the admin payload for creating a coupon and, with every
// field optional, for patching one.
type Definition struct {
	Code                 *string    `json:"code"`
	DiscountType         *string    `json:"discountType"`
	DiscountValue        *float64   `json:"discountValue"`
	MinOrderAmount       *float64   `json:"minOrderAmount"`
	MaxDiscountAmount    *float64   `json:"maxDiscountAmount"`
	ApplicableProducts   *[]string  `json:"applicableProducts"`
	ApplicableCategories *[]string  `json:"applicableCategories"`
	UsageLimit           *int       `json:"usageLimit"`
	PerUserLimit         *int       `json:"perUserLimit"`
	IsActive             *bool      `json:"isActive"`
	ValidFrom            *time.Time `json:"validFrom"`
	ValidUntil           *time.Time `json:"validUntil"`
	Note                 *string    `json:"note"`
}

// New builds a coupon from d. Required fields must be present.
func (d Definition) New(now time.Time) (*models.Coupon, error) {
	missing := []string{}
	if d.Code == nil {
		missing = append(missing, "code")
	}
	if d.DiscountType == nil {
		missing = append(missing, "discountType")
	}
	if d.DiscountValue == nil {
		missing = append(missing, "discountValue")
	}
	if d.UsageLimit == nil {
		missing = append(missing, "usageLimit")
	}
	if d.ValidFrom == nil {
		missing = append(missing, "validFrom")
	}
	if d.ValidUntil == nil {
		missing = append(missing, "validUntil")
	}
	if len(missing) > 0 {
		return nil, apperr.BadRequest("missing required coupon fields").WithDetails(missing)
	}

	c := &models.Coupon{
		ID:                   primitive.NewObjectID(),
		ApplicableProducts:   []primitive.ObjectID{},
		ApplicableCategories: []primitive.ObjectID{},
		Usages:               []models.CouponUsage{},
		IsActive:             true,
		CreatedAt:            now,
	}
	if err := d.Apply(c, now); err != nil {
		return nil, err
	}
	return c, nil
}

// Apply copies the fields present in d onto c and validates the result.
func (d Definition) Apply(c *models.Coupon, now time.Time) error {
	if d.Code != nil {
		c.Code = NormalizeCode(*d.Code)
	}
	if d.DiscountType != nil {
		c.DiscountType = strings.TrimSpace(*d.DiscountType)
	}
	if d.DiscountValue != nil {
		c.DiscountValue = *d.DiscountValue
	}
	if d.MinOrderAmount != nil {
		c.MinOrderAmount = *d.MinOrderAmount
	}
	if d.MaxDiscountAmount != nil {
		c.MaxDiscountAmount = d.MaxDiscountAmount
	}
	if d.ApplicableProducts != nil {
		ids, err := objectIDs(*d.ApplicableProducts, "applicableProducts")
		if err != nil {
			return err
		}
		c.ApplicableProducts = ids
	}
	if d.ApplicableCategories != nil {
		ids, err := objectIDs(*d.ApplicableCategories, "applicableCategories")
		if err != nil {
			return err
		}
		c.ApplicableCategories = ids
	}
	if d.UsageLimit != nil {
		c.UsageLimit = *d.UsageLimit
	}
	if d.PerUserLimit != nil {
		c.PerUserLimit = d.PerUserLimit
	}
	if d.IsActive != nil {
		c.IsActive = *d.IsActive
	}
	if d.ValidFrom != nil {
		c.ValidFrom = *d.ValidFrom
	}
	if d.ValidUntil != nil {
		c.ValidUntil = *d.ValidUntil
	}
	if d.Note != nil {
		c.Note = strings.TrimSpace(*d.Note)
	}
	c.UpdatedAt = now
	return ValidateDefinition(c)
}

func objectIDs(values []string, field string) ([]primitive.ObjectID, error) {
	out := make([]primitive.ObjectID, 0, len(values))
	for _, v := range values {
		id, err := primitive.ObjectIDFromHex(strings.TrimSpace(v))
		if err != nil {
			return nil, apperr.BadRequest("invalid id %q in %s", v, field)
		}
		out = append(out, id)
	}
	return out, nil
}
