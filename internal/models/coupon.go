package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	DiscountPercentage = "percentage"
	DiscountFixed      = "fixed"
)

type CouponUsage struct {
	UserID  *primitive.ObjectID `bson:"userId,omitempty" json:"userId,omitempty"`
	OrderID string              `bson:"orderId" json:"orderId"`
	UsedAt  time.Time           `bson:"usedAt" json:"usedAt"`
}

// CouponRedemption is the full usage history, one document per redemption.
// The coupon itself only keeps the most recent usages.
type CouponRedemption struct {
	ID       primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	CouponID primitive.ObjectID  `bson:"couponId" json:"couponId"`
	UserID   *primitive.ObjectID `bson:"userId,omitempty" json:"userId,omitempty"`
	OrderID  string              `bson:"orderId" json:"orderId"`
	UsedAt   time.Time           `bson:"usedAt" json:"usedAt"`
}

// Coupon is stored with an uppercased Code. MaxDiscountAmount and PerUserLimit
// are optional; ApplicableProducts, ApplicableCategories and PerUserLimit are
// persisted but not enforced at checkout.
type Coupon struct {
	ID                   primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	Code                 string               `bson:"code" json:"code"`
	DiscountType         string               `bson:"discountType" json:"discountType"`
	DiscountValue        float64              `bson:"discountValue" json:"discountValue"`
	MinOrderAmount       float64              `bson:"minOrderAmount" json:"minOrderAmount"`
	MaxDiscountAmount    *float64             `bson:"maxDiscountAmount,omitempty" json:"maxDiscountAmount,omitempty"`
	ApplicableProducts   []primitive.ObjectID `bson:"applicableProducts" json:"applicableProducts"`
	ApplicableCategories []primitive.ObjectID `bson:"applicableCategories" json:"applicableCategories"`
	UsageLimit           int                  `bson:"usageLimit" json:"usageLimit"`
	PerUserLimit         *int                 `bson:"perUserLimit,omitempty" json:"perUserLimit,omitempty"`
	UsedCount            int                  `bson:"usedCount" json:"usedCount"`
	Usages               []CouponUsage        `bson:"usages" json:"usages,omitempty"`
	IsActive             bool                 `bson:"isActive" json:"isActive"`
	ValidFrom            time.Time            `bson:"validFrom" json:"validFrom"`
	ValidUntil           time.Time            `bson:"validUntil" json:"validUntil"`
	Note                 string               `bson:"note,omitempty" json:"note,omitempty"`
	CreatedAt            time.Time            `bson:"createdAt" json:"createdAt"`
	UpdatedAt            time.Time            `bson:"updatedAt" json:"updatedAt"`
}
