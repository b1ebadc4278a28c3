// Package coupons holds the coupon rules used at checkout and by the validate endpoint.
package coupons

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"storefront/internal/apperr"
	"storefront/internal/models"
)

var (
	ErrNotFound     = apperr.NotFound("invalid coupon code").WithReason("COUPON_NOT_FOUND")
	ErrInactive     = apperr.BadRequest("coupon is not active").WithReason("COUPON_INACTIVE")
	ErrNotYetValid  = apperr.BadRequest("coupon is not yet valid").WithReason("COUPON_NOT_YET_VALID")
	ErrExpired      = apperr.BadRequest("coupon has expired").WithReason("COUPON_EXPIRED")
	ErrUsageReached = apperr.BadRequest("coupon usage limit reached").WithReason("COUPON_EXHAUSTED")
	ErrMinimumOrder = apperr.BadRequest("order amount below coupon minimum").WithReason("COUPON_MIN_ORDER")
)

func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Check reports why a coupon cannot be applied to subtotal at now, or nil.
func Check(c *models.Coupon, subtotal float64, now time.Time) error {
	if !c.IsActive {
		return ErrInactive
	}
	if now.Before(c.ValidFrom) {
		return ErrNotYetValid
	}
	if now.After(c.ValidUntil) {
		return ErrExpired
	}
	if c.UsedCount >= c.UsageLimit {
		return ErrUsageReached
	}
	if subtotal < c.MinOrderAmount {
		return apperr.BadRequest("minimum order amount of %s required", Money(c.MinOrderAmount)).
			WithReason(ErrMinimumOrder.Reason)
	}
	return nil
}

// Discount computes the discount for subtotal, capped by MaxDiscountAmount and
// never more than subtotal. Amounts are rounded to two decimals.
func Discount(c *models.Coupon, subtotal float64) float64 {
	total := decimal.NewFromFloat(subtotal)
	if !total.IsPositive() {
		return 0
	}

	var discount decimal.Decimal
	switch c.DiscountType {
	case models.DiscountPercentage:
		discount = total.Mul(decimal.NewFromFloat(c.DiscountValue)).Div(decimal.NewFromInt(100))
	default:
		discount = decimal.NewFromFloat(c.DiscountValue)
	}

	if c.MaxDiscountAmount != nil && *c.MaxDiscountAmount > 0 {
		discount = decimal.Min(discount, decimal.NewFromFloat(*c.MaxDiscountAmount))
	}
	discount = decimal.Min(discount, total)
	discount = decimal.Max(discount, decimal.Zero)

	f, _ := discount.Round(2).Float64()
	return f
}

// Apply runs Check and returns the discount.
func Apply(c *models.Coupon, subtotal float64, now time.Time) (float64, error) {
	if err := Check(c, subtotal, now); err != nil {
		return 0, err
	}
	return Discount(c, subtotal), nil
}

// ValidateDefinition checks a coupon before it is created or updated.
func ValidateDefinition(c *models.Coupon) error {
	if NormalizeCode(c.Code) == "" {
		return apperr.BadRequest("code is required")
	}
	switch c.DiscountType {
	case models.DiscountPercentage:
		if c.DiscountValue <= 0 || c.DiscountValue > 100 {
			return apperr.BadRequest("percentage discount must be between 0 and 100")
		}
	case models.DiscountFixed:
		if c.DiscountValue <= 0 {
			return apperr.BadRequest("fixed discount must be positive")
		}
	default:
		return apperr.BadRequest("discountType must be %q or %q", models.DiscountPercentage, models.DiscountFixed)
	}
	if c.MinOrderAmount < 0 {
		return apperr.BadRequest("minOrderAmount cannot be negative")
	}
	if c.MaxDiscountAmount != nil && *c.MaxDiscountAmount < 0 {
		return apperr.BadRequest("maxDiscountAmount cannot be negative")
	}
	if c.UsageLimit < 1 {
		return apperr.BadRequest("usageLimit must be at least 1")
	}
	if !c.ValidFrom.Before(c.ValidUntil) {
		return apperr.BadRequest("validFrom must be before validUntil")
	}
	return nil
}

// Money formats an amount without trailing zeros, e.g. 100 or 99.5.
func Money(v float64) string {
	return decimal.NewFromFloat(v).Round(2).String()
}
