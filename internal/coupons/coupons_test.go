package coupons

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/models"
)

func activeCoupon(now time.Time) *models.Coupon {
	return &models.Coupon{
		Code:           "SAVE10",
		DiscountType:   models.DiscountPercentage,
		DiscountValue:  10,
		MinOrderAmount: 100,
		UsageLimit:     5,
		IsActive:       true,
		ValidFrom:      now.Add(-time.Hour),
		ValidUntil:     now.Add(time.Hour),
	}
}

func ptr(v float64) *float64 { return &v }

func TestApplyPercentage(t *testing.T) {
	now := time.Now()
	discount, err := Apply(activeCoupon(now), 1000, now)
	require.NoError(t, err)
	assert.Equal(t, 100.0, discount)
}

func TestDiscountCapAndClamp(t *testing.T) {
	now := time.Now()

	c := activeCoupon(now)
	c.MaxDiscountAmount = ptr(50)
	assert.Equal(t, 50.0, Discount(c, 1000))

	fixed := activeCoupon(now)
	fixed.DiscountType = models.DiscountFixed
	fixed.DiscountValue = 500
	assert.Equal(t, 120.0, Discount(fixed, 120))

	assert.Equal(t, 0.0, Discount(fixed, 0))
}

func TestDiscountStaysInRange(t *testing.T) {
	now := time.Now()
	subtotals := []float64{100, 100.01, 333.33, 999.99, 12345.67}
	values := []float64{1, 7.5, 33, 99, 100}
	caps := []*float64{nil, ptr(1), ptr(25), ptr(100000)}

	for _, s := range subtotals {
		for _, v := range values {
			for _, cp := range caps {
				for _, kind := range []string{models.DiscountPercentage, models.DiscountFixed} {
					c := activeCoupon(now)
					c.DiscountType = kind
					c.DiscountValue = v
					c.MaxDiscountAmount = cp

					d := Discount(c, s)
					assert.GreaterOrEqual(t, d, 0.0)
					assert.LessOrEqual(t, d, s)
					if cp != nil {
						assert.LessOrEqual(t, d, *cp)
					}
				}
			}
		}
	}
}

func TestCheckReasons(t *testing.T) {
	now := time.Now()

	inactive := activeCoupon(now)
	inactive.IsActive = false
	assert.True(t, errors.Is(Check(inactive, 1000, now), ErrInactive))

	future := activeCoupon(now)
	future.ValidFrom = now.Add(time.Minute)
	assert.True(t, errors.Is(Check(future, 1000, now), ErrNotYetValid))

	expired := activeCoupon(now)
	expired.ValidUntil = now.Add(-time.Minute)
	assert.True(t, errors.Is(Check(expired, 1000, now), ErrExpired))

	used := activeCoupon(now)
	used.UsedCount = used.UsageLimit
	assert.True(t, errors.Is(Check(used, 1000, now), ErrUsageReached))

	err := Check(activeCoupon(now), 99, now)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMinimumOrder))
	assert.Contains(t, err.Error(), "minimum order amount of 100 required")
}

func TestValidateDefinition(t *testing.T) {
	now := time.Now()
	assert.NoError(t, ValidateDefinition(activeCoupon(now)))

	bad := activeCoupon(now)
	bad.ValidUntil = bad.ValidFrom
	assert.Error(t, ValidateDefinition(bad))

	bad = activeCoupon(now)
	bad.DiscountValue = 120
	assert.Error(t, ValidateDefinition(bad))

	bad = activeCoupon(now)
	bad.DiscountType = "bogus"
	assert.Error(t, ValidateDefinition(bad))

	bad = activeCoupon(now)
	bad.UsageLimit = 0
	assert.Error(t, ValidateDefinition(bad))
}

func TestNormalizeCode(t *testing.T) {
	assert.Equal(t, "SAVE10", NormalizeCode("  save10 "))
}
