package orders

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"storefront/internal/models"
)

func TestPaymentStateUpdateConfirmsPendingOrders(t *testing.T) {
	now := time.Now()

	set, ok := paymentStateUpdate(&models.Order{Status: models.OrderPending, PaymentStatus: models.PaymentStatusPending}, models.PaymentStatusPaid, now)
	assert.True(t, ok)
	assert.Equal(t, models.PaymentStatusPaid, set["paymentStatus"])
	assert.Equal(t, models.OrderConfirmed, set["status"])

	set, ok = paymentStateUpdate(&models.Order{Status: models.OrderShipped, PaymentStatus: models.PaymentStatusFailed}, models.PaymentStatusPaid, now)
	assert.True(t, ok)
	assert.NotContains(t, set, "status")

	set, ok = paymentStateUpdate(&models.Order{Status: models.OrderPending, PaymentStatus: models.PaymentStatusPending}, models.PaymentStatusFailed, now)
	assert.True(t, ok)
	assert.Equal(t, models.PaymentStatusFailed, set["paymentStatus"])
	assert.NotContains(t, set, "status")
}

func TestPaymentStateUpdateNeverLeavesPaid(t *testing.T) {
	paid := &models.Order{Status: models.OrderConfirmed, PaymentStatus: models.PaymentStatusPaid}
	for _, next := range []string{models.PaymentStatusFailed, models.PaymentStatusCancelled, models.PaymentStatusPending} {
		_, ok := paymentStateUpdate(paid, next, time.Now())
		assert.False(t, ok, next)
	}
}
