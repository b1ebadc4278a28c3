// Package events publishes domain events to RabbitMQ and consumes the
// notification queue.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	TypeOrderPlaced    = "order.placed"
	TypePaymentUpdated = "payment.updated"
	TypeOTPRequested   = "otp.requested"
)

// Event is the envelope written to the queue.
type Event struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	OccurredAt time.Time       `json:"occurredAt"`
	Payload    json.RawMessage `json:"payload"`
}

type OrderPlaced struct {
	OrderID     string  `json:"orderId"`
	UserID      string  `json:"userId,omitempty"`
	Email       string  `json:"email,omitempty"`
	TotalAmount float64 `json:"totalAmount"`
	ItemCount   int     `json:"itemCount"`
	CouponCode  string  `json:"couponCode,omitempty"`
}

type PaymentUpdated struct {
	TranID  string `json:"tranId"`
	OrderID string `json:"orderId,omitempty"`
	Status  string `json:"status"`
}

type OTPRequested struct {
	Email     string    `json:"email"`
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func New(eventType string, payload interface{}) (Event, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{ID: uuid.NewString(), Type: eventType, OccurredAt: time.Now().UTC(), Payload: body}, nil
}

type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}
