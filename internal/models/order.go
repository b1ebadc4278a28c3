package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	OrderPending    = "pending"
	OrderConfirmed  = "confirmed"
	OrderProcessing = "processing"
	OrderShipped    = "shipped"
	OrderDelivered  = "delivered"
	OrderCancelled  = "cancelled"
	OrderRefunded   = "refunded"
)

const (
	PaymentCashOnDelivery = "cash_on_delivery"
	PaymentOnline         = "online_payment"
	PaymentBankTransfer   = "bank_transfer"
	PaymentMobileBanking  = "mobile_banking"
)

const (
	PaymentStatusPending   = "pending"
	PaymentStatusPaid      = "paid"
	PaymentStatusFailed    = "failed"
	PaymentStatusRefunded  = "refunded"
	PaymentStatusCancelled = "cancelled"
)

var (
	OrderStatuses  = []string{OrderPending, OrderConfirmed, OrderProcessing, OrderShipped, OrderDelivered, OrderCancelled, OrderRefunded}
	PaymentMethods = []string{PaymentCashOnDelivery, PaymentOnline, PaymentBankTransfer, PaymentMobileBanking}
	PaymentStates  = []string{PaymentStatusPending, PaymentStatusPaid, PaymentStatusFailed, PaymentStatusRefunded, PaymentStatusCancelled}
)

// ShippingInfo is captured verbatim from the checkout request.
type ShippingInfo struct {
	Name                string `bson:"name" json:"name"`
	Phone               string `bson:"phone" json:"phone"`
	Phone2              string `bson:"phone2,omitempty" json:"phone2,omitempty"`
	Address             string `bson:"address" json:"address"`
	District            string `bson:"district" json:"district"`
	City                string `bson:"city" json:"city"`
	DeliverInstructions string `bson:"deliver_instructions,omitempty" json:"deliverInstructions,omitempty"`
}

type Order struct {
	ID             primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	OrderID        string              `bson:"orderId" json:"orderId"`
	UserID         *primitive.ObjectID `bson:"userId,omitempty" json:"userId,omitempty"`
	Items          []LineItem          `bson:"items" json:"items"`
	Subtotal       float64             `bson:"subtotal" json:"subtotal"`
	ShippingFee    float64             `bson:"shippingFee" json:"shippingFee"`
	DiscountAmount float64             `bson:"discountAmount" json:"discountAmount"`
	TotalAmount    float64             `bson:"totalAmount" json:"totalAmount"`
	CouponCode     string              `bson:"couponCode,omitempty" json:"couponCode,omitempty"`
	Status         string              `bson:"status" json:"status"`
	PaymentMethod  string              `bson:"paymentMethod" json:"paymentMethod"`
	PaymentStatus  string              `bson:"paymentStatus" json:"paymentStatus"`
	Shipping       ShippingInfo        `bson:",inline" json:"shipping"`
	TrackingNumber string              `bson:"trackingNumber,omitempty" json:"trackingNumber,omitempty"`
	Notes          string              `bson:"notes,omitempty" json:"notes,omitempty"`
	ShippedAt      *time.Time          `bson:"shippedAt,omitempty" json:"shippedAt,omitempty"`
	DeliveredAt    *time.Time          `bson:"deliveredAt,omitempty" json:"deliveredAt,omitempty"`
	CreatedAt      time.Time           `bson:"createdAt" json:"createdAt"`
	UpdatedAt      time.Time           `bson:"updatedAt" json:"updatedAt"`
}

func Contains(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}
