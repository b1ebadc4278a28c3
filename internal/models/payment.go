package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	PaymentPending   = "pending"
	PaymentSuccess   = "success"
	PaymentFailed    = "failed"
	PaymentCancelled = "cancelled"
)

type Payment struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	TranID          string             `bson:"tran_id" json:"tranId"`
	OrderID         string             `bson:"orderId,omitempty" json:"orderId,omitempty"`
	SessionKey      string             `bson:"session_key,omitempty" json:"sessionKey,omitempty"`
	Status          string             `bson:"status" json:"status"`
	TotalAmount     float64            `bson:"total_amount" json:"totalAmount"`
	Currency        string             `bson:"currency" json:"currency"`
	ShippingMethod  string             `bson:"shipping_method" json:"shippingMethod"`
	ProductName     string             `bson:"product_name" json:"productName"`
	ProductCategory string             `bson:"product_category" json:"productCategory"`
	ProductProfile  string             `bson:"product_profile" json:"productProfile"`
	CusName         string             `bson:"cus_name" json:"cusName"`
	CusEmail        string             `bson:"cus_email" json:"cusEmail"`
	CusAdd1         string             `bson:"cus_add1" json:"cusAdd1"`
	CusAdd2         string             `bson:"cus_add2,omitempty" json:"cusAdd2,omitempty"`
	CusCity         string             `bson:"cus_city" json:"cusCity"`
	CusState        string             `bson:"cus_state" json:"cusState"`
	CusPostcode     string             `bson:"cus_postcode" json:"cusPostcode"`
	CusCountry      string             `bson:"cus_country" json:"cusCountry"`
	CusPhone        string             `bson:"cus_phone" json:"cusPhone"`
	CusFax          string             `bson:"cus_fax,omitempty" json:"cusFax,omitempty"`
	ShipName        string             `bson:"ship_name" json:"shipName"`
	ShipAdd1        string             `bson:"ship_add1" json:"shipAdd1"`
	ShipAdd2        string             `bson:"ship_add2,omitempty" json:"shipAdd2,omitempty"`
	ShipCity        string             `bson:"ship_city" json:"shipCity"`
	ShipState       string             `bson:"ship_state" json:"shipState"`
	ShipPostcode    string             `bson:"ship_postcode" json:"shipPostcode"`
	ShipCountry     string             `bson:"ship_country" json:"shipCountry"`
	ValidationID    string             `bson:"val_id,omitempty" json:"valId,omitempty"`
	CreatedAt       time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt       time.Time          `bson:"updatedAt" json:"updatedAt"`
}
