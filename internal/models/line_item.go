package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// LineItemVersion is stored on every line item so a future shape change can be
// migrated explicitly.
const LineItemVersion = 1

// LineItem is the single line item shape shared by carts and orders. Price,
// Title, ImageURL, Slug, SelectedOptions and SKU are a snapshot taken when the
// item was added or the order was placed.
type LineItem struct {
	Version         int                `bson:"v" json:"v"`
	ProductID       primitive.ObjectID `bson:"productId" json:"productId"`
	VariantID       primitive.ObjectID `bson:"variantId" json:"variantId"`
	Quantity        int                `bson:"quantity" json:"quantity"`
	Title           string             `bson:"title" json:"title"`
	ImageURL        string             `bson:"image_url" json:"imageUrl"`
	Price           float64            `bson:"price" json:"price"`
	Slug            string             `bson:"slug" json:"slug"`
	SelectedOptions map[string]string  `bson:"selectedOptions" json:"selectedOptions"`
	SKU             string             `bson:"sku" json:"sku"`
}
