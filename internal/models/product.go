package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Product struct {
	ID              primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	Title           string              `bson:"title" json:"title"`
	Description     string              `bson:"description" json:"description"`
	Tags            StringList          `bson:"tags" json:"tags"`
	Category        *primitive.ObjectID `bson:"category,omitempty" json:"category,omitempty"`
	Options         []string            `bson:"options" json:"options"`
	BasePrice       float64             `bson:"base_price" json:"basePrice"`
	ImagesURL       []string            `bson:"images_url" json:"imagesUrl"`
	TopImageIndex   int                 `bson:"top_image_index" json:"topImageIndex"`
	HoverImageIndex *int                `bson:"hover_image_index,omitempty" json:"hoverImageIndex,omitempty"`
	Slug            string              `bson:"slug" json:"slug"`
	CreatedAt       time.Time           `bson:"createdAt" json:"createdAt"`
	UpdatedAt       time.Time           `bson:"updatedAt" json:"updatedAt"`
}

// TopImage falls back to the first image when the stored index is out of range.
func (p Product) TopImage() string {
	if p.TopImageIndex >= 0 && p.TopImageIndex < len(p.ImagesURL) {
		return p.ImagesURL[p.TopImageIndex]
	}
	if len(p.ImagesURL) > 0 {
		return p.ImagesURL[0]
	}
	return ""
}

func (p Product) HoverImage() string {
	if p.HoverImageIndex == nil {
		return ""
	}
	if i := *p.HoverImageIndex; i >= 0 && i < len(p.ImagesURL) {
		return p.ImagesURL[i]
	}
	return ""
}

type ProductVariant struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ProductID primitive.ObjectID `bson:"productId" json:"productId"`
	Options   map[string]string  `bson:"options" json:"options"`
	SKU       string             `bson:"sku" json:"sku"`
	Price     float64            `bson:"price" json:"price"`
	Stock     int                `bson:"stock" json:"stock"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt" json:"updatedAt"`
}
