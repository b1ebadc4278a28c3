package catalog

import (
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/apperr"
	"storefront/internal/models"
)

// ProductQuery is the public product listing filter.
type ProductQuery struct {
	Search   string
	Tags     []string
	Category *primitive.ObjectID
	MinPrice *float64
	MaxPrice *float64
}

func (q ProductQuery) Filter() (bson.M, error) {
	filter := bson.M{}
	if s := strings.TrimSpace(q.Search); s != "" {
		pattern := primitive.Regex{Pattern: regexp.QuoteMeta(s), Options: "i"}
		filter["$or"] = bson.A{
			bson.M{"title": pattern},
			bson.M{"description": pattern},
			bson.M{"tags": pattern},
		}
	}
	if tags := NormalizeTags(q.Tags); len(tags) > 0 {
		filter["tags"] = bson.M{"$in": tags}
	}
	if q.Category != nil {
		filter["category"] = *q.Category
	}
	if q.MinPrice != nil && q.MaxPrice != nil && *q.MinPrice > *q.MaxPrice {
		return nil, apperr.BadRequest("minPrice cannot exceed maxPrice")
	}
	price := bson.M{}
	if q.MinPrice != nil {
		price["$gte"] = *q.MinPrice
	}
	if q.MaxPrice != nil {
		price["$lte"] = *q.MaxPrice
	}
	if len(price) > 0 {
		filter["base_price"] = price
	}
	return filter, nil
}

// NormalizeTags trims, drops empties and dedupes while keeping order.
func NormalizeTags(values []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(values))
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			tag := strings.TrimSpace(part)
			if tag == "" {
				continue
			}
			if _, ok := seen[tag]; ok {
				continue
			}
			seen[tag] = struct{}{}
			out = append(out, tag)
		}
	}
	return out
}

// CheckImageIndexes verifies the top and hover indexes point into images.
func CheckImageIndexes(images []string, top int, hover *int) error {
	if len(images) == 0 {
		if top != 0 || hover != nil {
			return apperr.BadRequest("image indexes require at least one image")
		}
		return nil
	}
	if top < 0 || top >= len(images) {
		return apperr.BadRequest("topImageIndex %d is out of range", top)
	}
	if hover != nil && (*hover < 0 || *hover >= len(images)) {
		return apperr.BadRequest("hoverImageIndex %d is out of range", *hover)
	}
	return nil
}

// VariantInput is the admin payload for one variant.
type VariantInput struct {
	Options map[string]string `json:"options"`
	SKU     string            `json:"sku"`
	Price   *float64          `json:"price"`
	Stock   int               `json:"stock" binding:"min=0"`
}

// Variant builds a variant of product. A missing price falls back to the
// product's base price.
func (v VariantInput) Variant(product models.Product, now time.Time) (models.ProductVariant, error) {
	price := product.BasePrice
	if v.Price != nil {
		price = *v.Price
	}
	if price < 0 {
		return models.ProductVariant{}, apperr.BadRequest("variant price cannot be negative")
	}
	if v.Stock < 0 {
		return models.ProductVariant{}, apperr.BadRequest("variant stock cannot be negative")
	}
	for key := range v.Options {
		if !models.Contains(product.Options, key) {
			return models.ProductVariant{}, apperr.BadRequest("option %q is not defined on the product", key)
		}
	}
	options := make(map[string]string, len(v.Options))
	for k, val := range v.Options {
		options[k] = val
	}
	return models.ProductVariant{
		ID:        primitive.NewObjectID(),
		ProductID: product.ID,
		Options:   options,
		SKU:       strings.TrimSpace(v.SKU),
		Price:     price,
		Stock:     v.Stock,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}
