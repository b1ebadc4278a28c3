// Package cart manages the server side cart stored on the user document.
package cart

import (
	"context"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/apperr"
	"storefront/internal/catalog"
	"storefront/internal/models"
)

var (
	ErrUserNotFound = apperr.NotFound("user not found")
	ErrItemNotFound = apperr.NotFound("item not in cart")
)

type Store interface {
	// Cart returns nil, ErrUserNotFound when the user does not exist.
	Cart(ctx context.Context, userID primitive.ObjectID) ([]models.LineItem, error)
	SaveCart(ctx context.Context, userID primitive.ObjectID, items []models.LineItem) error
	Product(ctx context.Context, id primitive.ObjectID) (*models.Product, error)
	Variant(ctx context.Context, id primitive.ObjectID) (*models.ProductVariant, error)
}

type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

func (s *Service) Get(ctx context.Context, userID primitive.ObjectID) ([]models.LineItem, error) {
	items, err := s.store.Cart(ctx, userID)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []models.LineItem{}
	}
	return items, nil
}

// Add puts quantity units of a variant in the cart, merging with an existing
// line for the same variant. The snapshot is refreshed on every add.
func (s *Service) Add(ctx context.Context, userID, productID, variantID primitive.ObjectID, quantity int) ([]models.LineItem, error) {
	if quantity <= 0 {
		return nil, apperr.BadRequest("quantity must be at least 1")
	}
	items, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	product, variant, err := s.resolve(ctx, productID, variantID)
	if err != nil {
		return nil, err
	}

	idx := indexOf(items, variantID)
	total := quantity
	if idx >= 0 {
		total += items[idx].Quantity
	}
	if total > variant.Stock {
		return nil, apperr.BadRequest("insufficient stock for %s: requested %d, available %d", product.Title, total, variant.Stock).
			WithReason("INSUFFICIENT_STOCK")
	}

	line := catalog.Snapshot(*product, *variant, total)
	if idx >= 0 {
		items[idx] = line
	} else {
		items = append(items, line)
	}
	if err := s.store.SaveCart(ctx, userID, items); err != nil {
		return nil, err
	}
	return items, nil
}

// SetQuantity replaces the quantity of a line. Zero removes it.
func (s *Service) SetQuantity(ctx context.Context, userID, variantID primitive.ObjectID, quantity int) ([]models.LineItem, error) {
	if quantity < 0 {
		return nil, apperr.BadRequest("quantity cannot be negative")
	}
	if quantity == 0 {
		return s.Remove(ctx, userID, variantID)
	}
	items, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	idx := indexOf(items, variantID)
	if idx < 0 {
		return nil, ErrItemNotFound
	}
	product, variant, err := s.resolve(ctx, items[idx].ProductID, variantID)
	if err != nil {
		return nil, err
	}
	if quantity > variant.Stock {
		return nil, apperr.BadRequest("insufficient stock for %s: requested %d, available %d", product.Title, quantity, variant.Stock).
			WithReason("INSUFFICIENT_STOCK")
	}
	items[idx] = catalog.Snapshot(*product, *variant, quantity)
	if err := s.store.SaveCart(ctx, userID, items); err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Service) Remove(ctx context.Context, userID, variantID primitive.ObjectID) ([]models.LineItem, error) {
	items, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	idx := indexOf(items, variantID)
	if idx < 0 {
		return nil, ErrItemNotFound
	}
	items = append(items[:idx], items[idx+1:]...)
	if err := s.store.SaveCart(ctx, userID, items); err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Service) Clear(ctx context.Context, userID primitive.ObjectID) error {
	if _, err := s.Get(ctx, userID); err != nil {
		return err
	}
	return s.store.SaveCart(ctx, userID, []models.LineItem{})
}

func (s *Service) resolve(ctx context.Context, productID, variantID primitive.ObjectID) (*models.Product, *models.ProductVariant, error) {
	product, err := s.store.Product(ctx, productID)
	if err != nil {
		return nil, nil, err
	}
	if product == nil {
		return nil, nil, apperr.NotFound("product not found")
	}
	variant, err := s.store.Variant(ctx, variantID)
	if err != nil {
		return nil, nil, err
	}
	if variant == nil {
		return nil, nil, apperr.NotFound("variant not found")
	}
	if variant.ProductID != product.ID {
		return nil, nil, apperr.BadRequest("variant %s does not belong to product %s", variant.SKU, product.Title).
			WithReason("VARIANT_MISMATCH")
	}
	return product, variant, nil
}

func indexOf(items []models.LineItem, variantID primitive.ObjectID) int {
	for i, item := range items {
		if item.VariantID == variantID {
			return i
		}
	}
	return -1
}
