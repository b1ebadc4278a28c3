package catalog

import "storefront/internal/models"

// Snapshot builds the line item stored on carts and orders.
func Snapshot(product models.Product, variant models.ProductVariant, quantity int) models.LineItem {
	options := make(map[string]string, len(variant.Options))
	for k, v := range variant.Options {
		options[k] = v
	}
	return models.LineItem{
		Version:         models.LineItemVersion,
		ProductID:       product.ID,
		VariantID:       variant.ID,
		Quantity:        quantity,
		Title:           product.Title,
		ImageURL:        product.TopImage(),
		Price:           variant.Price,
		Slug:            product.Slug,
		SelectedOptions: options,
		SKU:             variant.SKU,
	}
}
