// Package orders prices carts and places orders, reconciling stock and coupon
// usage inside one transaction.
package orders

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/apperr"
	"storefront/internal/catalog"
	"storefront/internal/coupons"
	"storefront/internal/events"
	"storefront/internal/logger"
	"storefront/internal/models"
)

const DefaultShippingFee = 60.0

var (
	ErrUserNotFound = apperr.NotFound("user not found")
	ErrEmptyCart    = apperr.BadRequest("cart is empty").WithReason("EMPTY_CART")
	ErrStockChanged = apperr.BadRequest("stock changed while placing the order, please review your cart").WithReason("STOCK_CHANGED")
	ErrNotFound     = apperr.NotFound("order not found")
)

// StockChange decrements Variant by Quantity.
type StockChange struct {
	VariantID primitive.ObjectID
	Quantity  int
}

// Store is the persistence used by Service. Every call made inside
// WithTransaction must use the ctx handed to fn.
type Store interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error

	User(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	ProductsByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Product, error)
	VariantsByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.ProductVariant, error)
	CouponByCode(ctx context.Context, code string) (*models.Coupon, error)
	// NextOrderNumber returns the next value of the order counter, starting at 10001.
	NextOrderNumber(ctx context.Context) (int64, error)

	InsertOrder(ctx context.Context, order *models.Order) error
	// DecrementStock applies every change only where stock >= quantity and
	// returns ErrStockChanged when any change did not apply.
	DecrementStock(ctx context.Context, changes []StockChange) error
	// RedeemCoupon increments usedCount only while it is below usageLimit and
	// returns coupons.ErrUsageReached otherwise.
	RedeemCoupon(ctx context.Context, couponID primitive.ObjectID, usage models.CouponUsage) error
	// CompleteCheckout empties the cart and records the order on the user.
	CompleteCheckout(ctx context.Context, userID, orderID primitive.ObjectID) error
}

type PlaceRequest struct {
	UserID        *primitive.ObjectID
	Items         []models.LineItem
	Shipping      models.ShippingInfo
	CouponCode    string
	PaymentMethod string
	Notes         string
}

// Quote is a priced cart. Items carry fresh snapshots and server prices.
type Quote struct {
	Items       []models.LineItem `json:"items"`
	Subtotal    float64           `json:"subtotal"`
	ShippingFee float64           `json:"shippingFee"`
	Discount    float64           `json:"discountAmount"`
	Total       float64           `json:"totalAmount"`
	Coupon      *models.Coupon    `json:"coupon,omitempty"`
	Changes     []StockChange     `json:"-"`
	Email       string            `json:"-"`
}

type Service struct {
	store       Store
	events      events.Publisher
	log         logger.Logger
	shippingFee float64
	now         func() time.Time
}

func NewService(store Store, publisher events.Publisher, log logger.Logger, shippingFee float64) *Service {
	if shippingFee < 0 {
		shippingFee = DefaultShippingFee
	}
	return &Service{store: store, events: publisher, log: log, shippingFee: shippingFee, now: time.Now}
}

// Quote prices the caller's items without changing anything. A signed-in
// caller is always priced from the stored cart.
func (s *Service) Quote(ctx context.Context, userID *primitive.ObjectID, items []models.LineItem, couponCode string) (*Quote, error) {
	return s.quote(ctx, userID, items, couponCode)
}

func (s *Service) quote(ctx context.Context, userID *primitive.ObjectID, items []models.LineItem, couponCode string) (*Quote, error) {
	var email string
	if userID != nil {
		user, err := s.store.User(ctx, *userID)
		if err != nil {
			return nil, err
		}
		if user == nil {
			return nil, ErrUserNotFound
		}
		items = user.Cart
		email = user.Email
	}
	if len(items) == 0 {
		return nil, ErrEmptyCart
	}

	productIDs, variantIDs := referencedIDs(items)
	products, err := s.store.ProductsByIDs(ctx, productIDs)
	if err != nil {
		return nil, err
	}
	variants, err := s.store.VariantsByIDs(ctx, variantIDs)
	if err != nil {
		return nil, err
	}
	productByID := make(map[primitive.ObjectID]models.Product, len(products))
	for _, p := range products {
		productByID[p.ID] = p
	}
	variantByID := make(map[primitive.ObjectID]models.ProductVariant, len(variants))
	for _, v := range variants {
		variantByID[v.ID] = v
	}

	requested := make(map[primitive.ObjectID]int, len(items))
	for _, item := range items {
		if item.Quantity <= 0 {
			return nil, apperr.BadRequest("quantity for %s must be at least 1", itemName(item))
		}
		requested[item.VariantID] += item.Quantity
	}

	priced := make([]models.LineItem, 0, len(items))
	subtotal := decimal.Zero
	for _, item := range items {
		product, ok := productByID[item.ProductID]
		if !ok {
			return nil, apperr.NotFound("product %s does not exist, please remove it from cart", itemName(item))
		}
		variant, ok := variantByID[item.VariantID]
		if !ok {
			return nil, apperr.NotFound("selected variant for product %s does not exist", product.Title)
		}
		if variant.ProductID != product.ID {
			return nil, apperr.BadRequest("variant %s does not belong to product %s", variant.SKU, product.Title).
				WithReason("VARIANT_MISMATCH")
		}
		if want := requested[variant.ID]; variant.Stock < want {
			return nil, apperr.BadRequest("insufficient stock for %s: requested %d, available %d", product.Title, want, variant.Stock).
				WithReason("INSUFFICIENT_STOCK")
		}

		priced = append(priced, catalog.Snapshot(product, variant, item.Quantity))
		subtotal = subtotal.Add(decimal.NewFromFloat(variant.Price).Mul(decimal.NewFromInt(int64(item.Quantity))))
	}

	sub, _ := subtotal.Round(2).Float64()
	q := &Quote{
		Items:       priced,
		Subtotal:    sub,
		ShippingFee: s.shippingFee,
		Email:       email,
	}
	for _, id := range variantIDs {
		q.Changes = append(q.Changes, StockChange{VariantID: id, Quantity: requested[id]})
	}

	if code := coupons.NormalizeCode(couponCode); code != "" {
		coupon, err := s.store.CouponByCode(ctx, code)
		if err != nil {
			return nil, err
		}
		if coupon == nil {
			return nil, coupons.ErrNotFound
		}
		discount, err := coupons.Apply(coupon, sub, s.now())
		if err != nil {
			return nil, err
		}
		q.Coupon = coupon
		q.Discount = discount
	}

	total, _ := decimal.NewFromFloat(q.Subtotal).
		Add(decimal.NewFromFloat(q.ShippingFee)).
		Sub(decimal.NewFromFloat(q.Discount)).
		Round(2).Float64()
	q.Total = total
	return q, nil
}

// Place validates and persists an order. Nothing is written unless every
// item and the coupon pass validation.
func (s *Service) Place(ctx context.Context, req PlaceRequest) (*models.Order, error) {
	method := strings.TrimSpace(req.PaymentMethod)
	if method == "" {
		method = models.PaymentCashOnDelivery
	}
	if !models.Contains(models.PaymentMethods, method) {
		return nil, apperr.BadRequest("invalid payment method %q", method)
	}
	if err := validateShipping(req.Shipping); err != nil {
		return nil, err
	}

	var (
		order *models.Order
		quote *Quote
	)
	err := s.store.WithTransaction(ctx, func(ctx context.Context) error {
		var err error
		quote, err = s.quote(ctx, req.UserID, req.Items, req.CouponCode)
		if err != nil {
			return err
		}

		seq, err := s.store.NextOrderNumber(ctx)
		if err != nil {
			return fmt.Errorf("next order id: %w", err)
		}

		now := s.now()
		order = &models.Order{
			ID:             primitive.NewObjectID(),
			OrderID:        fmt.Sprintf("ORD-%d", seq),
			UserID:         req.UserID,
			Items:          quote.Items,
			Subtotal:       quote.Subtotal,
			ShippingFee:    quote.ShippingFee,
			DiscountAmount: quote.Discount,
			TotalAmount:    quote.Total,
			Status:         models.OrderPending,
			PaymentMethod:  method,
			PaymentStatus:  models.PaymentStatusPending,
			Shipping:       req.Shipping,
			Notes:          strings.TrimSpace(req.Notes),
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if quote.Coupon != nil {
			order.CouponCode = quote.Coupon.Code
		}

		if err := s.store.InsertOrder(ctx, order); err != nil {
			return fmt.Errorf("insert order: %w", err)
		}
		if err := s.store.DecrementStock(ctx, quote.Changes); err != nil {
			return err
		}
		if quote.Coupon != nil {
			usage := models.CouponUsage{UserID: req.UserID, OrderID: order.OrderID, UsedAt: now}
			if err := s.store.RedeemCoupon(ctx, quote.Coupon.ID, usage); err != nil {
				return err
			}
		}
		if req.UserID != nil {
			if err := s.store.CompleteCheckout(ctx, *req.UserID, order.ID); err != nil {
				return fmt.Errorf("complete checkout: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publishPlaced(ctx, order, quote.Email)
	return order, nil
}

func (s *Service) publishPlaced(ctx context.Context, order *models.Order, email string) {
	if s.events == nil {
		return
	}
	payload := events.OrderPlaced{
		OrderID:     order.OrderID,
		Email:       email,
		TotalAmount: order.TotalAmount,
		ItemCount:   len(order.Items),
		CouponCode:  order.CouponCode,
	}
	if order.UserID != nil {
		payload.UserID = order.UserID.Hex()
	}
	ev, err := events.New(events.TypeOrderPlaced, payload)
	if err == nil {
		err = s.events.Publish(ctx, ev)
	}
	if err != nil {
		s.log.Warn("order placed event not published",
			logger.String("orderId", order.OrderID),
			logger.Error(err),
		)
	}
}

func referencedIDs(items []models.LineItem) ([]primitive.ObjectID, []primitive.ObjectID) {
	seenProducts := map[primitive.ObjectID]bool{}
	seenVariants := map[primitive.ObjectID]bool{}
	var products, variants []primitive.ObjectID
	for _, item := range items {
		if !seenProducts[item.ProductID] {
			seenProducts[item.ProductID] = true
			products = append(products, item.ProductID)
		}
		if !seenVariants[item.VariantID] {
			seenVariants[item.VariantID] = true
			variants = append(variants, item.VariantID)
		}
	}
	return products, variants
}

func itemName(item models.LineItem) string {
	if t := strings.TrimSpace(item.Title); t != "" {
		return t
	}
	return item.ProductID.Hex()
}

func validateShipping(s models.ShippingInfo) error {
	var missing []string
	for field, value := range map[string]string{
		"shippingName":     s.Name,
		"shippingPhone":    s.Phone,
		"shippingAddress":  s.Address,
		"shippingDistrict": s.District,
		"shippingCity":     s.City,
	} {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return apperr.BadRequest("shipping details are incomplete").WithDetails(missing)
	}
	return nil
}
