package orders

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/apperr"
	"storefront/internal/coupons"
	"storefront/internal/events"
	"storefront/internal/logger"
	"storefront/internal/models"
)

type memState struct {
	users    map[primitive.ObjectID]models.User
	variants map[primitive.ObjectID]models.ProductVariant
	coupons  map[string]models.Coupon
	orders   []models.Order
	seq      int64
}

func (s memState) clone() memState {
	cp := memState{
		users:    map[primitive.ObjectID]models.User{},
		variants: map[primitive.ObjectID]models.ProductVariant{},
		coupons:  map[string]models.Coupon{},
		orders:   append([]models.Order(nil), s.orders...),
		seq:      s.seq,
	}
	for k, v := range s.users {
		v.Cart = append([]models.LineItem(nil), v.Cart...)
		v.Orders = append([]primitive.ObjectID(nil), v.Orders...)
		cp.users[k] = v
	}
	for k, v := range s.variants {
		cp.variants[k] = v
	}
	for k, v := range s.coupons {
		v.Usages = append([]models.CouponUsage(nil), v.Usages...)
		cp.coupons[k] = v
	}
	return cp
}

// memStore serializes transactions and restores the previous state when fn fails.
type memStore struct {
	tx       sync.Mutex
	products map[primitive.ObjectID]models.Product
	state    memState
}

func newMemStore() *memStore {
	return &memStore{
		products: map[primitive.ObjectID]models.Product{},
		state: memState{
			users:    map[primitive.ObjectID]models.User{},
			variants: map[primitive.ObjectID]models.ProductVariant{},
			coupons:  map[string]models.Coupon{},
		},
	}
}

func (s *memStore) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	s.tx.Lock()
	defer s.tx.Unlock()
	saved := s.state.clone()
	if err := fn(ctx); err != nil {
		s.state = saved
		return err
	}
	return nil
}

func (s *memStore) User(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	u, ok := s.state.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (s *memStore) ProductsByIDs(_ context.Context, ids []primitive.ObjectID) ([]models.Product, error) {
	var out []models.Product
	for _, id := range ids {
		if p, ok := s.products[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *memStore) VariantsByIDs(_ context.Context, ids []primitive.ObjectID) ([]models.ProductVariant, error) {
	var out []models.ProductVariant
	for _, id := range ids {
		if v, ok := s.state.variants[id]; ok {
			out = append(out, v)
		}
	}
	return out, nil
}

func (s *memStore) CouponByCode(_ context.Context, code string) (*models.Coupon, error) {
	c, ok := s.state.coupons[code]
	if !ok {
		return nil, coupons.ErrNotFound
	}
	return &c, nil
}

func (s *memStore) NextOrderNumber(context.Context) (int64, error) {
	if s.state.seq == 0 {
		s.state.seq = 10000
	}
	s.state.seq++
	return s.state.seq, nil
}

func (s *memStore) InsertOrder(_ context.Context, order *models.Order) error {
	s.state.orders = append(s.state.orders, *order)
	return nil
}

func (s *memStore) DecrementStock(_ context.Context, changes []StockChange) error {
	matched := 0
	for _, c := range changes {
		v, ok := s.state.variants[c.VariantID]
		if !ok || v.Stock < c.Quantity {
			continue
		}
		v.Stock -= c.Quantity
		s.state.variants[c.VariantID] = v
		matched++
	}
	if matched < len(changes) {
		return ErrStockChanged
	}
	return nil
}

func (s *memStore) RedeemCoupon(_ context.Context, couponID primitive.ObjectID, usage models.CouponUsage) error {
	for code, c := range s.state.coupons {
		if c.ID != couponID {
			continue
		}
		if c.UsedCount >= c.UsageLimit {
			return coupons.ErrUsageReached
		}
		c.UsedCount++
		c.Usages = append(c.Usages, usage)
		s.state.coupons[code] = c
		return nil
	}
	return coupons.ErrUsageReached
}

func (s *memStore) CompleteCheckout(_ context.Context, userID, orderID primitive.ObjectID) error {
	u := s.state.users[userID]
	u.Cart = []models.LineItem{}
	u.Orders = append(u.Orders, orderID)
	s.state.users[userID] = u
	return nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, ev events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

type fixture struct {
	store    *memStore
	svc      *Service
	events   *recordingPublisher
	product  models.Product
	variant  models.ProductVariant
	userID   primitive.ObjectID
	now      time.Time
	shipping models.ShippingInfo
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:  newMemStore(),
		events: &recordingPublisher{},
		now:    time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		shipping: models.ShippingInfo{
			Name: "Rahim", Phone: "01700000000", Address: "House 4", District: "Dhaka", City: "Dhaka",
		},
	}
	f.product = models.Product{ID: primitive.NewObjectID(), Title: "Linen Shirt", Slug: "linen-shirt", BasePrice: 450}
	f.variant = models.ProductVariant{
		ID:        primitive.NewObjectID(),
		ProductID: f.product.ID,
		Options:   map[string]string{"size": "M"},
		SKU:       "LS-M",
		Price:     500,
		Stock:     10,
	}
	f.store.products[f.product.ID] = f.product
	f.store.state.variants[f.variant.ID] = f.variant

	f.userID = primitive.NewObjectID()
	f.store.state.users[f.userID] = models.User{
		ID:    f.userID,
		Email: "rahim@example.com",
		Cart:  []models.LineItem{{ProductID: f.product.ID, VariantID: f.variant.ID, Quantity: 2, Price: 1}},
	}
	f.store.state.coupons["SAVE10"] = models.Coupon{
		ID:            primitive.NewObjectID(),
		Code:          "SAVE10",
		DiscountType:  models.DiscountPercentage,
		DiscountValue: 10,
		UsageLimit:    5,
		IsActive:      true,
		ValidFrom:     f.now.Add(-24 * time.Hour),
		ValidUntil:    f.now.Add(24 * time.Hour),
	}

	f.svc = NewService(f.store, f.events, logger.NewNop(), 60)
	f.svc.now = func() time.Time { return f.now }
	return f
}

func (f *fixture) place(t *testing.T, coupon string) (*models.Order, error) {
	t.Helper()
	return f.svc.Place(context.Background(), PlaceRequest{
		UserID:     &f.userID,
		Shipping:   f.shipping,
		CouponCode: coupon,
	})
}

func TestPlaceWithCoupon(t *testing.T) {
	f := newFixture(t)

	order, err := f.place(t, "save10")
	require.NoError(t, err)

	assert.Equal(t, "ORD-10001", order.OrderID)
	assert.Equal(t, 1000.0, order.Subtotal)
	assert.Equal(t, 100.0, order.DiscountAmount)
	assert.Equal(t, 60.0, order.ShippingFee)
	assert.Equal(t, 960.0, order.TotalAmount)
	assert.Equal(t, "SAVE10", order.CouponCode)
	assert.Equal(t, models.OrderPending, order.Status)
	assert.Equal(t, models.PaymentStatusPending, order.PaymentStatus)
	assert.Equal(t, models.PaymentCashOnDelivery, order.PaymentMethod)

	assert.Equal(t, 8, f.store.state.variants[f.variant.ID].Stock)
	coupon := f.store.state.coupons["SAVE10"]
	assert.Equal(t, 1, coupon.UsedCount)
	require.Len(t, coupon.Usages, 1)
	assert.Equal(t, "ORD-10001", coupon.Usages[0].OrderID)

	user := f.store.state.users[f.userID]
	assert.Empty(t, user.Cart)
	assert.Equal(t, []primitive.ObjectID{order.ID}, user.Orders)

	require.Len(t, f.events.events, 1)
	assert.Equal(t, events.TypeOrderPlaced, f.events.events[0].Type)
}

func TestPlaceUsesServerPrices(t *testing.T) {
	f := newFixture(t)

	order, err := f.place(t, "")
	require.NoError(t, err)

	require.Len(t, order.Items, 1)
	item := order.Items[0]
	assert.Equal(t, 500.0, item.Price)
	assert.Equal(t, "Linen Shirt", item.Title)
	assert.Equal(t, "LS-M", item.SKU)
	assert.Equal(t, models.LineItemVersion, item.Version)
	assert.Equal(t, map[string]string{"size": "M"}, item.SelectedOptions)
	assert.Equal(t, 1060.0, order.TotalAmount)
}

func TestPlaceInsufficientStockChangesNothing(t *testing.T) {
	f := newFixture(t)
	u := f.store.state.users[f.userID]
	u.Cart[0].Quantity = 11
	f.store.state.users[f.userID] = u

	_, err := f.place(t, "SAVE10")
	require.Error(t, err)
	assert.Equal(t, "INSUFFICIENT_STOCK", apperr.From(err).Reason)
	assert.Contains(t, err.Error(), "requested 11, available 10")

	assert.Equal(t, 10, f.store.state.variants[f.variant.ID].Stock)
	assert.Empty(t, f.store.state.orders)
	assert.Equal(t, 0, f.store.state.coupons["SAVE10"].UsedCount)
	assert.Len(t, f.store.state.users[f.userID].Cart, 1)
	assert.Empty(t, f.events.events)
}

func TestPlaceAggregatesQuantityPerVariant(t *testing.T) {
	f := newFixture(t)
	u := f.store.state.users[f.userID]
	u.Cart = []models.LineItem{
		{ProductID: f.product.ID, VariantID: f.variant.ID, Quantity: 6},
		{ProductID: f.product.ID, VariantID: f.variant.ID, Quantity: 5},
	}
	f.store.state.users[f.userID] = u

	_, err := f.place(t, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requested 11, available 10")
}

func TestPlaceRejectsForeignVariant(t *testing.T) {
	f := newFixture(t)
	other := models.Product{ID: primitive.NewObjectID(), Title: "Canvas Bag"}
	f.store.products[other.ID] = other
	u := f.store.state.users[f.userID]
	u.Cart[0].ProductID = other.ID
	f.store.state.users[f.userID] = u

	_, err := f.place(t, "")
	require.Error(t, err)
	assert.Equal(t, apperr.CodeBadRequest, apperr.From(err).Code)
	assert.Equal(t, "VARIANT_MISMATCH", apperr.From(err).Reason)
	assert.Equal(t, 10, f.store.state.variants[f.variant.ID].Stock)
	assert.Empty(t, f.store.state.orders)
}

func TestPlaceMissingProduct(t *testing.T) {
	f := newFixture(t)
	delete(f.store.products, f.product.ID)

	_, err := f.place(t, "")
	require.Error(t, err)
	assert.Equal(t, apperr.CodeNotFound, apperr.From(err).Code)
	assert.Contains(t, err.Error(), "please remove it from cart")
}

func TestPlaceEmptyCart(t *testing.T) {
	f := newFixture(t)
	u := f.store.state.users[f.userID]
	u.Cart = nil
	f.store.state.users[f.userID] = u

	_, err := f.place(t, "")
	assert.True(t, errors.Is(err, ErrEmptyCart))
}

func TestPlaceUnknownUser(t *testing.T) {
	f := newFixture(t)
	stranger := primitive.NewObjectID()

	_, err := f.svc.Place(context.Background(), PlaceRequest{UserID: &stranger, Shipping: f.shipping})
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestPlaceCouponFailures(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(c *models.Coupon)
		code   string
		reason string
	}{
		{name: "unknown", code: "NOPE", reason: "COUPON_NOT_FOUND"},
		{name: "inactive", code: "SAVE10", mutate: func(c *models.Coupon) { c.IsActive = false }, reason: "COUPON_INACTIVE"},
		{name: "exhausted", code: "SAVE10", mutate: func(c *models.Coupon) { c.UsedCount = c.UsageLimit }, reason: "COUPON_EXHAUSTED"},
		{name: "minimum", code: "SAVE10", mutate: func(c *models.Coupon) { c.MinOrderAmount = 5000 }, reason: "COUPON_MIN_ORDER"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			if tc.mutate != nil {
				c := f.store.state.coupons["SAVE10"]
				tc.mutate(&c)
				f.store.state.coupons["SAVE10"] = c
			}

			_, err := f.place(t, tc.code)
			require.Error(t, err)
			assert.Equal(t, tc.reason, apperr.From(err).Reason)
			assert.Equal(t, 10, f.store.state.variants[f.variant.ID].Stock)
			assert.Empty(t, f.store.state.orders)
		})
	}
}

func TestPlaceGuestUsesRequestItems(t *testing.T) {
	f := newFixture(t)

	order, err := f.svc.Place(context.Background(), PlaceRequest{
		Items:         []models.LineItem{{ProductID: f.product.ID, VariantID: f.variant.ID, Quantity: 1, Price: 0.01}},
		Shipping:      f.shipping,
		PaymentMethod: models.PaymentOnline,
	})
	require.NoError(t, err)
	assert.Nil(t, order.UserID)
	assert.Equal(t, 560.0, order.TotalAmount)
	assert.Equal(t, models.PaymentOnline, order.PaymentMethod)
	assert.Equal(t, 9, f.store.state.variants[f.variant.ID].Stock)
}

func TestPlaceValidatesRequest(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Place(context.Background(), PlaceRequest{UserID: &f.userID, Shipping: f.shipping, PaymentMethod: "barter"})
	assert.Equal(t, apperr.CodeBadRequest, apperr.From(err).Code)

	_, err = f.svc.Place(context.Background(), PlaceRequest{UserID: &f.userID})
	require.Error(t, err)
	assert.Equal(t, "shipping details are incomplete", apperr.From(err).Message)

	guest := PlaceRequest{
		Items:    []models.LineItem{{ProductID: f.product.ID, VariantID: f.variant.ID, Quantity: 0}},
		Shipping: f.shipping,
	}
	_, err = f.svc.Place(context.Background(), guest)
	assert.Equal(t, apperr.CodeBadRequest, apperr.From(err).Code)
}

func TestPlaceConcurrentOrderNumbersAreGapless(t *testing.T) {
	f := newFixture(t)
	v := f.store.state.variants[f.variant.ID]
	v.Stock = 100
	f.store.state.variants[f.variant.ID] = v

	const n = 20
	var wg sync.WaitGroup
	ids := make(chan string, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			order, err := f.svc.Place(context.Background(), PlaceRequest{
				Items:    []models.LineItem{{ProductID: f.product.ID, VariantID: f.variant.ID, Quantity: 1}},
				Shipping: f.shipping,
			})
			if assert.NoError(t, err) {
				ids <- order.OrderID
			}
		}()
	}
	wg.Wait()
	close(ids)

	var got []string
	for id := range ids {
		got = append(got, id)
	}
	want := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		want = append(want, fmt.Sprintf("ORD-%d", 10000+i))
	}
	assert.ElementsMatch(t, want, got)
	assert.Equal(t, 80, f.store.state.variants[f.variant.ID].Stock)
}

func TestQuoteDoesNotMutate(t *testing.T) {
	f := newFixture(t)

	q, err := f.svc.Quote(context.Background(), &f.userID, nil, "SAVE10")
	require.NoError(t, err)
	assert.Equal(t, 1000.0, q.Subtotal)
	assert.Equal(t, 100.0, q.Discount)
	assert.Equal(t, 960.0, q.Total)

	assert.Equal(t, 10, f.store.state.variants[f.variant.ID].Stock)
	assert.Equal(t, 0, f.store.state.coupons["SAVE10"].UsedCount)
	assert.Len(t, f.store.state.users[f.userID].Cart, 1)
}

func TestUpdateSet(t *testing.T) {
	now := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	shipped := models.OrderShipped
	tracking := " TRK-1 "

	set, err := Update{Status: &shipped, TrackingNumber: &tracking}.Set(now)
	require.NoError(t, err)
	assert.Equal(t, shipped, set["status"])
	assert.Equal(t, now, set["shippedAt"])
	assert.Equal(t, "TRK-1", set["trackingNumber"])
	assert.NotContains(t, set, "deliveredAt")

	bogus := "lost"
	_, err = Update{Status: &bogus}.Set(now)
	assert.Error(t, err)

	_, err = Update{}.Set(now)
	assert.Error(t, err)
}

func TestQueryFilter(t *testing.T) {
	user := primitive.NewObjectID()
	filter, err := Query{UserID: &user, Status: models.OrderPending, Search: "ORD-1"}.Filter()
	require.NoError(t, err)
	assert.Equal(t, user, filter["userId"])
	assert.Equal(t, models.OrderPending, filter["status"])
	assert.Contains(t, filter, "$or")

	minAmount := 100.0
	filter, err = Query{CouponCode: " save10 ", MinAmount: &minAmount}.Filter()
	require.NoError(t, err)
	assert.Equal(t, "SAVE10", filter["couponCode"])
	assert.Equal(t, bson.M{"$gte": 100.0}, filter["totalAmount"])

	_, err = Query{PaymentStatus: "unknown"}.Filter()
	assert.Error(t, err)
}
