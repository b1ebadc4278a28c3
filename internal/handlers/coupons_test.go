package handlers

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/coupons"
	"storefront/internal/logger"
	"storefront/internal/middleware"
	"storefront/internal/models"
	"storefront/internal/orders"
)

type fakeQuoter struct {
	userID *primitive.ObjectID
	code   string
	quote  *orders.Quote
	err    error
}

func (f *fakeQuoter) Quote(_ context.Context, userID *primitive.ObjectID, _ []models.LineItem, code string) (*orders.Quote, error) {
	f.userID, f.code = userID, code
	return f.quote, f.err
}

type memCoupons struct {
	coupons map[primitive.ObjectID]*models.Coupon
	filter  bson.M
}

func newMemCoupons() *memCoupons {
	return &memCoupons{coupons: map[primitive.ObjectID]*models.Coupon{}}
}

func (s *memCoupons) Insert(_ context.Context, c *models.Coupon) error {
	for _, existing := range s.coupons {
		if existing.Code == c.Code {
			return coupons.ErrCodeTaken
		}
	}
	cp := *c
	s.coupons[c.ID] = &cp
	return nil
}

func (s *memCoupons) List(_ context.Context, filter bson.M, _, _ int64) ([]models.Coupon, int64, error) {
	s.filter = filter
	out := []models.Coupon{}
	for _, c := range s.coupons {
		out = append(out, *c)
	}
	return out, int64(len(out)), nil
}

func (s *memCoupons) Get(_ context.Context, id primitive.ObjectID) (*models.Coupon, error) {
	c, ok := s.coupons[id]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (s *memCoupons) Update(_ context.Context, c *models.Coupon) error {
	if _, ok := s.coupons[c.ID]; !ok {
		return coupons.ErrNotFound
	}
	cp := *c
	s.coupons[c.ID] = &cp
	return nil
}

func (s *memCoupons) Delete(_ context.Context, id primitive.ObjectID) (bool, error) {
	_, ok := s.coupons[id]
	delete(s.coupons, id)
	return ok, nil
}

func couponRouter(env *testEnv, store coupons.Store, q quoter) *gin.Engine {
	log := logger.NewNop()
	r := gin.New()
	g := r.Group("/coupons", middleware.RequireAuth(env.signer))
	g.POST("/validate", ValidateCoupon(q, log))

	admin := g.Group("", middleware.RequireRole(models.RoleAdmin))
	admin.POST("", CreateCoupon(store, log))
	admin.GET("", ListCoupons(store, log))
	admin.GET("/:id", GetCoupon(store, log))
	admin.PATCH("/:id", UpdateCoupon(store, log))
	admin.DELETE("/:id", DeleteCoupon(store, log))
	return r
}

func couponDefinition(code string) map[string]interface{} {
	now := time.Now().UTC()
	return map[string]interface{}{
		"code":          code,
		"discountType":  models.DiscountPercentage,
		"discountValue": 10,
		"usageLimit":    100,
		"validFrom":     now.Add(-time.Hour),
		"validUntil":    now.Add(24 * time.Hour),
	}
}

func TestValidateCoupon(t *testing.T) {
	env := newTestEnv()
	userID := primitive.NewObjectID()
	q := &fakeQuoter{quote: &orders.Quote{
		Subtotal: 200,
		Discount: 20,
		Total:    180,
		Coupon:   &models.Coupon{Code: "SAVE10", DiscountType: models.DiscountPercentage, DiscountValue: 10},
	}}

	w := serve(t, couponRouter(env, newMemCoupons(), q), request{
		method: http.MethodPost,
		path:   "/coupons/validate",
		auth:   env.bearer(t, userID, models.RoleUser),
		body:   map[string]string{"code": "save10"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, true, body["valid"])
	assert.EqualValues(t, 20, body["discount"])
	assert.EqualValues(t, 180, body["total"])
	assert.Equal(t, "SAVE10", body["coupon"].(map[string]interface{})["code"])

	require.NotNil(t, q.userID)
	assert.Equal(t, userID, *q.userID)
	assert.Equal(t, "save10", q.code)
}

func TestValidateCouponRejections(t *testing.T) {
	env := newTestEnv()
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"expired", coupons.ErrExpired, http.StatusBadRequest, "COUPON_EXPIRED"},
		{"exhausted", coupons.ErrUsageReached, http.StatusBadRequest, "COUPON_EXHAUSTED"},
		{"minimum", coupons.ErrMinimumOrder, http.StatusBadRequest, "COUPON_MIN_ORDER"},
		{"unknown", coupons.ErrNotFound, http.StatusNotFound, "COUPON_NOT_FOUND"},
		{"empty cart", orders.ErrEmptyCart, http.StatusBadRequest, "EMPTY_CART"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := serve(t, couponRouter(env, newMemCoupons(), &fakeQuoter{err: tc.err}), request{
				method: http.MethodPost,
				path:   "/coupons/validate",
				auth:   env.bearer(t, primitive.NewObjectID(), models.RoleUser),
				body:   map[string]string{"code": "X"},
			})
			assert.Equal(t, tc.status, w.Code)
			assert.Equal(t, tc.code, decode(t, w)["code"])
		})
	}
}

func TestCouponAdminLifecycle(t *testing.T) {
	env := newTestEnv()
	store := newMemCoupons()
	r := couponRouter(env, store, &fakeQuoter{})
	admin := env.bearer(t, primitive.NewObjectID(), models.RoleAdmin)

	created := serve(t, r, request{method: http.MethodPost, path: "/coupons", auth: admin, body: couponDefinition(" welcome ")})
	require.Equal(t, http.StatusCreated, created.Code, created.Body.String())
	body := decode(t, created)
	assert.Equal(t, "WELCOME", body["code"])
	assert.Equal(t, true, body["isActive"])
	id := body["id"].(string)

	dup := serve(t, r, request{method: http.MethodPost, path: "/coupons", auth: admin, body: couponDefinition("WELCOME")})
	assert.Equal(t, http.StatusConflict, dup.Code)
	assert.Equal(t, "COUPON_EXISTS", decode(t, dup)["code"])

	patched := serve(t, r, request{method: http.MethodPatch, path: "/coupons/" + id, auth: admin, body: map[string]interface{}{"isActive": false, "note": "paused"}})
	require.Equal(t, http.StatusOK, patched.Code, patched.Body.String())
	assert.Equal(t, false, decode(t, patched)["isActive"])

	list := serve(t, r, request{method: http.MethodGet, path: "/coupons?isActive=false&search=wel", auth: admin})
	require.Equal(t, http.StatusOK, list.Code)
	assert.Equal(t, false, store.filter["isActive"])
	assert.Contains(t, store.filter, "$or")

	deleted := serve(t, r, request{method: http.MethodDelete, path: "/coupons/" + id, auth: admin})
	assert.Equal(t, http.StatusNoContent, deleted.Code)

	gone := serve(t, r, request{method: http.MethodGet, path: "/coupons/" + id, auth: admin})
	assert.Equal(t, http.StatusNotFound, gone.Code)
}

func TestCreateCouponListsMissingFields(t *testing.T) {
	env := newTestEnv()
	w := serve(t, couponRouter(env, newMemCoupons(), &fakeQuoter{}), request{
		method: http.MethodPost,
		path:   "/coupons",
		auth:   env.bearer(t, primitive.NewObjectID(), models.RoleAdmin),
		body:   map[string]interface{}{"code": "HALF", "discountType": models.DiscountFixed},
	})

	require.Equal(t, http.StatusBadRequest, w.Code)
	details := decode(t, w)["details"].([]interface{})
	assert.Equal(t, []interface{}{"discountValue", "usageLimit", "validFrom", "validUntil"}, details)
}

func TestCouponAdminRequiresRole(t *testing.T) {
	env := newTestEnv()
	w := serve(t, couponRouter(env, newMemCoupons(), &fakeQuoter{}), request{
		method: http.MethodGet,
		path:   "/coupons",
		auth:   env.bearer(t, primitive.NewObjectID(), models.RoleUser),
	})
	assert.Equal(t, http.StatusForbidden, w.Code)
}
