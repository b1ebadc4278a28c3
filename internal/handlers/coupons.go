package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/coupons"
	"storefront/internal/logger"
	"storefront/internal/middleware"
	"storefront/internal/models"
	"storefront/internal/orders"
)

// quoter prices a cart without placing an order.
type quoter interface {
	Quote(ctx context.Context, userID *primitive.ObjectID, items []models.LineItem, couponCode string) (*orders.Quote, error)
}

type couponValidateRequest struct {
	Code string `json:"code" binding:"required"`
}

func couponSummary(c *models.Coupon) gin.H {
	return gin.H{
		"code":              c.Code,
		"discountType":      c.DiscountType,
		"discountValue":     c.DiscountValue,
		"minOrderAmount":    c.MinOrderAmount,
		"maxDiscountAmount": c.MaxDiscountAmount,
		"validUntil":        c.ValidUntil,
	}
}

func CreateCoupon(store coupons.Store, log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /coupons"
		defer handlePanic(c, log, route)

		var req coupons.Definition
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}
		coupon, err := req.New(time.Now())
		if err != nil {
			respondError(c, log, route, err)
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		if err := store.Insert(ctx, coupon); err != nil {
			respondError(c, log, route, err)
			return
		}
		log.Info("coupon: created", logger.String("code", coupon.Code))
		c.JSON(http.StatusCreated, coupon)
	}
}

func ListCoupons(store coupons.Store, log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /coupons"
		defer handlePanic(c, log, route)

		page, limit, err := parsePaginationParams(c.Query("page"), c.Query("limit"))
		if err != nil {
			respondError(c, log, route, err)
			return
		}
		q := coupons.ListQuery{Search: c.Query("search")}
		if v := strings.TrimSpace(c.Query("isActive")); v != "" {
			active := v == "true"
			q.IsActive = &active
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		items, total, err := store.List(ctx, q.Filter(), page, limit)
		if err != nil {
			respondError(c, log, route, err)
			return
		}
		c.JSON(http.StatusOK, newPage(items, page, limit, total))
	}
}

func GetCoupon(store coupons.Store, log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /coupons/:id"
		defer handlePanic(c, log, route)

		id, err := parseObjectID(c.Param("id"), "coupon id")
		if err != nil {
			respondError(c, log, route, err)
			return
		}
		coupon, err := store.Get(c.Request.Context(), id)
		if err != nil {
			respondError(c, log, route, err)
			return
		}
		if coupon == nil {
			respondError(c, log, route, coupons.ErrNotFound)
			return
		}
		c.JSON(http.StatusOK, coupon)
	}
}

func UpdateCoupon(store coupons.Store, log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PATCH /coupons/:id"
		defer handlePanic(c, log, route)

		id, err := parseObjectID(c.Param("id"), "coupon id")
		if err != nil {
			respondError(c, log, route, err)
			return
		}
		var req coupons.Definition
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		coupon, err := store.Get(ctx, id)
		if err != nil {
			respondError(c, log, route, err)
			return
		}
		if coupon == nil {
			respondError(c, log, route, coupons.ErrNotFound)
			return
		}
		if err := req.Apply(coupon, time.Now()); err != nil {
			respondError(c, log, route, err)
			return
		}
		if err := store.Update(ctx, coupon); err != nil {
			respondError(c, log, route, err)
			return
		}
		c.JSON(http.StatusOK, coupon)
	}
}

func DeleteCoupon(store coupons.Store, log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "DELETE /coupons/:id"
		defer handlePanic(c, log, route)

		id, err := parseObjectID(c.Param("id"), "coupon id")
		if err != nil {
			respondError(c, log, route, err)
			return
		}
		deleted, err := store.Delete(c.Request.Context(), id)
		if err != nil {
			respondError(c, log, route, err)
			return
		}
		if !deleted {
			respondError(c, log, route, coupons.ErrNotFound)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

/*
POST /coupons/validate
- evaluated against the caller's stored cart
*/
func ValidateCoupon(q quoter, log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /coupons/validate"
		defer handlePanic(c, log, route)

		var req couponValidateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		p, _ := middleware.CurrentPrincipal(c)
		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		quote, err := q.Quote(ctx, &p.UserID, nil, req.Code)
		if err != nil {
			respondError(c, log, route, err)
			return
		}
		if quote.Coupon == nil {
			respondError(c, log, route, coupons.ErrNotFound)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"valid":    true,
			"coupon":   couponSummary(quote.Coupon),
			"discount": quote.Discount,
			"subtotal": quote.Subtotal,
			"total":    quote.Total,
		})
	}
}
