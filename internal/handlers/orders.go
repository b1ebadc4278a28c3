package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/apperr"
	"storefront/internal/auth"
	"storefront/internal/logger"
	"storefront/internal/metrics"
	"storefront/internal/middleware"
	"storefront/internal/models"
	"storefront/internal/orders"
)

type orderPlacer interface {
	Place(ctx context.Context, req orders.PlaceRequest) (*models.Order, error)
}

type orderRepository interface {
	List(ctx context.Context, q orders.Query, page, limit int64) ([]models.Order, int64, error)
	Get(ctx context.Context, ref string) (*models.Order, error)
	Apply(ctx context.Context, ref string, u orders.Update) (*models.Order, error)
}

type orderItemRequest struct {
	ProductID string `json:"productId" binding:"required"`
	VariantID string `json:"variantId" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required,min=1"`
}

// Shipping fields are sent at the top level of the body.
type orderCreateRequest struct {
	models.ShippingInfo
	Items         []orderItemRequest `json:"items" binding:"dive"`
	CouponCode    string             `json:"couponCode"`
	PaymentMethod string             `json:"paymentMethod"`
	Notes         string             `json:"notes"`
}

type orderUpdateRequest struct {
	Status         *string `json:"status"`
	PaymentStatus  *string `json:"paymentStatus"`
	TrackingNumber *string `json:"trackingNumber"`
	Notes          *string `json:"notes"`
}

func (r orderCreateRequest) lineItems() ([]models.LineItem, error) {
	items := make([]models.LineItem, 0, len(r.Items))
	for _, it := range r.Items {
		productID, err := parseObjectID(it.ProductID, "productId")
		if err != nil {
			return nil, err
		}
		variantID, err := parseObjectID(it.VariantID, "variantId")
		if err != nil {
			return nil, err
		}
		items = append(items, models.LineItem{ProductID: productID, VariantID: variantID, Quantity: it.Quantity})
	}
	return items, nil
}

func parseDateQuery(c *gin.Context, name string, endOfDay bool) (*time.Time, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, apperr.BadRequest("invalid %s", name)
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}

func orderQuery(c *gin.Context, p *auth.Principal) (orders.Query, error) {
	q := orders.Query{
		Status:        strings.TrimSpace(c.Query("status")),
		PaymentStatus: strings.TrimSpace(c.Query("paymentStatus")),
		PaymentMethod: strings.TrimSpace(c.Query("paymentMethod")),
		CouponCode:    strings.TrimSpace(c.Query("couponCode")),
		Search:        c.Query("search"),
	}
	var err error
	if q.From, err = parseDateQuery(c, "startDate", false); err != nil {
		return q, err
	}
	if q.To, err = parseDateQuery(c, "endDate", true); err != nil {
		return q, err
	}
	if q.MinAmount, err = parseFloatQuery(c, "minAmount"); err != nil {
		return q, err
	}
	if q.MaxAmount, err = parseFloatQuery(c, "maxAmount"); err != nil {
		return q, err
	}

	if p.Role != models.RoleAdmin {
		id := p.UserID
		q.UserID = &id
		return q, nil
	}
	if raw := strings.TrimSpace(c.Query("userId")); raw != "" {
		id, err := parseObjectID(raw, "userId")
		if err != nil {
			return q, err
		}
		q.UserID = &id
	}
	return q, nil
}

/*
POST /orders
- signed-in callers check out their stored cart
- guests send items in the body
*/
func PlaceOrder(placer orderPlacer, m *metrics.Metrics, log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /orders"
		defer handlePanic(c, log, route)

		var req orderCreateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		var userID *primitive.ObjectID
		if p, ok := middleware.CurrentPrincipal(c); ok {
			id := p.UserID
			userID = &id
		}
		items, err := req.lineItems()
		if err != nil {
			respondError(c, log, route, err)
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 15*time.Second)
		defer cancel()

		order, err := placer.Place(ctx, orders.PlaceRequest{
			UserID:        userID,
			Items:         items,
			Shipping:      req.ShippingInfo,
			CouponCode:    req.CouponCode,
			PaymentMethod: req.PaymentMethod,
			Notes:         req.Notes,
		})
		if err != nil {
			respondError(c, log, route, err)
			return
		}

		m.OrderPlaced(order.PaymentMethod, order.CouponCode)
		log.Info("order: placed",
			logger.String("orderId", order.OrderID),
			logger.Float64("total", order.TotalAmount),
			logger.Bool("guest", userID == nil),
		)
		c.JSON(http.StatusCreated, gin.H{"message": "order placed successfully", "order": order})
	}
}

func ListOrders(repo orderRepository, log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /orders"
		defer handlePanic(c, log, route)

		page, limit, err := parsePaginationParams(c.Query("page"), c.Query("limit"))
		if err != nil {
			respondError(c, log, route, err)
			return
		}
		p, _ := middleware.CurrentPrincipal(c)
		q, err := orderQuery(c, p)
		if err != nil {
			respondError(c, log, route, err)
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		items, total, err := repo.List(ctx, q, page, limit)
		if err != nil {
			respondError(c, log, route, err)
			return
		}
		c.JSON(http.StatusOK, newPage(items, page, limit, total))
	}
}

func GetOrder(repo orderRepository, log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /orders/:orderId"
		defer handlePanic(c, log, route)

		order, err := repo.Get(c.Request.Context(), strings.TrimSpace(c.Param("orderId")))
		if err != nil {
			respondError(c, log, route, err)
			return
		}
		p, _ := middleware.CurrentPrincipal(c)
		if p.Role != models.RoleAdmin && (order.UserID == nil || *order.UserID != p.UserID) {
			respondError(c, log, route, orders.ErrNotFound)
			return
		}
		c.JSON(http.StatusOK, order)
	}
}

func UpdateOrder(repo orderRepository, log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PATCH /orders/:orderId"
		defer handlePanic(c, log, route)

		var req orderUpdateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		order, err := repo.Apply(ctx, strings.TrimSpace(c.Param("orderId")), orders.Update{
			Status:         req.Status,
			PaymentStatus:  req.PaymentStatus,
			TrackingNumber: req.TrackingNumber,
			Notes:          req.Notes,
		})
		if err != nil {
			respondError(c, log, route, err)
			return
		}
		log.Info("order: updated", logger.String("orderId", order.OrderID), logger.String("status", order.Status))
		c.JSON(http.StatusOK, order)
	}
}
