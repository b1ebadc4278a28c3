package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"storefront/internal/logger"
	"storefront/internal/metrics"
	"storefront/internal/models"
	"storefront/internal/payments"
)

type paymentFlow interface {
	Init(ctx context.Context, req payments.InitRequest) (*payments.Session, *models.Payment, error)
	Complete(ctx context.Context, tranID, status, validationID string) (*models.Payment, error)
}

// InitPayment returns the gateway reply unchanged.
func InitPayment(flow paymentFlow, log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /payments/init"
		defer handlePanic(c, log, route)

		var req payments.InitRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
		defer cancel()

		session, payment, err := flow.Init(ctx, req)
		if err != nil {
			respondError(c, log, route, err)
			return
		}
		log.Info("payment: session opened", logger.String("tranId", payment.TranID), logger.String("orderId", payment.OrderID))
		c.Data(http.StatusOK, "application/json; charset=utf-8", session.Raw)
	}
}

// PaymentCallback handles the gateway's form post for one outcome at path.
func PaymentCallback(flow paymentFlow, path, status string, m *metrics.Metrics, log logger.Logger) gin.HandlerFunc {
	route := "POST " + path
	return func(c *gin.Context) {
		defer handlePanic(c, log, route)

		tranID := strings.TrimSpace(c.PostForm("tran_id"))
		valID := strings.TrimSpace(c.PostForm("val_id"))

		ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
		defer cancel()

		payment, err := flow.Complete(ctx, tranID, status, valID)
		if err != nil {
			respondError(c, log, route, err)
			return
		}
		m.PaymentCallback(status)
		c.JSON(http.StatusOK, gin.H{
			"tranId":  payment.TranID,
			"orderId": payment.OrderID,
			"status":  payment.Status,
		})
	}
}
