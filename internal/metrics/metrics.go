// Package metrics exposes the Prometheus collectors used by the HTTP layer and
// the checkout, coupon and token services.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	RequestCount     *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	OrdersPlaced     *prometheus.CounterVec
	CouponRedeemed   *prometheus.CounterVec
	TokenRotations   prometheus.Counter
	ReuseDetections  prometheus.Counter
	PaymentCallbacks *prometheus.CounterVec
}

func New(namespace string) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		RequestCount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		OrdersPlaced: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orders",
			Name:      "placed_total",
			Help:      "Orders placed, by payment method",
		}, []string{"payment_method"}),
		CouponRedeemed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "coupons",
			Name:      "redeemed_total",
			Help:      "Coupons redeemed at checkout",
		}, []string{"code"}),
		TokenRotations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "refresh_rotations_total",
			Help:      "Successful refresh token rotations",
		}),
		ReuseDetections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "refresh_reuse_detected_total",
			Help:      "Refresh tokens presented after rotation",
		}),
		PaymentCallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "payments",
			Name:      "callbacks_total",
			Help:      "Gateway callbacks by outcome",
		}, []string{"status"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.RequestCount,
		m.RequestDuration,
		m.OrdersPlaced,
		m.CouponRedeemed,
		m.TokenRotations,
		m.ReuseDetections,
		m.PaymentCallbacks,
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware records count and latency per matched route.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.RequestCount.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.RequestDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// OrderPlaced and PaymentCallback are no-ops on a nil *Metrics.
func (m *Metrics) OrderPlaced(paymentMethod, couponCode string) {
	if m == nil {
		return
	}
	m.OrdersPlaced.WithLabelValues(paymentMethod).Inc()
	if couponCode != "" {
		m.CouponRedeemed.WithLabelValues(couponCode).Inc()
	}
}

func (m *Metrics) PaymentCallback(status string) {
	if m == nil {
		return
	}
	m.PaymentCallbacks.WithLabelValues(status).Inc()
}
