// Package payments starts gateway sessions and records their outcome on the
// payment and the linked order.
package payments

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/apperr"
	"storefront/internal/events"
	"storefront/internal/logger"
	"storefront/internal/models"
)

const (
	SuccessPath = "/payments/success-validation"
	FailPath    = "/payments/failed"
	CancelPath  = "/payments/canceled"
)

var (
	ErrNotFound       = apperr.NotFound("payment not found")
	ErrGatewayFailure = apperr.New(apperr.CodeInternal, "payment gateway request failed")
	ErrAmountMismatch = apperr.BadRequest("total_amount does not match the order total").WithReason("PAYMENT_AMOUNT_MISMATCH")
	ErrOrderPaid      = apperr.Conflict("order is already paid").WithReason("ORDER_ALREADY_PAID")
	ErrNotVerified    = apperr.BadRequest("payment could not be verified with the gateway").WithReason("PAYMENT_NOT_VERIFIED")
	ErrFinalized      = apperr.Conflict("payment outcome already recorded").WithReason("PAYMENT_FINALIZED")
)

// InitRequest mirrors the gateway's session fields.
type InitRequest struct {
	OrderID         string  `json:"orderId"`
	TotalAmount     float64 `json:"total_amount" binding:"required,gt=0"`
	Currency        string  `json:"currency" binding:"required"`
	ShippingMethod  string  `json:"shipping_method" binding:"required"`
	ProductName     string  `json:"product_name" binding:"required"`
	ProductCategory string  `json:"product_category" binding:"required"`
	ProductProfile  string  `json:"product_profile" binding:"required"`
	CusName         string  `json:"cus_name" binding:"required"`
	CusEmail        string  `json:"cus_email" binding:"required,email"`
	CusAdd1         string  `json:"cus_add1" binding:"required"`
	CusAdd2         string  `json:"cus_add2"`
	CusCity         string  `json:"cus_city" binding:"required"`
	CusState        string  `json:"cus_state" binding:"required"`
	CusPostcode     string  `json:"cus_postcode" binding:"required"`
	CusCountry      string  `json:"cus_country" binding:"required"`
	CusPhone        string  `json:"cus_phone" binding:"required"`
	CusFax          string  `json:"cus_fax"`
	ShipName        string  `json:"ship_name" binding:"required"`
	ShipAdd1        string  `json:"ship_add1" binding:"required"`
	ShipAdd2        string  `json:"ship_add2"`
	ShipCity        string  `json:"ship_city" binding:"required"`
	ShipState       string  `json:"ship_state" binding:"required"`
	ShipPostcode    string  `json:"ship_postcode" binding:"required"`
	ShipCountry     string  `json:"ship_country" binding:"required"`
}

func (r InitRequest) payment(tranID string, now time.Time) *models.Payment {
	return &models.Payment{
		TranID:          tranID,
		OrderID:         strings.TrimSpace(r.OrderID),
		Status:          models.PaymentPending,
		TotalAmount:     r.TotalAmount,
		Currency:        r.Currency,
		ShippingMethod:  r.ShippingMethod,
		ProductName:     r.ProductName,
		ProductCategory: r.ProductCategory,
		ProductProfile:  r.ProductProfile,
		CusName:         r.CusName,
		CusEmail:        r.CusEmail,
		CusAdd1:         r.CusAdd1,
		CusAdd2:         r.CusAdd2,
		CusCity:         r.CusCity,
		CusState:        r.CusState,
		CusPostcode:     r.CusPostcode,
		CusCountry:      r.CusCountry,
		CusPhone:        r.CusPhone,
		CusFax:          r.CusFax,
		ShipName:        r.ShipName,
		ShipAdd1:        r.ShipAdd1,
		ShipAdd2:        r.ShipAdd2,
		ShipCity:        r.ShipCity,
		ShipState:       r.ShipState,
		ShipPostcode:    r.ShipPostcode,
		ShipCountry:     r.ShipCountry,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func form(p *models.Payment) url.Values {
	v := url.Values{}
	set := func(key, value string) {
		if value != "" {
			v.Set(key, value)
		}
	}
	set("total_amount", strconv.FormatFloat(p.TotalAmount, 'f', -1, 64))
	set("currency", p.Currency)
	set("tran_id", p.TranID)
	set("shipping_method", p.ShippingMethod)
	set("product_name", p.ProductName)
	set("product_category", p.ProductCategory)
	set("product_profile", p.ProductProfile)
	set("cus_name", p.CusName)
	set("cus_email", p.CusEmail)
	set("cus_add1", p.CusAdd1)
	set("cus_add2", p.CusAdd2)
	set("cus_city", p.CusCity)
	set("cus_state", p.CusState)
	set("cus_postcode", p.CusPostcode)
	set("cus_country", p.CusCountry)
	set("cus_phone", p.CusPhone)
	set("cus_fax", p.CusFax)
	set("ship_name", p.ShipName)
	set("ship_add1", p.ShipAdd1)
	set("ship_add2", p.ShipAdd2)
	set("ship_city", p.ShipCity)
	set("ship_state", p.ShipState)
	set("ship_postcode", p.ShipPostcode)
	set("ship_country", p.ShipCountry)
	return v
}

type Store interface {
	Insert(ctx context.Context, p *models.Payment) error
	// FindByTranID returns nil, nil when no payment matches.
	FindByTranID(ctx context.Context, tranID string) (*models.Payment, error)
	SetSessionKey(ctx context.Context, tranID, key string) error
	// SetStatus moves the payment from one status to another. It returns
	// ErrFinalized when the stored status is no longer from.
	SetStatus(ctx context.Context, tranID, from, to, validationID string) error
}

// Orders is the part of the order repository payments depend on.
type Orders interface {
	Get(ctx context.Context, ref string) (*models.Order, error)
	SetPaymentState(ctx context.Context, ref, paymentStatus string) error
}

// Provider is the hosted payment page the service talks to.
type Provider interface {
	Init(ctx context.Context, fields url.Values) (*Session, error)
	Validate(ctx context.Context, valID string) (*Validation, error)
}

type Service struct {
	store   Store
	gateway Provider
	orders  Orders
	events  events.Publisher
	log     logger.Logger
	baseURL string
	now     func() time.Time
}

func NewService(store Store, gateway Provider, orders Orders, publisher events.Publisher, log logger.Logger, baseURL string) *Service {
	return &Service{
		store:   store,
		gateway: gateway,
		orders:  orders,
		events:  publisher,
		log:     log,
		baseURL: strings.TrimRight(baseURL, "/"),
		now:     time.Now,
	}
}

// Init stores a pending payment, opens a gateway session and returns the
// gateway reply as received. A payment linked to an order must ask for the
// order's total.
func (s *Service) Init(ctx context.Context, req InitRequest) (*Session, *models.Payment, error) {
	if ref := strings.TrimSpace(req.OrderID); ref != "" && s.orders != nil {
		order, err := s.orders.Get(ctx, ref)
		if err != nil {
			return nil, nil, err
		}
		if order.PaymentStatus == models.PaymentStatusPaid {
			return nil, nil, ErrOrderPaid
		}
		if !sameAmount(decimal.NewFromFloat(req.TotalAmount), order.TotalAmount) {
			return nil, nil, ErrAmountMismatch
		}
		req.OrderID = order.OrderID
	}

	payment := req.payment(primitive.NewObjectID().Hex(), s.now())
	if err := s.store.Insert(ctx, payment); err != nil {
		return nil, nil, err
	}

	fields := form(payment)
	fields.Set("success_url", s.baseURL+SuccessPath)
	fields.Set("fail_url", s.baseURL+FailPath)
	fields.Set("cancel_url", s.baseURL+CancelPath)

	session, err := s.gateway.Init(ctx, fields)
	if err != nil {
		s.log.Error("payment gateway init failed", logger.String("tranId", payment.TranID), logger.Error(err))
		return nil, payment, apperr.Wrap(err, apperr.CodeInternal, ErrGatewayFailure.Message)
	}
	if session.SessionKey != "" {
		if err := s.store.SetSessionKey(ctx, payment.TranID, session.SessionKey); err != nil {
			s.log.Warn("payment session key not stored", logger.String("tranId", payment.TranID), logger.Error(err))
		}
		payment.SessionKey = session.SessionKey
	}
	return session, payment, nil
}

var orderPaymentStatus = map[string]string{
	models.PaymentSuccess:   models.PaymentStatusPaid,
	models.PaymentFailed:    models.PaymentStatusFailed,
	models.PaymentCancelled: models.PaymentStatusCancelled,
}

// transitions lists the outcomes a stored status may still move to. Success
// is terminal.
var transitions = map[string][]string{
	models.PaymentPending:   {models.PaymentSuccess, models.PaymentFailed, models.PaymentCancelled},
	models.PaymentFailed:    {models.PaymentSuccess},
	models.PaymentCancelled: {models.PaymentSuccess},
}

// Complete records a gateway callback outcome for tranID. A success is only
// recorded once the gateway confirms validationID for the same transaction
// and amount. Repeating the stored outcome is a no-op.
func (s *Service) Complete(ctx context.Context, tranID, status, validationID string) (*models.Payment, error) {
	orderStatus, ok := orderPaymentStatus[status]
	if !ok {
		return nil, apperr.BadRequest("unsupported payment outcome %q", status)
	}
	tranID = strings.TrimSpace(tranID)
	if tranID == "" {
		return nil, apperr.BadRequest("tran_id is required")
	}
	payment, err := s.store.FindByTranID(ctx, tranID)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, ErrNotFound
	}
	if payment.Status == status {
		return payment, nil
	}
	if !models.Contains(transitions[payment.Status], status) {
		return nil, ErrFinalized
	}
	if status == models.PaymentSuccess {
		if err := s.verify(ctx, payment, validationID); err != nil {
			return nil, err
		}
	}

	if err := s.store.SetStatus(ctx, tranID, payment.Status, status, validationID); err != nil {
		return nil, err
	}
	payment.Status = status
	if validationID != "" {
		payment.ValidationID = validationID
	}

	if payment.OrderID != "" && s.orders != nil {
		if err := s.orders.SetPaymentState(ctx, payment.OrderID, orderStatus); err != nil {
			return nil, err
		}
	}

	s.log.Info("payment updated",
		logger.String("tranId", tranID),
		logger.String("status", status),
		logger.String("orderId", payment.OrderID),
	)
	if s.events != nil {
		ev, err := events.New(events.TypePaymentUpdated, events.PaymentUpdated{
			TranID:  tranID,
			OrderID: payment.OrderID,
			Status:  status,
		})
		if err == nil {
			err = s.events.Publish(ctx, ev)
		}
		if err != nil {
			s.log.Warn("payment event not published", logger.String("tranId", tranID), logger.Error(err))
		}
	}
	return payment, nil
}

func (s *Service) verify(ctx context.Context, payment *models.Payment, validationID string) error {
	validationID = strings.TrimSpace(validationID)
	if validationID == "" {
		return ErrNotVerified.WithDetails("val_id is required")
	}
	v, err := s.gateway.Validate(ctx, validationID)
	if err != nil {
		s.log.Error("payment validation failed", logger.String("tranId", payment.TranID), logger.Error(err))
		return apperr.Wrap(err, apperr.CodeInternal, ErrGatewayFailure.Message)
	}
	if !v.Valid() || v.TranID != payment.TranID {
		s.log.Warn("payment validation rejected",
			logger.String("tranId", payment.TranID),
			logger.String("gatewayStatus", v.Status),
			logger.String("gatewayTranId", v.TranID),
		)
		return ErrNotVerified
	}
	amount, err := decimal.NewFromString(strings.TrimSpace(v.Amount))
	if err != nil || !sameAmount(amount, payment.TotalAmount) {
		s.log.Warn("payment amount differs from gateway",
			logger.String("tranId", payment.TranID),
			logger.String("gatewayAmount", v.Amount),
			logger.Float64("amount", payment.TotalAmount),
		)
		return ErrNotVerified
	}
	if v.Currency != "" && payment.Currency != "" && !strings.EqualFold(v.Currency, payment.Currency) {
		return ErrNotVerified
	}
	return nil
}

// sameAmount compares to the cent.
func sameAmount(a decimal.Decimal, b float64) bool {
	return a.Round(2).Equal(decimal.NewFromFloat(b).Round(2))
}
