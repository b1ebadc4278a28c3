package payments

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/apperr"
	"storefront/internal/events"
	"storefront/internal/logger"
	"storefront/internal/models"
)

type memStore struct {
	payments map[string]*models.Payment
}

func (s *memStore) Insert(_ context.Context, p *models.Payment) error {
	cp := *p
	s.payments[p.TranID] = &cp
	return nil
}

func (s *memStore) FindByTranID(_ context.Context, tranID string) (*models.Payment, error) {
	p, ok := s.payments[tranID]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (s *memStore) SetSessionKey(_ context.Context, tranID, key string) error {
	s.payments[tranID].SessionKey = key
	return nil
}

func (s *memStore) SetStatus(_ context.Context, tranID, from, to, validationID string) error {
	p, ok := s.payments[tranID]
	if !ok || p.Status != from {
		return ErrFinalized
	}
	p.Status = to
	if validationID != "" {
		p.ValidationID = validationID
	}
	return nil
}

type memOrders struct {
	orders map[string]*models.Order
}

func (o *memOrders) Get(_ context.Context, ref string) (*models.Order, error) {
	order, ok := o.orders[ref]
	if !ok {
		return nil, apperr.NotFound("order not found")
	}
	return order, nil
}

func (o *memOrders) SetPaymentState(_ context.Context, ref, paymentStatus string) error {
	order := o.orders[ref]
	if order.PaymentStatus == models.PaymentStatusPaid {
		return nil
	}
	order.PaymentStatus = paymentStatus
	if paymentStatus == models.PaymentStatusPaid && order.Status == models.OrderPending {
		order.Status = models.OrderConfirmed
	}
	return nil
}

type capturePublisher struct {
	events []events.Event
}

func (p *capturePublisher) Publish(_ context.Context, ev events.Event) error {
	p.events = append(p.events, ev)
	return nil
}

func (p *capturePublisher) Close() error { return nil }

func sampleRequest() InitRequest {
	return InitRequest{
		OrderID:         "ORD-10001",
		TotalAmount:     960,
		Currency:        "BDT",
		ShippingMethod:  "Courier",
		ProductName:     "Linen Shirt",
		ProductCategory: "Apparel",
		ProductProfile:  "physical-goods",
		CusName:         "Rahim",
		CusEmail:        "rahim@example.com",
		CusAdd1:         "House 4",
		CusCity:         "Dhaka",
		CusState:        "Dhaka",
		CusPostcode:     "1207",
		CusCountry:      "Bangladesh",
		CusPhone:        "01700000000",
		ShipName:        "Rahim",
		ShipAdd1:        "House 4",
		ShipCity:        "Dhaka",
		ShipState:       "Dhaka",
		ShipPostcode:    "1207",
		ShipCountry:     "Bangladesh",
	}
}

func newService(t *testing.T, gatewayURL string) (*Service, *memStore, *memOrders, *capturePublisher) {
	t.Helper()
	return newServiceWithValidation(t, gatewayURL, "http://127.0.0.1:0")
}

func newServiceWithValidation(t *testing.T, gatewayURL, validationURL string) (*Service, *memStore, *memOrders, *capturePublisher) {
	t.Helper()
	store := &memStore{payments: map[string]*models.Payment{}}
	orders := &memOrders{orders: map[string]*models.Order{
		"ORD-10001": {OrderID: "ORD-10001", TotalAmount: 960, Status: models.OrderPending, PaymentStatus: models.PaymentStatusPending},
	}}
	pub := &capturePublisher{}
	gw := NewGateway(gatewayURL, validationURL, "store-1", "secret-1")
	return NewService(store, gw, orders, pub, logger.NewNop(), "http://shop.test/"), store, orders, pub
}

// validationServer answers the gateway validation API from verdicts keyed by val_id.
func validationServer(t *testing.T, verdicts map[string]Validation) (*httptest.Server, *[]url.Values) {
	t.Helper()
	var queries []url.Values
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		queries = append(queries, q)
		v, ok := verdicts[q.Get("val_id")]
		if !ok {
			v = Validation{Status: "INVALID_TRANSACTION"}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(v)
	}))
	t.Cleanup(server.Close)
	return server, &queries
}

func pendingPayment(store *memStore) {
	store.payments["T1"] = &models.Payment{TranID: "T1", OrderID: "ORD-10001", Status: models.PaymentPending, TotalAmount: 960, Currency: "BDT"}
}

func TestInitPostsFormAndReturnsReplyVerbatim(t *testing.T) {
	var received url.Values
	var contentType string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		contentType = r.Header.Get("Content-Type")
		_ = r.ParseForm()
		received = r.PostForm
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"SUCCESS","sessionkey":"SK-1","GatewayPageURL":"https://pay.test/SK-1"}`))
	}))
	defer server.Close()

	svc, store, _, _ := newService(t, server.URL)
	session, payment, err := svc.Init(context.Background(), sampleRequest())
	require.NoError(t, err)

	assert.Equal(t, "application/x-www-form-urlencoded", contentType)
	assert.Equal(t, "store-1", received.Get("store_id"))
	assert.Equal(t, "secret-1", received.Get("store_passwd"))
	assert.Equal(t, payment.TranID, received.Get("tran_id"))
	assert.Len(t, payment.TranID, 24)
	assert.Equal(t, "960", received.Get("total_amount"))
	assert.Equal(t, "http://shop.test/payments/success-validation", received.Get("success_url"))
	assert.Equal(t, "http://shop.test/payments/failed", received.Get("fail_url"))
	assert.Equal(t, "http://shop.test/payments/canceled", received.Get("cancel_url"))
	assert.Equal(t, "rahim@example.com", received.Get("cus_email"))

	var reply map[string]interface{}
	require.NoError(t, json.Unmarshal(session.Raw, &reply))
	assert.Equal(t, "https://pay.test/SK-1", reply["GatewayPageURL"])

	stored := store.payments[payment.TranID]
	require.NotNil(t, stored)
	assert.Equal(t, models.PaymentPending, stored.Status)
	assert.Equal(t, "SK-1", stored.SessionKey)
}

func TestInitGatewayFailureKeepsPendingPayment(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("<html>down</html>"))
	}))
	defer server.Close()

	svc, store, _, _ := newService(t, server.URL)
	_, payment, err := svc.Init(context.Background(), sampleRequest())
	require.Error(t, err)
	assert.Equal(t, apperr.CodeInternal, apperr.From(err).Code)
	require.NotNil(t, payment)
	assert.Equal(t, models.PaymentPending, store.payments[payment.TranID].Status)
}

func TestInitUnknownOrder(t *testing.T) {
	svc, store, _, _ := newService(t, "http://127.0.0.1:0")
	req := sampleRequest()
	req.OrderID = "ORD-99999"

	_, _, err := svc.Init(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, apperr.CodeNotFound, apperr.From(err).Code)
	assert.Empty(t, store.payments)
}

func TestInitRejectsAmountOtherThanOrderTotal(t *testing.T) {
	svc, store, _, _ := newService(t, "http://127.0.0.1:0")
	req := sampleRequest()
	req.TotalAmount = 1

	_, _, err := svc.Init(context.Background(), req)
	assert.ErrorIs(t, err, ErrAmountMismatch)
	assert.Empty(t, store.payments)
}

func TestInitRejectsPaidOrder(t *testing.T) {
	svc, store, orders, _ := newService(t, "http://127.0.0.1:0")
	orders.orders["ORD-10001"].PaymentStatus = models.PaymentStatusPaid

	_, _, err := svc.Init(context.Background(), sampleRequest())
	assert.ErrorIs(t, err, ErrOrderPaid)
	assert.Empty(t, store.payments)
}

func TestCompleteMarksPaymentAndOrder(t *testing.T) {
	server, _ := validationServer(t, map[string]Validation{
		"VAL-1": {Status: "VALID", TranID: "T1", ValID: "VAL-1", Amount: "960.00", Currency: "BDT"},
	})
	cases := []struct {
		status      string
		orderStatus string
		paymentFlag string
	}{
		{models.PaymentSuccess, models.OrderConfirmed, models.PaymentStatusPaid},
		{models.PaymentFailed, models.OrderPending, models.PaymentStatusFailed},
		{models.PaymentCancelled, models.OrderPending, models.PaymentStatusCancelled},
	}
	for _, tc := range cases {
		t.Run(tc.status, func(t *testing.T) {
			svc, store, orders, pub := newServiceWithValidation(t, "http://127.0.0.1:0", server.URL)
			pendingPayment(store)

			payment, err := svc.Complete(context.Background(), "T1", tc.status, "VAL-1")
			require.NoError(t, err)
			assert.Equal(t, tc.status, payment.Status)
			assert.Equal(t, tc.status, store.payments["T1"].Status)
			assert.Equal(t, tc.paymentFlag, orders.orders["ORD-10001"].PaymentStatus)
			assert.Equal(t, tc.orderStatus, orders.orders["ORD-10001"].Status)
			require.Len(t, pub.events, 1)
			assert.Equal(t, events.TypePaymentUpdated, pub.events[0].Type)
		})
	}
}

func TestCompleteSuccessNeedsGatewayConfirmation(t *testing.T) {
	server, queries := validationServer(t, map[string]Validation{
		"VAL-CHEAP": {Status: "VALID", TranID: "T1", Amount: "1.00", Currency: "BDT"},
		"VAL-OTHER": {Status: "VALID", TranID: "T2", Amount: "960.00", Currency: "BDT"},
		"VAL-USD":   {Status: "VALID", TranID: "T1", Amount: "960.00", Currency: "USD"},
	})

	for _, valID := range []string{"", "VAL-UNKNOWN", "VAL-CHEAP", "VAL-OTHER", "VAL-USD"} {
		t.Run("val_id="+valID, func(t *testing.T) {
			svc, store, orders, pub := newServiceWithValidation(t, "http://127.0.0.1:0", server.URL)
			pendingPayment(store)

			_, err := svc.Complete(context.Background(), "T1", models.PaymentSuccess, valID)
			assert.ErrorIs(t, err, ErrNotVerified)
			assert.Equal(t, models.PaymentPending, store.payments["T1"].Status)
			assert.Equal(t, models.PaymentStatusPending, orders.orders["ORD-10001"].PaymentStatus)
			assert.Equal(t, models.OrderPending, orders.orders["ORD-10001"].Status)
			assert.Empty(t, pub.events)
		})
	}

	require.NotEmpty(t, *queries)
	q := (*queries)[0]
	assert.Equal(t, "VAL-UNKNOWN", q.Get("val_id"))
	assert.Equal(t, "store-1", q.Get("store_id"))
	assert.Equal(t, "secret-1", q.Get("store_passwd"))
	assert.Equal(t, "json", q.Get("format"))
}

func TestCompleteGatewayValidationDown(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	svc, store, _, _ := newServiceWithValidation(t, "http://127.0.0.1:0", server.URL)
	pendingPayment(store)

	_, err := svc.Complete(context.Background(), "T1", models.PaymentSuccess, "VAL-1")
	assert.Equal(t, apperr.CodeInternal, apperr.From(err).Code)
	assert.Equal(t, models.PaymentPending, store.payments["T1"].Status)
}

func TestCompleteOutcomesAreOneWay(t *testing.T) {
	server, _ := validationServer(t, map[string]Validation{
		"VAL-1": {Status: "VALIDATED", TranID: "T1", Amount: "960", Currency: "BDT"},
	})
	svc, store, orders, pub := newServiceWithValidation(t, "http://127.0.0.1:0", server.URL)
	pendingPayment(store)
	ctx := context.Background()

	_, err := svc.Complete(ctx, "T1", models.PaymentFailed, "")
	require.NoError(t, err)
	_, err = svc.Complete(ctx, "T1", models.PaymentSuccess, "VAL-1")
	require.NoError(t, err, "a verified success may follow a failure")

	for _, later := range []string{models.PaymentFailed, models.PaymentCancelled} {
		_, err = svc.Complete(ctx, "T1", later, "")
		assert.ErrorIs(t, err, ErrFinalized, later)
	}
	repeat, err := svc.Complete(ctx, "T1", models.PaymentSuccess, "VAL-1")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentSuccess, repeat.Status)

	assert.Equal(t, models.PaymentSuccess, store.payments["T1"].Status)
	assert.Equal(t, models.PaymentStatusPaid, orders.orders["ORD-10001"].PaymentStatus)
	assert.Equal(t, models.OrderConfirmed, orders.orders["ORD-10001"].Status)
	assert.Len(t, pub.events, 2)
}

func TestStatusChangesAreConditional(t *testing.T) {
	svc, store, _, _ := newService(t, "http://127.0.0.1:0")
	pendingPayment(store)
	require.NoError(t, store.SetStatus(context.Background(), "T1", models.PaymentPending, models.PaymentCancelled, ""))

	err := store.SetStatus(context.Background(), "T1", models.PaymentPending, models.PaymentFailed, "")
	assert.ErrorIs(t, err, ErrFinalized)

	_, err = svc.Complete(context.Background(), "T1", models.PaymentFailed, "")
	assert.ErrorIs(t, err, ErrFinalized)
}

func TestCompleteUnknownTransaction(t *testing.T) {
	svc, _, _, _ := newService(t, "http://127.0.0.1:0")

	_, err := svc.Complete(context.Background(), "missing", models.PaymentSuccess, "")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.Complete(context.Background(), "", models.PaymentSuccess, "")
	assert.Equal(t, apperr.CodeBadRequest, apperr.From(err).Code)

	_, err = svc.Complete(context.Background(), "T1", "refunded", "")
	assert.Equal(t, apperr.CodeBadRequest, apperr.From(err).Code)
}
