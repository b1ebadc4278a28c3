package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/logger"
)

type recordingMailer struct {
	to, subject, body string
	calls             int
}

func (m *recordingMailer) Send(_ context.Context, to, subject, body string) error {
	m.to, m.subject, m.body = to, subject, body
	m.calls++
	return nil
}

func TestNewAssignsIDs(t *testing.T) {
	a, err := New(TypePaymentUpdated, PaymentUpdated{TranID: "t1", Status: "success"})
	require.NoError(t, err)
	b, err := New(TypePaymentUpdated, PaymentUpdated{TranID: "t1", Status: "success"})
	require.NoError(t, err)

	assert.Len(t, a.ID, 36)
	assert.NotEqual(t, a.ID, b.ID)
	assert.JSONEq(t, `{"tranId":"t1","status":"success"}`, string(a.Payload))
}

func TestDispatchOTPToMailer(t *testing.T) {
	ev, err := New(TypeOTPRequested, OTPRequested{Email: "a@b.c", Code: "123456", ExpiresAt: time.Now()})
	require.NoError(t, err)
	body, err := json.Marshal(ev)
	require.NoError(t, err)

	mailer := &recordingMailer{}
	require.NoError(t, Dispatch(context.Background(), body, Notifier{Mailer: mailer}.Handle))

	assert.Equal(t, "a@b.c", mailer.to)
	assert.Contains(t, mailer.body, "123456")
}

func TestDispatchOrderWithoutEmailIsSilent(t *testing.T) {
	ev, err := New(TypeOrderPlaced, OrderPlaced{OrderID: "ORD-10001"})
	require.NoError(t, err)
	body, _ := json.Marshal(ev)

	mailer := &recordingMailer{}
	require.NoError(t, Dispatch(context.Background(), body, Notifier{Mailer: mailer}.Handle))
	assert.Zero(t, mailer.calls)
}

func TestDispatchRejectsBadBodies(t *testing.T) {
	handle := Notifier{Mailer: &recordingMailer{}}.Handle
	assert.Error(t, Dispatch(context.Background(), []byte("not json"), handle))
	assert.Error(t, Dispatch(context.Background(), []byte(`{"payload":{}}`), handle))
	assert.Error(t, Dispatch(context.Background(), []byte(`{"type":"mystery","payload":{}}`), handle))
}

func TestRedactHidesOTP(t *testing.T) {
	ev, err := New(TypeOTPRequested, OTPRequested{Email: "a@b.c", Code: "654321"})
	require.NoError(t, err)
	out := redact(ev)
	assert.NotContains(t, out, "654321")
	assert.Contains(t, out, "a@b.c")

	assert.NoError(t, LogPublisher{Log: logger.NewNop()}.Publish(context.Background(), ev))
}
