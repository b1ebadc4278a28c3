package events

import (
	"context"
	"encoding/json"
	"fmt"

	"storefront/internal/logger"
)

// Mailer delivers a rendered message. The production mail provider is not
// wired here; LogMailer stands in for it.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

type LogMailer struct {
	Log logger.Logger
}

func (m LogMailer) Send(_ context.Context, to, subject, _ string) error {
	m.Log.Info("mail sent", logger.String("to", to), logger.String("subject", subject))
	return nil
}

// Notifier turns events into mail.
type Notifier struct {
	Mailer Mailer
}

func (n Notifier) Handle(ctx context.Context, ev Event) error {
	switch ev.Type {
	case TypeOTPRequested:
		var p OTPRequested
		if err := json.Unmarshal(ev.Payload, &p); err != nil {
			return err
		}
		body := fmt.Sprintf("Your password reset code is %s. It expires at %s.", p.Code, p.ExpiresAt.Format("15:04 MST"))
		return n.Mailer.Send(ctx, p.Email, "Password reset code", body)
	case TypeOrderPlaced:
		var p OrderPlaced
		if err := json.Unmarshal(ev.Payload, &p); err != nil {
			return err
		}
		if p.Email == "" {
			return nil
		}
		body := fmt.Sprintf("Your order %s was placed. Total: %.2f", p.OrderID, p.TotalAmount)
		return n.Mailer.Send(ctx, p.Email, "Order "+p.OrderID+" received", body)
	case TypePaymentUpdated:
		return nil
	default:
		return fmt.Errorf("unknown event type %q", ev.Type)
	}
}
