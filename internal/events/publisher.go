package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"storefront/internal/logger"
)

// AMQPPublisher keeps one connection and reopens it after a failure.
type AMQPPublisher struct {
	url   string
	queue string
	log   logger.Logger

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

func NewAMQPPublisher(url, queue string, log logger.Logger) *AMQPPublisher {
	return &AMQPPublisher{url: url, queue: queue, log: log}
}

func (p *AMQPPublisher) channel() (*amqp.Channel, error) {
	if p.ch != nil && !p.ch.IsClosed() {
		return p.ch, nil
	}
	if p.conn == nil || p.conn.IsClosed() {
		conn, err := amqp.Dial(p.url)
		if err != nil {
			return nil, fmt.Errorf("amqp dial: %w", err)
		}
		p.conn = conn
	}
	ch, err := p.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("amqp channel: %w", err)
	}
	if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("amqp queue declare: %w", err)
	}
	p.ch = ch
	return ch, nil
}

func (p *AMQPPublisher) Publish(ctx context.Context, ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	ch, err := p.channel()
	if err != nil {
		p.log.Warn("event publish failed", logger.String("type", ev.Type), logger.Error(err))
		return err
	}

	err = ch.PublishWithContext(ctx, "", p.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    ev.ID,
		Timestamp:    time.Now().UTC(),
		Type:         ev.Type,
		Body:         body,
	})
	if err != nil {
		p.log.Warn("event publish failed", logger.String("type", ev.Type), logger.Error(err))
		return err
	}
	return nil
}

func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

// LogPublisher is used when no broker is configured; events only reach the log.
type LogPublisher struct {
	Log logger.Logger
}

func (p LogPublisher) Publish(_ context.Context, ev Event) error {
	p.Log.Info("event", logger.String("type", ev.Type), logger.String("payload", redact(ev)))
	return nil
}

func (p LogPublisher) Close() error { return nil }

// redact hides OTP codes from logs.
func redact(ev Event) string {
	if ev.Type != TypeOTPRequested {
		return string(ev.Payload)
	}
	var otp OTPRequested
	if err := json.Unmarshal(ev.Payload, &otp); err != nil {
		return "{}"
	}
	otp.Code = "******"
	body, _ := json.Marshal(otp)
	return string(body)
}
