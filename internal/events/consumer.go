package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"storefront/internal/logger"
)

// Handler processes one event. Returning an error rejects the delivery without requeue.
type Handler func(ctx context.Context, ev Event) error

// Consume drains queue until ctx is cancelled, reconnecting with exponential
// backoff capped at 30s.
func Consume(ctx context.Context, url, queue string, handle Handler, log logger.Logger) {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return
		}
		conn, err := amqp.Dial(url)
		if err != nil {
			log.Warn("consumer dial failed", logger.Error(err), logger.Duration("retryIn", backoff))
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = consumeLoop(ctx, conn, queue, handle, log)
		_ = conn.Close()
		if ctx.Err() != nil {
			return
		}
		log.Warn("consumer loop ended, reconnecting", logger.Error(err))
		select {
		case <-ctx.Done():
			return
		case <-time.After(2 * time.Second):
		}
	}
}

func consumeLoop(ctx context.Context, conn *amqp.Connection, queue string, handle Handler, log logger.Logger) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(20, 0, false); err != nil {
		log.Warn("consumer qos failed", logger.Error(err))
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	deliveries, err := ch.Consume(queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := Dispatch(ctx, d.Body, handle); err != nil {
				log.Warn("event handling failed", logger.String("type", d.Type), logger.Error(err))
				_ = d.Nack(false, false)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

// Dispatch decodes a delivery body and hands it to handle.
func Dispatch(ctx context.Context, body []byte, handle Handler) error {
	var ev Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal event: %w", err)
	}
	if ev.Type == "" {
		return errors.New("event type missing")
	}
	return handle(ctx, ev)
}
