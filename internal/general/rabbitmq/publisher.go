package rabbitmq

import (
	"context"
	"errors"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	publishTimeout = 5 * time.Second
	// lateConfirmWait drains a confirm that arrives after the caller gave up, so the next
	// publish does not read it as its own.
	lateConfirmWait = 2 * time.Second
)

var (
	ErrNotConnected = errors.New("rabbitmq: not connected")
	ErrNacked       = errors.New("rabbitmq: broker did not acknowledge the publish")
)

// PublishMessage publishes a persistent JSON body and waits for the broker confirm.
func (client *Client) PublishMessage(parent context.Context, exchange, routingKey string, body []byte) error {
	client.mu.RLock()
	conn, ch := client.conn, client.pubChan
	client.mu.RUnlock()
	if conn == nil || conn.IsClosed() || ch == nil || ch.IsClosed() {
		return ErrNotConnected
	}

	// confirms arrive in publish order, so one publish is in flight at a time
	client.pubMu.Lock()
	defer client.pubMu.Unlock()
	confirms := client.pubConfirms

	ctx, cancel := context.WithTimeout(parent, publishTimeout)
	defer cancel()

	msg := amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		ContentType:  "application/json",
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, exchange, routingKey, true, false, msg); err != nil {
		return err
	}
	return awaitConfirm(ctx, confirms)
}

func awaitConfirm(ctx context.Context, confirms <-chan amqp.Confirmation) error {
	select {
	case c, ok := <-confirms:
		if !ok {
			return ErrNotConnected
		}
		if !c.Ack {
			return ErrNacked
		}
		return nil
	case <-ctx.Done():
		select {
		case <-confirms:
		case <-time.After(lateConfirmWait):
		}
		return ctx.Err()
	}
}
