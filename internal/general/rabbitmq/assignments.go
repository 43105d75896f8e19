package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"delivery-dispatch/internal/general/contracts"
	"delivery-dispatch/internal/general/logger"
	"delivery-dispatch/internal/ports"

	amqp "github.com/rabbitmq/amqp091-go"
)

var ErrBadAssignment = errors.New("malformed delivery assignment")

// DecodeAssignment validates a payment-confirmed message body.
func DecodeAssignment(body []byte) (ports.AssignDeliveryInput, error) {
	var msg contracts.DeliveryAssignment
	if err := json.Unmarshal(body, &msg); err != nil {
		return ports.AssignDeliveryInput{}, fmt.Errorf("%w: %v", ErrBadAssignment, err)
	}
	if strings.TrimSpace(msg.OrderID) == "" || strings.TrimSpace(msg.DriverID) == "" {
		return ports.AssignDeliveryInput{}, fmt.Errorf("%w: orderId and driverId are required", ErrBadAssignment)
	}
	return ports.AssignDeliveryInput{
		OrderID:  msg.OrderID,
		DriverID: msg.DriverID,
		Pickup:   ports.GeoPoint{Latitude: msg.Pickup.Latitude, Longitude: msg.Pickup.Longitude},
		Drop:     ports.GeoPoint{Latitude: msg.Drop.Latitude, Longitude: msg.Drop.Longitude},
	}, nil
}

// AssignmentConsumer turns payment confirmations into delivery assignments.
type AssignmentConsumer struct {
	client   *Client
	assigner ports.DeliveryAssigner
	logger   *logger.Logger
}

func NewAssignmentConsumer(client *Client, assigner ports.DeliveryAssigner, log *logger.Logger) *AssignmentConsumer {
	return &AssignmentConsumer{client: client, assigner: assigner, logger: log}
}

// Run blocks until ctx is cancelled.
func (c *AssignmentConsumer) Run(ctx context.Context) {
	c.client.ConsumeForever(ctx, contracts.QueueDeliveryAssignments, "dispatch-service-assignments", 10,
		func(ctx context.Context, d amqp.Delivery) error {
			return c.HandleBody(ctx, d.RoutingKey, d.Body)
		})
}

// HandleBody processes one message. A returned error makes the consumer drop the message.
func (c *AssignmentConsumer) HandleBody(ctx context.Context, routingKey string, body []byte) error {
	in, err := DecodeAssignment(body)
	if err != nil {
		c.logger.Error(ctx, "mq_message_parse_failed", "Failed to parse delivery assignment", err,
			map[string]any{"routing_key": routingKey})
		return err
	}

	out, err := c.assigner.AssignDelivery(ctx, in)
	if err != nil {
		c.logger.Error(ctx, "assignment_failed", "Failed to assign delivery from payment confirmation", err,
			map[string]any{"order_id": in.OrderID, "driver_id": in.DriverID})
		return err
	}

	c.logger.Info(ctx, "assignment_consumed", "Delivery assigned from payment confirmation",
		map[string]any{"order_id": out.OrderID, "delivery_id": out.ID, "driver_id": out.DriverID})
	return nil
}
