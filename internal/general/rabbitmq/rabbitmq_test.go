package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"delivery-dispatch/internal/general/config"
	"delivery-dispatch/internal/general/contracts"
	"delivery-dispatch/internal/general/logger"
	"delivery-dispatch/internal/general/rooms"
	"delivery-dispatch/internal/ports"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type published struct {
	exchange, key string
	body          []byte
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []published
	err  error
}

func (f *fakePublisher) PublishMessage(_ context.Context, exchange, key string, body []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, published{exchange, key, body})
	return f.err
}

func (f *fakePublisher) snapshot() []published {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]published(nil), f.msgs...)
}

func TestRoutingKey(t *testing.T) {
	assert.Equal(t, "dispatch.admin.driverDeviceAlert", RoutingKey(rooms.Admin(), contracts.EventDriverDeviceAlert))
	assert.Equal(t, "dispatch.customer.newMessage", RoutingKey(rooms.ForCustomer("ord-1"), contracts.EventNewMessage))
}

func TestMirrorPublishesToDispatchTopic(t *testing.T) {
	pub := &fakePublisher{}
	m := NewMirror(pub, logger.Nop(), "dispatch-service", 4)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { m.Run(ctx); close(done) }()

	m.Published(rooms.ForDriver("D1"), contracts.NewOutbound(contracts.EventNewMessage, contracts.NewMessage{Content: "hi"}), 1)

	require.Eventually(t, func() bool { return len(pub.snapshot()) == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done

	msg := pub.snapshot()[0]
	assert.Equal(t, contracts.ExchangeDispatchTopic, msg.exchange)
	assert.Equal(t, "dispatch.driver.newMessage", msg.key)

	var got map[string]any
	require.NoError(t, json.Unmarshal(msg.body, &got))
	assert.Equal(t, "driver-D1", got["room"])
	assert.Equal(t, "newMessage", got["event"])
	assert.Equal(t, "dispatch-service", got["producer"])
}

func TestMirrorDropsWhenFull(t *testing.T) {
	m := NewMirror(&fakePublisher{}, logger.Nop(), "p", 1)
	ev := contracts.NewAck(contracts.EventSendMessage)
	m.Published(rooms.Admin(), ev, 0)
	m.Published(rooms.Admin(), ev, 0)
	m.Published(rooms.Admin(), ev, 0)
	assert.Equal(t, int64(2), m.Dropped())
}

func TestMirrorSurvivesPublishErrors(t *testing.T) {
	pub := &fakePublisher{err: errors.New("broker down")}
	m := NewMirror(pub, logger.Nop(), "p", 4)
	m.publish(context.Background(), mirrored{room: rooms.Admin(), ev: contracts.NewAck(contracts.EventSendMessage)})
	assert.Len(t, pub.snapshot(), 1)
}

func TestDecodeAssignment(t *testing.T) {
	in, err := DecodeAssignment([]byte(`{"orderId":"ord-1","driverId":"D1","pickup":{"latitude":1,"longitude":2},"drop":{"latitude":3,"longitude":4}}`))
	require.NoError(t, err)
	assert.Equal(t, "ord-1", in.OrderID)
	assert.Equal(t, "D1", in.DriverID)
	assert.Equal(t, 2.0, in.Pickup.Longitude)
	assert.Equal(t, 3.0, in.Drop.Latitude)

	_, err = DecodeAssignment([]byte(`{"orderId":"ord-1"}`))
	assert.ErrorIs(t, err, ErrBadAssignment)
	_, err = DecodeAssignment([]byte(`nope`))
	assert.ErrorIs(t, err, ErrBadAssignment)
}

type fakeAssigner struct {
	got []ports.AssignDeliveryInput
	err error
}

func (f *fakeAssigner) AssignDelivery(_ context.Context, in ports.AssignDeliveryInput) (ports.DeliveryView, error) {
	f.got = append(f.got, in)
	if f.err != nil {
		return ports.DeliveryView{}, f.err
	}
	return ports.DeliveryView{ID: "dlv-1", OrderID: in.OrderID, DriverID: in.DriverID}, nil
}

func TestAssignmentConsumerHandleBody(t *testing.T) {
	assigner := &fakeAssigner{}
	c := NewAssignmentConsumer(nil, assigner, logger.Nop())
	ctx := context.Background()

	require.NoError(t, c.HandleBody(ctx, "payment.confirmed.ord-1", []byte(`{"orderId":"ord-1","driverId":"D1"}`)))
	require.Len(t, assigner.got, 1)

	assert.ErrorIs(t, c.HandleBody(ctx, "payment.confirmed.x", []byte(`{}`)), ErrBadAssignment)
	assert.Len(t, assigner.got, 1)

	assigner.err = errors.New("driver not found")
	assert.Error(t, c.HandleBody(ctx, "payment.confirmed.ord-2", []byte(`{"orderId":"ord-2","driverId":"D9"}`)))
}

func TestBrokerURLEscapesCredentials(t *testing.T) {
	cfg := &config.Config{}
	cfg.RabbitMQ.Host = "mq.internal"
	cfg.RabbitMQ.Port = 5673
	cfg.RabbitMQ.User = "dispatch"
	cfg.RabbitMQ.Password = "p@ss:word"

	uri, err := amqp.ParseURI(brokerURL(cfg))
	require.NoError(t, err)
	assert.Equal(t, "mq.internal", uri.Host)
	assert.Equal(t, 5673, uri.Port)
	assert.Equal(t, "dispatch", uri.Username)
	assert.Equal(t, "p@ss:word", uri.Password)
}

func TestAwaitConfirm(t *testing.T) {
	ctx := context.Background()

	acks := make(chan amqp.Confirmation, 1)
	acks <- amqp.Confirmation{DeliveryTag: 1, Ack: true}
	assert.NoError(t, awaitConfirm(ctx, acks))

	acks <- amqp.Confirmation{DeliveryTag: 2, Ack: false}
	assert.ErrorIs(t, awaitConfirm(ctx, acks), ErrNacked)

	closed := make(chan amqp.Confirmation)
	close(closed)
	assert.ErrorIs(t, awaitConfirm(ctx, closed), ErrNotConnected)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	late := make(chan amqp.Confirmation)
	go func() {
		time.Sleep(20 * time.Millisecond)
		late <- amqp.Confirmation{DeliveryTag: 3, Ack: true}
	}()
	assert.ErrorIs(t, awaitConfirm(cancelled, late), context.Canceled)
}
