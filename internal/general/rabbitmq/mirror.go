package rabbitmq

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"delivery-dispatch/internal/general/contracts"
	"delivery-dispatch/internal/general/logger"
	"delivery-dispatch/internal/general/rooms"
)

// Publisher is the part of Client the mirror needs.
type Publisher interface {
	PublishMessage(ctx context.Context, exchange, routingKey string, body []byte) error
}

type mirrored struct {
	room rooms.RoomID
	ev   contracts.Outbound
	at   time.Time
}

// Mirror copies room publishes to the dispatch topic exchange. It never blocks the caller:
// when its buffer is full the copy is dropped.
type Mirror struct {
	pub      Publisher
	logger   *logger.Logger
	producer string
	queue    chan mirrored
	dropped  atomic.Int64
}

func NewMirror(pub Publisher, log *logger.Logger, producer string, buffer int) *Mirror {
	if buffer <= 0 {
		buffer = 256
	}
	return &Mirror{
		pub:      pub,
		logger:   log,
		producer: producer,
		queue:    make(chan mirrored, buffer),
	}
}

// RoutingKey is "dispatch.<room kind>.<event>".
func RoutingKey(room rooms.RoomID, event contracts.EventType) string {
	return contracts.RouteDispatchPrefix + string(room.Kind()) + "." + event.String()
}

// Published implements rooms.Observer.
func (m *Mirror) Published(room rooms.RoomID, ev contracts.Outbound, _ int) {
	select {
	case m.queue <- mirrored{room: room, ev: ev, at: time.Now().UTC()}:
	default:
		m.dropped.Add(1)
	}
}

// Dropped is the number of copies discarded because the buffer was full.
func (m *Mirror) Dropped() int64 {
	return m.dropped.Load()
}

// Run publishes queued copies until ctx is done.
func (m *Mirror) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case item := <-m.queue:
			m.publish(ctx, item)
		}
	}
}

func (m *Mirror) publish(ctx context.Context, item mirrored) {
	body, err := json.Marshal(contracts.MirroredEvent{
		Room:  item.room.String(),
		Event: item.ev.Type,
		Data:  item.ev.Data,
		Envelope: contracts.Envelope{
			Producer: m.producer,
			SentAt:   item.at,
		},
	})
	if err != nil {
		m.logger.Error(ctx, "mirror_marshal_failed", "Failed to encode mirrored event", err,
			map[string]any{"room": item.room.String(), "event": item.ev.Type})
		return
	}

	key := RoutingKey(item.room, item.ev.Type)
	if err := m.pub.PublishMessage(ctx, contracts.ExchangeDispatchTopic, key, body); err != nil {
		m.logger.Warn(ctx, "mirror_publish_failed", "Failed to mirror event to broker",
			map[string]any{"routing_key": key, "error": err.Error()})
	}
}

var _ rooms.Observer = (*Mirror)(nil)
