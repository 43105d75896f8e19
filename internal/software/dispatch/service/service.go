package service

import (
	"time"

	"delivery-dispatch/internal/domain/driver"
	"delivery-dispatch/internal/general/contracts"
	"delivery-dispatch/internal/general/logger"
	"delivery-dispatch/internal/general/metrics"
	"delivery-dispatch/internal/general/rooms"
	"delivery-dispatch/internal/ports"

	"github.com/google/uuid"
)

// Router is the server-side event router. It authorizes inbound events against the
// sender's role, mutates drivers and deliveries under per-entity locks, and fans the
// derived events out to rooms.
type Router struct {
	store      ports.Store
	rooms      *rooms.Directory
	logger     *logger.Logger
	metrics    *metrics.Recorder
	thresholds driver.Thresholds
	locks      *keyedMutex
	now        func() time.Time
	newID      func() string
}

type Option func(*Router)

// WithThresholds overrides the device alert thresholds.
func WithThresholds(t driver.Thresholds) Option {
	return func(r *Router) { r.thresholds = t }
}

func WithClock(now func() time.Time) Option {
	return func(r *Router) { r.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(r *Router) { r.newID = newID }
}

func NewRouter(store ports.Store, dir *rooms.Directory, log *logger.Logger, rec *metrics.Recorder, opts ...Option) *Router {
	r := &Router{
		store:      store,
		rooms:      dir,
		logger:     log,
		metrics:    rec,
		thresholds: driver.DefaultThresholds,
		locks:      newKeyedMutex(),
		now:        func() time.Time { return time.Now().UTC() },
		newID:      uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Router) publish(room rooms.RoomID, t contracts.EventType, data any) int {
	return r.rooms.Publish(room, contracts.NewOutbound(t, data))
}

func (r *Router) publishDriverStatus(d *driver.Driver) {
	r.publish(rooms.Admin(), contracts.EventDriverStatusChanged, contracts.DriverStatusChanged{
		DriverID:       d.ID,
		Status:         d.Status.String(),
		CurrentOrderID: d.CurrentOrderID,
		Timestamp:      r.now(),
	})
}

var _ ports.DeliveryAssigner = (*Router)(nil)
