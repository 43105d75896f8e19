package memory

import (
	"context"

	"delivery-dispatch/internal/ports"
)

// Store holds the in-memory repositories used when storage.driver is "memory".
type Store struct {
	drivers    *driverStore
	deliveries *deliveryStore
	metrics    *metricStore
}

func NewStore() *Store {
	return &Store{
		drivers:    newDriverStore(),
		deliveries: newDeliveryStore(),
		metrics:    newMetricStore(),
	}
}

func (s *Store) Drivers() ports.DriverRepository { return s.drivers }
func (s *Store) Deliveries() ports.DeliveryRepository { return s.deliveries }
func (s *Store) Metrics() ports.MetricRepository { return s.metrics }
func (s *Store) UnitOfWork() ports.UnitOfWork { return unitOfWork{} }

// unitOfWork runs fn directly. Each store is individually synchronized and the
// router serializes per entity, so there is nothing to commit or roll back.
type unitOfWork struct{}

func (unitOfWork) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
