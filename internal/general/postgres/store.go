package postgres

import (
	"github.com/jackc/pgx/v5/pgxpool"

	"delivery-dispatch/internal/ports"
)

// Store bundles the pgx-backed repositories behind one pool.
type Store struct {
	uow        ports.UnitOfWork
	drivers    ports.DriverRepository
	deliveries ports.DeliveryRepository
	metrics    ports.MetricRepository
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{
		uow:        NewUnitOfWork(pool),
		drivers:    NewDriverRepo(),
		deliveries: NewDeliveryRepo(),
		metrics:    NewMetricRepo(),
	}
}

func (s *Store) Drivers() ports.DriverRepository { return s.drivers }
func (s *Store) Deliveries() ports.DeliveryRepository { return s.deliveries }
func (s *Store) Metrics() ports.MetricRepository { return s.metrics }
func (s *Store) UnitOfWork() ports.UnitOfWork { return s.uow }
