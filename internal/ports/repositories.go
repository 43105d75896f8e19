package ports

import (
	"context"

	"delivery-dispatch/internal/domain/delivery"
	"delivery-dispatch/internal/domain/driver"
)

// UnitOfWork interface is used to manage transactions across multiple repository operations.
type UnitOfWork interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// DriverRepository defines the methods for managing driver data.
// Reads inside WithinTx lock the row until the transaction ends.
type DriverRepository interface {
	Create(ctx context.Context, d *driver.Driver) error
	GetByID(ctx context.Context, driverID string) (*driver.Driver, error)
	GetByEmail(ctx context.Context, email string) (*driver.Driver, error)
	Update(ctx context.Context, d *driver.Driver) error
	ListActive(ctx context.Context) ([]*driver.Driver, error)
}

// DeliveryRepository defines the methods for managing delivery data.
type DeliveryRepository interface {
	Create(ctx context.Context, d *delivery.Delivery) error
	GetByID(ctx context.Context, deliveryID string) (*delivery.Delivery, error)
	GetByOrderID(ctx context.Context, orderID string) (*delivery.Delivery, error)
	Update(ctx context.Context, d *delivery.Delivery) error
	// ListActiveByDriver returns non-completed deliveries, oldest first.
	ListActiveByDriver(ctx context.Context, driverID string) ([]*delivery.Delivery, error)
	// ListActive returns every non-completed delivery, oldest first.
	ListActive(ctx context.Context) ([]*delivery.Delivery, error)
}

// MetricRepository stores the append-only device-health samples.
type MetricRepository interface {
	Append(ctx context.Context, s *driver.MetricSample) error
	// Latest returns (nil, nil) when the driver has no samples yet.
	Latest(ctx context.Context, driverID string) (*driver.MetricSample, error)
	Recent(ctx context.Context, driverID string, limit int) ([]*driver.MetricSample, error)
}

// Store groups the repositories of one storage backend with its unit of work.
type Store interface {
	UnitOfWork() UnitOfWork
	Drivers() DriverRepository
	Deliveries() DeliveryRepository
	Metrics() MetricRepository
}
