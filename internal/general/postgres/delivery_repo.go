package postgres

import (
	"context"
	"errors"
	"fmt"

	"delivery-dispatch/internal/domain/delivery"
	"delivery-dispatch/internal/ports"

	"github.com/jackc/pgx/v5"
)

// DeliveryRepo persists deliveries using pgx and plain SQL.
type DeliveryRepo struct{}

func NewDeliveryRepo() ports.DeliveryRepository {
	return &DeliveryRepo{}
}

const deliveryColumns = `
	id, order_id, driver_id, status,
	pickup_lat, pickup_lng, drop_lat, drop_lng,
	created_at, completed_at`

// Create inserts a delivery. A second delivery for the same order is rejected.
func (repo *DeliveryRepo) Create(ctx context.Context, d *delivery.Delivery) error {
	tx, err := txFrom(ctx)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO deliveries (id, order_id, driver_id, status,
		                        pickup_lat, pickup_lng, drop_lat, drop_lng,
		                        created_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		d.ID, d.OrderID, d.DriverID, d.Status.String(),
		d.PickupLocation.Lat, d.PickupLocation.Lng, d.DropLocation.Lat, d.DropLocation.Lng,
		d.CreatedAt, d.CompletedAt,
	)
	if uniqueConstraint(err) == "deliveries_order_id_key" {
		return delivery.ErrOrderAssigned
	}
	return err
}

// GetByID returns one delivery and locks it for the rest of the transaction.
func (repo *DeliveryRepo) GetByID(ctx context.Context, deliveryID string) (*delivery.Delivery, error) {
	tx, err := txFrom(ctx)
	if err != nil {
		return nil, err
	}

	row := tx.QueryRow(ctx, `SELECT `+deliveryColumns+` FROM deliveries WHERE id = $1 FOR UPDATE`, deliveryID)
	return scanDelivery(row)
}

func (repo *DeliveryRepo) GetByOrderID(ctx context.Context, orderID string) (*delivery.Delivery, error) {
	tx, err := txFrom(ctx)
	if err != nil {
		return nil, err
	}

	row := tx.QueryRow(ctx, `SELECT `+deliveryColumns+` FROM deliveries WHERE order_id = $1`, orderID)
	return scanDelivery(row)
}

// Update persists status and completion time. Status never moves backward in SQL either.
func (repo *DeliveryRepo) Update(ctx context.Context, d *delivery.Delivery) error {
	tx, err := txFrom(ctx)
	if err != nil {
		return err
	}

	tag, err := tx.Exec(ctx, `
		UPDATE deliveries
		SET status = $1,
		    completed_at = COALESCE(completed_at, $2)
		WHERE id = $3
	`, d.Status.String(), d.CompletedAt, d.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return delivery.ErrNotFound
	}
	return nil
}

func (repo *DeliveryRepo) ListActiveByDriver(ctx context.Context, driverID string) ([]*delivery.Delivery, error) {
	return repo.listActive(ctx, `AND driver_id = $1`, driverID)
}

func (repo *DeliveryRepo) ListActive(ctx context.Context) ([]*delivery.Delivery, error) {
	return repo.listActive(ctx, ``)
}

func (repo *DeliveryRepo) listActive(ctx context.Context, filter string, args ...any) ([]*delivery.Delivery, error) {
	tx, err := txFrom(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, `
		SELECT `+deliveryColumns+`
		FROM deliveries
		WHERE status <> 'completed' `+filter+`
		ORDER BY created_at, id
	`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*delivery.Delivery
	for rows.Next() {
		d, err := scanDelivery(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func scanDelivery(row pgx.Row) (*delivery.Delivery, error) {
	var (
		out        delivery.Delivery
		statusText string
	)
	err := row.Scan(
		&out.ID, &out.OrderID, &out.DriverID, &statusText,
		&out.PickupLocation.Lat, &out.PickupLocation.Lng, &out.DropLocation.Lat, &out.DropLocation.Lng,
		&out.CreatedAt, &out.CompletedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, delivery.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	status, err := delivery.ParseStatus(statusText)
	if err != nil {
		return nil, fmt.Errorf("delivery %s: %w", out.ID, err)
	}
	out.Status = status
	return &out, nil
}
