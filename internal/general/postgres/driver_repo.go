package postgres

import (
	"context"
	"errors"
	"fmt"

	"delivery-dispatch/internal/domain/driver"
	"delivery-dispatch/internal/domain/geo"
	"delivery-dispatch/internal/ports"

	"github.com/jackc/pgx/v5"
)

// DriverRepo persists drivers using pgx and plain SQL.
type DriverRepo struct{}

// NewDriverRepo constructs a new DriverRepo.
func NewDriverRepo() ports.DriverRepository {
	return &DriverRepo{}
}

const driverColumns = `
	id, created_at, name, COALESCE(email, ''), phone, password_hash,
	status, last_lat, last_lng, last_update_at, current_order_id`

// Create inserts a new driver row.
func (repo *DriverRepo) Create(ctx context.Context, d *driver.Driver) error {
	tx, err := txFrom(ctx)
	if err != nil {
		return err
	}

	lat, lng := nullablePoint(d.LastKnownLocation)
	_, err = tx.Exec(ctx, `
		INSERT INTO drivers (id, created_at, name, email, phone, password_hash,
		                     status, last_lat, last_lng, last_update_at, current_order_id)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, $8, $9, $10, $11)
	`,
		d.ID, d.CreatedAt, d.Name, d.Email, d.Phone, d.PasswordHash,
		d.Status.String(), lat, lng, d.LastUpdateAt, d.CurrentOrderID,
	)
	switch uniqueConstraint(err) {
	case "":
		return err
	case "drivers_email_key":
		return driver.ErrEmailTaken
	default:
		return driver.ErrAlreadyExists
	}
}

// GetByID returns one driver by id and locks the row for the rest of the transaction.
func (repo *DriverRepo) GetByID(ctx context.Context, driverID string) (*driver.Driver, error) {
	tx, err := txFrom(ctx)
	if err != nil {
		return nil, err
	}

	row := tx.QueryRow(ctx, `SELECT `+driverColumns+` FROM drivers WHERE id = $1 FOR UPDATE`, driverID)
	return scanDriver(row)
}

// GetByEmail is used by the login endpoint.
func (repo *DriverRepo) GetByEmail(ctx context.Context, email string) (*driver.Driver, error) {
	tx, err := txFrom(ctx)
	if err != nil {
		return nil, err
	}

	row := tx.QueryRow(ctx, `SELECT `+driverColumns+` FROM drivers WHERE lower(email) = lower($1)`, email)
	return scanDriver(row)
}

// Update writes the mutable operational state of a driver.
func (repo *DriverRepo) Update(ctx context.Context, d *driver.Driver) error {
	tx, err := txFrom(ctx)
	if err != nil {
		return err
	}

	lat, lng := nullablePoint(d.LastKnownLocation)
	tag, err := tx.Exec(ctx, `
		UPDATE drivers
		SET status = $1,
		    last_lat = $2,
		    last_lng = $3,
		    last_update_at = $4,
		    current_order_id = $5,
		    updated_at = now()
		WHERE id = $6
	`, d.Status.String(), lat, lng, d.LastUpdateAt, d.CurrentOrderID, d.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return driver.ErrNotFound
	}
	return nil
}

// ListActive returns every driver that is not offline, ordered by id.
func (repo *DriverRepo) ListActive(ctx context.Context) ([]*driver.Driver, error) {
	tx, err := txFrom(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, `SELECT `+driverColumns+` FROM drivers WHERE status <> 'offline' ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*driver.Driver
	for rows.Next() {
		d, err := scanDriver(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func scanDriver(row pgx.Row) (*driver.Driver, error) {
	var (
		out        driver.Driver
		statusText string
		lat, lng   *float64
	)
	err := row.Scan(
		&out.ID, &out.CreatedAt, &out.Name, &out.Email, &out.Phone, &out.PasswordHash,
		&statusText, &lat, &lng, &out.LastUpdateAt, &out.CurrentOrderID,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, driver.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	status, err := driver.ParseStatus(statusText)
	if err != nil {
		return nil, fmt.Errorf("driver %s: %w", out.ID, err)
	}
	out.Status = status
	if lat != nil && lng != nil {
		out.LastKnownLocation = &geo.Point{Lat: *lat, Lng: *lng}
	}
	return &out, nil
}

func nullablePoint(p *geo.Point) (lat, lng *float64) {
	if p == nil {
		return nil, nil
	}
	return &p.Lat, &p.Lng
}
