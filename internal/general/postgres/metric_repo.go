package postgres

import (
	"context"
	"errors"

	"delivery-dispatch/internal/domain/driver"
	"delivery-dispatch/internal/ports"

	"github.com/jackc/pgx/v5"
)

// MetricRepo appends device-health samples to driver_metrics.
type MetricRepo struct{}

func NewMetricRepo() ports.MetricRepository {
	return &MetricRepo{}
}

func (repo *MetricRepo) Append(ctx context.Context, s *driver.MetricSample) error {
	tx, err := txFrom(ctx)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO driver_metrics (id, driver_id, battery_level, signal_strength, recorded_at)
		VALUES ($1, $2, $3, $4, $5)
	`, s.ID, s.DriverID, s.BatteryLevel, s.SignalStrength, s.Timestamp)
	return err
}

func (repo *MetricRepo) Latest(ctx context.Context, driverID string) (*driver.MetricSample, error) {
	tx, err := txFrom(ctx)
	if err != nil {
		return nil, err
	}

	var s driver.MetricSample
	err = tx.QueryRow(ctx, `
		SELECT id, driver_id, battery_level, signal_strength, recorded_at
		FROM driver_metrics
		WHERE driver_id = $1
		ORDER BY recorded_at DESC
		LIMIT 1
	`, driverID).Scan(&s.ID, &s.DriverID, &s.BatteryLevel, &s.SignalStrength, &s.Timestamp)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Recent returns up to limit samples, newest first.
func (repo *MetricRepo) Recent(ctx context.Context, driverID string, limit int) ([]*driver.MetricSample, error) {
	tx, err := txFrom(ctx)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 100
	}

	rows, err := tx.Query(ctx, `
		SELECT id, driver_id, battery_level, signal_strength, recorded_at
		FROM driver_metrics
		WHERE driver_id = $1
		ORDER BY recorded_at DESC
		LIMIT $2
	`, driverID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*driver.MetricSample
	for rows.Next() {
		var s driver.MetricSample
		if err := rows.Scan(&s.ID, &s.DriverID, &s.BatteryLevel, &s.SignalStrength, &s.Timestamp); err != nil {
			return nil, err
		}
		out = append(out, &s)
	}
	return out, rows.Err()
}
