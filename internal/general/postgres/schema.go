package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schema is applied idempotently on startup.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS drivers (
		id              TEXT PRIMARY KEY,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
		name            TEXT NOT NULL,
		email           TEXT UNIQUE,
		phone           TEXT NOT NULL DEFAULT '',
		password_hash   TEXT NOT NULL DEFAULT '',
		status          TEXT NOT NULL DEFAULT 'offline'
		                CHECK (status IN ('offline', 'available', 'delivering')),
		last_lat        DOUBLE PRECISION,
		last_lng        DOUBLE PRECISION,
		last_update_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
		current_order_id TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS deliveries (
		id            TEXT PRIMARY KEY,
		order_id      TEXT NOT NULL UNIQUE,
		driver_id     TEXT NOT NULL REFERENCES drivers(id),
		status        TEXT NOT NULL
		              CHECK (status IN ('assigned', 'picked_up', 'delivering', 'completed')),
		pickup_lat    DOUBLE PRECISION NOT NULL,
		pickup_lng    DOUBLE PRECISION NOT NULL,
		drop_lat      DOUBLE PRECISION NOT NULL,
		drop_lng      DOUBLE PRECISION NOT NULL,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
		completed_at  TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS deliveries_driver_active_idx
		ON deliveries (driver_id, created_at) WHERE status <> 'completed'`,
	`CREATE TABLE IF NOT EXISTS driver_metrics (
		id              TEXT PRIMARY KEY,
		driver_id       TEXT NOT NULL REFERENCES drivers(id),
		battery_level   INT NOT NULL CHECK (battery_level BETWEEN 0 AND 100),
		signal_strength INT NOT NULL CHECK (signal_strength BETWEEN 0 AND 100),
		recorded_at     TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS driver_metrics_driver_time_idx
		ON driver_metrics (driver_id, recorded_at DESC)`,
}

// EnsureSchema creates the dispatch tables when they do not exist yet.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	for i, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema statement %d: %w", i, err)
		}
	}
	return nil
}
