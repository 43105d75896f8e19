package postgres

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"delivery-dispatch/internal/general/config"
	"delivery-dispatch/internal/general/logger"
)

const (
	connectTimeout = 5 * time.Second
	pingTimeout    = 5 * time.Second
)

// databaseURL renders the connection URL of the dispatch database. The password is escaped
// by url.UserPassword and never logged.
func databaseURL(cfg *config.Config) string {
	db := cfg.Database
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(db.User, db.Password),
		Host:     net.JoinHostPort(db.Host, strconv.Itoa(db.Port)),
		Path:     "/" + db.Name,
		RawQuery: url.Values{"sslmode": {db.SSLMode}}.Encode(),
	}
	return u.String()
}

// NewPool opens the pgx pool used by the dispatch store and pings it before returning.
func NewPool(ctx context.Context, cfg *config.Config, logger *logger.Logger) (*pgxpool.Pool, error) {
	start := time.Now()
	db := cfg.Database

	pcfg, err := pgxpool.ParseConfig(databaseURL(cfg))
	if err != nil {
		return nil, fmt.Errorf("postgres: parse config: %w", err)
	}
	pcfg.ConnConfig.ConnectTimeout = connectTimeout
	if pcfg.ConnConfig.RuntimeParams == nil {
		pcfg.ConnConfig.RuntimeParams = map[string]string{}
	}
	// timestamps are stored and compared in UTC
	pcfg.ConnConfig.RuntimeParams["timezone"] = "UTC"
	pcfg.ConnConfig.RuntimeParams["application_name"] = "delivery-dispatch"
	pcfg.MaxConns = db.MaxConns
	pcfg.HealthCheckPeriod = 30 * time.Second
	pcfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: open pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping %s:%d: %w", db.Host, db.Port, err)
	}

	logger.Info(ctx, "db_connected", "Connected to the dispatch database", map[string]any{
		"host":        db.Host,
		"port":        db.Port,
		"database":    db.Name,
		"user":        db.User,
		"sslmode":     db.SSLMode,
		"max_conns":   db.MaxConns,
		"duration_ms": time.Since(start).Milliseconds(),
	})
	return pool, nil
}
