package dispatchservice

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"delivery-dispatch/internal/domain/driver"
	"delivery-dispatch/internal/general/config"
	"delivery-dispatch/internal/general/jwt"
	"delivery-dispatch/internal/general/logger"
	"delivery-dispatch/internal/general/memory"
	"delivery-dispatch/internal/general/metrics"
	"delivery-dispatch/internal/general/postgres"
	"delivery-dispatch/internal/general/rabbitmq"
	"delivery-dispatch/internal/general/rooms"
	"delivery-dispatch/internal/general/websocket"
	"delivery-dispatch/internal/ports"
	"delivery-dispatch/internal/software/dispatch/handler"
	"delivery-dispatch/internal/software/dispatch/service"
)

const serviceName = "dispatch-service"

// Options are the command line knobs of the dispatch service.
type Options struct {
	ConfigPath    string
	MaxConcurrent int
}

func Run(ctx context.Context, opts Options) error {
	// set up a new logger with a static request ID for startup logs
	logger := logger.New(serviceName)
	ctx = logger.WithRequestID(ctx, "startup-001")

	// load configuration
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		logger.Error(ctx, "config_load_failed", "Failed to load config", err, map[string]any{"path": opts.ConfigPath})
		return err
	}

	// pick the storage backend
	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	// metrics registry
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	rec, err := metrics.NewRecorder(reg)
	if err != nil {
		logger.Error(ctx, "metrics_init_failed", "Failed to register metrics", err, nil)
		return err
	}

	// RabbitMQ is optional; when enabled every room publish is mirrored to the dispatch exchange
	observers := []rooms.Observer{rec}
	var (
		rmq    *rabbitmq.Client
		mirror *rabbitmq.Mirror
	)
	if cfg.RabbitMQ.Enabled {
		rmq, err = rabbitmq.ConnectRabbitMQ(ctx, cfg, logger)
		if err != nil {
			logger.Error(ctx, "rabbitmq_connection_failed", "Failed to connect to RabbitMQ", err, nil)
			return err
		}
		defer rmq.Close()

		mirror = rabbitmq.NewMirror(rmq, logger, serviceName, 1024)
		observers = append(observers, mirror)
	}

	// rooms, auth and the event router
	dir := rooms.NewDirectory(observers...)
	jwtManager := jwt.NewManager(cfg.JWT.SecretKey, cfg.JWT.TTL)
	gk := jwt.NewGatekeeper(jwtManager)

	router := service.NewRouter(store, dir, logger, rec, service.WithThresholds(driver.Thresholds{
		BatteryLevel:   cfg.Alerts.BatteryLevel,
		SignalStrength: cfg.Alerts.SignalStrength,
	}))
	accounts := service.NewAccounts(logger, store, jwtManager)

	// websocket endpoint
	ws := websocket.NewWebSocket(logger, gk, router, rec, websocket.Config{
		AuthTimeout: cfg.WebSocket.AuthTimeout,
		SendBuffer:  cfg.WebSocket.SendBuffer,
		PingPeriod:  cfg.WebSocket.PingPeriod,
		PongWait:    cfg.WebSocket.PongWait,
	})

	// set up the HTTP handler and its routes
	mux := http.NewServeMux()
	httpHandler := handler.NewDispatchHTTPHandler(accounts, router, logger, jwtManager,
		handler.WithOverview(router),
		handler.WithWebSocket(ws),
		handler.WithMetrics(metrics.Handler(reg)),
		handler.WithDevTokens(cfg.JWT.AllowDevTokens),
	)
	httpHandler.RegisterRoutes(mux)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Services.DispatchServicePort),
		Handler:           withConcurrencyLimit(opts.MaxConcurrent, mux),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	logger.Info(ctx, "service_started",
		fmt.Sprintf("Dispatch Service started on port %d", cfg.Services.DispatchServicePort),
		map[string]any{
			"port":           cfg.Services.DispatchServicePort,
			"max_concurrent": opts.MaxConcurrent,
			"storage":        cfg.Storage.Driver,
			"rabbitmq":       cfg.RabbitMQ.Enabled,
			"dev_tokens":     cfg.JWT.AllowDevTokens,
		},
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(ctx, "http_server_error", "HTTP server terminated with error", err,
				map[string]any{"port": cfg.Services.DispatchServicePort})
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(ctx, "http_shutdown_failed", "Failed to gracefully shut down HTTP server", err, nil)
		}
		return nil
	})

	if rmq != nil {
		g.Go(func() error {
			mirror.Run(gctx)
			return nil
		})
		g.Go(func() error {
			rabbitmq.NewAssignmentConsumer(rmq, router, logger).Run(gctx)
			return nil
		})
	}

	err = g.Wait()
	logger.Info(context.WithoutCancel(ctx), "service_stopped", "Dispatch Service stopped", nil)
	return err
}

func openStore(ctx context.Context, cfg *config.Config, logger *logger.Logger) (ports.Store, func(), error) {
	if !cfg.UsesPostgres() {
		logger.Info(ctx, "storage_selected", "Using in-memory storage", nil)
		return memory.NewStore(), func() {}, nil
	}

	pool, err := postgres.NewPool(ctx, cfg, logger)
	if err != nil {
		logger.Error(ctx, "db_connection_failed", "Failed to initialize Postgres pool", err, nil)
		return nil, nil, err
	}
	if err := postgres.EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		logger.Error(ctx, "db_schema_failed", "Failed to apply database schema", err, nil)
		return nil, nil, err
	}
	return postgres.NewStore(pool), pool.Close, nil
}

// withConcurrencyLimit wraps an http.Handler with a semaphore-based limiter.
// Websocket upgrades hold a slot for the lifetime of the connection.
func withConcurrencyLimit(n int, next http.Handler) http.Handler {
	if n <= 0 {
		return next
	}
	sem := make(chan struct{}, n)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case sem <- struct{}{}:
			defer func() { <-sem }()
			next.ServeHTTP(w, r)
		case <-r.Context().Done():
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		}
	})
}
