package driveragent

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"delivery-dispatch/internal/client/connection"
	"delivery-dispatch/internal/client/heartbeat"
	"delivery-dispatch/internal/client/sensors"
	"delivery-dispatch/internal/domain/geo"
	"delivery-dispatch/internal/general/contracts"
	"delivery-dispatch/internal/general/config"
	"delivery-dispatch/internal/general/logger"
)

// Options configure a simulated driver device.
type Options struct {
	ConfigPath string
	ServerURL  string // http(s)://host:port of the dispatch service
	Token      string // used as-is when set
	Email      string
	Password   string
	Start      geo.Point
	Dest       geo.Point
	SpeedKmh   float64
	FixEvery   time.Duration
}

func Run(ctx context.Context, opts Options) error {
	logger := logger.New("driver-agent")
	ctx = logger.WithRequestID(ctx, "agent-001")

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		logger.Error(ctx, "config_load_failed", "Failed to load config", err, map[string]any{"path": opts.ConfigPath})
		return err
	}

	tokens, err := tokenSource(opts)
	if err != nil {
		return err
	}
	wsURL, err := websocketURL(opts.ServerURL)
	if err != nil {
		return err
	}

	var simOpts []sensors.SimOption
	if opts.SpeedKmh > 0 {
		simOpts = append(simOpts, sensors.WithSpeed(opts.SpeedKmh))
	}
	if opts.FixEvery > 0 {
		simOpts = append(simOpts, sensors.WithFixInterval(opts.FixEvery))
	}
	sim := sensors.NewSimulated(opts.Start, opts.Dest, simOpts...)
	pub := heartbeat.NewPublisher(sim, sim, cfg.Heartbeat.DeviceInterval, logger)

	mgr := connection.NewManager(connection.Config{
		URL:            wsURL,
		InitialBackoff: cfg.Heartbeat.BackoffInitial,
		MaxBackoff:     cfg.Heartbeat.BackoffMax,
		PongWait:       cfg.WebSocket.PongWait,
	}, tokens, logger, pub)

	logger.Info(ctx, "agent_started", "Driver agent started", map[string]any{
		"url":   wsURL,
		"start": opts.Start,
		"dest":  opts.Dest,
	})

	states := mgr.SubscribeStates()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := mgr.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		logUpdates(gctx, logger, states, mgr.Events())
		return nil
	})

	return g.Wait()
}

// logUpdates logs connection state changes and server events until ctx ends or the
// state stream is closed.
func logUpdates(ctx context.Context, logger *logger.Logger, states <-chan connection.StateChange, events <-chan contracts.Inbound) {
	for {
		select {
		case <-ctx.Done():
			return
		case ch, ok := <-states:
			if !ok {
				return
			}
			details := map[string]any{"from": ch.From.String(), "to": ch.To.String()}
			if ch.Err != nil {
				details["error"] = ch.Err.Error()
			}
			logger.Info(ctx, "connection_state", "Connection state changed", details)
		case ev := <-events:
			logger.Info(ctx, "event_received", "Received "+ev.Type.String(), map[string]any{"data": string(ev.Data)})
		}
	}
}

func tokenSource(opts Options) (connection.TokenSource, error) {
	if tok := strings.TrimSpace(opts.Token); tok != "" {
		return connection.StaticToken(tok), nil
	}
	if opts.Email == "" || opts.Password == "" {
		return nil, errors.New("either --token or --email and --password are required")
	}
	return &connection.PasswordLogin{BaseURL: opts.ServerURL, Email: opts.Email, Password: opts.Password}, nil
}

// websocketURL maps http://host to ws://host/ws.
func websocketURL(server string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(server))
	if err != nil {
		return "", fmt.Errorf("invalid server url: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("invalid server url scheme %q", u.Scheme)
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = "/ws"
	}
	return u.String(), nil
}
