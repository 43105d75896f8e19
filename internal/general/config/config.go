package config

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix marks environment overrides. DISPATCH_JWT__SECRET_KEY maps to jwt.secret_key.
const EnvPrefix = "DISPATCH_"

const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
)

type Config struct {
	Database struct {
		Host     string `koanf:"host"`
		Port     int    `koanf:"port"`
		User     string `koanf:"user"`
		Password string `koanf:"password"`
		Name     string `koanf:"database"`
		SSLMode  string `koanf:"ssl_mode"`
		MaxConns int32  `koanf:"max_conns"`
	} `koanf:"database"`
	RabbitMQ struct {
		Enabled  bool   `koanf:"enabled"`
		Host     string `koanf:"host"`
		Port     int    `koanf:"port"`
		User     string `koanf:"user"`
		Password string `koanf:"password"`
	} `koanf:"rabbitmq"`
	Storage struct {
		Driver string `koanf:"driver"`
	} `koanf:"storage"`
	Services struct {
		DispatchServicePort int `koanf:"dispatch_service"`
	} `koanf:"services"`
	WebSocket struct {
		AuthTimeout time.Duration `koanf:"auth_timeout"`
		SendBuffer  int           `koanf:"send_buffer"`
		PingPeriod  time.Duration `koanf:"ping_period"`
		PongWait    time.Duration `koanf:"pong_wait"`
	} `koanf:"websocket"`
	JWT struct {
		SecretKey      string        `koanf:"secret_key"`
		TTL            time.Duration `koanf:"ttl"`
		AllowDevTokens bool          `koanf:"allow_dev_tokens"`
	} `koanf:"jwt"`
	Heartbeat struct {
		DeviceInterval time.Duration `koanf:"device_interval"`
		BackoffInitial time.Duration `koanf:"backoff_initial"`
		BackoffMax     time.Duration `koanf:"backoff_max"`
	} `koanf:"heartbeat"`
	Alerts struct {
		BatteryLevel   int `koanf:"battery_level"`
		SignalStrength int `koanf:"signal_strength"`
	} `koanf:"alerts"`
}

// Load reads a YAML (or JSON) file, applies DISPATCH_* environment overrides,
// fills defaults and validates the result. An empty path loads env and defaults only.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if strings.TrimSpace(path) != "" {
		var parser koanf.Parser
		switch ext := strings.ToLower(filepath.Ext(path)); ext {
		case ".yaml", ".yml":
			parser = yaml.Parser()
		case ".json":
			parser = json.Parser()
		default:
			return nil, fmt.Errorf("unsupported config format: %s", ext)
		}
		if err := k.Load(file.Provider(path), parser); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

// UsesPostgres reports whether repositories should be backed by the database.
func (c *Config) UsesPostgres() bool {
	return c.Storage.Driver == StoragePostgres
}

// applyDefaults sets safe defaults for some fields.
func applyDefaults(cfg *Config) {
	// Database
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxConns == 0 {
		cfg.Database.MaxConns = 10
	}

	// RabbitMQ
	if cfg.RabbitMQ.Host == "" {
		cfg.RabbitMQ.Host = "localhost"
	}
	if cfg.RabbitMQ.Port == 0 {
		cfg.RabbitMQ.Port = 5672
	}

	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = StorageMemory
	}
	cfg.Storage.Driver = strings.ToLower(strings.TrimSpace(cfg.Storage.Driver))

	if cfg.Services.DispatchServicePort == 0 {
		cfg.Services.DispatchServicePort = 3000
	}

	// WebSocket
	if cfg.WebSocket.AuthTimeout == 0 {
		cfg.WebSocket.AuthTimeout = 5 * time.Second
	}
	if cfg.WebSocket.SendBuffer == 0 {
		cfg.WebSocket.SendBuffer = 64
	}
	if cfg.WebSocket.PingPeriod == 0 {
		cfg.WebSocket.PingPeriod = 30 * time.Second
	}
	if cfg.WebSocket.PongWait == 0 {
		cfg.WebSocket.PongWait = 60 * time.Second
	}

	// JWT
	if cfg.JWT.TTL == 0 {
		cfg.JWT.TTL = 24 * time.Hour
	}
	if cfg.JWT.SecretKey == "" {
		key := make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			// fallback: time-based bytes
			key = []byte(fmt.Sprintf("%d", time.Now().UnixNano()))
		}
		cfg.JWT.SecretKey = base64.StdEncoding.EncodeToString(key)
	}

	// Heartbeat
	if cfg.Heartbeat.DeviceInterval == 0 {
		cfg.Heartbeat.DeviceInterval = 30 * time.Second
	}
	if cfg.Heartbeat.BackoffInitial == 0 {
		cfg.Heartbeat.BackoffInitial = time.Second
	}
	if cfg.Heartbeat.BackoffMax == 0 {
		cfg.Heartbeat.BackoffMax = 10 * time.Second
	}

	// Alerts
	if cfg.Alerts.BatteryLevel == 0 {
		cfg.Alerts.BatteryLevel = 20
	}
	if cfg.Alerts.SignalStrength == 0 {
		cfg.Alerts.SignalStrength = 25
	}
}

// validate checks required fields and basic ranges.
func (c *Config) validate() error {
	var problems []string

	switch c.Storage.Driver {
	case StorageMemory:
	case StoragePostgres:
		if c.Database.Port <= 0 || c.Database.Port > 65535 {
			problems = append(problems, "database.port must be in 1..65535")
		}
		if c.Database.User == "" {
			problems = append(problems, "database.user is required")
		}
		if c.Database.Password == "" {
			problems = append(problems, "database.password is required")
		}
		if c.Database.Name == "" {
			problems = append(problems, "database.database is required")
		}
		if c.Database.MaxConns < 0 {
			problems = append(problems, "database.max_conns must be positive")
		}
	default:
		problems = append(problems, fmt.Sprintf("storage.driver must be %q or %q", StorageMemory, StoragePostgres))
	}

	// RabbitMQ
	if c.RabbitMQ.Enabled {
		if c.RabbitMQ.Port <= 0 || c.RabbitMQ.Port > 65535 {
			problems = append(problems, "rabbitmq.port must be in 1..65535")
		}
		if c.RabbitMQ.User == "" {
			problems = append(problems, "rabbitmq.user is required")
		}
		if c.RabbitMQ.Password == "" {
			problems = append(problems, "rabbitmq.password is required")
		}
	}

	if c.Services.DispatchServicePort <= 0 || c.Services.DispatchServicePort > 65535 {
		problems = append(problems, "services.dispatch_service must be in 1..65535")
	}

	// WebSocket
	if c.WebSocket.AuthTimeout < 0 {
		problems = append(problems, "websocket.auth_timeout must be positive")
	}
	if c.WebSocket.SendBuffer < 0 {
		problems = append(problems, "websocket.send_buffer must be positive")
	}
	if c.WebSocket.PingPeriod >= c.WebSocket.PongWait {
		problems = append(problems, "websocket.ping_period must be shorter than websocket.pong_wait")
	}

	if c.JWT.TTL < 0 {
		problems = append(problems, "jwt.ttl must be positive")
	}

	// Heartbeat
	if c.Heartbeat.DeviceInterval < 0 {
		problems = append(problems, "heartbeat.device_interval must be positive")
	}
	if c.Heartbeat.BackoffInitial < 0 || c.Heartbeat.BackoffMax < c.Heartbeat.BackoffInitial {
		problems = append(problems, "heartbeat.backoff_max must be >= heartbeat.backoff_initial > 0")
	}

	if c.Alerts.BatteryLevel < 0 || c.Alerts.BatteryLevel > 100 {
		problems = append(problems, "alerts.battery_level must be in 0..100")
	}
	if c.Alerts.SignalStrength < 0 || c.Alerts.SignalStrength > 100 {
		problems = append(problems, "alerts.signal_strength must be in 0..100")
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}
