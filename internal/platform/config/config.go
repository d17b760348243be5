package config

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

type Config struct {
	AppEnv    string `env:"APP_ENV" default:"development"`
	Port      string `env:"PORT" default:"8080"`
	LogLevel  string `env:"LOG_LEVEL" default:"info"`
	LogFormat string `env:"LOG_FORMAT" default:"text"`

	// Zero disables periodic sampling; reads then only go live to the device.
	SampleInterval time.Duration `env:"SAMPLE_INTERVAL" default:"100ms"`

	DatalogDir      string        `env:"DATALOG_DIR" default:"./"`
	DatalogFilename string        `env:"DATALOG_FILENAME" default:"data.csv"`
	DatalogInterval time.Duration `env:"DATALOG_INTERVAL" default:"0s"`

	DeviceDriver       string `env:"DEVICE_DRIVER" default:"simulated"`
	DeviceModel        string `env:"DEVICE_MODEL" default:"Navigator_v4"`
	DeviceInitAttempts int    `env:"DEVICE_INIT_ATTEMPTS" default:"3"`

	MaxWebSocketConnections      int     `env:"MAX_WEBSOCKET_CONNECTIONS" default:"1000"`
	MaxWebSocketConnectionsPerIP int     `env:"MAX_WEBSOCKET_CONNECTIONS_PER_IP" default:"20"`
	WebSocketConnectRate         float64 `env:"WEBSOCKET_CONNECT_RATE" default:"10"`
	WebSocketConnectBurst        int     `env:"WEBSOCKET_CONNECT_BURST" default:"20"`
	WebSocketAllowedOrigin       string  `env:"WEBSOCKET_ALLOWED_ORIGIN"`

	APIRateLimit float64 `env:"API_RATE_LIMIT" default:"50"`
	APIRateBurst int     `env:"API_RATE_BURST" default:"100"`
}

// DatalogPath is the full path of the CSV log file.
func (c *Config) DatalogPath() string {
	return filepath.Join(c.DatalogDir, c.DatalogFilename)
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func validate(cfg *Config) error {
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("LOG_LEVEL must be one of debug, info, warn, error, got %q", cfg.LogLevel)
	}
	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		return fmt.Errorf("LOG_FORMAT must be text or json, got %q", cfg.LogFormat)
	}

	if cfg.SampleInterval < 0 {
		return errors.New("SAMPLE_INTERVAL must not be negative")
	}
	if cfg.DatalogInterval < 0 {
		return errors.New("DATALOG_INTERVAL must not be negative")
	}
	if cfg.DatalogInterval > 0 && cfg.DatalogFilename == "" {
		return errors.New("DATALOG_FILENAME is required when DATALOG_INTERVAL is set")
	}

	if cfg.DeviceDriver == "" {
		return errors.New("DEVICE_DRIVER is required")
	}
	if cfg.DeviceInitAttempts < 1 {
		return errors.New("DEVICE_INIT_ATTEMPTS must be at least 1")
	}

	positive := map[string]float64{
		"MAX_WEBSOCKET_CONNECTIONS":        float64(cfg.MaxWebSocketConnections),
		"MAX_WEBSOCKET_CONNECTIONS_PER_IP": float64(cfg.MaxWebSocketConnectionsPerIP),
		"WEBSOCKET_CONNECT_RATE":           cfg.WebSocketConnectRate,
		"WEBSOCKET_CONNECT_BURST":          float64(cfg.WebSocketConnectBurst),
		"API_RATE_LIMIT":                   cfg.APIRateLimit,
		"API_RATE_BURST":                   float64(cfg.APIRateBurst),
	}
	for name, value := range positive {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}

	return nil
}
