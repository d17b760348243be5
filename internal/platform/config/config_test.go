package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultValues(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.AppEnv)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 100*time.Millisecond, cfg.SampleInterval)
	assert.Equal(t, time.Duration(0), cfg.DatalogInterval)
	assert.Equal(t, "simulated", cfg.DeviceDriver)
	assert.Equal(t, "Navigator_v4", cfg.DeviceModel)
	assert.Equal(t, 3, cfg.DeviceInitAttempts)
	assert.Equal(t, 1000, cfg.MaxWebSocketConnections)
}

func TestLoad_CustomValues(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("SAMPLE_INTERVAL", "20ms")
	t.Setenv("DATALOG_DIR", "/var/log/navigator")
	t.Setenv("DATALOG_FILENAME", "readings.csv")
	t.Setenv("DATALOG_INTERVAL", "1m")
	t.Setenv("LOG_FORMAT", "json")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 20*time.Millisecond, cfg.SampleInterval)
	assert.Equal(t, time.Minute, cfg.DatalogInterval)
	assert.Equal(t, "/var/log/navigator/readings.csv", cfg.DatalogPath())
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestLoad_ZeroIntervalsDisable(t *testing.T) {
	t.Setenv("SAMPLE_INTERVAL", "0s")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Zero(t, cfg.SampleInterval)
	assert.Zero(t, cfg.DatalogInterval)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		value   string
		wantErr string
	}{
		{"negative sample interval", "SAMPLE_INTERVAL", "-1s", "SAMPLE_INTERVAL must not be negative"},
		{"negative datalog interval", "DATALOG_INTERVAL", "-5s", "DATALOG_INTERVAL must not be negative"},
		{"bad log level", "LOG_LEVEL", "verbose", "LOG_LEVEL must be one of"},
		{"bad log format", "LOG_FORMAT", "xml", "LOG_FORMAT must be text or json"},
		{"zero init attempts", "DEVICE_INIT_ATTEMPTS", "0", "DEVICE_INIT_ATTEMPTS must be at least 1"},
		{"zero max connections", "MAX_WEBSOCKET_CONNECTIONS", "0", "MAX_WEBSOCKET_CONNECTIONS must be positive"},
		{"zero api rate", "API_RATE_LIMIT", "0", "API_RATE_LIMIT must be positive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidate_DatalogRequiresFilename(t *testing.T) {
	cfg := validConfig()
	cfg.DatalogInterval = 10 * time.Second
	cfg.DatalogFilename = ""

	err := validate(&cfg)
	require.Error(t, err)
	assert.Equal(t, "DATALOG_FILENAME is required when DATALOG_INTERVAL is set", err.Error())
}

func TestValidate_DatalogFilenameIgnoredWhenDisabled(t *testing.T) {
	cfg := validConfig()
	cfg.DatalogFilename = ""

	assert.NoError(t, validate(&cfg))
}

func validConfig() Config {
	return Config{
		LogLevel:                     "info",
		LogFormat:                    "text",
		SampleInterval:               100 * time.Millisecond,
		DatalogFilename:              "data.csv",
		DeviceDriver:                 "simulated",
		DeviceInitAttempts:           1,
		MaxWebSocketConnections:      10,
		MaxWebSocketConnectionsPerIP: 2,
		WebSocketConnectRate:         1,
		WebSocketConnectBurst:        1,
		APIRateLimit:                 1,
		APIRateBurst:                 1,
	}
}
