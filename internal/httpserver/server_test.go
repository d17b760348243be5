package httpserver

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/navigator-gateway/internal/broadcast"
	"github.com/pscheid92/navigator-gateway/internal/cache"
	"github.com/pscheid92/navigator-gateway/internal/command"
	"github.com/pscheid92/navigator-gateway/internal/device"
	"github.com/pscheid92/navigator-gateway/internal/envelope"
	"github.com/pscheid92/navigator-gateway/internal/platform/config"
	"github.com/stretchr/testify/require"
)

const testModel = "Navigator_v4"

type testStack struct {
	server    *Server
	registry  *broadcast.Registry
	publisher *envelope.Publisher
	readings  *cache.Readings
	sim       *device.Simulated
}

type stackOption func(*config.Config, *[]HealthCheck)

func withHealthChecks(checks ...HealthCheck) stackOption {
	return func(_ *config.Config, hc *[]HealthCheck) { *hc = checks }
}

func withConfig(mutate func(*config.Config)) stackOption {
	return func(cfg *config.Config, _ *[]HealthCheck) { mutate(cfg) }
}

func testConfig() *config.Config {
	return &config.Config{
		AppEnv:                       "test",
		Port:                         "0",
		MaxWebSocketConnections:      100,
		MaxWebSocketConnectionsPerIP: 100,
		WebSocketConnectRate:         1000,
		WebSocketConnectBurst:        1000,
		APIRateLimit:                 1000,
		APIRateBurst:                 1000,
	}
}

// newTestStack wires a server to a simulated board through the real
// registry, publisher and dispatcher. Websocket writers need the real clock.
func newTestStack(t *testing.T, opts ...stackOption) *testStack {
	t.Helper()

	cfg := testConfig()
	var healthChecks []HealthCheck
	for _, opt := range opts {
		opt(cfg, &healthChecks)
	}

	clock := clockwork.NewRealClock()
	sim := device.NewSimulated(clock)
	port := device.NewPort(sim)
	require.NoError(t, port.Init())

	registry := broadcast.NewRegistry(clock)
	t.Cleanup(registry.Stop)

	readings := cache.New(clock)
	publisher := envelope.NewPublisher(envelope.NewBuilder(testModel, clock), registry)
	dispatcher := command.NewDispatcher(port, readings, publisher, clock)

	return &testStack{
		server:    NewServer(cfg, clock, dispatcher, registry, healthChecks),
		registry:  registry,
		publisher: publisher,
		readings:  readings,
		sim:       sim,
	}
}

func (s *testStack) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.server.Handler().ServeHTTP(rec, req)
	return rec
}

func (s *testStack) get(t *testing.T, path string) *httptest.ResponseRecorder {
	return s.do(t, http.MethodGet, path, "")
}

func (s *testStack) post(t *testing.T, path, body string) *httptest.ResponseRecorder {
	return s.do(t, http.MethodPost, path, body)
}
