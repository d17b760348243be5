package httpserver

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/pscheid92/navigator-gateway/internal/broadcast"
	"github.com/pscheid92/navigator-gateway/internal/command"
	"github.com/pscheid92/navigator-gateway/internal/envelope"
	"github.com/pscheid92/navigator-gateway/internal/platform/config"
)

const shutdownCloseReason = "server shutting down"

type commandExecutor interface {
	Execute(ctx context.Context, cmd command.Command) (envelope.Envelope, error)
}

type subscriberRegistry interface {
	Register(sink broadcast.Sink, pattern string) (broadcast.SubscriberID, error)
	Deregister(id broadcast.SubscriberID)
	Count() int
}

type Server struct {
	echo   *echo.Echo
	config *config.Config
	clock  clockwork.Clock

	dispatcher commandExecutor
	registry   subscriberRegistry

	limits       *ConnectionLimits
	upgrader     websocket.Upgrader
	healthChecks []HealthCheck
	startTime    time.Time

	mu           sync.Mutex
	writers      map[*broadcast.Writer]struct{}
	shuttingDown bool
}

func NewServer(cfg *config.Config, clock clockwork.Clock, dispatcher commandExecutor, registry subscriberRegistry, healthChecks []HealthCheck) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	srv := &Server{
		echo:       e,
		config:     cfg,
		clock:      clock,
		dispatcher: dispatcher,
		registry:   registry,
		limits: NewConnectionLimits(
			int64(cfg.MaxWebSocketConnections),
			cfg.MaxWebSocketConnectionsPerIP,
			cfg.WebSocketConnectRate,
			cfg.WebSocketConnectBurst,
			clock,
		),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     NewCheckOrigin(cfg.WebSocketAllowedOrigin, cfg.AppEnv == "development"),
		},
		healthChecks: healthChecks,
		startTime:    clock.Now(),
		writers:      make(map[*broadcast.Writer]struct{}),
	}

	srv.registerRoutes()

	return srv
}

// Handler exposes the router, mainly for httptest servers.
func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.config.Port)
	if err := s.echo.Start(":" + s.config.Port); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown closes every websocket with a close frame, then drains HTTP.
// Hijacked connections are not tracked by net/http, so they go first.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.shuttingDown = true
	writers := make([]*broadcast.Writer, 0, len(s.writers))
	for w := range s.writers {
		writers = append(writers, w)
	}
	s.mu.Unlock()

	slog.Info("Closing websocket connections", "count", len(writers))
	for _, w := range writers {
		w.StopGraceful(shutdownCloseReason)
	}

	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}

// track records w for shutdown. It reports false once shutdown has begun.
func (s *Server) track(w *broadcast.Writer) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.shuttingDown {
		return false
	}
	s.writers[w] = struct{}{}
	return true
}

func (s *Server) isShuttingDown() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shuttingDown
}

func (s *Server) untrack(w *broadcast.Writer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.writers, w)
}
