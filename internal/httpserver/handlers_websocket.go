package httpserver

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/pscheid92/navigator-gateway/internal/broadcast"
	"github.com/pscheid92/navigator-gateway/internal/command"
	"github.com/pscheid92/navigator-gateway/internal/metrics"
	apperrors "github.com/pscheid92/navigator-gateway/internal/platform/errors"
)

type errorReply struct {
	Error string `json:"error"`
}

// handleWebSocket upgrades the request, subscribes the connection to
// broadcasts matching ?filter= and runs text commands from the client until
// it disconnects. A filter that does not compile is rejected with 400 before
// the upgrade; the connection never falls back to an unfiltered stream.
func (s *Server) handleWebSocket(c echo.Context) error {
	if s.isShuttingDown() {
		return apperrors.UnavailableError("server shutting down", nil)
	}

	ip := c.RealIP()

	ok, reason := s.limits.Acquire(ip)
	if !ok {
		metrics.WebSocketConnectionsRejected.WithLabelValues(string(reason)).Inc()
		metrics.WebSocketConnectionsTotal.WithLabelValues("rejected").Inc()
		return apperrors.RateLimitedError("too many connections").WithField("reason", string(reason))
	}
	defer s.releaseConnection(ip)
	s.updateCapacityMetrics()

	filter := c.QueryParam("filter")
	if _, err := broadcast.CompileFilter(filter); err != nil {
		metrics.WebSocketConnectionsRejected.WithLabelValues("filter").Inc()
		metrics.WebSocketConnectionsTotal.WithLabelValues("rejected").Inc()
		return apperrors.ValidationError(err.Error()).WithField("filter", filter)
	}

	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// The upgrader has already written the HTTP error.
		metrics.WebSocketConnectionsTotal.WithLabelValues("error").Inc()
		slog.DebugContext(c.Request().Context(), "WebSocket upgrade failed", "error", err)
		return nil
	}

	writer := broadcast.NewWriter(conn, s.clock)
	if !s.track(writer) {
		writer.StopGraceful(shutdownCloseReason)
		return nil
	}
	defer s.untrack(writer)

	id, err := s.registry.Register(writer, filter)
	if err != nil {
		slog.ErrorContext(c.Request().Context(), "Failed to register subscriber", "error", err)
		metrics.WebSocketConnectionsTotal.WithLabelValues("error").Inc()
		writer.StopGraceful("registration failed")
		return nil
	}

	ctx := c.Request().Context()
	start := s.clock.Now()
	metrics.WebSocketConnectionsTotal.WithLabelValues("success").Inc()
	metrics.WebSocketConnectionsCurrent.Inc()
	slog.InfoContext(ctx, "Subscriber connected", "subscriber_id", id, "filter", filter, "remote_ip", ip)

	s.readPump(ctx, conn, writer)

	s.registry.Deregister(id)
	writer.Stop()
	metrics.WebSocketConnectionsCurrent.Dec()
	metrics.WebSocketConnectionDuration.Observe(s.clock.Since(start).Seconds())
	slog.InfoContext(ctx, "Subscriber disconnected", "subscriber_id", id)

	return nil
}

func (s *Server) releaseConnection(ip string) {
	s.limits.Release(ip)
	s.updateCapacityMetrics()
}

func (s *Server) updateCapacityMetrics() {
	metrics.WebSocketConnectionCapacity.Set(s.limits.CapacityPct())
	metrics.WebSocketUniqueIPs.Set(float64(s.limits.UniqueIPs()))
}

// readPump blocks until the connection fails or closes. Each text frame may
// carry several commands; every one gets exactly one reply, in order.
func (s *Server) readPump(ctx context.Context, conn *websocket.Conn, writer *broadcast.Writer) {
	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.DebugContext(ctx, "WebSocket read failed", "error", err)
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		for _, parsed := range command.ParseBatch(string(data)) {
			if err := writer.Reply(s.runTextCommand(ctx, parsed)); err != nil {
				return
			}
		}
	}
}

func (s *Server) runTextCommand(ctx context.Context, parsed command.Parsed) []byte {
	if parsed.Err != nil {
		return marshalError(parsed.Err.Error())
	}

	if _, ok := parsed.Command.(command.GetConnected); ok {
		return []byte(strconv.Itoa(s.registry.Count()))
	}

	env, err := s.dispatcher.Execute(ctx, parsed.Command)
	if err != nil {
		structuredErr := toStructuredError(err)
		if structuredErr.Cause != nil {
			slog.WarnContext(ctx, "WebSocket command failed", "command", parsed.Text, "error", structuredErr.Cause)
		}
		return marshalError(structuredErr.Message)
	}

	data, err := json.Marshal(env)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to encode envelope", "error", err)
		return marshalError("internal server error")
	}
	return data
}

func marshalError(message string) []byte {
	data, _ := json.Marshal(errorReply{Error: message})
	return data
}
