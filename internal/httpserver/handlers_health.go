package httpserver

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pscheid92/navigator-gateway/internal/platform/version"
)

const (
	startupCheckTimeout   = 2 * time.Second
	readinessCheckTimeout = 5 * time.Second
)

// HealthCheck is a named health check function. Checks marked Startup also
// gate /health/startup; every check gates /health/ready.
type HealthCheck struct {
	Name    string
	Check   func(ctx context.Context) error
	Startup bool
}

func (s *Server) registerHealthRoutes() {
	s.echo.GET("/health/startup", s.handleStartup)
	s.echo.GET("/health/live", s.handleLiveness)
	s.echo.GET("/health/ready", s.handleReadiness)
	s.echo.GET("/version", s.handleVersion)
}

// handleStartup reports whether the gateway finished bringing up its
// internals. Sampler freshness is left to readiness.
func (s *Server) handleStartup(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), startupCheckTimeout)
	defer cancel()

	if failed, err := s.runHealthChecks(ctx, true); err != nil {
		return writeUnhealthy(c, failed, err)
	}
	if err := c.JSON(http.StatusOK, map[string]string{"status": "started"}); err != nil {
		return fmt.Errorf("failed to write startup response: %w", err)
	}
	return nil
}

func (s *Server) handleLiveness(c echo.Context) error {
	response := map[string]any{
		"status": "ok",
		"uptime": s.clock.Since(s.startTime).Seconds(),
	}
	if err := c.JSON(http.StatusOK, response); err != nil {
		return fmt.Errorf("failed to write liveness response: %w", err)
	}
	return nil
}

func (s *Server) handleReadiness(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), readinessCheckTimeout)
	defer cancel()

	if failed, err := s.runHealthChecks(ctx, false); err != nil {
		return writeUnhealthy(c, failed, err)
	}
	if err := c.JSON(http.StatusOK, map[string]string{"status": "ready"}); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

// runHealthChecks returns the name and error of the first failing check.
func (s *Server) runHealthChecks(ctx context.Context, startupOnly bool) (string, error) {
	for _, hc := range s.healthChecks {
		if startupOnly && !hc.Startup {
			continue
		}
		if err := hc.Check(ctx); err != nil {
			return hc.Name, err
		}
	}
	return "", nil
}

func writeUnhealthy(c echo.Context, failedCheck string, cause error) error {
	response := map[string]any{
		"status":       "unhealthy",
		"failed_check": failedCheck,
		"error":        cause.Error(),
	}
	if err := c.JSON(http.StatusServiceUnavailable, response); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleVersion(c echo.Context) error {
	if err := c.JSON(http.StatusOK, version.Get()); err != nil {
		return fmt.Errorf("failed to write version response: %w", err)
	}
	return nil
}
