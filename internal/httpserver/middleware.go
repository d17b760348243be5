package httpserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/pscheid92/navigator-gateway/internal/command"
	"github.com/pscheid92/navigator-gateway/internal/domain"
	"github.com/pscheid92/navigator-gateway/internal/metrics"
	"github.com/pscheid92/navigator-gateway/internal/platform/correlation"
	apperrors "github.com/pscheid92/navigator-gateway/internal/platform/errors"
)

func correlationMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := correlation.WithID(c.Request().Context(), correlation.NewID())
		c.SetRequest(c.Request().WithContext(ctx))
		return next(c)
	}
}

// metricsMiddleware records request counts and latency per route. Health
// checks, scrapes and the long-lived websocket route are left out.
func metricsMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		route := c.Path()
		if route == "/metrics" || route == "/v1/ws" || strings.HasPrefix(route, "/health/") {
			return next(c)
		}

		metrics.HTTPInFlightRequests.Inc()
		defer metrics.HTTPInFlightRequests.Dec()

		timer := prometheus.NewTimer(prometheus.ObserverFunc(func(v float64) {
			status := strconv.Itoa(c.Response().Status)
			metrics.HTTPRequestDuration.WithLabelValues(c.Request().Method, route, status).Observe(v)
			metrics.HTTPRequestsTotal.WithLabelValues(c.Request().Method, route, status).Inc()
		}))

		err := next(c)
		timer.ObserveDuration()
		return err
	}
}

func ErrorHandlingMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)
			if err == nil {
				return nil
			}

			var httpErr *echo.HTTPError
			if errors.As(err, &httpErr) {
				return err
			}

			return HandleError(c, err)
		}
	}
}

// HandleError logs err and writes it as a JSON error response.
func HandleError(c echo.Context, err error) error {
	if err == nil {
		return nil
	}

	structuredErr := toStructuredError(err)
	logError(c, structuredErr)
	if err := c.JSON(structuredErr.HTTPStatus(), structuredErr.ToResponse()); err != nil {
		return fmt.Errorf("failed to write error response: %w", err)
	}
	return nil
}

// toStructuredError maps domain and dispatcher failures onto the HTTP error
// taxonomy. Device causes stay in the log; the client gets a generic message.
func toStructuredError(err error) *apperrors.Error {
	var structuredErr *apperrors.Error
	if errors.As(err, &structuredErr) {
		return structuredErr
	}

	switch {
	case errors.Is(err, domain.ErrUnknownSensor),
		errors.Is(err, domain.ErrUnknownPwmChannel),
		errors.Is(err, domain.ErrUnknownLed),
		errors.Is(err, domain.ErrInvalidValue),
		errors.Is(err, domain.ErrUnknownCommand):
		return apperrors.ValidationError(err.Error())
	case errors.Is(err, command.ErrDeviceUnavailable):
		return apperrors.UnavailableError("device temporarily unavailable", err)
	case errors.Is(err, domain.ErrDevice):
		return apperrors.InternalError("device error", err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return apperrors.UnavailableError("request cancelled", err)
	default:
		return apperrors.AsStructuredError(err)
	}
}

func logError(c echo.Context, err *apperrors.Error) {
	attrs := []any{
		"error_type", err.Type,
		"message", err.Message,
		"path", c.Request().URL.Path,
		"method", c.Request().Method,
		"status", err.HTTPStatus(),
	}

	for k, v := range err.Context {
		attrs = append(attrs, k, v)
	}
	if err.Cause != nil {
		attrs = append(attrs, "cause", err.Cause)
	}

	ctx := c.Request().Context()
	switch err.Type {
	case apperrors.TypeValidation:
		slog.InfoContext(ctx, "Validation error", attrs...)
	case apperrors.TypeNotFound:
		slog.InfoContext(ctx, "Not found", attrs...)
	case apperrors.TypeRateLimited:
		slog.InfoContext(ctx, "Rate limited", attrs...)
	case apperrors.TypeConflict:
		slog.WarnContext(ctx, "Conflict", attrs...)
	case apperrors.TypeUnavailable:
		slog.WarnContext(ctx, "Service unavailable", attrs...)
	case apperrors.TypeInternal:
		slog.ErrorContext(ctx, "Internal error", attrs...)
	default:
		slog.ErrorContext(ctx, "Unknown error type", attrs...)
	}
}
