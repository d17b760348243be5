package httpserver

import (
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	apperrors "github.com/pscheid92/navigator-gateway/internal/platform/errors"
	"golang.org/x/time/rate"
)

const rateLimiterExpiry = 5 * time.Minute

// newAPIRateLimiter throttles the /v1 request surface per client IP. The
// websocket upgrade has its own connection limits and is skipped here.
func newAPIRateLimiter(ratePerSecond float64, burst int) echo.MiddlewareFunc {
	store := middleware.NewRateLimiterMemoryStoreWithConfig(
		middleware.RateLimiterMemoryStoreConfig{
			Rate:      rate.Limit(ratePerSecond),
			Burst:     burst,
			ExpiresIn: rateLimiterExpiry,
		},
	)
	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Skipper: func(c echo.Context) bool {
			return strings.HasSuffix(c.Path(), "/ws")
		},
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		Store: store,
		// echo hands the deny result to c.Error, so the 429 is written here.
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			return HandleError(c, apperrors.RateLimitedError("rate limit exceeded"))
		},
	})
}
