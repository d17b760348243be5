package httpserver

import (
	"log/slog"
	"net/http"
	"net/url"
)

// NewCheckOrigin builds the websocket origin policy. Requests without an
// Origin header (non-browser clients) always pass. An empty allowedOrigin
// accepts any origin; otherwise only that origin, plus localhost in
// development.
func NewCheckOrigin(allowedOrigin string, isDevelopment bool) func(r *http.Request) bool {
	if allowedOrigin == "" {
		return func(*http.Request) bool { return true }
	}
	allowed := extractOrigin(allowedOrigin)

	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || origin == allowed {
			return true
		}
		if isDevelopment && isLocalhostOrigin(origin) {
			return true
		}

		slog.Warn("WebSocket origin rejected", "origin", origin, "remote_addr", r.RemoteAddr)
		return false
	}
}

func extractOrigin(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

func isLocalhostOrigin(origin string) bool {
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	host := u.Hostname()
	return host == "localhost" || host == "127.0.0.1"
}
