package httpserver

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pscheid92/navigator-gateway/internal/platform/version"
)

// Metadata is the discovery descriptor extension managers look for.
type Metadata struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
	Company     string `json:"company"`
	Version     string `json:"version"`
	NewPage     bool   `json:"new_page"`
	Webpage     string `json:"webpage"`
	API         string `json:"api"`
}

func defaultMetadata() Metadata {
	return Metadata{
		Name:        "Navigator Gateway",
		Description: "Exposes the Navigator board sensors and actuators over HTTP and websocket.",
		Icon:        "mdi-compass-outline",
		Company:     "BlueRobotics",
		Version:     version.Version,
		NewPage:     false,
		Webpage:     "https://github.com/pscheid92/navigator-gateway",
		API:         "/v1",
	}
}

func (s *Server) handleMetadata(c echo.Context) error {
	if err := c.JSON(http.StatusOK, defaultMetadata()); err != nil {
		return fmt.Errorf("failed to write metadata response: %w", err)
	}
	return nil
}
