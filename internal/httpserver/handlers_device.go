package httpserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pscheid92/navigator-gateway/internal/command"
	"github.com/pscheid92/navigator-gateway/internal/domain"
	apperrors "github.com/pscheid92/navigator-gateway/internal/platform/errors"
)

type pwmValueRequest struct {
	Channel *domain.PwmChannel `json:"channel"`
	Value   *int               `json:"value"`
}

type pwmFrequencyRequest struct {
	Frequency *float32 `json:"frequency"`
}

type pwmEnableRequest struct {
	Enable *bool `json:"enable"`
}

type ledRequest struct {
	Led   *domain.UserLed `json:"led"`
	Value *bool           `json:"value"`
}

type neopixelRequest struct {
	Pixels []domain.RGB `json:"pixels"`
}

func (s *Server) registerInputRoutes(g *echo.Group) {
	g.GET("/input/led/:led", s.handleReadLed)
	g.GET("/input/:sensor", s.handleReadSensor)
}

func (s *Server) registerOutputRoutes(g *echo.Group) {
	g.POST("/output/pwm", s.handleSetPwmValue)
	g.POST("/output/pwm/frequency", s.handleSetPwmFrequency)
	g.POST("/output/pwm/enable", s.handleSetPwmEnable)
	g.POST("/output/led", s.handleSetLed)
	g.POST("/output/neopixel", s.handleSetNeopixel)
}

func (s *Server) handleReadSensor(c echo.Context) error {
	sensor, err := domain.ParseSensor(c.Param("sensor"))
	if err != nil {
		return apperrors.ValidationError(err.Error()).WithField("sensor", c.Param("sensor"))
	}

	cached := false
	if raw := c.QueryParam("cached"); raw != "" {
		cached, err = strconv.ParseBool(raw)
		if err != nil {
			return apperrors.ValidationError("cached must be a boolean").WithField("cached", raw)
		}
	}

	return s.execute(c, command.ReadSensor{Sensor: sensor, Cached: cached})
}

func (s *Server) handleReadLed(c echo.Context) error {
	led, err := domain.ParseUserLed(c.Param("led"))
	if err != nil {
		return apperrors.ValidationError(err.Error()).WithField("led", c.Param("led"))
	}
	return s.execute(c, command.ReadLed{Led: led})
}

func (s *Server) handleSetPwmValue(c echo.Context) error {
	var req pwmValueRequest
	if err := decodeBody(c, &req); err != nil {
		return err
	}
	if req.Channel == nil || req.Value == nil {
		return apperrors.ValidationError("channel and value are required")
	}
	if err := domain.ValidatePwmValue(*req.Value); err != nil {
		return err
	}
	return s.execute(c, command.SetPwmValue{Channel: *req.Channel, Value: uint16(*req.Value)})
}

func (s *Server) handleSetPwmFrequency(c echo.Context) error {
	var req pwmFrequencyRequest
	if err := decodeBody(c, &req); err != nil {
		return err
	}
	if req.Frequency == nil {
		return apperrors.ValidationError("frequency is required")
	}
	return s.execute(c, command.SetPwmFrequency{Hz: *req.Frequency})
}

func (s *Server) handleSetPwmEnable(c echo.Context) error {
	var req pwmEnableRequest
	if err := decodeBody(c, &req); err != nil {
		return err
	}
	if req.Enable == nil {
		return apperrors.ValidationError("enable is required")
	}
	return s.execute(c, command.SetPwmEnable{Enabled: *req.Enable})
}

func (s *Server) handleSetLed(c echo.Context) error {
	var req ledRequest
	if err := decodeBody(c, &req); err != nil {
		return err
	}
	if req.Led == nil || req.Value == nil {
		return apperrors.ValidationError("led and value are required")
	}
	return s.execute(c, command.SetLed{Led: *req.Led, On: *req.Value})
}

func (s *Server) handleSetNeopixel(c echo.Context) error {
	var req neopixelRequest
	if err := decodeBody(c, &req); err != nil {
		return err
	}
	return s.execute(c, command.SetNeopixel{Pixels: req.Pixels})
}

func (s *Server) handleSettings(c echo.Context) error {
	return s.execute(c, command.ReadSettings{})
}

// execute runs cmd and answers with the resulting envelope. Errors are left
// to ErrorHandlingMiddleware.
func (s *Server) execute(c echo.Context, cmd command.Command) error {
	env, err := s.dispatcher.Execute(c.Request().Context(), cmd)
	if err != nil {
		return err
	}
	if err := c.JSON(http.StatusOK, env); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func decodeBody(c echo.Context, dst any) error {
	dec := json.NewDecoder(c.Request().Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return apperrors.ValidationError(fmt.Sprintf("invalid request body: %v", err))
	}
	return nil
}
