// Package command turns parsed requests into device calls and envelopes.
//
// Both the REST handlers and the websocket text protocol build Commands and
// run them through the same Dispatcher, so one logical command yields the
// same envelope on either path.
package command

import (
	"fmt"

	"github.com/pscheid92/navigator-gateway/internal/domain"
)

// Command is the closed set of operations a client may request.
type Command interface {
	// Kind is a stable snake_case name, used as a metrics label.
	Kind() string
	Validate() error
}

// ReadSensor reads one sensor class, or all, either live from the device or
// from the reading cache.
type ReadSensor struct {
	Sensor domain.Sensor
	Cached bool
}

type ReadLed struct {
	Led domain.UserLed
}

type SetPwmValue struct {
	Channel domain.PwmChannel
	Value   uint16
}

type SetPwmFrequency struct {
	Hz float32
}

type SetPwmEnable struct {
	Enabled bool
}

type SetLed struct {
	Led domain.UserLed
	On  bool
}

type SetNeopixel struct {
	Pixels []domain.RGB
}

type ReadSettings struct{}

// GetConnected asks for the number of real-time subscribers. It is answered
// by the connection layer, not the Dispatcher.
type GetConnected struct{}

func (ReadSensor) Kind() string      { return "read_sensor" }
func (ReadLed) Kind() string         { return "read_led" }
func (SetPwmValue) Kind() string     { return "set_pwm_value" }
func (SetPwmFrequency) Kind() string { return "set_pwm_frequency" }
func (SetPwmEnable) Kind() string    { return "set_pwm_enable" }
func (SetLed) Kind() string          { return "set_led" }
func (SetNeopixel) Kind() string     { return "set_neopixel" }
func (ReadSettings) Kind() string    { return "read_settings" }
func (GetConnected) Kind() string    { return "get_connected" }

func (c ReadSensor) Validate() error {
	if c.Sensor < domain.SensorAll || c.Sensor > domain.SensorADC {
		return fmt.Errorf("%w: %d", domain.ErrUnknownSensor, int(c.Sensor))
	}
	return nil
}

func (c ReadLed) Validate() error {
	return validateLed(c.Led)
}

func (c SetPwmValue) Validate() error {
	if c.Channel > domain.PwmChannelCount {
		return fmt.Errorf("%w: %d", domain.ErrUnknownPwmChannel, c.Channel)
	}
	return domain.ValidatePwmValue(int(c.Value))
}

func (c SetPwmFrequency) Validate() error {
	return domain.ValidatePwmFrequency(c.Hz)
}

func (SetPwmEnable) Validate() error { return nil }

func (c SetLed) Validate() error {
	return validateLed(c.Led)
}

func (c SetNeopixel) Validate() error {
	if len(c.Pixels) == 0 {
		return fmt.Errorf("%w: at least one pixel color is required", domain.ErrInvalidValue)
	}
	return nil
}

func (ReadSettings) Validate() error { return nil }

func (GetConnected) Validate() error { return nil }

func validateLed(led domain.UserLed) error {
	if led < 1 || led > domain.UserLedCount {
		return fmt.Errorf("%w: %d", domain.ErrUnknownLed, led)
	}
	return nil
}
