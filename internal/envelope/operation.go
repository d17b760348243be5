package envelope

import "github.com/pscheid92/navigator-gateway/internal/domain"

// Operation is the closed set of results that become envelopes.
type Operation interface {
	// Name is the logical message name subscribers can filter on.
	Name() string
	isOperation()
}

// SensorReading is the result of reading one sensor class or all of them.
// Only the fields Sensor selects are taken from Snapshot.
type SensorReading struct {
	Sensor   domain.Sensor
	Snapshot domain.SensorSnapshot
}

// LedState is the state of one user LED after a read or a write.
type LedState struct {
	Led domain.UserLed
	On  bool
}

type PwmValue struct {
	Channel domain.PwmChannel
	Value   uint16
}

type PwmFrequency struct {
	Hz float32
}

type PwmEnable struct {
	Enabled bool
}

type Neopixel struct {
	Pixels []domain.RGB
}

type SettingsReport struct {
	Settings domain.Settings
}

func (o SensorReading) Name() string  { return "input/" + o.Sensor.String() }
func (o LedState) Name() string       { return "output/user_led" }
func (o PwmValue) Name() string       { return "output/pwm" }
func (o PwmFrequency) Name() string   { return "output/pwm" }
func (o PwmEnable) Name() string      { return "output/pwm" }
func (o Neopixel) Name() string       { return "output/neopixel" }
func (o SettingsReport) Name() string { return "settings" }

func (SensorReading) isOperation()  {}
func (LedState) isOperation()       {}
func (PwmValue) isOperation()       {}
func (PwmFrequency) isOperation()   {}
func (PwmEnable) isOperation()      {}
func (Neopixel) isOperation()       {}
func (SettingsReport) isOperation() {}
