package device

import (
	"errors"
	"fmt"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/navigator-gateway/internal/domain"
)

// ErrUnknownDriver is returned by New for an unsupported driver name.
var ErrUnknownDriver = errors.New("unknown device driver")

// Driver performs blocking I/O against the board. Implementations need not be
// safe for concurrent use; Port serialises access.
type Driver interface {
	Init() error

	ReadTemperature() (float32, error)
	ReadPressure() (float32, error)
	ReadAccelerometer() (domain.Vector3, error)
	ReadGyroscope() (domain.Vector3, error)
	ReadMagnetometer() (domain.Vector3, error)
	ReadADC() (domain.ADC, error)

	SetLed(led domain.UserLed, on bool) error
	Led(led domain.UserLed) (bool, error)
	SetNeopixel(pixels []domain.RGB) error
	SetPwmValue(channel domain.PwmChannel, value uint16) error
	SetPwmFrequency(hz float32) error
	SetPwmEnable(enabled bool) error
}

// New returns the driver registered under name.
func New(name string, clock clockwork.Clock) (Driver, error) {
	switch name {
	case "simulated":
		return NewSimulated(clock), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, name)
	}
}
