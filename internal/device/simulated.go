package device

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/navigator-gateway/internal/domain"
)

const standardGravity = 9.80665

// Simulated is an in-memory board. Sensor values are smooth waveforms over
// the clock's elapsed time, so a fake clock makes them deterministic.
// Actuator writes are recorded and can be inspected.
type Simulated struct {
	clock clockwork.Clock
	start time.Time

	mu          sync.Mutex
	initialized bool
	fail        error
	calls       map[string]int

	leds      [domain.UserLedCount]bool
	pwm       [domain.PwmChannelCount]uint16
	frequency float32
	enabled   bool
	pixels    []domain.RGB
}

func NewSimulated(clock clockwork.Clock) *Simulated {
	return &Simulated{
		clock:     clock,
		start:     clock.Now(),
		calls:     make(map[string]int),
		frequency: domain.PwmDefaultFrequency,
	}
}

// Fail makes every subsequent call return err. Fail(nil) heals the board.
func (s *Simulated) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = err
}

// Calls reports how many times the named driver method was invoked.
func (s *Simulated) Calls(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[method]
}

func (s *Simulated) enter(method string) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls[method]++
	if s.fail != nil {
		return 0, s.fail
	}
	if !s.initialized && method != "Init" {
		return 0, fmt.Errorf("%s: board not initialised", method)
	}
	return s.clock.Since(s.start).Seconds(), nil
}

func (s *Simulated) Init() error {
	if _, err := s.enter("Init"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.initialized = true
	return nil
}

func (s *Simulated) ReadTemperature() (float32, error) {
	t, err := s.enter("ReadTemperature")
	if err != nil {
		return 0, err
	}
	return float32(24 + 1.5*math.Sin(t/60)), nil
}

func (s *Simulated) ReadPressure() (float32, error) {
	t, err := s.enter("ReadPressure")
	if err != nil {
		return 0, err
	}
	return float32(101.325 + 0.2*math.Sin(t/30)), nil
}

func (s *Simulated) ReadAccelerometer() (domain.Vector3, error) {
	t, err := s.enter("ReadAccelerometer")
	if err != nil {
		return domain.Vector3{}, err
	}
	return domain.Vector3{
		X: float32(0.1 * math.Sin(t)),
		Y: float32(0.1 * math.Cos(t)),
		Z: standardGravity,
	}, nil
}

func (s *Simulated) ReadGyroscope() (domain.Vector3, error) {
	t, err := s.enter("ReadGyroscope")
	if err != nil {
		return domain.Vector3{}, err
	}
	return domain.Vector3{
		X: float32(0.01 * math.Cos(t)),
		Y: float32(0.01 * math.Sin(t)),
		Z: 0,
	}, nil
}

func (s *Simulated) ReadMagnetometer() (domain.Vector3, error) {
	t, err := s.enter("ReadMagnetometer")
	if err != nil {
		return domain.Vector3{}, err
	}
	heading := t / 20
	return domain.Vector3{
		X: float32(25 * math.Cos(heading)),
		Y: float32(25 * math.Sin(heading)),
		Z: -40,
	}, nil
}

func (s *Simulated) ReadADC() (domain.ADC, error) {
	t, err := s.enter("ReadADC")
	if err != nil {
		return domain.ADC{}, err
	}
	var adc domain.ADC
	for i := range adc.Channel {
		adc.Channel[i] = float32(1.65 + 1.65*math.Sin(t+float64(i)*math.Pi/2))
	}
	return adc, nil
}

func (s *Simulated) SetLed(led domain.UserLed, on bool) error {
	if _, err := s.enter("SetLed"); err != nil {
		return err
	}
	if led < 1 || led > domain.UserLedCount {
		return fmt.Errorf("%w: %s", domain.ErrUnknownLed, led)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.leds[led-1] = on
	return nil
}

func (s *Simulated) Led(led domain.UserLed) (bool, error) {
	if _, err := s.enter("Led"); err != nil {
		return false, err
	}
	if led < 1 || led > domain.UserLedCount {
		return false, fmt.Errorf("%w: %s", domain.ErrUnknownLed, led)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.leds[led-1], nil
}

func (s *Simulated) SetNeopixel(pixels []domain.RGB) error {
	if _, err := s.enter("SetNeopixel"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pixels = append(s.pixels[:0], pixels...)
	return nil
}

func (s *Simulated) SetPwmValue(channel domain.PwmChannel, value uint16) error {
	if _, err := s.enter("SetPwmValue"); err != nil {
		return err
	}
	if channel > domain.PwmChannelCount {
		return fmt.Errorf("%w: %s", domain.ErrUnknownPwmChannel, channel)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if channel == domain.PwmAll {
		for i := range s.pwm {
			s.pwm[i] = value
		}
		return nil
	}
	s.pwm[channel-1] = value
	return nil
}

func (s *Simulated) SetPwmFrequency(hz float32) error {
	if _, err := s.enter("SetPwmFrequency"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frequency = hz
	return nil
}

func (s *Simulated) SetPwmEnable(enabled bool) error {
	if _, err := s.enter("SetPwmEnable"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabled = enabled
	return nil
}

// PwmValue returns the last value written to channel.
func (s *Simulated) PwmValue(channel domain.PwmChannel) uint16 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if channel < 1 || channel > domain.PwmChannelCount {
		return 0
	}
	return s.pwm[channel-1]
}

func (s *Simulated) PwmFrequency() float32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frequency
}

func (s *Simulated) PwmEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled
}

func (s *Simulated) Pixels() []domain.RGB {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.RGB, len(s.pixels))
	copy(out, s.pixels)
	return out
}
