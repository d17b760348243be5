package device

import (
	"fmt"
	"sync"

	"github.com/pscheid92/navigator-gateway/internal/domain"
	"golang.org/x/sync/singleflight"
)

// Port is the exclusively owned handle to the board.
type Port struct {
	mu       sync.Mutex
	driver   Driver
	reads    singleflight.Group
	settings domain.Settings
}

func NewPort(driver Driver) *Port {
	return &Port{
		driver:   driver,
		settings: domain.Settings{PwmFrequency: domain.PwmDefaultFrequency},
	}
}

// Settings returns the actuator configuration last applied through this port.
func (p *Port) Settings() domain.Settings {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.settings
}

func (p *Port) Init() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.driver.Init(); err != nil {
		return deviceErr("init", err)
	}
	return nil
}

// ReadSnapshot reads every sensor class in one lock hold. When includeADC is
// false the ADC read is skipped and its channels are left zeroed.
func (p *Port) ReadSnapshot(includeADC bool) (domain.SensorSnapshot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var snap domain.SensorSnapshot
	for _, sensor := range domain.Sensors() {
		if sensor == domain.SensorADC && !includeADC {
			continue
		}
		if err := p.readInto(&snap, sensor); err != nil {
			return domain.SensorSnapshot{}, err
		}
	}
	return snap, nil
}

// Read performs a live read of one sensor class (or all of them). Only the
// selected fields of the returned snapshot are populated. Concurrent reads of
// the same class share a single bus transaction.
func (p *Port) Read(sensor domain.Sensor) (domain.SensorSnapshot, error) {
	if sensor == domain.SensorAll {
		v, err, _ := p.reads.Do(sensor.String(), func() (any, error) {
			return p.ReadSnapshot(true)
		})
		if err != nil {
			return domain.SensorSnapshot{}, err
		}
		return v.(domain.SensorSnapshot), nil
	}

	v, err, _ := p.reads.Do(sensor.String(), func() (any, error) {
		p.mu.Lock()
		defer p.mu.Unlock()

		var snap domain.SensorSnapshot
		if err := p.readInto(&snap, sensor); err != nil {
			return domain.SensorSnapshot{}, err
		}
		return snap, nil
	})
	if err != nil {
		return domain.SensorSnapshot{}, err
	}
	return v.(domain.SensorSnapshot), nil
}

// readInto must be called with mu held.
func (p *Port) readInto(snap *domain.SensorSnapshot, sensor domain.Sensor) error {
	var err error
	switch sensor {
	case domain.SensorTemperature:
		snap.Temperature, err = p.driver.ReadTemperature()
	case domain.SensorPressure:
		snap.Pressure, err = p.driver.ReadPressure()
	case domain.SensorAccelerometer:
		snap.Accelerometer, err = p.driver.ReadAccelerometer()
	case domain.SensorGyroscope:
		snap.Gyroscope, err = p.driver.ReadGyroscope()
	case domain.SensorMagnetometer:
		snap.Magnetometer, err = p.driver.ReadMagnetometer()
	case domain.SensorADC:
		snap.ADC, err = p.driver.ReadADC()
	default:
		return fmt.Errorf("%w: %s", domain.ErrUnknownSensor, sensor)
	}
	if err != nil {
		return deviceErr("read "+sensor.String(), err)
	}
	return nil
}

func (p *Port) Led(led domain.UserLed) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	on, err := p.driver.Led(led)
	if err != nil {
		return false, deviceErr("read "+led.String(), err)
	}
	return on, nil
}

func (p *Port) SetLed(led domain.UserLed, on bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.driver.SetLed(led, on); err != nil {
		return deviceErr("set "+led.String(), err)
	}
	return nil
}

func (p *Port) SetNeopixel(pixels []domain.RGB) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.driver.SetNeopixel(pixels); err != nil {
		return deviceErr("set neopixel", err)
	}
	return nil
}

func (p *Port) SetPwmValue(channel domain.PwmChannel, value uint16) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.driver.SetPwmValue(channel, value); err != nil {
		return deviceErr("set pwm "+channel.String(), err)
	}
	return nil
}

func (p *Port) SetPwmFrequency(hz float32) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.driver.SetPwmFrequency(hz); err != nil {
		return deviceErr("set pwm frequency", err)
	}
	p.settings.PwmFrequency = hz
	return nil
}

func (p *Port) SetPwmEnable(enabled bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.driver.SetPwmEnable(enabled); err != nil {
		return deviceErr("set pwm enable", err)
	}
	p.settings.PwmEnabled = enabled
	return nil
}

func deviceErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", domain.ErrDevice, op, err)
}
