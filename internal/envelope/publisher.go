package envelope

import (
	"fmt"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/navigator-gateway/internal/domain"
	"github.com/pscheid92/navigator-gateway/internal/metrics"
)

// Broadcaster receives every emitted envelope.
type Broadcaster interface {
	Broadcast(name string, message any)
}

// Builder stamps operations into envelopes.
type Builder struct {
	model string
	clock clockwork.Clock
}

func NewBuilder(model string, clock clockwork.Clock) *Builder {
	return &Builder{model: model, clock: clock}
}

func (b *Builder) Model() string {
	return b.model
}

// Build wraps op without side effects.
func (b *Builder) Build(op Operation) Envelope {
	env := Envelope{
		Model:     b.model,
		Timestamp: b.clock.Now().UTC(),
	}

	switch o := op.(type) {
	case SensorReading:
		sensors := o.Sensor.Expand()
		env.Input = make([]InputReading, 0, len(sensors))
		for _, sensor := range sensors {
			env.Input = append(env.Input, InputReading{
				Type:  sensor,
				Unit:  sensor.Unit(),
				Value: sensorValue(o.Snapshot, sensor),
			})
		}
	case LedState:
		env.Output = []OutputDevice{{UserLed: &LedOutput{
			Channel: []domain.UserLed{o.Led},
			Value:   []bool{o.On},
		}}}
	case PwmValue:
		env.Output = []OutputDevice{{Pwm: &PwmOutput{
			Channel: []domain.PwmChannel{o.Channel},
			Value:   []uint16{o.Value},
		}}}
	case PwmFrequency:
		hz := o.Hz
		env.Output = []OutputDevice{{Pwm: &PwmOutput{Frequency: &hz}}}
	case PwmEnable:
		enabled := o.Enabled
		env.Output = []OutputDevice{{Pwm: &PwmOutput{Enable: &enabled}}}
	case Neopixel:
		pixels := make([]domain.RGB, len(o.Pixels))
		copy(pixels, o.Pixels)
		env.Output = []OutputDevice{{Neopixel: &NeopixelOutput{Value: pixels}}}
	case SettingsReport:
		settings := o.Settings
		env.Settings = &settings
	default:
		panic(fmt.Sprintf("envelope: unhandled operation %T", op))
	}

	return env
}

func sensorValue(s domain.SensorSnapshot, sensor domain.Sensor) Value {
	switch sensor {
	case domain.SensorTemperature:
		return Scalar(s.Temperature)
	case domain.SensorPressure:
		return Scalar(s.Pressure)
	case domain.SensorAccelerometer:
		return Vector(s.Accelerometer.Values())
	case domain.SensorGyroscope:
		return Vector(s.Gyroscope.Values())
	case domain.SensorMagnetometer:
		return Vector(s.Magnetometer.Values())
	case domain.SensorADC:
		return Vector(s.ADC.Values())
	default:
		return Value{}
	}
}

// Publisher builds envelopes and broadcasts them. Build and Broadcast happen
// under one lock, so broadcast order equals the order Emit calls complete.
type Publisher struct {
	builder     *Builder
	broadcaster Broadcaster
	mu          sync.Mutex
}

func NewPublisher(builder *Builder, broadcaster Broadcaster) *Publisher {
	return &Publisher{builder: builder, broadcaster: broadcaster}
}

// Emit builds the envelope for op, broadcasts it and returns it.
func (p *Publisher) Emit(op Operation) Envelope {
	p.mu.Lock()
	defer p.mu.Unlock()

	env := p.builder.Build(op)
	p.broadcaster.Broadcast(op.Name(), env)
	metrics.EnvelopesTotal.WithLabelValues(env.Kind()).Inc()
	return env
}

func (p *Publisher) Model() string {
	return p.builder.Model()
}
