package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/navigator-gateway/internal/domain"
	"github.com/pscheid92/navigator-gateway/internal/envelope"
	"github.com/pscheid92/navigator-gateway/internal/metrics"
)

// ErrDeviceUnavailable is returned while the device circuit breaker is open.
var ErrDeviceUnavailable = errors.New("device unavailable")

type Device interface {
	Read(sensor domain.Sensor) (domain.SensorSnapshot, error)
	Led(led domain.UserLed) (bool, error)
	SetLed(led domain.UserLed, on bool) error
	SetNeopixel(pixels []domain.RGB) error
	SetPwmValue(channel domain.PwmChannel, value uint16) error
	SetPwmFrequency(hz float32) error
	SetPwmEnable(enabled bool) error
	Settings() domain.Settings
}

type Cache interface {
	Read() (domain.SensorSnapshot, bool)
}

type Emitter interface {
	Emit(op envelope.Operation) envelope.Envelope
}

type Option func(*Dispatcher)

// WithBreaker replaces the default device circuit breaker.
func WithBreaker(cb circuitbreaker.CircuitBreaker[any]) Option {
	return func(d *Dispatcher) { d.breaker = cb }
}

// Dispatcher executes commands against the device or the reading cache and
// emits one envelope per successful command.
type Dispatcher struct {
	device  Device
	cache   Cache
	emitter Emitter
	clock   clockwork.Clock
	breaker circuitbreaker.CircuitBreaker[any]
}

func NewDispatcher(device Device, cache Cache, emitter Emitter, clock clockwork.Clock, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		device:  device,
		cache:   cache,
		emitter: emitter,
		clock:   clock,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.breaker == nil {
		d.breaker = NewDeviceBreaker()
	}
	return d
}

// NewDeviceBreaker opens after repeated device failures so request handlers
// stop hammering a dead bus. Settings mirror the other breakers in the stack:
// 60% failures over at least 5 calls in 10s, 30s open, one success to close.
func NewDeviceBreaker() circuitbreaker.CircuitBreaker[any] {
	return circuitbreaker.NewBuilder[any]().
		WithFailureRateThreshold(0.6, 5, 10*time.Second).
		WithDelay(30 * time.Second).
		WithSuccessThreshold(1).
		OnStateChanged(func(e circuitbreaker.StateChangedEvent) {
			slog.Warn("Circuit breaker state changed",
				"component", "device",
				"from", e.OldState.String(),
				"to", e.NewState.String(),
			)
			metrics.CircuitBreakerStateChanges.WithLabelValues("device", e.NewState.String()).Inc()
			metrics.CircuitBreakerState.WithLabelValues("device").Set(stateToFloat(e.NewState))
		}).
		Build()
}

func stateToFloat(state circuitbreaker.State) float64 {
	switch state {
	case circuitbreaker.ClosedState:
		return 0
	case circuitbreaker.HalfOpenState:
		return 1
	case circuitbreaker.OpenState:
		return 2
	default:
		return -1
	}
}

// Execute validates and runs cmd. Errors wrap domain sentinels for invalid
// input, domain.ErrDevice for hardware failures and ErrDeviceUnavailable
// while the breaker is open.
func (d *Dispatcher) Execute(ctx context.Context, cmd Command) (envelope.Envelope, error) {
	start := d.clock.Now()
	env, err := d.execute(ctx, cmd)
	metrics.CommandDuration.WithLabelValues(cmd.Kind()).Observe(d.clock.Since(start).Seconds())
	metrics.CommandsTotal.WithLabelValues(cmd.Kind(), resultLabel(err)).Inc()
	return env, err
}

func (d *Dispatcher) execute(ctx context.Context, cmd Command) (envelope.Envelope, error) {
	if err := cmd.Validate(); err != nil {
		return envelope.Envelope{}, err
	}
	if err := ctx.Err(); err != nil {
		return envelope.Envelope{}, err
	}

	switch c := cmd.(type) {
	case ReadSensor:
		if c.Cached {
			snapshot, _ := d.cache.Read()
			return d.emitter.Emit(envelope.SensorReading{Sensor: c.Sensor, Snapshot: snapshot}), nil
		}
		var snapshot domain.SensorSnapshot
		err := d.guard(func() (err error) {
			snapshot, err = d.device.Read(c.Sensor)
			return err
		})
		if err != nil {
			return envelope.Envelope{}, err
		}
		return d.emitter.Emit(envelope.SensorReading{Sensor: c.Sensor, Snapshot: snapshot}), nil

	case ReadLed:
		var on bool
		err := d.guard(func() (err error) {
			on, err = d.device.Led(c.Led)
			return err
		})
		if err != nil {
			return envelope.Envelope{}, err
		}
		return d.emitter.Emit(envelope.LedState{Led: c.Led, On: on}), nil

	case SetPwmValue:
		if err := d.guard(func() error { return d.device.SetPwmValue(c.Channel, c.Value) }); err != nil {
			return envelope.Envelope{}, err
		}
		return d.emitter.Emit(envelope.PwmValue{Channel: c.Channel, Value: c.Value}), nil

	case SetPwmFrequency:
		if err := d.guard(func() error { return d.device.SetPwmFrequency(c.Hz) }); err != nil {
			return envelope.Envelope{}, err
		}
		return d.emitter.Emit(envelope.PwmFrequency{Hz: c.Hz}), nil

	case SetPwmEnable:
		if err := d.guard(func() error { return d.device.SetPwmEnable(c.Enabled) }); err != nil {
			return envelope.Envelope{}, err
		}
		return d.emitter.Emit(envelope.PwmEnable{Enabled: c.Enabled}), nil

	case SetLed:
		if err := d.guard(func() error { return d.device.SetLed(c.Led, c.On) }); err != nil {
			return envelope.Envelope{}, err
		}
		return d.emitter.Emit(envelope.LedState{Led: c.Led, On: c.On}), nil

	case SetNeopixel:
		if err := d.guard(func() error { return d.device.SetNeopixel(c.Pixels) }); err != nil {
			return envelope.Envelope{}, err
		}
		return d.emitter.Emit(envelope.Neopixel{Pixels: c.Pixels}), nil

	case ReadSettings:
		return d.emitter.Emit(envelope.SettingsReport{Settings: d.device.Settings()}), nil

	default:
		return envelope.Envelope{}, fmt.Errorf("%w: %s is not dispatchable", domain.ErrUnknownCommand, cmd.Kind())
	}
}

// guard runs a device call through the circuit breaker. Only device failures
// count against it.
func (d *Dispatcher) guard(call func() error) error {
	if !d.breaker.TryAcquirePermit() {
		return fmt.Errorf("%w: %w", ErrDeviceUnavailable, circuitbreaker.ErrOpen)
	}

	err := call()
	switch {
	case err == nil:
		d.breaker.RecordSuccess()
	case errors.Is(err, domain.ErrDevice):
		metrics.DeviceErrorsTotal.WithLabelValues("command").Inc()
		d.breaker.RecordError(err)
	default:
		// Not a bus failure.
		d.breaker.RecordSuccess()
	}
	return err
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrDevice), errors.Is(err, ErrDeviceUnavailable):
		return "error"
	default:
		return "invalid"
	}
}
