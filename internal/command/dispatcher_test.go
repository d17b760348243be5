package command

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/navigator-gateway/internal/cache"
	"github.com/pscheid92/navigator-gateway/internal/device"
	"github.com/pscheid92/navigator-gateway/internal/domain"
	"github.com/pscheid92/navigator-gateway/internal/envelope"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type broadcastCall struct {
	name string
	env  envelope.Envelope
}

type recordingBroadcaster struct {
	mu    sync.Mutex
	calls []broadcastCall
}

func (b *recordingBroadcaster) Broadcast(name string, message any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, broadcastCall{name: name, env: message.(envelope.Envelope)})
}

func (b *recordingBroadcaster) recorded() []broadcastCall {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]broadcastCall(nil), b.calls...)
}

type testEnv struct {
	dispatcher  *Dispatcher
	sim         *device.Simulated
	port        *device.Port
	readings    *cache.Readings
	broadcaster *recordingBroadcaster
}

func newTestEnv(t *testing.T, opts ...Option) *testEnv {
	t.Helper()
	clock := clockwork.NewFakeClock()
	sim := device.NewSimulated(clock)
	port := device.NewPort(sim)
	require.NoError(t, port.Init())

	readings := cache.New(clock)
	broadcaster := &recordingBroadcaster{}
	publisher := envelope.NewPublisher(envelope.NewBuilder("Navigator_v4", clock), broadcaster)

	return &testEnv{
		dispatcher:  NewDispatcher(port, readings, publisher, clock, opts...),
		sim:         sim,
		port:        port,
		readings:    readings,
		broadcaster: broadcaster,
	}
}

var sensorReads = []string{"ReadTemperature", "ReadPressure", "ReadAccelerometer", "ReadGyroscope", "ReadMagnetometer", "ReadADC"}

func (e *testEnv) deviceReads() int {
	n := 0
	for _, method := range sensorReads {
		n += e.sim.Calls(method)
	}
	return n
}

func TestDispatcher_SetPwmValue(t *testing.T) {
	e := newTestEnv(t)

	cmd, err := ParseText("/output/pwm/ch3/500")
	require.NoError(t, err)
	env, err := e.dispatcher.Execute(context.Background(), cmd)
	require.NoError(t, err)

	assert.Equal(t, 1, e.sim.Calls("SetPwmValue"))
	assert.Equal(t, uint16(500), e.sim.PwmValue(3))

	calls := e.broadcaster.recorded()
	require.Len(t, calls, 1)
	assert.Equal(t, env, calls[0].env)
	require.Len(t, env.Output, 1)
	require.NotNil(t, env.Output[0].Pwm)
	assert.Equal(t, []domain.PwmChannel{3}, env.Output[0].Pwm.Channel)
	assert.Equal(t, []uint16{500}, env.Output[0].Pwm.Value)
}

func TestDispatcher_LiveReadEverySensor(t *testing.T) {
	for _, sensor := range append([]domain.Sensor{domain.SensorAll}, domain.Sensors()...) {
		t.Run(sensor.String(), func(t *testing.T) {
			e := newTestEnv(t)

			env, err := e.dispatcher.Execute(context.Background(), ReadSensor{Sensor: sensor})
			require.NoError(t, err)

			assert.Equal(t, len(sensor.Expand()), e.deviceReads())
			require.Len(t, env.Input, len(sensor.Expand()))
			calls := e.broadcaster.recorded()
			require.Len(t, calls, 1)

			data, err := json.Marshal(calls[0].env)
			require.NoError(t, err)
			for _, s := range sensor.Expand() {
				assert.Contains(t, string(data), `"type":"`+s.String()+`"`)
			}
		})
	}
}

func TestDispatcher_CachedReadNeverTouchesDevice(t *testing.T) {
	for _, sensor := range append([]domain.Sensor{domain.SensorAll}, domain.Sensors()...) {
		t.Run(sensor.String(), func(t *testing.T) {
			e := newTestEnv(t)
			e.readings.Publish(domain.SensorSnapshot{Temperature: 33, Pressure: 99})
			e.sim.Fail(errors.New("device must not be touched"))

			env, err := e.dispatcher.Execute(context.Background(), ReadSensor{Sensor: sensor, Cached: true})
			require.NoError(t, err)

			assert.Equal(t, 0, e.deviceReads())
			assert.Len(t, e.broadcaster.recorded(), 1)
			if sensor == domain.SensorTemperature {
				assert.Equal(t, float32(33), env.Input[0].Value.Scalar())
			}
		})
	}
}

func TestDispatcher_CachedReadBeforeFirstSample(t *testing.T) {
	e := newTestEnv(t)

	env, err := e.dispatcher.Execute(context.Background(), ReadSensor{Sensor: domain.SensorPressure, Cached: true})
	require.NoError(t, err)

	assert.Equal(t, float32(0), env.Input[0].Value.Scalar())
}

func TestDispatcher_Actuators(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	_, err := e.dispatcher.Execute(ctx, SetPwmFrequency{Hz: 50})
	require.NoError(t, err)
	_, err = e.dispatcher.Execute(ctx, SetPwmEnable{Enabled: true})
	require.NoError(t, err)
	_, err = e.dispatcher.Execute(ctx, SetLed{Led: 1, On: true})
	require.NoError(t, err)
	_, err = e.dispatcher.Execute(ctx, SetNeopixel{Pixels: []domain.RGB{{Green: 128}}})
	require.NoError(t, err)

	led, err := e.dispatcher.Execute(ctx, ReadLed{Led: 1})
	require.NoError(t, err)
	settings, err := e.dispatcher.Execute(ctx, ReadSettings{})
	require.NoError(t, err)

	assert.Equal(t, float32(50), e.sim.PwmFrequency())
	assert.True(t, e.sim.PwmEnabled())
	assert.Equal(t, []domain.RGB{{Green: 128}}, e.sim.Pixels())
	assert.Equal(t, []bool{true}, led.Output[0].UserLed.Value)
	assert.Equal(t, &domain.Settings{PwmFrequency: 50, PwmEnabled: true}, settings.Settings)

	names := make([]string, 0)
	for _, c := range e.broadcaster.recorded() {
		names = append(names, c.name)
	}
	assert.Equal(t, []string{"output/pwm", "output/pwm", "output/user_led", "output/neopixel", "output/user_led", "settings"}, names)
}

func TestDispatcher_InvalidCommandHasNoSideEffects(t *testing.T) {
	e := newTestEnv(t)

	_, err := e.dispatcher.Execute(context.Background(), SetPwmValue{Channel: 3, Value: 9000})

	assert.ErrorIs(t, err, domain.ErrInvalidValue)
	assert.Equal(t, 0, e.sim.Calls("SetPwmValue"))
	assert.Empty(t, e.broadcaster.recorded())
}

func TestDispatcher_GetConnectedIsNotDispatchable(t *testing.T) {
	e := newTestEnv(t)

	_, err := e.dispatcher.Execute(context.Background(), GetConnected{})

	assert.ErrorIs(t, err, domain.ErrUnknownCommand)
}

func TestDispatcher_CancelledContext(t *testing.T) {
	e := newTestEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.dispatcher.Execute(ctx, ReadSensor{Sensor: domain.SensorTemperature})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, e.deviceReads())
}

func TestDispatcher_DeviceFailureDoesNotBroadcast(t *testing.T) {
	e := newTestEnv(t)
	e.sim.Fail(errors.New("nack"))

	_, err := e.dispatcher.Execute(context.Background(), SetLed{Led: 1, On: true})

	assert.ErrorIs(t, err, domain.ErrDevice)
	assert.Empty(t, e.broadcaster.recorded())
}

func TestDispatcher_BreakerOpensAfterRepeatedDeviceFailures(t *testing.T) {
	e := newTestEnv(t)
	e.sim.Fail(errors.New("bus stuck"))
	ctx := context.Background()

	for range 5 {
		_, err := e.dispatcher.Execute(ctx, ReadSensor{Sensor: domain.SensorTemperature})
		require.ErrorIs(t, err, domain.ErrDevice)
	}
	require.Equal(t, 5, e.sim.Calls("ReadTemperature"))

	_, err := e.dispatcher.Execute(ctx, ReadSensor{Sensor: domain.SensorTemperature})
	assert.ErrorIs(t, err, ErrDeviceUnavailable)
	assert.Equal(t, 5, e.sim.Calls("ReadTemperature"))

	// Cached reads keep working while the device is cut off.
	_, err = e.dispatcher.Execute(ctx, ReadSensor{Sensor: domain.SensorTemperature, Cached: true})
	assert.NoError(t, err)
}

func TestDispatcher_SameEnvelopeForTextAndStructuredCommand(t *testing.T) {
	e := newTestEnv(t)

	parsed, err := ParseText("/output/led/led2/on")
	require.NoError(t, err)
	fromText, err := e.dispatcher.Execute(context.Background(), parsed)
	require.NoError(t, err)
	fromStruct, err := e.dispatcher.Execute(context.Background(), SetLed{Led: 2, On: true})
	require.NoError(t, err)

	a, err := json.Marshal(fromText)
	require.NoError(t, err)
	b, err := json.Marshal(fromStruct)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}
