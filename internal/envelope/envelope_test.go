package envelope

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/navigator-gateway/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testTime = time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)

type broadcastCall struct {
	name    string
	message any
}

type recordingBroadcaster struct {
	mu    sync.Mutex
	calls []broadcastCall
}

func (b *recordingBroadcaster) Broadcast(name string, message any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, broadcastCall{name: name, message: message})
}

func (b *recordingBroadcaster) recorded() []broadcastCall {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]broadcastCall(nil), b.calls...)
}

func sampleSnapshot() domain.SensorSnapshot {
	return domain.SensorSnapshot{
		Temperature:   21.5,
		Pressure:      101.3,
		Accelerometer: domain.Vector3{X: 0.1, Y: 0.2, Z: 9.8},
		Gyroscope:     domain.Vector3{X: 0.01, Y: 0.02, Z: 0.03},
		Magnetometer:  domain.Vector3{X: 20, Y: -5, Z: -40},
		ADC:           domain.ADC{Channel: [4]float32{0.5, 1, 1.5, 2}},
	}
}

func newTestBuilder() *Builder {
	return NewBuilder("Navigator_v4", clockwork.NewFakeClockAt(testTime))
}

func TestBuild_SingleSensor(t *testing.T) {
	env := newTestBuilder().Build(SensorReading{Sensor: domain.SensorTemperature, Snapshot: sampleSnapshot()})

	data, err := json.Marshal(env)
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"model": "Navigator_v4",
		"timestamp": "2024-03-01T12:00:00Z",
		"input": [{"type": "temperature", "unit": "C", "value": 21.5}]
	}`, string(data))
	assert.Equal(t, KindInput, env.Kind())
}

func TestBuild_AllSensors(t *testing.T) {
	env := newTestBuilder().Build(SensorReading{Sensor: domain.SensorAll, Snapshot: sampleSnapshot()})

	require.Len(t, env.Input, 6)
	for i, sensor := range domain.Sensors() {
		assert.Equal(t, sensor, env.Input[i].Type)
		assert.Equal(t, sensor.Unit(), env.Input[i].Unit)
	}
	assert.Equal(t, []float32{0.5, 1, 1.5, 2}, env.Input[5].Value.Vector())
	assert.Equal(t, []float32{20, -5, -40}, env.Input[4].Value.Vector())
}

func TestBuild_Outputs(t *testing.T) {
	tests := []struct {
		name string
		op   Operation
		want string
	}{
		{
			name: "pwm value",
			op:   PwmValue{Channel: 3, Value: 500},
			want: `[{"pwm": {"channel": ["ch3"], "value": [500]}}]`,
		},
		{
			name: "pwm frequency",
			op:   PwmFrequency{Hz: 60},
			want: `[{"pwm": {"frequency": 60}}]`,
		},
		{
			name: "pwm enable off",
			op:   PwmEnable{Enabled: false},
			want: `[{"pwm": {"enable": false}}]`,
		},
		{
			name: "user led",
			op:   LedState{Led: 2, On: true},
			want: `[{"user_led": {"channel": ["led2"], "value": [true]}}]`,
		},
		{
			name: "neopixel",
			op:   Neopixel{Pixels: []domain.RGB{{Red: 255, Green: 0, Blue: 10}}},
			want: `[{"neopixel": {"value": [{"red": 255, "green": 0, "blue": 10}]}}]`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestBuilder().Build(tt.op)

			data, err := json.Marshal(env.Output)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(data))
			assert.Nil(t, env.Input)
			assert.Equal(t, KindOutput, env.Kind())
		})
	}
}

func TestBuild_Settings(t *testing.T) {
	env := newTestBuilder().Build(SettingsReport{Settings: domain.Settings{PwmFrequency: 50, PwmEnabled: true}})

	data, err := json.Marshal(env)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"model": "Navigator_v4",
		"timestamp": "2024-03-01T12:00:00Z",
		"settings": {"pwm_frequency": 50, "pwm_enabled": true}
	}`, string(data))
	assert.Equal(t, KindSettings, env.Kind())
}

func TestBuild_NeopixelCopiesPixels(t *testing.T) {
	pixels := []domain.RGB{{Red: 1}}
	env := newTestBuilder().Build(Neopixel{Pixels: pixels})

	pixels[0].Red = 99

	assert.Equal(t, uint8(1), env.Output[0].Neopixel.Value[0].Red)
}

func TestBuild_TemperatureEnvelopeDoesNotMentionPwm(t *testing.T) {
	env := newTestBuilder().Build(SensorReading{Sensor: domain.SensorTemperature, Snapshot: sampleSnapshot()})

	data, err := json.Marshal(env)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "pwm")
}

func TestValue_RoundTrip(t *testing.T) {
	var scalar, vector Value
	require.NoError(t, json.Unmarshal([]byte(`1.5`), &scalar))
	require.NoError(t, json.Unmarshal([]byte(`[1, 2, 3]`), &vector))

	assert.False(t, scalar.IsVector())
	assert.Equal(t, float32(1.5), scalar.Scalar())
	assert.True(t, vector.IsVector())
	assert.Equal(t, []float32{1, 2, 3}, vector.Vector())
}

func TestPublisher_EmitBroadcastsOnce(t *testing.T) {
	broadcaster := &recordingBroadcaster{}
	publisher := NewPublisher(newTestBuilder(), broadcaster)

	env := publisher.Emit(PwmValue{Channel: 3, Value: 500})

	calls := broadcaster.recorded()
	require.Len(t, calls, 1)
	assert.Equal(t, "output/pwm", calls[0].name)
	assert.Equal(t, env, calls[0].message)
}

func TestPublisher_ConcurrentEmitOrder(t *testing.T) {
	broadcaster := &recordingBroadcaster{}
	clock := clockwork.NewRealClock()
	publisher := NewPublisher(NewBuilder("Navigator_v4", clock), broadcaster)

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			publisher.Emit(PwmValue{Channel: 1, Value: uint16(i)})
		}()
	}
	wg.Wait()

	calls := broadcaster.recorded()
	require.Len(t, calls, 50)
	for i := 1; i < len(calls); i++ {
		prev := calls[i-1].message.(Envelope).Timestamp
		cur := calls[i].message.(Envelope).Timestamp
		assert.False(t, cur.Before(prev), "broadcast %d went out before an earlier-stamped envelope", i)
	}
}

func TestOperationNames(t *testing.T) {
	assert.Equal(t, "input/temperature", SensorReading{Sensor: domain.SensorTemperature}.Name())
	assert.Equal(t, "input/all", SensorReading{Sensor: domain.SensorAll}.Name())
	assert.Equal(t, "output/pwm", PwmFrequency{}.Name())
	assert.Equal(t, "output/user_led", LedState{}.Name())
	assert.Equal(t, "settings", SettingsReport{}.Name())
}
