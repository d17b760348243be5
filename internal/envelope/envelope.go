// Package envelope wraps every sensor read and actuator write into the
// uniform message that is returned to callers and pushed to subscribers.
//
// Build is pure. Publisher.Emit builds and broadcasts in one step; all
// request paths and the sampler go through Emit so nothing observable is
// left unbroadcast.
package envelope

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/pscheid92/navigator-gateway/internal/domain"
)

const (
	KindInput    = "input"
	KindOutput   = "output"
	KindSettings = "settings"
)

// Envelope carries exactly one of Input, Output or Settings.
type Envelope struct {
	Model     string           `json:"model"`
	Timestamp time.Time        `json:"timestamp"`
	Input     []InputReading   `json:"input,omitempty"`
	Output    []OutputDevice   `json:"output,omitempty"`
	Settings  *domain.Settings `json:"settings,omitempty"`
}

// Kind reports which payload the envelope carries.
func (e Envelope) Kind() string {
	switch {
	case e.Settings != nil:
		return KindSettings
	case e.Output != nil:
		return KindOutput
	default:
		return KindInput
	}
}

type InputReading struct {
	Type  domain.Sensor `json:"type"`
	Unit  string        `json:"unit"`
	Value Value         `json:"value"`
}

// Value is a scalar reading or a per-axis/per-channel vector.
type Value struct {
	scalar float32
	vector []float32
}

func Scalar(v float32) Value {
	return Value{scalar: v}
}

func Vector(v []float32) Value {
	return Value{vector: v}
}

func (v Value) IsVector() bool { return v.vector != nil }

func (v Value) Scalar() float32 { return v.scalar }

func (v Value) Vector() []float32 { return v.vector }

func (v Value) MarshalJSON() ([]byte, error) {
	if v.vector != nil {
		return json.Marshal(v.vector)
	}
	return json.Marshal(v.scalar)
}

func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		v.scalar = 0
		return json.Unmarshal(data, &v.vector)
	}
	v.vector = nil
	return json.Unmarshal(data, &v.scalar)
}

// OutputDevice holds exactly one actuator class.
type OutputDevice struct {
	Pwm      *PwmOutput      `json:"pwm,omitempty"`
	UserLed  *LedOutput      `json:"user_led,omitempty"`
	Neopixel *NeopixelOutput `json:"neopixel,omitempty"`
}

type PwmOutput struct {
	Channel   []domain.PwmChannel `json:"channel,omitempty"`
	Value     []uint16            `json:"value,omitempty"`
	Frequency *float32            `json:"frequency,omitempty"`
	Enable    *bool               `json:"enable,omitempty"`
}

type LedOutput struct {
	Channel []domain.UserLed `json:"channel"`
	Value   []bool           `json:"value"`
}

type NeopixelOutput struct {
	Value []domain.RGB `json:"value"`
}
