package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

const (
	PwmChannelCount = 16
	PwmMaxValue     = 4095

	// PCA9685 prescaler limits.
	PwmMinFrequency = 24
	PwmMaxFrequency = 1526
	// Prescaler reset value.
	PwmDefaultFrequency = 200

	UserLedCount = 3
)

// PwmChannel is a PWM output channel, 1 through 16. PwmAll addresses every channel.
type PwmChannel uint8

const PwmAll PwmChannel = 0

// ParsePwmChannel accepts "ch3", "3" or "all", case-insensitively.
func ParsePwmChannel(s string) (PwmChannel, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if name == "all" {
		return PwmAll, nil
	}
	n, err := strconv.Atoi(strings.TrimPrefix(name, "ch"))
	if err != nil || n < 1 || n > PwmChannelCount {
		return 0, fmt.Errorf("%w: %q", ErrUnknownPwmChannel, s)
	}
	return PwmChannel(n), nil
}

func (c PwmChannel) String() string {
	if c == PwmAll {
		return "all"
	}
	return "ch" + strconv.Itoa(int(c))
}

func (c PwmChannel) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *PwmChannel) UnmarshalText(text []byte) error {
	parsed, err := ParsePwmChannel(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// UnmarshalJSON accepts both "ch3" and a bare 3.
func (c *PwmChannel) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("%w: %s", ErrUnknownPwmChannel, data)
		}
		return c.UnmarshalText([]byte(s))
	}
	return c.UnmarshalText(data)
}

// UserLed is one of the three user LEDs.
type UserLed uint8

// ParseUserLed accepts "led2" or "2", case-insensitively.
func ParseUserLed(s string) (UserLed, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	n, err := strconv.Atoi(strings.TrimPrefix(name, "led"))
	if err != nil || n < 1 || n > UserLedCount {
		return 0, fmt.Errorf("%w: %q", ErrUnknownLed, s)
	}
	return UserLed(n), nil
}

func (l UserLed) String() string {
	return "led" + strconv.Itoa(int(l))
}

func (l UserLed) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

func (l *UserLed) UnmarshalText(text []byte) error {
	parsed, err := ParseUserLed(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// UnmarshalJSON accepts both "led2" and a bare 2.
func (l *UserLed) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("%w: %s", ErrUnknownLed, data)
		}
		return l.UnmarshalText([]byte(s))
	}
	return l.UnmarshalText(data)
}

// RGB is one addressable pixel color.
type RGB struct {
	Red   uint8 `json:"red"`
	Green uint8 `json:"green"`
	Blue  uint8 `json:"blue"`
}

// ParseRGB parses "r,g,b" with each component in 0..255.
func ParseRGB(s string) (RGB, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return RGB{}, fmt.Errorf("%w: color %q must be r,g,b", ErrInvalidValue, s)
	}
	var rgb [3]uint8
	for i, part := range parts {
		n, err := strconv.ParseUint(strings.TrimSpace(part), 10, 8)
		if err != nil {
			return RGB{}, fmt.Errorf("%w: color component %q", ErrInvalidValue, part)
		}
		rgb[i] = uint8(n)
	}
	return RGB{Red: rgb[0], Green: rgb[1], Blue: rgb[2]}, nil
}

// ValidatePwmValue checks a duty-cycle value against the 12-bit range.
func ValidatePwmValue(value int) error {
	if value < 0 || value > PwmMaxValue {
		return fmt.Errorf("%w: pwm value %d outside 0..%d", ErrInvalidValue, value, PwmMaxValue)
	}
	return nil
}

// ValidatePwmFrequency checks a frequency against the prescaler range.
// NaN fails every comparison, so the check is written as an inclusion test.
func ValidatePwmFrequency(hz float32) error {
	if !(hz >= PwmMinFrequency && hz <= PwmMaxFrequency) {
		return fmt.Errorf("%w: pwm frequency %g outside %d..%d Hz", ErrInvalidValue, hz, PwmMinFrequency, PwmMaxFrequency)
	}
	return nil
}

// Settings is the actuator configuration the gateway has applied to the board.
type Settings struct {
	PwmFrequency float32 `json:"pwm_frequency"`
	PwmEnabled   bool    `json:"pwm_enabled"`
}
