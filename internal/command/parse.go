package command

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pscheid92/navigator-gateway/internal/domain"
)

// ParseBatch splits text on ';' and newlines and parses each non-empty part.
// A bad part yields an error entry and does not stop the rest.
func ParseBatch(text string) []Parsed {
	parts := strings.FieldsFunc(text, func(r rune) bool { return r == ';' || r == '\n' })

	out := make([]Parsed, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		cmd, err := ParseText(part)
		out = append(out, Parsed{Text: part, Command: cmd, Err: err})
	}
	return out
}

// Parsed is one entry of a batch.
type Parsed struct {
	Text    string
	Command Command
	Err     error
}

// ParseText parses one slash command:
//
//	/input/<sensor>[/cached|/live]
//	/input/led/<led>
//	/output/pwm/<channel>/<value>
//	/output/pwm/frequency/<hz>
//	/output/pwm/enable/<bool>
//	/output/led/<led>/<bool>
//	/output/neopixel/<r,g,b>[/<r,g,b>...]
//	/settings
//	/get_connected
func ParseText(line string) (Command, error) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "/") {
		return nil, fmt.Errorf("%w: %q must start with '/'", domain.ErrUnknownCommand, line)
	}
	segments := strings.Split(strings.Trim(line, "/"), "/")

	switch strings.ToLower(segments[0]) {
	case "input":
		return parseInput(segments[1:])
	case "output":
		return parseOutput(segments[1:])
	case "settings":
		if len(segments) != 1 {
			return nil, usage("/settings")
		}
		return ReadSettings{}, nil
	case "get_connected":
		if len(segments) != 1 {
			return nil, usage("/get_connected")
		}
		return GetConnected{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownCommand, segments[0])
	}
}

func parseInput(args []string) (Command, error) {
	if len(args) == 2 && strings.EqualFold(args[0], "led") {
		led, err := domain.ParseUserLed(args[1])
		if err != nil {
			return nil, err
		}
		return ReadLed{Led: led}, nil
	}

	if len(args) < 1 || len(args) > 2 {
		return nil, usage("/input/<sensor>[/cached|/live]")
	}
	sensor, err := domain.ParseSensor(args[0])
	if err != nil {
		return nil, err
	}
	cmd := ReadSensor{Sensor: sensor}
	if len(args) == 2 {
		switch strings.ToLower(args[1]) {
		case "cached":
			cmd.Cached = true
		case "live":
		default:
			return nil, usage("/input/<sensor>[/cached|/live]")
		}
	}
	return cmd, nil
}

func parseOutput(args []string) (Command, error) {
	if len(args) == 0 {
		return nil, usage("/output/<pwm|led|neopixel>/...")
	}

	switch strings.ToLower(args[0]) {
	case "pwm":
		return parsePwm(args[1:])
	case "led":
		if len(args) != 3 {
			return nil, usage("/output/led/<led>/<bool>")
		}
		led, err := domain.ParseUserLed(args[1])
		if err != nil {
			return nil, err
		}
		on, err := parseBool(args[2])
		if err != nil {
			return nil, err
		}
		return SetLed{Led: led, On: on}, nil
	case "neopixel":
		if len(args) < 2 {
			return nil, usage("/output/neopixel/<r,g,b>[/<r,g,b>...]")
		}
		pixels := make([]domain.RGB, 0, len(args)-1)
		for _, arg := range args[1:] {
			rgb, err := domain.ParseRGB(arg)
			if err != nil {
				return nil, err
			}
			pixels = append(pixels, rgb)
		}
		return SetNeopixel{Pixels: pixels}, nil
	default:
		return nil, fmt.Errorf("%w: output %q", domain.ErrUnknownCommand, args[0])
	}
}

func parsePwm(args []string) (Command, error) {
	if len(args) != 2 {
		return nil, usage("/output/pwm/<channel>/<value>")
	}

	switch strings.ToLower(args[0]) {
	case "frequency":
		hz, err := strconv.ParseFloat(args[1], 32)
		if err != nil {
			return nil, fmt.Errorf("%w: frequency %q", domain.ErrInvalidValue, args[1])
		}
		if err := domain.ValidatePwmFrequency(float32(hz)); err != nil {
			return nil, err
		}
		return SetPwmFrequency{Hz: float32(hz)}, nil
	case "enable":
		enabled, err := parseBool(args[1])
		if err != nil {
			return nil, err
		}
		return SetPwmEnable{Enabled: enabled}, nil
	}

	channel, err := domain.ParsePwmChannel(args[0])
	if err != nil {
		return nil, err
	}
	value, err := strconv.Atoi(args[1])
	if err != nil {
		return nil, fmt.Errorf("%w: pwm value %q", domain.ErrInvalidValue, args[1])
	}
	if err := domain.ValidatePwmValue(value); err != nil {
		return nil, err
	}
	return SetPwmValue{Channel: channel, Value: uint16(value)}, nil
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "on":
		return true, nil
	case "off":
		return false, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("%w: boolean %q", domain.ErrInvalidValue, s)
	}
	return b, nil
}

func usage(form string) error {
	return fmt.Errorf("%w: usage %s", domain.ErrUnknownCommand, form)
}
