package domain

import (
	"fmt"
	"strings"
)

// Sensor selects one sensor class, or all of them.
type Sensor int

const (
	SensorAll Sensor = iota
	SensorTemperature
	SensorPressure
	SensorAccelerometer
	SensorGyroscope
	SensorMagnetometer
	SensorADC
)

var sensorCatalog = []struct {
	sensor Sensor
	name   string
	unit   string
}{
	{SensorAll, "all", ""},
	{SensorTemperature, "temperature", "C"},
	{SensorPressure, "pressure", "kPa"},
	{SensorAccelerometer, "accelerometer", "m/s2"},
	{SensorGyroscope, "gyroscope", "rad/s"},
	{SensorMagnetometer, "magnetometer", "uT"},
	{SensorADC, "adc", "V"},
}

// ParseSensor resolves a sensor name, case-insensitively.
func ParseSensor(s string) (Sensor, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for _, entry := range sensorCatalog {
		if entry.name == name {
			return entry.sensor, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownSensor, s)
}

// Sensors returns every individual sensor class in reading order.
func Sensors() []Sensor {
	out := make([]Sensor, 0, len(sensorCatalog)-1)
	for _, entry := range sensorCatalog {
		if entry.sensor != SensorAll {
			out = append(out, entry.sensor)
		}
	}
	return out
}

// Expand returns the individual classes a selection covers.
func (s Sensor) Expand() []Sensor {
	if s == SensorAll {
		return Sensors()
	}
	return []Sensor{s}
}

func (s Sensor) String() string {
	for _, entry := range sensorCatalog {
		if entry.sensor == s {
			return entry.name
		}
	}
	return fmt.Sprintf("sensor(%d)", int(s))
}

// Unit is the physical unit the sensor reports in. Empty for SensorAll.
func (s Sensor) Unit() string {
	for _, entry := range sensorCatalog {
		if entry.sensor == s {
			return entry.unit
		}
	}
	return ""
}

func (s Sensor) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Sensor) UnmarshalText(text []byte) error {
	parsed, err := ParseSensor(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
