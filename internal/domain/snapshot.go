package domain

// ADCChannels is the number of analog input channels on the board.
const ADCChannels = 4

// Vector3 is a three-axis reading (accelerometer, gyroscope, magnetometer).
type Vector3 struct {
	X float32
	Y float32
	Z float32
}

// Values returns the axes in x, y, z order.
func (v Vector3) Values() []float32 {
	return []float32{v.X, v.Y, v.Z}
}

// ADC holds one voltage per analog channel.
type ADC struct {
	Channel [ADCChannels]float32
}

// Values returns the channel voltages in channel order.
func (a ADC) Values() []float32 {
	out := make([]float32, ADCChannels)
	copy(out, a.Channel[:])
	return out
}

// SensorSnapshot is one complete set of readings captured in a single
// sampling pass. It is a plain value: copies never share state.
type SensorSnapshot struct {
	Temperature   float32
	Pressure      float32
	Accelerometer Vector3
	Gyroscope     Vector3
	Magnetometer  Vector3
	ADC           ADC
}
