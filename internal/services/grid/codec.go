package grid

// Output range of the DAC and input range of the analog computer.
const (
	MinVolts = 0.0
	MaxVolts = 5.0
)

// FrequencyToVoltage maps [57, 63] Hz onto [0, 5] V.
func FrequencyToVoltage(freq float64) float64 {
	return ((freq - 57.0) * 5) / 6
}

// VoltageToFrequency is the inverse of FrequencyToVoltage.
func VoltageToFrequency(v float64) float64 {
	return v*6/5 + 57.0
}

// SOCToVoltage maps [0, 100] % onto [0, 5] V.
func SOCToVoltage(soc float64) float64 {
	return (soc / 100) * 5
}

// VoltageToSOC is the inverse of SOCToVoltage.
func VoltageToSOC(v float64) float64 {
	return v / 5 * 100
}

// RawToVoltage scales a digitized sample by the device resolution.
func RawToVoltage(raw int32, voltsPerDigit float64) float64 {
	return float64(raw) * voltsPerDigit
}

// ClampVoltage silently pins v into the DAC output range.
func ClampVoltage(v float64) float64 {
	if v < MinVolts {
		return MinVolts
	}
	if v > MaxVolts {
		return MaxVolts
	}
	return v
}

// OutputVoltages converts the grid quantities into the two DAC voltages.
// magnitude is the device voltage magnitude; zero or negative means 1.
func OutputVoltages(freq, soc, magnitude float64) (vFreq, vSOC float64) {
	if magnitude <= 0 {
		magnitude = 1
	}
	vFreq = ClampVoltage(FrequencyToVoltage(freq) / magnitude)
	vSOC = ClampVoltage(SOCToVoltage(soc) / magnitude)
	return vFreq, vSOC
}

// DecodeFrame converts raw samples to volts.
func DecodeFrame(raw []int32, voltsPerDigit float64) []float64 {
	out := make([]float64, len(raw))
	for i, r := range raw {
		out[i] = RawToVoltage(r, voltsPerDigit)
	}
	return out
}
