package grid

import "MicroGrid/internal/domain/models"

// Limits are the power scales and halt band of the simulated grid.
type Limits struct {
	MaxBatteryOutput float64 // W at full-scale control voltage
	MaxCurtail       float64 // W at full-scale curtail voltage
	CurtailEnabled   bool    // off until the analog computer's curtail logic is updated
	HaltLow          float64
	HaltHigh         float64
}

// DefaultLimits are the values of the deployed demo.
func DefaultLimits() Limits {
	return Limits{
		MaxBatteryOutput: 1000,
		MaxCurtail:       5000,
		HaltLow:          58,
		HaltHigh:         62,
	}
}

// Signals decodes the control and curtail voltages into watts. The curtail
// value is still computed when disabled so it can be reported.
func (l Limits) Signals(vU, vC float64) (sig models.ControlSignals, computedCurtail float64) {
	sig.Control = ((vU - 2) / 2) * l.MaxBatteryOutput
	computedCurtail = (vC / 4) * l.MaxCurtail
	if l.CurtailEnabled {
		sig.Curtail = computedCurtail
	}
	return sig, computedCurtail
}

// InPhase reports whether freq is inside the halt band.
func (l Limits) InPhase(freq float64) bool {
	return freq <= l.HaltHigh && freq >= l.HaltLow
}

// InputRamp is the optional start-up offset subtracted from the control
// voltage. It is active while Offset lies strictly inside (Start, Stop).
type InputRamp struct {
	Enabled bool
	Start   float64
	Stop    float64
	Step    float64
	Offset  float64
}

// Apply returns the adjusted control voltage and advances the ramp.
func (r *InputRamp) Apply(vU float64) float64 {
	if !r.Enabled || r.Offset <= r.Start || r.Offset >= r.Stop {
		return vU
	}
	v := vU - r.Offset
	r.Offset += r.Step
	return v
}
