package grid

import (
	"errors"
	"math"

	"MicroGrid/internal/domain/models"
)

// DefaultBatteryCapacity is the simulated storage, in kWh.
const DefaultBatteryCapacity = 15000.0

const minDenominator = 1e-9

// ErrDegenerateFrequency is returned when J*f is too close to zero to divide by.
var ErrDegenerateFrequency = errors.New("grid: frequency denominator is zero")

// Updater evolves frequency and state of charge by one time step.
type Updater struct {
	Inertia         float64 // J
	Dt              float64
	BatteryCapacity float64
}

// Step is the outcome of one Apply.
type Step struct {
	State     models.GridState
	Signals   models.ControlSignals // control may be rejected to 0
	NetChange float64
}

// Apply returns the next state. prev.PowerBalance must already hold this
// iteration's perturbation.
func (u Updater) Apply(prev models.GridState, sig models.ControlSignals) (Step, error) {
	capacity := u.BatteryCapacity
	if capacity <= 0 {
		capacity = DefaultBatteryCapacity
	}

	next := prev
	soc := (prev.StateOfCharge*capacity - sig.Control) * u.Dt / capacity
	switch {
	case soc < 0:
		soc = 0
		sig.Control = 0
	case soc > 100:
		soc = 100
	}
	next.StateOfCharge = soc

	net := prev.PowerBalance + sig.Control - sig.Curtail
	denom := u.Inertia * prev.Frequency
	if math.Abs(denom) < minDenominator {
		return Step{State: prev, Signals: sig, NetChange: net}, ErrDegenerateFrequency
	}
	next.Frequency = prev.Frequency + net*u.Dt/denom

	return Step{State: next, Signals: sig, NetChange: net}, nil
}
