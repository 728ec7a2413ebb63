package grid

// Oscillator produces the ambient power-balance perturbation: a triangle
// wave between -Max and Max moving Step watts per iteration.
type Oscillator struct {
	Step float64
	Max  float64
}

// Next advances the wave by one iteration and returns the new balance and
// direction. A value that would leave [-Max, Max] is pinned to the bound
// and the direction flips.
func (o Oscillator) Next(balance float64, rising bool) (float64, bool) {
	if rising {
		balance += o.Step
		if balance > o.Max {
			return o.Max, false
		}
		return balance, true
	}
	balance -= o.Step
	if balance < -o.Max {
		return -o.Max, true
	}
	return balance, false
}
