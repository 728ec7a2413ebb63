package models

import "time"

// GridState is the simulated grid as seen by the control loop.
// It is owned by the loop goroutine and replaced once per iteration.
type GridState struct {
	Frequency     float64 // Hz
	StateOfCharge float64 // percent
	PowerBalance  float64 // W, ambient perturbation
	PowerRising   bool    // oscillator direction
	Iteration     uint64
}

// SampleFrame holds one ordered read of the input channels.
type SampleFrame struct {
	Raw   []int32
	Volts []float64
}

// ControlSignals are the commands decoded from the analog computer, in watts.
type ControlSignals struct {
	Control float64 // battery: positive discharges, negative charges
	Curtail float64 // generation curtailment
}

// Record is what one iteration emits to sinks, publishers and the console.
type Record struct {
	RunTag         string        `json:"run_tag,omitempty"`
	Iteration      uint64        `json:"iteration"`
	Time           time.Time     `json:"date"`
	Frequency      float64       `json:"frequency"`
	StateOfCharge  float64       `json:"state_of_charge"`
	LoopDuration   time.Duration `json:"loop_duration"`
	FrequencyVolts float64       `json:"frequency_voltage"`
	SOCVolts       float64       `json:"state_of_charge_voltage"`
	UVolts         float64       `json:"u_voltage"`
	CVolts         float64       `json:"c_voltage"`
	Control        float64       `json:"control"`
	Curtail        float64       `json:"curtail"`
	PowerBalance   float64       `json:"power_balance"`
	NetChange      float64       `json:"net_change"`
}

// Snapshot is the latest loop status exposed to readers outside the loop.
type Snapshot struct {
	Record  Record `json:"record"`
	Halted  bool   `json:"halted"`
	Reason  string `json:"reason,omitempty"`
	RunTag  string `json:"run_tag"`
	Backend string `json:"backend"`
}
