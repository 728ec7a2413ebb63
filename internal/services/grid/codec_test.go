package grid

import (
	"math"
	"testing"
)

func TestFrequencyToVoltageMonotonicAndInRange(t *testing.T) {
	prev := math.Inf(-1)
	for f := 57.0; f <= 63.0; f += 0.05 {
		v := FrequencyToVoltage(f)
		if v < MinVolts-1e-9 || v > MaxVolts+1e-9 {
			t.Fatalf("f=%v: voltage %v outside [0,5]", f, v)
		}
		if v <= prev {
			t.Fatalf("f=%v: not monotonic (%v <= %v)", f, v, prev)
		}
		prev = v
	}
	if got := FrequencyToVoltage(60); math.Abs(got-2.5) > 1e-12 {
		t.Fatalf("60 Hz should map to 2.5 V, got %v", got)
	}
}

func TestSOCToVoltageMonotonicAndInRange(t *testing.T) {
	prev := math.Inf(-1)
	for s := 0.0; s <= 100.0; s += 0.5 {
		v := SOCToVoltage(s)
		if v < MinVolts || v > MaxVolts {
			t.Fatalf("soc=%v: voltage %v outside [0,5]", s, v)
		}
		if v <= prev {
			t.Fatalf("soc=%v: not monotonic", s)
		}
		prev = v
	}
}

func TestInverseConversions(t *testing.T) {
	for _, f := range []float64{57, 58.3, 60, 61.99, 63} {
		if got := VoltageToFrequency(FrequencyToVoltage(f)); math.Abs(got-f) > 1e-9 {
			t.Fatalf("frequency round trip %v -> %v", f, got)
		}
	}
	for _, s := range []float64{0, 12.5, 50, 100} {
		if got := VoltageToSOC(SOCToVoltage(s)); math.Abs(got-s) > 1e-9 {
			t.Fatalf("soc round trip %v -> %v", s, got)
		}
	}
}

func TestOutputVoltagesClamp(t *testing.T) {
	vf, vs := OutputVoltages(70, -10, 1)
	if vf != MaxVolts || vs != MinVolts {
		t.Fatalf("expected clamped (5, 0), got (%v, %v)", vf, vs)
	}
	vf, vs = OutputVoltages(60, 50, 0)
	if vf != 2.5 || vs != 2.5 {
		t.Fatalf("zero magnitude should act as 1, got (%v, %v)", vf, vs)
	}
	vf, _ = OutputVoltages(60, 50, 2)
	if vf != 1.25 {
		t.Fatalf("magnitude 2 should halve, got %v", vf)
	}
}

func TestDecodeFrame(t *testing.T) {
	got := DecodeFrame([]int32{1000, -500}, 0.001)
	if len(got) != 2 || math.Abs(got[0]-1) > 1e-12 || math.Abs(got[1]+0.5) > 1e-12 {
		t.Fatalf("unexpected volts %v", got)
	}
}
