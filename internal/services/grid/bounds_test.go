package grid

import "testing"

func TestSignalsMidScale(t *testing.T) {
	l := DefaultLimits()
	sig, curtail := l.Signals(2.5, 2.5)
	if sig.Control != 250 {
		t.Fatalf("control %v, want 250", sig.Control)
	}
	if curtail != 3125 {
		t.Fatalf("computed curtail %v, want 3125", curtail)
	}
	if sig.Curtail != 0 {
		t.Fatalf("curtail must be zeroed while disabled, got %v", sig.Curtail)
	}

	l.CurtailEnabled = true
	sig, _ = l.Signals(2.5, 2.5)
	if sig.Curtail != 3125 {
		t.Fatalf("curtail %v when enabled, want 3125", sig.Curtail)
	}
}

func TestInPhase(t *testing.T) {
	l := DefaultLimits()
	for _, f := range []float64{58, 60, 62} {
		if !l.InPhase(f) {
			t.Fatalf("%v should be in phase", f)
		}
	}
	for _, f := range []float64{57.99, 62.01, 63} {
		if l.InPhase(f) {
			t.Fatalf("%v should be out of phase", f)
		}
	}
}

func TestInputRamp(t *testing.T) {
	r := &InputRamp{Enabled: true, Start: 0.125, Stop: 0.5, Step: 0.125, Offset: 0.25}
	if v := r.Apply(2.0); v != 1.75 {
		t.Fatalf("first ramp step %v", v)
	}
	if v := r.Apply(2.0); v != 1.625 {
		t.Fatalf("second ramp step %v", v)
	}
	if r.Offset != 0.5 {
		t.Fatalf("offset %v, want 0.5", r.Offset)
	}
	if v := r.Apply(2.0); v != 2.0 {
		t.Fatalf("ramp should stop at Stop, got %v", v)
	}

	off := &InputRamp{Offset: 0.25, Start: 0.125, Stop: 0.5, Step: 0.125}
	if v := off.Apply(2.0); v != 2.0 {
		t.Fatalf("disabled ramp changed input: %v", v)
	}
}
