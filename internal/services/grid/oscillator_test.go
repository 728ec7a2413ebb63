package grid

import "testing"

func TestOscillatorZeroStepIsNoop(t *testing.T) {
	o := Oscillator{Step: 0, Max: 1000}
	b, rising := o.Next(0, false)
	if b != 0 || rising {
		t.Fatalf("expected (0, falling), got (%v, %v)", b, rising)
	}
}

func TestOscillatorTriangleBoundedAndPeriodic(t *testing.T) {
	o := Oscillator{Step: 300, Max: 1000}
	b, rising := 0.0, true
	var flips int
	var seq []float64
	for i := 0; i < 200; i++ {
		nb, nr := o.Next(b, rising)
		if nb > o.Max || nb < -o.Max {
			t.Fatalf("iteration %d: balance %v outside [-%v, %v]", i, nb, o.Max, o.Max)
		}
		if nr != rising {
			flips++
		}
		b, rising = nb, nr
		seq = append(seq, b)
	}
	if flips < 10 {
		t.Fatalf("expected repeated direction changes, got %d", flips)
	}
	// -1000 -700 ... 800 1000 700 ... -800 -1000
	const period = 14
	for i := 100; i+period < len(seq); i++ {
		if seq[i] != seq[i+period] {
			t.Fatalf("not periodic at %d: %v vs %v", i, seq[i], seq[i+period])
		}
	}
}

func TestOscillatorFlipsAtBounds(t *testing.T) {
	o := Oscillator{Step: 10, Max: 15}
	b, r := o.Next(10, true)
	if b != 15 || r {
		t.Fatalf("expected pinned at 15 and falling, got (%v, %v)", b, r)
	}
	b, r = o.Next(-10, false)
	if b != -15 || !r {
		t.Fatalf("expected pinned at -15 and rising, got (%v, %v)", b, r)
	}
}
