package adda

import (
	"context"
	"math"
	"testing"

	"MicroGrid/internal/domain/models"
	"MicroGrid/internal/services/grid"
)

func TestSimulatedFixedInputs(t *testing.T) {
	s := NewSimulated(WithSettleDelay(0), WithInputVolts(2.5, 1.25))
	raw, err := s.ReadChannels(context.Background(), []models.InputChannel{models.AIN0, models.AIN1})
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	volts := grid.DecodeFrame(raw, s.VoltsPerDigit())
	if math.Abs(volts[0]-2.5) > s.VoltsPerDigit() || math.Abs(volts[1]-1.25) > s.VoltsPerDigit() {
		t.Fatalf("volts %v", volts)
	}
}

func TestSimulatedIdentity(t *testing.T) {
	s := NewSimulated()
	if id, _ := s.Identify(context.Background()); id != ADS1256ChipID {
		t.Fatalf("default id %d", id)
	}
	s = NewSimulated(WithSimulatedID(7))
	if id, _ := s.Identify(context.Background()); id != 7 {
		t.Fatalf("configured id %d", id)
	}
}

func TestSimulatedFrequencyRoundTrip(t *testing.T) {
	s := NewSimulated(WithSettleDelay(0), WithLoopback(true))
	ctx := context.Background()

	for _, f := range []float64{58, 59.37, 60, 61.5, 62} {
		vf, vs := grid.OutputVoltages(f, 50, s.VoltageMagnitude())
		if err := s.WriteAnalog(ctx, models.DACChannelA, vf); err != nil {
			t.Fatalf("write: %v", err)
		}
		if err := s.WriteAnalog(ctx, models.DACChannelB, vs); err != nil {
			t.Fatalf("write: %v", err)
		}
		raw, err := s.ReadChannels(ctx, []models.InputChannel{models.AIN0, models.AIN1})
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		got := grid.VoltageToFrequency(grid.RawToVoltage(raw[0], s.VoltsPerDigit()))
		if math.Abs(got-f) > 6.0/5.0*s.VoltsPerDigit() {
			t.Fatalf("round trip %v -> %v", f, got)
		}
	}
	if n := len(s.Writes()); n != 10 {
		t.Fatalf("writes %d, want 10", n)
	}
}

func TestSimulatedSaturates(t *testing.T) {
	s := NewSimulated(WithSettleDelay(0), WithInputVolts(10))
	raw, _ := s.ReadChannels(context.Background(), []models.InputChannel{models.AIN0})
	if raw[0] != adcFullScale {
		t.Fatalf("expected saturation, got %d", raw[0])
	}
}

func TestSimulatedClosed(t *testing.T) {
	s := NewSimulated()
	_ = s.Close()
	if err := s.WriteAnalog(context.Background(), models.DACChannelA, 1); err != ErrClosed {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}
