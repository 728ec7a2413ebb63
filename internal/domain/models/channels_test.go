package models

import "testing"

func TestInputChannelPins(t *testing.T) {
	if AIN1.Positive() != 1 || AIN1.Negative() != 8 {
		t.Fatalf("AIN1 pins = %d/%d, want 1/8", AIN1.Positive(), AIN1.Negative())
	}
	if got := AIN1.String(); got != "AIN1-AINCOM" {
		t.Fatalf("AIN1 = %q", got)
	}
	if got := Differential(PosAIN2, NegAIN3).String(); got != "AIN2-AIN3" {
		t.Fatalf("differential = %q", got)
	}
}
