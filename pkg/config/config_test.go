package config

import (
	"flag"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return p
}

func TestLoadAppliesDefaults(t *testing.T) {
	p := writeConfig(t, "environment: test\ndevice:\n  type: simulated\n")
	c, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Loop.Frequency != 60 || c.Loop.SOC != 50 || c.Loop.Inertia != 40 || c.Loop.Dt != 1 {
		t.Fatalf("unexpected loop defaults %+v", c.Loop)
	}
	if c.Grid.MaxBatteryCapacity != 15000 || c.Grid.MaxCurtail != 5000 || c.Grid.MaxBatteryOutput != 1000 {
		t.Fatalf("unexpected grid defaults %+v", c.Grid)
	}
	if c.Device.SettleDelay != 200*time.Microsecond {
		t.Fatalf("settle delay %v", c.Device.SettleDelay)
	}
	if c.Telemetry.Backend != "none" {
		t.Fatalf("backend %q", c.Telemetry.Backend)
	}
}

func TestLoadRejectsUnknownDevice(t *testing.T) {
	p := writeConfig(t, "device:\n  type: oscilloscope\n")
	if _, err := Load(p); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestLoadRejectsInvertedHaltBand(t *testing.T) {
	p := writeConfig(t, "grid:\n  halt_low: 62\n  halt_high: 58\n")
	if _, err := Load(p); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestNormalizeLoopSubstitutesDefaults(t *testing.T) {
	c, err := Default()
	if err != nil {
		t.Fatalf("defaults: %v", err)
	}
	c.Loop.Frequency = 70
	c.Loop.SOC = 120
	c.Loop.Inertia = -3
	c.Loop.Dt = 0
	c.Loop.Delay = -time.Second

	now := time.Date(2024, 3, 28, 9, 5, 7, 0, time.UTC)
	subs := c.NormalizeLoop(now)
	if len(subs) != 6 {
		t.Fatalf("expected 6 substitutions, got %d: %v", len(subs), subs)
	}
	if c.Loop.Frequency != DefaultFrequency || c.Loop.SOC != DefaultSOC || c.Loop.Inertia != DefaultInertia || c.Loop.Dt != DefaultDt || c.Loop.Delay != 0 {
		t.Fatalf("values not substituted: %+v", c.Loop)
	}
	if c.Loop.FileTag != "2024-03-28_090507" {
		t.Fatalf("file tag %q", c.Loop.FileTag)
	}
}

func TestNormalizeLoopKeepsValidValues(t *testing.T) {
	c, _ := Default()
	c.Loop.Frequency = 59.5
	c.Loop.SOC = 0
	c.Loop.FileTag = "bench"
	if subs := c.NormalizeLoop(time.Now()); len(subs) != 0 {
		t.Fatalf("unexpected substitutions %v", subs)
	}
	if c.Loop.Frequency != 59.5 || c.Loop.SOC != 0 {
		t.Fatalf("valid values changed: %+v", c.Loop)
	}
}

func TestFrequencyBoundsAreExclusive(t *testing.T) {
	for _, f := range []float64{56, 64} {
		c, _ := Default()
		c.Loop.FileTag = "x"
		c.Loop.Frequency = f
		c.NormalizeLoop(time.Now())
		if c.Loop.Frequency != DefaultFrequency {
			t.Fatalf("%v should be replaced", f)
		}
	}
}

func TestApplyFlags(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	f, resolve := RegisterFlags(fs)
	if err := fs.Parse([]string{"-d", "0.5", "-f", "59", "-s", "0", "-j", "20", "-t", "0.1", "-z", "run1", "-e", "10.0.0.2", "-g", "9092", "-sim"}); err != nil {
		t.Fatalf("parse: %v", err)
	}
	resolve()

	c, _ := Default()
	c.ApplyFlags(f)
	if c.Loop.Delay != 500*time.Millisecond {
		t.Fatalf("delay %v", c.Loop.Delay)
	}
	if c.Loop.Frequency != 59 || c.Loop.SOC != 0 || c.Loop.Inertia != 20 || c.Loop.Dt != 0.1 || c.Loop.FileTag != "run1" {
		t.Fatalf("loop %+v", c.Loop)
	}
	if c.Telemetry.Host != "10.0.0.2" || c.Telemetry.Port != 9092 {
		t.Fatalf("telemetry %+v", c.Telemetry)
	}
	if c.Device.Type != "simulated" {
		t.Fatalf("device %q", c.Device.Type)
	}
}

func TestApplyFlagsLeavesUnsetSOC(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	f, resolve := RegisterFlags(fs)
	_ = fs.Parse(nil)
	resolve()

	c, _ := Default()
	c.Loop.SOC = 75
	c.ApplyFlags(f)
	if c.Loop.SOC != 75 {
		t.Fatalf("unset -s overrode soc: %v", c.Loop.SOC)
	}
}

func TestNegativeFlagsAreSubstituted(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	f, resolve := RegisterFlags(fs)
	if err := fs.Parse([]string{"-d", "-1", "-j", "-3", "-t", "-0.5", "-z", "x"}); err != nil {
		t.Fatalf("parse: %v", err)
	}
	resolve()

	c, _ := Default()
	c.ApplyFlags(f)
	subs := c.NormalizeLoop(time.Now())
	if len(subs) != 3 {
		t.Fatalf("substitutions %v, want 3", subs)
	}
	if c.Loop.Delay != 0 || c.Loop.Inertia != DefaultInertia || c.Loop.Dt != DefaultDt {
		t.Fatalf("loop %+v", c.Loop)
	}
}
