package config

import (
	"flag"
	"fmt"
	"time"

	"MicroGrid/pkg/util"
)

// Loop defaults used when a supplied value is outside its domain.
const (
	DefaultFrequency = 60.0
	DefaultSOC       = 50.0
	DefaultInertia   = 40
	DefaultDt        = 1.0
)

// Flags are the command-line overrides of the deployed tool. Zero values
// mean "not given" except where a pointer is used.
type Flags struct {
	Delay     float64
	Frequency float64
	SOC       *float64
	Inertia   int
	Dt        float64
	FileTag   string
	Host      string
	Port      int
	Simulated bool
}

// RegisterFlags binds the overrides on fs. The returned func must be called
// after fs.Parse to resolve which flags were actually set.
func RegisterFlags(fs *flag.FlagSet) (*Flags, func()) {
	f := &Flags{}
	soc := fs.Float64("s", DefaultSOC, "initial state of charge (%)")
	fs.Float64Var(&f.Delay, "d", 0, "loop time delay (seconds)")
	fs.Float64Var(&f.Frequency, "f", 0, "initial frequency (Hz)")
	fs.IntVar(&f.Inertia, "j", 0, "moment of inertia of the spinning machines")
	fs.Float64Var(&f.Dt, "t", 0, "dT used by the grid update")
	fs.StringVar(&f.FileTag, "z", "", "output file tag")
	fs.StringVar(&f.Host, "e", "", "telemetry host address")
	fs.IntVar(&f.Port, "g", 0, "telemetry port")
	fs.BoolVar(&f.Simulated, "sim", false, "use the simulated AD/DA device")

	return f, func() {
		fs.Visit(func(fl *flag.Flag) {
			if fl.Name == "s" {
				f.SOC = soc
			}
		})
	}
}

// ApplyFlags merges command-line overrides into the loop configuration.
// Any non-zero value is taken so NormalizeLoop can reject and report it.
func (c *Config) ApplyFlags(f *Flags) {
	if f == nil {
		return
	}
	if f.Delay != 0 {
		c.Loop.Delay = time.Duration(f.Delay * float64(time.Second))
	}
	if f.Frequency != 0 {
		c.Loop.Frequency = f.Frequency
	}
	if f.SOC != nil {
		c.Loop.SOC = *f.SOC
	}
	if f.Inertia != 0 {
		c.Loop.Inertia = f.Inertia
	}
	if f.Dt != 0 {
		c.Loop.Dt = f.Dt
	}
	if f.FileTag != "" {
		c.Loop.FileTag = f.FileTag
	}
	if f.Host != "" {
		c.Telemetry.Host = f.Host
	}
	if f.Port > 0 {
		c.Telemetry.Port = f.Port
	}
	if f.Simulated {
		c.Device.Type = "simulated"
	}
}

// Substitution records one loop value replaced by its default.
type Substitution struct {
	Field string
	Given string
	Used  string
}

func (s Substitution) String() string {
	return fmt.Sprintf("%s: %s replaced by %s", s.Field, s.Given, s.Used)
}

// NormalizeLoop replaces out-of-domain loop values with their defaults and
// reports every replacement. It never fails.
func (c *Config) NormalizeLoop(now time.Time) []Substitution {
	var subs []Substitution
	sub := func(field string, given, used interface{}) {
		subs = append(subs, Substitution{Field: field, Given: fmt.Sprint(given), Used: fmt.Sprint(used)})
	}

	if c.Loop.Delay < 0 {
		sub("loop.delay", c.Loop.Delay, time.Duration(0))
		c.Loop.Delay = 0
	}
	if !(c.Loop.Frequency > 56 && c.Loop.Frequency < 64) {
		sub("loop.frequency", c.Loop.Frequency, DefaultFrequency)
		c.Loop.Frequency = DefaultFrequency
	}
	if c.Loop.SOC < 0 || c.Loop.SOC > 100 {
		sub("loop.soc", c.Loop.SOC, DefaultSOC)
		c.Loop.SOC = DefaultSOC
	}
	if c.Loop.Inertia <= 0 {
		sub("loop.inertia", c.Loop.Inertia, DefaultInertia)
		c.Loop.Inertia = DefaultInertia
	}
	if !(c.Loop.Dt > 0) {
		sub("loop.dt", c.Loop.Dt, DefaultDt)
		c.Loop.Dt = DefaultDt
	}
	if c.Loop.FileTag == "" {
		tag := util.RunTag(now)
		sub("loop.file_tag", `""`, tag)
		c.Loop.FileTag = tag
	}
	return subs
}
