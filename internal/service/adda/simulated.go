package adda

import (
	"context"
	"math"
	"sync"

	"MicroGrid/internal/domain/models"
	"MicroGrid/pkg/logger"
)

// WithSimulatedID sets the identity the simulated ADC reports.
func WithSimulatedID(id int) Option {
	return func(o *options) { o.simID = id }
}

// WithInputVolts fixes the voltage seen on each input, in read order.
func WithInputVolts(v ...float64) Option {
	return func(o *options) { o.inputVolts = append([]float64(nil), v...) }
}

// WithLoopback wires DAC channel A to the first input and B to the second.
func WithLoopback(on bool) Option {
	return func(o *options) { o.loopback = on }
}

// Write is one DAC update seen by the simulated device.
type Write struct {
	Channel models.OutputChannel
	Volts   float64
}

// Simulated stands in for the AD/DA board on machines without SPI. Inputs
// are fixed voltages or, in loopback, the last DAC outputs.
type Simulated struct {
	mu           sync.Mutex
	opts         options
	vpd          float64
	outputs      map[models.OutputChannel]float64
	writes       []Write
	calibrations int
	closed       bool
}

func NewSimulated(opts ...Option) *Simulated {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Simulated{
		opts:    o,
		vpd:     VoltsPerDigit(o.vref, o.gain),
		outputs: make(map[models.OutputChannel]float64),
	}
}

func (s *Simulated) Identify(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}
	return s.opts.simID, ctx.Err()
}

func (s *Simulated) Calibrate(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.calibrations++
	s.opts.log.Debug("simulated self calibration", logger.Int("count", s.calibrations))
	return ctx.Err()
}

func (s *Simulated) WriteAnalog(ctx context.Context, ch models.OutputChannel, volts float64) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	v := math.Max(0, math.Min(volts, s.opts.dacVRef))
	s.outputs[ch] = v
	s.writes = append(s.writes, Write{Channel: ch, Volts: v})
	s.mu.Unlock()

	return sleepCtx(ctx, s.opts.settle)
}

func (s *Simulated) ReadChannels(ctx context.Context, chs []models.InputChannel) ([]int32, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	out := make([]int32, len(chs))
	for i := range chs {
		out[i] = s.digitize(s.inputVolts(i))
	}
	s.mu.Unlock()

	return out, sleepCtx(ctx, s.opts.settle)
}

func (s *Simulated) inputVolts(i int) float64 {
	if s.opts.loopback {
		switch i {
		case 0:
			return s.outputs[models.DACChannelA]
		case 1:
			return s.outputs[models.DACChannelB]
		}
		return 0
	}
	if i < len(s.opts.inputVolts) {
		return s.opts.inputVolts[i]
	}
	return 0
}

// digitize quantizes v the way the ADC would, saturating at full scale.
func (s *Simulated) digitize(v float64) int32 {
	code := math.Round(v / s.vpd)
	switch {
	case code > adcFullScale:
		code = adcFullScale
	case code < -adcFullScale-1:
		code = -adcFullScale - 1
	}
	return int32(code)
}

func (s *Simulated) VoltsPerDigit() float64 { return s.vpd }

func (s *Simulated) VoltageMagnitude() float64 { return s.opts.magnitude }

// Writes returns a copy of every DAC update so far.
func (s *Simulated) Writes() []Write {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Write(nil), s.writes...)
}

// Calibrations reports how many times Calibrate ran.
func (s *Simulated) Calibrations() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calibrations
}

func (s *Simulated) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
