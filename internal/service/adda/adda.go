// Package adda drives the AD/DA board the control loop exchanges voltages
// with: an ADS1256 ADC and a DAC8532 DAC sharing one SPI bus.
package adda

import (
	"errors"
	"fmt"
	"time"

	"MicroGrid/internal/domain/repository"
	"MicroGrid/pkg/config"
	"MicroGrid/pkg/logger"
)

// ADS1256 reports this value in the upper nibble of STATUS.
const ADS1256ChipID = 3

const adcFullScale = 1<<23 - 1

var ErrClosed = errors.New("adda: device closed")

// VoltsPerDigit is the ADS1256 resolution for a reference and PGA gain.
func VoltsPerDigit(vref float64, gain int) float64 {
	if gain <= 0 {
		gain = 1
	}
	return 2 * vref / (float64(gain) * adcFullScale)
}

// Option configures a device.
type Option func(*options)

type options struct {
	settle    time.Duration
	magnitude float64
	vref      float64
	gain      int
	dacVRef   float64
	log       *logger.Logger

	// simulated device only
	simID      int
	inputVolts []float64
	loopback   bool
}

func defaultOptions() options {
	return options{
		settle:    200 * time.Microsecond,
		magnitude: 1,
		vref:      2.5,
		gain:      1,
		dacVRef:   5,
		log:       logger.Nop(),
		simID:     ADS1256ChipID,
	}
}

// WithSettleDelay sets the pause after every write and read.
func WithSettleDelay(d time.Duration) Option {
	return func(o *options) { o.settle = d }
}

// WithVoltageMagnitude sets the output scale reported to the loop.
func WithVoltageMagnitude(m float64) Option {
	return func(o *options) {
		if m > 0 {
			o.magnitude = m
		}
	}
}

// WithADCReference sets the ADC reference voltage and PGA gain.
func WithADCReference(vref float64, gain int) Option {
	return func(o *options) {
		if vref > 0 {
			o.vref = vref
		}
		if gain > 0 {
			o.gain = gain
		}
	}
}

// WithDACReference sets the DAC full-scale voltage.
func WithDACReference(vref float64) Option {
	return func(o *options) {
		if vref > 0 {
			o.dacVRef = vref
		}
	}
}

func WithLogger(l *logger.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

// Open builds the device selected by cfg.Device.Type.
func Open(cfg *config.Config, log *logger.Logger) (repository.Device, error) {
	d := cfg.Device
	opts := []Option{
		WithSettleDelay(d.SettleDelay),
		WithVoltageMagnitude(d.VoltageMagnitude),
		WithADCReference(d.ADCVRef, d.ADCGain),
		WithDACReference(d.DACVRef),
		WithLogger(log),
	}

	switch d.Type {
	case "simulated":
		sim := NewSimulated(append(opts,
			WithSimulatedID(d.ExpectedID),
			WithInputVolts(d.Simulated.InputVolts...),
			WithLoopback(d.Simulated.Loopback),
		)...)
		return sim, nil
	case "waveshare":
		return OpenWaveshare(WaveshareConfig{
			SPIPort:       d.SPIPort,
			SPISpeedHz:    d.SPISpeedHz,
			ADCChipSelect: d.ADCChipSelect,
			DACChipSelect: d.DACChipSelect,
			DataReadyPin:  d.DataReadyPin,
		}, opts...)
	default:
		return nil, fmt.Errorf("unknown device type %q", d.Type)
	}
}
