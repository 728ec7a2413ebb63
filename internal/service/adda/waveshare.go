package adda

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/bits"
	"sync"
	"time"

	"go.uber.org/multierr"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"

	"MicroGrid/internal/domain/models"
)

// ADS1256 commands.
const (
	cmdWakeup  byte = 0x00
	cmdRData   byte = 0x01
	cmdSDATAC  byte = 0x0F
	cmdRReg    byte = 0x10
	cmdWReg    byte = 0x50
	cmdSelfCal byte = 0xF0
	cmdSync    byte = 0xFC
	cmdReset   byte = 0xFE
)

// ADS1256 registers.
const (
	regStatus byte = 0x00
	regMux    byte = 0x01
	regADCON  byte = 0x02
	regDRate  byte = 0x03
)

const (
	drate30000SPS  byte = 0xF0
	statusBufferOn byte = 0x04
	filler         byte = 0xFF
	dacMaxValue         = 65535

	// t6: delay between RDATA/RREG and the first data clock.
	commandToData = 10 * time.Microsecond
	drdyPoll      = 20 * time.Microsecond
	drdyTimeout   = 500 * time.Millisecond
	selfCalStart  = 2 * time.Millisecond
)

var ErrDataReadyTimeout = errors.New("adda: ADS1256 data ready timeout")

type spiConn interface {
	Tx(w, r []byte) error
}

type outPin interface {
	Out(l gpio.Level) error
}

type inPin interface {
	Read() gpio.Level
}

// WaveshareConfig names the bus and pins of the High-Precision AD/DA board.
type WaveshareConfig struct {
	SPIPort       string
	SPISpeedHz    int64
	ADCChipSelect string
	DACChipSelect string
	DataReadyPin  string
}

// Waveshare is the ADS1256 + DAC8532 board. Both chips sit on the same SPI
// port and are selected by GPIO lines.
type Waveshare struct {
	mu     sync.Mutex
	conn   spiConn
	port   io.Closer
	adcCS  outPin
	dacCS  outPin
	drdy   inPin
	opts   options
	vpd    float64
	closed bool
}

// OpenWaveshare initializes periph, opens the SPI port and configures the ADC.
func OpenWaveshare(cfg WaveshareConfig, opts ...Option) (*Waveshare, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periph host init: %w", err)
	}

	port, err := spireg.Open(cfg.SPIPort)
	if err != nil {
		return nil, fmt.Errorf("no SPI device %s: %w", cfg.SPIPort, err)
	}
	conn, err := port.Connect(physic.Hertz*physic.Frequency(cfg.SPISpeedHz), spi.Mode1, 8)
	if err != nil {
		return nil, multierr.Combine(fmt.Errorf("connect %s: %w", cfg.SPIPort, err), port.Close())
	}

	adcCS := gpioreg.ByName(cfg.ADCChipSelect)
	dacCS := gpioreg.ByName(cfg.DACChipSelect)
	drdy := gpioreg.ByName(cfg.DataReadyPin)
	if adcCS == nil || dacCS == nil || drdy == nil {
		return nil, multierr.Combine(
			fmt.Errorf("gpio pins %s/%s/%s not all found", cfg.ADCChipSelect, cfg.DACChipSelect, cfg.DataReadyPin),
			port.Close(),
		)
	}
	if err := drdy.In(gpio.PullUp, gpio.NoEdge); err != nil {
		return nil, multierr.Combine(fmt.Errorf("drdy input: %w", err), port.Close())
	}

	w, err := newWaveshare(conn, port, adcCS, dacCS, drdy, opts...)
	if err != nil {
		return nil, multierr.Combine(err, port.Close())
	}
	return w, nil
}

func newWaveshare(conn spiConn, port io.Closer, adcCS, dacCS outPin, drdy inPin, opts ...Option) (*Waveshare, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	w := &Waveshare{
		conn:  conn,
		port:  port,
		adcCS: adcCS,
		dacCS: dacCS,
		drdy:  drdy,
		opts:  o,
		vpd:   VoltsPerDigit(o.vref, o.gain),
	}
	if err := multierr.Combine(adcCS.Out(gpio.High), dacCS.Out(gpio.High)); err != nil {
		return nil, fmt.Errorf("deselect chips: %w", err)
	}
	if err := w.configure(context.Background()); err != nil {
		return nil, err
	}
	return w, nil
}

// configure resets the ADC and writes STATUS, MUX, ADCON and DRATE in one burst.
func (w *Waveshare) configure(ctx context.Context) error {
	if err := w.command(cmdReset); err != nil {
		return fmt.Errorf("reset ADS1256: %w", err)
	}
	if err := w.waitDataReady(ctx); err != nil {
		return err
	}
	if err := w.command(cmdSDATAC); err != nil {
		return fmt.Errorf("stop continuous read: %w", err)
	}
	pga := byte(bits.TrailingZeros(uint(w.opts.gain)))
	regs := []byte{statusBufferOn, byte(models.AIN0), pga, drate30000SPS}
	frame := append([]byte{cmdWReg | regStatus, byte(len(regs) - 1)}, regs...)
	return w.adcTx(frame, nil)
}

func (w *Waveshare) Identify(ctx context.Context) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return 0, ErrClosed
	}

	if err := w.waitDataReady(ctx); err != nil {
		return 0, err
	}
	status, err := w.readRegister(regStatus)
	if err != nil {
		return 0, fmt.Errorf("read status: %w", err)
	}
	return int(status >> 4), nil
}

func (w *Waveshare) Calibrate(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}

	if err := w.waitDataReady(ctx); err != nil {
		return err
	}
	if err := w.command(cmdSelfCal); err != nil {
		return fmt.Errorf("self calibration: %w", err)
	}
	// DRDY rises once calibration starts; a low line right after the
	// command may still be the previous conversion.
	if _, err := w.waitLevel(ctx, gpio.High, selfCalStart); err != nil {
		return err
	}
	return w.waitDataReady(ctx)
}

// WriteAnalog sets one DAC8532 channel. Volts outside [0, DACVRef] are pinned.
func (w *Waveshare) WriteAnalog(ctx context.Context, ch models.OutputChannel, volts float64) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}

	code := dacCode(volts, w.opts.dacVRef)
	frame := []byte{byte(ch), byte(code >> 8), byte(code)}
	if err := w.transfer(w.dacCS, frame, nil); err != nil {
		return fmt.Errorf("write %s: %w", ch, err)
	}
	return sleepCtx(ctx, w.opts.settle)
}

// ReadChannels converts each MUX setting in order and returns the signed
// 24-bit results.
func (w *Waveshare) ReadChannels(ctx context.Context, chs []models.InputChannel) ([]int32, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil, ErrClosed
	}

	out := make([]int32, 0, len(chs))
	for _, ch := range chs {
		if err := w.writeRegister(regMux, byte(ch)); err != nil {
			return nil, fmt.Errorf("select mux 0x%02x: %w", byte(ch), err)
		}
		if err := w.command(cmdSync); err != nil {
			return nil, err
		}
		if err := w.command(cmdWakeup); err != nil {
			return nil, err
		}
		if err := w.waitDataReady(ctx); err != nil {
			return nil, err
		}
		raw := make([]byte, 3)
		if err := w.adcTx([]byte{cmdRData}, raw); err != nil {
			return nil, fmt.Errorf("read data: %w", err)
		}
		out = append(out, decodeSample(raw))
	}
	return out, sleepCtx(ctx, w.opts.settle)
}

func (w *Waveshare) VoltsPerDigit() float64 { return w.vpd }

func (w *Waveshare) VoltageMagnitude() float64 { return w.opts.magnitude }

func (w *Waveshare) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true

	err := multierr.Combine(w.adcCS.Out(gpio.High), w.dacCS.Out(gpio.High))
	if w.port != nil {
		err = multierr.Append(err, w.port.Close())
	}
	return err
}

func (w *Waveshare) command(cmd byte) error {
	return w.adcTx([]byte{cmd}, nil)
}

func (w *Waveshare) writeRegister(reg, value byte) error {
	return w.adcTx([]byte{cmdWReg | reg, 0x00, value}, nil)
}

func (w *Waveshare) readRegister(reg byte) (byte, error) {
	rx := make([]byte, 1)
	if err := w.adcTx([]byte{cmdRReg | reg, 0x00}, rx); err != nil {
		return 0, err
	}
	return rx[0], nil
}

// adcTx sends cmd with the ADC selected and, when rx is non-nil, clocks in
// len(rx) bytes after the command-to-data delay.
func (w *Waveshare) adcTx(cmd, rx []byte) error {
	return w.transfer(w.adcCS, cmd, rx)
}

func (w *Waveshare) transfer(cs outPin, cmd, rx []byte) (err error) {
	if err := cs.Out(gpio.Low); err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, cs.Out(gpio.High))
	}()

	if err := w.conn.Tx(cmd, make([]byte, len(cmd))); err != nil {
		return err
	}
	if rx == nil {
		return nil
	}
	time.Sleep(commandToData)
	tx := make([]byte, len(rx))
	for i := range tx {
		tx[i] = filler
	}
	return w.conn.Tx(tx, rx)
}

// waitDataReady polls DRDY until the ADC pulls it low.
func (w *Waveshare) waitDataReady(ctx context.Context) error {
	ok, err := w.waitLevel(ctx, gpio.Low, drdyTimeout)
	if err == nil && !ok {
		err = ErrDataReadyTimeout
	}
	return err
}

// waitLevel polls DRDY until it reads level or timeout passes.
func (w *Waveshare) waitLevel(ctx context.Context, level gpio.Level, timeout time.Duration) (bool, error) {
	deadline := time.Now().Add(timeout)
	for w.drdy.Read() != level {
		if time.Now().After(deadline) {
			return false, nil
		}
		if err := sleepCtx(ctx, drdyPoll); err != nil {
			return false, err
		}
	}
	return true, nil
}

func decodeSample(b []byte) int32 {
	v := int32(b[0])<<16 | int32(b[1])<<8 | int32(b[2])
	if v&0x800000 != 0 {
		v -= 1 << 24
	}
	return v
}

func dacCode(volts, vref float64) uint16 {
	if volts <= 0 {
		return 0
	}
	if volts >= vref {
		return dacMaxValue
	}
	return uint16(volts / vref * dacMaxValue)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
