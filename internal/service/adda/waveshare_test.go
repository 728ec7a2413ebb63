package adda

import (
	"context"
	"sync"
	"testing"

	"periph.io/x/conn/v3/gpio"

	"MicroGrid/internal/domain/models"
)

// fakeBoard answers SPI frames like the ADS1256 and DAC8532 would.
type fakeBoard struct {
	mu       sync.Mutex
	selected string
	lastCmd  byte
	id       byte
	regs     [16]byte
	samples  map[byte]int32
	dac      map[byte]uint16
	commands []byte
	closed   bool
}

func newFakeBoard(id byte) *fakeBoard {
	return &fakeBoard{id: id, samples: map[byte]int32{}, dac: map[byte]uint16{}}
}

func (b *fakeBoard) Tx(w, r []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.selected {
	case "dac":
		if len(w) == 3 {
			b.dac[w[0]] = uint16(w[1])<<8 | uint16(w[2])
		}
	case "adc":
		if len(w) > 0 && w[0] == filler {
			b.respond(r)
			return nil
		}
		b.lastCmd = w[0]
		b.commands = append(b.commands, w[0])
		if w[0]&0xF0 == cmdWReg && len(w) >= 3 {
			reg := w[0] & 0x0F
			for i, v := range w[2:] {
				b.regs[int(reg)+i] = v
			}
		}
	}
	return nil
}

func (b *fakeBoard) respond(r []byte) {
	switch {
	case b.lastCmd == cmdRReg|regStatus:
		r[0] = b.id<<4 | b.regs[regStatus]&0x0F
	case b.lastCmd&0xF0 == cmdRReg:
		r[0] = b.regs[b.lastCmd&0x0F]
	case b.lastCmd == cmdRData:
		v := uint32(b.samples[b.regs[regMux]]) & 0xFFFFFF
		r[0], r[1], r[2] = byte(v>>16), byte(v>>8), byte(v)
	}
}

func (b *fakeBoard) Close() error {
	b.closed = true
	return nil
}

type fakeCS struct {
	b    *fakeBoard
	name string
}

func (p fakeCS) Out(l gpio.Level) error {
	p.b.mu.Lock()
	defer p.b.mu.Unlock()
	if l == gpio.Low {
		p.b.selected = p.name
	} else if p.b.selected == p.name {
		p.b.selected = ""
	}
	return nil
}

type readyPin struct{}

func (readyPin) Read() gpio.Level { return gpio.Low }

func newTestWaveshare(t *testing.T, b *fakeBoard) *Waveshare {
	t.Helper()
	w, err := newWaveshare(b, b, fakeCS{b, "adc"}, fakeCS{b, "dac"}, readyPin{}, WithSettleDelay(0))
	if err != nil {
		t.Fatalf("new waveshare: %v", err)
	}
	return w
}

func TestWaveshareConfigureWritesRegisters(t *testing.T) {
	b := newFakeBoard(ADS1256ChipID)
	newTestWaveshare(t, b)
	if b.commands[0] != cmdReset {
		t.Fatalf("first command 0x%02x, want reset", b.commands[0])
	}
	if b.regs[regMux] != byte(models.AIN0) || b.regs[regDRate] != drate30000SPS || b.regs[regADCON] != 0 {
		t.Fatalf("unexpected registers % x", b.regs[:4])
	}
}

func TestWaveshareIdentify(t *testing.T) {
	b := newFakeBoard(ADS1256ChipID)
	w := newTestWaveshare(t, b)
	id, err := w.Identify(context.Background())
	if err != nil {
		t.Fatalf("identify: %v", err)
	}
	if id != ADS1256ChipID {
		t.Fatalf("id %d, want %d", id, ADS1256ChipID)
	}
}

func TestWaveshareReadChannelsSignExtends(t *testing.T) {
	b := newFakeBoard(ADS1256ChipID)
	b.samples[byte(models.AIN0)] = 4194304
	b.samples[byte(models.AIN1)] = -1000
	w := newTestWaveshare(t, b)

	got, err := w.ReadChannels(context.Background(), []models.InputChannel{models.AIN0, models.AIN1})
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != 2 || got[0] != 4194304 || got[1] != -1000 {
		t.Fatalf("samples %v", got)
	}
}

func TestWaveshareWriteAnalog(t *testing.T) {
	b := newFakeBoard(ADS1256ChipID)
	w := newTestWaveshare(t, b)
	ctx := context.Background()

	if err := w.WriteAnalog(ctx, models.DACChannelA, 2.5); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.WriteAnalog(ctx, models.DACChannelB, 9); err != nil {
		t.Fatalf("write: %v", err)
	}
	if got := b.dac[byte(models.DACChannelA)]; got != 32767 {
		t.Fatalf("channel A code %d, want 32767", got)
	}
	if got := b.dac[byte(models.DACChannelB)]; got != dacMaxValue {
		t.Fatalf("channel B code %d, want full scale", got)
	}
}

func TestWaveshareClose(t *testing.T) {
	b := newFakeBoard(ADS1256ChipID)
	w := newTestWaveshare(t, b)
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !b.closed {
		t.Fatalf("port not closed")
	}
	if _, err := w.Identify(context.Background()); err != ErrClosed {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestDecodeSample(t *testing.T) {
	if v := decodeSample([]byte{0x7F, 0xFF, 0xFF}); v != adcFullScale {
		t.Fatalf("max positive %d", v)
	}
	if v := decodeSample([]byte{0xFF, 0xFF, 0xFF}); v != -1 {
		t.Fatalf("minus one %d", v)
	}
	if v := decodeSample([]byte{0x80, 0x00, 0x00}); v != -adcFullScale-1 {
		t.Fatalf("min negative %d", v)
	}
}

// calReadyPin stays low until SELFCAL is sent, then plays script once.
type calReadyPin struct {
	b      *fakeBoard
	script []gpio.Level
	reads  int
}

func (p *calReadyPin) Read() gpio.Level {
	p.b.mu.Lock()
	started := false
	for _, c := range p.b.commands {
		if c == cmdSelfCal {
			started = true
		}
	}
	p.b.mu.Unlock()
	if !started || p.reads >= len(p.script) {
		return gpio.Low
	}
	l := p.script[p.reads]
	p.reads++
	return l
}

func TestWaveshareCalibrateWaitsForCalibrationToFinish(t *testing.T) {
	b := newFakeBoard(ADS1256ChipID)
	// DRDY is still low from the last conversion, rises late, then falls when done.
	pin := &calReadyPin{b: b, script: []gpio.Level{gpio.Low, gpio.Low, gpio.High, gpio.High, gpio.High, gpio.Low}}
	w, err := newWaveshare(b, b, fakeCS{b, "adc"}, fakeCS{b, "dac"}, pin, WithSettleDelay(0))
	if err != nil {
		t.Fatalf("new waveshare: %v", err)
	}

	if err := w.Calibrate(context.Background()); err != nil {
		t.Fatalf("calibrate: %v", err)
	}
	if pin.reads != len(pin.script) {
		t.Fatalf("returned after %d of %d DRDY reads", pin.reads, len(pin.script))
	}
}
