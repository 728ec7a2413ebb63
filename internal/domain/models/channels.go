package models

import "strconv"

// InputChannel is an ADS1256 multiplexer code: a positive and a negative
// input pin selection OR-ed into one byte.
type InputChannel uint8

// ADS1256 MUX bit fields.
const (
	PosAIN0 InputChannel = 0x00
	PosAIN1 InputChannel = 0x10
	PosAIN2 InputChannel = 0x20
	PosAIN3 InputChannel = 0x30
	PosAIN4 InputChannel = 0x40
	PosAIN5 InputChannel = 0x50
	PosAIN6 InputChannel = 0x60
	PosAIN7 InputChannel = 0x70

	NegAIN0   InputChannel = 0x00
	NegAIN1   InputChannel = 0x01
	NegAIN2   InputChannel = 0x02
	NegAIN3   InputChannel = 0x03
	NegAIN4   InputChannel = 0x04
	NegAIN5   InputChannel = 0x05
	NegAIN6   InputChannel = 0x06
	NegAIN7   InputChannel = 0x07
	NegAINCOM InputChannel = 0x08
)

// Differential pairs a positive and negative pin into a channel code.
func Differential(pos, neg InputChannel) InputChannel {
	return (pos & 0xF0) | (neg & 0x0F)
}

// Positive returns the positive pin index (0-7).
func (c InputChannel) Positive() int { return int(c >> 4) }

// Negative returns the negative pin index; 8 means AINCOM.
func (c InputChannel) Negative() int { return int(c & 0x0F) }

// String names the pair, e.g. "AIN1-AINCOM".
func (c InputChannel) String() string {
	neg := "AINCOM"
	if n := c.Negative(); n < 8 {
		neg = "AIN" + strconv.Itoa(n)
	}
	return "AIN" + strconv.Itoa(c.Positive()) + "-" + neg
}

// Default input sequence: AIN0 and AIN1 single-ended against AINCOM.
var (
	AIN0 = Differential(PosAIN0, NegAINCOM)
	AIN1 = Differential(PosAIN1, NegAINCOM)
)

// OutputChannel selects a DAC8532 output.
type OutputChannel uint8

const (
	DACChannelA OutputChannel = 0x30 // frequency
	DACChannelB OutputChannel = 0x34 // state of charge
)

func (c OutputChannel) String() string {
	switch c {
	case DACChannelA:
		return "A"
	case DACChannelB:
		return "B"
	default:
		return "?"
	}
}
