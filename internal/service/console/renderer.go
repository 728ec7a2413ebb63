// Package console draws the per-iteration frame on a terminal, overwriting
// the previous frame in place.
package console

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/fatih/color"

	"MicroGrid/internal/domain/models"
)

// Terminal control sequences.
const (
	saveCursor    = "\x1b7"
	restoreCursor = "\x1b8"
	clearBelow    = "\x1b[J"
	clearScreen   = "\x1b[2J\x1b[H"
)

// Renderer writes one fixed-layout frame per record. The frame starts by
// saving the cursor and ends by clearing below and restoring it.
type Renderer struct {
	mu      sync.Mutex
	out     io.Writer
	section *color.Color
	value   *color.Color
	alert   *color.Color
	halt    [2]float64
}

type Option func(*Renderer)

// WithoutColor renders plain text.
func WithoutColor() Option {
	return func(r *Renderer) {
		r.section.DisableColor()
		r.value.DisableColor()
		r.alert.DisableColor()
	}
}

// WithHaltBand highlights frequencies outside [low, high].
func WithHaltBand(low, high float64) Option {
	return func(r *Renderer) { r.halt = [2]float64{low, high} }
}

func NewRenderer(out io.Writer, opts ...Option) *Renderer {
	r := &Renderer{
		out:     out,
		section: color.New(color.FgCyan, color.Bold),
		value:   color.New(color.FgWhite),
		alert:   color.New(color.FgRed, color.Bold),
		halt:    [2]float64{58, 62},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Renderer) Render(rec *models.Record) error {
	var b strings.Builder
	b.WriteString(saveCursor)

	b.WriteString(r.section.Sprint("Pi ---> AB") + "\n")
	fmt.Fprintf(&b, "\tv_freq:\t%s; v_soc:\t%s;\n", r.num(rec.FrequencyVolts), r.num(rec.SOCVolts))

	b.WriteString(r.section.Sprint("AB ---> Pi") + "\n")
	fmt.Fprintf(&b, "\tvU:\t%s; vC:\t%s;\n", r.num(rec.UVolts), r.num(rec.CVolts))

	b.WriteString(r.section.Sprint("Computed on Pi") + "\n")
	fmt.Fprintf(&b, "\tctrl:\t%s; curtail:\t%s; \n", r.num(rec.Control), r.num(rec.Curtail))
	fmt.Fprintf(&b, "\tsoc:\t%s; \n", r.num(rec.StateOfCharge))
	fmt.Fprintf(&b, "\tnet:\t%s \n", r.num(rec.NetChange))
	freq := r.num(rec.Frequency)
	if rec.Frequency < r.halt[0] || rec.Frequency > r.halt[1] {
		freq = r.alert.Sprintf("% 8.5f", rec.Frequency)
	}
	fmt.Fprintf(&b, "\tfreq:\t%s;\n", freq)
	fmt.Fprintf(&b, "\tpwr_bal:\t%s;\n", r.num(rec.PowerBalance))
	fmt.Fprintf(&b, "loop time:\t%s\n\n", r.num(rec.LoopDuration.Seconds()))

	b.WriteString("\n" + clearBelow + restoreCursor)

	r.mu.Lock()
	defer r.mu.Unlock()
	_, err := io.WriteString(r.out, b.String())
	return err
}

func (r *Renderer) num(v float64) string {
	return r.value.Sprintf("% 8.5f", v)
}

// Banner clears the screen and prints the exit hint.
func Banner(w io.Writer) {
	fmt.Fprint(w, clearScreen+"\n")
	fmt.Fprintln(w, "\nPress CTRL-C to exit.")
}

// UserExit moves below the last frame and reports an interrupt.
func UserExit(w io.Writer) {
	fmt.Fprint(w, strings.Repeat("\n", 8)+"User exit.\n")
}
