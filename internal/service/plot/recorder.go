// Package plot keeps a bounded trace of recent records and renders it as a
// PNG chart of frequency and state of charge over iterations.
package plot

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"sync"

	gplot "gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"MicroGrid/internal/domain/models"
)

const defaultCapacity = 3600

var ErrEmptyTrace = errors.New("trace has no records")

// Recorder is a ring buffer of records. It is safe for concurrent use.
type Recorder struct {
	mu    sync.RWMutex
	buf   []models.Record
	next  int
	full  bool
	band  [2]float64
	width vg.Length
	dpi   int
}

type Option func(*Recorder)

func WithCapacity(n int) Option {
	return func(r *Recorder) {
		if n > 0 {
			r.buf = make([]models.Record, n)
		}
	}
}

// WithHaltBand draws the halt limits on the frequency chart.
func WithHaltBand(low, high float64) Option {
	return func(r *Recorder) { r.band = [2]float64{low, high} }
}

func WithSize(width vg.Length, dpi int) Option {
	return func(r *Recorder) {
		r.width = width
		r.dpi = dpi
	}
}

func NewRecorder(opts ...Option) *Recorder {
	r := &Recorder{
		buf:   make([]models.Record, defaultCapacity),
		band:  [2]float64{58, 62},
		width: 8 * vg.Inch,
		dpi:   150,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Publish appends a copy of rec, evicting the oldest when full.
func (r *Recorder) Publish(_ context.Context, rec *models.Record) error {
	if rec == nil {
		return nil
	}
	r.mu.Lock()
	r.buf[r.next] = *rec
	r.next = (r.next + 1) % len(r.buf)
	if r.next == 0 {
		r.full = true
	}
	r.mu.Unlock()
	return nil
}

func (r *Recorder) Close() error { return nil }

func (r *Recorder) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.full {
		return len(r.buf)
	}
	return r.next
}

// Recent returns up to limit of the newest records, oldest first.
// A non-positive limit returns everything held.
func (r *Recorder) Recent(limit int) []models.Record {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := r.next
	if r.full {
		n = len(r.buf)
	}
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]models.Record, limit)
	start := r.next - limit
	for i := 0; i < limit; i++ {
		out[i] = r.buf[(start+i+len(r.buf))%len(r.buf)]
	}
	return out
}

// Save renders the whole trace to a PNG file.
func (r *Recorder) Save(path string) error {
	recs := r.Recent(0)
	if len(recs) == 0 {
		return ErrEmptyTrace
	}

	freq, err := r.frequencyPlot(recs)
	if err != nil {
		return err
	}
	soc, err := socPlot(recs)
	if err != nil {
		return err
	}

	c := vgimg.NewWith(vgimg.UseWH(r.width, r.width*3/4), vgimg.UseDPI(r.dpi))
	dc := draw.New(c)
	tiles := draw.Tiles{Rows: 2, Cols: 1, PadY: vg.Points(8), PadTop: vg.Points(4), PadBottom: vg.Points(4)}
	canvases := gplot.Align([][]*gplot.Plot{{freq}, {soc}}, tiles, dc)
	freq.Draw(canvases[0][0])
	soc.Draw(canvases[1][0])

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create plot dir: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create plot: %w", err)
	}
	bw := bufio.NewWriter(f)
	if _, err := (vgimg.PngCanvas{Canvas: c}).WriteTo(bw); err != nil {
		f.Close()
		return fmt.Errorf("encode plot: %w", err)
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("write plot: %w", err)
	}
	return f.Close()
}

func (r *Recorder) frequencyPlot(recs []models.Record) (*gplot.Plot, error) {
	p := gplot.New()
	p.Title.Text = "Grid frequency"
	p.X.Label.Text = "iteration"
	p.Y.Label.Text = "Hz"
	p.Add(plotter.NewGrid())

	line, err := plotter.NewLine(series(recs, func(rec models.Record) float64 { return rec.Frequency }))
	if err != nil {
		return nil, fmt.Errorf("frequency line: %w", err)
	}
	line.LineStyle.Width = vg.Points(1.5)
	line.LineStyle.Color = color.RGBA{R: 30, G: 90, B: 200, A: 255}
	p.Add(line)

	first, last := float64(recs[0].Iteration), float64(recs[len(recs)-1].Iteration)
	for _, y := range r.band {
		limit, err := plotter.NewLine(plotter.XYs{{X: first, Y: y}, {X: last, Y: y}})
		if err != nil {
			return nil, fmt.Errorf("halt line: %w", err)
		}
		limit.LineStyle.Color = color.RGBA{R: 200, A: 255}
		limit.LineStyle.Dashes = []vg.Length{vg.Points(4), vg.Points(3)}
		p.Add(limit)
	}
	p.Y.Min = min(p.Y.Min, r.band[0]-0.5)
	p.Y.Max = max(p.Y.Max, r.band[1]+0.5)
	return p, nil
}

func socPlot(recs []models.Record) (*gplot.Plot, error) {
	p := gplot.New()
	p.Title.Text = "State of charge"
	p.X.Label.Text = "iteration"
	p.Y.Label.Text = "%"
	p.Add(plotter.NewGrid())

	line, err := plotter.NewLine(series(recs, func(rec models.Record) float64 { return rec.StateOfCharge }))
	if err != nil {
		return nil, fmt.Errorf("soc line: %w", err)
	}
	line.LineStyle.Width = vg.Points(1.5)
	line.LineStyle.Color = color.RGBA{G: 140, B: 60, A: 255}
	p.Add(line)
	p.Y.Min = 0
	p.Y.Max = 100
	return p, nil
}

func series(recs []models.Record, y func(models.Record) float64) plotter.XYs {
	pts := make(plotter.XYs, len(recs))
	for i, rec := range recs {
		pts[i].X = float64(rec.Iteration)
		pts[i].Y = y(rec)
	}
	return pts
}
