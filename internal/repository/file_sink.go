package repository

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/multierr"

	"MicroGrid/internal/domain/models"
	"MicroGrid/internal/domain/repository"
)

// FileSink appends one line per iteration to four files in dir:
// freq_<tag>.txt, soc_<tag>.txt, freqraw_<tag>.txt and loop_time_<tag>.txt.
type FileSink struct {
	mu     sync.Mutex
	files  [4]*os.File
	closed bool
}

var sinkSeries = [4]string{"freq", "soc", "freqraw", "loop_time"}

// NewFileSink creates dir if needed and opens the files in append mode.
func NewFileSink(dir, tag string) (*FileSink, error) {
	if tag == "" {
		return nil, fmt.Errorf("file tag is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	s := &FileSink{}
	for i, name := range sinkSeries {
		f, err := os.OpenFile(SeriesPath(dir, name, tag), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, multierr.Combine(fmt.Errorf("open %s: %w", name, err), s.Close())
		}
		s.files[i] = f
	}
	return s, nil
}

// SeriesPath is the file holding one series of a run.
func SeriesPath(dir, series, tag string) string {
	return filepath.Join(dir, series+"_"+tag+".txt")
}

// Append writes the record to every file. A failing file does not stop the
// others; all failures are returned together.
func (s *FileSink) Append(_ context.Context, r *models.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("file sink closed")
	}

	lines := [4]string{
		formatFloat(roundTo(r.Frequency, 2)),
		formatFloat(roundTo(r.StateOfCharge, 2)),
		formatFloat(r.Frequency),
		formatFloat(roundTo(r.LoopDuration.Seconds(), 4)),
	}
	var err error
	for i, f := range s.files {
		if _, werr := f.WriteString(lines[i] + "\n"); werr != nil {
			err = multierr.Append(err, fmt.Errorf("append %s: %w", sinkSeries[i], werr))
		}
	}
	return err
}

// Close syncs and closes every open file.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	var err error
	for _, f := range s.files {
		if f == nil {
			continue
		}
		err = multierr.Append(err, f.Sync())
		err = multierr.Append(err, f.Close())
	}
	return err
}

func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

// formatFloat prints the shortest representation, always with a decimal
// point, so 60 is written as 60.0.
func formatFloat(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsAny(s, ".NI") {
		s += ".0"
	}
	return s
}

var _ repository.RecordSink = (*FileSink)(nil)
