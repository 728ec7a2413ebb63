package middleware

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"MicroGrid/internal/domain/models"
	"MicroGrid/pkg/metrics"
)

type fakeProc struct {
	mu       sync.Mutex
	batches  [][]*models.Record
	failures int
}

func (f *fakeProc) ProcessBatch(_ context.Context, rs []*models.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failures > 0 {
		f.failures--
		return errors.New("broker down")
	}
	f.batches = append(f.batches, append([]*models.Record(nil), rs...))
	return nil
}

func (f *fakeProc) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, b := range f.batches {
		n += len(b)
	}
	return n
}

func TestPipelineFlushesOnClose(t *testing.T) {
	proc := &fakeProc{}
	p := NewTelemetryPipeline(proc, metrics.Nop{}, WithBatch(3, time.Hour))
	p.Start(context.Background())

	for i := 0; i < 7; i++ {
		if err := p.Publish(context.Background(), &models.Record{Iteration: uint64(i), Frequency: 60}); err != nil {
			t.Fatalf("publish %d: %v", i, err)
		}
	}
	_ = p.Close()

	if proc.total() != 7 {
		t.Fatalf("forwarded %d records, want 7", proc.total())
	}
	last := proc.batches[len(proc.batches)-1]
	if last[len(last)-1].Iteration != 6 {
		t.Fatalf("order not preserved: last iteration %d", last[len(last)-1].Iteration)
	}
}

func TestPipelineRetriesFailedBatch(t *testing.T) {
	proc := &fakeProc{failures: 2}
	p := NewTelemetryPipeline(proc, metrics.Nop{},
		WithBatch(1, time.Hour),
		WithRetry(3, time.Millisecond, 2*time.Millisecond),
	)
	p.Start(context.Background())
	_ = p.Publish(context.Background(), &models.Record{Frequency: 60})
	_ = p.Close()

	if proc.total() != 1 {
		t.Fatalf("record should be delivered after retries, got %d", proc.total())
	}
}

func TestPipelineDropsAfterRetries(t *testing.T) {
	proc := &fakeProc{failures: 10}
	p := NewTelemetryPipeline(proc, metrics.Nop{},
		WithBatch(1, time.Hour),
		WithRetry(1, time.Millisecond, time.Millisecond),
	)
	p.Start(context.Background())
	_ = p.Publish(context.Background(), &models.Record{Frequency: 60})
	_ = p.Close()

	if proc.total() != 0 {
		t.Fatalf("batch should have been dropped")
	}
}

func TestPipelinePublishNeverBlocks(t *testing.T) {
	p := NewTelemetryPipeline(&fakeProc{}, metrics.Nop{}, WithBufferSize(2))
	ctx := context.Background()
	_ = p.Publish(ctx, &models.Record{})
	_ = p.Publish(ctx, &models.Record{})
	if err := p.Publish(ctx, &models.Record{}); !errors.Is(err, ErrBufferFull) {
		t.Fatalf("expected ErrBufferFull, got %v", err)
	}
	if p.Pending() != 2 {
		t.Fatalf("pending %d", p.Pending())
	}
}

func TestPipelineRejectsInvalidRecords(t *testing.T) {
	p := NewTelemetryPipeline(&fakeProc{}, metrics.Nop{})
	if err := p.Publish(context.Background(), nil); err == nil {
		t.Fatalf("nil record accepted")
	}
	if err := p.Publish(context.Background(), &models.Record{Frequency: math.NaN()}); err == nil {
		t.Fatalf("NaN frequency accepted")
	}
}
