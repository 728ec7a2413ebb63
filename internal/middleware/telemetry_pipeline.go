package middleware

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"MicroGrid/internal/domain/models"
	domrepo "MicroGrid/internal/domain/repository"
	"MicroGrid/pkg/logger"
)

// ErrBufferFull is returned by Publish when the pipeline cannot accept more
// records; the record is dropped.
var ErrBufferFull = errors.New("telemetry pipeline buffer full")

// BatchProc is the downstream the pipeline forwards to.
type BatchProc interface {
	ProcessBatch(ctx context.Context, rs []*models.Record) error
}

// TelemetryPipeline sits between the control loop and the telemetry
// backend. Publish never blocks; a background worker batches records and
// retries the backend with backoff.
type TelemetryPipeline struct {
	proc       BatchProc
	metrics    domrepo.Metrics
	log        *logger.Logger
	bufSize    int
	batchSize  int
	flushEvery time.Duration
	timeout    time.Duration
	maxRetries int
	backoffMin time.Duration
	backoffMax time.Duration

	bufCh    chan *models.Record
	stopCh   chan struct{}
	doneCh   chan struct{}
	mu       sync.Mutex
	started  bool
	stopOnce sync.Once
}

type PipelineOption func(*TelemetryPipeline)

// WithBufferSize sets how many records may wait for the backend.
func WithBufferSize(n int) PipelineOption {
	return func(p *TelemetryPipeline) {
		if n > 0 {
			p.bufSize = n
		}
	}
}

// WithBatch sets the batch size and the longest a partial batch waits.
func WithBatch(size int, every time.Duration) PipelineOption {
	return func(p *TelemetryPipeline) {
		if size > 0 {
			p.batchSize = size
		}
		if every > 0 {
			p.flushEvery = every
		}
	}
}

// WithTimeout bounds every backend call.
func WithTimeout(d time.Duration) PipelineOption {
	return func(p *TelemetryPipeline) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithRetry sets retry attempts and the backoff range for a failed batch.
func WithRetry(max int, min, maxBackoff time.Duration) PipelineOption {
	return func(p *TelemetryPipeline) {
		p.maxRetries = max
		if min > 0 {
			p.backoffMin = min
		}
		if maxBackoff >= p.backoffMin {
			p.backoffMax = maxBackoff
		}
	}
}

func WithPipelineLogger(l *logger.Logger) PipelineOption {
	return func(p *TelemetryPipeline) {
		if l != nil {
			p.log = l
		}
	}
}

func NewTelemetryPipeline(proc BatchProc, metrics domrepo.Metrics, opts ...PipelineOption) *TelemetryPipeline {
	p := &TelemetryPipeline{
		proc:       proc,
		metrics:    metrics,
		log:        logger.Nop(),
		bufSize:    1000,
		batchSize:  50,
		flushEvery: 500 * time.Millisecond,
		timeout:    2 * time.Second,
		maxRetries: 3,
		backoffMin: 50 * time.Millisecond,
		backoffMax: 2 * time.Second,
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.bufCh = make(chan *models.Record, p.bufSize)
	return p
}

// Start launches the background worker. ctx bounds backend calls.
func (p *TelemetryPipeline) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	p.started = true
	go p.run(ctx)
}

// Publish validates and enqueues a record without blocking.
func (p *TelemetryPipeline) Publish(_ context.Context, r *models.Record) error {
	if err := validateRecord(r); err != nil {
		p.metrics.RecordError("pipeline_validate")
		return err
	}
	select {
	case <-p.stopCh:
		return errors.New("telemetry pipeline stopped")
	default:
	}
	select {
	case p.bufCh <- r:
		return nil
	default:
		p.metrics.RecordError("pipeline_buffer_full")
		return ErrBufferFull
	}
}

// Close stops accepting records, flushes what is buffered and waits for
// the worker.
func (p *TelemetryPipeline) Close() error {
	p.stopOnce.Do(func() { close(p.stopCh) })
	p.mu.Lock()
	started := p.started
	p.mu.Unlock()
	if started {
		<-p.doneCh
	}
	return nil
}

// Pending reports how many records wait in the buffer.
func (p *TelemetryPipeline) Pending() int { return len(p.bufCh) }

func (p *TelemetryPipeline) run(ctx context.Context) {
	defer close(p.doneCh)

	ticker := time.NewTicker(p.flushEvery)
	defer ticker.Stop()

	batch := make([]*models.Record, 0, p.batchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		p.forward(ctx, batch)
		batch = make([]*models.Record, 0, p.batchSize)
	}

	for {
		select {
		case r := <-p.bufCh:
			batch = append(batch, r)
			if len(batch) >= p.batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-p.stopCh:
			for {
				select {
				case r := <-p.bufCh:
					batch = append(batch, r)
					if len(batch) >= p.batchSize {
						flush()
					}
				default:
					flush()
					return
				}
			}
		case <-ctx.Done():
			return
		}
	}
}

// forward sends one batch, retrying with exponential backoff. A batch that
// still fails is dropped and counted.
func (p *TelemetryPipeline) forward(ctx context.Context, batch []*models.Record) {
	start := time.Now()
	backoff := p.backoffMin
	for attempt := 0; ; attempt++ {
		cctx, cancel := context.WithTimeout(ctx, p.timeout)
		err := p.proc.ProcessBatch(cctx, batch)
		cancel()
		if err == nil {
			p.metrics.RecordLatency("pipeline_forward", time.Since(start).Seconds())
			return
		}

		p.metrics.RecordError("pipeline_forward")
		if attempt >= p.maxRetries || ctx.Err() != nil {
			p.metrics.RecordError("pipeline_drop")
			p.log.Error("telemetry batch dropped",
				logger.Int("records", len(batch)),
				logger.Int("attempts", attempt+1),
				logger.Error(err),
			)
			return
		}

		t := time.NewTimer(backoff)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
		}
		if backoff *= 2; backoff > p.backoffMax {
			backoff = p.backoffMax
		}
	}
}

func validateRecord(r *models.Record) error {
	if r == nil {
		return fmt.Errorf("record nil")
	}
	for name, v := range map[string]float64{"frequency": r.Frequency, "state_of_charge": r.StateOfCharge} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%s is not finite", name)
		}
	}
	return nil
}

var _ domrepo.Publisher = (*TelemetryPipeline)(nil)
