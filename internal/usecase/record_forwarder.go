package usecase

import (
	"context"
	"fmt"
	"time"

	"MicroGrid/internal/domain/models"
	drepo "MicroGrid/internal/domain/repository"
)

// RecordForwarder routes records to the configured telemetry backend.
type RecordForwarder struct {
	pub     drepo.BrokerPublisher
	store   drepo.Storage
	metrics drepo.Metrics
	backend string
}

func NewRecordForwarder(pub drepo.BrokerPublisher, store drepo.Storage, metrics drepo.Metrics, backend string) *RecordForwarder {
	return &RecordForwarder{
		pub:     pub,
		store:   store,
		metrics: metrics,
		backend: backend,
	}
}

// Process forwards a single record.
func (f *RecordForwarder) Process(ctx context.Context, r *models.Record) error {
	if r == nil {
		return fmt.Errorf("record is nil")
	}
	return f.ProcessBatch(ctx, []*models.Record{r})
}

// ProcessBatch forwards records in one backend call.
func (f *RecordForwarder) ProcessBatch(ctx context.Context, rs []*models.Record) error {
	if len(rs) == 0 {
		return nil
	}

	start := time.Now()
	var err error
	switch f.backend {
	case "kafka":
		if f.pub == nil {
			return fmt.Errorf("kafka backend without publisher")
		}
		err = f.pub.PublishBatch(ctx, rs)
	case "clickhouse":
		if f.store == nil {
			return fmt.Errorf("clickhouse backend without storage")
		}
		err = f.store.StoreBatch(ctx, rs)
	default:
		err = fmt.Errorf("unknown backend: %s", f.backend)
	}
	if err != nil {
		f.metrics.RecordError("forward")
		return fmt.Errorf("forward %d records: %w", len(rs), err)
	}

	for range rs {
		f.metrics.RecordSent(f.backend)
	}
	f.metrics.RecordLatency("forward_batch", time.Since(start).Seconds())
	return nil
}

// Close closes the backend resources.
func (f *RecordForwarder) Close() {
	if f.pub != nil {
		_ = f.pub.Close()
	}
	if f.store != nil {
		_ = f.store.Close()
	}
}
