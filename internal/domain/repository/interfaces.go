package repository

import (
	"context"
	"time"

	"MicroGrid/internal/domain/models"
)

// Device is the AD/DA hardware the loop drives. Implementations own the
// settling delays their silicon needs after writes and reads.
type Device interface {
	Identify(ctx context.Context) (int, error)
	Calibrate(ctx context.Context) error
	WriteAnalog(ctx context.Context, ch models.OutputChannel, volts float64) error
	ReadChannels(ctx context.Context, chs []models.InputChannel) ([]int32, error)
	VoltsPerDigit() float64
	VoltageMagnitude() float64
	Close() error
}

// RecordSink is the append-only per-iteration persistence.
type RecordSink interface {
	Append(ctx context.Context, r *models.Record) error
	Close() error
}

// Renderer draws the current iteration for a human.
type Renderer interface {
	Render(r *models.Record) error
}

// Publisher receives a copy of every record after it has been persisted.
type Publisher interface {
	Publish(ctx context.Context, r *models.Record) error
	Close() error
}

// BrokerPublisher ships records to a message broker.
type BrokerPublisher interface {
	Publisher
	PublishBatch(ctx context.Context, rs []*models.Record) error
}

// Storage is the queryable telemetry store.
type Storage interface {
	Init(ctx context.Context) error
	Store(ctx context.Context, r *models.Record) error
	StoreBatch(ctx context.Context, rs []*models.Record) error
	Query(ctx context.Context, runTag string, from, to time.Time, limit int) ([]*models.Record, error)
	Health(ctx context.Context) error
	Close() error
}

// SnapshotStore keeps the latest loop status for out-of-loop readers.
type SnapshotStore interface {
	Save(ctx context.Context, s *models.Snapshot) error
	Latest(ctx context.Context) (*models.Snapshot, error)
}

type Metrics interface {
	RecordIteration(seconds float64)
	RecordSent(backend string)
	RecordState(freq, soc, powerBalance float64)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
	RecordHalt(reason string)
}

// RecordHistory serves the most recent records, oldest first.
type RecordHistory interface {
	Recent(limit int) []models.Record
}
