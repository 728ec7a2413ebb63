package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"MicroGrid/internal/domain/models"
	"MicroGrid/pkg/metrics"
)

type memStorage struct {
	stored []*models.Record
	fail   error
}

func (m *memStorage) Init(context.Context) error { return nil }

func (m *memStorage) Store(ctx context.Context, r *models.Record) error {
	return m.StoreBatch(ctx, []*models.Record{r})
}

func (m *memStorage) StoreBatch(_ context.Context, rs []*models.Record) error {
	if m.fail != nil {
		return m.fail
	}
	m.stored = append(m.stored, rs...)
	return nil
}

func (m *memStorage) Query(context.Context, string, time.Time, time.Time, int) ([]*models.Record, error) {
	return m.stored, nil
}

func (m *memStorage) Health(context.Context) error { return nil }
func (m *memStorage) Close() error                 { return nil }

type memBroker struct {
	capturePub
	batches int
}

func (b *memBroker) PublishBatch(ctx context.Context, rs []*models.Record) error {
	b.batches++
	for _, r := range rs {
		_ = b.Publish(ctx, r)
	}
	return nil
}

func TestRecordForwarderRoutesByBackend(t *testing.T) {
	recs := []*models.Record{{Iteration: 1}, {Iteration: 2}}

	broker := &memBroker{}
	f := NewRecordForwarder(broker, nil, metrics.Nop{}, "kafka")
	if err := f.ProcessBatch(context.Background(), recs); err != nil {
		t.Fatalf("kafka: %v", err)
	}
	if broker.batches != 1 || len(broker.recs) != 2 {
		t.Fatalf("kafka got %d batches, %d records", broker.batches, len(broker.recs))
	}

	store := &memStorage{}
	f = NewRecordForwarder(nil, store, metrics.Nop{}, "clickhouse")
	if err := f.Process(context.Background(), recs[0]); err != nil {
		t.Fatalf("clickhouse: %v", err)
	}
	if len(store.stored) != 1 {
		t.Fatalf("stored %d", len(store.stored))
	}

	f = NewRecordForwarder(nil, nil, metrics.Nop{}, "elasticsearch")
	if err := f.ProcessBatch(context.Background(), recs); err == nil {
		t.Fatalf("unknown backend accepted")
	}
}

func TestRecordForwarderWrapsErrors(t *testing.T) {
	boom := errors.New("boom")
	f := NewRecordForwarder(nil, &memStorage{fail: boom}, metrics.Nop{}, "clickhouse")
	if err := f.Process(context.Background(), &models.Record{}); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}

func TestKafkaRecordsHandlerStoresDecodedRecord(t *testing.T) {
	store := &memStorage{}
	h := NewKafkaRecordsHandler("microgrid.records", store, metrics.Nop{})
	if h.Topic() != "microgrid.records" {
		t.Fatalf("topic %q", h.Topic())
	}

	in := models.Record{RunTag: "bench", Iteration: 4, Frequency: 60.3, Time: time.Now()}
	b, _ := json.Marshal(in)
	if err := h.Handle(context.Background(), b); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(store.stored) != 1 || store.stored[0].Iteration != 4 || store.stored[0].RunTag != "bench" {
		t.Fatalf("unexpected stored %+v", store.stored)
	}
	if err := h.Handle(context.Background(), []byte("{")); err == nil {
		t.Fatalf("expected unmarshal error")
	}
	if err := h.Handle(context.Background(), []byte(`{"iteration":5}`)); err != nil {
		t.Fatalf("untagged record: %v", err)
	}
	if len(store.stored) != 1 {
		t.Fatalf("untagged record was stored")
	}
}
