package usecase

import (
	"context"
	"encoding/json"
	"time"

	"MicroGrid/internal/domain/models"
	domrepo "MicroGrid/internal/domain/repository"
	pkgkafka "MicroGrid/pkg/kafka"
)

// KafkaRecordsHandler consumes published records and writes them to storage.
// It runs in the ingest deployment, apart from the control loop.
type KafkaRecordsHandler struct {
	topic   string
	storage domrepo.Storage
	metrics domrepo.Metrics
}

func NewKafkaRecordsHandler(topic string, storage domrepo.Storage, metrics domrepo.Metrics) *KafkaRecordsHandler {
	return &KafkaRecordsHandler{topic: topic, storage: storage, metrics: metrics}
}

func (h *KafkaRecordsHandler) Topic() string { return h.topic }

func (h *KafkaRecordsHandler) Handle(ctx context.Context, b []byte) error {
	var r models.Record
	if err := json.Unmarshal(b, &r); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return err
	}
	// Untagged records cannot be queried by run and are skipped.
	if r.RunTag == "" {
		h.metrics.RecordError("consumer_untagged")
		return nil
	}
	if !r.Time.IsZero() {
		h.metrics.RecordLatency("ingest_e2e_seconds", time.Since(r.Time).Seconds())
	}

	start := time.Now()
	err := h.storage.Store(ctx, &r)
	h.metrics.RecordLatency("ch_insert_seconds", time.Since(start).Seconds())
	if err != nil {
		h.metrics.RecordError("consumer_store")
		return err
	}
	h.metrics.RecordSent("clickhouse")
	return nil
}

var _ pkgkafka.MessageHandler = (*KafkaRecordsHandler)(nil)
