package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"MicroGrid/internal/domain/models"
	"MicroGrid/internal/domain/repository"
	pkgkafka "MicroGrid/pkg/kafka"
)

const recordColumns = "ts, run_tag, iteration, frequency, state_of_charge, loop_seconds, frequency_voltage, state_of_charge_voltage, u_voltage, c_voltage, control, curtail, power_balance, net_change"

// ClickHouseStorage implements Storage for ClickHouse.
type ClickHouseStorage struct {
	db     *sql.DB
	table  string
	schema []string
}

// NewClickHouseStorage creates ClickHouse storage. schema is run by Init.
func NewClickHouseStorage(db *sql.DB, table string, schema []string) *ClickHouseStorage {
	return &ClickHouseStorage{db: db, table: table, schema: schema}
}

func (s *ClickHouseStorage) Init(ctx context.Context) error {
	for _, stmt := range s.schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

func (s *ClickHouseStorage) Store(ctx context.Context, r *models.Record) error {
	return s.StoreBatch(ctx, []*models.Record{r})
}

func (s *ClickHouseStorage) StoreBatch(ctx context.Context, rs []*models.Record) error {
	const chunkSize = 2000
	for start := 0; start < len(rs); start += chunkSize {
		end := start + chunkSize
		if end > len(rs) {
			end = len(rs)
		}

		values := make([]string, 0, end-start)
		args := make([]interface{}, 0, (end-start)*14)
		for _, r := range rs[start:end] {
			if r == nil {
				continue
			}
			values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")
			args = append(args, recordArgs(r)...)
		}
		if len(values) == 0 {
			continue
		}
		q := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s", s.table, recordColumns, strings.Join(values, ","))
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			return err
		}
	}
	return nil
}

func recordArgs(r *models.Record) []interface{} {
	return []interface{}{
		r.Time,
		r.RunTag,
		r.Iteration,
		r.Frequency,
		r.StateOfCharge,
		r.LoopDuration.Seconds(),
		r.FrequencyVolts,
		r.SOCVolts,
		r.UVolts,
		r.CVolts,
		r.Control,
		r.Curtail,
		r.PowerBalance,
		r.NetChange,
	}
}

// Query returns the newest records of one run inside [from, to].
func (s *ClickHouseStorage) Query(ctx context.Context, runTag string, from, to time.Time, limit int) ([]*models.Record, error) {
	q := fmt.Sprintf("SELECT %s FROM %s WHERE run_tag = ? AND ts >= ? AND ts <= ? ORDER BY iteration DESC LIMIT ?", recordColumns, s.table)
	rows, err := s.db.QueryContext(ctx, q, runTag, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Record
	for rows.Next() {
		var r models.Record
		var loop float64
		if err := rows.Scan(&r.Time, &r.RunTag, &r.Iteration, &r.Frequency, &r.StateOfCharge, &loop,
			&r.FrequencyVolts, &r.SOCVolts, &r.UVolts, &r.CVolts, &r.Control, &r.Curtail, &r.PowerBalance, &r.NetChange); err != nil {
			return nil, err
		}
		r.LoopDuration = time.Duration(loop * float64(time.Second))
		out = append(out, &r)
	}
	return out, rows.Err()
}

func (s *ClickHouseStorage) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *ClickHouseStorage) Close() error {
	return nil // pool owned by pkg/clickhouse
}

// KafkaPublisher implements BrokerPublisher for Kafka. Records are keyed by
// run tag so one run stays ordered on one partition.
type KafkaPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

func NewKafkaPublisher(producer *pkgkafka.Producer, topic string) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topic: topic}
}

func (p *KafkaPublisher) Publish(ctx context.Context, r *models.Record) error {
	return p.producer.Publish(ctx, p.topic, []byte(r.RunTag), r)
}

func (p *KafkaPublisher) PublishBatch(ctx context.Context, rs []*models.Record) error {
	if len(rs) == 0 {
		return nil
	}
	msgs := make([]pkgkafka.Message, len(rs))
	for i, r := range rs {
		msgs[i] = pkgkafka.Message{Key: []byte(r.RunTag), Value: r}
	}
	return p.producer.PublishBatch(ctx, p.topic, msgs)
}

func (p *KafkaPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

var (
	_ repository.Storage         = (*ClickHouseStorage)(nil)
	_ repository.BrokerPublisher = (*KafkaPublisher)(nil)
)
