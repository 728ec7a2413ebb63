package di

import (
	"context"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"MicroGrid/internal/domain/models"
	"MicroGrid/internal/domain/repository"
	"MicroGrid/internal/handler/api"
	mid "MicroGrid/internal/middleware"
	internalrepo "MicroGrid/internal/repository"
	"MicroGrid/internal/service/adda"
	"MicroGrid/internal/service/console"
	"MicroGrid/internal/service/plot"
	"MicroGrid/internal/services/grid"
	"MicroGrid/internal/usecase"
	"MicroGrid/pkg/cache"
	pkgch "MicroGrid/pkg/clickhouse"
	"MicroGrid/pkg/config"
	xhttp "MicroGrid/pkg/http"
	pkgkafka "MicroGrid/pkg/kafka"
	"MicroGrid/pkg/logger"
	"MicroGrid/pkg/metrics"
	"MicroGrid/pkg/server"
)

// ProvideLogger creates the application logger from the log section.
func ProvideLogger(cfg *config.Config) (*logger.Logger, error) {
	return logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideDevice opens the AD/DA board selected in config.
func ProvideDevice(cfg *config.Config, log *logger.Logger) (repository.Device, error) {
	dev, err := adda.Open(cfg, log.With(logger.String("component", "adda")))
	if err != nil {
		return nil, fmt.Errorf("open device: %w", err)
	}
	return dev, nil
}

// ProvideRecordSink opens the four per-run series files.
func ProvideRecordSink(cfg *config.Config) (repository.RecordSink, error) {
	return internalrepo.NewFileSink(cfg.Output.Dir, cfg.Loop.FileTag)
}

// ProvideCache returns Redis when enabled, an in-process cache otherwise.
func ProvideCache(cfg *config.Config) (cache.Service, error) {
	if !cfg.Redis.Enabled {
		return cache.NewMemoryCache(cache.WithMemoryMaxSize(64)), nil
	}
	c, err := cache.NewRedisCache(
		cache.WithRedisHost(cfg.Redis.Host),
		cache.WithRedisPort(cfg.Redis.Port),
		cache.WithRedisPassword(cfg.Redis.Password),
		cache.WithRedisDB(cfg.Redis.DB),
		cache.WithRedisPrefix(cfg.Redis.Prefix),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return c, nil
}

func ProvideSnapshotStore(c cache.Service) repository.SnapshotStore {
	return internalrepo.NewSnapshotStore(c)
}

func ProvideTraceRecorder(cfg *config.Config) *plot.Recorder {
	return plot.NewRecorder(plot.WithHaltBand(cfg.Grid.HaltLow, cfg.Grid.HaltHigh))
}

func ProvideStreamHub(log *logger.Logger) *api.StreamHub {
	return api.NewStreamHub(log.With(logger.String("component", "stream")))
}

// telemetryHost is the -e/-g override of the backend address.
func telemetryHost(cfg *config.Config, defPort int) (string, int, bool) {
	if cfg.Telemetry.Host == "" {
		return "", 0, false
	}
	port := cfg.Telemetry.Port
	if port == 0 {
		port = defPort
	}
	return cfg.Telemetry.Host, port, true
}

// ProvideClickHouseClient connects only when records are stored or ingested.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if cfg.Telemetry.Backend != "clickhouse" && !cfg.Kafka.Consumer.Enabled {
		return nil, nil
	}

	host, port := cfg.ClickHouse.Host, cfg.ClickHouse.Port
	if h, p, ok := telemetryHost(cfg, port); ok && cfg.Telemetry.Backend == "clickhouse" {
		host, port = h, p
	}

	client, err := pkgch.NewClient(
		pkgch.WithHost(host),
		pkgch.WithPort(port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(4, 2),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	// Initialize schema
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := client.InitSchema(ctx, pkgch.RecordsSchema(cfg.ClickHouse.Database, cfg.ClickHouse.Table)); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, nil
}

func kafkaBrokers(cfg *config.Config) []string {
	if h, p, ok := telemetryHost(cfg, 9092); ok && cfg.Telemetry.Backend == "kafka" {
		return []string{net.JoinHostPort(h, strconv.Itoa(p))}
	}
	return cfg.Kafka.Brokers
}

// ProvideKafkaProducer creates a Kafka producer when records go to Kafka.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if cfg.Telemetry.Backend != "kafka" {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(kafkaBrokers(cfg)...),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatching(cfg.Kafka.Producer.BatchSize, cfg.Kafka.Producer.BatchBytes, cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideTelemetryStorage creates the ClickHouse records repository.
func ProvideTelemetryStorage(ch *pkgch.Client, cfg *config.Config) repository.Storage {
	if ch == nil {
		return nil
	}
	return internalrepo.NewClickHouseStorage(ch.DB(), cfg.ClickHouse.Database+"."+cfg.ClickHouse.Table, nil)
}

// ProvideBrokerPublisher creates the Kafka records publisher.
func ProvideBrokerPublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.BrokerPublisher {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaPublisher(producer, cfg.Kafka.Topic)
}

// ProvideRecordForwarder routes records to the configured backend.
func ProvideRecordForwarder(pub repository.BrokerPublisher, store repository.Storage, m repository.Metrics, cfg *config.Config) *usecase.RecordForwarder {
	if cfg.Telemetry.Backend == "none" {
		return nil
	}
	return usecase.NewRecordForwarder(pub, store, m, cfg.Telemetry.Backend)
}

// ProvideTelemetryPipeline buffers records between the loop and the backend.
func ProvideTelemetryPipeline(fwd *usecase.RecordForwarder, m repository.Metrics, cfg *config.Config, log *logger.Logger) *mid.TelemetryPipeline {
	if fwd == nil {
		return nil
	}
	return mid.NewTelemetryPipeline(fwd, m,
		mid.WithBufferSize(cfg.Telemetry.BufferSize),
		mid.WithTimeout(cfg.Telemetry.Timeout),
		mid.WithPipelineLogger(log.With(logger.String("component", "telemetry"))),
	)
}

// ProvideKafkaConsumer creates the records ingest consumer when enabled.
func ProvideKafkaConsumer(cfg *config.Config, log *logger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Consumer.Enabled {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(kafkaBrokers(cfg)...),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
		pkgkafka.WithConsumerLogger(log.With(logger.String("component", "ingest"))),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideKafkaRecordsHandler stores consumed records in ClickHouse.
func ProvideKafkaRecordsHandler(store repository.Storage, m repository.Metrics, cfg *config.Config) *usecase.KafkaRecordsHandler {
	if store == nil {
		return nil
	}
	return usecase.NewKafkaRecordsHandler(cfg.Kafka.Topic, store, m)
}

// ProvideLoopConfig maps the normalized config onto the loop.
func ProvideLoopConfig(cfg *config.Config) usecase.LoopConfig {
	g := cfg.Grid
	return usecase.LoopConfig{
		Frequency: cfg.Loop.Frequency,
		SOC:       cfg.Loop.SOC,
		Updater: grid.Updater{
			Inertia:         float64(cfg.Loop.Inertia),
			Dt:              cfg.Loop.Dt,
			BatteryCapacity: g.MaxBatteryCapacity,
		},
		Oscillator: grid.Oscillator{Step: g.PowerStep, Max: g.PowerMax},
		Limits: grid.Limits{
			MaxBatteryOutput: g.MaxBatteryOutput,
			MaxCurtail:       g.MaxCurtail,
			CurtailEnabled:   g.CurtailEnabled,
			HaltLow:          g.HaltLow,
			HaltHigh:         g.HaltHigh,
		},
		Ramp: grid.InputRamp{
			Enabled: g.InputRamp.Enabled,
			Start:   g.InputRamp.Start,
			Stop:    g.InputRamp.Stop,
			Step:    g.InputRamp.Step,
			Offset:  g.InputRamp.Initial,
		},
		Delay:         cfg.Loop.Delay,
		MaxIterations: cfg.Loop.MaxIterations,
		ExpectedID:    cfg.Device.ExpectedID,
		Channels:      []models.InputChannel{models.AIN0, models.AIN1},
		RunTag:        cfg.Loop.FileTag,
		Backend:       cfg.Telemetry.Backend,
	}
}

// ProvideControlLoop assembles the loop with its renderer and publishers.
func ProvideControlLoop(
	dev repository.Device,
	sink repository.RecordSink,
	lc usecase.LoopConfig,
	cfg *config.Config,
	log *logger.Logger,
	m repository.Metrics,
	snaps repository.SnapshotStore,
	trace *plot.Recorder,
	hub *api.StreamHub,
	pipe *mid.TelemetryPipeline,
) *usecase.ControlLoop {
	pubs := []repository.Publisher{trace, hub}
	if pipe != nil {
		pubs = append(pubs, pipe)
	}
	opts := []usecase.LoopOption{
		usecase.WithPublishers(pubs...),
		usecase.WithSnapshots(snaps),
		usecase.WithLoopMetrics(m),
		usecase.WithLoopLogger(log.With(logger.String("component", "loop"), logger.String("run_tag", lc.RunTag))),
	}
	if cfg.Loop.Console {
		opts = append(opts, usecase.WithRenderer(console.NewRenderer(os.Stdout,
			console.WithHaltBand(cfg.Grid.HaltLow, cfg.Grid.HaltHigh))))
	}
	return usecase.NewControlLoop(dev, sink, lc, opts...)
}

// ProvideHTTPHandler groups the status API and the record stream.
func ProvideHTTPHandler(
	log *logger.Logger,
	snaps repository.SnapshotStore,
	trace *plot.Recorder,
	hub *api.StreamHub,
	store repository.Storage,
	cfg *config.Config,
) xhttp.Handler {
	h := api.NewGridEchoHandler(log.With(logger.String("component", "api")), snaps, trace)
	if store != nil {
		h.SetStorage(store, cfg.Loop.FileTag)
	}
	return xhttp.Handlers{h, hub}
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	log *logger.Logger,
	loop *usecase.ControlLoop,
	dev repository.Device,
	sink repository.RecordSink,
	c cache.Service,
	trace *plot.Recorder,
	hub *api.StreamHub,
	handler xhttp.Handler,
	pipe *mid.TelemetryPipeline,
	fwd *usecase.RecordForwarder,
	consumer *pkgkafka.Consumer,
	kh *usecase.KafkaRecordsHandler,
	ch *pkgch.Client,
	producer *pkgkafka.Producer,
) *server.App {
	// Fold repeated error logs into one message per site on the log topic.
	if producer != nil {
		log.AddCollector(&logger.CollectionConfig{
			TimeInterval: 30 * time.Second,
			Topic:        cfg.Telemetry.LogTopic,
			Publisher:    producer,
		})
	}

	opts := []server.Option{
		server.WithInfra(ch, producer, c),
		server.WithTrace(trace),
		server.WithCloser(hub.Close),
	}
	if pipe != nil {
		opts = append(opts, server.WithTelemetry(pipe, fwd))
	}
	if consumer != nil && kh != nil {
		opts = append(opts, server.WithConsumer(consumer, kh))
	}
	app := server.New(cfg, log, loop, dev, sink, opts...)
	app.SetHTTPHandler(handler)
	return app
}
