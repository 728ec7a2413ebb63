//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"MicroGrid/pkg/config"
	"MicroGrid/pkg/logger"
	"MicroGrid/pkg/server"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config, log *logger.Logger) (*server.App, error) {
	wire.Build(
		// Metrics
		ProvideMetrics,

		// Hardware and local persistence
		ProvideDevice,
		ProvideRecordSink,

		// Infrastructure clients
		ProvideCache,
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,

		// Repositories
		ProvideSnapshotStore,
		ProvideTelemetryStorage,
		ProvideBrokerPublisher,

		// Publishers
		ProvideTraceRecorder,
		ProvideStreamHub,

		// Use cases
		ProvideRecordForwarder,
		ProvideTelemetryPipeline,
		ProvideKafkaRecordsHandler,
		ProvideLoopConfig,
		ProvideControlLoop,

		// HTTP
		ProvideHTTPHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
