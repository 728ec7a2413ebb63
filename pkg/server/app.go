package server

import (
	"context"
	"errors"
	"time"

	"go.uber.org/multierr"

	"MicroGrid/internal/domain/repository"
	"MicroGrid/internal/middleware"
	"MicroGrid/internal/service/plot"
	"MicroGrid/internal/usecase"
	"MicroGrid/pkg/cache"
	pkgch "MicroGrid/pkg/clickhouse"
	"MicroGrid/pkg/config"
	xhttp "MicroGrid/pkg/http"
	pkgkafka "MicroGrid/pkg/kafka"
	applogger "MicroGrid/pkg/logger"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg         *config.Config
	log         *applogger.Logger
	loop        *usecase.ControlLoop
	device      repository.Device
	sink        repository.RecordSink
	cache       cache.Service
	trace       *plot.Recorder
	pipeline    *middleware.TelemetryPipeline
	forwarder   *usecase.RecordForwarder
	consumer    *pkgkafka.Consumer
	kh          pkgkafka.MessageHandler
	chClient    *pkgch.Client
	producer    *pkgkafka.Producer
	httpHandler xhttp.Handler
	httpServer  *xhttp.Server
	closers     []func() error
}

// Option attaches optional services to the App.
type Option func(*App)

func WithTelemetry(p *middleware.TelemetryPipeline, f *usecase.RecordForwarder) Option {
	return func(a *App) {
		a.pipeline = p
		a.forwarder = f
	}
}

func WithConsumer(c *pkgkafka.Consumer, kh pkgkafka.MessageHandler) Option {
	return func(a *App) {
		a.consumer = c
		a.kh = kh
	}
}

func WithInfra(ch *pkgch.Client, producer *pkgkafka.Producer, c cache.Service) Option {
	return func(a *App) {
		a.chClient = ch
		a.producer = producer
		a.cache = c
	}
}

func WithTrace(r *plot.Recorder) Option {
	return func(a *App) { a.trace = r }
}

// WithCloser registers an extra resource closed on shutdown, after the loop.
func WithCloser(fn func() error) Option {
	return func(a *App) {
		if fn != nil {
			a.closers = append(a.closers, fn)
		}
	}
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	log *applogger.Logger,
	loop *usecase.ControlLoop,
	device repository.Device,
	sink repository.RecordSink,
	opts ...Option,
) *App {
	a := &App{
		cfg:    cfg,
		log:    log,
		loop:   loop,
		device: device,
		sink:   sink,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// SetHTTPHandler allows DI to inject an HTTP handler.
func (a *App) SetHTTPHandler(h xhttp.Handler) { a.httpHandler = h }

// Run starts the ambient services, drives the control loop until it halts,
// finishes or ctx is cancelled, then shuts everything down. A nil error
// after ctx cancellation means the user interrupted the run.
func (a *App) Run(ctx context.Context) (err error) {
	l := a.log
	background := context.WithoutCancel(ctx)

	if a.pipeline != nil {
		a.pipeline.Start(background)
		l.Info("telemetry pipeline started", applogger.String("backend", a.cfg.Telemetry.Backend))
	}

	if a.consumer != nil && a.kh != nil {
		a.consumer.RegisterHandler(a.kh)
		if cerr := a.consumer.Start(); cerr != nil {
			l.Error("kafka consumer error", applogger.Error(cerr))
		} else {
			l.Info("kafka consumer started", applogger.String("topic", a.kh.Topic()))
		}
	}

	if a.cfg.Server.Enabled {
		a.httpServer = xhttp.NewServer(a.httpHandler,
			xhttp.WithPort(a.cfg.Server.Port),
			xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
			xhttp.WithLogger(l),
		)
		if serr := a.httpServer.Start(); serr != nil {
			l.Error("http server start error", applogger.Error(serr))
		}
	}

	defer func() {
		err = multierr.Append(err, a.shutdown(background))
	}()

	err = a.loop.Run(ctx)
	switch {
	case err == nil && ctx.Err() != nil:
		l.Info("shutdown signal received")
	case err == nil:
		l.Info("control loop finished")
	case errors.Is(err, usecase.ErrOutOfPhase):
		l.Error("control loop halted", applogger.Error(err))
	default:
		l.Error("control loop failed", applogger.Error(err))
	}
	return err
}

// shutdown stops every service in reverse start order. The device and file
// sinks go first so no write is left pending on the board.
func (a *App) shutdown(ctx context.Context) error {
	l := a.log
	l.Info("shutting down...")

	var errs error
	if a.device != nil {
		errs = multierr.Append(errs, a.device.Close())
	}
	if a.sink != nil {
		errs = multierr.Append(errs, a.sink.Close())
	}

	if a.trace != nil && a.cfg.Output.Plot != "" && a.trace.Len() > 0 {
		if perr := a.trace.Save(a.cfg.Output.Plot); perr != nil {
			l.Warn("save trace plot", applogger.Error(perr))
		} else {
			l.Info("trace plot saved", applogger.String("path", a.cfg.Output.Plot))
		}
	}

	if a.httpServer != nil {
		if herr := a.httpServer.Stop(ctx); herr != nil {
			l.Error("http shutdown error", applogger.Error(herr))
		}
	}

	// Flush queued telemetry before the backends close.
	if a.pipeline != nil {
		flushCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		done := make(chan error, 1)
		go func() { done <- a.pipeline.Close() }()
		select {
		case perr := <-done:
			if perr != nil {
				l.Warn("telemetry pipeline close error", applogger.Error(perr))
			}
		case <-flushCtx.Done():
			l.Warn("telemetry pipeline flush timed out", applogger.Int("pending", a.pipeline.Pending()))
		}
		cancel()
	}

	if a.consumer != nil {
		if cerr := a.consumer.Stop(ctx); cerr != nil {
			l.Warn("kafka consumer stop error", applogger.Error(cerr))
		}
	}

	for _, fn := range a.closers {
		if cerr := fn(); cerr != nil {
			l.Warn("close error", applogger.Error(cerr))
		}
	}

	// Ship folded error logs while the producer is still open.
	l.RemoveCollector()

	// The forwarder owns the kafka publisher.
	if a.forwarder != nil {
		a.forwarder.Close()
	} else if a.producer != nil {
		if perr := a.producer.Close(); perr != nil {
			l.Warn("kafka producer close error", applogger.Error(perr))
		}
	}
	if a.chClient != nil {
		if cerr := a.chClient.Close(); cerr != nil {
			l.Warn("clickhouse close error", applogger.Error(cerr))
		}
	}
	if a.cache != nil {
		if cerr := a.cache.Close(); cerr != nil {
			l.Warn("cache close error", applogger.Error(cerr))
		}
	}

	l.Info("shutdown complete")
	return errs
}
