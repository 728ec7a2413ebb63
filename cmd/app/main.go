package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"MicroGrid/internal/di"
	"MicroGrid/internal/service/console"
	"MicroGrid/internal/usecase"
	"MicroGrid/pkg/config"
	"MicroGrid/pkg/logger"
)

func main() {
	os.Exit(run())
}

func run() int {
	// Parse flags
	configPath := flag.String("config", "config/config.yaml", "config file path")
	flags, resolve := config.RegisterFlags(flag.CommandLine)
	flag.Parse()
	resolve()

	// Load config
	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Printf("config load failed: %v", err)
		return 1
	}
	cfg.ApplyFlags(flags)
	subs := cfg.NormalizeLoop(time.Now())

	l, err := di.ProvideLogger(cfg)
	if err != nil {
		log.Printf("logger init failed: %v", err)
		return 1
	}
	for _, s := range subs {
		fmt.Fprintln(os.Stderr, s)
		l.Warn("loop value substituted",
			logger.String("field", s.Field),
			logger.String("given", s.Given),
			logger.String("used", s.Used),
		)
	}
	l.Info("starting",
		logger.String("env", cfg.Environment),
		logger.String("device", cfg.Device.Type),
		logger.String("backend", cfg.Telemetry.Backend),
		logger.String("run_tag", cfg.Loop.FileTag),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Wire DI: Initialize all dependencies
	app, err := di.InitializeApp(cfg, l)
	if err != nil {
		l.Error("app initialization failed", logger.Error(err))
		fmt.Fprintf(os.Stderr, "initialization failed: %v\n", err)
		return 1
	}

	if cfg.Loop.Console {
		console.Banner(os.Stdout)
	}

	// Run application (blocks until halt, limit or signal)
	err = app.Run(ctx)
	switch {
	case err == nil && ctx.Err() != nil:
		console.UserExit(os.Stdout)
		return 0
	case err == nil:
		return 0
	case errors.Is(err, usecase.ErrDeviceMismatch):
		fmt.Fprintf(os.Stderr, "AD/DA board not recognised: %v\n", err)
	case errors.Is(err, usecase.ErrOutOfPhase):
		fmt.Fprintf(os.Stderr, "\n\n\n\n\n\n\n\nHalting: %v\n", err)
	default:
		fmt.Fprintf(os.Stderr, "app error: %v\n", err)
	}
	return 1
}
