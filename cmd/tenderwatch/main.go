// Package main runs a single tenderwatch sweep.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/tenderwatch/internal/app"
	"github.com/JakeFAU/tenderwatch/internal/config"
	"github.com/JakeFAU/tenderwatch/internal/logging"
	"github.com/JakeFAU/tenderwatch/internal/telemetry"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		return 1
	}
	logger, closeLog, err := logging.New(logging.Config{
		Development: cfg.Logging.Development,
		File:        cfg.StatePath(cfg.Paths.LogFile),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		return 1
	}
	defer func() {
		if closeErr := closeLog(); closeErr != nil {
			fmt.Fprintf(os.Stderr, "logger close failed: %v\n", closeErr)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, cfg.Run.Timeout)
	defer cancel()

	tp, err := telemetry.InitTracerProvider(ctx, telemetry.Config{
		ServiceName: cfg.Tracing.ServiceName,
		ProjectID:   cfg.Tracing.ProjectID,
	})
	if err != nil {
		logger.Error("tracing init failed", zap.Error(err))
	} else {
		defer func() {
			shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancelShutdown()
			if err := tp.Shutdown(shutdownCtx); err != nil {
				logger.Error("tracer shutdown failed", zap.Error(err))
			}
		}()
	}

	runner, cleanup, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Error("application init failed", zap.Error(err))
		return 1
	}
	defer cleanup()

	report, err := runner.Run(ctx)
	if err != nil {
		logger.Error("run aborted", zap.String("run_id", report.RunID), zap.Error(err))
		return 1
	}
	logger.Info("run complete",
		zap.String("run_id", report.RunID),
		zap.Int("new_records", report.Batch.Count()),
		zap.Int("phrases_failed", report.PhrasesFailed),
		zap.Int("status", report.Status.Status),
	)
	return 0
}
