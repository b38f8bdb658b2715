// Package main runs the HTTP service:
// - API: backtests, chunk simulations, rankings and reports
// - Progress: websocket streams of running backtests
// - Scheduler (optional): periodic re-runs of the configured backtest
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"etf-chunk-lab/internal/config"
	"etf-chunk-lab/internal/ingestion"
	"etf-chunk-lab/internal/logger"
	"etf-chunk-lab/internal/observability"
	"etf-chunk-lab/internal/orchestrator"
	"etf-chunk-lab/internal/scheduler"
	"etf-chunk-lab/internal/server"
	"etf-chunk-lab/internal/storage/backend"
)

func main() {
	envFile := flag.String("env-file", "", "Optional .env file (default: ./.env if present)")
	csvFiles := flag.String("csv", "", "Comma-separated price CSV files to ingest at startup")
	outputDir := flag.String("output-dir", "output", "Output directory for scheduled reports (empty to skip)")
	devMode := flag.Bool("dev", false, "Development mode: no response compression")
	flag.Parse()

	var files []string
	if *envFile != "" {
		files = append(files, *envFile)
	}
	cfg, err := config.Load(files...)
	if err != nil {
		l := logger.New(logger.Config{})
		l.Fatal().Err(err).Msg("load configuration")
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.LogPretty})
	logger.SetGlobalLogger(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics("etf", reg)

	stores, cleanup, err := backend.Open(ctx, backend.Options{
		PostgresDSN:   cfg.PostgresDSN,
		ClickHouseDSN: cfg.ClickHouseDSN,
		UseMemory:     cfg.UseMemory,
		Migrate:       true,
		Logger:        &log,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("open storage")
	}
	defer cleanup()

	if *csvFiles != "" {
		mgr := ingestion.NewManager(ingestion.ManagerOptions{
			Store:        stores.PriceBars,
			Logger:       &log,
			Metrics:      metrics,
			SkipExisting: true,
		})
		var sources []ingestion.BarSource
		for _, p := range strings.Split(*csvFiles, ",") {
			if p = strings.TrimSpace(p); p != "" {
				sources = append(sources, ingestion.NewCSVFileSource(p))
			}
		}
		if _, err := mgr.IngestAll(ctx, sources...); err != nil {
			log.Fatal().Err(err).Msg("ingest price csv")
		}
	}

	orch := orchestrator.New(orchestrator.Options{
		PriceBarStore:    stores.PriceBars,
		RunStore:         stores.Runs,
		TradeRecordStore: stores.Trades,
		EquityCurveStore: stores.Equity,
		Logger:           &log,
		Metrics:          metrics,
		ProgressEvery:    cfg.ProgressEvery,
	})

	srv := server.New(server.Config{
		Addr:             cfg.HTTPAddr,
		Log:              log,
		Orchestrator:     orch,
		RunStore:         stores.Runs,
		TradeRecordStore: stores.Trades,
		EquityCurveStore: stores.Equity,
		PriceBarStore:    stores.PriceBars,
		Metrics:          metrics,
		Gatherer:         reg,
		DevMode:          *devMode,
	})

	var sched *scheduler.Scheduler
	if cfg.RerunSchedule != "" {
		sched = scheduler.New(log, scheduler.Options{Timeout: time.Hour})
		job := scheduler.NewBacktestJob(orch, func(context.Context) (orchestrator.Request, error) {
			return orchestrator.Request{Config: cfg.Simulation}, nil
		}, *outputDir, log)
		if err := sched.AddJob(cfg.RerunSchedule, job); err != nil {
			log.Fatal().Err(err).Msg("schedule backtest")
		}
		sched.Start()
		log.Info().Str("schedule", cfg.RerunSchedule).Msg("scheduled backtest re-runs")
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("server error")
		}
	}

	if sched != nil {
		sched.Stop()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
	log.Info().Msg("server stopped")
}
