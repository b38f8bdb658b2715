// Package main loads daily ETF price CSV files into the price bar store.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"etf-chunk-lab/internal/ingestion"
	"etf-chunk-lab/internal/logger"
	"etf-chunk-lab/internal/observability"
	"etf-chunk-lab/internal/storage/backend"
)

func main() {
	// Parse flags (env vars as defaults)
	csvFiles := flag.String("csv", "", "Comma-separated price CSV files (positional arguments are added)")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage (dry run)")
	skipExisting := flag.Bool("skip-existing", true, "Skip bars already stored instead of failing")
	metricsAddr := flag.String("metrics-addr", "", "Prometheus metrics HTTP address (empty to disable)")
	logLevel := flag.String("log-level", "info", "Log level")

	flag.Parse()

	log := logger.New(logger.Config{Level: *logLevel, Pretty: true})

	var paths []string
	for _, p := range strings.Split(*csvFiles, ",") {
		if p = strings.TrimSpace(p); p != "" {
			paths = append(paths, p)
		}
	}
	paths = append(paths, flag.Args()...)
	if len(paths) == 0 {
		log.Fatal().Msg("no CSV files given; use --csv or positional arguments")
	}
	if !*useMemory && *clickhouseDSN == "" {
		log.Fatal().Msg("--clickhouse-dsn is required (use --use-memory for a dry run)")
	}

	metrics := observability.NewMetrics("etf", prometheus.DefaultRegisterer)

	// Start metrics server if enabled
	if *metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", observability.Handler(prometheus.DefaultGatherer))
			log.Info().Str("addr", *metricsAddr).Msg("starting metrics server")
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("metrics server error")
			}
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Warn().Str("signal", sig.String()).Msg("cancelling ingestion")
		cancel()
	}()

	stores, cleanup, err := backend.Open(ctx, backend.Options{
		ClickHouseDSN: *clickhouseDSN,
		UseMemory:     *useMemory,
		Migrate:       true,
		Logger:        &log,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("open storage")
	}
	defer cleanup()

	mgr := ingestion.NewManager(ingestion.ManagerOptions{
		Store:        stores.PriceBars,
		Logger:       &log,
		Metrics:      metrics,
		SkipExisting: *skipExisting,
	})

	sources := make([]ingestion.BarSource, len(paths))
	for i, p := range paths {
		sources[i] = ingestion.NewCSVFileSource(p)
	}

	results, err := mgr.IngestAll(ctx, sources...)
	total := 0
	for _, r := range results {
		total += r.Inserted
	}
	if err != nil {
		cleanup()
		log.Fatal().Err(err).Msg("ingestion failed")
	}
	log.Info().Int("sources", len(results)).Int("bars", total).Msg("ingestion complete")
}
