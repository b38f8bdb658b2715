// Package main runs a head-to-head backtest of global compounding against
// independent chunks and writes the comparison report.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"etf-chunk-lab/internal/domain"
	"etf-chunk-lab/internal/indicators"
	"etf-chunk-lab/internal/ingestion"
	"etf-chunk-lab/internal/logger"
	"etf-chunk-lab/internal/orchestrator"
	"etf-chunk-lab/internal/reporting"
	"etf-chunk-lab/internal/selection"
	"etf-chunk-lab/internal/simulation"
	"etf-chunk-lab/internal/storage/backend"
	"etf-chunk-lab/internal/verification"
)

func main() {
	defaults := domain.DefaultSimulationConfig()

	// Parse flags (env vars as defaults)
	csvFiles := flag.String("csv", "", "Comma-separated price CSV files to load before the run")
	symbols := flag.String("symbols", "", "Comma-separated ETF symbols (default: every loaded symbol)")
	startDate := flag.String("start", "", "First history date (YYYY-MM-DD)")
	endDate := flag.String("end", "", "Last history date (YYYY-MM-DD)")
	startCapital := flag.Float64("start-capital", defaults.StartCapital, "Starting capital")
	chunks := flag.Int("chunks", defaults.NumberOfChunks, "Number of chunks")
	profitTarget := flag.Float64("profit-target", defaults.ProfitTargetPct, "Profit target in percent")
	days := flag.Int("days", defaults.TotalTradingDays, "Trading days to simulate")
	maWindow := flag.Int("ma-window", defaults.MovingAverageWindow, "Moving average window in days")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage")
	outputDir := flag.String("output-dir", "output", "Output directory for report files (empty to skip)")
	outputJSON := flag.Bool("json", false, "Print the comparison as JSON")
	rankDay := flag.Int("rank-day", -1, "Also print the ETF ranking of this day")
	progressEvery := flag.Int("progress-every", 100, "Days between progress log lines (0 disables)")
	verify := flag.Bool("verify", false, "Replay both stored runs and check they reproduce")
	logLevel := flag.String("log-level", envOr("LOG_LEVEL", "info"), "Log level")

	flag.Parse()

	log := logger.New(logger.Config{Level: *logLevel, Pretty: true})
	logger.SetGlobalLogger(log)

	start, err := parseDate(*startDate)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid --start")
	}
	end, err := parseDate(*endDate)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid --end")
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Warn().Str("signal", sig.String()).Msg("cancelling backtest")
		cancel()
	}()

	stores, cleanup, err := backend.Open(ctx, backend.Options{
		PostgresDSN:   *postgresDSN,
		ClickHouseDSN: *clickhouseDSN,
		UseMemory:     *useMemory,
		Migrate:       true,
		Logger:        &log,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("open storage")
	}
	defer cleanup()

	if *csvFiles != "" {
		if err := loadCSV(ctx, log, stores, splitList(*csvFiles)); err != nil {
			log.Fatal().Err(err).Msg("load price csv")
		}
	}

	orch := orchestrator.New(orchestrator.Options{
		PriceBarStore:    stores.PriceBars,
		RunStore:         stores.Runs,
		TradeRecordStore: stores.Trades,
		EquityCurveStore: stores.Equity,
		Logger:           &log,
		ProgressEvery:    *progressEvery,
	})

	plan, err := orch.Prepare(ctx, orchestrator.Request{
		Config: domain.SimulationConfig{
			StartCapital:        *startCapital,
			NumberOfChunks:      *chunks,
			ProfitTargetPct:     *profitTarget,
			TotalTradingDays:    *days,
			MovingAverageWindow: *maWindow,
		},
		Symbols: upper(splitList(*symbols)),
		Start:   start,
		End:     end,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("prepare backtest")
	}
	log.Info().
		Str("global_run_id", plan.GlobalRunID).
		Str("chunk_run_id", plan.ChunkRunID).
		Int("history_days", plan.History.Len()).
		Strs("symbols", plan.Symbols).
		Msg("starting backtest")

	var progress func(simulation.Progress)
	if *progressEvery > 0 {
		progress = func(p simulation.Progress) {
			log.Info().
				Str("variant", string(p.Variant)).
				Int("day", p.Day).
				Int("total_days", p.TotalDays).
				Float64("total_value", p.TotalValue).
				Int("trades", p.Trades).
				Msg("progress")
		}
	}

	cmp, err := orch.Execute(ctx, plan, progress)
	if err != nil {
		log.Fatal().Err(err).Msg("backtest failed")
	}

	report := reporting.NewGenerator(nil, nil, nil).FromResults(cmp.Global, cmp.Chunk)
	if *outputDir != "" {
		files, err := reporting.WriteFiles(*outputDir, report)
		if err != nil {
			log.Fatal().Err(err).Msg("write report")
		}
		for _, f := range files {
			log.Info().Str("file", f).Msg("report written")
		}
	}

	if *outputJSON {
		output, _ := json.MarshalIndent(report.Runs, "", "  ")
		fmt.Println(string(output))
	} else {
		fmt.Print(reporting.RenderComparisonMarkdown(report))
	}

	if *rankDay >= 0 {
		if *rankDay >= plan.History.Len() {
			log.Fatal().Int("day", *rankDay).Int("history_days", plan.History.Len()).Msg("rank day outside history")
		}
		sel := selection.NewSelector(plan.History, indicators.NewCalculator(plan.History, plan.Config.MovingAverageWindow))
		fmt.Print(reporting.RenderRankingMarkdown(*rankDay, plan.History.Date(*rankDay), sel.Rank(plan.Symbols, *rankDay)))
	}

	if *verify {
		v := verification.NewReplayVerifier(verification.ReplayVerifierOptions{
			RunStore:         stores.Runs,
			TradeRecordStore: stores.Trades,
			EquityCurveStore: stores.Equity,
			History:          verification.StaticHistory(plan.History),
		})
		failed := false
		for _, runID := range []string{plan.GlobalRunID, plan.ChunkRunID} {
			res, err := v.VerifyRun(ctx, runID)
			if err != nil {
				log.Fatal().Err(err).Str("run_id", runID).Msg("verify run")
			}
			if !res.Match {
				failed = true
				for _, d := range res.Divergences {
					log.Error().Str("run_id", runID).Msg(d.String())
				}
				continue
			}
			log.Info().Str("run_id", runID).Int("trades", res.ReplayedTrades).Msg("replay matches")
		}
		if failed {
			os.Exit(1)
		}
	}
}

// loadCSV ingests price files into the bar store, skipping bars already stored.
func loadCSV(ctx context.Context, log zerolog.Logger, stores *backend.Stores, paths []string) error {
	mgr := ingestion.NewManager(ingestion.ManagerOptions{
		Store:        stores.PriceBars,
		Logger:       &log,
		SkipExisting: true,
	})
	sources := make([]ingestion.BarSource, len(paths))
	for i, p := range paths {
		sources[i] = ingestion.NewCSVFileSource(p)
	}
	_, err := mgr.IngestAll(ctx, sources...)
	return err
}

func parseDate(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.DateOnly, v)
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func upper(in []string) []string {
	for i := range in {
		in[i] = strings.ToUpper(in[i])
	}
	return in
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
