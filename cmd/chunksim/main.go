// Package main runs the probabilistic chunk model with a simple compounding
// baseline and prints its report.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"etf-chunk-lab/internal/domain"
	"etf-chunk-lab/internal/logger"
	"etf-chunk-lab/internal/orchestrator"
	"etf-chunk-lab/internal/reporting"
)

func main() {
	defaults := domain.DefaultStochasticConfig()

	startCapital := flag.Float64("start-capital", defaults.StartCapital, "Starting capital")
	chunks := flag.Int("chunks", defaults.NumberOfChunks, "Number of chunks")
	profitTarget := flag.Float64("profit-target", defaults.ProfitTargetPct, "Profit per winning trade in percent")
	avgLoss := flag.Float64("avg-loss", defaults.AverageLossPct, "Loss per losing trade in percent")
	winRate := flag.Float64("win-rate", defaults.WinRatePct, "Probability of a winning trade in percent")
	holding := flag.Int("holding-days", defaults.AverageHoldingDays, "Average holding period in days")
	days := flag.Int("days", defaults.TotalTradingDays, "Trading days to simulate")
	seed := flag.Uint64("seed", 0, "Random seed; equal seeds reproduce the run")
	outputJSON := flag.Bool("json", false, "Print the full result as JSON")
	output := flag.String("output", "", "Also write the report to this file")
	logLevel := flag.String("log-level", "info", "Log level")

	flag.Parse()

	log := logger.New(logger.Config{Level: *logLevel, Pretty: true})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	orch := orchestrator.New(orchestrator.Options{Logger: &log})
	result, err := orch.RunStochastic(ctx, domain.StochasticConfig{
		StartCapital:       *startCapital,
		NumberOfChunks:     *chunks,
		ProfitTargetPct:    *profitTarget,
		AverageLossPct:     *avgLoss,
		WinRatePct:         *winRate,
		AverageHoldingDays: *holding,
		TotalTradingDays:   *days,
		Seed:               *seed,
	}, nil)
	if err != nil {
		log.Fatal().Err(err).Msg("chunk simulation failed")
	}

	var out string
	if *outputJSON {
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			log.Fatal().Err(err).Msg("marshal result")
		}
		out = string(data) + "\n"
	} else {
		out = reporting.RenderStochasticMarkdown(result)
	}
	fmt.Print(out)

	if *output != "" {
		if err := os.WriteFile(*output, []byte(out), 0o644); err != nil {
			log.Fatal().Err(err).Str("file", *output).Msg("write report")
		}
		log.Info().Str("file", *output).Msg("report written")
	}
}
