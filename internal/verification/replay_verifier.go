package verification

import (
	"context"
	"fmt"
	"time"

	"etf-chunk-lab/internal/lookup"
	"etf-chunk-lab/internal/metrics"
	"etf-chunk-lab/internal/simulation"
	"etf-chunk-lab/internal/storage"
)

// HistoryLoader returns the price history of symbols between start and end.
type HistoryLoader func(ctx context.Context, symbols []string, start, end time.Time) (lookup.PriceSeries, error)

// StoreHistory loads history from a price bar store.
func StoreHistory(store storage.PriceBarStore) HistoryLoader {
	return func(ctx context.Context, symbols []string, start, end time.Time) (lookup.PriceSeries, error) {
		return simulation.LoadHistory(ctx, store, symbols, start, end)
	}
}

// StaticHistory always returns h.
func StaticHistory(h lookup.PriceSeries) HistoryLoader {
	return func(context.Context, []string, time.Time, time.Time) (lookup.PriceSeries, error) {
		return h, nil
	}
}

// ReplayVerifier re-executes stored runs over their price history.
type ReplayVerifier struct {
	runStore   storage.RunStore
	aggregator *metrics.Aggregator
	history    HistoryLoader
}

// ReplayVerifierOptions contains configuration for creating a ReplayVerifier.
type ReplayVerifierOptions struct {
	RunStore         storage.RunStore
	TradeRecordStore storage.TradeRecordStore
	EquityCurveStore storage.EquityCurveStore
	History          HistoryLoader
}

// NewReplayVerifier creates a new ReplayVerifier.
func NewReplayVerifier(opts ReplayVerifierOptions) *ReplayVerifier {
	return &ReplayVerifier{
		runStore:   opts.RunStore,
		aggregator: metrics.NewAggregator(opts.RunStore, opts.TradeRecordStore, opts.EquityCurveStore),
		history:    opts.History,
	}
}

// VerifyRun replays one stored run and compares it with what was stored.
// The history window is taken from the stored equity curve's first and last dates.
func (v *ReplayVerifier) VerifyRun(ctx context.Context, runID string) (*VerificationResult, error) {
	// 1. Load stored run
	stored, err := v.aggregator.Rebuild(ctx, runID)
	if err != nil {
		return nil, err
	}

	// 2. Replay simulation
	start := stored.Equity[0].Date
	end := stored.Equity[len(stored.Equity)-1].Date
	history, err := v.history(ctx, stored.Symbols, start, end)
	if err != nil {
		return nil, fmt.Errorf("load history for run %s: %w", runID, err)
	}

	cfg := stored.Config
	cfg.TotalTradingDays = stored.DaysSimulated
	engine, err := simulation.NewEngine(stored.Variant, cfg, history, simulation.EngineOptions{
		RunID:   runID,
		Symbols: stored.Symbols,
	})
	if err != nil {
		return nil, fmt.Errorf("replay run %s: %w", runID, err)
	}
	replayed, err := engine.Run(ctx)
	if err != nil {
		return nil, fmt.Errorf("replay run %s: %w", runID, err)
	}

	// 3. Compare results
	divergences := CompareTradeLogs(stored.Trades, replayed.Trades)
	divergences = append(divergences, CompareEquityCurves(stored.Equity, replayed.Equity)...)

	return &VerificationResult{
		RunID:                runID,
		Variant:              stored.Variant,
		Match:                len(divergences) == 0,
		Divergences:          divergences,
		StoredTrades:         len(stored.Trades),
		ReplayedTrades:       len(replayed.Trades),
		StoredFinalCapital:   stored.Metrics.FinalCapital,
		ReplayedFinalCapital: replayed.Metrics.FinalCapital,
	}, nil
}

// VerifyAll verifies every stored run.
func (v *ReplayVerifier) VerifyAll(ctx context.Context) (*VerificationReport, error) {
	runs, err := v.runStore.List(ctx)
	if err != nil {
		return nil, err
	}

	report := &VerificationReport{
		TotalRuns: len(runs),
		Results:   make([]VerificationResult, 0, len(runs)),
	}

	for _, run := range runs {
		result, err := v.VerifyRun(ctx, run.RunID)
		if err != nil {
			if ctx.Err() != nil {
				return report, ctx.Err()
			}
			// Record error as divergence
			report.Results = append(report.Results, VerificationResult{
				RunID:   run.RunID,
				Variant: run.Variant,
				Match:   false,
				Divergences: []FieldDivergence{
					{Field: "Error", Expected: nil, Actual: err.Error()},
				},
			})
			report.DivergentRuns++
			continue
		}

		report.Results = append(report.Results, *result)
		if result.Match {
			report.MatchedRuns++
		} else {
			report.DivergentRuns++
		}
	}

	return report, nil
}
