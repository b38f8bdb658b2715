package metrics

import (
	"context"
	"errors"
	"fmt"

	"etf-chunk-lab/internal/domain"
	"etf-chunk-lab/internal/storage"
)

// ErrNoEquity is returned when a stored run has no equity curve.
var ErrNoEquity = errors.New("no equity curve stored for run")

// Aggregator rebuilds run results from persisted trade logs and equity curves.
type Aggregator struct {
	runStore    storage.RunStore
	tradeStore  storage.TradeRecordStore
	equityStore storage.EquityCurveStore
}

// NewAggregator creates a new metrics aggregator.
func NewAggregator(runStore storage.RunStore, tradeStore storage.TradeRecordStore, equityStore storage.EquityCurveStore) *Aggregator {
	return &Aggregator{
		runStore:    runStore,
		tradeStore:  tradeStore,
		equityStore: equityStore,
	}
}

// Rebuild loads a stored run and recomputes its metrics and trade statistics
// from the persisted log and curve. Returns storage.ErrNotFound for unknown runs.
func (a *Aggregator) Rebuild(ctx context.Context, runID string) (*domain.RunResult, error) {
	summary, err := a.runStore.GetByID(ctx, runID)
	if err != nil {
		return nil, err
	}

	trades, err := a.tradeStore.GetByRunID(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("load trades for run %s: %w", runID, err)
	}

	curve, err := a.equityStore.GetByRunID(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("load equity for run %s: %w", runID, err)
	}
	if len(curve) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoEquity, runID)
	}

	return &domain.RunResult{
		RunID:         summary.RunID,
		Variant:       summary.Variant,
		Config:        summary.Config,
		Symbols:       summary.Symbols,
		Trades:        trades,
		Equity:        curve,
		Metrics:       Calculate(curve, summary.Config.StartCapital, summary.DaysSimulated),
		Stats:         TradeStatistics(trades),
		DaysSimulated: summary.DaysSimulated,
		Completed:     summary.Completed,
	}, nil
}
