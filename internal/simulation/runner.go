package simulation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"etf-chunk-lab/internal/domain"
	"etf-chunk-lab/internal/lookup"
	"etf-chunk-lab/internal/observability"
	"etf-chunk-lab/internal/storage"
)

// RunnerOptions contains the stores and observers a Runner reports to.
// Nil stores disable persistence.
type RunnerOptions struct {
	RunStore         storage.RunStore
	TradeRecordStore storage.TradeRecordStore
	EquityCurveStore storage.EquityCurveStore

	Logger  *zerolog.Logger
	Metrics *observability.Metrics
}

// Runner executes engine runs and persists the completed ones.
type Runner struct {
	runStore    storage.RunStore
	tradeStore  storage.TradeRecordStore
	equityStore storage.EquityCurveStore
	log         zerolog.Logger
	metrics     *observability.Metrics
}

// NewRunner creates a new simulation runner.
func NewRunner(opts RunnerOptions) *Runner {
	log := zerolog.Nop()
	if opts.Logger != nil {
		log = *opts.Logger
	}
	return &Runner{
		runStore:    opts.RunStore,
		tradeStore:  opts.TradeRecordStore,
		equityStore: opts.EquityCurveStore,
		log:         log,
		metrics:     opts.Metrics,
	}
}

// Job describes one engine run.
type Job struct {
	RunID         string
	Variant       domain.Variant
	Config        domain.SimulationConfig
	Series        lookup.PriceSeries
	Symbols       []string
	CreatedAt     time.Time
	Progress      func(Progress)
	ProgressEvery int
}

// Execute runs job to completion. Completed runs are persisted; cancelled
// runs return their partial result and the context error without persisting.
func (r *Runner) Execute(ctx context.Context, job Job) (*domain.RunResult, error) {
	engine, err := NewEngine(job.Variant, job.Config, job.Series, EngineOptions{
		RunID:         job.RunID,
		Symbols:       job.Symbols,
		Logger:        &r.log,
		Progress:      job.Progress,
		ProgressEvery: job.ProgressEvery,
	})
	if err != nil {
		return nil, err
	}

	done := r.metrics.TrackInFlight()
	startedAt := time.Now()
	result, runErr := engine.Run(ctx)
	done()

	variant := string(job.Variant)
	switch {
	case errors.Is(runErr, context.Canceled), errors.Is(runErr, context.DeadlineExceeded):
		r.metrics.RecordRun(variant, observability.StatusCancelled, time.Since(startedAt), result.DaysSimulated)
		return result, runErr
	case runErr != nil:
		r.metrics.RecordRun(variant, observability.StatusError, time.Since(startedAt), 0)
		return nil, runErr
	}

	r.metrics.RecordRun(variant, observability.StatusOK, time.Since(startedAt), result.DaysSimulated)
	r.metrics.RecordTrades(variant, result.Stats.Buys, result.Stats.Sells)
	r.metrics.RecordReturn(variant, result.Metrics.TotalReturnPct)

	if err := r.Persist(ctx, result, job.CreatedAt); err != nil {
		return result, err
	}
	return result, nil
}

// Persist stores the run summary, trade log and equity curve of a completed run.
// The trade log and curve are written before the summary, so a listed run is always complete.
func (r *Runner) Persist(ctx context.Context, result *domain.RunResult, createdAt time.Time) error {
	if r.runStore == nil {
		return nil
	}
	if !result.Completed {
		return fmt.Errorf("%w: run %s did not complete", storage.ErrInvalidInput, result.RunID)
	}

	if r.tradeStore != nil && len(result.Trades) > 0 {
		if err := r.tradeStore.InsertBulk(ctx, result.RunID, result.Trades); err != nil {
			return fmt.Errorf("store trades for run %s: %w", result.RunID, err)
		}
	}
	if r.equityStore != nil && len(result.Equity) > 0 {
		if err := r.equityStore.InsertBulk(ctx, result.RunID, result.Equity); err != nil {
			return fmt.Errorf("store equity for run %s: %w", result.RunID, err)
		}
	}
	if err := r.runStore.Insert(ctx, result.Summary(createdAt)); err != nil {
		return fmt.Errorf("store run %s: %w", result.RunID, err)
	}

	r.log.Info().
		Str("run_id", result.RunID).
		Str("variant", string(result.Variant)).
		Int("trades", len(result.Trades)).
		Msg("run persisted")
	return nil
}

// LoadHistory reads bars for symbols from store and aligns them by date.
// Empty symbols loads every stored symbol. Zero start and end load all dates.
func LoadHistory(ctx context.Context, store storage.PriceBarStore, symbols []string, start, end time.Time) (*lookup.History, error) {
	if len(symbols) == 0 {
		var err error
		if symbols, err = store.Symbols(ctx); err != nil {
			return nil, fmt.Errorf("list symbols: %w", err)
		}
	}

	var bars []*domain.PriceBar
	for _, sym := range symbols {
		var (
			got []*domain.PriceBar
			err error
		)
		if start.IsZero() && end.IsZero() {
			got, err = store.GetBySymbol(ctx, sym)
		} else {
			if end.IsZero() {
				end = time.Now().UTC()
			}
			got, err = store.GetByDateRange(ctx, sym, start, end)
		}
		if err != nil {
			return nil, fmt.Errorf("load bars for %s: %w", sym, err)
		}
		bars = append(bars, got...)
	}

	h, err := lookup.AlignByDate(bars)
	if errors.Is(err, lookup.ErrNoPriceData) {
		return nil, ErrNoPriceHistory
	}
	return h, err
}
