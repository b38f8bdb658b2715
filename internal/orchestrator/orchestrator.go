// Package orchestrator coordinates a head-to-head backtest.
// Flow: load history → run both variants in parallel → persist → compare
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"etf-chunk-lab/internal/domain"
	"etf-chunk-lab/internal/idhash"
	"etf-chunk-lab/internal/lookup"
	"etf-chunk-lab/internal/metrics"
	"etf-chunk-lab/internal/observability"
	"etf-chunk-lab/internal/simulation"
	"etf-chunk-lab/internal/stochastic"
	"etf-chunk-lab/internal/storage"
)

// ErrNoHistorySource is returned when a request carries no history and no
// price bar store is configured.
var ErrNoHistorySource = errors.New("no price history source configured")

// Orchestrator runs the global and chunk variants over the same history.
type Orchestrator struct {
	// Stores
	priceBarStore storage.PriceBarStore
	runner        *simulation.Runner

	log           zerolog.Logger
	metrics       *observability.Metrics
	clock         func() time.Time
	progressEvery int
}

// Options for creating Orchestrator.
type Options struct {
	// Optional stores; nil disables loading or persistence
	PriceBarStore    storage.PriceBarStore
	RunStore         storage.RunStore
	TradeRecordStore storage.TradeRecordStore
	EquityCurveStore storage.EquityCurveStore

	Logger        *zerolog.Logger
	Metrics       *observability.Metrics
	Clock         func() time.Time // defaults to time.Now in UTC
	ProgressEvery int              // days between progress reports
}

// New creates a new Orchestrator.
func New(opts Options) *Orchestrator {
	log := zerolog.Nop()
	if opts.Logger != nil {
		log = *opts.Logger
	}
	clock := opts.Clock
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	runnerLog := log.With().Str("component", "runner").Logger()

	return &Orchestrator{
		priceBarStore: opts.PriceBarStore,
		runner: simulation.NewRunner(simulation.RunnerOptions{
			RunStore:         opts.RunStore,
			TradeRecordStore: opts.TradeRecordStore,
			EquityCurveStore: opts.EquityCurveStore,
			Logger:           &runnerLog,
			Metrics:          opts.Metrics,
		}),
		log:           log.With().Str("component", "orchestrator").Logger(),
		metrics:       opts.Metrics,
		clock:         clock,
		progressEvery: opts.ProgressEvery,
	}
}

// Request describes a backtest.
type Request struct {
	Config  domain.SimulationConfig `json:"config"`
	Symbols []string                `json:"symbols,omitempty"`

	// History is used as is when set; otherwise bars are loaded from the
	// price bar store within [Start, End].
	History lookup.PriceSeries `json:"-"`
	Start   time.Time          `json:"start,omitempty"`
	End     time.Time          `json:"end,omitempty"`
}

// Plan is a validated request with its history loaded and run ids assigned.
type Plan struct {
	Config      domain.SimulationConfig
	Symbols     []string
	History     lookup.PriceSeries
	CreatedAt   time.Time
	GlobalRunID string
	ChunkRunID  string
}

// Prepare validates req, loads its history and assigns run ids.
func (o *Orchestrator) Prepare(ctx context.Context, req Request) (*Plan, error) {
	cfg := req.Config.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	history := req.History
	if history == nil {
		if o.priceBarStore == nil {
			return nil, ErrNoHistorySource
		}
		h, err := simulation.LoadHistory(ctx, o.priceBarStore, req.Symbols, req.Start, req.End)
		if err != nil {
			return nil, fmt.Errorf("load history: %w", err)
		}
		history = h
	}
	if history.Len() == 0 {
		return nil, simulation.ErrNoPriceHistory
	}

	symbols := req.Symbols
	if len(symbols) == 0 {
		symbols = history.Symbols()
	}

	createdAt := o.clock()
	return &Plan{
		Config:      cfg,
		Symbols:     append([]string(nil), symbols...),
		History:     history,
		CreatedAt:   createdAt,
		GlobalRunID: idhash.ComputeRunID(domain.VariantGlobal, cfg, symbols, createdAt),
		ChunkRunID:  idhash.ComputeRunID(domain.VariantChunk, cfg, symbols, createdAt),
	}, nil
}

// Execute runs both variants of plan concurrently and compares them.
// The first failure cancels the other run. progress may be nil; it is
// called from both runs concurrently.
func (o *Orchestrator) Execute(ctx context.Context, plan *Plan, progress func(simulation.Progress)) (*domain.Comparison, error) {
	var global, chunk *domain.RunResult

	g, gctx := errgroup.WithContext(ctx)
	run := func(variant domain.Variant, runID string, out **domain.RunResult) func() error {
		return func() error {
			result, err := o.runner.Execute(gctx, simulation.Job{
				RunID:         runID,
				Variant:       variant,
				Config:        plan.Config,
				Series:        plan.History,
				Symbols:       plan.Symbols,
				CreatedAt:     plan.CreatedAt,
				Progress:      progress,
				ProgressEvery: o.progressEvery,
			})
			if err != nil {
				return fmt.Errorf("%s run %s: %w", variant, runID, err)
			}
			*out = result
			return nil
		}
	}
	g.Go(run(domain.VariantGlobal, plan.GlobalRunID, &global))
	g.Go(run(domain.VariantChunk, plan.ChunkRunID, &chunk))

	if err := g.Wait(); err != nil {
		o.log.Error().Err(err).Msg("backtest failed")
		return nil, err
	}

	cmp := metrics.Compare(global, chunk)
	o.log.Info().
		Str("global_run_id", plan.GlobalRunID).
		Str("chunk_run_id", plan.ChunkRunID).
		Str("winner", string(cmp.Winner)).
		Float64("return_spread_pct", cmp.ReturnSpreadPct).
		Msg("backtest completed")
	return cmp, nil
}

// Run prepares and executes req.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*domain.Comparison, error) {
	plan, err := o.Prepare(ctx, req)
	if err != nil {
		return nil, err
	}
	return o.Execute(ctx, plan, nil)
}

// RunStochastic runs the probabilistic chunk model for cfg. rng may be nil to
// draw from cfg.Seed.
func (o *Orchestrator) RunStochastic(ctx context.Context, cfg domain.StochasticConfig, rng stochastic.RandomSource) (*stochastic.Result, error) {
	sim, err := stochastic.NewSimulator(cfg, stochastic.Options{
		RunID:  idhash.ComputeStochasticRunID(cfg),
		Rand:   rng,
		Logger: &o.log,
	})
	if err != nil {
		return nil, err
	}

	result, err := sim.Run(ctx)
	if err != nil {
		return nil, err
	}
	if o.metrics != nil {
		o.metrics.StochasticRuns.Inc()
	}
	return result, nil
}
