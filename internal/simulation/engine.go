// Package simulation runs the day-by-day trade lifecycle of a money-management strategy.
package simulation

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/rs/zerolog"

	"etf-chunk-lab/internal/allocation"
	"etf-chunk-lab/internal/domain"
	"etf-chunk-lab/internal/indicators"
	"etf-chunk-lab/internal/lookup"
	"etf-chunk-lab/internal/metrics"
	"etf-chunk-lab/internal/selection"
)

// Engine errors
var (
	ErrNoPriceHistory = errors.New("no price history")
	ErrUnknownVariant = errors.New("unknown strategy variant")
	ErrNoSymbols      = errors.New("no symbols to trade")
)

// Progress is a point-in-time view of a running simulation.
type Progress struct {
	RunID      string         `json:"run_id"`
	Variant    domain.Variant `json:"variant"`
	Day        int            `json:"day"` // days completed
	TotalDays  int            `json:"total_days"`
	TotalValue float64        `json:"total_value"`
	Trades     int            `json:"trades"`
	Done       bool           `json:"done"`
}

// EngineOptions contains optional settings for an Engine.
type EngineOptions struct {
	RunID   string
	Symbols []string // candidate universe; defaults to every symbol in the history
	Logger  *zerolog.Logger

	// Progress is called every ProgressEvery days and once at the end.
	// It runs on the simulation goroutine and must not block.
	Progress      func(Progress)
	ProgressEvery int
}

// Engine simulates one strategy variant over a price history.
// An Engine may be run any number of times; each run owns its own state.
type Engine struct {
	variant  domain.Variant
	cfg      domain.SimulationConfig
	series   lookup.PriceSeries
	symbols  []string
	selector *selection.Selector
	log      zerolog.Logger

	runID         string
	progress      func(Progress)
	progressEvery int
}

// NewEngine validates the configuration and builds an engine.
func NewEngine(variant domain.Variant, cfg domain.SimulationConfig, series lookup.PriceSeries, opts EngineOptions) (*Engine, error) {
	if !variant.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownVariant, variant)
	}
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if series == nil || series.Len() == 0 {
		return nil, ErrNoPriceHistory
	}

	symbols := opts.Symbols
	if len(symbols) == 0 {
		symbols = series.Symbols()
	}
	if len(symbols) == 0 {
		return nil, ErrNoSymbols
	}

	log := zerolog.Nop()
	if opts.Logger != nil {
		log = *opts.Logger
	}

	return &Engine{
		variant:       variant,
		cfg:           cfg,
		series:        series,
		symbols:       append([]string(nil), symbols...),
		selector:      selection.NewSelector(series, indicators.NewCalculator(series, cfg.MovingAverageWindow)),
		log:           log.With().Str("component", "engine").Str("variant", string(variant)).Str("run_id", opts.RunID).Logger(),
		runID:         opts.RunID,
		progress:      opts.Progress,
		progressEvery: opts.ProgressEvery,
	}, nil
}

// TotalDays returns the number of days a run simulates: the configured
// trading days capped by the history length.
func (e *Engine) TotalDays() int {
	return min(e.cfg.TotalTradingDays, e.series.Len())
}

// runState is the mutable state of one run. Positions live in an arena keyed
// by id; order keeps open ids in opening order.
type runState struct {
	alloc  allocation.Allocator
	chunks *allocation.ChunkPool // nil for the global variant

	positions    map[int]*domain.Position
	order        []int
	bySymbol     map[string]int
	chunkHolding map[int]int // chunk id -> position id
	nextID       int

	trades []domain.TradeRecord
	equity []domain.EquitySnapshot
}

func (e *Engine) newState() *runState {
	st := &runState{
		positions:    make(map[int]*domain.Position),
		bySymbol:     make(map[string]int),
		chunkHolding: make(map[int]int),
		nextID:       1,
	}
	switch e.variant {
	case domain.VariantChunk:
		st.chunks = allocation.NewChunkPool(e.cfg.StartCapital, e.cfg.NumberOfChunks)
		st.alloc = st.chunks
	default:
		st.alloc = allocation.NewGlobalPool(e.cfg.StartCapital, e.cfg.NumberOfChunks)
	}
	return st
}

// Run simulates every day in order. Each day: exits are evaluated, exits are
// applied, at most one entry is made, and the equity snapshot is taken.
// Positions still open at the end are valued at the last close, not sold.
//
// Cancellation is checked at each day boundary. A cancelled run returns the
// result up to the last completed day together with the context error.
func (e *Engine) Run(ctx context.Context) (*domain.RunResult, error) {
	st := e.newState()
	totalDays := e.TotalDays()

	e.log.Info().
		Int("days", totalDays).
		Int("symbols", len(e.symbols)).
		Float64("start_capital", e.cfg.StartCapital).
		Int("chunks", e.cfg.NumberOfChunks).
		Msg("simulation started")

	for day := 0; day < totalDays; day++ {
		if err := ctx.Err(); err != nil {
			result := e.finish(st, false)
			e.log.Warn().Int("day", day).Err(err).Msg("simulation cancelled")
			return result, err
		}

		st.alloc.BeginDay(day)
		sold := e.processExits(st, day)
		e.processEntry(st, day, sold)
		st.equity = append(st.equity, e.snapshot(st, day))

		if e.progress != nil && e.progressEvery > 0 && (day+1)%e.progressEvery == 0 && day+1 < totalDays {
			e.progress(e.progressOf(st, totalDays, false))
		}
	}

	result := e.finish(st, true)
	if e.progress != nil {
		e.progress(e.progressOf(st, totalDays, true))
	}

	e.log.Info().
		Float64("final_capital", result.Metrics.FinalCapital).
		Float64("total_return_pct", result.Metrics.TotalReturnPct).
		Int("trades", len(result.Trades)).
		Int("open_positions", len(result.OpenPositions)).
		Msg("simulation finished")

	return result, nil
}

// evaluated returns the ids of positions checked for exit today, in opening order.
func (e *Engine) evaluated(st *runState) []int {
	if st.chunks == nil {
		return slices.Clone(st.order)
	}
	if id, ok := st.chunkHolding[st.chunks.ActiveChunkID()]; ok {
		return []int{id}
	}
	return nil
}

// processExits marks every evaluated position at or above the profit target,
// then closes the marked ones most recently opened first.
// Returns the symbols sold today.
func (e *Engine) processExits(st *runState, day int) map[string]struct{} {
	var marked []int
	for _, id := range e.evaluated(st) {
		p := st.positions[id]
		px, ok := lookup.CloseAt(e.series, p.Symbol, day)
		if !ok {
			continue
		}
		if p.ProfitPct(px) >= e.cfg.ProfitTargetPct {
			marked = append(marked, id)
		}
	}

	if len(marked) == 0 {
		return nil
	}

	sold := make(map[string]struct{}, len(marked))
	for i := len(marked) - 1; i >= 0; i-- {
		sold[st.positions[marked[i]].Symbol] = struct{}{}
		e.closePosition(st, marked[i], day)
	}
	return sold
}

func (e *Engine) closePosition(st *runState, id, day int) {
	p := st.positions[id]
	bar, _ := e.series.Bar(p.Symbol, day)

	sellValue := float64(p.Quantity) * bar.Close
	profit := sellValue - p.InvestedAmount
	st.alloc.RecordSell(sellValue, p.InvestedAmount)

	delete(st.positions, id)
	delete(st.bySymbol, p.Symbol)
	if p.ChunkID != domain.NoChunk {
		delete(st.chunkHolding, p.ChunkID)
	}
	st.order = slices.DeleteFunc(st.order, func(v int) bool { return v == id })

	rec := domain.SellRecord{
		TradeBase: domain.TradeBase{
			Day:          day,
			Date:         e.series.Date(day),
			Symbol:       p.Symbol,
			Quantity:     p.Quantity,
			Price:        bar.Close,
			Amount:       sellValue,
			CapitalAfter: st.alloc.TotalCapital(),
			ChunkID:      p.ChunkID,
		},
		BuyPrice:    p.BuyPrice,
		Profit:      profit,
		ProfitPct:   p.ProfitPct(bar.Close),
		HoldingDays: day - p.StartDay,
	}
	st.trades = append(st.trades, rec)

	e.log.Debug().
		Int("day", day).
		Str("symbol", p.Symbol).
		Int64("qty", p.Quantity).
		Float64("price", bar.Close).
		Float64("profit", profit).
		Int("chunk", p.ChunkID).
		Msg("sell")
}

// processEntry opens at most one position. Symbols held or sold today are not
// bought. In the chunk variant only an idle active chunk that did not sell
// today may buy.
func (e *Engine) processEntry(st *runState, day int, soldToday map[string]struct{}) {
	chunkID := domain.NoChunk
	if st.chunks != nil {
		if len(soldToday) > 0 || !st.chunks.ActiveIdle() {
			return
		}
		chunkID = st.chunks.ActiveChunkID()
	}

	amount := st.alloc.AvailableInvestmentAmount()
	if amount <= 0 {
		return
	}

	cand, ok := e.selector.SelectExcluding(e.symbols, day, func(sym string) bool {
		_, held := st.bySymbol[sym]
		_, sold := soldToday[sym]
		return held || sold
	})
	if !ok {
		return
	}

	qty := int64(math.Floor(amount / cand.Close))
	if qty <= 0 {
		return
	}
	cost := float64(qty) * cand.Close
	if err := st.alloc.RecordBuy(cost); err != nil {
		e.log.Debug().Err(err).Int("day", day).Str("symbol", cand.Symbol).Msg("entry skipped")
		return
	}

	p := &domain.Position{
		ID:             st.nextID,
		Symbol:         cand.Symbol,
		Quantity:       qty,
		BuyPrice:       cand.Close,
		BuyDate:        e.series.Date(day),
		StartDay:       day,
		InvestedAmount: cost,
		ChunkID:        chunkID,
	}
	st.nextID++
	st.positions[p.ID] = p
	st.order = append(st.order, p.ID)
	st.bySymbol[p.Symbol] = p.ID
	if chunkID != domain.NoChunk {
		st.chunkHolding[chunkID] = p.ID
	}

	st.trades = append(st.trades, domain.BuyRecord{TradeBase: domain.TradeBase{
		Day:          day,
		Date:         p.BuyDate,
		Symbol:       p.Symbol,
		Quantity:     qty,
		Price:        cand.Close,
		Amount:       cost,
		CapitalAfter: st.alloc.TotalCapital(),
		ChunkID:      chunkID,
	}})

	e.log.Debug().
		Int("day", day).
		Str("symbol", p.Symbol).
		Int64("qty", qty).
		Float64("price", cand.Close).
		Float64("score", cand.Score).
		Int("chunk", chunkID).
		Msg("buy")
}

// snapshot values cash plus every open position at today's close, falling
// back to the invested amount when today's bar is missing.
func (e *Engine) snapshot(st *runState, day int) domain.EquitySnapshot {
	total := st.alloc.AvailableCapital()
	for _, id := range st.order {
		p := st.positions[id]
		px, ok := lookup.CloseAt(e.series, p.Symbol, day)
		total += p.MarketValue(px, ok)
	}

	return domain.EquitySnapshot{
		Day:              day,
		Date:             e.series.Date(day),
		TotalValue:       total,
		AvailableCapital: st.alloc.AvailableCapital(),
		InvestedCapital:  st.alloc.InvestedCapital(),
		OpenPositions:    len(st.order),
	}
}

func (e *Engine) progressOf(st *runState, totalDays int, done bool) Progress {
	p := Progress{
		RunID:     e.runID,
		Variant:   e.variant,
		Day:       len(st.equity),
		TotalDays: totalDays,
		Trades:    len(st.trades),
		Done:      done,
	}
	if n := len(st.equity); n > 0 {
		p.TotalValue = st.equity[n-1].TotalValue
	}
	return p
}

func (e *Engine) finish(st *runState, completed bool) *domain.RunResult {
	open := make([]domain.Position, 0, len(st.order))
	for _, id := range st.order {
		open = append(open, *st.positions[id])
	}

	var chunks []domain.Chunk
	if st.chunks != nil {
		chunks = st.chunks.Chunks()
		for i := range chunks {
			if id, ok := st.chunkHolding[chunks[i].ID]; ok {
				holding := *st.positions[id]
				chunks[i].Holding = &holding
			}
		}
	}

	daysDone := len(st.equity)
	return &domain.RunResult{
		RunID:         e.runID,
		Variant:       e.variant,
		Config:        e.cfg,
		Symbols:       append([]string(nil), e.symbols...),
		Trades:        st.trades,
		Equity:        st.equity,
		OpenPositions: open,
		Chunks:        chunks,
		Metrics:       metrics.Calculate(st.equity, e.cfg.StartCapital, daysDone),
		Stats:         metrics.TradeStatistics(st.trades),
		DaysSimulated: daysDone,
		Completed:     completed,
	}
}
