// Package stochastic models chunk deployment probabilistically, without prices.
package stochastic

import (
	"context"
	"math"

	"github.com/rs/zerolog"

	"etf-chunk-lab/internal/domain"
	"etf-chunk-lab/internal/metrics"
)

// ErrInvalidConfig is returned for configurations a simulation cannot start with.
var ErrInvalidConfig = domain.ErrInvalidConfig

// Result is the outcome of one stochastic run.
type Result struct {
	RunID    string                     `json:"run_id,omitempty"`
	Config   domain.StochasticConfig    `json:"config"`
	Trades   []domain.TradeRecord       `json:"trades"`
	Equity   []domain.EquitySnapshot    `json:"equity"`
	Metrics  domain.Metrics             `json:"metrics"`
	Stats    domain.TradeStats          `json:"stats"`
	Chunks   []domain.ChunkSummary      `json:"chunks"`
	Summary  domain.StochasticSummary   `json:"summary"`
	Baseline domain.CompoundingBaseline `json:"baseline"`
}

// Options contains optional settings for a Simulator.
type Options struct {
	RunID  string
	Rand   RandomSource // defaults to NewSeededSource(cfg.Seed)
	Logger *zerolog.Logger
}

// Simulator runs the deploy, hold, exit and cool cycle of every chunk.
//
// Each day: expired deployments resolve as a win (capital × target%) with the
// configured probability, otherwise as a loss (capital × average loss%); the
// chunk then cools for 5 to 10 days. Ready chunks deploy in queue order, one
// or two per day. Deployments still open on the final day resolve on it.
type Simulator struct {
	cfg   domain.StochasticConfig
	rng   RandomSource
	log   zerolog.Logger
	runID string
}

// NewSimulator validates cfg and builds a simulator.
func NewSimulator(cfg domain.StochasticConfig, opts Options) (*Simulator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	rng := opts.Rand
	if rng == nil {
		rng = NewSeededSource(cfg.Seed)
	}
	log := zerolog.Nop()
	if opts.Logger != nil {
		log = *opts.Logger
	}

	return &Simulator{
		cfg:   cfg,
		rng:   rng,
		log:   log.With().Str("component", "stochastic").Str("run_id", opts.RunID).Logger(),
		runID: opts.RunID,
	}, nil
}

type chunkState struct {
	summary   domain.ChunkSummary
	capital   float64
	active    bool
	deployDay int
	exitDay   int
}

type cooling struct {
	chunk        *chunkState
	availableDay int
}

type simState struct {
	chunks  []*chunkState
	queue   []*chunkState
	cooling []cooling

	trades      []domain.TradeRecord
	equity      []domain.EquitySnapshot
	deployments int
}

// Run simulates cfg.TotalTradingDays days. Cancellation is checked at each
// day boundary; a cancelled run returns its partial result with the context error.
func (s *Simulator) Run(ctx context.Context) (*Result, error) {
	st := s.newState()
	last := s.cfg.TotalTradingDays - 1

	for day := 0; day <= last; day++ {
		if err := ctx.Err(); err != nil {
			return s.finish(st), err
		}

		s.processExits(st, day)
		s.releaseCooled(st, day)
		if day < last {
			s.deploy(st, day)
		} else {
			s.resolveRemaining(st, day)
		}
		st.equity = append(st.equity, s.snapshot(st, day))
	}

	result := s.finish(st)
	s.log.Info().
		Int("deployments", result.Summary.TotalDeployments).
		Float64("final_capital", result.Summary.FinalCapital).
		Float64("roi_pct", result.Summary.ROIPct).
		Msg("stochastic simulation finished")
	return result, nil
}

func (s *Simulator) newState() *simState {
	per := s.cfg.StartCapital / float64(s.cfg.NumberOfChunks)
	st := &simState{chunks: make([]*chunkState, s.cfg.NumberOfChunks)}
	for i := range st.chunks {
		c := &chunkState{
			summary: domain.ChunkSummary{ChunkID: i + 1, InitialCapital: per},
			capital: per,
		}
		st.chunks[i] = c
		st.queue = append(st.queue, c)
	}
	return st
}

func (s *Simulator) processExits(st *simState, day int) {
	for _, c := range st.chunks {
		if !c.active || c.exitDay > day {
			continue
		}
		s.exit(st, c, day)

		available := day + uniformInt(s.rng, domain.MinCoolingDays, domain.MaxCoolingDays)
		if available < s.cfg.TotalTradingDays {
			st.cooling = append(st.cooling, cooling{chunk: c, availableDay: available})
		}
	}
}

func (s *Simulator) releaseCooled(st *simState, day int) {
	kept := st.cooling[:0]
	for _, cl := range st.cooling {
		if cl.availableDay <= day {
			st.queue = append(st.queue, cl.chunk)
			continue
		}
		kept = append(kept, cl)
	}
	st.cooling = kept
}

func (s *Simulator) deploy(st *simState, day int) {
	limit := uniformInt(s.rng, 1, domain.MaxDeploymentsPerDay)
	for deployed := 0; len(st.queue) > 0 && deployed < limit; {
		c := st.queue[0]
		st.queue = st.queue[1:]
		if c.active {
			continue
		}

		avg := s.cfg.AverageHoldingDays
		holding := uniformInt(s.rng, max(1, avg-domain.HoldingDaysSpread), avg+domain.HoldingDaysSpread)
		c.active = true
		c.deployDay = day
		c.exitDay = day + holding
		st.deployments++
		deployed++

		st.trades = append(st.trades, domain.BuyRecord{TradeBase: domain.TradeBase{
			Day:          day,
			Quantity:     1,
			Price:        c.capital,
			Amount:       c.capital,
			CapitalAfter: totalCapital(st),
			ChunkID:      c.summary.ChunkID,
		}})
	}
}

func (s *Simulator) resolveRemaining(st *simState, day int) {
	for _, c := range st.chunks {
		if c.active {
			s.exit(st, c, day)
		}
	}
}

func (s *Simulator) exit(st *simState, c *chunkState, day int) {
	start := c.capital
	profit := -start * s.cfg.AverageLossPct / 100
	win := s.rng.Float64() < s.cfg.WinRatePct/100
	if win {
		profit = start * s.cfg.ProfitTargetPct / 100
		c.summary.Wins++
	} else {
		c.summary.Losses++
	}

	c.capital = start + profit
	c.active = false
	c.summary.Trades++
	c.summary.TotalProfit += profit

	var pct float64
	if start != 0 {
		pct = profit / start * 100
	}
	st.trades = append(st.trades, domain.SellRecord{
		TradeBase: domain.TradeBase{
			Day:          day,
			Quantity:     1,
			Price:        c.capital,
			Amount:       c.capital,
			CapitalAfter: totalCapital(st),
			ChunkID:      c.summary.ChunkID,
		},
		BuyPrice:    start,
		Profit:      profit,
		ProfitPct:   pct,
		HoldingDays: day - c.deployDay,
	})
}

func (s *Simulator) snapshot(st *simState, day int) domain.EquitySnapshot {
	snap := domain.EquitySnapshot{Day: day}
	for _, c := range st.chunks {
		if c.active {
			snap.InvestedCapital += c.capital
			snap.OpenPositions++
		} else {
			snap.AvailableCapital += c.capital
		}
	}
	snap.TotalValue = snap.AvailableCapital + snap.InvestedCapital
	return snap
}

func (s *Simulator) finish(st *simState) *Result {
	chunks := make([]domain.ChunkSummary, len(st.chunks))
	for i, c := range st.chunks {
		cs := c.summary
		cs.FinalCapital = c.capital
		if cs.InitialCapital > 0 {
			cs.ROIPct = (cs.FinalCapital - cs.InitialCapital) / cs.InitialCapital * 100
		}
		chunks[i] = cs
	}

	r := &Result{
		RunID:   s.runID,
		Config:  s.cfg,
		Trades:  st.trades,
		Equity:  st.equity,
		Metrics: metrics.Calculate(st.equity, s.cfg.StartCapital, len(st.equity)),
		Stats:   metrics.TradeStatistics(st.trades),
		Chunks:  chunks,
	}
	r.Summary = summarize(s.cfg, r, st.deployments)
	r.Baseline = SimpleCompounding(r.Summary, s.cfg, s.rng)
	return r
}

func summarize(cfg domain.StochasticConfig, r *Result, deployments int) domain.StochasticSummary {
	sum := domain.StochasticSummary{
		TotalDeployments: deployments,
		CompletedTrades:  r.Stats.Sells,
		AvgHoldingDays:   r.Stats.AvgHoldingDays,
	}
	wins := 0
	for _, c := range r.Chunks {
		sum.FinalCapital += c.FinalCapital
		sum.TotalProfit += c.TotalProfit
		wins += c.Wins
	}
	if cfg.StartCapital > 0 {
		sum.ROIPct = (sum.FinalCapital - cfg.StartCapital) / cfg.StartCapital * 100
	}
	if sum.CompletedTrades > 0 {
		sum.ActualWinRatePct = float64(wins) / float64(sum.CompletedTrades) * 100
	}

	maxDeployments := (cfg.TotalTradingDays / cfg.AverageHoldingDays) * cfg.NumberOfChunks
	if maxDeployments > 0 {
		sum.CapitalUtilizationPct = float64(deployments) / float64(maxDeployments) * 100
	}

	best, worst := math.Inf(-1), math.Inf(1)
	for _, c := range r.Chunks {
		if c.TotalProfit > best {
			best, sum.BestChunk = c.TotalProfit, c.ChunkID
		}
		if c.TotalProfit < worst {
			worst, sum.WorstChunk = c.TotalProfit, c.ChunkID
		}
	}
	return sum
}

// SimpleCompounding replays the same number of completed trades against one
// pool, sizing every trade at pool / NumberOfChunks and winning with the
// realised win rate.
func SimpleCompounding(summary domain.StochasticSummary, cfg domain.StochasticConfig, rng RandomSource) domain.CompoundingBaseline {
	capital := cfg.StartCapital
	for i := 0; i < summary.CompletedTrades; i++ {
		amount := capital / float64(cfg.NumberOfChunks)
		if rng.Float64() < summary.ActualWinRatePct/100 {
			capital += amount * cfg.ProfitTargetPct / 100
		} else {
			capital -= amount * cfg.AverageLossPct / 100
		}
	}

	b := domain.CompoundingBaseline{
		FinalCapital: capital,
		TotalProfit:  capital - cfg.StartCapital,
		Trades:       summary.CompletedTrades,
	}
	if cfg.StartCapital > 0 {
		b.ROIPct = b.TotalProfit / cfg.StartCapital * 100
	}
	return b
}

func totalCapital(st *simState) float64 {
	total := 0.0
	for _, c := range st.chunks {
		total += c.capital
	}
	return total
}
