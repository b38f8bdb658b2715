package domain

import "fmt"

// Stochastic simulator defaults.
const (
	DefaultWinRatePct         = 75.0
	DefaultAverageLossPct     = 3.0
	DefaultAverageHoldingDays = 90
	HoldingDaysSpread         = 20 // holding period is avg ± spread
	MinCoolingDays            = 5
	MaxCoolingDays            = 10
	MaxDeploymentsPerDay      = 2
)

// StochasticConfig parameterises the probabilistic chunk simulator.
type StochasticConfig struct {
	StartCapital       float64 `json:"start_capital"`
	NumberOfChunks     int     `json:"number_of_chunks"`
	ProfitTargetPct    float64 `json:"profit_target_pct"`
	AverageLossPct     float64 `json:"average_loss_pct"`
	WinRatePct         float64 `json:"win_rate_pct"`
	AverageHoldingDays int     `json:"average_holding_days"`
	TotalTradingDays   int     `json:"total_trading_days"`
	Seed               uint64  `json:"seed"`
}

// DefaultStochasticConfig returns the dashboard defaults.
func DefaultStochasticConfig() StochasticConfig {
	return StochasticConfig{
		StartCapital:       DefaultStartCapital,
		NumberOfChunks:     DefaultNumberOfChunks,
		ProfitTargetPct:    DefaultProfitTargetPct,
		AverageLossPct:     DefaultAverageLossPct,
		WinRatePct:         DefaultWinRatePct,
		AverageHoldingDays: DefaultAverageHoldingDays,
		TotalTradingDays:   TradingDaysPerYear,
	}
}

// Validate checks the fatal configuration errors.
func (c StochasticConfig) Validate() error {
	if c.TotalTradingDays <= 0 {
		return fmt.Errorf("%w: total trading days must be positive, got %d", ErrInvalidConfig, c.TotalTradingDays)
	}
	if c.NumberOfChunks <= 0 {
		return fmt.Errorf("%w: number of chunks must be positive, got %d", ErrInvalidConfig, c.NumberOfChunks)
	}
	if c.AverageHoldingDays <= 0 {
		return fmt.Errorf("%w: average holding days must be positive, got %d", ErrInvalidConfig, c.AverageHoldingDays)
	}
	if c.WinRatePct < 0 || c.WinRatePct > 100 {
		return fmt.Errorf("%w: win rate must be within [0, 100], got %.2f", ErrInvalidConfig, c.WinRatePct)
	}
	return nil
}

// ChunkSummary is the per-chunk outcome of a stochastic run.
type ChunkSummary struct {
	ChunkID        int     `json:"chunk_id"`
	InitialCapital float64 `json:"initial_capital"`
	FinalCapital   float64 `json:"final_capital"`
	Trades         int     `json:"trades"`
	Wins           int     `json:"wins"`
	Losses         int     `json:"losses"`
	TotalProfit    float64 `json:"total_profit"`
	ROIPct         float64 `json:"roi_pct"`
}

// StochasticSummary aggregates a stochastic run.
type StochasticSummary struct {
	FinalCapital          float64 `json:"final_capital"`
	TotalProfit           float64 `json:"total_profit"`
	ROIPct                float64 `json:"roi_pct"`
	TotalDeployments      int     `json:"total_deployments"`
	CompletedTrades       int     `json:"completed_trades"`
	ActualWinRatePct      float64 `json:"actual_win_rate_pct"`
	AvgHoldingDays        float64 `json:"avg_holding_days"`
	CapitalUtilizationPct float64 `json:"capital_utilization_pct"`
	BestChunk             int     `json:"best_chunk"`
	WorstChunk            int     `json:"worst_chunk"`
}

// CompoundingBaseline is the single-pool comparison for a stochastic run.
type CompoundingBaseline struct {
	FinalCapital float64 `json:"final_capital"`
	TotalProfit  float64 `json:"total_profit"`
	ROIPct       float64 `json:"roi_pct"`
	Trades       int     `json:"trades"`
}
