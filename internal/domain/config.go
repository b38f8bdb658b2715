package domain

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig is returned when a simulation cannot start with the given parameters.
var ErrInvalidConfig = errors.New("invalid simulation config")

// Variant identifies a capital allocation strategy.
type Variant string

// Variant constants
const (
	VariantGlobal Variant = "GLOBAL_COMPOUNDING" // single shared capital pool
	VariantChunk  Variant = "INDEPENDENT_CHUNK"  // fixed per-chunk capital slices
)

// Valid reports whether v is a known variant.
func (v Variant) Valid() bool {
	return v == VariantGlobal || v == VariantChunk
}

// Dashboard defaults.
const (
	DefaultStartCapital        = 1_000_000.0
	DefaultNumberOfChunks      = 50
	DefaultProfitTargetPct     = 6.0
	DefaultTotalTradingDays    = 1000
	DefaultMovingAverageWindow = 20
	TradingDaysPerYear         = 250
)

// SimulationConfig holds the parameters of one price-driven simulation run.
// It is immutable for the duration of a run.
type SimulationConfig struct {
	StartCapital        float64 `json:"start_capital"`
	NumberOfChunks      int     `json:"number_of_chunks"`
	ProfitTargetPct     float64 `json:"profit_target_pct"`
	TotalTradingDays    int     `json:"total_trading_days"`
	MovingAverageWindow int     `json:"moving_average_window"`
}

// DefaultSimulationConfig returns the dashboard defaults.
func DefaultSimulationConfig() SimulationConfig {
	return SimulationConfig{
		StartCapital:        DefaultStartCapital,
		NumberOfChunks:      DefaultNumberOfChunks,
		ProfitTargetPct:     DefaultProfitTargetPct,
		TotalTradingDays:    DefaultTotalTradingDays,
		MovingAverageWindow: DefaultMovingAverageWindow,
	}
}

// Validate checks the fatal configuration errors.
// A non-positive start capital is not an error: the run proceeds and never trades.
func (c SimulationConfig) Validate() error {
	if c.TotalTradingDays <= 0 {
		return fmt.Errorf("%w: total trading days must be positive, got %d", ErrInvalidConfig, c.TotalTradingDays)
	}
	if c.NumberOfChunks <= 0 {
		return fmt.Errorf("%w: number of chunks must be positive, got %d", ErrInvalidConfig, c.NumberOfChunks)
	}
	if c.MovingAverageWindow <= 0 {
		return fmt.Errorf("%w: moving average window must be positive, got %d", ErrInvalidConfig, c.MovingAverageWindow)
	}
	return nil
}

// WithDefaults fills zero-valued optional fields.
func (c SimulationConfig) WithDefaults() SimulationConfig {
	if c.MovingAverageWindow == 0 {
		c.MovingAverageWindow = DefaultMovingAverageWindow
	}
	return c
}
