// Package domain holds the types shared by the simulation, storage and reporting layers.
package domain

import "time"

// RunResult is everything a finished (or cancelled) simulation run produced.
type RunResult struct {
	RunID         string           `json:"run_id"`
	Variant       Variant          `json:"variant"`
	Config        SimulationConfig `json:"config"`
	Symbols       []string         `json:"symbols"`
	Trades        []TradeRecord    `json:"trades"`
	Equity        []EquitySnapshot `json:"equity"`
	OpenPositions []Position       `json:"open_positions"`
	Chunks        []Chunk          `json:"chunks,omitempty"` // chunk variant only
	Metrics       Metrics          `json:"metrics"`
	Stats         TradeStats       `json:"stats"`
	DaysSimulated int              `json:"days_simulated"`
	Completed     bool             `json:"completed"` // false when cancelled
}

// RunSummary is the persisted header of a run.
type RunSummary struct {
	RunID         string           `json:"run_id"`
	Variant       Variant          `json:"variant"`
	Config        SimulationConfig `json:"config"`
	Symbols       []string         `json:"symbols"`
	Metrics       Metrics          `json:"metrics"`
	Stats         TradeStats       `json:"stats"`
	DaysSimulated int              `json:"days_simulated"`
	Completed     bool             `json:"completed"`
	CreatedAt     time.Time        `json:"created_at"`
}

// Summary builds the persisted header for r.
func (r *RunResult) Summary(createdAt time.Time) *RunSummary {
	symbols := make([]string, len(r.Symbols))
	copy(symbols, r.Symbols)
	return &RunSummary{
		RunID:         r.RunID,
		Variant:       r.Variant,
		Config:        r.Config,
		Symbols:       symbols,
		Metrics:       r.Metrics,
		Stats:         r.Stats,
		DaysSimulated: r.DaysSimulated,
		Completed:     r.Completed,
		CreatedAt:     createdAt,
	}
}
