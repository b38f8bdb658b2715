package reporting

import (
	"time"

	"etf-chunk-lab/internal/domain"
)

// Report is a head-to-head backtest report.
type Report struct {
	GeneratedAt time.Time
	Runs        []RunRow           // one row per run, sorted by variant then run id
	Comparison  *domain.Comparison // nil unless exactly one run of each variant
	Results     []*domain.RunResult
}

// RunRow is one run's headline figures.
type RunRow struct {
	RunID          string
	Variant        domain.Variant
	DaysSimulated  int
	StartCapital   float64
	FinalCapital   float64
	ProfitLoss     float64
	TotalReturnPct float64
	CAGRPct        float64
	MaxDrawdownPct float64
	Buys           int
	Sells          int
	WinRate        float64
	AvgHoldingDays float64
	OpenPositions  int
}

func runRow(r *domain.RunResult) RunRow {
	return RunRow{
		RunID:          r.RunID,
		Variant:        r.Variant,
		DaysSimulated:  r.DaysSimulated,
		StartCapital:   r.Config.StartCapital,
		FinalCapital:   r.Metrics.FinalCapital,
		ProfitLoss:     r.Metrics.ProfitLoss,
		TotalReturnPct: r.Metrics.TotalReturnPct,
		CAGRPct:        r.Metrics.CAGRPct,
		MaxDrawdownPct: r.Metrics.MaxDrawdownPct,
		Buys:           r.Stats.Buys,
		Sells:          r.Stats.Sells,
		WinRate:        r.Stats.WinRate,
		AvgHoldingDays: r.Stats.AvgHoldingDays,
		OpenPositions:  r.Stats.Buys - r.Stats.Sells,
	}
}
