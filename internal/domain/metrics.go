package domain

// Metrics summarises a run's equity curve.
type Metrics struct {
	TotalReturnPct float64 `json:"total_return_pct"`
	CAGRPct        float64 `json:"cagr_pct"`
	MaxDrawdownPct float64 `json:"max_drawdown_pct"`
	ProfitLoss     float64 `json:"profit_loss"`
	FinalCapital   float64 `json:"final_capital"`
}

// TradeStats summarises a run's trade log.
type TradeStats struct {
	Buys                 int     `json:"buys"`
	Sells                int     `json:"sells"`
	Wins                 int     `json:"wins"`
	Losses               int     `json:"losses"`
	WinRate              float64 `json:"win_rate"` // wins / sells
	RealizedProfit       float64 `json:"realized_profit"`
	AvgProfitPct         float64 `json:"avg_profit_pct"`
	AvgHoldingDays       float64 `json:"avg_holding_days"`
	MedianHoldingDays    float64 `json:"median_holding_days"`
	P90HoldingDays       float64 `json:"p90_holding_days"`
	MaxConsecutiveLosses int     `json:"max_consecutive_losses"`
}

// Comparison holds the head-to-head result of both variants over the same history.
type Comparison struct {
	Global          *RunResult `json:"global"`
	Chunk           *RunResult `json:"chunk"`
	Winner          Variant    `json:"winner"`            // empty on a tie
	ReturnSpreadPct float64    `json:"return_spread_pct"` // global minus chunk total return
	FinalCapitalGap float64    `json:"final_capital_gap"` // global minus chunk final capital
}
