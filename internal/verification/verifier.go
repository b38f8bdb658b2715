// Package verification replays stored runs and checks that the engine
// reproduces their trade logs and equity curves.
package verification

import (
	"fmt"
	"math"

	"etf-chunk-lab/internal/domain"
)

// FloatTolerance is the tolerance for float64 comparisons.
const FloatTolerance = 1e-7

// FieldDivergence represents a mismatch between stored and replayed values.
type FieldDivergence struct {
	Field    string      // e.g. "trades[3].Price" or "equity[10].TotalValue"
	Expected interface{} // stored value
	Actual   interface{} // replayed value
}

func (d FieldDivergence) String() string {
	return fmt.Sprintf("%s: stored %v, replayed %v", d.Field, d.Expected, d.Actual)
}

// VerificationResult contains the result of verifying a single run.
type VerificationResult struct {
	RunID                string
	Variant              domain.Variant
	Match                bool
	Divergences          []FieldDivergence
	StoredTrades         int
	ReplayedTrades       int
	StoredFinalCapital   float64
	ReplayedFinalCapital float64
}

// VerificationReport contains results for batch verification.
type VerificationReport struct {
	TotalRuns     int
	MatchedRuns   int
	DivergentRuns int
	Results       []VerificationResult
}

// CompareTradeLogs compares two trade logs record by record.
// Uses FloatTolerance for float64 comparisons.
func CompareTradeLogs(stored, replayed []domain.TradeRecord) []FieldDivergence {
	var divergences []FieldDivergence

	if len(stored) != len(replayed) {
		divergences = append(divergences, FieldDivergence{
			Field:    "trades.len",
			Expected: len(stored),
			Actual:   len(replayed),
		})
	}

	n := min(len(stored), len(replayed))
	for i := 0; i < n; i++ {
		prefix := fmt.Sprintf("trades[%d]", i)
		s, r := stored[i], replayed[i]

		// Action must match exactly
		if s.Action() != r.Action() {
			divergences = append(divergences, FieldDivergence{
				Field:    prefix + ".Action",
				Expected: s.Action(),
				Actual:   r.Action(),
			})
			continue
		}

		divergences = append(divergences, compareBase(prefix, s.Base(), r.Base())...)

		ss, ok := s.(domain.SellRecord)
		if !ok {
			continue
		}
		rs, ok := r.(domain.SellRecord)
		if !ok {
			continue
		}

		if !floatEquals(ss.BuyPrice, rs.BuyPrice) {
			divergences = append(divergences, FieldDivergence{prefix + ".BuyPrice", ss.BuyPrice, rs.BuyPrice})
		}
		if !floatEquals(ss.Profit, rs.Profit) {
			divergences = append(divergences, FieldDivergence{prefix + ".Profit", ss.Profit, rs.Profit})
		}
		if !floatEquals(ss.ProfitPct, rs.ProfitPct) {
			divergences = append(divergences, FieldDivergence{prefix + ".ProfitPct", ss.ProfitPct, rs.ProfitPct})
		}
		if ss.HoldingDays != rs.HoldingDays {
			divergences = append(divergences, FieldDivergence{prefix + ".HoldingDays", ss.HoldingDays, rs.HoldingDays})
		}
	}

	return divergences
}

func compareBase(prefix string, s, r domain.TradeBase) []FieldDivergence {
	var divergences []FieldDivergence

	if s.Day != r.Day {
		divergences = append(divergences, FieldDivergence{prefix + ".Day", s.Day, r.Day})
	}
	if !s.Date.Equal(r.Date) {
		divergences = append(divergences, FieldDivergence{prefix + ".Date", s.Date, r.Date})
	}
	if s.Symbol != r.Symbol {
		divergences = append(divergences, FieldDivergence{prefix + ".Symbol", s.Symbol, r.Symbol})
	}
	if s.Quantity != r.Quantity {
		divergences = append(divergences, FieldDivergence{prefix + ".Quantity", s.Quantity, r.Quantity})
	}
	if !floatEquals(s.Price, r.Price) {
		divergences = append(divergences, FieldDivergence{prefix + ".Price", s.Price, r.Price})
	}
	if !floatEquals(s.Amount, r.Amount) {
		divergences = append(divergences, FieldDivergence{prefix + ".Amount", s.Amount, r.Amount})
	}
	if !floatEquals(s.CapitalAfter, r.CapitalAfter) {
		divergences = append(divergences, FieldDivergence{prefix + ".CapitalAfter", s.CapitalAfter, r.CapitalAfter})
	}
	if s.ChunkID != r.ChunkID {
		divergences = append(divergences, FieldDivergence{prefix + ".ChunkID", s.ChunkID, r.ChunkID})
	}

	return divergences
}

// CompareEquityCurves compares two equity curves day by day.
func CompareEquityCurves(stored, replayed []domain.EquitySnapshot) []FieldDivergence {
	var divergences []FieldDivergence

	if len(stored) != len(replayed) {
		divergences = append(divergences, FieldDivergence{
			Field:    "equity.len",
			Expected: len(stored),
			Actual:   len(replayed),
		})
	}

	n := min(len(stored), len(replayed))
	for i := 0; i < n; i++ {
		prefix := fmt.Sprintf("equity[%d]", i)
		s, r := stored[i], replayed[i]

		if s.Day != r.Day {
			divergences = append(divergences, FieldDivergence{prefix + ".Day", s.Day, r.Day})
		}
		if !floatEquals(s.TotalValue, r.TotalValue) {
			divergences = append(divergences, FieldDivergence{prefix + ".TotalValue", s.TotalValue, r.TotalValue})
		}
		if !floatEquals(s.AvailableCapital, r.AvailableCapital) {
			divergences = append(divergences, FieldDivergence{prefix + ".AvailableCapital", s.AvailableCapital, r.AvailableCapital})
		}
		if !floatEquals(s.InvestedCapital, r.InvestedCapital) {
			divergences = append(divergences, FieldDivergence{prefix + ".InvestedCapital", s.InvestedCapital, r.InvestedCapital})
		}
		if s.OpenPositions != r.OpenPositions {
			divergences = append(divergences, FieldDivergence{prefix + ".OpenPositions", s.OpenPositions, r.OpenPositions})
		}
	}

	return divergences
}

// floatEquals compares two floats with tolerance.
func floatEquals(a, b float64) bool {
	return math.Abs(a-b) <= FloatTolerance
}
