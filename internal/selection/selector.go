// Package selection picks which ETF to buy on a given day.
package selection

import (
	"sort"

	"etf-chunk-lab/internal/indicators"
	"etf-chunk-lab/internal/lookup"
)

// Candidate is a scored ETF on one day.
type Candidate struct {
	Symbol        string  `json:"symbol"`
	Close         float64 `json:"close"`
	MovingAverage float64 `json:"moving_average"`
	Score         float64 `json:"score"` // percentage distance of close from the moving average
}

// Selector ranks ETFs by how far their close sits below the moving average.
type Selector struct {
	series lookup.PriceSeries
	ma     *indicators.Calculator
}

// NewSelector creates a selector over series using ma for the averages.
func NewSelector(series lookup.PriceSeries, ma *indicators.Calculator) *Selector {
	return &Selector{series: series, ma: ma}
}

// Rank scores every eligible candidate on day, lowest score first.
// Candidates without a close today or without a defined moving average are
// left out. Equal scores keep their input order.
func (s *Selector) Rank(candidates []string, day int) []Candidate {
	ranked := make([]Candidate, 0, len(candidates))
	for _, sym := range candidates {
		px, ok := lookup.CloseAt(s.series, sym, day)
		if !ok {
			continue
		}
		ma, ok := s.ma.At(sym, day)
		if !ok {
			continue
		}
		ranked = append(ranked, Candidate{
			Symbol:        sym,
			Close:         px,
			MovingAverage: ma,
			Score:         (px - ma) / ma * 100,
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score < ranked[j].Score
	})
	return ranked
}

// Select returns the candidate with the lowest score on day.
// ok is false when no candidate is eligible.
func (s *Selector) Select(candidates []string, day int) (Candidate, bool) {
	var (
		best  Candidate
		found bool
	)
	for _, c := range s.Rank(candidates, day) {
		if !found || c.Score < best.Score {
			best, found = c, true
		}
	}
	return best, found
}

// SelectExcluding is Select with some symbols removed from consideration.
func (s *Selector) SelectExcluding(candidates []string, day int, exclude func(symbol string) bool) (Candidate, bool) {
	if exclude == nil {
		return s.Select(candidates, day)
	}
	filtered := make([]string, 0, len(candidates))
	for _, sym := range candidates {
		if !exclude(sym) {
			filtered = append(filtered, sym)
		}
	}
	return s.Select(filtered, day)
}
