package ingestion

import (
	"errors"
	"sort"
	"strings"

	"etf-chunk-lab/internal/domain"
)

// ErrInvalidOrdering is returned when bars are not properly ordered.
var ErrInvalidOrdering = errors.New("bars are not in deterministic order")

// SortBars orders bars by (symbol ASC, date ASC).
func SortBars(bars []*domain.PriceBar) {
	sort.SliceStable(bars, func(i, j int) bool {
		return compareBars(bars[i], bars[j]) < 0
	})
}

// ValidateBarOrdering checks that bars are strictly ordered by (symbol, date).
// Returns ErrInvalidOrdering if not.
func ValidateBarOrdering(bars []*domain.PriceBar) error {
	for i := 1; i < len(bars); i++ {
		if compareBars(bars[i-1], bars[i]) >= 0 {
			return ErrInvalidOrdering
		}
	}
	return nil
}

// compareBars returns:
//   - negative if a < b
//   - zero if a == b
//   - positive if a > b
//
// Order: (symbol ASC, date ASC)
func compareBars(a, b *domain.PriceBar) int {
	if c := strings.Compare(a.Symbol, b.Symbol); c != 0 {
		return c
	}
	return a.Date.Compare(b.Date)
}
