package lookup

import (
	"errors"
	"sort"
	"time"

	"etf-chunk-lab/internal/domain"
)

// Errors returned by lookup functions.
var (
	ErrNoPriceData = errors.New("no price data available")
)

// PriceSeries is read-only, day-indexed price history for a fixed symbol universe.
// Day 0 is the first trading day. Implementations must be safe for concurrent reads.
type PriceSeries interface {
	// Bar returns the bar for symbol on day. ok is false when the bar is missing.
	Bar(symbol string, day int) (domain.PriceBar, bool)

	// Symbols returns the symbol universe in a stable order.
	Symbols() []string

	// Len returns the number of trading days covered.
	Len() int

	// Date returns the calendar date of a trading day.
	Date(day int) time.Time
}

// History is an in-memory PriceSeries. It is never mutated after construction.
type History struct {
	dates   []time.Time
	symbols []string
	bars    map[string][]domain.PriceBar // aligned to dates; zero bar = missing
}

// NewHistory builds a history from aligned per-symbol bars.
// Each series may be shorter than dates; the tail is then missing.
func NewHistory(dates []time.Time, symbols []string, bars map[string][]domain.PriceBar) *History {
	h := &History{
		dates:   append([]time.Time(nil), dates...),
		symbols: append([]string(nil), symbols...),
		bars:    make(map[string][]domain.PriceBar, len(bars)),
	}
	for sym, series := range bars {
		h.bars[sym] = append([]domain.PriceBar(nil), series...)
	}
	return h
}

// AlignByDate builds a history from unordered bars of many symbols.
// The calendar is the union of all bar dates; a symbol without a bar on a
// calendar day has a missing bar there. Symbols are ordered alphabetically.
// Later duplicates of (symbol, date) are ignored.
func AlignByDate(bars []*domain.PriceBar) (*History, error) {
	if len(bars) == 0 {
		return nil, ErrNoPriceData
	}

	dateSet := make(map[time.Time]struct{})
	symbolSet := make(map[string]struct{})
	for _, b := range bars {
		dateSet[truncateDay(b.Date)] = struct{}{}
		symbolSet[b.Symbol] = struct{}{}
	}

	dates := make([]time.Time, 0, len(dateSet))
	for d := range dateSet {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	dayIndex := make(map[time.Time]int, len(dates))
	for i, d := range dates {
		dayIndex[d] = i
	}

	symbols := make([]string, 0, len(symbolSet))
	for s := range symbolSet {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)

	aligned := make(map[string][]domain.PriceBar, len(symbols))
	for _, s := range symbols {
		aligned[s] = make([]domain.PriceBar, len(dates))
	}
	for _, b := range bars {
		day := dayIndex[truncateDay(b.Date)]
		if aligned[b.Symbol][day].Symbol != "" {
			continue
		}
		aligned[b.Symbol][day] = *b
	}

	return &History{dates: dates, symbols: symbols, bars: aligned}, nil
}

// FromCloses builds a history from close prices only, one calendar day per index
// starting at start. A close of 0 marks a missing bar.
func FromCloses(start time.Time, symbols []string, closes map[string][]float64) *History {
	n := 0
	for _, c := range closes {
		if len(c) > n {
			n = len(c)
		}
	}

	dates := make([]time.Time, n)
	for i := range dates {
		dates[i] = truncateDay(start).AddDate(0, 0, i)
	}

	bars := make(map[string][]domain.PriceBar, len(closes))
	for sym, series := range closes {
		out := make([]domain.PriceBar, len(series))
		for i, c := range series {
			if c <= 0 {
				continue
			}
			out[i] = domain.PriceBar{Symbol: sym, Date: dates[i], Open: c, High: c, Low: c, Close: c}
		}
		bars[sym] = out
	}

	return &History{dates: dates, symbols: append([]string(nil), symbols...), bars: bars}
}

// Bar implements PriceSeries.
func (h *History) Bar(symbol string, day int) (domain.PriceBar, bool) {
	series, ok := h.bars[symbol]
	if !ok || day < 0 || day >= len(series) {
		return domain.PriceBar{}, false
	}
	b := series[day]
	return b, b.HasClose()
}

// Symbols implements PriceSeries.
func (h *History) Symbols() []string {
	return append([]string(nil), h.symbols...)
}

// Len implements PriceSeries.
func (h *History) Len() int {
	return len(h.dates)
}

// Date implements PriceSeries. Days past the calendar extrapolate by one day each.
func (h *History) Date(day int) time.Time {
	if len(h.dates) == 0 {
		return time.Time{}
	}
	if day < 0 {
		return h.dates[0]
	}
	if day >= len(h.dates) {
		return h.dates[len(h.dates)-1].AddDate(0, 0, day-len(h.dates)+1)
	}
	return h.dates[day]
}

// SeriesLen returns the number of day slots stored for symbol.
func (h *History) SeriesLen(symbol string) int {
	return len(h.bars[symbol])
}

// CloseAt returns the close of symbol on day.
func CloseAt(ps PriceSeries, symbol string, day int) (float64, bool) {
	b, ok := ps.Bar(symbol, day)
	if !ok {
		return 0, false
	}
	return b.Close, true
}

// Closes returns the close series of symbol over the whole calendar; missing bars are 0.
func Closes(ps PriceSeries, symbol string) []float64 {
	out := make([]float64, ps.Len())
	for day := range out {
		if b, ok := ps.Bar(symbol, day); ok {
			out[day] = b.Close
		}
	}
	return out
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

var _ PriceSeries = (*History)(nil)
