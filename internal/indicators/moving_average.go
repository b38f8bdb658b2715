// Package indicators computes price indicators over day-indexed history.
package indicators

import (
	"math"
	"sync"

	"github.com/markcheno/go-talib"
	"gonum.org/v1/gonum/stat"

	"etf-chunk-lab/internal/domain"
	"etf-chunk-lab/internal/lookup"
)

// Calculator computes the trailing simple moving average of close prices.
// Per-symbol series are computed once and cached; it is safe for concurrent use.
type Calculator struct {
	series lookup.PriceSeries
	window int

	mu    sync.Mutex
	cache map[string]*closeSeries
}

// closeSeries is the cached close data for one symbol.
type closeSeries struct {
	closes []float64 // 0 where the bar is missing
	gaps   []int     // gaps[i] = number of missing closes in [0, i)
	sma    []float64 // talib SMA, valid only for gap-free windows
}

// NewCalculator creates a moving average calculator. A non-positive window
// falls back to the default of 20 days.
func NewCalculator(series lookup.PriceSeries, window int) *Calculator {
	if window <= 0 {
		window = domain.DefaultMovingAverageWindow
	}
	return &Calculator{
		series: series,
		window: window,
		cache:  make(map[string]*closeSeries),
	}
}

// Window returns the averaging window in days.
func (c *Calculator) Window() int {
	return c.window
}

// At returns the moving average of symbol's close over its last window bars
// up to and including day. ok is false until symbol has window real closes,
// so calendar slots before a late listing never count toward the window.
func (c *Calculator) At(symbol string, day int) (float64, bool) {
	if day < c.window-1 || day >= c.series.Len() {
		return 0, false
	}

	s := c.load(symbol)
	if day >= len(s.closes) {
		return 0, false
	}
	if day+1-s.gaps[day+1] < c.window {
		return 0, false
	}

	start := day - c.window + 1
	if s.gaps[day+1] == s.gaps[start] {
		v := s.sma[day]
		if math.IsNaN(v) || v <= 0 {
			return 0, false
		}
		return v, true
	}

	// Gaps inside the slot window: average the last window real closes.
	valid := make([]float64, 0, c.window)
	for i := day; i >= 0 && len(valid) < c.window; i-- {
		if s.closes[i] > 0 {
			valid = append(valid, s.closes[i])
		}
	}
	return stat.Mean(valid, nil), true
}

// DistancePct returns (close - MA) / MA * 100 for symbol on day.
func (c *Calculator) DistancePct(symbol string, day int) (float64, bool) {
	px, ok := lookup.CloseAt(c.series, symbol, day)
	if !ok {
		return 0, false
	}
	ma, ok := c.At(symbol, day)
	if !ok {
		return 0, false
	}
	return (px - ma) / ma * 100, true
}

func (c *Calculator) load(symbol string) *closeSeries {
	c.mu.Lock()
	defer c.mu.Unlock()

	if s, ok := c.cache[symbol]; ok {
		return s
	}

	closes := lookup.Closes(c.series, symbol)
	gaps := make([]int, len(closes)+1)
	for i, v := range closes {
		gaps[i+1] = gaps[i]
		if v <= 0 {
			gaps[i+1]++
		}
	}

	sma := make([]float64, len(closes))
	if len(closes) >= c.window {
		sma = talib.Sma(closes, c.window)
	}

	s := &closeSeries{closes: closes, gaps: gaps, sma: sma}
	c.cache[symbol] = s
	return s
}
