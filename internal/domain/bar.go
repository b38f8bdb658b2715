package domain

import "time"

// PriceBar is one daily OHLC record for a symbol.
// A bar with a non-positive close is treated as missing data.
type PriceBar struct {
	Symbol string    `json:"symbol"`
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// HasClose reports whether the bar carries a usable close price.
func (b PriceBar) HasClose() bool {
	return b.Close > 0
}
