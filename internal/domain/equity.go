package domain

import "time"

// EquitySnapshot is the portfolio value at the end of one simulated day.
type EquitySnapshot struct {
	Day              int       `json:"day"`
	Date             time.Time `json:"date"`
	TotalValue       float64   `json:"total_value"` // available + marked-to-market holdings
	AvailableCapital float64   `json:"available_capital"`
	InvestedCapital  float64   `json:"invested_capital"` // at cost
	OpenPositions    int       `json:"open_positions"`
}
