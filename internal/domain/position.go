package domain

import "time"

// Position is an open holding of one symbol.
type Position struct {
	ID             int       `json:"id"`
	Symbol         string    `json:"symbol"`
	Quantity       int64     `json:"quantity"`
	BuyPrice       float64   `json:"buy_price"`
	BuyDate        time.Time `json:"buy_date"`
	StartDay       int       `json:"start_day"`
	InvestedAmount float64   `json:"invested_amount"` // quantity * buy price
	ChunkID        int       `json:"chunk_id"`        // 1-based; NoChunk in the global variant
}

// MarketValue values the position at close, or at its cost when no close is available.
func (p *Position) MarketValue(px float64, ok bool) float64 {
	if !ok || px <= 0 {
		return p.InvestedAmount
	}
	return float64(p.Quantity) * px
}

// ProfitPct returns the percentage gain of close over the buy price.
func (p *Position) ProfitPct(px float64) float64 {
	if p.BuyPrice <= 0 {
		return 0
	}
	return (px - p.BuyPrice) / p.BuyPrice * 100
}

// NoChunk marks a position opened from the global pool.
const NoChunk = 0

// Chunk is one independent slice of capital.
type Chunk struct {
	ID             int       `json:"id"`      // 1-based
	Capital        float64   `json:"capital"` // cash plus cost of the holding
	InitialCapital float64   `json:"initial_capital"`
	Holding        *Position `json:"holding,omitempty"`
}
