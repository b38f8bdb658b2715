package domain

import (
	"encoding/json"
	"time"
)

// Action is the kind of a trade record.
type Action string

// Action constants
const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
)

// TradeRecord is one entry of a run's append-only trade log.
// It is either a BuyRecord or a SellRecord; consumers type-switch on it.
type TradeRecord interface {
	Action() Action
	Base() TradeBase
}

// TradeBase holds the fields shared by buys and sells.
type TradeBase struct {
	Day          int       `json:"day"`
	Date         time.Time `json:"date"`
	Symbol       string    `json:"symbol"`
	Quantity     int64     `json:"quantity"`
	Price        float64   `json:"price"`
	Amount       float64   `json:"amount"`        // quantity * price
	CapitalAfter float64   `json:"capital_after"` // total capital after the trade
	ChunkID      int       `json:"chunk_id"`
}

// BuyRecord records a position being opened.
type BuyRecord struct {
	TradeBase
}

// Action implements TradeRecord.
func (BuyRecord) Action() Action { return ActionBuy }

// Base implements TradeRecord.
func (b BuyRecord) Base() TradeBase { return b.TradeBase }

// MarshalJSON adds the action tag.
func (b BuyRecord) MarshalJSON() ([]byte, error) {
	type alias BuyRecord
	return json.Marshal(struct {
		Action Action `json:"action"`
		alias
	}{ActionBuy, alias(b)})
}

// SellRecord records a position being closed.
type SellRecord struct {
	TradeBase
	BuyPrice    float64 `json:"buy_price"`
	Profit      float64 `json:"profit"`
	ProfitPct   float64 `json:"profit_pct"` // relative to BuyPrice
	HoldingDays int     `json:"holding_days"`
}

// Action implements TradeRecord.
func (SellRecord) Action() Action { return ActionSell }

// Base implements TradeRecord.
func (s SellRecord) Base() TradeBase { return s.TradeBase }

// MarshalJSON adds the action tag.
func (s SellRecord) MarshalJSON() ([]byte, error) {
	type alias SellRecord
	return json.Marshal(struct {
		Action Action `json:"action"`
		alias
	}{ActionSell, alias(s)})
}
