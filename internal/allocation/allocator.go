// Package allocation sizes entries and keeps the cash ledger of a run.
// Ledger arithmetic uses decimals so available + invested stays exact.
package allocation

import (
	"errors"

	"github.com/shopspring/decimal"
)

// Allocation errors.
var (
	ErrInsufficientCapital = errors.New("insufficient capital")
	ErrInvalidAmount       = errors.New("invalid amount")
)

// Allocator is the capital ledger a simulation run trades against.
// One instance belongs to exactly one run.
type Allocator interface {
	// BeginDay is called once at the start of every simulated day.
	BeginDay(day int)

	// AvailableInvestmentAmount returns the amount a new entry may use today.
	// Zero means no entry is permitted.
	AvailableInvestmentAmount() float64

	// RecordBuy debits an executed purchase.
	RecordBuy(amount float64) error

	// RecordSell credits the full sell amount and releases cost, the amount
	// the position was bought for.
	RecordSell(amount, cost float64)

	// TotalCapital is available plus invested capital.
	TotalCapital() float64

	// AvailableCapital is uninvested cash.
	AvailableCapital() float64

	// InvestedCapital is the cost basis of open positions.
	InvestedCapital() float64
}

func toDecimal(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v)
}
