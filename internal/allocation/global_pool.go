package allocation

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// GlobalPool is a single shared capital pool split into numberOfChunks slots.
// Each entry is sized as total capital divided by the free slots, so profits
// compound into every later entry.
type GlobalPool struct {
	slots     int
	open      int
	available decimal.Decimal
	invested  decimal.Decimal
}

// NewGlobalPool creates a pool holding startCapital in cash.
func NewGlobalPool(startCapital float64, numberOfChunks int) *GlobalPool {
	return &GlobalPool{
		slots:     numberOfChunks,
		available: toDecimal(startCapital),
		invested:  decimal.Zero,
	}
}

// BeginDay implements Allocator. The pool has no per-day state.
func (p *GlobalPool) BeginDay(int) {}

// OpenPositions returns the number of occupied slots.
func (p *GlobalPool) OpenPositions() int {
	return p.open
}

// FreeSlots returns the number of unoccupied slots.
func (p *GlobalPool) FreeSlots() int {
	if free := p.slots - p.open; free > 0 {
		return free
	}
	return 0
}

// AvailableInvestmentAmount implements Allocator.
// Returns total / free slots, or 0 when no slot is free or the amount exceeds cash.
func (p *GlobalPool) AvailableInvestmentAmount() float64 {
	free := p.FreeSlots()
	if free == 0 {
		return 0
	}
	total := p.available.Add(p.invested)
	if !total.IsPositive() {
		return 0
	}
	amount := total.Div(decimal.NewFromInt(int64(free)))
	if amount.GreaterThan(p.available) {
		return 0
	}
	return amount.InexactFloat64()
}

// RecordBuy implements Allocator.
func (p *GlobalPool) RecordBuy(amount float64) error {
	a := toDecimal(amount)
	if !a.IsPositive() {
		return fmt.Errorf("%w: %v", ErrInvalidAmount, amount)
	}
	if a.GreaterThan(p.available) {
		return fmt.Errorf("%w: need %s, have %s", ErrInsufficientCapital, a.StringFixed(2), p.available.StringFixed(2))
	}
	if p.FreeSlots() == 0 {
		return fmt.Errorf("%w: no free slot", ErrInsufficientCapital)
	}

	p.available = p.available.Sub(a)
	p.invested = p.invested.Add(a)
	p.open++
	return nil
}

// RecordSell implements Allocator.
func (p *GlobalPool) RecordSell(amount, cost float64) {
	p.available = p.available.Add(toDecimal(amount))
	p.invested = p.invested.Sub(toDecimal(cost))
	if p.open > 0 {
		p.open--
	}
}

// TotalCapital implements Allocator.
func (p *GlobalPool) TotalCapital() float64 {
	return p.available.Add(p.invested).InexactFloat64()
}

// AvailableCapital implements Allocator.
func (p *GlobalPool) AvailableCapital() float64 {
	return p.available.InexactFloat64()
}

// InvestedCapital implements Allocator.
func (p *GlobalPool) InvestedCapital() float64 {
	return p.invested.InexactFloat64()
}

var _ Allocator = (*GlobalPool)(nil)
