package allocation

import (
	"fmt"

	"github.com/shopspring/decimal"

	"etf-chunk-lab/internal/domain"
)

// chunkLedger is the cash state of one chunk.
type chunkLedger struct {
	id       int
	initial  decimal.Decimal
	cash     decimal.Decimal
	invested decimal.Decimal
	holding  bool
}

// ChunkPool splits start capital into independent chunks that never share cash.
// Chunks act in round-robin order: chunk (day mod N) is active on day.
type ChunkPool struct {
	chunks []*chunkLedger
	active int
}

// NewChunkPool creates numberOfChunks chunks of startCapital / numberOfChunks each.
func NewChunkPool(startCapital float64, numberOfChunks int) *ChunkPool {
	if numberOfChunks <= 0 {
		return &ChunkPool{}
	}

	per := toDecimal(startCapital).Div(decimal.NewFromInt(int64(numberOfChunks)))
	chunks := make([]*chunkLedger, numberOfChunks)
	for i := range chunks {
		chunks[i] = &chunkLedger{
			id:       i + 1,
			initial:  per,
			cash:     per,
			invested: decimal.Zero,
		}
	}
	return &ChunkPool{chunks: chunks}
}

// BeginDay implements Allocator by activating chunk day mod N.
func (p *ChunkPool) BeginDay(day int) {
	if len(p.chunks) == 0 {
		return
	}
	p.active = day % len(p.chunks)
}

// ActiveChunkID returns the 1-based id of today's active chunk.
func (p *ChunkPool) ActiveChunkID() int {
	if len(p.chunks) == 0 {
		return domain.NoChunk
	}
	return p.chunks[p.active].id
}

// ActiveIdle reports whether today's active chunk holds nothing.
func (p *ChunkPool) ActiveIdle() bool {
	if len(p.chunks) == 0 {
		return false
	}
	return !p.chunks[p.active].holding
}

// AvailableInvestmentAmount implements Allocator.
// Returns the active chunk's cash when it is idle, else 0.
func (p *ChunkPool) AvailableInvestmentAmount() float64 {
	if !p.ActiveIdle() {
		return 0
	}
	c := p.chunks[p.active]
	if !c.cash.IsPositive() {
		return 0
	}
	return c.cash.InexactFloat64()
}

// RecordBuy implements Allocator against the active chunk.
func (p *ChunkPool) RecordBuy(amount float64) error {
	if len(p.chunks) == 0 {
		return fmt.Errorf("%w: no chunks", ErrInsufficientCapital)
	}
	c := p.chunks[p.active]
	a := toDecimal(amount)
	if !a.IsPositive() {
		return fmt.Errorf("%w: %v", ErrInvalidAmount, amount)
	}
	if c.holding {
		return fmt.Errorf("%w: chunk %d already holds a position", ErrInsufficientCapital, c.id)
	}
	if a.GreaterThan(c.cash) {
		return fmt.Errorf("%w: chunk %d needs %s, has %s", ErrInsufficientCapital, c.id, a.StringFixed(2), c.cash.StringFixed(2))
	}

	c.cash = c.cash.Sub(a)
	c.invested = c.invested.Add(a)
	c.holding = true
	return nil
}

// RecordSell implements Allocator against the active chunk.
func (p *ChunkPool) RecordSell(amount, cost float64) {
	if len(p.chunks) == 0 {
		return
	}
	c := p.chunks[p.active]

	c.cash = c.cash.Add(toDecimal(amount))
	c.invested = c.invested.Sub(toDecimal(cost))
	c.holding = false
}

// TotalCapital implements Allocator.
func (p *ChunkPool) TotalCapital() float64 {
	return p.sum(func(c *chunkLedger) decimal.Decimal { return c.cash.Add(c.invested) })
}

// AvailableCapital implements Allocator.
func (p *ChunkPool) AvailableCapital() float64 {
	return p.sum(func(c *chunkLedger) decimal.Decimal { return c.cash })
}

// InvestedCapital implements Allocator.
func (p *ChunkPool) InvestedCapital() float64 {
	return p.sum(func(c *chunkLedger) decimal.Decimal { return c.invested })
}

// ChunkCash returns the cash of chunk id (1-based).
func (p *ChunkPool) ChunkCash(id int) float64 {
	if id < 1 || id > len(p.chunks) {
		return 0
	}
	return p.chunks[id-1].cash.InexactFloat64()
}

// Chunks returns a snapshot of every chunk's capital at cost. Holding is left nil.
func (p *ChunkPool) Chunks() []domain.Chunk {
	out := make([]domain.Chunk, len(p.chunks))
	for i, c := range p.chunks {
		out[i] = domain.Chunk{
			ID:             c.id,
			Capital:        c.cash.Add(c.invested).InexactFloat64(),
			InitialCapital: c.initial.InexactFloat64(),
		}
	}
	return out
}

func (p *ChunkPool) sum(f func(*chunkLedger) decimal.Decimal) float64 {
	total := decimal.Zero
	for _, c := range p.chunks {
		total = total.Add(f(c))
	}
	return total.InexactFloat64()
}

var _ Allocator = (*ChunkPool)(nil)
