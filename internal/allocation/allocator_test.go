package allocation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGlobalPool_SizesByFreeSlots(t *testing.T) {
	p := NewGlobalPool(1_000_000, 50)

	assert.InDelta(t, 20_000.0, p.AvailableInvestmentAmount(), 1e-6)

	require.NoError(t, p.RecordBuy(19_950))
	assert.Equal(t, 1, p.OpenPositions())
	assert.Equal(t, 49, p.FreeSlots())

	// total is unchanged by a buy, so the next slot gets total / 49
	assert.InDelta(t, 1_000_000.0/49, p.AvailableInvestmentAmount(), 1e-6)
}

func TestGlobalPool_SellReturnsFullValue(t *testing.T) {
	p := NewGlobalPool(10_000, 2)

	require.NoError(t, p.RecordBuy(5_000))
	p.RecordSell(5_300, 5_000)

	assert.InDelta(t, 10_300.0, p.AvailableCapital(), 1e-9)
	assert.InDelta(t, 0.0, p.InvestedCapital(), 1e-9)
	assert.InDelta(t, 10_300.0, p.TotalCapital(), 1e-9)
	assert.Equal(t, 0, p.OpenPositions())
}

func TestGlobalPool_Conservation(t *testing.T) {
	p := NewGlobalPool(100_000, 4)

	buys := []float64{24_990.5, 25_001.25, 12_345.67}
	for _, b := range buys {
		require.NoError(t, p.RecordBuy(b))
		assert.InDelta(t, p.TotalCapital(), p.AvailableCapital()+p.InvestedCapital(), 1e-9)
		assert.InDelta(t, 100_000.0, p.TotalCapital(), 1e-9)
	}

	p.RecordSell(13_000, 12_345.67)
	assert.InDelta(t, 100_000+13_000-12_345.67, p.TotalCapital(), 1e-9)
}

func TestGlobalPool_InsufficientCapitalIsNoOp(t *testing.T) {
	p := NewGlobalPool(1_000, 2)
	require.NoError(t, p.RecordBuy(900))

	// total 1000 / 1 free slot = 1000 > 100 available
	assert.Equal(t, 0.0, p.AvailableInvestmentAmount())

	err := p.RecordBuy(500)
	assert.ErrorIs(t, err, ErrInsufficientCapital)
	assert.InDelta(t, 100.0, p.AvailableCapital(), 1e-9)
}

func TestGlobalPool_NoFreeSlots(t *testing.T) {
	p := NewGlobalPool(1_000, 1)
	require.NoError(t, p.RecordBuy(1_000))

	assert.Equal(t, 0.0, p.AvailableInvestmentAmount())
	assert.ErrorIs(t, p.RecordBuy(1), ErrInsufficientCapital)
}

func TestGlobalPool_NonPositiveCapital(t *testing.T) {
	p := NewGlobalPool(0, 10)
	assert.Equal(t, 0.0, p.AvailableInvestmentAmount())
	assert.ErrorIs(t, p.RecordBuy(0), ErrInvalidAmount)
}

func TestChunkPool_RoundRobin(t *testing.T) {
	p := NewChunkPool(1_000, 4)

	for day, want := range []int{1, 2, 3, 4, 1, 2} {
		p.BeginDay(day)
		assert.Equal(t, want, p.ActiveChunkID(), "day %d", day)
	}
}

func TestChunkPool_OnlyActiveIdleChunkMayBuy(t *testing.T) {
	p := NewChunkPool(1_000, 4)

	p.BeginDay(0)
	assert.InDelta(t, 250.0, p.AvailableInvestmentAmount(), 1e-9)
	require.NoError(t, p.RecordBuy(240))
	assert.False(t, p.ActiveIdle())
	assert.Equal(t, 0.0, p.AvailableInvestmentAmount())
	assert.ErrorIs(t, p.RecordBuy(5), ErrInsufficientCapital)

	p.BeginDay(1)
	assert.True(t, p.ActiveIdle())
	assert.InDelta(t, 250.0, p.AvailableInvestmentAmount(), 1e-9)

	// chunk 1 sells on its next turn
	p.BeginDay(4)
	p.RecordSell(260, 240)
	assert.True(t, p.ActiveIdle())
	assert.InDelta(t, 270.0, p.ChunkCash(1), 1e-9)
	assert.InDelta(t, 1_020.0, p.TotalCapital(), 1e-9)
	assert.InDelta(t, 0.0, p.InvestedCapital(), 1e-9)
}

func TestRecordSell_ReleasesExactCost(t *testing.T) {
	qty, buyPx, sellPx := 300.0, 33.33, 35.37
	buy, sell := qty*buyPx, qty*sellPx

	pools := map[string]Allocator{
		"global": NewGlobalPool(100_000, 10),
		"chunk":  NewChunkPool(100_000, 10),
	}
	for name, p := range pools {
		t.Run(name, func(t *testing.T) {
			p.BeginDay(3)
			require.NoError(t, p.RecordBuy(buy))
			p.RecordSell(sell, buy)

			assert.Equal(t, 0.0, p.InvestedCapital())
			assert.InDelta(t, 100_000+sell-buy, p.TotalCapital(), 1e-9)
		})
	}
}

func TestChunkPool_ChunksSnapshot(t *testing.T) {
	p := NewChunkPool(1_000, 2)
	p.BeginDay(1)
	require.NoError(t, p.RecordBuy(400))

	chunks := p.Chunks()
	require.Len(t, chunks, 2)
	assert.Equal(t, 1, chunks[0].ID)
	assert.InDelta(t, 500.0, chunks[1].Capital, 1e-9)
	assert.InDelta(t, 500.0, chunks[1].InitialCapital, 1e-9)
	assert.InDelta(t, 100.0, p.ChunkCash(2), 1e-9)
}

func TestChunkPool_Empty(t *testing.T) {
	p := NewChunkPool(1_000, 0)
	p.BeginDay(3)
	assert.Equal(t, 0.0, p.AvailableInvestmentAmount())
	assert.Error(t, p.RecordBuy(1))
}
