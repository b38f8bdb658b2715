package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"etf-chunk-lab/internal/domain"
	"etf-chunk-lab/internal/storage"
)

func sampleTrades() []domain.TradeRecord {
	d0 := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	d1 := d0.AddDate(0, 0, 9)
	return []domain.TradeRecord{
		domain.BuyRecord{TradeBase: domain.TradeBase{
			Day: 20, Date: d0, Symbol: "BANKBEES", Quantity: 41, Price: 480, Amount: 19_680, CapitalAfter: 1_000_000, ChunkID: 3,
		}},
		domain.SellRecord{
			TradeBase: domain.TradeBase{
				Day: 29, Date: d1, Symbol: "BANKBEES", Quantity: 41, Price: 510, Amount: 20_910, CapitalAfter: 1_001_230, ChunkID: 3,
			},
			BuyPrice:    480,
			Profit:      1_230,
			ProfitPct:   6.25,
			HoldingDays: 9,
		},
	}
}

func TestTradeRecordStore_InsertBulkAndGet(t *testing.T) {
	pool := setupTestDB(t)

	store := NewTradeRecordStore(pool)
	ctx := context.Background()

	trades := sampleTrades()
	require.NoError(t, store.InsertBulk(ctx, "run-1", trades))

	got, err := store.GetByRunID(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, trades[0], got[0])
	assert.Equal(t, trades[1], got[1])

	_, isSell := got[1].(domain.SellRecord)
	assert.True(t, isSell)

	empty, err := store.GetByRunID(ctx, "run-2")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestTradeRecordStore_DuplicateRun(t *testing.T) {
	pool := setupTestDB(t)

	store := NewTradeRecordStore(pool)
	ctx := context.Background()

	require.NoError(t, store.InsertBulk(ctx, "run-1", sampleTrades()))
	assert.ErrorIs(t, store.InsertBulk(ctx, "run-1", sampleTrades()), storage.ErrDuplicateKey)

	assert.ErrorIs(t, store.InsertBulk(ctx, "", sampleTrades()), storage.ErrInvalidInput)
	assert.NoError(t, store.InsertBulk(ctx, "run-3", nil))
}
