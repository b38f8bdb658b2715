package backend

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"etf-chunk-lab/internal/domain"
	"etf-chunk-lab/internal/storage/memory"
)

func TestOpen_Memory(t *testing.T) {
	stores, cleanup, err := Open(context.Background(), Options{
		PostgresDSN:   "postgres://unused",
		ClickHouseDSN: "clickhouse://unused/db",
		UseMemory:     true,
	})
	require.NoError(t, err)
	defer cleanup()

	assert.IsType(t, &memory.PriceBarStore{}, stores.PriceBars)
	assert.IsType(t, &memory.RunStore{}, stores.Runs)
	assert.IsType(t, &memory.TradeRecordStore{}, stores.Trades)
	assert.IsType(t, &memory.EquityCurveStore{}, stores.Equity)

	ctx := context.Background()
	require.NoError(t, stores.Runs.Insert(ctx, &domain.RunSummary{RunID: "r1", CreatedAt: time.Now()}))
	got, err := stores.Runs.GetByID(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "r1", got.RunID)
}

func TestOpen_NoDSNs(t *testing.T) {
	stores, cleanup, err := Open(context.Background(), Options{})
	require.NoError(t, err)
	cleanup()

	assert.IsType(t, &memory.RunStore{}, stores.Runs)
	assert.IsType(t, &memory.EquityCurveStore{}, stores.Equity)
}

func TestOpen_BadPostgresDSN(t *testing.T) {
	_, cleanup, err := Open(context.Background(), Options{PostgresDSN: "://not a dsn"})
	require.Error(t, err)
	cleanup()
}
