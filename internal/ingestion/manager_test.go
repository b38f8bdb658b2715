package ingestion

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"etf-chunk-lab/internal/domain"
	"etf-chunk-lab/internal/observability"
	"etf-chunk-lab/internal/storage"
	"etf-chunk-lab/internal/storage/memory"
)

func day(d int) time.Time {
	return time.Date(2024, 3, d, 0, 0, 0, 0, time.UTC)
}

func bar(symbol string, d int, close float64) *domain.PriceBar {
	return &domain.PriceBar{Symbol: symbol, Date: day(d), Open: close, High: close, Low: close, Close: close}
}

type failingSource struct{}

func (failingSource) Name() string { return "failing" }

func (failingSource) Fetch(context.Context) ([]*domain.PriceBar, error) {
	return nil, errors.New("feed down")
}

func TestManager_Ingest(t *testing.T) {
	ctx := context.Background()
	store := memory.NewPriceBarStore()
	m := NewManager(ManagerOptions{
		Store:   store,
		Metrics: observability.NewMetrics("test", prometheus.NewRegistry()),
	})

	src := NewStaticSource("static", []*domain.PriceBar{
		bar("spy", 2, 101),
		bar("QQQ", 1, 400),
		bar("SPY", 1, 100),
	})

	res, err := m.Ingest(ctx, src)
	require.NoError(t, err)
	assert.Equal(t, "static", res.Source)
	assert.Equal(t, 3, res.Read)
	assert.Equal(t, 3, res.Inserted)
	assert.Equal(t, []string{"QQQ", "SPY"}, res.Symbols)

	spy, err := store.GetBySymbol(ctx, "SPY")
	require.NoError(t, err)
	require.Len(t, spy, 2)
	assert.Equal(t, 100.0, spy[0].Close)
	assert.Equal(t, 101.0, spy[1].Close)
}

func TestManager_DuplicateRejected(t *testing.T) {
	ctx := context.Background()
	store := memory.NewPriceBarStore()
	m := NewManager(ManagerOptions{Store: store})

	_, err := m.Ingest(ctx, NewStaticSource("a", []*domain.PriceBar{bar("SPY", 1, 100)}))
	require.NoError(t, err)

	_, err = m.Ingest(ctx, NewStaticSource("b", []*domain.PriceBar{bar("SPY", 1, 100), bar("SPY", 2, 101)}))
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	// Failed batch stored nothing.
	bars, err := store.GetBySymbol(ctx, "SPY")
	require.NoError(t, err)
	assert.Len(t, bars, 1)
}

func TestManager_SkipExisting(t *testing.T) {
	ctx := context.Background()
	store := memory.NewPriceBarStore()
	m := NewManager(ManagerOptions{Store: store, SkipExisting: true})

	_, err := m.Ingest(ctx, NewStaticSource("a", []*domain.PriceBar{bar("SPY", 1, 100)}))
	require.NoError(t, err)

	res, err := m.Ingest(ctx, NewStaticSource("b", []*domain.PriceBar{
		bar("SPY", 1, 100),
		bar("SPY", 2, 101),
		bar("SPY", 2, 999), // repeated within the source
	}))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Inserted)
	assert.Equal(t, 2, res.Skipped)

	bars, err := store.GetBySymbol(ctx, "SPY")
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.Equal(t, 101.0, bars[1].Close)
}

func TestManager_EmptyAndFailingSources(t *testing.T) {
	ctx := context.Background()
	m := NewManager(ManagerOptions{Store: memory.NewPriceBarStore()})

	res, err := m.Ingest(ctx, NewStaticSource("empty", nil))
	require.NoError(t, err)
	assert.Zero(t, res.Inserted)

	_, err = m.Ingest(ctx, failingSource{})
	assert.ErrorContains(t, err, "feed down")
}

func TestManager_IngestAllCSV(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	a := filepath.Join(dir, "a.csv")
	require.NoError(t, os.WriteFile(a, []byte(
		"symbol,date,open,high,low,close,volume\n"+
			"SPY,2024-03-01,100,101,99,100.5,1000\n"+
			"SPY,2024-03-04,100.5,102,100,101.5,1200\n"), 0o644))
	b := filepath.Join(dir, "b.csv")
	require.NoError(t, os.WriteFile(b, []byte("EEM,2024-03-01,40,41,39,40.5\n"), 0o644))

	store := memory.NewPriceBarStore()
	m := NewManager(ManagerOptions{Store: store})

	results, err := m.IngestAll(ctx, NewCSVFileSource(a), NewCSVFileSource(b))
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, 2, results[0].Inserted)
	assert.Equal(t, 1, results[1].Inserted)

	symbols, err := store.Symbols(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"EEM", "SPY"}, symbols)

	_, err = m.IngestAll(ctx, NewCSVFileSource(filepath.Join(dir, "missing.csv")))
	assert.Error(t, err)
}

func TestManager_IngestAllCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	m := NewManager(ManagerOptions{Store: memory.NewPriceBarStore()})
	results, err := m.IngestAll(ctx, NewStaticSource("a", []*domain.PriceBar{bar("SPY", 1, 100)}))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, results)
}
