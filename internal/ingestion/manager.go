// Package ingestion loads daily price bars from external sources into storage.
package ingestion

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"etf-chunk-lab/internal/domain"
	"etf-chunk-lab/internal/observability"
	"etf-chunk-lab/internal/storage"
)

// Manager orchestrates ingestion from sources to storage.
// It enforces deterministic ordering and uses storage layer for duplicate rejection.
type Manager struct {
	store        storage.PriceBarStore
	log          zerolog.Logger
	metrics      *observability.Metrics
	skipExisting bool
}

// ManagerOptions contains configuration for creating a Manager.
type ManagerOptions struct {
	Store   storage.PriceBarStore
	Logger  *zerolog.Logger
	Metrics *observability.Metrics

	// SkipExisting drops bars whose (symbol, date) is already stored instead
	// of failing the batch with storage.ErrDuplicateKey.
	SkipExisting bool
}

// Result summarizes one ingestion.
type Result struct {
	Source   string
	Read     int // bars returned by the source
	Inserted int
	Skipped  int // already stored or repeated within the source
	Symbols  []string
}

// NewManager creates a new ingestion manager.
func NewManager(opts ManagerOptions) *Manager {
	log := zerolog.Nop()
	if opts.Logger != nil {
		log = *opts.Logger
	}
	return &Manager{
		store:        opts.Store,
		log:          log.With().Str("component", "ingestion").Logger(),
		metrics:      opts.Metrics,
		skipExisting: opts.SkipExisting,
	}
}

// Ingest fetches bars from source, normalizes and orders them, and stores
// them in one batch.
func (m *Manager) Ingest(ctx context.Context, source BarSource) (*Result, error) {
	bars, err := source.Fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", source.Name(), err)
	}

	res := &Result{Source: source.Name(), Read: len(bars)}
	if len(bars) == 0 {
		return res, nil
	}

	for _, b := range bars {
		normalize(b)
	}
	SortBars(bars)

	if m.skipExisting {
		kept, err := m.dropExisting(ctx, bars)
		if err != nil {
			return nil, err
		}
		res.Skipped = len(bars) - len(kept)
		bars = kept
	}

	if len(bars) > 0 {
		start := time.Now()
		err := m.store.InsertBulk(ctx, bars)
		m.metrics.RecordDBQuery("price_bars", "insert", time.Since(start).Seconds(), err)
		if err != nil {
			return nil, fmt.Errorf("store bars from %s: %w", source.Name(), err)
		}
	}

	res.Inserted = len(bars)
	res.Symbols = symbolsOf(bars)
	if m.metrics != nil {
		m.metrics.BarsIngested.Add(float64(res.Inserted))
	}

	m.log.Info().
		Str("source", res.Source).
		Int("read", res.Read).
		Int("inserted", res.Inserted).
		Int("skipped", res.Skipped).
		Strs("symbols", res.Symbols).
		Msg("bars ingested")
	return res, nil
}

// IngestAll ingests every source in order, stopping at the first error.
func (m *Manager) IngestAll(ctx context.Context, sources ...BarSource) ([]*Result, error) {
	results := make([]*Result, 0, len(sources))
	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		res, err := m.Ingest(ctx, src)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

// dropExisting removes bars already stored and repeats within bars.
// bars must be sorted.
func (m *Manager) dropExisting(ctx context.Context, bars []*domain.PriceBar) ([]*domain.PriceBar, error) {
	existing := make(map[string]map[string]struct{})
	kept := make([]*domain.PriceBar, 0, len(bars))

	for i, b := range bars {
		if i > 0 && compareBars(bars[i-1], b) == 0 {
			continue
		}

		dates, ok := existing[b.Symbol]
		if !ok {
			stored, err := m.store.GetBySymbol(ctx, b.Symbol)
			if err != nil {
				return nil, fmt.Errorf("load stored bars for %s: %w", b.Symbol, err)
			}
			dates = make(map[string]struct{}, len(stored))
			for _, s := range stored {
				dates[s.Date.UTC().Format(time.DateOnly)] = struct{}{}
			}
			existing[b.Symbol] = dates
		}

		if _, dup := dates[b.Date.UTC().Format(time.DateOnly)]; dup {
			continue
		}
		kept = append(kept, b)
	}
	return kept, nil
}

// normalize upper-cases the symbol and truncates the date to a UTC day.
func normalize(b *domain.PriceBar) {
	b.Symbol = strings.ToUpper(strings.TrimSpace(b.Symbol))
	y, mo, d := b.Date.UTC().Date()
	b.Date = time.Date(y, mo, d, 0, 0, 0, 0, time.UTC)
}

func symbolsOf(bars []*domain.PriceBar) []string {
	var out []string
	for i, b := range bars {
		if i == 0 || bars[i-1].Symbol != b.Symbol {
			out = append(out, b.Symbol)
		}
	}
	return out
}
