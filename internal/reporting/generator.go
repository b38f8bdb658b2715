package reporting

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"etf-chunk-lab/internal/domain"
	"etf-chunk-lab/internal/metrics"
	"etf-chunk-lab/internal/storage"
)

// Generator produces reports from stored runs.
type Generator struct {
	aggregator *metrics.Aggregator
	now        func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator.
func NewGenerator(
	runStore storage.RunStore,
	tradeStore storage.TradeRecordStore,
	equityStore storage.EquityCurveStore,
) *Generator {
	return &Generator{
		aggregator: metrics.NewAggregator(runStore, tradeStore, equityStore),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate rebuilds the given stored runs and reports on them.
func (g *Generator) Generate(ctx context.Context, runIDs ...string) (*Report, error) {
	if len(runIDs) == 0 {
		return nil, fmt.Errorf("%w: no run ids", storage.ErrInvalidInput)
	}

	results := make([]*domain.RunResult, 0, len(runIDs))
	for _, id := range runIDs {
		r, err := g.aggregator.Rebuild(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("rebuild run %s: %w", id, err)
		}
		results = append(results, r)
	}
	return g.FromResults(results...), nil
}

// FromResults builds a report from in-memory results.
func (g *Generator) FromResults(results ...*domain.RunResult) *Report {
	sorted := append([]*domain.RunResult(nil), results...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Variant != sorted[j].Variant {
			return sorted[i].Variant < sorted[j].Variant
		}
		return sorted[i].RunID < sorted[j].RunID
	})

	rep := &Report{GeneratedAt: g.now(), Results: sorted}
	var global, chunk []*domain.RunResult
	for _, r := range sorted {
		rep.Runs = append(rep.Runs, runRow(r))
		switch r.Variant {
		case domain.VariantGlobal:
			global = append(global, r)
		case domain.VariantChunk:
			chunk = append(chunk, r)
		}
	}
	if len(global) == 1 && len(chunk) == 1 {
		rep.Comparison = metrics.Compare(global[0], chunk[0])
	}
	return rep
}

// Output file names written by WriteFiles.
const (
	ComparisonMarkdownFile = "comparison.md"
	ComparisonCSVFile      = "comparison.csv"
)

// TradesFile returns the trade log file name for a variant.
func TradesFile(v domain.Variant) string {
	return "trades_" + strings.ToLower(string(v)) + ".csv"
}

// EquityFile returns the equity curve file name for a variant.
func EquityFile(v domain.Variant) string {
	return "equity_" + strings.ToLower(string(v)) + ".csv"
}

// WriteFiles writes the report into dir, creating it if needed.
// Returns the paths written.
func WriteFiles(dir string, r *Report) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	files := map[string]string{
		ComparisonMarkdownFile: RenderComparisonMarkdown(r),
		ComparisonCSVFile:      RenderComparisonCSV(r.Runs),
	}
	for _, res := range r.Results {
		trades, err := RenderTradesCSV(res.Trades)
		if err != nil {
			return nil, err
		}
		equity, err := RenderEquityCSV(res.Equity)
		if err != nil {
			return nil, err
		}
		files[TradesFile(res.Variant)] = trades
		files[EquityFile(res.Variant)] = equity
	}

	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	written := make([]string, 0, len(names))
	for _, name := range names {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(files[name]), 0o644); err != nil {
			return written, fmt.Errorf("write %s: %w", name, err)
		}
		written = append(written, path)
	}
	return written, nil
}
