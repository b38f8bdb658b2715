package ingestion

import (
	"context"
	"fmt"
	"os"

	"etf-chunk-lab/internal/domain"
	"etf-chunk-lab/internal/lookup"
)

// BarSource provides daily price bars from external sources.
type BarSource interface {
	// Fetch returns bars in any order; Manager enforces deterministic ordering.
	Fetch(ctx context.Context) ([]*domain.PriceBar, error)

	// Name identifies the source in logs.
	Name() string
}

// CSVFileSource reads bars from a CSV price file.
type CSVFileSource struct {
	path string
}

// NewCSVFileSource creates a source for the CSV file at path.
func NewCSVFileSource(path string) *CSVFileSource {
	return &CSVFileSource{path: path}
}

// Name implements BarSource.
func (s *CSVFileSource) Name() string { return s.path }

// Fetch implements BarSource.
func (s *CSVFileSource) Fetch(ctx context.Context) ([]*domain.PriceBar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", s.path, err)
	}
	defer f.Close()

	bars, err := lookup.LoadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", s.path, err)
	}
	return bars, nil
}

// StaticSource serves a fixed set of bars.
type StaticSource struct {
	name string
	bars []*domain.PriceBar
}

// NewStaticSource creates a source over bars.
func NewStaticSource(name string, bars []*domain.PriceBar) *StaticSource {
	return &StaticSource{name: name, bars: bars}
}

// Name implements BarSource.
func (s *StaticSource) Name() string { return s.name }

// Fetch implements BarSource.
func (s *StaticSource) Fetch(ctx context.Context) ([]*domain.PriceBar, error) {
	out := make([]*domain.PriceBar, len(s.bars))
	for i, b := range s.bars {
		c := *b
		out[i] = &c
	}
	return out, nil
}
