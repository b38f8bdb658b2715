// Package storage defines the persistence interfaces of runs, trades, equity curves and price bars.
package storage

import (
	"context"
	"time"

	"etf-chunk-lab/internal/domain"
)

// PriceBarStore provides access to price_bars storage.
type PriceBarStore interface {
	// InsertBulk adds multiple bars. Fails entire batch on duplicate (symbol, date).
	InsertBulk(ctx context.Context, bars []*domain.PriceBar) error

	// GetBySymbol retrieves all bars for a symbol, ordered by date ASC.
	GetBySymbol(ctx context.Context, symbol string) ([]*domain.PriceBar, error)

	// GetByDateRange retrieves bars for a symbol within [start, end] (inclusive).
	GetByDateRange(ctx context.Context, symbol string, start, end time.Time) ([]*domain.PriceBar, error)

	// Symbols returns every stored symbol in ascending order.
	Symbols(ctx context.Context) ([]string, error)
}

// RunStore provides access to simulation_runs storage.
type RunStore interface {
	// Insert adds a run summary. Returns ErrDuplicateKey if run_id exists.
	Insert(ctx context.Context, r *domain.RunSummary) error

	// GetByID retrieves a run by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, runID string) (*domain.RunSummary, error)

	// List retrieves all runs, newest first.
	List(ctx context.Context) ([]*domain.RunSummary, error)
}

// TradeRecordStore provides access to run_trades storage.
type TradeRecordStore interface {
	// InsertBulk appends a run's trade log. Returns ErrDuplicateKey if the run already has trades.
	InsertBulk(ctx context.Context, runID string, trades []domain.TradeRecord) error

	// GetByRunID retrieves a run's trade log in log order.
	GetByRunID(ctx context.Context, runID string) ([]domain.TradeRecord, error)
}

// EquityCurveStore provides access to equity_curves storage.
type EquityCurveStore interface {
	// InsertBulk appends a run's equity curve. Fails entire batch on duplicate (run_id, day).
	InsertBulk(ctx context.Context, runID string, snapshots []domain.EquitySnapshot) error

	// GetByRunID retrieves a run's equity curve ordered by day ASC.
	GetByRunID(ctx context.Context, runID string) ([]domain.EquitySnapshot, error)
}
