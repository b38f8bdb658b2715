package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"etf-chunk-lab/internal/domain"
	"etf-chunk-lab/internal/storage"
)

// RunStore implements storage.RunStore using PostgreSQL.
type RunStore struct {
	pool *Pool
}

// NewRunStore creates a new RunStore.
func NewRunStore(pool *Pool) *RunStore {
	return &RunStore{pool: pool}
}

// Compile-time interface check.
var _ storage.RunStore = (*RunStore)(nil)

const runColumns = `
	run_id, variant,
	start_capital, number_of_chunks, profit_target_pct, total_trading_days, moving_average_window,
	symbols, metrics, stats, days_simulated, completed, created_at
`

// Insert adds a run summary. Returns ErrDuplicateKey if run_id exists.
func (s *RunStore) Insert(ctx context.Context, r *domain.RunSummary) error {
	if r == nil || r.RunID == "" {
		return fmt.Errorf("%w: run summary without id", storage.ErrInvalidInput)
	}

	metricsJSON, err := json.Marshal(r.Metrics)
	if err != nil {
		return fmt.Errorf("marshal metrics: %w", err)
	}
	statsJSON, err := json.Marshal(r.Stats)
	if err != nil {
		return fmt.Errorf("marshal stats: %w", err)
	}
	symbols := r.Symbols
	if symbols == nil {
		symbols = []string{}
	}

	query := `INSERT INTO simulation_runs (` + runColumns + `) VALUES (
		$1, $2,
		$3, $4, $5, $6, $7,
		$8, $9, $10, $11, $12, $13
	)`

	_, err = s.pool.Exec(ctx, query,
		r.RunID, string(r.Variant),
		r.Config.StartCapital, r.Config.NumberOfChunks, r.Config.ProfitTargetPct,
		r.Config.TotalTradingDays, r.Config.MovingAverageWindow,
		symbols, metricsJSON, statsJSON, r.DaysSimulated, r.Completed, r.CreatedAt,
	)
	return mapError("insert run", err)
}

// GetByID retrieves a run by its ID. Returns ErrNotFound if not exists.
func (s *RunStore) GetByID(ctx context.Context, runID string) (*domain.RunSummary, error) {
	query := `SELECT ` + runColumns + ` FROM simulation_runs WHERE run_id = $1`

	r, err := scanRun(s.pool.QueryRow(ctx, query, runID))
	if err != nil {
		return nil, mapError("get run by id", err)
	}
	return r, nil
}

// List retrieves all runs, newest first.
func (s *RunStore) List(ctx context.Context) ([]*domain.RunSummary, error) {
	query := `SELECT ` + runColumns + ` FROM simulation_runs ORDER BY created_at DESC, run_id ASC`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*domain.RunSummary
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

func scanRun(row pgx.Row) (*domain.RunSummary, error) {
	var (
		r                      domain.RunSummary
		variant                string
		metricsJSON, statsJSON []byte
	)
	err := row.Scan(
		&r.RunID, &variant,
		&r.Config.StartCapital, &r.Config.NumberOfChunks, &r.Config.ProfitTargetPct,
		&r.Config.TotalTradingDays, &r.Config.MovingAverageWindow,
		&r.Symbols, &metricsJSON, &statsJSON, &r.DaysSimulated, &r.Completed, &r.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	r.Variant = domain.Variant(variant)
	r.CreatedAt = r.CreatedAt.UTC()
	if err := json.Unmarshal(metricsJSON, &r.Metrics); err != nil {
		return nil, fmt.Errorf("unmarshal metrics: %w", err)
	}
	if err := json.Unmarshal(statsJSON, &r.Stats); err != nil {
		return nil, fmt.Errorf("unmarshal stats: %w", err)
	}
	return &r, nil
}
