package clickhouse

import (
	"context"
	"fmt"

	"etf-chunk-lab/internal/domain"
	"etf-chunk-lab/internal/storage"
)

// EquityCurveStore implements storage.EquityCurveStore using ClickHouse.
type EquityCurveStore struct {
	conn *Conn
}

// NewEquityCurveStore creates a new EquityCurveStore.
func NewEquityCurveStore(conn *Conn) *EquityCurveStore {
	return &EquityCurveStore{conn: conn}
}

// Compile-time interface check.
var _ storage.EquityCurveStore = (*EquityCurveStore)(nil)

// InsertBulk appends a run's equity curve. Fails entire batch on duplicate (run_id, day).
func (s *EquityCurveStore) InsertBulk(ctx context.Context, runID string, snapshots []domain.EquitySnapshot) error {
	if len(snapshots) == 0 {
		return nil
	}
	if runID == "" {
		return fmt.Errorf("%w: empty run id", storage.ErrInvalidInput)
	}

	seen := make(map[int]struct{}, len(snapshots))
	for _, snap := range snapshots {
		if snap.Day < 0 {
			return fmt.Errorf("%w: negative day %d", storage.ErrInvalidInput, snap.Day)
		}
		if _, exists := seen[snap.Day]; exists {
			return storage.ErrDuplicateKey
		}
		seen[snap.Day] = struct{}{}
	}

	// A run's curve is written once.
	var count uint64
	if err := s.conn.QueryRow(ctx, `SELECT count(*) FROM equity_curves WHERE run_id = ?`, runID).Scan(&count); err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	if count > 0 {
		return storage.ErrDuplicateKey
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO equity_curves (
			run_id, day, date, total_value, available_capital, invested_capital, open_positions
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, snap := range snapshots {
		err = batch.Append(
			runID, uint32(snap.Day), snap.Date.UTC(),
			snap.TotalValue, snap.AvailableCapital, snap.InvestedCapital,
			uint32(snap.OpenPositions),
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByRunID retrieves a run's equity curve ordered by day ASC.
func (s *EquityCurveStore) GetByRunID(ctx context.Context, runID string) ([]domain.EquitySnapshot, error) {
	query := `
		SELECT day, date, total_value, available_capital, invested_capital, open_positions
		FROM equity_curves
		WHERE run_id = ?
		ORDER BY day ASC
	`

	rows, err := s.conn.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("query by run id: %w", err)
	}
	defer rows.Close()

	return scanEquityCurve(rows)
}

func scanEquityCurve(rows chRows) ([]domain.EquitySnapshot, error) {
	var curve []domain.EquitySnapshot

	for rows.Next() {
		var (
			snap      domain.EquitySnapshot
			day, open uint32
		)
		err := rows.Scan(
			&day, &snap.Date,
			&snap.TotalValue, &snap.AvailableCapital, &snap.InvestedCapital, &open,
		)
		if err != nil {
			return nil, fmt.Errorf("scan equity row: %w", err)
		}
		snap.Day = int(day)
		snap.Date = snap.Date.UTC()
		snap.OpenPositions = int(open)
		curve = append(curve, snap)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate equity rows: %w", err)
	}

	return curve, nil
}
