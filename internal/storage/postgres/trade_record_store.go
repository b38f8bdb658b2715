package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"etf-chunk-lab/internal/domain"
	"etf-chunk-lab/internal/idhash"
	"etf-chunk-lab/internal/storage"
)

// TradeRecordStore implements storage.TradeRecordStore using PostgreSQL.
// Buys and sells share one table; sell-only columns are NULL for buys.
type TradeRecordStore struct {
	pool *Pool
}

// NewTradeRecordStore creates a new TradeRecordStore.
func NewTradeRecordStore(pool *Pool) *TradeRecordStore {
	return &TradeRecordStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TradeRecordStore = (*TradeRecordStore)(nil)

// InsertBulk appends a run's trade log atomically. Returns ErrDuplicateKey if
// the run already has trades.
func (s *TradeRecordStore) InsertBulk(ctx context.Context, runID string, trades []domain.TradeRecord) error {
	if len(trades) == 0 {
		return nil
	}
	if runID == "" {
		return fmt.Errorf("%w: empty run id", storage.ErrInvalidInput)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO run_trades (
			trade_id, run_id, seq, action,
			day, trade_date, symbol, quantity, price, amount, capital_after, chunk_id,
			buy_price, profit, profit_pct, holding_days
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8, $9, $10, $11, $12,
			$13, $14, $15, $16
		)
	`

	for seq, t := range trades {
		base := t.Base()
		var (
			buyPrice, profit, profitPct *float64
			holdingDays                 *int
		)
		if sell, ok := t.(domain.SellRecord); ok {
			buyPrice, profit, profitPct = &sell.BuyPrice, &sell.Profit, &sell.ProfitPct
			holdingDays = &sell.HoldingDays
		}

		_, err := tx.Exec(ctx, query,
			idhash.ComputeTradeID(runID, seq, t), runID, seq, string(t.Action()),
			base.Day, base.Date, base.Symbol, base.Quantity, base.Price, base.Amount, base.CapitalAfter, base.ChunkID,
			buyPrice, profit, profitPct, holdingDays,
		)
		if err != nil {
			return mapError("insert trade", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// GetByRunID retrieves a run's trade log in log order.
func (s *TradeRecordStore) GetByRunID(ctx context.Context, runID string) ([]domain.TradeRecord, error) {
	query := `
		SELECT
			action, day, trade_date, symbol, quantity, price, amount, capital_after, chunk_id,
			buy_price, profit, profit_pct, holding_days
		FROM run_trades
		WHERE run_id = $1
		ORDER BY seq ASC
	`

	rows, err := s.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("get trade records by run id: %w", err)
	}
	defer rows.Close()

	return scanTradeRecords(rows)
}

func scanTradeRecords(rows pgx.Rows) ([]domain.TradeRecord, error) {
	var trades []domain.TradeRecord

	for rows.Next() {
		var (
			action                      string
			base                        domain.TradeBase
			buyPrice, profit, profitPct *float64
			holdingDays                 *int
		)
		err := rows.Scan(
			&action, &base.Day, &base.Date, &base.Symbol, &base.Quantity,
			&base.Price, &base.Amount, &base.CapitalAfter, &base.ChunkID,
			&buyPrice, &profit, &profitPct, &holdingDays,
		)
		if err != nil {
			return nil, fmt.Errorf("scan trade record row: %w", err)
		}
		base.Date = base.Date.UTC()

		switch domain.Action(action) {
		case domain.ActionBuy:
			trades = append(trades, domain.BuyRecord{TradeBase: base})
		case domain.ActionSell:
			sell := domain.SellRecord{TradeBase: base}
			if buyPrice != nil {
				sell.BuyPrice = *buyPrice
			}
			if profit != nil {
				sell.Profit = *profit
			}
			if profitPct != nil {
				sell.ProfitPct = *profitPct
			}
			if holdingDays != nil {
				sell.HoldingDays = *holdingDays
			}
			trades = append(trades, sell)
		default:
			return nil, fmt.Errorf("unknown trade action %q", action)
		}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trade record rows: %w", err)
	}

	return trades, nil
}
