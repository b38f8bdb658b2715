// Package backend opens the store set used by the commands and the server.
package backend

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"etf-chunk-lab/internal/storage"
	chstore "etf-chunk-lab/internal/storage/clickhouse"
	"etf-chunk-lab/internal/storage/memory"
	"etf-chunk-lab/internal/storage/migrations"
	pgstore "etf-chunk-lab/internal/storage/postgres"
)

// Options selects the storage backends.
type Options struct {
	PostgresDSN   string
	ClickHouseDSN string
	// UseMemory ignores both DSNs and keeps everything in process.
	UseMemory bool
	// Migrate applies the embedded migrations after connecting.
	Migrate bool
	Logger  *zerolog.Logger
}

// Stores is the full store set. Run headers and trade logs live in Postgres,
// price bars and equity curves in ClickHouse. A missing DSN falls back to
// memory for the stores that database would hold.
type Stores struct {
	PriceBars storage.PriceBarStore
	Runs      storage.RunStore
	Trades    storage.TradeRecordStore
	Equity    storage.EquityCurveStore
}

// Open connects the configured backends. The returned cleanup closes every
// connection that was opened and is safe to call when err is nil.
func Open(ctx context.Context, opts Options) (*Stores, func(), error) {
	log := zerolog.Nop()
	if opts.Logger != nil {
		log = *opts.Logger
	}

	stores := &Stores{
		PriceBars: memory.NewPriceBarStore(),
		Runs:      memory.NewRunStore(),
		Trades:    memory.NewTradeRecordStore(),
		Equity:    memory.NewEquityCurveStore(),
	}

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if opts.UseMemory {
		log.Info().Msg("using in-memory storage")
		return stores, cleanup, nil
	}

	if opts.PostgresDSN != "" {
		pool, err := pgstore.NewPool(ctx, opts.PostgresDSN)
		if err != nil {
			return nil, cleanup, err
		}
		closers = append(closers, pool.Close)

		if opts.Migrate {
			applied, err := migrations.ApplyPostgres(ctx, pool.Pool)
			if err != nil {
				cleanup()
				return nil, func() {}, fmt.Errorf("postgres migrations: %w", err)
			}
			if len(applied) > 0 {
				log.Info().Strs("migrations", applied).Msg("postgres schema migrated")
			}
		}
		stores.Runs = pgstore.NewRunStore(pool)
		stores.Trades = pgstore.NewTradeRecordStore(pool)
		log.Info().Msg("connected to postgres")
	}

	if opts.ClickHouseDSN != "" {
		if opts.Migrate {
			if err := createClickHouseDatabase(ctx, opts.ClickHouseDSN); err != nil {
				cleanup()
				return nil, func() {}, err
			}
		}
		conn, err := chstore.NewConn(ctx, opts.ClickHouseDSN)
		if err != nil {
			cleanup()
			return nil, func() {}, err
		}
		closers = append(closers, func() { _ = conn.Close() })

		if opts.Migrate {
			if err := migrations.ApplyClickHouse(ctx, conn); err != nil {
				cleanup()
				return nil, func() {}, fmt.Errorf("clickhouse migrations: %w", err)
			}
		}

		stores.PriceBars = chstore.NewPriceBarStore(conn)
		stores.Equity = chstore.NewEquityCurveStore(conn)
		log.Info().Msg("connected to clickhouse")
	}

	return stores, cleanup, nil
}

// createClickHouseDatabase creates the DSN's database through a connection
// to the server default database.
func createClickHouseDatabase(ctx context.Context, dsn string) error {
	db, err := migrations.DatabaseFromDSN(dsn)
	if err != nil {
		return err
	}
	admin, err := chstore.NewConnWithDatabase(ctx, dsn, "")
	if err != nil {
		return fmt.Errorf("connect clickhouse admin: %w", err)
	}
	defer admin.Close()
	return migrations.EnsureDatabase(ctx, admin, db)
}
