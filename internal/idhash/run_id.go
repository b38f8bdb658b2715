package idhash

import (
	"crypto/sha256"
	"fmt"
	"strings"
	"time"

	"github.com/mr-tron/base58"

	"etf-chunk-lab/internal/domain"
)

// runIDBytes is the number of hash bytes kept in a run id.
const runIDBytes = 16

// ComputeRunID computes a deterministic run_id.
// Formula: base58(SHA256(variant|capital|chunks|target|days|window|symbols|created_at_ns)[:16])
// Symbols are joined in the given order.
func ComputeRunID(
	variant domain.Variant,
	cfg domain.SimulationConfig,
	symbols []string,
	createdAt time.Time,
) string {
	data := fmt.Sprintf("%s|%g|%d|%g|%d|%d|%s|%d",
		variant,
		cfg.StartCapital,
		cfg.NumberOfChunks,
		cfg.ProfitTargetPct,
		cfg.TotalTradingDays,
		cfg.MovingAverageWindow,
		strings.Join(symbols, ","),
		createdAt.UnixNano(),
	)

	hash := sha256.Sum256([]byte(data))
	return base58.Encode(hash[:runIDBytes])
}

// ComputeStochasticRunID computes a run id for a seeded stochastic simulation.
// Equal configurations with equal seeds share an id.
func ComputeStochasticRunID(cfg domain.StochasticConfig) string {
	data := fmt.Sprintf("STOCHASTIC|%g|%d|%g|%g|%g|%d|%d|%d",
		cfg.StartCapital,
		cfg.NumberOfChunks,
		cfg.ProfitTargetPct,
		cfg.AverageLossPct,
		cfg.WinRatePct,
		cfg.AverageHoldingDays,
		cfg.TotalTradingDays,
		cfg.Seed,
	)

	hash := sha256.Sum256([]byte(data))
	return base58.Encode(hash[:runIDBytes])
}
