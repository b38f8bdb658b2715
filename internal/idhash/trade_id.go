package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"etf-chunk-lab/internal/domain"
)

// ComputeTradeID computes a deterministic trade_id using SHA256.
// Formula: SHA256(run_id|seq|action|symbol|day)
// seq is the record's position in the run's trade log.
// Returns hex-encoded hash (64 characters).
func ComputeTradeID(runID string, seq int, rec domain.TradeRecord) string {
	base := rec.Base()
	data := fmt.Sprintf("%s|%d|%s|%s|%d",
		runID,
		seq,
		rec.Action(),
		base.Symbol,
		base.Day,
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
