package idhash

import (
	"testing"
	"time"

	"github.com/mr-tron/base58"

	"etf-chunk-lab/internal/domain"
)

func TestComputeRunID(t *testing.T) {
	cfg := domain.DefaultSimulationConfig()
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	symbols := []string{"SPY", "QQQ"}

	id := ComputeRunID(domain.VariantGlobal, cfg, symbols, at)

	decoded, err := base58.Decode(id)
	if err != nil {
		t.Fatalf("run id is not base58: %v", err)
	}
	if len(decoded) != runIDBytes {
		t.Errorf("decoded length = %d, want %d", len(decoded), runIDBytes)
	}

	if id != ComputeRunID(domain.VariantGlobal, cfg, symbols, at) {
		t.Error("ComputeRunID() not deterministic")
	}
	if id == ComputeRunID(domain.VariantChunk, cfg, symbols, at) {
		t.Error("variants must not share a run id")
	}
	if id == ComputeRunID(domain.VariantGlobal, cfg, symbols, at.Add(time.Nanosecond)) {
		t.Error("creation time must change the run id")
	}

	other := cfg
	other.ProfitTargetPct = 5
	if id == ComputeRunID(domain.VariantGlobal, other, symbols, at) {
		t.Error("config must change the run id")
	}
}

func TestComputeStochasticRunID(t *testing.T) {
	cfg := domain.DefaultStochasticConfig()
	cfg.Seed = 42

	if ComputeStochasticRunID(cfg) != ComputeStochasticRunID(cfg) {
		t.Error("ComputeStochasticRunID() not deterministic")
	}

	reseeded := cfg
	reseeded.Seed = 43
	if ComputeStochasticRunID(cfg) == ComputeStochasticRunID(reseeded) {
		t.Error("seed must change the run id")
	}
}
