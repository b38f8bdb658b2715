package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"etf-chunk-lab/internal/domain"
	"etf-chunk-lab/internal/storage"
)

func TestRunStore_InsertAndGet(t *testing.T) {
	store := NewRunStore()
	ctx := context.Background()

	run := &domain.RunSummary{
		RunID:   "run-1",
		Variant: domain.VariantGlobal,
		Config:  domain.DefaultSimulationConfig(),
		Symbols: []string{"A", "B"},
		Metrics: domain.Metrics{FinalCapital: 1_100_000},
	}
	if err := store.Insert(ctx, run); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	// Mutating the input must not affect the stored copy
	run.Symbols[0] = "MUTATED"

	got, err := store.GetByID(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Symbols[0] != "A" {
		t.Errorf("Expected stored copy to be isolated, got %v", got.Symbols)
	}
	if got.Metrics.FinalCapital != 1_100_000 {
		t.Errorf("Expected final capital 1100000, got %f", got.Metrics.FinalCapital)
	}
}

func TestRunStore_Errors(t *testing.T) {
	store := NewRunStore()
	ctx := context.Background()

	if err := store.Insert(ctx, &domain.RunSummary{}); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput, got %v", err)
	}

	_ = store.Insert(ctx, &domain.RunSummary{RunID: "r"})
	if err := store.Insert(ctx, &domain.RunSummary{RunID: "r"}); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}

	if _, err := store.GetByID(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestRunStore_ListNewestFirst(t *testing.T) {
	store := NewRunStore()
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	_ = store.Insert(ctx, &domain.RunSummary{RunID: "old", CreatedAt: base})
	_ = store.Insert(ctx, &domain.RunSummary{RunID: "new", CreatedAt: base.Add(time.Hour)})

	runs, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(runs) != 2 || runs[0].RunID != "new" {
		t.Errorf("Expected newest first, got %v", runs)
	}
}
