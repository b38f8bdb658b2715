package memory

import (
	"context"
	"errors"
	"testing"

	"etf-chunk-lab/internal/domain"
	"etf-chunk-lab/internal/storage"
)

func TestEquityCurveStore_InsertBulkAndGet(t *testing.T) {
	store := NewEquityCurveStore()
	ctx := context.Background()

	snaps := []domain.EquitySnapshot{
		{Day: 2, TotalValue: 1020},
		{Day: 0, TotalValue: 1000},
		{Day: 1, TotalValue: 1010},
	}
	if err := store.InsertBulk(ctx, "run-1", snaps); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	got, err := store.GetByRunID(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetByRunID failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("Expected 3 snapshots, got %d", len(got))
	}
	for i, s := range got {
		if s.Day != i {
			t.Errorf("Expected day %d at position %d, got %d", i, i, s.Day)
		}
	}
}

func TestEquityCurveStore_DuplicateDay(t *testing.T) {
	store := NewEquityCurveStore()
	ctx := context.Background()

	_ = store.InsertBulk(ctx, "run-1", []domain.EquitySnapshot{{Day: 0}})

	err := store.InsertBulk(ctx, "run-1", []domain.EquitySnapshot{{Day: 1}, {Day: 0}})
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Fatalf("Expected ErrDuplicateKey, got %v", err)
	}

	got, _ := store.GetByRunID(ctx, "run-1")
	if len(got) != 1 {
		t.Errorf("Expected failed batch to leave 1 snapshot, got %d", len(got))
	}
}
