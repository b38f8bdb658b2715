package memory

import (
	"context"
	"sort"
	"sync"

	"etf-chunk-lab/internal/domain"
	"etf-chunk-lab/internal/storage"
)

// EquityCurveStore is an in-memory implementation of storage.EquityCurveStore.
type EquityCurveStore struct {
	mu   sync.RWMutex
	data map[string]map[int]domain.EquitySnapshot // run_id -> day -> snapshot
}

// NewEquityCurveStore creates a new in-memory equity curve store.
func NewEquityCurveStore() *EquityCurveStore {
	return &EquityCurveStore{
		data: make(map[string]map[int]domain.EquitySnapshot),
	}
}

// InsertBulk appends snapshots. Fails entire batch on duplicate (run_id, day).
func (s *EquityCurveStore) InsertBulk(_ context.Context, runID string, snapshots []domain.EquitySnapshot) error {
	if runID == "" {
		return storage.ErrInvalidInput
	}
	if len(snapshots) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing := s.data[runID]
	batchDays := make(map[int]struct{}, len(snapshots))

	// First pass: check for duplicates (existing + intra-batch)
	for _, snap := range snapshots {
		if _, exists := existing[snap.Day]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchDays[snap.Day]; exists {
			return storage.ErrDuplicateKey
		}
		batchDays[snap.Day] = struct{}{}
	}

	// Second pass: insert all
	if existing == nil {
		existing = make(map[int]domain.EquitySnapshot, len(snapshots))
		s.data[runID] = existing
	}
	for _, snap := range snapshots {
		existing[snap.Day] = snap
	}

	return nil
}

// GetByRunID retrieves a run's equity curve ordered by day ASC.
func (s *EquityCurveStore) GetByRunID(_ context.Context, runID string) ([]domain.EquitySnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.EquitySnapshot, 0, len(s.data[runID]))
	for _, snap := range s.data[runID] {
		result = append(result, snap)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Day < result[j].Day
	})
	return result, nil
}

var _ storage.EquityCurveStore = (*EquityCurveStore)(nil)
