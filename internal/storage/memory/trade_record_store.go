package memory

import (
	"context"
	"sync"

	"etf-chunk-lab/internal/domain"
	"etf-chunk-lab/internal/storage"
)

// TradeRecordStore is an in-memory implementation of storage.TradeRecordStore.
type TradeRecordStore struct {
	mu   sync.RWMutex
	data map[string][]domain.TradeRecord // keyed by run_id, in log order
}

// NewTradeRecordStore creates a new in-memory trade record store.
func NewTradeRecordStore() *TradeRecordStore {
	return &TradeRecordStore{
		data: make(map[string][]domain.TradeRecord),
	}
}

// InsertBulk appends a run's trade log. Returns ErrDuplicateKey if the run already has trades.
// Trade records are values, so storing a copy of the slice is enough.
func (s *TradeRecordStore) InsertBulk(_ context.Context, runID string, trades []domain.TradeRecord) error {
	if runID == "" {
		return storage.ErrInvalidInput
	}
	if len(trades) == 0 {
		return nil
	}
	for _, t := range trades {
		if t == nil {
			return storage.ErrInvalidInput
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[runID]; exists {
		return storage.ErrDuplicateKey
	}

	s.data[runID] = append([]domain.TradeRecord(nil), trades...)
	return nil
}

// GetByRunID retrieves a run's trade log in log order.
func (s *TradeRecordStore) GetByRunID(_ context.Context, runID string) ([]domain.TradeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]domain.TradeRecord(nil), s.data[runID]...), nil
}

var _ storage.TradeRecordStore = (*TradeRecordStore)(nil)
