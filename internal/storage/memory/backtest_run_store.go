package memory

import (
	"context"
	"sort"
	"sync"

	"amm-curve-lab/internal/domain"
	"amm-curve-lab/internal/storage"
)

// BacktestRunStore is an in-memory implementation of storage.BacktestRunStore.
type BacktestRunStore struct {
	mu   sync.RWMutex
	data map[string]*domain.BacktestRun // keyed by run_id
}

// NewBacktestRunStore creates a new in-memory backtest run store.
func NewBacktestRunStore() *BacktestRunStore {
	return &BacktestRunStore{
		data: make(map[string]*domain.BacktestRun),
	}
}

// Insert adds a new run. Returns ErrDuplicateKey if run_id exists.
func (s *BacktestRunStore) Insert(_ context.Context, r *domain.BacktestRun) error {
	if r == nil || r.RunID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[r.RunID]; exists {
		return storage.ErrDuplicateKey
	}
	runCopy := *r
	s.data[r.RunID] = &runCopy
	return nil
}

// GetByID retrieves a run by its ID. Returns ErrNotFound if not exists.
func (s *BacktestRunStore) GetByID(_ context.Context, runID string) (*domain.BacktestRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, exists := s.data[runID]
	if !exists {
		return nil, storage.ErrNotFound
	}
	runCopy := *r
	return &runCopy, nil
}

// GetBySeriesID retrieves all runs for a series, ordered by created_at ASC.
func (s *BacktestRunStore) GetBySeriesID(_ context.Context, seriesID string) ([]*domain.BacktestRun, error) {
	return s.collect(func(r *domain.BacktestRun) bool { return r.SeriesID == seriesID }), nil
}

// GetAll retrieves all runs, ordered by created_at ASC.
func (s *BacktestRunStore) GetAll(_ context.Context) ([]*domain.BacktestRun, error) {
	return s.collect(func(*domain.BacktestRun) bool { return true }), nil
}

func (s *BacktestRunStore) collect(match func(*domain.BacktestRun) bool) []*domain.BacktestRun {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.BacktestRun
	for _, r := range s.data {
		if match(r) {
			runCopy := *r
			result = append(result, &runCopy)
		}
	}

	// created_at ties broken by run_id for stable output
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt != result[j].CreatedAt {
			return result[i].CreatedAt < result[j].CreatedAt
		}
		return result[i].RunID < result[j].RunID
	})
	return result
}

var _ storage.BacktestRunStore = (*BacktestRunStore)(nil)
