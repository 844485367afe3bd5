package memory

import (
	"context"
	"sort"
	"sync"

	"amm-curve-lab/internal/domain"
	"amm-curve-lab/internal/storage"
)

// BacktestStepStore is an in-memory implementation of storage.BacktestStepStore.
type BacktestStepStore struct {
	mu   sync.RWMutex
	data map[string]map[int]*domain.BacktestStep // run_id -> step index
}

// NewBacktestStepStore creates a new in-memory backtest step store.
func NewBacktestStepStore() *BacktestStepStore {
	return &BacktestStepStore{
		data: make(map[string]map[int]*domain.BacktestStep),
	}
}

// InsertBulk adds multiple steps atomically. Fails entire batch on any duplicate.
func (s *BacktestStepStore) InsertBulk(_ context.Context, steps []*domain.BacktestStep) error {
	if len(steps) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	type key struct {
		run string
		idx int
	}
	batchKeys := make(map[key]struct{}, len(steps))
	for _, st := range steps {
		if st == nil || st.RunID == "" || st.Index < 0 {
			return storage.ErrInvalidInput
		}
		if _, exists := s.data[st.RunID][st.Index]; exists {
			return storage.ErrDuplicateKey
		}
		k := key{st.RunID, st.Index}
		if _, exists := batchKeys[k]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[k] = struct{}{}
	}

	for _, st := range steps {
		run, ok := s.data[st.RunID]
		if !ok {
			run = make(map[int]*domain.BacktestStep)
			s.data[st.RunID] = run
		}
		run[st.Index] = copyStep(st)
	}
	return nil
}

// GetByRunID retrieves all steps for a run, ordered by step_index ASC.
func (s *BacktestStepStore) GetByRunID(_ context.Context, runID string) ([]*domain.BacktestStep, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run := s.data[runID]
	result := make([]*domain.BacktestStep, 0, len(run))
	for _, st := range run {
		result = append(result, copyStep(st))
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Index < result[j].Index
	})
	return result, nil
}

// DeleteByRunID removes every step of a run.
func (s *BacktestStepStore) DeleteByRunID(_ context.Context, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, runID)
	return nil
}

// copyStep deep-copies the nullable fields too.
func copyStep(st *domain.BacktestStep) *domain.BacktestStep {
	c := *st
	if st.TimeFraction != nil {
		v := *st.TimeFraction
		c.TimeFraction = &v
	}
	if st.ImpliedRate != nil {
		v := *st.ImpliedRate
		c.ImpliedRate = &v
	}
	return &c
}

var _ storage.BacktestStepStore = (*BacktestStepStore)(nil)
