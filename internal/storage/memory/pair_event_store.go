package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"amm-curve-lab/internal/domain"
	"amm-curve-lab/internal/storage"
)

// PairEventStore is an in-memory implementation of storage.PairEventStore.
type PairEventStore struct {
	mu   sync.RWMutex
	data map[string]*domain.PairEvent // keyed by (pair, height, block_index)
}

// NewPairEventStore creates a new in-memory pair event store.
func NewPairEventStore() *PairEventStore {
	return &PairEventStore{
		data: make(map[string]*domain.PairEvent),
	}
}

func pairEventKey(e *domain.PairEvent) string {
	return fmt.Sprintf("%s|%d|%d", e.Pair, e.Height, e.BlockIndex)
}

// InsertBulk adds multiple events atomically. Fails entire batch on any duplicate.
func (s *PairEventStore) InsertBulk(_ context.Context, events []*domain.PairEvent) error {
	if len(events) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[string]struct{}, len(events))
	for _, e := range events {
		if e == nil || e.Pair == "" || e.Action == "" {
			return storage.ErrInvalidInput
		}
		key := pairEventKey(e)
		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	for _, e := range events {
		eventCopy := *e
		s.data[pairEventKey(e)] = &eventCopy
	}
	return nil
}

// GetByPair retrieves all events for a pair, ordered by (height, block_index) ASC.
func (s *PairEventStore) GetByPair(ctx context.Context, pair string) ([]*domain.PairEvent, error) {
	return s.GetByHeightRange(ctx, pair, 0, 1<<62)
}

// GetByHeightRange retrieves events for a pair within heights [from, to] (inclusive).
func (s *PairEventStore) GetByHeightRange(_ context.Context, pair string, from, to int64) ([]*domain.PairEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.PairEvent
	for _, e := range s.data {
		if e.Pair == pair && e.Height >= from && e.Height <= to {
			eventCopy := *e
			result = append(result, &eventCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Height != result[j].Height {
			return result[i].Height < result[j].Height
		}
		return result[i].BlockIndex < result[j].BlockIndex
	})
	return result, nil
}

var _ storage.PairEventStore = (*PairEventStore)(nil)
