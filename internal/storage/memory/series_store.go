package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"amm-curve-lab/internal/domain"
	"amm-curve-lab/internal/storage"
)

// seriesKey generates a unique key for a series point.
func seriesKey(seriesID string, timestamp int64) string {
	return fmt.Sprintf("%s|%d", seriesID, timestamp)
}

// seriesData is the shared map behind the price and rate stores.
type seriesData[T any] struct {
	mu   sync.RWMutex
	data map[string]*T // keyed by (series_id, timestamp)
	id   func(*T) string
	tsOf func(*T) int64
}

func newSeriesData[T any](id func(*T) string, ts func(*T) int64) *seriesData[T] {
	return &seriesData[T]{data: make(map[string]*T), id: id, tsOf: ts}
}

func (d *seriesData[T]) insertBulk(points []*T) error {
	if len(points) == 0 {
		return nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	// First pass: check for duplicates (existing + intra-batch)
	batchKeys := make(map[string]struct{}, len(points))
	for _, p := range points {
		if p == nil || d.id(p) == "" {
			return storage.ErrInvalidInput
		}
		key := seriesKey(d.id(p), d.tsOf(p))
		if _, exists := d.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	for _, p := range points {
		pointCopy := *p
		d.data[seriesKey(d.id(p), d.tsOf(p))] = &pointCopy
	}
	return nil
}

// query copies matching points ordered by timestamp ASC.
func (d *seriesData[T]) query(seriesID string, match func(int64) bool) []*T {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var result []*T
	for _, p := range d.data {
		if d.id(p) == seriesID && match(d.tsOf(p)) {
			pointCopy := *p
			result = append(result, &pointCopy)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return d.tsOf(result[i]) < d.tsOf(result[j])
	})
	return result
}

func (d *seriesData[T]) listSeries() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	seen := make(map[string]struct{})
	var ids []string
	for _, p := range d.data {
		id := d.id(p)
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

func allTimes(int64) bool { return true }

func within(start, end int64) func(int64) bool {
	return func(ts int64) bool { return ts >= start && ts <= end }
}

// PriceSeriesStore is an in-memory implementation of storage.PriceSeriesStore.
type PriceSeriesStore struct {
	d *seriesData[domain.PricePoint]
}

// NewPriceSeriesStore creates a new in-memory price series store.
func NewPriceSeriesStore() *PriceSeriesStore {
	return &PriceSeriesStore{d: newSeriesData(
		func(p *domain.PricePoint) string { return p.SeriesID },
		func(p *domain.PricePoint) int64 { return p.Timestamp },
	)}
}

// InsertBulk adds multiple points. Fails entire batch on duplicate.
func (s *PriceSeriesStore) InsertBulk(_ context.Context, points []*domain.PricePoint) error {
	return s.d.insertBulk(points)
}

// GetBySeriesID retrieves all points for a series, ordered by timestamp ASC.
func (s *PriceSeriesStore) GetBySeriesID(_ context.Context, seriesID string) ([]*domain.PricePoint, error) {
	return s.d.query(seriesID, allTimes), nil
}

// GetByTimeRange retrieves points for a series within [start, end] (inclusive).
func (s *PriceSeriesStore) GetByTimeRange(_ context.Context, seriesID string, start, end int64) ([]*domain.PricePoint, error) {
	return s.d.query(seriesID, within(start, end)), nil
}

// ListSeries returns the distinct series IDs, sorted.
func (s *PriceSeriesStore) ListSeries(_ context.Context) ([]string, error) {
	return s.d.listSeries(), nil
}

// RateSeriesStore is an in-memory implementation of storage.RateSeriesStore.
type RateSeriesStore struct {
	d *seriesData[domain.RatePoint]
}

// NewRateSeriesStore creates a new in-memory rate series store.
func NewRateSeriesStore() *RateSeriesStore {
	return &RateSeriesStore{d: newSeriesData(
		func(p *domain.RatePoint) string { return p.SeriesID },
		func(p *domain.RatePoint) int64 { return p.Timestamp },
	)}
}

// InsertBulk adds multiple points. Fails entire batch on duplicate.
func (s *RateSeriesStore) InsertBulk(_ context.Context, points []*domain.RatePoint) error {
	return s.d.insertBulk(points)
}

// GetBySeriesID retrieves all points for a series, ordered by timestamp ASC.
func (s *RateSeriesStore) GetBySeriesID(_ context.Context, seriesID string) ([]*domain.RatePoint, error) {
	return s.d.query(seriesID, allTimes), nil
}

// GetByTimeRange retrieves points for a series within [start, end] (inclusive).
func (s *RateSeriesStore) GetByTimeRange(_ context.Context, seriesID string, start, end int64) ([]*domain.RatePoint, error) {
	return s.d.query(seriesID, within(start, end)), nil
}

// ListSeries returns the distinct series IDs, sorted.
func (s *RateSeriesStore) ListSeries(_ context.Context) ([]string, error) {
	return s.d.listSeries(), nil
}

var (
	_ storage.PriceSeriesStore = (*PriceSeriesStore)(nil)
	_ storage.RateSeriesStore  = (*RateSeriesStore)(nil)
)
