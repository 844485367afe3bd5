package storage

import (
	"context"

	"amm-curve-lab/internal/domain"
)

// PriceSeriesStore provides access to price_series storage.
type PriceSeriesStore interface {
	// InsertBulk adds multiple points. Fails entire batch on duplicate (series_id, timestamp).
	InsertBulk(ctx context.Context, points []*domain.PricePoint) error

	// GetBySeriesID retrieves all points for a series, ordered by timestamp ASC.
	GetBySeriesID(ctx context.Context, seriesID string) ([]*domain.PricePoint, error)

	// GetByTimeRange retrieves points for a series within [start, end] (inclusive).
	GetByTimeRange(ctx context.Context, seriesID string, start, end int64) ([]*domain.PricePoint, error)

	// ListSeries returns the distinct series IDs, sorted.
	ListSeries(ctx context.Context) ([]string, error)
}

// RateSeriesStore provides access to rate_series storage.
type RateSeriesStore interface {
	// InsertBulk adds multiple points. Fails entire batch on duplicate (series_id, timestamp).
	InsertBulk(ctx context.Context, points []*domain.RatePoint) error

	// GetBySeriesID retrieves all points for a series, ordered by timestamp ASC.
	GetBySeriesID(ctx context.Context, seriesID string) ([]*domain.RatePoint, error)

	// GetByTimeRange retrieves points for a series within [start, end] (inclusive).
	GetByTimeRange(ctx context.Context, seriesID string, start, end int64) ([]*domain.RatePoint, error)

	// ListSeries returns the distinct series IDs, sorted.
	ListSeries(ctx context.Context) ([]string, error)
}

// PairEventStore provides access to pair_events storage.
type PairEventStore interface {
	// InsertBulk adds multiple events. Fails entire batch on duplicate (pair, height, block_index).
	InsertBulk(ctx context.Context, events []*domain.PairEvent) error

	// GetByPair retrieves all events for a pair, ordered by (height, block_index) ASC.
	GetByPair(ctx context.Context, pair string) ([]*domain.PairEvent, error)

	// GetByHeightRange retrieves events for a pair within heights [from, to] (inclusive).
	GetByHeightRange(ctx context.Context, pair string, from, to int64) ([]*domain.PairEvent, error)
}

// BacktestRunStore provides access to backtest_runs storage.
type BacktestRunStore interface {
	// Insert adds a new run. Returns ErrDuplicateKey if run_id exists.
	Insert(ctx context.Context, r *domain.BacktestRun) error

	// GetByID retrieves a run by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, runID string) (*domain.BacktestRun, error)

	// GetBySeriesID retrieves all runs for a series, ordered by created_at ASC.
	GetBySeriesID(ctx context.Context, seriesID string) ([]*domain.BacktestRun, error)

	// GetAll retrieves all runs, ordered by created_at ASC.
	GetAll(ctx context.Context) ([]*domain.BacktestRun, error)
}

// BacktestStepStore provides access to backtest_steps storage.
type BacktestStepStore interface {
	// InsertBulk adds multiple steps. Fails entire batch on duplicate (run_id, step_index).
	InsertBulk(ctx context.Context, steps []*domain.BacktestStep) error

	// GetByRunID retrieves all steps for a run, ordered by step_index ASC.
	GetByRunID(ctx context.Context, runID string) ([]*domain.BacktestStep, error)

	// DeleteByRunID removes every step of a run. Deleting a run with no
	// steps is not an error.
	DeleteByRunID(ctx context.Context, runID string) error
}
