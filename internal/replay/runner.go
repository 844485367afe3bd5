package replay

import (
	"context"
	"fmt"

	"amm-curve-lab/internal/storage"
)

// Runner loads a series from storage and replays it in timestamp order.
// Either store may be nil when only one source is used.
type Runner struct {
	prices storage.PriceSeriesStore
	rates  storage.RateSeriesStore
}

// NewRunner creates a new replay runner.
func NewRunner(prices storage.PriceSeriesStore, rates storage.RateSeriesStore) *Runner {
	return &Runner{prices: prices, rates: rates}
}

// Load reads the rows of a series within [from, to] (inclusive), sorted and
// validated.
func (r *Runner) Load(ctx context.Context, source Source, seriesID string, from, to int64) ([]*Row, error) {
	var rows []*Row
	switch source {
	case SourcePrice:
		if r.prices == nil {
			return nil, fmt.Errorf("%w: %s", ErrNoStore, source)
		}
		points, err := r.prices.GetByTimeRange(ctx, seriesID, from, to)
		if err != nil {
			return nil, err
		}
		rows = PriceRows(points)
	case SourceRate:
		if r.rates == nil {
			return nil, fmt.Errorf("%w: %s", ErrNoStore, source)
		}
		points, err := r.rates.GetByTimeRange(ctx, seriesID, from, to)
		if err != nil {
			return nil, err
		}
		rows = RateRows(points)
	default:
		return nil, fmt.Errorf("%w: %q", ErrNoStore, source)
	}
	return finish(rows)
}

// LoadAll reads every row of a series, sorted and validated.
func (r *Runner) LoadAll(ctx context.Context, source Source, seriesID string) ([]*Row, error) {
	var rows []*Row
	switch source {
	case SourcePrice:
		if r.prices == nil {
			return nil, fmt.Errorf("%w: %s", ErrNoStore, source)
		}
		points, err := r.prices.GetBySeriesID(ctx, seriesID)
		if err != nil {
			return nil, err
		}
		rows = PriceRows(points)
	case SourceRate:
		if r.rates == nil {
			return nil, fmt.Errorf("%w: %s", ErrNoStore, source)
		}
		points, err := r.rates.GetBySeriesID(ctx, seriesID)
		if err != nil {
			return nil, err
		}
		rows = RateRows(points)
	default:
		return nil, fmt.Errorf("%w: %q", ErrNoStore, source)
	}
	return finish(rows)
}

// Run loads a series within [from, to] and replays it through the engine.
func (r *Runner) Run(ctx context.Context, source Source, seriesID string, from, to int64, engine Engine) error {
	rows, err := r.Load(ctx, source, seriesID, from, to)
	if err != nil {
		return err
	}
	return Feed(ctx, rows, engine)
}

// RunAll loads a whole series and replays it through the engine.
func (r *Runner) RunAll(ctx context.Context, source Source, seriesID string, engine Engine) error {
	rows, err := r.LoadAll(ctx, source, seriesID)
	if err != nil {
		return err
	}
	return Feed(ctx, rows, engine)
}

func finish(rows []*Row) ([]*Row, error) {
	SortRows(rows)
	if err := ValidateOrder(rows); err != nil {
		return nil, err
	}
	return rows, nil
}
