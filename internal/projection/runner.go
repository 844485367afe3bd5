package projection

import (
	"context"
	"errors"
	"fmt"

	"amm-curve-lab/internal/domain"
	"amm-curve-lab/internal/idhash"
	"amm-curve-lab/internal/observability"
	"amm-curve-lab/internal/storage"
)

// ErrNoEvents is returned when a pair has no stored events.
var ErrNoEvents = errors.New("no pair events")

// Request selects a pair and how to project it.
type Request struct {
	Pair      string
	Decimals0 int32
	Decimals1 int32
	Invert    bool  // emit reserve1/reserve0 instead
	Window    int64 // fee rate look-back in blocks, 0 for DefaultWindow

	// FromHeight/ToHeight bound the events read; both zero reads all.
	FromHeight int64
	ToHeight   int64
}

// Result reports what ProjectPair wrote.
type Result struct {
	PriceSeriesID string
	RateSeriesID  string
	Blocks        int
	PricePoints   int
	RatePoints    int
}

// Runner projects stored pair events into price and rate series.
type Runner struct {
	events storage.PairEventStore
	prices storage.PriceSeriesStore
	rates  storage.RateSeriesStore

	metrics *observability.Metrics
}

// NewRunner creates a projection runner. rates may be nil to skip fee rates.
func NewRunner(events storage.PairEventStore, prices storage.PriceSeriesStore, rates storage.RateSeriesStore) *Runner {
	return &Runner{events: events, prices: prices, rates: rates}
}

// WithMetrics counts projected events and points on m.
func (r *Runner) WithMetrics(m *observability.Metrics) *Runner {
	r.metrics = m
	return r
}

// ProjectPair processes a single pair.
// Steps:
//  1. Load events from the store
//  2. Sort by (height, block_index)
//  3. Aggregate block states
//  4. Generate price series -> store
//  5. Generate fee rates -> store
func (r *Runner) ProjectPair(ctx context.Context, req Request) (*Result, error) {
	events, err := r.load(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoEvents, req.Pair)
	}

	if r.metrics != nil {
		r.metrics.EventsProjected.Add(float64(len(events)))
	}

	SortEvents(events)
	states := BlockStates(events)

	res := &Result{
		PriceSeriesID: idhash.ComputeSeriesID(req.Pair, req.Decimals0, req.Decimals1, req.Invert),
		Blocks:        len(states),
	}

	prices := PriceSeries(states, req.Decimals0, req.Decimals1, res.PriceSeriesID)
	if req.Invert {
		prices = invert(prices)
	}
	if len(prices) > 0 {
		if err := r.prices.InsertBulk(ctx, prices); err != nil {
			return nil, fmt.Errorf("insert price series %s: %w", res.PriceSeriesID, err)
		}
	}
	res.PricePoints = len(prices)
	r.countPoints(len(prices))

	if r.rates == nil {
		return res, nil
	}
	res.RateSeriesID = "fee_" + res.PriceSeriesID
	rates := FeeRates(FeeIndex(states), req.Window, res.RateSeriesID)
	if len(rates) > 0 {
		if err := r.rates.InsertBulk(ctx, rates); err != nil {
			return nil, fmt.Errorf("insert rate series %s: %w", res.RateSeriesID, err)
		}
	}
	res.RatePoints = len(rates)
	r.countPoints(len(rates))
	return res, nil
}

func (r *Runner) countPoints(n int) {
	if r.metrics != nil {
		r.metrics.PointsProjected.Add(float64(n))
	}
}

func (r *Runner) load(ctx context.Context, req Request) ([]*domain.PairEvent, error) {
	var (
		events []*domain.PairEvent
		err    error
	)
	if req.FromHeight == 0 && req.ToHeight == 0 {
		events, err = r.events.GetByPair(ctx, req.Pair)
	} else {
		events, err = r.events.GetByHeightRange(ctx, req.Pair, req.FromHeight, req.ToHeight)
	}
	if err != nil {
		return nil, fmt.Errorf("load events for %s: %w", req.Pair, err)
	}
	return events, nil
}

func invert(points []*domain.PricePoint) []*domain.PricePoint {
	result := make([]*domain.PricePoint, 0, len(points))
	for _, p := range points {
		if p.Price == 0 {
			continue
		}
		result = append(result, &domain.PricePoint{
			SeriesID:  p.SeriesID,
			Timestamp: p.Timestamp,
			Price:     1 / p.Price,
		})
	}
	return result
}
