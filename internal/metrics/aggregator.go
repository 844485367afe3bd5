package metrics

import (
	"context"
	"fmt"
	"sort"

	"amm-curve-lab/internal/domain"
	"amm-curve-lab/internal/storage"
)

// Aggregator computes run statistics from stored steps and ranks stored runs.
type Aggregator struct {
	runStore  storage.BacktestRunStore
	stepStore storage.BacktestStepStore
}

// NewAggregator creates a new aggregator.
func NewAggregator(runStore storage.BacktestRunStore, stepStore storage.BacktestStepStore) *Aggregator {
	return &Aggregator{runStore: runStore, stepStore: stepStore}
}

// SummarizeRun loads the steps of runID and summarizes them.
// Returns storage.ErrNotFound when the run does not exist.
func (a *Aggregator) SummarizeRun(ctx context.Context, runID string) (*Summary, error) {
	if _, err := a.runStore.GetByID(ctx, runID); err != nil {
		return nil, err
	}
	steps, err := a.stepStore.GetByRunID(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("load steps for run %s: %w", runID, err)
	}
	return Summarize(steps), nil
}

// RankBySeries returns the completed runs of a series ordered by fee income
// DESC, then max drawdown ASC, then run id ASC.
func (a *Aggregator) RankBySeries(ctx context.Context, seriesID string) ([]*domain.BacktestRun, error) {
	runs, err := a.runStore.GetBySeriesID(ctx, seriesID)
	if err != nil {
		return nil, err
	}
	return Rank(runs), nil
}

// Rank filters completed runs and orders them like RankBySeries.
func Rank(runs []*domain.BacktestRun) []*domain.BacktestRun {
	ranked := make([]*domain.BacktestRun, 0, len(runs))
	for _, r := range runs {
		if r.Status == domain.RunStatusCompleted {
			ranked = append(ranked, r)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].FeeIncome != ranked[j].FeeIncome {
			return ranked[i].FeeIncome > ranked[j].FeeIncome
		}
		if ranked[i].MaxDrawdown != ranked[j].MaxDrawdown {
			return ranked[i].MaxDrawdown < ranked[j].MaxDrawdown
		}
		return ranked[i].RunID < ranked[j].RunID
	})
	return ranked
}
