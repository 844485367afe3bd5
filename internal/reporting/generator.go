package reporting

import (
	"context"
	"sort"
	"time"

	"amm-curve-lab/internal/domain"
	"amm-curve-lab/internal/storage"
)

// Generator produces reports from stored runs.
type Generator struct {
	runStore storage.BacktestRunStore
	now      func() time.Time // injectable for deterministic output
}

// NewGenerator creates a new report generator.
func NewGenerator(runStore storage.BacktestRunStore) *Generator {
	return &Generator{
		runStore: runStore,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate builds a report over every stored run.
func (g *Generator) Generate(ctx context.Context) (*Report, error) {
	runs, err := g.runStore.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	return g.build(runs), nil
}

// GenerateForSeries builds a report over the runs of one series.
func (g *Generator) GenerateForSeries(ctx context.Context, seriesID string) (*Report, error) {
	runs, err := g.runStore.GetBySeriesID(ctx, seriesID)
	if err != nil {
		return nil, err
	}
	return g.build(runs), nil
}

// FromRuns builds a report over the given runs, e.g. those of one CLI
// invocation.
func (g *Generator) FromRuns(runs []*domain.BacktestRun) *Report {
	return g.build(runs)
}

// NewRunRow flattens a run into a report row.
func NewRunRow(run *domain.BacktestRun) RunRow {
	return RunRow{
		RunID:         run.RunID,
		SeriesID:      run.SeriesID,
		CurveKind:     run.CurveKind,
		Driver:        string(run.Driver),
		FeeRate:       run.FeeRate,
		StepCount:     run.StepCount,
		FromTimestamp: run.FromTimestamp,
		ToTimestamp:   run.ToTimestamp,
		FeeIncome:     run.FeeIncome,
		MaxDrawdown:   run.MaxDrawdown,
		FinalPrice:    run.FinalPrice,
	}
}

func (g *Generator) build(runs []*domain.BacktestRun) *Report {
	r := &Report{
		GeneratedAt: g.now(),
		RunCount:    len(runs),
	}

	series := make(map[string]struct{})
	for _, run := range runs {
		series[run.SeriesID] = struct{}{}
		if run.Status != domain.RunStatusCompleted {
			r.Failures = append(r.Failures, FailureRow{
				RunID:     run.RunID,
				SeriesID:  run.SeriesID,
				CurveKind: run.CurveKind,
				Error:     run.Error,
			})
			continue
		}
		r.Runs = append(r.Runs, NewRunRow(run))
	}
	r.SeriesCount = len(series)
	r.FailedCount = len(r.Failures)

	sortRunRows(r.Runs)
	sort.Slice(r.Failures, func(i, j int) bool { return r.Failures[i].RunID < r.Failures[j].RunID })
	r.KindComparison = compareKinds(r.Runs)
	return r
}

// compareKinds aggregates completed runs per curve kind.
func compareKinds(rows []RunRow) []KindComparisonRow {
	byKind := make(map[string]*KindComparisonRow)
	for _, row := range rows {
		k, ok := byKind[row.CurveKind]
		if !ok {
			k = &KindComparisonRow{CurveKind: row.CurveKind, BestRunID: row.RunID, BestFeeIncome: row.FeeIncome}
			byKind[row.CurveKind] = k
		}
		k.Runs++
		k.MeanFeeIncome += row.FeeIncome
		k.MeanMaxDrawdown += row.MaxDrawdown
		if row.FeeIncome > k.BestFeeIncome || (row.FeeIncome == k.BestFeeIncome && row.RunID < k.BestRunID) {
			k.BestRunID = row.RunID
			k.BestFeeIncome = row.FeeIncome
		}
	}

	out := make([]KindComparisonRow, 0, len(byKind))
	for _, k := range byKind {
		k.MeanFeeIncome /= float64(k.Runs)
		k.MeanMaxDrawdown /= float64(k.Runs)
		out = append(out, *k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CurveKind < out[j].CurveKind })
	return out
}

// sortRunRows sorts by series_id ASC, fee_income DESC, run_id ASC.
func sortRunRows(rows []RunRow) {
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].SeriesID != rows[j].SeriesID {
			return rows[i].SeriesID < rows[j].SeriesID
		}
		if rows[i].FeeIncome != rows[j].FeeIncome {
			return rows[i].FeeIncome > rows[j].FeeIncome
		}
		return rows[i].RunID < rows[j].RunID
	})
}
