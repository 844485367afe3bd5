package metrics

import (
	"context"
	"errors"
	"testing"

	"amm-curve-lab/internal/domain"
	"amm-curve-lab/internal/storage"
	"amm-curve-lab/internal/storage/memory"
)

func TestAggregator_SummarizeRun(t *testing.T) {
	ctx := context.Background()
	runs := memory.NewBacktestRunStore()
	steps := memory.NewBacktestStepStore()

	if err := runs.Insert(ctx, &domain.BacktestRun{RunID: "r1", SeriesID: "s", Status: domain.RunStatusCompleted}); err != nil {
		t.Fatalf("insert run: %v", err)
	}
	if err := steps.InsertBulk(ctx, makeSteps([]float64{0, 0.1}, []float64{1, 1})); err != nil {
		t.Fatalf("insert steps: %v", err)
	}

	agg := NewAggregator(runs, steps)
	s, err := agg.SummarizeRun(ctx, "r1")
	if err != nil {
		t.Fatalf("SummarizeRun failed: %v", err)
	}
	if s.StepCount != 2 || s.FeeBearingSteps != 1 {
		t.Errorf("unexpected summary: %+v", s)
	}

	if _, err := agg.SummarizeRun(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestRank(t *testing.T) {
	runs := []*domain.BacktestRun{
		{RunID: "c", FeeIncome: 0.02, MaxDrawdown: 0.1, Status: domain.RunStatusCompleted},
		{RunID: "a", FeeIncome: 0.05, MaxDrawdown: 0.3, Status: domain.RunStatusCompleted},
		{RunID: "f", FeeIncome: 0.90, Status: domain.RunStatusFailed},
		{RunID: "b", FeeIncome: 0.02, MaxDrawdown: 0.05, Status: domain.RunStatusCompleted},
	}
	ranked := Rank(runs)
	if len(ranked) != 3 {
		t.Fatalf("expected 3 completed runs, got %d", len(ranked))
	}
	for i, want := range []string{"a", "b", "c"} {
		if ranked[i].RunID != want {
			t.Errorf("position %d: expected %s, got %s", i, want, ranked[i].RunID)
		}
	}
}
