package verification

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"amm-curve-lab/internal/config"
	"amm-curve-lab/internal/curve"
	"amm-curve-lab/internal/domain"
	"amm-curve-lab/internal/simulation"
	"amm-curve-lab/internal/storage/memory"
)

type stores struct {
	prices *memory.PriceSeriesStore
	rates  *memory.RateSeriesStore
	runs   *memory.BacktestRunStore
	steps  *memory.BacktestStepStore
}

func seededStores(t *testing.T) *stores {
	t.Helper()
	ctx := context.Background()
	s := &stores{
		prices: memory.NewPriceSeriesStore(),
		rates:  memory.NewRateSeriesStore(),
		runs:   memory.NewBacktestRunStore(),
		steps:  memory.NewBacktestStepStore(),
	}

	var prices []*domain.PricePoint
	for i, p := range []float64{1.0, 1.02, 0.97, 1.05, 1.01} {
		prices = append(prices, &domain.PricePoint{SeriesID: "px", Timestamp: int64(100 + i*60), Price: p})
	}
	var rates []*domain.RatePoint
	for i := 0; i < 10; i++ {
		rates = append(rates, &domain.RatePoint{SeriesID: "pt", Timestamp: int64(1000 + i*86400), Rate: 0.05 + 0.002*float64(i%3)})
	}
	if err := s.prices.InsertBulk(ctx, prices); err != nil {
		t.Fatalf("seed prices: %v", err)
	}
	if err := s.rates.InsertBulk(ctx, rates); err != nil {
		t.Fatalf("seed rates: %v", err)
	}
	return s
}

func (s *stores) simulate(t *testing.T, runs ...config.RunConfig) []*simulation.Outcome {
	t.Helper()
	nop := zerolog.Nop()
	runner := simulation.NewRunner(simulation.RunnerOptions{
		PriceStore: s.prices,
		RateStore:  s.rates,
		RunStore:   s.runs,
		StepStore:  s.steps,
		Logger:     &nop,
	})
	outcomes, err := runner.RunAll(context.Background(), runs, 2)
	if err != nil {
		t.Fatalf("simulate: %v", err)
	}
	return outcomes
}

func (s *stores) verifier() *ReplayVerifier {
	return NewReplayVerifier(ReplayVerifierOptions{
		RunStore:   s.runs,
		StepStore:  s.steps,
		PriceStore: s.prices,
		RateStore:  s.rates,
	})
}

func TestVerifyRun_Match(t *testing.T) {
	s := seededStores(t)
	outcomes := s.simulate(t,
		config.RunConfig{Name: "v2", SeriesID: "px", Curve: curve.Params{Kind: curve.KindUniswapV2, ReserveA: 500, ReserveB: 500}},
		config.RunConfig{Name: "pendle", SeriesID: "pt", Curve: curve.Params{
			Kind: curve.KindPendle, ReserveA: 1000, ReserveB: 1000, TotalDuration: 365 * 86400,
			RateLower: 0.01, RateUpper: 0.2,
		}},
	)

	for _, out := range outcomes {
		result, err := s.verifier().VerifyRun(context.Background(), out.Run.RunID)
		if err != nil {
			t.Fatalf("VerifyRun(%s): %v", out.Name, err)
		}
		if !result.Match {
			t.Errorf("%s: expected match, got divergences %+v", out.Name, result.Divergences)
		}
		if result.StoredFeeIncome != result.ReplayedFeeIncome {
			t.Errorf("%s: fee income %g vs %g", out.Name, result.StoredFeeIncome, result.ReplayedFeeIncome)
		}
	}
}

func TestVerifyRun_NotFound(t *testing.T) {
	s := seededStores(t)
	if _, err := s.verifier().VerifyRun(context.Background(), "missing"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("expected ErrRunNotFound, got %v", err)
	}
}

func TestVerifyRun_Divergence(t *testing.T) {
	ctx := context.Background()
	s := seededStores(t)

	paramsJSON := `{"kind":"uniswap_v2","reserve_a":500,"reserve_b":500}`
	run := &domain.BacktestRun{
		RunID: "tampered", SeriesID: "px", CurveKind: "uniswap_v2", Driver: domain.DriverSAMM,
		FeeRate: 0.003, Params: paramsJSON, FromTimestamp: 100, ToTimestamp: 160,
		Status: domain.RunStatusCompleted,
	}
	steps := []*domain.BacktestStep{
		{RunID: "tampered", Index: 0, Timestamp: 100, Input: 1.0, ReserveA: 500, ReserveB: 500, Invariant: 500, Price: 1, CumulativeFee: 1, TotalValue: 1000},
	}
	if err := s.runs.Insert(ctx, run); err != nil {
		t.Fatalf("insert run: %v", err)
	}
	if err := s.steps.InsertBulk(ctx, steps); err != nil {
		t.Fatalf("insert steps: %v", err)
	}

	result, err := s.verifier().VerifyRun(ctx, "tampered")
	if err != nil {
		t.Fatalf("VerifyRun: %v", err)
	}
	if result.Match {
		t.Fatal("expected divergence")
	}
	if result.Divergences[0].Field != "len(steps)" {
		t.Errorf("expected step count divergence first, got %s", result.Divergences[0].Field)
	}
}

func TestVerifyAll_SkipsFailedRuns(t *testing.T) {
	ctx := context.Background()
	s := seededStores(t)
	s.simulate(t, config.RunConfig{Name: "v2", SeriesID: "px", Curve: curve.Params{Kind: curve.KindUniswapV2, ReserveA: 500, ReserveB: 500}})

	failed := &domain.BacktestRun{RunID: "failed", SeriesID: "px", Status: domain.RunStatusFailed, Error: "boom"}
	if err := s.runs.Insert(ctx, failed); err != nil {
		t.Fatalf("insert run: %v", err)
	}

	report, err := s.verifier().VerifyAll(ctx)
	if err != nil {
		t.Fatalf("VerifyAll: %v", err)
	}
	if report.TotalRuns != 2 || report.MatchedRuns != 1 || report.SkippedRuns != 1 || report.DivergentRuns != 0 {
		t.Errorf("unexpected report %+v", report)
	}
}

func TestCompareSteps(t *testing.T) {
	rate := 0.05
	a := []*domain.BacktestStep{{Index: 0, Timestamp: 1, Price: 1.0, ImpliedRate: &rate}}
	b := []*domain.BacktestStep{{Index: 0, Timestamp: 1, Price: 1.0 + 1e-12, ImpliedRate: &rate}}
	if d := CompareSteps(a, b); len(d) != 0 {
		t.Errorf("expected no divergence within tolerance, got %+v", d)
	}

	c := []*domain.BacktestStep{{Index: 0, Timestamp: 1, Price: 1.1}}
	d := CompareSteps(a, c)
	if len(d) != 2 {
		t.Fatalf("expected 2 divergences, got %+v", d)
	}
	for _, div := range d {
		if !strings.HasPrefix(div.Field, "steps[0].") {
			t.Errorf("unexpected field name %s", div.Field)
		}
	}
}
