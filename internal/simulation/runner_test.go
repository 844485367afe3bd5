package simulation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"

	"amm-curve-lab/internal/backtest"
	"amm-curve-lab/internal/config"
	"amm-curve-lab/internal/curve"
	"amm-curve-lab/internal/domain"
	"amm-curve-lab/internal/idhash"
	"amm-curve-lab/internal/observability"
	"amm-curve-lab/internal/storage/memory"
)

const day = 86400

type fixture struct {
	prices  *memory.PriceSeriesStore
	rates   *memory.RateSeriesStore
	runs    *memory.BacktestRunStore
	steps   *memory.BacktestStepStore
	metrics *observability.Metrics
	runner  *Runner
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		prices:  memory.NewPriceSeriesStore(),
		rates:   memory.NewRateSeriesStore(),
		runs:    memory.NewBacktestRunStore(),
		steps:   memory.NewBacktestStepStore(),
		metrics: observability.NewMetrics("test", prometheus.NewRegistry()),
	}
	nop := zerolog.Nop()
	f.runner = NewRunner(RunnerOptions{
		PriceStore: f.prices,
		RateStore:  f.rates,
		RunStore:   f.runs,
		StepStore:  f.steps,
		Metrics:    f.metrics,
		Logger:     &nop,
		Clock:      func() time.Time { return time.Unix(1_700_000_000, 0) },
	})
	return f
}

func (f *fixture) seedRates(t *testing.T, seriesID string, n int) {
	t.Helper()
	rows := make([]*domain.RatePoint, n)
	for i := range rows {
		rows[i] = &domain.RatePoint{
			SeriesID:  seriesID,
			Timestamp: 1_600_000_000 + int64(i)*day,
			Rate:      0.04 + 0.001*float64(i%7),
		}
	}
	if err := f.rates.InsertBulk(context.Background(), rows); err != nil {
		t.Fatalf("seed rates: %v", err)
	}
}

func (f *fixture) seedPrices(t *testing.T, seriesID string, prices ...float64) {
	t.Helper()
	rows := make([]*domain.PricePoint, len(prices))
	for i, p := range prices {
		rows[i] = &domain.PricePoint{SeriesID: seriesID, Timestamp: 1_600_000_000 + int64(i)*60, Price: p}
	}
	if err := f.prices.InsertBulk(context.Background(), rows); err != nil {
		t.Fatalf("seed prices: %v", err)
	}
}

func yieldRun(name, seriesID string) config.RunConfig {
	return config.RunConfig{
		Name:     name,
		SeriesID: seriesID,
		Curve: curve.Params{
			Kind:          curve.KindYield,
			ReserveA:      1000,
			ReserveB:      1000,
			TotalDuration: 365 * day,
		},
	}
}

func v2Run(name, seriesID string) config.RunConfig {
	return config.RunConfig{
		Name:     name,
		SeriesID: seriesID,
		Curve:    curve.Params{Kind: curve.KindUniswapV2, ReserveA: 1000, ReserveB: 1000},
	}
}

func TestRunner_Run_PersistsCompletedRun(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedRates(t, "pt", 30)

	out, err := f.runner.Run(ctx, yieldRun("yield-pt", "pt"))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Err != nil {
		t.Fatalf("unexpected run failure: %v", out.Err)
	}

	run := out.Run
	if run.Status != domain.RunStatusCompleted {
		t.Errorf("expected COMPLETED, got %s", run.Status)
	}
	if run.Driver != domain.DriverAMM {
		t.Errorf("expected default driver amm, got %s", run.Driver)
	}
	if run.StepCount != 30 {
		t.Errorf("expected 30 steps, got %d", run.StepCount)
	}
	if run.FeeRate != curve.DefaultAMMFeeRate {
		t.Errorf("expected fee rate %g, got %g", curve.DefaultAMMFeeRate, run.FeeRate)
	}
	if run.FeeIncome < 0 {
		t.Errorf("expected non-negative fee income, got %g", run.FeeIncome)
	}
	if run.CreatedAt != 1_700_000_000_000 {
		t.Errorf("expected created_at from clock, got %d", run.CreatedAt)
	}

	stored, err := f.runs.GetByID(ctx, run.RunID)
	if err != nil {
		t.Fatalf("stored run: %v", err)
	}
	if stored.StepCount != 30 {
		t.Errorf("expected stored step count 30, got %d", stored.StepCount)
	}
	steps, _ := f.steps.GetByRunID(ctx, run.RunID)
	if len(steps) != 30 {
		t.Errorf("expected 30 stored steps, got %d", len(steps))
	}

	if got := testutil.ToFloat64(f.metrics.RunsTotal.WithLabelValues("yield", "amm", domain.RunStatusCompleted)); got != 1 {
		t.Errorf("expected 1 completed run metric, got %g", got)
	}
}

func TestRunner_Run_SkipsStoredRun(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedRates(t, "pt", 5)

	first, err := f.runner.Run(ctx, yieldRun("a", "pt"))
	if err != nil {
		t.Fatalf("first Run: %v", err)
	}
	second, err := f.runner.Run(ctx, yieldRun("b", "pt"))
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if !second.Skipped {
		t.Error("expected second run to be skipped")
	}
	if second.Run.RunID != first.Run.RunID {
		t.Errorf("expected same run id, got %s and %s", first.Run.RunID, second.Run.RunID)
	}
}

func TestRunner_Run_StepFailureStoredAsFailed(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedPrices(t, "px", 1.0, 1.1, -1, 1.2)

	out, err := f.runner.Run(ctx, v2Run("v2", "px"))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	var stepErr *backtest.StepError
	if !errors.As(out.Err, &stepErr) {
		t.Fatalf("expected *StepError, got %v", out.Err)
	}
	if stepErr.Index != 2 {
		t.Errorf("expected failing row 2, got %d", stepErr.Index)
	}
	if !errors.Is(out.Err, curve.ErrDomain) {
		t.Errorf("expected curve.ErrDomain, got %v", out.Err)
	}

	if out.Run.Status != domain.RunStatusFailed || out.Run.Error == "" {
		t.Errorf("expected FAILED run with error, got %s %q", out.Run.Status, out.Run.Error)
	}
	if out.Run.StepCount != 2 {
		t.Errorf("expected 2 recorded steps, got %d", out.Run.StepCount)
	}
	if _, err := f.runs.GetByID(ctx, out.Run.RunID); err != nil {
		t.Errorf("expected failed run to be stored: %v", err)
	}
	if got := testutil.ToFloat64(f.metrics.StepErrors.WithLabelValues("uniswap_v2")); got != 1 {
		t.Errorf("expected 1 step error metric, got %g", got)
	}
}

func TestRunner_Run_EmptySeries(t *testing.T) {
	f := newFixture(t)

	out, err := f.runner.Run(context.Background(), v2Run("empty", "nothing"))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !errors.Is(out.Err, ErrEmptySeries) {
		t.Errorf("expected ErrEmptySeries, got %v", out.Err)
	}
	if out.Run.Status != domain.RunStatusFailed {
		t.Errorf("expected FAILED, got %s", out.Run.Status)
	}
}

func TestRunner_Run_Window(t *testing.T) {
	f := newFixture(t)
	f.seedPrices(t, "px", 1.0, 1.1, 1.2, 1.3, 1.4)

	cfg := v2Run("window", "px")
	cfg.From = 1_600_000_060
	cfg.To = 1_600_000_180

	out, err := f.runner.Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Run.StepCount != 3 {
		t.Errorf("expected 3 steps in window, got %d", out.Run.StepCount)
	}
	if out.Run.FromTimestamp != cfg.From || out.Run.ToTimestamp != cfg.To {
		t.Errorf("expected window [%d, %d], got [%d, %d]", cfg.From, cfg.To, out.Run.FromTimestamp, out.Run.ToTimestamp)
	}

	cfg.To = 0
	cfg.Name = "open-ended"
	out, err = f.runner.Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Run.StepCount != 4 {
		t.Errorf("expected 4 steps from %d on, got %d", cfg.From, out.Run.StepCount)
	}
}

func TestRunner_Run_ConfigErrors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	bad := v2Run("bad", "px")
	bad.Curve.ReserveA = -1
	if _, err := f.runner.Run(ctx, bad); !errors.Is(err, curve.ErrInvalidConfig) {
		t.Errorf("expected curve.ErrInvalidConfig, got %v", err)
	}

	mismatch := v2Run("mismatch", "px")
	mismatch.Driver = domain.DriverAMM
	if _, err := f.runner.Run(ctx, mismatch); !errors.Is(err, backtest.ErrDriverMismatch) {
		t.Errorf("expected backtest.ErrDriverMismatch, got %v", err)
	}

	all, _ := f.runs.GetAll(ctx)
	if len(all) != 0 {
		t.Errorf("expected no stored runs, got %d", len(all))
	}
}

func TestRunner_Run_Cancelled(t *testing.T) {
	f := newFixture(t)
	f.seedPrices(t, "px", 1.0, 1.1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := f.runner.Run(ctx, v2Run("cancelled", "px")); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestRunner_RunAll_KeepsOrder(t *testing.T) {
	f := newFixture(t)
	f.seedRates(t, "pt", 10)
	f.seedPrices(t, "px", 1.0, 1.05, 0.98)

	runs := []config.RunConfig{
		yieldRun("yield", "pt"),
		v2Run("v2", "px"),
		{
			Name:     "v3",
			SeriesID: "px",
			Curve:    curve.Params{Kind: curve.KindUniswapV3, ReserveA: 100, ReserveB: 100},
		},
		{
			Name:     "tick",
			SeriesID: "px",
			Curve:    curve.Params{Kind: curve.KindTickSwapFee10, ReserveA: 100, ReserveB: 100},
		},
	}

	outcomes, err := f.runner.RunAll(context.Background(), runs, 2)
	if err != nil {
		t.Fatalf("RunAll: %v", err)
	}
	if len(outcomes) != len(runs) {
		t.Fatalf("expected %d outcomes, got %d", len(runs), len(outcomes))
	}
	for i, out := range outcomes {
		if out.Name != runs[i].Name {
			t.Errorf("outcome %d: expected %s, got %s", i, runs[i].Name, out.Name)
		}
		if out.Err != nil {
			t.Errorf("outcome %s: unexpected failure %v", out.Name, out.Err)
		}
	}

	all, _ := f.runs.GetAll(context.Background())
	if len(all) != len(runs) {
		t.Errorf("expected %d stored runs, got %d", len(runs), len(all))
	}
}

func TestRunner_RunAll_StopsOnError(t *testing.T) {
	f := newFixture(t)
	bad := v2Run("bad", "px")
	bad.Curve.Kind = "unknown"

	_, err := f.runner.RunAll(context.Background(), []config.RunConfig{bad}, 0)
	if !errors.Is(err, curve.ErrInvalidConfig) {
		t.Errorf("expected curve.ErrInvalidConfig, got %v", err)
	}
}

var errRunInsert = errors.New("run insert failed")

// flakyRunStore fails inserts while fail is set.
type flakyRunStore struct {
	*memory.BacktestRunStore
	fail bool
}

func (s *flakyRunStore) Insert(ctx context.Context, r *domain.BacktestRun) error {
	if s.fail {
		return errRunInsert
	}
	return s.BacktestRunStore.Insert(ctx, r)
}

func runIDFor(t *testing.T, cfg config.RunConfig) string {
	t.Helper()
	params, err := idhash.CanonicalParams(cfg.Curve)
	if err != nil {
		t.Fatalf("canonical params: %v", err)
	}
	return idhash.ComputeRunID(cfg.SeriesID, config.DefaultDriver(cfg.Curve.Kind), params, cfg.FeeRate, cfg.From, cfg.To)
}

func TestRunner_Run_FailedRunInsertRemovesSteps(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedRates(t, "pt", 10)

	runs := &flakyRunStore{BacktestRunStore: f.runs, fail: true}
	nop := zerolog.Nop()
	runner := NewRunner(RunnerOptions{
		PriceStore: f.prices,
		RateStore:  f.rates,
		RunStore:   runs,
		StepStore:  f.steps,
		Logger:     &nop,
	})

	cfg := yieldRun("yield-pt", "pt")
	runID := runIDFor(t, cfg)

	if _, err := runner.Run(ctx, cfg); !errors.Is(err, errRunInsert) {
		t.Fatalf("expected run insert error, got %v", err)
	}
	if steps, _ := f.steps.GetByRunID(ctx, runID); len(steps) != 0 {
		t.Errorf("expected no steps after failed run insert, got %d", len(steps))
	}

	runs.fail = false
	out, err := runner.Run(ctx, cfg)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if out.Skipped || out.Run.RunID != runID {
		t.Fatalf("expected retry to run %s, got skipped=%v id=%s", runID, out.Skipped, out.Run.RunID)
	}
	if steps, _ := f.steps.GetByRunID(ctx, runID); len(steps) != 10 {
		t.Errorf("expected 10 stored steps after retry, got %d", len(steps))
	}
}

func TestRunner_Run_ClearsLeftoverSteps(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedRates(t, "pt", 10)

	cfg := yieldRun("yield-pt", "pt")
	runID := runIDFor(t, cfg)

	// steps written by an interrupted run, with no run row
	leftover := []*domain.BacktestStep{
		{RunID: runID, Index: 0},
		{RunID: runID, Index: 42},
	}
	if err := f.steps.InsertBulk(ctx, leftover); err != nil {
		t.Fatalf("seed steps: %v", err)
	}

	out, err := f.runner.Run(ctx, cfg)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Run.Status != domain.RunStatusCompleted {
		t.Fatalf("expected COMPLETED, got %s: %s", out.Run.Status, out.Run.Error)
	}
	steps, _ := f.steps.GetByRunID(ctx, runID)
	if len(steps) != 10 {
		t.Fatalf("expected 10 stored steps, got %d", len(steps))
	}
	if steps[len(steps)-1].Index != 9 {
		t.Errorf("expected leftover step 42 removed, last index %d", steps[len(steps)-1].Index)
	}
}
