package backtest

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"testing"

	"amm-curve-lab/internal/curve"
	"amm-curve-lab/internal/domain"
	"amm-curve-lab/internal/replay"
	"amm-curve-lab/internal/storage/memory"
)

const day = 24 * 60 * 60

func newYield(t *testing.T) *curve.Yield {
	t.Helper()
	y, err := curve.NewYield(1000, 1000, curve.DefaultRatePeriod, curve.YieldOptions{})
	if err != nil {
		t.Fatalf("new yield: %v", err)
	}
	return y
}

func randomRates(n int, seed int64) []*domain.RatePoint {
	rng := rand.New(rand.NewSource(seed))
	rows := make([]*domain.RatePoint, n)
	for i := range rows {
		rows[i] = &domain.RatePoint{
			SeriesID:  "synthetic",
			Timestamp: 1_700_000_000 + int64(i)*day,
			Rate:      0.01 + rng.Float64()*0.19,
		}
	}
	return rows
}

func TestRunAMM_YieldRandomRates(t *testing.T) {
	steps, err := RunAMM(newYield(t), randomRates(100, 42), Options{RunID: "run-1"})
	if err != nil {
		t.Fatalf("RunAMM failed: %v", err)
	}
	if len(steps) != 100 {
		t.Fatalf("expected 100 steps, got %d", len(steps))
	}
	if steps[0].Fee != 0 {
		t.Errorf("expected first fee exactly 0, got %g", steps[0].Fee)
	}
	if steps[0].CumulativeFee != 1 {
		t.Errorf("expected first cumulative fee 1, got %g", steps[0].CumulativeFee)
	}

	for i, st := range steps {
		if st.RunID != "run-1" || st.Index != i {
			t.Errorf("step %d: unexpected run id %q or index %d", i, st.RunID, st.Index)
		}
		if st.Fee < 0 {
			t.Errorf("step %d: negative fee %g", i, st.Fee)
		}
		if st.TimeFraction == nil || st.ImpliedRate == nil {
			t.Fatalf("step %d: expected time fraction and implied rate", i)
		}
		if !approx(st.TotalValue, st.ReserveA*st.Price+st.ReserveB, 1e-9) {
			t.Errorf("step %d: total value %f does not match PT*price+TT", i, st.TotalValue)
		}
		if i == 0 {
			continue
		}
		prev := steps[i-1]
		if st.CumulativeFee < prev.CumulativeFee {
			t.Errorf("step %d: cumulative fee decreased from %g to %g", i, prev.CumulativeFee, st.CumulativeFee)
		}
		if *st.TimeFraction > *prev.TimeFraction {
			t.Errorf("step %d: time fraction increased from %f to %f", i, *prev.TimeFraction, *st.TimeFraction)
		}
		if !approx(*st.ImpliedRate, st.Input, 1e-6) {
			t.Errorf("step %d: expected implied rate %f, got %f", i, st.Input, *st.ImpliedRate)
		}
	}
}

func TestRunAMM_FeeFromYieldTokenDelta(t *testing.T) {
	rows := []*domain.RatePoint{
		{SeriesID: "s", Timestamp: 0, Rate: 0.05},
		{SeriesID: "s", Timestamp: day, Rate: 0.08},
	}
	steps, err := RunAMM(newYield(t), rows, Options{FeeRate: 0.01})
	if err != nil {
		t.Fatalf("RunAMM failed: %v", err)
	}
	dtt := math.Abs(steps[1].ReserveB - steps[0].ReserveB)
	want := dtt / (steps[1].Price*steps[1].ReserveA + steps[1].ReserveB) * 0.01
	if !approx(steps[1].Fee, want, 1e-12) {
		t.Errorf("expected fee %g, got %g", want, steps[1].Fee)
	}
	if !approx(steps[1].CumulativeFee, 1+want, 1e-12) {
		t.Errorf("expected cumulative fee %g, got %g", 1+want, steps[1].CumulativeFee)
	}
}

func TestRunSAMM_UniswapV2(t *testing.T) {
	v2, err := curve.NewUniswapV2(1000, 1000, 0)
	if err != nil {
		t.Fatalf("new v2: %v", err)
	}
	rows := []*domain.PricePoint{
		{SeriesID: "s", Timestamp: 10, Price: 1.0},
		{SeriesID: "s", Timestamp: 20, Price: 2.0},
		{SeriesID: "s", Timestamp: 30, Price: 2.001},
	}
	steps, err := RunSAMM(v2, rows, Options{})
	if err != nil {
		t.Fatalf("RunSAMM failed: %v", err)
	}
	if len(steps) != 3 {
		t.Fatalf("expected 3 steps, got %d", len(steps))
	}
	if steps[0].Fee != 0 || steps[0].ReserveA != 1000 || steps[0].ReserveB != 1000 {
		t.Errorf("unexpected first step: %+v", steps[0])
	}

	a, b := 1000*math.Sqrt2, 1000/math.Sqrt2
	if !approx(steps[1].ReserveA, a, 1e-9) || !approx(steps[1].ReserveB, b, 1e-9) {
		t.Errorf("expected reserves (%f, %f), got (%f, %f)", a, b, steps[1].ReserveA, steps[1].ReserveB)
	}
	want := (a - 1000) * 0.003 / (a + b*2)
	if !approx(steps[1].Fee, want, 1e-9) {
		t.Errorf("expected fee %g, got %g", want, steps[1].Fee)
	}

	// 2.001 sits inside the 0.3% band around 2.0.
	if steps[2].Fee != 0 || steps[2].ReserveA != steps[1].ReserveA {
		t.Errorf("expected no trade inside fee band, got %+v", steps[2])
	}
	if steps[2].CumulativeFee != steps[1].CumulativeFee {
		t.Errorf("expected cumulative fee unchanged, got %g", steps[2].CumulativeFee)
	}
}

func TestRunSAMM_TickSwapFeeRateFromCurve(t *testing.T) {
	ts, err := curve.NewTickSwap(curve.KindTickSwapFee10, 100, 100, 0, 0)
	if err != nil {
		t.Fatalf("new tickswap: %v", err)
	}
	engine := NewSAMMEngine(ts, Options{})
	if engine.Results().FeeRate != 0.01 {
		t.Errorf("expected fee rate 0.01, got %g", engine.Results().FeeRate)
	}
	engine = NewSAMMEngine(ts, Options{FeeRate: 0.02})
	if engine.Results().FeeRate != 0.02 {
		t.Errorf("expected override 0.02, got %g", engine.Results().FeeRate)
	}
}

func TestRun_UnorderedSeries(t *testing.T) {
	v2, _ := curve.NewUniswapV2(1000, 1000, 0)
	rows := []*domain.PricePoint{
		{SeriesID: "s", Timestamp: 10, Price: 1.0},
		{SeriesID: "s", Timestamp: 10, Price: 1.5},
	}
	steps, err := RunSAMM(v2, rows, Options{})
	if !errors.Is(err, ErrUnorderedSeries) {
		t.Fatalf("expected ErrUnorderedSeries, got %v", err)
	}
	var stepErr *StepError
	if !errors.As(err, &stepErr) {
		t.Fatalf("expected *StepError, got %T", err)
	}
	if stepErr.Index != 1 || stepErr.Timestamp != 10 || stepErr.Input != 1.5 {
		t.Errorf("unexpected step error: %+v", stepErr)
	}
	if len(steps) != 1 {
		t.Errorf("expected 1 recorded step, got %d", len(steps))
	}
}

func TestRunAMM_DomainErrorReportsRow(t *testing.T) {
	rows := randomRates(3, 7)
	rows[2].Rate = -1.5

	steps, err := RunAMM(newYield(t), rows, Options{})
	if !errors.Is(err, curve.ErrDomain) {
		t.Fatalf("expected curve.ErrDomain, got %v", err)
	}
	var stepErr *StepError
	if !errors.As(err, &stepErr) {
		t.Fatalf("expected *StepError, got %T", err)
	}
	if stepErr.Index != 2 || stepErr.Input != -1.5 || stepErr.Timestamp != rows[2].Timestamp {
		t.Errorf("unexpected step error: %+v", stepErr)
	}
	if len(steps) != 2 {
		t.Errorf("expected 2 recorded steps, got %d", len(steps))
	}
}

func TestNewEngine_DriverMismatch(t *testing.T) {
	v2, _ := curve.NewUniswapV2(1000, 1000, 0)
	if _, err := NewEngine(domain.DriverAMM, v2, Options{}); !errors.Is(err, ErrDriverMismatch) {
		t.Errorf("expected ErrDriverMismatch, got %v", err)
	}
	if _, err := NewEngine(domain.DriverSAMM, newYield(t), Options{}); err != nil {
		t.Errorf("samm driver should accept a yield curve: %v", err)
	}
}

func TestRunner_PendleFromStore(t *testing.T) {
	ctx := context.Background()
	rates := memory.NewRateSeriesStore()
	rows := randomRates(20, 3)
	// stored out of order; the runner sorts
	rows[0], rows[5] = rows[5], rows[0]
	if err := rates.InsertBulk(ctx, rows); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	a, c, err := curve.CoeffAC(0, 0.25, nil, curve.DefaultRatePeriod)
	if err != nil {
		t.Fatalf("coeff: %v", err)
	}
	p, err := curve.NewPendle(1000, 1000, curve.DefaultRatePeriod, a, c, curve.PendleOptions{})
	if err != nil {
		t.Fatalf("new pendle: %v", err)
	}

	runner := NewRunner(replay.NewRunner(nil, rates))
	results, err := runner.RunAll(ctx, domain.DriverAMM, p, "synthetic", Options{RunID: "r"})
	if err != nil {
		t.Fatalf("RunAll failed: %v", err)
	}
	if results.Driver != domain.DriverAMM || results.CurveKind != curve.KindPendle {
		t.Errorf("unexpected results header: %+v", results)
	}
	if len(results.Steps) != 20 {
		t.Fatalf("expected 20 steps, got %d", len(results.Steps))
	}
	for i := 1; i < len(results.Steps); i++ {
		if results.Steps[i].Timestamp <= results.Steps[i-1].Timestamp {
			t.Fatalf("steps not in timestamp order at %d", i)
		}
		if results.Steps[i].CumulativeFee < results.Steps[i-1].CumulativeFee {
			t.Errorf("step %d: cumulative fee decreased", i)
		}
	}
}

func approx(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol*math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
}
