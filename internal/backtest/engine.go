package backtest

import (
	"context"
	"math"

	"amm-curve-lab/internal/curve"
	"amm-curve-lab/internal/domain"
	"amm-curve-lab/internal/replay"
)

// Options configures a driver run.
type Options struct {
	// RunID is copied into every recorded step.
	RunID string
	// FeeRate overrides the driver's fee rate when positive. The amm driver
	// defaults to curve.DefaultAMMFeeRate; the samm driver uses the curve's
	// own fee rate.
	FeeRate float64
}

// Results holds the recorded steps of one run.
type Results struct {
	RunID     string
	Driver    domain.Driver
	CurveKind curve.Kind
	FeeRate   float64
	Steps     []*domain.BacktestStep
}

// Engine is a replay.Engine that records backtest steps.
type Engine interface {
	replay.Engine
	Results() *Results
}

// NewEngine returns the engine for driver. The amm driver requires a
// time-decaying curve.
func NewEngine(driver domain.Driver, c curve.Curve, opts Options) (Engine, error) {
	switch driver {
	case domain.DriverAMM:
		td, ok := c.(curve.TimeDecaying)
		if !ok {
			return nil, &mismatchError{driver: driver, kind: c.Kind()}
		}
		return NewAMMEngine(td, opts), nil
	case domain.DriverSAMM:
		return NewSAMMEngine(c, opts), nil
	default:
		return nil, &mismatchError{driver: driver, kind: c.Kind()}
	}
}

// ledger tracks what both drivers share: ordering, the first-row fee
// override and the cumulative fee product.
type ledger struct {
	results    *Results
	started    bool
	start      int64
	last       int64
	cumulative float64
}

func newLedger(driver domain.Driver, kind curve.Kind, runID string, feeRate float64) ledger {
	return ledger{
		results: &Results{
			RunID:     runID,
			Driver:    driver,
			CurveKind: kind,
			FeeRate:   feeRate,
			Steps:     make([]*domain.BacktestStep, 0),
		},
		cumulative: 1,
	}
}

func (l *ledger) stepError(row *replay.Row, err error) *StepError {
	return &StepError{
		Index:     len(l.results.Steps),
		Timestamp: row.Timestamp,
		Input:     row.Value,
		Err:       err,
	}
}

// admit checks ordering and remembers the first timestamp.
func (l *ledger) admit(row *replay.Row) error {
	if l.started && row.Timestamp <= l.last {
		return l.stepError(row, ErrUnorderedSeries)
	}
	if !l.started {
		l.start = row.Timestamp
	}
	return nil
}

// record appends a step. fee is ignored on the first row.
func (l *ledger) record(row *replay.Row, step *domain.BacktestStep, fee float64) {
	if !l.started {
		fee = 0
		l.started = true
	}
	l.last = row.Timestamp
	l.cumulative *= 1 + fee

	step.RunID = l.results.RunID
	step.Index = len(l.results.Steps)
	step.Timestamp = row.Timestamp
	step.Input = row.Value
	step.Fee = fee
	step.CumulativeFee = l.cumulative
	l.results.Steps = append(l.results.Steps, step)
}

// AMMEngine replays an implied-rate series through a time-decaying curve.
type AMMEngine struct {
	ledger
	curve curve.TimeDecaying
}

// NewAMMEngine creates an amm driver engine.
func NewAMMEngine(c curve.TimeDecaying, opts Options) *AMMEngine {
	fee := curve.DefaultAMMFeeRate
	if opts.FeeRate > 0 {
		fee = opts.FeeRate
	}
	return &AMMEngine{
		ledger: newLedger(domain.DriverAMM, c.Kind(), opts.RunID, fee),
		curve:  c,
	}
}

// OnRow sets the clock to the time since the first row, trades to the row's
// rate and records the resulting state.
func (e *AMMEngine) OnRow(_ context.Context, row *replay.Row) error {
	if err := e.admit(row); err != nil {
		return err
	}
	if err := e.curve.SetTime(float64(row.Timestamp - e.start)); err != nil {
		return e.stepError(row, err)
	}
	pt, tt, err := e.curve.RateToPosition(row.Value)
	if err != nil {
		return e.stepError(row, err)
	}
	_, dtt, err := e.curve.SetPosition(pt, tt)
	if err != nil {
		return e.stepError(row, err)
	}
	price, err := e.curve.Price()
	if err != nil {
		return e.stepError(row, err)
	}

	value := price*pt + tt
	fee := 0.0
	if value > 0 {
		fee = math.Abs(dtt) / value * e.results.FeeRate
	}
	t := e.curve.TimeFraction()
	rate := e.curve.ImpliedRate()
	e.record(row, &domain.BacktestStep{
		ReserveA:     pt,
		ReserveB:     tt,
		Invariant:    e.curve.Invariant(),
		Price:        price,
		TimeFraction: &t,
		ImpliedRate:  &rate,
		TotalValue:   value,
	}, fee)
	return nil
}

// Results returns the recorded run.
func (e *AMMEngine) Results() *Results {
	return e.results
}

// SAMMEngine replays a price series through any curve.
type SAMMEngine struct {
	ledger
	curve curve.Curve
}

// NewSAMMEngine creates a samm driver engine.
func NewSAMMEngine(c curve.Curve, opts Options) *SAMMEngine {
	fee := curve.DefaultAMMFeeRate
	if b, ok := c.(curve.Bounded); ok {
		fee = b.FeeRate()
	} else if f, ok := curve.DefaultFeeRate(c.Kind()); ok {
		fee = f
	}
	if opts.FeeRate > 0 {
		fee = opts.FeeRate
	}
	return &SAMMEngine{
		ledger: newLedger(domain.DriverSAMM, c.Kind(), opts.RunID, fee),
		curve:  c,
	}
}

// OnRow trades to the row's price and records the resulting state.
func (e *SAMMEngine) OnRow(_ context.Context, row *replay.Row) error {
	if err := e.admit(row); err != nil {
		return err
	}
	a, b, err := e.curve.PriceToPosition(row.Value)
	if err != nil {
		return e.stepError(row, err)
	}
	da, _, err := e.curve.SetPosition(a, b)
	if err != nil {
		return e.stepError(row, err)
	}
	price, err := e.curve.Price()
	if err != nil {
		return e.stepError(row, err)
	}

	value := a + b*price
	fee := 0.0
	if value > 0 {
		fee = math.Abs(da) * e.results.FeeRate / value
	}
	e.record(row, &domain.BacktestStep{
		ReserveA:   a,
		ReserveB:   b,
		Invariant:  e.curve.Invariant(),
		Price:      price,
		TotalValue: value,
	}, fee)
	return nil
}

// Results returns the recorded run.
func (e *SAMMEngine) Results() *Results {
	return e.results
}

var (
	_ Engine = (*AMMEngine)(nil)
	_ Engine = (*SAMMEngine)(nil)
)
