package backtest

import (
	"context"

	"amm-curve-lab/internal/curve"
	"amm-curve-lab/internal/domain"
	"amm-curve-lab/internal/replay"
)

// RunAMM replays rate rows through c. Rows must be strictly ordered by
// timestamp. On failure the steps recorded so far are returned with a
// *StepError.
func RunAMM(c curve.TimeDecaying, rows []*domain.RatePoint, opts Options) ([]*domain.BacktestStep, error) {
	engine := NewAMMEngine(c, opts)
	err := replay.Feed(context.Background(), replay.RateRows(rows), engine)
	return engine.Results().Steps, err
}

// RunSAMM replays price rows through c. Rows must be strictly ordered by
// timestamp. On failure the steps recorded so far are returned with a
// *StepError.
func RunSAMM(c curve.Curve, rows []*domain.PricePoint, opts Options) ([]*domain.BacktestStep, error) {
	engine := NewSAMMEngine(c, opts)
	err := replay.Feed(context.Background(), replay.PriceRows(rows), engine)
	return engine.Results().Steps, err
}

// Runner executes backtests over stored series.
type Runner struct {
	replayRunner *replay.Runner
}

// NewRunner creates a new backtest runner.
func NewRunner(replayRunner *replay.Runner) *Runner {
	return &Runner{replayRunner: replayRunner}
}

// Run replays the series rows within [from, to] through c. The amm driver
// reads the rate series, the samm driver the price series.
func (r *Runner) Run(ctx context.Context, driver domain.Driver, c curve.Curve, seriesID string, from, to int64, opts Options) (*Results, error) {
	engine, err := NewEngine(driver, c, opts)
	if err != nil {
		return nil, err
	}
	if err := r.replayRunner.Run(ctx, sourceFor(driver), seriesID, from, to, engine); err != nil {
		return engine.Results(), err
	}
	return engine.Results(), nil
}

// RunAll replays every row of the series through c.
func (r *Runner) RunAll(ctx context.Context, driver domain.Driver, c curve.Curve, seriesID string, opts Options) (*Results, error) {
	engine, err := NewEngine(driver, c, opts)
	if err != nil {
		return nil, err
	}
	if err := r.replayRunner.RunAll(ctx, sourceFor(driver), seriesID, engine); err != nil {
		return engine.Results(), err
	}
	return engine.Results(), nil
}

func sourceFor(driver domain.Driver) replay.Source {
	if driver == domain.DriverAMM {
		return replay.SourceRate
	}
	return replay.SourcePrice
}
