// Package simulation runs configured backtests end to end: curve
// construction, replay, summary, persistence and metrics.
package simulation

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"amm-curve-lab/internal/backtest"
	"amm-curve-lab/internal/config"
	"amm-curve-lab/internal/curve"
	"amm-curve-lab/internal/domain"
	"amm-curve-lab/internal/idhash"
	"amm-curve-lab/internal/logger"
	"amm-curve-lab/internal/metrics"
	"amm-curve-lab/internal/observability"
	"amm-curve-lab/internal/replay"
	"amm-curve-lab/internal/storage"
)

// ErrEmptySeries marks a run whose series window held no rows.
var ErrEmptySeries = errors.New("empty series")

// Outcome is the result of one run.
type Outcome struct {
	Name    string
	Run     *domain.BacktestRun
	Steps   []*domain.BacktestStep
	Summary *metrics.Summary

	// Err is the step or ordering failure of a FAILED run.
	Err error
	// Skipped is set when the run id was already stored.
	Skipped bool
}

// Runner executes backtest runs against series stores.
type Runner struct {
	backtest  *backtest.Runner
	runStore  storage.BacktestRunStore
	stepStore storage.BacktestStepStore
	metrics   *observability.Metrics
	log       zerolog.Logger
	now       func() time.Time
}

// RunnerOptions contains configuration for creating a Runner.
type RunnerOptions struct {
	PriceStore storage.PriceSeriesStore
	RateStore  storage.RateSeriesStore

	// Optional. Runs are not persisted without them.
	RunStore  storage.BacktestRunStore
	StepStore storage.BacktestStepStore

	Metrics *observability.Metrics // optional
	Logger  *zerolog.Logger        // defaults to the "simulation" component logger
	Clock   func() time.Time       // defaults to time.Now
}

// NewRunner creates a simulation runner.
func NewRunner(opts RunnerOptions) *Runner {
	r := &Runner{
		backtest:  backtest.NewRunner(replay.NewRunner(opts.PriceStore, opts.RateStore)),
		runStore:  opts.RunStore,
		stepStore: opts.StepStore,
		metrics:   opts.Metrics,
		now:       opts.Clock,
	}
	if opts.Logger != nil {
		r.log = *opts.Logger
	} else {
		r.log = logger.GetForComponent("simulation")
	}
	if r.now == nil {
		r.now = time.Now
	}
	return r
}

// Run executes one configured run.
// Steps:
//  1. Build the curve from params
//  2. Derive the run id, skip if already stored
//  3. Replay the series through the driver
//  4. Summarize steps into a BacktestRun
//  5. Persist steps and run
//
// A step or ordering failure yields a FAILED run with Outcome.Err set and a
// nil error. The returned error covers bad params, a driver/curve mismatch,
// cancellation and storage failures.
func (r *Runner) Run(ctx context.Context, cfg config.RunConfig) (*Outcome, error) {
	start := r.now()

	driver := cfg.Driver
	if driver == "" {
		driver = config.DefaultDriver(cfg.Curve.Kind)
	}

	// 1. Build curve
	c, err := curve.New(cfg.Curve)
	if err != nil {
		return nil, fmt.Errorf("run %s: %w", cfg.Name, err)
	}

	// 2. Run id
	paramsJSON, err := idhash.CanonicalParams(cfg.Curve)
	if err != nil {
		return nil, fmt.Errorf("run %s: %w", cfg.Name, err)
	}
	runID := idhash.ComputeRunID(cfg.SeriesID, driver, paramsJSON, cfg.FeeRate, cfg.From, cfg.To)
	log := r.log.With().Str("run", cfg.Name).Str("run_id", runID).Str("series", cfg.SeriesID).Logger()

	if existing, err := r.lookup(ctx, runID); err != nil {
		return nil, err
	} else if existing != nil {
		log.Info().Msg("run already stored, skipping")
		return &Outcome{Name: cfg.Name, Run: existing, Skipped: true}, nil
	}

	// 3. Replay
	opts := backtest.Options{RunID: runID, FeeRate: cfg.FeeRate}
	var res *backtest.Results
	if cfg.From == 0 && cfg.To == 0 {
		res, err = r.backtest.RunAll(ctx, driver, c, cfg.SeriesID, opts)
	} else {
		to := cfg.To
		if to == 0 {
			to = math.MaxInt64
		}
		res, err = r.backtest.Run(ctx, driver, c, cfg.SeriesID, cfg.From, to, opts)
	}
	if err != nil && !isRunFailure(err) {
		return nil, fmt.Errorf("run %s: %w", cfg.Name, err)
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, fmt.Errorf("run %s: %w", cfg.Name, ctxErr)
	}

	runErr := err
	if runErr == nil && len(res.Steps) == 0 {
		runErr = fmt.Errorf("%w: %s", ErrEmptySeries, cfg.SeriesID)
	}

	// 4. Summarize
	summary := metrics.Summarize(res.Steps)
	run := &domain.BacktestRun{
		RunID:     runID,
		SeriesID:  cfg.SeriesID,
		CurveKind: string(c.Kind()),
		Driver:    driver,
		FeeRate:   res.FeeRate,
		Params:    paramsJSON,
		Status:    domain.RunStatusCompleted,
		CreatedAt: r.now().UnixMilli(),
	}
	summary.ApplyToRun(run, res.Steps)
	if runErr != nil {
		run.Status = domain.RunStatusFailed
		run.Error = runErr.Error()
	}

	// 5. Persist
	if err := r.persist(ctx, run, res.Steps); err != nil {
		return nil, fmt.Errorf("run %s: %w", cfg.Name, err)
	}

	r.record(run, runErr, r.now().Sub(start))

	ev := log.Info()
	if runErr != nil {
		ev = log.Warn().Err(runErr)
	}
	ev.Str("status", run.Status).
		Int("steps", run.StepCount).
		Float64("fee_income", run.FeeIncome).
		Float64("max_drawdown", run.MaxDrawdown).
		Msg("backtest run finished")

	return &Outcome{
		Name:    cfg.Name,
		Run:     run,
		Steps:   res.Steps,
		Summary: summary,
		Err:     runErr,
	}, nil
}

// RunAll executes runs concurrently with at most parallelism in flight.
// Outcomes keep the order of runs. The first returned error cancels the
// remaining runs.
func (r *Runner) RunAll(ctx context.Context, runs []config.RunConfig, parallelism int) ([]*Outcome, error) {
	if parallelism <= 0 {
		parallelism = 1
	}

	outcomes := make([]*Outcome, len(runs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)

	for i := range runs {
		i := i
		g.Go(func() error {
			out, err := r.Run(gctx, runs[i])
			if err != nil {
				return err
			}
			outcomes[i] = out
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return outcomes, err
	}
	return outcomes, nil
}

// isRunFailure reports whether err comes from the series data rather than
// the environment. Such runs are stored as FAILED.
func isRunFailure(err error) bool {
	var stepErr *backtest.StepError
	return errors.As(err, &stepErr) || errors.Is(err, replay.ErrInvalidOrdering)
}

func (r *Runner) lookup(ctx context.Context, runID string) (*domain.BacktestRun, error) {
	if r.runStore == nil {
		return nil, nil
	}
	run, err := r.runStore.GetByID(ctx, runID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup run %s: %w", runID, err)
	}
	return run, nil
}

// persist writes the steps, then the run. The run id was not in the run
// store, so any steps already stored under it are left over from an
// interrupted run and are cleared first. A failed run insert removes the
// steps again so a rerun starts clean.
func (r *Runner) persist(ctx context.Context, run *domain.BacktestRun, steps []*domain.BacktestStep) error {
	if r.stepStore != nil && len(steps) > 0 {
		start := time.Now()
		err := r.stepStore.DeleteByRunID(ctx, run.RunID)
		r.recordQuery("steps", "delete", start, err)
		if err != nil {
			return fmt.Errorf("clear steps: %w", err)
		}

		start = time.Now()
		err = r.stepStore.InsertBulk(ctx, steps)
		r.recordQuery("steps", "insert", start, err)
		if err != nil {
			return fmt.Errorf("insert steps: %w", err)
		}
	}
	if r.runStore != nil {
		start := time.Now()
		err := r.runStore.Insert(ctx, run)
		r.recordQuery("runs", "insert", start, err)
		if err != nil {
			err = fmt.Errorf("insert run: %w", err)
			if r.stepStore != nil && len(steps) > 0 {
				if delErr := r.stepStore.DeleteByRunID(context.WithoutCancel(ctx), run.RunID); delErr != nil {
					err = errors.Join(err, fmt.Errorf("remove steps: %w", delErr))
				}
			}
			return err
		}
	}
	return nil
}

func (r *Runner) record(run *domain.BacktestRun, runErr error, elapsed time.Duration) {
	if r.metrics == nil {
		return
	}
	r.metrics.RecordRun(run.CurveKind, string(run.Driver), run.Status, run.StepCount, elapsed.Seconds())

	var stepErr *backtest.StepError
	if errors.As(runErr, &stepErr) {
		r.metrics.RecordStepError(run.CurveKind)
	}
	if runErr == nil {
		r.metrics.FeeIncome.WithLabelValues(run.CurveKind).Set(run.FeeIncome)
		r.metrics.LastSuccessfulRun.SetToCurrentTime()
	}
}

func (r *Runner) recordQuery(store, op string, start time.Time, err error) {
	if r.metrics != nil {
		r.metrics.RecordDBQuery(store, op, time.Since(start).Seconds(), err)
	}
}
