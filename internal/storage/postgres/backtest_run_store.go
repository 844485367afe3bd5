package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"amm-curve-lab/internal/domain"
	"amm-curve-lab/internal/storage"
)

// BacktestRunStore implements storage.BacktestRunStore using PostgreSQL.
type BacktestRunStore struct {
	pool *Pool
}

// NewBacktestRunStore creates a new BacktestRunStore.
func NewBacktestRunStore(pool *Pool) *BacktestRunStore {
	return &BacktestRunStore{pool: pool}
}

// Compile-time interface check.
var _ storage.BacktestRunStore = (*BacktestRunStore)(nil)

const runColumns = `
	run_id, series_id, curve_kind, driver, fee_rate, params,
	from_timestamp, to_timestamp, step_count,
	final_reserve_a, final_reserve_b, final_price, final_cumulative_fee,
	fee_income, max_drawdown,
	status, error, created_at
`

// Insert adds a new run. Returns ErrDuplicateKey if run_id exists.
func (s *BacktestRunStore) Insert(ctx context.Context, r *domain.BacktestRun) error {
	if r == nil || r.RunID == "" {
		return storage.ErrInvalidInput
	}

	query := `INSERT INTO backtest_runs (` + runColumns + `) VALUES (
		$1, $2, $3, $4, $5, $6,
		$7, $8, $9,
		$10, $11, $12, $13,
		$14, $15,
		$16, $17, $18
	)`

	_, err := s.pool.Exec(ctx, query,
		r.RunID, r.SeriesID, r.CurveKind, string(r.Driver), r.FeeRate, r.Params,
		r.FromTimestamp, r.ToTimestamp, r.StepCount,
		r.FinalReserveA, r.FinalReserveB, r.FinalPrice, r.FinalCumulativeFee,
		r.FeeIncome, r.MaxDrawdown,
		r.Status, r.Error, r.CreatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert backtest run: %w", err)
	}
	return nil
}

// GetByID retrieves a run by its ID. Returns ErrNotFound if not exists.
func (s *BacktestRunStore) GetByID(ctx context.Context, runID string) (*domain.BacktestRun, error) {
	query := `SELECT ` + runColumns + ` FROM backtest_runs WHERE run_id = $1`

	r, err := scanBacktestRun(s.pool.QueryRow(ctx, query, runID))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get backtest run: %w", err)
	}
	return r, nil
}

// GetBySeriesID retrieves all runs for a series, ordered by created_at ASC.
func (s *BacktestRunStore) GetBySeriesID(ctx context.Context, seriesID string) ([]*domain.BacktestRun, error) {
	query := `SELECT ` + runColumns + ` FROM backtest_runs
		WHERE series_id = $1
		ORDER BY created_at ASC, run_id ASC`

	rows, err := s.pool.Query(ctx, query, seriesID)
	if err != nil {
		return nil, fmt.Errorf("query backtest runs by series: %w", err)
	}
	defer rows.Close()

	return scanBacktestRuns(rows)
}

// GetAll retrieves all runs, ordered by created_at ASC.
func (s *BacktestRunStore) GetAll(ctx context.Context) ([]*domain.BacktestRun, error) {
	query := `SELECT ` + runColumns + ` FROM backtest_runs ORDER BY created_at ASC, run_id ASC`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query backtest runs: %w", err)
	}
	defer rows.Close()

	return scanBacktestRuns(rows)
}

func scanBacktestRun(row pgx.Row) (*domain.BacktestRun, error) {
	var r domain.BacktestRun
	var driver string
	err := row.Scan(
		&r.RunID, &r.SeriesID, &r.CurveKind, &driver, &r.FeeRate, &r.Params,
		&r.FromTimestamp, &r.ToTimestamp, &r.StepCount,
		&r.FinalReserveA, &r.FinalReserveB, &r.FinalPrice, &r.FinalCumulativeFee,
		&r.FeeIncome, &r.MaxDrawdown,
		&r.Status, &r.Error, &r.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	r.Driver = domain.Driver(driver)
	return &r, nil
}

func scanBacktestRuns(rows pgx.Rows) ([]*domain.BacktestRun, error) {
	var runs []*domain.BacktestRun
	for rows.Next() {
		r, err := scanBacktestRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan backtest run row: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate backtest run rows: %w", err)
	}
	return runs, nil
}
