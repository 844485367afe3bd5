package clickhouse

import (
	"context"
	"fmt"

	"amm-curve-lab/internal/domain"
	"amm-curve-lab/internal/storage"
)

// BacktestStepStore implements storage.BacktestStepStore using ClickHouse.
type BacktestStepStore struct {
	conn *Conn
}

// NewBacktestStepStore creates a new BacktestStepStore.
func NewBacktestStepStore(conn *Conn) *BacktestStepStore {
	return &BacktestStepStore{conn: conn}
}

// Compile-time interface check.
var _ storage.BacktestStepStore = (*BacktestStepStore)(nil)

// InsertBulk adds multiple steps. Fails entire batch on duplicate (run_id, step_index).
// Steps of one run are written together, so existence is checked per run.
func (s *BacktestStepStore) InsertBulk(ctx context.Context, steps []*domain.BacktestStep) error {
	if len(steps) == 0 {
		return nil
	}

	type key struct {
		runID string
		index int
	}
	seen := make(map[key]struct{}, len(steps))
	runs := make(map[string]struct{})
	for _, st := range steps {
		if st == nil || st.RunID == "" || st.Index < 0 {
			return storage.ErrInvalidInput
		}
		k := key{st.RunID, st.Index}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
		runs[st.RunID] = struct{}{}
	}

	for runID := range runs {
		rows, err := s.conn.Query(ctx, `SELECT step_index FROM backtest_steps WHERE run_id = ?`, runID)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		for rows.Next() {
			var idx uint32
			if err := rows.Scan(&idx); err != nil {
				rows.Close()
				return fmt.Errorf("scan step index: %w", err)
			}
			if _, dup := seen[key{runID, int(idx)}]; dup {
				rows.Close()
				return storage.ErrDuplicateKey
			}
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return fmt.Errorf("iterate step indexes: %w", err)
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO backtest_steps (
			run_id, step_index, timestamp, input,
			reserve_a, reserve_b, invariant, price,
			time_fraction, implied_rate,
			fee, cumulative_fee, total_value
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}
	for _, st := range steps {
		err := batch.Append(
			st.RunID, uint32(st.Index), st.Timestamp, st.Input,
			st.ReserveA, st.ReserveB, st.Invariant, st.Price,
			st.TimeFraction, st.ImpliedRate,
			st.Fee, st.CumulativeFee, st.TotalValue,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetByRunID retrieves all steps for a run, ordered by step_index ASC.
func (s *BacktestStepStore) GetByRunID(ctx context.Context, runID string) ([]*domain.BacktestStep, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT
			run_id, step_index, timestamp, input,
			reserve_a, reserve_b, invariant, price,
			time_fraction, implied_rate,
			fee, cumulative_fee, total_value
		FROM backtest_steps
		WHERE run_id = ?
		ORDER BY step_index ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query backtest steps: %w", err)
	}
	defer rows.Close()

	return scanBacktestSteps(rows)
}

// DeleteByRunID removes every step of a run with a lightweight delete.
func (s *BacktestStepStore) DeleteByRunID(ctx context.Context, runID string) error {
	if err := s.conn.Exec(ctx, `DELETE FROM backtest_steps WHERE run_id = ?`, runID); err != nil {
		return fmt.Errorf("delete backtest steps: %w", err)
	}
	return nil
}

func scanBacktestSteps(rows chRows) ([]*domain.BacktestStep, error) {
	var steps []*domain.BacktestStep
	for rows.Next() {
		var st domain.BacktestStep
		var idx uint32
		err := rows.Scan(
			&st.RunID, &idx, &st.Timestamp, &st.Input,
			&st.ReserveA, &st.ReserveB, &st.Invariant, &st.Price,
			&st.TimeFraction, &st.ImpliedRate,
			&st.Fee, &st.CumulativeFee, &st.TotalValue,
		)
		if err != nil {
			return nil, fmt.Errorf("scan backtest step row: %w", err)
		}
		st.Index = int(idx)
		steps = append(steps, &st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate backtest step rows: %w", err)
	}
	return steps, nil
}
