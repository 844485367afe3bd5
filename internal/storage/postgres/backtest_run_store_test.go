package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"amm-curve-lab/internal/domain"
	"amm-curve-lab/internal/storage"
)

func testRun(runID, seriesID string, createdAt int64) *domain.BacktestRun {
	return &domain.BacktestRun{
		RunID:              runID,
		SeriesID:           seriesID,
		CurveKind:          "pendle",
		Driver:             domain.DriverAMM,
		FeeRate:            0.001,
		Params:             `{"kind":"pendle"}`,
		FromTimestamp:      1700000000,
		ToTimestamp:        1700086400,
		StepCount:          25,
		FinalReserveA:      980.5,
		FinalReserveB:      1019.2,
		FinalPrice:         0.97,
		FinalCumulativeFee: 1.0021,
		FeeIncome:          0.0021,
		MaxDrawdown:        0.013,
		Status:             domain.RunStatusCompleted,
		CreatedAt:          createdAt,
	}
}

func TestBacktestRunStore_InsertAndGetByID(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewBacktestRunStore(pool)
	ctx := context.Background()

	run := testRun("run-1", "pt-susde", 1000)
	require.NoError(t, store.Insert(ctx, run))

	got, err := store.GetByID(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, run, got)
}

func TestBacktestRunStore_Errors(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewBacktestRunStore(pool)
	ctx := context.Background()

	run := testRun("run-1", "pt-susde", 1000)
	require.NoError(t, store.Insert(ctx, run))

	err := store.Insert(ctx, run)
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	_, err = store.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	err = store.Insert(ctx, &domain.BacktestRun{})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}

func TestBacktestRunStore_GetBySeriesAndAll(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewBacktestRunStore(pool)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, testRun("run-b", "s1", 3000)))
	require.NoError(t, store.Insert(ctx, testRun("run-a", "s2", 1000)))
	require.NoError(t, store.Insert(ctx, testRun("run-c", "s1", 2000)))

	bySeries, err := store.GetBySeriesID(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, bySeries, 2)
	assert.Equal(t, "run-c", bySeries[0].RunID)
	assert.Equal(t, "run-b", bySeries[1].RunID)

	all, err := store.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "run-a", all[0].RunID)
}
