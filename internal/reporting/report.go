package reporting

import "time"

// Report summarizes stored backtest runs.
type Report struct {
	GeneratedAt time.Time
	RunCount    int
	SeriesCount int
	FailedCount int

	// Runs sorted by series_id ASC, fee_income DESC, run_id ASC.
	Runs []RunRow

	// One row per curve kind, sorted by curve kind.
	KindComparison []KindComparisonRow

	Failures []FailureRow
}

// RunRow is one completed run.
type RunRow struct {
	RunID         string
	SeriesID      string
	CurveKind     string
	Driver        string
	FeeRate       float64
	StepCount     int
	FromTimestamp int64 // Unix seconds
	ToTimestamp   int64 // Unix seconds
	FeeIncome     float64
	MaxDrawdown   float64
	FinalPrice    float64
}

// KindComparisonRow compares curve kinds across series.
type KindComparisonRow struct {
	CurveKind       string
	Runs            int
	MeanFeeIncome   float64
	MeanMaxDrawdown float64
	BestRunID       string
	BestFeeIncome   float64
}

// FailureRow lists a failed run and its error.
type FailureRow struct {
	RunID     string
	SeriesID  string
	CurveKind string
	Error     string
}
