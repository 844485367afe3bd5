package domain

// Driver names a backtest replay loop.
type Driver string

// Driver constants.
const (
	DriverAMM  Driver = "amm"  // rate series through a time-decaying curve
	DriverSAMM Driver = "samm" // price series through any curve
)

// BacktestStep is the curve state recorded after one replayed row.
// Corresponds to backtest_steps table in ClickHouse.
type BacktestStep struct {
	RunID     string
	Index     int     // row position in the replayed series
	Timestamp int64   // Unix timestamp in seconds
	Input     float64 // observed price (samm) or rate (amm)

	ReserveA  float64 // PT for time-decaying curves
	ReserveB  float64 // TT for time-decaying curves
	Invariant float64
	Price     float64

	TimeFraction *float64 // amm only
	ImpliedRate  *float64 // amm only

	Fee           float64 // step fee fraction, 0 on the first row
	CumulativeFee float64 // running product of (1 + fee)
	TotalValue    float64 // position value in token A (samm) or TT (amm)
}

// Run status constants.
const (
	RunStatusCompleted = "COMPLETED"
	RunStatusFailed    = "FAILED"
)

// BacktestRun summarizes one curve/series replay.
// Corresponds to backtest_runs table in PostgreSQL.
type BacktestRun struct {
	RunID     string // deterministic hash of params + series + window
	SeriesID  string
	CurveKind string
	Driver    Driver
	FeeRate   float64
	Params    string // curve params as JSON

	FromTimestamp int64 // first replayed row (seconds)
	ToTimestamp   int64 // last replayed row (seconds)
	StepCount     int

	FinalReserveA      float64
	FinalReserveB      float64
	FinalPrice         float64
	FinalCumulativeFee float64
	FeeIncome          float64 // FinalCumulativeFee - 1
	MaxDrawdown        float64 // of total value, as a fraction

	Status    string // COMPLETED | FAILED
	Error     string // failure description, empty on success
	CreatedAt int64  // Unix timestamp in milliseconds
}
