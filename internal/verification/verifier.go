// Package verification replays stored backtest runs and checks that the
// replayed steps match the stored ones.
package verification

import (
	"context"
	"fmt"
	"math"

	"amm-curve-lab/internal/domain"
)

// FloatTolerance is the tolerance for float64 comparisons.
const FloatTolerance = 1e-9

// FieldDivergence represents a mismatch between stored and replayed values.
type FieldDivergence struct {
	Field    string      // field name, step fields as "steps[i].Field"
	Expected interface{} // stored value
	Actual   interface{} // replayed value
}

// VerificationResult contains the result of verifying a single run.
type VerificationResult struct {
	RunID       string
	Match       bool // true if all fields match
	Skipped     bool // failed runs are not replayed
	Divergences []FieldDivergence

	StoredFeeIncome   float64
	ReplayedFeeIncome float64
}

// VerificationReport contains results for batch verification.
type VerificationReport struct {
	TotalRuns     int
	MatchedRuns   int
	DivergentRuns int
	SkippedRuns   int
	Results       []VerificationResult
}

// Verifier replays stored runs.
type Verifier interface {
	// VerifyRun replays one stored run and compares it with its stored steps.
	VerifyRun(ctx context.Context, runID string) (*VerificationResult, error)

	// VerifyAll verifies all stored runs.
	VerifyAll(ctx context.Context) (*VerificationReport, error)
}

// CompareSteps compares stored and replayed steps field by field.
// Uses FloatTolerance for float64 comparisons.
func CompareSteps(stored, replayed []*domain.BacktestStep) []FieldDivergence {
	var divergences []FieldDivergence

	if len(stored) != len(replayed) {
		divergences = append(divergences, FieldDivergence{
			Field:    "len(steps)",
			Expected: len(stored),
			Actual:   len(replayed),
		})
	}

	n := len(stored)
	if len(replayed) < n {
		n = len(replayed)
	}
	for i := 0; i < n; i++ {
		divergences = append(divergences, compareStep(i, stored[i], replayed[i])...)
	}
	return divergences
}

func compareStep(i int, s, r *domain.BacktestStep) []FieldDivergence {
	var divergences []FieldDivergence
	add := func(field string, expected, actual interface{}) {
		divergences = append(divergences, FieldDivergence{
			Field:    fmt.Sprintf("steps[%d].%s", i, field),
			Expected: expected,
			Actual:   actual,
		})
	}

	// Row identity must match exactly
	if s.Timestamp != r.Timestamp {
		add("Timestamp", s.Timestamp, r.Timestamp)
	}
	if s.Index != r.Index {
		add("Index", s.Index, r.Index)
	}

	floats := []struct {
		name     string
		expected float64
		actual   float64
	}{
		{"Input", s.Input, r.Input},
		{"ReserveA", s.ReserveA, r.ReserveA},
		{"ReserveB", s.ReserveB, r.ReserveB},
		{"Invariant", s.Invariant, r.Invariant},
		{"Price", s.Price, r.Price},
		{"Fee", s.Fee, r.Fee},
		{"CumulativeFee", s.CumulativeFee, r.CumulativeFee},
		{"TotalValue", s.TotalValue, r.TotalValue},
	}
	for _, f := range floats {
		if !floatEquals(f.expected, f.actual) {
			add(f.name, f.expected, f.actual)
		}
	}

	if !floatPtrEquals(s.TimeFraction, r.TimeFraction) {
		add("TimeFraction", s.TimeFraction, r.TimeFraction)
	}
	if !floatPtrEquals(s.ImpliedRate, r.ImpliedRate) {
		add("ImpliedRate", s.ImpliedRate, r.ImpliedRate)
	}
	return divergences
}

// floatEquals compares floats with a relative tolerance for large values.
func floatEquals(a, b float64) bool {
	if math.IsNaN(a) || math.IsNaN(b) {
		return math.IsNaN(a) && math.IsNaN(b)
	}
	scale := math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
	return math.Abs(a-b) <= FloatTolerance*scale
}

// floatPtrEquals compares two *float64 values.
func floatPtrEquals(a, b *float64) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	return floatEquals(*a, *b)
}
