package metrics

import (
	"math"
	"sort"

	"amm-curve-lab/internal/domain"
)

// Summary holds the statistics of one backtest run.
type Summary struct {
	StepCount       int
	FeeBearingSteps int // steps with fee > 0

	// FeeIncome is the final cumulative fee factor minus one.
	FeeIncome float64

	// Step fee distribution, over every step after the first.
	FeeMean   float64
	FeeMedian float64
	FeeP90    float64
	FeeMax    float64
	FeeStddev float64

	StartValue  float64
	EndValue    float64
	ValueReturn float64 // EndValue/StartValue - 1
	MaxDrawdown float64 // largest peak-to-trough fall of total value, as a fraction of the peak

	FinalPrice float64
}

// Summarize computes a Summary from steps in replay order.
func Summarize(steps []*domain.BacktestStep) *Summary {
	n := len(steps)
	if n == 0 {
		return &Summary{}
	}

	first, last := steps[0], steps[n-1]
	s := &Summary{
		StepCount:   n,
		FeeIncome:   last.CumulativeFee - 1,
		StartValue:  first.TotalValue,
		EndValue:    last.TotalValue,
		MaxDrawdown: computeMaxDrawdown(totalValues(steps)),
		FinalPrice:  last.Price,
	}
	if first.TotalValue != 0 {
		s.ValueReturn = last.TotalValue/first.TotalValue - 1
	}

	fees := make([]float64, 0, n-1)
	for _, st := range steps[1:] {
		fees = append(fees, st.Fee)
		if st.Fee > 0 {
			s.FeeBearingSteps++
		}
	}
	if len(fees) == 0 {
		return s
	}

	sorted := make([]float64, len(fees))
	copy(sorted, fees)
	sort.Float64s(sorted)

	s.FeeMean = computeMean(fees)
	s.FeeStddev = computeStddev(fees, s.FeeMean)
	s.FeeMedian = computePercentile(sorted, 0.50)
	s.FeeP90 = computePercentile(sorted, 0.90)
	s.FeeMax = sorted[len(sorted)-1]
	return s
}

// ApplyToRun copies the summary's final state into run.
func (s *Summary) ApplyToRun(run *domain.BacktestRun, steps []*domain.BacktestStep) {
	run.StepCount = s.StepCount
	run.FeeIncome = s.FeeIncome
	run.MaxDrawdown = s.MaxDrawdown
	run.FinalPrice = s.FinalPrice
	if len(steps) == 0 {
		return
	}
	first, last := steps[0], steps[len(steps)-1]
	run.FromTimestamp = first.Timestamp
	run.ToTimestamp = last.Timestamp
	run.FinalReserveA = last.ReserveA
	run.FinalReserveB = last.ReserveB
	run.FinalCumulativeFee = last.CumulativeFee
}

func totalValues(steps []*domain.BacktestStep) []float64 {
	values := make([]float64, len(steps))
	for i, st := range steps {
		values[i] = st.TotalValue
	}
	return values
}

// computeMean calculates the arithmetic mean.
func computeMean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// computeStddev calculates sample standard deviation (n-1 denominator).
func computeStddev(values []float64, mean float64) float64 {
	n := len(values)
	if n < 2 {
		return 0
	}
	sumSq := 0.0
	for _, v := range values {
		diff := v - mean
		sumSq += diff * diff
	}
	return math.Sqrt(sumSq / float64(n-1))
}

// computePercentile uses linear interpolation.
// sorted must be pre-sorted ASC; p is in [0, 1].
func computePercentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}

	idx := p * float64(n-1)
	lower := int(idx)
	upper := lower + 1
	if upper >= n {
		return sorted[n-1]
	}
	frac := idx - float64(lower)
	return sorted[lower] + frac*(sorted[upper]-sorted[lower])
}

// computeMaxDrawdown returns MAX((peak - value) / peak) over a value path.
// Non-positive peaks are skipped.
func computeMaxDrawdown(values []float64) float64 {
	peak := math.Inf(-1)
	maxDrawdown := 0.0
	for _, v := range values {
		if v > peak {
			peak = v
		}
		if peak <= 0 {
			continue
		}
		if dd := (peak - v) / peak; dd > maxDrawdown {
			maxDrawdown = dd
		}
	}
	return maxDrawdown
}
