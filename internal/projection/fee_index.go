package projection

import (
	"math"
	"sort"

	"amm-curve-lab/internal/curve"
	"amm-curve-lab/internal/domain"
)

// DefaultWindow is the fee rate look-back in blocks (one week).
const DefaultWindow int64 = 7 * 86400 / BlockTime

// IndexPoint is the fee index of one block: sqrt(reserve0·reserve1) per LP
// token. It only grows through swap fees.
type IndexPoint struct {
	Height    int64
	Timestamp int64
	Index     float64
}

// FeeIndex computes the fee index of every block with reserves and a
// positive LP supply.
func FeeIndex(states []*domain.PairBlockState) []IndexPoint {
	var result []IndexPoint
	for _, st := range states {
		if !st.HasReserves || !st.LPSupply.IsPositive() {
			continue
		}
		k := st.Reserve0.Mul(st.Reserve1).InexactFloat64()
		if k <= 0 {
			continue
		}
		result = append(result, IndexPoint{
			Height:    st.Height,
			Timestamp: st.Timestamp,
			Index:     math.Sqrt(k) / st.LPSupply.InexactFloat64(),
		})
	}
	return result
}

// FeeRates turns a fee index into per-year rates. Each point is compared
// with the last point at least window blocks older (or the first point),
// and the relative index growth is scaled to curve.DefaultRatePeriod.
// The first point has no reference and yields no rate. A window <= 0
// selects DefaultWindow.
func FeeRates(index []IndexPoint, window int64, seriesID string) []*domain.RatePoint {
	if window <= 0 {
		window = DefaultWindow
	}

	var result []*domain.RatePoint
	for i, p := range index {
		j := referenceIndex(index, i, window)
		ref := index[j]
		elapsed := p.Timestamp - ref.Timestamp
		if j == i || elapsed <= 0 || ref.Index <= 0 {
			continue
		}
		growth := p.Index/ref.Index - 1
		result = append(result, &domain.RatePoint{
			SeriesID:  seriesID,
			Timestamp: p.Timestamp,
			Rate:      growth * curve.DefaultRatePeriod / float64(elapsed),
		})
	}
	return result
}

// referenceIndex returns the position just before the first point inside
// (height - window], clamped to 0.
func referenceIndex(index []IndexPoint, i int, window int64) int {
	start := index[i].Height - window
	first := sort.Search(i+1, func(k int) bool { return index[k].Height >= start })
	if first < 1 {
		first = 1
	}
	return first - 1
}
