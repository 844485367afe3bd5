package projection

import (
	"amm-curve-lab/internal/domain"
)

// PriceSeries converts block states into reserve0/reserve1 prices scaled by
// token decimals. Blocks before the first Sync or with an empty reserve1 are
// skipped.
func PriceSeries(states []*domain.PairBlockState, decimals0, decimals1 int32, seriesID string) []*domain.PricePoint {
	var result []*domain.PricePoint
	for _, st := range states {
		if !st.HasReserves || !st.Reserve1.IsPositive() || st.Reserve0.IsNegative() {
			continue
		}
		price := st.Reserve0.Shift(-decimals0).Div(st.Reserve1.Shift(-decimals1))
		result = append(result, &domain.PricePoint{
			SeriesID:  seriesID,
			Timestamp: st.Timestamp,
			Price:     price.InexactFloat64(),
		})
	}
	return result
}
