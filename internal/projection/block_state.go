// Package projection turns decoded Uniswap V2 pair events into per-block pair
// state, price series and fee index rates.
package projection

import (
	"github.com/shopspring/decimal"

	"amm-curve-lab/internal/domain"
)

const (
	// BlockTime is the assumed seconds per block when no block time is known.
	BlockTime = 15

	// GenesisTimestamp anchors HeightToTimestamp at height 0.
	GenesisTimestamp = 1438269973
)

// HeightToTimestamp approximates the block time of height.
func HeightToTimestamp(height int64) int64 {
	return height*BlockTime + GenesisTimestamp
}

// BlockStates aggregates events into one state per (pair, height).
// Events must be pre-sorted with SortEvents.
//
// Aggregation per block:
//   - NetValue = SUM(value_in - value_out) over Transfer
//   - NetAmount0/1 = SUM(amount_in - amount_out) over Swap, Mint and Burn
//   - Reserve0/1 = LAST(Sync) in the block, forward-filled otherwise
//   - LPSupply = running SUM(NetValue)
func BlockStates(events []*domain.PairEvent) []*domain.PairBlockState {
	if len(events) == 0 {
		return nil
	}

	var result []*domain.PairBlockState
	var current *domain.PairBlockState

	for _, e := range events {
		if current == nil || current.Pair != e.Pair || current.Height != e.Height {
			next := &domain.PairBlockState{
				Pair:      e.Pair,
				Height:    e.Height,
				Timestamp: blockTimestamp(e),
			}
			if current != nil {
				result = append(result, current)
				if current.Pair == e.Pair {
					next.LPSupply = current.LPSupply
					next.Reserve0 = current.Reserve0
					next.Reserve1 = current.Reserve1
					next.HasReserves = current.HasReserves
				}
			}
			current = next
		}
		apply(current, e)
	}

	if current != nil {
		result = append(result, current)
	}
	return result
}

func apply(st *domain.PairBlockState, e *domain.PairEvent) {
	switch e.Action {
	case domain.PairActionTransfer:
		delta := value(e.ValueIn).Sub(value(e.ValueOut))
		st.NetValue = st.NetValue.Add(delta)
		st.LPSupply = st.LPSupply.Add(delta)
	case domain.PairActionSwap, domain.PairActionMint, domain.PairActionBurn:
		st.NetAmount0 = st.NetAmount0.Add(value(e.Amount0In)).Sub(value(e.Amount0Out))
		st.NetAmount1 = st.NetAmount1.Add(value(e.Amount1In)).Sub(value(e.Amount1Out))
	case domain.PairActionSync:
		st.Reserve0 = value(e.Reserve0)
		st.Reserve1 = value(e.Reserve1)
		st.HasReserves = true
	}
}

func blockTimestamp(e *domain.PairEvent) int64 {
	if e.Timestamp != 0 {
		return e.Timestamp
	}
	return HeightToTimestamp(e.Height)
}

func value(d *decimal.Decimal) decimal.Decimal {
	if d == nil {
		return decimal.Zero
	}
	return *d
}
