package projection

import (
	"sort"

	"amm-curve-lab/internal/domain"
)

// SortEvents orders pair events by (pair ASC, height ASC, block_index ASC),
// the order in which the chain applied them.
func SortEvents(events []*domain.PairEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		return compareEvents(events[i], events[j]) < 0
	})
}

// compareEvents returns:
//   - negative if a < b
//   - zero if a == b
//   - positive if a > b
func compareEvents(a, b *domain.PairEvent) int {
	if a.Pair != b.Pair {
		if a.Pair < b.Pair {
			return -1
		}
		return 1
	}
	if a.Height != b.Height {
		if a.Height < b.Height {
			return -1
		}
		return 1
	}
	if a.BlockIndex != b.BlockIndex {
		if a.BlockIndex < b.BlockIndex {
			return -1
		}
		return 1
	}
	return 0
}
