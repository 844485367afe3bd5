package replay

import (
	"fmt"
	"sort"
)

// SortRows orders rows by (timestamp ASC, series_id ASC) and renumbers Index
// to match the new order.
func SortRows(rows []*Row) {
	sort.SliceStable(rows, func(i, j int) bool {
		return compareRows(rows[i], rows[j]) < 0
	})
	for i, row := range rows {
		row.Index = i
	}
}

// ValidateOrder checks that timestamps strictly increase.
func ValidateOrder(rows []*Row) error {
	for i := 1; i < len(rows); i++ {
		if rows[i].Timestamp <= rows[i-1].Timestamp {
			return fmt.Errorf("%w: row %d timestamp %d after %d",
				ErrInvalidOrdering, i, rows[i].Timestamp, rows[i-1].Timestamp)
		}
	}
	return nil
}

// compareRows returns a negative, zero or positive value as a sorts before,
// equal to or after b.
func compareRows(a, b *Row) int {
	switch {
	case a.Timestamp < b.Timestamp:
		return -1
	case a.Timestamp > b.Timestamp:
		return 1
	case a.SeriesID < b.SeriesID:
		return -1
	case a.SeriesID > b.SeriesID:
		return 1
	}
	return 0
}
