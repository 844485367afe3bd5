package replay

import (
	"context"

	"amm-curve-lab/internal/domain"
)

// Source identifies which series a row was read from.
type Source string

// Source constants.
const (
	SourcePrice Source = "price"
	SourceRate  Source = "rate"
)

// Row is a unified view of one price or rate observation.
type Row struct {
	Source    Source
	SeriesID  string
	Index     int // position in the replayed series, 0-based
	Timestamp int64
	Value     float64
}

// Engine consumes rows in timestamp order.
type Engine interface {
	// OnRow is called once per row. Returning an error stops the replay.
	OnRow(ctx context.Context, row *Row) error
}

// PriceRows converts price points to rows, keeping slice order.
func PriceRows(points []*domain.PricePoint) []*Row {
	rows := make([]*Row, 0, len(points))
	for i, p := range points {
		rows = append(rows, &Row{
			Source:    SourcePrice,
			SeriesID:  p.SeriesID,
			Index:     i,
			Timestamp: p.Timestamp,
			Value:     p.Price,
		})
	}
	return rows
}

// RateRows converts rate points to rows, keeping slice order.
func RateRows(points []*domain.RatePoint) []*Row {
	rows := make([]*Row, 0, len(points))
	for i, p := range points {
		rows = append(rows, &Row{
			Source:    SourceRate,
			SeriesID:  p.SeriesID,
			Index:     i,
			Timestamp: p.Timestamp,
			Value:     p.Rate,
		})
	}
	return rows
}

// Feed replays rows through engine in slice order, checking ctx between rows.
func Feed(ctx context.Context, rows []*Row, engine Engine) error {
	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := engine.OnRow(ctx, row); err != nil {
			return err
		}
	}
	return nil
}
