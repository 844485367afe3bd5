package clickhouse

import (
	"context"
	"fmt"

	"amm-curve-lab/internal/domain"
	"amm-curve-lab/internal/storage"
)

// seriesRow is the (series_id, timestamp, value) shape shared by
// price_series and rate_series.
type seriesRow struct {
	seriesID  string
	timestamp int64
	value     float64
}

// seriesTable reads and writes one of the series tables.
type seriesTable struct {
	conn   *Conn
	table  string
	column string
}

func (t seriesTable) insert(ctx context.Context, rows []seriesRow) error {
	if len(rows) == 0 {
		return nil
	}

	type key struct {
		seriesID  string
		timestamp int64
	}
	seen := make(map[key]struct{}, len(rows))
	for _, r := range rows {
		if r.seriesID == "" {
			return storage.ErrInvalidInput
		}
		k := key{r.seriesID, r.timestamp}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
	}

	// MergeTree does not enforce uniqueness, so check existing rows first.
	for _, r := range rows {
		n, err := t.conn.count(ctx,
			fmt.Sprintf(`SELECT count(*) FROM %s WHERE series_id = ? AND timestamp = ?`, t.table),
			r.seriesID, r.timestamp)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if n > 0 {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := t.conn.PrepareBatch(ctx,
		fmt.Sprintf(`INSERT INTO %s (series_id, timestamp, %s)`, t.table, t.column))
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}
	for _, r := range rows {
		if err := batch.Append(r.seriesID, r.timestamp, r.value); err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

func (t seriesTable) query(ctx context.Context, seriesID string, window *[2]int64) ([]seriesRow, error) {
	query := fmt.Sprintf(`
		SELECT series_id, timestamp, %s
		FROM %s
		WHERE series_id = ?`, t.column, t.table)
	args := []any{seriesID}
	if window != nil {
		query += ` AND timestamp >= ? AND timestamp <= ?`
		args = append(args, window[0], window[1])
	}
	query += ` ORDER BY timestamp ASC`

	rows, err := t.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", t.table, err)
	}
	defer rows.Close()

	return scanSeries(rows, t.table)
}

func (t seriesTable) listSeries(ctx context.Context) ([]string, error) {
	rows, err := t.conn.Query(ctx,
		fmt.Sprintf(`SELECT DISTINCT series_id FROM %s ORDER BY series_id`, t.table))
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", t.table, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan series id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate series ids: %w", err)
	}
	return ids, nil
}

func scanSeries(rows chRows, table string) ([]seriesRow, error) {
	var out []seriesRow
	for rows.Next() {
		var r seriesRow
		if err := rows.Scan(&r.seriesID, &r.timestamp, &r.value); err != nil {
			return nil, fmt.Errorf("scan %s row: %w", table, err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s rows: %w", table, err)
	}
	return out, nil
}

// PriceSeriesStore implements storage.PriceSeriesStore using ClickHouse.
type PriceSeriesStore struct {
	t seriesTable
}

// NewPriceSeriesStore creates a new PriceSeriesStore.
func NewPriceSeriesStore(conn *Conn) *PriceSeriesStore {
	return &PriceSeriesStore{t: seriesTable{conn: conn, table: "price_series", column: "price"}}
}

// Compile-time interface check.
var _ storage.PriceSeriesStore = (*PriceSeriesStore)(nil)

// InsertBulk adds multiple points. Fails entire batch on duplicate (series_id, timestamp).
func (s *PriceSeriesStore) InsertBulk(ctx context.Context, points []*domain.PricePoint) error {
	rows := make([]seriesRow, 0, len(points))
	for _, p := range points {
		if p == nil {
			return storage.ErrInvalidInput
		}
		rows = append(rows, seriesRow{p.SeriesID, p.Timestamp, p.Price})
	}
	return s.t.insert(ctx, rows)
}

// GetBySeriesID retrieves all points for a series, ordered by timestamp ASC.
func (s *PriceSeriesStore) GetBySeriesID(ctx context.Context, seriesID string) ([]*domain.PricePoint, error) {
	rows, err := s.t.query(ctx, seriesID, nil)
	if err != nil {
		return nil, err
	}
	return toPricePoints(rows), nil
}

// GetByTimeRange retrieves points for a series within [start, end] (inclusive).
func (s *PriceSeriesStore) GetByTimeRange(ctx context.Context, seriesID string, start, end int64) ([]*domain.PricePoint, error) {
	rows, err := s.t.query(ctx, seriesID, &[2]int64{start, end})
	if err != nil {
		return nil, err
	}
	return toPricePoints(rows), nil
}

// ListSeries returns the distinct series IDs, sorted.
func (s *PriceSeriesStore) ListSeries(ctx context.Context) ([]string, error) {
	return s.t.listSeries(ctx)
}

func toPricePoints(rows []seriesRow) []*domain.PricePoint {
	out := make([]*domain.PricePoint, 0, len(rows))
	for _, r := range rows {
		out = append(out, &domain.PricePoint{SeriesID: r.seriesID, Timestamp: r.timestamp, Price: r.value})
	}
	return out
}

// RateSeriesStore implements storage.RateSeriesStore using ClickHouse.
type RateSeriesStore struct {
	t seriesTable
}

// NewRateSeriesStore creates a new RateSeriesStore.
func NewRateSeriesStore(conn *Conn) *RateSeriesStore {
	return &RateSeriesStore{t: seriesTable{conn: conn, table: "rate_series", column: "rate"}}
}

// Compile-time interface check.
var _ storage.RateSeriesStore = (*RateSeriesStore)(nil)

// InsertBulk adds multiple points. Fails entire batch on duplicate (series_id, timestamp).
func (s *RateSeriesStore) InsertBulk(ctx context.Context, points []*domain.RatePoint) error {
	rows := make([]seriesRow, 0, len(points))
	for _, p := range points {
		if p == nil {
			return storage.ErrInvalidInput
		}
		rows = append(rows, seriesRow{p.SeriesID, p.Timestamp, p.Rate})
	}
	return s.t.insert(ctx, rows)
}

// GetBySeriesID retrieves all points for a series, ordered by timestamp ASC.
func (s *RateSeriesStore) GetBySeriesID(ctx context.Context, seriesID string) ([]*domain.RatePoint, error) {
	rows, err := s.t.query(ctx, seriesID, nil)
	if err != nil {
		return nil, err
	}
	return toRatePoints(rows), nil
}

// GetByTimeRange retrieves points for a series within [start, end] (inclusive).
func (s *RateSeriesStore) GetByTimeRange(ctx context.Context, seriesID string, start, end int64) ([]*domain.RatePoint, error) {
	rows, err := s.t.query(ctx, seriesID, &[2]int64{start, end})
	if err != nil {
		return nil, err
	}
	return toRatePoints(rows), nil
}

// ListSeries returns the distinct series IDs, sorted.
func (s *RateSeriesStore) ListSeries(ctx context.Context) ([]string, error) {
	return s.t.listSeries(ctx)
}

func toRatePoints(rows []seriesRow) []*domain.RatePoint {
	out := make([]*domain.RatePoint, 0, len(rows))
	for _, r := range rows {
		out = append(out, &domain.RatePoint{SeriesID: r.seriesID, Timestamp: r.timestamp, Rate: r.value})
	}
	return out
}
