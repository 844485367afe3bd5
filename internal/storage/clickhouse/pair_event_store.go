package clickhouse

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"amm-curve-lab/internal/domain"
	"amm-curve-lab/internal/storage"
)

// PairEventStore implements storage.PairEventStore using ClickHouse.
type PairEventStore struct {
	conn *Conn
}

// NewPairEventStore creates a new PairEventStore.
func NewPairEventStore(conn *Conn) *PairEventStore {
	return &PairEventStore{conn: conn}
}

// Compile-time interface check.
var _ storage.PairEventStore = (*PairEventStore)(nil)

const pairEventColumns = `
	pair, height, block_index, tx_hash, action, timestamp, sender, recipient,
	value_in, value_out, amount0_in, amount1_in, amount0_out, amount1_out,
	reserve0, reserve1
`

// InsertBulk adds multiple events. Fails entire batch on duplicate (pair, height, block_index).
func (s *PairEventStore) InsertBulk(ctx context.Context, events []*domain.PairEvent) error {
	if len(events) == 0 {
		return nil
	}

	type key struct {
		pair       string
		height     int64
		blockIndex int64
	}
	seen := make(map[key]struct{}, len(events))
	for _, e := range events {
		if e == nil || e.Pair == "" || e.Action == "" {
			return storage.ErrInvalidInput
		}
		k := key{e.Pair, e.Height, e.BlockIndex}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
	}

	for _, e := range events {
		n, err := s.conn.count(ctx, `
			SELECT count(*) FROM pair_events
			WHERE pair = ? AND height = ? AND block_index = ?
		`, e.Pair, e.Height, e.BlockIndex)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if n > 0 {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `INSERT INTO pair_events (`+pairEventColumns+`)`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}
	for _, e := range events {
		err := batch.Append(
			e.Pair, e.Height, e.BlockIndex, e.TxHash, string(e.Action), e.Timestamp, e.Sender, e.To,
			e.ValueIn, e.ValueOut, e.Amount0In, e.Amount1In, e.Amount0Out, e.Amount1Out,
			e.Reserve0, e.Reserve1,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetByPair retrieves all events for a pair, ordered by (height, block_index) ASC.
func (s *PairEventStore) GetByPair(ctx context.Context, pair string) ([]*domain.PairEvent, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT `+pairEventColumns+`
		FROM pair_events
		WHERE pair = ?
		ORDER BY height ASC, block_index ASC
	`, pair)
	if err != nil {
		return nil, fmt.Errorf("query pair events: %w", err)
	}
	defer rows.Close()

	return scanPairEvents(rows)
}

// GetByHeightRange retrieves events for a pair within heights [from, to] (inclusive).
func (s *PairEventStore) GetByHeightRange(ctx context.Context, pair string, from, to int64) ([]*domain.PairEvent, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT `+pairEventColumns+`
		FROM pair_events
		WHERE pair = ? AND height >= ? AND height <= ?
		ORDER BY height ASC, block_index ASC
	`, pair, from, to)
	if err != nil {
		return nil, fmt.Errorf("query pair events by height: %w", err)
	}
	defer rows.Close()

	return scanPairEvents(rows)
}

func scanPairEvents(rows chRows) ([]*domain.PairEvent, error) {
	var events []*domain.PairEvent
	for rows.Next() {
		var e domain.PairEvent
		var action string
		var valueIn, valueOut, a0In, a1In, a0Out, a1Out, r0, r1 *decimal.Decimal
		err := rows.Scan(
			&e.Pair, &e.Height, &e.BlockIndex, &e.TxHash, &action, &e.Timestamp, &e.Sender, &e.To,
			&valueIn, &valueOut, &a0In, &a1In, &a0Out, &a1Out,
			&r0, &r1,
		)
		if err != nil {
			return nil, fmt.Errorf("scan pair event row: %w", err)
		}
		e.Action = domain.PairAction(action)
		e.ValueIn, e.ValueOut = valueIn, valueOut
		e.Amount0In, e.Amount1In, e.Amount0Out, e.Amount1Out = a0In, a1In, a0Out, a1Out
		e.Reserve0, e.Reserve1 = r0, r1
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pair event rows: %w", err)
	}
	return events, nil
}
