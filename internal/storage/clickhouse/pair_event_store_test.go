package clickhouse

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"amm-curve-lab/internal/domain"
	"amm-curve-lab/internal/storage"
)

func TestPairEventStore_InsertBulkAndQuery(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewPairEventStore(conn)
	ctx := context.Background()

	big, err := decimal.NewFromString("340282366920938463463374607431768211455")
	require.NoError(t, err)

	events := []*domain.PairEvent{
		{
			Pair: "usdc_weth", Height: 10000836, BlockIndex: 3, TxHash: "0xabc",
			Action: domain.PairActionSync, Reserve0: &big, Reserve1: ptr(decimal.NewFromInt(42)),
		},
		{
			Pair: "usdc_weth", Height: 10000836, BlockIndex: 1, TxHash: "0xabc",
			Action: domain.PairActionTransfer, ValueIn: ptr(decimal.NewFromInt(1000)),
		},
		{
			Pair: "usdc_weth", Height: 10000900, BlockIndex: 0, TxHash: "0xdef",
			Action: domain.PairActionSwap, Sender: "0x01", To: "0x02",
			Amount0In: ptr(decimal.NewFromInt(5)), Amount1Out: ptr(decimal.NewFromInt(7)),
		},
	}
	require.NoError(t, store.InsertBulk(ctx, events))

	got, err := store.GetByPair(ctx, "usdc_weth")
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, domain.PairActionTransfer, got[0].Action)
	require.NotNil(t, got[0].ValueIn)
	assert.True(t, got[0].ValueIn.Equal(decimal.NewFromInt(1000)))
	assert.Nil(t, got[0].Reserve0)

	require.NotNil(t, got[1].Reserve0)
	assert.True(t, got[1].Reserve0.Equal(big))

	assert.Equal(t, "0x02", got[2].To)

	ranged, err := store.GetByHeightRange(ctx, "usdc_weth", 10000900, 10000999)
	require.NoError(t, err)
	require.Len(t, ranged, 1)

	assert.ErrorIs(t, store.InsertBulk(ctx, events[:1]), storage.ErrDuplicateKey)
}
