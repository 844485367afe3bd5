package domain

import "github.com/shopspring/decimal"

// PairAction is a decoded Uniswap V2 pair log type.
type PairAction string

// Pair action constants.
const (
	PairActionSync     PairAction = "Sync"
	PairActionSwap     PairAction = "Swap"
	PairActionTransfer PairAction = "Transfer"
	PairActionMint     PairAction = "Mint"
	PairActionBurn     PairAction = "Burn"
)

// PairEvent is one decoded pair log. Amounts are raw token integers.
// Corresponds to pair_events table in ClickHouse.
type PairEvent struct {
	Pair       string // pair name or contract address
	Height     int64  // block number
	BlockIndex int64  // log index within block
	TxHash     string
	Action     PairAction
	Timestamp  int64 // block time in seconds, 0 when unknown

	Sender string
	To     string

	// Transfer: LP minted (from zero address) / burned (to zero address).
	ValueIn  *decimal.Decimal
	ValueOut *decimal.Decimal

	// Swap/Mint fill the *In fields, Swap/Burn the *Out fields.
	Amount0In  *decimal.Decimal
	Amount1In  *decimal.Decimal
	Amount0Out *decimal.Decimal
	Amount1Out *decimal.Decimal

	// Sync only.
	Reserve0 *decimal.Decimal
	Reserve1 *decimal.Decimal
}

// PairBlockState is the pair state aggregated per block height.
type PairBlockState struct {
	Pair      string
	Height    int64
	Timestamp int64

	NetValue   decimal.Decimal // LP supply change within the block
	NetAmount0 decimal.Decimal // token0 inflow minus outflow
	NetAmount1 decimal.Decimal // token1 inflow minus outflow

	LPSupply    decimal.Decimal // cumulative LP supply
	Reserve0    decimal.Decimal // forward-filled
	Reserve1    decimal.Decimal // forward-filled
	HasReserves bool            // a Sync has been seen at or before Height
}
