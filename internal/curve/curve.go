// Package curve implements the AMM pricing-curve family used by the backtest
// drivers: constant-product, concentrated-liquidity and single-tick curves,
// plus time-decaying principal/yield token curves.
//
// Every curve instance is owned by a single driver. Instances carry no shared
// state, so independent runs may execute in parallel.
package curve

import (
	"errors"
	"fmt"
	"math"
)

// Curve errors.
var (
	// ErrZeroReserve is returned when a formula would divide by a zero reserve.
	ErrZeroReserve = errors.New("zero reserve")

	// ErrDomain is returned when an input or intermediate result leaves the
	// curve's numeric domain (NaN, Inf, negative reserve, complex root).
	ErrDomain = errors.New("numeric domain error")

	// ErrInvalidConfig is returned by constructors for invalid parameters.
	ErrInvalidConfig = errors.New("invalid curve config")
)

// Kind identifies a curve variant.
type Kind string

// Curve kinds.
const (
	KindYield          Kind = "yield"
	KindPendle         Kind = "pendle"
	KindUniswapV2      Kind = "uniswap_v2"
	KindUniswapV3      Kind = "uniswap_v3"
	KindTickSwap       Kind = "tickswap"
	KindTickSwapFee1   Kind = "tickswap_fee1"
	KindTickSwapFee3   Kind = "tickswap_fee3"
	KindTickSwapFee10  Kind = "tickswap_fee10"
	KindTickSwapFee30  Kind = "tickswap_fee30"
	KindTickSwapFee100 Kind = "tickswap_fee100"
)

// Kinds lists every supported kind in a stable order.
var Kinds = []Kind{
	KindYield, KindPendle,
	KindUniswapV2, KindUniswapV3,
	KindTickSwap, KindTickSwapFee1, KindTickSwapFee3, KindTickSwapFee10, KindTickSwapFee30, KindTickSwapFee100,
}

// IsTimeDecaying reports whether curves of this kind implement TimeDecaying.
func (k Kind) IsTimeDecaying() bool {
	return k == KindYield || k == KindPendle
}

// Curve is the capability shared by every curve variant.
type Curve interface {
	// Kind returns the curve variant.
	Kind() Kind

	// Reserves returns the current (A, B) reserves.
	Reserves() (a, b float64)

	// Invariant returns the current k.
	Invariant() float64

	// Price returns the marginal price implied by the current state.
	Price() (float64, error)

	// PriceToPosition returns the reserves that produce the target marginal
	// price at the current invariant. It does not mutate the curve.
	PriceToPosition(target float64) (a, b float64, err error)

	// SetPosition commits new reserves, recomputes the invariant and returns
	// the signed deltas against the previous reserves.
	SetPosition(a, b float64) (da, db float64, err error)
}

// TimeDecaying is implemented by curves whose pricing depends on time to maturity.
type TimeDecaying interface {
	Curve

	// SetTime sets the remaining-time fraction from the elapsed seconds since start.
	SetTime(elapsed float64) error

	// StepTime advances the clock by elapsed seconds.
	StepTime(elapsed float64) error

	// TimeFraction returns t in [0, 1]; 1 means the full duration remains.
	TimeFraction() float64

	// TotalDuration returns the curve lifetime in seconds.
	TotalDuration() float64

	// ImpliedRate returns the cached per-period rate implied by the price.
	ImpliedRate() float64

	// RateToPosition converts a rate into a price and delegates to PriceToPosition.
	RateToPosition(rate float64) (a, b float64, err error)
}

// Bounded is implemented by curves confined to a tick range with a fee band.
type Bounded interface {
	Curve

	// Bounds returns the price interval the position is confined to.
	Bounds() (lower, upper float64)

	// FeeRate returns the per-trade fee fraction.
	FeeRate() float64

	// TickIndex returns the tick the position lives in.
	TickIndex() int
}

// reserves is embedded by every variant.
type reserves struct {
	a, b float64
	k    float64
}

func (r *reserves) Reserves() (float64, float64) { return r.a, r.b }

func (r *reserves) Invariant() float64 { return r.k }

// commit stores new reserves and returns the deltas.
func (r *reserves) commit(a, b float64) (float64, float64, error) {
	if err := checkReserves(a, b); err != nil {
		return 0, 0, err
	}
	da, db := a-r.a, b-r.b
	r.a, r.b = a, b
	return da, db, nil
}

func checkReserves(a, b float64) error {
	if !finite(a) || !finite(b) {
		return fmt.Errorf("%w: reserves (%g, %g) not finite", ErrDomain, a, b)
	}
	if a < 0 || b < 0 {
		return fmt.Errorf("%w: negative reserves (%g, %g)", ErrDomain, a, b)
	}
	return nil
}

func checkPrice(p float64) error {
	if !finite(p) || p <= 0 {
		return fmt.Errorf("%w: price %g", ErrDomain, p)
	}
	return nil
}

func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}

func clamp(x, lower, upper float64) float64 {
	return math.Min(math.Max(x, lower), upper)
}
