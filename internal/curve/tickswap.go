package curve

import (
	"fmt"
	"math"
)

// TickSwap is an all-or-nothing single-tick curve: above the tick centre the
// position is held entirely in A, below it entirely in B. Its price is
// quantised to {lower, centre, upper}, so it does not satisfy the exact
// price round trip inside the tick.
type TickSwap struct {
	reserves
	band
	kind   Kind
	centre float64
}

var _ Bounded = (*TickSwap)(nil)

// NewTickSwap creates a TickSwap of the given fee tier kind.
func NewTickSwap(kind Kind, a, b float64, tick int, base float64) (*TickSwap, error) {
	fee, ok := kindFeeRates[kind]
	if !ok || !isTickSwap(kind) {
		return nil, fmt.Errorf("%w: %q is not a tickswap kind", ErrInvalidConfig, kind)
	}
	if err := validateInitialReserves(a, b); err != nil {
		return nil, err
	}
	bd, err := newBand(tick, base, fee)
	if err != nil {
		return nil, err
	}
	c := &TickSwap{
		reserves: reserves{a: a, b: b},
		band:     bd,
		kind:     kind,
		centre:   math.Sqrt(bd.lower * bd.upper),
	}
	c.updateK()
	return c, nil
}

func isTickSwap(k Kind) bool {
	switch k {
	case KindTickSwap, KindTickSwapFee1, KindTickSwapFee3, KindTickSwapFee10, KindTickSwapFee30, KindTickSwapFee100:
		return true
	}
	return false
}

func (c *TickSwap) Kind() Kind { return c.kind }

// Centre returns the geometric mean of the tick bounds.
func (c *TickSwap) Centre() float64 { return c.centre }

func (c *TickSwap) updateK() {
	c.k = c.a + c.b*c.centre
}

func (c *TickSwap) Price() (float64, error) {
	switch {
	case c.a == 0 && c.b == 0:
		return 0, ErrZeroReserve
	case c.b == 0:
		return c.upper, nil
	case c.a == 0:
		return c.lower, nil
	default:
		return c.centre, nil
	}
}

func (c *TickSwap) PriceToPosition(target float64) (float64, float64, error) {
	if err := checkPrice(target); err != nil {
		return 0, 0, err
	}
	current, err := c.Price()
	if err != nil {
		return 0, 0, err
	}
	p, trade := c.target(current, target)
	switch {
	case !trade:
		return c.a, c.b, nil
	case p > c.centre:
		return c.k, 0, nil
	case p < c.centre:
		return 0, c.k / c.centre, nil
	default:
		return c.a, c.b, nil
	}
}

func (c *TickSwap) SetPosition(a, b float64) (float64, float64, error) {
	da, db, err := c.commit(a, b)
	if err != nil {
		return 0, 0, err
	}
	c.updateK()
	return da, db, nil
}
