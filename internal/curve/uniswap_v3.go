package curve

import (
	"fmt"
	"math"
)

// UniswapV3 is a concentrated-liquidity position within one tick. The
// invariant is the liquidity L solving
//
//	(A + L*sqrt(lo)) * (B + L/sqrt(hi)) = L^2
type UniswapV3 struct {
	reserves
	band
}

var _ Bounded = (*UniswapV3)(nil)

// NewUniswapV3 creates a position in tick with the given base. Zero base or
// fee select the defaults.
func NewUniswapV3(a, b float64, tick int, base, fee float64) (*UniswapV3, error) {
	if err := validateInitialReserves(a, b); err != nil {
		return nil, err
	}
	bd, err := newBand(tick, base, orDefault(fee, kindFeeRates[KindUniswapV3]))
	if err != nil {
		return nil, err
	}
	c := &UniswapV3{reserves: reserves{a: a, b: b}, band: bd}
	if err := c.updateK(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return c, nil
}

func (c *UniswapV3) Kind() Kind { return KindUniswapV3 }

// Liquidity returns L.
func (c *UniswapV3) Liquidity() float64 { return c.k }

func (c *UniswapV3) updateK() error {
	sl, sh := math.Sqrt(c.lower), math.Sqrt(c.upper)
	qa := sl/sh - 1
	qb := c.b*sl + c.a/sh
	qc := c.a * c.b
	disc := qb*qb - 4*qa*qc
	if disc < 0 {
		return fmt.Errorf("%w: negative discriminant %g", ErrDomain, disc)
	}
	l := (-qb - math.Sqrt(disc)) / (2 * qa)
	if !finite(l) || l < 0 {
		return fmt.Errorf("%w: liquidity %g", ErrDomain, l)
	}
	c.k = l
	return nil
}

// Price returns the virtual-reserve ratio.
func (c *UniswapV3) Price() (float64, error) {
	if c.k == 0 {
		return 0, ErrZeroReserve
	}
	x := c.a + c.k*math.Sqrt(c.lower)
	y := c.b + c.k/math.Sqrt(c.upper)
	p := x / y
	if err := checkPrice(p); err != nil {
		return 0, err
	}
	return p, nil
}

func (c *UniswapV3) PriceToPosition(target float64) (float64, float64, error) {
	if err := checkPrice(target); err != nil {
		return 0, 0, err
	}
	current, err := c.Price()
	if err != nil {
		return 0, 0, err
	}
	p, trade := c.target(current, target)
	if !trade {
		return c.a, c.b, nil
	}
	s := math.Sqrt(p)
	a := c.k * (s - math.Sqrt(c.lower))
	b := c.k * (1/s - 1/math.Sqrt(c.upper))
	// sqrt rounding at the bounds
	a, b = math.Max(a, 0), math.Max(b, 0)
	if err := checkReserves(a, b); err != nil {
		return 0, 0, err
	}
	return a, b, nil
}

// SetPosition commits the reserves and recomputes L. On error the position
// is left as it was.
func (c *UniswapV3) SetPosition(a, b float64) (float64, float64, error) {
	saved := c.reserves
	da, db, err := c.commit(a, b)
	if err != nil {
		return 0, 0, err
	}
	if err := c.updateK(); err != nil {
		c.reserves = saved
		return 0, 0, err
	}
	return da, db, nil
}
