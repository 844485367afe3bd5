package curve

import "math"

// UniswapV2 is the constant-product curve A*B = k^2 over [0, +Inf).
type UniswapV2 struct {
	reserves
	band
}

var _ Bounded = (*UniswapV2)(nil)

// NewUniswapV2 creates a constant-product curve. A zero fee selects 0.3%.
func NewUniswapV2(a, b, fee float64) (*UniswapV2, error) {
	if err := validateInitialReserves(a, b); err != nil {
		return nil, err
	}
	bd, err := unbounded(orDefault(fee, kindFeeRates[KindUniswapV2]))
	if err != nil {
		return nil, err
	}
	c := &UniswapV2{reserves: reserves{a: a, b: b}, band: bd}
	c.updateK()
	return c, nil
}

func (c *UniswapV2) Kind() Kind { return KindUniswapV2 }

func (c *UniswapV2) updateK() {
	c.k = math.Sqrt(c.a * c.b)
}

// Price returns A/B. A one-sided pool has no defined price.
func (c *UniswapV2) Price() (float64, error) {
	if c.a == 0 || c.b == 0 {
		return 0, ErrZeroReserve
	}
	return c.a / c.b, nil
}

func (c *UniswapV2) PriceToPosition(target float64) (float64, float64, error) {
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
	a, b := c.k*s, c.k/s
	if err := checkReserves(a, b); err != nil {
		return 0, 0, err
	}
	return a, b, nil
}

func (c *UniswapV2) SetPosition(a, b float64) (float64, float64, error) {
	da, db, err := c.commit(a, b)
	if err != nil {
		return 0, 0, err
	}
	c.updateK()
	return da, db, nil
}
