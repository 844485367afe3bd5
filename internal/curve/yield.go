package curve

import (
	"fmt"
	"math"
)

// YieldOptions tunes a Yield curve. Zero values select defaults.
type YieldOptions struct {
	TimeScale  float64
	RatePeriod float64
}

// Yield is a generalized constant-product curve over (PT, TT) whose exponent
// decays with time to maturity:
//
//	price = (TT/PT)^a,  k = PT^(1-a) + TT^(1-a),  a = t*TimeScale
//
// At maturity a = 0 and the curve is constant-sum with price 1. TimeScale 1
// gives the plain (TT/PT)^t curve; its level set degenerates to k = 2 while
// t = 1, where PriceToPosition has no solution.
type Yield struct {
	reserves
	clock
	scale float64
}

var _ TimeDecaying = (*Yield)(nil)

// NewYield creates a Yield curve at t = 1.
func NewYield(pt, tt, totalDuration float64, opts YieldOptions) (*Yield, error) {
	if err := validateInitialReserves(pt, tt); err != nil {
		return nil, err
	}
	scale := orDefault(opts.TimeScale, DefaultYieldTimeScale)
	if !finite(scale) || scale <= 0 || scale > 1 {
		return nil, fmt.Errorf("%w: yield time scale must be in (0, 1], got %g", ErrInvalidConfig, scale)
	}
	c, err := newClock(totalDuration, opts.RatePeriod)
	if err != nil {
		return nil, err
	}
	y := &Yield{reserves: reserves{a: pt, b: tt}, clock: c, scale: scale}
	y.updateK()
	p, err := y.Price()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := y.refreshRate(p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return y, nil
}

func (y *Yield) Kind() Kind { return KindYield }

// TimeScale returns the factor mapping t to the price exponent.
func (y *Yield) TimeScale() float64 { return y.scale }

func (y *Yield) exponent() float64 { return y.t * y.scale }

func (y *Yield) updateK() {
	e := 1 - y.exponent()
	y.k = math.Pow(y.a, e) + math.Pow(y.b, e)
}

func (y *Yield) Price() (float64, error) {
	if y.a == 0 || y.b == 0 {
		return 0, ErrZeroReserve
	}
	p := math.Pow(y.b/y.a, y.exponent())
	if err := checkPrice(p); err != nil {
		return 0, err
	}
	return p, nil
}

func (y *Yield) PriceToPosition(target float64) (float64, float64, error) {
	if err := checkPrice(target); err != nil {
		return 0, 0, err
	}
	a := y.exponent()
	if a == 0 {
		return y.a, y.b, nil
	}
	e := 1 - a
	if e <= 0 {
		return 0, 0, fmt.Errorf("%w: yield exponent %g leaves no level set to solve", ErrDomain, a)
	}
	r := math.Pow(target, 1/a)
	pt := math.Pow(y.k/(1+math.Pow(r, e)), 1/e)
	tt := r * pt
	if err := checkReserves(pt, tt); err != nil {
		return 0, 0, err
	}
	return pt, tt, nil
}

func (y *Yield) SetPosition(pt, tt float64) (float64, float64, error) {
	saved, clk := y.reserves, y.clock
	dpt, dtt, err := y.commit(pt, tt)
	if err != nil {
		return 0, 0, err
	}
	// a one-sided position has no rate; keep the last one
	if p, err := y.Price(); err == nil {
		if err := y.refreshRate(p); err != nil {
			y.reserves, y.clock = saved, clk
			return 0, 0, err
		}
	}
	y.updateK()
	return dpt, dtt, nil
}

func (y *Yield) SetTime(elapsed float64) error {
	return y.advance(func() error { return y.set(elapsed) })
}

func (y *Yield) StepTime(elapsed float64) error {
	return y.advance(func() error { return y.step(elapsed) })
}

// advance caches the implied rate from the pre-step price, moves the clock
// and recomputes k.
func (y *Yield) advance(move func() error) error {
	p, err := y.Price()
	if err != nil {
		return err
	}
	if err := y.refreshRate(p); err != nil {
		return err
	}
	if err := move(); err != nil {
		return err
	}
	y.updateK()
	return nil
}

func (y *Yield) RateToPosition(rate float64) (float64, float64, error) {
	p, err := y.rateToPrice(rate)
	if err != nil {
		return 0, 0, err
	}
	return y.PriceToPosition(p)
}
