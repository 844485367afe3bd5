package curve

import (
	"fmt"
	"math"
)

// PendleOptions tunes a Pendle curve. Zero values select defaults.
type PendleOptions struct {
	TradeSteps int
	RatePeriod float64
}

// Pendle is a logarithmic curve over (PT, TT):
//
//	price = 1 / (t*ln(PT/TT)/A + k)
//
// The scalar A sets the steepness and C the centre, so that the implied rate
// stays within a band around the expected rate. k starts at C and is
// re-anchored on every time change so the implied rate carries over.
type Pendle struct {
	reserves
	clock
	scalar float64
	anchor float64
	steps  int
}

var _ TimeDecaying = (*Pendle)(nil)

// NewPendle creates a Pendle curve at t = 1 with k = c.
func NewPendle(pt, tt, totalDuration, a, c float64, opts PendleOptions) (*Pendle, error) {
	if err := validateInitialReserves(pt, tt); err != nil {
		return nil, err
	}
	if !finite(a) || a <= 0 {
		return nil, fmt.Errorf("%w: pendle scalar A must be positive, got %g", ErrInvalidConfig, a)
	}
	if !finite(c) || c <= 0 {
		return nil, fmt.Errorf("%w: pendle anchor C must be positive, got %g", ErrInvalidConfig, c)
	}
	steps := opts.TradeSteps
	if steps == 0 {
		steps = DefaultTradeSteps
	}
	if steps < 0 {
		return nil, fmt.Errorf("%w: trade steps must be positive, got %d", ErrInvalidConfig, steps)
	}
	clk, err := newClock(totalDuration, opts.RatePeriod)
	if err != nil {
		return nil, err
	}
	p := &Pendle{
		reserves: reserves{a: pt, b: tt, k: c},
		clock:    clk,
		scalar:   a,
		anchor:   c,
		steps:    steps,
	}
	price, err := p.Price()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := p.refreshRate(price); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return p, nil
}

func (p *Pendle) Kind() Kind { return KindPendle }

// Coefficients returns the (A, C) pair the curve was built with.
func (p *Pendle) Coefficients() (a, c float64) { return p.scalar, p.anchor }

// TradeSteps returns the number of increments used by PriceToPosition.
func (p *Pendle) TradeSteps() int { return p.steps }

// priceAt evaluates the curve for a PT/TT log ratio at the current t and k.
func (p *Pendle) priceAt(lr float64) (float64, error) {
	denom := p.t*lr/p.scalar + p.k
	if !finite(denom) || denom <= 0 {
		return 0, fmt.Errorf("%w: pendle denominator %g", ErrDomain, denom)
	}
	return 1 / denom, nil
}

func (p *Pendle) Price() (float64, error) {
	lr, err := logRatio(p.a, p.b)
	if err != nil {
		return 0, err
	}
	return p.priceAt(lr)
}

// updateK re-anchors k so that the current reserves quote the cached rate.
func (p *Pendle) updateK() error {
	lr, err := logRatio(p.a, p.b)
	if err != nil {
		return err
	}
	k := math.Pow(1+p.rate, p.horizon()) - p.t*lr/p.scalar
	if !finite(k) {
		return fmt.Errorf("%w: pendle k %g", ErrDomain, k)
	}
	p.k = k
	return nil
}

// PriceToPosition walks from the current price to target in TradeSteps equal
// increments. Each increment solves the PT/TT ratio for its end price exactly
// and settles the TT leg at the mean price of the increment, so the final
// price is exact while the reserves approximate a continuous trade.
func (p *Pendle) PriceToPosition(target float64) (float64, float64, error) {
	if err := checkPrice(target); err != nil {
		return 0, 0, err
	}
	if p.t == 0 {
		return p.a, p.b, nil
	}
	start, err := p.Price()
	if err != nil {
		return 0, 0, err
	}

	pt, tt := p.a, p.b
	prev := start
	n := float64(p.steps)
	for i := 1; i <= p.steps; i++ {
		next := start + (target-start)*float64(i)/n
		ratio := math.Exp((1/next - p.k) * p.scalar / p.t)
		mid := (prev + next) / 2
		d := (ratio*tt - pt) / (1 + ratio*mid)
		pt += d
		tt -= mid * d
		if err := checkReserves(pt, tt); err != nil {
			return 0, 0, fmt.Errorf("trade step %d/%d: %w", i, p.steps, err)
		}
		prev = next
	}
	return pt, tt, nil
}

// SetPosition commits the reserves, refreshes the implied rate and re-anchors
// k. On error the curve is left as it was.
func (p *Pendle) SetPosition(pt, tt float64) (float64, float64, error) {
	saved, clk := p.reserves, p.clock
	dpt, dtt, err := p.reposition(pt, tt)
	if err != nil {
		p.reserves, p.clock = saved, clk
		return 0, 0, err
	}
	return dpt, dtt, nil
}

func (p *Pendle) reposition(pt, tt float64) (float64, float64, error) {
	dpt, dtt, err := p.commit(pt, tt)
	if err != nil {
		return 0, 0, err
	}
	price, err := p.Price()
	if err != nil {
		return 0, 0, err
	}
	if err := p.refreshRate(price); err != nil {
		return 0, 0, err
	}
	if err := p.updateK(); err != nil {
		return 0, 0, err
	}
	return dpt, dtt, nil
}

func (p *Pendle) SetTime(elapsed float64) error {
	return p.advance(func() error { return p.set(elapsed) })
}

func (p *Pendle) StepTime(elapsed float64) error {
	return p.advance(func() error { return p.step(elapsed) })
}

// advance caches the rate, moves the clock and re-anchors k. On error the
// clock and k are left as they were.
func (p *Pendle) advance(move func() error) error {
	saved, clk := p.reserves, p.clock
	if err := p.shiftClock(move); err != nil {
		p.reserves, p.clock = saved, clk
		return err
	}
	return nil
}

func (p *Pendle) shiftClock(move func() error) error {
	price, err := p.Price()
	if err != nil {
		return err
	}
	if err := p.refreshRate(price); err != nil {
		return err
	}
	if err := move(); err != nil {
		return err
	}
	return p.updateK()
}

func (p *Pendle) RateToPosition(rate float64) (float64, float64, error) {
	price, err := p.rateToPrice(rate)
	if err != nil {
		return 0, 0, err
	}
	return p.PriceToPosition(price)
}

// CoeffAC derives the Pendle (A, C) pair from a per-year rate band using
// DefaultRatePeriod. See CoeffACPeriod.
func CoeffAC(lower, upper float64, expected *float64, totalTime float64) (a, c float64, err error) {
	return CoeffACPeriod(lower, upper, expected, totalTime, DefaultRatePeriod)
}

// CoeffACPeriod converts the rate band [lower, upper] into growth factors over
// totalTime. C is the expected factor (band midpoint when expected is nil) and
// A places ln(9) at the band edge furthest from C, so a 90/10 pool split
// quotes that edge.
func CoeffACPeriod(lower, upper float64, expected *float64, totalTime, period float64) (a, c float64, err error) {
	if !finite(lower) || !finite(upper) || lower <= -1 {
		return 0, 0, fmt.Errorf("%w: rate band [%g, %g]", ErrInvalidConfig, lower, upper)
	}
	if lower >= upper {
		return 0, 0, fmt.Errorf("%w: lower rate %g must be below upper rate %g", ErrInvalidConfig, lower, upper)
	}
	if err := validateDuration(totalTime); err != nil {
		return 0, 0, err
	}
	if !finite(period) || period <= 0 {
		return 0, 0, fmt.Errorf("%w: rate period must be positive, got %g", ErrInvalidConfig, period)
	}

	h := totalTime / period
	lo := math.Pow(1+lower, h)
	hi := math.Pow(1+upper, h)
	c = (lo + hi) / 2
	if expected != nil {
		e := *expected
		if !finite(e) || e < lower || e > upper {
			return 0, 0, fmt.Errorf("%w: expected rate %g outside [%g, %g]", ErrInvalidConfig, e, lower, upper)
		}
		c = math.Pow(1+e, h)
	}
	spread := math.Max(hi-c, c-lo)
	if spread <= 0 {
		return 0, 0, fmt.Errorf("%w: degenerate rate band", ErrInvalidConfig)
	}
	return math.Log(9) / spread, c, nil
}
