package curve

import (
	"fmt"
	"math"
)

// clock is the time-to-maturity state shared by Yield and Pendle.
type clock struct {
	total  float64 // lifetime in seconds
	period float64 // rate compounding period in seconds
	t      float64 // remaining fraction in [0, 1]
	rate   float64 // cached implied rate
}

func newClock(total, period float64) (clock, error) {
	if err := validateDuration(total); err != nil {
		return clock{}, err
	}
	period = orDefault(period, DefaultRatePeriod)
	if !finite(period) || period <= 0 {
		return clock{}, fmt.Errorf("%w: rate period must be positive, got %g", ErrInvalidConfig, period)
	}
	return clock{total: total, period: period, t: 1}, nil
}

func (c *clock) TimeFraction() float64 { return c.t }

func (c *clock) TotalDuration() float64 { return c.total }

func (c *clock) ImpliedRate() float64 { return c.rate }

// horizon is the remaining time measured in rate periods.
func (c *clock) horizon() float64 {
	return c.t * c.total / c.period
}

// refreshRate caches the rate implied by price p. The cache is left
// unchanged at maturity, and when the horizon is too short for the rate to
// be representable.
func (c *clock) refreshRate(p float64) error {
	if c.t == 0 {
		return nil
	}
	if err := checkPrice(p); err != nil {
		return err
	}
	r := math.Pow(p, -1/c.horizon()) - 1
	if finite(r) {
		c.rate = r
	}
	return nil
}

// rateToPrice converts a per-period rate into the PT price at the current t.
func (c *clock) rateToPrice(rate float64) (float64, error) {
	if !finite(rate) || rate <= -1 {
		return 0, fmt.Errorf("%w: rate %g", ErrDomain, rate)
	}
	p := math.Pow(1+rate, -c.horizon())
	if err := checkPrice(p); err != nil {
		return 0, err
	}
	return p, nil
}

func (c *clock) setFraction(t float64) error {
	if math.IsNaN(t) {
		return fmt.Errorf("%w: time fraction is NaN", ErrDomain)
	}
	c.t = clamp(t, 0, 1)
	return nil
}

func (c *clock) set(elapsed float64) error {
	return c.setFraction(1 - elapsed/c.total)
}

// step moves t forward only; SetTime is the way to rewind.
func (c *clock) step(elapsed float64) error {
	if elapsed < 0 {
		return fmt.Errorf("%w: negative time step %g", ErrDomain, elapsed)
	}
	return c.setFraction(c.t - elapsed/c.total)
}
