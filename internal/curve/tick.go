package curve

import (
	"fmt"
	"math"
)

// band confines a position to one tick and applies the fee no-trade zone.
type band struct {
	tick         int
	lower, upper float64
	fee          float64
}

func newBand(tick int, base, fee float64) (band, error) {
	base = orDefault(base, DefaultTickBase)
	if !finite(base) || base <= 1 {
		return band{}, fmt.Errorf("%w: tick base must be > 1, got %g", ErrInvalidConfig, base)
	}
	if err := validateFeeRate(fee); err != nil {
		return band{}, err
	}
	lo := math.Pow(base, float64(tick))
	hi := math.Pow(base, float64(tick+1))
	if !finite(lo) || !finite(hi) || lo <= 0 {
		return band{}, fmt.Errorf("%w: tick %d out of range for base %g", ErrInvalidConfig, tick, base)
	}
	return band{tick: tick, lower: lo, upper: hi, fee: fee}, nil
}

// unbounded is the [0, +Inf) band used by the constant-product curve.
func unbounded(fee float64) (band, error) {
	if err := validateFeeRate(fee); err != nil {
		return band{}, err
	}
	return band{lower: 0, upper: math.Inf(1), fee: fee}, nil
}

func (b *band) Bounds() (float64, float64) { return b.lower, b.upper }

func (b *band) FeeRate() float64 { return b.fee }

func (b *band) TickIndex() int { return b.tick }

// target clamps p into the band and reports whether it falls outside the fee
// zone around current. When it does not, no trade should happen.
func (b *band) target(current, p float64) (float64, bool) {
	p = clamp(p, b.lower, b.upper)
	if current/(1+b.fee) <= p && p <= current*(1+b.fee) {
		return p, false
	}
	return p, true
}

// TickBounds returns [base^tick, base^(tick+1)).
func TickBounds(tick int, base float64) (lower, upper float64, err error) {
	b, err := newBand(tick, base, 0)
	if err != nil {
		return 0, 0, err
	}
	return b.lower, b.upper, nil
}

// TickOf returns the tick whose interval contains price.
func TickOf(price, base float64) (int, error) {
	base = orDefault(base, DefaultTickBase)
	if err := checkPrice(price); err != nil {
		return 0, err
	}
	if !finite(base) || base <= 1 {
		return 0, fmt.Errorf("%w: tick base must be > 1, got %g", ErrInvalidConfig, base)
	}
	return int(math.Floor(math.Log(price) / math.Log(base))), nil
}
