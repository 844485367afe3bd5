package curve

import (
	"fmt"
	"math"
)

// Defaults applied by New when the corresponding Params field is zero.
const (
	// DefaultRatePeriod is the rate compounding period in seconds (365 days).
	DefaultRatePeriod = 365 * 24 * 60 * 60

	// DefaultYieldTimeScale scales t into the Yield exponent. Scale 1 is the
	// unscaled curve, which cannot be inverted at t = 1.
	DefaultYieldTimeScale = 0.1

	// DefaultTradeSteps is the number of Pendle price increments per trade.
	DefaultTradeSteps = 10

	// DefaultTickBase is the geometric ratio between adjacent tick bounds.
	DefaultTickBase = 1.05

	// DefaultAMMFeeRate is the fee rate charged by the AMM driver.
	DefaultAMMFeeRate = 0.001
)

// Fee rates per tick curve kind.
var kindFeeRates = map[Kind]float64{
	KindUniswapV2:      0.003,
	KindUniswapV3:      0.003,
	KindTickSwap:       0.003,
	KindTickSwapFee1:   0.001,
	KindTickSwapFee3:   0.003,
	KindTickSwapFee10:  0.01,
	KindTickSwapFee30:  0.03,
	KindTickSwapFee100: 0.1,
}

// DefaultFeeRate returns the built-in fee rate for a tick curve kind.
func DefaultFeeRate(k Kind) (float64, bool) {
	f, ok := kindFeeRates[k]
	return f, ok
}

// Params holds construction parameters for every curve kind.
// Fields irrelevant to the selected kind are ignored.
type Params struct {
	Kind     Kind    `yaml:"kind" json:"kind"`
	ReserveA float64 `yaml:"reserve_a" json:"reserve_a"`
	ReserveB float64 `yaml:"reserve_b" json:"reserve_b"`

	// Time-decaying curves.
	TotalDuration float64 `yaml:"total_duration" json:"total_duration,omitempty"`
	RatePeriod    float64 `yaml:"rate_period" json:"rate_period,omitempty"`

	// Yield.
	TimeScale float64 `yaml:"time_scale" json:"time_scale,omitempty"`

	// Pendle. When A and C are both zero they are derived from the rate band.
	A            float64  `yaml:"a" json:"a,omitempty"`
	C            float64  `yaml:"c" json:"c,omitempty"`
	RateLower    float64  `yaml:"rate_lower" json:"rate_lower,omitempty"`
	RateUpper    float64  `yaml:"rate_upper" json:"rate_upper,omitempty"`
	RateExpected *float64 `yaml:"rate_expected" json:"rate_expected,omitempty"`
	TradeSteps   int      `yaml:"trade_steps" json:"trade_steps,omitempty"`

	// Tick curves.
	Tick     int     `yaml:"tick" json:"tick,omitempty"`
	TickBase float64 `yaml:"tick_base" json:"tick_base,omitempty"`
	FeeRate  float64 `yaml:"fee_rate" json:"fee_rate,omitempty"`
}

// New builds a curve from params, failing with ErrInvalidConfig on bad input.
func New(p Params) (Curve, error) {
	switch p.Kind {
	case KindYield:
		return NewYield(p.ReserveA, p.ReserveB, p.TotalDuration, YieldOptions{
			TimeScale:  p.TimeScale,
			RatePeriod: p.RatePeriod,
		})
	case KindPendle:
		a, c := p.A, p.C
		if a == 0 && c == 0 {
			period := p.RatePeriod
			if period == 0 {
				period = DefaultRatePeriod
			}
			var err error
			a, c, err = CoeffACPeriod(p.RateLower, p.RateUpper, p.RateExpected, p.TotalDuration, period)
			if err != nil {
				return nil, err
			}
		}
		return NewPendle(p.ReserveA, p.ReserveB, p.TotalDuration, a, c, PendleOptions{
			TradeSteps: p.TradeSteps,
			RatePeriod: p.RatePeriod,
		})
	case KindUniswapV2:
		return NewUniswapV2(p.ReserveA, p.ReserveB, p.FeeRate)
	case KindUniswapV3:
		return NewUniswapV3(p.ReserveA, p.ReserveB, p.Tick, p.TickBase, p.FeeRate)
	case KindTickSwap, KindTickSwapFee1, KindTickSwapFee3, KindTickSwapFee10, KindTickSwapFee30, KindTickSwapFee100:
		return NewTickSwap(p.Kind, p.ReserveA, p.ReserveB, p.Tick, p.TickBase)
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidConfig, p.Kind)
	}
}

func validateInitialReserves(a, b float64) error {
	if !finite(a) || !finite(b) || a <= 0 || b <= 0 {
		return fmt.Errorf("%w: initial reserves must be positive, got (%g, %g)", ErrInvalidConfig, a, b)
	}
	return nil
}

func validateDuration(total float64) error {
	if !finite(total) || total <= 0 {
		return fmt.Errorf("%w: total duration must be positive, got %g", ErrInvalidConfig, total)
	}
	return nil
}

func validateFeeRate(f float64) error {
	if !finite(f) || f < 0 || f >= 1 {
		return fmt.Errorf("%w: fee rate must be in [0, 1), got %g", ErrInvalidConfig, f)
	}
	return nil
}

func orDefault(v, def float64) float64 {
	if v == 0 {
		return def
	}
	return v
}

// logRatio returns ln(pt/tt), failing on zero reserves.
func logRatio(pt, tt float64) (float64, error) {
	if pt == 0 || tt == 0 {
		return 0, ErrZeroReserve
	}
	r := math.Log(pt / tt)
	if !finite(r) {
		return 0, fmt.Errorf("%w: ln(%g/%g)", ErrDomain, pt, tt)
	}
	return r, nil
}
