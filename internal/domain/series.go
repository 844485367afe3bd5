package domain

// PricePoint is one observation of an external market price.
// Corresponds to price_series table in ClickHouse.
type PricePoint struct {
	SeriesID  string  // series identifier, e.g. "uniswap_v2_usdc_weth"
	Timestamp int64   // Unix timestamp in seconds
	Price     float64 // price of token B in token A units
}

// RatePoint is one observation of an implied (per-year) rate.
// Corresponds to rate_series table in ClickHouse.
type RatePoint struct {
	SeriesID  string  // series identifier, e.g. "pendle_pt_susde_26sep2024"
	Timestamp int64   // Unix timestamp in seconds
	Rate      float64 // implied rate per rate period
}
