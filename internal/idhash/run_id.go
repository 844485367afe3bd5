package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"

	"amm-curve-lab/internal/curve"
	"amm-curve-lab/internal/domain"
)

// CanonicalParams encodes curve params as JSON with a fixed field order.
// The result is stored with the run and feeds ComputeRunID.
func CanonicalParams(p curve.Params) (string, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("encode curve params: %w", err)
	}
	return string(data), nil
}

// ComputeRunID computes a deterministic run_id using SHA256.
// Formula: SHA256(series_id|driver|params_json|fee_rate|from|to)
// Returns hex-encoded hash (64 characters).
func ComputeRunID(
	seriesID string,
	driver domain.Driver,
	paramsJSON string,
	feeRate float64,
	from, to int64,
) string {
	data := fmt.Sprintf("%s|%s|%s|%s|%d|%d",
		seriesID,
		string(driver),
		paramsJSON,
		strconv.FormatFloat(feeRate, 'g', -1, 64),
		from,
		to,
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}

// ComputeSeriesID derives a price series id for a projected pair.
// Formula: "pair_" + first 16 hex chars of SHA256(pair|decimals0|decimals1|invert)
func ComputeSeriesID(pair string, decimals0, decimals1 int32, invert bool) string {
	data := fmt.Sprintf("%s|%d|%d|%t", pair, decimals0, decimals1, invert)
	hash := sha256.Sum256([]byte(data))
	return "pair_" + hex.EncodeToString(hash[:8])
}
