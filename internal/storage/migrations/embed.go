package migrations

import "embed"

// PostgresFS holds the backtest_runs schema.
//
//go:embed postgres/*.sql
var PostgresFS embed.FS

// ClickhouseFS holds the series, pair event and backtest step schemas.
//
//go:embed clickhouse/*.sql
var ClickhouseFS embed.FS
