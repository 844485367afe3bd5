package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"amm-curve-lab/internal/config"
	"amm-curve-lab/internal/logger"
	"amm-curve-lab/internal/observability"
	"amm-curve-lab/internal/projection"
	"amm-curve-lab/internal/storage"
	chstore "amm-curve-lab/internal/storage/clickhouse"
)

func main() {
	// Parse flags
	pair := flag.String("pair", "", "Pair name as stored in pair_events (required)")
	decimals0 := flag.Int("decimals0", 18, "Token0 decimals")
	decimals1 := flag.Int("decimals1", 18, "Token1 decimals")
	invert := flag.Bool("invert", false, "Emit reserve1/reserve0 prices")
	window := flag.Int64("window", projection.DefaultWindow, "Fee rate look-back in blocks")
	fromHeight := flag.Int64("from-height", 0, "First block height, inclusive")
	toHeight := flag.Int64("to-height", 0, "Last block height, inclusive")
	skipRates := flag.Bool("skip-rates", false, "Do not write the fee rate series")
	metricsFile := flag.String("metrics-file", "", "Write Prometheus metrics to this textfile on exit")
	clickhouseDSN := flag.String("clickhouse-dsn", "", "ClickHouse connection string")
	envFile := flag.String("env", ".env", "dotenv file to load")
	flag.Parse()

	if err := config.LoadEnv(*envFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	cfg := config.FromEnv()
	if *clickhouseDSN != "" {
		cfg.Storage.ClickhouseDSN = *clickhouseDSN
	}

	logger.Initialize(cfg.Log.Level, cfg.Log.File)
	log := logger.GetForComponent("project")

	if *pair == "" {
		log.Fatal().Msg("--pair is required")
	}
	if cfg.Storage.ClickhouseDSN == "" {
		log.Fatal().Msg("--clickhouse-dsn (or CLICKHOUSE_DSN) is required")
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	conn, err := chstore.NewConn(ctx, cfg.Storage.ClickhouseDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("connect to clickhouse")
	}
	defer conn.Close()

	var rates storage.RateSeriesStore = chstore.NewRateSeriesStore(conn)
	if *skipRates {
		rates = nil
	}
	reg := prometheus.NewRegistry()
	runner := projection.NewRunner(chstore.NewPairEventStore(conn), chstore.NewPriceSeriesStore(conn), rates).
		WithMetrics(observability.NewMetrics("", reg))

	res, err := runner.ProjectPair(ctx, projection.Request{
		Pair:       *pair,
		Decimals0:  int32(*decimals0),
		Decimals1:  int32(*decimals1),
		Invert:     *invert,
		Window:     *window,
		FromHeight: *fromHeight,
		ToHeight:   *toHeight,
	})
	if err != nil {
		log.Fatal().Err(err).Str("pair", *pair).Msg("projection failed")
	}

	if *metricsFile != "" {
		if err := prometheus.WriteToTextfile(*metricsFile, reg); err != nil {
			log.Error().Err(err).Msg("write metrics textfile")
		}
	}

	log.Info().
		Str("pair", *pair).
		Int("blocks", res.Blocks).
		Str("price_series", res.PriceSeriesID).
		Int("price_points", res.PricePoints).
		Str("rate_series", res.RateSeriesID).
		Int("rate_points", res.RatePoints).
		Msg("projection finished")

	fmt.Println(res.PriceSeriesID)
	if res.RateSeriesID != "" {
		fmt.Println(res.RateSeriesID)
	}
}
