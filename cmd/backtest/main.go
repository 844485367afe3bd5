package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"amm-curve-lab/internal/config"
	"amm-curve-lab/internal/curve"
	"amm-curve-lab/internal/dataset"
	"amm-curve-lab/internal/domain"
	"amm-curve-lab/internal/logger"
	"amm-curve-lab/internal/observability"
	"amm-curve-lab/internal/reporting"
	"amm-curve-lab/internal/simulation"
	"amm-curve-lab/internal/storage"
	chstore "amm-curve-lab/internal/storage/clickhouse"
	"amm-curve-lab/internal/storage/memory"
	pgstore "amm-curve-lab/internal/storage/postgres"
)

type stores struct {
	prices storage.PriceSeriesStore
	rates  storage.RateSeriesStore
	runs   storage.BacktestRunStore
	steps  storage.BacktestStepStore
	close  func()
}

func main() {
	// Parse flags
	configPath := flag.String("config", "", "YAML run file (overrides the single-run flags)")
	envFile := flag.String("env", ".env", "dotenv file to load")

	// Single run
	seriesID := flag.String("series", "", "Series ID to replay")
	kind := flag.String("kind", "", "Curve kind: yield, pendle, uniswap_v2, uniswap_v3, tickswap[_feeN]")
	driver := flag.String("driver", "", "Driver: amm or samm (default from kind)")
	reserveA := flag.Float64("reserve-a", 1000, "Initial reserve A (PT for time-decaying curves)")
	reserveB := flag.Float64("reserve-b", 1000, "Initial reserve B (TT for time-decaying curves)")
	duration := flag.Float64("duration", curve.DefaultRatePeriod, "Total duration in seconds (time-decaying curves)")
	rateLower := flag.Float64("rate-lower", 0, "Pendle lower rate bound")
	rateUpper := flag.Float64("rate-upper", 0, "Pendle upper rate bound")
	tick := flag.Int("tick", 0, "Tick index (tick curves)")
	feeRate := flag.Float64("fee-rate", 0, "Fee rate override (0 uses the driver default)")
	from := flag.Int64("from", 0, "First timestamp, inclusive (0 for unbounded)")
	to := flag.Int64("to", 0, "Last timestamp, inclusive (0 for unbounded)")

	// Local data
	datasetDir := flag.String("dataset-dir", "", "Load the series from CSV datasets under this directory")
	datasetName := flag.String("dataset", "", "Dataset name (defaults to --series)")

	// Storage
	postgresDSN := flag.String("postgres-dsn", "", "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", "", "ClickHouse connection string")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage")

	// Output
	output := flag.String("output", "text", "Output: text, json, csv, markdown")
	stepsOut := flag.String("steps-out", "", "Write the steps of every run as CSV to this directory")
	metricsAddr := flag.String("metrics-addr", "", "Serve Prometheus metrics on this address")
	logLevel := flag.String("log-level", "", "Log level")

	flag.Parse()

	if err := config.LoadEnv(*envFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// Build config
	var cfg *config.Config
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	} else {
		if *seriesID == "" || *kind == "" {
			fmt.Fprintln(os.Stderr, "Error: --series and --kind are required without --config")
			os.Exit(1)
		}
		cfg = config.FromEnv()
		cfg.Runs = []config.RunConfig{{
			SeriesID: *seriesID,
			Driver:   domain.Driver(*driver),
			FeeRate:  *feeRate,
			From:     *from,
			To:       *to,
			Curve: curve.Params{
				Kind:          curve.Kind(*kind),
				ReserveA:      *reserveA,
				ReserveB:      *reserveB,
				TotalDuration: *duration,
				RateLower:     *rateLower,
				RateUpper:     *rateUpper,
				Tick:          *tick,
			},
		}}
		if err := cfg.Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}
	overrideString(&cfg.Storage.PostgresDSN, *postgresDSN)
	overrideString(&cfg.Storage.ClickhouseDSN, *clickhouseDSN)
	overrideString(&cfg.Metrics.Addr, *metricsAddr)
	overrideString(&cfg.Log.Level, *logLevel)
	if *useMemory || *datasetDir != "" {
		cfg.Storage.UseMemory = true
	}

	// Setup logger
	logger.Initialize(cfg.Log.Level, cfg.Log.File)
	log := logger.GetForComponent("backtest")

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Info().Str("signal", sig.String()).Msg("shutting down")
		cancel()
	}()

	// Metrics
	reg := prometheus.NewRegistry()
	m := observability.NewMetrics("", reg)
	if cfg.Metrics.Addr != "" {
		srv := serveMetrics(cfg.Metrics.Addr, reg, log)
		defer srv.Close()
	}

	// Create stores
	st, err := openStores(ctx, cfg.Storage, cfg.Parallelism)
	if err != nil {
		log.Fatal().Err(err).Msg("open stores")
	}
	defer st.close()

	if *datasetDir != "" {
		if err := loadDatasets(ctx, st, cfg.Runs, *datasetDir, *datasetName); err != nil {
			log.Fatal().Err(err).Msg("load datasets")
		}
	}

	// Run
	runner := simulation.NewRunner(simulation.RunnerOptions{
		PriceStore: st.prices,
		RateStore:  st.rates,
		RunStore:   st.runs,
		StepStore:  st.steps,
		Metrics:    m,
	})

	log.Info().Int("runs", len(cfg.Runs)).Int("parallelism", cfg.Parallelism).Msg("starting backtests")
	outcomes, err := runner.RunAll(ctx, cfg.Runs, cfg.Parallelism)
	if err != nil {
		log.Fatal().Err(err).Msg("backtest failed")
	}

	if *stepsOut != "" {
		if err := writeSteps(*stepsOut, outcomes); err != nil {
			log.Fatal().Err(err).Msg("write steps")
		}
	}

	// Output result
	if err := printOutcomes(*output, outcomes); err != nil {
		log.Fatal().Err(err).Msg("render output")
	}

	for _, out := range outcomes {
		if out.Err != nil {
			os.Exit(2)
		}
	}
}

func overrideString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// openStores selects memory or database stores. Series and steps live in
// ClickHouse, runs in PostgreSQL.
func openStores(ctx context.Context, cfg config.StorageConfig, parallelism int) (*stores, error) {
	if cfg.UseMemory {
		return &stores{
			prices: memory.NewPriceSeriesStore(),
			rates:  memory.NewRateSeriesStore(),
			runs:   memory.NewBacktestRunStore(),
			steps:  memory.NewBacktestStepStore(),
			close:  func() {},
		}, nil
	}

	if cfg.PostgresDSN == "" || cfg.ClickhouseDSN == "" {
		return nil, errors.New("--postgres-dsn and --clickhouse-dsn are required when not using --use-memory")
	}

	pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN, pgstore.WithMaxConns(int32(parallelism)))
	if err != nil {
		return nil, err
	}
	conn, err := chstore.NewConn(ctx, cfg.ClickhouseDSN)
	if err != nil {
		pool.Close()
		return nil, err
	}

	return &stores{
		prices: chstore.NewPriceSeriesStore(conn),
		rates:  chstore.NewRateSeriesStore(conn),
		runs:   pgstore.NewBacktestRunStore(pool),
		steps:  chstore.NewBacktestStepStore(conn),
		close: func() {
			conn.Close()
			pool.Close()
		},
	}, nil
}

// loadDatasets copies CSV datasets into the stores, one per distinct series.
func loadDatasets(ctx context.Context, st *stores, runs []config.RunConfig, dir, name string) error {
	datasets, err := dataset.Discover(dir)
	if err != nil {
		return err
	}

	loaded := make(map[string]bool)
	for _, run := range runs {
		if loaded[run.SeriesID] {
			continue
		}
		loaded[run.SeriesID] = true

		dsName := name
		if dsName == "" {
			dsName = run.SeriesID
		}
		paths, err := dataset.Select(datasets, dsName)
		if err != nil {
			return err
		}

		if run.Driver == domain.DriverAMM {
			points, err := dataset.LoadRates(paths, run.SeriesID)
			if err != nil {
				return err
			}
			if err := st.rates.InsertBulk(ctx, points); err != nil {
				return fmt.Errorf("insert rates %s: %w", run.SeriesID, err)
			}
			continue
		}
		points, err := dataset.LoadPrices(paths, run.SeriesID)
		if err != nil {
			return err
		}
		if err := st.prices.InsertBulk(ctx, points); err != nil {
			return fmt.Errorf("insert prices %s: %w", run.SeriesID, err)
		}
	}
	return nil
}

func serveMetrics(addr string, reg *prometheus.Registry, log zerolog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.HandlerFor(reg))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("metrics server")
		}
	}()
	log.Info().Str("addr", addr).Msg("serving metrics")
	return srv
}

func writeSteps(dir string, outcomes []*simulation.Outcome) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	for _, out := range outcomes {
		if out == nil || out.Skipped {
			continue
		}
		path := fmt.Sprintf("%s/%s.csv", dir, out.Run.RunID)
		if err := os.WriteFile(path, []byte(reporting.RenderStepsCSV(out.Steps)), 0o644); err != nil {
			return err
		}
	}
	return nil
}

func printOutcomes(format string, outcomes []*simulation.Outcome) error {
	runs := make([]*domain.BacktestRun, 0, len(outcomes))
	for _, out := range outcomes {
		runs = append(runs, out.Run)
	}

	switch format {
	case "json":
		data, err := json.MarshalIndent(runs, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
	case "csv":
		rows := make([]reporting.RunRow, 0, len(runs))
		for _, run := range runs {
			rows = append(rows, reporting.NewRunRow(run))
		}
		fmt.Print(reporting.RenderRunsCSV(rows))
	case "markdown":
		fmt.Print(reporting.RenderMarkdown(reporting.NewGenerator(nil).FromRuns(runs)))
	case "text":
		for _, out := range outcomes {
			printOutcome(out)
		}
	default:
		return fmt.Errorf("unknown output %q", format)
	}
	return nil
}

// printOutcome outputs a human-readable run summary.
func printOutcome(out *simulation.Outcome) {
	r := out.Run
	fmt.Println()
	fmt.Printf("=== %s ===\n", out.Name)
	fmt.Printf("Run ID:             %s\n", r.RunID)
	fmt.Printf("Series:             %s\n", r.SeriesID)
	fmt.Printf("Curve:              %s (%s driver)\n", r.CurveKind, r.Driver)
	fmt.Printf("Status:             %s\n", r.Status)
	if out.Skipped {
		fmt.Println("                    (already stored)")
	}
	if r.Error != "" {
		fmt.Printf("Error:              %s\n", r.Error)
	}
	fmt.Printf("Window:             %s .. %s\n",
		time.Unix(r.FromTimestamp, 0).UTC().Format(time.RFC3339),
		time.Unix(r.ToTimestamp, 0).UTC().Format(time.RFC3339))
	fmt.Printf("Steps:              %d\n", r.StepCount)
	fmt.Printf("Fee Rate:           %.4f\n", r.FeeRate)
	fmt.Printf("Fee Income:         %.6f%%\n", r.FeeIncome*100)
	fmt.Printf("Max Drawdown:       %.4f%%\n", r.MaxDrawdown*100)
	fmt.Printf("Final Reserves:     %.6f / %.6f\n", r.FinalReserveA, r.FinalReserveB)
	fmt.Printf("Final Price:        %.8f\n", r.FinalPrice)
	if s := out.Summary; s != nil && s.FeeBearingSteps > 0 {
		fmt.Printf("Step Fee p50/p90:   %.6f / %.6f\n", s.FeeMedian, s.FeeP90)
	}
}
