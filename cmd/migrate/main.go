package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"amm-curve-lab/internal/config"
	"amm-curve-lab/internal/logger"
	"amm-curve-lab/internal/storage/migrations"
	pgstore "amm-curve-lab/internal/storage/postgres"
)

func main() {
	postgresDSN := flag.String("postgres-dsn", "", "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", "", "ClickHouse connection string")
	timeout := flag.Duration("timeout", 2*time.Minute, "Overall timeout")
	envFile := flag.String("env", ".env", "dotenv file to load")
	flag.Parse()

	if err := config.LoadEnv(*envFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	cfg := config.FromEnv()
	if *postgresDSN != "" {
		cfg.Storage.PostgresDSN = *postgresDSN
	}
	if *clickhouseDSN != "" {
		cfg.Storage.ClickhouseDSN = *clickhouseDSN
	}

	logger.Initialize(cfg.Log.Level, cfg.Log.File)
	log := logger.GetForComponent("migrate")

	if cfg.Storage.PostgresDSN == "" && cfg.Storage.ClickhouseDSN == "" {
		log.Fatal().Msg("nothing to migrate: set --postgres-dsn and/or --clickhouse-dsn")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if cfg.Storage.PostgresDSN != "" {
		pool, err := pgstore.NewPool(ctx, cfg.Storage.PostgresDSN)
		if err != nil {
			log.Fatal().Err(err).Msg("connect to postgres")
		}
		applied, err := migrations.RunPostgresMigrations(ctx, pool)
		pool.Close()
		if err != nil {
			log.Fatal().Err(err).Msg("postgres migrations")
		}
		log.Info().Strs("files", applied).Msg("postgres migrations applied")
	}

	if cfg.Storage.ClickhouseDSN != "" {
		conn, applied, err := migrations.RunClickhouseMigrations(ctx, cfg.Storage.ClickhouseDSN)
		if err != nil {
			log.Fatal().Err(err).Msg("clickhouse migrations")
		}
		conn.Close()
		log.Info().Strs("files", applied).Msg("clickhouse migrations applied")
	}
}
