package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/lib/pq"
	flag "github.com/spf13/pflag"

	"github.com/saviobatista/bike-logger/internal/config"
	"github.com/saviobatista/bike-logger/internal/db/migrations"
	"github.com/saviobatista/bike-logger/internal/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	dbURL, rollback, err := parseFlags(os.Args[1:], cfg.DatabaseURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(2)
	}

	logger := logging.New(logging.FromConfig(cfg, logging.NewRunID()))

	if err := run(context.Background(), dbURL, rollback, logger); err != nil {
		logger.Error("migration failed", "error", err)
		os.Exit(1)
	}
}

// parseFlags reads --db and --rollback; defaultDB comes from the environment
func parseFlags(args []string, defaultDB string) (string, bool, error) {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	dbURL := fs.String("db", defaultDB, "Database connection string (default from DATABASE_URL or PG* variables)")
	rollback := fs.Bool("rollback", false, "Rollback the last migration")
	if err := fs.Parse(args); err != nil {
		return "", false, err
	}
	if *dbURL == "" {
		return "", false, fmt.Errorf("no database connection string")
	}
	return *dbURL, *rollback, nil
}

func run(ctx context.Context, dbURL string, rollback bool, logger *slog.Logger) error {
	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	return runMigration(ctx, db, rollback, logger)
}

func runMigration(ctx context.Context, db *sql.DB, rollback bool, logger *slog.Logger) error {
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	migrator := migrations.New(db, logger)

	if rollback {
		if err := migrator.Rollback(ctx, migrations.All()); err != nil {
			return fmt.Errorf("failed to rollback migration: %w", err)
		}
		return nil
	}

	applied, err := migrator.Migrate(ctx, migrations.All())
	if err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	logger.Info("migrations up to date", "applied", applied)
	return nil
}
