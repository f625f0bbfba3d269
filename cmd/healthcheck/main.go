package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/saviobatista/bike-logger/internal/config"
	"github.com/saviobatista/bike-logger/internal/db"
	"github.com/saviobatista/bike-logger/internal/health"
	"github.com/saviobatista/bike-logger/internal/logging"
	"github.com/saviobatista/bike-logger/internal/redis"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	runID := logging.NewRunID()
	logger := logging.New(logging.FromConfig(cfg, runID))
	os.Exit(run(context.Background(), cfg, runID, os.Stdout, logger))
}

// run performs the probe, prints the report and returns the exit code
func run(ctx context.Context, cfg *config.Config, runID string, out io.Writer, logger *slog.Logger) int {
	var pinger health.Pinger
	if client, err := db.New(cfg.DatabaseURL); err != nil {
		logger.Warn("failed to open database", "error", err)
	} else {
		defer client.Close()
		pinger = client
	}

	var cycles health.CycleSource
	if cfg.RedisAddr != "" {
		if cache, err := redis.New(cfg.RedisAddr); err != nil {
			logger.Debug("last-cycle cache unavailable", "error", err)
		} else {
			defer cache.Close()
			cycles = cache
		}
	}

	report := health.NewChecker(cfg, runID, pinger, cycles, nil).Run(ctx)
	if err := report.Write(out); err != nil {
		logger.Error("failed to write report", "error", err)
		return 1
	}
	return report.ExitCode()
}
