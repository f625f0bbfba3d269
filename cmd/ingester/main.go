package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	flag "github.com/spf13/pflag"

	"github.com/saviobatista/bike-logger/internal/config"
	"github.com/saviobatista/bike-logger/internal/db"
	"github.com/saviobatista/bike-logger/internal/db/migrations"
	"github.com/saviobatista/bike-logger/internal/ingest"
	"github.com/saviobatista/bike-logger/internal/logging"
	"github.com/saviobatista/bike-logger/internal/nextbike"
	"github.com/saviobatista/bike-logger/internal/redis"
	"github.com/saviobatista/bike-logger/internal/stats"
	"github.com/saviobatista/bike-logger/internal/storage"
)

const (
	startupMaxElapsed = 30 * time.Second
	shutdownTimeout   = 5 * time.Second
	reportInterval    = 5 * time.Minute
)

func main() {
	once := flag.Bool("once", false, "Run a single ingestion cycle and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	runID := logging.NewRunID()
	logger := logging.New(logging.FromConfig(cfg, runID))

	if err := run(cfg, logger, *once || cfg.RunOnce); err != nil {
		logger.Error("ingester crashed", append(lifecycleAttrs(cfg, logging.EventCrashed), "error", err)...)
		os.Exit(1)
	}
}

func lifecycleAttrs(cfg *config.Config, event string) []any {
	return []any{
		"event", event,
		"version", cfg.Version,
		"commit", cfg.Commit,
		"config_source", cfg.Source,
		"config_hash", cfg.Hash(),
	}
}

func run(cfg *config.Config, logger *slog.Logger, once bool) error {
	logger.Info("starting ingester", append(lifecycleAttrs(cfg, logging.EventStartupBegin),
		"domain", cfg.Domain,
		"poll_interval", cfg.PollInterval.String(),
		"config", cfg.Redacted(),
	)...)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	client, err := db.New(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer client.Close()

	if err := waitForDB(ctx, client, startupMaxElapsed, logger); err != nil {
		return err
	}

	applied, err := migrations.New(client.DB(), logger).Migrate(ctx, migrations.All())
	if err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	logger.Info("schema ready", "applied_migrations", applied)

	if cfg.MetricsEnabled {
		stats.BuildInfo.WithLabelValues(cfg.Version, cfg.Commit, cfg.Env, cfg.ServiceName).Set(1)
		errCh := startMetricsServer(ctx, fmt.Sprintf(":%d", cfg.MetricsPort), logger)
		go func() {
			if err, ok := <-errCh; ok && err != nil {
				logger.Error("metrics server failed", "error", err)
			}
		}()
	}
	stats.Up.Set(1)
	defer stats.Up.Set(0)

	clock := clockwork.NewRealClock()
	st := stats.New()

	ingester := ingest.New(
		nextbike.NewClient(cfg.Endpoints, cfg.HTTPTimeout),
		ingest.NewStore(client),
		ingest.Options{
			Domain:            cfg.Domain,
			CityID:            cfg.CityID,
			GBFSSystemID:      cfg.GBFSSystemID,
			ExpectedIntervalS: cfg.ExpectedIntervalSeconds(),
			StoreRawJSON:      cfg.StoreRawJSON,
			FetchZones:        cfg.FetchZones,
			FetchGBFS:         cfg.FetchGBFS,
		},
		clock,
		logger,
	)
	ingester.SetSyncRecorder(st)

	if cfg.RedisAddr != "" {
		cache, err := redis.New(cfg.RedisAddr)
		if err != nil {
			logger.Warn("last-cycle cache disabled", "addr", cfg.RedisAddr, "error", err)
		} else {
			defer cache.Close()
			ingester.SetCache(cache)
		}
	}

	if cfg.ArchiveDir != "" {
		archive := storage.New(cfg.ArchiveDir, cfg.Domain)
		if err := archive.Start(clock.Now()); err != nil {
			logger.Warn("raw archive disabled", "dir", cfg.ArchiveDir, "error", err)
		} else {
			defer func() {
				if err := archive.Stop(); err != nil {
					logger.Warn("failed to close raw archive", "error", err)
				}
			}()
			ingester.SetArchive(archive)
		}
	}

	runner := ingest.NewRunner(ingester, cfg.PollInterval, clock, logger, st)

	logger.Info("ingester started", lifecycleAttrs(cfg, logging.EventStartupSuccess)...)

	if once {
		_, err := runner.RunOnce(ctx)
		logger.Info("shutdown complete", lifecycleAttrs(cfg, logging.EventShutdownComplete)...)
		return err
	}

	var wg sync.WaitGroup

	refresher := ingest.NewRefreshScheduler(client, db.MaterializedViews, cfg.RefreshMVInterval, clock, logger)
	if refresher.Enabled() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			refresher.Run(ctx)
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		st.StartReporting(ctx, logger, clock, reportInterval)
	}()

	runner.Run(ctx)

	logger.Info("shutting down", lifecycleAttrs(cfg, logging.EventShuttingDown)...)
	wg.Wait()
	logger.Info("shutdown complete", append(lifecycleAttrs(cfg, logging.EventShutdownComplete), "totals", st.String())...)
	return nil
}

// waitForDB pings the store with exponential backoff until it answers or
// maxElapsed passes.
func waitForDB(ctx context.Context, client interface{ Ping(context.Context) error }, maxElapsed time.Duration, logger *slog.Logger) error {
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, client.Ping(ctx)
	},
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxElapsedTime(maxElapsed),
		backoff.WithNotify(func(err error, next time.Duration) {
			logger.Warn("database not ready", "error", err, "retry_in", next.String())
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}
	return nil
}

// startMetricsServer serves /metrics on addr until ctx is done. Listen and
// serve errors are reported on the returned channel.
func startMetricsServer(ctx context.Context, addr string, logger *slog.Logger) <-chan error {
	errCh := make(chan error, 1)

	go func() {
		defer close(errCh)

		listener, err := net.Listen("tcp", addr)
		if err != nil {
			errCh <- err
			return
		}
		defer listener.Close()

		logger.Info("prometheus metrics server listening", "address", listener.Addr().String())

		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		httpSrv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}

		go func() {
			<-ctx.Done()
			sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			_ = httpSrv.Shutdown(sctx)
		}()

		err = httpSrv.Serve(listener)
		if errors.Is(err, http.ErrServerClosed) {
			return
		}
		if err != nil {
			errCh <- err
		}
	}()

	return errCh
}
