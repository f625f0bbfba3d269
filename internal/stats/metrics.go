package stats

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	Up = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "app_up",
		Help: "1 while the ingester is running",
	})

	BuildInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "app_build_info",
		Help: "Build information of the ingester",
	}, []string{"version", "commit", "env", "service"})

	IterationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "app_iterations_total",
		Help: "Total number of ingestion cycles",
	})

	IterationFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "app_iteration_failures_total",
		Help: "Total number of failed ingestion cycles",
	})

	IterationFailureReasonsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "app_iteration_failure_reasons_total",
		Help: "Failed ingestion cycles by reason",
	}, []string{"reason"})

	IterationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "app_iteration_duration_seconds",
		Help:    "Duration of ingestion cycles",
		Buckets: prometheus.ExponentialBuckets(0.25, 2, 10), // 250ms .. ~2m
	})

	LastIterationTimestamp = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "app_last_iteration_timestamp_seconds",
		Help: "Unix time of the last finished ingestion cycle",
	})

	MovementsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bikeshare_movements_total",
		Help: "Total number of inferred bike movements",
	})

	SnapshotGapsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bikeshare_snapshot_gaps_total",
		Help: "Total number of detected snapshot gaps",
	})

	SyncFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bikeshare_sync_failures_total",
		Help: "Failed zone and metadata synchronizations by stage",
	}, []string{"stage"})
)
