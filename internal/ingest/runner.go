package ingest

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/saviobatista/bike-logger/internal/logging"
	"github.com/saviobatista/bike-logger/internal/types"
)

// CycleRecorder receives the outcome of every cycle
type CycleRecorder interface {
	RecordSuccess(result types.CycleResult, duration time.Duration)
	RecordFailure(reason string, duration time.Duration)
}

// Cycler runs one ingestion cycle
type Cycler interface {
	RunCycle(ctx context.Context) (types.CycleResult, error)
}

// Runner drives cycles on a fixed interval until its context is cancelled
type Runner struct {
	cycler   Cycler
	interval time.Duration
	clock    clockwork.Clock
	logger   *slog.Logger
	recorder CycleRecorder
}

// NewRunner creates a Runner. recorder may be nil.
func NewRunner(cycler Cycler, interval time.Duration, clock clockwork.Clock, logger *slog.Logger, recorder CycleRecorder) *Runner {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Runner{
		cycler:   cycler,
		interval: interval,
		clock:    clock,
		logger:   logger,
		recorder: recorder,
	}
}

// Run executes cycles until ctx is done. A cycle in flight when ctx is
// cancelled runs to completion; no new cycle starts afterwards. Failed
// cycles are logged and the loop carries on.
func (r *Runner) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		elapsed, _ := r.RunOnce(ctx)

		wait := r.interval - elapsed
		if wait < 0 {
			wait = 0
		}
		select {
		case <-ctx.Done():
			return
		case <-r.clock.After(wait):
		}
	}
}

// RunOnce executes a single cycle, logs and records its outcome, and
// returns its duration and error
func (r *Runner) RunOnce(ctx context.Context) (time.Duration, error) {
	start := r.clock.Now()
	result, err := r.cycler.RunCycle(context.WithoutCancel(ctx))
	elapsed := r.clock.Since(start)

	if err != nil {
		reason := FailureReason(err)
		r.logger.Error("ingestion cycle failed",
			"event", logging.EventIngestFailed,
			"reason", reason,
			"duration_ms", elapsed.Milliseconds(),
			"error", err,
		)
		if r.recorder != nil {
			r.recorder.RecordFailure(reason, elapsed)
		}
		return elapsed, err
	}

	r.logger.Info("ingestion cycle committed",
		"event", logging.EventIngestSuccess,
		"snapshot_id", result.SnapshotID,
		"fetched_at", result.FetchedAt,
		"cities", result.CityCount,
		"places", result.PlaceCount,
		"bikes", result.BikeCount,
		"movements", result.MovementCount,
		"zones", result.ZoneCount,
		"duration_ms", elapsed.Milliseconds(),
	)
	if r.recorder != nil {
		r.recorder.RecordSuccess(result, elapsed)
	}
	return elapsed, nil
}
