package stats

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/saviobatista/bike-logger/internal/types"
)

// Stats tracks ingestion cycle statistics and mirrors them into the
// prometheus collectors
type Stats struct {
	// Cycle counts
	Cycles       uint64
	Failures     uint64
	Movements    uint64
	Gaps         uint64
	SyncFailures uint64

	// Last cycle
	LastSnapshotID int64
	LastBikeCount  uint64

	// Timing
	StartTime      time.Time
	LastCycleTime  time.Time
	ProcessingTime time.Duration

	failureReasons map[string]uint64

	mu sync.RWMutex
}

// New creates a new Stats instance
func New() *Stats {
	return &Stats{
		StartTime:      time.Now(),
		failureReasons: make(map[string]uint64),
	}
}

// RecordSuccess accounts a committed cycle
func (s *Stats) RecordSuccess(result types.CycleResult, duration time.Duration) {
	atomic.AddUint64(&s.Cycles, 1)
	atomic.AddUint64(&s.Movements, uint64(result.MovementCount))
	atomic.StoreInt64(&s.LastSnapshotID, result.SnapshotID)
	atomic.StoreUint64(&s.LastBikeCount, uint64(result.BikeCount))
	if result.Gap != nil {
		atomic.AddUint64(&s.Gaps, 1)
		SnapshotGapsTotal.Inc()
	}
	s.finish(duration)

	MovementsTotal.Add(float64(result.MovementCount))
}

// RecordFailure accounts an aborted cycle under reason
func (s *Stats) RecordFailure(reason string, duration time.Duration) {
	atomic.AddUint64(&s.Cycles, 1)
	atomic.AddUint64(&s.Failures, 1)
	s.mu.Lock()
	s.failureReasons[reason]++
	s.mu.Unlock()
	s.finish(duration)

	IterationFailuresTotal.Inc()
	IterationFailureReasonsTotal.WithLabelValues(reason).Inc()
}

// RecordSyncFailure accounts a failed best-effort sync stage
func (s *Stats) RecordSyncFailure(stage string) {
	atomic.AddUint64(&s.SyncFailures, 1)
	SyncFailuresTotal.WithLabelValues(stage).Inc()
}

func (s *Stats) finish(duration time.Duration) {
	now := time.Now()
	s.mu.Lock()
	s.LastCycleTime = now
	s.ProcessingTime += duration
	s.mu.Unlock()

	IterationsTotal.Inc()
	IterationDuration.Observe(duration.Seconds())
	LastIterationTimestamp.Set(float64(now.Unix()))
}

// FailureReasons returns a copy of the failure counts by reason
func (s *Stats) FailureReasons() map[string]uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]uint64, len(s.failureReasons))
	for k, v := range s.failureReasons {
		out[k] = v
	}
	return out
}

// GetStats returns a copy of the current statistics
func (s *Stats) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return map[string]interface{}{
		"cycles":           atomic.LoadUint64(&s.Cycles),
		"failures":         atomic.LoadUint64(&s.Failures),
		"movements":        atomic.LoadUint64(&s.Movements),
		"gaps":             atomic.LoadUint64(&s.Gaps),
		"sync_failures":    atomic.LoadUint64(&s.SyncFailures),
		"last_snapshot_id": atomic.LoadInt64(&s.LastSnapshotID),
		"last_bike_count":  atomic.LoadUint64(&s.LastBikeCount),
		"last_cycle_time":  s.LastCycleTime,
		"processing_time":  s.ProcessingTime,
		"uptime":           time.Since(s.StartTime),
	}
}

// String returns a string representation of the statistics
func (s *Stats) String() string {
	stats := s.GetStats()
	return fmt.Sprintf(
		"Cycles: %d\n"+
			"Failures: %d\n"+
			"Movements: %d\n"+
			"Gaps: %d\n"+
			"Sync Failures: %d\n"+
			"Last Snapshot: %d\n"+
			"Last Bike Count: %d\n"+
			"Processing Time: %s\n"+
			"Uptime: %s",
		stats["cycles"],
		stats["failures"],
		stats["movements"],
		stats["gaps"],
		stats["sync_failures"],
		stats["last_snapshot_id"],
		stats["last_bike_count"],
		stats["processing_time"],
		stats["uptime"],
	)
}

// StartReporting logs the totals every interval until ctx is done
func (s *Stats) StartReporting(ctx context.Context, logger *slog.Logger, clock clockwork.Clock, interval time.Duration) {
	ticker := clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			st := s.GetStats()
			logger.Info("ingestion totals",
				"cycles", st["cycles"],
				"failures", st["failures"],
				"failure_reasons", s.FailureReasons(),
				"movements", st["movements"],
				"gaps", st["gaps"],
				"sync_failures", st["sync_failures"],
			)
		}
	}
}
