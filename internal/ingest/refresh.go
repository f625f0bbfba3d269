package ingest

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/saviobatista/bike-logger/internal/logging"
)

// maxRefreshCheck caps how long the refresher sleeps between checks
const maxRefreshCheck = time.Minute

// ViewRefresher is the store operation the refresher needs
type ViewRefresher interface {
	RefreshViews(ctx context.Context, views []string) error
}

// RefreshScheduler refreshes the aggregate views at most once per interval.
// It owns the time of the last successful refresh.
type RefreshScheduler struct {
	store    ViewRefresher
	views    []string
	interval time.Duration
	clock    clockwork.Clock
	logger   *slog.Logger

	last time.Time
}

// NewRefreshScheduler creates a scheduler. An interval <= 0 disables it.
func NewRefreshScheduler(store ViewRefresher, views []string, interval time.Duration, clock clockwork.Clock, logger *slog.Logger) *RefreshScheduler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &RefreshScheduler{
		store:    store,
		views:    views,
		interval: interval,
		clock:    clock,
		logger:   logger,
	}
}

// Enabled reports whether an interval is configured
func (s *RefreshScheduler) Enabled() bool {
	return s.interval > 0
}

// Due reports whether a refresh should run at now
func (s *RefreshScheduler) Due(now time.Time) bool {
	if !s.Enabled() {
		return false
	}
	return s.last.IsZero() || now.Sub(s.last) >= s.interval
}

// RefreshIfDue refreshes the views when due and reports whether it did.
// A failed refresh leaves the schedule untouched so the next check retries.
func (s *RefreshScheduler) RefreshIfDue(ctx context.Context) (bool, error) {
	now := s.clock.Now()
	if !s.Due(now) {
		return false, nil
	}
	if err := s.store.RefreshViews(ctx, s.views); err != nil {
		return false, err
	}
	s.last = now
	s.logger.Info("materialized views refreshed",
		"event", logging.EventViewsRefreshed,
		"views", len(s.views),
		"duration_ms", s.clock.Since(now).Milliseconds(),
	)
	return true, nil
}

// Run checks the schedule until ctx is done. It returns immediately when disabled.
func (s *RefreshScheduler) Run(ctx context.Context) {
	if !s.Enabled() {
		return
	}
	check := s.interval
	if check > maxRefreshCheck {
		check = maxRefreshCheck
	}
	for {
		if _, err := s.RefreshIfDue(ctx); err != nil && ctx.Err() == nil {
			s.logger.Warn("failed to refresh materialized views", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-s.clock.After(check):
		}
	}
}
