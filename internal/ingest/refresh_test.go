package ingest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeViewStore struct {
	mu    sync.Mutex
	calls [][]string
	err   error
}

func (s *fakeViewStore) RefreshViews(ctx context.Context, views []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, views)
	return s.err
}

func (s *fakeViewStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

var testViews = []string{"mv_hotspots_hourly", "mv_routes_top"}

func TestRefreshScheduler_Due(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	disabled := NewRefreshScheduler(&fakeViewStore{}, testViews, 0, clockwork.NewFakeClockAt(start), nil)
	assert.False(t, disabled.Enabled())
	assert.False(t, disabled.Due(start))

	s := NewRefreshScheduler(&fakeViewStore{}, testViews, 10*time.Minute, clockwork.NewFakeClockAt(start), nil)
	assert.True(t, s.Enabled())
	assert.True(t, s.Due(start), "never refreshed")

	s.last = start
	assert.False(t, s.Due(start.Add(9*time.Minute+59*time.Second)))
	assert.True(t, s.Due(start.Add(10*time.Minute)))
}

func TestRefreshScheduler_RefreshIfDue(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	store := &fakeViewStore{}
	s := NewRefreshScheduler(store, testViews, 10*time.Minute, clock, nil)
	ctx := context.Background()

	refreshed, err := s.RefreshIfDue(ctx)
	require.NoError(t, err)
	assert.True(t, refreshed)
	assert.Equal(t, [][]string{testViews}, store.calls)

	clock.Advance(5 * time.Minute)
	refreshed, err = s.RefreshIfDue(ctx)
	require.NoError(t, err)
	assert.False(t, refreshed)

	clock.Advance(5 * time.Minute)
	refreshed, err = s.RefreshIfDue(ctx)
	require.NoError(t, err)
	assert.True(t, refreshed)
	assert.Equal(t, 2, store.count())
}

func TestRefreshScheduler_FailureRetries(t *testing.T) {
	clock := clockwork.NewFakeClock()
	store := &fakeViewStore{err: errors.New("lock timeout")}
	s := NewRefreshScheduler(store, testViews, time.Hour, clock, nil)
	ctx := context.Background()

	refreshed, err := s.RefreshIfDue(ctx)
	assert.Error(t, err)
	assert.False(t, refreshed)
	assert.True(t, s.last.IsZero())

	store.err = nil
	refreshed, err = s.RefreshIfDue(ctx)
	require.NoError(t, err)
	assert.True(t, refreshed, "a failed refresh is retried on the next check")
}

func TestRefreshScheduler_Run(t *testing.T) {
	clock := clockwork.NewFakeClock()
	store := &fakeViewStore{}
	s := NewRefreshScheduler(store, testViews, 2*time.Minute, clock, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer waitCancel()

	require.NoError(t, clock.BlockUntilContext(waitCtx, 1))
	assert.Equal(t, 1, store.count())

	// Checks every minute, refreshes every second check
	clock.Advance(time.Minute)
	require.NoError(t, clock.BlockUntilContext(waitCtx, 1))
	assert.Equal(t, 1, store.count())

	clock.Advance(time.Minute)
	require.NoError(t, clock.BlockUntilContext(waitCtx, 1))
	assert.Equal(t, 2, store.count())

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRefreshScheduler_RunDisabled(t *testing.T) {
	store := &fakeViewStore{}
	s := NewRefreshScheduler(store, testViews, 0, clockwork.NewFakeClock(), nil)

	done := make(chan struct{})
	go func() {
		s.Run(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("disabled scheduler should return immediately")
	}
	assert.Zero(t, store.count())
}
