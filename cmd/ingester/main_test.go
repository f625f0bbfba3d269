package main

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	flag "github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saviobatista/bike-logger/internal/config"
	"github.com/saviobatista/bike-logger/internal/logging"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestWaitForDB(t *testing.T) {
	t.Run("succeeds after transient failures", func(t *testing.T) {
		var calls atomic.Int32
		ping := pingFunc(func(ctx context.Context) error {
			if calls.Add(1) < 3 {
				return errors.New("connection refused")
			}
			return nil
		})

		err := waitForDB(context.Background(), ping, 30*time.Second, logging.Discard())
		require.NoError(t, err)
		assert.Equal(t, int32(3), calls.Load())
	})

	t.Run("gives up after max elapsed", func(t *testing.T) {
		ping := pingFunc(func(ctx context.Context) error { return errors.New("connection refused") })

		start := time.Now()
		err := waitForDB(context.Background(), ping, time.Second, logging.Discard())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to ping database")
		assert.Less(t, time.Since(start), 10*time.Second)
	})

	t.Run("stops when context is cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		ping := pingFunc(func(ctx context.Context) error { return errors.New("connection refused") })

		err := waitForDB(ctx, ping, 30*time.Second, logging.Discard())
		assert.Error(t, err)
	})
}

func TestLifecycleAttrs(t *testing.T) {
	cfg := &config.Config{Version: "1.2.3", Commit: "abc", Source: "env", Domain: "fg"}

	attrs := lifecycleAttrs(cfg, logging.EventStartupBegin)
	require.Len(t, attrs, 10)

	got := make(map[string]any)
	for i := 0; i < len(attrs); i += 2 {
		got[attrs[i].(string)] = attrs[i+1]
	}
	assert.Equal(t, "startup_begin", got["event"])
	assert.Equal(t, "1.2.3", got["version"])
	assert.Equal(t, "abc", got["commit"])
	assert.Equal(t, "env", got["config_source"])
	assert.Equal(t, cfg.Hash(), got["config_hash"])
}

func TestStartMetricsServer(t *testing.T) {
	t.Run("stops cleanly on cancel", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		errCh := startMetricsServer(ctx, "127.0.0.1:0", logging.Discard())

		time.Sleep(50 * time.Millisecond)
		cancel()

		select {
		case err, ok := <-errCh:
			assert.False(t, ok, "unexpected error: %v", err)
		case <-time.After(10 * time.Second):
			t.Fatal("metrics server did not stop")
		}
	})

	t.Run("reports listen errors", func(t *testing.T) {
		errCh := startMetricsServer(context.Background(), "invalid-address", logging.Discard())

		select {
		case err := <-errCh:
			assert.Error(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("expected a listen error")
		}
	})
}

func TestFlags(t *testing.T) {
	tests := []struct {
		name string
		args []string
		once bool
	}{
		{name: "default", args: []string{}, once: false},
		{name: "once", args: []string{"--once"}, once: true},
		{name: "explicit false", args: []string{"--once=false"}, once: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := flag.NewFlagSet("ingester", flag.ContinueOnError)
			once := fs.Bool("once", false, "Run a single ingestion cycle and exit")
			require.NoError(t, fs.Parse(tt.args))
			assert.Equal(t, tt.once, *once)
		})
	}
}
