// Package ingest runs ingestion cycles: one fetch of the live feed persisted
// atomically, followed by best-effort zone and vehicle type synchronization.
package ingest

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/saviobatista/bike-logger/internal/logging"
	"github.com/saviobatista/bike-logger/internal/normalize"
	"github.com/saviobatista/bike-logger/internal/storage"
	"github.com/saviobatista/bike-logger/internal/types"
)

// SnapshotSource tags snapshots taken from the live feed
const SnapshotSource = "nextbike-live"

// Sync stage names, used as metric labels
const (
	StageZones        = "zones"
	StageVehicleTypes = "vehicle_types"
)

// Options are the per-deployment cycle settings
type Options struct {
	Domain            string
	CityID            *int64
	GBFSSystemID      string
	ExpectedIntervalS int64
	StoreRawJSON      bool
	FetchZones        bool
	FetchGBFS         bool
}

// Ingester runs ingestion cycles for one domain
type Ingester struct {
	fetcher Fetcher
	store   Store
	opts    Options
	clock   clockwork.Clock
	logger  *slog.Logger

	cache   Cache
	archive Archive
	syncRec SyncRecorder
}

// New creates an Ingester. A nil clock means the real clock.
func New(fetcher Fetcher, store Store, opts Options, clock clockwork.Clock, logger *slog.Logger) *Ingester {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Ingester{
		fetcher: fetcher,
		store:   store,
		opts:    opts,
		clock:   clock,
		logger:  logger,
	}
}

// SetCache sets the last-cycle cache
func (i *Ingester) SetCache(c Cache) {
	i.cache = c
}

// SetArchive sets the raw payload archive
func (i *Ingester) SetArchive(a Archive) {
	i.archive = a
}

// SetSyncRecorder sets the recorder of failed sync stages
func (i *Ingester) SetSyncRecorder(r SyncRecorder) {
	i.syncRec = r
}

// RunCycle fetches the live feed once and persists it in a single
// transaction. On error nothing of the cycle is visible; the error is an *Error.
func (i *Ingester) RunCycle(ctx context.Context) (types.CycleResult, error) {
	raw, err := i.fetcher.FetchLive(ctx, i.opts.Domain)
	if err != nil {
		return types.CycleResult{}, fetchErr("fetch live feed", err)
	}
	// Postgres stores microseconds; a finer value could round into the next month
	fetchedAt := i.clock.Now().UTC().Truncate(time.Microsecond)

	live, err := normalize.LiveFeed(raw, i.opts.Domain, fetchedAt)
	if err != nil {
		return types.CycleResult{}, shapeErr("normalize live feed", err)
	}

	result, err := i.persist(ctx, raw, live, fetchedAt)
	if err != nil {
		return types.CycleResult{}, err
	}

	if result.Gap != nil {
		i.logger.Warn("snapshot gap detected",
			"event", logging.EventSnapshotGap,
			"domain", result.Gap.Domain,
			"gap_start", result.Gap.GapStart,
			"gap_end", result.Gap.GapEnd,
			"gap_seconds", result.Gap.GapSeconds,
			"missing_count", result.Gap.MissingCount,
		)
	}

	result.ZoneCount = i.sync(ctx)
	i.publish(ctx, result, raw)
	return result, nil
}

func (i *Ingester) persist(ctx context.Context, raw json.RawMessage, live *normalize.Live, fetchedAt time.Time) (result types.CycleResult, err error) {
	tx, err := i.store.Begin(ctx)
	if err != nil {
		return result, persistErr("begin", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := tx.EnsurePartitions(ctx, fetchedAt); err != nil {
		return result, persistErr("ensure partitions", err)
	}
	if err := tx.UpsertCountry(ctx, live.Country); err != nil {
		return result, persistErr("upsert country", err)
	}
	if err := tx.UpsertCities(ctx, live.Cities); err != nil {
		return result, persistErr("upsert cities", err)
	}
	if err := tx.UpsertPlaces(ctx, live.Places); err != nil {
		return result, persistErr("upsert places", err)
	}
	if err := tx.EnsureVehicleTypes(ctx, live.VehicleTypeIDs); err != nil {
		return result, persistErr("ensure vehicle types", err)
	}
	if err := tx.UpsertBikes(ctx, live.Bikes); err != nil {
		return result, persistErr("upsert bikes", err)
	}

	gap, err := tx.DetectGap(ctx, i.opts.Domain, fetchedAt, i.opts.ExpectedIntervalS)
	if err != nil {
		return result, persistErr("detect gap", err)
	}

	snapshot := types.Snapshot{FetchedAt: fetchedAt, Domain: i.opts.Domain, Source: SnapshotSource}
	if i.opts.StoreRawJSON {
		snapshot.RawJSON = raw
	}
	snapshotID, err := tx.InsertSnapshot(ctx, snapshot)
	if err != nil {
		return result, persistErr("insert snapshot", err)
	}

	if err := tx.InsertCityStatuses(ctx, snapshotID, fetchedAt, live.CityStatuses); err != nil {
		return result, persistErr("insert city status", err)
	}
	if err := tx.InsertPlaceStatuses(ctx, snapshotID, fetchedAt, live.PlaceStatuses); err != nil {
		return result, persistErr("insert place status", err)
	}
	if err := tx.InsertBikeStatuses(ctx, snapshotID, fetchedAt, live.BikeStatuses); err != nil {
		return result, persistErr("insert bike status", err)
	}

	movements, err := tx.InferMovements(ctx, snapshotID, fetchedAt)
	if err != nil {
		return result, persistErr("infer movements", err)
	}

	if err := tx.Commit(); err != nil {
		return result, persistErr("commit", err)
	}
	committed = true

	return types.CycleResult{
		SnapshotID:    snapshotID,
		FetchedAt:     fetchedAt,
		Domain:        i.opts.Domain,
		CityCount:     len(live.Cities),
		PlaceCount:    len(live.Places),
		BikeCount:     len(live.BikeStatuses),
		MovementCount: movements,
		Gap:           gap,
	}, nil
}

// sync runs the zone and vehicle type stages, each in its own transaction.
// Failures are logged and counted, never returned. It returns the number of zones stored.
func (i *Ingester) sync(ctx context.Context) int {
	zones := 0
	if i.opts.FetchZones && i.opts.CityID != nil {
		n, err := i.syncZones(ctx, *i.opts.CityID)
		if err != nil {
			i.syncFailed(StageZones, err)
		}
		zones = n
	}
	if i.opts.FetchGBFS {
		if err := i.syncVehicleTypes(ctx); err != nil {
			i.syncFailed(StageVehicleTypes, err)
		}
	}
	return zones
}

func (i *Ingester) syncZones(ctx context.Context, cityID int64) (int, error) {
	cityRaw, err := i.fetcher.FetchCityZones(ctx, cityID)
	if err != nil {
		return 0, syncErr("fetch city zones", err)
	}
	flexRaw, err := i.fetcher.FetchFlexZones(ctx, i.opts.Domain)
	if err != nil {
		return 0, syncErr("fetch flex zones", err)
	}

	var zones []types.Zone
	for _, feed := range []struct {
		raw    json.RawMessage
		source string
	}{
		{cityRaw, types.ZoneSourceService},
		{flexRaw, types.ZoneSourceFlexzone},
	} {
		parsed, skipped, err := normalize.ZoneFeatures(feed.raw, cityID, feed.source)
		if err != nil {
			return 0, syncErr("normalize "+feed.source+" zones", err)
		}
		if skipped > 0 {
			i.logger.Debug("zone features skipped", "source", feed.source, "skipped", skipped)
		}
		zones = append(zones, parsed...)
	}

	err = i.inTx(ctx, "upsert zones", func(tx CycleTx) error {
		return tx.UpsertZones(ctx, zones)
	})
	if err != nil {
		return 0, err
	}
	return len(zones), nil
}

func (i *Ingester) syncVehicleTypes(ctx context.Context) error {
	raw, err := i.fetcher.FetchVehicleTypes(ctx, i.opts.GBFSSystemID)
	if err != nil {
		return syncErr("fetch vehicle types", err)
	}
	if raw == nil {
		return nil
	}
	vehicleTypes, err := normalize.VehicleTypes(raw)
	if err != nil {
		return syncErr("normalize vehicle types", err)
	}
	return i.inTx(ctx, "upsert vehicle types", func(tx CycleTx) error {
		return tx.UpsertVehicleTypeMetadata(ctx, vehicleTypes)
	})
}

func (i *Ingester) inTx(ctx context.Context, op string, fn func(CycleTx) error) error {
	tx, err := i.store.Begin(ctx)
	if err != nil {
		return syncErr(op, err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return syncErr(op, err)
	}
	if err := tx.Commit(); err != nil {
		return syncErr(op, err)
	}
	return nil
}

func (i *Ingester) syncFailed(stage string, err error) {
	i.logger.Warn("sync failed", "event", logging.EventSyncFailed, "stage", stage, "error", err)
	if i.syncRec != nil {
		i.syncRec.RecordSyncFailure(stage)
	}
}

// publish hands a committed cycle to the optional cache and archive
func (i *Ingester) publish(ctx context.Context, result types.CycleResult, raw json.RawMessage) {
	if i.cache != nil {
		if err := i.cache.StoreLastCycle(ctx, result); err != nil {
			i.logger.Warn("failed to cache cycle result", "error", err)
		}
	}
	if i.archive != nil {
		record := storage.Record{
			SnapshotID: result.SnapshotID,
			FetchedAt:  result.FetchedAt,
			Domain:     result.Domain,
			Payload:    raw,
		}
		if err := i.archive.Write(record); err != nil {
			i.logger.Warn("failed to archive payload", "error", err)
		}
	}
}
