package ingest

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/saviobatista/bike-logger/internal/storage"
	"github.com/saviobatista/bike-logger/internal/types"
)

type fakeFetcher struct {
	live      json.RawMessage
	liveErr   error
	cityZones json.RawMessage
	cityErr   error
	flexZones json.RawMessage
	flexErr   error
	vehicles  json.RawMessage
	vehErr    error

	mu    sync.Mutex
	calls []string
}

func (f *fakeFetcher) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
}

func (f *fakeFetcher) FetchLive(ctx context.Context, domain string) (json.RawMessage, error) {
	f.record("live:" + domain)
	return f.live, f.liveErr
}

func (f *fakeFetcher) FetchCityZones(ctx context.Context, cityID int64) (json.RawMessage, error) {
	f.record("city_zones")
	return f.cityZones, f.cityErr
}

func (f *fakeFetcher) FetchFlexZones(ctx context.Context, domain string) (json.RawMessage, error) {
	f.record("flex_zones:" + domain)
	return f.flexZones, f.flexErr
}

func (f *fakeFetcher) FetchVehicleTypes(ctx context.Context, systemID string) (json.RawMessage, error) {
	f.record("vehicle_types:" + systemID)
	return f.vehicles, f.vehErr
}

// fakeStore hands out fakeTx values and fails the named operation when set
type fakeStore struct {
	beginErr  error
	failOn    map[string]error
	gap       *types.SnapshotGap
	movements int64

	mu  sync.Mutex
	txs []*fakeTx
}

func newFakeStore() *fakeStore {
	return &fakeStore{failOn: map[string]error{}}
}

func (s *fakeStore) Begin(ctx context.Context) (CycleTx, error) {
	if s.beginErr != nil {
		return nil, s.beginErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	tx := &fakeTx{store: s}
	s.txs = append(s.txs, tx)
	return tx, nil
}

func (s *fakeStore) tx(i int) *fakeTx {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.txs[i]
}

type fakeTx struct {
	store *fakeStore

	calls      []string
	committed  bool
	rolledBack bool

	country       types.Country
	bikes         []types.Bike
	vehicleIDs    []string
	snapshot      types.Snapshot
	bikeStatuses  []types.BikeStatus
	zones         []types.Zone
	vehicleTypes  []types.VehicleType
	partitionedAt time.Time
}

func (t *fakeTx) step(name string) error {
	t.calls = append(t.calls, name)
	return t.store.failOn[name]
}

func (t *fakeTx) EnsurePartitions(ctx context.Context, ts time.Time) error {
	t.partitionedAt = ts
	return t.step("ensure_partitions")
}

func (t *fakeTx) UpsertCountry(ctx context.Context, c types.Country) error {
	t.country = c
	return t.step("upsert_country")
}

func (t *fakeTx) UpsertCities(ctx context.Context, cities []types.City) error {
	return t.step("upsert_cities")
}

func (t *fakeTx) UpsertPlaces(ctx context.Context, places []types.Place) error {
	return t.step("upsert_places")
}

func (t *fakeTx) EnsureVehicleTypes(ctx context.Context, ids []string) error {
	t.vehicleIDs = ids
	return t.step("ensure_vehicle_types")
}

func (t *fakeTx) UpsertBikes(ctx context.Context, bikes []types.Bike) error {
	t.bikes = bikes
	return t.step("upsert_bikes")
}

func (t *fakeTx) DetectGap(ctx context.Context, domain string, fetchedAt time.Time, expectedIntervalS int64) (*types.SnapshotGap, error) {
	if err := t.step("detect_gap"); err != nil {
		return nil, err
	}
	return t.store.gap, nil
}

func (t *fakeTx) InsertSnapshot(ctx context.Context, s types.Snapshot) (int64, error) {
	t.snapshot = s
	if err := t.step("insert_snapshot"); err != nil {
		return 0, err
	}
	return 77, nil
}

func (t *fakeTx) InsertCityStatuses(ctx context.Context, snapshotID int64, fetchedAt time.Time, rows []types.CityStatus) error {
	return t.step("insert_city_status")
}

func (t *fakeTx) InsertPlaceStatuses(ctx context.Context, snapshotID int64, fetchedAt time.Time, rows []types.PlaceStatus) error {
	return t.step("insert_place_status")
}

func (t *fakeTx) InsertBikeStatuses(ctx context.Context, snapshotID int64, fetchedAt time.Time, rows []types.BikeStatus) error {
	t.bikeStatuses = rows
	return t.step("insert_bike_status")
}

func (t *fakeTx) InferMovements(ctx context.Context, snapshotID int64, fetchedAt time.Time) (int64, error) {
	if err := t.step("infer_movements"); err != nil {
		return 0, err
	}
	return t.store.movements, nil
}

func (t *fakeTx) UpsertZones(ctx context.Context, zones []types.Zone) error {
	t.zones = zones
	return t.step("upsert_zones")
}

func (t *fakeTx) UpsertVehicleTypeMetadata(ctx context.Context, vehicleTypes []types.VehicleType) error {
	t.vehicleTypes = vehicleTypes
	return t.step("upsert_vehicle_type_metadata")
}

func (t *fakeTx) Commit() error {
	if err := t.step("commit"); err != nil {
		return err
	}
	t.committed = true
	return nil
}

func (t *fakeTx) Rollback() error {
	t.rolledBack = true
	return nil
}

type fakeCache struct {
	results []types.CycleResult
	err     error
}

func (c *fakeCache) StoreLastCycle(ctx context.Context, result types.CycleResult) error {
	c.results = append(c.results, result)
	return c.err
}

type fakeArchive struct {
	records []storage.Record
	err     error
}

func (a *fakeArchive) Write(r storage.Record) error {
	a.records = append(a.records, r)
	return a.err
}

type fakeRecorder struct {
	mu        sync.Mutex
	successes []types.CycleResult
	failures  []string
	syncs     []string
}

func (r *fakeRecorder) RecordSuccess(result types.CycleResult, duration time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.successes = append(r.successes, result)
}

func (r *fakeRecorder) RecordFailure(reason string, duration time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = append(r.failures, reason)
}

func (r *fakeRecorder) RecordSyncFailure(stage string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.syncs = append(r.syncs, stage)
}

func (r *fakeRecorder) counts() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.successes), len(r.failures)
}
