package ingest

import (
	"context"
	"encoding/json"
	"time"

	"github.com/saviobatista/bike-logger/internal/db"
	"github.com/saviobatista/bike-logger/internal/storage"
	"github.com/saviobatista/bike-logger/internal/types"
)

// Fetcher retrieves the upstream documents
type Fetcher interface {
	FetchLive(ctx context.Context, domain string) (json.RawMessage, error)
	FetchCityZones(ctx context.Context, cityID int64) (json.RawMessage, error)
	FetchFlexZones(ctx context.Context, domain string) (json.RawMessage, error)
	FetchVehicleTypes(ctx context.Context, systemID string) (json.RawMessage, error)
}

// CycleTx is the unit of work of one cycle
type CycleTx interface {
	EnsurePartitions(ctx context.Context, ts time.Time) error
	UpsertCountry(ctx context.Context, c types.Country) error
	UpsertCities(ctx context.Context, cities []types.City) error
	UpsertPlaces(ctx context.Context, places []types.Place) error
	EnsureVehicleTypes(ctx context.Context, ids []string) error
	UpsertBikes(ctx context.Context, bikes []types.Bike) error
	DetectGap(ctx context.Context, domain string, fetchedAt time.Time, expectedIntervalS int64) (*types.SnapshotGap, error)
	InsertSnapshot(ctx context.Context, s types.Snapshot) (int64, error)
	InsertCityStatuses(ctx context.Context, snapshotID int64, fetchedAt time.Time, rows []types.CityStatus) error
	InsertPlaceStatuses(ctx context.Context, snapshotID int64, fetchedAt time.Time, rows []types.PlaceStatus) error
	InsertBikeStatuses(ctx context.Context, snapshotID int64, fetchedAt time.Time, rows []types.BikeStatus) error
	InferMovements(ctx context.Context, snapshotID int64, fetchedAt time.Time) (int64, error)
	UpsertZones(ctx context.Context, zones []types.Zone) error
	UpsertVehicleTypeMetadata(ctx context.Context, vehicleTypes []types.VehicleType) error
	Commit() error
	Rollback() error
}

// Store opens cycle transactions
type Store interface {
	Begin(ctx context.Context) (CycleTx, error)
}

// Cache keeps the last committed cycle for other processes to read
type Cache interface {
	StoreLastCycle(ctx context.Context, result types.CycleResult) error
}

// Archive receives the raw payload of every committed cycle
type Archive interface {
	Write(r storage.Record) error
}

// SyncRecorder counts failed best-effort stages
type SyncRecorder interface {
	RecordSyncFailure(stage string)
}

type dbStore struct {
	client *db.Client
}

// NewStore adapts a database client to Store
func NewStore(client *db.Client) Store {
	return dbStore{client: client}
}

func (s dbStore) Begin(ctx context.Context) (CycleTx, error) {
	tx, err := s.client.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return tx, nil
}
