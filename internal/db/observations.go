package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/saviobatista/bike-logger/internal/timeseries"
	"github.com/saviobatista/bike-logger/internal/types"
)

// DetectGap compares fetchedAt with the newest snapshot of domain and records
// a gap when the interval exceeds the tolerance. Must run before the current
// snapshot is inserted.
func (t *Tx) DetectGap(ctx context.Context, domain string, fetchedAt time.Time, expectedIntervalS int64) (*types.SnapshotGap, error) {
	var prev time.Time
	err := t.tx.QueryRowContext(ctx,
		"SELECT fetched_at FROM snapshot WHERE domain = $1 ORDER BY fetched_at DESC LIMIT 1",
		domain,
	).Scan(&prev)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query previous snapshot: %w", err)
	}

	gap := timeseries.EvaluateGap(domain, prev, fetchedAt, expectedIntervalS)
	if gap == nil {
		return nil, nil
	}

	query := `
		INSERT INTO snapshot_gap (
			domain, gap_start, gap_end, gap_seconds, expected_interval_s, missing_count
		) VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT DO NOTHING
	`
	if _, err := t.tx.ExecContext(ctx, query,
		gap.Domain, gap.GapStart, gap.GapEnd, gap.GapSeconds, gap.ExpectedIntervalS, gap.MissingCount,
	); err != nil {
		return nil, fmt.Errorf("insert snapshot gap: %w", err)
	}
	return gap, nil
}

// InsertSnapshot writes the snapshot row and returns its generated id.
// A nil RawJSON stores NULL.
func (t *Tx) InsertSnapshot(ctx context.Context, s types.Snapshot) (int64, error) {
	query := `
		INSERT INTO snapshot (fetched_at, domain, source, raw_json)
		VALUES ($1, $2, $3, $4::jsonb)
		RETURNING snapshot_id
	`
	var id int64
	if err := t.tx.QueryRowContext(ctx, query,
		s.FetchedAt, s.Domain, s.Source, jsonb(s.RawJSON, ""),
	).Scan(&id); err != nil {
		return 0, fmt.Errorf("insert snapshot: %w", err)
	}
	return id, nil
}

// InsertCityStatuses appends city observations of a snapshot
func (t *Tx) InsertCityStatuses(ctx context.Context, snapshotID int64, fetchedAt time.Time, rows []types.CityStatus) error {
	query := `
		INSERT INTO city_status (
			snapshot_id, fetched_at, city_uid, booked_bikes, set_point_bikes, available_bikes,
			bike_types
		) VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb)
	`
	for _, r := range rows {
		if _, err := t.tx.ExecContext(ctx, query,
			snapshotID, fetchedAt, r.CityUID, r.BookedBikes, r.SetPointBikes, r.AvailableBikes,
			jsonb(r.BikeTypes, "{}"),
		); err != nil {
			return fmt.Errorf("insert city status %d: %w", r.CityUID, err)
		}
	}
	return nil
}

// InsertPlaceStatuses appends place observations of a snapshot
func (t *Tx) InsertPlaceStatuses(ctx context.Context, snapshotID int64, fetchedAt time.Time, rows []types.PlaceStatus) error {
	query := `
		INSERT INTO place_status (
			snapshot_id, fetched_at, place_uid, booked_bikes, bikes, bikes_available_to_rent,
			bike_racks, free_racks, special_racks, free_special_racks
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	for _, r := range rows {
		if _, err := t.tx.ExecContext(ctx, query,
			snapshotID, fetchedAt, r.PlaceUID, r.BookedBikes, r.Bikes, r.BikesAvailableToRent,
			r.BikeRacks, r.FreeRacks, r.SpecialRacks, r.FreeSpecialRacks,
		); err != nil {
			return fmt.Errorf("insert place status %d: %w", r.PlaceUID, err)
		}
	}
	return nil
}

// InsertBikeStatuses appends bike observations of a snapshot
func (t *Tx) InsertBikeStatuses(ctx context.Context, snapshotID int64, fetchedAt time.Time, rows []types.BikeStatus) error {
	query := `
		INSERT INTO bike_status (
			snapshot_id, fetched_at, bike_number, place_uid, active, state, pedelec_battery,
			battery_pack_pct, geom
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::geometry)
	`
	for _, r := range rows {
		if _, err := t.tx.ExecContext(ctx, query,
			snapshotID, fetchedAt, r.BikeNumber, r.PlaceUID, r.Active, r.State, r.PedelecBattery,
			r.BatteryPackPct, pointEWKT(r.Lat, r.Lng),
		); err != nil {
			return fmt.Errorf("insert bike status %s: %w", r.BikeNumber, err)
		}
	}
	return nil
}
