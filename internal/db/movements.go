package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/saviobatista/bike-logger/internal/movement"
	"github.com/saviobatista/bike-logger/internal/types"
)

// candidatesQuery pairs every bike of the current snapshot with its most
// recent earlier observation in any snapshot, keeping only pairs whose places differ.
const candidatesQuery = `
	WITH current AS (
		SELECT bike_number, snapshot_id, fetched_at, place_uid, geom
		FROM bike_status
		WHERE snapshot_id = $1 AND fetched_at = $2
	),
	prev AS (
		SELECT DISTINCT ON (bs.bike_number)
			bs.bike_number, bs.snapshot_id, bs.fetched_at, bs.place_uid, bs.geom
		FROM bike_status bs
		JOIN current c ON c.bike_number = bs.bike_number
		WHERE NOT (bs.snapshot_id = $1 AND bs.fetched_at = $2)
			AND bs.fetched_at <= $2
		ORDER BY bs.bike_number, bs.fetched_at DESC
	)
	SELECT
		c.bike_number,
		p.snapshot_id, p.fetched_at, p.place_uid, ST_Y(p.geom), ST_X(p.geom), COALESCE(ps.spot, FALSE),
		c.snapshot_id, c.fetched_at, c.place_uid, ST_Y(c.geom), ST_X(c.geom), COALESCE(pe.spot, FALSE)
	FROM current c
	JOIN prev p ON p.bike_number = c.bike_number
	LEFT JOIN place ps ON ps.place_uid = p.place_uid
	LEFT JOIN place pe ON pe.place_uid = c.place_uid
	WHERE c.place_uid IS NOT NULL
		AND p.place_uid IS NOT NULL
		AND c.place_uid <> p.place_uid
	ORDER BY c.bike_number
`

// InferMovements derives movements for the bikes of the given snapshot and
// returns how many new rows were written. Re-running it for the same snapshot
// writes nothing.
func (t *Tx) InferMovements(ctx context.Context, snapshotID int64, fetchedAt time.Time) (int64, error) {
	candidates, err := t.movementCandidates(ctx, snapshotID, fetchedAt)
	if err != nil {
		return 0, err
	}

	query := `
		INSERT INTO bike_movement (
			bike_number, start_snapshot_id, start_fetched_at, end_snapshot_id, end_fetched_at,
			start_place_uid, end_place_uid, start_geom, end_geom,
			distance_m, duration_seconds, is_station_to_station, confidence
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8::geometry, $9::geometry, $10, $11, $12, $13)
		ON CONFLICT DO NOTHING
	`

	var inserted int64
	for _, m := range movement.Infer(candidates) {
		res, err := t.tx.ExecContext(ctx, query,
			m.BikeNumber, m.Start.SnapshotID, m.Start.FetchedAt, m.End.SnapshotID, m.End.FetchedAt,
			m.Start.PlaceUID, m.End.PlaceUID, pointOf(m.Start.Position), pointOf(m.End.Position),
			m.DistanceM, m.DurationSeconds, m.StationToStation, m.Confidence,
		)
		if err != nil {
			return inserted, fmt.Errorf("insert movement of bike %s: %w", m.BikeNumber, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return inserted, fmt.Errorf("rows affected: %w", err)
		}
		inserted += n
	}
	return inserted, nil
}

func (t *Tx) movementCandidates(ctx context.Context, snapshotID int64, fetchedAt time.Time) ([]movement.Candidate, error) {
	rows, err := t.tx.QueryContext(ctx, candidatesQuery, snapshotID, fetchedAt)
	if err != nil {
		return nil, fmt.Errorf("query movement candidates: %w", err)
	}
	defer rows.Close()

	var out []movement.Candidate
	for rows.Next() {
		var (
			c                   movement.Candidate
			prevPlace, curPlace sql.NullInt64
			prevLat, prevLng    sql.NullFloat64
			curLat, curLng      sql.NullFloat64
		)
		if err := rows.Scan(
			&c.BikeNumber,
			&c.Prev.SnapshotID, &c.Prev.FetchedAt, &prevPlace, &prevLat, &prevLng, &c.Prev.Spot,
			&c.Curr.SnapshotID, &c.Curr.FetchedAt, &curPlace, &curLat, &curLng, &c.Curr.Spot,
		); err != nil {
			return nil, fmt.Errorf("scan movement candidate: %w", err)
		}
		c.Prev.PlaceUID = int64Ptr(prevPlace)
		c.Curr.PlaceUID = int64Ptr(curPlace)
		c.Prev.Position = position(prevLat, prevLng)
		c.Curr.Position = position(curLat, curLng)
		out = append(out, c)
	}
	return out, rows.Err()
}

func int64Ptr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	return &v.Int64
}

func position(lat, lng sql.NullFloat64) *types.Point {
	if !lat.Valid || !lng.Valid {
		return nil
	}
	return &types.Point{Lat: lat.Float64, Lng: lng.Float64}
}

func pointOf(p *types.Point) any {
	if p == nil {
		return nil
	}
	return pointEWKT(&p.Lat, &p.Lng)
}
