package migrations

import "time"

// AggregateViews creates the materialized views refreshed by the view refresher
var AggregateViews = &Migration{
	ID:   "002_aggregate_views",
	Name: "002_aggregate_views",
	UpSQL: `
	-- Departures and arrivals per place and hour
	CREATE MATERIALIZED VIEW IF NOT EXISTS mv_hotspots_hourly AS
	WITH events AS (
		SELECT start_place_uid AS place_uid, date_trunc('hour', start_fetched_at) AS hour,
			1 AS departures, 0 AS arrivals
		FROM bike_movement
		UNION ALL
		SELECT end_place_uid, date_trunc('hour', end_fetched_at), 0, 1
		FROM bike_movement
	)
	SELECT hour, place_uid, SUM(departures)::int AS departures, SUM(arrivals)::int AS arrivals
	FROM events
	GROUP BY hour, place_uid;
	CREATE UNIQUE INDEX IF NOT EXISTS idx_mv_hotspots_hourly ON mv_hotspots_hourly (hour, place_uid);

	-- Available bikes per city and hour
	CREATE MATERIALIZED VIEW IF NOT EXISTS mv_city_bikes_hourly AS
	SELECT
		date_trunc('hour', fetched_at) AS hour,
		city_uid,
		ROUND(AVG(available_bikes), 2) AS avg_available_bikes,
		MIN(available_bikes) AS min_available_bikes,
		MAX(available_bikes) AS max_available_bikes,
		COUNT(*) AS samples
	FROM city_status
	GROUP BY 1, 2;
	CREATE UNIQUE INDEX IF NOT EXISTS idx_mv_city_bikes_hourly ON mv_city_bikes_hourly (hour, city_uid);

	-- Most frequent place pairs
	CREATE MATERIALIZED VIEW IF NOT EXISTS mv_routes_top AS
	SELECT
		start_place_uid,
		end_place_uid,
		COUNT(*) AS trips,
		ROUND(AVG(duration_seconds)) AS avg_duration_seconds,
		ROUND(AVG(distance_m)) AS avg_distance_m,
		BOOL_AND(is_station_to_station) AS station_to_station
	FROM bike_movement
	GROUP BY start_place_uid, end_place_uid;
	CREATE UNIQUE INDEX IF NOT EXISTS idx_mv_routes_top ON mv_routes_top (start_place_uid, end_place_uid);

	-- Time bikes spend at a place between arriving and leaving again
	CREATE MATERIALIZED VIEW IF NOT EXISTS mv_bike_dwell AS
	WITH stays AS (
		SELECT
			bike_number,
			end_place_uid AS place_uid,
			end_fetched_at AS arrived_at,
			LEAD(start_fetched_at) OVER (PARTITION BY bike_number ORDER BY end_fetched_at) AS departed_at
		FROM bike_movement
	)
	SELECT
		place_uid,
		COUNT(*) AS stays,
		ROUND(AVG(EXTRACT(EPOCH FROM departed_at - arrived_at))) AS avg_dwell_seconds,
		MAX(EXTRACT(EPOCH FROM departed_at - arrived_at))::bigint AS max_dwell_seconds
	FROM stays
	WHERE departed_at IS NOT NULL
	GROUP BY place_uid;
	CREATE UNIQUE INDEX IF NOT EXISTS idx_mv_bike_dwell ON mv_bike_dwell (place_uid);
	`,
	DownSQL: `
	DROP MATERIALIZED VIEW IF EXISTS mv_bike_dwell;
	DROP MATERIALIZED VIEW IF EXISTS mv_routes_top;
	DROP MATERIALIZED VIEW IF EXISTS mv_city_bikes_hourly;
	DROP MATERIALIZED VIEW IF EXISTS mv_hotspots_hourly;
	`,
	CreatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
}
