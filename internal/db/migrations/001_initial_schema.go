package migrations

import "time"

// InitialSchema creates the reference tables, the monthly partitioned
// observation tables and the derived fact tables
var InitialSchema = &Migration{
	ID:   "001_initial_schema",
	Name: "001_initial_schema",
	UpSQL: `
		CREATE EXTENSION IF NOT EXISTS postgis;

		CREATE TABLE IF NOT EXISTS country (
			domain TEXT PRIMARY KEY,
			name TEXT,
			country_code TEXT,
			country_name TEXT,
			timezone TEXT,
			currency TEXT,
			hotline TEXT,
			email TEXT,
			website TEXT,
			terms TEXT,
			policy TEXT,
			pricing TEXT,
			operator_address TEXT,
			country_calling_code TEXT
		);

		CREATE TABLE IF NOT EXISTS city (
			city_uid BIGINT PRIMARY KEY,
			domain TEXT NOT NULL,
			name TEXT,
			alias TEXT,
			lat DOUBLE PRECISION,
			lng DOUBLE PRECISION,
			zoom INTEGER,
			bounds geometry(Polygon, 4326),
			refresh_rate_ms INTEGER,
			website TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_city_domain ON city (domain);

		CREATE TABLE IF NOT EXISTS place (
			place_uid BIGINT PRIMARY KEY,
			city_uid BIGINT NOT NULL REFERENCES city (city_uid),
			name TEXT,
			number BIGINT,
			spot BOOLEAN,
			terminal_type TEXT,
			lat DOUBLE PRECISION,
			lng DOUBLE PRECISION,
			geom geometry(Point, 4326),
			maintenance BOOLEAN,
			active_place INTEGER,
			bike BOOLEAN,
			booked_bikes INTEGER,
			bikes INTEGER,
			bikes_available_to_rent INTEGER,
			bike_racks INTEGER,
			free_racks INTEGER,
			special_racks INTEGER,
			free_special_racks INTEGER,
			rack_locks BOOLEAN,
			place_type TEXT,
			address TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_place_city ON place (city_uid);
		CREATE INDEX IF NOT EXISTS idx_place_geom ON place USING GIST (geom);

		CREATE TABLE IF NOT EXISTS vehicle_type (
			vehicle_type_id TEXT PRIMARY KEY,
			name TEXT,
			form_factor TEXT,
			propulsion_type TEXT,
			max_range_meters DOUBLE PRECISION
		);

		CREATE TABLE IF NOT EXISTS bike (
			bike_number TEXT PRIMARY KEY,
			boardcomputer BIGINT,
			bike_type_id TEXT REFERENCES vehicle_type (vehicle_type_id),
			electric_lock BOOLEAN,
			lock_types TEXT[],
			first_seen_at TIMESTAMPTZ NOT NULL,
			last_seen_at TIMESTAMPTZ NOT NULL
		);

		CREATE TABLE IF NOT EXISTS zone (
			zone_id TEXT PRIMARY KEY,
			city_uid BIGINT NOT NULL,
			zone_source TEXT NOT NULL,
			zone_type TEXT,
			name TEXT,
			geom geometry(Geometry, 4326),
			properties JSONB NOT NULL DEFAULT '{}'::jsonb
		);
		CREATE INDEX IF NOT EXISTS idx_zone_city ON zone (city_uid, zone_source);
		CREATE INDEX IF NOT EXISTS idx_zone_geom ON zone USING GIST (geom);

		-- Observation tables, partitioned by month of fetched_at
		CREATE TABLE IF NOT EXISTS snapshot (
			snapshot_id BIGSERIAL,
			fetched_at TIMESTAMPTZ NOT NULL,
			domain TEXT NOT NULL,
			source TEXT NOT NULL,
			raw_json JSONB,
			PRIMARY KEY (snapshot_id, fetched_at)
		) PARTITION BY RANGE (fetched_at);
		CREATE INDEX IF NOT EXISTS idx_snapshot_domain_fetched ON snapshot (domain, fetched_at DESC);

		CREATE TABLE IF NOT EXISTS city_status (
			snapshot_id BIGINT NOT NULL,
			fetched_at TIMESTAMPTZ NOT NULL,
			city_uid BIGINT NOT NULL,
			booked_bikes INTEGER,
			set_point_bikes INTEGER,
			available_bikes INTEGER,
			bike_types JSONB,
			FOREIGN KEY (snapshot_id, fetched_at) REFERENCES snapshot (snapshot_id, fetched_at)
		) PARTITION BY RANGE (fetched_at);
		CREATE INDEX IF NOT EXISTS idx_city_status_city ON city_status (city_uid, fetched_at DESC);

		CREATE TABLE IF NOT EXISTS place_status (
			snapshot_id BIGINT NOT NULL,
			fetched_at TIMESTAMPTZ NOT NULL,
			place_uid BIGINT NOT NULL,
			booked_bikes INTEGER,
			bikes INTEGER,
			bikes_available_to_rent INTEGER,
			bike_racks INTEGER,
			free_racks INTEGER,
			special_racks INTEGER,
			free_special_racks INTEGER,
			FOREIGN KEY (snapshot_id, fetched_at) REFERENCES snapshot (snapshot_id, fetched_at)
		) PARTITION BY RANGE (fetched_at);
		CREATE INDEX IF NOT EXISTS idx_place_status_place ON place_status (place_uid, fetched_at DESC);

		CREATE TABLE IF NOT EXISTS bike_status (
			snapshot_id BIGINT NOT NULL,
			fetched_at TIMESTAMPTZ NOT NULL,
			bike_number TEXT NOT NULL,
			place_uid BIGINT,
			active BOOLEAN,
			state TEXT,
			pedelec_battery INTEGER,
			battery_pack_pct INTEGER,
			geom geometry(Point, 4326),
			FOREIGN KEY (snapshot_id, fetched_at) REFERENCES snapshot (snapshot_id, fetched_at)
		) PARTITION BY RANGE (fetched_at);
		CREATE INDEX IF NOT EXISTS idx_bike_status_bike ON bike_status (bike_number, fetched_at DESC);
		CREATE INDEX IF NOT EXISTS idx_bike_status_snapshot ON bike_status (snapshot_id, fetched_at);

		-- Derived facts
		CREATE TABLE IF NOT EXISTS snapshot_gap (
			gap_id BIGSERIAL PRIMARY KEY,
			domain TEXT NOT NULL,
			gap_start TIMESTAMPTZ NOT NULL,
			gap_end TIMESTAMPTZ NOT NULL,
			gap_seconds INTEGER NOT NULL,
			expected_interval_s INTEGER NOT NULL,
			missing_count INTEGER NOT NULL,
			detected_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (domain, gap_start, gap_end)
		);

		CREATE TABLE IF NOT EXISTS bike_movement (
			movement_id BIGSERIAL PRIMARY KEY,
			bike_number TEXT NOT NULL,
			start_snapshot_id BIGINT NOT NULL,
			start_fetched_at TIMESTAMPTZ NOT NULL,
			end_snapshot_id BIGINT NOT NULL,
			end_fetched_at TIMESTAMPTZ NOT NULL,
			start_place_uid BIGINT NOT NULL,
			end_place_uid BIGINT NOT NULL,
			start_geom geometry(Point, 4326),
			end_geom geometry(Point, 4326),
			distance_m INTEGER,
			duration_seconds INTEGER NOT NULL CHECK (duration_seconds >= 0),
			is_station_to_station BOOLEAN NOT NULL,
			confidence SMALLINT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (bike_number, start_snapshot_id, end_snapshot_id)
		);
		CREATE INDEX IF NOT EXISTS idx_bike_movement_end ON bike_movement (end_fetched_at);
		CREATE INDEX IF NOT EXISTS idx_bike_movement_places ON bike_movement (start_place_uid, end_place_uid);
	`,
	DownSQL: `
		DROP TABLE IF EXISTS bike_movement;
		DROP TABLE IF EXISTS snapshot_gap;
		DROP TABLE IF EXISTS bike_status;
		DROP TABLE IF EXISTS place_status;
		DROP TABLE IF EXISTS city_status;
		DROP TABLE IF EXISTS snapshot;
		DROP TABLE IF EXISTS zone;
		DROP TABLE IF EXISTS bike;
		DROP TABLE IF EXISTS vehicle_type;
		DROP TABLE IF EXISTS place;
		DROP TABLE IF EXISTS city;
		DROP TABLE IF EXISTS country;
	`,
	CreatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
}
