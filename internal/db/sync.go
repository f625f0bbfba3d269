package db

import (
	"context"
	"fmt"

	"github.com/saviobatista/bike-logger/internal/types"
)

// UpsertZones stores zones, last write wins
func (t *Tx) UpsertZones(ctx context.Context, zones []types.Zone) error {
	query := `
		INSERT INTO zone (zone_id, city_uid, zone_source, zone_type, name, geom, properties)
		VALUES ($1, $2, $3, $4, $5, ST_SetSRID(ST_GeomFromGeoJSON($6), 4326), $7::jsonb)
		ON CONFLICT (zone_id) DO UPDATE SET
			city_uid = EXCLUDED.city_uid,
			zone_source = EXCLUDED.zone_source,
			zone_type = EXCLUDED.zone_type,
			name = EXCLUDED.name,
			geom = EXCLUDED.geom,
			properties = EXCLUDED.properties
	`
	for _, z := range zones {
		if _, err := t.tx.ExecContext(ctx, query,
			z.ID, z.CityUID, z.Source, z.Type, z.Name, string(z.Geometry), jsonb(z.Properties, "{}"),
		); err != nil {
			return fmt.Errorf("upsert zone %s: %w", z.ID, err)
		}
	}
	return nil
}

// UpsertVehicleTypeMetadata merges vehicle type attributes. An incoming null
// never replaces a known value.
func (t *Tx) UpsertVehicleTypeMetadata(ctx context.Context, vehicleTypes []types.VehicleType) error {
	query := `
		INSERT INTO vehicle_type (
			vehicle_type_id, name, form_factor, propulsion_type, max_range_meters
		) VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (vehicle_type_id) DO UPDATE SET
			name = COALESCE(EXCLUDED.name, vehicle_type.name),
			form_factor = COALESCE(EXCLUDED.form_factor, vehicle_type.form_factor),
			propulsion_type = COALESCE(EXCLUDED.propulsion_type, vehicle_type.propulsion_type),
			max_range_meters = COALESCE(EXCLUDED.max_range_meters, vehicle_type.max_range_meters)
	`
	for _, vt := range vehicleTypes {
		if _, err := t.tx.ExecContext(ctx, query,
			vt.ID, vt.Name, vt.FormFactor, vt.PropulsionType, vt.MaxRangeMeters,
		); err != nil {
			return fmt.Errorf("upsert vehicle type %s: %w", vt.ID, err)
		}
	}
	return nil
}
